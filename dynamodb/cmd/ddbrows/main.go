// ddbrows materializes relational rows from objects stored in DynamoDB or a
// local BadgerDB-backed store.
//
// # Installation
//
//	go install github.com/acksell/ddbrows/dynamodb/cmd/ddbrows@latest
//
// # Commands
//
//	ddbrows seed     Load fixture objects into the store
//	ddbrows select   Materialize rows and print them as JSON
//	ddbrows serve    Serve the rows HTTP API
//
// # Quick Start
//
//	ddbrows seed fixtures.yaml
//	ddbrows select --where "compute_node.service_id = service.id" compute_node.host service.host
//	ddbrows serve --port 3070
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	wd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ddbrows: %v\n", err)
		os.Exit(1)
	}
	cfg, err := LoadConfig(wd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ddbrows: %v\n", err)
		os.Exit(1)
	}

	switch cmd {
	case "seed":
		err = runSeed(ctx, cfg, args)
	case "select":
		err = runSelect(ctx, cfg, args)
	case "serve":
		err = runServe(ctx, cfg, args)
	case "help", "-h", "--help":
		printUsage()
		return
	case "version", "-v", "--version":
		fmt.Printf("ddbrows version %s\n", version)
		return
	default:
		fmt.Fprintf(os.Stderr, "ddbrows: unknown command %q\n\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "ddbrows %s: %v\n", cmd, err)
		stop()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`ddbrows - Materialize relational rows from DynamoDB objects

Usage:
  ddbrows <command> [flags]

Commands:
  seed     Load fixture objects into the store
  select   Materialize rows and print them as JSON
  serve    Serve the rows HTTP API

Examples:
  # Load fixtures into the local database:
  ddbrows seed fixtures.yaml

  # Join two tables:
  ddbrows select --where "compute_node.service_id = service.id" \
    compute_node.host service.host

  # Serve the API with an in-memory database:
  ddbrows serve --memory

Configuration (optional):
  Create ddbrows.yaml for defaults:

    dataDir: ./data          # database directory
    port: 3070               # API server port
    schema: schema/*.yaml    # schema files
    strategy: cartesian      # cartesian or join
    loadConcurrency: 4       # tables loaded at once
    log:
      level: info            # debug, info, warn or error
      format: text           # text or json
    dynamodb:
      endpoint: ""           # use DynamoDB instead of the local database
      region: ""

Run 'ddbrows <command> --help' for more information on a command.`)
}
