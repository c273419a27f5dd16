package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/acksell/ddbrows/dynamodb/rowsapi"
	"github.com/acksell/ddbrows/rows/instrument"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func runServe(ctx context.Context, cfg Config, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)

	var (
		port     = fs.Int("port", cfg.Port, "HTTP port")
		dataDir  = fs.String("db", cfg.DataDir, "path to the BadgerDB database")
		memory   = fs.Bool("memory", false, "use an in-memory database")
		pattern  = fs.String("schema", cfg.Schema, "glob pattern for schema files")
		strategy = fs.String("strategy", cfg.Strategy, "tuple builder: cartesian or join")
	)

	fs.Usage = func() {
		fmt.Println(`ddbrows serve - Serve the rows HTTP API

Usage:
  ddbrows serve [flags]

Flags:`)
		fs.PrintDefaults()
		fmt.Println(`
Examples:
  ddbrows serve --db ./data
  ddbrows serve --memory --port 8080`)
	}

	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg.Port = *port
	cfg.DataDir = *dataDir
	if *memory {
		cfg.DataDir = ""
	}
	cfg.Schema = *pattern
	cfg.Strategy = *strategy

	logger, err := newLogger(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}
	rt, err := openRuntime(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := instrument.NewPrometheusObserver(reg)
	if err != nil {
		return err
	}
	m, err := rt.materializer(cfg, instrument.Multi(instrument.NewLogObserver(logger), metrics))
	if err != nil {
		return err
	}

	api := rowsapi.NewAPIHandler(m, rt.schema, logger)
	srv := rowsapi.NewServer(rowsapi.ServerConfig{Port: cfg.Port, Gatherer: reg}, api, logger)
	logger.Info("serving rows API",
		"port", cfg.Port,
		"data_dir", cfg.DataDir,
		"models", len(rt.schema.EntityNames()),
		"strategy", cfg.Strategy,
	)
	return srv.Run(ctx)
}
