package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/acksell/ddbrows/dynamodb/rowsapi"
	"github.com/acksell/ddbrows/rows/instrument"
)

// stringsFlag collects a flag given several times.
type stringsFlag []string

func (s *stringsFlag) String() string { return strings.Join(*s, ", ") }

func (s *stringsFlag) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func runSelect(ctx context.Context, cfg Config, args []string) error {
	fs := flag.NewFlagSet("select", flag.ExitOnError)

	var (
		q         rowsapi.Query
		where     stringsFlag
		orderBy   stringsFlag
		dataDir   = fs.String("db", cfg.DataDir, "path to the BadgerDB database")
		pattern   = fs.String("schema", cfg.Schema, "glob pattern for schema files")
		strategy  = fs.String("strategy", cfg.Strategy, "tuple builder: cartesian or join")
		requestID = fs.String("request-id", "", "correlation id (generated when empty)")
		trace     = fs.Bool("trace", false, "print the query information record to stderr")
	)
	fs.Var(&where, "where", "criterion, may be repeated")
	fs.Var(&orderBy, "order-by", "entity.attribute [asc|desc], may be repeated")

	fs.Usage = func() {
		fmt.Println(`ddbrows select - Materialize rows and print them as JSON

Usage:
  ddbrows select [flags] <selectable>...

Flags come before the selectables.

Selectables are entity, entity.*, entity.attribute, count(),
sum(entity.attribute), min(...) or max(...). A leading ~ hides a selectable.

Flags:`)
		fs.PrintDefaults()
		fmt.Println(`
Examples:
  ddbrows select --where "compute_node.service_id = service.id" \
    --order-by "compute_node.vcpus desc" \
    compute_node.host service.host

  ddbrows select --where "compute_node.vcpus >= 8" "count()"`)
	}

	if err := fs.Parse(args); err != nil {
		return err
	}
	q.Select = fs.Args()
	q.Where = where
	q.OrderBy = orderBy
	q.RequestID = *requestID
	cfg.DataDir = *dataDir
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

	var observer instrument.Observer = instrument.Nop{}
	if *trace {
		observer = printObserver{w: os.Stderr}
	}
	return selectRows(ctx, rt, cfg, q, observer, os.Stdout)
}

func selectRows(ctx context.Context, rt *runtime, cfg Config, q rowsapi.Query, observer instrument.Observer, w io.Writer) error {
	m, err := rt.materializer(cfg, observer)
	if err != nil {
		return err
	}
	req, err := q.Request(rt.schema)
	if err != nil {
		return err
	}
	out, err := m.Construct(ctx, req)
	if err != nil {
		return err
	}
	resolved, err := rowsapi.Resolve(ctx, out)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(resolved)
}

// printObserver writes the query information record as a JSON line.
type printObserver struct {
	w io.Writer
}

func (p printObserver) Observe(_ context.Context, info instrument.QueryInfo) {
	fmt.Fprintln(p.w, info.JSON())
}
