package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/acksell/ddbrows/dynamodb/ddbsdk"
	"github.com/acksell/ddbrows/rows/record"
	"gopkg.in/yaml.v3"
)

func runSeed(ctx context.Context, cfg Config, args []string) error {
	fs := flag.NewFlagSet("seed", flag.ExitOnError)

	var (
		dataDir = fs.String("db", cfg.DataDir, "path to the BadgerDB database")
		pattern = fs.String("schema", cfg.Schema, "glob pattern for schema files")
	)

	fs.Usage = func() {
		fmt.Println(`ddbrows seed - Load fixture objects into the store

Usage:
  ddbrows seed [flags] <fixture.yaml>...

A fixture file maps table names to lists of objects:

  service:
    - {id: 1, host: ctl-1, binary: nova-compute}
  compute_node:
    - {id: 10, service_id: 1, host: cmp-a, vcpus: 8}

Flags:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return fmt.Errorf("no fixture files given")
	}
	cfg.DataDir = *dataDir
	cfg.Schema = *pattern

	logger, err := newLogger(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}
	rt, err := openRuntime(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	n, err := seed(ctx, rt.client, fs.Args())
	if err != nil {
		return err
	}
	logger.Info("seeded objects", "count", n, "files", fs.NArg())
	return nil
}

// seed writes every object of the fixture files and returns how many it wrote.
func seed(ctx context.Context, client *ddbsdk.Client, paths []string) (int, error) {
	batch := client.NewBatch(
		ddbsdk.WithMaxRetries(5),
		ddbsdk.WithTimeout(time.Minute),
	)
	count := 0
	for _, path := range paths {
		fixtures, err := loadFixtures(path)
		if err != nil {
			return 0, fmt.Errorf("loading %s: %w", path, err)
		}
		tables := make([]string, 0, len(fixtures))
		for t := range fixtures {
			tables = append(tables, t)
		}
		sort.Strings(tables)
		for _, t := range tables {
			for i, obj := range fixtures[t] {
				if err := batch.Put(t, record.Map(obj)); err != nil {
					return 0, fmt.Errorf("%s: %s[%d]: %w", filepath.Base(path), t, i, err)
				}
				count++
			}
		}
	}
	if err := batch.ExecAndRetry(ctx); err != nil {
		return 0, err
	}
	return count, nil
}

func loadFixtures(path string) (map[string][]map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var fixtures map[string][]map[string]any
	if err := yaml.Unmarshal(data, &fixtures); err != nil {
		return nil, err
	}
	return fixtures, nil
}
