package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/acksell/ddbrows/dynamodb/rowsapi"
	"github.com/acksell/ddbrows/rows/instrument"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadConfig(t *testing.T) {
	t.Run("defaults without a file", func(t *testing.T) {
		cfg, err := LoadConfig(t.TempDir())
		require.NoError(t, err)
		assert.Equal(t, defaultConfig(), cfg)
	})

	t.Run("found in a parent directory", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, filepath.Join(root, configFileName), `
dataDir: db
port: 8080
strategy: join
loadConcurrency: 4
log:
  level: debug
  format: json
dynamodb:
  endpoint: http://localhost:8000
`)
		nested := filepath.Join(root, "a", "b")
		require.NoError(t, os.MkdirAll(nested, 0o755))

		cfg, err := LoadConfig(nested)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(root, "db"), cfg.DataDir)
		assert.Equal(t, filepath.Join(root, "schema/*.yaml"), cfg.Schema)
		assert.Equal(t, 8080, cfg.Port)
		assert.Equal(t, "join", cfg.Strategy)
		assert.Equal(t, 4, cfg.LoadConcurrency)
		assert.Equal(t, LogConfig{Level: "debug", Format: "json"}, cfg.Log)
		assert.True(t, cfg.DynamoDB.Remote())
	})

	t.Run("invalid yaml", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, filepath.Join(root, configFileName), "port: [")
		_, err := LoadConfig(root)
		require.Error(t, err)
	})
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger(LogConfig{Level: "warn", Format: "json"}, &buf)
	require.NoError(t, err)
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)

	_, err = newLogger(LogConfig{Level: "loud"}, &buf)
	require.Error(t, err)
	_, err = newLogger(LogConfig{Format: "xml"}, &buf)
	require.Error(t, err)
}

const (
	serviceSchema = `
table:
  name: service
  partitionKey: {name: id, kind: N}
model:
  attributes: [id, host]
`
	computeNodeSchema = `
table:
  name: compute_node
  partitionKey: {name: id, kind: N}
  gsis:
    - name: by_service
      partitionKey: {name: service_id, kind: N}
model:
  attributes: [id, service_id, host, vcpus]
  relationships:
    - {field: service_id, table: service, remoteField: id}
`
	fixtures = `
service:
  - {id: 1, host: ctl-1}
  - {id: 2, host: ctl-2}
compute_node:
  - {id: 10, service_id: 1, host: cmp-a, vcpus: 8}
  - {id: 11, service_id: 1, host: cmp-b, vcpus: 16}
  - {id: 12, service_id: 2, host: cmp-c, vcpus: 4}
`
)

func TestSeedAndSelect(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "schema", "service.yaml"), serviceSchema)
	writeFile(t, filepath.Join(dir, "schema", "compute_node.yaml"), computeNodeSchema)
	writeFile(t, filepath.Join(dir, "fixtures.yaml"), fixtures)

	cfg := defaultConfig()
	cfg.DataDir = ""
	cfg.Schema = filepath.Join(dir, "schema", "*.yaml")

	rt, err := openRuntime(ctx, cfg, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	t.Cleanup(rt.Close)

	n, err := seed(ctx, rt.client, []string{filepath.Join(dir, "fixtures.yaml")})
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	query := rowsapi.Query{
		Select:  []string{"compute_node.host", "service.host"},
		Where:   []string{"compute_node.service_id = service.id", "service.id = 1"},
		OrderBy: []string{"compute_node.vcpus desc"},
	}
	want := []any{
		[]any{"cmp-b", "ctl-1"},
		[]any{"cmp-a", "ctl-1"},
	}

	for _, strategy := range []string{"cartesian", "join"} {
		t.Run(strategy, func(t *testing.T) {
			cfg := cfg
			cfg.Strategy = strategy
			cfg.LoadConcurrency = 2

			var out bytes.Buffer
			require.NoError(t, selectRows(ctx, rt, cfg, query, instrument.Nop{}, &out))
			var got []any
			require.NoError(t, json.Unmarshal(out.Bytes(), &got))
			assert.Equal(t, want, got)
		})
	}

	t.Run("unknown strategy", func(t *testing.T) {
		cfg := cfg
		cfg.Strategy = "nested-loop"
		require.Error(t, selectRows(ctx, rt, cfg, query, instrument.Nop{}, &bytes.Buffer{}))
	})

	t.Run("trace record", func(t *testing.T) {
		var trace, out bytes.Buffer
		require.NoError(t, selectRows(ctx, rt, cfg, rowsapi.Query{Select: []string{"count()", "~service.id"}}, printObserver{w: &trace}, &out))
		assert.JSONEq(t, "[2]", out.String())

		var info map[string]any
		require.NoError(t, json.Unmarshal(trace.Bytes(), &info))
		assert.Contains(t, info, "loading_objects")
		assert.Contains(t, info, "description")
	})

	t.Run("duplicate fixtures", func(t *testing.T) {
		path := filepath.Join(dir, "dup.yaml")
		writeFile(t, path, "service:\n  - {id: 3}\n  - {id: 3}\n")
		_, err := seed(ctx, rt.client, []string{path})
		require.Error(t, err)
	})
}
