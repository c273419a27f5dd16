package rowsapi

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/acksell/ddbrows/dynamodb/schema"
	"github.com/acksell/ddbrows/rows"
	"github.com/acksell/ddbrows/rows/instrument"
	"github.com/acksell/ddbrows/rows/objstore"
	"github.com/acksell/ddbrows/rows/record"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSchema(t *testing.T) *schema.Loaded {
	t.Helper()
	l, err := schema.Build(
		&schema.File{
			Table: schema.Table{Name: "service", PartitionKey: schema.KeyDef{Name: "id", Kind: "N"}},
			Model: &schema.Model{Attributes: []string{"id", "host"}},
		},
		&schema.File{
			Table: schema.Table{
				Name:         "compute_node",
				PartitionKey: schema.KeyDef{Name: "id", Kind: "N"},
				GSIs: []schema.GSI{
					{Name: "by_service", PartitionKey: schema.KeyDef{Name: "service_id", Kind: "N"}},
				},
			},
			Model: &schema.Model{
				Attributes:    []string{"id", "service_id", "host", "vcpus"},
				Relationships: []schema.Relationship{{Field: "service_id", Table: "service", RemoteField: "id"}},
			},
			Aliases: []schema.Alias{{Name: "hypervisor", Columns: []string{"id", "host"}}},
		},
	)
	require.NoError(t, err)
	return l
}

func newTestServer(t *testing.T) (*httptest.Server, *prometheus.Registry) {
	t.Helper()
	store := objstore.NewMemory()
	store.Put("service", record.Map{"id": 1, "host": "ctl-1"})
	store.Put("compute_node",
		record.Map{"id": 10, "service_id": 1, "host": "cmp-a", "vcpus": 8},
		record.Map{"id": 11, "service_id": 1, "host": "cmp-b", "vcpus": 16},
	)

	logger := slog.New(slog.DiscardHandler)
	reg := prometheus.NewRegistry()
	obs, err := instrument.NewPrometheusObserver(reg)
	require.NoError(t, err)
	m, err := rows.New(store, rows.WithLogger(logger), rows.WithObserver(obs))
	require.NoError(t, err)
	t.Cleanup(m.Close)

	srv := NewServer(ServerConfig{Gatherer: reg}, NewAPIHandler(m, testSchema(t), logger), logger)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, reg
}

func postSelect(t *testing.T, ts *httptest.Server, q Query) (int, map[string]any) {
	t.Helper()
	body, err := json.Marshal(q)
	require.NoError(t, err)
	resp, err := http.Post(ts.URL+"/api/select", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestSelect(t *testing.T) {
	ts, _ := newTestServer(t)

	t.Run("join ordered descending", func(t *testing.T) {
		status, out := postSelect(t, ts, Query{
			Select:    []string{"compute_node.host", "service.host"},
			Where:     []string{"compute_node.service_id = service.id"},
			OrderBy:   []string{"compute_node.vcpus desc"},
			RequestID: "req-1",
		})
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, "req-1", out["requestId"])
		assert.Equal(t, []any{
			[]any{"cmp-b", "ctl-1"},
			[]any{"cmp-a", "ctl-1"},
		}, out["rows"])
	})

	t.Run("single column is flattened", func(t *testing.T) {
		status, out := postSelect(t, ts, Query{
			Select:  []string{"compute_node.host"},
			Where:   []string{"compute_node.vcpus > 10"},
			OrderBy: []string{"compute_node.id"},
		})
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, []any{"cmp-b"}, out["rows"])
		assert.NotEmpty(t, out["requestId"])
	})

	t.Run("whole objects", func(t *testing.T) {
		status, out := postSelect(t, ts, Query{Select: []string{"service"}})
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, []any{map[string]any{"id": 1.0, "host": "ctl-1"}}, out["rows"])
	})

	t.Run("aggregates", func(t *testing.T) {
		status, out := postSelect(t, ts, Query{
			Select: []string{"count()", "sum(hypervisor.vcpus)", "~compute_node.id"},
		})
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, []any{[]any{2.0, 24.0}}, out["rows"])
	})

	t.Run("unknown entity", func(t *testing.T) {
		status, out := postSelect(t, ts, Query{Select: []string{"volume.id"}})
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Contains(t, out["error"], "unknown entity")
	})

	t.Run("malformed criterion", func(t *testing.T) {
		status, _ := postSelect(t, ts, Query{Select: []string{"service"}, Where: []string{"service.id ~~ 1"}})
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("unknown body field", func(t *testing.T) {
		resp, err := http.Post(ts.URL+"/api/select", "application/json", strings.NewReader(`{"from": "x"}`))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestModels(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/models")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Models []modelInfo `json:"models"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Len(t, out.Models, 3)
	assert.Equal(t, "compute_node", out.Models[0].Name)
	assert.Equal(t, []string{"service_id"}, out.Models[0].SecondaryIndexes)
	assert.Equal(t, "hypervisor", out.Models[1].Name)
	assert.Equal(t, "compute_node", out.Models[1].Table)
	assert.Equal(t, []string{"id", "host"}, out.Models[1].Attributes)

	resp, err = http.Get(ts.URL + "/api/models/volume")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMetrics(t *testing.T) {
	ts, _ := newTestServer(t)
	status, _ := postSelect(t, ts, Query{Select: []string{"service.host"}})
	require.Equal(t, http.StatusOK, status)

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "ddbrows_requests_total 1")
	assert.Contains(t, string(body), `ddbrows_phase_duration_seconds_count{phase="loading_objects"} 1`)
}

func TestQuery_Request(t *testing.T) {
	entities := testSchema(t)

	t.Run("hints from literal criteria", func(t *testing.T) {
		req, err := Query{
			Select: []string{"compute_node.*"},
			Where:  []string{"compute_node.service_id = 1 AND compute_node.host = 'cmp-a'"},
		}.Request(entities)
		require.NoError(t, err)
		require.Len(t, req.Selectables, 1)
		assert.Len(t, req.Hints, 2)
	})

	t.Run("hidden selectable", func(t *testing.T) {
		req, err := Query{Select: []string{"~service.id", "service.host"}}.Request(entities)
		require.NoError(t, err)
		assert.True(t, req.Selectables[0].Hidden)
		assert.False(t, req.Selectables[1].Hidden)
	})

	t.Run("order by direction", func(t *testing.T) {
		_, err := Query{Select: []string{"service"}, OrderBy: []string{"service.id sideways"}}.Request(entities)
		require.ErrorIs(t, err, ErrBadQuery)
	})

	t.Run("empty selection", func(t *testing.T) {
		_, err := Query{}.Request(entities)
		require.ErrorIs(t, err, ErrBadQuery)
	})
}
