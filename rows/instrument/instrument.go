// Package instrument records how long each phase of a row request took.
package instrument

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"
)

// Phase names, in pipeline order.
const (
	BuildingQuery       = "building_query"
	LoadingObjects      = "loading_objects"
	BuildingTuples      = "building_tuples"
	FilteringTuples     = "filtering_tuples"
	ReorderingColumns   = "reordering_columns"
	SelectingAttributes = "selecting_attributes"
)

var Phases = []string{
	BuildingQuery,
	LoadingObjects,
	BuildingTuples,
	FilteringTuples,
	ReorderingColumns,
	SelectingAttributes,
}

// QueryInfo is emitted once per request. Durations are in milliseconds.
type QueryInfo struct {
	RequestID           string `json:"request_id"`
	BuildingQuery       int64  `json:"building_query"`
	LoadingObjects      int64  `json:"loading_objects"`
	BuildingTuples      int64  `json:"building_tuples"`
	FilteringTuples     int64  `json:"filtering_tuples"`
	ReorderingColumns   int64  `json:"reordering_columns"`
	SelectingAttributes int64  `json:"selecting_attributes"`
	Description         string `json:"description"`
	Timestamp           int64  `json:"timestamp"`
	Rows                int    `json:"rows"`
}

// Durations returns the phase durations keyed by phase name.
func (q QueryInfo) Durations() map[string]int64 {
	return map[string]int64{
		BuildingQuery:       q.BuildingQuery,
		LoadingObjects:      q.LoadingObjects,
		BuildingTuples:      q.BuildingTuples,
		FilteringTuples:     q.FilteringTuples,
		ReorderingColumns:   q.ReorderingColumns,
		SelectingAttributes: q.SelectingAttributes,
	}
}

func (q QueryInfo) JSON() string {
	b, err := json.Marshal(q)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// Describe returns trace when the builder supplied one, else a description of
// the raw models and criteria.
func Describe(trace string, ok bool, models, criteria []string) string {
	if ok && trace != "" {
		return trace
	}
	b, err := json.Marshal(map[string]string{
		"models":     "[" + strings.Join(models, ", ") + "]",
		"criterions": "[" + strings.Join(criteria, ", ") + "]",
	})
	if err != nil {
		return ""
	}
	return string(b)
}

// Timer samples the start of a request and the end of each phase.
type Timer struct {
	now   func() time.Time
	start time.Time
	marks []time.Time
}

// NewTimer starts a timer. A nil now uses time.Now.
func NewTimer(now func() time.Time) *Timer {
	if now == nil {
		now = time.Now
	}
	return &Timer{now: now, start: now()}
}

// Mark ends the current phase.
func (t *Timer) Mark() {
	t.marks = append(t.marks, t.now())
}

// Info builds the record for the phases marked so far.
func (t *Timer) Info(requestID, description string, rows int) QueryInfo {
	d := make([]int64, len(Phases))
	prev := t.start
	for i, m := range t.marks {
		if i >= len(d) {
			break
		}
		d[i] = m.Sub(prev).Milliseconds()
		prev = m
	}
	return QueryInfo{
		RequestID:           requestID,
		BuildingQuery:       d[0],
		LoadingObjects:      d[1],
		BuildingTuples:      d[2],
		FilteringTuples:     d[3],
		ReorderingColumns:   d[4],
		SelectingAttributes: d[5],
		Description:         description,
		Timestamp:           t.now().UnixMilli(),
		Rows:                rows,
	}
}

// Observer receives the record of every completed request.
type Observer interface {
	Observe(ctx context.Context, info QueryInfo)
}

type Nop struct{}

func (Nop) Observe(context.Context, QueryInfo) {}

type multi []Observer

// Multi fans a record out to every observer.
func Multi(observers ...Observer) Observer {
	return multi(observers)
}

func (m multi) Observe(ctx context.Context, info QueryInfo) {
	for _, o := range m {
		o.Observe(ctx, info)
	}
}

// LogObserver writes each record as a structured log line.
type LogObserver struct {
	Logger *slog.Logger
	Level  slog.Level
}

func NewLogObserver(logger *slog.Logger) *LogObserver {
	return &LogObserver{Logger: logger, Level: slog.LevelInfo}
}

func (o *LogObserver) Observe(ctx context.Context, info QueryInfo) {
	o.Logger.Log(ctx, o.Level, "query information",
		slog.String("request_id", info.RequestID),
		slog.Int64(BuildingQuery, info.BuildingQuery),
		slog.Int64(LoadingObjects, info.LoadingObjects),
		slog.Int64(BuildingTuples, info.BuildingTuples),
		slog.Int64(FilteringTuples, info.FilteringTuples),
		slog.Int64(ReorderingColumns, info.ReorderingColumns),
		slog.Int64(SelectingAttributes, info.SelectingAttributes),
		slog.String("description", info.Description),
		slog.Int64("timestamp", info.Timestamp),
		slog.Int("rows", info.Rows),
	)
}
