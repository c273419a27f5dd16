// Package ddbsdk loads row-pipeline objects from DynamoDB (or ddbstore) and
// writes fixtures back in batches.
package ddbsdk

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/acksell/ddbrows/dynamodb/ddbiface"
	"github.com/acksell/ddbrows/dynamodb/table"
)

// ErrUnknownTable is returned for tables the client has no definition for.
var ErrUnknownTable = errors.New("unknown table")

const defaultPageSize = 100

// Client reads and writes the tables it was configured with.
type Client struct {
	awsddb ddbiface.AWSDynamoClientV2
	tables map[string]table.TableDefinition
	logger *slog.Logger
	opts   clientOpts
}

type clientOpts struct {
	pageSize             int32
	eventuallyConsistent bool
}

type Option func(*Client)

// WithPageSize sets the Limit of every Query and Scan page.
func WithPageSize(n int32) Option {
	return func(c *Client) {
		c.opts.pageSize = n
	}
}

// WithEventuallyConsistentReads disables consistent reads on base tables.
// GSI reads are always eventually consistent.
func WithEventuallyConsistentReads() Option {
	return func(c *Client) {
		c.opts.eventuallyConsistent = true
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

func NewClient(ddb ddbiface.AWSDynamoClientV2, defs []table.TableDefinition, opts ...Option) (*Client, error) {
	c := &Client{
		awsddb: ddb,
		tables: make(map[string]table.TableDefinition, len(defs)),
		logger: slog.Default(),
		opts:   clientOpts{pageSize: defaultPageSize},
	}
	for _, def := range defs {
		if _, dup := c.tables[def.Name]; dup {
			return nil, fmt.Errorf("table %q defined twice", def.Name)
		}
		c.tables[def.Name] = def
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) table(name string) (table.TableDefinition, error) {
	def, ok := c.tables[name]
	if !ok {
		return table.TableDefinition{}, fmt.Errorf("%w: %s", ErrUnknownTable, name)
	}
	return def, nil
}

func ptr[T any](v T) *T {
	return &v
}
