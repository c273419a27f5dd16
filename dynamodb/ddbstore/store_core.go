// Package ddbstore is a DynamoDB-compatible object store backed by BadgerDB.
// It serves the subset of the DynamoDB API used to load and seed objects:
// GetItem, PutItem, Query, Scan and BatchWriteItem, including GSIs.
package ddbstore

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/acksell/ddbrows/dynamodb/table"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/dgraph-io/badger/v4"
)

// Store is a DynamoDB-compatible store backed by BadgerDB.
type Store struct {
	db     *badger.DB
	tables map[string]*tableSchema
	logger *slog.Logger
}

type tableSchema struct {
	definition table.TableDefinition
	base       keyEncoder
	gsis       map[string]keyEncoder
}

// indexes returns the GSI encoders in a stable order.
func (t *tableSchema) indexes() []keyEncoder {
	names := make([]string, 0, len(t.gsis))
	for name := range t.gsis {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]keyEncoder, len(names))
	for i, name := range names {
		out[i] = t.gsis[name]
	}
	return out
}

// StoreOptions configures the BadgerDB store.
type StoreOptions struct {
	// Path to the database directory. If empty, uses in-memory mode.
	Path string
	// InMemory forces in-memory mode even if Path is set.
	InMemory bool
	// Logger receives badger's own log lines. If nil, they are discarded.
	Logger *slog.Logger
}

// New creates a new BadgerDB-backed DynamoDB store.
func New(opts StoreOptions, defs ...table.TableDefinition) (*Store, error) {
	badgerOpts := badger.DefaultOptions(opts.Path)

	if opts.Path == "" || opts.InMemory {
		badgerOpts = badgerOpts.WithInMemory(true).WithDir("").WithValueDir("")
	}

	logger := opts.Logger
	if logger != nil {
		badgerOpts = badgerOpts.WithLogger(badgerLogger{logger.With("component", "badger")})
	} else {
		badgerOpts = badgerOpts.WithLogger(nil)
		logger = slog.New(slog.DiscardHandler)
	}

	tables := make(map[string]*tableSchema, len(defs))
	for _, def := range defs {
		if def.Name == "" {
			return nil, fmt.Errorf("table definition without a name")
		}
		if _, dup := tables[def.Name]; dup {
			return nil, fmt.Errorf("table %q defined twice", def.Name)
		}
		schema := &tableSchema{
			definition: def,
			base: keyEncoder{
				tableName: def.Name,
				keyDefs:   def.KeyDefinitions,
				tableKeys: def.KeyDefinitions,
			},
			gsis: make(map[string]keyEncoder, len(def.GSIs)),
		}
		for _, gsi := range def.GSIs {
			schema.gsis[gsi.Name] = keyEncoder{
				tableName: def.Name,
				indexName: gsi.Name,
				keyDefs:   gsi.KeyDefinitions,
				tableKeys: def.KeyDefinitions,
			}
		}
		tables[def.Name] = schema
	}

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("open badger db: %w", err)
	}

	return &Store{
		db:     db,
		tables: tables,
		logger: logger,
	}, nil
}

// Close closes the BadgerDB database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Tables returns the definitions the store was opened with.
func (s *Store) Tables() []table.TableDefinition {
	out := make([]table.TableDefinition, 0, len(s.tables))
	for _, t := range s.tables {
		out = append(out, t.definition)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *Store) getTable(tableName *string) (*tableSchema, error) {
	if tableName == nil {
		return nil, fmt.Errorf("table name is required")
	}
	schema, ok := s.tables[*tableName]
	if !ok {
		return nil, &types.ResourceNotFoundException{
			Message: aws.String(fmt.Sprintf("table not found: %s", *tableName)),
		}
	}
	return schema, nil
}

// Used in query/scan to get the appropriate key encoder based on table and index name.
func (s *Store) getKeyEncoder(tableName *string, indexName *string) (keyEncoder, error) {
	schema, err := s.getTable(tableName)
	if err != nil {
		return keyEncoder{}, err
	}
	if indexName == nil || *indexName == "" {
		return schema.base, nil
	}
	gsi, ok := schema.gsis[*indexName]
	if !ok {
		return keyEncoder{}, &types.ResourceNotFoundException{
			Message: aws.String(fmt.Sprintf("index %s not found on table %s", *indexName, *tableName)),
		}
	}
	return gsi, nil
}
