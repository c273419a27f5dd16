package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/acksell/ddbrows/dynamodb/ddbiface"
	"github.com/acksell/ddbrows/dynamodb/ddbsdk"
	"github.com/acksell/ddbrows/dynamodb/ddbstore"
	"github.com/acksell/ddbrows/dynamodb/schema"
	"github.com/acksell/ddbrows/rows"
	"github.com/acksell/ddbrows/rows/instrument"
	"github.com/acksell/ddbrows/rows/parallel"
	"github.com/acksell/ddbrows/rows/tuples"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/panjf2000/ants/v2"
)

// runtime is everything a command needs to read and write objects.
type runtime struct {
	schema *schema.Loaded
	client *ddbsdk.Client
	logger *slog.Logger

	closers []func()
}

func (r *runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
}

// openRuntime loads the schema and connects to DynamoDB when configured,
// otherwise to the badger store in dataDir (in memory when dataDir is empty).
func openRuntime(ctx context.Context, cfg Config, logger *slog.Logger) (*runtime, error) {
	s, err := schema.LoadSchemas(cfg.Schema)
	if err != nil {
		return nil, fmt.Errorf("loading schemas: %w", err)
	}
	r := &runtime{schema: s, logger: logger}

	var backend ddbiface.AWSDynamoClientV2
	if cfg.DynamoDB.Remote() {
		backend, err = remoteClient(ctx, cfg.DynamoDB)
		if err != nil {
			return nil, err
		}
		logger.Info("using dynamodb", "endpoint", cfg.DynamoDB.Endpoint, "region", cfg.DynamoDB.Region)
	} else {
		store, err := ddbstore.New(
			ddbstore.StoreOptions{
				Path:     cfg.DataDir,
				InMemory: cfg.DataDir == "",
				Logger:   logger.With("component", "badger"),
			},
			s.TableDefinitions...,
		)
		if err != nil {
			return nil, fmt.Errorf("creating store: %w", err)
		}
		r.closers = append(r.closers, func() {
			if err := store.Close(); err != nil {
				logger.Error("closing store", "error", err)
			}
		})
		backend = store
		logger.Debug("using badger store", "dir", cfg.DataDir)
	}

	r.client, err = ddbsdk.NewClient(backend, s.TableDefinitions, ddbsdk.WithLogger(logger.With("component", "loader")))
	if err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}

func remoteClient(ctx context.Context, c DynamoDBConfig) (*dynamodb.Client, error) {
	var opts []func(*config.LoadOptions) error
	if c.Region != "" {
		opts = append(opts, config.WithRegion(c.Region))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}
	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if c.Endpoint != "" {
			o.BaseEndpoint = aws.String(c.Endpoint)
		}
	}), nil
}

// materializer builds the row pipeline over the runtime's client.
func (r *runtime) materializer(cfg Config, observer instrument.Observer) (*rows.Materializer, error) {
	var pool *ants.Pool
	if cfg.LoadConcurrency > 1 {
		p, err := parallel.NewPool(cfg.LoadConcurrency, r.logger)
		if err != nil {
			return nil, err
		}
		pool = p
		r.closers = append(r.closers, p.Release)
	}

	var builder tuples.Builder
	switch cfg.Strategy {
	case "", "cartesian":
		builder = tuples.Cartesian{Pool: pool}
	case "join":
		builder = tuples.Join{}
	default:
		return nil, fmt.Errorf("unknown strategy %q", cfg.Strategy)
	}

	opts := []rows.Option{
		rows.WithBuilder(builder),
		rows.WithLogger(r.logger),
	}
	if pool != nil {
		opts = append(opts, rows.WithLoadPool(pool))
	}
	if observer != nil {
		opts = append(opts, rows.WithObserver(observer))
	}
	m, err := rows.New(r.client, opts...)
	if err != nil {
		return nil, err
	}
	r.closers = append(r.closers, m.Close)
	return m, nil
}
