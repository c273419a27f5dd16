package ddbsdk

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/acksell/ddbrows/rows/record"

	dynamodbv2 "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// maxBatchWrite is the DynamoDB limit of write requests per BatchWriteItem call.
const maxBatchWrite = 25

func (c *Client) NewBatch(opts ...BatchOption) *Batcher {
	b := &Batcher{
		c:       c,
		pending: make(map[string][]types.WriteRequest),
		keys:    make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(&b.opts)
	}
	// Default exponential backoff: 50ms base, 2x multiplier, 5s cap, full jitter
	if b.opts.backoff == nil {
		b.opts.backoff = DefaultBackoff
	}
	return b
}

// Batcher accumulates puts and writes them with BatchWriteItem.
type Batcher struct {
	c    *Client
	opts batchOpts

	pending map[string][]types.WriteRequest
	keys    map[string]struct{}
	retries int
}

// Put adds an object to the batch. Returns an error if the table is unknown,
// the object has no complete primary key, or an object with the same key is
// already pending.
func (b *Batcher) Put(tableName string, obj record.Record) error {
	def, err := b.c.table(tableName)
	if err != nil {
		return err
	}
	item, err := record.ToItem(obj)
	if err != nil {
		return fmt.Errorf("marshal %s object: %w", tableName, err)
	}
	pk, err := def.ExtractPrimaryKey(item)
	if err != nil {
		return fmt.Errorf("%s object: %w", tableName, err)
	}
	id := fmt.Sprintf("%s\x00%v\x00%v", tableName, pk.Values.PartitionKey, pk.Values.SortKey)
	if _, dup := b.keys[id]; dup {
		return fmt.Errorf("duplicate action for table %s", tableName)
	}
	b.keys[id] = struct{}{}
	b.pending[tableName] = append(b.pending[tableName], types.WriteRequest{
		PutRequest: &types.PutRequest{Item: item},
	})
	return nil
}

// Exec attempts to write all pending items once, in chunks of 25 (no retries).
// Returns ExecResult with any unprocessed items.
func (b *Batcher) Exec(ctx context.Context) (ExecResult, error) {
	if len(b.pending) == 0 {
		return ExecResult{Retries: b.retries}, nil
	}

	unprocessed := make(map[string][]types.WriteRequest)
	for _, chunk := range chunkRequests(b.pending, maxBatchWrite) {
		res, err := b.c.awsddb.BatchWriteItem(ctx, &dynamodbv2.BatchWriteItemInput{
			RequestItems: chunk,
		})
		if err != nil {
			return ExecResult{
				Unprocessed: b.pending,
				Retries:     b.retries,
			}, fmt.Errorf("batch write failed: %w", err)
		}
		for tableName, reqs := range res.UnprocessedItems {
			unprocessed[tableName] = append(unprocessed[tableName], reqs...)
		}
	}

	b.pending = unprocessed
	b.retries++
	b.c.logger.DebugContext(ctx, "batch write", "retries", b.retries, "unprocessed", countRequests(unprocessed))

	return ExecResult{
		Unprocessed: b.pending,
		Retries:     b.retries,
	}, nil
}

// ExecAndRetry writes all pending items, retrying until complete or limits exceeded.
// At least one of [WithMaxRetries] or [WithTimeout] must be configured.
func (b *Batcher) ExecAndRetry(ctx context.Context) error {
	if b.opts.maxRetries == 0 && b.opts.timeout == 0 {
		return fmt.Errorf("ExecAndRetry requires WithMaxRetries or WithTimeout to be configured")
	}
	if b.opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.opts.timeout)
		defer cancel()
	}
	for {
		res, err := b.Exec(ctx)
		if err != nil {
			return err
		}
		if res.Done() {
			return nil
		}
		if b.opts.maxRetries > 0 && res.Retries >= b.opts.maxRetries {
			return fmt.Errorf("max retries (%d) exceeded: %d items unprocessed", b.opts.maxRetries, countRequests(b.pending))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(b.opts.backoff(res.Retries)):
		}
	}
}

// chunkRequests splits the pending requests into BatchWriteItem-sized inputs.
func chunkRequests(pending map[string][]types.WriteRequest, size int) []map[string][]types.WriteRequest {
	var chunks []map[string][]types.WriteRequest
	cur := make(map[string][]types.WriteRequest)
	n := 0
	for tableName, reqs := range pending {
		for _, req := range reqs {
			if n == size {
				chunks = append(chunks, cur)
				cur = make(map[string][]types.WriteRequest)
				n = 0
			}
			cur[tableName] = append(cur[tableName], req)
			n++
		}
	}
	if n > 0 {
		chunks = append(chunks, cur)
	}
	return chunks
}

func countRequests(m map[string][]types.WriteRequest) int {
	var n int
	for _, reqs := range m {
		n += len(reqs)
	}
	return n
}

// ExecResult contains the result of a Write operation.
type ExecResult struct {
	Unprocessed map[string][]types.WriteRequest
	Retries     int
}

// Done returns true if all items were successfully processed.
func (r ExecResult) Done() bool {
	return len(r.Unprocessed) == 0
}

type BatchOption func(*batchOpts)

// BackoffFunc returns the duration to wait before retry attempt n.
type BackoffFunc func(attempt int) time.Duration

// WithMaxRetries sets the maximum number of retry attempts for [Batcher.ExecAndRetry].
func WithMaxRetries(n int) BatchOption {
	return func(o *batchOpts) {
		o.maxRetries = n
	}
}

// WithTimeout sets a timeout for [Batcher.ExecAndRetry].
func WithTimeout(d time.Duration) BatchOption {
	return func(o *batchOpts) {
		o.timeout = d
	}
}

// WithCustomBackoff sets a custom backoff function for [Batcher.ExecAndRetry].
func WithCustomBackoff(fn BackoffFunc) BatchOption {
	return func(o *batchOpts) {
		o.backoff = fn
	}
}

// ExponentialBackoff returns a capped exponential backoff with full jitter.
// Wait time is: rand(0, min(cap, base * multiplier^attempt))
// https://aws.amazon.com/blogs/architecture/exponential-backoff-and-jitter/
func ExponentialBackoff(base time.Duration, multiplier float64, cap time.Duration) BackoffFunc {
	return func(attempt int) time.Duration {
		factor := 1.0
		for i := 0; i < attempt; i++ {
			factor *= multiplier
		}
		backoff := time.Duration(float64(base) * factor)
		if backoff > cap {
			backoff = cap
		}
		if backoff <= 0 {
			return 0
		}
		return time.Duration(rand.Int64N(int64(backoff)))
	}
}

// DefaultBackoff is [ExponentialBackoff] with 50ms base, 2x multiplier, 5s cap.
var DefaultBackoff = ExponentialBackoff(50*time.Millisecond, 2.0, 5*time.Second)

type batchOpts struct {
	maxRetries int
	timeout    time.Duration
	backoff    BackoffFunc
}
