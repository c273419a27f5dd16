package ddbsdk

import (
	"context"
	"fmt"

	"github.com/acksell/ddbrows/dynamodb/table"

	expression2 "github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	dynamodbv2 "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type Item = map[string]types.AttributeValue

// querier pages through a Query, or a Scan when no key condition is set.
type querier struct {
	c *Client

	table     table.TableDefinition
	indexName *string
	keyCond   *expression2.KeyConditionBuilder
	filter    expression2.ConditionBuilder

	//internal, not exposed to user
	lastCursor map[string]types.AttributeValue
	done       bool
}

type QueryResult struct {
	Items  []Item
	IsDone bool
}

func (c *Client) newQuerier(def table.TableDefinition, indexName string, keyCond *expression2.KeyConditionBuilder, filter expression2.ConditionBuilder) *querier {
	q := &querier{
		c:       c,
		table:   def,
		keyCond: keyCond,
		filter:  filter,
	}
	if indexName != "" {
		q.indexName = &indexName
	}
	return q
}

func (q *querier) expression() (*expression2.Expression, error) {
	if q.keyCond == nil && !q.filter.IsSet() {
		return nil, nil
	}
	b := expression2.NewBuilder()
	if q.keyCond != nil {
		b = b.WithKeyCondition(*q.keyCond)
	}
	if q.filter.IsSet() {
		b = b.WithFilter(q.filter)
	}
	expr, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build expression: %w", err)
	}
	return &expr, nil
}

func (q *querier) consistentRead() *bool {
	// GSIs do not support consistent reads.
	if q.indexName != nil {
		return nil
	}
	return ptr(!q.c.opts.eventuallyConsistent)
}

func (q *querier) Next(ctx context.Context) (*QueryResult, error) {
	if q.done {
		return &QueryResult{IsDone: true}, nil
	}
	expr, err := q.expression()
	if err != nil {
		return nil, err
	}

	var limit *int32
	if q.c.opts.pageSize > 0 {
		limit = ptr(q.c.opts.pageSize)
	}

	var items []Item
	var cursor map[string]types.AttributeValue
	if q.keyCond != nil {
		res, err := q.c.awsddb.Query(ctx, &dynamodbv2.QueryInput{
			TableName:                 &q.table.Name,
			IndexName:                 q.indexName,
			KeyConditionExpression:    expr.KeyCondition(),
			FilterExpression:          expr.Filter(),
			ExpressionAttributeValues: expr.Values(),
			ExpressionAttributeNames:  expr.Names(),
			ConsistentRead:            q.consistentRead(),
			Limit:                     limit,
			ExclusiveStartKey:         q.lastCursor,
		})
		if err != nil {
			return nil, fmt.Errorf("query failed: %w", err)
		}
		items, cursor = res.Items, res.LastEvaluatedKey
	} else {
		input := &dynamodbv2.ScanInput{
			TableName:         &q.table.Name,
			IndexName:         q.indexName,
			ConsistentRead:    q.consistentRead(),
			Limit:             limit,
			ExclusiveStartKey: q.lastCursor,
		}
		if expr != nil {
			input.FilterExpression = expr.Filter()
			input.ExpressionAttributeNames = expr.Names()
			input.ExpressionAttributeValues = expr.Values()
		}
		res, err := q.c.awsddb.Scan(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		items, cursor = res.Items, res.LastEvaluatedKey
	}

	q.lastCursor = cursor
	q.done = cursor == nil
	return &QueryResult{
		Items:  items,
		IsDone: q.done,
	}, nil
}

func (q *querier) QueryAll(ctx context.Context) (*QueryResult, error) {
	var allItems []Item
	for {
		res, err := q.Next(ctx)
		if err != nil {
			return nil, err
		}
		allItems = append(allItems, res.Items...)
		if res.IsDone {
			break
		}
	}
	return &QueryResult{
		Items:  allItems,
		IsDone: true,
	}, nil
}
