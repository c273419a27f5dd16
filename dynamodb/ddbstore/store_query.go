package ddbstore

import (
	"context"
	"fmt"

	"github.com/acksell/ddbrows/dynamodb/table"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Query retrieves items matching a key condition expression.
// The key condition must pin the partition key with an equality; any sort key
// condition is evaluated per item within that partition.
func (s *Store) Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	if params == nil {
		return nil, fmt.Errorf("params is required")
	}
	if params.KeyConditionExpression == nil {
		return nil, fmt.Errorf("key condition expression is required")
	}

	enc, err := s.getKeyEncoder(params.TableName, params.IndexName)
	if err != nil {
		return nil, err
	}

	keyCond, err := parseCondition(*params.KeyConditionExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues)
	if err != nil {
		return nil, fmt.Errorf("parse key condition: %w", err)
	}
	pkAV, ok := partitionValue(keyCond, enc.keyDefs.PartitionKey.Name)
	if !ok {
		return nil, fmt.Errorf("key condition must include %s = :value", enc.keyDefs.PartitionKey.Name)
	}
	pkValue, err := table.KeyValue(pkAV)
	if err != nil {
		return nil, fmt.Errorf("partition key value: %w", err)
	}
	prefix, err := enc.partitionPrefix(pkValue)
	if err != nil {
		return nil, fmt.Errorf("encode partition key prefix: %w", err)
	}

	var filter condition
	if params.FilterExpression != nil {
		filter, err = parseCondition(*params.FilterExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues)
		if err != nil {
			return nil, fmt.Errorf("parse filter: %w", err)
		}
	}

	limit := 0
	if params.Limit != nil {
		limit = int(*params.Limit)
	}

	res, err := s.iterate(ctx, iteration{
		enc:      enc,
		prefix:   prefix,
		reverse:  params.ScanIndexForward != nil && !*params.ScanIndexForward,
		startKey: params.ExclusiveStartKey,
		limit:    limit,
		keyCond:  keyCond,
		filter:   filter,
	})
	if err != nil {
		return nil, err
	}

	out := &dynamodb.QueryOutput{
		Count:            int32(len(res.items)),
		ScannedCount:     res.scanned,
		LastEvaluatedKey: res.lastKey,
	}
	if params.Select == types.SelectCount {
		return out, nil
	}
	out.Items, err = project(params.ProjectionExpression, params.ExpressionAttributeNames, res.items)
	if err != nil {
		return nil, err
	}
	return out, nil
}
