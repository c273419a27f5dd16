package ddbstore

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Scan retrieves all items in a table or index, optionally with a filter.
func (s *Store) Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	if params == nil {
		return nil, fmt.Errorf("params is required")
	}

	enc, err := s.getKeyEncoder(params.TableName, params.IndexName)
	if err != nil {
		return nil, err
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
		prefix:   enc.prefix(),
		startKey: params.ExclusiveStartKey,
		limit:    limit,
		filter:   filter,
	})
	if err != nil {
		return nil, err
	}

	out := &dynamodb.ScanOutput{
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
