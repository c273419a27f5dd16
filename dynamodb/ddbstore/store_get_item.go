package ddbstore

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/dgraph-io/badger/v4"
)

// GetItem retrieves a single item by its primary key.
// Like DynamoDB, a missing item yields an output without Item rather than an error.
func (s *Store) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if params == nil {
		return nil, fmt.Errorf("params is required")
	}
	if params.Key == nil {
		return nil, fmt.Errorf("key is required")
	}

	t, err := s.getTable(params.TableName)
	if err != nil {
		return nil, err
	}

	key, err := t.base.encodeItemKey(params.Key)
	if err != nil {
		return nil, fmt.Errorf("encode key: %w", err)
	}

	var found map[string]types.AttributeValue
	err = s.db.View(func(txn *badger.Txn) error {
		found, err = readItem(txn, key)
		return err
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return &dynamodb.GetItemOutput{}, nil
	}

	projected, err := project(params.ProjectionExpression, params.ExpressionAttributeNames, []document{found})
	if err != nil {
		return nil, err
	}
	return &dynamodb.GetItemOutput{Item: projected[0]}, nil
}
