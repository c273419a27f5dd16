package ddbstore

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/dgraph-io/badger/v4"
)

// PutItem creates or replaces an item.
func (s *Store) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if params == nil {
		return nil, fmt.Errorf("params is required")
	}
	if params.Item == nil {
		return nil, fmt.Errorf("item is required")
	}

	tabl, err := s.getTable(params.TableName)
	if err != nil {
		return nil, err
	}

	var cond condition
	if params.ConditionExpression != nil {
		cond, err = parseCondition(*params.ConditionExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues)
		if err != nil {
			return nil, fmt.Errorf("parse condition: %w", err)
		}
	}

	var oldItem map[string]types.AttributeValue

	err = s.db.Update(func(txn *badger.Txn) error {
		if cond != nil {
			key, err := tabl.base.encodeItemKey(params.Item)
			if err != nil {
				return fmt.Errorf("encode key: %w", err)
			}
			existing, err := readItem(txn, key)
			if err != nil {
				return err
			}
			if existing == nil {
				existing = map[string]types.AttributeValue{}
			}
			valid, err := cond.eval(existing)
			if err != nil {
				return fmt.Errorf("evaluate condition: %w", err)
			}
			if !valid {
				return &types.ConditionalCheckFailedException{
					Message: ptrStr("The conditional request failed"),
				}
			}
		}

		oldItem, err = tabl.putTxn(txn, params.Item)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.DebugContext(ctx, "put item", "table", tabl.definition.Name, "replaced", oldItem != nil)

	out := &dynamodb.PutItemOutput{}
	if params.ReturnValues == types.ReturnValueAllOld && oldItem != nil {
		out.Attributes = oldItem
	}
	return out, nil
}
