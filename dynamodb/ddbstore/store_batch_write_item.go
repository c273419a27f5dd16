package ddbstore

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/dgraph-io/badger/v4"
)

// BatchWriteItem performs multiple put/delete operations in one transaction.
// Requests whose key cannot be extracted are returned as unprocessed.
func (s *Store) BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	if params == nil {
		return nil, fmt.Errorf("params is required")
	}
	if params.RequestItems == nil {
		return nil, fmt.Errorf("request items is required")
	}

	unprocessed := make(map[string][]types.WriteRequest)
	written := 0

	err := s.db.Update(func(txn *badger.Txn) error {
		for tableName, writeRequests := range params.RequestItems {
			tabl, err := s.getTable(&tableName)
			if err != nil {
				return err
			}

			for _, req := range writeRequests {
				switch {
				case req.PutRequest != nil:
					if _, err := tabl.putTxn(txn, req.PutRequest.Item); err != nil {
						s.logger.WarnContext(ctx, "batch put rejected", "table", tableName, "error", err)
						unprocessed[tableName] = append(unprocessed[tableName], req)
						continue
					}
				case req.DeleteRequest != nil:
					if _, err := tabl.deleteTxn(txn, req.DeleteRequest.Key); err != nil {
						s.logger.WarnContext(ctx, "batch delete rejected", "table", tableName, "error", err)
						unprocessed[tableName] = append(unprocessed[tableName], req)
						continue
					}
				default:
					return fmt.Errorf("empty write request")
				}
				written++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.DebugContext(ctx, "batch write", "written", written, "unprocessed", len(unprocessed))

	return &dynamodb.BatchWriteItemOutput{
		UnprocessedItems: unprocessed,
	}, nil
}
