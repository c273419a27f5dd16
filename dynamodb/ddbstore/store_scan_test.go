package ddbstore

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_Scan(t *testing.T) {
	store := newTestStore(t, serviceTable, computeNodeTable)
	ctx := context.Background()
	putAll(t, store, computeNodeTable.Name,
		computeNode(3, 10, "host-c", 4),
		computeNode(-1, 10, "host-a", 2),
		computeNode(12, 20, "host-b", 16),
		computeNode(2, 20, "host-b", 8),
	)
	putAll(t, store, serviceTable.Name, map[string]types.AttributeValue{
		"id": &types.AttributeValueMemberN{Value: "10"},
	})

	t.Run("scan stays inside its table, numeric key order", func(t *testing.T) {
		out, err := store.Scan(ctx, &dynamodb.ScanInput{
			TableName: &computeNodeTable.Name,
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"-1", "2", "3", "12"}, ids(out.Items))
	})

	t.Run("filter", func(t *testing.T) {
		out, err := store.Scan(ctx, &dynamodb.ScanInput{
			TableName:        &computeNodeTable.Name,
			FilterExpression: ptrStr("vcpus >= :min AND NOT (host = :h)"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":min": &types.AttributeValueMemberN{Value: "4"},
				":h":   &types.AttributeValueMemberS{Value: "host-c"},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"2", "12"}, ids(out.Items))
		assert.Equal(t, int32(4), out.ScannedCount)
	})

	t.Run("or binds looser than and", func(t *testing.T) {
		out, err := store.Scan(ctx, &dynamodb.ScanInput{
			TableName:        &computeNodeTable.Name,
			FilterExpression: ptrStr("host = :a OR host = :b AND vcpus > :v"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":a": &types.AttributeValueMemberS{Value: "host-a"},
				":b": &types.AttributeValueMemberS{Value: "host-b"},
				":v": &types.AttributeValueMemberN{Value: "10"},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"-1", "12"}, ids(out.Items))
	})

	t.Run("index scan with pagination", func(t *testing.T) {
		var all []string
		input := &dynamodb.ScanInput{
			TableName: &computeNodeTable.Name,
			IndexName: ptrStr("by_service"),
			Limit:     aws.Int32(3),
		}
		for {
			out, err := store.Scan(ctx, input)
			require.NoError(t, err)
			all = append(all, ids(out.Items)...)
			if out.LastEvaluatedKey == nil {
				break
			}
			input.ExclusiveStartKey = out.LastEvaluatedKey
		}
		assert.Equal(t, []string{"-1", "3", "2", "12"}, all)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := store.Scan(cctx, &dynamodb.ScanInput{
			TableName: &computeNodeTable.Name,
		})
		require.ErrorIs(t, err, context.Canceled)
	})
}
