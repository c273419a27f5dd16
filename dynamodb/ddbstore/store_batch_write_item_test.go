package ddbstore

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_BatchWriteItem(t *testing.T) {
	store := newTestStore(t, serviceTable, computeNodeTable)
	ctx := context.Background()

	out, err := store.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
		RequestItems: map[string][]types.WriteRequest{
			serviceTable.Name: {
				{PutRequest: &types.PutRequest{Item: map[string]types.AttributeValue{
					"id": &types.AttributeValueMemberN{Value: "10"},
				}}},
			},
			computeNodeTable.Name: {
				{PutRequest: &types.PutRequest{Item: computeNode(1, 10, "host-a", 4)}},
				{PutRequest: &types.PutRequest{Item: computeNode(2, 10, "host-b", 4)}},
				{PutRequest: &types.PutRequest{Item: map[string]types.AttributeValue{
					"host": &types.AttributeValueMemberS{Value: "keyless"},
				}}},
			},
		},
	})
	require.NoError(t, err)
	require.Len(t, out.UnprocessedItems[computeNodeTable.Name], 1)

	byService := func() []string {
		res, err := store.Query(ctx, &dynamodb.QueryInput{
			TableName:              &computeNodeTable.Name,
			IndexName:              ptrStr("by_service"),
			KeyConditionExpression: ptrStr("service_id = :s"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":s": &types.AttributeValueMemberN{Value: "10"},
			},
		})
		require.NoError(t, err)
		return ids(res.Items)
	}
	assert.Equal(t, []string{"1", "2"}, byService())

	_, err = store.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
		RequestItems: map[string][]types.WriteRequest{
			computeNodeTable.Name: {
				{DeleteRequest: &types.DeleteRequest{Key: map[string]types.AttributeValue{
					"id": &types.AttributeValueMemberN{Value: "1"},
				}}},
				{DeleteRequest: &types.DeleteRequest{Key: map[string]types.AttributeValue{
					"id": &types.AttributeValueMemberN{Value: "404"},
				}}},
			},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"2"}, byService())

	t.Run("unknown table fails the batch", func(t *testing.T) {
		_, err := store.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{
				"volume": {{PutRequest: &types.PutRequest{Item: map[string]types.AttributeValue{
					"id": &types.AttributeValueMemberN{Value: "1"},
				}}}},
			},
		})
		require.Error(t, err)
	})
}
