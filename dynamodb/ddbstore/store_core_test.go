package ddbstore

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/acksell/ddbrows/dynamodb/table"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test table definitions
var serviceTable = table.TableDefinition{
	Name: "service",
	KeyDefinitions: table.PrimaryKeyDefinition{
		PartitionKey: table.KeyDef{Name: "id", Kind: table.KeyKindN},
	},
}

var computeNodeTable = table.TableDefinition{
	Name: "compute_node",
	KeyDefinitions: table.PrimaryKeyDefinition{
		PartitionKey: table.KeyDef{Name: "id", Kind: table.KeyKindN},
	},
	GSIs: []table.GSIDefinition{
		{
			Name: "by_service",
			KeyDefinitions: table.PrimaryKeyDefinition{
				PartitionKey: table.KeyDef{Name: "service_id", Kind: table.KeyKindN},
			},
		},
		{
			Name: "by_host",
			KeyDefinitions: table.PrimaryKeyDefinition{
				PartitionKey: table.KeyDef{Name: "host", Kind: table.KeyKindS},
				SortKey:      table.KeyDef{Name: "vcpus", Kind: table.KeyKindN},
			},
		},
	},
}

var instanceActionTable = table.TableDefinition{
	Name: "instance_action",
	KeyDefinitions: table.PrimaryKeyDefinition{
		PartitionKey: table.KeyDef{Name: "instance_uuid", Kind: table.KeyKindS},
		SortKey:      table.KeyDef{Name: "seq", Kind: table.KeyKindN},
	},
}

func newTestStore(t *testing.T, defs ...table.TableDefinition) *Store {
	store, err := New(StoreOptions{InMemory: true}, defs...)
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

func computeNode(id, serviceID int, host string, vcpus int) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"id":         &types.AttributeValueMemberN{Value: fmt.Sprint(id)},
		"service_id": &types.AttributeValueMemberN{Value: fmt.Sprint(serviceID)},
		"host":       &types.AttributeValueMemberS{Value: host},
		"vcpus":      &types.AttributeValueMemberN{Value: fmt.Sprint(vcpus)},
	}
}

func putAll(t *testing.T, store *Store, tableName string, items ...map[string]types.AttributeValue) {
	t.Helper()
	for _, item := range items {
		_, err := store.PutItem(context.Background(), &dynamodb.PutItemInput{
			TableName: &tableName,
			Item:      item,
		})
		require.NoError(t, err)
	}
}

func ids(items []map[string]types.AttributeValue) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item["id"].(*types.AttributeValueMemberN).Value
	}
	return out
}

func TestNew(t *testing.T) {
	t.Run("duplicate table", func(t *testing.T) {
		_, err := New(StoreOptions{InMemory: true}, serviceTable, serviceTable)
		require.Error(t, err)
	})

	t.Run("tables sorted by name", func(t *testing.T) {
		store := newTestStore(t, serviceTable, computeNodeTable)
		tables := store.Tables()
		require.Len(t, tables, 2)
		assert.Equal(t, "compute_node", tables[0].Name)
		assert.Equal(t, "service", tables[1].Name)
	})

	t.Run("unknown table", func(t *testing.T) {
		store := newTestStore(t, serviceTable)
		_, err := store.Scan(context.Background(), &dynamodb.ScanInput{TableName: ptrStr("volume")})
		var notFound *types.ResourceNotFoundException
		require.True(t, errors.As(err, &notFound))
	})

	t.Run("unknown index", func(t *testing.T) {
		store := newTestStore(t, computeNodeTable)
		_, err := store.Scan(context.Background(), &dynamodb.ScanInput{
			TableName: &computeNodeTable.Name,
			IndexName: ptrStr("by_zone"),
		})
		var notFound *types.ResourceNotFoundException
		require.True(t, errors.As(err, &notFound))
	})
}
