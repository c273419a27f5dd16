package table

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var usersTable = TableDefinition{
	Name: "users",
	KeyDefinitions: PrimaryKeyDefinition{
		PartitionKey: KeyDef{Name: "id", Kind: KeyKindN},
	},
	GSIs: []GSIDefinition{
		{
			Name: "by-email",
			KeyDefinitions: PrimaryKeyDefinition{
				PartitionKey: KeyDef{Name: "email", Kind: KeyKindS},
			},
		},
	},
}

func TestGSIFor(t *testing.T) {
	gsi, ok := usersTable.GSIFor("email")
	require.True(t, ok)
	assert.Equal(t, "by-email", gsi.Name)

	_, ok = usersTable.GSIFor("name")
	assert.False(t, ok)

	_, ok = usersTable.GSI("by-email")
	assert.True(t, ok)
}

func TestKeyDefCoerce(t *testing.T) {
	num := KeyDef{Name: "id", Kind: KeyKindN}
	str := KeyDef{Name: "email", Kind: KeyKindS}

	t.Run("int to number", func(t *testing.T) {
		v, err := num.Coerce(42)
		require.NoError(t, err)
		assert.Equal(t, "42", v)
	})
	t.Run("float to number", func(t *testing.T) {
		v, err := num.Coerce(1.5)
		require.NoError(t, err)
		assert.Equal(t, "1.5", v)
	})
	t.Run("numeric string", func(t *testing.T) {
		v, err := num.Coerce("7")
		require.NoError(t, err)
		assert.Equal(t, "7", v)
	})
	t.Run("non numeric string", func(t *testing.T) {
		_, err := num.Coerce("seven")
		assert.Error(t, err)
	})
	t.Run("int to string", func(t *testing.T) {
		v, err := str.Coerce(3)
		require.NoError(t, err)
		assert.Equal(t, "3", v)
	})
	t.Run("attribute value", func(t *testing.T) {
		av, err := num.AttributeValue(int64(9))
		require.NoError(t, err)
		assert.Equal(t, &types.AttributeValueMemberN{Value: "9"}, av)
	})
}

func TestExtractPrimaryKey(t *testing.T) {
	doc := map[string]types.AttributeValue{
		"id":    &types.AttributeValueMemberN{Value: "1"},
		"email": &types.AttributeValueMemberS{Value: "a@b.c"},
	}
	pk, err := usersTable.ExtractPrimaryKey(doc)
	require.NoError(t, err)
	assert.Equal(t, "1", pk.Values.PartitionKey)

	ddb, err := pk.DDB()
	require.NoError(t, err)
	assert.Equal(t, map[string]types.AttributeValue{"id": &types.AttributeValueMemberN{Value: "1"}}, ddb)

	gsi, _ := usersTable.GSIFor("email")
	gpk, err := gsi.ExtractPrimaryKey(doc)
	require.NoError(t, err)
	assert.Equal(t, "a@b.c", gpk.Values.PartitionKey)

	_, err = usersTable.ExtractPrimaryKey(map[string]types.AttributeValue{
		"id": &types.AttributeValueMemberS{Value: "1"},
	})
	assert.Error(t, err, "kind mismatch")

	_, err = usersTable.ExtractPrimaryKey(map[string]types.AttributeValue{})
	assert.Error(t, err)
}
