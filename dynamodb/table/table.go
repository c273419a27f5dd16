package table

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// TableDefinition describes the key layout of a table in the object store.
// Every model's objects live in their own table, named after the model.
type TableDefinition struct {
	Name           string
	KeyDefinitions PrimaryKeyDefinition
	GSIs           []GSIDefinition
}

// GSIDefinition represents a Global Secondary Index definition.
type GSIDefinition struct {
	Name           string
	KeyDefinitions PrimaryKeyDefinition
}

// ExtractPrimaryKey extracts the GSI key values from a document.
func (g GSIDefinition) ExtractPrimaryKey(doc map[string]types.AttributeValue) (PrimaryKey, error) {
	return g.KeyDefinitions.ExtractPrimaryKey(doc)
}

func (t TableDefinition) ExtractPrimaryKey(doc map[string]types.AttributeValue) (PrimaryKey, error) {
	return t.KeyDefinitions.ExtractPrimaryKey(doc)
}

// GSIFor returns the first GSI partitioned on the given attribute.
// Hint lookups on secondary-index attributes are served by such a GSI.
func (t TableDefinition) GSIFor(attribute string) (GSIDefinition, bool) {
	for _, gsi := range t.GSIs {
		if gsi.KeyDefinitions.PartitionKey.Name == attribute {
			return gsi, true
		}
	}
	return GSIDefinition{}, false
}

// GSI returns the GSI with the given name.
func (t TableDefinition) GSI(name string) (GSIDefinition, bool) {
	for _, gsi := range t.GSIs {
		if gsi.Name == name {
			return gsi, true
		}
	}
	return GSIDefinition{}, false
}

func (k PrimaryKeyDefinition) ExtractPrimaryKey(doc map[string]types.AttributeValue) (PrimaryKey, error) {
	part, ok := doc[k.PartitionKey.Name]
	if !ok {
		return PrimaryKey{}, fmt.Errorf("partition key %q not found", k.PartitionKey.Name)
	}
	if err := attributeMatchesDefinition(k.PartitionKey.Kind, part); err != nil {
		return PrimaryKey{}, fmt.Errorf("document key %q kind does not match definition: %w", k.PartitionKey.Name, err)
	}
	pk := PrimaryKey{
		Definition: k,
		Values: PrimaryKeyValues{
			PartitionKey: keyValueFromAV(part),
		},
	}
	if k.SortKey.Name == "" {
		return pk, nil
	}
	sort, ok := doc[k.SortKey.Name]
	if !ok {
		return PrimaryKey{}, fmt.Errorf("sort key %q not found on document", k.SortKey.Name)
	}
	if err := attributeMatchesDefinition(k.SortKey.Kind, sort); err != nil {
		return PrimaryKey{}, fmt.Errorf("sort key %q kind does not match definition: %w", k.SortKey.Name, err)
	}
	pk.Values.SortKey = keyValueFromAV(sort)
	return pk, nil
}

// KeyValue returns the raw key value held by a S, N or B attribute.
// Numbers are returned in their string form.
func KeyValue(av types.AttributeValue) (any, error) {
	if err := attributeMatchesDefinition(kindOf(av), av); err != nil {
		return nil, err
	}
	return keyValueFromAV(av), nil
}

func keyValueFromAV(av types.AttributeValue) any {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return v.Value
	case *types.AttributeValueMemberN:
		return v.Value
	case *types.AttributeValueMemberB:
		return v.Value
	default:
		panic(fmt.Sprintf("unsupported attribute value %T for dynamodb keys", v))
	}
}

func kindOf(av types.AttributeValue) KeyKind {
	switch av.(type) {
	case *types.AttributeValueMemberS:
		return KeyKindS
	case *types.AttributeValueMemberN:
		return KeyKindN
	case *types.AttributeValueMemberB:
		return KeyKindB
	}
	return ""
}
