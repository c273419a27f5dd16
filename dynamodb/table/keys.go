package table

import (
	"fmt"
	"math"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type PrimaryKeyDefinition struct {
	PartitionKey KeyDef
	SortKey      KeyDef // Name is empty for tables without a sort key.
}

type KeyDef struct {
	Name string
	Kind KeyKind
}

type KeyKind string

const (
	KeyKindS KeyKind = "S"
	KeyKindN KeyKind = "N"
	KeyKindB KeyKind = "B"
)

// Coerce converts a caller supplied value into the Go representation the key kind
// is stored with: string for S, a decimal string for N and []byte for B.
// Hints carry loosely typed values (an int id, a string uuid), so lookups go through here
// before being turned into key conditions.
func (k KeyDef) Coerce(v any) (any, error) {
	switch k.Kind {
	case KeyKindS:
		switch t := v.(type) {
		case string:
			return t, nil
		case []byte:
			return string(t), nil
		case fmt.Stringer:
			return t.String(), nil
		}
		return fmt.Sprint(v), nil
	case KeyKindN:
		return numberString(v)
	case KeyKindB:
		switch t := v.(type) {
		case []byte:
			return t, nil
		case string:
			return []byte(t), nil
		}
		return nil, fmt.Errorf("key %q: cannot use %T as binary key", k.Name, v)
	default:
		return nil, fmt.Errorf("key %q: unsupported key kind %q", k.Name, k.Kind)
	}
}

// AttributeValue converts v into a typed attribute value for this key.
func (k KeyDef) AttributeValue(v any) (types.AttributeValue, error) {
	c, err := k.Coerce(v)
	if err != nil {
		return nil, err
	}
	switch k.Kind {
	case KeyKindS:
		return &types.AttributeValueMemberS{Value: c.(string)}, nil
	case KeyKindN:
		return &types.AttributeValueMemberN{Value: c.(string)}, nil
	default:
		return &types.AttributeValueMemberB{Value: c.([]byte)}, nil
	}
}

func numberString(v any) (string, error) {
	switch t := v.(type) {
	case string:
		if _, err := strconv.ParseFloat(t, 64); err != nil {
			return "", fmt.Errorf("parse number %q: %w", t, err)
		}
		return t, nil
	case int:
		return strconv.Itoa(t), nil
	case int8, int16, int32, int64:
		return fmt.Sprint(t), nil
	case uint, uint8, uint16, uint32, uint64:
		return fmt.Sprint(t), nil
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32), nil
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return "", fmt.Errorf("number %v is not representable", t)
		}
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	}
	return "", fmt.Errorf("expected number, got %T", v)
}

// Type safety is ensured by using type constrained constructors generated based on the Table's KeyDefinition.
type PrimaryKeyValues struct {
	PartitionKey any
	SortKey      any
}

type PrimaryKey struct {
	Definition PrimaryKeyDefinition
	Values     PrimaryKeyValues
}

// DDB renders the key as a DynamoDB key map.
func (k PrimaryKey) DDB() (map[string]types.AttributeValue, error) {
	pk, err := attributevalue.Marshal(k.Values.PartitionKey)
	if err != nil {
		return nil, fmt.Errorf("marshal partition key of type %T with value %v: %w", k.Values.PartitionKey, k.Values.PartitionKey, err)
	}
	if k.Definition.PartitionKey.Kind == KeyKindN {
		// numbers are kept as strings, attributevalue would marshal them as S
		if s, ok := k.Values.PartitionKey.(string); ok {
			pk = &types.AttributeValueMemberN{Value: s}
		}
	}
	if err := attributeMatchesDefinition(k.Definition.PartitionKey.Kind, pk); err != nil {
		return nil, fmt.Errorf("partition key kind does not match dynamo value: %w", err)
	}
	if k.Definition.SortKey.Name == "" {
		return map[string]types.AttributeValue{
			k.Definition.PartitionKey.Name: pk,
		}, nil
	}
	if k.Values.SortKey == nil {
		return nil, fmt.Errorf("sort key %q is required but got nil", k.Definition.SortKey.Name)
	}
	sk, err := attributevalue.Marshal(k.Values.SortKey)
	if err != nil {
		return nil, fmt.Errorf("marshal sort key of type %T with value %v: %w", k.Values.SortKey, k.Values.SortKey, err)
	}
	if k.Definition.SortKey.Kind == KeyKindN {
		if s, ok := k.Values.SortKey.(string); ok {
			sk = &types.AttributeValueMemberN{Value: s}
		}
	}
	if err := attributeMatchesDefinition(k.Definition.SortKey.Kind, sk); err != nil {
		return nil, fmt.Errorf("sort key %q kind does not match dynamo value: %w", k.Definition.SortKey.Name, err)
	}

	return map[string]types.AttributeValue{
		k.Definition.PartitionKey.Name: pk,
		k.Definition.SortKey.Name:      sk,
	}, nil
}

func attributeMatchesDefinition(want KeyKind, v types.AttributeValue) error {
	got := kindOf(v)
	if got == "" {
		return fmt.Errorf("unexpected key attribute type %T", v)
	}
	if got != want {
		return fmt.Errorf("got KeyKind %q want %q", got, want)
	}
	return nil
}
