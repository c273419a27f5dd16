// Package record abstracts over the shapes a stored object can take once it is
// loaded: plain maps decoded from DynamoDB items and Go structs.
package record

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Record is the capability every raw object exposes to the row pipeline.
type Record interface {
	Has(key string) bool
	Get(key string) (any, bool)
	Set(key string, value any)
}

// GetOr returns the value stored under key, or def when the record does not have it.
func GetOr(r Record, key string, def any) any {
	if r == nil {
		return def
	}
	if v, ok := r.Get(key); ok {
		return v
	}
	return def
}

// Map is a mapping-style record.
type Map map[string]any

func (m Map) Has(key string) bool {
	_, ok := m[key]
	return ok
}

func (m Map) Get(key string) (any, bool) {
	v, ok := m[key]
	return v, ok
}

func (m Map) Set(key string, value any) {
	m[key] = value
}

// Struct is an attribute-style record backed by a pointer to a struct.
// Fields are addressed by their dynamodbav tag name, or their Go name when untagged.
type Struct struct {
	v      reflect.Value
	fields map[string]int
}

// NewStruct wraps ptr, which must be a non-nil pointer to a struct.
func NewStruct(ptr any) (*Struct, error) {
	v := reflect.ValueOf(ptr)
	if v.Kind() != reflect.Pointer || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return nil, fmt.Errorf("record: expected non-nil pointer to struct, got %T", ptr)
	}
	return &Struct{v: v.Elem(), fields: fieldIndex(v.Elem().Type())}, nil
}

func (s *Struct) Has(key string) bool {
	_, ok := s.fields[key]
	return ok
}

func (s *Struct) Get(key string) (any, bool) {
	i, ok := s.fields[key]
	if !ok {
		return nil, false
	}
	return s.v.Field(i).Interface(), true
}

// Set assigns value to the field addressed by key. Unknown keys and values
// that cannot be converted to the field type are ignored.
func (s *Struct) Set(key string, value any) {
	i, ok := s.fields[key]
	if !ok {
		return
	}
	f := s.v.Field(i)
	if value == nil {
		f.Set(reflect.Zero(f.Type()))
		return
	}
	rv := reflect.ValueOf(value)
	switch {
	case rv.Type().AssignableTo(f.Type()):
		f.Set(rv)
	case rv.Type().ConvertibleTo(f.Type()):
		f.Set(rv.Convert(f.Type()))
	}
}

// Interface returns the wrapped struct pointer.
func (s *Struct) Interface() any {
	return s.v.Addr().Interface()
}

var fieldCache sync.Map // reflect.Type -> map[string]int

func fieldIndex(t reflect.Type) map[string]int {
	if cached, ok := fieldCache.Load(t); ok {
		return cached.(map[string]int)
	}
	idx := make(map[string]int, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		name, ok := FieldName(t.Field(i))
		if ok {
			idx[name] = i
		}
	}
	fieldCache.Store(t, idx)
	return idx
}

// FieldName returns the attribute name of a struct field, following the
// dynamodbav tag conventions. ok is false for unexported or skipped fields.
func FieldName(f reflect.StructField) (name string, ok bool) {
	if !f.IsExported() {
		return "", false
	}
	tag := f.Tag.Get("dynamodbav")
	if tag == "-" {
		return "", false
	}
	if name, _, _ = strings.Cut(tag, ","); name != "" {
		return name, true
	}
	return f.Name, true
}

// FromItem decodes a DynamoDB item into a Map record.
func FromItem(item map[string]types.AttributeValue) (Map, error) {
	m := Map{}
	if err := attributevalue.UnmarshalMap(item, &m); err != nil {
		return nil, fmt.Errorf("unmarshal item: %w", err)
	}
	return m, nil
}

// ToItem encodes a record into a DynamoDB item. Records other than Map and
// *Struct are not supported.
func ToItem(r Record) (map[string]types.AttributeValue, error) {
	var v any
	switch t := r.(type) {
	case Map:
		v = map[string]any(t)
	case *Struct:
		v = t.Interface()
	default:
		return nil, fmt.Errorf("record: cannot encode %T", r)
	}
	item, err := attributevalue.MarshalMap(v)
	if err != nil {
		return nil, fmt.Errorf("marshal record: %w", err)
	}
	return item, nil
}
