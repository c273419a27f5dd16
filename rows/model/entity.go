// Package model describes what a row request selects: the entities taking part,
// the columns requested from them and the index hints that narrow loading.
package model

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/acksell/ddbrows/rows/record"
)

// NoTable is the table name of entities that cannot be resolved.
const NoTable = "none"

// PrimaryKey is the attribute every table is keyed by.
const PrimaryKey = "id"

// ErrNoAttributes is returned by the introspection functions when an entity
// does not expose its attribute list through that path.
var ErrNoAttributes = errors.New("entity exposes no attributes")

// Entity is one of *Model, *TableDescriptor, *Alias or *Clauses.
// Entities are compared by pointer identity.
type Entity interface {
	fmt.Stringer
	entity()
}

// Model is a named entity stored in its own table.
type Model struct {
	Name             string
	Attributes       []string
	SecondaryIndexes []string
	// Prototype is an optional struct value the attribute list can be derived from.
	Prototype     any
	Relationships []Relationship
}

// Relationship declares that LocalField references RemoteTable.RemoteField.
type Relationship struct {
	LocalField  string `json:"localField"`
	RemoteTable string `json:"remoteTable"`
	RemoteField string `json:"remoteField"`
}

// TableDescriptor is an entity that only knows the table it reads from.
type TableDescriptor struct {
	Name    string
	Columns []string
}

// Alias maps an alternative name onto a model class.
type Alias struct {
	Name    string
	Class   *Model
	Columns []string
}

// Clauses is a composite entity. It resolves to its first resolvable clause.
type Clauses struct {
	Clauses []Entity
}

func (*Model) entity()           {}
func (*TableDescriptor) entity() {}
func (*Alias) entity()           {}
func (*Clauses) entity()         {}

func (m *Model) String() string           { return "model(" + m.Name + ")" }
func (t *TableDescriptor) String() string { return "table(" + t.Name + ")" }

func (a *Alias) String() string {
	if a.Class == nil {
		return "alias(" + a.Name + ")"
	}
	return "alias(" + a.Name + " -> " + a.Class.Name + ")"
}

func (c *Clauses) String() string {
	parts := make([]string, 0, len(c.Clauses))
	for _, e := range c.Clauses {
		if e == nil {
			parts = append(parts, "nil")
			continue
		}
		parts = append(parts, e.String())
	}
	return "clauses(" + strings.Join(parts, ", ") + ")"
}

// TableName resolves the table an entity reads from, or NoTable.
func TableName(e Entity) string {
	var name string
	switch t := e.(type) {
	case *Model:
		if t != nil {
			name = t.Name
		}
	case *TableDescriptor:
		if t != nil {
			name = t.Name
		}
	case *Alias:
		if t != nil && t.Class != nil {
			name = t.Class.Name
		}
	case *Clauses:
		if t != nil {
			for _, c := range t.Clauses {
				if n := TableName(c); n != NoTable {
					return n
				}
			}
		}
	}
	if name == "" {
		return NoTable
	}
	return name
}

// Attributes returns the attribute list an entity declares directly.
func Attributes(e Entity) ([]string, error) {
	var attrs []string
	switch t := e.(type) {
	case *Model:
		if t != nil {
			attrs = t.Attributes
		}
	case *TableDescriptor:
		if t != nil {
			attrs = t.Columns
		}
	case *Alias:
		if t != nil {
			attrs = t.Columns
		}
	}
	if len(attrs) == 0 {
		return nil, fmt.Errorf("%v: %w", e, ErrNoAttributes)
	}
	return attrs, nil
}

// FallbackAttributes derives the attribute list through the entity's underlying
// class: the mapped model of an alias, the first clause of a composite, or the
// exported fields of a model's Prototype.
func FallbackAttributes(e Entity) ([]string, error) {
	switch t := e.(type) {
	case *Model:
		if t != nil && t.Prototype != nil {
			if attrs := prototypeAttributes(t.Prototype); len(attrs) > 0 {
				return attrs, nil
			}
		}
	case *Alias:
		if t != nil && t.Class != nil {
			if attrs, err := Attributes(t.Class); err == nil {
				return attrs, nil
			}
			return FallbackAttributes(t.Class)
		}
	case *Clauses:
		if t != nil {
			for _, c := range t.Clauses {
				if TableName(c) == NoTable {
					continue
				}
				if attrs, err := Attributes(c); err == nil {
					return attrs, nil
				}
				return FallbackAttributes(c)
			}
		}
	}
	return nil, fmt.Errorf("%v: %w", e, ErrNoAttributes)
}

func prototypeAttributes(proto any) []string {
	t := reflect.TypeOf(proto)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}
	var attrs []string
	for i := 0; i < t.NumField(); i++ {
		if name, ok := record.FieldName(t.Field(i)); ok {
			attrs = append(attrs, name)
		}
	}
	return attrs
}

// SecondaryIndexes returns the attributes an entity allows hint lookups on
// besides the primary key.
func SecondaryIndexes(e Entity) []string {
	switch t := e.(type) {
	case *Model:
		if t != nil {
			return t.SecondaryIndexes
		}
	case *Alias:
		if t != nil && t.Class != nil {
			return t.Class.SecondaryIndexes
		}
	}
	return nil
}
