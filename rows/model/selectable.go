package model

import (
	"fmt"

	"github.com/acksell/ddbrows/rows/record"
)

// AllAttributes selects every attribute of an entity.
const AllAttributes = "*"

// Selectable is one entry of a selection list.
type Selectable struct {
	Entity    Entity
	Attribute string
	// Function is set for computed columns. Entity and Attribute are ignored then.
	Function *Function
	Hidden   bool
}

// Function computes a value from the complete row set of a request.
type Function struct {
	Name string
	Fn   func(rows []record.Record) (any, error)
}

func All(e Entity) Selectable {
	return Selectable{Entity: e, Attribute: AllAttributes}
}

func Column(e Entity, attribute string) Selectable {
	return Selectable{Entity: e, Attribute: attribute}
}

func Func(name string, fn func(rows []record.Record) (any, error)) Selectable {
	return Selectable{Function: &Function{Name: name, Fn: fn}}
}

// Hide returns a copy of s that is evaluated but left out of the projection.
func (s Selectable) Hide() Selectable {
	s.Hidden = true
	return s
}

func (s Selectable) IsFunction() bool {
	return s.Function != nil
}

func (s Selectable) String() string {
	if s.IsFunction() {
		return s.Function.Name + "()"
	}
	return fmt.Sprintf("%s.%s", TableName(s.Entity), s.Attribute)
}

// Hint suggests that Table can be narrowed to objects whose Attribute equals Value.
type Hint struct {
	Table     string
	Attribute string
	Value     any
}

// Lookup is a hint accepted for a given table.
type Lookup struct {
	Attribute string
	Value     any
}
