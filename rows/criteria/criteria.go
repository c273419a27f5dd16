// Package criteria holds the predicates rows are filtered with.
package criteria

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/acksell/ddbrows/rows/model"
	"github.com/acksell/ddbrows/rows/record"
)

var (
	ErrUnknownTable = errors.New("table not part of tuple")
	ErrMalformed    = errors.New("malformed criterion")
)

// Tuple is a candidate combination of objects, one per table.
type Tuple interface {
	Lookup(table string) (record.Record, bool)
}

// Criterion is a predicate over a tuple.
type Criterion interface {
	Evaluate(t Tuple) (bool, error)
	// Columns lists every column the criterion references.
	Columns() []Column
	String() string
}

// Operand is either a Column or a Literal.
type Operand interface {
	value(t Tuple) (any, error)
	String() string
}

type Column struct {
	Table string
	Name  string
}

func Col(table, name string) Column {
	return Column{Table: table, Name: name}
}

func (c Column) value(t Tuple) (any, error) {
	rec, ok := t.Lookup(c.Table)
	if !ok {
		return nil, fmt.Errorf("%s: %w", c, ErrUnknownTable)
	}
	return record.GetOr(rec, c.Name, nil), nil
}

func (c Column) String() string {
	return c.Table + "." + c.Name
}

type Literal struct {
	Value any
}

func Lit(v any) Literal {
	return Literal{Value: v}
}

func (l Literal) value(Tuple) (any, error) {
	return l.Value, nil
}

func (l Literal) String() string {
	if s, ok := l.Value.(string); ok {
		return "'" + s + "'"
	}
	return fmt.Sprint(l.Value)
}

type Op string

const (
	OpEq Op = "="
	OpNe Op = "!="
	OpLt Op = "<"
	OpLe Op = "<="
	OpGt Op = ">"
	OpGe Op = ">="
	OpIn Op = "in"
)

// Binary compares two operands.
type Binary struct {
	Left  Operand
	Op    Op
	Right Operand
}

func Eq(l, r Operand) Binary { return Binary{Left: l, Op: OpEq, Right: r} }
func Ne(l, r Operand) Binary { return Binary{Left: l, Op: OpNe, Right: r} }
func Lt(l, r Operand) Binary { return Binary{Left: l, Op: OpLt, Right: r} }
func Le(l, r Operand) Binary { return Binary{Left: l, Op: OpLe, Right: r} }
func Gt(l, r Operand) Binary { return Binary{Left: l, Op: OpGt, Right: r} }
func Ge(l, r Operand) Binary { return Binary{Left: l, Op: OpGe, Right: r} }

// In matches when the operand equals one of values.
func In(l Operand, values ...any) Binary {
	return Binary{Left: l, Op: OpIn, Right: Literal{Value: values}}
}

func (b Binary) Evaluate(t Tuple) (bool, error) {
	if b.Left == nil || b.Right == nil {
		return false, fmt.Errorf("%s: missing operand: %w", b, ErrMalformed)
	}
	l, err := b.Left.value(t)
	if err != nil {
		return false, err
	}
	r, err := b.Right.value(t)
	if err != nil {
		return false, err
	}
	switch b.Op {
	case OpEq:
		return Equal(l, r), nil
	case OpNe:
		return !Equal(l, r), nil
	case OpLt, OpLe, OpGt, OpGe:
		if !Comparable(l, r) {
			return false, nil
		}
		c := Compare(l, r)
		switch b.Op {
		case OpLt:
			return c < 0, nil
		case OpLe:
			return c <= 0, nil
		case OpGt:
			return c > 0, nil
		}
		return c >= 0, nil
	case OpIn:
		rv := reflect.ValueOf(r)
		if r == nil || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
			return false, fmt.Errorf("%s: right side of in must be a list, got %T: %w", b, r, ErrMalformed)
		}
		for i := 0; i < rv.Len(); i++ {
			if Equal(l, rv.Index(i).Interface()) {
				return true, nil
			}
		}
		return false, nil
	}
	return false, fmt.Errorf("unknown operator %q: %w", b.Op, ErrMalformed)
}

func (b Binary) Columns() []Column {
	var cols []Column
	if c, ok := b.Left.(Column); ok {
		cols = append(cols, c)
	}
	if c, ok := b.Right.(Column); ok {
		cols = append(cols, c)
	}
	return cols
}

func (b Binary) String() string {
	return fmt.Sprintf("%v %s %v", b.Left, b.Op, b.Right)
}

// Conjunction holds when every term holds.
type Conjunction []Criterion

func And(terms ...Criterion) Conjunction {
	return Conjunction(terms)
}

func (c Conjunction) Evaluate(t Tuple) (bool, error) {
	for _, term := range c {
		ok, err := term.Evaluate(t)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func (c Conjunction) Columns() []Column {
	return columns(c)
}

func (c Conjunction) String() string {
	return join(c, " AND ")
}

// Disjunction holds when any term holds.
type Disjunction []Criterion

func Or(terms ...Criterion) Disjunction {
	return Disjunction(terms)
}

func (d Disjunction) Evaluate(t Tuple) (bool, error) {
	for _, term := range d {
		ok, err := term.Evaluate(t)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func (d Disjunction) Columns() []Column {
	return columns(d)
}

func (d Disjunction) String() string {
	return join(d, " OR ")
}

type Negation struct {
	Term Criterion
}

func Not(c Criterion) Negation {
	return Negation{Term: c}
}

func (n Negation) Evaluate(t Tuple) (bool, error) {
	if n.Term == nil {
		return false, fmt.Errorf("empty negation: %w", ErrMalformed)
	}
	ok, err := n.Term.Evaluate(t)
	return !ok, err
}

func (n Negation) Columns() []Column {
	if n.Term == nil {
		return nil
	}
	return n.Term.Columns()
}

func (n Negation) String() string {
	return fmt.Sprintf("NOT (%v)", n.Term)
}

// All evaluates every criterion against t, requiring each to hold.
func All(t Tuple, criteria []Criterion) (bool, error) {
	return Conjunction(criteria).Evaluate(t)
}

func columns(terms []Criterion) []Column {
	var cols []Column
	for _, term := range terms {
		cols = append(cols, term.Columns()...)
	}
	return cols
}

func join(terms []Criterion, sep string) string {
	parts := make([]string, len(terms))
	for i, term := range terms {
		parts[i] = "(" + term.String() + ")"
	}
	return strings.Join(parts, sep)
}

// Pair is an equality between columns of two different tables.
type Pair struct {
	Left  Column
	Right Column
}

// Other returns the side of the pair that belongs to a table other than table.
func (p Pair) Other(table string) (local, remote Column, ok bool) {
	switch table {
	case p.Left.Table:
		return p.Left, p.Right, true
	case p.Right.Table:
		return p.Right, p.Left, true
	}
	return Column{}, Column{}, false
}

// JoinPairs extracts the column equalities found in the top-level conjunction of criteria.
func JoinPairs(criteria ...Criterion) []Pair {
	var pairs []Pair
	for _, c := range conjuncts(criteria) {
		b, ok := c.(Binary)
		if !ok || b.Op != OpEq {
			continue
		}
		l, lok := b.Left.(Column)
		r, rok := b.Right.(Column)
		if lok && rok && l.Table != r.Table {
			pairs = append(pairs, Pair{Left: l, Right: r})
		}
	}
	return pairs
}

// DeriveHints turns the column = literal equalities of the top-level conjunction into hints.
func DeriveHints(criteria ...Criterion) []model.Hint {
	var hints []model.Hint
	for _, c := range conjuncts(criteria) {
		b, ok := c.(Binary)
		if !ok || b.Op != OpEq {
			continue
		}
		col, cok := b.Left.(Column)
		lit, lok := b.Right.(Literal)
		if !cok || !lok {
			col, cok = b.Right.(Column)
			lit, lok = b.Left.(Literal)
		}
		if cok && lok {
			hints = append(hints, model.Hint{Table: col.Table, Attribute: col.Name, Value: lit.Value})
		}
	}
	return hints
}

func conjuncts(criteria []Criterion) []Criterion {
	var out []Criterion
	for _, c := range criteria {
		switch t := c.(type) {
		case Conjunction:
			out = append(out, conjuncts(t)...)
		case nil:
		default:
			out = append(out, t)
		}
	}
	return out
}
