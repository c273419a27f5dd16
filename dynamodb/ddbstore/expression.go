package ddbstore

import (
	"bytes"
	"fmt"
	"math/big"
	"reflect"
	"strings"
	"unicode"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// The store understands the expression subset produced by the
// feature/dynamodb/expression builder and written by hand in tests:
//
//	condition := condition OR condition | condition AND condition | NOT condition | ( condition )
//	           | operand comparator operand | operand BETWEEN operand AND operand
//	           | operand IN ( operand, ... ) | function ( operand, ... )
//	comparator := = | <> | < | <= | > | >=
//	function := attribute_exists | attribute_not_exists | begins_with | contains
//
// Operands are attribute paths (a, #n, a.b, #n.#m) or value placeholders (:v).

type document = map[string]types.AttributeValue

type condition interface {
	eval(doc document) (bool, error)
}

type operand struct {
	path  []string
	value types.AttributeValue
}

func (o operand) resolve(doc document) (types.AttributeValue, bool) {
	if o.value != nil {
		return o.value, true
	}
	var cur types.AttributeValue = &types.AttributeValueMemberM{Value: doc}
	for _, seg := range o.path {
		m, ok := cur.(*types.AttributeValueMemberM)
		if !ok {
			return nil, false
		}
		cur, ok = m.Value[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func (o operand) attribute() (string, bool) {
	if o.value != nil || len(o.path) != 1 {
		return "", false
	}
	return o.path[0], true
}

type andCond struct{ left, right condition }

func (c andCond) eval(doc document) (bool, error) {
	ok, err := c.left.eval(doc)
	if err != nil || !ok {
		return false, err
	}
	return c.right.eval(doc)
}

type orCond struct{ left, right condition }

func (c orCond) eval(doc document) (bool, error) {
	ok, err := c.left.eval(doc)
	if err != nil || ok {
		return ok, err
	}
	return c.right.eval(doc)
}

type notCond struct{ inner condition }

func (c notCond) eval(doc document) (bool, error) {
	ok, err := c.inner.eval(doc)
	return !ok, err
}

type compareCond struct {
	op          string
	left, right operand
}

func (c compareCond) eval(doc document) (bool, error) {
	l, lok := c.left.resolve(doc)
	r, rok := c.right.resolve(doc)
	if !lok || !rok {
		return c.op == "<>", nil
	}
	switch c.op {
	case "=":
		return attributeValuesEqual(l, r), nil
	case "<>":
		return !attributeValuesEqual(l, r), nil
	}
	cmp, ok := compareAttributeValues(l, r)
	if !ok {
		return false, nil
	}
	switch c.op {
	case "<":
		return cmp < 0, nil
	case "<=":
		return cmp <= 0, nil
	case ">":
		return cmp > 0, nil
	case ">=":
		return cmp >= 0, nil
	}
	return false, fmt.Errorf("unknown comparator %q", c.op)
}

type betweenCond struct{ value, lower, upper operand }

func (c betweenCond) eval(doc document) (bool, error) {
	v, ok := c.value.resolve(doc)
	lo, lok := c.lower.resolve(doc)
	hi, hok := c.upper.resolve(doc)
	if !ok || !lok || !hok {
		return false, nil
	}
	a, aok := compareAttributeValues(v, lo)
	b, bok := compareAttributeValues(v, hi)
	return aok && bok && a >= 0 && b <= 0, nil
}

type inCond struct {
	value operand
	list  []operand
}

func (c inCond) eval(doc document) (bool, error) {
	v, ok := c.value.resolve(doc)
	if !ok {
		return false, nil
	}
	for _, o := range c.list {
		if w, ok := o.resolve(doc); ok && attributeValuesEqual(v, w) {
			return true, nil
		}
	}
	return false, nil
}

type funcCond struct {
	name string
	args []operand
}

func (c funcCond) eval(doc document) (bool, error) {
	switch c.name {
	case "attribute_exists", "attribute_not_exists":
		if len(c.args) != 1 {
			return false, fmt.Errorf("%s takes one argument", c.name)
		}
		_, ok := c.args[0].resolve(doc)
		return ok == (c.name == "attribute_exists"), nil
	case "begins_with":
		if len(c.args) != 2 {
			return false, fmt.Errorf("begins_with takes two arguments")
		}
		v, ok := c.args[0].resolve(doc)
		p, pok := c.args[1].resolve(doc)
		if !ok || !pok {
			return false, nil
		}
		switch vv := v.(type) {
		case *types.AttributeValueMemberS:
			if pp, ok := p.(*types.AttributeValueMemberS); ok {
				return strings.HasPrefix(vv.Value, pp.Value), nil
			}
		case *types.AttributeValueMemberB:
			if pp, ok := p.(*types.AttributeValueMemberB); ok {
				return bytes.HasPrefix(vv.Value, pp.Value), nil
			}
		}
		return false, nil
	case "contains":
		if len(c.args) != 2 {
			return false, fmt.Errorf("contains takes two arguments")
		}
		v, ok := c.args[0].resolve(doc)
		x, xok := c.args[1].resolve(doc)
		if !ok || !xok {
			return false, nil
		}
		return containsValue(v, x), nil
	}
	return false, fmt.Errorf("unsupported function %q", c.name)
}

func containsValue(v, x types.AttributeValue) bool {
	switch vv := v.(type) {
	case *types.AttributeValueMemberS:
		if xs, ok := x.(*types.AttributeValueMemberS); ok {
			return strings.Contains(vv.Value, xs.Value)
		}
	case *types.AttributeValueMemberSS:
		if xs, ok := x.(*types.AttributeValueMemberS); ok {
			for _, s := range vv.Value {
				if s == xs.Value {
					return true
				}
			}
		}
	case *types.AttributeValueMemberNS:
		for _, n := range vv.Value {
			if attributeValuesEqual(&types.AttributeValueMemberN{Value: n}, x) {
				return true
			}
		}
	case *types.AttributeValueMemberL:
		for _, e := range vv.Value {
			if attributeValuesEqual(e, x) {
				return true
			}
		}
	}
	return false
}

func attributeValuesEqual(a, b types.AttributeValue) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch av := a.(type) {
	case *types.AttributeValueMemberS, *types.AttributeValueMemberN, *types.AttributeValueMemberB:
		cmp, ok := compareAttributeValues(av, b)
		return ok && cmp == 0
	}
	return reflect.DeepEqual(a, b)
}

// compareAttributeValues orders two scalar values of the same type.
func compareAttributeValues(a, b types.AttributeValue) (int, bool) {
	switch av := a.(type) {
	case *types.AttributeValueMemberS:
		if bv, ok := b.(*types.AttributeValueMemberS); ok {
			return strings.Compare(av.Value, bv.Value), true
		}
	case *types.AttributeValueMemberN:
		if bv, ok := b.(*types.AttributeValueMemberN); ok {
			x, xok := new(big.Float).SetString(av.Value)
			y, yok := new(big.Float).SetString(bv.Value)
			if !xok || !yok {
				return 0, false
			}
			return x.Cmp(y), true
		}
	case *types.AttributeValueMemberB:
		if bv, ok := b.(*types.AttributeValueMemberB); ok {
			return bytes.Compare(av.Value, bv.Value), true
		}
	}
	return 0, false
}

// partitionValue finds the `key = :value` term of a key condition.
// Only terms joined by AND at the top level are considered.
func partitionValue(c condition, key string) (types.AttributeValue, bool) {
	switch cc := c.(type) {
	case andCond:
		if v, ok := partitionValue(cc.left, key); ok {
			return v, true
		}
		return partitionValue(cc.right, key)
	case compareCond:
		if cc.op != "=" {
			return nil, false
		}
		if name, ok := cc.left.attribute(); ok && name == key && cc.right.value != nil {
			return cc.right.value, true
		}
		if name, ok := cc.right.attribute(); ok && name == key && cc.left.value != nil {
			return cc.left.value, true
		}
	}
	return nil, false
}

// parseCondition parses a condition, key condition or filter expression.
func parseCondition(expr string, names map[string]string, values map[string]types.AttributeValue) (condition, error) {
	toks, err := tokenize(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid expression %q: %w", expr, err)
	}
	p := &exprParser{toks: toks, names: names, values: values}
	c, err := p.parseOr()
	if err != nil {
		return nil, fmt.Errorf("invalid expression %q: %w", expr, err)
	}
	if !p.done() {
		return nil, fmt.Errorf("invalid expression %q: unexpected %q", expr, p.peek())
	}
	return c, nil
}

// parseProjection returns the top-level attributes named by a projection expression.
func parseProjection(expr string, names map[string]string) ([]string, error) {
	var attrs []string
	for _, part := range strings.Split(expr, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, fmt.Errorf("invalid projection %q: empty attribute", expr)
		}
		if i := strings.IndexAny(part, ".["); i >= 0 {
			part = part[:i]
		}
		name, err := resolveName(part, names)
		if err != nil {
			return nil, fmt.Errorf("invalid projection %q: %w", expr, err)
		}
		attrs = append(attrs, name)
	}
	return attrs, nil
}

func project(expr *string, names map[string]string, items []document) ([]document, error) {
	if expr == nil || *expr == "" {
		return items, nil
	}
	attrs, err := parseProjection(*expr, names)
	if err != nil {
		return nil, err
	}
	out := make([]document, len(items))
	for i, it := range items {
		projected := make(document, len(attrs))
		for _, a := range attrs {
			if v, ok := it[a]; ok {
				projected[a] = v
			}
		}
		out[i] = projected
	}
	return out, nil
}

func resolveName(seg string, names map[string]string) (string, error) {
	if !strings.HasPrefix(seg, "#") {
		return seg, nil
	}
	name, ok := names[seg]
	if !ok {
		return "", fmt.Errorf("undefined attribute name %s", seg)
	}
	return name, nil
}

func tokenize(s string) ([]string, error) {
	var toks []string
	for i := 0; i < len(s); {
		c := rune(s[i])
		switch {
		case unicode.IsSpace(c):
			i++
		case c == '(' || c == ')' || c == ',' || c == '=':
			toks = append(toks, string(c))
			i++
		case c == '<':
			if i+1 < len(s) && (s[i+1] == '=' || s[i+1] == '>') {
				toks = append(toks, s[i:i+2])
				i += 2
			} else {
				toks = append(toks, "<")
				i++
			}
		case c == '>':
			if i+1 < len(s) && s[i+1] == '=' {
				toks = append(toks, ">=")
				i += 2
			} else {
				toks = append(toks, ">")
				i++
			}
		case isWordChar(c):
			j := i
			for j < len(s) && isWordChar(rune(s[j])) {
				j++
			}
			toks = append(toks, s[i:j])
			i = j
		default:
			return nil, fmt.Errorf("unexpected character %q", c)
		}
	}
	return toks, nil
}

func isWordChar(c rune) bool {
	return c == '_' || c == '#' || c == ':' || c == '.' || c == '-' ||
		unicode.IsLetter(c) || unicode.IsDigit(c)
}

type exprParser struct {
	toks   []string
	pos    int
	names  map[string]string
	values map[string]types.AttributeValue
}

func (p *exprParser) done() bool { return p.pos >= len(p.toks) }

func (p *exprParser) peek() string {
	if p.done() {
		return ""
	}
	return p.toks[p.pos]
}

func (p *exprParser) next() string {
	t := p.peek()
	p.pos++
	return t
}

func (p *exprParser) keyword(kw string) bool {
	if strings.EqualFold(p.peek(), kw) {
		p.pos++
		return true
	}
	return false
}

func (p *exprParser) expect(tok string) error {
	if got := p.next(); got != tok {
		return fmt.Errorf("expected %q, got %q", tok, got)
	}
	return nil
}

func (p *exprParser) parseOr() (condition, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.keyword("OR") {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = orCond{left, right}
	}
	return left, nil
}

func (p *exprParser) parseAnd() (condition, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.keyword("AND") {
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = andCond{left, right}
	}
	return left, nil
}

func (p *exprParser) parseNot() (condition, error) {
	if p.keyword("NOT") {
		inner, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return notCond{inner}, nil
	}
	return p.parsePrimary()
}

func (p *exprParser) parsePrimary() (condition, error) {
	if p.peek() == "(" {
		p.pos++
		c, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		return c, p.expect(")")
	}

	if isFunction(p.peek()) && p.pos+1 < len(p.toks) && p.toks[p.pos+1] == "(" {
		name := strings.ToLower(p.next())
		args, err := p.parseList()
		if err != nil {
			return nil, err
		}
		return funcCond{name: name, args: args}, nil
	}

	left, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	switch tok := p.peek(); {
	case tok == "=" || tok == "<>" || tok == "<" || tok == "<=" || tok == ">" || tok == ">=":
		p.pos++
		right, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		return compareCond{op: tok, left: left, right: right}, nil
	case strings.EqualFold(tok, "BETWEEN"):
		p.pos++
		lower, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		if !p.keyword("AND") {
			return nil, fmt.Errorf("BETWEEN without AND")
		}
		upper, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		return betweenCond{value: left, lower: lower, upper: upper}, nil
	case strings.EqualFold(tok, "IN"):
		p.pos++
		list, err := p.parseList()
		if err != nil {
			return nil, err
		}
		return inCond{value: left, list: list}, nil
	default:
		return nil, fmt.Errorf("expected comparator after operand, got %q", tok)
	}
}

func (p *exprParser) parseList() ([]operand, error) {
	if err := p.expect("("); err != nil {
		return nil, err
	}
	var list []operand
	for {
		o, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		list = append(list, o)
		if p.peek() == "," {
			p.pos++
			continue
		}
		return list, p.expect(")")
	}
}

func (p *exprParser) parseOperand() (operand, error) {
	tok := p.next()
	switch {
	case tok == "":
		return operand{}, fmt.Errorf("unexpected end of expression")
	case strings.HasPrefix(tok, ":"):
		v, ok := p.values[tok]
		if !ok {
			return operand{}, fmt.Errorf("undefined attribute value %s", tok)
		}
		return operand{value: v}, nil
	case !isWordChar(rune(tok[0])):
		return operand{}, fmt.Errorf("unexpected %q", tok)
	}
	segs := strings.Split(tok, ".")
	path := make([]string, len(segs))
	for i, seg := range segs {
		name, err := resolveName(seg, p.names)
		if err != nil {
			return operand{}, err
		}
		path[i] = name
	}
	return operand{path: path}, nil
}

func isFunction(tok string) bool {
	switch strings.ToLower(tok) {
	case "attribute_exists", "attribute_not_exists", "begins_with", "contains":
		return true
	}
	return false
}
