package criteria

import (
	"fmt"
	"strconv"
	"strings"
)

// operators in match order: longer symbols first.
var operators = []Op{OpLe, OpGe, OpNe, OpEq, OpLt, OpGt}

// Parse reads a conjunction of comparisons such as
//
//	compute_node.service_id = service.id AND compute_node.host in ('a', 'b')
//
// Operands are table.column references, quoted strings, numbers, true, false or null.
func Parse(expr string) (Criterion, error) {
	var terms Conjunction
	for _, part := range splitAnd(expr) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		term, err := parseComparison(part)
		if err != nil {
			return nil, err
		}
		terms = append(terms, term)
	}
	if len(terms) == 0 {
		return nil, fmt.Errorf("empty expression: %w", ErrMalformed)
	}
	if len(terms) == 1 {
		return terms[0], nil
	}
	return terms, nil
}

func splitAnd(expr string) []string {
	var parts []string
	var quote rune
	start := 0
	for i, r := range expr {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
		case i+5 <= len(expr) && strings.EqualFold(expr[i:i+5], " and "):
			parts = append(parts, expr[start:i])
			start = i + 5
		}
	}
	return append(parts, expr[start:])
}

func parseComparison(s string) (Binary, error) {
	if l, r, ok := cutFold(s, " in "); ok {
		left, err := parseOperand(l)
		if err != nil {
			return Binary{}, err
		}
		r = strings.TrimSpace(r)
		if !strings.HasPrefix(r, "(") || !strings.HasSuffix(r, ")") {
			return Binary{}, fmt.Errorf("%q: in expects a parenthesised list: %w", s, ErrMalformed)
		}
		var values []any
		for _, item := range splitList(r[1 : len(r)-1]) {
			op, err := parseOperand(item)
			if err != nil {
				return Binary{}, err
			}
			lit, ok := op.(Literal)
			if !ok {
				return Binary{}, fmt.Errorf("%q: in list only accepts literals: %w", s, ErrMalformed)
			}
			values = append(values, lit.Value)
		}
		return In(left, values...), nil
	}
	for _, op := range operators {
		i := indexOutsideQuotes(s, string(op))
		if i < 0 {
			continue
		}
		left, err := parseOperand(s[:i])
		if err != nil {
			return Binary{}, err
		}
		right, err := parseOperand(s[i+len(op):])
		if err != nil {
			return Binary{}, err
		}
		return Binary{Left: left, Op: op, Right: right}, nil
	}
	return Binary{}, fmt.Errorf("%q: no comparison operator: %w", s, ErrMalformed)
}

func parseOperand(s string) (Operand, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return nil, fmt.Errorf("empty operand: %w", ErrMalformed)
	case len(s) >= 2 && (s[0] == '\'' || s[0] == '"') && s[len(s)-1] == s[0]:
		return Lit(s[1 : len(s)-1]), nil
	case strings.EqualFold(s, "null"):
		return Lit(nil), nil
	case s == "true" || s == "false":
		return Lit(s == "true"), nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return Lit(f), nil
	}
	if table, column, ok := strings.Cut(s, "."); ok && table != "" && column != "" && !strings.ContainsAny(s, " \t") {
		return Col(table, column), nil
	}
	return nil, fmt.Errorf("operand %q is neither a column nor a literal: %w", s, ErrMalformed)
}

func cutFold(s, sep string) (before, after string, found bool) {
	if i := indexOutsideQuotes(strings.ToLower(s), sep); i >= 0 {
		return s[:i], s[i+len(sep):], true
	}
	return s, "", false
}

func indexOutsideQuotes(s, sub string) int {
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case strings.HasPrefix(s[i:], sub):
			return i
		}
	}
	return -1
}

func splitList(s string) []string {
	var items []string
	var quote byte
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == ',':
			items = append(items, s[start:i])
			start = i + 1
		}
	}
	if strings.TrimSpace(s[start:]) != "" {
		items = append(items, s[start:])
	}
	return items
}
