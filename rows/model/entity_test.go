package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type computeNode struct {
	ID        int    `dynamodbav:"id"`
	ServiceID int    `dynamodbav:"service_id"`
	Host      string `dynamodbav:"host"`
	internal  bool
}

func TestTableName(t *testing.T) {
	service := &Model{Name: "service"}
	tests := []struct {
		name   string
		entity Entity
		want   string
	}{
		{"model", service, "service"},
		{"table descriptor", &TableDescriptor{Name: "compute_node"}, "compute_node"},
		{"alias", &Alias{Name: "s", Class: service}, "service"},
		{"alias without class", &Alias{Name: "s"}, NoTable},
		{"clauses", &Clauses{Clauses: []Entity{service}}, "service"},
		{"clauses skip unresolvable", &Clauses{Clauses: []Entity{&Clauses{}, &TableDescriptor{Name: "x"}}}, "x"},
		{"empty clauses", &Clauses{}, NoTable},
		{"nil", nil, NoTable},
		{"nil model", (*Model)(nil), NoTable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TableName(tt.entity))
		})
	}
}

func TestAttributes(t *testing.T) {
	declared := &Model{Name: "service", Attributes: []string{"id", "host"}}
	proto := &Model{Name: "compute_node", Prototype: computeNode{}}

	t.Run("declared", func(t *testing.T) {
		attrs, err := Attributes(declared)
		require.NoError(t, err)
		assert.Equal(t, []string{"id", "host"}, attrs)
	})

	t.Run("prototype needs fallback", func(t *testing.T) {
		_, err := Attributes(proto)
		require.ErrorIs(t, err, ErrNoAttributes)
		attrs, err := FallbackAttributes(proto)
		require.NoError(t, err)
		assert.Equal(t, []string{"id", "service_id", "host"}, attrs)
	})

	t.Run("alias falls back to class", func(t *testing.T) {
		alias := &Alias{Name: "n", Class: proto}
		_, err := Attributes(alias)
		require.Error(t, err)
		attrs, err := FallbackAttributes(alias)
		require.NoError(t, err)
		assert.Contains(t, attrs, "service_id")
	})

	t.Run("clauses fall back to first clause", func(t *testing.T) {
		attrs, err := FallbackAttributes(&Clauses{Clauses: []Entity{declared}})
		require.NoError(t, err)
		assert.Equal(t, declared.Attributes, attrs)
	})

	t.Run("both paths fail", func(t *testing.T) {
		bare := &Model{Name: "bare"}
		_, err := Attributes(bare)
		require.Error(t, err)
		_, err = FallbackAttributes(bare)
		require.ErrorIs(t, err, ErrNoAttributes)
	})
}

func TestSecondaryIndexes(t *testing.T) {
	node := &Model{Name: "compute_node", SecondaryIndexes: []string{"service_id"}}
	assert.Equal(t, []string{"service_id"}, SecondaryIndexes(node))
	assert.Equal(t, []string{"service_id"}, SecondaryIndexes(&Alias{Class: node}))
	assert.Empty(t, SecondaryIndexes(&TableDescriptor{Name: "compute_node"}))
}

func TestSelectable(t *testing.T) {
	node := &Model{Name: "compute_node"}
	s := Column(node, "host")
	assert.False(t, s.IsFunction())
	assert.Equal(t, "compute_node.host", s.String())
	assert.False(t, s.Hidden)
	assert.True(t, s.Hide().Hidden)

	f := Func("count", nil)
	assert.True(t, f.IsFunction())
	assert.Equal(t, "count()", f.String())
	assert.Equal(t, AllAttributes, All(node).Attribute)
}
