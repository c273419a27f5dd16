// Package schema loads table and model definitions from YAML files.
// Each file describes one table, the model whose objects it stores and
// optional aliases of that model.
package schema

// File is the content of one schema file.
//
//	table:
//	  name: compute_node
//	  partitionKey: {name: id, kind: N}
//	  gsis:
//	    - name: by_service
//	      partitionKey: {name: service_id, kind: N}
//	model:
//	  attributes: [id, service_id, host, vcpus]
//	  relationships:
//	    - {field: service_id, table: service, remoteField: id}
//	aliases:
//	  - {name: hypervisor, columns: [id, host]}
type File struct {
	Table   Table   `yaml:"table" json:"table"`
	Model   *Model  `yaml:"model,omitempty" json:"model,omitempty"`
	Aliases []Alias `yaml:"aliases,omitempty" json:"aliases,omitempty"`
}

// Table describes a DynamoDB table structure.
type Table struct {
	Name         string  `yaml:"name" json:"name"`
	PartitionKey KeyDef  `yaml:"partitionKey" json:"partitionKey"`
	SortKey      *KeyDef `yaml:"sortKey,omitempty" json:"sortKey,omitempty"`
	GSIs         []GSI   `yaml:"gsis,omitempty" json:"gsis,omitempty"`
}

// KeyDef describes a key attribute definition.
type KeyDef struct {
	Name string `yaml:"name" json:"name"`
	Kind string `yaml:"kind" json:"kind"` // "S", "N", or "B"
}

// GSI describes a Global Secondary Index.
type GSI struct {
	Name         string  `yaml:"name" json:"name"`
	PartitionKey KeyDef  `yaml:"partitionKey" json:"partitionKey"`
	SortKey      *KeyDef `yaml:"sortKey,omitempty" json:"sortKey,omitempty"`
}

// Model describes the objects stored in the table.
// SecondaryIndexes defaults to the partition keys of the table's GSIs.
type Model struct {
	Attributes       []string       `yaml:"attributes" json:"attributes"`
	SecondaryIndexes []string       `yaml:"secondaryIndexes,omitempty" json:"secondaryIndexes,omitempty"`
	Relationships    []Relationship `yaml:"relationships,omitempty" json:"relationships,omitempty"`
}

// Relationship declares that Field references RemoteField of Table.
type Relationship struct {
	Field       string `yaml:"field" json:"field"`
	Table       string `yaml:"table" json:"table"`
	RemoteField string `yaml:"remoteField" json:"remoteField"`
}

// Alias is another name for the table's model, optionally with its own columns.
type Alias struct {
	Name    string   `yaml:"name" json:"name"`
	Columns []string `yaml:"columns,omitempty" json:"columns,omitempty"`
}
