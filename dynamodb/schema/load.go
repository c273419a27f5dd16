package schema

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"

	"github.com/acksell/ddbrows/dynamodb/table"
	"github.com/acksell/ddbrows/rows/model"
	"gopkg.in/yaml.v3"
)

// Loaded contains all loaded schema information.
type Loaded struct {
	// Files maps table name to its schema file
	Files map[string]*File
	// TableDefinitions are the runtime table definitions, sorted by name.
	TableDefinitions []table.TableDefinition

	entities map[string]model.Entity
}

// LoadSchemas loads schema files matching the given glob pattern.
func LoadSchemas(pattern string) (*Loaded, error) {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("glob pattern error: %w", err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no schema files found matching: %s", pattern)
	}

	files := make([]*File, 0, len(matches))
	for _, path := range matches {
		f, err := loadSchemaFile(path)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", path, err)
		}
		files = append(files, f)
	}
	return Build(files...)
}

// Build validates schema files and derives table definitions and entities.
func Build(files ...*File) (*Loaded, error) {
	l := &Loaded{
		Files:    make(map[string]*File, len(files)),
		entities: make(map[string]model.Entity),
	}
	for _, f := range files {
		if _, dup := l.Files[f.Table.Name]; dup {
			return nil, fmt.Errorf("table %q defined twice", f.Table.Name)
		}
		l.Files[f.Table.Name] = f

		def, err := toTableDefinition(f.Table)
		if err != nil {
			return nil, fmt.Errorf("table %s: %w", f.Table.Name, err)
		}
		l.TableDefinitions = append(l.TableDefinitions, def)

		m := toModel(f, def)
		if err := l.addEntity(f.Table.Name, m); err != nil {
			return nil, err
		}
		for _, a := range f.Aliases {
			if err := l.addEntity(a.Name, &model.Alias{Name: a.Name, Class: m, Columns: a.Columns}); err != nil {
				return nil, err
			}
		}
	}
	sort.Slice(l.TableDefinitions, func(i, j int) bool {
		return l.TableDefinitions[i].Name < l.TableDefinitions[j].Name
	})

	for name, f := range l.Files {
		if f.Model == nil {
			continue
		}
		for _, r := range f.Model.Relationships {
			if _, ok := l.Files[r.Table]; !ok {
				return nil, fmt.Errorf("table %s: relationship %s references unknown table %s", name, r.Field, r.Table)
			}
		}
	}
	return l, nil
}

func (l *Loaded) addEntity(name string, e model.Entity) error {
	if name == "" {
		return fmt.Errorf("entity name is required")
	}
	if _, dup := l.entities[name]; dup {
		return fmt.Errorf("entity %q defined twice", name)
	}
	l.entities[name] = e
	return nil
}

// Entity returns the model or alias registered under name.
func (l *Loaded) Entity(name string) (model.Entity, bool) {
	e, ok := l.entities[name]
	return e, ok
}

// EntityNames returns every registered model and alias name, sorted.
func (l *Loaded) EntityNames() []string {
	names := make([]string, 0, len(l.entities))
	for name := range l.entities {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// loadSchemaFile reads and parses a single schema YAML file.
func loadSchemaFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}

	if f.Table.Name == "" {
		return nil, fmt.Errorf("table name is required")
	}
	return &f, nil
}

func toModel(f *File, def table.TableDefinition) *model.Model {
	m := &model.Model{Name: f.Table.Name}
	if f.Model != nil {
		m.Attributes = f.Model.Attributes
		m.SecondaryIndexes = f.Model.SecondaryIndexes
		for _, r := range f.Model.Relationships {
			m.Relationships = append(m.Relationships, model.Relationship{
				LocalField:  r.Field,
				RemoteTable: r.Table,
				RemoteField: r.RemoteField,
			})
		}
	}
	if m.SecondaryIndexes == nil {
		for _, gsi := range def.GSIs {
			m.SecondaryIndexes = append(m.SecondaryIndexes, gsi.KeyDefinitions.PartitionKey.Name)
		}
	}
	return m
}

// toTableDefinition converts a schema table to a runtime TableDefinition.
func toTableDefinition(t Table) (table.TableDefinition, error) {
	keys, err := toKeyDefinitions(t.PartitionKey, t.SortKey)
	if err != nil {
		return table.TableDefinition{}, err
	}
	def := table.TableDefinition{
		Name:           t.Name,
		KeyDefinitions: keys,
	}
	for _, gsi := range t.GSIs {
		keys, err := toKeyDefinitions(gsi.PartitionKey, gsi.SortKey)
		if err != nil {
			return table.TableDefinition{}, fmt.Errorf("gsi %s: %w", gsi.Name, err)
		}
		def.GSIs = append(def.GSIs, table.GSIDefinition{
			Name:           gsi.Name,
			KeyDefinitions: keys,
		})
	}
	return def, nil
}

func toKeyDefinitions(pk KeyDef, sk *KeyDef) (table.PrimaryKeyDefinition, error) {
	if pk.Name == "" {
		return table.PrimaryKeyDefinition{}, fmt.Errorf("partition key name is required")
	}
	kind, err := toKeyKind(pk.Kind)
	if err != nil {
		return table.PrimaryKeyDefinition{}, fmt.Errorf("partition key %s: %w", pk.Name, err)
	}
	keys := table.PrimaryKeyDefinition{
		PartitionKey: table.KeyDef{Name: pk.Name, Kind: kind},
	}
	if sk != nil {
		kind, err := toKeyKind(sk.Kind)
		if err != nil {
			return table.PrimaryKeyDefinition{}, fmt.Errorf("sort key %s: %w", sk.Name, err)
		}
		keys.SortKey = table.KeyDef{Name: sk.Name, Kind: kind}
	}
	return keys, nil
}

// toKeyKind converts a string kind to table.KeyKind. An empty kind means S.
func toKeyKind(kind string) (table.KeyKind, error) {
	switch kind {
	case "S", "":
		return table.KeyKindS, nil
	case "N":
		return table.KeyKindN, nil
	case "B":
		return table.KeyKindB, nil
	default:
		return "", fmt.Errorf("unknown key kind %q", kind)
	}
}
