package rows

import (
	"github.com/acksell/ddbrows/rows/record"
	"github.com/acksell/ddbrows/rows/tuples"
)

// Composite is a row over several entities, keyed by table name.
type Composite struct {
	labels []string
	values []record.Record
}

func NewComposite(labels []string, values []record.Record) *Composite {
	return &Composite{labels: labels, values: values}
}

func (c *Composite) index(label string) int {
	for i, l := range c.labels {
		if l == label {
			return i
		}
	}
	return -1
}

func (c *Composite) Has(label string) bool {
	return c.index(label) >= 0
}

func (c *Composite) Get(label string) (any, bool) {
	r, ok := c.Lookup(label)
	return r, ok
}

// Set replaces the object of an existing label. Values that are not records are ignored.
func (c *Composite) Set(label string, value any) {
	r, ok := value.(record.Record)
	if i := c.index(label); ok && i >= 0 {
		c.values[i] = r
	}
}

// Lookup returns the object of label.
func (c *Composite) Lookup(label string) (record.Record, bool) {
	i := c.index(label)
	if i < 0 {
		return nil, false
	}
	return c.values[i], true
}

func (c *Composite) Labels() []string {
	return c.labels
}

func (c *Composite) Values() []record.Record {
	return c.values
}

// extract turns products into rows. A single entity yields its object directly.
func extract(products []tuples.Product, p plan) []record.Record {
	rows := make([]record.Record, 0, len(products))
	for _, product := range products {
		if len(product) == 0 {
			continue
		}
		if len(p.entities) > 1 {
			rows = append(rows, NewComposite(p.labels, product))
			continue
		}
		rows = append(rows, product[0])
	}
	return rows
}
