package ddbsdk

import (
	"context"
	"fmt"
	"strconv"

	"github.com/acksell/ddbrows/dynamodb/table"
	"github.com/acksell/ddbrows/rows/model"
	"github.com/acksell/ddbrows/rows/objstore"
	"github.com/acksell/ddbrows/rows/record"

	expression2 "github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
)

var _ objstore.Store = &Client{}

// GetObjects loads the objects of a table matching every lookup.
//
// The first lookup that can be served by a key drives the request: the table's
// partition key (GetItem, or Query when the sort key is not pinned), otherwise a
// GSI partitioned on the attribute (Query on the index). Without such a lookup
// the table is scanned. Remaining lookups become a filter expression and are
// checked again on the decoded objects, which tolerates loosely typed values.
func (c *Client) GetObjects(ctx context.Context, tableName, requestID string, lookups []model.Lookup) ([]record.Record, error) {
	def, err := c.table(tableName)
	if err != nil {
		return nil, err
	}

	items, access, err := c.load(ctx, def, lookups)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", tableName, err)
	}

	out := make([]record.Record, 0, len(items))
	for _, item := range items {
		rec, err := record.FromItem(item)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", tableName, err)
		}
		if objstore.Matches(rec, lookups) {
			out = append(out, rec)
		}
	}
	c.logger.DebugContext(ctx, "loaded objects",
		"table", tableName,
		"request_id", requestID,
		"access", access,
		"lookups", len(lookups),
		"count", len(out),
	)
	return out, nil
}

func (c *Client) load(ctx context.Context, def table.TableDefinition, lookups []model.Lookup) ([]Item, string, error) {
	keys := def.KeyDefinitions
	if i := indexOf(lookups, keys.PartitionKey.Name); i >= 0 {
		pv, err := keyValue(keys.PartitionKey, lookups[i].Value)
		if err != nil {
			// no object can carry this key
			return nil, "none", nil
		}
		if keys.SortKey.Name == "" || indexOf(lookups, keys.SortKey.Name) >= 0 {
			key := table.PrimaryKey{
				Definition: keys,
				Values:     table.PrimaryKeyValues{PartitionKey: pv},
			}
			if keys.SortKey.Name != "" {
				sv, err := keyValue(keys.SortKey, lookups[indexOf(lookups, keys.SortKey.Name)].Value)
				if err != nil {
					return nil, "none", nil
				}
				key.Values.SortKey = sv
			}
			item, err := c.getItem(ctx, def, key)
			if err != nil || item == nil {
				return nil, "get", err
			}
			return []Item{item}, "get", nil
		}
		items, err := c.query(ctx, def, "", keys.PartitionKey.Name, pv, lookups, i)
		return items, "query", err
	}

	for i, l := range lookups {
		gsi, ok := def.GSIFor(l.Attribute)
		if !ok {
			continue
		}
		pv, err := keyValue(gsi.KeyDefinitions.PartitionKey, l.Value)
		if err != nil {
			return nil, "none", nil
		}
		items, err := c.query(ctx, def, gsi.Name, l.Attribute, pv, lookups, i)
		return items, "query:" + gsi.Name, err
	}

	res, err := c.newQuerier(def, "", nil, filterFor(lookups, -1)).QueryAll(ctx)
	if err != nil {
		return nil, "scan", err
	}
	return res.Items, "scan", nil
}

func (c *Client) query(ctx context.Context, def table.TableDefinition, index, attr string, value any, lookups []model.Lookup, driving int) ([]Item, error) {
	keyCond := expression2.Key(attr).Equal(expression2.Value(value))
	res, err := c.newQuerier(def, index, &keyCond, filterFor(lookups, driving)).QueryAll(ctx)
	if err != nil {
		return nil, err
	}
	return res.Items, nil
}

// filterFor builds a filter for the scalar lookups other than the driving one.
func filterFor(lookups []model.Lookup, driving int) expression2.ConditionBuilder {
	var conds []expression2.ConditionBuilder
	for i, l := range lookups {
		if i == driving || !filterable(l.Value) {
			continue
		}
		conds = append(conds, expression2.Name(l.Attribute).Equal(expression2.Value(l.Value)))
	}
	switch len(conds) {
	case 0:
		return expression2.ConditionBuilder{}
	case 1:
		return conds[0]
	default:
		return expression2.And(conds[0], conds[1], conds[2:]...)
	}
}

func filterable(v any) bool {
	switch v.(type) {
	case string, bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return true
	}
	return false
}

// keyValue coerces a lookup value into a Go value that marshals to the key's kind.
func keyValue(k table.KeyDef, v any) (any, error) {
	c, err := k.Coerce(v)
	if err != nil {
		return nil, err
	}
	if k.Kind != table.KeyKindN {
		return c, nil
	}
	s := c.(string)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	return strconv.ParseFloat(s, 64)
}

func indexOf(lookups []model.Lookup, attribute string) int {
	for i, l := range lookups {
		if l.Attribute == attribute {
			return i
		}
	}
	return -1
}
