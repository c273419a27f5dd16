package ddbstore

import (
	"errors"

	"github.com/acksell/ddbrows/dynamodb/table"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/dgraph-io/badger/v4"
)

func ptrStr(s string) *string {
	return &s
}

func extractKeyAttributes(item map[string]types.AttributeValue, keyDef table.PrimaryKeyDefinition) map[string]types.AttributeValue {
	result := make(map[string]types.AttributeValue)
	if pk, ok := item[keyDef.PartitionKey.Name]; ok {
		result[keyDef.PartitionKey.Name] = pk
	}
	if keyDef.SortKey.Name != "" {
		if sk, ok := item[keyDef.SortKey.Name]; ok {
			result[keyDef.SortKey.Name] = sk
		}
	}
	return result
}

func incrementBytes(b []byte) []byte {
	result := make([]byte, len(b))
	copy(result, b)
	for i := len(result) - 1; i >= 0; i-- {
		if result[i] < 0xFF {
			result[i]++
			return result
		}
		result[i] = 0
	}
	return append(result, 0x00)
}

// readItem returns the item stored under key, or nil when there is none.
func readItem(txn *badger.Txn, key []byte) (map[string]types.AttributeValue, error) {
	entry, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var item map[string]types.AttributeValue
	err = entry.Value(func(val []byte) error {
		item, err = DeserializeItem(val)
		return err
	})
	return item, err
}

// putTxn writes item to the table and its GSIs, returning the item it replaced.
func (t *tableSchema) putTxn(txn *badger.Txn, item map[string]types.AttributeValue) (map[string]types.AttributeValue, error) {
	key, err := t.base.encodeItemKey(item)
	if err != nil {
		return nil, err
	}
	old, err := readItem(txn, key)
	if err != nil {
		return nil, err
	}
	itemBytes, err := SerializeItem(item)
	if err != nil {
		return nil, err
	}
	if err := txn.Set(key, itemBytes); err != nil {
		return nil, err
	}
	if err := t.updateIndexes(txn, item, old, itemBytes); err != nil {
		return nil, err
	}
	return old, nil
}

// deleteTxn removes the item under the given key from the table and its GSIs.
func (t *tableSchema) deleteTxn(txn *badger.Txn, keyAttrs map[string]types.AttributeValue) (map[string]types.AttributeValue, error) {
	key, err := t.base.encodeItemKey(keyAttrs)
	if err != nil {
		return nil, err
	}
	old, err := readItem(txn, key)
	if err != nil || old == nil {
		return nil, err
	}
	if err := txn.Delete(key); err != nil {
		return nil, err
	}
	if err := t.updateIndexes(txn, nil, old, nil); err != nil {
		return nil, err
	}
	return old, nil
}

// updateIndexes keeps every GSI in line with a write. Items missing an index's key
// attributes are not part of that index.
func (t *tableSchema) updateIndexes(txn *badger.Txn, newItem, oldItem map[string]types.AttributeValue, newBytes []byte) error {
	for _, gsi := range t.indexes() {
		if oldItem != nil {
			if oldKey, err := gsi.encodeItemKey(oldItem); err == nil {
				if err := txn.Delete(oldKey); err != nil {
					return err
				}
			}
		}
		if newItem == nil {
			continue
		}
		newKey, err := gsi.encodeItemKey(newItem)
		if err != nil {
			continue
		}
		if err := txn.Set(newKey, newBytes); err != nil {
			return err
		}
	}
	return nil
}
