package ddbstore

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/dgraph-io/badger/v4"
)

// iteration describes one Query or Scan pass over a key range.
type iteration struct {
	enc      keyEncoder
	prefix   []byte
	reverse  bool
	startKey map[string]types.AttributeValue
	limit    int
	keyCond  condition // items failing it are skipped without being counted
	filter   condition // items failing it are counted as scanned but not returned
}

type iterationResult struct {
	items   []document
	scanned int32
	lastKey map[string]types.AttributeValue
}

func (s *Store) iterate(ctx context.Context, it iteration) (iterationResult, error) {
	var res iterationResult

	var startBytes []byte
	if it.startKey != nil {
		var err error
		startBytes, err = it.enc.encodeItemKey(it.startKey)
		if err != nil {
			return res, fmt.Errorf("encode start key: %w", err)
		}
	}

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = it.prefix
		opts.Reverse = it.reverse

		iter := txn.NewIterator(opts)
		defer iter.Close()

		switch {
		case startBytes != nil:
			iter.Seek(startBytes)
			if iter.Valid() && bytes.Equal(iter.Item().Key(), startBytes) {
				iter.Next()
			}
		case it.reverse:
			iter.Seek(incrementBytes(it.prefix))
		default:
			iter.Seek(it.prefix)
		}

		for ; iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			if !bytes.HasPrefix(iter.Item().Key(), it.prefix) {
				break
			}

			var doc document
			if err := iter.Item().Value(func(val []byte) error {
				var err error
				doc, err = DeserializeItem(val)
				return err
			}); err != nil {
				return err
			}

			if it.keyCond != nil {
				ok, err := it.keyCond.eval(doc)
				if err != nil {
					return fmt.Errorf("evaluate key condition: %w", err)
				}
				if !ok {
					continue
				}
			}

			res.scanned++
			keep := true
			if it.filter != nil {
				ok, err := it.filter.eval(doc)
				if err != nil {
					return fmt.Errorf("evaluate filter: %w", err)
				}
				keep = ok
			}
			if keep {
				res.items = append(res.items, doc)
			}

			if it.limit > 0 && int(res.scanned) >= it.limit {
				res.lastKey = it.enc.lastEvaluatedKey(doc)
				break
			}
		}
		return nil
	})
	return res, err
}
