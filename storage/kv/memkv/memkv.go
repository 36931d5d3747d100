// Package memkv implements the kv interface with an in-memory map.
// It exists for tests and for the client's local state; it honors the
// same atomic-batch and ordered-iteration contract as leveldbkv.
package memkv

import (
	"bytes"
	"errors"
	"sort"
	"sync"

	"github.com/barryWhiteHat/Grapevine/storage/kv"
)

var errNotFound = errors.New("memkv: not found")

type memkv struct {
	sync.RWMutex
	m map[string][]byte
}

// New creates an empty in-memory kv.DB.
func New() kv.DB {
	return &memkv{m: make(map[string][]byte)}
}

func (db *memkv) Get(key []byte) ([]byte, error) {
	db.RLock()
	defer db.RUnlock()
	v, ok := db.m[string(key)]
	if !ok {
		return nil, errNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (db *memkv) Put(key, value []byte) error {
	db.Lock()
	defer db.Unlock()
	v := make([]byte, len(value))
	copy(v, value)
	db.m[string(key)] = v
	return nil
}

func (db *memkv) Delete(key []byte) error {
	db.Lock()
	defer db.Unlock()
	delete(db.m, string(key))
	return nil
}

type batchOp struct {
	del        bool
	key, value []byte
}

type batch struct {
	ops []batchOp
}

func (b *batch) Reset() { b.ops = b.ops[:0] }

func (b *batch) Put(key, value []byte) {
	k := append([]byte(nil), key...)
	v := append([]byte(nil), value...)
	b.ops = append(b.ops, batchOp{key: k, value: v})
}

func (b *batch) Delete(key []byte) {
	k := append([]byte(nil), key...)
	b.ops = append(b.ops, batchOp{del: true, key: k})
}

func (db *memkv) NewBatch() kv.Batch {
	return new(batch)
}

func (db *memkv) Write(b kv.Batch) error {
	wb, ok := b.(*batch)
	if !ok {
		return errors.New("memkv.Write: unexpected batch type")
	}
	db.Lock()
	defer db.Unlock()
	for _, op := range wb.ops {
		if op.del {
			delete(db.m, string(op.key))
		} else {
			db.m[string(op.key)] = op.value
		}
	}
	return nil
}

type iterator struct {
	keys   []string
	values [][]byte
	pos    int
}

func (db *memkv) NewIterator(rg *kv.Range) kv.Iterator {
	db.RLock()
	defer db.RUnlock()
	it := &iterator{pos: -1}
	for k := range db.m {
		if rg != nil {
			bk := []byte(k)
			if rg.Start != nil && bytes.Compare(bk, rg.Start) < 0 {
				continue
			}
			if rg.Limit != nil && bytes.Compare(bk, rg.Limit) >= 0 {
				continue
			}
		}
		it.keys = append(it.keys, k)
	}
	sort.Strings(it.keys)
	for _, k := range it.keys {
		v := make([]byte, len(db.m[k]))
		copy(v, db.m[k])
		it.values = append(it.values, v)
	}
	return it
}

func (it *iterator) Key() []byte {
	if it.pos < 0 || it.pos >= len(it.keys) {
		return nil
	}
	return []byte(it.keys[it.pos])
}

func (it *iterator) Value() []byte {
	if it.pos < 0 || it.pos >= len(it.values) {
		return nil
	}
	return it.values[it.pos]
}

func (it *iterator) First() bool {
	it.pos = 0
	return len(it.keys) > 0
}

func (it *iterator) Next() bool {
	it.pos++
	return it.pos < len(it.keys)
}

func (it *iterator) Last() bool {
	it.pos = len(it.keys) - 1
	return it.pos >= 0
}

func (it *iterator) Release() {}

func (it *iterator) Error() error { return nil }

func (db *memkv) Close() error { return nil }

func (db *memkv) ErrNotFound() error { return errNotFound }
