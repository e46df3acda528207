// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

// Package store implements the batched key-value backing store and the
// prunable Merkle mountain ranges (PMMRs) built on top of it.
package store

import (
	"github.com/btcsuite/goleveldb/leveldb"
	"github.com/btcsuite/goleveldb/leveldb/iterator"
	"github.com/btcsuite/goleveldb/leveldb/util"
)

// Table prefixes, one byte each, partitioning the single goleveldb
// database into logical tables (under a one-byte table
// prefix").
const (
	TableHeader      = 'h'
	TableBlock       = 'b'
	TableOutputMMR   = 'o'
	TableProofMMR    = 'r'
	TableKernelMMR   = 'k'
	TableBitmap      = 'm'
	TablePeer        = 'p'
	TablePoolEntry   = 't'
	TableCommitIndex = 'c'
)

// Store wraps a goleveldb database, exposing the batched-write and
// iterator abstractions a Mimblewimble node needs: explicit batch objects,
// read-your-writes inside a batch, atomic commit, and a prefixed iterator
// over (key_suffix, value) pairs.
type Store struct {
	db *leveldb.DB
}

// Open opens (creating if absent) a goleveldb database at path.
func Open(path string) (*Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func tableKey(table byte, key []byte) []byte {
	out := make([]byte, 1+len(key))
	out[0] = table
	copy(out[1:], key)
	return out
}

// Get reads a single value from table/key.
func (s *Store) Get(table byte, key []byte) ([]byte, error) {
	return s.db.Get(tableKey(table, key), nil)
}

// Has reports whether table/key exists.
func (s *Store) Has(table byte, key []byte) (bool, error) {
	return s.db.Has(tableKey(table, key), nil)
}

// Put writes a single value directly (outside of a batch).
func (s *Store) Put(table byte, key, value []byte) error {
	return s.db.Put(tableKey(table, key), value, nil)
}

// Delete removes a single key directly (outside of a batch).
func (s *Store) Delete(table byte, key []byte) error {
	return s.db.Delete(tableKey(table, key), nil)
}

// Iterator returns an iterator over every key in table, in key order. The
// returned keys have the table prefix stripped, matching the
// "(key_suffix, value) pairs under a one-byte table prefix".
func (s *Store) Iterator(table byte) iterator.Iterator {
	return prefixIterator{s.db.NewIterator(util.BytesPrefix([]byte{table}), nil)}
}

// prefixIterator strips the one-byte table prefix from every key.
type prefixIterator struct {
	iterator.Iterator
}

func (it prefixIterator) Key() []byte {
	k := it.Iterator.Key()
	if len(k) == 0 {
		return k
	}
	return k[1:]
}

// Batch buffers writes in memory; nothing is visible to readers of the
// underlying Store until Commit succeeds, matching the "extending" scope
// extending contract: on success the batch commits atomically, on
// failure (never calling Commit) it is simply discarded.
type Batch struct {
	store   *Store
	batch   *leveldb.Batch
	pending map[string][]byte // read-your-writes cache
	deleted map[string]bool
}

// NewBatch opens a write scope against s.
func (s *Store) NewBatch() *Batch {
	return &Batch{
		store:   s,
		batch:   new(leveldb.Batch),
		pending: make(map[string][]byte),
		deleted: make(map[string]bool),
	}
}

// Put stages a write, visible to subsequent Get calls on this same batch
// before commit (read-your-writes).
func (b *Batch) Put(table byte, key, value []byte) {
	k := string(tableKey(table, key))
	b.batch.Put([]byte(k), value)
	b.pending[k] = value
	delete(b.deleted, k)
}

// Delete stages a delete.
func (b *Batch) Delete(table byte, key []byte) {
	k := string(tableKey(table, key))
	b.batch.Delete([]byte(k))
	delete(b.pending, k)
	b.deleted[k] = true
}

// Get reads a value, checking this batch's staged writes before falling
// back to the committed store (read-your-writes inside a batch).
func (b *Batch) Get(table byte, key []byte) ([]byte, error) {
	k := string(tableKey(table, key))
	if b.deleted[k] {
		return nil, leveldb.ErrNotFound
	}
	if v, ok := b.pending[k]; ok {
		return v, nil
	}
	return b.store.db.Get([]byte(k), nil)
}

// Commit atomically applies every staged write/delete. On error the store
// is left untouched; callers must not retry a partially-applied batch,
// matching the "extending" all-or-nothing contract.
func (b *Batch) Commit() error {
	return b.store.db.Write(b.batch, nil)
}

// Discard abandons the batch without applying any writes; present for
// symmetry with Commit and to make rollback sites self-documenting at
// call sites inside chain.extending.
func (b *Batch) Discard() {
	b.batch.Reset()
}
