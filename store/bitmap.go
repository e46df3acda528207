// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package store

import "encoding/binary"

// Bitmap is a simple word-packed accumulator tracking which output MMR
// positions are currently unspent, matching the "bitmap
// accumulator" requirement without pulling in a full roaring-bitmap
// dependency: positions are sparse per block but dense over the whole
// chain life, so a flat uint64 word array indexed by pos/64 is adequate
// and keeps the on-disk encoding trivial to version.
type Bitmap struct {
	table byte
	batch *Batch
}

// NewBitmap opens a bitmap view over table within batch.
func NewBitmap(table byte, batch *Batch) *Bitmap {
	return &Bitmap{table: table, batch: batch}
}

func wordKey(word uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, word)
	return buf
}

func (b *Bitmap) word(idx uint64) (uint64, error) {
	v, err := b.batch.Get(b.table, wordKey(idx))
	if err != nil {
		return 0, nil
	}
	return binary.BigEndian.Uint64(v), nil
}

func (b *Bitmap) putWord(idx, v uint64) {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	b.batch.Put(b.table, wordKey(idx), buf)
}

// Set marks pos as unspent.
func (b *Bitmap) Set(pos uint64) error {
	idx, bit := pos/64, pos%64
	w, err := b.word(idx)
	if err != nil {
		return err
	}
	w |= uint64(1) << bit
	b.putWord(idx, w)
	return nil
}

// Clear marks pos as spent.
func (b *Bitmap) Clear(pos uint64) error {
	idx, bit := pos/64, pos%64
	w, err := b.word(idx)
	if err != nil {
		return err
	}
	w &^= uint64(1) << bit
	b.putWord(idx, w)
	return nil
}

// IsSet reports whether pos is currently marked unspent.
func (b *Bitmap) IsSet(pos uint64) (bool, error) {
	idx, bit := pos/64, pos%64
	w, err := b.word(idx)
	if err != nil {
		return false, err
	}
	return w&(uint64(1)<<bit) != 0, nil
}
