// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package store

import (
	"encoding/binary"
	"errors"

	"github.com/dblokhin/epic-go/consensus"
)

// ErrPrunedLeaf is returned by GetLeaf when pos names a leaf that has
// already been pruned below the retained horizon.
var ErrPrunedLeaf = errors.New("store: leaf has been pruned")

// ErrNotALeaf is returned when pos names an internal (non-leaf) MMR node.
var ErrNotALeaf = errors.New("store: position is not a leaf")

// peaks returns the MMR peak positions (1-indexed, as used throughout this
// package) for a mountain range holding size total nodes, most significant
// peak first — the standard MMR "binary representation of the leaf count"
// decomposition.
func peaks(size uint64) []uint64 {
	if size == 0 {
		return nil
	}

	var result []uint64
	pos := size
	for pos > 0 {
		peakSize := allOnes(pos)
		result = append(result, peakSize)
		pos -= peakSize
	}
	return result
}

// allOnes returns the largest size of a perfect binary MMR subtree (2^n-1
// nodes) that fits within upper, i.e. the size of the leftmost peak of a
// range of upper nodes.
func allOnes(upper uint64) uint64 {
	size := uint64(1)
	for size<<1-1 <= upper {
		size <<= 1
	}
	return size - 1
}

// bagPeaks folds a list of peak hashes right-to-left into a single root,
// matching the reference "bag the peaks" MMR root algorithm: the
// rightmost two peaks are combined first, then folded leftward.
func bagPeaks(peakHashes []consensus.Hash) consensus.Hash {
	if len(peakHashes) == 0 {
		return consensus.ZeroHash
	}
	root := peakHashes[len(peakHashes)-1]
	for i := len(peakHashes) - 2; i >= 0; i-- {
		root = hashPair(peakHashes[i], root)
	}
	return root
}

func hashPair(left, right consensus.Hash) consensus.Hash {
	buf := make([]byte, 64)
	copy(buf[0:32], left[:])
	copy(buf[32:64], right[:])
	return consensus.Sum256(buf)
}

// posHeight returns the height (0 for a leaf) of the MMR node at 1-indexed
// position pos, by walking down from the peak containing it.
func posHeight(pos uint64) uint64 {
	if pos == 0 {
		return 0
	}
	x := pos
	for {
		size := allOnes(x)
		if size == x {
			return bitLen(size+1) - 1
		}
		left := allOnes(x - 1)
		x -= left + 1
	}
}

func bitLen(v uint64) uint64 {
	var n uint64
	for v > 0 {
		n++
		v >>= 1
	}
	return n
}

// PMMR is a prunable Merkle mountain range of fixed-size leaf elements,
// backed by a Batch so every append/prune is staged inside the enclosing
// extending scope and committed or discarded atomically with it
// (the "extending" scope contract).
type PMMR struct {
	table byte
	batch *Batch
}

// NewPMMR opens a PMMR view over table within batch.
func NewPMMR(table byte, batch *Batch) *PMMR {
	return &PMMR{table: table, batch: batch}
}

func posKey(pos uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, pos)
	return buf
}

const metaKey = "size"

// Size returns the current total node count (leaves plus internal nodes)
// of the mountain range.
func (m *PMMR) Size() (uint64, error) {
	v, err := m.batch.Get(m.table, []byte(metaKey))
	if err != nil {
		return 0, nil
	}
	return binary.BigEndian.Uint64(v), nil
}

func (m *PMMR) setSize(size uint64) {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, size)
	m.batch.Put(m.table, []byte(metaKey), buf)
}

// nodeHash reads the hash stored at 1-indexed position pos.
func (m *PMMR) nodeHash(pos uint64) (consensus.Hash, error) {
	v, err := m.batch.Get(m.table, posKey(pos))
	if err != nil {
		return consensus.ZeroHash, err
	}
	return consensus.HashFromBytes(v), nil
}

func (m *PMMR) putNodeHash(pos uint64, h consensus.Hash) {
	m.batch.Put(m.table, posKey(pos), h.Bytes())
}

// Append adds a new leaf with the given hash, inserting whatever parent
// nodes the MMR shape requires, and returns the leaf's 1-indexed position.
// Mirrors the standard "append to the leftmost incomplete mountain, merge
// upward while two peaks of equal height exist" MMR insertion algorithm.
func (m *PMMR) Append(leaf consensus.Hash) (uint64, error) {
	size, err := m.Size()
	if err != nil {
		return 0, err
	}

	pos := size + 1
	m.putNodeHash(pos, leaf)
	height := uint64(0)
	cur := leaf
	curPos := pos

	for peakHeight(size) == height {
		size++
		leftPos := curPos - (uint64(1) << (height + 1)) + 1
		leftHash, err := m.nodeHash(leftPos)
		if err != nil {
			break
		}
		parent := hashPair(leftHash, cur)
		parentPos := size + 1
		m.putNodeHash(parentPos, parent)
		cur = parent
		curPos = parentPos
		height++
		size++
	}

	size++
	m.setSize(size)
	return pos, nil
}

// peakHeight reports the height of the rightmost peak of a range currently
// holding size nodes, used by Append to know when to merge upward.
func peakHeight(size uint64) uint64 {
	if size == 0 {
		return 0
	}
	return posHeight(peaks(size)[len(peaks(size))-1])
}

// GetLeaf returns the hash stored at the leaf position pos, or
// ErrPrunedLeaf if it has been pruned.
func (m *PMMR) GetLeaf(pos uint64) (consensus.Hash, error) {
	h, err := m.nodeHash(pos)
	if err != nil {
		return consensus.ZeroHash, ErrPrunedLeaf
	}
	return h, nil
}

// Remove deletes the hash stored at pos from the batch; GetLeaf then
// reports ErrPrunedLeaf for that position.
func (m *PMMR) Remove(pos uint64) {
	m.batch.Delete(m.table, posKey(pos))
}

// PruneBelow removes every node position strictly below horizon, used
// after the cut-through horizon has passed to reclaim space for spent
// outputs and their proofs.
func (m *PMMR) PruneBelow(horizon uint64) {
	for pos := uint64(1); pos < horizon; pos++ {
		m.batch.Delete(m.table, posKey(pos))
	}
}

// Root computes the current MMR root by bagging the peaks.
func (m *PMMR) Root() (consensus.Hash, error) {
	size, err := m.Size()
	if err != nil {
		return consensus.ZeroHash, err
	}
	if size == 0 {
		return consensus.ZeroHash, nil
	}

	ps := peaks(size)
	hashes := make([]consensus.Hash, 0, len(ps))
	for _, p := range ps {
		h, err := m.nodeHash(p)
		if err != nil {
			continue
		}
		hashes = append(hashes, h)
	}
	return bagPeaks(hashes), nil
}

// Rewind truncates the range back to newSize nodes, discarding everything
// appended after a reorg's fork point. Positions above newSize are
// deleted; the meta size counter is reset.
func (m *PMMR) Rewind(newSize uint64) error {
	size, err := m.Size()
	if err != nil {
		return err
	}
	for pos := newSize + 1; pos <= size; pos++ {
		m.batch.Delete(m.table, posKey(pos))
	}
	m.setSize(newSize)
	return nil
}
