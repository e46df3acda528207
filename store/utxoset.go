// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package store

import (
	"encoding/binary"

	"github.com/dblokhin/epic-go/consensus"
)

// TxHashSet is the three PMMRs (outputs, range proofs, kernels) plus the
// unspent-output bitmap that together make up the prunable UTXO state
// referenced by a block header's root hashes, matching the
// "txhashset" grouping.
type TxHashSet struct {
	Outputs *PMMR
	Proofs  *PMMR
	Kernels *PMMR
	Spent   *Bitmap

	batch *Batch
}

// Extend opens a write scope (an "extending" session) against s, returning
// a TxHashSet bound to batch and the batch itself so the caller can commit
// or discard the whole scope atomically.
func (s *Store) Extend() (*TxHashSet, *Batch) {
	batch := s.NewBatch()
	return &TxHashSet{
		Outputs: NewPMMR(TableOutputMMR, batch),
		Proofs:  NewPMMR(TableProofMMR, batch),
		Kernels: NewPMMR(TableKernelMMR, batch),
		Spent:   NewBitmap(TableBitmap, batch),
		batch:   batch,
	}, batch
}

// commitEntry is the commitment index's value: the output's leaf
// position, the height it was mined at (for coinbase-maturity checks),
// and whether it pays a coinbase.
type commitEntry struct {
	pos      uint64
	height   uint64
	coinbase bool
}

const commitEntrySize = 8 + 8 + 1

func (e commitEntry) bytes() []byte {
	buf := make([]byte, commitEntrySize)
	binary.BigEndian.PutUint64(buf[0:8], e.pos)
	binary.BigEndian.PutUint64(buf[8:16], e.height)
	if e.coinbase {
		buf[16] = 1
	}
	return buf
}

func decodeCommitEntry(buf []byte) (commitEntry, error) {
	if len(buf) != commitEntrySize {
		return commitEntry{}, consensus.ErrCorruptedData
	}
	return commitEntry{
		pos:      binary.BigEndian.Uint64(buf[0:8]),
		height:   binary.BigEndian.Uint64(buf[8:16]),
		coinbase: buf[16] != 0,
	}, nil
}

func (t *TxHashSet) putCommitEntry(c consensus.Commitment, e commitEntry) {
	t.batch.Put(TableCommitIndex, c[:], e.bytes())
}

func (t *TxHashSet) getCommitEntry(c consensus.Commitment) (commitEntry, bool) {
	buf, err := t.batch.Get(TableCommitIndex, c[:])
	if err != nil {
		return commitEntry{}, false
	}
	e, err := decodeCommitEntry(buf)
	if err != nil {
		return commitEntry{}, false
	}
	return e, true
}

// ApplyBlock resolves every input against the commitment index, enforcing
// that it names a currently-unspent output old enough to satisfy
// coinbaseMaturity if it pays a coinbase, then appends block's outputs and
// kernels to the respective PMMRs and indexes the new outputs by
// commitment for future spends to resolve against.
func (t *TxHashSet) ApplyBlock(block *consensus.Block, height uint64, coinbaseMaturity uint64) error {
	for _, in := range block.Inputs {
		entry, ok := t.getCommitEntry(in.Commitment)
		if !ok {
			return consensus.ErrOutputNotFound
		}

		spent, err := t.Spent.IsSet(entry.pos)
		if err != nil {
			return err
		}
		if !spent {
			return consensus.ErrAlreadySpent
		}

		if entry.coinbase && height < entry.height+coinbaseMaturity {
			return consensus.ErrImmatureCoinbase
		}

		if err := t.Spent.Clear(entry.pos); err != nil {
			return err
		}
	}

	for _, out := range block.Outputs {
		pos, err := t.Outputs.Append(consensus.Sum256(out.HashBytes()))
		if err != nil {
			return err
		}
		if _, err := t.Proofs.Append(consensus.Sum256(out.RangeProof)); err != nil {
			return err
		}
		if err := t.Spent.Set(pos); err != nil {
			return err
		}
		t.putCommitEntry(out.Commitment, commitEntry{
			pos:      pos,
			height:   height,
			coinbase: out.Features == consensus.FeatureCoinbase,
		})
	}

	for _, k := range block.Kernels {
		if _, err := t.Kernels.Append(k.Hash()); err != nil {
			return err
		}
	}

	return nil
}

// Roots returns the current Merkle roots of all three ranges, matching the
// triple the block header commits to.
func (t *TxHashSet) Roots() (outputRoot, proofRoot, kernelRoot consensus.Hash, err error) {
	if outputRoot, err = t.Outputs.Root(); err != nil {
		return
	}
	if proofRoot, err = t.Proofs.Root(); err != nil {
		return
	}
	kernelRoot, err = t.Kernels.Root()
	return
}

// Rewind truncates all three PMMRs back to the sizes recorded at a prior
// block, undoing every append performed since — the UTXO-set half of a
// chain reorg.
func (t *TxHashSet) Rewind(outputSize, proofSize, kernelSize uint64) error {
	if err := t.Outputs.Rewind(outputSize); err != nil {
		return err
	}
	if err := t.Proofs.Rewind(proofSize); err != nil {
		return err
	}
	return t.Kernels.Rewind(kernelSize)
}

// CompactSpent drops the stored leaf hashes for every output/proof pair at
// a position below cutoffSize whose bitmap bit shows it spent: once a
// spend is buried deeper than the cut-through horizon, its leaf data is no
// longer needed to prove the current UTXO root, only to replay history
// that compaction deliberately discards.
func (t *TxHashSet) CompactSpent(cutoffSize uint64) error {
	for pos := uint64(1); pos < cutoffSize; pos++ {
		if posHeight(pos) != 0 {
			continue // internal MMR node: nothing to prune independently
		}
		spent, err := t.Spent.IsSet(pos)
		if err != nil {
			return err
		}
		if spent {
			continue // still unspent: never eligible for compaction
		}
		t.Outputs.Remove(pos)
		t.Proofs.Remove(pos)
	}
	return nil
}

// Archive is the wire-format snapshot of the full txhashset state
// exchanged during state sync: every retained output/proof/kernel MMR
// node, the spent bitmap, and the commitment index entries for every
// currently unspent output — the only index entries a node continuing
// sync from this point forward can ever need to resolve an input against.
type Archive struct {
	OutputMMR []byte
	ProofMMR  []byte
	KernelMMR []byte
	Spent     []byte
	LiveIndex []byte
}

// Bytes serializes a into the opaque blob carried by the wire
// TxHashSetArchive message.
func (a *Archive) Bytes() []byte {
	var buf []byte
	lenBuf := make([]byte, 8)
	for _, section := range [][]byte{a.OutputMMR, a.ProofMMR, a.KernelMMR, a.Spent, a.LiveIndex} {
		binary.BigEndian.PutUint64(lenBuf, uint64(len(section)))
		buf = append(buf, lenBuf...)
		buf = append(buf, section...)
	}
	return buf
}

// DecodeArchive deserializes an Archive written by Bytes.
func DecodeArchive(buf []byte) (*Archive, error) {
	a := new(Archive)
	for _, dst := range []*[]byte{&a.OutputMMR, &a.ProofMMR, &a.KernelMMR, &a.Spent, &a.LiveIndex} {
		if len(buf) < 8 {
			return nil, consensus.ErrCorruptedData
		}
		n := binary.BigEndian.Uint64(buf[:8])
		buf = buf[8:]
		if uint64(len(buf)) < n {
			return nil, consensus.ErrCorruptedData
		}
		*dst = buf[:n]
		buf = buf[n:]
	}
	return a, nil
}

// Snapshot captures the store's entire current txhashset state into an
// Archive, for serving to a peer that requested state sync.
func (s *Store) Snapshot() (*Archive, error) {
	outBuf, err := dumpTable(s, TableOutputMMR)
	if err != nil {
		return nil, err
	}
	proofBuf, err := dumpTable(s, TableProofMMR)
	if err != nil {
		return nil, err
	}
	kernelBuf, err := dumpTable(s, TableKernelMMR)
	if err != nil {
		return nil, err
	}
	spentBuf, err := dumpTable(s, TableBitmap)
	if err != nil {
		return nil, err
	}
	indexBuf, err := dumpLiveCommitIndex(s)
	if err != nil {
		return nil, err
	}

	return &Archive{
		OutputMMR: outBuf,
		ProofMMR:  proofBuf,
		KernelMMR: kernelBuf,
		Spent:     spentBuf,
		LiveIndex: indexBuf,
	}, nil
}

// dumpLiveCommitIndex serializes only the commitment-index entries whose
// position the spent bitmap still shows unspent: a spent entry can never
// be referenced by a future input, so it is dropped from the archive
// rather than carried forward forever.
func dumpLiveCommitIndex(s *Store) ([]byte, error) {
	bitmap := NewBitmap(TableBitmap, s.NewBatch())

	it := s.Iterator(TableCommitIndex)
	defer it.Release()

	var buf []byte
	lenBuf := make([]byte, 4)
	for it.Next() {
		entry, err := decodeCommitEntry(it.Value())
		if err != nil {
			return nil, err
		}
		unspent, err := bitmap.IsSet(entry.pos)
		if err != nil {
			return nil, err
		}
		if !unspent {
			continue
		}

		key, val := it.Key(), it.Value()
		binary.BigEndian.PutUint32(lenBuf, uint32(len(key)))
		buf = append(buf, lenBuf...)
		buf = append(buf, key...)
		binary.BigEndian.PutUint32(lenBuf, uint32(len(val)))
		buf = append(buf, lenBuf...)
		buf = append(buf, val...)
	}
	return buf, it.Error()
}

// dumpTable serializes every (key, value) pair currently committed under
// table as a flat length-prefixed list.
func dumpTable(s *Store, table byte) ([]byte, error) {
	it := s.Iterator(table)
	defer it.Release()

	var buf []byte
	lenBuf := make([]byte, 4)
	for it.Next() {
		key, val := it.Key(), it.Value()
		binary.BigEndian.PutUint32(lenBuf, uint32(len(key)))
		buf = append(buf, lenBuf...)
		buf = append(buf, key...)
		binary.BigEndian.PutUint32(lenBuf, uint32(len(val)))
		buf = append(buf, lenBuf...)
		buf = append(buf, val...)
	}
	return buf, it.Error()
}

func loadTable(batch *Batch, table byte, data []byte) error {
	for len(data) > 0 {
		if len(data) < 4 {
			return consensus.ErrCorruptedData
		}
		klen := binary.BigEndian.Uint32(data[:4])
		data = data[4:]
		if uint64(len(data)) < uint64(klen)+4 {
			return consensus.ErrCorruptedData
		}
		key := data[:klen]
		data = data[klen:]

		vlen := binary.BigEndian.Uint32(data[:4])
		data = data[4:]
		if uint64(len(data)) < uint64(vlen) {
			return consensus.ErrCorruptedData
		}
		val := data[:vlen]
		data = data[vlen:]

		batch.Put(table, key, val)
	}
	return nil
}

// StageSnapshot opens a write scope that replaces the store's entire
// txhashset state with archive's contents, without committing: callers
// validate the staged roots against a trusted header before deciding to
// commit or discard, the same all-or-nothing "extending" contract Extend
// uses for ordinary block application.
func (s *Store) StageSnapshot(archive *Archive) (*TxHashSet, *Batch, error) {
	batch := s.NewBatch()

	tables := []byte{TableOutputMMR, TableProofMMR, TableKernelMMR, TableBitmap, TableCommitIndex}
	for _, table := range tables {
		it := s.Iterator(table)
		for it.Next() {
			batch.Delete(table, append([]byte(nil), it.Key()...))
		}
		err := it.Error()
		it.Release()
		if err != nil {
			return nil, nil, err
		}
	}

	sections := []struct {
		table byte
		data  []byte
	}{
		{TableOutputMMR, archive.OutputMMR},
		{TableProofMMR, archive.ProofMMR},
		{TableKernelMMR, archive.KernelMMR},
		{TableBitmap, archive.Spent},
		{TableCommitIndex, archive.LiveIndex},
	}
	for _, sec := range sections {
		if err := loadTable(batch, sec.table, sec.data); err != nil {
			return nil, nil, err
		}
	}

	return &TxHashSet{
		Outputs: NewPMMR(TableOutputMMR, batch),
		Proofs:  NewPMMR(TableProofMMR, batch),
		Kernels: NewPMMR(TableKernelMMR, batch),
		Spent:   NewBitmap(TableBitmap, batch),
		batch:   batch,
	}, batch, nil
}
