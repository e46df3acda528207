// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package chain

import (
	"bytes"
	"encoding/binary"
	"errors"

	"github.com/dblokhin/epic-go/consensus"
	"github.com/dblokhin/epic-go/store"
)

// ErrBlockNotFound is returned when a block or header lookup misses both
// the header index and the backing store.
var ErrBlockNotFound = errors.New("chain: block not found")

// storedHeader is the header-index entry persisted under
// store.TableHeader, enough to run fork-choice and header-only sync
// without touching full block bodies.
type storedHeader struct {
	Header          consensus.BlockHeader
	TotalDifficulty consensus.Difficulty
	OutputMMRSize   uint64
	KernelMMRSize   uint64
	ProofMMRSize    uint64
}

func heightKey(height uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, height)
	return buf
}

// putHeader persists a header-index entry keyed by hash. The height index
// is maintained separately by setHeightIndex: two headers can share a
// height during a fork, and only the header actually confirmed onto the
// active chain may own that height's slot.
func putHeader(s *store.Store, hash consensus.Hash, sh storedHeader) error {
	buf := sh.Header.Bytes()
	buf = append(buf, sh.TotalDifficulty.Bytes()...)
	sizes := make([]byte, 24)
	binary.BigEndian.PutUint64(sizes[0:8], sh.OutputMMRSize)
	binary.BigEndian.PutUint64(sizes[8:16], sh.KernelMMRSize)
	binary.BigEndian.PutUint64(sizes[16:24], sh.ProofMMRSize)
	buf = append(buf, sizes...)

	return s.Put(store.TableHeader, hash.Bytes(), buf)
}

// setHeightIndex records hash as the canonical header at height. Called
// only once a block is confirmed onto the active chain (genesis storage,
// a simple tip extension, or a reorg's winning branch) — never from
// header-only acceptance, which must not disturb the height index of
// whichever branch is currently active.
func setHeightIndex(s *store.Store, height uint64, hash consensus.Hash) error {
	return s.Put(store.TableHeader, heightKey(height), hash.Bytes())
}

func getHeaderByHash(s *store.Store, hash consensus.Hash) (storedHeader, error) {
	buf, err := s.Get(store.TableHeader, hash.Bytes())
	if err != nil {
		return storedHeader{}, ErrBlockNotFound
	}
	return decodeStoredHeader(buf)
}

func getHashAtHeight(s *store.Store, height uint64) (consensus.Hash, error) {
	buf, err := s.Get(store.TableHeader, heightKey(height))
	if err != nil {
		return consensus.ZeroHash, ErrBlockNotFound
	}
	return consensus.HashFromBytes(buf), nil
}

func decodeStoredHeader(buf []byte) (storedHeader, error) {
	var sh storedHeader
	r := bytes.NewReader(buf)

	if err := sh.Header.Read(r); err != nil {
		return sh, err
	}
	diff, err := consensus.ReadDifficulty(r)
	if err != nil {
		return sh, err
	}
	sh.TotalDifficulty = diff

	sizes := make([]byte, 24)
	if _, err := r.Read(sizes); err != nil {
		return sh, err
	}
	sh.OutputMMRSize = binary.BigEndian.Uint64(sizes[0:8])
	sh.KernelMMRSize = binary.BigEndian.Uint64(sizes[8:16])
	sh.ProofMMRSize = binary.BigEndian.Uint64(sizes[16:24])
	return sh, nil
}

// putBlockBody persists a full block body keyed by hash, separate from
// the header index so header-only sync never touches bodies.
func putBlockBody(s *store.Store, hash consensus.Hash, block *consensus.Block) error {
	return s.Put(store.TableBlock, hash.Bytes(), block.Bytes())
}

func getBlockBody(s *store.Store, hash consensus.Hash) (*consensus.Block, error) {
	buf, err := s.Get(store.TableBlock, hash.Bytes())
	if err != nil {
		return nil, ErrBlockNotFound
	}
	block := new(consensus.Block)
	if err := block.Read(bytes.NewReader(buf)); err != nil {
		return nil, err
	}
	return block, nil
}
