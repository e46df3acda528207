// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package chain

import (
	"testing"

	"github.com/dblokhin/epic-go/consensus"
	"github.com/dblokhin/epic-go/store"
)

func newTestChain(t *testing.T) *Chain {
	t.Helper()
	s, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	genesis := GenesisTestnet
	c, err := New(consensus.AutomatedTesting, s, &genesis, nil)
	if err != nil {
		t.Fatalf("new chain: %v", err)
	}
	return c
}

// childHeader builds an empty-bodied header extending parent, with the
// given additional Cuckatoo work. Every test block in this file is empty
// (no inputs/outputs/kernels), so every header's MMR roots stay at the
// zero root throughout — extendUTXO/reorg's root check is exercised
// without needing a cryptographically valid block body.
func childHeader(parent storedHeader, work uint64) (consensus.Hash, storedHeader) {
	header := consensus.BlockHeader{
		Height:   parent.Header.Height + 1,
		PrevHash: parent.Header.Hash(),
	}
	total := parent.TotalDifficulty.Add(consensus.Difficulty{consensus.AlgoCuckatoo: work})
	header.PoW.TotalDifficulty = total

	sh := storedHeader{
		Header:          header,
		TotalDifficulty: total,
		OutputMMRSize:   parent.OutputMMRSize,
		KernelMMRSize:   parent.KernelMMRSize,
		ProofMMRSize:    parent.ProofMMRSize,
	}
	return header.Hash(), sh
}

func indexHeader(t *testing.T, c *Chain, hash consensus.Hash, sh storedHeader, block *consensus.Block) {
	t.Helper()
	if err := putHeader(c.store, hash, sh); err != nil {
		t.Fatalf("putHeader: %v", err)
	}
	if err := putBlockBody(c.store, hash, block); err != nil {
		t.Fatalf("putBlockBody: %v", err)
	}
}

func TestExtendTipMovesHead(t *testing.T) {
	c := newTestChain(t)
	genesisHash := c.tip.Hash
	genesis, err := getHeaderByHash(c.store, genesisHash)
	if err != nil {
		t.Fatalf("get genesis: %v", err)
	}

	hash1, sh1 := childHeader(genesis, 10)
	indexHeader(t, c, hash1, sh1, &consensus.Block{Header: sh1.Header})

	if err := c.applyForkChoice(hash1, sh1); err != nil {
		t.Fatalf("applyForkChoice: %v", err)
	}

	if c.tip.Hash != hash1 {
		t.Fatalf("expected tip to move to height-1 block, got height=%d", c.tip.Height)
	}
	if c.tip.Height != 1 {
		t.Fatalf("expected tip height 1, got %d", c.tip.Height)
	}
}

func TestReorgSwitchesToHeavierBranch(t *testing.T) {
	c := newTestChain(t)
	genesisHash := c.tip.Hash
	genesis, err := getHeaderByHash(c.store, genesisHash)
	if err != nil {
		t.Fatalf("get genesis: %v", err)
	}

	// Branch A: one light block, becomes the tip first.
	hashA1, shA1 := childHeader(genesis, 10)
	indexHeader(t, c, hashA1, shA1, &consensus.Block{Header: shA1.Header})
	if err := c.applyForkChoice(hashA1, shA1); err != nil {
		t.Fatalf("extend to branch A: %v", err)
	}
	if c.tip.Hash != hashA1 {
		t.Fatal("expected branch A to become tip")
	}

	// Branch B: forks from genesis too, accumulates more total work over
	// two blocks than branch A's single block carries.
	hashB1, shB1 := childHeader(genesis, 5)
	indexHeader(t, c, hashB1, shB1, &consensus.Block{Header: shB1.Header})
	// shB1 alone is lighter than the current tip; accepting it must not
	// move the tip.
	if err := c.applyForkChoice(hashB1, shB1); err != nil {
		t.Fatalf("index branch B block 1: %v", err)
	}
	if c.tip.Hash != hashA1 {
		t.Fatal("lighter side branch must not move the tip")
	}

	hashB2, shB2 := childHeader(shB1, 50)
	indexHeader(t, c, hashB2, shB2, &consensus.Block{Header: shB2.Header})

	if err := c.applyForkChoice(hashB2, shB2); err != nil {
		t.Fatalf("reorg onto branch B: %v", err)
	}

	if c.tip.Hash != hashB2 {
		t.Fatalf("expected reorg onto branch B's tip, got hash=%x height=%d", c.tip.Hash.Bytes()[:4], c.tip.Height)
	}
	if c.tip.Height != 2 {
		t.Fatalf("expected tip height 2 after reorg, got %d", c.tip.Height)
	}
}

func TestCommonAncestorFindsForkPoint(t *testing.T) {
	c := newTestChain(t)
	genesisHash := c.tip.Hash
	genesis, err := getHeaderByHash(c.store, genesisHash)
	if err != nil {
		t.Fatalf("get genesis: %v", err)
	}

	hashA1, shA1 := childHeader(genesis, 10)
	indexHeader(t, c, hashA1, shA1, &consensus.Block{Header: shA1.Header})
	hashA2, shA2 := childHeader(shA1, 10)
	indexHeader(t, c, hashA2, shA2, &consensus.Block{Header: shA2.Header})

	hashB1, shB1 := childHeader(genesis, 5)
	indexHeader(t, c, hashB1, shB1, &consensus.Block{Header: shB1.Header})

	ancestor, err := c.commonAncestor(hashA2, hashB1)
	if err != nil {
		t.Fatalf("commonAncestor: %v", err)
	}
	if ancestor != genesisHash {
		t.Fatalf("expected genesis as common ancestor, got %x", ancestor.Bytes()[:4])
	}
}
