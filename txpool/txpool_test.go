// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package txpool

import (
	"testing"
	"time"

	"github.com/dblokhin/epic-go/consensus"
)

func sampleTx(seed byte) consensus.Transaction {
	return consensus.Transaction{
		Kernels: []consensus.TxKernel{
			{Fee: uint64(seed) + 1, ExcessCommit: consensus.Commitment{seed}},
		},
	}
}

func TestAddToPoolRejectsDuplicate(t *testing.T) {
	p := New(10)
	tx := sampleTx(1)

	if err := p.AddToPool(tx); err != nil {
		t.Fatalf("unexpected error on first add: %v", err)
	}
	if err := p.AddToPool(tx); err != ErrAlreadyInPool {
		t.Fatalf("expected ErrAlreadyInPool, got %v", err)
	}
	if p.Size() != 1 {
		t.Fatalf("expected pool size 1, got %d", p.Size())
	}
}

func TestAddToPoolRejectsWhenFull(t *testing.T) {
	p := New(1)
	if err := p.AddToPool(sampleTx(1)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := p.AddToPool(sampleTx(2)); err != ErrPoolFull {
		t.Fatalf("expected ErrPoolFull, got %v", err)
	}
}

func TestPrepareMineableTransactionsRespectsWeight(t *testing.T) {
	p := New(10)
	for i := byte(1); i <= 3; i++ {
		if err := p.AddToPool(sampleTx(i)); err != nil {
			t.Fatalf("add tx %d: %v", i, err)
		}
	}

	selected, err := p.PrepareMineableTransactions(1 << 30)
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if len(selected) != 3 {
		t.Fatalf("expected all 3 transactions selected, got %d", len(selected))
	}
}

func TestReconcileBlockRemovesIncluded(t *testing.T) {
	p := New(10)
	tx := sampleTx(1)
	if err := p.AddToPool(tx); err != nil {
		t.Fatalf("add: %v", err)
	}

	block := &consensus.Block{
		Kernels: []consensus.TxKernel{tx.Kernels[0]},
	}
	p.ReconcileBlock(block)

	if p.Size() != 0 {
		t.Fatalf("expected pool emptied after reconcile, got size %d", p.Size())
	}
}

func TestStempoolExpiry(t *testing.T) {
	sp := NewStempool(42)
	tx := sampleTx(1)
	start := time.Unix(1000, 0)

	sp.AddToStem(tx, start, 5*time.Second)
	if got := sp.Expired(start.Add(2 * time.Second)); len(got) != 0 {
		t.Fatalf("expected no expired txs yet, got %d", len(got))
	}

	expired := sp.Expired(start.Add(10 * time.Second))
	if len(expired) != 1 {
		t.Fatalf("expected 1 expired tx, got %d", len(expired))
	}
	if sp.Size() != 0 {
		t.Fatal("expected stempool empty after expiry collection")
	}
}

func TestRollEpochIsDeterministicForSeed(t *testing.T) {
	sp := NewStempool(7)
	sp.RollEpoch(time.Unix(0, 0).Add(dandelionEpoch))
	first := sp.IsStemRelay()

	sp2 := NewStempool(7)
	sp2.RollEpoch(time.Unix(0, 0).Add(dandelionEpoch))
	second := sp2.IsStemRelay()

	if first != second {
		t.Fatal("expected same seed to produce same initial relay role")
	}
}
