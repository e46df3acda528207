// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package store

import (
	"errors"
	"testing"

	"github.com/dblokhin/epic-go/consensus"
)

func testCommitment(b byte) consensus.Commitment {
	var c consensus.Commitment
	c[0] = b
	return c
}

func TestApplyBlockSpendsAppendedOutput(t *testing.T) {
	s := newTestStore(t)
	txs, batch := s.Extend()

	mint := &consensus.Block{
		Outputs: []consensus.Output{{Features: consensus.FeaturePlain, Commitment: testCommitment(1)}},
	}
	if err := txs.ApplyBlock(mint, 10, 0); err != nil {
		t.Fatalf("mint: %v", err)
	}

	spend := &consensus.Block{
		Inputs: []consensus.Input{{Commitment: testCommitment(1)}},
	}
	if err := txs.ApplyBlock(spend, 11, 0); err != nil {
		t.Fatalf("spend: %v", err)
	}

	if err := batch.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
}

func TestApplyBlockRejectsDoubleSpend(t *testing.T) {
	s := newTestStore(t)
	txs, _ := s.Extend()

	mint := &consensus.Block{
		Outputs: []consensus.Output{{Commitment: testCommitment(2)}},
	}
	if err := txs.ApplyBlock(mint, 10, 0); err != nil {
		t.Fatalf("mint: %v", err)
	}

	spend := &consensus.Block{Inputs: []consensus.Input{{Commitment: testCommitment(2)}}}
	if err := txs.ApplyBlock(spend, 11, 0); err != nil {
		t.Fatalf("first spend: %v", err)
	}

	if err := txs.ApplyBlock(spend, 12, 0); !errors.Is(err, consensus.ErrAlreadySpent) {
		t.Fatalf("expected ErrAlreadySpent on second spend, got %v", err)
	}
}

func TestApplyBlockRejectsUnknownInput(t *testing.T) {
	s := newTestStore(t)
	txs, _ := s.Extend()

	spend := &consensus.Block{Inputs: []consensus.Input{{Commitment: testCommitment(9)}}}
	if err := txs.ApplyBlock(spend, 1, 0); !errors.Is(err, consensus.ErrOutputNotFound) {
		t.Fatalf("expected ErrOutputNotFound, got %v", err)
	}
}

func TestApplyBlockRejectsImmatureCoinbase(t *testing.T) {
	s := newTestStore(t)
	txs, _ := s.Extend()

	mint := &consensus.Block{
		Outputs: []consensus.Output{{Features: consensus.FeatureCoinbase, Commitment: testCommitment(3)}},
	}
	if err := txs.ApplyBlock(mint, 100, 0); err != nil {
		t.Fatalf("mint: %v", err)
	}

	const maturity = 1440
	spendEarly := &consensus.Block{Inputs: []consensus.Input{{Commitment: testCommitment(3)}}}
	if err := txs.ApplyBlock(spendEarly, 150, maturity); !errors.Is(err, consensus.ErrImmatureCoinbase) {
		t.Fatalf("expected ErrImmatureCoinbase, got %v", err)
	}

	if err := txs.ApplyBlock(spendEarly, 100+maturity, maturity); err != nil {
		t.Fatalf("expected mature spend to succeed, got %v", err)
	}
}

func TestCompactSpentDropsSpentLeavesOnly(t *testing.T) {
	s := newTestStore(t)
	txs, batch := s.Extend()

	block := &consensus.Block{
		Outputs: []consensus.Output{
			{Commitment: testCommitment(10)},
			{Commitment: testCommitment(11)},
		},
	}
	if err := txs.ApplyBlock(block, 1, 0); err != nil {
		t.Fatalf("mint: %v", err)
	}
	spend := &consensus.Block{Inputs: []consensus.Input{{Commitment: testCommitment(10)}}}
	if err := txs.ApplyBlock(spend, 2, 0); err != nil {
		t.Fatalf("spend: %v", err)
	}

	cutoff, err := txs.Outputs.Size()
	if err != nil {
		t.Fatalf("size: %v", err)
	}
	if err := txs.CompactSpent(cutoff); err != nil {
		t.Fatalf("compact: %v", err)
	}
	if err := batch.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	// The still-unspent leaf must still resolve through the live index.
	txs2, _ := s.Extend()
	if _, ok := txs2.getCommitEntry(testCommitment(11)); !ok {
		t.Fatal("expected unspent output's commit entry to survive compaction")
	}
}

func TestSnapshotAndStageSnapshotRoundTrip(t *testing.T) {
	s := newTestStore(t)
	txs, batch := s.Extend()

	block := &consensus.Block{
		Outputs: []consensus.Output{
			{Commitment: testCommitment(20)},
			{Commitment: testCommitment(21)},
		},
		Kernels: []consensus.TxKernel{{Fee: 5}},
	}
	if err := txs.ApplyBlock(block, 5, 0); err != nil {
		t.Fatalf("apply: %v", err)
	}
	wantOut, wantProof, wantKernel, err := txs.Roots()
	if err != nil {
		t.Fatalf("roots: %v", err)
	}
	if err := batch.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	archive, err := s.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	wire := archive.Bytes()
	decoded, err := DecodeArchive(wire)
	if err != nil {
		t.Fatalf("decode archive: %v", err)
	}

	dst := newTestStore(t)
	staged, stageBatch, err := dst.StageSnapshot(decoded)
	if err != nil {
		t.Fatalf("stage snapshot: %v", err)
	}

	gotOut, gotProof, gotKernel, err := staged.Roots()
	if err != nil {
		t.Fatalf("staged roots: %v", err)
	}
	if gotOut != wantOut || gotProof != wantProof || gotKernel != wantKernel {
		t.Fatal("staged snapshot roots don't match source")
	}

	if err := stageBatch.Commit(); err != nil {
		t.Fatalf("commit staged snapshot: %v", err)
	}
}

func TestDumpLiveCommitIndexDropsSpentEntries(t *testing.T) {
	s := newTestStore(t)
	txs, batch := s.Extend()

	block := &consensus.Block{
		Outputs: []consensus.Output{
			{Commitment: testCommitment(30)},
			{Commitment: testCommitment(31)},
		},
	}
	if err := txs.ApplyBlock(block, 1, 0); err != nil {
		t.Fatalf("mint: %v", err)
	}
	spend := &consensus.Block{Inputs: []consensus.Input{{Commitment: testCommitment(30)}}}
	if err := txs.ApplyBlock(spend, 2, 0); err != nil {
		t.Fatalf("spend: %v", err)
	}
	if err := batch.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	buf, err := dumpLiveCommitIndex(s)
	if err != nil {
		t.Fatalf("dump live index: %v", err)
	}

	dst := newTestStore(t)
	loadBatch := dst.NewBatch()
	if err := loadTable(loadBatch, TableCommitIndex, buf); err != nil {
		t.Fatalf("load dumped index: %v", err)
	}
	if _, err := loadBatch.Get(TableCommitIndex, testCommitment(30)[:]); err == nil {
		t.Fatal("expected spent commitment 30 to be dropped from the live index dump")
	}
	if _, err := loadBatch.Get(TableCommitIndex, testCommitment(31)[:]); err != nil {
		t.Fatalf("expected unspent commitment 31 present in the live index dump: %v", err)
	}
}
