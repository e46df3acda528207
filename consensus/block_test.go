// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package consensus

import (
	"bytes"
	"testing"
)

func sampleHeader() BlockHeader {
	nonces := make([]uint64, ProofSize)
	for i := range nonces {
		nonces[i] = uint64(i)
	}

	return BlockHeader{
		Version:        7,
		Height:         42,
		PrevHash:       Sum256([]byte("prev")),
		PrevRoot:       Sum256([]byte("prev-root")),
		OutputRoot:     Sum256([]byte("output-root")),
		RangeProofRoot: Sum256([]byte("rproof-root")),
		KernelRoot:     Sum256([]byte("kernel-root")),
		OutputMMRSize:  10,
		KernelMMRSize:  4,
		Timestamp:      1_700_000_000,
		Policy:         1,
		Bottles:        Bottles{AlgoRandomX: 5, AlgoProgPow: 3},
		PrevTimespan:   59,
		PoW: ProofOfWork{
			TotalDifficulty:  Difficulty{AlgoCuckatoo: 100, AlgoRandomX: 5000},
			SecondaryScaling: 100,
			Nonce:            123456,
			Proof: Proof{
				Algo:     AlgoCuckatoo,
				EdgeBits: 31,
				Nonces:   nonces,
			},
		},
	}
}

func TestBlockHeaderRoundTrip(t *testing.T) {
	h := sampleHeader()
	buf := h.Bytes()

	var got BlockHeader
	if err := got.Read(bytes.NewReader(buf)); err != nil {
		t.Fatalf("Read: %v", err)
	}

	if got.Height != h.Height || got.Version != h.Version || got.Timestamp != h.Timestamp {
		t.Fatalf("scalar fields mismatch: got %+v want %+v", got, h)
	}
	if got.PoW.Nonce != h.PoW.Nonce {
		t.Fatalf("nonce mismatch: got %d want %d", got.PoW.Nonce, h.PoW.Nonce)
	}
	if len(got.PoW.Proof.Nonces) != len(h.PoW.Proof.Nonces) {
		t.Fatalf("proof nonce count mismatch: got %d want %d", len(got.PoW.Proof.Nonces), len(h.PoW.Proof.Nonces))
	}
	for i := range h.PoW.Proof.Nonces {
		if got.PoW.Proof.Nonces[i] != h.PoW.Proof.Nonces[i] {
			t.Fatalf("nonce %d mismatch: got %d want %d", i, got.PoW.Proof.Nonces[i], h.PoW.Proof.Nonces[i])
		}
	}
}

func TestBlockHeaderHashDeterministic(t *testing.T) {
	h := sampleHeader()
	h1 := h.Hash()
	h2 := h.Hash()
	if h1 != h2 {
		t.Fatal("hash must be deterministic for identical header")
	}

	h.PoW.Nonce++
	if h.Hash() == h1 {
		t.Fatal("changing the nonce must change the header hash")
	}
}

func TestTransactionSortIsStable(t *testing.T) {
	tx := Transaction{
		Inputs: []Input{
			{Commitment: Commitment{0x02}},
			{Commitment: Commitment{0x01}},
		},
	}
	tx.Sort()
	if tx.Inputs[0].Commitment[0] != 0x01 {
		t.Fatalf("expected inputs sorted ascending by commitment, got %+v", tx.Inputs)
	}
}

func TestCutThrough(t *testing.T) {
	shared := Commitment{0xAA}
	inputs := []Input{{Commitment: shared}, {Commitment: Commitment{0xBB}}}
	outputs := []Output{{Commitment: shared}, {Commitment: Commitment{0xCC}}}

	keepIn, keepOut := CutThrough(inputs, outputs)

	if len(keepIn) != 1 || keepIn[0].Commitment != (Commitment{0xBB}) {
		t.Fatalf("expected only the non cut-through input to remain, got %+v", keepIn)
	}
	if len(keepOut) != 1 || keepOut[0].Commitment != (Commitment{0xCC}) {
		t.Fatalf("expected only the non cut-through output to remain, got %+v", keepOut)
	}
}

func TestBlockRoundTrip(t *testing.T) {
	b := Block{
		Header: sampleHeader(),
		Outputs: []Output{
			{Features: FeatureCoinbase, Commitment: Commitment{0x01}, RangeProof: []byte{1, 2, 3}},
		},
		Kernels: []TxKernel{
			{Features: FeatureCoinbase, ExcessCommit: Commitment{0x02}, ExcessSig: []byte{4, 5, 6}},
		},
	}

	buf := b.Bytes()
	var got Block
	if err := got.Read(bytes.NewReader(buf)); err != nil {
		t.Fatalf("Read: %v", err)
	}

	if len(got.Outputs) != 1 || got.Outputs[0].Commitment != b.Outputs[0].Commitment {
		t.Fatalf("output mismatch: %+v", got.Outputs)
	}
	if _, _, err := got.Coinbase(); err != nil {
		t.Fatalf("Coinbase: %v", err)
	}
}
