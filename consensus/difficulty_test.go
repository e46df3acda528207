// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package consensus

import "testing"

func TestDifficultyGreaterThanUsesCuckatooOnly(t *testing.T) {
	a := Difficulty{AlgoCuckatoo: 10, AlgoRandomX: 1_000_000}
	b := Difficulty{AlgoCuckatoo: 20, AlgoRandomX: 1}

	if a.GreaterThan(b) {
		t.Fatal("a should not be greater: lower Cuckatoo component despite huge RandomX component")
	}
	if !b.GreaterThan(a) {
		t.Fatal("b should be greater: higher Cuckatoo component")
	}
}

func TestDifficultyAddSub(t *testing.T) {
	a := Difficulty{AlgoCuckatoo: 10}
	b := Difficulty{AlgoCuckatoo: 5, AlgoRandomX: 2}

	sum := a.Add(b)
	if sum.Get(AlgoCuckatoo) != 15 || sum.Get(AlgoRandomX) != 2 {
		t.Fatalf("unexpected sum: %v", sum)
	}

	diff := sum.Sub(b)
	if diff.Get(AlgoCuckatoo) != 10 || diff.Get(AlgoRandomX) != 0 {
		t.Fatalf("unexpected difference: %v", diff)
	}
}

func TestNextDifficultyEra0StableWindow(t *testing.T) {
	// A window with a constant 60s spacing between every block at the
	// target difficulty should leave the difficulty unchanged.
	window := make([]HeaderInfo, DifficultyAdjustWindow+1)
	for i := range window {
		window[i] = HeaderInfo{
			Timestamp:  int64(i) * int64(BlockTimeSec),
			Difficulty: 1000,
		}
	}

	got := NextDifficultyEra0(AlgoCuckatoo, window)
	if got != 1000 {
		t.Fatalf("expected stable difficulty of 1000, got %d", got)
	}
}

func TestNextDifficultyEra0FasterBlocksRaiseDifficulty(t *testing.T) {
	window := make([]HeaderInfo, DifficultyAdjustWindow+1)
	for i := range window {
		window[i] = HeaderInfo{
			// Half the target spacing: blocks arriving twice as fast.
			Timestamp:  int64(i) * int64(BlockTimeSec) / 2,
			Difficulty: 1000,
		}
	}

	got := NextDifficultyEra0(AlgoCuckatoo, window)
	if got <= 1000 {
		t.Fatalf("expected difficulty to rise when blocks arrive faster than target, got %d", got)
	}
}

func TestGraphWeightIncreasesWithEdgeBits(t *testing.T) {
	low := GraphWeight(Mainnet, 0, BaseEdgeBits)
	high := GraphWeight(Mainnet, 0, BaseEdgeBits+4)
	if high <= low {
		t.Fatalf("expected graph weight to grow with edge_bits: low=%d high=%d", low, high)
	}
}
