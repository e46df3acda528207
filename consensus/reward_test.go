// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package consensus

import "testing"

func TestRewardAtHeightFirstEra(t *testing.T) {
	got := RewardAtHeight(1)
	want := 16 * EpicBase
	if got != want {
		t.Fatalf("want %d got %d", want, got)
	}
}

func TestRewardAtHeightLastFixedEra(t *testing.T) {
	lastBoundary := RewardEraHeights[len(RewardEraHeights)-1]
	got := RewardAtHeight(lastBoundary)
	want := BaseRewardEra6Onwards()
	if got != want {
		t.Fatalf("want %d got %d", want, got)
	}
}

func TestRewardHalvesAfterInterval(t *testing.T) {
	lastBoundary := RewardEraHeights[len(RewardEraHeights)-1]
	first := RewardAtHeight(lastBoundary)
	afterOneHalving := RewardAtHeight(lastBoundary + HalvingIntervalHeight)
	if afterOneHalving != first/2 {
		t.Fatalf("want %d got %d", first/2, afterOneHalving)
	}
}

func TestFoundationHeightAutomatedTesting(t *testing.T) {
	if !IsFoundationHeight(AutomatedTesting, AutomatedTestingFoundationHeight) {
		t.Fatal("expected foundation height at AutomatedTestingFoundationHeight")
	}
	if IsFoundationHeight(AutomatedTesting, AutomatedTestingFoundationHeight+1) {
		t.Fatal("did not expect a foundation height one block later")
	}
}

func TestRewardFoundationAtHeightNonFoundation(t *testing.T) {
	if got := RewardFoundationAtHeight(AutomatedTesting, 1); got != 0 {
		t.Fatalf("expected zero levy at non-foundation height, got %d", got)
	}
}

func TestMinerRewardAtFoundationHeightDeductsLevy(t *testing.T) {
	height := AutomatedTestingFoundationHeight
	total := RewardAtHeight(height)
	levy := RewardFoundationAtHeight(AutomatedTesting, height)
	miner := MinerRewardAtHeight(AutomatedTesting, height, 0)

	if levy == 0 {
		t.Fatal("expected non-zero levy at a foundation height")
	}
	if miner != total-levy {
		t.Fatalf("want %d got %d", total-levy, miner)
	}
}
