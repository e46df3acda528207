// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package consensus

// RewardAtHeight returns the fixed block subsidy at height, piecewise per
// the era table for heights below the last era boundary, then halving
// every HalvingIntervalHeight blocks from BaseRewardEra6Onwards.
func RewardAtHeight(height uint64) uint64 {
	for i, bound := range RewardEraHeights {
		if height < bound {
			return RewardEraAmounts[i]
		}
	}

	base := BaseRewardEra6Onwards()
	last := RewardEraHeights[len(RewardEraHeights)-1]
	halvings := (height - last) / HalvingIntervalHeight
	if halvings >= 63 {
		return 0
	}
	return base >> halvings
}

// IsFoundationHeight reports whether height is a scheduled foundation-levy
// height for chain type ct.
func IsFoundationHeight(ct ChainType, height uint64) bool {
	if height == 0 {
		return false
	}
	return height%ct.FoundationHeight() == 0
}

// FoundationIndex returns the 0-based record index into the foundation
// ledger for a given foundation height ("record index =
// (height / FOUNDATION_HEIGHT) - 1").
func FoundationIndex(ct ChainType, height uint64) uint64 {
	return height/ct.FoundationHeight() - 1
}

// foundationEraBoundary returns the number of foundation payouts in the
// first (shorter) levy era, i.e. the FoundationIndex at which the regular
// era begins.
func foundationEraBoundary(ct ChainType) uint64 {
	return FoundationLevyEra1Days * HourHeight * 24 / ct.FoundationHeight()
}

// FoundationLevyEraIndex returns the 0-based index into FoundationLevy for
// the foundation payout occurring at height, derived from whether the
// payout falls within the first 120-day era or a subsequent 365-day era.
//
// Open question resolved (see DESIGN.md): the levy schedule position
// always advances at every foundation height, even across eras where the
// computed levy happens to be the final (repeating) table entry; the
// schedule never "pauses".
func FoundationLevyEraIndex(ct ChainType, height uint64) int {
	foundationIdx := FoundationIndex(ct, height)
	era1Payouts := foundationEraBoundary(ct)

	if foundationIdx < era1Payouts {
		return 0
	}

	eraNPayouts := FoundationLevyEraNDays * HourHeight * 24 / ct.FoundationHeight()
	if eraNPayouts == 0 {
		eraNPayouts = 1
	}
	remaining := foundationIdx - era1Payouts
	idx := 1 + int(remaining/eraNPayouts)
	if idx >= len(FoundationLevy) {
		idx = len(FoundationLevy) - 1
	}
	return idx
}

// RewardFoundationAtHeight computes the foundation-levy payout for a block
// at height: blockTotalReward * FoundationLevy[era] / FoundationLevyRatio.
// Returns 0 at non-foundation heights.
func RewardFoundationAtHeight(ct ChainType, height uint64) uint64 {
	if !IsFoundationHeight(ct, height) {
		return 0
	}
	total := RewardAtHeight(height)
	idx := FoundationLevyEraIndex(ct, height)
	return total * FoundationLevy[idx] / FoundationLevyRatio
}

// MinerRewardAtHeight returns the miner's share of the block reward plus
// fees: total reward minus any foundation levy due at this height, plus
// the aggregated transaction fees.
func MinerRewardAtHeight(ct ChainType, height uint64, fees uint64) uint64 {
	total := RewardAtHeight(height)
	levy := RewardFoundationAtHeight(ct, height)
	return total - levy + fees
}
