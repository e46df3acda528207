// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package consensus

// Chain-wide monetary and timing constants, ported from the reference
// node's consensus module. Values are for mainnet; ChainType scales the
// testing-mode overrides (coinbase maturity, foundation height, difficulty
// era boundary) where the reference implementation does the same.
const (
	// EpicBase is the smallest indivisible unit, 10^8 per whole coin.
	EpicBase = uint64(100_000_000)

	// BlockTimeSec is the targeted interval between blocks.
	BlockTimeSec = uint64(60)

	// HourHeight, DayHeight, WeekHeight, YearHeight express block counts
	// for the targeted block time.
	HourHeight = uint64(60)
	DayHeight  = HourHeight * 24
	WeekHeight = DayHeight * 7
	YearHeight = WeekHeight * 52

	// CoinbaseMaturity is the number of blocks required before a coinbase
	// output may be spent, on mainnet.
	CoinbaseMaturity = DayHeight

	// AutomatedTestingCoinbaseMaturity is the override used by the
	// automated-testing chain type (see scenario S2).
	AutomatedTestingCoinbaseMaturity = uint64(3)

	// ProofSize is the fixed cycle length required of a Cuckoo-family proof.
	ProofSize = 42

	// DefaultMinEdgeBits is the minimum accepted edge_bits for a primary
	// Cuckoo/Cuckaroo proof.
	DefaultMinEdgeBits = uint8(19)

	// SecondPoWEdgeBits is the fixed edge_bits of the secondary (Cuckatoo)
	// proof used for fork-choice tie-breaking.
	SecondPoWEdgeBits = uint8(31)

	// BaseEdgeBits is the graph_weight normalization point.
	BaseEdgeBits = uint8(24)

	// CutThroughHorizon is the height depth past which spent outputs may
	// be pruned from local state.
	CutThroughHorizon = WeekHeight

	// StateSyncThreshold is a two-day depth. The p2p syncer does not use
	// it: it switches to txhashset (state) sync when a peer is more than
	// CutThroughHorizon ahead.
	StateSyncThreshold = 2 * DayHeight

	// Block-weight accounting, used to cap transaction/pool selection.
	BlockInputWeight  = 1
	BlockOutputWeight = 21
	BlockKernelWeight = 3
	MaxBlockWeight    = 40000

	// DifficultyAdjustWindow is the number of blocks considered by the
	// windowed retarget algorithm.
	DifficultyAdjustWindow = HourHeight

	// ClampFactor and DifficultyDampFactor bound how far a single retarget
	// step may move the target block time.
	ClampFactor         = uint64(2)
	DifficultyDampFactor = uint64(3)

	// ARScaleDampFactor dampens the secondary_scaling factor adjustment.
	ARScaleDampFactor = uint64(13)

	// Per-algorithm difficulty floors.
	MinDifficulty         = uint64(3)
	MinDifficultyRandomX  = uint64(4000)
	MinDifficultyProgPow  = uint64(200000)

	// BlockDiffFactor scales hash-family (non-Cuckoo) difficulty against
	// the block-time target.
	BlockDiffFactorRandomX = uint64(64)
	BlockDiffFactorProgPow = uint64(64)

	// Foundation levy scheduling.
	FoundationLevyRatio      = uint64(10000)
	FoundationLevyEra1Days   = uint64(120)
	FoundationLevyEraNDays   = uint64(365)

	// AutomatedTestingFoundationHeight overrides the mainnet foundation
	// height (DayHeight, see ChainType.FoundationHeight) for fast-running
	// tests.
	AutomatedTestingFoundationHeight = uint64(5)

	// MaxLocators bounds the block-locator length sent in GetHeaders.
	MaxLocators = 20

	// MaxBlockHeaders bounds a single Headers message.
	MaxBlockHeaders = 512

	// MaxPeerAddrs bounds a single PeerAddrs message.
	MaxPeerAddrs = 256

	// BlockHashSize is the width of a block hash on the wire (alias of HashSize).
	BlockHashSize = HashSize
)

// FoundationLevy is keyed by foundation-era index (0-based); values are
// parts per FoundationLevyRatio, i.e. hundredths of a percent (888 = 8.88%).
var FoundationLevy = [...]uint64{888, 777, 666, 555, 444, 333, 222, 111, 111}

// RewardEraHeights are cumulative mainnet heights (in days * DayHeight) at
// which the block reward steps down before the post-era-5 halving regime
// takes over.
var RewardEraHeights = [...]uint64{
	334 * DayHeight,
	(334 + 470) * DayHeight,
	(334 + 470 + 601) * DayHeight,
	(334 + 470 + 601 + 800) * DayHeight,
	(334 + 470 + 601 + 800 + 1019) * DayHeight,
}

// RewardEraAmounts are the fixed block rewards (in EpicBase units) for the
// eras bounded by RewardEraHeights, in order.
var RewardEraAmounts = [...]uint64{
	16 * EpicBase,
	8 * EpicBase,
	4 * EpicBase,
	2 * EpicBase,
	1 * EpicBase,
}

// BaseRewardEra6Onwards is the starting reward for the post-fixed-era
// halving regime; it halves every HalvingIntervalHeight blocks.
const (
	BaseRewardEra6OnwardsNumerator   = 15625
	BaseRewardEra6OnwardsDenominator = 100000
	HalvingIntervalHeight            = 1460 * DayHeight
)

// BaseRewardEra6Onwards returns 0.15625 * EpicBase without floating point.
func BaseRewardEra6Onwards() uint64 {
	return EpicBase * BaseRewardEra6OnwardsNumerator / BaseRewardEra6OnwardsDenominator
}

// ChainType selects the network/testing mode; it scales several constants
// above (coinbase maturity, foundation height, difficulty era, archive
// interval) and is threaded explicitly through constructors rather than
// held in a package-level mutable singleton.
type ChainType int

const (
	Mainnet ChainType = iota
	Testnet
	UserTesting
	AutomatedTesting
)

// CoinbaseMaturity returns the coinbase spend-maturity window for ct.
func (ct ChainType) CoinbaseMaturity() uint64 {
	if ct == AutomatedTesting {
		return AutomatedTestingCoinbaseMaturity
	}
	return CoinbaseMaturity
}

// FoundationHeight returns the height interval between foundation-levy
// blocks for ct.
func (ct ChainType) FoundationHeight() uint64 {
	if ct == AutomatedTesting {
		return AutomatedTestingFoundationHeight
	}
	return DayHeight
}

// DifficultyEraHeight returns the height at which the chain transitions
// from the era-0 (raw-window) to the era-1 (per-algo prev_timespan)
// retarget regime.
func (ct ChainType) DifficultyEraHeight() uint64 {
	switch ct {
	case AutomatedTesting:
		return 50
	case Testnet:
		return 200
	default:
		return 501100
	}
}

// TxHashSetArchiveInterval returns the height interval between state-sync
// archive snapshots; scenario S5 exercises the testing-mode value of 10.
func (ct ChainType) TxHashSetArchiveInterval() uint64 {
	if ct == AutomatedTesting {
		return 10
	}
	return DayHeight
}

// FirstHardForkHeight gates header_version(height): heights below it use
// version 6, at or above it use version 7.
func (ct ChainType) FirstHardForkHeight() uint64 {
	switch ct {
	case AutomatedTesting:
		return 6
	case Testnet:
		return 10080
	default:
		return 700000
	}
}

// HeaderVersion returns the header serialization version active at height h.
func (ct ChainType) HeaderVersion(height uint64) uint16 {
	if height < ct.FirstHardForkHeight() {
		return 6
	}
	return 7
}
