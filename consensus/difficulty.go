// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package consensus

import (
	"encoding/binary"
	"io"
	"sort"
)

// Difficulty is a per-algorithm cumulative-work map. Comparison (for
// fork-choice) looks only at the Cuckatoo component; arithmetic is
// elementwise across every algo present in either operand.
type Difficulty map[Algo]uint64

// ZeroDifficulty is the identity element for Difficulty addition.
func ZeroDifficulty() Difficulty {
	return Difficulty{}
}

// Get returns d[a], defaulting to 0 for an absent algo.
func (d Difficulty) Get(a Algo) uint64 {
	return d[a]
}

// Add returns the elementwise sum of d and other.
func (d Difficulty) Add(other Difficulty) Difficulty {
	out := make(Difficulty, len(d)+len(other))
	for a, v := range d {
		out[a] = v
	}
	for a, v := range other {
		out[a] += v
	}
	return out
}

// Sub returns the elementwise difference d - other (floored at 0 per algo).
func (d Difficulty) Sub(other Difficulty) Difficulty {
	out := make(Difficulty, len(d))
	for a, v := range d {
		o := other[a]
		if v > o {
			out[a] = v - o
		} else {
			out[a] = 0
		}
	}
	return out
}

// GreaterThan compares only the Cuckatoo component: "total
// difficulty ordering is defined by the Cuckatoo component only".
func (d Difficulty) GreaterThan(other Difficulty) bool {
	return d.Get(AlgoCuckatoo) > other.Get(AlgoCuckatoo)
}

// sortedAlgos returns every algo key present in d (zero values included),
// sorted for deterministic wire output.
func (d Difficulty) sortedAlgos() []Algo {
	algos := make([]Algo, 0, len(d))
	for a := range d {
		algos = append(algos, a)
	}
	sort.Slice(algos, func(i, j int) bool { return algos[i] < algos[j] })
	return algos
}

// Bytes serializes the map as u64 length followed by sorted (tag byte,
// u64 value) pairs, matching the reference Writeable impl for
// DifficultyNumber.
func (d Difficulty) Bytes() []byte {
	algos := d.sortedAlgos()
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(len(algos)))
	for _, a := range algos {
		entry := make([]byte, 9)
		entry[0] = byte(a)
		binary.BigEndian.PutUint64(entry[1:], d[a])
		buf = append(buf, entry...)
	}
	return buf
}

// ReadDifficulty deserializes a Difficulty written by Bytes.
func ReadDifficulty(r io.Reader) (Difficulty, error) {
	var lenBuf [8]byte
	if err := readFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	count := binary.BigEndian.Uint64(lenBuf[:])
	if count > 16 {
		return nil, ErrCorruptedData
	}

	d := make(Difficulty, count)
	for i := uint64(0); i < count; i++ {
		var entry [9]byte
		if err := readFull(r, entry[:]); err != nil {
			return nil, err
		}
		d[Algo(entry[0])] = binary.BigEndian.Uint64(entry[1:])
	}
	return d, nil
}

// HeaderInfo is the windowed retarget accumulator: one entry per recent
// header of the algo being retargeted.
type HeaderInfo struct {
	Timestamp        int64
	Difficulty       uint64
	SecondaryScaling uint32
	IsSecondary      bool
	// PrevTimespan is the time since the previous header mined by the same
	// algo; populated only on era-1 chains.
	PrevTimespan uint64
}

// damp implements the reference damp(a, g, f) = (a + (f-1)*g) / f helper
// shared by every retarget formula.
func damp(actual, goal, factor uint64) uint64 {
	return (actual + (factor-1)*goal) / factor
}

// clampAdj implements clamp(a, g, f) = max(g/f, min(a, g*f)).
func clampAdj(adjusted, goal, factor uint64) uint64 {
	upper := goal * factor
	lower := goal / factor
	if adjusted > upper {
		adjusted = upper
	}
	if adjusted < lower {
		adjusted = lower
	}
	return adjusted
}

// minDifficultyFor returns the consensus difficulty floor for algo.
func minDifficultyFor(a Algo) uint64 {
	switch a {
	case AlgoRandomX:
		return MinDifficultyRandomX
	case AlgoProgPow:
		return MinDifficultyProgPow
	default:
		return MinDifficulty
	}
}

// NextDifficultyEra0 implements the pre-difficultyfix retarget regime
// (era-0 retargeting). window must be ordered oldest-first and contain
// exactly DifficultyAdjustWindow+1 entries for Cuckoo-family algos, or the
// last two entries for hash algos (RandomX/ProgPow); callers pass the
// slice already sized appropriately.
func NextDifficultyEra0(algo Algo, window []HeaderInfo) uint64 {
	if len(window) < 2 {
		return minDifficultyFor(algo)
	}

	switch algo {
	case AlgoCuckaroo, AlgoCuckatoo:
		tsDelta := uint64(window[len(window)-1].Timestamp - window[0].Timestamp)
		var diffSum uint64
		for _, h := range window[1:] {
			diffSum += h.Difficulty
		}
		target := DifficultyAdjustWindow * BlockTimeSec
		adjTs := clampAdj(damp(tsDelta, target, DifficultyDampFactor), target, ClampFactor)
		if adjTs == 0 {
			adjTs = 1
		}
		return max64(minDifficultyFor(algo), diffSum*BlockTimeSec/adjTs)
	default:
		// Hash algos: only the last two headers matter.
		last := window[len(window)-1]
		prev := window[len(window)-2]
		tsDelta := uint64(last.Timestamp - prev.Timestamp)
		if tsDelta == 0 {
			tsDelta = 1
		}
		adjTs := clampAdj(damp(tsDelta, BlockTimeSec, DifficultyDampFactor), BlockTimeSec, ClampFactor)
		return max64(minDifficultyFor(algo), prev.Difficulty*BlockTimeSec/adjTs)
	}
}

// NextDifficultyEra1 implements the era-1 retarget: the same damp/clamp
// shape as era-0, but the timestamp delta is accumulated from each
// header's PrevTimespan rather than the raw window endpoints, decoupling
// per-algo difficulty tracks (era-1 retargeting).
func NextDifficultyEra1(algo Algo, window []HeaderInfo) uint64 {
	if len(window) == 0 {
		return minDifficultyFor(algo)
	}

	var tsDelta uint64
	var diffSum uint64
	for _, h := range window {
		tsDelta += h.PrevTimespan
		diffSum += h.Difficulty
	}
	if len(window) == 0 {
		return minDifficultyFor(algo)
	}

	target := uint64(len(window)) * BlockTimeSec
	adjTs := clampAdj(damp(tsDelta, target, DifficultyDampFactor), target, ClampFactor)
	if adjTs == 0 {
		adjTs = 1
	}
	return max64(minDifficultyFor(algo), diffSum*BlockTimeSec/adjTs)
}

// NextDifficulty dispatches to the era-0 or era-1 formula based on height,
// matching ChainType.DifficultyEraHeight.
func NextDifficulty(ct ChainType, height uint64, algo Algo, window []HeaderInfo) uint64 {
	if height >= ct.DifficultyEraHeight() {
		return NextDifficultyEra1(algo, window)
	}
	return NextDifficultyEra0(algo, window)
}

// SecondaryScaling adjusts the secondary_scaling factor carried in the
// header's PoW struct, damping the ratio of secondary-PoW (Cuckatoo)
// blocks against the target AR ratio in the same damp/clamp style.
func SecondaryScaling(prevScaling uint32, arCount, windowLen uint64) uint32 {
	if windowLen == 0 {
		return prevScaling
	}
	targetPct := uint64(1) // 1-in-window is the minted baseline
	actualPct := arCount
	if actualPct == 0 {
		actualPct = 1
	}
	adj := damp(actualPct, targetPct, ARScaleDampFactor)
	if adj == 0 {
		adj = 1
	}
	scaled := uint64(prevScaling) * adj / targetPct
	if scaled == 0 {
		scaled = 1
	}
	return uint32(scaled)
}

// GraphWeight implements the reference graph_weight(height, edge_bits)
// normalization used to scale Cuckoo-family difficulty against the base
// edge size: edge_bits times a factor that doubles for every edge_bit
// beyond BaseEdgeBits, times 2 below ct.FirstHardForkHeight() and 1 from
// that height on.
func GraphWeight(ct ChainType, height uint64, edgeBits uint8) uint64 {
	xPr := uint64(2)
	if height >= ct.FirstHardForkHeight() {
		xPr = 1
	}
	var shift uint64
	if edgeBits > BaseEdgeBits {
		shift = uint64(edgeBits - BaseEdgeBits)
	}
	return xPr * uint64(edgeBits) * (uint64(1) << shift)
}

func max64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}
