// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package consensus

import (
	"encoding/binary"
	"errors"
	"io"
)

// ErrNoPolicy is returned when a policy index has no matching config entry.
var ErrNoPolicy = errors.New("consensus: there is not policy")

// ErrPolicyNotAllowed is returned when a policy index is not in the
// allowed set for the given height range.
var ErrPolicyNotAllowed = errors.New("consensus: policy is not allowed")

// Policy is a weight map over algorithms, summing to 100, selecting how
// often each algorithm should win block production ("Feijoada").
type Policy map[Algo]uint32

// Bottles counts blocks mined under each algorithm since the last reset.
type Bottles map[Algo]uint32

// Bytes serializes a Policy/Bottles map as u64 length followed by sorted
// (tag byte, u32 count) pairs, matching the reference wire format.
func policyBytes(p map[Algo]uint32) []byte {
	algos := make([]Algo, 0, len(p))
	for a := range p {
		algos = append(algos, a)
	}
	// simple insertion sort, the map is at most 5 entries
	for i := 1; i < len(algos); i++ {
		for j := i; j > 0 && algos[j-1] > algos[j]; j-- {
			algos[j-1], algos[j] = algos[j], algos[j-1]
		}
	}

	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(len(algos)))
	for _, a := range algos {
		entry := make([]byte, 5)
		entry[0] = byte(a)
		binary.BigEndian.PutUint32(entry[1:], p[a])
		buf = append(buf, entry...)
	}
	return buf
}

func readPolicyMap(r io.Reader) (map[Algo]uint32, error) {
	var lenBuf [8]byte
	if err := readFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	count := binary.BigEndian.Uint64(lenBuf[:])
	if count > 16 {
		return nil, ErrCorruptedData
	}

	out := make(map[Algo]uint32, count)
	for i := uint64(0); i < count; i++ {
		var entry [5]byte
		if err := readFull(r, entry[:]); err != nil {
			return nil, err
		}
		out[Algo(entry[0])] = binary.BigEndian.Uint32(entry[1:])
	}
	return out, nil
}

// Bytes implements the wire marshaler for Policy.
func (p Policy) Bytes() []byte { return policyBytes(p) }

// ReadPolicy deserializes a Policy written by Bytes.
func ReadPolicy(r io.Reader) (Policy, error) {
	m, err := readPolicyMap(r)
	return Policy(m), err
}

// Bytes implements the wire marshaler for Bottles.
func (b Bottles) Bytes() []byte { return policyBytes(b) }

// ReadBottles deserializes a Bottles map written by Bytes.
func ReadBottles(r io.Reader) (Bottles, error) {
	m, err := readPolicyMap(r)
	return Bottles(m), err
}

// CheckPolicy validates that the weights in p sum to exactly 100, as
// required for policy weights to be meaningful.
func CheckPolicy(p Policy) error {
	var sum uint32
	for _, w := range p {
		sum += w
	}
	if sum != 100 {
		return errors.New("consensus: policy weights must sum to 100")
	}
	return nil
}

// CountBeans returns max(1, sum(bottles)), the normalizing denominator used
// by the Feijoada score calculation; it is never zero so score division is
// always well defined.
func CountBeans(b Bottles) uint32 {
	var sum uint32
	for _, c := range b {
		sum += c
	}
	if sum == 0 {
		return 1
	}
	return sum
}

// NextShouldReset reports whether the bottle counters should be zeroed
// before recording the next block, i.e. the bean count has already
// reached the 100-block window.
func NextShouldReset(b Bottles) bool {
	var sum uint32
	for _, c := range b {
		sum += c
	}
	return sum >= 100
}

// ChooseAlgo implements the deterministic ("Feijoada") policy-selection
// rule: for every algo in the policy with weight > 0,
// score[algo] = 100*bottles[algo]/beans; the winner maximizes
// policy[algo] - score[algo], ties broken by the fixed Algos order.
func ChooseAlgo(p Policy, b Bottles) Algo {
	beans := CountBeans(b)

	var winner Algo
	haveWinner := false
	var bestMargin int64 = -1 << 62

	for _, a := range Algos {
		weight, ok := p[a]
		if !ok || weight == 0 {
			continue
		}
		score := int64(100*uint64(b[a])) / int64(beans)
		margin := int64(weight) - score

		if !haveWinner || margin > bestMargin {
			winner = a
			bestMargin = margin
			haveWinner = true
		}
	}

	return winner
}

// NextBottles computes the bottle state to record in the next header
// after winner wins block production, applying the 100-bean reset rule
// before incrementing.
func NextBottles(b Bottles, winner Algo) Bottles {
	out := make(Bottles, len(b)+1)
	for a, c := range b {
		out[a] = c
	}

	if NextShouldReset(out) {
		for a := range out {
			out[a] = 0
		}
	}
	out[winner]++
	return out
}

// DefaultBottles returns the zeroed bottle state for the algos present in p.
func DefaultBottles(p Policy) Bottles {
	out := make(Bottles, len(p))
	for a := range p {
		out[a] = 0
	}
	return out
}

// PolicyConfig is the ordered set of policy eras a chain recognizes,
// ported from the reference PolicyConfig::default() table: each entry's
// weights sum to 100 and AllowedFrom/AllowedTo bound the height range in
// which mining under that policy index is permitted.
type PolicyConfig struct {
	Policies    map[uint8]Policy
	AllowedFrom map[uint8]uint64
	AllowedTo   map[uint8]uint64 // 0 means unbounded
}

// DefaultPolicyConfig returns the six-era policy table from the reference
// implementation's feijoada module.
func DefaultPolicyConfig() PolicyConfig {
	return PolicyConfig{
		Policies: map[uint8]Policy{
			1: {AlgoRandomX: 60, AlgoProgPow: 38, AlgoCuckatoo: 2},
			2: {AlgoRandomX: 30, AlgoProgPow: 65, AlgoCuckatoo: 5},
			3: {AlgoRandomX: 10, AlgoProgPow: 62, AlgoCuckatoo: 28},
			4: {AlgoRandomX: 5, AlgoProgPow: 40, AlgoCuckatoo: 55},
			5: {AlgoRandomX: 5, AlgoProgPow: 20, AlgoCuckatoo: 75},
			6: {AlgoRandomX: 5, AlgoProgPow: 10, AlgoCuckatoo: 85},
		},
		AllowedFrom: map[uint8]uint64{1: 0, 2: 0, 3: 0, 4: 0, 5: 0, 6: 0},
		AllowedTo:   map[uint8]uint64{1: 0, 2: 0, 3: 0, 4: 0, 5: 0, 6: 0},
	}
}

// IsAllowedPolicy reports whether policy index idx may be used to mine at
// height, per the configured allowed-range table.
func (pc PolicyConfig) IsAllowedPolicy(idx uint8, height uint64) bool {
	from, ok := pc.AllowedFrom[idx]
	if !ok {
		return false
	}
	to := pc.AllowedTo[idx]
	if height < from {
		return false
	}
	if to != 0 && height > to {
		return false
	}
	return true
}

// Policy looks up the Policy for idx, returning ErrNoPolicy if absent.
func (pc PolicyConfig) Policy(idx uint8) (Policy, error) {
	p, ok := pc.Policies[idx]
	if !ok {
		return nil, ErrNoPolicy
	}
	return p, nil
}

// LargestAllotment returns the policy index among the allowed set at
// height whose configured weight for winner is greatest; used to pick the
// "emitted policy" recorded in a mined header when more than one policy
// permits the winning algorithm.
func (pc PolicyConfig) LargestAllotment(height uint64, winner Algo) (uint8, error) {
	var best uint8
	var bestWeight int64 = -1
	found := false

	for idx, p := range pc.Policies {
		if !pc.IsAllowedPolicy(idx, height) {
			continue
		}
		w, ok := p[winner]
		if !ok {
			continue
		}
		if int64(w) > bestWeight {
			best = idx
			bestWeight = int64(w)
			found = true
		}
	}

	if !found {
		return 0, ErrPolicyNotAllowed
	}
	return best, nil
}
