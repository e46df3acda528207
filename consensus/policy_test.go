// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package consensus

import (
	"bytes"
	"testing"
)

// TestChooseAlgoS6 exercises a policy-rotation scenario: with policy
// {Cuckatoo:2, RandomX:60, ProgPow:38} and bottles all-zero, the winner is
// RandomX; after filling bottles to {Cuckatoo:2, RandomX:60, ProgPow:37}
// it is ProgPow.
func TestChooseAlgoS6(t *testing.T) {
	policy := Policy{AlgoCuckatoo: 2, AlgoRandomX: 60, AlgoProgPow: 38}

	bottles := Bottles{AlgoCuckatoo: 0, AlgoRandomX: 0, AlgoProgPow: 0}
	if got := ChooseAlgo(policy, bottles); got != AlgoRandomX {
		t.Fatalf("want RandomX winner with empty bottles, got %s", got)
	}

	bottles = Bottles{AlgoCuckatoo: 2, AlgoRandomX: 60, AlgoProgPow: 37}
	if got := ChooseAlgo(policy, bottles); got != AlgoProgPow {
		t.Fatalf("want ProgPow winner with near-full bottles, got %s", got)
	}
}

func TestCheckPolicy(t *testing.T) {
	ok := Policy{AlgoCuckatoo: 2, AlgoRandomX: 60, AlgoProgPow: 38}
	if err := CheckPolicy(ok); err != nil {
		t.Fatalf("unexpected error for valid policy: %v", err)
	}

	bad := Policy{AlgoCuckatoo: 2, AlgoRandomX: 60, AlgoProgPow: 10}
	if err := CheckPolicy(bad); err == nil {
		t.Fatal("expected error for policy weights not summing to 100")
	}
}

func TestNextBottlesResetsAtHundred(t *testing.T) {
	bottles := Bottles{AlgoCuckatoo: 98, AlgoRandomX: 1, AlgoProgPow: 1}
	if !NextShouldReset(bottles) {
		t.Fatal("expected reset to trigger at 100 beans")
	}

	next := NextBottles(bottles, AlgoCuckatoo)
	if next[AlgoCuckatoo] != 1 {
		t.Fatalf("expected counters to reset before incrementing winner, got %v", next)
	}
	if next[AlgoRandomX] != 0 || next[AlgoProgPow] != 0 {
		t.Fatalf("expected non-winner counters to reset to zero, got %v", next)
	}
}

func TestPolicyBytesRoundTrip(t *testing.T) {
	p := Policy{AlgoCuckatoo: 2, AlgoRandomX: 60, AlgoProgPow: 38}
	buf := p.Bytes()

	got, err := ReadPolicy(bytes.NewReader(buf))
	if err != nil {
		t.Fatalf("ReadPolicy: %v", err)
	}
	for a, w := range p {
		if got[a] != w {
			t.Fatalf("round-trip mismatch for %s: want %d got %d", a, w, got[a])
		}
	}
}

func TestDefaultPolicyConfigAllowsEveryEra(t *testing.T) {
	pc := DefaultPolicyConfig()
	for idx, p := range pc.Policies {
		if err := CheckPolicy(p); err != nil {
			t.Fatalf("policy era %d invalid: %v", idx, err)
		}
		if !pc.IsAllowedPolicy(idx, 0) {
			t.Fatalf("policy era %d should be allowed at height 0", idx)
		}
	}
}
