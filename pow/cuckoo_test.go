// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package pow

import (
	"testing"

	"github.com/dblokhin/epic-go/consensus"
)

// syntheticCycle builds a bipartite cycle of exactly n edges (n even) over
// k=n/2 u-nodes and k v-nodes: edge(2j) = (u_j, v_j), edge(2j+1) =
// (u_{(j+1)%k}, v_j). Every u-node and every v-node has degree exactly 2,
// and walking the edges in index order traces a single cycle — exactly
// the shape VerifyCycle expects, built without any real SipHash output.
func syntheticCycle(n int) [][2]uint64 {
	k := n / 2
	edges := make([][2]uint64, n)
	for j := 0; j < k; j++ {
		edges[2*j] = [2]uint64{uint64(j), uint64(j)}
		edges[2*j+1] = [2]uint64{uint64((j + 1) % k), uint64(j)}
	}
	return edges
}

func TestVerifyEdgeCycleAcceptsValidCycle(t *testing.T) {
	edges := syntheticCycle(consensus.ProofSize)
	if err := verifyEdgeCycle(edges); err != nil {
		t.Fatalf("expected valid synthetic cycle to verify, got %v", err)
	}
}

func TestVerifyEdgeCycleRejectsBrokenCycle(t *testing.T) {
	edges := syntheticCycle(consensus.ProofSize)
	// Break the cycle by disconnecting the last edge's endpoint.
	edges[len(edges)-1][1] = 999999

	if err := verifyEdgeCycle(edges); err == nil {
		t.Fatal("expected broken cycle to fail verification")
	}
}

func TestVerifyEdgeCycleRejectsWrongDegree(t *testing.T) {
	edges := syntheticCycle(consensus.ProofSize)
	// Duplicate the first edge's u endpoint elsewhere to create a
	// degree-3 node.
	edges[5][0] = edges[0][0]

	if err := verifyEdgeCycle(edges); err == nil {
		t.Fatal("expected degree-3 node to fail verification")
	}
}

func TestMD5SolveVerify(t *testing.T) {
	prePow := []byte("test-header-bytes")
	proof := MD5Solve(prePow, 19, consensus.ProofSize)

	if err := VerifyMD5(prePow, 19, consensus.ProofSize, proof); err != nil {
		t.Fatalf("expected solved MD5 proof to verify, got %v", err)
	}
	if err := VerifyMD5(prePow, 19, consensus.ProofSize, "deadbeef"); err == nil {
		t.Fatal("expected mismatched MD5 proof to fail verification")
	}
}

func TestCurrentSeedHeightMatchesReferenceRules(t *testing.T) {
	cases := []struct {
		height uint64
		want   uint64
	}{
		{0, 0},
		{SeedHashEpochLag + SeedHashEpochBlocks, 0},
		{SeedHashEpochLag + SeedHashEpochBlocks + 1, 1000},
		{2000, 1000},
		{2061, 2000},
	}

	for _, c := range cases {
		if got := CurrentSeedHeight(c.height); got != c.want {
			t.Errorf("CurrentSeedHeight(%d) = %d, want %d", c.height, got, c.want)
		}
	}
}

func TestFallbackHashersAreDeterministic(t *testing.T) {
	rx := NewFallbackRandomXHasher()
	seed := [32]byte{1, 2, 3}
	data := []byte("header")

	a := rx.SlowHash(seed, data)
	b := rx.SlowHash(seed, data)
	if a != b {
		t.Fatal("expected RandomX fallback hasher to be deterministic")
	}

	pp := NewFallbackProgPowHasher()
	h1 := pp.Mix(seed, 10, 20)
	h2 := pp.Mix(seed, 10, 20)
	if h1 != h2 {
		t.Fatal("expected ProgPow fallback hasher to be deterministic")
	}
	if h1 == pp.Mix(seed, 10, 21) {
		t.Fatal("expected ProgPow fallback hasher to vary with nonce")
	}
}
