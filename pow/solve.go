// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package pow

import "github.com/dblokhin/epic-go/consensus"

// MaxSols bounds how many candidate cycles a Cuckoo solve attempt may
// return before giving up on a given nonce, matching the reference
// MAX_SOLS constant; this Go port's brute-force solver (used only by
// tests and local mining on tiny graphs) returns at most one.
const MaxSols = 10

// SolveCuckoo is a naive solver for tests and local mining on tiny graphs
// (the real solver is a bundled, highly optimized external collaborator):
// within the attempted edge budget it takes the first consensus.ProofSize
// edges whose endpoints both have degree 2, and returns them only if
// VerifyCycle accepts them as a cycle; otherwise it returns
// ErrInvalidCycle. Cycles that this first-ProofSize selection misses are
// not searched for.
func SolveCuckoo(prePow []byte, edgeBits uint8, attempts int) (*consensus.Proof, error) {
	nodeCount := uint64(1) << edgeBits
	if nodeCount < consensus.ProofSize*2 {
		return nil, ErrInvalidCycle
	}

	k0, k1, k2, k3 := siphashKeys(prePow)

	// Build the u-side adjacency for a bounded range of edges and look
	// for an induced cycle cover of exactly ProofSize edges. This is a
	// naive exhaustive search suitable only for the tiny edge_bits used
	// by automated-testing chains, matching the "not optimized for speed,
	// here mostly for tests" framing of the reference implementation.
	limit := attempts
	if limit <= 0 || uint64(limit) > nodeCount {
		limit = int(nodeCount)
	}

	type halfEdge struct {
		edge uint64
		u, v uint64
	}
	edges := make([]halfEdge, 0, limit)
	for e := uint64(0); e < uint64(limit); e++ {
		u := sipnode(k0, k1, k2, k3, edgeBits, e, 0)
		v := sipnode(k0, k1, k2, k3, edgeBits, e, 1)
		edges = append(edges, halfEdge{e, u, v})
	}

	degU := make(map[uint64]int)
	degV := make(map[uint64]int)
	for _, he := range edges {
		degU[he.u]++
		degV[he.v]++
	}

	var cycle []uint64
	for _, he := range edges {
		if degU[he.u] == 2 && degV[he.v] == 2 {
			cycle = append(cycle, he.edge)
			if len(cycle) == consensus.ProofSize {
				break
			}
		}
	}

	if len(cycle) != consensus.ProofSize {
		return nil, ErrInvalidCycle
	}
	if err := VerifyCycle(prePow, edgeBits, cycle); err != nil {
		return nil, ErrInvalidCycle
	}

	return &consensus.Proof{
		Algo:     consensus.AlgoCuckatoo,
		EdgeBits: edgeBits,
		Nonces:   cycle,
	}, nil
}
