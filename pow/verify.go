// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package pow

import (
	"errors"

	"github.com/dblokhin/epic-go/consensus"
)

// ErrInvalidPow is returned by Verify when a proof fails its per-algorithm
// check.
var ErrInvalidPow = errors.New("pow: invalid proof of work")

// ErrInvalidSeed is returned when a RandomX header's seed field does not
// match the expected epoch ancestor hash.
var ErrInvalidSeed = errors.New("pow: invalid randomx seed")

// ErrLowEdgebits is returned when a Cuckoo-family proof's edge_bits falls
// below the consensus minimum.
var ErrLowEdgebits = errors.New("pow: edge_bits below minimum")

// AlgoCaches owns the per-algorithm state a verifier needs across many
// calls: the RandomX VM cache and the ProgPow mix cache. Centralizing them
// here (instead of boxed per-proof trait objects) is the Go rendering of
// tagged-variant dispatch rather than dynamic dispatch.
type AlgoCaches struct {
	RandomX RandomXHasher
	ProgPow ProgPowHasher
}

// NewAlgoCaches returns an AlgoCaches backed by the deterministic fallback
// hashers (see randomx.go/progpow.go doc comments for why the real VMs are
// out of scope here).
func NewAlgoCaches() *AlgoCaches {
	return &AlgoCaches{
		RandomX: NewFallbackRandomXHasher(),
		ProgPow: NewFallbackProgPowHasher(),
	}
}

// Verifier dispatches proof verification by algorithm, matching the
// reference pow::verify_size() switch.
type Verifier struct {
	ChainType consensus.ChainType
	Caches    *AlgoCaches
}

// NewVerifier constructs a Verifier for ct, using caches for the
// hash-family algorithms.
func NewVerifier(ct consensus.ChainType, caches *AlgoCaches) *Verifier {
	if caches == nil {
		caches = NewAlgoCaches()
	}
	return &Verifier{ChainType: ct, Caches: caches}
}

// Verify checks header's proof of work against its variant, given the
// expected RandomX seed ancestor hash (the chain layer looks this up via
// CurrentSeedHeight and supplies it here, since only the chain knows
// ancestor headers).
func (v *Verifier) Verify(header *consensus.BlockHeader, expectedSeed [32]byte) error {
	prePow := header.PrePowBytes()
	proof := header.PoW.Proof

	switch proof.Algo {
	case consensus.AlgoCuckaroo, consensus.AlgoCuckatoo:
		if proof.EdgeBits < consensus.DefaultMinEdgeBits {
			return ErrLowEdgebits
		}
		return VerifyCycle(prePow, proof.EdgeBits, proof.Nonces)

	case consensus.AlgoRandomX:
		return VerifyRandomX(v.Caches.RandomX, prePow, header.PoW.Seed, expectedSeed, proof.RandomXHash)

	case consensus.AlgoProgPow:
		return VerifyProgPow(v.Caches.ProgPow, prePow, header.Height, header.PoW.Nonce, proof.ProgPowMix)

	case consensus.AlgoMD5:
		return VerifyMD5(prePow, proof.EdgeBits, consensus.ProofSize, proof.MD5Proof)

	default:
		return ErrInvalidPow
	}
}
