// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package pow

import "github.com/dblokhin/epic-go/consensus"

// Epoch constants for RandomX seed rotation, ported verbatim from the
// reference implementation's randomx module.
const (
	SeedHashEpochBlocks = uint64(1000)
	SeedHashEpochLag    = uint64(60)
)

// CurrentSeedHeight returns the height whose header hash is the RandomX
// seed in effect at height h, per the RandomX seed-epoch rules.
func CurrentSeedHeight(h uint64) uint64 {
	if h <= SeedHashEpochLag+SeedHashEpochBlocks {
		return 0
	}
	rem := h % SeedHashEpochBlocks
	if rem > SeedHashEpochLag {
		return h - rem
	}
	return h - rem - SeedHashEpochBlocks
}

// NextSeedHeight returns the height whose header hash becomes the seed at
// the *next* rotation after h; that rotation takes effect
// SeedHashEpochLag+1 blocks past the returned height.
func NextSeedHeight(h uint64) uint64 {
	rem := h % SeedHashEpochBlocks
	if rem > SeedHashEpochLag {
		return h - rem + SeedHashEpochBlocks
	}
	return h - rem
}

// RandomXHasher computes the RandomX slow-hash. The real RandomX VM is a
// bundled third-party C library and is explicitly out of scope per
// the bundled third-party RandomX/ProgPow C libraries;
// this interface is the fixed boundary the consensus layer consumes.
type RandomXHasher interface {
	// SlowHash returns the 32-byte RandomX digest of data under seed.
	SlowHash(seed [32]byte, data []byte) [32]byte
}

// fallbackHasher is a deterministic, machine-independent stand-in used by
// tests and by nodes built without the real RandomX VM linked in. It
// is deterministic in data/seed,
// independent of machine) without attempting to reproduce RandomX's actual
// memory-hard construction.
type fallbackHasher struct{}

// NewFallbackRandomXHasher returns the deterministic stand-in hasher.
func NewFallbackRandomXHasher() RandomXHasher {
	return fallbackHasher{}
}

func (fallbackHasher) SlowHash(seed [32]byte, data []byte) [32]byte {
	buf := make([]byte, 0, len(seed)+len(data))
	buf = append(buf, seed[:]...)
	buf = append(buf, data...)
	return consensus.Sum256(buf)
}

// VerifyRandomX checks that proof.RandomXHash equals SlowHash(seed, prePow)
// under hasher, and that seed matches the header hash at
// CurrentSeedHeight(height) as supplied by the caller (the chain layer,
// which alone knows ancestor header hashes).
func VerifyRandomX(hasher RandomXHasher, prePow []byte, seed [32]byte, expectedSeed [32]byte, hash [32]byte) error {
	if seed != expectedSeed {
		return ErrInvalidSeed
	}
	got := hasher.SlowHash(seed, prePow)
	if got != hash {
		return ErrInvalidPow
	}
	return nil
}
