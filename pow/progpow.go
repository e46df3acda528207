// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package pow

import "golang.org/x/crypto/sha3"

// TransformHeader reduces a pre-pow byte image to the 32-byte keccak256
// digest ProgPow actually mixes against, dropping the trailing 8-byte
// nonce-reserved tail, matching the reference transform_header().
func TransformHeader(prePow []byte) [32]byte {
	trimmed := prePow
	if len(trimmed) >= 8 {
		trimmed = trimmed[:len(trimmed)-8]
	}
	var out [32]byte
	sum := sha3.NewLegacyKeccak256()
	sum.Write(trimmed)
	sum.Sum(out[:0])
	return out
}

// ProgPowHasher computes the ProgPow mix for (headerHash, height, nonce).
// The real GPU-oriented ProgPow kernel is a bundled third-party library
// and out of scope here; this interface is the fixed boundary.
type ProgPowHasher interface {
	Mix(headerHash [32]byte, height uint64, nonce uint64) [32]byte
}

// fallbackProgPowHasher is the deterministic machine-independent stand-in,
// analogous to fallbackHasher for RandomX.
type fallbackProgPowHasher struct{}

// NewFallbackProgPowHasher returns the deterministic stand-in hasher.
func NewFallbackProgPowHasher() ProgPowHasher {
	return fallbackProgPowHasher{}
}

func (fallbackProgPowHasher) Mix(headerHash [32]byte, height, nonce uint64) [32]byte {
	buf := make([]byte, 0, 32+16)
	buf = append(buf, headerHash[:]...)
	buf = appendUint64(buf, height)
	buf = appendUint64(buf, nonce)

	var out [32]byte
	sum := sha3.NewLegacyKeccak256()
	sum.Write(buf)
	sum.Sum(out[:0])
	return out
}

func appendUint64(buf []byte, v uint64) []byte {
	for i := 0; i < 8; i++ {
		buf = append(buf, byte(v>>(8*uint(i))))
	}
	return buf
}

// VerifyProgPow checks that proof.ProgPowMix equals Mix(transform(prePow),
// height, nonce) under hasher.
func VerifyProgPow(hasher ProgPowHasher, prePow []byte, height, nonce uint64, mix [32]byte) error {
	headerHash := TransformHeader(prePow)
	got := hasher.Mix(headerHash, height, nonce)
	if got != mix {
		return ErrInvalidPow
	}
	return nil
}
