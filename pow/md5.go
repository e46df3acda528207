// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package pow

import (
	"crypto/md5"
	"encoding/hex"
)

// MD5Solve computes the test-only MD5 proof for prePow: the hex digest of
// edgeBits repeated consensus.ProofSize times, concatenated with prePow,
// matching the reference md5.rs test harness.
func MD5Solve(prePow []byte, edgeBits uint8, proofSize int) string {
	vector := make([]byte, 0, proofSize+len(prePow))
	for i := 0; i < proofSize; i++ {
		vector = append(vector, edgeBits)
	}
	vector = append(vector, prePow...)

	sum := md5.Sum(vector)
	return hex.EncodeToString(sum[:])
}

// VerifyMD5 checks that proof matches MD5Solve(prePow, edgeBits, proofSize).
func VerifyMD5(prePow []byte, edgeBits uint8, proofSize int, proof string) error {
	if MD5Solve(prePow, edgeBits, proofSize) != proof {
		return ErrInvalidPow
	}
	return nil
}
