// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package consensus

import (
	"encoding/hex"
	"io"

	"github.com/dchest/siphash"
	"golang.org/x/crypto/blake2b"
)

// HashSize is the width in bytes of every header/commitment hash in the system.
const HashSize = 32

// Hash is a 32-byte blake2b digest, the identity of headers, blocks, outputs
// and kernels.
type Hash [HashSize]byte

// ZeroHash is the hash of nothing, used as prev_hash of the genesis block.
var ZeroHash = Hash{}

// HashFromBytes copies b into a Hash, b must be exactly HashSize long.
func HashFromBytes(b []byte) (h Hash) {
	copy(h[:], b)
	return h
}

// Bytes returns the raw bytes of the hash.
func (h Hash) Bytes() []byte {
	return h[:]
}

// String returns the hex-encoded hash, matching the rest of the corpus's
// hex-everywhere convention for display of hashes/commitments.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// IsZero reports whether h is the all-zero hash.
func (h Hash) IsZero() bool {
	return h == ZeroHash
}

// Sum256 computes the canonical header/body hash of data.
func Sum256(data []byte) Hash {
	return blake2b.Sum256(data)
}

// ShortID is a 6-byte peer-salted identifier for a kernel or output,
// used in compact block relay to avoid shipping full transactions.
type ShortID [6]byte

// NewShortID derives a ShortID for data, keyed by the block hash and nonce
// exactly as a compact-block short-id scheme.
func NewShortID(blockHash Hash, nonce uint64, data []byte) ShortID {
	k0, k1 := shortIDKeys(blockHash, nonce)
	h := siphash.Hash(k0, k1, data)

	var id ShortID
	id[0] = byte(h)
	id[1] = byte(h >> 8)
	id[2] = byte(h >> 16)
	id[3] = byte(h >> 24)
	id[4] = byte(h >> 32)
	id[5] = byte(h >> 40)
	return id
}

// shortIDKeys derives the siphash keys for short-id hashing from the block
// hash and the per-compact-block nonce, per the Mimblewimble short-id spec.
func shortIDKeys(blockHash Hash, nonce uint64) (uint64, uint64) {
	buf := make([]byte, HashSize+8)
	copy(buf, blockHash[:])
	buf[HashSize] = byte(nonce)
	buf[HashSize+1] = byte(nonce >> 8)
	buf[HashSize+2] = byte(nonce >> 16)
	buf[HashSize+3] = byte(nonce >> 24)
	buf[HashSize+4] = byte(nonce >> 32)
	buf[HashSize+5] = byte(nonce >> 40)
	buf[HashSize+6] = byte(nonce >> 48)
	buf[HashSize+7] = byte(nonce >> 56)

	digest := blake2b.Sum256(buf)
	k0 := leUint64(digest[0:8])
	k1 := leUint64(digest[8:16])
	return k0, k1
}

func leUint64(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(b[i]) << (8 * uint(i))
	}
	return v
}

// writeBytes writes b to w: any type with a Bytes() []byte method can be
// written through this helper.
func writeBytes(w io.Writer, b []byte) error {
	_, err := w.Write(b)
	return err
}

// readFull reads exactly len(b) bytes from r into b.
func readFull(r io.Reader, b []byte) error {
	_, err := io.ReadFull(r, b)
	return err
}
