// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package consensus

import (
	"encoding/binary"
	"io"
)

// ProofOfWork bundles everything about a header's proof-of-work: the
// per-algo cumulative difficulty, the secondary-scaling factor, the
// solving nonce, the proof itself, and (for RandomX headers) the seed
// that selects the hashing epoch.
type ProofOfWork struct {
	TotalDifficulty  Difficulty
	SecondaryScaling uint32
	Nonce            uint64
	Proof            Proof
	Seed             [32]byte
}

// Bytes serializes the full PoW struct.
func (pow *ProofOfWork) Bytes() []byte {
	buf := pow.TotalDifficulty.Bytes()

	tmp := make([]byte, 4)
	binary.BigEndian.PutUint32(tmp, pow.SecondaryScaling)
	buf = append(buf, tmp...)

	tmp8 := make([]byte, 8)
	binary.BigEndian.PutUint64(tmp8, pow.Nonce)
	buf = append(buf, tmp8...)

	buf = append(buf, pow.Seed[:]...)
	buf = append(buf, pow.Proof.Bytes()...)
	return buf
}

// Read deserializes a ProofOfWork written by Bytes.
func (pow *ProofOfWork) Read(r io.Reader) error {
	diff, err := ReadDifficulty(r)
	if err != nil {
		return err
	}
	pow.TotalDifficulty = diff

	var u32buf [4]byte
	if err := readFull(r, u32buf[:]); err != nil {
		return err
	}
	pow.SecondaryScaling = binary.BigEndian.Uint32(u32buf[:])

	var u64buf [8]byte
	if err := readFull(r, u64buf[:]); err != nil {
		return err
	}
	pow.Nonce = binary.BigEndian.Uint64(u64buf[:])

	if err := readFull(r, pow.Seed[:]); err != nil {
		return err
	}

	return pow.Proof.Read(r)
}

// ToDifficulty computes the work credited to this specific proof, scaled
// per algorithm family:
//   - Cuckoo-family: scale by secondary_scaling for the secondary
//     (Cuckatoo, edge_bits==SecondPoWEdgeBits) proof size, otherwise by
//     graph_weight(height, edge_bits).
//   - RandomX/ProgPow: MAX_U256 / proof_hash_as_u256, approximated here by
//     the high 64 bits of the digest (sufficient precision for the
//     uint64-keyed Difficulty map used throughout this implementation).
func (pow *ProofOfWork) ToDifficulty(ct ChainType, height uint64) Difficulty {
	algo := pow.Proof.PoWAlgo()
	out := Difficulty{}

	switch algo {
	case AlgoCuckaroo, AlgoCuckatoo:
		var scale uint64
		if pow.Proof.EdgeBits == SecondPoWEdgeBits {
			scale = uint64(pow.SecondaryScaling)
			if scale == 0 {
				scale = 1
			}
		} else {
			scale = GraphWeight(ct, height, pow.Proof.EdgeBits)
		}
		hashVal := proofHashU64(pow.Proof.Bytes())
		if hashVal == 0 {
			hashVal = 1
		}
		out[AlgoCuckatoo] = scale
		_ = hashVal
	case AlgoRandomX, AlgoProgPow:
		hashVal := proofHashU64(pow.Proof.HashBytes())
		if hashVal == 0 {
			hashVal = 1
		}
		out[algo] = ^uint64(0) / hashVal
	}

	return out
}

// proofHashU64 reduces a proof's packed bytes to a uint64 work measure via
// blake2b, standing in for the reference implementation's 256-bit
// arithmetic (U256::max_value()/hash) at the precision this Go port's
// uint64-keyed Difficulty type supports.
func proofHashU64(data []byte) uint64 {
	sum := Sum256(data)
	return binary.BigEndian.Uint64(sum[:8])
}

// BlockHeader is the fixed-size portion of a block: everything needed to
// validate the chain of work and commitments without the body.
type BlockHeader struct {
	Version           uint16
	Height            uint64
	PrevHash          Hash
	PrevRoot          Hash
	OutputRoot        Hash
	RangeProofRoot    Hash
	KernelRoot        Hash
	OutputMMRSize     uint64
	KernelMMRSize     uint64
	Timestamp         int64
	TotalKernelOffset [32]byte
	Policy            uint8
	Bottles           Bottles
	PrevTimespan      uint64
	PoW               ProofOfWork
}

// PrePowBytes serializes every header field except nonce, proof and seed;
// its digest is the input to the Cuckoo cycle header and to the
// RandomX/ProgPow hash functions.
func (h *BlockHeader) PrePowBytes() []byte {
	buf := make([]byte, 0, 256)

	tmp2 := make([]byte, 2)
	binary.BigEndian.PutUint16(tmp2, h.Version)
	buf = append(buf, tmp2...)

	tmp8 := make([]byte, 8)
	binary.BigEndian.PutUint64(tmp8, h.Height)
	buf = append(buf, tmp8...)

	buf = append(buf, h.PrevHash[:]...)
	buf = append(buf, h.PrevRoot[:]...)
	buf = append(buf, h.OutputRoot[:]...)
	buf = append(buf, h.RangeProofRoot[:]...)
	buf = append(buf, h.KernelRoot[:]...)

	binary.BigEndian.PutUint64(tmp8, h.OutputMMRSize)
	buf = append(buf, tmp8...)
	binary.BigEndian.PutUint64(tmp8, h.KernelMMRSize)
	buf = append(buf, tmp8...)
	binary.BigEndian.PutUint64(tmp8, uint64(h.Timestamp))
	buf = append(buf, tmp8...)

	buf = append(buf, h.TotalKernelOffset[:]...)
	buf = append(buf, h.Policy)
	buf = append(buf, h.Bottles.Bytes()...)
	binary.BigEndian.PutUint64(tmp8, h.PrevTimespan)
	buf = append(buf, tmp8...)

	buf = append(buf, h.PoW.TotalDifficulty.Bytes()...)
	tmp4 := make([]byte, 4)
	binary.BigEndian.PutUint32(tmp4, h.PoW.SecondaryScaling)
	buf = append(buf, tmp4...)

	return buf
}

// Bytes serializes the full header, including nonce/proof/seed.
func (h *BlockHeader) Bytes() []byte {
	buf := h.PrePowBytes()
	tmp8 := make([]byte, 8)
	binary.BigEndian.PutUint64(tmp8, h.PoW.Nonce)
	buf = append(buf, tmp8...)
	buf = append(buf, h.PoW.Seed[:]...)
	buf = append(buf, h.PoW.Proof.Bytes()...)
	return buf
}

// Read deserializes a BlockHeader written by Bytes.
func (h *BlockHeader) Read(r io.Reader) error {
	var tmp2 [2]byte
	if err := readFull(r, tmp2[:]); err != nil {
		return err
	}
	h.Version = binary.BigEndian.Uint16(tmp2[:])

	var tmp8 [8]byte
	read8 := func() (uint64, error) {
		if err := readFull(r, tmp8[:]); err != nil {
			return 0, err
		}
		return binary.BigEndian.Uint64(tmp8[:]), nil
	}

	height, err := read8()
	if err != nil {
		return err
	}
	h.Height = height

	for _, dst := range []*Hash{&h.PrevHash, &h.PrevRoot, &h.OutputRoot, &h.RangeProofRoot, &h.KernelRoot} {
		if err := readFull(r, dst[:]); err != nil {
			return err
		}
	}

	if h.OutputMMRSize, err = read8(); err != nil {
		return err
	}
	if h.KernelMMRSize, err = read8(); err != nil {
		return err
	}
	ts, err := read8()
	if err != nil {
		return err
	}
	h.Timestamp = int64(ts)

	if err := readFull(r, h.TotalKernelOffset[:]); err != nil {
		return err
	}

	var policyByte [1]byte
	if err := readFull(r, policyByte[:]); err != nil {
		return err
	}
	h.Policy = policyByte[0]

	bottles, err := ReadBottles(r)
	if err != nil {
		return err
	}
	h.Bottles = bottles

	if h.PrevTimespan, err = read8(); err != nil {
		return err
	}

	diff, err := ReadDifficulty(r)
	if err != nil {
		return err
	}
	h.PoW.TotalDifficulty = diff

	var tmp4 [4]byte
	if err := readFull(r, tmp4[:]); err != nil {
		return err
	}
	h.PoW.SecondaryScaling = binary.BigEndian.Uint32(tmp4[:])

	nonce, err := read8()
	if err != nil {
		return err
	}
	h.PoW.Nonce = nonce

	if err := readFull(r, h.PoW.Seed[:]); err != nil {
		return err
	}

	return h.PoW.Proof.Read(r)
}

// Hash returns the header's identity digest: blake2b256 of the full wire
// encoding.
func (h *BlockHeader) Hash() Hash {
	return Sum256(h.Bytes())
}
