// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package consensus

import (
	"encoding/binary"
	"errors"
	"io"
)

// Algo identifies one of the four supported proof-of-work families. The
// numeric values are the on-wire tag bytes.
type Algo uint8

const (
	AlgoCuckaroo Algo = 0
	AlgoCuckatoo Algo = 1
	AlgoRandomX  Algo = 2
	AlgoProgPow  Algo = 3
	// AlgoMD5 is test-only and never appears in a Policy map, but is a
	// valid Proof variant tag for automated-testing chains.
	AlgoMD5 Algo = 4
)

// Algos lists every algorithm in the stable order used whenever bottles
// or policy maps need a deterministic iteration order (tie-breaks in
// Feijoada selection).
var Algos = [...]Algo{AlgoCuckaroo, AlgoCuckatoo, AlgoRandomX, AlgoProgPow}

func (a Algo) String() string {
	switch a {
	case AlgoCuckaroo:
		return "cuckaroo"
	case AlgoCuckatoo:
		return "cuckatoo"
	case AlgoRandomX:
		return "randomx"
	case AlgoProgPow:
		return "progpow"
	case AlgoMD5:
		return "md5"
	default:
		return "unknown"
	}
}

// ErrCorruptedData is returned by Read() implementations across the wire
// types on (a) unknown tag bytes, (b) length prefixes exceeding a per-type
// cap, (c) leftover bits inside bit-packed fields. Callers
// must treat this as ban-worthy when it originates from a peer.
var ErrCorruptedData = errors.New("consensus: corrupted data")

// Proof is exactly one of the five proof shapes. Only one of the fields is
// meaningful, selected by Algo.
type Proof struct {
	Algo Algo

	// Cuckoo-family (Cuckaroo/Cuckatoo): variable edge_bits, 42 packed nonces.
	EdgeBits uint8
	Nonces   []uint64

	// RandomX
	RandomXHash [32]byte

	// ProgPow
	ProgPowMix [32]byte

	// MD5, test only
	MD5Proof string
}

// packedNonceBytes returns the number of bytes needed to bit-pack
// len(nonces) values of edgeBits width each.
func packedNonceBytes(edgeBits uint8, count int) int {
	bits := int(edgeBits) * count
	return (bits + 7) / 8
}

// packNonces bit-packs nonces at edgeBits bits each, matching the
// reference implementation's proof serialization.
func packNonces(edgeBits uint8, nonces []uint64) []byte {
	out := make([]byte, packedNonceBytes(edgeBits, len(nonces)))
	bitPos := 0
	for _, n := range nonces {
		for b := 0; b < int(edgeBits); b++ {
			if n&(1<<uint(b)) != 0 {
				out[bitPos/8] |= 1 << uint(bitPos%8)
			}
			bitPos++
		}
	}
	return out
}

// unpackNonces is the inverse of packNonces.
func unpackNonces(edgeBits uint8, count int, data []byte) ([]uint64, error) {
	if len(data) < packedNonceBytes(edgeBits, count) {
		return nil, ErrCorruptedData
	}
	nonces := make([]uint64, count)
	bitPos := 0
	for i := 0; i < count; i++ {
		var n uint64
		for b := 0; b < int(edgeBits); b++ {
			if data[bitPos/8]&(1<<uint(bitPos%8)) != 0 {
				n |= 1 << uint(b)
			}
			bitPos++
		}
		nonces[i] = n
	}
	for ; bitPos < packedNonceBytes(edgeBits, count)*8; bitPos++ {
		if data[bitPos/8]&(1<<uint(bitPos%8)) != 0 {
			return nil, ErrCorruptedData
		}
	}
	return nonces, nil
}

// Bytes serializes the proof in full (wire/store) mode: tag byte, then the
// variant payload including edge_bits where applicable.
func (p *Proof) Bytes() []byte {
	buf := []byte{byte(p.Algo)}
	switch p.Algo {
	case AlgoCuckaroo, AlgoCuckatoo:
		buf = append(buf, p.EdgeBits)
		buf = append(buf, packNonces(p.EdgeBits, p.Nonces)...)
	case AlgoRandomX:
		buf = append(buf, p.RandomXHash[:]...)
	case AlgoProgPow:
		buf = append(buf, p.ProgPowMix[:]...)
	case AlgoMD5:
		buf = append(buf, p.EdgeBits)
		lenBuf := make([]byte, 2)
		binary.BigEndian.PutUint16(lenBuf, uint16(len(p.MD5Proof)))
		buf = append(buf, lenBuf...)
		buf = append(buf, []byte(p.MD5Proof)...)
	}
	return buf
}

// HashBytes serializes the proof in hash mode: the Cuckoo-family edge_bits
// is omitted, since it is implied by context and must not perturb the
// object's identity hash.
func (p *Proof) HashBytes() []byte {
	buf := []byte{byte(p.Algo)}
	switch p.Algo {
	case AlgoCuckaroo, AlgoCuckatoo:
		buf = append(buf, packNonces(p.EdgeBits, p.Nonces)...)
	case AlgoRandomX:
		buf = append(buf, p.RandomXHash[:]...)
	case AlgoProgPow:
		buf = append(buf, p.ProgPowMix[:]...)
	case AlgoMD5:
		buf = append(buf, []byte(p.MD5Proof)...)
	}
	return buf
}

// Read deserializes a full-mode Proof from r.
func (p *Proof) Read(r io.Reader) error {
	var tag [1]byte
	if err := readFull(r, tag[:]); err != nil {
		return err
	}
	p.Algo = Algo(tag[0])

	switch p.Algo {
	case AlgoCuckaroo, AlgoCuckatoo:
		var eb [1]byte
		if err := readFull(r, eb[:]); err != nil {
			return err
		}
		p.EdgeBits = eb[0]
		if p.EdgeBits == 0 || p.EdgeBits > 63 {
			return ErrCorruptedData
		}
		packed := make([]byte, packedNonceBytes(p.EdgeBits, ProofSize))
		if err := readFull(r, packed); err != nil {
			return err
		}
		nonces, err := unpackNonces(p.EdgeBits, ProofSize, packed)
		if err != nil {
			return err
		}
		p.Nonces = nonces
	case AlgoRandomX:
		if err := readFull(r, p.RandomXHash[:]); err != nil {
			return err
		}
	case AlgoProgPow:
		if err := readFull(r, p.ProgPowMix[:]); err != nil {
			return err
		}
	case AlgoMD5:
		var eb [1]byte
		if err := readFull(r, eb[:]); err != nil {
			return err
		}
		p.EdgeBits = eb[0]
		var lenBuf [2]byte
		if err := readFull(r, lenBuf[:]); err != nil {
			return err
		}
		strLen := binary.BigEndian.Uint16(lenBuf[:])
		if strLen > 4096 {
			return ErrCorruptedData
		}
		strBuf := make([]byte, strLen)
		if err := readFull(r, strBuf); err != nil {
			return err
		}
		p.MD5Proof = string(strBuf)
	default:
		return ErrCorruptedData
	}

	return nil
}

// PoWAlgo returns the Algo implied by a Proof, resolving the Cuckoo-family
// ambiguity by edge_bits exactly as the reference PoWType::from(Proof)
// conversion: edge_bits 19 or 31 select Cuckatoo, any other Cuckoo
// edge_bits select Cuckaroo.
func (p *Proof) PoWAlgo() Algo {
	switch p.Algo {
	case AlgoCuckaroo, AlgoCuckatoo:
		if p.EdgeBits == 19 || p.EdgeBits == SecondPoWEdgeBits {
			return AlgoCuckatoo
		}
		return AlgoCuckaroo
	default:
		return p.Algo
	}
}
