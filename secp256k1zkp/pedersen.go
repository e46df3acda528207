// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package secp256k1zkp

import (
	"bytes"
	"errors"
	"math/big"

	"github.com/btcsuite/btcd/btcec"
	"github.com/yoss22/bulletproofs"
)

// ErrInvalidRangeProof is returned by VerifyRangeProof when a bulletproof
// does not attest that its commitment's hidden value lies in range.
var ErrInvalidRangeProof = errors.New("secp256k1zkp: invalid range proof")

// ErrInvalidCommitment is returned when a commitment cannot be decoded to
// a curve point.
var ErrInvalidCommitment = errors.New("secp256k1zkp: invalid commitment")

// rangeProver is shared across calls: bulletproofs.NewProver(64) builds
// the generator tables for 64-bit range proofs once, matching the
// reference usage in block validation.
var rangeProver = bulletproofs.NewProver(64)

// DecodeCommitment decompresses a 33-byte commitment into a curve point.
func DecodeCommitment(commit [33]byte) (*bulletproofs.Point, error) {
	p := new(bulletproofs.Point)
	p.X = new(big.Int).SetBytes(commit[1:])
	p.Y = decompressPoint(commit[1:])
	if p.Y == nil {
		return nil, ErrInvalidCommitment
	}
	if commit[0] == TagPubkeyOdd && p.Y.Bit(0) == 0 {
		p.Y.Neg(p.Y)
	}
	return p, nil
}

// EncodeCommitment compresses a curve point into its 33-byte commitment form.
func EncodeCommitment(p *bulletproofs.Point) [33]byte {
	return CompressPubkey(*p)
}

// VerifyRangeProof checks that proof attests commit's hidden value lies in
// the 64-bit range required of every output, delegating to the
// bulletproofs verifier exactly as the reference block-validation path
// does (prover.Verify(commitment, proof)).
func VerifyRangeProof(commit [33]byte, proof []byte) error {
	point, err := DecodeCommitment(commit)
	if err != nil {
		return err
	}

	bp := new(bulletproofs.BulletProof)
	if err := bp.Read(bytes.NewReader(proof)); err != nil {
		return ErrInvalidRangeProof
	}

	if !rangeProver.Verify(point, *bp) {
		return ErrInvalidRangeProof
	}
	return nil
}

// SumCommitments homomorphically adds a set of commitments, used by the
// kernel-sum balance check: sum(outputs) - sum(inputs) - fee*H ==
// sum(kernel excesses) + offset*G.
func SumCommitments(points []*bulletproofs.Point) *bulletproofs.Point {
	if len(points) == 0 {
		return &bulletproofs.Point{X: big.NewInt(0), Y: big.NewInt(0)}
	}
	sum := points[0]
	for _, p := range points[1:] {
		sum = SumPoints(sum, p)
	}
	return sum
}

// NegatePoint returns -P (same X, negated Y mod the field), used to turn
// commitment addition into subtraction for the balance equation.
func NegatePoint(p *bulletproofs.Point) *bulletproofs.Point {
	neg := new(big.Int).Neg(p.Y)
	neg.Mod(neg, btcec.S256().P)
	return &bulletproofs.Point{X: p.X, Y: neg}
}
