// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package consensus

import (
	"sort"

	"github.com/dblokhin/epic-go/secp256k1zkp"
	"github.com/yoss22/bulletproofs"
)

// ValidateBlockBody checks everything about a block's body that doesn't
// require chain context: canonical ordering, absence of cut-through
// opportunities, range proof validity on every output, kernel signature
// validity, and the kernel-excess balance equation. Height-dependent
// checks (coinbase maturity, foundation output presence, difficulty) are
// the chain package's responsibility once it has the header index
// available.
func ValidateBlockBody(b *Block) error {
	if !sort.IsSorted(sortInputs(b.Inputs)) ||
		!sort.IsSorted(sortOutputs(b.Outputs)) ||
		!sort.IsSorted(sortKernels(b.Kernels)) {
		return ErrUnfit
	}

	keepIn, keepOut := CutThrough(b.Inputs, b.Outputs)
	if len(keepIn) != len(b.Inputs) || len(keepOut) != len(b.Outputs) {
		return ErrDuplicateCommitment
	}

	seen := make(map[Commitment]bool, len(b.Outputs))
	for _, o := range b.Outputs {
		if seen[o.Commitment] {
			return ErrDuplicateCommitment
		}
		seen[o.Commitment] = true

		if err := secp256k1zkp.VerifyRangeProof(o.Commitment, o.RangeProof); err != nil {
			return ErrInvalidBlockProof
		}
	}

	for _, k := range b.Kernels {
		point, err := secp256k1zkp.DecodeCommitment(k.ExcessCommit)
		if err != nil {
			return ErrKernelSumMismatch
		}
		msg := secp256k1zkp.ComputeMessage(k.Fee, k.LockHeight)
		sig := secp256k1zkp.DecodeSignature([64]byte(asArray64(k.ExcessSig)))
		if !secp256k1zkp.VerifySignature(*point, msg, sig) {
			return ErrKernelSumMismatch
		}
	}

	if _, _, err := b.Coinbase(); err != nil {
		return ErrUnfit
	}

	return validateKernelSum(b)
}

// asArray64 copies b into a 64-byte array, zero-padding a short slice so
// malformed wire data fails signature verification instead of panicking.
func asArray64(b []byte) []byte {
	out := make([]byte, 64)
	copy(out, b)
	return out
}

// validateKernelSum checks the core Mimblewimble balance equation:
// sum(output commitments) - sum(input commitments) == sum(kernel
// excesses) + offset*G, recast as sum(outputs) == sum(inputs) +
// sum(excesses) since the offset is itself folded into the kernel excess
// by convention here.
func validateKernelSum(b *Block) error {
	var outPoints, inPoints, excessPoints []*bulletproofs.Point

	for _, o := range b.Outputs {
		p, err := secp256k1zkp.DecodeCommitment(o.Commitment)
		if err != nil {
			return ErrKernelSumMismatch
		}
		outPoints = append(outPoints, p)
	}
	for _, in := range b.Inputs {
		p, err := secp256k1zkp.DecodeCommitment(in.Commitment)
		if err != nil {
			return ErrKernelSumMismatch
		}
		inPoints = append(inPoints, p)
	}
	for _, k := range b.Kernels {
		p, err := secp256k1zkp.DecodeCommitment(k.ExcessCommit)
		if err != nil {
			return ErrKernelSumMismatch
		}
		excessPoints = append(excessPoints, p)
	}

	lhs := secp256k1zkp.SumCommitments(outPoints)
	rhsInputs := secp256k1zkp.NegatePoint(secp256k1zkp.SumCommitments(inPoints))
	rhs := secp256k1zkp.SumCommitments(append(excessPoints, rhsInputs))

	if lhs.X.Cmp(rhs.X) != 0 || lhs.Y.Cmp(rhs.Y) != 0 {
		return ErrKernelSumMismatch
	}
	return nil
}
