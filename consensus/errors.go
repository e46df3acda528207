// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package consensus

import "errors"

// Error taxonomy for block/header/transaction validation, ported kind-for-
// kind from the reference chain::Error enum. These are
// sentinel values meant to be wrapped with fmt.Errorf("...: %w", ...) and
// matched with errors.Is.
var (
	// ErrOrphan: parent missing, caller retains the block in the orphan pool.
	ErrOrphan = errors.New("consensus: orphan block")

	// ErrUnfit: permanently invalid for this chain (bad root, bad time, bad version).
	ErrUnfit = errors.New("consensus: unfit block")

	// PoW/consensus failures.
	ErrInvalidPow            = errors.New("consensus: invalid proof of work")
	ErrDifficultyTooLow      = errors.New("consensus: difficulty too low")
	ErrDifficultyTooHigh     = errors.New("consensus: difficulty too high")
	ErrWrongTotalDifficulty  = errors.New("consensus: wrong total difficulty")
	ErrInvalidScaling        = errors.New("consensus: invalid secondary scaling")
	ErrLowEdgebits           = errors.New("consensus: edge_bits below minimum")

	// MMR mismatch.
	ErrInvalidRoot    = errors.New("consensus: invalid mmr root")
	ErrInvalidMMRSize = errors.New("consensus: invalid mmr size")

	// Body validation.
	ErrAlreadySpent        = errors.New("consensus: output already spent")
	ErrDuplicateCommitment = errors.New("consensus: duplicate output commitment")
	ErrOutputNotFound      = errors.New("consensus: output not found")
	ErrImmatureCoinbase    = errors.New("consensus: immature coinbase spend")
	ErrTxLockHeight        = errors.New("consensus: transaction not yet mature")
	ErrInvalidBlockProof   = errors.New("consensus: invalid block proof")
	ErrInvalidBlockTime    = errors.New("consensus: invalid block timestamp")
	ErrInvalidBlockHeight  = errors.New("consensus: invalid block height")
	ErrInvalidBlockVersion = errors.New("consensus: invalid block version")
	ErrKernelSumMismatch   = errors.New("consensus: kernel sum does not balance")
	ErrMissingFoundation   = errors.New("consensus: missing foundation output at foundation height")

	// Local store errors: recoverable by repair/compact, not fatal.
	ErrMerkleProof       = errors.New("consensus: merkle proof failure")
	ErrRangeproofNotFound = errors.New("consensus: rangeproof not found")
	ErrTxKernelNotFound  = errors.New("consensus: tx kernel not found")

	// Fatal.
	ErrCheckpointFailure = errors.New("consensus: checkpoint mismatch")

	// Shutdown / infra.
	ErrStopped = errors.New("consensus: stopped")
	ErrStore   = errors.New("consensus: store error")
	ErrIo      = errors.New("consensus: io error")
	ErrSer     = errors.New("consensus: serialization error")

	// Sync-layer aborts; restart the relevant substate.
	ErrSync = errors.New("consensus: sync aborted")
)

// IsBadData classifies an error as originating from untrusted peer input
// that should be scored/banned, versus a local/infrastructure failure that
// should simply be retried or logged. Mirrors the reference
// Error::is_bad_data() classifier.
func IsBadData(err error) bool {
	switch {
	case errors.Is(err, ErrUnfit),
		errors.Is(err, ErrInvalidPow),
		errors.Is(err, ErrDifficultyTooLow),
		errors.Is(err, ErrDifficultyTooHigh),
		errors.Is(err, ErrWrongTotalDifficulty),
		errors.Is(err, ErrInvalidScaling),
		errors.Is(err, ErrLowEdgebits),
		errors.Is(err, ErrInvalidRoot),
		errors.Is(err, ErrInvalidMMRSize),
		errors.Is(err, ErrAlreadySpent),
		errors.Is(err, ErrDuplicateCommitment),
		errors.Is(err, ErrOutputNotFound),
		errors.Is(err, ErrImmatureCoinbase),
		errors.Is(err, ErrTxLockHeight),
		errors.Is(err, ErrInvalidBlockProof),
		errors.Is(err, ErrInvalidBlockTime),
		errors.Is(err, ErrInvalidBlockHeight),
		errors.Is(err, ErrInvalidBlockVersion),
		errors.Is(err, ErrKernelSumMismatch),
		errors.Is(err, ErrMissingFoundation),
		errors.Is(err, ErrCheckpointFailure),
		errors.Is(err, ErrCorruptedData):
		return true
	default:
		return false
	}
}
