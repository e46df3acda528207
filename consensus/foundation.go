// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package consensus

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
)

// FoundationWallet is one entry in the foundation ledger: the commitment
// the levy due at FoundationIndex pays into.
type FoundationWallet struct {
	Index      uint64
	Commitment Commitment
}

type foundationWalletJSON struct {
	Index      uint64 `json:"index"`
	Commitment string `json:"commitment"`
}

// LoadFoundationWallets reads the foundation ledger from path (a JSON
// array of {index, commitment} records, hex-encoded commitments) and
// returns it indexed by FoundationIndex.
func LoadFoundationWallets(path string) (map[uint64]FoundationWallet, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var records []foundationWalletJSON
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("consensus: parsing foundation ledger: %w", err)
	}

	wallets := make(map[uint64]FoundationWallet, len(records))
	for _, r := range records {
		raw, err := hex.DecodeString(r.Commitment)
		if err != nil || len(raw) != CommitmentSize {
			return nil, fmt.Errorf("consensus: foundation ledger record %d: invalid commitment", r.Index)
		}
		var c Commitment
		copy(c[:], raw)
		wallets[r.Index] = FoundationWallet{Index: r.Index, Commitment: c}
	}
	return wallets, nil
}

// FoundationWalletAtHeight resolves the commitment that should receive the
// foundation levy due at height, or false if height isn't a foundation
// height or the ledger has no matching record (the ledger not covering
// every future height is expected; callers fall back to treating the
// levy as unpaid until the ledger is extended).
func FoundationWalletAtHeight(ct ChainType, height uint64, wallets map[uint64]FoundationWallet) (Commitment, bool) {
	if !IsFoundationHeight(ct, height) {
		return Commitment{}, false
	}
	w, ok := wallets[FoundationIndex(ct, height)]
	return w.Commitment, ok
}

// RequireFoundationOutput enforces that outputs contains one whose
// commitment matches the foundation wallet configured for height, when
// height is a foundation height with a matching ledger record. A nil
// wallets map (no ledger configured at all) and a foundation height with
// no ledger record yet both run unenforced — the ledger not covering
// every future height is expected, and nodes that never loaded one (test
// chains, early bring-up) should not reject every block at a foundation
// height outright.
func RequireFoundationOutput(ct ChainType, height uint64, outputs []Output, wallets map[uint64]FoundationWallet) error {
	if wallets == nil {
		return nil
	}
	want, ok := FoundationWalletAtHeight(ct, height, wallets)
	if !ok {
		return nil
	}
	for _, o := range outputs {
		if o.Commitment == want {
			return nil
		}
	}
	return ErrMissingFoundation
}
