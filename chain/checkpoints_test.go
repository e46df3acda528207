// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package chain

import (
	"errors"
	"testing"

	"github.com/dblokhin/epic-go/consensus"
)

func TestCheckCheckpointAcceptsPinnedHash(t *testing.T) {
	hash := GenesisMainnet.Header.Hash()
	if err := checkCheckpoint(consensus.Mainnet, 0, hash); err != nil {
		t.Fatalf("expected pinned genesis hash to pass, got %v", err)
	}
}

func TestCheckCheckpointRejectsMismatch(t *testing.T) {
	wrong := consensus.Sum256([]byte("not the real genesis"))
	err := checkCheckpoint(consensus.Mainnet, 0, wrong)
	if !errors.Is(err, consensus.ErrCheckpointFailure) {
		t.Fatalf("expected ErrCheckpointFailure, got %v", err)
	}
}

func TestCheckCheckpointIgnoresUnpinnedHeight(t *testing.T) {
	hash := consensus.Sum256([]byte("whatever, height 1 isn't pinned"))
	if err := checkCheckpoint(consensus.Mainnet, 1, hash); err != nil {
		t.Fatalf("expected unpinned height to pass, got %v", err)
	}
}

func TestCheckCheckpointIgnoresTestChains(t *testing.T) {
	hash := consensus.Sum256([]byte("test chain genesis varies per run"))
	if err := checkCheckpoint(consensus.AutomatedTesting, 0, hash); err != nil {
		t.Fatalf("expected test chain type to carry no checkpoints, got %v", err)
	}
}
