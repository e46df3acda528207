// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package chain

import "github.com/dblokhin/epic-go/consensus"

// Checkpoints pins known-good header hashes at specific heights per chain
// type: a header claiming one of these heights must match the pinned hash
// exactly, closing off any reorg that would cross a pinned height
// regardless of claimed work. Updated at each tagged release the way the
// reference chain's checkpoint list is; test chains (UserTesting,
// AutomatedTesting) carry none.
var Checkpoints = map[consensus.ChainType]map[uint64]consensus.Hash{
	consensus.Mainnet: {
		0: GenesisMainnet.Header.Hash(),
	},
	consensus.Testnet: {
		0: GenesisTestnet.Header.Hash(),
	},
}

// checkCheckpoint returns consensus.ErrCheckpointFailure if ct pins
// height to a hash other than hash.
func checkCheckpoint(ct consensus.ChainType, height uint64, hash consensus.Hash) error {
	table, ok := Checkpoints[ct]
	if !ok {
		return nil
	}
	want, ok := table[height]
	if !ok {
		return nil
	}
	if want != hash {
		return consensus.ErrCheckpointFailure
	}
	return nil
}
