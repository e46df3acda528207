// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package chain

import (
	"time"

	"github.com/dblokhin/epic-go/consensus"
)

// GenesisTestnet is the genesis block used by consensus.UserTesting /
// consensus.AutomatedTesting chain types: low difficulty, fast blocks, a
// fixed past timestamp so test chains don't need real PoW.
var GenesisTestnet = consensus.Block{
	Header: consensus.BlockHeader{
		Version:   1,
		Height:    0,
		PrevHash:  consensus.ZeroHash,
		Timestamp: time.Date(2019, 1, 15, 16, 0, 0, 0, time.UTC).Unix(),
		PoW: consensus.ProofOfWork{
			TotalDifficulty:  consensus.Difficulty{consensus.AlgoCuckatoo: 10},
			SecondaryScaling: 1,
			Nonce:            0,
			Proof: consensus.Proof{
				Algo:     consensus.AlgoCuckatoo,
				EdgeBits: consensus.DefaultMinEdgeBits,
			},
		},
	},
}

// GenesisMainnet is the production genesis block. The proof-of-work
// fields are placeholders: a real launch fixes Nonce/Proof/Timestamp to
// the values that were actually mined, exactly as the reference chain's
// Mainnet genesis does.
var GenesisMainnet = consensus.Block{
	Header: consensus.BlockHeader{
		Version:   1,
		Height:    0,
		PrevHash:  consensus.ZeroHash,
		Timestamp: time.Date(2019, 3, 1, 0, 0, 0, 0, time.UTC).Unix(),
		PoW: consensus.ProofOfWork{
			TotalDifficulty:  consensus.Difficulty{consensus.AlgoCuckatoo: 1000},
			SecondaryScaling: 1,
			Nonce:            0,
			Proof: consensus.Proof{
				Algo:     consensus.AlgoCuckatoo,
				EdgeBits: consensus.DefaultMinEdgeBits,
			},
		},
	},
}

// GenesisFor returns the reference genesis block for ct.
func GenesisFor(ct consensus.ChainType) consensus.Block {
	switch ct {
	case consensus.Mainnet:
		return GenesisMainnet
	default:
		return GenesisTestnet
	}
}
