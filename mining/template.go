// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

// Package mining implements the three-step block template flow a miner
// drives against the node: GetBlockTemplate, FinalizeBlockTemplate, and
// SubmitBlock.
package mining

import (
	"errors"

	"github.com/dblokhin/epic-go/chain"
	"github.com/dblokhin/epic-go/consensus"
	"github.com/dblokhin/epic-go/pow"
	"github.com/dblokhin/epic-go/txpool"
	"github.com/sirupsen/logrus"
)

// ErrStaleTemplate is returned by FinalizeBlockTemplate when the
// template's previous-block hash no longer matches the chain tip.
var ErrStaleTemplate = errors.New("mining: template built on a stale tip")

// maxBlockWeight bounds how much of the pool a single template pulls in.
const maxBlockWeight = 1 << 16

// Template is an unsolved block body plus the pre-pow header bytes a
// miner hashes against; it carries no nonce/proof yet.
type Template struct {
	Block      consensus.Block
	Height     uint64
	PrePowHash []byte
}

// Service wires a Chain and a tx pool together to answer the mining
// three-step protocol.
type Service struct {
	chain *chain.Chain
	pool  *txpool.Pool
	ct    consensus.ChainType
}

// NewService returns a mining Service over c and pool.
func NewService(ct consensus.ChainType, c *chain.Chain, pool *txpool.Pool) *Service {
	return &Service{chain: c, pool: pool, ct: ct}
}

// GetBlockTemplate assembles an unsolved block extending the current
// chain tip: the caller-supplied coinbase output and kernel, plus the
// highest fee-rate transactions the pool can fit under maxBlockWeight.
// No cut-through is applied to the selection.
func (s *Service) GetBlockTemplate(algo consensus.Algo, coinbaseOutput consensus.Output, coinbaseKernel consensus.TxKernel) (*Template, error) {
	tip := s.chain.Head()
	height := tip.Height + 1

	parent, err := s.chain.GetHeaderByHash(tip.Hash)
	if err != nil {
		return nil, err
	}

	policyIdx, err := consensus.DefaultPolicyConfig().LargestAllotment(height, algo)
	if err != nil {
		return nil, err
	}

	txs, err := s.pool.PrepareMineableTransactions(maxBlockWeight)
	if err != nil {
		return nil, err
	}

	var inputs []consensus.Input
	var outputs []consensus.Output
	var kernels []consensus.TxKernel
	for _, tx := range txs {
		inputs = append(inputs, tx.Inputs...)
		outputs = append(outputs, tx.Outputs...)
		kernels = append(kernels, tx.Kernels...)
	}
	inputs, outputs = consensus.CutThrough(inputs, outputs)

	outputs = append(outputs, coinbaseOutput)
	kernels = append(kernels, coinbaseKernel)

	block := consensus.Block{
		Header: consensus.BlockHeader{
			Version:  s.ct.HeaderVersion(height),
			Height:   height,
			PrevHash: tip.Hash,
			Policy:   policyIdx,
			Bottles:  consensus.NextBottles(parent.Bottles, algo),
		},
		Inputs:  inputs,
		Outputs: outputs,
		Kernels: kernels,
	}
	block.Sort()

	block.Header.PoW.Proof.Algo = algo
	if algo == consensus.AlgoCuckaroo || algo == consensus.AlgoCuckatoo {
		block.Header.PoW.Proof.EdgeBits = consensus.DefaultMinEdgeBits
	}

	logrus.Debugf("mining: built template height=%d txs=%d", height, len(txs))

	return &Template{
		Block:      block,
		Height:     height,
		PrePowHash: block.Header.PrePowBytes(),
	}, nil
}

// FinalizeBlockTemplate plugs a solved proof (nonce + algorithm-specific
// proof data) back into the template, recomputing everything that depends
// on it (difficulty accounting, timestamp), and returns the finished
// block ready for SubmitBlock. Returns ErrStaleTemplate if the chain tip
// moved since the template was built.
func (s *Service) FinalizeBlockTemplate(tmpl *Template, nonce uint64, proof consensus.Proof, minedAt int64) (*consensus.Block, error) {
	if tmpl.Block.Header.PrevHash != s.chain.Head().Hash {
		return nil, ErrStaleTemplate
	}

	block := tmpl.Block
	block.Header.PoW.Nonce = nonce
	block.Header.PoW.Proof = proof
	block.Header.Timestamp = minedAt

	parent, err := s.chain.GetHeaderByHash(block.Header.PrevHash)
	if err != nil {
		return nil, err
	}
	blockDiff := block.Header.PoW.ToDifficulty(s.ct, block.Header.Height)
	block.Header.PoW.TotalDifficulty = parent.PoW.TotalDifficulty.Add(blockDiff)

	return &block, nil
}

// SubmitBlock verifies the finished block's proof of work and hands it to
// the chain for full validation and acceptance.
func (s *Service) SubmitBlock(block *consensus.Block, verifier *pow.Verifier, expectedSeed [32]byte) error {
	if err := verifier.Verify(&block.Header, expectedSeed); err != nil {
		return err
	}
	return s.chain.ProcessBlock(block)
}
