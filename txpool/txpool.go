// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

// Package txpool holds not-yet-mined transactions (the main pool) and the
// Dandelion stempool of transactions still in their stem phase, and
// selects a mineable set for block templates.
package txpool

import (
	"errors"
	"sync"

	"github.com/dblokhin/epic-go/consensus"
	"github.com/sirupsen/logrus"
)

// ErrAlreadyInPool is returned when AddToPool is called with a kernel hash
// already held by the pool.
var ErrAlreadyInPool = errors.New("txpool: transaction already in pool")

// ErrPoolFull is returned when the pool has reached its configured maximum
// size and cannot accept new transactions.
var ErrPoolFull = errors.New("txpool: pool is full")

// entry is one pooled transaction, keyed by the hash of its single kernel
// (grin/epic transactions carry exactly one kernel by convention).
type entry struct {
	tx   consensus.Transaction
	fee  uint64
	size uint64
}

// Pool is a thread-safe set of not-yet-mined transactions, guarded by a
// single RWMutex over its backing map — the same pattern the reference
// peer pool uses for its connection tables.
type Pool struct {
	mu      sync.RWMutex
	entries map[consensus.Hash]entry
	maxSize int
}

// New returns an empty pool capped at maxSize transactions.
func New(maxSize int) *Pool {
	return &Pool{
		entries: make(map[consensus.Hash]entry),
		maxSize: maxSize,
	}
}

func kernelKey(tx *consensus.Transaction) consensus.Hash {
	if len(tx.Kernels) == 0 {
		return consensus.ZeroHash
	}
	return tx.Kernels[0].Hash()
}

// AddToPool validates tx is not a duplicate and stages it, returning
// ErrAlreadyInPool or ErrPoolFull as appropriate. Full consensus
// validation (balance equation, range proofs, kernel signatures) is the
// caller's responsibility before calling AddToPool — the pool itself only
// tracks membership and fee/size bookkeeping for the
// "add_to_pool" contract.
func (p *Pool) AddToPool(tx consensus.Transaction) error {
	key := kernelKey(&tx)

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.entries[key]; ok {
		return ErrAlreadyInPool
	}
	if len(p.entries) >= p.maxSize {
		return ErrPoolFull
	}

	p.entries[key] = entry{
		tx:   tx,
		fee:  tx.Fee(),
		size: tx.Weight(),
	}
	logrus.Debugf("txpool: added tx %x (fee=%d)", key.Bytes()[:8], tx.Fee())
	return nil
}

// Remove drops a transaction from the pool by its kernel hash, used once
// a block including it has been accepted.
func (p *Pool) Remove(kernelHash consensus.Hash) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.entries, kernelHash)
}

// Size returns the current number of pooled transactions.
func (p *Pool) Size() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.entries)
}

// PrepareMineableTransactions selects transactions for a new block
// template: highest fee-per-weight first, skipping any transaction that
// would take the total past maxWeight. Each selected transaction is
// returned whole: no cut-through is applied, so a spend-and-create pair
// within the selection stays in the result.
func (p *Pool) PrepareMineableTransactions(maxWeight uint64) ([]consensus.Transaction, error) {
	p.mu.RLock()
	candidates := make([]entry, 0, len(p.entries))
	for _, e := range p.entries {
		candidates = append(candidates, e)
	}
	p.mu.RUnlock()

	sortByFeeRate(candidates)

	var selected []consensus.Transaction
	var weight uint64
	for _, e := range candidates {
		if weight+e.size > maxWeight {
			continue
		}
		selected = append(selected, e.tx)
		weight += e.size
	}

	return selected, nil
}

// sortByFeeRate orders candidates by fee-per-weight descending, highest
// first, using a simple insertion sort since pool sizes are small relative
// to a block template build's frequency.
func sortByFeeRate(entries []entry) {
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0; j-- {
			a, b := entries[j], entries[j-1]
			if feeRate(a) > feeRate(b) {
				entries[j], entries[j-1] = entries[j-1], entries[j]
			} else {
				break
			}
		}
	}
}

func feeRate(e entry) float64 {
	if e.size == 0 {
		return 0
	}
	return float64(e.fee) / float64(e.size)
}

// ReconcileBlock removes from the pool every transaction whose kernel was
// included in block, and evicts any remaining pooled transaction that now
// conflicts with the block's spent outputs (double-spend against the new
// chain tip), dropping entries the block already confirmed.
func (p *Pool) ReconcileBlock(block *consensus.Block) {
	included := make(map[consensus.Hash]bool, len(block.Kernels))
	for _, k := range block.Kernels {
		included[k.Hash()] = true
	}

	spent := make(map[consensus.Commitment]bool, len(block.Inputs))
	for _, in := range block.Inputs {
		spent[in.Commitment] = true
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for key, e := range p.entries {
		if included[key] {
			delete(p.entries, key)
			continue
		}
		for _, in := range e.tx.Inputs {
			if spent[in.Commitment] {
				delete(p.entries, key)
				break
			}
		}
	}
}
