// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package txpool

import (
	"math/rand"
	"sync"
	"time"

	"github.com/dblokhin/epic-go/consensus"
)

// dandelionEpoch is the duration a node stays in the same stem/fluff
// relay role before re-rolling, matching the Dandelion++ "epoch" concept:
// short enough to limit the window an adversary can exploit by observing
// stable relay graphs, long enough to keep per-epoch overhead low.
const dandelionEpoch = 10 * time.Minute

// stemProbability is the chance a received transaction is relayed onward
// in stem phase rather than fluffed (broadcast) immediately.
const stemProbability = 0.9

// Stempool holds transactions currently in their Dandelion stem phase,
// embargoed from normal pool visibility until they are fluffed (broadcast
// to the whole network) or their embargo timer expires.
type Stempool struct {
	mu      sync.Mutex
	entries map[consensus.Hash]stemEntry

	relayIsStem bool
	epochStart  time.Time
	randSource  *rand.Rand
}

type stemEntry struct {
	tx          consensus.Transaction
	embargoedAt time.Time
	embargo     time.Duration
}

// NewStempool returns an empty stempool seeded with a fresh relay role.
func NewStempool(seed int64) *Stempool {
	return &Stempool{
		entries:     make(map[consensus.Hash]stemEntry),
		relayIsStem: true,
		epochStart:  time.Unix(0, 0),
		randSource:  rand.New(rand.NewSource(seed)),
	}
}

// RollEpoch re-derives this node's stem/fluff relay role if the current
// epoch has expired, given the current time now.
func (s *Stempool) RollEpoch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if now.Sub(s.epochStart) < dandelionEpoch {
		return
	}
	s.epochStart = now
	s.relayIsStem = s.randSource.Float64() < stemProbability
}

// IsStemRelay reports whether this node is currently in the stem-relay
// role for the present epoch (as opposed to fluff).
func (s *Stempool) IsStemRelay() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.relayIsStem
}

// AddToStem stages tx in the stempool with an embargo timer; if the timer
// expires before the transaction is fluffed by a downstream peer, the
// caller must fluff it directly to the whole network as a Dandelion
// fallback.
func (s *Stempool) AddToStem(tx consensus.Transaction, now time.Time, embargo time.Duration) {
	key := kernelKey(&tx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = stemEntry{tx: tx, embargoedAt: now, embargo: embargo}
}

// Expired returns every stem-phase transaction whose embargo has elapsed
// as of now, and removes them from the stempool — the caller is
// responsible for fluffing them.
func (s *Stempool) Expired(now time.Time) []consensus.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []consensus.Transaction
	for key, e := range s.entries {
		if now.Sub(e.embargoedAt) >= e.embargo {
			out = append(out, e.tx)
			delete(s.entries, key)
		}
	}
	return out
}

// Fluff removes a transaction from the stempool by kernel hash once it has
// been broadcast to the whole network.
func (s *Stempool) Fluff(kernelHash consensus.Hash) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, kernelHash)
}

// Size returns the current number of stem-phase transactions.
func (s *Stempool) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
