// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package p2p

import (
	"sync"
	"time"

	"github.com/dblokhin/epic-go/chain"
	"github.com/dblokhin/epic-go/consensus"
	"github.com/dblokhin/epic-go/store"
	"github.com/dblokhin/epic-go/txpool"
	"github.com/sirupsen/logrus"
)

// fastSyncThreshold is how far the local tip must trail a peer's
// reported height before header sync triggers a txhashset state-sync
// request instead of continuing to pull bodies one block at a time.
const fastSyncThreshold = consensus.CutThroughHorizon

// minPeers is how many connected peers the syncer waits for before
// trusting any single one's view of the chain enough to start syncing.
const minPeers = 3

// SyncState is the syncer's current substate in the header/body/state
// machine it drives against its peer set.
type SyncState int

const (
	// StateWaitForPeers holds off syncing until minPeers peers connect.
	StateWaitForPeers SyncState = iota
	// StateHeaderSync requests and validates header-only chains from
	// peers, advancing the locator until a peer has nothing more to send.
	StateHeaderSync
	// StateBodySync is entered once a peer has no more headers to send,
	// or after a state-sync archive is accepted. Block bodies are
	// requested (one GetBlock per header) as each header batch arrives
	// during StateHeaderSync; nothing is requested while in this state.
	StateBodySync
	// StateTxHashSetSync requests a txhashset archive snapshot instead of
	// replaying every block body, used when the local tip trails the
	// network by more than the full-history horizon.
	StateTxHashSetSync
	// StateSynced is steady state: new blocks/transactions are relayed as
	// they arrive instead of pulled.
	StateSynced
)

func (s SyncState) String() string {
	switch s {
	case StateWaitForPeers:
		return "wait-for-peers"
	case StateHeaderSync:
		return "header-sync"
	case StateBodySync:
		return "body-sync"
	case StateTxHashSetSync:
		return "txhashset-sync"
	case StateSynced:
		return "synced"
	default:
		return "unknown"
	}
}

// Syncer wires the chain, tx pool and peer pool together, and drives the
// header/body/state sync substates against whichever peers are connected.
type Syncer struct {
	ct    consensus.ChainType
	chain *chain.Chain
	pool  *txpool.Pool
	stem  *txpool.Stempool
	peers *Pool

	mu    sync.Mutex
	state SyncState

	quit chan struct{}
}

// NewSyncer returns a Syncer ready to Start once its peer pool has seed
// addresses.
func NewSyncer(ct consensus.ChainType, c *chain.Chain, pool *txpool.Pool, stem *txpool.Stempool) *Syncer {
	s := &Syncer{
		ct:    ct,
		chain: c,
		pool:  pool,
		stem:  stem,
		state: StateWaitForPeers,
		quit:  make(chan struct{}),
	}
	s.peers = NewPool(magicFor(ct), s.ProcessMessage)
	return s
}

func magicFor(ct consensus.ChainType) consensus.MagicCode {
	if ct == consensus.Mainnet {
		return consensus.MagicMainnet
	}
	return consensus.MagicTestnet
}

// Start adds the seed addresses, begins dialing out, and runs the sync
// state machine until Stop is called.
func (s *Syncer) Start(seeds []string) {
	for _, addr := range seeds {
		s.peers.Add(addr)
	}

	go s.peers.Run(func() consensus.Difficulty { return s.chain.Head().TotalDifficulty })
	go s.syncLoop()
	go s.runDandelion(s.stem)
}

// Stop shuts down the peer pool and the sync loop.
func (s *Syncer) Stop() {
	close(s.quit)
	s.peers.Stop()
}

func (s *Syncer) setState(st SyncState) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
	logrus.Infof("p2p: sync state -> %s", st)
}

// State returns the syncer's current substate.
func (s *Syncer) State() SyncState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// syncLoop advances the header/body sync substates on a fixed tick as
// long as peers are connected and the local tip trails them.
func (s *Syncer) syncLoop() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.quit:
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *Syncer) tick() {
	if s.peers.Count() < minPeers {
		s.setState(StateWaitForPeers)
		return
	}

	switch s.State() {
	case StateWaitForPeers:
		s.setState(StateHeaderSync)
	case StateHeaderSync:
		s.requestHeaders()
	case StateBodySync, StateTxHashSetSync, StateSynced:
		// Steady state: headers/blocks arrive via relay and are handled
		// directly in ProcessMessage. Nothing to poll for here.
	}
}

// requestHeaders sends a GetBlockHeaders built from the local tip to
// every connected peer; responses are handled in ProcessMessage.
func (s *Syncer) requestHeaders() {
	tip := s.chain.Head()
	loc := consensus.BuildLocator(tip.Height, func(h uint64) (consensus.Hash, bool) {
		hdr, err := s.chain.GetHeaderByHeight(h)
		if err != nil {
			return consensus.Hash{}, false
		}
		return hdr.Hash(), true
	})

	req := &GetBlockHeaders{Locator: loc}
	s.peers.Broadcast(req, ^uint64(0)) // no height filter
}

// ProcessMessage dispatches one decoded message from peer, the single
// entry point every Peer's read loop calls into.
func (s *Syncer) ProcessMessage(peer *Peer, message Message) {
	switch msg := message.(type) {
	case *Ping:
		peer.Info.TotalDifficulty = msg.TotalDifficulty
		peer.Info.Height = msg.Height

		tip := s.chain.Head()
		peer.WriteMessage(&Pong{Ping{TotalDifficulty: tip.TotalDifficulty, Height: tip.Height}})

	case *Pong:
		peer.Info.TotalDifficulty = msg.TotalDifficulty
		peer.Info.Height = msg.Height

	case *GetPeerAddrs:
		peer.WriteMessage(s.peers.Peers(msg.Capabilities))

	case *PeerAddrs:
		for _, addr := range msg.Peers {
			s.peers.Add(addr.String())
		}

	case *GetBlockHeaders:
		headers := s.chain.GetBlockHeaders(msg.Locator)
		peer.WriteMessage(&BlockHeaders{Headers: headers})

	case *BlockHeaders:
		s.handleHeaders(peer, msg.Headers)

	case *GetBlock:
		block, err := s.chain.GetBlock(msg.Hash)
		if err == nil {
			peer.WriteMessage(&BlockMsg{Block: *block})
		}

	case *BlockMsg:
		s.handleBlock(peer, &msg.Block)

	case *TransactionMsg:
		if err := s.pool.AddToPool(msg.Tx); err != nil {
			logrus.Debugf("p2p: reject tx from %s: %v", peer.Addr, err)
		}

	case *StemTransactionMsg:
		s.handleStemTransaction(peer, msg.Tx)

	case *TxHashSetRequest:
		s.handleTxHashSetRequest(peer, msg)

	case *TxHashSetArchive:
		s.handleTxHashSetArchive(peer, msg)

	case *PeerError:
		logrus.Warnf("p2p: peer %s reported error %d: %s", peer.Addr, msg.Code, msg.Message)
	}
}

func (s *Syncer) handleHeaders(peer *Peer, headers []consensus.BlockHeader) {
	for i := range headers {
		if err := s.chain.ProcessBlockHeader(&headers[i]); err != nil {
			if consensus.IsBadData(err) {
				s.peers.Ban(peer.Addr, consensus.BanReasonBadBlockHeader)
			}
			return
		}
	}

	if len(headers) == 0 {
		s.setState(StateBodySync)
		return
	}

	tip := s.chain.Head()
	if peer.Info.Height > tip.Height && peer.Info.Height-tip.Height > fastSyncThreshold {
		s.setState(StateTxHashSetSync)
		last := headers[len(headers)-1]
		peer.WriteMessage(&TxHashSetRequest{Hash: last.Hash(), Height: last.Height})
		return
	}

	for i := range headers {
		peer.WriteMessage(&GetBlock{Hash: headers[i].Hash()})
	}
}

// handleTxHashSetRequest answers a peer's state-sync request with a
// snapshot of our own UTXO-set state, provided it matches the hash/height
// the peer asked for.
func (s *Syncer) handleTxHashSetRequest(peer *Peer, msg *TxHashSetRequest) {
	archive, header, err := s.chain.Snapshot()
	if err != nil {
		logrus.Debugf("p2p: txhashset snapshot for %s failed: %v", peer.Addr, err)
		return
	}
	if header.Hash() != msg.Hash || header.Height != msg.Height {
		logrus.Debugf("p2p: txhashset request from %s for stale height %d, our tip is %d", peer.Addr, msg.Height, header.Height)
		return
	}
	peer.WriteMessage(&TxHashSetArchive{Hash: msg.Hash, Height: msg.Height, Archive: archive.Bytes()})
}

// handleTxHashSetArchive validates an incoming state-sync archive against
// the already header-synced block it claims to commit to, and atomically
// replaces local UTXO-set state with it on success.
func (s *Syncer) handleTxHashSetArchive(peer *Peer, msg *TxHashSetArchive) {
	header, err := s.chain.GetHeaderByHash(msg.Hash)
	if err != nil {
		logrus.Debugf("p2p: txhashset archive from %s for unknown header %x", peer.Addr, msg.Hash.Bytes()[:8])
		return
	}

	archive, err := store.DecodeArchive(msg.Archive)
	if err != nil {
		s.peers.Ban(peer.Addr, consensus.BanReasonBadTxHashSet)
		return
	}

	if err := s.chain.ProcessSegment(archive, &header); err != nil {
		logrus.Warnf("p2p: txhashset archive from %s rejected: %v", peer.Addr, err)
		if consensus.IsBadData(err) {
			s.peers.Ban(peer.Addr, consensus.BanReasonBadTxHashSet)
		}
		return
	}

	s.setState(StateBodySync)
}

func (s *Syncer) handleBlock(peer *Peer, block *consensus.Block) {
	if err := s.chain.ProcessBlock(block); err != nil {
		if consensus.IsBadData(err) {
			s.peers.Ban(peer.Addr, consensus.BanReasonBadBlock)
		}
		return
	}

	s.pool.ReconcileBlock(block)

	if block.Header.Height == s.chain.Head().Height {
		s.peers.Broadcast(&BlockMsg{Block: *block}, block.Header.Height)
		s.setState(StateSynced)
	}
}

// handleStemTransaction feeds an incoming Dandelion stem relay into our
// own stempool: we either continue stemming it to one further relay, or
// our epoch has us in fluff mode and we broadcast it outright.
func (s *Syncer) handleStemTransaction(peer *Peer, tx consensus.Transaction) {
	if err := s.pool.AddToPool(tx); err != nil {
		return
	}

	if s.stem.IsStemRelay() {
		s.stem.AddToStem(tx, nowUnix(), dandelionEmbargo)
		relay := s.pickStemRelay()
		if relay != nil {
			relay.WriteMessage(&StemTransactionMsg{Tx: tx})
		}
		return
	}

	s.peers.Broadcast(&TransactionMsg{Tx: tx}, ^uint64(0)) // no height filter
}

// pickStemRelay returns one connected peer to forward a stem transaction
// to, or nil if none are connected.
func (s *Syncer) pickStemRelay() *Peer {
	s.peers.connMu.Lock()
	defer s.peers.connMu.Unlock()

	for _, rec := range s.peers.connected {
		rec.mu.Lock()
		peer := rec.Peer
		rec.mu.Unlock()
		if peer != nil {
			return peer
		}
	}
	return nil
}
