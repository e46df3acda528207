// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

// Package chain implements the block and header validation pipeline,
// fork-choice, and reorg handling on top of the store package's PMMR
// state and the consensus package's validation rules.
package chain

import (
	"math/rand"
	"sync"

	"github.com/dblokhin/epic-go/consensus"
	"github.com/dblokhin/epic-go/pow"
	"github.com/dblokhin/epic-go/store"
	"github.com/sirupsen/logrus"
)

// ErrBlockNotFound (storage.go) and the consensus package's error
// taxonomy (ErrOrphan, ErrUnfit, ErrDifficultyTooLow,
// ErrWrongTotalDifficulty) cover header/body validation failures; this
// package reuses them directly rather than declaring parallel sentinels.

// compactionRollDenominator is the odds (1 in N) that a successfully
// applied block triggers an opportunistic compaction pass, matching the
// "runs opportunistically with a random per-block roll" compaction
// behavior instead of running it on every block.
const compactionRollDenominator = 20

// Tip is the current best-known (hash, height, total difficulty) triple,
// returned by Head so callers don't need the internal lock.
type Tip struct {
	Hash            consensus.Hash
	Height          uint64
	TotalDifficulty consensus.Difficulty
}

// Chain is the node's view of validated headers and blocks: a
// sync.RWMutex-guarded struct wrapping the backing store, mirroring the
// reference chain type's single-lock-over-storage design.
type Chain struct {
	mu sync.RWMutex

	ct       consensus.ChainType
	store    *store.Store
	verifier *pow.Verifier

	genesisHash consensus.Hash
	tip         Tip

	// foundationWallets is the loaded foundation ledger, nil if none was
	// configured; RequireFoundationOutput treats a nil map as unenforced.
	foundationWallets map[uint64]consensus.FoundationWallet

	orphans *orphanPool
}

// New opens a Chain over s, initializing it with genesis if the store is
// empty, or resuming from the previously persisted tip otherwise.
// foundationWallets may be nil, in which case foundation-output
// enforcement is skipped entirely (see consensus.RequireFoundationOutput).
func New(ct consensus.ChainType, s *store.Store, genesis *consensus.Block, foundationWallets map[uint64]consensus.FoundationWallet) (*Chain, error) {
	c := &Chain{
		ct:                ct,
		store:             s,
		verifier:          pow.NewVerifier(ct, nil),
		orphans:           newOrphanPool(),
		foundationWallets: foundationWallets,
	}

	genesisHash := genesis.Hash()
	c.genesisHash = genesisHash

	if _, err := getHeaderByHash(s, genesisHash); err == ErrBlockNotFound {
		if err := c.storeGenesis(genesis); err != nil {
			return nil, err
		}
	}

	sh, err := getHeaderByHash(s, genesisHash)
	if err != nil {
		return nil, err
	}
	c.tip = Tip{Hash: genesisHash, Height: sh.Header.Height, TotalDifficulty: sh.TotalDifficulty}

	// Resume the persisted chain tip, if one was recorded past genesis.
	if buf, err := s.Get(store.TableHeader, []byte("tip")); err == nil {
		tipHash := consensus.HashFromBytes(buf)
		if tsh, err := getHeaderByHash(s, tipHash); err == nil {
			c.tip = Tip{Hash: tipHash, Height: tsh.Header.Height, TotalDifficulty: tsh.TotalDifficulty}
		}
	}

	return c, nil
}

func (c *Chain) storeGenesis(genesis *consensus.Block) error {
	hash := genesis.Hash()
	sh := storedHeader{
		Header:          genesis.Header,
		TotalDifficulty: genesis.Header.PoW.TotalDifficulty,
	}
	if err := putHeader(c.store, hash, sh); err != nil {
		return err
	}
	if err := setHeightIndex(c.store, sh.Header.Height, hash); err != nil {
		return err
	}
	if err := putBlockBody(c.store, hash, genesis); err != nil {
		return err
	}
	return c.store.Put(store.TableHeader, []byte("tip"), hash.Bytes())
}

// Head returns the current best tip.
func (c *Chain) Head() Tip {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tip
}

// GetHeaderByHash returns the indexed header for hash.
func (c *Chain) GetHeaderByHash(hash consensus.Hash) (consensus.BlockHeader, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	sh, err := getHeaderByHash(c.store, hash)
	return sh.Header, err
}

// GetHeaderByHeight returns the main-chain header at height.
func (c *Chain) GetHeaderByHeight(height uint64) (consensus.BlockHeader, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	hash, err := getHashAtHeight(c.store, height)
	if err != nil {
		return consensus.BlockHeader{}, err
	}
	sh, err := getHeaderByHash(c.store, hash)
	return sh.Header, err
}

// GetBlock returns the full block body for hash.
func (c *Chain) GetBlock(hash consensus.Hash) (*consensus.Block, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return getBlockBody(c.store, hash)
}

// GetBlockHeaders answers a header-sync request: it finds the first
// locator hash the store recognizes and returns up to
// consensus.MaxBlockHeaders main-chain headers at the heights after it.
// The recognized header itself is not included.
func (c *Chain) GetBlockHeaders(loc consensus.Locator) []consensus.BlockHeader {
	c.mu.RLock()
	defer c.mu.RUnlock()

	hashes := loc.Hashes
	if len(hashes) > consensus.MaxLocators {
		hashes = hashes[:consensus.MaxLocators]
	}

	for _, h := range hashes {
		start, err := getHeaderByHash(c.store, h)
		if err != nil {
			continue
		}
		var out []consensus.BlockHeader
		for height := start.Header.Height + 1; len(out) < consensus.MaxBlockHeaders; height++ {
			hash, err := getHashAtHeight(c.store, height)
			if err != nil {
				break
			}
			sh, err := getHeaderByHash(c.store, hash)
			if err != nil {
				break
			}
			out = append(out, sh.Header)
		}
		return out
	}
	return nil
}

// Snapshot returns a txhashset archive of the current tip's UTXO-set
// state and the header it commits to, for serving to a peer requesting
// state sync.
func (c *Chain) Snapshot() (*store.Archive, consensus.BlockHeader, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	sh, err := getHeaderByHash(c.store, c.tip.Hash)
	if err != nil {
		return nil, consensus.BlockHeader{}, err
	}
	archive, err := c.store.Snapshot()
	return archive, sh.Header, err
}

// ProcessSegment validates a txhashset archive against header's committed
// roots and, on success, atomically replaces local UTXO-set state with
// it — the state-sync alternative to replaying every block body from
// genesis once a node trails the network by more than the cut-through
// horizon. header must already be header-synced and indexed.
func (c *Chain) ProcessSegment(archive *store.Archive, header *consensus.BlockHeader) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	hash := header.Hash()
	sh, err := getHeaderByHash(c.store, hash)
	if err != nil {
		return consensus.ErrOrphan
	}

	txs, batch, err := c.store.StageSnapshot(archive)
	if err != nil {
		return err
	}

	outRoot, proofRoot, kernelRoot, err := txs.Roots()
	if err != nil {
		batch.Discard()
		return err
	}
	if outRoot != header.OutputRoot || proofRoot != header.RangeProofRoot || kernelRoot != header.KernelRoot {
		batch.Discard()
		return consensus.ErrInvalidRoot
	}

	if err := batch.Commit(); err != nil {
		return err
	}

	sh.OutputMMRSize = header.OutputMMRSize
	sh.KernelMMRSize = header.KernelMMRSize
	sh.ProofMMRSize = header.OutputMMRSize // one range proof per output, always appended together

	if err := putHeader(c.store, hash, sh); err != nil {
		return err
	}
	if err := setHeightIndex(c.store, header.Height, hash); err != nil {
		return err
	}
	c.setTip(hash, sh)

	logrus.Infof("chain: txhashset sync complete, tip height=%d hash=%x", header.Height, hash.Bytes()[:8])
	return nil
}

// validateHeaderStateless checks everything derivable from the header
// alone: policy/bottles well-formedness and proof-of-work validity against
// its own declared difficulty.
func (c *Chain) validateHeaderStateless(header *consensus.BlockHeader) error {
	pc := consensus.DefaultPolicyConfig()
	policy, err := pc.Policy(header.Policy)
	if err != nil {
		return consensus.ErrUnfit
	}
	if err := consensus.CheckPolicy(policy); err != nil {
		return err
	}
	if !pc.IsAllowedPolicy(header.Policy, header.Height) {
		return consensus.ErrUnfit
	}

	// Looks up the seed-epoch ancestor directly against the store: this
	// runs with c.mu already held by the caller, so it must not go through
	// the public (locking) accessors.
	var expectedSeed [32]byte
	if header.PoW.Proof.Algo == consensus.AlgoRandomX {
		seedHeight := pow.CurrentSeedHeight(header.Height)
		if seedHash, err := getHashAtHeight(c.store, seedHeight); err == nil {
			if seedHeaderEntry, err := getHeaderByHash(c.store, seedHash); err == nil {
				expectedSeed = seedHeaderEntry.Header.Hash()
			}
		}
	}

	return c.verifier.Verify(header, expectedSeed)
}

// validateHeaderContextual checks header against its claimed parent:
// timestamp ordering, total difficulty accounting, and the retargeted
// minimum difficulty for its algorithm.
func (c *Chain) validateHeaderContextual(header *consensus.BlockHeader, parent storedHeader) error {
	if header.Timestamp <= parent.Header.Timestamp {
		return consensus.ErrUnfit
	}

	wantTotal := parent.TotalDifficulty.Add(header.PoW.ToDifficulty(c.ct, header.Height))
	gotTotal := header.PoW.TotalDifficulty
	if gotTotal.Get(consensus.AlgoCuckatoo) != wantTotal.Get(consensus.AlgoCuckatoo) {
		return consensus.ErrWrongTotalDifficulty
	}

	algo := header.PoW.Proof.Algo
	blockDiff := header.PoW.ToDifficulty(c.ct, header.Height).Get(algo)

	window := c.recentHeaderInfos(parent, algo, consensus.DifficultyAdjustWindow+1)
	required := consensus.NextDifficulty(c.ct, header.Height, algo, window)
	if blockDiff < required {
		return consensus.ErrDifficultyTooLow
	}

	return nil
}

// recentHeaderInfos walks back from parent collecting up to n
// HeaderInfo samples for algo, then reverses them to the oldest-first
// order NextDifficulty's window requires.
func (c *Chain) recentHeaderInfos(parent storedHeader, algo consensus.Algo, n uint64) []consensus.HeaderInfo {
	infos := make([]consensus.HeaderInfo, 0, n)
	cur := parent
	for uint64(len(infos)) < n {
		infos = append(infos, consensus.HeaderInfo{
			Timestamp:        cur.Header.Timestamp,
			Difficulty:       cur.Header.PoW.ToDifficulty(c.ct, cur.Header.Height).Get(algo),
			SecondaryScaling: cur.Header.PoW.SecondaryScaling,
			PrevTimespan:     cur.Header.PrevTimespan,
		})
		if cur.Header.Height == 0 {
			break
		}
		prevHash := cur.Header.PrevHash
		next, err := getHeaderByHash(c.store, prevHash)
		if err != nil {
			break
		}
		cur = next
	}
	for i, j := 0, len(infos)-1; i < j; i, j = i+1, j-1 {
		infos[i], infos[j] = infos[j], infos[i]
	}
	return infos
}

// ProcessBlockHeader validates and indexes a standalone header (the
// header-sync fast path): it does not require the full block body and
// never touches the chain tip, which only moves once a block's full body
// has been applied (see ProcessBlock/applyForkChoice).
func (c *Chain) ProcessBlockHeader(header *consensus.BlockHeader) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.acceptHeader(header)
	return err
}

// acceptHeader runs full header validation — including the checkpoint
// table — and indexes header. It never moves c.tip; only a body-applied
// block does that. Caller must hold c.mu.
func (c *Chain) acceptHeader(header *consensus.BlockHeader) (storedHeader, error) {
	hash := header.Hash()
	if existing, err := getHeaderByHash(c.store, hash); err == nil {
		return existing, nil
	}

	parent, err := getHeaderByHash(c.store, header.PrevHash)
	if err != nil {
		return storedHeader{}, consensus.ErrOrphan
	}

	if err := checkCheckpoint(c.ct, header.Height, hash); err != nil {
		logrus.Fatalf("chain: checkpoint mismatch at height=%d hash=%x", header.Height, hash.Bytes()[:8])
		return storedHeader{}, err
	}

	if err := c.validateHeaderStateless(header); err != nil {
		return storedHeader{}, err
	}
	if err := c.validateHeaderContextual(header, parent); err != nil {
		return storedHeader{}, err
	}

	sh := storedHeader{
		Header:          *header,
		TotalDifficulty: header.PoW.TotalDifficulty,
		OutputMMRSize:   parent.OutputMMRSize,
		KernelMMRSize:   parent.KernelMMRSize,
		ProofMMRSize:    parent.ProofMMRSize,
	}
	if err := putHeader(c.store, hash, sh); err != nil {
		return storedHeader{}, err
	}

	return sh, nil
}

// setTip moves the active tip and persists the "tip" pointer. Only called
// once a block's body has actually been applied to the UTXO set
// (extendTip, reorg, ProcessSegment) — never from header-only acceptance.
func (c *Chain) setTip(hash consensus.Hash, sh storedHeader) {
	c.tip = Tip{Hash: hash, Height: sh.Header.Height, TotalDifficulty: sh.TotalDifficulty}
	if err := c.store.Put(store.TableHeader, []byte("tip"), hash.Bytes()); err != nil {
		logrus.Errorf("chain: failed to persist tip pointer: %v", err)
	}
}

// ProcessBlock validates a full block (header plus body), applies its
// fork-choice consequences — extending the tip, starting a side branch,
// or reorging onto a branch that now outweighs the active chain — and
// retries any orphans that were waiting on it.
func (c *Chain) ProcessBlock(block *consensus.Block) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.processBlockLocked(block)
}

// processBlockLocked is ProcessBlock's body, factored out so
// processOrphans (already running under c.mu) can retry a previously
// orphaned block through the identical validation and fork-choice path.
func (c *Chain) processBlockLocked(block *consensus.Block) error {
	hash := block.Header.Hash()
	if _, err := getBlockBody(c.store, hash); err == nil {
		// Body already applied or at least stored; nothing left to do.
		return nil
	}

	if _, err := getHeaderByHash(c.store, block.Header.PrevHash); err != nil {
		c.orphans.add(block)
		return consensus.ErrOrphan
	}

	if err := consensus.ValidateBlockBody(block); err != nil {
		return err
	}
	if err := consensus.RequireFoundationOutput(c.ct, block.Header.Height, block.Outputs, c.foundationWallets); err != nil {
		return err
	}

	sh, err := c.acceptHeader(&block.Header)
	if err != nil {
		return err
	}

	if err := putBlockBody(c.store, hash, block); err != nil {
		return err
	}

	if err := c.applyForkChoice(hash, sh); err != nil {
		return err
	}

	logrus.Infof("chain: accepted block height=%d hash=%x", block.Header.Height, hash.Bytes()[:8])

	c.maybeCompact(block.Header.Height)
	c.processOrphans(hash)
	return nil
}

// applyForkChoice decides what hash's acceptance means for the active
// chain: a simple extension of the current tip, a reorg onto a branch
// that now carries more work, or an inert side branch that stays indexed
// without being applied.
func (c *Chain) applyForkChoice(hash consensus.Hash, sh storedHeader) error {
	switch {
	case sh.Header.PrevHash == c.tip.Hash:
		return c.extendTip(hash, sh)
	case sh.TotalDifficulty.GreaterThan(c.tip.TotalDifficulty):
		return c.reorg(hash, sh)
	default:
		return nil
	}
}

// extendTip applies a single block directly on top of the current UTXO
// state and moves the tip forward by one — the common case, depth-1
// fork-choice.
func (c *Chain) extendTip(hash consensus.Hash, sh storedHeader) error {
	block, err := getBlockBody(c.store, hash)
	if err != nil {
		return err
	}

	if err := c.extendUTXO(block, &sh); err != nil {
		return err
	}
	if err := putHeader(c.store, hash, sh); err != nil {
		return err
	}
	if err := setHeightIndex(c.store, sh.Header.Height, hash); err != nil {
		return err
	}

	c.setTip(hash, sh)
	return nil
}

// extendUTXO applies block's inputs/outputs/kernels to the txhashset PMMRs
// in a single batch, verifying the result against the block's claimed
// roots before committing, and discarding on any failure.
func (c *Chain) extendUTXO(block *consensus.Block, sh *storedHeader) error {
	txs, batch := c.store.Extend()

	if err := txs.ApplyBlock(block, sh.Header.Height, c.ct.CoinbaseMaturity()); err != nil {
		batch.Discard()
		return err
	}

	outRoot, proofRoot, kernelRoot, err := txs.Roots()
	if err != nil {
		batch.Discard()
		return err
	}
	if outRoot != sh.Header.OutputRoot || proofRoot != sh.Header.RangeProofRoot || kernelRoot != sh.Header.KernelRoot {
		batch.Discard()
		return consensus.ErrInvalidRoot
	}

	if err := batch.Commit(); err != nil {
		return err
	}

	sh.OutputMMRSize, _ = txs.Outputs.Size()
	sh.KernelMMRSize, _ = txs.Kernels.Size()
	sh.ProofMMRSize, _ = txs.Proofs.Size()
	return nil
}

// reorg rewinds the UTXO set to the common ancestor of hash and the
// current tip, then re-applies every block of hash's branch from there
// in order, all inside one batch: either the whole branch applies cleanly
// and becomes the new tip, or none of it does and the prior state is
// untouched.
func (c *Chain) reorg(hash consensus.Hash, sh storedHeader) error {
	ancestorHash, err := c.commonAncestor(hash, c.tip.Hash)
	if err != nil {
		return err
	}
	ancestor, err := getHeaderByHash(c.store, ancestorHash)
	if err != nil {
		return err
	}

	branch, err := c.branchBlocks(ancestorHash, hash)
	if err != nil {
		return err
	}

	txs, batch := c.store.Extend()
	if err := txs.Rewind(ancestor.OutputMMRSize, ancestor.ProofMMRSize, ancestor.KernelMMRSize); err != nil {
		batch.Discard()
		return err
	}

	headers := make([]storedHeader, 0, len(branch))
	for _, blk := range branch {
		bhash := blk.Header.Hash()
		bh, err := getHeaderByHash(c.store, bhash)
		if err != nil {
			batch.Discard()
			return err
		}

		if err := txs.ApplyBlock(blk, bh.Header.Height, c.ct.CoinbaseMaturity()); err != nil {
			batch.Discard()
			return err
		}

		outRoot, proofRoot, kernelRoot, err := txs.Roots()
		if err != nil {
			batch.Discard()
			return err
		}
		if outRoot != bh.Header.OutputRoot || proofRoot != bh.Header.RangeProofRoot || kernelRoot != bh.Header.KernelRoot {
			batch.Discard()
			return consensus.ErrInvalidRoot
		}

		bh.OutputMMRSize, _ = txs.Outputs.Size()
		bh.KernelMMRSize, _ = txs.Kernels.Size()
		bh.ProofMMRSize, _ = txs.Proofs.Size()
		headers = append(headers, bh)
	}

	if err := batch.Commit(); err != nil {
		return err
	}

	for _, bh := range headers {
		bhash := bh.Header.Hash()
		if err := putHeader(c.store, bhash, bh); err != nil {
			logrus.Errorf("chain: reorg: persisting header after commit: %v", err)
		}
		if err := setHeightIndex(c.store, bh.Header.Height, bhash); err != nil {
			logrus.Errorf("chain: reorg: persisting height index after commit: %v", err)
		}
	}

	newTip := headers[len(headers)-1]
	c.setTip(hash, newTip)
	logrus.Infof("chain: reorg to height=%d hash=%x depth=%d", newTip.Header.Height, hash.Bytes()[:8], len(branch))
	return nil
}

// commonAncestor walks back from aHash and bHash by height, then in
// lockstep by PrevHash, until the two branches meet.
func (c *Chain) commonAncestor(aHash, bHash consensus.Hash) (consensus.Hash, error) {
	a, err := getHeaderByHash(c.store, aHash)
	if err != nil {
		return consensus.ZeroHash, err
	}
	b, err := getHeaderByHash(c.store, bHash)
	if err != nil {
		return consensus.ZeroHash, err
	}

	for a.Header.Height > b.Header.Height {
		if a, err = getHeaderByHash(c.store, a.Header.PrevHash); err != nil {
			return consensus.ZeroHash, err
		}
	}
	for b.Header.Height > a.Header.Height {
		if b, err = getHeaderByHash(c.store, b.Header.PrevHash); err != nil {
			return consensus.ZeroHash, err
		}
	}

	for a.Header.Hash() != b.Header.Hash() {
		if a, err = getHeaderByHash(c.store, a.Header.PrevHash); err != nil {
			return consensus.ZeroHash, err
		}
		if b, err = getHeaderByHash(c.store, b.Header.PrevHash); err != nil {
			return consensus.ZeroHash, err
		}
	}
	return a.Header.Hash(), nil
}

// branchBlocks returns every block body from ancestorHash (exclusive) to
// tipHash (inclusive), in ancestor-to-tip order, erroring if any body
// along the way is missing.
func (c *Chain) branchBlocks(ancestorHash, tipHash consensus.Hash) ([]*consensus.Block, error) {
	var blocks []*consensus.Block
	cur := tipHash
	for cur != ancestorHash {
		blk, err := getBlockBody(c.store, cur)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, blk)
		cur = blk.Header.PrevHash
	}

	for i, j := 0, len(blocks)-1; i < j; i, j = i+1, j-1 {
		blocks[i], blocks[j] = blocks[j], blocks[i]
	}
	return blocks, nil
}

// maybeCompact opportunistically prunes spent-and-aged leaf data on a
// random per-block roll, once the chain is deep enough that a
// cut-through-horizon-old header exists. Only drops leaf hash storage for
// spent outputs/proofs; it deliberately does not also drop block bodies
// older than the horizon (kept for this implementation's archive-node use
// case — trimming bodies in non-archive nodes is future work).
func (c *Chain) maybeCompact(currentHeight uint64) {
	if currentHeight <= consensus.CutThroughHorizon {
		return
	}
	if rand.Intn(compactionRollDenominator) != 0 {
		return
	}

	cutoffHash, err := getHashAtHeight(c.store, currentHeight-consensus.CutThroughHorizon)
	if err != nil {
		return
	}
	cutoff, err := getHeaderByHash(c.store, cutoffHash)
	if err != nil {
		return
	}

	txs, batch := c.store.Extend()
	if err := txs.CompactSpent(cutoff.OutputMMRSize); err != nil {
		batch.Discard()
		logrus.Warnf("chain: compaction failed: %v", err)
		return
	}
	if err := batch.Commit(); err != nil {
		logrus.Warnf("chain: compaction commit failed: %v", err)
	}
}

// processOrphans re-attempts every orphan waiting on parentHash now that
// it has been accepted, routing each through the same validation and
// fork-choice path a freshly received block takes.
func (c *Chain) processOrphans(parentHash consensus.Hash) {
	ready := c.orphans.take(parentHash)
	for _, blk := range ready {
		c.processBlockLocked(blk)
	}
}
