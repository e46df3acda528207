// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package mining

import (
	"testing"
	"time"

	"github.com/dblokhin/epic-go/chain"
	"github.com/dblokhin/epic-go/consensus"
	"github.com/dblokhin/epic-go/store"
	"github.com/dblokhin/epic-go/txpool"
)

func newTestChain(t *testing.T) *chain.Chain {
	t.Helper()
	s, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	genesis := chain.GenesisTestnet
	c, err := chain.New(consensus.AutomatedTesting, s, &genesis, nil)
	if err != nil {
		t.Fatalf("new chain: %v", err)
	}
	return c
}

func TestGetBlockTemplateExtendsTip(t *testing.T) {
	c := newTestChain(t)
	pool := txpool.New(10)
	svc := NewService(consensus.AutomatedTesting, c, pool)

	coinbaseOut := consensus.Output{Features: consensus.FeatureCoinbase}
	coinbaseKern := consensus.TxKernel{Features: consensus.FeatureCoinbase}

	tmpl, err := svc.GetBlockTemplate(consensus.AlgoCuckatoo, coinbaseOut, coinbaseKern)
	if err != nil {
		t.Fatalf("get template: %v", err)
	}

	if tmpl.Height != c.Head().Height+1 {
		t.Fatalf("expected template height %d, got %d", c.Head().Height+1, tmpl.Height)
	}
	if tmpl.Block.Header.PrevHash != c.Head().Hash {
		t.Fatal("expected template to extend current tip")
	}
}

func TestFinalizeBlockTemplateRejectsStaleTip(t *testing.T) {
	c := newTestChain(t)
	pool := txpool.New(10)
	svc := NewService(consensus.AutomatedTesting, c, pool)

	tmpl, err := svc.GetBlockTemplate(consensus.AlgoCuckatoo, consensus.Output{}, consensus.TxKernel{})
	if err != nil {
		t.Fatalf("get template: %v", err)
	}

	// Corrupt the template's prev hash to simulate a tip that moved on.
	tmpl.Block.Header.PrevHash = consensus.Sum256([]byte("someone-else-won"))

	_, err = svc.FinalizeBlockTemplate(tmpl, 1, consensus.Proof{Algo: consensus.AlgoCuckatoo}, time.Now().Unix())
	if err != ErrStaleTemplate {
		t.Fatalf("expected ErrStaleTemplate, got %v", err)
	}
}
