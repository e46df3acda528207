// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package p2p

import (
	"bytes"
	"net"
	"testing"

	"github.com/dblokhin/epic-go/consensus"
)

func TestPingRoundTrip(t *testing.T) {
	want := Ping{
		TotalDifficulty: consensus.Difficulty{consensus.AlgoCuckatoo: 42, consensus.AlgoRandomX: 7},
		Height:          100,
	}

	var got Ping
	if err := got.Read(bytes.NewReader(want.Bytes())); err != nil {
		t.Fatalf("read: %v", err)
	}

	if got.Height != want.Height {
		t.Errorf("height: got %d want %d", got.Height, want.Height)
	}
	if got.TotalDifficulty.Get(consensus.AlgoCuckatoo) != 42 {
		t.Errorf("difficulty not round-tripped")
	}
}

func TestPeerAddrsRoundTrip(t *testing.T) {
	want := PeerAddrs{
		Peers: []*net.TCPAddr{
			{IP: net.ParseIP("127.0.0.1"), Port: 3413},
			{IP: net.ParseIP("::1"), Port: 3414},
		},
	}

	var got PeerAddrs
	if err := got.Read(bytes.NewReader(want.Bytes())); err != nil {
		t.Fatalf("read: %v", err)
	}

	if len(got.Peers) != len(want.Peers) {
		t.Fatalf("peer count: got %d want %d", len(got.Peers), len(want.Peers))
	}
	if got.Peers[0].Port != 3413 {
		t.Errorf("port not round-tripped")
	}
}

func TestGetBlockHeadersRoundTrip(t *testing.T) {
	want := GetBlockHeaders{
		Locator: consensus.Locator{Hashes: []consensus.Hash{consensus.Sum256([]byte("a")), consensus.Sum256([]byte("b"))}},
	}

	var got GetBlockHeaders
	if err := got.Read(bytes.NewReader(want.Bytes())); err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got.Locator.Hashes) != 2 {
		t.Fatalf("locator hash count: got %d", len(got.Locator.Hashes))
	}
}

func TestFrameRoundTrip(t *testing.T) {
	buf := new(bytes.Buffer)
	msg := &Ping{TotalDifficulty: consensus.Difficulty{consensus.AlgoCuckatoo: 1}, Height: 5}

	if err := WriteMessage(buf, consensus.MagicTestnet, msg); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := ReadMessage(buf, consensus.MagicTestnet)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	ping, ok := got.(*Ping)
	if !ok {
		t.Fatalf("expected *Ping, got %T", got)
	}
	if ping.Height != 5 {
		t.Errorf("height: got %d want 5", ping.Height)
	}
}

func TestFrameRejectsWrongMagic(t *testing.T) {
	buf := new(bytes.Buffer)
	msg := &Ping{Height: 1}
	if err := WriteMessage(buf, consensus.MagicMainnet, msg); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := ReadMessage(buf, consensus.MagicTestnet); err != ErrBadMagic {
		t.Fatalf("expected ErrBadMagic, got %v", err)
	}
}
