// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package p2p

import (
	"net"
	"sync"
	"time"

	"github.com/dblokhin/epic-go/consensus"
	"github.com/sirupsen/logrus"
)

// maxOnlinePeers bounds simultaneous outbound connections this node
// maintains.
var maxOnlinePeers = 15

// maxPeerTableSize bounds the known-addresses table against an
// unbounded PeerAddrs flood.
var maxPeerTableSize = 10000

type peerStatus int

const (
	statusNew peerStatus = iota
	statusConnected
	statusBanned
	statusDisconnected
	statusFailedConn
)

// peerRecord is what the pool tracks about one address, connected or not.
type peerRecord struct {
	mu sync.Mutex

	Status          peerStatus
	Peer            *Peer
	ProtocolVersion uint32
	Height          uint64
	TotalDifficulty consensus.Difficulty
	Capabilities    consensus.Capabilities
	LastConn        time.Time
}

// Pool tracks known peer addresses, live connections, and bans. Each
// table has its own mutex so a ban on one address never blocks iteration
// over connected peers.
type Pool struct {
	tableMu sync.Mutex
	table   map[string]*peerRecord

	connMu    sync.Mutex
	connected map[string]*peerRecord

	banMu sync.Mutex
	banned map[string]struct{}

	magic  consensus.MagicCode
	nonces *nonceSet

	dispatch func(*Peer, Message)

	quit chan struct{}
}

// NewPool returns an empty peer pool for the given network.
func NewPool(magic consensus.MagicCode, dispatch func(*Peer, Message)) *Pool {
	return &Pool{
		table:     make(map[string]*peerRecord),
		connected: make(map[string]*peerRecord),
		banned:    make(map[string]struct{}),
		magic:     magic,
		nonces:    newNonceSet(),
		dispatch:  dispatch,
		quit:      make(chan struct{}),
	}
}

// Add registers a newly-learned address, ignoring malformed or already
// known ones.
func (p *Pool) Add(addr string) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil || tcpAddr.IP.IsMulticast() || tcpAddr.Port == 0 {
		return
	}

	p.tableMu.Lock()
	defer p.tableMu.Unlock()

	if len(p.table) >= maxPeerTableSize {
		return
	}
	if _, ok := p.table[addr]; ok {
		return
	}

	p.table[addr] = &peerRecord{Status: statusNew, TotalDifficulty: consensus.ZeroDifficulty()}
}

// Ban disconnects addr (if connected) and marks it banned.
func (p *Pool) Ban(addr string, reason consensus.BanReason) {
	p.tableMu.Lock()
	rec, ok := p.table[addr]
	p.tableMu.Unlock()
	if !ok {
		return
	}

	rec.mu.Lock()
	rec.Status = statusBanned
	if rec.Peer != nil {
		rec.Peer.Close()
	}
	rec.mu.Unlock()

	p.banMu.Lock()
	p.banned[addr] = struct{}{}
	p.banMu.Unlock()

	logrus.Infof("p2p: banned peer %s (%s)", addr, reason)
}

// IsBanned reports whether addr is on the ban list.
func (p *Pool) IsBanned(addr string) bool {
	p.banMu.Lock()
	defer p.banMu.Unlock()
	_, ok := p.banned[addr]
	return ok
}

// Peers returns the addresses of known peers, other than banned ones and
// ones whose last dial failed, whose recorded capabilities include
// capabilities, for answering GetPeerAddrs.
func (p *Pool) Peers(capabilities consensus.Capabilities) *PeerAddrs {
	p.tableMu.Lock()
	defer p.tableMu.Unlock()

	addrs := make([]*net.TCPAddr, 0)
	for addr, rec := range p.table {
		rec.mu.Lock()
		status := rec.Status
		caps := rec.Capabilities
		rec.mu.Unlock()

		if status == statusBanned || status == statusFailedConn {
			continue
		}
		if caps&capabilities != capabilities {
			continue
		}
		if tcpAddr, err := net.ResolveTCPAddr("tcp", addr); err == nil {
			addrs = append(addrs, tcpAddr)
		}
		if len(addrs) >= consensus.MaxPeerAddrs {
			break
		}
	}
	return &PeerAddrs{Peers: addrs}
}

// Count returns the number of currently connected peers.
func (p *Pool) Count() int {
	p.connMu.Lock()
	defer p.connMu.Unlock()
	return len(p.connected)
}

// Broadcast propagates msg to every connected peer whose reported height
// trails the given height.
func (p *Pool) Broadcast(msg Message, aboveHeight uint64) {
	p.connMu.Lock()
	defer p.connMu.Unlock()

	for _, rec := range p.connected {
		rec.mu.Lock()
		height := rec.Height
		peer := rec.Peer
		rec.mu.Unlock()

		if height < aboveHeight && peer != nil {
			peer.WriteMessage(msg)
		}
	}
}

// connectOne dials addr, provided it is an entry in the table.
func (p *Pool) connectOne(addr string, ourDifficulty consensus.Difficulty) error {
	if addr == "" {
		return nil
	}

	p.tableMu.Lock()
	rec, ok := p.table[addr]
	p.tableMu.Unlock()
	if !ok {
		return nil
	}

	rec.mu.Lock()
	if rec.Status == statusBanned || rec.Status == statusConnected {
		rec.mu.Unlock()
		return nil
	}
	rec.mu.Unlock()

	peer, err := Dial(addr, p.magic, p.nonces, ourDifficulty)
	if err != nil {
		rec.mu.Lock()
		rec.Status = statusFailedConn
		rec.mu.Unlock()
		return err
	}

	rec.mu.Lock()
	rec.Peer = peer
	rec.Status = statusConnected
	rec.LastConn = time.Now()
	rec.ProtocolVersion = peer.Info.Version
	rec.Height = peer.Info.Height
	rec.TotalDifficulty = peer.Info.TotalDifficulty
	rec.Capabilities = peer.Info.Capabilities
	rec.mu.Unlock()

	p.connMu.Lock()
	p.connected[addr] = rec
	p.connMu.Unlock()

	peer.Start(p.dispatch)

	go func() {
		peer.wg.Wait()
		rec.mu.Lock()
		rec.Status = statusDisconnected
		rec.mu.Unlock()

		p.connMu.Lock()
		delete(p.connected, addr)
		p.connMu.Unlock()
	}()

	return nil
}

// notConnected picks one address worth dialing: first a fresh or
// previously-disconnected address, falling back to a previously-failed
// one so transient outages eventually retry.
func (p *Pool) notConnected() string {
	p.tableMu.Lock()
	defer p.tableMu.Unlock()

	for addr, rec := range p.table {
		rec.mu.Lock()
		status := rec.Status
		rec.mu.Unlock()
		if status == statusNew || status == statusDisconnected {
			return addr
		}
	}
	for addr, rec := range p.table {
		rec.mu.Lock()
		status := rec.Status
		rec.mu.Unlock()
		if status == statusFailedConn {
			return addr
		}
	}
	return ""
}

// Run dials out until Stop is called, maintaining up to maxOnlinePeers
// connections.
func (p *Pool) Run(ourDifficulty func() consensus.Difficulty) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-p.quit:
			p.closeAll()
			return
		case <-ticker.C:
			if p.Count() >= maxOnlinePeers {
				continue
			}
			if addr := p.notConnected(); addr != "" {
				if err := p.connectOne(addr, ourDifficulty()); err != nil {
					logrus.Debugf("p2p: connect %s: %v", addr, err)
				}
			}
		}
	}
}

// Stop shuts down all connections and the dial loop.
func (p *Pool) Stop() {
	close(p.quit)
}

func (p *Pool) closeAll() {
	p.tableMu.Lock()
	defer p.tableMu.Unlock()
	for _, rec := range p.table {
		rec.mu.Lock()
		if rec.Peer != nil {
			rec.Peer.Close()
		}
		rec.Status = statusDisconnected
		rec.mu.Unlock()
	}
}
