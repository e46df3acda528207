// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package p2p

import (
	"errors"
	"net"
	"sync"
	"sync/atomic"

	"github.com/dblokhin/epic-go/consensus"
	"github.com/sirupsen/logrus"
)

// Peer is one live connection to a remote node: a write queue draining
// into the connection on one goroutine, and a read loop dispatching
// incoming frames to the Syncer on another.
type Peer struct {
	conn  net.Conn
	magic consensus.MagicCode

	bytesReceived uint64
	bytesSent     uint64

	quit chan struct{}
	wg   sync.WaitGroup

	sendQueue chan Message

	disconnect int32

	Addr string
	Info struct {
		Version         uint32
		Capabilities    consensus.Capabilities
		TotalDifficulty consensus.Difficulty
		UserAgent       string
		Height          uint64
	}
}

// Dial connects to addr and performs the dialing side of the handshake.
func Dial(addr string, magic consensus.MagicCode, nonces *nonceSet, td consensus.Difficulty) (*Peer, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, err
	}

	conn, err := net.DialTCP("tcp", nil, tcpAddr)
	if err != nil {
		return nil, err
	}

	sh, err := dialHandshake(conn, magic, nonces, td)
	if err != nil {
		conn.Close()
		return nil, err
	}

	p := &Peer{
		conn:      conn,
		magic:     magic,
		quit:      make(chan struct{}),
		sendQueue: make(chan Message, 64),
		Addr:      addr,
	}
	p.Info.Version = sh.Version
	p.Info.Capabilities = sh.Capabilities
	p.Info.TotalDifficulty = sh.TotalDifficulty
	p.Info.UserAgent = sh.UserAgent
	return p, nil
}

// Accept wraps an inbound connection, performing the accepting side of
// the handshake.
func Accept(conn net.Conn, magic consensus.MagicCode, nonces *nonceSet, td consensus.Difficulty) (*Peer, error) {
	h, err := acceptHandshake(conn, magic, nonces, td)
	if err != nil {
		conn.Close()
		return nil, err
	}

	p := &Peer{
		conn:      conn,
		magic:     magic,
		quit:      make(chan struct{}),
		sendQueue: make(chan Message, 64),
		Addr:      conn.RemoteAddr().String(),
	}
	p.Info.Version = h.Version
	p.Info.Capabilities = h.Capabilities
	p.Info.TotalDifficulty = h.TotalDifficulty
	p.Info.UserAgent = h.UserAgent
	return p, nil
}

// Start launches the peer's write and read loops.
func (p *Peer) Start(dispatch func(*Peer, Message)) {
	p.wg.Add(2)
	go p.writeLoop()
	go p.readLoop(dispatch)
}

func (p *Peer) writeLoop() {
	defer p.wg.Done()

	var exitErr error
out:
	for {
		select {
		case msg := <-p.sendQueue:
			if atomic.LoadInt32(&p.disconnect) != 0 {
				break out
			}
			if exitErr = WriteMessage(p.conn, p.magic, msg); exitErr != nil {
				break out
			}
		case <-p.quit:
			exitErr = errors.New("p2p: peer exiting")
			break out
		}
	}

	p.Disconnect(exitErr)
}

func (p *Peer) readLoop(dispatch func(*Peer, Message)) {
	defer p.wg.Done()

	var exitErr error
	for atomic.LoadInt32(&p.disconnect) == 0 {
		msg, err := ReadMessage(p.conn, p.magic)
		if err != nil {
			exitErr = err
			break
		}
		dispatch(p, msg)
	}

	p.Disconnect(exitErr)
}

// WriteMessage enqueues msg for sending; it drops the message rather than
// blocking forever if the peer is already shutting down.
func (p *Peer) WriteMessage(msg Message) {
	select {
	case <-p.quit:
		logrus.Debug("p2p: dropping message, peer is shutting down")
	case p.sendQueue <- msg:
	}
}

// Disconnect tears the connection down exactly once.
func (p *Peer) Disconnect(reason error) {
	if !atomic.CompareAndSwapInt32(&p.disconnect, 0, 1) {
		return
	}
	logrus.Infof("p2p: disconnecting peer %s: %v", p.Addr, reason)
	close(p.quit)
	p.conn.Close()
}

// Close disconnects the peer and waits for its goroutines to exit.
func (p *Peer) Close() {
	p.Disconnect(errors.New("p2p: closing peer"))
	p.wg.Wait()
}
