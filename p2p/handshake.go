// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package p2p

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"sync"

	"github.com/dblokhin/epic-go/consensus"
)

// UserAgent identifies this node's software/version during handshake.
const UserAgent = "epic-go/0.1"

// nonceSet tracks handshake nonces we've sent, so an inbound connection
// whose Hand carries one of our own nonces is recognized as a
// self-connection and dropped.
type nonceSet struct {
	mu     sync.Mutex
	seen   map[uint64]struct{}
	ctr    uint64
}

func newNonceSet() *nonceSet {
	return &nonceSet{seen: make(map[uint64]struct{})}
}

func (n *nonceSet) next() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ctr++
	n.seen[n.ctr] = struct{}{}
	return n.ctr
}

func (n *nonceSet) consist(nonce uint64) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	_, ok := n.seen[nonce]
	return ok
}

// hand is the first message sent by the dialing side of a connection,
// advertising version, capabilities and a self-connection detection nonce.
type hand struct {
	Version         uint32
	Capabilities    consensus.Capabilities
	Nonce           uint64
	TotalDifficulty consensus.Difficulty
	SenderAddr      *net.TCPAddr
	ReceiverAddr    *net.TCPAddr
	UserAgent       string
}

func (h *hand) Type() uint8 { return consensus.MsgTypeHand }

func (h *hand) Bytes() []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.BigEndian, h.Version)
	binary.Write(buf, binary.BigEndian, uint32(h.Capabilities))
	binary.Write(buf, binary.BigEndian, h.Nonce)
	writeDifficulty(buf, h.TotalDifficulty)
	serializeTCPAddr(buf, h.SenderAddr)
	serializeTCPAddr(buf, h.ReceiverAddr)
	binary.Write(buf, binary.BigEndian, uint64(len(h.UserAgent)))
	buf.WriteString(h.UserAgent)
	return buf.Bytes()
}

func (h *hand) Read(r io.Reader) error {
	if err := binary.Read(r, binary.BigEndian, &h.Version); err != nil {
		return err
	}
	if h.Version < consensus.ProtocolVersion {
		return errors.New("p2p: incompatible protocol version")
	}
	if h.Version > consensus.ProtocolVersion {
		h.Version = consensus.ProtocolVersion
	}
	if err := binary.Read(r, binary.BigEndian, (*uint32)(&h.Capabilities)); err != nil {
		return err
	}
	if err := binary.Read(r, binary.BigEndian, &h.Nonce); err != nil {
		return err
	}
	d, err := readDifficulty(r)
	if err != nil {
		return err
	}
	h.TotalDifficulty = d

	sender, err := deserializeTCPAddr(r)
	if err != nil {
		return err
	}
	h.SenderAddr = sender

	receiver, err := deserializeTCPAddr(r)
	if err != nil {
		return err
	}
	h.ReceiverAddr = receiver

	var agentLen uint64
	if err := binary.Read(r, binary.BigEndian, &agentLen); err != nil {
		return err
	}
	if agentLen > 256 {
		return consensus.ErrCorruptedData
	}
	buf := make([]byte, agentLen)
	if _, err := io.ReadFull(r, buf); err != nil {
		return err
	}
	h.UserAgent = string(buf)
	return nil
}

// shake answers a hand with the receiver's own version/capabilities.
type shake struct {
	Version         uint32
	Capabilities    consensus.Capabilities
	TotalDifficulty consensus.Difficulty
	UserAgent       string
}

func (s *shake) Type() uint8 { return consensus.MsgTypeShake }

func (s *shake) Bytes() []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.BigEndian, s.Version)
	binary.Write(buf, binary.BigEndian, uint32(s.Capabilities))
	writeDifficulty(buf, s.TotalDifficulty)
	binary.Write(buf, binary.BigEndian, uint64(len(s.UserAgent)))
	buf.WriteString(s.UserAgent)
	return buf.Bytes()
}

func (s *shake) Read(r io.Reader) error {
	if err := binary.Read(r, binary.BigEndian, &s.Version); err != nil {
		return err
	}
	if s.Version < consensus.ProtocolVersion {
		return errors.New("p2p: incompatible protocol version")
	}
	if s.Version > consensus.ProtocolVersion {
		s.Version = consensus.ProtocolVersion
	}
	if err := binary.Read(r, binary.BigEndian, (*uint32)(&s.Capabilities)); err != nil {
		return err
	}
	d, err := readDifficulty(r)
	if err != nil {
		return err
	}
	s.TotalDifficulty = d

	var agentLen uint64
	if err := binary.Read(r, binary.BigEndian, &agentLen); err != nil {
		return err
	}
	if agentLen > 256 {
		return consensus.ErrCorruptedData
	}
	buf := make([]byte, agentLen)
	if _, err := io.ReadFull(r, buf); err != nil {
		return err
	}
	s.UserAgent = string(buf)
	return nil
}

// readFrameBody reads exactly one frame's header and hands back a reader
// limited to its declared body length, for handshake messages that aren't
// registered in the ordinary dispatch table.
func readFrameBody(r io.Reader, magic consensus.MagicCode) (io.Reader, uint8, error) {
	var hdr Header
	if err := hdr.Read(r, magic); err != nil {
		return nil, 0, err
	}
	return io.LimitReader(r, int64(hdr.Len)), hdr.Type, nil
}

// dialHandshake performs the dialing side of a handshake: send hand, read
// back shake.
func dialHandshake(conn net.Conn, magic consensus.MagicCode, nonces *nonceSet, td consensus.Difficulty) (*shake, error) {
	sender, err := net.ResolveTCPAddr("tcp", conn.LocalAddr().String())
	if err != nil {
		return nil, err
	}
	receiver, ok := conn.RemoteAddr().(*net.TCPAddr)
	if !ok {
		return nil, errors.New("p2p: non-TCP remote address")
	}

	msg := hand{
		Version:         consensus.ProtocolVersion,
		Capabilities:    consensus.CapFullNode,
		Nonce:           nonces.next(),
		TotalDifficulty: td,
		SenderAddr:      sender,
		ReceiverAddr:    receiver,
		UserAgent:       UserAgent,
	}
	if err := WriteMessage(conn, magic, &msg); err != nil {
		return nil, err
	}

	body, typ, err := readFrameBody(conn, magic)
	if err != nil {
		return nil, err
	}
	if typ != consensus.MsgTypeShake {
		return nil, errors.New("p2p: expected shake, got different message type")
	}
	sh := new(shake)
	if err := sh.Read(body); err != nil {
		return nil, err
	}
	return sh, nil
}

// acceptHandshake performs the accepting side of a handshake: read hand,
// reply with shake.
func acceptHandshake(conn net.Conn, magic consensus.MagicCode, nonces *nonceSet, td consensus.Difficulty) (*hand, error) {
	body, typ, err := readFrameBody(conn, magic)
	if err != nil {
		return nil, err
	}
	if typ != consensus.MsgTypeHand {
		return nil, errors.New("p2p: expected hand, got different message type")
	}

	var h hand
	if err := h.Read(body); err != nil {
		return nil, err
	}
	if nonces.consist(h.Nonce) {
		return &h, errors.New("p2p: connection to self detected by nonce")
	}

	resp := shake{
		Version:         consensus.ProtocolVersion,
		Capabilities:    consensus.CapFullNode,
		TotalDifficulty: td,
		UserAgent:       UserAgent,
	}
	if err := WriteMessage(conn, magic, &resp); err != nil {
		return nil, err
	}
	return &h, nil
}
