// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

// Package p2p implements the wire protocol frame format, message types,
// peer state machine, and the header/body/state sync substates a node
// drives against its connected peers.
package p2p

import (
	"encoding/binary"
	"errors"
	"io"

	"github.com/dblokhin/epic-go/consensus"
)

// ErrBadMagic is returned when a frame's magic bytes don't match the
// configured network.
var ErrBadMagic = errors.New("p2p: invalid magic code")

// ErrOversizedFrame is returned when a frame header declares a length
// exceeding maxFrameLen, guarding against a peer trying to make us
// allocate unbounded memory.
var ErrOversizedFrame = errors.New("p2p: frame length exceeds maximum")

// maxFrameLen bounds any single message payload.
const maxFrameLen = 64 << 20

// Header is the fixed 11-byte frame prefix in front of every message:
// 2-byte magic, 1-byte type tag, 8-byte big-endian length.
type Header struct {
	Magic consensus.MagicCode
	Type  uint8
	Len   uint64
}

// Write serializes the frame header.
func (h *Header) Write(w io.Writer) error {
	if _, err := w.Write(h.Magic[:]); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, h.Type); err != nil {
		return err
	}
	return binary.Write(w, binary.BigEndian, h.Len)
}

// Read deserializes a frame header, validating it against want (the
// network's expected magic code) and the maximum frame length.
func (h *Header) Read(r io.Reader, want consensus.MagicCode) error {
	if _, err := io.ReadFull(r, h.Magic[:]); err != nil {
		return err
	}
	if h.Magic != want {
		return ErrBadMagic
	}
	if err := binary.Read(r, binary.BigEndian, &h.Type); err != nil {
		return err
	}
	if err := binary.Read(r, binary.BigEndian, &h.Len); err != nil {
		return err
	}
	if h.Len > maxFrameLen {
		return ErrOversizedFrame
	}
	return nil
}

// Message is any wire payload a peer can send after its frame header.
type Message interface {
	Type() uint8
	Bytes() []byte
	Read(r io.Reader) error
}

// WriteMessage frames and writes msg to w under the given network magic.
func WriteMessage(w io.Writer, magic consensus.MagicCode, msg Message) error {
	payload := msg.Bytes()
	hdr := Header{Magic: magic, Type: msg.Type(), Len: uint64(len(payload))}
	if err := hdr.Write(w); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// ReadMessage reads one framed message from r, dispatching to the right
// concrete Message type by the frame's type tag.
func ReadMessage(r io.Reader, magic consensus.MagicCode) (Message, error) {
	var hdr Header
	if err := hdr.Read(r, magic); err != nil {
		return nil, err
	}

	msg := newMessage(hdr.Type)
	if msg == nil {
		// Unknown type: drain the payload so the stream stays in sync.
		if _, err := io.CopyN(io.Discard, r, int64(hdr.Len)); err != nil {
			return nil, err
		}
		return nil, errors.New("p2p: unknown message type")
	}

	lr := io.LimitReader(r, int64(hdr.Len))
	if err := msg.Read(lr); err != nil {
		return nil, err
	}
	return msg, nil
}

func newMessage(t uint8) Message {
	switch t {
	case consensus.MsgTypePing:
		return new(Ping)
	case consensus.MsgTypePong:
		return new(Pong)
	case consensus.MsgTypeGetPeerAddrs:
		return new(GetPeerAddrs)
	case consensus.MsgTypePeerAddrs:
		return new(PeerAddrs)
	case consensus.MsgTypeGetHeaders:
		return new(GetBlockHeaders)
	case consensus.MsgTypeHeaders:
		return new(BlockHeaders)
	case consensus.MsgTypeGetBlock:
		return new(GetBlock)
	case consensus.MsgTypeBlock:
		return new(BlockMsg)
	case consensus.MsgTypeTransaction:
		return new(TransactionMsg)
	case consensus.MsgTypeStemTransaction:
		return new(StemTransactionMsg)
	case consensus.MsgTypeTxHashSetRequest:
		return new(TxHashSetRequest)
	case consensus.MsgTypeTxHashSetArchive:
		return new(TxHashSetArchive)
	case consensus.MsgTypeError:
		return new(PeerError)
	default:
		return nil
	}
}
