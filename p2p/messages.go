// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package p2p

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/dblokhin/epic-go/consensus"
)

// Ping carries the sender's total difficulty and height, letting the
// receiver decide whether it needs to sync.
type Ping struct {
	TotalDifficulty consensus.Difficulty
	Height          uint64
}

func (p *Ping) Type() uint8 { return consensus.MsgTypePing }

func (p *Ping) Bytes() []byte {
	buf := new(bytes.Buffer)
	writeDifficulty(buf, p.TotalDifficulty)
	binary.Write(buf, binary.BigEndian, p.Height)
	return buf.Bytes()
}

func (p *Ping) Read(r io.Reader) error {
	d, err := readDifficulty(r)
	if err != nil {
		return err
	}
	p.TotalDifficulty = d
	return binary.Read(r, binary.BigEndian, &p.Height)
}

func (p Ping) String() string { return fmt.Sprintf("%#v", p) }

// Pong answers a Ping with the same shape.
type Pong struct {
	Ping
}

func (p *Pong) Type() uint8 { return consensus.MsgTypePong }

// writeDifficulty/readDifficulty encode a Difficulty map as count-prefixed
// (algo byte, uint64 weight) pairs in Algos order.
func writeDifficulty(buf *bytes.Buffer, d consensus.Difficulty) {
	algos := consensus.Algos[:]
	var present []consensus.Algo
	for _, a := range algos {
		if v, ok := d[a]; ok && v > 0 {
			present = append(present, a)
		}
	}
	binary.Write(buf, binary.BigEndian, uint8(len(present)))
	for _, a := range present {
		buf.WriteByte(byte(a))
		binary.Write(buf, binary.BigEndian, d[a])
	}
}

func readDifficulty(r io.Reader) (consensus.Difficulty, error) {
	var count uint8
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return nil, err
	}
	if count > uint8(len(consensus.Algos)) {
		return nil, consensus.ErrCorruptedData
	}
	d := make(consensus.Difficulty, count)
	for i := uint8(0); i < count; i++ {
		var algoByte [1]byte
		if _, err := io.ReadFull(r, algoByte[:]); err != nil {
			return nil, err
		}
		var v uint64
		if err := binary.Read(r, binary.BigEndian, &v); err != nil {
			return nil, err
		}
		d[consensus.Algo(algoByte[0])] = v
	}
	return d, nil
}

// GetPeerAddrs asks for other known peer addresses, filtered by the
// capabilities the requester wants those peers to have.
type GetPeerAddrs struct {
	Capabilities consensus.Capabilities
}

func (p *GetPeerAddrs) Type() uint8 { return consensus.MsgTypeGetPeerAddrs }

func (p *GetPeerAddrs) Bytes() []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.BigEndian, uint32(p.Capabilities))
	return buf.Bytes()
}

func (p *GetPeerAddrs) Read(r io.Reader) error {
	return binary.Read(r, binary.BigEndian, (*uint32)(&p.Capabilities))
}

func (p GetPeerAddrs) String() string { return fmt.Sprintf("%#v", p) }

// PeerAddrs answers GetPeerAddrs with the addresses we know of.
type PeerAddrs struct {
	Peers []*net.TCPAddr
}

func (p *PeerAddrs) Type() uint8 { return consensus.MsgTypePeerAddrs }

func (p *PeerAddrs) Bytes() []byte {
	peers := p.Peers
	if len(peers) > consensus.MaxPeerAddrs {
		peers = peers[:consensus.MaxPeerAddrs]
	}

	buf := new(bytes.Buffer)
	binary.Write(buf, binary.BigEndian, uint32(len(peers)))
	for _, addr := range peers {
		serializeTCPAddr(buf, addr)
	}
	return buf.Bytes()
}

func (p *PeerAddrs) Read(r io.Reader) error {
	var count uint32
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return err
	}
	if count > consensus.MaxPeerAddrs {
		return errors.New("p2p: too many peer addrs")
	}
	for i := uint32(0); i < count; i++ {
		addr, err := deserializeTCPAddr(r)
		if err != nil {
			return err
		}
		p.Peers = append(p.Peers, addr)
	}
	return nil
}

func (p PeerAddrs) String() string { return fmt.Sprintf("%#v", p) }

func serializeTCPAddr(buf *bytes.Buffer, addr *net.TCPAddr) {
	ip4 := addr.IP.To4()
	if ip4 != nil {
		buf.WriteByte(4)
		buf.Write(ip4)
	} else {
		ip16 := addr.IP.To16()
		buf.WriteByte(6)
		buf.Write(ip16)
	}
	binary.Write(buf, binary.BigEndian, uint16(addr.Port))
}

func deserializeTCPAddr(r io.Reader) (*net.TCPAddr, error) {
	var kind [1]byte
	if _, err := io.ReadFull(r, kind[:]); err != nil {
		return nil, err
	}

	var ipLen int
	switch kind[0] {
	case 4:
		ipLen = net.IPv4len
	case 6:
		ipLen = net.IPv6len
	default:
		return nil, consensus.ErrCorruptedData
	}

	ip := make([]byte, ipLen)
	if _, err := io.ReadFull(r, ip); err != nil {
		return nil, err
	}

	var port uint16
	if err := binary.Read(r, binary.BigEndian, &port); err != nil {
		return nil, err
	}

	return &net.TCPAddr{IP: ip, Port: int(port)}, nil
}

// PeerError reports a protocol violation back to a peer, usually just
// before the connection is dropped.
type PeerError struct {
	Code    uint32
	Message string
}

func (p *PeerError) Type() uint8 { return consensus.MsgTypeError }

func (p *PeerError) Bytes() []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.BigEndian, p.Code)
	binary.Write(buf, binary.BigEndian, uint64(len(p.Message)))
	buf.WriteString(p.Message)
	return buf.Bytes()
}

func (p *PeerError) Read(r io.Reader) error {
	if err := binary.Read(r, binary.BigEndian, &p.Code); err != nil {
		return err
	}
	var msgLen uint64
	if err := binary.Read(r, binary.BigEndian, &msgLen); err != nil {
		return err
	}
	if msgLen > 4096 {
		return consensus.ErrCorruptedData
	}
	buf := make([]byte, msgLen)
	if _, err := io.ReadFull(r, buf); err != nil {
		return err
	}
	p.Message = string(buf)
	return nil
}

func (p PeerError) String() string { return fmt.Sprintf("%#v", p) }

// GetBlock requests a full block by hash.
type GetBlock struct {
	Hash consensus.Hash
}

func (m *GetBlock) Type() uint8 { return consensus.MsgTypeGetBlock }

func (m *GetBlock) Bytes() []byte { return m.Hash[:] }

func (m *GetBlock) Read(r io.Reader) error {
	return readFull(r, m.Hash[:])
}

func (m GetBlock) String() string { return fmt.Sprintf("%#v", m) }

// BlockMsg carries a full block body, sent in answer to GetBlock or
// broadcast after a successful mine/validate.
type BlockMsg struct {
	Block consensus.Block
}

func (m *BlockMsg) Type() uint8 { return consensus.MsgTypeBlock }

func (m *BlockMsg) Bytes() []byte { return m.Block.Bytes() }

func (m *BlockMsg) Read(r io.Reader) error { return m.Block.Read(r) }

func (m BlockMsg) String() string { return fmt.Sprintf("block height=%d", m.Block.Header.Height) }

// TransactionMsg relays a transaction in the fluff phase (ordinary
// broadcast, every peer forwards it further).
type TransactionMsg struct {
	Tx consensus.Transaction
}

func (m *TransactionMsg) Type() uint8 { return consensus.MsgTypeTransaction }

func (m *TransactionMsg) Bytes() []byte { return transactionBytes(&m.Tx) }

func (m *TransactionMsg) Read(r io.Reader) error { return readTransaction(r, &m.Tx) }

func (m TransactionMsg) String() string { return fmt.Sprintf("%#v", m) }

// StemTransactionMsg relays a transaction in the Dandelion stem phase:
// forwarded to exactly one relay peer instead of broadcast.
type StemTransactionMsg struct {
	Tx consensus.Transaction
}

func (m *StemTransactionMsg) Type() uint8 { return consensus.MsgTypeStemTransaction }

func (m *StemTransactionMsg) Bytes() []byte { return transactionBytes(&m.Tx) }

func (m *StemTransactionMsg) Read(r io.Reader) error { return readTransaction(r, &m.Tx) }

func (m StemTransactionMsg) String() string { return fmt.Sprintf("%#v", m) }

func transactionBytes(tx *consensus.Transaction) []byte {
	buf := new(bytes.Buffer)
	buf.Write(tx.Offset[:])

	writeCount := func(n int) { binary.Write(buf, binary.BigEndian, uint64(n)) }

	writeCount(len(tx.Inputs))
	for i := range tx.Inputs {
		buf.Write(tx.Inputs[i].Bytes())
	}
	writeCount(len(tx.Outputs))
	for i := range tx.Outputs {
		buf.Write(tx.Outputs[i].Bytes())
	}
	writeCount(len(tx.Kernels))
	for i := range tx.Kernels {
		buf.Write(tx.Kernels[i].Bytes())
	}
	return buf.Bytes()
}

const maxTxBodyCount = 1 << 16

func readTransaction(r io.Reader, tx *consensus.Transaction) error {
	if err := readFull(r, tx.Offset[:]); err != nil {
		return err
	}

	readCount := func() (uint64, error) {
		var n uint64
		if err := binary.Read(r, binary.BigEndian, &n); err != nil {
			return 0, err
		}
		if n > maxTxBodyCount {
			return 0, consensus.ErrCorruptedData
		}
		return n, nil
	}

	nIn, err := readCount()
	if err != nil {
		return err
	}
	tx.Inputs = make([]consensus.Input, nIn)
	for i := range tx.Inputs {
		if err := tx.Inputs[i].Read(r); err != nil {
			return err
		}
	}

	nOut, err := readCount()
	if err != nil {
		return err
	}
	tx.Outputs = make([]consensus.Output, nOut)
	for i := range tx.Outputs {
		if err := tx.Outputs[i].Read(r); err != nil {
			return err
		}
	}

	nKern, err := readCount()
	if err != nil {
		return err
	}
	tx.Kernels = make([]consensus.TxKernel, nKern)
	for i := range tx.Kernels {
		if err := tx.Kernels[i].Read(r); err != nil {
			return err
		}
	}
	return nil
}

// BlockHeaders answers GetBlockHeaders with a run of consecutive headers.
type BlockHeaders struct {
	Headers []consensus.BlockHeader
}

func (h *BlockHeaders) Type() uint8 { return consensus.MsgTypeHeaders }

func (h *BlockHeaders) Bytes() []byte {
	headers := h.Headers
	if len(headers) > consensus.MaxBlockHeaders {
		headers = headers[:consensus.MaxBlockHeaders]
	}

	buf := new(bytes.Buffer)
	binary.Write(buf, binary.BigEndian, uint16(len(headers)))
	for i := range headers {
		buf.Write(headers[i].Bytes())
	}
	return buf.Bytes()
}

func (h *BlockHeaders) Read(r io.Reader) error {
	var count uint16
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return err
	}
	if int(count) > consensus.MaxBlockHeaders {
		return errors.New("p2p: too many headers from peer")
	}
	h.Headers = make([]consensus.BlockHeader, count)
	for i := range h.Headers {
		if err := h.Headers[i].Read(r); err != nil {
			return err
		}
	}
	return nil
}

func (h BlockHeaders) String() string { return fmt.Sprintf("headers=%d", len(h.Headers)) }

// GetBlockHeaders requests headers starting from the most recent common
// ancestor the sender's locator implies.
type GetBlockHeaders struct {
	Locator consensus.Locator
}

func (h *GetBlockHeaders) Type() uint8 { return consensus.MsgTypeGetHeaders }

func (h *GetBlockHeaders) Bytes() []byte { return h.Locator.Bytes() }

func (h *GetBlockHeaders) Read(r io.Reader) error { return h.Locator.Read(r) }

func (h GetBlockHeaders) String() string { return fmt.Sprintf("%#v", h) }

// TxHashSetRequest asks for a snapshot of the output/rangeproof/kernel
// MMRs and spent bitmap as of the given block hash, used for fast
// sync past the horizon where full header-by-header validation is
// unreasonable.
type TxHashSetRequest struct {
	Hash   consensus.Hash
	Height uint64
}

func (m *TxHashSetRequest) Type() uint8 { return consensus.MsgTypeTxHashSetRequest }

func (m *TxHashSetRequest) Bytes() []byte {
	buf := new(bytes.Buffer)
	buf.Write(m.Hash[:])
	binary.Write(buf, binary.BigEndian, m.Height)
	return buf.Bytes()
}

func (m *TxHashSetRequest) Read(r io.Reader) error {
	if err := readFull(r, m.Hash[:]); err != nil {
		return err
	}
	return binary.Read(r, binary.BigEndian, &m.Height)
}

func (m TxHashSetRequest) String() string { return fmt.Sprintf("%#v", m) }

// TxHashSetArchive streams the requested snapshot back: an opaque,
// length-prefixed blob the state-sync substate unpacks directly into the
// store's tables. The wire body is not decoded as a consensus.Block; it
// is the store package's own serialized archive format.
type TxHashSetArchive struct {
	Hash    consensus.Hash
	Height  uint64
	Archive []byte
}

func (m *TxHashSetArchive) Type() uint8 { return consensus.MsgTypeTxHashSetArchive }

func (m *TxHashSetArchive) Bytes() []byte {
	buf := new(bytes.Buffer)
	buf.Write(m.Hash[:])
	binary.Write(buf, binary.BigEndian, m.Height)
	binary.Write(buf, binary.BigEndian, uint64(len(m.Archive)))
	buf.Write(m.Archive)
	return buf.Bytes()
}

const maxArchiveLen = 1 << 30

func (m *TxHashSetArchive) Read(r io.Reader) error {
	if err := readFull(r, m.Hash[:]); err != nil {
		return err
	}
	if err := binary.Read(r, binary.BigEndian, &m.Height); err != nil {
		return err
	}
	var n uint64
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return err
	}
	if n > maxArchiveLen {
		return consensus.ErrCorruptedData
	}
	m.Archive = make([]byte, n)
	return readFull(r, m.Archive)
}

func (m TxHashSetArchive) String() string {
	return fmt.Sprintf("txhashset archive height=%d bytes=%d", m.Height, len(m.Archive))
}

func readFull(r io.Reader, buf []byte) error {
	_, err := io.ReadFull(r, buf)
	return err
}
