// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package consensus

// Capabilities is a bitmask a peer advertises during handshake, describing
// which sync/relay services it offers.
type Capabilities uint32

const (
	CapUnknown         Capabilities = 0
	CapFullHist        Capabilities = 1 << 0
	CapFullNode        Capabilities = 1 << 1
	CapHeaderFastSync  Capabilities = 1 << 2
	CapTxHashSetAccess Capabilities = 1 << 3
)

// MagicCode is the 2-byte constant prefix of every wire frame, chosen per
// network (mainnet vs testnet) so peers on different networks refuse each
// other immediately.
type MagicCode [2]byte

var (
	MagicMainnet = MagicCode{0x1e, 0xc5}
	MagicTestnet = MagicCode{0x3f, 0xa2}
)

// Message type tags exchanged between peers after the frame header.
const (
	MsgTypeError uint8 = iota
	MsgTypeHand
	MsgTypeShake
	MsgTypePing
	MsgTypePong
	MsgTypeGetPeerAddrs
	MsgTypePeerAddrs
	MsgTypeGetHeaders
	MsgTypeHeaders
	MsgTypeGetBlock
	MsgTypeBlock
	MsgTypeGetCompactBlock
	MsgTypeCompactBlock
	MsgTypeStemTransaction
	MsgTypeTransaction
	MsgTypeTransactionKernel
	MsgTypeGetTransaction
	MsgTypeTxHashSetRequest
	MsgTypeTxHashSetArchive
	MsgTypeBanReason
	MsgTypeGetHeadersFastSync
	MsgTypeFastHeaders
	MsgTypeHeader
	MsgTypeKernelDataRequest
	MsgTypeKernelDataResponse
)

// ProtocolVersion is the current wire protocol version negotiated during
// handshake; a peer advertising a higher version negotiates downward to
// this value rather than disconnecting.
const ProtocolVersion uint32 = 1

// BanReason enumerates why a peer was disconnected and banned, translated
// from the chain/p2p error taxonomy.
type BanReason uint8

const (
	BanReasonNone BanReason = iota
	BanReasonBadBlock
	BanReasonBadBlockHeader
	BanReasonBadCompactBlock
	BanReasonBadTxHashSet
	BanReasonManualBan
	BanReasonFraudHeight
	BanReasonBadHandshake
	BanReasonAbusive
	BanReasonLagging
)

func (r BanReason) String() string {
	switch r {
	case BanReasonBadBlock:
		return "bad-block"
	case BanReasonBadBlockHeader:
		return "bad-block-header"
	case BanReasonBadCompactBlock:
		return "bad-compact-block"
	case BanReasonBadTxHashSet:
		return "bad-tx-hash-set"
	case BanReasonManualBan:
		return "manual-ban"
	case BanReasonFraudHeight:
		return "fraud-height"
	case BanReasonBadHandshake:
		return "bad-handshake"
	case BanReasonAbusive:
		return "abusive"
	case BanReasonLagging:
		return "lagging"
	default:
		return "none"
	}
}
