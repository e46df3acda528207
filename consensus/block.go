// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package consensus

import (
	"encoding/binary"
	"errors"
	"io"
	"sort"
)

// OutputFeatures/KernelFeatures/InputFeatures flag bits, mirroring the
// reference implementation's bitflags.
type OutputFeatures uint8
type KernelFeatures uint8
type InputFeatures uint8

const (
	FeaturePlain    = 0
	FeatureCoinbase = 1
)

// CommitmentSize is the width of a Pedersen commitment on the wire.
const CommitmentSize = 33

// Commitment is an opaque Pedersen commitment, treated as an external
// collaborator type; only its wire shape is fixed here.
type Commitment [CommitmentSize]byte

// Input references a previously created, still-unspent output by its
// commitment.
type Input struct {
	Features   InputFeatures
	Commitment Commitment
}

// Bytes serializes an Input.
func (in *Input) Bytes() []byte {
	buf := []byte{byte(in.Features)}
	return append(buf, in.Commitment[:]...)
}

// Read deserializes an Input.
func (in *Input) Read(r io.Reader) error {
	var f [1]byte
	if err := readFull(r, f[:]); err != nil {
		return err
	}
	in.Features = InputFeatures(f[0])
	return readFull(r, in.Commitment[:])
}

// Output is a transaction/coinbase output: a commitment plus its range
// proof, which the secp256k1zkp collaborator verifies.
type Output struct {
	Features   OutputFeatures
	Commitment Commitment
	// RangeProof is treated as an opaque byte blob by this package; its
	// cryptographic verification is delegated to the secp256k1zkp package.
	RangeProof []byte
}

// Bytes serializes an Output in full mode (includes the range proof).
func (o *Output) Bytes() []byte {
	buf := []byte{byte(o.Features)}
	buf = append(buf, o.Commitment[:]...)

	lenBuf := make([]byte, 8)
	binary.BigEndian.PutUint64(lenBuf, uint64(len(o.RangeProof)))
	buf = append(buf, lenBuf...)
	buf = append(buf, o.RangeProof...)
	return buf
}

// HashBytes serializes an Output's identity: (features, commitment) only,
// the leaf hash committed into the output MMR.
func (o *Output) HashBytes() []byte {
	buf := []byte{byte(o.Features)}
	return append(buf, o.Commitment[:]...)
}

// Read deserializes an Output written by Bytes.
func (o *Output) Read(r io.Reader) error {
	var f [1]byte
	if err := readFull(r, f[:]); err != nil {
		return err
	}
	o.Features = OutputFeatures(f[0])

	if err := readFull(r, o.Commitment[:]); err != nil {
		return err
	}

	var lenBuf [8]byte
	if err := readFull(r, lenBuf[:]); err != nil {
		return err
	}
	proofLen := binary.BigEndian.Uint64(lenBuf[:])
	if proofLen > 4096 {
		return ErrCorruptedData
	}

	o.RangeProof = make([]byte, proofLen)
	return readFull(r, o.RangeProof)
}

// TxKernel commits to the fee, lock height and excess of a transaction (or
// coinbase), with an aggregate Schnorr signature over that commitment.
type TxKernel struct {
	Features      KernelFeatures
	Fee           uint64
	LockHeight    uint64
	ExcessCommit  Commitment
	ExcessSig     []byte
}

// Bytes serializes a TxKernel.
func (k *TxKernel) Bytes() []byte {
	buf := []byte{byte(k.Features)}

	tmp8 := make([]byte, 8)
	binary.BigEndian.PutUint64(tmp8, k.Fee)
	buf = append(buf, tmp8...)
	binary.BigEndian.PutUint64(tmp8, k.LockHeight)
	buf = append(buf, tmp8...)

	buf = append(buf, k.ExcessCommit[:]...)

	sigLen := make([]byte, 2)
	binary.BigEndian.PutUint16(sigLen, uint16(len(k.ExcessSig)))
	buf = append(buf, sigLen...)
	buf = append(buf, k.ExcessSig...)
	return buf
}

// Read deserializes a TxKernel written by Bytes.
func (k *TxKernel) Read(r io.Reader) error {
	var f [1]byte
	if err := readFull(r, f[:]); err != nil {
		return err
	}
	k.Features = KernelFeatures(f[0])

	var tmp8 [8]byte
	if err := readFull(r, tmp8[:]); err != nil {
		return err
	}
	k.Fee = binary.BigEndian.Uint64(tmp8[:])

	if err := readFull(r, tmp8[:]); err != nil {
		return err
	}
	k.LockHeight = binary.BigEndian.Uint64(tmp8[:])

	if err := readFull(r, k.ExcessCommit[:]); err != nil {
		return err
	}

	var sigLenBuf [2]byte
	if err := readFull(r, sigLenBuf[:]); err != nil {
		return err
	}
	sigLen := binary.BigEndian.Uint16(sigLenBuf[:])
	if sigLen > 256 {
		return ErrCorruptedData
	}
	k.ExcessSig = make([]byte, sigLen)
	return readFull(r, k.ExcessSig)
}

// Hash returns the kernel's identity digest, used for short-ids and
// mempool keys.
func (k *TxKernel) Hash() Hash {
	return Sum256(k.Bytes())
}

// Transaction is a set of inputs/outputs/kernels that balances under the
// Pedersen commitment scheme; it is the unit accepted into the tx pool.
type Transaction struct {
	Offset  [32]byte
	Inputs  []Input
	Outputs []Output
	Kernels []TxKernel
}

// sortInputs/sortOutputs/sortKernels implement sort.Interface over each
// slice's commitment/hash, giving inputs/outputs/kernels a canonical order
// inside the block.

type sortInputs []Input

func (s sortInputs) Len() int      { return len(s) }
func (s sortInputs) Swap(i, j int) { s[i], s[j] = s[j], s[i] }
func (s sortInputs) Less(i, j int) bool {
	return bytesLess(s[i].Commitment[:], s[j].Commitment[:])
}

type sortOutputs []Output

func (s sortOutputs) Len() int      { return len(s) }
func (s sortOutputs) Swap(i, j int) { s[i], s[j] = s[j], s[i] }
func (s sortOutputs) Less(i, j int) bool {
	return bytesLess(s[i].Commitment[:], s[j].Commitment[:])
}

type sortKernels []TxKernel

func (s sortKernels) Len() int      { return len(s) }
func (s sortKernels) Swap(i, j int) { s[i], s[j] = s[j], s[i] }
func (s sortKernels) Less(i, j int) bool {
	hi, hj := s[i].Hash(), s[j].Hash()
	return bytesLess(hi[:], hj[:])
}

func bytesLess(a, b []byte) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}

// Sort puts a transaction's inputs, outputs and kernels into canonical
// order, making the body hash stable regardless of construction order.
func (tx *Transaction) Sort() {
	sort.Sort(sortInputs(tx.Inputs))
	sort.Sort(sortOutputs(tx.Outputs))
	sort.Sort(sortKernels(tx.Kernels))
}

// Fee returns the sum of the transaction's kernel fees.
func (tx *Transaction) Fee() uint64 {
	var total uint64
	for _, k := range tx.Kernels {
		total += k.Fee
	}
	return total
}

// Weight returns the block-weight cost of including this transaction.
func (tx *Transaction) Weight() uint64 {
	return uint64(len(tx.Inputs))*BlockInputWeight +
		uint64(len(tx.Outputs))*BlockOutputWeight +
		uint64(len(tx.Kernels))*BlockKernelWeight
}

// CutThrough removes input/output pairs within tx that reference the same
// commitment, an optimization/validity rule applied when aggregating pool
// transactions into a block.
func CutThrough(inputs []Input, outputs []Output) ([]Input, []Output) {
	spent := make(map[Commitment]bool, len(inputs))
	for _, in := range inputs {
		spent[in.Commitment] = true
	}

	outIdx := make(map[Commitment]int, len(outputs))
	for i, o := range outputs {
		outIdx[o.Commitment] = i
	}

	dropOut := make(map[int]bool)
	keepIn := make([]Input, 0, len(inputs))
	for _, in := range inputs {
		if idx, ok := outIdx[in.Commitment]; ok {
			dropOut[idx] = true
			continue
		}
		keepIn = append(keepIn, in)
	}

	keepOut := make([]Output, 0, len(outputs))
	for i, o := range outputs {
		if dropOut[i] {
			continue
		}
		keepOut = append(keepOut, o)
	}

	return keepIn, keepOut
}

// Block is a full header plus body.
type Block struct {
	Header BlockHeader
	Inputs  []Input
	Outputs []Output
	Kernels []TxKernel
}

// Bytes serializes a full block: header, then length-prefixed body parts.
func (b *Block) Bytes() []byte {
	buf := b.Header.Bytes()

	writeCount := func(n int) {
		tmp := make([]byte, 8)
		binary.BigEndian.PutUint64(tmp, uint64(n))
		buf = append(buf, tmp...)
	}

	writeCount(len(b.Inputs))
	for i := range b.Inputs {
		buf = append(buf, b.Inputs[i].Bytes()...)
	}

	writeCount(len(b.Outputs))
	for i := range b.Outputs {
		buf = append(buf, b.Outputs[i].Bytes()...)
	}

	writeCount(len(b.Kernels))
	for i := range b.Kernels {
		buf = append(buf, b.Kernels[i].Bytes()...)
	}

	return buf
}

// maxBodyCount bounds the length-prefixed body slices against a corrupt
// or hostile oversized count field.
const maxBodyCount = 1 << 20

// Read deserializes a Block written by Bytes.
func (b *Block) Read(r io.Reader) error {
	if err := b.Header.Read(r); err != nil {
		return err
	}

	readCount := func() (uint64, error) {
		var tmp [8]byte
		if err := readFull(r, tmp[:]); err != nil {
			return 0, err
		}
		n := binary.BigEndian.Uint64(tmp[:])
		if n > maxBodyCount {
			return 0, ErrCorruptedData
		}
		return n, nil
	}

	nIn, err := readCount()
	if err != nil {
		return err
	}
	b.Inputs = make([]Input, nIn)
	for i := range b.Inputs {
		if err := b.Inputs[i].Read(r); err != nil {
			return err
		}
	}

	nOut, err := readCount()
	if err != nil {
		return err
	}
	b.Outputs = make([]Output, nOut)
	for i := range b.Outputs {
		if err := b.Outputs[i].Read(r); err != nil {
			return err
		}
	}

	nKern, err := readCount()
	if err != nil {
		return err
	}
	b.Kernels = make([]TxKernel, nKern)
	for i := range b.Kernels {
		if err := b.Kernels[i].Read(r); err != nil {
			return err
		}
	}

	return nil
}

// Hash returns the block's identity, equal to its header's hash.
func (b *Block) Hash() Hash {
	return b.Header.Hash()
}

// Sort puts the block body into canonical order.
func (b *Block) Sort() {
	sort.Sort(sortInputs(b.Inputs))
	sort.Sort(sortOutputs(b.Outputs))
	sort.Sort(sortKernels(b.Kernels))
}

// Fees returns the sum of the block's kernel fees (excludes coinbase,
// which carries no fee).
func (b *Block) Fees() uint64 {
	var total uint64
	for _, k := range b.Kernels {
		total += k.Fee
	}
	return total
}

// Coinbase returns the block's coinbase output and kernel, or an error if
// the body does not carry exactly one of each.
func (b *Block) Coinbase() (*Output, *TxKernel, error) {
	var out *Output
	var kern *TxKernel

	for i := range b.Outputs {
		if b.Outputs[i].Features == FeatureCoinbase {
			if out != nil {
				return nil, nil, errors.New("consensus: multiple coinbase outputs")
			}
			out = &b.Outputs[i]
		}
	}
	for i := range b.Kernels {
		if b.Kernels[i].Features == FeatureCoinbase {
			if kern != nil {
				return nil, nil, errors.New("consensus: multiple coinbase kernels")
			}
			kern = &b.Kernels[i]
		}
	}

	if out == nil || kern == nil {
		return nil, nil, errors.New("consensus: missing coinbase output or kernel")
	}
	return out, kern, nil
}
