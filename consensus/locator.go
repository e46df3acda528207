// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package consensus

import (
	"encoding/binary"
	"io"
)

// Locator is a sparse list of known header hashes, sent with GetHeaders so
// the remote peer can find the most recent common ancestor, densest near
// the tip and sparser towards genesis.
type Locator struct {
	Hashes []Hash
}

// BuildLocator constructs a locator from a known-height function: hashes
// at heights [tip, tip-1, tip-2, tip-4, tip-8, ...] down to 0, capped at
// MaxLocators entries.
func BuildLocator(tip uint64, hashAt func(uint64) (Hash, bool)) Locator {
	var loc Locator
	offset := uint64(0)

	for {
		height := uint64(0)
		if offset < tip {
			height = tip - offset
		}
		if h, ok := hashAt(height); ok {
			loc.Hashes = append(loc.Hashes, h)
		}
		if height == 0 || len(loc.Hashes) >= MaxLocators {
			break
		}
		if offset == 0 {
			offset = 1
		} else {
			offset *= 2
		}
	}

	return loc
}

// Bytes serializes a Locator: u16 count then concatenated hashes.
func (l *Locator) Bytes() []byte {
	buf := make([]byte, 2)
	binary.BigEndian.PutUint16(buf, uint16(len(l.Hashes)))
	for _, h := range l.Hashes {
		buf = append(buf, h[:]...)
	}
	return buf
}

// Read deserializes a Locator written by Bytes.
func (l *Locator) Read(r io.Reader) error {
	var countBuf [2]byte
	if err := readFull(r, countBuf[:]); err != nil {
		return err
	}
	count := binary.BigEndian.Uint16(countBuf[:])
	if int(count) > MaxLocators {
		return ErrCorruptedData
	}

	l.Hashes = make([]Hash, count)
	for i := range l.Hashes {
		if err := readFull(r, l.Hashes[i][:]); err != nil {
			return err
		}
	}
	return nil
}
