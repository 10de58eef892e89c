// SPDX-License-Identifier: GPL-2.0-or-later

// Package stego implements the covert pixel channel: bit packing and
// unpacking of an arbitrary byte payload across a sequence of video frames.
package stego

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/icza/bitio"
)

// ErrTruncated bit count is not a whole number of bytes. The length header
// always declares the exact bit count, so a trailing partial byte means the
// stream is corrupt and must never be zero-padded away.
var ErrTruncated = errors.New("truncated bit stream")

// BytesToBits expands data into one byte per bit, MSB-first within each
// input byte, concatenated in input order.
func BytesToBits(data []byte) []byte {
	bits := make([]byte, 0, len(data)*8)

	br := bitio.NewReader(bytes.NewReader(data))
	for {
		bit, err := br.ReadBool()
		if err != nil {
			return bits
		}
		if bit {
			bits = append(bits, 1)
		} else {
			bits = append(bits, 0)
		}
	}
}

// BitsToBytes packs bits back into bytes, MSB-first.
func BitsToBytes(bits []byte) ([]byte, error) {
	if len(bits)%8 != 0 {
		return nil, fmt.Errorf("%w: %v bits", ErrTruncated, len(bits))
	}

	buf := &bytes.Buffer{}
	bw := bitio.NewWriter(buf)
	for _, bit := range bits {
		if err := bw.WriteBool(bit != 0); err != nil {
			return nil, err
		}
	}
	if err := bw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
