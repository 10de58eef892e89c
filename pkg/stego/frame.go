// SPDX-License-Identifier: GPL-2.0-or-later

package stego

import (
	"errors"
	"fmt"
)

// ErrRange requested samples lie outside the frame buffer.
var ErrRange = errors.New("sample range out of bounds")

// EmbedChunk writes bits into the low bit of consecutive samples of frame,
// starting at the flattened sample index offset. For each bit the sample's
// low bit is cleared and OR'd with the bit, the other seven bits are left
// untouched. The frame buffer is mutated in place; callers own the buffer.
//
// If the bits do not fit in the remaining samples, the run is truncated and
// the number of bits actually written is returned so the caller can carry
// the remainder into the next frame.
func EmbedChunk(frame []byte, bits []byte, offset int) int {
	n := len(bits)
	if space := len(frame) - offset; space < n {
		n = space
	}
	if n < 0 {
		n = 0
	}
	for i := 0; i < n; i++ {
		frame[offset+i] = frame[offset+i]&0xFE | bits[i]
	}
	return n
}

// ExtractChunk reads count low bits starting at the flattened sample
// index offset.
func ExtractChunk(frame []byte, offset, count int) ([]byte, error) {
	if offset < 0 || count < 0 || offset+count > len(frame) {
		return nil, fmt.Errorf("%w: offset %v count %v frame %v",
			ErrRange, offset, count, len(frame))
	}
	bits := make([]byte, count)
	for i := 0; i < count; i++ {
		bits[i] = frame[offset+i] & 1
	}
	return bits, nil
}
