// SPDX-License-Identifier: GPL-2.0-or-later

package stego

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/javantanna/mpx/pkg/log"
	"github.com/javantanna/mpx/pkg/mpxerr"
)

// HeaderBits is the fixed length header: a 32-bit big-endian payload
// bit-count occupying flattened samples 0-31 of frame 0. Payload bits never
// cover it.
const HeaderBits = 32

// FrameSource is a blocking pull of flattened pixel buffers in display
// order. Next returns io.EOF when the sequence is exhausted. At most one
// frame is in flight.
type FrameSource interface {
	Next() ([]byte, error)
}

// FrameSink receives flattened pixel buffers in display order.
type FrameSink interface {
	WriteFrame([]byte) error
}

// Layer drives the per-frame bit channel across a whole frame sequence.
type Layer struct {
	// Upper bound on frames considered when sanity-checking a decoded
	// length header. Guards against reading pixel noise as a huge bogus
	// payload length.
	maxScanFrames int

	logger *log.Logger
}

// NewLayer returns a covert Layer.
func NewLayer(maxScanFrames int, logger *log.Logger) *Layer {
	return &Layer{
		maxScanFrames: maxScanFrames,
		logger:        logger,
	}
}

// Write embeds payload into the low bits of the frames pulled from src and
// pushes every frame, modified or not, to sink in order. Frame count and
// order are preserved exactly.
//
// The total capacity is frameCount*samplesPerFrame; the write fails before
// any frame is emitted if the payload plus header does not fit.
func (l *Layer) Write(src FrameSource, sink FrameSink, payload []byte, frameCount, samplesPerFrame int) error {
	bits := BytesToBits(payload)
	totalBits := len(bits)

	capacity := frameCount * samplesPerFrame
	if totalBits+HeaderBits > capacity {
		return mpxerr.Encoding("payload of %v bits plus %v header bits exceeds capacity %v",
			totalBits, HeaderBits, capacity)
	}

	l.logger.Debug().Src("covert").
		Msgf("embedding %v bits into %v frames (%v samples each)",
			totalBits, frameCount, samplesPerFrame)

	header := make([]byte, 4)
	binary.BigEndian.PutUint32(header, uint32(totalBits))
	headerBits := BytesToBits(header)

	bitsWritten := 0
	frameIndex := 0
	for {
		frame, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return fmt.Errorf("pull frame %v: %w", frameIndex, err)
		}

		if bitsWritten < totalBits || frameIndex == 0 {
			offset := 0
			if frameIndex == 0 {
				EmbedChunk(frame, headerBits, 0)
				offset = HeaderBits
			}
			bitsWritten += EmbedChunk(frame, bits[bitsWritten:], offset)
		}

		if err := sink.WriteFrame(frame); err != nil {
			return fmt.Errorf("push frame %v: %w", frameIndex, err)
		}
		frameIndex++
	}

	if bitsWritten < totalBits {
		return mpxerr.Encoding("frame sequence ended after %v of %v payload bits",
			bitsWritten, totalBits)
	}
	return nil
}

// Read recovers the embedded payload from the frames pulled from src.
// A nil payload with a nil error means no payload is present, which is
// distinct from a decode failure.
func (l *Layer) Read(src FrameSource) ([]byte, error) {
	frame, err := src.Next()
	if errors.Is(err, io.EOF) {
		// Empty source, no payload.
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("pull frame 0: %w", err)
	}
	if len(frame) < HeaderBits {
		return nil, mpxerr.Decoding("frame of %v samples cannot hold the %v bit length header",
			len(frame), HeaderBits)
	}

	headerBits, err := ExtractChunk(frame, 0, HeaderBits)
	if err != nil {
		return nil, err
	}
	headerBytes, err := BitsToBytes(headerBits)
	if err != nil {
		return nil, err
	}
	totalBits := int(binary.BigEndian.Uint32(headerBytes))

	// A length of zero or one past the scan bound is pixel noise,
	// not a payload.
	if totalBits <= 0 || totalBits > l.maxScanFrames*len(frame) {
		return nil, nil
	}

	bits := make([]byte, 0, totalBits)

	chunkLen := totalBits
	if frame0Space := len(frame) - HeaderBits; chunkLen > frame0Space {
		chunkLen = frame0Space
	}
	chunk, err := ExtractChunk(frame, HeaderBits, chunkLen)
	if err != nil {
		return nil, err
	}
	bits = append(bits, chunk...)

	for len(bits) < totalBits {
		frame, err := src.Next()
		if errors.Is(err, io.EOF) {
			return nil, mpxerr.Decoding("source exhausted after %v of %v declared bits",
				len(bits), totalBits)
		} else if err != nil {
			return nil, fmt.Errorf("pull frame: %w", err)
		}

		chunkLen := totalBits - len(bits)
		if chunkLen > len(frame) {
			chunkLen = len(frame)
		}
		chunk, err := ExtractChunk(frame, 0, chunkLen)
		if err != nil {
			return nil, err
		}
		bits = append(bits, chunk...)
	}

	payload, err := BitsToBytes(bits)
	if err != nil {
		return nil, mpxerr.Wrap(mpxerr.KindDecoding, err, "unpack payload")
	}
	if !utf8.Valid(payload) {
		return nil, mpxerr.Decoding("payload is not valid UTF-8")
	}

	l.logger.Debug().Src("covert").
		Msgf("extracted %v bits", totalBits)

	return payload, nil
}
