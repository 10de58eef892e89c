// SPDX-License-Identifier: GPL-2.0-or-later

package video

import (
	"bytes"
	"fmt"
	"io"
	"os/exec"
	"strconv"

	"github.com/javantanna/mpx/pkg/mpxerr"
)

// SinkOptions configure an encoding sink.
type SinkOptions struct {
	Width  int
	Height int
	FPS    float64

	// AudioSource is the original file whose audio track is stream-copied
	// verbatim onto the produced frame sequence. Embedding never touches
	// audio.
	AudioSource string

	Output string
}

// Sink encodes pushed rgb24 frames losslessly (FFV1, intra-only) and muxes
// the audio of the original file on top. Lossless video is required, the
// covert channel does not survive lossy recompression.
type Sink struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr bytes.Buffer

	frameSize int
	closed    bool
}

// NewSink starts an encoding sink.
func (f *FFmpeg) NewSink(opts SinkOptions) (*Sink, error) {
	size := fmt.Sprintf("%vx%v", opts.Width, opts.Height)
	fps := strconv.FormatFloat(opts.FPS, 'f', -1, 64)

	cmd := f.command(
		"-y",
		"-v", "error",
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"-s", size,
		"-r", fps,
		"-i", "pipe:0",
		"-i", opts.AudioSource,
		"-map", "0:v:0",
		"-map", "1:a:0?",
		"-c:v", "ffv1",
		"-level", "3",
		"-coder", "1",
		"-context", "1",
		"-g", "1",
		"-slices", "24",
		"-slicecrc", "1",
		"-c:a", "copy",
		"-f", "mp4",
		opts.Output,
	)

	s := &Sink{
		cmd:       cmd,
		frameSize: opts.Width * opts.Height * 3,
	}
	cmd.Stderr = &s.stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	s.stdin = stdin

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}
	return s, nil
}

// WriteFrame pushes one flattened frame to the encoder.
func (s *Sink) WriteFrame(frame []byte) error {
	if len(frame) != s.frameSize {
		return mpxerr.Encoding("frame size %v, expected %v", len(frame), s.frameSize)
	}
	if _, err := s.stdin.Write(frame); err != nil {
		return mpxerr.Wrap(mpxerr.KindEncoding, err, "write frame: %v", s.stderr.String())
	}
	return nil
}

// Close finishes the encode and blocks until the mux, including the audio
// copy, has completed. A non-zero exit fails the whole write.
func (s *Sink) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	s.stdin.Close()
	if err := s.cmd.Wait(); err != nil {
		return mpxerr.Wrap(mpxerr.KindEncoding, err, "ffmpeg mux: %v", s.stderr.String())
	}
	return nil
}
