// SPDX-License-Identifier: GPL-2.0-or-later

package video

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os/exec"
)

// FFmpeg wraps the ffmpeg binary.
type FFmpeg struct {
	command func(...string) *exec.Cmd
}

// NewFFmpeg returns FFmpeg.
func NewFFmpeg(bin string) *FFmpeg {
	command := func(args ...string) *exec.Cmd {
		return exec.Command(bin, args...)
	}
	return &FFmpeg{command: command}
}

// Source pulls decoded rgb24 frames from a video file, one frame in flight.
type Source struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr bytes.Buffer

	frameSize int
}

// NewSource starts decoding the video stream of the file at path.
// Each frame is width*height*3 flattened samples.
func (f *FFmpeg) NewSource(path string, width, height int) (*Source, error) {
	cmd := f.command(
		"-v", "error",
		"-i", path,
		"-map", "0:v:0",
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"pipe:1",
	)

	s := &Source{
		cmd:       cmd,
		frameSize: width * height * 3,
	}
	cmd.Stderr = &s.stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	s.stdout = stdout

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}
	return s, nil
}

// Next blocks until the next frame is fully read and returns its flattened
// pixel buffer. The buffer is owned by the caller. Returns io.EOF when the
// stream ends.
func (s *Source) Next() ([]byte, error) {
	frame := make([]byte, s.frameSize)
	_, err := io.ReadFull(s.stdout, frame)
	if errors.Is(err, io.EOF) {
		return nil, io.EOF
	} else if err != nil {
		return nil, fmt.Errorf("read frame: %v %w", s.stderr.String(), err)
	}
	return frame, nil
}

// Close reaps the decoder process. Callers that stop pulling frames early
// may discard the remaining output, a decode abort is not an error.
func (s *Source) Close() error {
	s.stdout.Close()
	s.cmd.Wait() //nolint:errcheck
	return nil
}
