// SPDX-License-Identifier: GPL-2.0-or-later

// Package video adapts the external ffmpeg and ffprobe binaries into frame
// sources, frame sinks and probing. The covert channel requires lossless
// re-encoding, lossy recompression would destroy the embedded bits.
package video

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/javantanna/mpx/pkg/mpxerr"
)

// Info holds probed stream properties.
type Info struct {
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	FPS        float64 `json:"fps"`
	FrameCount int     `json:"frame_count"`
	Duration   float64 `json:"duration"`
	Codec      string  `json:"codec"`
	HasAudio   bool    `json:"has_audio"`
}

// SamplesPerFrame returns the flattened rgb24 sample count of one frame.
func (i Info) SamplesPerFrame() int {
	return i.Width * i.Height * 3
}

// FFprobe wraps the ffprobe binary.
type FFprobe struct {
	command func(...string) *exec.Cmd
}

// NewFFprobe returns FFprobe.
func NewFFprobe(bin string) *FFprobe {
	command := func(args ...string) *exec.Cmd {
		return exec.Command(bin, args...)
	}
	return &FFprobe{command: command}
}

// Probe returns stream properties of the file at path.
func (f *FFprobe) Probe(ctx context.Context, path string) (*Info, error) {
	cmd := f.command(
		"-v", "error",
		"-print_format", "json",
		"-show_streams",
		"-show_format",
		path,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := runWithContext(ctx, cmd); err != nil {
		return nil, fmt.Errorf("ffprobe %v: %v %w", path, stderr.String(), err)
	}

	return parseProbeOutput(stdout.Bytes())
}

type probeOutput struct {
	Streams []struct {
		CodecType    string `json:"codec_type"`
		CodecName    string `json:"codec_name"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		AvgFrameRate string `json:"avg_frame_rate"`
		NbFrames     string `json:"nb_frames"`
	} `json:"streams"`
	Format struct {
		Duration string            `json:"duration"`
		Tags     map[string]string `json:"tags"`
	} `json:"format"`
}

func parseProbeOutput(raw []byte) (*Info, error) {
	var out probeOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("unmarshal probe output: %w", err)
	}

	info := Info{}
	info.Duration, _ = strconv.ParseFloat(out.Format.Duration, 64)

	for _, stream := range out.Streams {
		switch stream.CodecType {
		case "video":
			if info.Width != 0 {
				continue // First video stream wins.
			}
			info.Width = stream.Width
			info.Height = stream.Height
			info.Codec = stream.CodecName
			info.FPS = parseFrameRate(stream.AvgFrameRate)
			info.FrameCount, _ = strconv.Atoi(stream.NbFrames)
		case "audio":
			info.HasAudio = true
		}
	}

	if info.Width == 0 || info.Height == 0 {
		return nil, fmt.Errorf("no video stream found")
	}

	// Some containers omit the frame count, estimate from duration.
	if info.FrameCount == 0 && info.Duration > 0 {
		info.FrameCount = int(info.Duration * info.FPS)
	}

	return &info, nil
}

// parseFrameRate parses a ffprobe rational like "30000/1001".
func parseFrameRate(rate string) float64 {
	num, den, found := strings.Cut(rate, "/")
	if !found {
		f, _ := strconv.ParseFloat(rate, 64)
		return f
	}

	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}

// Tags returns the container-level metadata tags of the file.
func (f *FFprobe) Tags(ctx context.Context, path string) (map[string]string, error) {
	cmd := f.command(
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		path,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := runWithContext(ctx, cmd); err != nil {
		return nil, fmt.Errorf("ffprobe %v: %v %w", path, stderr.String(), err)
	}

	var out probeOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return nil, fmt.Errorf("unmarshal probe output: %w", err)
	}
	return out.Format.Tags, nil
}

// Validate checks that path exists, has a supported extension and probes as
// a video.
func (f *FFprobe) Validate(ctx context.Context, path string, supportedFormats []string) (*Info, error) {
	ext := strings.ToLower(filepath.Ext(path))

	supported := false
	for _, format := range supportedFormats {
		if ext == format {
			supported = true
			break
		}
	}
	if !supported {
		return nil, mpxerr.Validation("unsupported format %q, supported: %v",
			ext, supportedFormats)
	}

	info, err := f.Probe(ctx, path)
	if err != nil {
		return nil, mpxerr.Wrap(mpxerr.KindValidation, err, "invalid video file")
	}
	return info, nil
}

// runWithContext runs cmd to completion, interrupting it if ctx is
// canceled first.
func runWithContext(ctx context.Context, cmd *exec.Cmd) error {
	if err := cmd.Start(); err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		cmd.Process.Kill() //nolint:errcheck
		<-done
		return ctx.Err()
	}
}
