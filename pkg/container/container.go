// SPDX-License-Identifier: GPL-2.0-or-later

// Package container stores the public blob in a standard, visible metadata
// tag of the video container. No payload transformation happens here.
package container

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/javantanna/mpx/pkg/mpxerr"
	"github.com/javantanna/mpx/pkg/video"
)

// tagReader reads container-level metadata tags, implemented by
// video.FFprobe and mocked in tests.
type tagReader interface {
	Tags(ctx context.Context, path string) (map[string]string, error)
}

// Layer reads and writes one reserved container-level metadata tag holding
// ASCII-safe base64 text.
type Layer struct {
	tag string

	ffprobe tagReader
	command func(...string) *exec.Cmd
}

// NewLayer returns a container Layer operating on the given reserved tag.
func NewLayer(tag, ffmpegBin, ffprobeBin string) *Layer {
	command := func(args ...string) *exec.Cmd {
		return exec.Command(ffmpegBin, args...)
	}
	return &Layer{
		tag:     tag,
		ffprobe: video.NewFFprobe(ffprobeBin),
		command: command,
	}
}

// Write copies source to dest with the reserved tag set to blob. Streams
// are copied bit-exact so already-embedded pixel data is not disturbed.
func (l *Layer) Write(ctx context.Context, source string, blob []byte, dest string) error {
	// ffmpeg cannot remux onto its own input.
	target := dest
	inPlace := source == dest
	if inPlace {
		target = dest + ".tag.tmp"
	}

	cmd := l.command(
		"-y",
		"-v", "error",
		"-i", source,
		"-map", "0",
		"-c", "copy",
		"-movflags", "use_metadata_tags",
		"-metadata", fmt.Sprintf("%v=%s", l.tag, blob),
		target,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := runCmd(ctx, cmd); err != nil {
		os.Remove(target) //nolint:errcheck
		return mpxerr.Wrap(mpxerr.KindEncoding, err,
			"write container tag: %v", stderr.String())
	}

	if inPlace {
		if err := os.Rename(target, dest); err != nil {
			return mpxerr.Wrap(mpxerr.KindEncoding, err, "replace %v", dest)
		}
	}
	return nil
}

// Read returns the blob stored in the reserved tag, nil if absent.
func (l *Layer) Read(ctx context.Context, path string) ([]byte, error) {
	tags, err := l.ffprobe.Tags(ctx, path)
	if err != nil {
		return nil, mpxerr.Wrap(mpxerr.KindDecoding, err, "read container tags")
	}

	for key, value := range tags {
		if strings.EqualFold(key, l.tag) {
			return []byte(value), nil
		}
	}
	return nil, nil
}

// Has reports whether the reserved tag is present.
func (l *Layer) Has(ctx context.Context, path string) bool {
	blob, err := l.Read(ctx, path)
	return err == nil && blob != nil
}

func runCmd(ctx context.Context, cmd *exec.Cmd) error {
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
