// SPDX-License-Identifier: GPL-2.0-or-later

// Package features samples video frames and derives lightweight signal
// statistics for the covert metadata document.
package features

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/javantanna/mpx/pkg/log"
	"github.com/javantanna/mpx/pkg/payload"
	"github.com/javantanna/mpx/pkg/video"
)

type frameReader interface {
	Next() ([]byte, error)
	Close() error
}

// Analyzer extracts auto features from a video file.
type Analyzer struct {
	maxFrames int
	logger    *log.Logger

	probe      func(ctx context.Context, path string) (*video.Info, error)
	openSource func(path string, width, height int) (frameReader, error)
}

// NewAnalyzer returns an Analyzer that samples at most maxFrames frames.
func NewAnalyzer(ffmpegBin, ffprobeBin string, maxFrames int, logger *log.Logger) *Analyzer {
	ffprobe := video.NewFFprobe(ffprobeBin)
	ffmpeg := video.NewFFmpeg(ffmpegBin)

	return &Analyzer{
		maxFrames: maxFrames,
		logger:    logger,

		probe: ffprobe.Probe,
		openSource: func(path string, width, height int) (frameReader, error) {
			return ffmpeg.NewSource(path, width, height)
		},
	}
}

// Extract samples the leading frames and summarizes brightness, contrast
// and motion. A video too short to diff still yields the static features.
func (a *Analyzer) Extract(ctx context.Context, path string) (payload.Document, error) {
	info, err := a.probe(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("probe: %w", err)
	}

	source, err := a.openSource(path, info.Width, info.Height)
	if err != nil {
		return nil, fmt.Errorf("open frame source: %w", err)
	}
	defer source.Close()

	stats, err := a.sampleFrames(source)
	if err != nil {
		return nil, err
	}
	a.logger.Debug().Src("features").File(path).
		Msgf("sampled %v frames", stats.frames)

	doc := payload.Document{
		"resolution":     fmt.Sprintf("%vx%v", info.Width, info.Height),
		"fps":            info.FPS,
		"duration":       info.Duration,
		"codec":          info.Codec,
		"has_audio":      info.HasAudio,
		"frames_sampled": stats.frames,
	}
	if stats.frames > 0 {
		doc["mean_brightness"] = stats.meanBrightness()
	}
	if stats.frames > 1 {
		doc["motion_score"] = stats.motionScore()
	}
	return doc, nil
}

type frameStats struct {
	frames        int
	brightnessSum float64
	diffSum       float64
	diffPairs     int
}

func (a *Analyzer) sampleFrames(source frameReader) (*frameStats, error) {
	stats := &frameStats{}

	var prev []byte
	for stats.frames < a.maxFrames {
		frame, err := source.Next()
		if errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return nil, fmt.Errorf("read frame: %w", err)
		}

		stats.frames++
		stats.brightnessSum += frameBrightness(frame)
		if prev != nil {
			stats.diffSum += frameDiff(prev, frame)
			stats.diffPairs++
		}
		prev = frame
	}
	return stats, nil
}

// meanBrightness average sample value normalized to 0-1.
func (s *frameStats) meanBrightness() float64 {
	return s.brightnessSum / float64(s.frames)
}

// motionScore average per-sample difference between consecutive frames,
// normalized to 0-1.
func (s *frameStats) motionScore() float64 {
	if s.diffPairs == 0 {
		return 0
	}
	return s.diffSum / float64(s.diffPairs)
}

func frameBrightness(frame []byte) float64 {
	if len(frame) == 0 {
		return 0
	}
	var sum uint64
	for _, v := range frame {
		sum += uint64(v)
	}
	return float64(sum) / float64(len(frame)) / 255
}

func frameDiff(frame1, frame2 []byte) float64 {
	n := len(frame1)
	if len(frame2) < n {
		n = len(frame2)
	}
	if n == 0 {
		return 0
	}
	var sum uint64
	for i := 0; i < n; i++ {
		sum += uint64(absDiff(frame1[i], frame2[i]))
	}
	return float64(sum) / float64(n) / 255
}

func absDiff(a, b uint8) uint8 {
	if a > b {
		return a - b
	}
	return b - a
}
