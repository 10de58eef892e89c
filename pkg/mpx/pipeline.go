// SPDX-License-Identifier: GPL-2.0-or-later

package mpx

import (
	"context"

	"github.com/javantanna/mpx/pkg/container"
	"github.com/javantanna/mpx/pkg/log"
	"github.com/javantanna/mpx/pkg/stego"
	"github.com/javantanna/mpx/pkg/video"
)

// Layer access functions shared by the pipelines, stubbed in tests.
type (
	readBlobFunc  func(ctx context.Context, path string) ([]byte, error)
	writeBlobFunc func(ctx context.Context, source string, blob []byte, dest string) error
)

func newContainerReader(config Config) readBlobFunc {
	layer := container.NewLayer(config.ContainerTag, config.FFmpegBin, config.FFprobeBin)
	return layer.Read
}

func newContainerWriter(config Config) writeBlobFunc {
	layer := container.NewLayer(config.ContainerTag, config.FFmpegBin, config.FFprobeBin)
	return layer.Write
}

// newCovertReader probes the file and harvests the covert payload from its
// frame sequence. A nil blob means no payload is present.
func newCovertReader(config Config, logger *log.Logger) readBlobFunc {
	probe := video.NewFFprobe(config.FFprobeBin)
	ffmpeg := video.NewFFmpeg(config.FFmpegBin)
	covert := stego.NewLayer(config.MaxScanFrames, logger)

	return func(ctx context.Context, path string) ([]byte, error) {
		info, err := probe.Probe(ctx, path)
		if err != nil {
			return nil, err
		}

		source, err := ffmpeg.NewSource(path, info.Width, info.Height)
		if err != nil {
			return nil, err
		}
		defer source.Close()

		return covert.Read(source)
	}
}
