// SPDX-License-Identifier: GPL-2.0-or-later

package mpx

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/javantanna/mpx/pkg/log"
	"github.com/javantanna/mpx/pkg/mpxerr"
	"github.com/javantanna/mpx/pkg/payload"
	"github.com/javantanna/mpx/pkg/stego"
	"github.com/javantanna/mpx/pkg/storage"
	"github.com/javantanna/mpx/pkg/video"
	"github.com/shirou/gopsutil/v3/mem"
)

// FFV1 output grows well beyond the lossy input, reserve headroom for it.
const losslessExpansionFactor = 8

// EncodeOptions optional encode behavior.
type EncodeOptions struct {
	// DisableCovert folds the covert document into the public document
	// and writes only the container layer.
	DisableCovert bool

	// SkipVerify skips the post-write self-verification.
	SkipVerify bool
}

// Encoder writes both metadata layers into a video file.
type Encoder struct {
	config Config
	logger *log.Logger

	// Collaborators as function fields, replaced in tests.
	validate       func(ctx context.Context, path string) (*video.Info, error)
	ensureOutput   func(path string, requiredBytes uint64) error
	hashFile       func(path string) (string, error)
	writeCovert    func(ctx context.Context, source, dest string, blob []byte, info *video.Info) error
	writeContainer writeBlobFunc
	verify         func(ctx context.Context, path string) *VerifyResult
	memUsage       func() float64

	features FeatureSource
}

// NewEncoder returns an Encoder. features may be nil.
func NewEncoder(config Config, logger *log.Logger, features FeatureSource) *Encoder {
	probe := video.NewFFprobe(config.FFprobeBin)
	checker := storage.NewChecker()

	e := &Encoder{
		config: config,
		logger: logger,

		validate: func(ctx context.Context, path string) (*video.Info, error) {
			return probe.Validate(ctx, path, config.SupportedFormats)
		},
		ensureOutput: checker.EnsureOutputDir,
		hashFile: func(path string) (string, error) {
			return payload.HashFile(path, config.HashAlgorithm, config.HashChunkSize)
		},
		writeContainer: newContainerWriter(config),
		verify:         NewVerifier(config, logger).Verify,
		memUsage:       memoryUsedPercent,

		features: features,
	}
	e.writeCovert = e.writeCovertLayer
	return e
}

// Encode embeds userMetadata and auto-extracted features into the video at
// videoPath and writes the result to outputPath.
func (e *Encoder) Encode(ctx context.Context, videoPath string, userMetadata payload.Document,
	outputPath string, opts EncodeOptions,
) (*EncodeResult, error) {
	start := time.Now()
	e.logger.Info().Src("encoder").File(videoPath).Msg("starting encode")

	info, err := e.validate(ctx, videoPath)
	if err != nil {
		return nil, err
	}
	e.logger.Info().Src("encoder").File(videoPath).
		Msgf("video specs: %vx%v, %.2f fps, %.2fs",
			info.Width, info.Height, info.FPS, info.Duration)

	inputStat, err := os.Stat(videoPath)
	if err != nil {
		return nil, mpxerr.Wrap(mpxerr.KindValidation, err, "stat input")
	}
	inputSize := inputStat.Size()

	if err := e.ensureOutput(outputPath, uint64(inputSize)*losslessExpansionFactor); err != nil {
		return nil, err
	}

	e.logger.Info().Src("encoder").File(videoPath).Msg("computing content hash")
	originalHash, err := e.hashFile(videoPath)
	if err != nil {
		return nil, fmt.Errorf("hash input: %w", err)
	}

	var features payload.Document
	if e.features != nil {
		e.logger.Info().Src("encoder").File(videoPath).Msg("extracting features")
		features, err = e.features.Extract(ctx, videoPath)
		if err != nil {
			return nil, fmt.Errorf("extract features: %w", err)
		}
	}

	created := time.Now()
	public := newPublicDocument(e.config, created, originalHash, info)

	publicCanonical, err := payload.Canonical(public)
	if err != nil {
		return nil, mpxerr.Wrap(mpxerr.KindEncoding, err, "marshal public document")
	}
	publicChecksum, err := payload.HashData(publicCanonical, e.config.HashAlgorithm)
	if err != nil {
		return nil, err
	}

	covert := newCovertDocument(e.config, created, publicChecksum, features, userMetadata)

	storageLayer := "covert"
	if opts.DisableCovert {
		// No covert channel, everything rides in the visible tag.
		public[keyAIMetadata] = covert
		storageLayer = "container"
	} else {
		covertCanonical, err := payload.Canonical(covert)
		if err != nil {
			return nil, mpxerr.Wrap(mpxerr.KindEncoding, err, "marshal covert document")
		}
		covertChecksum, err := payload.HashData(covertCanonical, e.config.HashAlgorithm)
		if err != nil {
			return nil, err
		}
		addCovertDescriptor(public, covertChecksum)
	}

	containerBlob, err := payload.Compress(public, e.config.CompressionLevel)
	if err != nil {
		return nil, err
	}
	e.logger.Info().Src("encoder").File(videoPath).
		Msgf("compressed public document: %v -> %v bytes",
			len(publicCanonical), len(containerBlob))

	if opts.DisableCovert {
		e.logger.Warn().Src("encoder").File(videoPath).
			Msg("covert layer disabled, storing in container layer instead")
		if err := e.writeContainer(ctx, videoPath, containerBlob, outputPath); err != nil {
			return nil, err
		}
	} else {
		covertBlob, err := payload.Compress(covert, e.config.CompressionLevel)
		if err != nil {
			return nil, err
		}

		// The container pass must come after the covert pass so the tag
		// write cannot disturb already-embedded pixel data.
		tempPath := outputPath + ".covert.tmp.mp4"
		defer os.Remove(tempPath) //nolint:errcheck

		e.logger.Info().Src("encoder").File(videoPath).Msg("writing covert layer")
		if err := e.writeCovert(ctx, videoPath, tempPath, covertBlob, info); err != nil {
			return nil, err
		}

		e.logger.Info().Src("encoder").File(videoPath).Msg("writing container layer")
		if err := e.writeContainer(ctx, tempPath, containerBlob, outputPath); err != nil {
			return nil, err
		}
	}

	if !opts.SkipVerify {
		e.logger.Info().Src("encoder").File(outputPath).Msg("verifying encoded file")
		verification := e.verify(ctx, outputPath)
		if verification.Overall != OverallVerified && verification.Overall != OverallPartial {
			return nil, mpxerr.Integrity("post-write verification failed: %v %v",
				verification.Overall, verification.Error)
		}
	}

	outputStat, err := os.Stat(outputPath)
	if err != nil {
		return nil, mpxerr.Wrap(mpxerr.KindEncoding, err, "stat output")
	}

	duration := time.Since(start).Seconds()
	e.logger.Info().Src("encoder").File(outputPath).
		Msgf("encoding completed in %.2fs", duration)

	const mb = 1024 * 1024
	result := &EncodeResult{
		InputFile:           videoPath,
		OutputFile:          outputPath,
		InputSizeMB:         float64(inputSize) / mb,
		OutputSizeMB:        float64(outputStat.Size()) / mb,
		EncodingTimeSeconds: duration,
		StorageLayer:        storageLayer,
		FeaturesExtracted:   len(features),
		OriginalHash:        originalHash,
		MemoryUsedPercent:   e.memUsage(),
	}
	if inputSize > 0 {
		result.SizeIncreasePercent = (float64(outputStat.Size()-inputSize) / float64(inputSize)) * 100
	}
	return result, nil
}

// writeCovertLayer streams the source's frames through the covert layer
// into a lossless temp file, muxing the original audio on top.
func (e *Encoder) writeCovertLayer(_ context.Context, source, dest string, blob []byte, info *video.Info) error {
	capacity := info.FrameCount * info.SamplesPerFrame()
	needed := len(blob)*8 + stego.HeaderBits
	if needed > capacity {
		return mpxerr.Encoding("payload needs %v bits, capacity is %v", needed, capacity)
	}

	ffmpeg := video.NewFFmpeg(e.config.FFmpegBin)

	frames, err := ffmpeg.NewSource(source, info.Width, info.Height)
	if err != nil {
		return mpxerr.Wrap(mpxerr.KindEncoding, err, "open frame source")
	}
	defer frames.Close()

	sink, err := ffmpeg.NewSink(video.SinkOptions{
		Width:       info.Width,
		Height:      info.Height,
		FPS:         info.FPS,
		AudioSource: source,
		Output:      dest,
	})
	if err != nil {
		return mpxerr.Wrap(mpxerr.KindEncoding, err, "open frame sink")
	}

	covert := stego.NewLayer(e.config.MaxScanFrames, e.logger)
	if err := covert.Write(frames, sink, blob, info.FrameCount, info.SamplesPerFrame()); err != nil {
		sink.Close() //nolint:errcheck
		return err
	}
	return sink.Close()
}

func memoryUsedPercent() float64 {
	vmem, err := mem.VirtualMemory()
	if err != nil {
		return 0
	}
	return vmem.UsedPercent
}
