// SPDX-License-Identifier: GPL-2.0-or-later

package mpx

import (
	"context"

	"github.com/javantanna/mpx/pkg/log"
	"github.com/javantanna/mpx/pkg/mpxerr"
	"github.com/javantanna/mpx/pkg/payload"
)

// Decoder reads both metadata layers back out of a file.
type Decoder struct {
	config Config
	logger *log.Logger

	readContainer readBlobFunc
	readCovert    readBlobFunc
}

// NewDecoder returns a Decoder.
func NewDecoder(config Config, logger *log.Logger) *Decoder {
	return &Decoder{
		config: config,
		logger: logger,

		readContainer: newContainerReader(config),
		readCovert:    newCovertReader(config, logger),
	}
}

// Decode assembles a unified result from the container layer and, when
// recoverable, the covert layer. A missing container tag is fatal, a broken
// covert channel only downgrades the result.
func (d *Decoder) Decode(ctx context.Context, path string) (*DecodeResult, error) {
	d.logger.Info().Src("decoder").File(path).Msg("decoding")

	blob, err := d.readContainer(ctx, path)
	if err != nil {
		return nil, err
	}
	if blob == nil {
		return nil, mpxerr.Decoding("container tag %v absent", d.config.ContainerTag)
	}

	public, err := payload.Decompress(blob)
	if err != nil {
		return nil, err
	}

	result := &DecodeResult{
		File:     path,
		FileInfo: public,
	}

	covert, err := d.decodeCovert(ctx, path)
	if err != nil {
		// Graceful downgrade, the public layer alone is still useful.
		d.logger.Warn().Src("decoder").File(path).
			Msgf("covert extraction failed: %v", err)
		return result, nil
	}
	if covert == nil {
		d.logger.Warn().Src("decoder").File(path).Msg("covert layer not found")
		return result, nil
	}

	result.CovertPresent = true
	result.Covert = covert
	if features, ok := covert[keyAutoFeatures].(map[string]interface{}); ok {
		result.AutoFeatures = features
	}
	if userMetadata, ok := covert[keyUserMetadata].(map[string]interface{}); ok {
		result.UserMetadata = userMetadata
	}

	d.logger.Info().Src("decoder").File(path).Msg("covert extraction successful")
	return result, nil
}

func (d *Decoder) decodeCovert(ctx context.Context, path string) (payload.Document, error) {
	blob, err := d.readCovert(ctx, path)
	if err != nil || blob == nil {
		return nil, err
	}
	return payload.Decompress(blob)
}
