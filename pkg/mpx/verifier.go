// SPDX-License-Identifier: GPL-2.0-or-later

package mpx

import (
	"context"
	"time"

	"github.com/javantanna/mpx/pkg/log"
	"github.com/javantanna/mpx/pkg/payload"
)

// Verifier classifies the integrity of an encoded file.
type Verifier struct {
	config Config
	logger *log.Logger

	readContainer readBlobFunc
	readCovert    readBlobFunc
}

// NewVerifier returns a Verifier.
func NewVerifier(config Config, logger *log.Logger) *Verifier {
	return &Verifier{
		config: config,
		logger: logger,

		readContainer: newContainerReader(config),
		readCovert:    newCovertReader(config, logger),
	}
}

// Verify classifies the file at path.
//
//	covert | container | checksum | overall
//	  yes  |    yes    |  match   | verified
//	  yes  |    yes    | mismatch | tampered
//	  no   |    yes    |    -     | partial
//	  no   |    no     |    -     | invalid
//
// Unexpected failures collapse into the "error" classification with the
// message attached, every other branch is deterministic.
func (v *Verifier) Verify(ctx context.Context, path string) *VerifyResult {
	v.logger.Info().Src("verifier").File(path).Msg("verifying")

	result := &VerifyResult{
		File:           path,
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
		CovertLayer:    LayerUnknown,
		ContainerLayer: LayerUnknown,
		Overall:        OverallInvalid,
	}

	public, ok := v.checkContainer(ctx, path, result)
	if !ok {
		return result
	}
	covert := v.checkCovert(ctx, path, result)

	switch {
	case result.CovertLayer == LayerPresent && result.ContainerLayer == LayerPresent:
		if v.checksumMatches(public, covert) {
			result.ChecksumMatch = true
			result.Overall = OverallVerified
		} else {
			result.Overall = OverallTampered
		}
	case result.ContainerLayer == LayerPresent:
		result.Overall = OverallPartial
	default:
		// Covert data without the public summary cannot be
		// cross-checked, the file does not follow the format.
		result.Overall = OverallInvalid
	}

	v.logger.Info().Src("verifier").File(path).
		Msgf("verification result: %v", result.Overall)
	return result
}

// checkContainer fills the container presence flag. A false return means
// verification cannot continue and result is final.
func (v *Verifier) checkContainer(ctx context.Context, path string, result *VerifyResult) (payload.Document, bool) {
	blob, err := v.readContainer(ctx, path)
	if err != nil {
		// The sole catch-all path.
		result.Overall = OverallError
		result.Error = err.Error()
		return nil, false
	}
	if blob == nil {
		result.ContainerLayer = LayerAbsent
		return nil, true
	}

	public, err := payload.Decompress(blob)
	if err != nil {
		result.Overall = OverallError
		result.Error = err.Error()
		return nil, false
	}

	result.ContainerLayer = LayerPresent
	return public, true
}

// checkCovert fills the covert presence flag. Read or decode failures count
// as absent, a damaged covert channel is a downgrade and not a crash.
func (v *Verifier) checkCovert(ctx context.Context, path string, result *VerifyResult) payload.Document {
	result.CovertLayer = LayerAbsent

	blob, err := v.readCovert(ctx, path)
	if err != nil {
		v.logger.Warn().Src("verifier").File(path).
			Msgf("covert extraction failed: %v", err)
		return nil
	}
	if blob == nil {
		return nil
	}

	covert, err := payload.Decompress(blob)
	if err != nil {
		v.logger.Warn().Src("verifier").File(path).
			Msgf("covert document corrupt: %v", err)
		return nil
	}

	result.CovertLayer = LayerPresent
	return covert
}

// checksumMatches recomputes the public document's checksum from the
// document actually found in the container layer and compares it with the
// one carried inside the covert document.
func (v *Verifier) checksumMatches(public, covert payload.Document) bool {
	expected, ok := covert[keyPublicChecksum].(string)
	if !ok || expected == "" {
		return false
	}

	canonical, err := payload.Canonical(stripCovertDescriptor(public))
	if err != nil {
		return false
	}
	actual, err := payload.HashData(canonical, v.config.HashAlgorithm)
	if err != nil {
		return false
	}
	return actual == expected
}
