// SPDX-License-Identifier: GPL-2.0-or-later

package mpx

import (
	"context"
	"testing"
	"time"

	"github.com/javantanna/mpx/pkg/log"
	"github.com/javantanna/mpx/pkg/payload"
	"github.com/javantanna/mpx/pkg/video"
	"github.com/stretchr/testify/require"
)

func newTestLogger(t *testing.T) *log.Logger {
	logger := log.NewMockLogger()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, logger.Start(ctx))
	return logger
}

func testVideoInfo() *video.Info {
	return &video.Info{
		Width:      64,
		Height:     48,
		FPS:        30,
		FrameCount: 10,
		Duration:   0.333,
		Codec:      "h264",
		HasAudio:   true,
	}
}

func TestCovertDescriptor(t *testing.T) {
	config := DefaultConfig()
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	public := newPublicDocument(config, created, "abc123", testVideoInfo())
	before, err := payload.Canonical(public)
	require.NoError(t, err)

	addCovertDescriptor(public, "deadbeef")

	layers := public[keyLayers].(map[string]interface{})
	covert := layers["covert"].(map[string]interface{})
	require.Equal(t, "deadbeef", covert[keyChecksum])
	require.Equal(t, "consecutive", covert["spread"])

	// Stripping the descriptor restores the exact pre-descriptor form.
	after, err := payload.Canonical(stripCovertDescriptor(public))
	require.NoError(t, err)
	require.Equal(t, before, after)

	// The original document keeps its descriptor.
	_, ok := public[keyLayers].(map[string]interface{})["covert"]
	require.True(t, ok)
}

// The public checksum must survive a compress/decompress round trip, or the
// verifier could never match what the encoder wrote.
func TestChecksumStableAcrossRoundTrip(t *testing.T) {
	config := DefaultConfig()
	public := newPublicDocument(config, time.Now(), "abc123", testVideoInfo())

	canonical, err := payload.Canonical(public)
	require.NoError(t, err)
	written, err := payload.HashData(canonical, config.HashAlgorithm)
	require.NoError(t, err)

	addCovertDescriptor(public, "deadbeef")
	blob, err := payload.Compress(public, config.CompressionLevel)
	require.NoError(t, err)

	decoded, err := payload.Decompress(blob)
	require.NoError(t, err)

	canonical2, err := payload.Canonical(stripCovertDescriptor(decoded))
	require.NoError(t, err)
	read, err := payload.HashData(canonical2, config.HashAlgorithm)
	require.NoError(t, err)

	require.Equal(t, written, read)
}

func TestNewCovertDocument(t *testing.T) {
	config := DefaultConfig()
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	covert := newCovertDocument(config, created, "pub123",
		payload.Document{"motion": 0.5},
		payload.Document{"author": "jo"},
	)

	require.Equal(t, "pub123", covert[keyPublicChecksum])
	require.Equal(t, "ai_training_data", covert[keyPayloadType])
	require.Equal(t, "2024-05-01T12:00:00Z", covert[keyTimestamp])
	require.Equal(t, payload.Document{"motion": 0.5}, covert[keyAutoFeatures])

	// Nil maps become empty maps so the persisted form is stable.
	covert = newCovertDocument(config, created, "pub123", nil, nil)
	require.Equal(t, payload.Document{}, covert[keyAutoFeatures])
	require.Equal(t, payload.Document{}, covert[keyUserMetadata])
}
