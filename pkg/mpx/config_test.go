// SPDX-License-Identifier: GPL-2.0-or-later

package mpx

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		config, err := NewConfig(nil)
		require.NoError(t, err)
		require.Equal(t, DefaultConfig(), config)
	})
	t.Run("override", func(t *testing.T) {
		raw := `
containerTag: custom_tag
compressionLevel: 9
hashAlgorithm: blake3
`
		config, err := NewConfig([]byte(raw))
		require.NoError(t, err)
		require.Equal(t, "custom_tag", config.ContainerTag)
		require.Equal(t, 9, config.CompressionLevel)
		require.Equal(t, "blake3", config.HashAlgorithm)

		// Untouched fields keep their defaults.
		require.Equal(t, "ffmpeg", config.FFmpegBin)
	})
	t.Run("invalidYAML", func(t *testing.T) {
		_, err := NewConfig([]byte("\tnope"))
		require.Error(t, err)
	})

	cases := []struct {
		name string
		raw  string
	}{
		{"levelTooHigh", "compressionLevel: 10"},
		{"levelTooLow", "compressionLevel: 0"},
		{"badAlgorithm", "hashAlgorithm: md5000"},
		{"badChunkSize", "hashChunkSize: -1"},
		{"badScanBound", "maxScanFrames: 0"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewConfig([]byte(tc.raw))
			require.Error(t, err)
		})
	}
}

func TestConfigFromFile(t *testing.T) {
	t.Run("working", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "mpx.yaml")
		require.NoError(t, os.WriteFile(path, []byte("version: 2.0.0"), 0o600))

		config, err := ConfigFromFile(path)
		require.NoError(t, err)
		require.Equal(t, "2.0.0", config.Version)
	})
	t.Run("missing", func(t *testing.T) {
		_, err := ConfigFromFile("/nonexistent/mpx.yaml")
		require.Error(t, err)
	})
}
