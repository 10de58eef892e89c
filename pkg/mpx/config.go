// SPDX-License-Identifier: GPL-2.0-or-later

// Package mpx composes the covert and container layers into the encode,
// decode and verify pipelines.
package mpx

import (
	"fmt"
	"os"

	"github.com/javantanna/mpx/pkg/payload"
	"gopkg.in/yaml.v2"
)

// Config pipeline configuration.
type Config struct {
	Version          string   `yaml:"version"`
	ContainerTag     string   `yaml:"containerTag"`
	CompressionLevel int      `yaml:"compressionLevel"`
	HashAlgorithm    string   `yaml:"hashAlgorithm"`
	HashChunkSize    int      `yaml:"hashChunkSize"`
	MaxScanFrames    int      `yaml:"maxScanFrames"`
	SupportedFormats []string `yaml:"supportedFormats"`
	FFmpegBin        string   `yaml:"ffmpegBin"`
	FFprobeBin       string   `yaml:"ffprobeBin"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Version:          "1.0.0",
		ContainerTag:     "mpx_metadata",
		CompressionLevel: 6,
		HashAlgorithm:    "sha256",
		HashChunkSize:    8192,
		MaxScanFrames:    1000,
		SupportedFormats: []string{".mp4", ".mov", ".m4v", ".avi", ".mkv"},
		FFmpegBin:        "ffmpeg",
		FFprobeBin:       "ffprobe",
	}
}

// NewConfig parses raw YAML on top of the defaults.
func NewConfig(raw []byte) (Config, error) {
	config := DefaultConfig()
	if err := yaml.Unmarshal(raw, &config); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := config.validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

// ConfigFromFile loads configuration from a YAML file.
func ConfigFromFile(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return NewConfig(raw)
}

func (c Config) validate() error {
	if c.CompressionLevel < 1 || c.CompressionLevel > 9 {
		return fmt.Errorf("compressionLevel %v not in range 1-9", c.CompressionLevel)
	}
	if c.HashChunkSize <= 0 {
		return fmt.Errorf("hashChunkSize must be positive: %v", c.HashChunkSize)
	}
	if c.MaxScanFrames <= 0 {
		return fmt.Errorf("maxScanFrames must be positive: %v", c.MaxScanFrames)
	}
	if _, err := payload.NewHash(c.HashAlgorithm); err != nil {
		return err
	}
	return nil
}
