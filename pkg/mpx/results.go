// SPDX-License-Identifier: GPL-2.0-or-later

package mpx

import "github.com/javantanna/mpx/pkg/payload"

// Overall is the verifier's classification of a file.
type Overall string

// Verifier classifications. Every branch is deterministic except
// OverallError, the sole catch-all for unexpected decode failures.
const (
	OverallVerified Overall = "verified"
	OverallTampered Overall = "tampered"
	OverallPartial  Overall = "partial"
	OverallInvalid  Overall = "invalid"
	OverallError    Overall = "error"
)

// Layer presence states.
const (
	LayerPresent = "present"
	LayerAbsent  = "absent"
	LayerUnknown = "unknown"
)

// EncodeResult encode statistics.
type EncodeResult struct {
	InputFile           string  `json:"input_file"`
	OutputFile          string  `json:"output_file"`
	InputSizeMB         float64 `json:"input_size_mb"`
	OutputSizeMB        float64 `json:"output_size_mb"`
	SizeIncreasePercent float64 `json:"size_increase_percent"`
	EncodingTimeSeconds float64 `json:"encoding_time_seconds"`
	StorageLayer        string  `json:"storage_layer"`
	FeaturesExtracted   int     `json:"features_extracted"`
	OriginalHash        string  `json:"original_hash"`
	MemoryUsedPercent   float64 `json:"memory_used_percent"`
}

// DecodeResult the unified view of both layers.
type DecodeResult struct {
	File          string           `json:"file"`
	FileInfo      payload.Document `json:"file_info"`
	CovertPresent bool             `json:"covert_present"`
	Covert        payload.Document `json:"covert_metadata,omitempty"`
	AutoFeatures  payload.Document `json:"auto_features,omitempty"`
	UserMetadata  payload.Document `json:"user_metadata,omitempty"`
}

// VerifyResult per-layer presence, the cross-checksum outcome and one
// overall classification.
type VerifyResult struct {
	File           string  `json:"file"`
	Timestamp      string  `json:"timestamp"`
	CovertLayer    string  `json:"covert_layer"`
	ContainerLayer string  `json:"container_layer"`
	ChecksumMatch  bool    `json:"checksum_match"`
	Overall        Overall `json:"overall"`
	Error          string  `json:"error,omitempty"`
}
