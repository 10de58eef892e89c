// SPDX-License-Identifier: GPL-2.0-or-later

package mpx

import (
	"context"
	"time"

	"github.com/javantanna/mpx/pkg/payload"
	"github.com/javantanna/mpx/pkg/video"
)

// Document keys, fixed by the persisted format.
const (
	keyVersion        = "mpx_version"
	keyCreated        = "created"
	keyTimestamp      = "timestamp"
	keyOriginalHash   = "original_hash"
	keyVideoInfo      = "video_info"
	keyNotes          = "notes"
	keyLayers         = "layers"
	keyChecksum       = "checksum"
	keyPublicChecksum = "public_checksum"
	keyPayloadType    = "payload_type"
	keyAutoFeatures   = "auto_features"
	keyUserMetadata   = "user_metadata"
	keyAIMetadata     = "ai_metadata"
)

// FeatureSource supplies auto-extracted features for a video. Heavy signal
// analysis lives outside the pipeline.
type FeatureSource interface {
	Extract(ctx context.Context, path string) (payload.Document, error)
}

// newPublicDocument builds the container-layer document: technical info
// only, visible to anyone.
func newPublicDocument(config Config, created time.Time, originalHash string, info *video.Info) payload.Document {
	return payload.Document{
		keyVersion:      config.Version,
		keyCreated:      created.UTC().Format(time.RFC3339),
		keyOriginalHash: originalHash,
		keyVideoInfo: map[string]interface{}{
			"width":       info.Width,
			"height":      info.Height,
			"fps":         info.FPS,
			"frame_count": info.FrameCount,
			"duration":    info.Duration,
			"codec":       info.Codec,
			"has_audio":   info.HasAudio,
		},
		keyNotes: "AI metadata stored in covert layer",
		keyLayers: map[string]interface{}{
			"container": map[string]interface{}{
				"location":    "format.tags." + config.ContainerTag,
				"compression": "zlib+base64",
			},
		},
	}
}

// newCovertDocument builds the covert-layer document. publicChecksum is the
// hash of the public document's canonical form before the covert descriptor
// was added, linking the two layers.
func newCovertDocument(config Config, created time.Time, publicChecksum string,
	features, userMetadata payload.Document,
) payload.Document {
	if features == nil {
		features = payload.Document{}
	}
	if userMetadata == nil {
		userMetadata = payload.Document{}
	}
	return payload.Document{
		keyVersion:        config.Version,
		keyTimestamp:      created.UTC().Format(time.RFC3339),
		keyPayloadType:    "ai_training_data",
		keyPublicChecksum: publicChecksum,
		keyAutoFeatures:   features,
		keyUserMetadata:   userMetadata,
	}
}

// addCovertDescriptor records the covert layer in the public document.
// Added after the public checksum is taken, stripCovertDescriptor is its
// inverse.
func addCovertDescriptor(public payload.Document, covertChecksum string) {
	layers := public[keyLayers].(map[string]interface{})
	layers["covert"] = map[string]interface{}{
		"spread":   "consecutive",
		keyChecksum: covertChecksum,
	}
}

// stripCovertDescriptor returns a shallow copy of the public document with
// the covert-layer descriptor removed, restoring the exact form the public
// checksum was taken over.
func stripCovertDescriptor(public payload.Document) payload.Document {
	stripped := payload.Document{}
	for k, v := range public {
		stripped[k] = v
	}

	layers, ok := stripped[keyLayers].(map[string]interface{})
	if !ok {
		return stripped
	}
	strippedLayers := map[string]interface{}{}
	for k, v := range layers {
		if k == "covert" {
			continue
		}
		strippedLayers[k] = v
	}
	stripped[keyLayers] = strippedLayers
	return stripped
}
