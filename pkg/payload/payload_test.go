// SPDX-License-Identifier: GPL-2.0-or-later

package payload

import (
	"testing"

	"github.com/javantanna/mpx/pkg/mpxerr"
	"github.com/stretchr/testify/require"
)

func TestCanonical(t *testing.T) {
	doc := Document{
		"zeta":  1,
		"alpha": map[string]interface{}{"b": 2, "a": 1},
	}
	raw, err := Canonical(doc)
	require.NoError(t, err)
	require.Equal(t, `{"alpha":{"a":1,"b":2},"zeta":1}`, string(raw))
}

func TestCompressRoundtrip(t *testing.T) {
	doc := Document{
		"version": "1.0.0",
		"nested": map[string]interface{}{
			"list":    []interface{}{1.5, "two", false},
			"unicode": "世界 🎥",
		},
		"float": 0.25,
	}

	blob, err := Compress(doc, 6)
	require.NoError(t, err)

	// The blob must be ASCII-safe base64 text.
	for _, c := range blob {
		require.Less(t, c, byte(128))
	}

	actual, err := Decompress(blob)
	require.NoError(t, err)

	// Compare through the canonical form, json decoding widens numbers.
	expected, err := Canonical(doc)
	require.NoError(t, err)
	actualRaw, err := Canonical(actual)
	require.NoError(t, err)
	require.Equal(t, string(expected), string(actualRaw))
}

func TestDecompress(t *testing.T) {
	t.Run("malformedBase64", func(t *testing.T) {
		_, err := Decompress([]byte("not*base64!"))
		require.Equal(t, mpxerr.KindDecoding, mpxerr.KindOf(err))
	})
	t.Run("corruptDeflate", func(t *testing.T) {
		_, err := Decompress([]byte("aGVsbG8gd29ybGQ=")) // "hello world"
		require.Equal(t, mpxerr.KindDecoding, mpxerr.KindOf(err))
	})
	t.Run("corruptPayload", func(t *testing.T) {
		blob, err := Compress(Document{"a": 1}, 6)
		require.NoError(t, err)

		blob[len(blob)/2] ^= 0x10
		_, err = Decompress(blob)
		require.Equal(t, mpxerr.KindDecoding, mpxerr.KindOf(err))
	})
	t.Run("invalidLevel", func(t *testing.T) {
		_, err := Compress(Document{"a": 1}, 99)
		require.Equal(t, mpxerr.KindEncoding, mpxerr.KindOf(err))
	})
}
