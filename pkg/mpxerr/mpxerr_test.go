// SPDX-License-Identifier: GPL-2.0-or-later

package mpxerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	t.Run("direct", func(t *testing.T) {
		err := Decoding("corrupt blob")
		require.Equal(t, KindDecoding, KindOf(err))
	})
	t.Run("wrapped", func(t *testing.T) {
		cause := errors.New("unexpected EOF")
		err := fmt.Errorf("read payload: %w", Wrap(KindDecoding, cause, "stream truncated"))
		require.Equal(t, KindDecoding, KindOf(err))
		require.ErrorIs(t, err, cause)
	})
	t.Run("unclassified", func(t *testing.T) {
		require.Equal(t, KindUnknown, KindOf(errors.New("plain")))
	})
}

func TestIs(t *testing.T) {
	err := fmt.Errorf("encode: %w", Encoding("capacity exceeded"))
	require.ErrorIs(t, err, &Error{Kind: KindEncoding})
	require.NotErrorIs(t, err, &Error{Kind: KindDecoding})
}

func TestKindString(t *testing.T) {
	cases := map[Kind]string{
		KindValidation: "validation",
		KindEncoding:   "encoding",
		KindDecoding:   "decoding",
		KindIntegrity:  "integrity",
		KindUnknown:    "unknown",
	}
	for kind, want := range cases {
		require.Equal(t, want, kind.String())
	}
}
