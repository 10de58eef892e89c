// SPDX-License-Identifier: GPL-2.0-or-later

// Package payload converts metadata documents to and from the persisted
// blob form: canonical JSON, deflated and base64-encoded.
package payload

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"

	"github.com/javantanna/mpx/pkg/mpxerr"
	"github.com/klauspost/compress/zlib"
)

// Document is a string-keyed JSON-compatible mapping.
type Document map[string]interface{}

// Canonical returns the canonical serialization of doc: stable key order
// and compact separators. Both layer checksums are taken over this form.
func Canonical(doc Document) ([]byte, error) {
	// encoding/json writes map keys in sorted order with no
	// insignificant whitespace.
	return json.Marshal(doc)
}

// Compress converts doc into the persisted blob:
// canonical JSON -> zlib at the given level -> base64.
func Compress(doc Document, level int) ([]byte, error) {
	raw, err := Canonical(doc)
	if err != nil {
		return nil, mpxerr.Wrap(mpxerr.KindEncoding, err, "marshal document")
	}

	buf := &bytes.Buffer{}
	zw, err := zlib.NewWriterLevel(buf, level)
	if err != nil {
		return nil, mpxerr.Wrap(mpxerr.KindEncoding, err, "compression level %v", level)
	}
	if _, err := zw.Write(raw); err != nil {
		return nil, mpxerr.Wrap(mpxerr.KindEncoding, err, "deflate document")
	}
	if err := zw.Close(); err != nil {
		return nil, mpxerr.Wrap(mpxerr.KindEncoding, err, "deflate document")
	}

	blob := make([]byte, base64.StdEncoding.EncodedLen(buf.Len()))
	base64.StdEncoding.Encode(blob, buf.Bytes())
	return blob, nil
}

// Decompress inverts Compress. Malformed base64, corrupt deflate and
// invalid JSON all report as decoding errors so a damaged covert channel
// reads as absent or corrupt instead of crashing the pipeline.
func Decompress(blob []byte) (Document, error) {
	compressed, err := base64.StdEncoding.DecodeString(string(blob))
	if err != nil {
		return nil, mpxerr.Wrap(mpxerr.KindDecoding, err, "base64 decode blob")
	}

	zr, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, mpxerr.Wrap(mpxerr.KindDecoding, err, "inflate blob")
	}
	defer zr.Close()

	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, mpxerr.Wrap(mpxerr.KindDecoding, err, "inflate blob")
	}

	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, mpxerr.Wrap(mpxerr.KindDecoding, err, "unmarshal document")
	}
	return doc, nil
}
