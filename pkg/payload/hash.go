// SPDX-License-Identifier: GPL-2.0-or-later

package payload

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"

	"github.com/javantanna/mpx/pkg/mpxerr"
	"github.com/zeebo/blake3"
	"golang.org/x/crypto/blake2b"
)

// NewHash returns a hasher for the configured algorithm identifier.
func NewHash(algorithm string) (hash.Hash, error) {
	switch algorithm {
	case "sha256":
		return sha256.New(), nil
	case "blake2b":
		return blake2b.New256(nil)
	case "blake3":
		return blake3.New(), nil
	}
	return nil, mpxerr.Validation("unknown hash algorithm: %v", algorithm)
}

// HashFile returns the hex digest of a file, read in chunkSize pieces.
func HashFile(path string, algorithm string, chunkSize int) (string, error) {
	h, err := NewHash(algorithm)
	if err != nil {
		return "", err
	}

	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %v: %w", path, err)
	}
	defer file.Close()

	buf := make([]byte, chunkSize)
	if _, err := io.CopyBuffer(h, file, buf); err != nil {
		return "", fmt.Errorf("hash %v: %w", path, err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// HashData returns the hex digest of data.
func HashData(data []byte, algorithm string) (string, error) {
	h, err := NewHash(algorithm)
	if err != nil {
		return "", err
	}
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil)), nil
}
