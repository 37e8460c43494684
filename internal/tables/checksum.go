package tables

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
)

const checksumPrefix = "sha256:"

// ComputeChecksum computes a SHA256 checksum for the given data.
func ComputeChecksum(data []byte) string {
	hash := sha256.Sum256(data)
	return checksumPrefix + hex.EncodeToString(hash[:])
}

// ReaderChecksum hashes everything read from r.
func ReaderChecksum(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("hash stream: %w", err)
	}
	return checksumPrefix + hex.EncodeToString(h.Sum(nil)), nil
}

// VerifyChecksum verifies that data matches the expected checksum. A bare
// hex digest without the algorithm prefix is accepted.
func VerifyChecksum(data []byte, expected string) bool {
	if !strings.HasPrefix(expected, checksumPrefix) {
		expected = checksumPrefix + expected
	}
	return ComputeChecksum(data) == expected
}
