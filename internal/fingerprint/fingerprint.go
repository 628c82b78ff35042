// Package fingerprint derives stable, content-based identities for CV
// files and job URLs so dedup never depends on filenames or timestamps.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
)

// ErrSourceUnreadable wraps any failure to read fingerprint input.
var ErrSourceUnreadable = errors.New("fingerprint source unreadable")

// Fingerprint returns a 128-bit content hash as lowercase hex.
// Identical bytes always yield the identical fingerprint.
func Fingerprint(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:16])
}

// FingerprintFile fingerprints a file's content. Path and mtime play no
// part in the result.
func FingerprintFile(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrSourceUnreadable, path, err)
	}
	if len(b) == 0 {
		return "", fmt.Errorf("%w: %s: empty file", ErrSourceUnreadable, path)
	}
	return Fingerprint(b), nil
}
