// Package integrity derives tamper-evident fingerprints from key material.
package integrity

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/talhajamadar1013-star/Qmail/pkg/keyerrors"
)

// Fingerprint returns the lowercase hex SHA-256 digest of the raw key bytes.
// Every copy of a key shares the same fingerprint, so peers can compare
// digests out of band without revealing the pad itself.
func Fingerprint(key []byte) (string, error) {
	if len(key) == 0 {
		return "", keyerrors.New(keyerrors.KindInvalidArgument, "key material is empty")
	}

	sum := sha256.Sum256(key)
	return hex.EncodeToString(sum[:]), nil
}
