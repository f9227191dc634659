package serialization

import (
	"crypto/sha256"
	"encoding/hex"
)

// ComputeChecksum computes the SHA-256 checksum of the data section.
func ComputeChecksum(data []byte) [32]byte {
	return sha256.Sum256(data)
}

// ValidateChecksum compares the computed checksum against the stored one.
// Returns ErrChecksumMismatch if they don't match.
func ValidateChecksum(computed, stored [32]byte) error {
	if computed != stored {
		return ErrChecksumMismatch
	}
	return nil
}

// FormatChecksum renders a checksum as lowercase hex, as printed by inspect tools.
func FormatChecksum(sum [32]byte) string {
	return hex.EncodeToString(sum[:])
}
