// Package keymaterial represents raw authority-key bytes, their stable
// fingerprints, and the per-tier length floors the rest of padlock enforces.
package keymaterial

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

// Format tags a key's material with the scheme it was generated under.
type Format string

const (
	FormatEd25519 Format = "Ed25519"
	FormatRaw     Format = "Raw"
)

// Material is an opaque key: a public component that is always present and an
// optional private component. It never implies anything about the key's
// position in the authority hierarchy — that is Key's job.
type Material struct {
	Public  []byte
	Private []byte // optional; absent for recipient-only material
	Format  Format
}

// Fingerprint is the stable 32-byte SHA-256 digest of a Material's public
// component. Equality on Fingerprint implies identity everywhere in padlock.
type Fingerprint [32]byte

// Fingerprint hashes the public component into a stable digest. Two Materials
// with byte-identical public components always produce the same Fingerprint.
func (m Material) Fingerprint() Fingerprint {
	return sha256.Sum256(m.Public)
}

// String renders the fingerprint as lowercase hex, the only form padlock
// surfaces to logs or CLI output.
func (f Fingerprint) String() string {
	return hex.EncodeToString(f[:])
}

// ParseFingerprint decodes a lowercase-hex fingerprint string.
func ParseFingerprint(s string) (Fingerprint, error) {
	var fp Fingerprint
	b, err := hex.DecodeString(s)
	if err != nil {
		return fp, fmt.Errorf("keymaterial: invalid fingerprint %q: %w", s, err)
	}
	if len(b) != len(fp) {
		return fp, fmt.Errorf("keymaterial: fingerprint %q has %d bytes, want %d", s, len(b), len(fp))
	}
	copy(fp[:], b)
	return fp, nil
}

// Equal reports whether two fingerprints refer to the same key, in constant
// time — fingerprints are not secret, but this keeps the comparison uniform
// with the rest of the package.
func (f Fingerprint) Equal(other Fingerprint) bool {
	return subtle.ConstantTimeCompare(f[:], other[:]) == 1
}

// IsWeak reports whether material fails the "all-zero or below floor" defence
// the generator and chain both check before trusting a key.
//
// The floor applies to the raw entropy the generator drew, which for
// asymmetric formats (Ed25519) is carried in Private — a derived public key
// is a fixed 32 bytes at every tier and is not itself what the floor
// constrains. Material loaded back from a public-only store (no Private)
// falls back to checking Public, since that is all such a Material has.
func (m Material) IsWeak(floor int) bool {
	raw := m.Private
	if len(raw) == 0 {
		raw = m.Public
	}
	if len(raw) < floor {
		return true
	}
	return allZero(raw)
}

func allZero(b []byte) bool {
	if len(b) == 0 {
		return true
	}
	var acc byte
	for _, v := range b {
		acc |= v
	}
	return acc == 0
}
