// Package proof implements the Authority Proof Engine: minting and verifying
// the Ed25519 signatures that bind a child key's fingerprint to the parent
// that authorised it.
package proof

import (
	"crypto/ed25519"
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/oodx/padlock/internal/authority"
)

// seedLabel domain-separates the Ed25519 seed derivation from every other
// use of a key's raw material (file encryption, fingerprinting).
const seedLabel = "padlock-authority-proof-signing-seed-v1"

// DeriveSigningKey turns the raw entropy drawn by the Key Generator into a
// deterministic Ed25519 keypair. Tiers draw different amounts of raw entropy
// (the length-floor requirement), but every tier's signing key is a fixed
// 32/64-byte Ed25519 pair derived the same way, so Verify never needs to know
// which tier minted a key.
func DeriveSigningKey(raw []byte) (pub ed25519.PublicKey, priv ed25519.PrivateKey, err error) {
	if len(raw) == 0 {
		return nil, nil, fmt.Errorf("proof: cannot derive a signing key from empty material")
	}
	h := sha256.Sum256(append([]byte(seedLabel), raw...))
	priv = ed25519.NewKeyFromSeed(h[:])
	return priv.Public().(ed25519.PublicKey), priv, nil
}

// Engine mints and verifies authority proofs. It holds no state; it exists
// as a type so call sites read like the rest of padlock's components
// (Engine{}.Generate(...)) and so a future signing backend can be swapped in
// behind the same two methods.
type Engine struct{}

// Generate signs the canonical (parent_fp || child_fp || issue_timestamp)
// bytes with a signing key derived from the parent's raw private material.
// For a Skull, parent and child are the same key (self-proof).
func (Engine) Generate(parent, child authority.Key, at time.Time) (authority.Proof, error) {
	if len(parent.Material.Private) == 0 {
		return authority.Proof{}, fmt.Errorf("proof: parent %s has no private material to sign with", parent.Fingerprint())
	}
	_, priv, err := DeriveSigningKey(parent.Material.Private)
	if err != nil {
		return authority.Proof{}, err
	}

	p := authority.Proof{
		ParentFingerprint: parent.Fingerprint(),
		ChildFingerprint:  child.Fingerprint(),
		IssuedAt:          at,
	}
	p.Signature = ed25519.Sign(priv, p.CanonicalBytes())
	return p, nil
}

// Verify recomputes the canonical bytes from (parent, child, proof.IssuedAt)
// and checks the signature against the parent's public material. A mismatch
// between the proof's recorded fingerprints and the supplied keys is also a
// rejection, independent of the signature check.
func (Engine) Verify(parent, child authority.Key, p authority.Proof) bool {
	if !p.ParentFingerprint.Equal(parent.Fingerprint()) {
		return false
	}
	if !p.ChildFingerprint.Equal(child.Fingerprint()) {
		return false
	}
	if len(parent.Material.Public) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(parent.Material.Public), p.CanonicalBytes(), p.Signature)
}

var _ authority.Verifier = Engine{}
