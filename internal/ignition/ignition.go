// Package ignition implements the Ignition Key: an Authority Key wrapped
// behind a passphrase so that possession of the passphrase alone recovers
// the wrapped key. Only Skull, Ignition, and Distro tiers may be wrapped.
package ignition

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/alexedwards/argon2id"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
	"gopkg.in/yaml.v3"

	"github.com/oodx/padlock/internal/authority"
	"github.com/oodx/padlock/internal/keymaterial"
	"github.com/oodx/padlock/internal/perr"
)

// MinPassphraseLength is the floor enforced on an ignition-wrapping
// passphrase, stricter than the Validator's general 8-character policy
// since an ignition passphrase alone recovers an authority key.
const MinPassphraseLength = 12

// Cost pins the Argon2id work factors a wrap's KDFHash is derived under.
// Salt length and key length stay fixed at argon2id's own defaults; only the
// cost knobs an operator might raise on more capable hardware are exposed.
type Cost struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
}

// DefaultCost matches argon2id.DefaultParams, used whenever a caller has no
// configured cost of its own.
var DefaultCost = Cost{
	MemoryKiB:   argon2id.DefaultParams.Memory,
	Iterations:  argon2id.DefaultParams.Iterations,
	Parallelism: argon2id.DefaultParams.Parallelism,
}

func (c Cost) params() *argon2id.Params {
	return &argon2id.Params{
		Memory:      c.MemoryKiB,
		Iterations:  c.Iterations,
		Parallelism: c.Parallelism,
		SaltLength:  argon2id.DefaultParams.SaltLength,
		KeyLength:   argon2id.DefaultParams.KeyLength,
	}
}

// aadDomain separates the wrap AEAD's additional data from any other use of
// chacha20poly1305 elsewhere in padlock.
const aadDomain = "padlock-ignition-wrap-v1"

// IgnitionKey is the at-rest record: everything needed to attempt an open,
// and nothing that leaks the wrapped key without the passphrase.
type IgnitionKey struct {
	OuterFingerprint keymaterial.Fingerprint
	WrappedType      authority.KeyType
	Description      string
	KDFHash          string // argon2id PHC-encoded hash; carries salt and params
	Nonce            []byte
	Ciphertext       []byte
}

// payload is the plaintext sealed inside Ciphertext: enough of the wrapped
// Key to reconstruct it exactly on a successful open.
type payload struct {
	Public      []byte                   `yaml:"public"`
	Private     []byte                   `yaml:"private"`
	Format      keymaterial.Format       `yaml:"format"`
	Type        authority.KeyType        `yaml:"type"`
	Path        string                   `yaml:"path,omitempty"`
	CreatedAt   time.Time                `yaml:"created_at"`
	Creator     string                   `yaml:"creator,omitempty"`
	Purpose     string                   `yaml:"purpose,omitempty"`
	ExpiresAt   *time.Time               `yaml:"expires_at,omitempty"`
	ParentFP    *keymaterial.Fingerprint `yaml:"parent_fingerprint,omitempty"`
}

// Create wraps key behind passphrase. key.Type must be Wrappable. cost sets
// the Argon2id work factors the wrap's KDFHash records; pass DefaultCost
// absent a configured override.
func Create(passphrase string, key authority.Key, description string, cost Cost) (IgnitionKey, error) {
	if !key.Type.Wrappable() {
		return IgnitionKey{}, &perr.InvalidOperation{
			Operation: "ignition.create",
			Reason:    fmt.Sprintf("%s keys cannot be wrapped in an ignition key", key.Type),
		}
	}
	if len(passphrase) < MinPassphraseLength {
		return IgnitionKey{}, &perr.SecurityViolation{Rule: "passphrase.length"}
	}

	hash, err := argon2id.CreateHash(passphrase, cost.params())
	if err != nil {
		return IgnitionKey{}, &perr.InternalError{Detail: fmt.Sprintf("derive wrap key: %v", err)}
	}
	_, _, wrapKey, err := argon2id.DecodeHash(hash)
	if err != nil {
		return IgnitionKey{}, &perr.InternalError{Detail: fmt.Sprintf("decode wrap key: %v", err)}
	}

	ik := IgnitionKey{
		OuterFingerprint: key.Fingerprint(),
		WrappedType:      key.Type,
		Description:      description,
		KDFHash:          hash,
	}

	p := payload{
		Public:    key.Material.Public,
		Private:   key.Material.Private,
		Format:    key.Material.Format,
		Type:      key.Type,
		Path:      key.Path,
		CreatedAt: key.Metadata.CreatedAt,
		Creator:   key.Metadata.Creator,
		Purpose:   key.Metadata.Purpose,
		ExpiresAt: key.Metadata.ExpiresAt,
		ParentFP:  key.ParentFingerprint,
	}
	plain, err := yaml.Marshal(p)
	if err != nil {
		return IgnitionKey{}, &perr.InternalError{Detail: fmt.Sprintf("marshal wrapped payload: %v", err)}
	}

	aead, err := chacha20poly1305.New(wrapKey)
	if err != nil {
		return IgnitionKey{}, &perr.InternalError{Detail: fmt.Sprintf("build wrap cipher: %v", err)}
	}
	nonce := make([]byte, chacha20poly1305.NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return IgnitionKey{}, &perr.InternalError{Detail: fmt.Sprintf("draw wrap nonce: %v", err)}
	}
	ik.Nonce = nonce
	ik.Ciphertext = aead.Seal(nil, nonce, plain, ik.aad())

	return ik, nil
}

// Open recovers the wrapped Key given the correct passphrase. An
// authentication failure and a failure caused by the record's declared type
// no longer matching what was sealed both return the identical
// perr.AuthenticationFailed value, along the same code path, so no oracle
// distinguishes "wrong passphrase" from "tampered record".
func Open(ik IgnitionKey, passphrase string) (authority.Key, error) {
	params, salt, _, err := argon2id.DecodeHash(ik.KDFHash)
	if err != nil {
		return authority.Key{}, &perr.AuthenticationFailed{}
	}
	wrapKey := argon2.IDKey([]byte(passphrase), salt, params.Iterations, params.Memory, params.Parallelism, params.KeyLength)

	aead, err := chacha20poly1305.New(wrapKey)
	if err != nil {
		return authority.Key{}, &perr.AuthenticationFailed{}
	}
	plain, err := aead.Open(nil, ik.Nonce, ik.Ciphertext, ik.aad())
	if err != nil {
		return authority.Key{}, &perr.AuthenticationFailed{}
	}

	var p payload
	if err := yaml.Unmarshal(plain, &p); err != nil {
		return authority.Key{}, &perr.AuthenticationFailed{}
	}

	key := authority.Key{
		Material: keymaterial.Material{
			Public:  p.Public,
			Private: p.Private,
			Format:  p.Format,
		},
		Type: p.Type,
		Path: p.Path,
		Metadata: authority.Metadata{
			CreatedAt: p.CreatedAt,
			Creator:   p.Creator,
			Purpose:   p.Purpose,
			ExpiresAt: p.ExpiresAt,
		},
		ParentFingerprint: p.ParentFP,
	}
	if key.Fingerprint() != ik.OuterFingerprint || key.Type != ik.WrappedType {
		return authority.Key{}, &perr.AuthenticationFailed{}
	}
	return key, nil
}

// aad binds the ignition record's public metadata into the AEAD so any
// tamper to OuterFingerprint, WrappedType, or Description invalidates the
// seal the same way a wrong passphrase does.
func (ik IgnitionKey) aad() []byte {
	return []byte(aadDomain + "|" + ik.OuterFingerprint.String() + "|" + ik.WrappedType.String() + "|" + ik.Description)
}
