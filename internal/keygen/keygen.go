// Package keygen implements the Key Generator: the only place in padlock
// that draws fresh authority-key material, mints its self- or parent-signed
// proof, and hands back a chain-ready Key.
package keygen

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/oodx/padlock/internal/authority"
	"github.com/oodx/padlock/internal/identity"
	"github.com/oodx/padlock/internal/keymaterial"
	"github.com/oodx/padlock/internal/perr"
	"github.com/oodx/padlock/internal/proof"
)

// domainSeparator mixes into the material-synthesis hash so padlock's raw
// key bytes are never confusable with entropy drawn for any other purpose.
const domainSeparator = "padlock-authority-key-material-v1"

// RandSource is the one capability the generator needs from a random
// source: fill a buffer. It is an interface of one method, not an
// inheritance hierarchy, so unit tests can substitute a deterministic
// source without touching the package-global crypto/rand.Reader.
type RandSource interface {
	Read(p []byte) (n int, err error)
}

// AuditSink receives a line-oriented audit record. Matches the line format
// `<timestamp> <level> <subsystem> <message>` every padlock component logs
// through; the generator never logs key material.
type AuditSink interface {
	Record(level, subsystem, message string)
}

// noopSink discards records; used when a Generator is built without one.
type noopSink struct{}

func (noopSink) Record(string, string, string) {}

// Params describes the key a caller wants minted.
type Params struct {
	Type      authority.KeyType
	KeyLength int
	Creator   string
	Purpose   string
	ExpiresAt *time.Time // overrides the tier default when non-nil
}

// Generator draws key material and mints authority keys and their proofs.
// It holds a dedicated RandSource rather than reading from a shared global,
// per design note, so tests can seed it deterministically.
type Generator struct {
	Rand  RandSource
	Audit AuditSink
	Now   func() time.Time
	eng   proof.Engine
}

// New builds a Generator backed by crypto/rand.Reader and time.Now. Callers
// needing deterministic output for tests should set Rand and Now directly.
func New() *Generator {
	return &Generator{Rand: rand.Reader, Audit: noopSink{}, Now: time.Now}
}

func (g *Generator) rand() RandSource {
	if g.Rand != nil {
		return g.Rand
	}
	return rand.Reader
}

func (g *Generator) audit() AuditSink {
	if g.Audit != nil {
		return g.Audit
	}
	return noopSink{}
}

func (g *Generator) now() time.Time {
	if g.Now != nil {
		return g.Now()
	}
	return time.Now()
}

// Generate runs the full seven-step generation protocol. parent is nil only
// for a Skull key; every other tier requires one.
func (g *Generator) Generate(parent *authority.Key, params Params) (authority.Key, authority.Proof, error) {
	// 1. Hierarchy check.
	if parent == nil {
		if params.Type != authority.Skull {
			return authority.Key{}, authority.Proof{}, &perr.InvalidOperation{
				Operation: "generate",
				Reason:    "only a skull key may be generated without a parent",
			}
		}
	} else {
		if !parent.Type.CanDelegateTo(params.Type) {
			return authority.Key{}, authority.Proof{}, &perr.InvalidOperation{
				Operation: "generate",
				Reason:    fmt.Sprintf("%s cannot delegate to %s", parent.Type, params.Type),
			}
		}
	}

	// 2. Length check — before any randomness is drawn.
	if floor := params.Type.LengthFloor(); params.KeyLength < floor {
		return authority.Key{}, authority.Proof{}, &perr.InvalidOperation{
			Operation: "generate",
			Reason:    fmt.Sprintf("key_length %d is below the %s floor of %d", params.KeyLength, params.Type, floor),
		}
	}

	// 3. Material synthesis.
	raw := make([]byte, params.KeyLength)
	if _, err := g.rand().Read(raw); err != nil {
		return authority.Key{}, authority.Proof{}, &perr.InternalError{Detail: fmt.Sprintf("draw key material: %v", err)}
	}
	mixEntropy(raw, g.now())

	pub, _, err := proof.DeriveSigningKey(raw)
	if err != nil {
		return authority.Key{}, authority.Proof{}, &perr.InternalError{Detail: fmt.Sprintf("derive signing key: %v", err)}
	}

	// 4. Assembly.
	creator := params.Creator
	if creator == "" {
		creator = identity.CurrentOperator()
	}
	key := authority.Key{
		Material: keymaterial.Material{
			Public:  []byte(pub),
			Private: raw,
			Format:  keymaterial.FormatEd25519,
		},
		Type: params.Type,
		Metadata: authority.Metadata{
			CreatedAt: g.now(),
			Creator:   creator,
			Purpose:   params.Purpose,
		},
	}
	if params.ExpiresAt != nil {
		key.Metadata.ExpiresAt = params.ExpiresAt
	} else if days, ok := params.Type.DefaultExpiration(); ok {
		t := g.now().AddDate(0, 0, days)
		key.Metadata.ExpiresAt = &t
	}

	var proofParent authority.Key
	if parent == nil {
		proofParent = key
	} else {
		proofParent = *parent
		parentFP := parent.Fingerprint()
		key.ParentFingerprint = &parentFP
	}

	// 5. Proof minting.
	p, err := g.eng.Generate(proofParent, key, g.now())
	if err != nil {
		return authority.Key{}, authority.Proof{}, &perr.InternalError{Detail: fmt.Sprintf("mint proof: %v", err)}
	}

	// 6. Post-validation, defence in depth.
	if key.IsWeak() {
		return authority.Key{}, authority.Proof{}, &perr.InternalError{Detail: "generated key material failed the weak-key check"}
	}
	if !g.eng.Verify(proofParent, key, p) {
		return authority.Key{}, authority.Proof{}, &perr.InternalError{Detail: "freshly minted proof failed verification"}
	}

	// 7. Audit.
	g.audit().Record("INFO", "keygen", fmt.Sprintf("generated %s key fingerprint=%s purpose=%q", key.Type, key.Fingerprint(), key.Metadata.Purpose))

	return key, p, nil
}

// mixEntropy XOR-extends SHA-256(raw || nanosecond timestamp || domain
// separator) over buf in place, folding timestamp- and context-derived bits
// into the CSPRNG draw.
func mixEntropy(buf []byte, at time.Time) {
	var tsBytes [8]byte
	binary.BigEndian.PutUint64(tsBytes[:], uint64(at.UnixNano()))

	seed := make([]byte, 0, len(buf)+len(tsBytes)+len(domainSeparator))
	seed = append(seed, buf...)
	seed = append(seed, tsBytes[:]...)
	seed = append(seed, []byte(domainSeparator)...)

	digest := sha256.Sum256(seed)
	for i := range buf {
		buf[i] ^= digest[i%len(digest)]
	}
}
