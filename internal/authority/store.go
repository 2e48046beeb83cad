package authority

import (
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/google/renameio/v2"
	"gopkg.in/yaml.v3"

	"github.com/oodx/padlock/internal/keymaterial"
)

// record is the on-disk form of a single chain member. It never persists
// private material — a chain store is a public record of who delegates to
// whom, not a key vault.
type record struct {
	Fingerprint string    `yaml:"fingerprint"`
	Public      string    `yaml:"public_hex"`
	Format      string    `yaml:"format"`
	Type        string    `yaml:"type"`
	Parent      string    `yaml:"parent,omitempty"`
	Creator     string    `yaml:"creator,omitempty"`
	Purpose     string    `yaml:"purpose,omitempty"`
	CreatedAt   time.Time `yaml:"created_at"`
	ExpiresAt   *time.Time `yaml:"expires_at,omitempty"`

	ProofParent string    `yaml:"proof_parent"`
	ProofChild  string    `yaml:"proof_child"`
	ProofIssued time.Time `yaml:"proof_issued"`
	ProofSig    string    `yaml:"proof_signature_hex"`
}

// storeFile is the root document written to a chain-store path.
type storeFile struct {
	Records []record `yaml:"chain"`
}

func typeFromString(s string) (KeyType, error) {
	for t := Skull; t <= Distro; t++ {
		if t.String() == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("authority: unknown key type %q", s)
}

// SavePublic writes the public-facing view of the chain — fingerprints,
// types, parent links, metadata, and proofs, but never private material —
// atomically to path, mirroring the teacher's lockfile write pattern
// (temp file + same-filesystem rename) via renameio.
func SavePublic(c *Chain, path string) error {
	var sf storeFile
	for _, fp := range c.Fingerprints() {
		key, _ := c.Lookup(fp)
		proof, _ := c.Proof(fp)

		r := record{
			Fingerprint: fp.String(),
			Public:      fmt.Sprintf("%x", key.Material.Public),
			Format:      string(key.Material.Format),
			Type:        key.Type.String(),
			Creator:     key.Metadata.Creator,
			Purpose:     key.Metadata.Purpose,
			CreatedAt:   key.Metadata.CreatedAt,
			ExpiresAt:   key.Metadata.ExpiresAt,
			ProofParent: proof.ParentFingerprint.String(),
			ProofChild:  proof.ChildFingerprint.String(),
			ProofIssued: proof.IssuedAt,
			ProofSig:    fmt.Sprintf("%x", proof.Signature),
		}
		if key.ParentFingerprint != nil {
			r.Parent = key.ParentFingerprint.String()
		}
		sf.Records = append(sf.Records, r)
	}

	data, err := yaml.Marshal(sf)
	if err != nil {
		return fmt.Errorf("authority: marshal chain store: %w", err)
	}
	if err := renameio.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("authority: write chain store %s: %w", path, err)
	}
	return nil
}

// LoadPublic reads a chain-store file written by SavePublic, reconstructing
// keys (public component only — Material.Private is always nil) and proofs,
// and replaying them through Install so every chain invariant is re-checked
// on load.
func LoadPublic(path string, v Verifier) (*Chain, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("authority: read chain store %s: %w", path, err)
	}

	var sf storeFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("authority: parse chain store %s: %w", path, err)
	}

	// Records may be stored in delegation order already (Skull first), but we
	// don't assume it: retry until a full pass installs nothing new.
	chain := New()
	pending := sf.Records
	for len(pending) > 0 {
		var next []record
		progressed := false
		for _, r := range pending {
			key, proof, err := r.toKeyAndProof()
			if err != nil {
				return nil, err
			}
			if err := chain.Install(key, proof, v); err != nil {
				next = append(next, r)
				continue
			}
			progressed = true
		}
		if !progressed {
			return nil, fmt.Errorf("authority: chain store %s has unresolvable or cyclic records", path)
		}
		pending = next
	}

	return chain, nil
}

func (r record) toKeyAndProof() (Key, Proof, error) {
	var key Key
	var proof Proof

	fp, err := keymaterial.ParseFingerprint(r.Fingerprint)
	if err != nil {
		return key, proof, err
	}
	pub, err := hexDecode(r.Public)
	if err != nil {
		return key, proof, fmt.Errorf("authority: record %s: %w", r.Fingerprint, err)
	}
	typ, err := typeFromString(r.Type)
	if err != nil {
		return key, proof, err
	}

	key = Key{
		Material: keymaterial.Material{Public: pub, Format: keymaterial.Format(r.Format)},
		Type:     typ,
		Metadata: Metadata{
			CreatedAt: r.CreatedAt,
			Creator:   r.Creator,
			Purpose:   r.Purpose,
			ExpiresAt: r.ExpiresAt,
		},
	}
	if key.Fingerprint() != fp {
		return key, proof, fmt.Errorf("authority: record %s: public component does not hash to its own fingerprint", r.Fingerprint)
	}
	if r.Parent != "" {
		parentFP, err := keymaterial.ParseFingerprint(r.Parent)
		if err != nil {
			return key, proof, err
		}
		key.ParentFingerprint = &parentFP
	}

	proofParent, err := keymaterial.ParseFingerprint(r.ProofParent)
	if err != nil {
		return key, proof, err
	}
	proofChild, err := keymaterial.ParseFingerprint(r.ProofChild)
	if err != nil {
		return key, proof, err
	}
	sig, err := hexDecode(r.ProofSig)
	if err != nil {
		return key, proof, err
	}
	proof = Proof{
		ParentFingerprint: proofParent,
		ChildFingerprint:  proofChild,
		IssuedAt:          r.ProofIssued,
		Signature:         sig,
	}

	return key, proof, nil
}

func hexDecode(s string) ([]byte, error) {
	if s == "" {
		return []byte{}, nil
	}
	return hex.DecodeString(s)
}
