package authority

import (
	"time"

	"github.com/oodx/padlock/internal/keymaterial"
)

// Metadata records the provenance and usage history of an Authority Key.
type Metadata struct {
	CreatedAt  time.Time
	Creator    string
	Purpose    string
	ExpiresAt  *time.Time
	LastUsedAt *time.Time
	UsageCount uint64
}

// Touch records a use of the key, bumping the usage counter and timestamp.
func (m *Metadata) Touch(at time.Time) {
	m.UsageCount++
	m.LastUsedAt = &at
}

// Expired reports whether the key's expiration, if any, has passed as of at.
func (m Metadata) Expired(at time.Time) bool {
	return m.ExpiresAt != nil && at.After(*m.ExpiresAt)
}

// Key is the aggregate: material, its tier, an optional on-disk path, its
// metadata, and — for every non-Skull key — the fingerprint of its parent.
//
// Invariant: if Type != Skull then ParentFingerprint must be set (checked by
// Chain.Install, not by this type itself, since a lone Key has no chain to
// validate the parent against).
type Key struct {
	Material          keymaterial.Material
	Type              KeyType
	Path              string // optional on-disk location
	Metadata          Metadata
	ParentFingerprint *keymaterial.Fingerprint
}

// Fingerprint returns the stable identity of this key.
func (k Key) Fingerprint() keymaterial.Fingerprint {
	return k.Material.Fingerprint()
}

// IsWeak reports whether the key's material fails the tier's length floor or
// is all-zero.
func (k Key) IsWeak() bool {
	return k.Material.IsWeak(k.Type.LengthFloor())
}
