package authority

import (
	"encoding/binary"
	"time"

	"github.com/oodx/padlock/internal/keymaterial"
)

// Proof binds a child key to the parent that authorised it: a signature over
// the canonical serialisation of (parent_fp || child_fp || issue_timestamp).
// A Skull key's self-proof (ParentFingerprint == ChildFingerprint) is the
// only permitted self-delegation.
type Proof struct {
	ParentFingerprint keymaterial.Fingerprint
	ChildFingerprint  keymaterial.Fingerprint
	IssuedAt          time.Time
	Signature         []byte
}

// CanonicalBytes returns the exact byte sequence the Proof Engine signs and
// verifies: parent fingerprint, child fingerprint, and the issue timestamp as
// Unix nanoseconds, big-endian. Any bit flip anywhere in this sequence must
// invalidate the signature.
func (p Proof) CanonicalBytes() []byte {
	buf := make([]byte, 0, len(p.ParentFingerprint)+len(p.ChildFingerprint)+8)
	buf = append(buf, p.ParentFingerprint[:]...)
	buf = append(buf, p.ChildFingerprint[:]...)
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(p.IssuedAt.UnixNano()))
	buf = append(buf, ts[:]...)
	return buf
}

// IsSelfProof reports whether this proof is a Skull's self-delegation.
func (p Proof) IsSelfProof() bool {
	return p.ParentFingerprint.Equal(p.ChildFingerprint)
}
