// Package authority implements the X→M→R→I→D key-delegation hierarchy: typed
// keys, the chain that owns them by fingerprint, and the delegation rules
// that decide who may mint whom.
package authority

import "fmt"

// KeyType is a closed enumeration with a strict total order for delegation:
// Skull > Master > Repo > Ignition > Distro.
type KeyType int

const (
	Skull KeyType = iota
	Master
	Repo
	Ignition
	Distro
)

func (t KeyType) String() string {
	switch t {
	case Skull:
		return "skull"
	case Master:
		return "master"
	case Repo:
		return "repo"
	case Ignition:
		return "ignition"
	case Distro:
		return "distro"
	default:
		return fmt.Sprintf("unknown(%d)", int(t))
	}
}

// Valid reports whether t is one of the five defined tiers.
func (t KeyType) Valid() bool {
	return t >= Skull && t <= Distro
}

// CanDelegateTo reports whether a key of type t may delegate to a key of
// type u. A type may delegate to any strictly lower type in the order;
// Distro is terminal-bottom and can never delegate further.
func (t KeyType) CanDelegateTo(u KeyType) bool {
	return t < u
}

// LengthFloor returns the minimum material length, in bytes, enforced for
// keys of this tier.
func (t KeyType) LengthFloor() int {
	switch t {
	case Skull:
		return 64
	case Master:
		return 32
	case Repo:
		return 24
	case Ignition:
		return 32
	case Distro:
		return 16
	default:
		return 0
	}
}

// DefaultExpiration returns the default validity window for a freshly
// generated key of this tier, or 0 for tiers with no default (Skull, and
// Ignition/Distro which require the caller to supply one).
func (t KeyType) DefaultExpiration() (days int, hasDefault bool) {
	switch t {
	case Skull:
		return 0, false
	case Master:
		return 365, true
	case Repo:
		return 90, true
	default:
		return 0, false
	}
}

// Wrappable reports whether keys of this tier may be wrapped inside an
// Ignition Key. Only Skull, Ignition, or Distro types may be wrapped.
func (t KeyType) Wrappable() bool {
	return t == Skull || t == Ignition || t == Distro
}
