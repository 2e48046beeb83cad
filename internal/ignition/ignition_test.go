package ignition

import (
	"errors"
	"testing"
	"time"

	"github.com/alexedwards/argon2id"

	"github.com/oodx/padlock/internal/authority"
	"github.com/oodx/padlock/internal/keymaterial"
	"github.com/oodx/padlock/internal/perr"
)

func sampleKey(typ authority.KeyType) authority.Key {
	return authority.Key{
		Material: keymaterial.Material{
			Public:  []byte{1, 2, 3, 4},
			Private: []byte("super-secret-raw-material-bytes"),
			Format:  keymaterial.FormatEd25519,
		},
		Type: typ,
		Metadata: authority.Metadata{
			CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			Creator:   "test-operator",
			Purpose:   "cold start",
		},
	}
}

func TestCreateRejectsUnwrappableType(t *testing.T) {
	_, err := Create("a-passphrase-long-enough", sampleKey(authority.Master), "desc", DefaultCost)
	var invalid *perr.InvalidOperation
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidOperation, got %v", err)
	}
}

func TestCreateRejectsShortPassphrase(t *testing.T) {
	_, err := Create("short", sampleKey(authority.Skull), "desc", DefaultCost)
	var violation *perr.SecurityViolation
	if !errors.As(err, &violation) {
		t.Fatalf("expected SecurityViolation, got %v", err)
	}
	if violation.Rule != "passphrase.length" {
		t.Fatalf("Rule = %q", violation.Rule)
	}
}

// testCost keeps Argon2id cheap enough for a test binary; production sealing
// uses DefaultCost or a config-supplied override instead.
var testCost = Cost{MemoryKiB: 8 * 1024, Iterations: 1, Parallelism: 1}

func TestCreateOpenRoundTrip(t *testing.T) {
	key := sampleKey(authority.Skull)
	ik, err := Create("a very strong passphrase indeed", key, "cold boot key", testCost)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	recovered, err := Open(ik, "a very strong passphrase indeed")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if recovered.Fingerprint() != key.Fingerprint() {
		t.Fatal("recovered key fingerprint does not match original")
	}
	if string(recovered.Material.Private) != string(key.Material.Private) {
		t.Fatal("recovered private material does not match original")
	}
	if recovered.Metadata.Purpose != key.Metadata.Purpose {
		t.Fatal("recovered metadata does not match original")
	}
}

// TestCreateUsesSuppliedCost pins that Create seals with the Cost it is
// given rather than argon2id.DefaultParams: the PHC-encoded hash must carry
// the caller's work factors, not a hardcoded default.
func TestCreateUsesSuppliedCost(t *testing.T) {
	custom := Cost{MemoryKiB: 16 * 1024, Iterations: 3, Parallelism: 1}
	ik, err := Create("a very strong passphrase indeed", sampleKey(authority.Skull), "desc", custom)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	params, _, _, err := argon2id.DecodeHash(ik.KDFHash)
	if err != nil {
		t.Fatalf("DecodeHash: %v", err)
	}
	if params.Memory != custom.MemoryKiB || params.Iterations != custom.Iterations || params.Parallelism != custom.Parallelism {
		t.Fatalf("KDFHash params = %+v, want memory=%d iterations=%d parallelism=%d",
			params, custom.MemoryKiB, custom.Iterations, custom.Parallelism)
	}
	if params.Memory == argon2id.DefaultParams.Memory && params.Memory != custom.MemoryKiB {
		t.Fatal("Create fell back to argon2id.DefaultParams instead of the supplied cost")
	}

	recovered, err := Open(ik, "a very strong passphrase indeed")
	if err != nil {
		t.Fatalf("Open with custom cost: %v", err)
	}
	if recovered.Fingerprint() != sampleKey(authority.Skull).Fingerprint() {
		t.Fatal("recovered key fingerprint does not match original")
	}
}

func TestOpenWrongPassphraseFails(t *testing.T) {
	key := sampleKey(authority.Distro)
	ik, err := Create("correct horse battery staple", key, "distro copy", testCost)
	if err != nil {
		t.Fatal(err)
	}
	_, err = Open(ik, "incorrect horse battery staple")
	var authErr *perr.AuthenticationFailed
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthenticationFailed, got %v", err)
	}
}

func TestOpenTamperedTypeFailsSameAsWrongPassphrase(t *testing.T) {
	key := sampleKey(authority.Ignition)
	ik, err := Create("correct horse battery staple", key, "ignition copy", testCost)
	if err != nil {
		t.Fatal(err)
	}
	ik.WrappedType = authority.Distro // tamper with declared type after sealing

	_, err = Open(ik, "correct horse battery staple")
	var authErr *perr.AuthenticationFailed
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthenticationFailed for tampered type, got %v", err)
	}

	_, err2 := Open(ik, "wrong passphrase entirely")
	var authErr2 *perr.AuthenticationFailed
	if !errors.As(err2, &authErr2) {
		t.Fatalf("expected AuthenticationFailed for wrong passphrase, got %v", err2)
	}
}
