package keygen

import (
	"errors"
	"testing"
	"time"

	"github.com/oodx/padlock/internal/authority"
	"github.com/oodx/padlock/internal/perr"
)

// sequentialRand fills every Read with incrementing bytes so tests are
// deterministic without touching crypto/rand.Reader.
type sequentialRand struct{ next byte }

func (r *sequentialRand) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = r.next
		r.next++
	}
	return len(p), nil
}

type recordingSink struct{ records []string }

func (s *recordingSink) Record(level, subsystem, message string) {
	s.records = append(s.records, level+" "+subsystem+" "+message)
}

func testGenerator() (*Generator, *recordingSink) {
	sink := &recordingSink{}
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return &Generator{
		Rand:  &sequentialRand{next: 1},
		Audit: sink,
		Now:   func() time.Time { return fixed },
	}, sink
}

func TestGenerateSkullProducesSelfProof(t *testing.T) {
	g, sink := testGenerator()
	skull, p, err := g.GenerateSkull(Params{Purpose: "root of trust"})
	if err != nil {
		t.Fatalf("GenerateSkull: %v", err)
	}
	if skull.Type != authority.Skull {
		t.Fatalf("Type = %v, want Skull", skull.Type)
	}
	if !p.IsSelfProof() {
		t.Fatal("skull proof must be a self-proof")
	}
	if skull.Metadata.ExpiresAt != nil {
		t.Fatal("skull keys have no default expiration")
	}
	if len(sink.records) != 1 {
		t.Fatalf("expected one audit record, got %d", len(sink.records))
	}
}

func TestGenerateMasterUnderSkull(t *testing.T) {
	g, _ := testGenerator()
	skull, _, err := g.GenerateSkull(Params{})
	if err != nil {
		t.Fatal(err)
	}
	master, _, err := g.GenerateMaster(skull, Params{Purpose: "org master"})
	if err != nil {
		t.Fatalf("GenerateMaster: %v", err)
	}
	if master.Type != authority.Master {
		t.Fatalf("Type = %v, want Master", master.Type)
	}
	if master.ParentFingerprint == nil || !master.ParentFingerprint.Equal(skull.Fingerprint()) {
		t.Fatal("master's parent fingerprint must reference the skull")
	}
	if master.Metadata.ExpiresAt == nil {
		t.Fatal("master keys default to a 365-day expiration")
	}
}

func TestGenerateRepoRejectsNonMasterParent(t *testing.T) {
	g, _ := testGenerator()
	skull, _, err := g.GenerateSkull(Params{})
	if err != nil {
		t.Fatal(err)
	}
	_, _, err = g.GenerateRepo(skull, "/repo", Params{})
	var invalid *perr.InvalidOperation
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidOperation, got %v", err)
	}
	if invalid.Reason != "Parent must be master key" {
		t.Fatalf("Reason = %q", invalid.Reason)
	}
}

func TestGenerateFailsBeforeConsumingRandomnessOnBadHierarchy(t *testing.T) {
	g, _ := testGenerator()
	spy := &sequentialRand{next: 1}
	g.Rand = spy

	skull, _, err := g.GenerateSkull(Params{})
	if err != nil {
		t.Fatal(err)
	}
	consumedBefore := spy.next

	_, _, err = g.GenerateRepo(skull, "/repo", Params{})
	if err == nil {
		t.Fatal("expected rejection")
	}
	if spy.next != consumedBefore {
		t.Fatalf("randomness was consumed despite hierarchy rejection: %d -> %d", consumedBefore, spy.next)
	}
}

func TestGenerateRejectsShortLength(t *testing.T) {
	g, _ := testGenerator()
	_, _, err := g.Generate(nil, Params{Type: authority.Skull, KeyLength: 8})
	var invalid *perr.InvalidOperation
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidOperation, got %v", err)
	}
}

func TestGenerateFullChain(t *testing.T) {
	g, _ := testGenerator()
	skull, _, err := g.GenerateSkull(Params{})
	if err != nil {
		t.Fatal(err)
	}
	master, _, err := g.GenerateMaster(skull, Params{})
	if err != nil {
		t.Fatal(err)
	}
	repo, _, err := g.GenerateRepo(master, "/srv/repo", Params{})
	if err != nil {
		t.Fatal(err)
	}
	if repo.Metadata.Purpose != "/srv/repo" {
		t.Fatalf("Purpose = %q, want repo path default", repo.Metadata.Purpose)
	}
	ignition, _, err := g.GenerateIgnition(repo, Params{})
	if err != nil {
		t.Fatal(err)
	}
	distro, _, err := g.GenerateDistro(ignition, Params{})
	if err != nil {
		t.Fatal(err)
	}
	if distro.Type != authority.Distro {
		t.Fatalf("Type = %v, want Distro", distro.Type)
	}
}

func TestGenerateDistroRejectsNonIgnitionParent(t *testing.T) {
	g, _ := testGenerator()
	skull, _, err := g.GenerateSkull(Params{})
	if err != nil {
		t.Fatal(err)
	}
	_, _, err = g.GenerateDistro(skull, Params{})
	var invalid *perr.InvalidOperation
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidOperation, got %v", err)
	}
}
