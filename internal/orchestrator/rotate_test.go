package orchestrator

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRotateReencryptsUnderNewPassphrase(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "a.txt"), []byte("secret content"), 0o644)
	o := newOrchestrator()

	if _, err := o.Lock(dir, "old-passphrase-000", LockOptions{}); err != nil {
		t.Fatal(err)
	}

	result, err := o.Rotate(dir, "old-passphrase-000", "new-passphrase-111")
	if err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if len(result.FailedFiles) != 0 {
		t.Fatalf("unexpected failures: %+v", result.FailedFiles)
	}
	if len(result.ProcessedFiles) != 1 {
		t.Fatalf("expected 1 rotated file, got %d", len(result.ProcessedFiles))
	}

	// Old passphrase must no longer open the file.
	staleAttempt, _ := o.Unlock(dir, "old-passphrase-000", UnlockOptions{PreserveEncrypted: true})
	if len(staleAttempt.FailedFiles) == 0 {
		t.Fatal("old passphrase should no longer authenticate after rotation")
	}

	r, err := o.Unlock(dir, "new-passphrase-111", UnlockOptions{})
	if err != nil {
		t.Fatalf("new passphrase should authenticate after rotation: %v", err)
	}
	if len(r.FailedFiles) != 0 {
		t.Fatalf("unexpected failures unlocking with new passphrase: %+v", r.FailedFiles)
	}
	got, err := os.ReadFile(filepath.Join(dir, "a.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "secret content" {
		t.Fatalf("content mismatch after rotate+unlock: %q", got)
	}
}

func TestRotateAuthFailureRollsBackAndContinues(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "a.txt"), []byte("content-a"), 0o644)
	os.WriteFile(filepath.Join(dir, "b.txt"), []byte("content-b"), 0o644)
	o := newOrchestrator()

	if _, err := o.Lock(dir, "shared-passphrase-000", LockOptions{}); err != nil {
		t.Fatal(err)
	}

	before, err := os.ReadFile(filepath.Join(dir, "a.txt.age"))
	if err != nil {
		t.Fatal(err)
	}

	result, err := o.Rotate(dir, "wrong-old-passphrase", "new-passphrase-111")
	if err == nil {
		t.Fatal("expected rotate to report an overall failure when every file's old passphrase is wrong")
	}
	if len(result.FailedFiles) != 2 {
		t.Fatalf("expected both files to fail, got %+v", result.FailedFiles)
	}

	after, err := os.ReadFile(filepath.Join(dir, "a.txt.age"))
	if err != nil {
		t.Fatal(err)
	}
	if string(before) != string(after) {
		t.Fatal("a failed rotation must leave the original ciphertext untouched")
	}
}
