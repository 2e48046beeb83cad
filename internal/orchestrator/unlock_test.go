package orchestrator

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRepositoryLockUnlockRoundTrip(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir)

	originals := map[string][]byte{}
	filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			data, _ := os.ReadFile(path)
			originals[path] = data
		}
		return nil
	})

	o := newOrchestrator()
	if _, err := o.Lock(dir, "repo-passphrase-456", LockOptions{Recursive: true}); err != nil {
		t.Fatalf("Lock: %v", err)
	}

	status, err := o.Status(dir)
	if err != nil {
		t.Fatal(err)
	}
	if status.EncryptionPercentage != 100.0 {
		t.Fatalf("expected 100%% encrypted after lock, got %v", status.EncryptionPercentage)
	}

	result, err := o.Unlock(dir, "repo-passphrase-456", UnlockOptions{Recursive: true})
	if err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	if len(result.FailedFiles) != 0 {
		t.Fatalf("unexpected unlock failures: %+v", result.FailedFiles)
	}

	status, err = o.Status(dir)
	if err != nil {
		t.Fatal(err)
	}
	if status.EncryptedFiles != 0 {
		t.Fatalf("expected 0 encrypted files after unlock, got %d", status.EncryptedFiles)
	}

	for path, want := range originals {
		got, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("missing %s after round trip: %v", path, err)
		}
		if string(got) != string(want) {
			t.Fatalf("content mismatch for %s", path)
		}
	}
}

func TestUnlockPreservesEncryptedWhenRequested(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "a.txt"), []byte("content"), 0o644)
	o := newOrchestrator()

	if _, err := o.Lock(dir, "repo-passphrase-456", LockOptions{}); err != nil {
		t.Fatal(err)
	}
	if _, err := o.Unlock(dir, "repo-passphrase-456", UnlockOptions{PreserveEncrypted: true}); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "a.txt.age")); err != nil {
		t.Fatal("ciphertext should be preserved")
	}
	if _, err := os.Stat(filepath.Join(dir, "a.txt")); err != nil {
		t.Fatal("plaintext should exist")
	}
}

func TestUnlockWrongPassphraseLeavesCiphertextUntouched(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "a.txt"), []byte("content"), 0o644)
	o := newOrchestrator()

	if _, err := o.Lock(dir, "repo-passphrase-456", LockOptions{}); err != nil {
		t.Fatal(err)
	}
	before, err := os.ReadFile(filepath.Join(dir, "a.txt.age"))
	if err != nil {
		t.Fatal(err)
	}

	result, err := o.Unlock(dir, "wrong-passphrase-000", UnlockOptions{})
	if err == nil && len(result.FailedFiles) == 0 {
		t.Fatal("expected a failure for the wrong passphrase")
	}

	after, err := os.ReadFile(filepath.Join(dir, "a.txt.age"))
	if err != nil {
		t.Fatal(err)
	}
	if string(before) != string(after) {
		t.Fatal("ciphertext must be byte-identical after a failed unlock attempt")
	}
}

func TestUnlockVerifyBeforeUnlockCatchesBadPassphraseWithoutWritingPlaintext(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "a.txt"), []byte("content"), 0o644)
	o := newOrchestrator()

	if _, err := o.Lock(dir, "repo-passphrase-456", LockOptions{}); err != nil {
		t.Fatal(err)
	}
	result, err := o.Unlock(dir, "wrong-passphrase-000", UnlockOptions{VerifyBeforeUnlock: true})
	if err == nil && len(result.FailedFiles) == 0 {
		t.Fatal("expected a failure")
	}
	if _, statErr := os.Stat(filepath.Join(dir, "a.txt")); !os.IsNotExist(statErr) {
		t.Fatal("verify-before-unlock must not leave plaintext on a failed probe")
	}
}
