package orchestrator

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEmergencyUnlockRefusesWithoutForce(t *testing.T) {
	dir := t.TempDir()
	o := newOrchestrator()

	_, err := o.EmergencyUnlock(dir, "whatever-passphrase", false)
	if err == nil {
		t.Fatal("expected a refusal without force")
	}
}

func TestEmergencyUnlockNormalDecryptRecovers(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "a.txt"), []byte("content"), 0o644)
	o := newOrchestrator()

	if _, err := o.Lock(dir, "repo-passphrase-456", LockOptions{}); err != nil {
		t.Fatal(err)
	}

	result, err := o.EmergencyUnlock(dir, "repo-passphrase-456", true)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.ProcessedFiles) != 1 {
		t.Fatalf("expected 1 recovered file, got %d", len(result.ProcessedFiles))
	}
	if len(result.SecurityEvents) == 0 {
		t.Fatal("expected at least one security event to be logged")
	}
	if len(result.RecoveryActions) == 0 {
		t.Fatal("expected recovery actions to be recorded")
	}
	if _, err := os.Stat(filepath.Join(dir, "a.txt")); err != nil {
		t.Fatal("expected plaintext to be recovered")
	}
}

func TestEmergencyUnlockFallsBackToBackupSibling(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "a.txt"), []byte("content"), 0o644)
	o := newOrchestrator()

	if _, err := o.Lock(dir, "repo-passphrase-456", LockOptions{BackupBeforeLock: true}); err != nil {
		t.Fatal(err)
	}
	os.Remove(filepath.Join(dir, "a.txt")) // simulate plaintext loss, keep .bak

	result, err := o.EmergencyUnlock(dir, "wrong-passphrase-that-fails", true)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.ProcessedFiles) != 1 {
		t.Fatalf("expected backup sibling recovery to succeed, got %+v", result.FailedFiles)
	}
	got, err := os.ReadFile(filepath.Join(dir, "a.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "content" {
		t.Fatalf("recovered content mismatch: %q", got)
	}
}

func TestEmergencyUnlockReportOnlyWhenNoStrategySucceeds(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "a.txt"), []byte("content"), 0o644)
	o := newOrchestrator()

	if _, err := o.Lock(dir, "repo-passphrase-456", LockOptions{}); err != nil {
		t.Fatal(err)
	}

	result, err := o.EmergencyUnlock(dir, "wrong-passphrase-that-fails", true)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.FailedFiles) != 1 {
		t.Fatalf("expected 1 unrecoverable file, got %+v", result.ProcessedFiles)
	}
}
