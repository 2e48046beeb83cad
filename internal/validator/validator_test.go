package validator

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/oodx/padlock/internal/perr"
)

func ruleOf(t *testing.T, err error) string {
	t.Helper()
	var v *perr.SecurityViolation
	if !errors.As(err, &v) {
		t.Fatalf("expected SecurityViolation, got %v", err)
	}
	return v.Rule
}

func TestValidatePassphraseTooShort(t *testing.T) {
	err := ValidatePassphrase("short")
	if ruleOf(t, err) != "passphrase.length" {
		t.Fatalf("rule = %q", ruleOf(t, err))
	}
}

func TestValidatePassphraseInjection(t *testing.T) {
	cases := []string{
		"test$(rm -rf /)",
		"back`tick`here",
		"semi;colon",
		"and&&and",
		"either||or",
		"control\x00byte",
	}
	for _, p := range cases {
		if err := ValidatePassphrase(p); ruleOf(t, err) != "passphrase.injection" {
			t.Errorf("ValidatePassphrase(%q) rule = %q, want passphrase.injection", p, ruleOf(t, err))
		}
	}
}

func TestValidatePassphraseAllDigits(t *testing.T) {
	err := ValidatePassphrase("123456789")
	if ruleOf(t, err) != "passphrase.all_digits" {
		t.Fatalf("rule = %q", ruleOf(t, err))
	}
}

func TestValidatePassphraseAccepted(t *testing.T) {
	if err := ValidatePassphrase("test-passphrase-123"); err != nil {
		t.Fatalf("expected acceptance, got %v", err)
	}
}

func TestValidatePathTraversal(t *testing.T) {
	err := ValidatePath("/tmp/repo", "../../../etc/passwd", Policy{})
	if ruleOf(t, err) != "path.escape" {
		t.Fatalf("rule = %q", ruleOf(t, err))
	}
}

func TestValidatePathEscape(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "repo")
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatal(err)
	}
	outside := filepath.Join(dir, "outside.txt")
	if err := os.WriteFile(outside, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	err := ValidatePath(root, outside, Policy{})
	if ruleOf(t, err) != "path.escape" {
		t.Fatalf("rule = %q", ruleOf(t, err))
	}
}

func TestValidatePathAcceptsInsideRoot(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := ValidatePath(dir, file, Policy{}); err != nil {
		t.Fatalf("expected acceptance, got %v", err)
	}
}

func TestValidatePathStrictModeHiddenFile(t *testing.T) {
	dir := t.TempDir()
	hidden := filepath.Join(dir, ".secret")
	if err := os.WriteFile(hidden, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	err := ValidatePath(dir, hidden, Policy{StrictMode: true})
	if ruleOf(t, err) != "path.hidden_file" {
		t.Fatalf("rule = %q", ruleOf(t, err))
	}
}

func TestValidatePathStrictModeExtensionAllowList(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	policy := Policy{StrictMode: true, AllowedExtension: map[string]bool{".age": true}}
	err := ValidatePath(dir, file, policy)
	if ruleOf(t, err) != "path.extension_not_allowed" {
		t.Fatalf("rule = %q", ruleOf(t, err))
	}

	allowed := filepath.Join(dir, "b.age")
	if err := os.WriteFile(allowed, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := ValidatePath(dir, allowed, policy); err != nil {
		t.Fatalf("expected acceptance of allow-listed extension, got %v", err)
	}
}
