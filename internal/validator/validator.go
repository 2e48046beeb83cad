// Package validator gatekeeps every passphrase and path before it reaches
// the cipher: a refusal with a named rule, never a best-effort sanitisation.
//
// Implemented entirely on the standard library. No dependency in the
// retrieval pack offers injection-pattern matching or path-traversal
// detection as a distinct primitive beyond what regexp/strings/path/filepath
// already provide, so this component carries no third-party dependency —
// see the ledger for the explicit justification.
package validator

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/oodx/padlock/internal/perr"
)

// MinPassphraseLength is the Validator's general passphrase floor. Ignition
// wrapping enforces a stricter floor of its own on top of this one.
const MinPassphraseLength = 8

// injectionPattern matches the shell-metacharacter sequences the passphrase
// policy refuses outright: command substitution, backticks, statement
// separators, and short-circuit operators.
var injectionPattern = regexp.MustCompile(`\$\(|` + "`" + `|;|&&|\|\|`)

// allDigits matches a passphrase made up solely of digit characters.
var allDigits = regexp.MustCompile(`^[0-9]+$`)

// Policy holds the configurable part of path validation: whether strict
// mode is active and, if so, which extensions are allowed.
type Policy struct {
	StrictMode       bool
	AllowedExtension map[string]bool // keys include the leading dot, e.g. ".age"
}

// ValidatePassphrase rejects a passphrase that is too short, contains an
// injection sequence or control byte, or consists solely of digits.
func ValidatePassphrase(p string) error {
	if len(p) < MinPassphraseLength {
		return &perr.SecurityViolation{Rule: "passphrase.length"}
	}
	if hasControlByte(p) || injectionPattern.MatchString(p) {
		return &perr.SecurityViolation{Rule: "passphrase.injection"}
	}
	if allDigits.MatchString(p) {
		return &perr.SecurityViolation{Rule: "passphrase.all_digits"}
	}
	return nil
}

func hasControlByte(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < 0x20 || c == 0x7f {
			return true
		}
	}
	return false
}

// ValidatePath rejects a path that escapes root, traverses via "..",
// resolves through a symlink to somewhere outside root, or names a
// device/special file. In strict mode it additionally rejects hidden files
// (dotfiles) and files whose extension is not in policy.AllowedExtension.
func ValidatePath(root, path string, policy Policy) error {
	if strings.Contains(path, "..") {
		return &perr.SecurityViolation{Rule: "path.escape"}
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return &perr.IoError{Path: root, Kind: "resolve_root", Err: err}
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return &perr.IoError{Path: path, Kind: "resolve_path", Err: err}
	}

	rel, err := filepath.Rel(absRoot, absPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return &perr.SecurityViolation{Rule: "path.escape"}
	}

	canonicalRoot, err := filepath.EvalSymlinks(absRoot)
	if err != nil {
		return &perr.IoError{Path: root, Kind: "resolve_root_symlinks", Err: err}
	}
	canonicalPath, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			canonicalPath = absPath // not-yet-created file; nothing to resolve
		} else {
			return &perr.IoError{Path: path, Kind: "resolve_path_symlinks", Err: err}
		}
	}
	canonicalRel, err := filepath.Rel(canonicalRoot, canonicalPath)
	if err != nil || canonicalRel == ".." || strings.HasPrefix(canonicalRel, ".."+string(filepath.Separator)) {
		return &perr.SecurityViolation{Rule: "path.escape"}
	}

	if info, err := os.Lstat(absPath); err == nil {
		if !info.Mode().IsRegular() && !info.Mode().IsDir() && info.Mode()&os.ModeSymlink == 0 {
			return &perr.SecurityViolation{Rule: "path.special_file"}
		}
	}

	if policy.StrictMode {
		base := filepath.Base(absPath)
		if strings.HasPrefix(base, ".") {
			return &perr.SecurityViolation{Rule: "path.hidden_file"}
		}
		if len(policy.AllowedExtension) > 0 {
			ext := filepath.Ext(base)
			if !policy.AllowedExtension[ext] {
				return &perr.SecurityViolation{Rule: "path.extension_not_allowed"}
			}
		}
	}

	return nil
}
