// Package orchestrator applies an operation (lock, unlock, status, rotate,
// verify, emergency unlock) to every eligible file beneath a repository
// root, producing a deterministic result record. It walks the tree in
// sorted path order, consults the Validator before touching anything, and
// accumulates per-file failures instead of aborting the walk.
package orchestrator

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/oodx/padlock/internal/ageadapter"
	"github.com/oodx/padlock/internal/perr"
	"github.com/oodx/padlock/internal/validator"
)

// AuditSink receives a line-oriented audit record, matching every other
// padlock component's logging surface. The orchestrator never logs
// passphrases or plaintext.
type AuditSink interface {
	Record(level, subsystem, message string)
}

type noopSink struct{}

func (noopSink) Record(string, string, string) {}

// FileFailure records why one file could not be processed.
type FileFailure struct {
	Path   string
	Reason string
}

// OperationResult is the outcome of a whole-tree operation.
type OperationResult struct {
	ProcessedFiles []string
	FailedFiles    []FileFailure
	OverallStatus  string // "success" | "partial_failure" | "failure"
	Cancelled      bool
}

// EmergencyResult extends OperationResult with the emergency-unlock-specific
// audit trail: every recovery strategy attempted and every check bypassed.
type EmergencyResult struct {
	OperationResult
	RecoveryActions []string
	SecurityEvents  []string
}

// RepositoryState is the read-only, derived view produced by Status.
type RepositoryState struct {
	TotalFiles           int
	EncryptedFiles       int
	UnencryptedFiles     int
	FailedFiles          []FileFailure
	EncryptionPercentage float64
}

// FullyEncrypted reports whether every file in the tree is encrypted.
func (s RepositoryState) FullyEncrypted() bool {
	return s.TotalFiles > 0 && s.UnencryptedFiles == 0
}

// FullyDecrypted reports whether no file in the tree is encrypted.
func (s RepositoryState) FullyDecrypted() bool {
	return s.TotalFiles > 0 && s.EncryptedFiles == 0
}

// VerifyResult is the outcome of a Verify pass.
type VerifyResult struct {
	VerifiedFiles []string
	FailedFiles   []FileFailure
	OverallStatus string // "Healthy" | "Degraded" | "Unhealthy"
}

// Orchestrator ties the Adapter and Validator together into the repository
// walk protocol. It holds no tree-specific state: every operation takes the
// root explicitly and recomputes its view on demand.
type Orchestrator struct {
	Adapter         ageadapter.Adapter
	ValidatorPolicy validator.Policy
	Audit           AuditSink

	// Cancel, when non-nil, is checked at each file boundary. The file
	// whose state machine is already running always completes first; a
	// close after that point stops the walk and marks the result Cancelled.
	Cancel <-chan struct{}
}

// cancelled reports whether a cancellation signal has arrived, without
// blocking.
func (o *Orchestrator) cancelled() bool {
	if o.Cancel == nil {
		return false
	}
	select {
	case <-o.Cancel:
		return true
	default:
		return false
	}
}

// New builds an Orchestrator. Audit defaults to a discarding sink when nil.
func New(adapter ageadapter.Adapter, policy validator.Policy) *Orchestrator {
	return &Orchestrator{Adapter: adapter, ValidatorPolicy: policy, Audit: noopSink{}}
}

func (o *Orchestrator) audit() AuditSink {
	if o.Audit != nil {
		return o.Audit
	}
	return noopSink{}
}

// looksEncrypted reports whether path should be treated as ciphertext: by
// suffix (`.age`, `.armor`) or, failing that, by sniffing an armor header.
// A file extension is authoritative when present so a renamed-but-not-yet
// inspected file is still recognised without opening it.
func looksEncrypted(path string) (bool, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".age" || ext == ".armor" {
		return true, nil
	}
	armored, err := ageadapter.IsArmored(path)
	if err != nil {
		return false, err
	}
	return armored, nil
}

// matchesPattern reports whether the base name of path matches pattern. An
// empty pattern matches everything.
func matchesPattern(pattern, path string) (bool, error) {
	if pattern == "" {
		return true, nil
	}
	ok, err := filepath.Match(pattern, filepath.Base(path))
	if err != nil {
		return false, &perr.InvalidOperation{Operation: "orchestrator.pattern_filter", Reason: err.Error()}
	}
	return ok, nil
}

// walk enumerates every non-directory entry beneath root in sorted lexicographic
// order on the full path. When recursive is false, only files directly in
// root are visited.
func walk(root string, recursive bool) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if !recursive && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, &perr.IoError{Path: root, Kind: "walk", Err: err}
	}
	sort.Strings(files)
	return files, nil
}

// validated checks a candidate path against the Validator before any
// operation-specific predicate runs. Callers record a refusal (a
// SecurityViolation naming the rule, or an IoError when the path cannot be
// resolved) in failed_files and continue the walk.
func (o *Orchestrator) validated(root, path string) error {
	return validator.ValidatePath(root, path, o.ValidatorPolicy)
}

func overallStatus(processed int, failed int) string {
	switch {
	case failed == 0:
		return "success"
	case processed == 0:
		return "failure"
	default:
		return "partial_failure"
	}
}

func (r *OperationResult) recordFailure(path string, reason string) {
	r.FailedFiles = append(r.FailedFiles, FileFailure{Path: path, Reason: reason})
}

func (r *OperationResult) recordSuccess(path string) {
	r.ProcessedFiles = append(r.ProcessedFiles, path)
}

// describe renders an error's message without any passphrase or plaintext
// ever being part of it — every error type in perr carries only structural
// detail (rule names, operation names, paths), never secret material.
func describe(err error) string {
	return fmt.Sprintf("%v", err)
}
