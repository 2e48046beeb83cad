package orchestrator

import (
	"fmt"
	"os"

	"github.com/oodx/padlock/internal/ageadapter"
	"github.com/oodx/padlock/internal/perr"
	"github.com/oodx/padlock/internal/validator"
)

// LockOptions configures a Lock pass.
type LockOptions struct {
	Recursive        bool
	Format           ageadapter.Format
	PatternFilter    string
	BackupBeforeLock bool
}

// removeSource reports whether the plaintext is unlinked after a successful
// encrypt: implied whenever no backup was taken, per the walk contract.
func (o LockOptions) removeSource() bool {
	return !o.BackupBeforeLock
}

// Lock encrypts every eligible plaintext file beneath root. A file is
// eligible when it does not already look encrypted and matches the
// optional pattern filter. Per file: Idle → Validated → (Adapter.Encrypt,
// internally TempWritten → Renamed) → Cleaned|Preserved → Done, or Failed
// with no change to the source.
func (o *Orchestrator) Lock(root, passphrase string, opts LockOptions) (OperationResult, error) {
	if err := validator.ValidatePassphrase(passphrase); err != nil {
		return OperationResult{}, err
	}

	files, err := walk(root, opts.Recursive)
	if err != nil {
		return OperationResult{}, err
	}

	var result OperationResult
	for _, path := range files {
		if o.cancelled() {
			result.Cancelled = true
			break
		}

		// Idle → Validated.
		if err := o.validated(root, path); err != nil {
			result.recordFailure(path, describe(err))
			continue
		}

		encrypted, err := looksEncrypted(path)
		if err != nil {
			result.recordFailure(path, describe(err))
			continue
		}
		if encrypted {
			continue // not eligible; already locked
		}
		if ok, err := matchesPattern(opts.PatternFilter, path); err != nil {
			result.recordFailure(path, describe(err))
			continue
		} else if !ok {
			continue
		}

		if opts.BackupBeforeLock {
			if err := backupSibling(path); err != nil {
				result.recordFailure(path, describe(err))
				continue
			}
		}

		// TempWritten → Renamed happen inside Adapter.Encrypt's own
		// sibling-temp-then-rename commit.
		dest := path + ".age"
		if err := o.Adapter.Encrypt(path, dest, passphrase, opts.Format); err != nil {
			result.recordFailure(path, describe(err))
			continue
		}

		// Cleaned | Preserved.
		if opts.removeSource() {
			if err := os.Remove(path); err != nil {
				result.recordFailure(path, fmt.Sprintf("encrypted but failed to remove plaintext: %v", err))
				continue
			}
		}

		result.recordSuccess(path)
		o.audit().Record("INFO", "orchestrator", fmt.Sprintf("locked %s", path))
	}

	result.OverallStatus = overallStatus(len(result.ProcessedFiles), len(result.FailedFiles))
	if len(files) > 0 && len(result.ProcessedFiles) == 0 && len(result.FailedFiles) == len(files) {
		return result, &perr.InvalidOperation{Operation: "lock", Reason: "no file could be processed"}
	}
	return result, nil
}

// backupSibling copies path to a sibling "<path>.bak", overwriting any
// existing backup, before the original is touched. The copy is a durable
// sibling file, not a temporary: Emergency Unlock's recovery strategy reads
// it back directly from disk, possibly in a later process invocation.
func backupSibling(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return &perr.IoError{Path: path, Kind: "read", Err: err}
	}
	info, err := os.Stat(path)
	if err != nil {
		return &perr.IoError{Path: path, Kind: "stat", Err: err}
	}
	if err := os.WriteFile(path+".bak", data, info.Mode()); err != nil {
		return &perr.IoError{Path: path + ".bak", Kind: "write", Err: err}
	}
	return nil
}
