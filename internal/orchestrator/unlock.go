package orchestrator

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/oodx/padlock/internal/perr"
	"github.com/oodx/padlock/internal/validator"
)

// UnlockOptions configures an Unlock pass.
type UnlockOptions struct {
	Recursive          bool
	PatternFilter      string
	VerifyBeforeUnlock bool
	PreserveEncrypted  bool
}

// plaintextName strips a recognised encrypted suffix (".age" or ".armor")
// so "a.txt.age" decrypts back to "a.txt"; a name with neither suffix gets
// ".decrypted" appended.
func plaintextName(path string) string {
	for _, suffix := range []string{".age", ".armor"} {
		if strings.HasSuffix(path, suffix) {
			return strings.TrimSuffix(path, suffix)
		}
	}
	return path + ".decrypted"
}

// Unlock decrypts every eligible ciphertext file beneath root. Per file:
// Idle → Validated → (optional decrypt-to-null probe) → (Adapter.Decrypt,
// internally TempWritten → Renamed) → Cleaned|Preserved → Done, or Failed
// with the ciphertext untouched.
func (o *Orchestrator) Unlock(root, passphrase string, opts UnlockOptions) (OperationResult, error) {
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

		if err := o.validated(root, path); err != nil {
			result.recordFailure(path, describe(err))
			continue
		}

		encrypted, err := looksEncrypted(path)
		if err != nil {
			result.recordFailure(path, describe(err))
			continue
		}
		if !encrypted {
			continue
		}
		if ok, err := matchesPattern(opts.PatternFilter, path); err != nil {
			result.recordFailure(path, describe(err))
			continue
		} else if !ok {
			continue
		}

		if opts.VerifyBeforeUnlock {
			probePath, err := scratchPath(filepath.Dir(path), "padlock-unlock-probe-*")
			if err != nil {
				result.recordFailure(path, describe(err))
				continue
			}

			probeErr := o.Adapter.Decrypt(path, probePath, passphrase)
			os.Remove(probePath)
			if probeErr != nil {
				result.recordFailure(path, describe(probeErr))
				continue
			}
		}

		dest := plaintextName(path)
		if err := o.Adapter.Decrypt(path, dest, passphrase); err != nil {
			result.recordFailure(path, describe(err))
			continue
		}

		if !opts.PreserveEncrypted {
			if err := os.Remove(path); err != nil {
				result.recordFailure(path, fmt.Sprintf("decrypted but failed to remove ciphertext: %v", err))
				continue
			}
		}

		result.recordSuccess(path)
		o.audit().Record("INFO", "orchestrator", fmt.Sprintf("unlocked %s", path))
	}

	result.OverallStatus = overallStatus(len(result.ProcessedFiles), len(result.FailedFiles))
	if len(files) > 0 && len(result.ProcessedFiles) == 0 && len(result.FailedFiles) == len(files) {
		return result, &perr.InvalidOperation{Operation: "unlock", Reason: "no file could be processed"}
	}
	return result, nil
}
