package orchestrator

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/oodx/padlock/internal/ageadapter"
	"github.com/oodx/padlock/internal/perr"
	"github.com/oodx/padlock/internal/validator"
)

// Rotate re-encrypts every encrypted file beneath root under newPassphrase,
// authenticating each one with oldPassphrase first. Rotation is per-file
// atomic, not tree-wide: on an authentication failure for one file, that
// file's ciphertext is left untouched and the walk continues.
func (o *Orchestrator) Rotate(root, oldPassphrase, newPassphrase string) (OperationResult, error) {
	if err := validator.ValidatePassphrase(oldPassphrase); err != nil {
		return OperationResult{}, err
	}
	if err := validator.ValidatePassphrase(newPassphrase); err != nil {
		return OperationResult{}, err
	}

	files, err := walk(root, true)
	if err != nil {
		return OperationResult{}, err
	}

	var result OperationResult
	attempted := 0
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
		attempted++

		format := ageadapter.Binary
		if armored, err := ageadapter.IsArmored(path); err == nil && armored {
			format = ageadapter.AsciiArmor
		}

		dir := filepath.Dir(path)
		plainTmp, err := scratchPath(dir, "padlock-rotate-plain-*")
		if err != nil {
			result.recordFailure(path, describe(err))
			continue
		}

		if err := o.Adapter.Decrypt(path, plainTmp, oldPassphrase); err != nil {
			os.Remove(plainTmp)
			result.recordFailure(path, describe(err))
			continue
		}

		cipherTmp, err := scratchPath(dir, "padlock-rotate-cipher-*")
		if err != nil {
			os.Remove(plainTmp)
			result.recordFailure(path, describe(err))
			continue
		}

		encErr := o.Adapter.Encrypt(plainTmp, cipherTmp, newPassphrase, format)
		os.Remove(plainTmp)
		if encErr != nil {
			os.Remove(cipherTmp)
			result.recordFailure(path, describe(encErr))
			continue
		}

		if err := os.Rename(cipherTmp, path); err != nil {
			os.Remove(cipherTmp)
			result.recordFailure(path, fmt.Sprintf("re-encrypted but failed to commit: %v", err))
			continue
		}

		result.recordSuccess(path)
		o.audit().Record("INFO", "orchestrator", fmt.Sprintf("rotated %s", path))
	}

	result.OverallStatus = overallStatus(len(result.ProcessedFiles), len(result.FailedFiles))
	if attempted > 0 && len(result.ProcessedFiles) == 0 {
		return result, &perr.InvalidOperation{Operation: "rotate", Reason: "no file could be processed"}
	}
	return result, nil
}

// scratchPath allocates a unique path in dir without leaving a file behind,
// so the caller's own writer (Adapter.Encrypt/Decrypt) owns its creation.
func scratchPath(dir, pattern string) (string, error) {
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return "", &perr.IoError{Path: dir, Kind: "create_temp", Err: err}
	}
	name := f.Name()
	f.Close()
	os.Remove(name)
	return name, nil
}
