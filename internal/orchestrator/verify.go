package orchestrator

import (
	"os"
	"path/filepath"
)

// Verify attempts to authenticate every encrypted file beneath root against
// passphrase without leaving plaintext on disk: each probe decrypts to a
// scratch file that is removed immediately after the check.
func (o *Orchestrator) Verify(root, passphrase string) (VerifyResult, error) {
	files, err := walk(root, true)
	if err != nil {
		return VerifyResult{}, err
	}

	var result VerifyResult
	for _, path := range files {
		encrypted, err := looksEncrypted(path)
		if err != nil {
			result.FailedFiles = append(result.FailedFiles, FileFailure{Path: path, Reason: describe(err)})
			continue
		}
		if !encrypted {
			continue
		}

		probePath, err := scratchPath(filepath.Dir(path), "padlock-verify-probe-*")
		if err != nil {
			result.FailedFiles = append(result.FailedFiles, FileFailure{Path: path, Reason: describe(err)})
			continue
		}
		probeErr := o.Adapter.Decrypt(path, probePath, passphrase)
		os.Remove(probePath)

		if probeErr != nil {
			result.FailedFiles = append(result.FailedFiles, FileFailure{Path: path, Reason: describe(probeErr)})
			continue
		}
		result.VerifiedFiles = append(result.VerifiedFiles, path)
	}

	switch {
	case len(result.VerifiedFiles) == 0 && len(result.FailedFiles) == 0:
		result.OverallStatus = "Healthy"
	case len(result.FailedFiles) == 0:
		result.OverallStatus = "Healthy"
	case len(result.VerifiedFiles) == 0:
		result.OverallStatus = "Unhealthy"
	default:
		result.OverallStatus = "Degraded"
	}
	return result, nil
}
