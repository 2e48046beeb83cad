package orchestrator

import (
	"fmt"
	"os"

	"github.com/oodx/padlock/internal/perr"
)

// errForceRequired is the distinct SecurityViolation rule a collaborator
// maps to the "refusal of emergency without --force" exit code; every other
// SecurityViolation maps to the ordinary validator-refusal exit code.
const errForceRequired = "emergency.force_required"

// EmergencyUnlock attempts to recover plaintext for every encrypted file
// beneath root, bypassing the Validator and recording a security event for
// every bypassed check. It requires force=true at the caller boundary; a
// caller must decide to set it, not padlock. Recovery strategies are
// attempted in order per file: (a) normal decrypt, (b) decrypt/restore a
// ".bak" sibling if present, (c) report-only.
func (o *Orchestrator) EmergencyUnlock(root, passphrase string, force bool) (EmergencyResult, error) {
	if !force {
		return EmergencyResult{}, &perr.SecurityViolation{Rule: errForceRequired}
	}

	files, err := walk(root, true)
	if err != nil {
		return EmergencyResult{}, err
	}

	var result EmergencyResult
	for _, path := range files {
		encrypted, err := looksEncrypted(path)
		if err != nil || !encrypted {
			continue
		}

		result.SecurityEvents = append(result.SecurityEvents,
			fmt.Sprintf("validator bypassed for %s (emergency unlock)", path))

		dest := plaintextName(path)

		// (a) normal decrypt.
		if err := o.Adapter.Decrypt(path, dest, passphrase); err == nil {
			result.RecoveryActions = append(result.RecoveryActions, fmt.Sprintf("%s: normal_decrypt succeeded", path))
			result.recordSuccess(path)
			o.audit().Record("WARN", "orchestrator", fmt.Sprintf("emergency unlock recovered %s via normal decrypt", path))
			continue
		}
		result.RecoveryActions = append(result.RecoveryActions, fmt.Sprintf("%s: normal_decrypt failed", path))

		// (b) backup sibling. Lock writes its backup beside the plaintext
		// path, not the ciphertext, so the lookup must match that name.
		backup := dest + ".bak"
		if data, err := os.ReadFile(backup); err == nil {
			if err := os.WriteFile(dest, data, 0o600); err == nil {
				result.RecoveryActions = append(result.RecoveryActions, fmt.Sprintf("%s: backup_sibling_restore succeeded", path))
				result.recordSuccess(path)
				o.audit().Record("WARN", "orchestrator", fmt.Sprintf("emergency unlock recovered %s from backup sibling", path))
				continue
			}
			result.RecoveryActions = append(result.RecoveryActions, fmt.Sprintf("%s: backup_sibling_restore failed", path))
		} else {
			result.RecoveryActions = append(result.RecoveryActions, fmt.Sprintf("%s: backup_sibling_restore skipped (no %s)", path, backup))
		}

		// (c) report-only.
		result.RecoveryActions = append(result.RecoveryActions, fmt.Sprintf("%s: report_only", path))
		result.recordFailure(path, "no recovery strategy succeeded")
		o.audit().Record("ERROR", "orchestrator", fmt.Sprintf("emergency unlock could not recover %s", path))
	}

	result.OverallStatus = overallStatus(len(result.ProcessedFiles), len(result.FailedFiles))
	return result, nil
}
