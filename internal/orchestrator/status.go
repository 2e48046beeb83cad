package orchestrator

// Status enumerates root and reports a read-only RepositoryState. It never
// mutates any file.
func (o *Orchestrator) Status(root string) (RepositoryState, error) {
	files, err := walk(root, true)
	if err != nil {
		return RepositoryState{}, err
	}

	var state RepositoryState
	for _, path := range files {
		encrypted, err := looksEncrypted(path)
		if err != nil {
			state.FailedFiles = append(state.FailedFiles, FileFailure{Path: path, Reason: describe(err)})
			continue
		}
		state.TotalFiles++
		if encrypted {
			state.EncryptedFiles++
		} else {
			state.UnencryptedFiles++
		}
	}

	if state.TotalFiles > 0 {
		state.EncryptionPercentage = 100 * float64(state.EncryptedFiles) / float64(state.TotalFiles)
	}
	return state, nil
}
