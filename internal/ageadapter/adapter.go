// Package ageadapter is the boundary that performs one-shot, non-interactive
// Age encryption and decryption of a single file under a passphrase. Two
// strategies satisfy the same Adapter contract: an in-process library
// strategy and an external-binary subprocess strategy; a factory picks one.
package ageadapter

import (
	"bufio"
	"os"
	"strings"

	"github.com/oodx/padlock/internal/perr"
)

// Format selects the Age container a ciphertext is written in.
type Format int

const (
	Binary Format = iota
	AsciiArmor
)

// armorHeader is the first line of an ASCII-armored Age file.
const armorHeader = "-----BEGIN AGE ENCRYPTED FILE-----"

// Adapter is the narrow capability the Orchestrator depends on. Both
// strategies below satisfy it; callers never type-assert to a concrete
// strategy.
type Adapter interface {
	Encrypt(inputPath, outputPath, passphrase string, format Format) error
	Decrypt(inputPath, outputPath, passphrase string) error
	HealthCheck() error
}

// IsArmored reports whether path's first line is the Age armor header,
// without reading the rest of the file. Exported for callers (the
// orchestrator's encrypted-file detection) that need to recognise an
// armored file regardless of its suffix.
func IsArmored(path string) (bool, error) {
	return isArmored(path)
}

// isArmored reports whether path's first line is the Age armor header,
// without reading the rest of the file.
func isArmored(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, &perr.IoError{Path: path, Kind: "open", Err: err}
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		return false, nil
	}
	return strings.HasPrefix(scanner.Text(), armorHeader), nil
}
