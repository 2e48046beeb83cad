package ageadapter

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"filippo.io/age"
	"filippo.io/age/armor"
	"github.com/google/renameio/v2"

	"github.com/oodx/padlock/internal/perr"
)

// Library drives filippo.io/age in-process. It is the default strategy: no
// subprocess, no PTY, no external binary to locate.
type Library struct{}

// Encrypt satisfies Adapter using age.Encrypt directly. The ciphertext is
// buffered to a sibling temporary file and committed with a same-filesystem
// rename; on any failure the temporary is removed and outputPath is left
// untouched.
func (Library) Encrypt(inputPath, outputPath, passphrase string, format Format) error {
	plaintext, err := os.ReadFile(inputPath)
	if err != nil {
		return &perr.IoError{Path: inputPath, Kind: "read", Err: err}
	}

	recipient, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return &perr.InvalidOperation{Operation: "ageadapter.encrypt", Reason: fmt.Sprintf("build recipient: %v", err)}
	}

	pending, err := renameio.NewPendingFile(outputPath)
	if err != nil {
		return &perr.IoError{Path: outputPath, Kind: "open_temp", Err: err}
	}
	defer pending.Cleanup()

	var dst io.Writer = pending
	var armorCloser io.Closer
	if format == AsciiArmor {
		aw := armor.NewWriter(pending)
		dst = aw
		armorCloser = aw
	}

	w, err := age.Encrypt(dst, recipient)
	if err != nil {
		return &perr.InternalError{Detail: fmt.Sprintf("age encrypt: %v", err)}
	}
	if _, err := w.Write(plaintext); err != nil {
		return &perr.InternalError{Detail: fmt.Sprintf("write ciphertext: %v", err)}
	}
	if err := w.Close(); err != nil {
		return &perr.InternalError{Detail: fmt.Sprintf("finalise ciphertext: %v", err)}
	}
	if armorCloser != nil {
		if err := armorCloser.Close(); err != nil {
			return &perr.InternalError{Detail: fmt.Sprintf("finalise armor: %v", err)}
		}
	}

	if err := pending.CloseAtomicallyReplace(); err != nil {
		return &perr.IoError{Path: outputPath, Kind: "rename", Err: err}
	}
	return nil
}

// Decrypt satisfies Adapter using age.Decrypt, auto-detecting an armored
// input by its header line.
func (Library) Decrypt(inputPath, outputPath, passphrase string) error {
	armored, err := isArmored(inputPath)
	if err != nil {
		return err
	}

	f, err := os.Open(inputPath)
	if err != nil {
		return &perr.IoError{Path: inputPath, Kind: "open", Err: err}
	}
	defer f.Close()

	var src io.Reader = f
	if armored {
		src = armor.NewReader(f)
	}

	identity, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return &perr.InvalidOperation{Operation: "ageadapter.decrypt", Reason: fmt.Sprintf("build identity: %v", err)}
	}

	r, err := age.Decrypt(src, identity)
	if err != nil {
		return &perr.AuthenticationFailed{}
	}

	pending, err := renameio.NewPendingFile(outputPath)
	if err != nil {
		return &perr.IoError{Path: outputPath, Kind: "open_temp", Err: err}
	}
	defer pending.Cleanup()

	if _, err := io.Copy(pending, r); err != nil {
		return &perr.AuthenticationFailed{}
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return &perr.IoError{Path: outputPath, Kind: "rename", Err: err}
	}
	return nil
}

// HealthCheck confirms the library cipher is callable: it round-trips a
// trivial payload through a fixed passphrase entirely in memory.
func (Library) HealthCheck() error {
	recipient, err := age.NewScryptRecipient("padlock-health-check-passphrase")
	if err != nil {
		return &perr.CipherUnavailable{Detail: fmt.Sprintf("library recipient: %v", err)}
	}
	identity, err := age.NewScryptIdentity("padlock-health-check-passphrase")
	if err != nil {
		return &perr.CipherUnavailable{Detail: fmt.Sprintf("library identity: %v", err)}
	}

	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, recipient)
	if err != nil {
		return &perr.CipherUnavailable{Detail: fmt.Sprintf("library encrypt: %v", err)}
	}
	if _, err := w.Write([]byte("ok")); err != nil {
		return &perr.CipherUnavailable{Detail: fmt.Sprintf("library write: %v", err)}
	}
	if err := w.Close(); err != nil {
		return &perr.CipherUnavailable{Detail: fmt.Sprintf("library close: %v", err)}
	}

	r, err := age.Decrypt(&buf, identity)
	if err != nil {
		return &perr.CipherUnavailable{Detail: fmt.Sprintf("library decrypt: %v", err)}
	}
	got, err := io.ReadAll(r)
	if err != nil || string(got) != "ok" {
		return &perr.CipherUnavailable{Detail: "library round-trip mismatch"}
	}
	return nil
}

var _ Adapter = Library{}
