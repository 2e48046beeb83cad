package ageadapter

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/creack/pty"
	"golang.org/x/term"

	"github.com/oodx/padlock/internal/perr"
)

// Subprocess drives an external `age` binary. It is selected when the
// library strategy fails to initialise, or when explicitly configured.
//
// age reads its passphrase prompt from its controlling terminal, not from
// stdin, specifically so stdin/stdout remain free for the data stream. A
// subprocess launched without a controlling terminal of its own cannot open
// one, so this strategy gives the child a dedicated pseudo-terminal via
// creack/pty purely to answer that prompt; plaintext and ciphertext always
// flow through file paths passed as arguments, never through the pty.
type Subprocess struct {
	// BinaryPath is the `age` executable to invoke. Empty resolves via PATH.
	BinaryPath string
	// PromptTimeout bounds how long a passphrase write waits to be accepted.
	PromptTimeout time.Duration
}

func (s Subprocess) binary() string {
	if s.BinaryPath != "" {
		return s.BinaryPath
	}
	return "age"
}

func (s Subprocess) timeout() time.Duration {
	if s.PromptTimeout > 0 {
		return s.PromptTimeout
	}
	return 5 * time.Second
}

// assertNotInheritedTTY guards against accidentally wiring the parent
// process's own controlling terminal into a child's stdio, which would let
// the child's passphrase prompt bleed onto a real interactive session
// instead of the dedicated pty this strategy constructs.
func assertNotInheritedTTY(f *os.File) error {
	if term.IsTerminal(int(f.Fd())) {
		return &perr.InternalError{Detail: "refusing to inherit the parent's controlling terminal for a subprocess passphrase prompt"}
	}
	return nil
}

// Encrypt shells out to `age -p -o <temp> inputPath`, answering the
// passphrase prompt (asked twice, for confirmation) over a dedicated pty.
func (s Subprocess) Encrypt(inputPath, outputPath, passphrase string, format Format) error {
	args := []string{"-p", "-o", outputPath}
	if format == AsciiArmor {
		args = append(args, "-a")
	}
	args = append(args, inputPath)
	return s.runWithPassphrase(args, passphrase, 2)
}

// Decrypt shells out to `age -d -o <temp> inputPath`, answering the
// passphrase prompt (asked once) over a dedicated pty.
func (s Subprocess) Decrypt(inputPath, outputPath, passphrase string) error {
	args := []string{"-d", "-o", outputPath, inputPath}
	return s.runWithPassphrase(args, passphrase, 1)
}

// runWithPassphrase spawns the binary attached to a fresh pty, writes
// passphrase followed by a newline promptCount times, and waits for exit.
// age's -o target is redirected to a sibling temporary that is renamed over
// the real output only after a clean exit and removed on every other path.
func (s Subprocess) runWithPassphrase(args []string, passphrase string, promptCount int) error {
	var outputPath, tmpPath string
	for i := 0; i+1 < len(args); i++ {
		if args[i] == "-o" {
			outputPath = args[i+1]
			tmpPath = filepath.Join(filepath.Dir(outputPath), "."+filepath.Base(outputPath)+".padlock-tmp")
			args[i+1] = tmpPath
			break
		}
	}
	defer os.Remove(tmpPath)

	cmd := exec.Command(s.binary(), args...)
	ptmx, err := pty.Start(cmd)
	if err != nil {
		if _, ok := err.(*exec.Error); ok {
			return &perr.CipherUnavailable{Detail: fmt.Sprintf("age binary not found: %v", err)}
		}
		return &perr.CipherUnavailable{Detail: fmt.Sprintf("start subprocess: %v", err)}
	}
	defer ptmx.Close()

	if err := assertNotInheritedTTY(ptmx); err != nil {
		_ = cmd.Process.Kill()
		return err
	}

	line := passphrase + "\n"
	for i := 0; i < promptCount; i++ {
		ptmx.SetWriteDeadline(time.Now().Add(s.timeout()))
		if _, err := ptmx.Write([]byte(line)); err != nil {
			_ = cmd.Process.Kill()
			return &perr.InternalError{Detail: fmt.Sprintf("write passphrase to pty: %v", err)}
		}
	}

	err = cmd.Wait()
	if err == nil {
		if err := os.Rename(tmpPath, outputPath); err != nil {
			return &perr.IoError{Path: outputPath, Kind: "rename", Err: err}
		}
		return nil
	}
	if _, ok := err.(*exec.ExitError); ok {
		// age's own exit-code semantics do not distinguish a wrong
		// passphrase from other refusals on the wire; treat any non-zero
		// exit from a correctly-started process as an authentication
		// failure, matching the library strategy's single AEAD-open path.
		return &perr.AuthenticationFailed{}
	}
	return &perr.InternalError{Detail: fmt.Sprintf("wait subprocess: %v", err)}
}

// HealthCheck confirms the configured age binary exists and reports its
// version without touching any file.
func (s Subprocess) HealthCheck() error {
	path, err := exec.LookPath(s.binary())
	if err != nil {
		return &perr.CipherUnavailable{Detail: fmt.Sprintf("age binary not found on PATH: %v", err)}
	}
	cmd := exec.Command(path, "--version")
	if err := cmd.Run(); err != nil {
		return &perr.CipherUnavailable{Detail: fmt.Sprintf("age --version failed: %v", err)}
	}
	return nil
}

var _ Adapter = Subprocess{}
