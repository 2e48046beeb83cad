package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/oodx/padlock/internal/ageadapter"
	"github.com/oodx/padlock/internal/auditlog"
	"github.com/oodx/padlock/internal/color"
	"github.com/oodx/padlock/internal/config"
	"github.com/oodx/padlock/internal/orchestrator"
	"github.com/oodx/padlock/internal/perr"
)

// Exit codes, per the external-interfaces contract: 0 success; 1 operational
// failure (including any non-empty failed_files); 2 refusal by validator;
// 3 cipher unavailable; 4 refusal of emergency without --force.
const (
	exitSuccess           = 0
	exitOperationFailure  = 1
	exitValidatorRefusal  = 2
	exitCipherUnavailable = 3
	exitEmergencyNoForce  = 4
)

var (
	configFile string
	verbose    bool
	auditPath  string
)

func main() {
	color.Init()
	root := buildRoot()
	if err := root.Execute(); err != nil {
		os.Exit(exitCodeFor(err))
	}
}

func buildRoot() *cobra.Command {
	root := &cobra.Command{
		Use:          "padlock",
		Short:        "Age-backed repository encryption with hierarchical key authority",
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&configFile, "config", "c", "padlock.yaml", "path to config file")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print per-file progress")
	root.PersistentFlags().StringVar(&auditPath, "audit-log", "", "override the configured audit log path")

	root.AddCommand(
		lockCmd(),
		unlockCmd(),
		statusCmd(),
		rotateCmd(),
		testCmd(),
		emergencyCmd(),
		logCmd(),
	)
	return root
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config %q: %w", configFile, err)
	}
	if auditPath != "" {
		cfg.AuditLogPath = auditPath
	}
	return cfg, nil
}

func newOrchestrator(cfg config.Config) *orchestrator.Orchestrator {
	o := orchestrator.New(cfg.Factory().Build(), cfg.Policy())
	o.Audit = auditlog.New(cfg.AuditLogPath)
	return o
}

// promptPassphrase asks interactively via a masked huh input whenever flag
// is empty; it does not check whether stdin is a terminal. This is the
// CLI's fallback for --passphrase, never the orchestrator's concern.
func promptPassphrase(title, flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	var passphrase string
	err := huh.NewInput().
		Title(title).
		EchoMode(huh.EchoModePassword).
		Value(&passphrase).
		Run()
	if err != nil {
		return "", fmt.Errorf("read passphrase: %w", err)
	}
	return passphrase, nil
}

// --- lock --------------------------------------------------------------------

func lockCmd() *cobra.Command {
	var passphrase string
	var armor bool
	var removeSource bool
	var backup bool
	var pattern string
	var recursive bool

	cmd := &cobra.Command{
		Use:   "lock <path>",
		Short: "Encrypt every eligible plaintext file beneath path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			pass, err := promptPassphrase("Lock passphrase", passphrase)
			if err != nil {
				return err
			}

			format := cfg.Format()
			if armor {
				format = ageadapter.AsciiArmor
			}

			o := newOrchestrator(cfg)
			result, err := o.Lock(args[0], pass, orchestrator.LockOptions{
				Recursive:        recursive,
				Format:           format,
				PatternFilter:    pattern,
				BackupBeforeLock: backup || !removeSource,
			})
			if err != nil {
				return err
			}
			printResult(cmd, "locked", result)
			if len(result.FailedFiles) > 0 {
				return errOperationFailure
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&passphrase, "passphrase", "", "encryption passphrase (prompted if omitted)")
	cmd.Flags().BoolVar(&armor, "armor", false, "write ASCII-armored output")
	cmd.Flags().BoolVar(&removeSource, "remove-source", true, "remove the plaintext after a successful encrypt")
	cmd.Flags().BoolVar(&backup, "backup", false, "keep a .bak copy of the plaintext before encrypting")
	cmd.Flags().StringVar(&pattern, "pattern", "", "glob filter on the file base name")
	cmd.Flags().BoolVar(&recursive, "recursive", true, "descend into subdirectories")
	return cmd
}

// --- unlock ------------------------------------------------------------------

func unlockCmd() *cobra.Command {
	var passphrase string
	var removeEncrypted bool
	var verifyFirst bool
	var pattern string
	var recursive bool

	cmd := &cobra.Command{
		Use:   "unlock <path>",
		Short: "Decrypt every eligible ciphertext file beneath path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			pass, err := promptPassphrase("Unlock passphrase", passphrase)
			if err != nil {
				return err
			}

			o := newOrchestrator(cfg)
			result, err := o.Unlock(args[0], pass, orchestrator.UnlockOptions{
				Recursive:          recursive,
				PatternFilter:      pattern,
				VerifyBeforeUnlock: verifyFirst,
				PreserveEncrypted:  !removeEncrypted,
			})
			if err != nil {
				return err
			}
			printResult(cmd, "unlocked", result)
			if len(result.FailedFiles) > 0 {
				return errOperationFailure
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&passphrase, "passphrase", "", "decryption passphrase (prompted if omitted)")
	cmd.Flags().BoolVar(&removeEncrypted, "remove-encrypted", true, "remove the ciphertext after a successful decrypt")
	cmd.Flags().BoolVar(&verifyFirst, "verify-first", false, "probe-decrypt before committing the plaintext")
	cmd.Flags().StringVar(&pattern, "pattern", "", "glob filter on the file base name")
	cmd.Flags().BoolVar(&recursive, "recursive", true, "descend into subdirectories")
	return cmd
}

// --- status ------------------------------------------------------------------

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <path>",
		Short: "Report the encryption state of a tree without modifying it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			o := newOrchestrator(cfg)
			state, err := o.Status(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "total: %d  encrypted: %d  unencrypted: %d  (%.1f%% encrypted)\n",
				state.TotalFiles, state.EncryptedFiles, state.UnencryptedFiles, state.EncryptionPercentage)
			for _, f := range state.FailedFiles {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s  %s\n", color.BoldRed("FAIL"), f.Path+": "+f.Reason)
			}
			return nil
		},
	}
}

// --- rotate ------------------------------------------------------------------

func rotateCmd() *cobra.Command {
	var oldPass, newPass string

	cmd := &cobra.Command{
		Use:   "rotate <path>",
		Short: "Re-encrypt every ciphertext file beneath path under a new passphrase",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			old, err := promptPassphrase("Current passphrase", oldPass)
			if err != nil {
				return err
			}
			next, err := promptPassphrase("New passphrase", newPass)
			if err != nil {
				return err
			}

			o := newOrchestrator(cfg)
			result, err := o.Rotate(args[0], old, next)
			if err != nil {
				return err
			}
			printResult(cmd, "rotated", result)
			if len(result.FailedFiles) > 0 {
				return errOperationFailure
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&oldPass, "old-passphrase", "", "current passphrase (prompted if omitted)")
	cmd.Flags().StringVar(&newPass, "new-passphrase", "", "new passphrase (prompted if omitted)")
	return cmd
}

// --- test --------------------------------------------------------------------

func testCmd() *cobra.Command {
	var passphrase string

	cmd := &cobra.Command{
		Use:   "test [path]",
		Short: "Health-check the cipher, or authenticate every encrypted file beneath path",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			adapter := cfg.Factory().Build()

			if len(args) == 0 {
				if err := adapter.HealthCheck(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "cipher healthy")
				return nil
			}

			pass, err := promptPassphrase("Verify passphrase", passphrase)
			if err != nil {
				return err
			}
			o := newOrchestrator(cfg)
			result, err := o.Verify(args[0], pass)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d verified, %d failed\n", result.OverallStatus, len(result.VerifiedFiles), len(result.FailedFiles))
			if result.OverallStatus != "Healthy" {
				return errOperationFailure
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&passphrase, "passphrase", "", "passphrase to verify against (prompted if omitted)")
	return cmd
}

// --- emergency -----------------------------------------------------------------

func emergencyCmd() *cobra.Command {
	var passphrase string
	var force bool

	cmd := &cobra.Command{
		Use:   "emergency <path>",
		Short: "Attempt recovery of encrypted files, bypassing normal policy checks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			o := newOrchestrator(cfg)
			if !force {
				_, err := o.EmergencyUnlock(args[0], "", force)
				return err
			}

			pass, err := promptPassphrase("Recovery passphrase", passphrase)
			if err != nil {
				return err
			}
			result, err := o.EmergencyUnlock(args[0], pass, force)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), color.BoldYellow("security events:"))
			for _, e := range result.SecurityEvents {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", e)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "recovery actions:")
			for _, a := range result.RecoveryActions {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", a)
			}
			printResult(cmd, "recovered", result.OperationResult)
			if len(result.FailedFiles) > 0 {
				return errOperationFailure
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&passphrase, "passphrase", "", "recovery passphrase (prompted if omitted)")
	cmd.Flags().BoolVar(&force, "force", false, "required: explicit acknowledgement of bypassed policy checks")
	return cmd
}

// --- log -----------------------------------------------------------------------

func logCmd() *cobra.Command {
	var subsystem string
	var limit int

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show the audit log",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			records, err := auditlog.Read(cfg.AuditLogPath, subsystem, limit)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "(no log entries)")
				return nil
			}
			for _, r := range records {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %-5s %-12s %s\n",
					r.Timestamp.Local().Format(time.DateTime), r.Level, r.Subsystem, r.Message)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&subsystem, "subsystem", "", "filter by subsystem")
	cmd.Flags().IntVar(&limit, "limit", 0, "show only the last N entries (0 = all)")
	return cmd
}

// --- result rendering and exit codes -------------------------------------------

var errOperationFailure = fmt.Errorf("operation completed with failures")

func printResult(cmd *cobra.Command, verb string, result orchestrator.OperationResult) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s %d file(s), %d failure(s)\n", verb, len(result.ProcessedFiles), len(result.FailedFiles))
	if !verbose {
		return
	}
	for _, p := range result.ProcessedFiles {
		fmt.Fprintf(cmd.OutOrStdout(), "  %s %s\n", color.Green("ok"), p)
	}
	for _, f := range result.FailedFiles {
		fmt.Fprintf(cmd.OutOrStdout(), "  %s %s: %s\n", color.BoldRed("FAIL"), f.Path, f.Reason)
	}
}

// exitCodeFor maps a returned error to the external exit-code contract.
func exitCodeFor(err error) int {
	if err == errOperationFailure {
		return exitOperationFailure
	}

	var secViol *perr.SecurityViolation
	if errors.As(err, &secViol) {
		if secViol.Rule == "emergency.force_required" {
			return exitEmergencyNoForce
		}
		return exitValidatorRefusal
	}

	var cipherErr *perr.CipherUnavailable
	if errors.As(err, &cipherErr) {
		return exitCipherUnavailable
	}

	return exitOperationFailure
}
