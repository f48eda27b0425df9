// Command pdakernel is the reference CLI front end for the PDA
// deterministic kernel: validate, compile and run subcommands that
// exercise the validator, the compiler, and (run) the lease manager and
// FILE executor end-to-end against a static config file (spec §6
// "CLI/config surface").
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ssbking/personal-digital-authority/internal/config"
	"github.com/ssbking/personal-digital-authority/internal/idempotency"
	"github.com/ssbking/personal-digital-authority/internal/suggest"
	"github.com/ssbking/personal-digital-authority/pkg/ast"
	"github.com/ssbking/personal-digital-authority/pkg/compiler"
	"github.com/ssbking/personal-digital-authority/pkg/dsl"
	"github.com/ssbking/personal-digital-authority/pkg/executor/file"
	"github.com/ssbking/personal-digital-authority/pkg/keymaterial"
	"github.com/ssbking/personal-digital-authority/pkg/kernelerrors"
	"github.com/ssbking/personal-digital-authority/pkg/lease"
	"github.com/ssbking/personal-digital-authority/pkg/trust"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "pdakernel",
		Short:         "Validate, compile, lease, and execute Personal Digital Authority DSL statements",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "pdakernel.yaml", "path to kernel configuration")

	rootCmd.AddCommand(
		newValidateCmd(&configPath),
		newCompileCmd(&configPath),
		newRunCmd(&configPath),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func readStatement(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("reading statement from stdin: %w", err)
	}
	return string(data), nil
}

func newValidateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [statement]",
		Short: "Run a DSL statement through the validator and print its AST or error",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			text, err := readStatement(args)
			if err != nil {
				return err
			}

			v := dsl.New(cfg.HardNoConfig())
			result := v.Validate(text)
			if !result.Valid() {
				hint := didYouMean(result.Err.Code, result.Err.Context["got"])
				return fmt.Errorf("%s%s", result.Err.Error(), hint)
			}
			return printJSON(astView(*result.AST))
		},
	}
}

func newCompileCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "compile [statement]",
		Short: "Validate and compile a DSL statement into a TaskManifest",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			text, err := readStatement(args)
			if err != nil {
				return err
			}

			v := dsl.New(cfg.HardNoConfig())
			vr := v.Validate(text)
			if !vr.Valid() {
				return fmt.Errorf("%s", vr.Err.Error())
			}

			c := compiler.New()
			man, cerr := c.Compile(*vr.AST)
			if cerr != nil {
				return fmt.Errorf("%s", cerr.Error())
			}
			return printJSON(man)
		},
	}
}

func newRunCmd(configPath *string) *cobra.Command {
	var baseDir string

	cmd := &cobra.Command{
		Use:   "run [statement]",
		Short: "Validate, compile, lease, and execute a DSL statement end-to-end against the FILE executor",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			text, err := readStatement(args)
			if err != nil {
				return err
			}

			v := dsl.New(cfg.HardNoConfig())
			vr := v.Validate(text)
			if !vr.Valid() {
				return fmt.Errorf("%s", vr.Err.Error())
			}

			c := compiler.New()
			man, cerr := c.Compile(*vr.AST)
			if cerr != nil {
				return fmt.Errorf("%s", cerr.Error())
			}

			if cfg.LeaseScheme != config.LeaseSchemeHMAC {
				return fmt.Errorf("run signs leases with HMAC only; lease_scheme is %q", cfg.LeaseScheme)
			}
			hmacSecret := keymaterial.NewSecret([]byte(os.Getenv(cfg.Keys.HMACKeyEnvVar)))
			leaseMgr := lease.NewHMACManager(hmacSecret, cfg.LeaseDuration.Duration())

			snapshot := trust.Snapshot{TrustScore: 1.0, MinimumRequired: cfg.Trust.MinimumRequired}
			lr := leaseMgr.Evaluate(man, snapshot, time.Now(), nil, nil, nil)
			if !lr.Granted() {
				return fmt.Errorf("%s", lr.Err.Error())
			}

			cache := idempotency.NewMemoryCache()
			dirs := cfg.AllowedBaseDirectories
			if baseDir != "" {
				dirs = []string{baseDir}
			}
			fileExec := file.New(leaseMgr.Verify, cache, hmacSigner{hmacSecret}, dirs, file.NopRecorder{})

			result := fileExec.Execute(cmd.Context(), man, *lr.Lease)
			return printJSON(result)
		},
	}
	cmd.Flags().StringVar(&baseDir, "base-dir", "", "override the configured allowed base directory")
	return cmd
}

// hmacSigner adapts keymaterial.Secret to executor.Signer for the CLI's
// self-contained HMAC deployment mode (spec §9 "Cryptographic
// primitives": HMAC permitted when the kernel also invokes the
// executor).
type hmacSigner struct {
	secret keymaterial.Secret
}

func (h hmacSigner) Sign(message []byte) []byte {
	return keymaterial.HMACSign(h.secret, message)
}

func astView(tree ast.AST) map[string]interface{} {
	hash, _ := tree.Hash()
	return map[string]interface{}{
		"subject": map[string]string{"type": string(tree.Subject.Type), "id": tree.Subject.ID},
		"verb":    map[string]string{"class": string(tree.Verb.Class), "action": tree.Verb.Action},
		"object":  map[string]string{"type": string(tree.Object.Type), "id": tree.Object.ID},
		"metadata": map[string]interface{}{
			"scope":        tree.Metadata.Scope,
			"reversible":   tree.Metadata.Reversible,
			"sensitivity":  string(tree.Metadata.Sensitivity),
			"hrc_required": tree.Metadata.HRCRequired,
		},
		"task_id": hash,
	}
}

// knownSubjectTypes, knownVerbClasses, and knownObjectTypes back the
// "did you mean" CLI diagnostic below — display-only, never fed back
// into validation (spec Non-goal: no auto-correction).
var (
	knownSubjectTypes = []string{"USER", "SYSTEM"}
	knownVerbClasses  = []string{"MUTATE", "TRANSFORM", "DISSEMINATE"}
	knownObjectTypes  = []string{"FILE", "FOLDER", "EMAIL", "DATASET", "DEVICE"}
)

// didYouMean formats a one-line hint for an UNKNOWN_*_TYPE /
// UNKNOWN_VERB_CLASS validator rejection, or "" if nothing ranks.
func didYouMean(code kernelerrors.Code, got string) string {
	if got == "" {
		return ""
	}
	var vocabulary []string
	switch code {
	case kernelerrors.UnknownSubjectType:
		vocabulary = knownSubjectTypes
	case kernelerrors.UnknownVerbClass:
		vocabulary = knownVerbClasses
	case kernelerrors.UnknownObjectType:
		vocabulary = knownObjectTypes
	default:
		return ""
	}

	matches := suggest.Closest(got, vocabulary, 1)
	if len(matches) == 0 {
		return ""
	}
	return fmt.Sprintf(" (did you mean %q?)", matches[0])
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
