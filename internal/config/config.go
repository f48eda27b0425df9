// Package config loads the kernel's static startup configuration
// (spec §6 "CLI/config surface", §9 "Global state"): allowlists, the
// secret-key source, and the deployment-fixed choices the spec leaves
// open (task_id scheme, lease scheme and duration, Hard-No lists).
// Loaded once at startup and immutable thereafter; nothing in this
// package performs runtime mutation.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ssbking/personal-digital-authority/pkg/dsl"
)

// Duration wraps time.Duration for YAML unmarshaling as a Go duration
// string ("60s", "500ms").
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the time.Duration value.
func (d Duration) Duration() time.Duration { return time.Duration(d) }

// TaskIDScheme is the deployment's fixed choice between the two forms
// spec §9 Open Questions allows. Only TaskIDSchemeSHA256Hex is
// implemented: pkg/compiler always derives task_id as SHA-256 hex,
// whatever this field holds.
type TaskIDScheme string

const (
	TaskIDSchemeSHA256Hex TaskIDScheme = "sha256_hex"
	TaskIDSchemeUUIDv5    TaskIDScheme = "uuid_v5"
)

// LeaseScheme is the deployment's fixed signing scheme.
type LeaseScheme string

const (
	LeaseSchemeHMAC    LeaseScheme = "hmac"
	LeaseSchemeEd25519 LeaseScheme = "ed25519"
)

// Config is the immutable, validated kernel configuration.
type Config struct {
	Environment string `yaml:"environment"`

	TaskIDScheme  TaskIDScheme `yaml:"task_id_scheme"`
	LeaseScheme   LeaseScheme  `yaml:"lease_scheme"`
	LeaseDuration Duration     `yaml:"lease_duration"`

	Trust TrustSettings `yaml:"trust"`
	Keys  KeySettings   `yaml:"keys"`

	AllowedBaseDirectories []string `yaml:"allowed_base_directories"`
	AllowedDevices         []string `yaml:"allowed_devices"`
	AllowedApps            []string `yaml:"allowed_apps"`
	AllowedScopes          []string `yaml:"allowed_scopes"`

	HardNo HardNoSettings `yaml:"hard_no"`

	AdapterVersion string `yaml:"adapter_version"`
}

// TrustSettings carries the minimum trust threshold the lease manager
// compares a TrustSnapshot against, if not itself supplied per-snapshot.
type TrustSettings struct {
	MinimumRequired float64 `yaml:"minimum_required"`
}

// KeySettings describes where signing key material is sourced from.
// Values are env var NAMES, never secret values, so the config file
// itself never carries key material (spec §9 "Global state": secrets
// are process-local, never persisted alongside static config).
type KeySettings struct {
	HMACKeyEnvVar           string `yaml:"hmac_key_env_var"`
	Ed25519PrivateKeyEnvVar string `yaml:"ed25519_private_key_env_var"`
}

// HardNoSettings overrides dsl.DefaultHardNoConfig's closed lists for
// deployments that need a different reference list (spec §9 Open
// Questions: "implementers must publish their closed list").
type HardNoSettings struct {
	DeleteActions               []string `yaml:"delete_actions"`
	CredentialActions           []string `yaml:"credential_actions"`
	CredentialIdentifierMarkers []string `yaml:"credential_identifier_markers"`
	FinancialActions            []string `yaml:"financial_actions"`
}

// Load reads, parses, and validates a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.TaskIDScheme == "" {
		c.TaskIDScheme = TaskIDSchemeSHA256Hex
	}
	if c.LeaseScheme == "" {
		c.LeaseScheme = LeaseSchemeHMAC
	}
	if c.LeaseDuration == 0 {
		c.LeaseDuration = Duration(60 * time.Second)
	}
	if c.Trust.MinimumRequired == 0 {
		c.Trust.MinimumRequired = 0.5
	}
	if c.AdapterVersion == "" {
		c.AdapterVersion = "v1"
	}
}

func (c *Config) validate() error {
	var problems []string

	if c.TaskIDScheme != TaskIDSchemeSHA256Hex && c.TaskIDScheme != TaskIDSchemeUUIDv5 {
		problems = append(problems, "task_id_scheme must be sha256_hex or uuid_v5")
	}
	if c.LeaseScheme != LeaseSchemeHMAC && c.LeaseScheme != LeaseSchemeEd25519 {
		problems = append(problems, "lease_scheme must be hmac or ed25519")
	}
	if c.LeaseDuration.Duration() <= 0 {
		problems = append(problems, "lease_duration must be positive")
	}
	if c.Trust.MinimumRequired < 0 || c.Trust.MinimumRequired > 1 {
		problems = append(problems, "trust.minimum_required must be in [0, 1]")
	}
	if len(c.AllowedBaseDirectories) == 0 {
		problems = append(problems, "allowed_base_directories must not be empty")
	}
	if c.LeaseScheme == LeaseSchemeHMAC && c.Keys.HMACKeyEnvVar == "" {
		problems = append(problems, "keys.hmac_key_env_var is required when lease_scheme is hmac")
	}
	if c.LeaseScheme == LeaseSchemeEd25519 && c.Keys.Ed25519PrivateKeyEnvVar == "" {
		problems = append(problems, "keys.ed25519_private_key_env_var is required when lease_scheme is ed25519")
	}

	if len(problems) > 0 {
		msg := "configuration validation failed:"
		for _, p := range problems {
			msg += "\n  - " + p
		}
		return errors.New(msg)
	}
	return nil
}

// HardNoConfig converts the deployment's HardNoSettings (if any were
// supplied) into the dsl package's HardNoConfig, falling back to
// dsl.DefaultHardNoConfig() when the deployment left a section empty.
func (c *Config) HardNoConfig() dsl.HardNoConfig {
	def := dsl.DefaultHardNoConfig()
	cfg := dsl.HardNoConfig{
		DeleteActions:               def.DeleteActions,
		CredentialActions:           def.CredentialActions,
		CredentialIdentifierMarkers: def.CredentialIdentifierMarkers,
		FinancialActions:            def.FinancialActions,
	}
	if len(c.HardNo.DeleteActions) > 0 {
		cfg.DeleteActions = toSet(c.HardNo.DeleteActions)
	}
	if len(c.HardNo.CredentialActions) > 0 {
		cfg.CredentialActions = toSet(c.HardNo.CredentialActions)
	}
	if len(c.HardNo.CredentialIdentifierMarkers) > 0 {
		cfg.CredentialIdentifierMarkers = toSet(c.HardNo.CredentialIdentifierMarkers)
	}
	if len(c.HardNo.FinancialActions) > 0 {
		cfg.FinancialActions = toSet(c.HardNo.FinancialActions)
	}
	return cfg
}

func toSet(vals []string) map[string]bool {
	m := make(map[string]bool, len(vals))
	for _, v := range vals {
		m[v] = true
	}
	return m
}
