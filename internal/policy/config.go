// Package policy loads the governance configuration: the translator
// vocabulary and rule table, arbitration parameters, classifier task
// types, drift thresholds, storage location and alert webhooks. Configuration is read once
// at startup and is never applied retroactively to existing ledger nodes.
package policy

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/metadag/internal/alert"
	"github.com/ppiankov/metadag/internal/arbitrate"
	"github.com/ppiankov/metadag/internal/drift"
	"github.com/ppiankov/metadag/internal/model"
	"github.com/ppiankov/metadag/internal/store"
	"github.com/ppiankov/metadag/internal/translate"
)

// SupportedVersions is the config schema range this build understands.
const SupportedVersions = "^1"

// ErrInvalidConfig wraps every load or validation failure.
var ErrInvalidConfig = errors.New("policy: invalid configuration")

// AnchorConfig is one semantic anchor and its trigger words.
type AnchorConfig struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

// RuleConfig is one named policy-cluster predicate. Keywords match as
// case-insensitive substrings; Expression is a CEL boolean over `text`
// and `lower`. A rule with both matches when either does.
type RuleConfig struct {
	Name       string   `yaml:"name"`
	Keywords   []string `yaml:"keywords,omitempty"`
	Expression string   `yaml:"expression,omitempty"`
}

// TranslatorConfig configures text-to-event translation.
type TranslatorConfig struct {
	ProtocolVersion string         `yaml:"protocol_version"`
	MarkerMode      string         `yaml:"marker_mode"`
	RiskControlRule string         `yaml:"risk_control_rule"`
	Anchors         []AnchorConfig `yaml:"anchors"`
	Rules           []RuleConfig   `yaml:"rules"`
}

// ArbitrationConfig configures L-α arbitration and default candidate derivation.
type ArbitrationConfig struct {
	TrustedRoot      string             `yaml:"trusted_root"`
	TrustedAliases   []string           `yaml:"trusted_aliases"`
	Mode             string             `yaml:"mode"`
	Bound            float64            `yaml:"bound"`
	VetoClass        string             `yaml:"veto_class"`
	CandidateWeights map[string]float64 `yaml:"candidate_weights"`
}

// ClassifierConfig configures classification.
type ClassifierConfig struct {
	SystemTaskTypes []string `yaml:"system_task_types"`
}

// DriftConfig configures drift scoring.
type DriftConfig struct {
	AnomalyThreshold  float64 `yaml:"anomaly_threshold"`
	SnapshotThreshold float64 `yaml:"snapshot_threshold"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Driver     string `yaml:"driver"`
	StateDir   string `yaml:"state_dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// PolicyConfig holds all governance parameters.
type PolicyConfig struct {
	Version     string                `yaml:"version"`
	Translator  TranslatorConfig      `yaml:"translator"`
	Arbitration ArbitrationConfig     `yaml:"arbitration"`
	Classifier  ClassifierConfig      `yaml:"classifier"`
	Drift       DriftConfig           `yaml:"drift"`
	Storage     StorageConfig         `yaml:"storage"`
	Alerts      []alert.WebhookConfig `yaml:"alerts"`
}

// DefaultConfig returns the built-in governance configuration.
func DefaultConfig() *PolicyConfig {
	anchors := translate.DefaultAnchors()
	anchorCfg := make([]AnchorConfig, len(anchors))
	for i, a := range anchors {
		anchorCfg[i] = AnchorConfig{Name: a.Name, Keywords: a.Keywords}
	}

	var rules []RuleConfig
	for _, r := range translate.DefaultRules() {
		kw := r.(translate.KeywordRule)
		rules = append(rules, RuleConfig{Name: kw.RuleName, Keywords: kw.Keywords})
	}

	arb := arbitrate.DefaultConfig()
	return &PolicyConfig{
		Version: "1.0.0",
		Translator: TranslatorConfig{
			ProtocolVersion: "V4.5",
			MarkerMode:      translate.MarkerContent,
			RiskControlRule: translate.DefaultRiskControlRule,
			Anchors:         anchorCfg,
			Rules:           rules,
		},
		Arbitration: ArbitrationConfig{
			TrustedRoot:    arb.TrustedRoot,
			TrustedAliases: arb.TrustedAliases,
			Mode:           string(arb.Mode),
			Bound:          arb.Bound,
			VetoClass:      arb.VetoClass,
			CandidateWeights: map[string]float64{
				string(model.RiskLow):      0.05,
				string(model.RiskMedium):   0.25,
				string(model.RiskHigh):     0.75,
				string(model.RiskCritical): 1.0,
				string(model.RiskUnknown):  0.5,
			},
		},
		Classifier: ClassifierConfig{
			SystemTaskTypes: []string{model.TaskSystemMeta},
		},
		Drift: DriftConfig{
			AnomalyThreshold:  drift.DefaultAnomalyThreshold,
			SnapshotThreshold: drift.DefaultSnapshotThreshold,
		},
		Storage: StorageConfig{
			Driver: store.DriverJSON,
		},
	}
}

// Validate reports every problem in the configuration, joined into one
// error wrapping ErrInvalidConfig.
func (c *PolicyConfig) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if v, err := semver.NewVersion(c.Version); err != nil {
		add("version %q: %v", c.Version, err)
	} else {
		constraint, _ := semver.NewConstraint(SupportedVersions)
		if !constraint.Check(v) {
			add("version %s not supported (want %s)", c.Version, SupportedVersions)
		}
	}

	switch c.Translator.MarkerMode {
	case translate.MarkerContent, translate.MarkerNonce:
	default:
		add("translator.marker_mode %q: want %s or %s", c.Translator.MarkerMode, translate.MarkerContent, translate.MarkerNonce)
	}
	if len(c.Translator.Rules) == 0 {
		add("translator.rules: at least one rule is required")
	}
	names := map[string]bool{}
	for i, r := range c.Translator.Rules {
		switch {
		case r.Name == "":
			add("translator.rules[%d]: name is required", i)
		case names[r.Name]:
			add("translator.rules[%d]: duplicate name %q", i, r.Name)
		}
		names[r.Name] = true
		if len(r.Keywords) == 0 && r.Expression == "" {
			add("translator.rules[%d] %s: needs keywords or an expression", i, r.Name)
		}
		if r.Expression != "" {
			if _, err := translate.NewCELRule(r.Name, r.Expression); err != nil {
				add("translator.rules[%d]: %v", i, err)
			}
		}
	}
	if rc := c.Translator.RiskControlRule; rc != "" && !names[rc] {
		add("translator.risk_control_rule %q is not in the rule table", rc)
	}
	for i, a := range c.Translator.Anchors {
		if a.Name == "" || len(a.Keywords) == 0 {
			add("translator.anchors[%d]: name and keywords are required", i)
		}
	}

	if err := c.ArbitrationSettings().Validate(); err != nil {
		add("arbitration: %v", err)
	}
	for risk, w := range c.Arbitration.CandidateWeights {
		if model.ParseRiskLevel(risk) != model.RiskLevel(risk) {
			add("arbitration.candidate_weights: unknown risk level %q", risk)
		}
		if math.IsNaN(w) || math.IsInf(w, 0) {
			add("arbitration.candidate_weights[%s]: weight must be finite", risk)
		}
	}

	if !unit(c.Drift.AnomalyThreshold) {
		add("drift.anomaly_threshold %v outside [0,1]", c.Drift.AnomalyThreshold)
	}
	if !unit(c.Drift.SnapshotThreshold) {
		add("drift.snapshot_threshold %v outside [0,1]", c.Drift.SnapshotThreshold)
	}

	for i, a := range c.Alerts {
		if err := a.Validate(); err != nil {
			add("alerts[%d]: %v", i, err)
		}
	}

	switch c.Storage.Driver {
	case store.DriverJSON, store.DriverSQLite:
	default:
		add("storage.driver %q: want %s or %s", c.Storage.Driver, store.DriverJSON, store.DriverSQLite)
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

func unit(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}

// LoadConfig loads governance configuration from a YAML file.
// Empty path falls back to ~/.metadag/governance.yaml, and a missing default
// file yields DefaultConfig. A named file that does not exist is an error.
// The result is always validated.
func LoadConfig(path string) (*PolicyConfig, error) {
	cfg, _, err := LoadConfigWithHash(path)
	return cfg, err
}

// LoadConfigWithHash loads configuration and returns the SHA-256 of the raw
// YAML bytes as "sha256:<hex>". Defaults hash as empty input.
func LoadConfigWithHash(path string) (*PolicyConfig, string, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	var data []byte
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) || explicit {
				return nil, "", fmt.Errorf("%w: read %s: %v", ErrInvalidConfig, path, err)
			}
			data = nil
		}
	}

	h := sha256.Sum256(data)
	hash := "sha256:" + hex.EncodeToString(h[:])

	// Start with defaults, YAML overwrites only specified fields
	cfg := DefaultConfig()
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, "", fmt.Errorf("%w: parse %s: %v", ErrInvalidConfig, path, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return cfg, hash, nil
}

// DefaultPath returns ~/.metadag/governance.yaml, or "" without a home directory.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".metadag", "governance.yaml")
}

// DefaultStateDir returns ~/.metadag/state, or ".metadag/state" without a home directory.
func DefaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".metadag", "state")
	}
	return filepath.Join(home, ".metadag", "state")
}
