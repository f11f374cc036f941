package policy

import (
	"fmt"
	"path/filepath"

	"github.com/ppiankov/metadag/internal/arbitrate"
	"github.com/ppiankov/metadag/internal/drift"
	"github.com/ppiankov/metadag/internal/model"
	"github.com/ppiankov/metadag/internal/store"
	"github.com/ppiankov/metadag/internal/translate"
)

// anyRule matches when any of its parts matches.
type anyRule struct {
	name  string
	parts []translate.Rule
}

func (r anyRule) Name() string { return r.name }

func (r anyRule) Match(text string) (bool, error) {
	for _, p := range r.parts {
		ok, err := p.Match(text)
		if err != nil || ok {
			return ok, err
		}
	}
	return false, nil
}

// BuildRules compiles the rule table in order.
func (c TranslatorConfig) BuildRules() ([]translate.Rule, error) {
	rules := make([]translate.Rule, 0, len(c.Rules))
	for _, rc := range c.Rules {
		var parts []translate.Rule
		if len(rc.Keywords) > 0 {
			parts = append(parts, translate.KeywordRule{RuleName: rc.Name, Keywords: rc.Keywords})
		}
		if rc.Expression != "" {
			cel, err := translate.NewCELRule(rc.Name, rc.Expression)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
			}
			parts = append(parts, cel)
		}
		switch len(parts) {
		case 0:
			return nil, fmt.Errorf("%w: rule %s has no predicate", ErrInvalidConfig, rc.Name)
		case 1:
			rules = append(rules, parts[0])
		default:
			rules = append(rules, anyRule{name: rc.Name, parts: parts})
		}
	}
	return rules, nil
}

// BuildTranslator constructs the translator described by the config.
func (c *PolicyConfig) BuildTranslator() (*translate.Translator, error) {
	rules, err := c.Translator.BuildRules()
	if err != nil {
		return nil, err
	}
	anchors := make([]translate.Anchor, len(c.Translator.Anchors))
	for i, a := range c.Translator.Anchors {
		anchors[i] = translate.Anchor{Name: a.Name, Keywords: a.Keywords}
	}
	t, err := translate.New(translate.Options{
		ProtocolVersion: c.Translator.ProtocolVersion,
		MarkerMode:      c.Translator.MarkerMode,
		Anchors:         anchors,
		Rules:           rules,
		RiskControlRule: c.Translator.RiskControlRule,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return t, nil
}

// ArbitrationSettings maps the arbitration section onto arbitrate.Config.
func (c *PolicyConfig) ArbitrationSettings() arbitrate.Config {
	return arbitrate.Config{
		TrustedRoot:    c.Arbitration.TrustedRoot,
		TrustedAliases: c.Arbitration.TrustedAliases,
		Mode:           arbitrate.Mode(c.Arbitration.Mode),
		Bound:          c.Arbitration.Bound,
		VetoClass:      c.Arbitration.VetoClass,
	}
}

// CandidateWeights returns the derived-candidate weight per risk level.
func (c *PolicyConfig) CandidateWeights() map[model.RiskLevel]float64 {
	out := make(map[model.RiskLevel]float64, len(c.Arbitration.CandidateWeights))
	for k, v := range c.Arbitration.CandidateWeights {
		out[model.RiskLevel(k)] = v
	}
	return out
}

// StateDir returns the configured state directory or the default one.
func (c *PolicyConfig) StateDir() string {
	if c.Storage.StateDir != "" {
		return c.Storage.StateDir
	}
	return DefaultStateDir()
}

// StoreSettings maps the storage section onto store.Config.
func (c *PolicyConfig) StoreSettings() store.Config {
	return store.Config{
		Driver:     c.Storage.Driver,
		StateDir:   c.StateDir(),
		SQLitePath: c.Storage.SQLitePath,
	}
}

// MonitorSettings maps the drift section onto drift.MonitorConfig.
func (c *PolicyConfig) MonitorSettings() drift.MonitorConfig {
	return drift.MonitorConfig{
		AnomalyThreshold:  c.Drift.AnomalyThreshold,
		SnapshotThreshold: c.Drift.SnapshotThreshold,
		SnapshotDir:       filepath.Join(c.StateDir(), store.SnapshotSubdir),
	}
}
