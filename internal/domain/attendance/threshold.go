package attendance

import (
	"strings"

	"github.com/unitrack-hub/attendance-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// THRESHOLD RULES
// ══════════════════════════════════════════════════════════════════════════════

// ThresholdRule overrides the minimum attendance percentage for subjects whose
// code or name contains the keyword. Rules are evaluated in registration
// order; the first match wins, so a duplicate keyword later in the list is
// unreachable by construction.
type ThresholdRule struct {
	// Keyword is matched case-insensitively as a substring of the subject
	// code or name. Must be non-empty.
	Keyword string `json:"keyword"`

	// Percent is the required attendance percentage, in (0, 100].
	Percent float64 `json:"percent"`
}

// Validate checks the rule invariants.
func (r ThresholdRule) Validate() error {
	if strings.TrimSpace(r.Keyword) == "" {
		return shared.NewDomainError("threshold", "Validate", shared.ErrEmptyValue, "rule keyword cannot be empty")
	}
	if r.Percent <= 0 || r.Percent > 100 {
		return shared.NewDomainError("threshold", "Validate", shared.ErrValueOutOfRange, "rule percent must be in (0, 100]")
	}
	return nil
}

// ThresholdConfig is the layered threshold rule set. It is owned by the host
// application and passed by value into each sync.
type ThresholdConfig struct {
	// DefaultThreshold applies when no rule matches.
	DefaultThreshold float64 `json:"defaultThreshold"`

	// SafeBuffer is the margin above the threshold required for SAFE.
	SafeBuffer float64 `json:"safeBuffer"`

	// Rules are keyword overrides, evaluated in order.
	Rules []ThresholdRule `json:"rules"`
}

// DefaultThresholdConfig returns the stock 75% / 10-point configuration.
func DefaultThresholdConfig() ThresholdConfig {
	return ThresholdConfig{
		DefaultThreshold: 75.0,
		SafeBuffer:       10.0,
	}
}

// Validate checks the config and every rule.
func (c ThresholdConfig) Validate() error {
	if c.DefaultThreshold <= 0 || c.DefaultThreshold > 100 {
		return shared.NewDomainError("threshold", "Validate", shared.ErrValueOutOfRange, "default threshold must be in (0, 100]")
	}
	if c.SafeBuffer < 0 {
		return shared.NewDomainError("threshold", "Validate", shared.ErrValueOutOfRange, "safe buffer cannot be negative")
	}
	for _, r := range c.Rules {
		if err := r.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// WithRule returns a copy of the config with the rule appended. Order is
// significant: earlier rules win.
func (c ThresholdConfig) WithRule(keyword string, percent float64) ThresholdConfig {
	rules := make([]ThresholdRule, len(c.Rules), len(c.Rules)+1)
	copy(rules, c.Rules)
	c.Rules = append(rules, ThresholdRule{Keyword: keyword, Percent: percent})
	return c
}

// ResolveThreshold returns the effective minimum percentage for a subject.
// Both subject fields are uppercased and each rule keyword is tested as a
// substring of either; the first matching rule wins. With no match the
// default threshold applies. Empty code and name never match because rule
// keywords are non-empty.
func ResolveThreshold(code, name string, cfg ThresholdConfig) float64 {
	upperCode := strings.ToUpper(code)
	upperName := strings.ToUpper(name)

	for _, rule := range cfg.Rules {
		kw := strings.ToUpper(rule.Keyword)
		if kw == "" {
			continue
		}
		if strings.Contains(upperCode, kw) || strings.Contains(upperName, kw) {
			return rule.Percent
		}
	}
	return cfg.DefaultThreshold
}
