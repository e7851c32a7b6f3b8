package migratelint

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config overrides rule severities. Unknown rule names are an error so a
// typo in the config cannot silently disable a rule.
//
//	rules:
//	  non-concurrent-index: block
//	  truncate: off
type Config struct {
	Rules map[string]Severity `yaml:"rules"`
}

func LoadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	for name, sev := range cfg.Rules {
		switch sev {
		case SeverityBlock, SeverityWarn, SeverityOff:
		default:
			return nil, fmt.Errorf("config %s: rule %q has invalid severity %q", path, name, sev)
		}
	}
	return &cfg, nil
}

// Apply returns the rule set with config severities applied.
func (c *Config) Apply(rules []Rule) ([]Rule, error) {
	if c == nil || len(c.Rules) == 0 {
		return rules, nil
	}
	known := make(map[string]bool, len(rules))
	out := make([]Rule, len(rules))
	for i, r := range rules {
		known[r.Name] = true
		if sev, ok := c.Rules[r.Name]; ok {
			r.Severity = sev
		}
		out[i] = r
	}
	for name := range c.Rules {
		if !known[name] {
			return nil, fmt.Errorf("config references unknown rule %q", name)
		}
	}
	return out, nil
}
