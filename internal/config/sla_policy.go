package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/sla"
)

// slaPolicyFile is the on-disk YAML shape, e.g.
//
//	allotments:
//	  critical: 1h
//	  high: 2h
//	breach_threshold_hours: 0.5
type slaPolicyFile struct {
	Allotments           map[string]string `yaml:"allotments"`
	BreachThresholdHours float64           `yaml:"breach_threshold_hours"`
}

// LoadSLAPolicy returns the default policy overlaid with PolicyFile when set.
func (s SLAConfig) LoadSLAPolicy() (sla.Policy, error) {
	policy := sla.DefaultPolicy()
	if s.PolicyFile == "" {
		return policy, nil
	}
	raw, err := os.ReadFile(s.PolicyFile)
	if err != nil {
		return policy, fmt.Errorf("read sla policy: %w", err)
	}
	return parseSLAPolicy(raw, policy)
}

func parseSLAPolicy(raw []byte, base sla.Policy) (sla.Policy, error) {
	var file slaPolicyFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return base, fmt.Errorf("parse sla policy: %w", err)
	}
	for name, value := range file.Allotments {
		priority := domain.TicketPriority(name)
		if !priority.Valid() {
			return base, fmt.Errorf("sla policy: unknown priority %q", name)
		}
		d, err := time.ParseDuration(value)
		if err != nil || d <= 0 {
			return base, fmt.Errorf("sla policy: invalid allotment %q for %s", value, name)
		}
		base.Allotments[priority] = d
	}
	if file.BreachThresholdHours > 0 {
		base.BreachThresholdHours = file.BreachThresholdHours
	}
	return base, nil
}
