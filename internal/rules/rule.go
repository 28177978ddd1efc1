package rules

import (
	"fmt"

	"github.com/flarewatch/flarewatch/internal/event"
)

// AlertRule ties one or more conditions (implicit AND) to the event
// types/names they watch, plus alerting metadata.
type AlertRule struct {
	// ID uniquely identifies the rule. Assigned by the registry when empty.
	ID string `json:"id" yaml:"id"`

	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Severity is one of: critical | warning | info. Defaults to warning.
	Severity string `json:"severity,omitempty" yaml:"severity,omitempty"`

	// EventTypes the rule watches. At least one is required.
	EventTypes []string `json:"event_types" yaml:"event_types"`

	// EventNames optionally restricts matching to these names. Empty means
	// any name within the watched types.
	EventNames []string `json:"event_names,omitempty" yaml:"event_names,omitempty"`

	// Conditions must all hold for the rule to fire.
	Conditions []Condition `json:"conditions" yaml:"conditions"`

	Tags    []string `json:"tags,omitempty" yaml:"tags,omitempty"`
	Enabled bool     `json:"enabled" yaml:"enabled"`
}

// Validate checks the rule's structural constraints, including every
// condition it carries.
func (r AlertRule) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("rule: name is required")
	}
	if len(r.EventTypes) == 0 {
		return fmt.Errorf("rule %q: at least one event type is required", r.Name)
	}
	if len(r.Conditions) == 0 {
		return fmt.Errorf("rule %q: at least one condition is required", r.Name)
	}
	switch r.Severity {
	case "", "critical", "warning", "info":
	default:
		return fmt.Errorf("rule %q: severity %q unknown: want critical|warning|info", r.Name, r.Severity)
	}
	for i, c := range r.Conditions {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("rule %q: condition %d: %w", r.Name, i, err)
		}
	}
	return nil
}

// Matches reports whether ev falls inside the rule's type/name filters.
// Disabled rules never match.
func (r AlertRule) Matches(ev event.TelemetryEvent) bool {
	if !r.Enabled {
		return false
	}
	if !contains(r.EventTypes, ev.Type) {
		return false
	}
	if len(r.EventNames) > 0 && !contains(r.EventNames, ev.Name) {
		return false
	}
	return true
}

func contains(items []string, s string) bool {
	for _, it := range items {
		if it == s {
			return true
		}
	}
	return false
}
