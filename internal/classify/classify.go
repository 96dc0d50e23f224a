// Package classify maps issue label sets to work-item categories.
package classify

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Category is the work-item classification derived from labels or commit linkage.
type Category string

const (
	CategoryPlanned    Category = "planned"
	CategoryRequired   Category = "required"
	CategoryInProgress Category = "in_progress"
)

// Default label sets, matching the common issue-tracker vocabulary.
var (
	defaultRequiredLabels = []string{"bug", "request", "urgent", "hotfix", "required"}
	defaultPlannedLabels  = []string{"enhancement", "feature", "refactor", "improvement", "planned"}
)

// Rules classifies label sets. Required labels win over planned labels;
// unlabeled issues default to planned.
type Rules struct {
	required map[string]struct{}
	planned  map[string]struct{}
}

// ruleFile is the YAML shape of an external rule file.
type ruleFile struct {
	RequiredLabels []string `yaml:"required_labels"`
	PlannedLabels  []string `yaml:"planned_labels"`
}

// DefaultRules returns Rules with the built-in label sets.
func DefaultRules() *Rules {
	return NewRules(defaultRequiredLabels, defaultPlannedLabels)
}

// NewRules builds Rules from explicit label sets. Labels are matched
// case-insensitively.
func NewRules(required, planned []string) *Rules {
	r := &Rules{
		required: make(map[string]struct{}, len(required)),
		planned:  make(map[string]struct{}, len(planned)),
	}
	for _, l := range required {
		r.required[strings.ToLower(strings.TrimSpace(l))] = struct{}{}
	}
	for _, l := range planned {
		r.planned[strings.ToLower(strings.TrimSpace(l))] = struct{}{}
	}
	return r
}

// LoadRules reads a YAML rule file. Missing sections fall back to the
// built-in sets.
func LoadRules(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rule file: %w", err)
	}
	var rf ruleFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parsing rule file %s: %w", path, err)
	}
	if len(rf.RequiredLabels) == 0 {
		rf.RequiredLabels = defaultRequiredLabels
	}
	if len(rf.PlannedLabels) == 0 {
		rf.PlannedLabels = defaultPlannedLabels
	}
	return NewRules(rf.RequiredLabels, rf.PlannedLabels), nil
}

// Classify returns the category for a label set. Required takes priority
// over planned when both match; anything else defaults to planned.
func (r *Rules) Classify(labels []string) Category {
	for _, l := range labels {
		if _, ok := r.required[strings.ToLower(strings.TrimSpace(l))]; ok {
			return CategoryRequired
		}
	}
	for _, l := range labels {
		if _, ok := r.planned[strings.ToLower(strings.TrimSpace(l))]; ok {
			return CategoryPlanned
		}
	}
	return CategoryPlanned
}
