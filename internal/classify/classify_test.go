package classify

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_RequiredWinsOverPlanned(t *testing.T) {
	rules := DefaultRules()

	// An item carrying both a required and a planned label is required.
	got := rules.Classify([]string{"enhancement", "bug"})
	assert.Equal(t, CategoryRequired, got)
}

func TestClassify_Planned(t *testing.T) {
	rules := DefaultRules()
	assert.Equal(t, CategoryPlanned, rules.Classify([]string{"enhancement"}))
	assert.Equal(t, CategoryPlanned, rules.Classify([]string{"feature", "documentation"}))
}

func TestClassify_Required(t *testing.T) {
	rules := DefaultRules()
	assert.Equal(t, CategoryRequired, rules.Classify([]string{"bug"}))
	assert.Equal(t, CategoryRequired, rules.Classify([]string{"urgent"}))
}

func TestClassify_NoMatchDefaultsPlanned(t *testing.T) {
	rules := DefaultRules()
	assert.Equal(t, CategoryPlanned, rules.Classify(nil))
	assert.Equal(t, CategoryPlanned, rules.Classify([]string{"wontfix", "question"}))
}

func TestClassify_CaseInsensitive(t *testing.T) {
	rules := DefaultRules()
	assert.Equal(t, CategoryRequired, rules.Classify([]string{"BUG"}))
	assert.Equal(t, CategoryRequired, rules.Classify([]string{"Urgent"}))
}

func TestNewRules_CustomLabels(t *testing.T) {
	rules := NewRules([]string{"p0"}, []string{"roadmap"})
	assert.Equal(t, CategoryRequired, rules.Classify([]string{"p0"}))
	assert.Equal(t, CategoryPlanned, rules.Classify([]string{"roadmap"}))
	assert.Equal(t, CategoryPlanned, rules.Classify([]string{"bug"})) // not in custom set
}

func TestLoadRules_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	content := []byte("required_labels:\n  - p0\n  - incident\nplanned_labels:\n  - roadmap\n")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	rules, err := LoadRules(path)
	require.NoError(t, err)

	assert.Equal(t, CategoryRequired, rules.Classify([]string{"incident"}))
	assert.Equal(t, CategoryPlanned, rules.Classify([]string{"roadmap"}))
}

func TestLoadRules_MissingFile(t *testing.T) {
	_, err := LoadRules(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
