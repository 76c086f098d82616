package classify

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Vocabulary is the ordered trigger-phrase rule table for every family.
// Order within a family is significant: evaluation is first-match-wins.
type Vocabulary struct {
	Progression      []Rule   `yaml:"progression"`
	Response         []Rule   `yaml:"response"`
	Resection        []Rule   `yaml:"resection"`
	ResidualNegative []string `yaml:"residual_negative"`
	ResidualPositive []string `yaml:"residual_positive"`
}

// DefaultVocabulary returns the built-in trigger tables.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		Progression: []Rule{
			{Label: RecurrenceSuspected, Triggers: []string{
				"recurren", "re-growth", "regrowth",
			}},
			{Label: ProgressionSuspected, Triggers: []string{
				"progress", "increas", "enlarg", "growth", "grown", "growing",
				"new lesion", "new enhancement", "new focus", "worsen",
			}},
		},
		Response: []Rule{
			{Label: CompleteResponseSuspected, Triggers: []string{
				"no evidence of disease", "no evidence of tumor",
				"complete response", "complete resolution", "resolved",
			}},
			{Label: ResponseSuspected, Triggers: []string{
				"decreas", "shrink", "smaller", "reduc", "regression",
				"improv", "partial response",
			}},
			{Label: StableDisease, Triggers: []string{
				"stable", "no significant change", "no interval change",
				"no change", "unchanged",
			}},
		},
		Resection: []Rule{
			{Label: ExtentGTR, Triggers: []string{
				"gross total", "gross-total", "gtr", "complete resection",
			}},
			{Label: ExtentSTR, Triggers: []string{
				"subtotal", "sub-total", "near total", "near-total",
			}},
			{Label: ExtentPartial, Triggers: []string{
				"partial",
			}},
			{Label: ExtentBiopsy, Triggers: []string{
				"biops",
			}},
		},
		ResidualNegative: []string{
			"no residual", "without residual", "no evidence of residual",
		},
		ResidualPositive: []string{
			"residual", "remaining tumor", "remnant",
		},
	}
}

// LoadVocabulary reads a YAML override file. A family present in the file
// replaces the built-in table wholesale; an absent family keeps the
// default. This lets sites extend trigger phrasing without code changes.
func LoadVocabulary(path string) (Vocabulary, error) {
	vocab := DefaultVocabulary()

	raw, err := os.ReadFile(path)
	if err != nil {
		return Vocabulary{}, fmt.Errorf("read vocabulary file: %w", err)
	}

	var override Vocabulary
	if err := yaml.Unmarshal(raw, &override); err != nil {
		return Vocabulary{}, fmt.Errorf("parse vocabulary file: %w", err)
	}

	if len(override.Progression) > 0 {
		vocab.Progression = override.Progression
	}
	if len(override.Response) > 0 {
		vocab.Response = override.Response
	}
	if len(override.Resection) > 0 {
		vocab.Resection = override.Resection
	}
	if len(override.ResidualNegative) > 0 {
		vocab.ResidualNegative = override.ResidualNegative
	}
	if len(override.ResidualPositive) > 0 {
		vocab.ResidualPositive = override.ResidualPositive
	}

	return vocab, nil
}

// normalize lowercases every trigger phrase in place.
func (v *Vocabulary) normalize() {
	for i := range v.Progression {
		lowerAll(v.Progression[i].Triggers)
	}
	for i := range v.Response {
		lowerAll(v.Response[i].Triggers)
	}
	for i := range v.Resection {
		lowerAll(v.Resection[i].Triggers)
	}
	lowerAll(v.ResidualNegative)
	lowerAll(v.ResidualPositive)
}

func lowerAll(phrases []string) {
	for i, p := range phrases {
		phrases[i] = strings.ToLower(p)
	}
}
