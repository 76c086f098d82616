// Package classify maps narrative clinical text to categorical flags via
// ordered trigger-phrase families. Matching is case-insensitive substring
// containment, first-match-wins within each family. The classifier is pure
// and stateless: identical text always yields identical flags.
package classify

import "strings"

// Progression and response flag values attached to imaging events.
const (
	RecurrenceSuspected       = "recurrence_suspected"
	ProgressionSuspected      = "progression_suspected"
	CompleteResponseSuspected = "complete_response_suspected"
	ResponseSuspected         = "response_suspected"
	StableDisease             = "stable_disease"
)

// Resection extent values derived from surgical outcome text.
const (
	ExtentGTR         = "GTR"
	ExtentSTR         = "STR"
	ExtentPartial     = "partial_resection"
	ExtentBiopsy      = "biopsy"
	ExtentUnspecified = "unspecified_extent"
)

// Rule maps a set of trigger phrases to a label. A rule fires when any of
// its triggers occurs in the text.
type Rule struct {
	Label    string   `yaml:"label"`
	Triggers []string `yaml:"triggers"`
}

// IsProgression reports whether a flag value belongs to the progression
// family.
func IsProgression(label string) bool {
	return label == RecurrenceSuspected || label == ProgressionSuspected
}

// ImagingFlags carries the classification outcome for one imaging
// conclusion. A nil flag means no trigger matched, which is distinct from
// an explicit negative finding.
type ImagingFlags struct {
	ProgressionFlag *string `json:"progression_flag,omitempty"`
	ResponseFlag    *string `json:"response_flag,omitempty"`
}

// Classifier evaluates the four trigger families against free text.
type Classifier struct {
	vocab Vocabulary
}

// New builds a classifier over the given vocabulary. Trigger phrases are
// lowercased once here so classification never re-normalizes them.
func New(vocab Vocabulary) *Classifier {
	vocab.normalize()
	return &Classifier{vocab: vocab}
}

// NewDefault builds a classifier over the built-in vocabulary.
func NewDefault() *Classifier {
	return New(DefaultVocabulary())
}

// ClassifyImaging evaluates an imaging conclusion. The progression family
// is evaluated first; a progression match suppresses the response family so
// text like "enlarging lesion, otherwise stable" reads as progression only.
func (c *Classifier) ClassifyImaging(text string) ImagingFlags {
	lowered := strings.ToLower(text)

	if label := firstMatch(c.vocab.Progression, lowered); label != nil {
		return ImagingFlags{ProgressionFlag: label}
	}
	return ImagingFlags{ResponseFlag: firstMatch(c.vocab.Response, lowered)}
}

// ClassifyResection evaluates surgical outcome text for resection extent.
// Non-empty text that matches no rule yields unspecified_extent; empty text
// yields nil.
func (c *Classifier) ClassifyResection(text string) *string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	lowered := strings.ToLower(text)
	if label := firstMatch(c.vocab.Resection, lowered); label != nil {
		return label
	}
	unspecified := ExtentUnspecified
	return &unspecified
}

// ClassifyResidual evaluates surgical outcome text for residual-tumor
// language. Negative phrases ("no residual") are checked before positive
// ones so the substring "residual" inside a negation never reads as true.
func (c *Classifier) ClassifyResidual(text string) *bool {
	lowered := strings.ToLower(text)

	for _, phrase := range c.vocab.ResidualNegative {
		if phrase != "" && strings.Contains(lowered, phrase) {
			v := false
			return &v
		}
	}
	for _, phrase := range c.vocab.ResidualPositive {
		if phrase != "" && strings.Contains(lowered, phrase) {
			v := true
			return &v
		}
	}
	return nil
}

// firstMatch walks the ordered rule table and returns the first label whose
// trigger occurs in the lowered text, or nil.
func firstMatch(rules []Rule, lowered string) *string {
	for _, rule := range rules {
		for _, trigger := range rule.Triggers {
			if trigger != "" && strings.Contains(lowered, trigger) {
				label := rule.Label
				return &label
			}
		}
	}
	return nil
}
