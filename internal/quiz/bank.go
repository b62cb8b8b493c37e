package quiz

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed bank.yaml
var defaultBankYAML []byte

// OptionsPerQuestion is the fixed number of choices per question.
const OptionsPerQuestion = 4

// MinQuestionsPerCategory is the smallest bank a category may ship with.
const MinQuestionsPerCategory = 10

// Question is one multiple-choice item. Answer equals one of Options.
type Question struct {
	Question string   `yaml:"question" json:"question"`
	Options  []string `yaml:"options" json:"options"`
	Answer   string   `yaml:"answer" json:"answer"`
}

// Bank maps a category name to its fixed, ordered question list.
type Bank map[string][]Question

// DefaultBank returns the built-in bank (ewaste, wet waste, dry waste).
func DefaultBank() Bank {
	b, err := ParseBank(defaultBankYAML)
	if err != nil {
		panic(fmt.Sprintf("quiz: built-in bank is invalid: %v", err))
	}
	return b
}

// LoadBank reads a bank file in the same YAML shape as the built-in one.
func LoadBank(path string) (Bank, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read quiz bank: %w", err)
	}
	return ParseBank(data)
}

// ParseBank decodes and validates a YAML bank.
func ParseBank(data []byte) (Bank, error) {
	var wrapper struct {
		Categories map[string][]Question `yaml:"categories"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, fmt.Errorf("decode quiz bank: %w", err)
	}
	b := Bank(wrapper.Categories)
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

// Validate checks every category has enough well-formed questions.
func (b Bank) Validate() error {
	if len(b) == 0 {
		return errors.New("quiz bank has no categories")
	}
	for category, questions := range b {
		if strings.TrimSpace(category) == "" {
			return errors.New("quiz bank has an empty category name")
		}
		if len(questions) < MinQuestionsPerCategory {
			return fmt.Errorf("category %q has %d questions, need at least %d", category, len(questions), MinQuestionsPerCategory)
		}
		seen := make(map[string]bool, len(questions))
		for i, q := range questions {
			if strings.TrimSpace(q.Question) == "" {
				return fmt.Errorf("category %q question %d is empty", category, i)
			}
			if seen[q.Question] {
				return fmt.Errorf("category %q repeats question %q", category, q.Question)
			}
			seen[q.Question] = true
			if len(q.Options) != OptionsPerQuestion {
				return fmt.Errorf("category %q question %d has %d options, need %d", category, i, len(q.Options), OptionsPerQuestion)
			}
			if !q.HasOption(q.Answer) {
				return fmt.Errorf("category %q question %d answer %q is not one of its options", category, i, q.Answer)
			}
		}
	}
	return nil
}

// Has reports whether category is an exact key of the bank.
func (b Bank) Has(category string) bool {
	_, ok := b[category]
	return ok
}

// Categories lists bank keys in sorted order.
func (b Bank) Categories() []string {
	out := make([]string, 0, len(b))
	for k := range b {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// HasOption reports whether option is one of the question's choices.
func (q Question) HasOption(option string) bool {
	for _, o := range q.Options {
		if o == option {
			return true
		}
	}
	return false
}

// CategoryFromLabel turns a classifier label into a quiz route segment.
func CategoryFromLabel(label string) string {
	return strings.ToLower(strings.TrimSpace(label))
}
