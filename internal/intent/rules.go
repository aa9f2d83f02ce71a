package intent

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/agentide/conductor/pkg/models"
)

// Rules holds the keyword table for lexical classification, with an
// optional fallback tag. Rules can be customized via a YAML file.
type Rules struct {
	// Keywords maps an intent tag to the phrases that signal it.
	Keywords map[models.IntentType][]string `yaml:"keywords"`
	// Fallback overrides the classifier's default fallback tag.
	Fallback models.IntentType `yaml:"fallback"`
	// order fixes tie-breaking so classification is deterministic.
	order []models.IntentType
}

// DefaultRules returns the built-in keyword table.
func DefaultRules() *Rules {
	return &Rules{
		Keywords: map[models.IntentType][]string{
			models.IntentCodeGeneration: {
				"create a function", "write code", "implement", "generate", "build a",
			},
			models.IntentCodeReview: {
				"review", "look over", "check my code",
			},
			models.IntentRefactoring: {
				"refactor", "clean up", "restructure", "simplify the code",
			},
			models.IntentInfraSetup: {
				"deploy to", "create dockerfile", "setup kubernetes", "terraform", "provision",
			},
			models.IntentTesting: {
				"write tests", "create unit tests", "test coverage", "add tests",
			},
			models.IntentDeployment: {
				"release", "ship it", "deploy the", "roll out",
			},
			models.IntentDocumentation: {
				"document", "write a readme", "add docs", "docstring",
			},
			models.IntentDebugging: {
				"debug", "fix the bug", "why does it crash", "stack trace", "not working",
			},
			models.IntentSecurityScan: {
				"security scan", "vulnerabilit", "audit dependencies", "cve",
			},
			models.IntentExplanation: {
				"explain", "what does", "how does this work",
			},
			models.IntentProjectSetup: {
				"new project", "scaffold", "bootstrap", "set up the project", "project setup",
			},
		},
		order: models.AllIntents(),
	}
}

// LoadRules reads a rules table from a YAML file. Tags present in the
// file replace the built-in keywords for that tag; absent tags keep
// their defaults. Unknown tags are rejected.
func LoadRules(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}

	var loaded Rules
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("parse rules file %s: %w", path, err)
	}

	for tag := range loaded.Keywords {
		if !tag.Valid() {
			return nil, fmt.Errorf("rules file %s: unknown intent tag %q", path, tag)
		}
	}
	if loaded.Fallback != "" && !loaded.Fallback.Valid() {
		return nil, fmt.Errorf("rules file %s: unknown fallback tag %q", path, loaded.Fallback)
	}

	rules := DefaultRules()
	for tag, keywords := range loaded.Keywords {
		rules.Keywords[tag] = keywords
	}
	rules.Fallback = loaded.Fallback
	return rules, nil
}

// Match scores the input against the keyword table and returns the
// best tag. The second return is false when no keyword matched at all.
// Ties break by the canonical intent order.
func (r *Rules) Match(text string) (models.IntentType, bool) {
	lower := strings.ToLower(text)

	best := models.IntentType("")
	bestScore := 0

	order := r.order
	if len(order) == 0 {
		order = models.AllIntents()
	}

	for _, tag := range order {
		score := 0
		for _, keyword := range r.Keywords[tag] {
			if strings.Contains(lower, strings.ToLower(keyword)) {
				score++
			}
		}
		if score > bestScore {
			best = tag
			bestScore = score
		}
	}

	if bestScore == 0 {
		return "", false
	}
	return best, true
}
