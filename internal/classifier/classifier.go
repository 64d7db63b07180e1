package classifier

import (
	"strings"

	"github.com/runnerr0/focuslens/internal/config"
	"github.com/runnerr0/focuslens/internal/domain"
)

type rule struct {
	keyword     string
	subcategory domain.Subcategory
}

type ruleSet struct {
	category domain.Category
	rules    []rule
}

// Classifier maps URLs to categories using ordered keyword rule sets.
// The zero value classifies everything as neutral/general.
type Classifier struct {
	sets []ruleSet
}

// New builds a Classifier from configuration. The check order is fixed:
// distraction, then productive, then work. A URL matching more than one set
// resolves to whichever is checked first.
func New(cfg config.ClassifierConfig) *Classifier {
	return &Classifier{
		sets: []ruleSet{
			{domain.CategoryDistraction, compile(cfg.Distraction)},
			{domain.CategoryProductive, compile(cfg.Productive)},
			{domain.CategoryProductive, compile(cfg.Work)},
		},
	}
}

// Default returns a Classifier with the built-in rule sets.
func Default() *Classifier {
	return New(config.DefaultClassifierRules())
}

func compile(rs []config.Rule) []rule {
	out := make([]rule, 0, len(rs))
	for _, r := range rs {
		kw := strings.ToLower(strings.TrimSpace(r.Keyword))
		if kw == "" {
			continue
		}
		out = append(out, rule{keyword: kw, subcategory: domain.NormalizeSubcategory(r.Subcategory)})
	}
	return out
}

// Classify never fails: unknown URLs are neutral/general.
func (c *Classifier) Classify(rawURL string) domain.Classification {
	u := strings.ToLower(rawURL)
	if c != nil {
		for _, set := range c.sets {
			for _, r := range set.rules {
				if strings.Contains(u, r.keyword) {
					return domain.Classification{Category: set.category, Subcategory: r.subcategory}
				}
			}
		}
	}
	return domain.Classification{Category: domain.CategoryNeutral, Subcategory: domain.SubcategoryGeneral}
}
