package extract

import (
	"fmt"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/Malware-Classification-Pipeline/internal/features"
	"github.com/Adithya-Monish-Kumar-K/Malware-Classification-Pipeline/pkg/config"
)

// Rule generates n-grams of orders MinN..MaxN (inclusive) for one kind.
type Rule struct {
	Kind Kind
	MinN int
	MaxN int
}

// Extractor turns raw file text into per-file feature observations.
type Extractor struct {
	rules []Rule
}

// NewExtractor validates rules and returns an Extractor applying them.
func NewExtractor(rules []Rule) (*Extractor, error) {
	if len(rules) == 0 {
		return nil, fmt.Errorf("extractor needs at least one rule")
	}
	for _, r := range rules {
		if _, err := ParseKind(string(r.Kind)); err != nil {
			return nil, err
		}
		if r.MinN < 1 || r.MaxN < r.MinN {
			return nil, fmt.Errorf("rule %s: invalid n-gram orders %d..%d", r.Kind, r.MinN, r.MaxN)
		}
	}
	owned := make([]Rule, len(rules))
	copy(owned, rules)
	return &Extractor{rules: owned}, nil
}

// FromConfig builds an Extractor from the features section of the config.
func FromConfig(cfg config.FeaturesConfig) (*Extractor, error) {
	rules := make([]Rule, 0, len(cfg.Rules))
	for _, r := range cfg.Rules {
		kind, err := ParseKind(r.Kind)
		if err != nil {
			return nil, err
		}
		rules = append(rules, Rule{Kind: kind, MinN: r.MinN, MaxN: r.MaxN})
	}
	return NewExtractor(rules)
}

// Sources lists the file extensions the rules read from, without duplicates.
func (e *Extractor) Sources() []Source {
	seen := make(map[Source]struct{})
	var sources []Source
	for _, r := range e.rules {
		src := r.Kind.Source()
		if _, ok := seen[src]; ok {
			continue
		}
		seen[src] = struct{}{}
		sources = append(sources, src)
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i] < sources[j] })
	return sources
}

// Extract applies every rule reading from source to text and returns one
// observation per distinct key, sorted by key.
func (e *Extractor) Extract(fileID string, source Source, text string) []features.Observation {
	counts := make(map[string]int64)
	for _, r := range e.rules {
		if r.Kind.Source() != source {
			continue
		}
		tokens := Tokens(r.Kind, text)
		for n := r.MinN; n <= r.MaxN; n++ {
			for _, gram := range NGrams(tokens, n) {
				counts[Key(r.Kind, gram)]++
			}
		}
	}
	obs := make([]features.Observation, 0, len(counts))
	for key, c := range counts {
		obs = append(obs, features.Observation{FileID: fileID, Key: key, Count: c})
	}
	sort.Slice(obs, func(i, j int) bool { return obs[i].Key < obs[j].Key })
	return obs
}

// LimitFrequent keeps, for every kind and n-gram order above one, only the
// k keys with the largest corpus-wide count. Unigrams are never limited and
// k <= 0 returns obs unchanged. The relative order of kept observations is
// preserved.
func LimitFrequent(obs []features.Observation, k int) []features.Observation {
	if k <= 0 {
		return obs
	}
	totals := make(map[string]int64)
	for _, o := range obs {
		totals[o.Key] += o.Count
	}
	keep := frequentKeys(totals, k)
	out := make([]features.Observation, 0, len(obs))
	for _, o := range obs {
		if _, order, ok := ParseKey(o.Key); ok && order > 1 {
			if _, kept := keep[o.Key]; !kept {
				continue
			}
		}
		out = append(out, o)
	}
	return out
}
