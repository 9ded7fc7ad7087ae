package extract

import (
	"sort"
	"strings"
)

const keySeparator = ":"

// NGrams returns every contiguous window of n tokens, in order.
func NGrams(tokens []string, n int) [][]string {
	if n <= 0 || len(tokens) < n {
		return nil
	}
	grams := make([][]string, 0, len(tokens)-n+1)
	for i := 0; i+n <= len(tokens); i++ {
		grams = append(grams, tokens[i:i+n])
	}
	return grams
}

// Key builds the feature key of an n-gram: "kind:tok1 tok2 ...". Tokens never
// contain spaces or colons, so the order of the gram is recoverable.
func Key(kind Kind, gram []string) string {
	return string(kind) + keySeparator + strings.Join(gram, " ")
}

// ParseKey splits a feature key into its kind and n-gram order.
func ParseKey(key string) (Kind, int, bool) {
	kindPart, gram, ok := strings.Cut(key, keySeparator)
	if !ok || gram == "" {
		return "", 0, false
	}
	kind, err := ParseKind(kindPart)
	if err != nil {
		return "", 0, false
	}
	return kind, strings.Count(gram, " ") + 1, true
}

type groupKey struct {
	kind  Kind
	order int
}

type keyTotal struct {
	key   string
	total int64
}

// frequentKeys returns, per (kind, order > 1) group, the k keys with the
// largest total count across all files. Ties go to the lexicographically
// smaller key. Keys that cannot be parsed are ignored.
func frequentKeys(totals map[string]int64, k int) map[string]struct{} {
	groups := make(map[groupKey][]keyTotal)
	for key, total := range totals {
		kind, order, ok := ParseKey(key)
		if !ok || order < 2 {
			continue
		}
		g := groupKey{kind, order}
		groups[g] = append(groups[g], keyTotal{key, total})
	}
	keep := make(map[string]struct{})
	for _, entries := range groups {
		sort.Slice(entries, func(i, j int) bool {
			if entries[i].total != entries[j].total {
				return entries[i].total > entries[j].total
			}
			return entries[i].key < entries[j].key
		})
		if len(entries) > k {
			entries = entries[:k]
		}
		for _, e := range entries {
			keep[e.key] = struct{}{}
		}
	}
	return keep
}
