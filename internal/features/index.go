package features

import (
	"fmt"
	"sort"

	apperrors "github.com/Adithya-Monish-Kumar-K/Malware-Classification-Pipeline/pkg/errors"
)

// Index maps every distinct training feature key to a dense-vector
// position in [0, Size()). It is immutable once built.
type Index struct {
	keys      []string
	positions map[string]int
}

// BuildIndex collects the distinct keys of the training observations and
// assigns positions in lexicographic key order, so the same corpus always
// yields the same layout. An empty input gives an empty Index.
func BuildIndex(obs []Observation) *Index {
	distinct := make(map[string]struct{})
	for _, o := range obs {
		distinct[o.Key] = struct{}{}
	}
	keys := make([]string, 0, len(distinct))
	for k := range distinct {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return newIndex(keys)
}

// IndexFromKeys rebuilds an Index whose positions follow the order of keys,
// typically a key list persisted next to a trained model.
func IndexFromKeys(keys []string) (*Index, error) {
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if _, dup := seen[k]; dup {
			return nil, fmt.Errorf("key %q: %w", k, apperrors.ErrDuplicateFeature)
		}
		seen[k] = struct{}{}
	}
	owned := make([]string, len(keys))
	copy(owned, keys)
	return newIndex(owned), nil
}

func newIndex(keys []string) *Index {
	positions := make(map[string]int, len(keys))
	for i, k := range keys {
		positions[k] = i
	}
	return &Index{keys: keys, positions: positions}
}

// Size is the number of distinct keys and the length of every vector
// assembled against this Index.
func (ix *Index) Size() int {
	return len(ix.keys)
}

// Position returns the vector position of key.
func (ix *Index) Position(key string) (int, bool) {
	pos, ok := ix.positions[key]
	return pos, ok
}

// Contains reports whether key has a position.
func (ix *Index) Contains(key string) bool {
	_, ok := ix.positions[key]
	return ok
}

// Key returns the key stored at pos. It panics if pos is out of range.
func (ix *Index) Key(pos int) string {
	return ix.keys[pos]
}

// Keys returns the keys in position order.
func (ix *Index) Keys() []string {
	out := make([]string, len(ix.keys))
	copy(out, ix.keys)
	return out
}
