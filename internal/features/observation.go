// Package features turns sparse per-file feature counts into aligned dense
// vectors. A training corpus fixes the feature Index; every corpus assembled
// against that Index produces vectors of the same length where position i
// means the same feature key everywhere.
package features

import "sort"

// Observation is one (file, feature key, count) triple produced by feature
// extraction. Several observations may share a file id or a key.
type Observation struct {
	FileID string `json:"file_id"`
	Key    string `json:"key"`
	Count  int64  `json:"count"`
}

type pairKey struct {
	fileID string
	key    string
}

// Aggregate sums the counts of observations sharing a (file id, key) pair.
// The result is sorted by file id, then key.
func Aggregate(obs []Observation) []Observation {
	sums := make(map[pairKey]int64, len(obs))
	for _, o := range obs {
		sums[pairKey{o.FileID, o.Key}] += o.Count
	}
	result := make([]Observation, 0, len(sums))
	for k, c := range sums {
		result = append(result, Observation{FileID: k.fileID, Key: k.key, Count: c})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].FileID != result[j].FileID {
			return result[i].FileID < result[j].FileID
		}
		return result[i].Key < result[j].Key
	})
	return result
}

// FileIDs returns the distinct file ids in obs, sorted.
func FileIDs(obs []Observation) []string {
	seen := make(map[string]struct{})
	for _, o := range obs {
		seen[o.FileID] = struct{}{}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
