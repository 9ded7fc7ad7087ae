package features

import (
	"fmt"
	"sort"
)

// DenseVector is the fixed-length feature vector of one file. Values[i]
// holds the count of the key at position i of the Index it was assembled
// against.
type DenseVector struct {
	FileID string    `json:"file_id"`
	Values []float64 `json:"values"`
}

// AssembleStats summarises one Assemble call.
type AssembleStats struct {
	Observations int
	Dropped      int
	Files        int
	EmptyFiles   int
}

// Assemble builds one dense vector per file against ix. Observations whose
// key is absent from ix are dropped (a test corpus can only be scored on
// features seen in training). Repeated (file, key) pairs are summed.
//
// The result holds an entry for every file id appearing in obs and for every
// id in knownFileIDs; files without any usable observation get an all-zero
// vector. Every vector has length ix.Size().
func Assemble(obs []Observation, ix *Index, knownFileIDs []string) (map[string]DenseVector, AssembleStats) {
	size := ix.Size()
	stats := AssembleStats{Observations: len(obs)}
	vectors := make(map[string]DenseVector)

	vectorFor := func(fileID string) []float64 {
		v, ok := vectors[fileID]
		if !ok {
			v = DenseVector{FileID: fileID, Values: make([]float64, size)}
			vectors[fileID] = v
		}
		return v.Values
	}

	touched := make(map[string]struct{})
	for _, o := range obs {
		values := vectorFor(o.FileID)
		pos, ok := ix.Position(o.Key)
		if !ok {
			stats.Dropped++
			continue
		}
		if pos < 0 || pos >= len(values) {
			panic(fmt.Sprintf("features: position %d of key %q outside [0, %d)", pos, o.Key, len(values)))
		}
		values[pos] += float64(o.Count)
		touched[o.FileID] = struct{}{}
	}

	for _, id := range knownFileIDs {
		vectorFor(id)
	}
	for id := range vectors {
		if _, ok := touched[id]; !ok {
			stats.EmptyFiles++
		}
	}
	stats.Files = len(vectors)
	return vectors, stats
}

// SortedVectors returns the vectors ordered by file id.
func SortedVectors(vectors map[string]DenseVector) []DenseVector {
	out := make([]DenseVector, 0, len(vectors))
	for _, v := range vectors {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].FileID < out[j].FileID
	})
	return out
}
