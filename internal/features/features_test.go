package features

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	apperrors "github.com/Adithya-Monish-Kumar-K/Malware-Classification-Pipeline/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func trainingObservations() []Observation {
	return []Observation{
		{FileID: "f1", Key: "mov", Count: 3},
		{FileID: "f1", Key: "add", Count: 1},
		{FileID: "f2", Key: "mov", Count: 2},
	}
}

func TestBuildIndexLexicographic(t *testing.T) {
	ix := BuildIndex(trainingObservations())

	require.Equal(t, 2, ix.Size())
	assert.Equal(t, []string{"add", "mov"}, ix.Keys())
	pos, ok := ix.Position("add")
	assert.True(t, ok)
	assert.Equal(t, 0, pos)
	pos, ok = ix.Position("mov")
	assert.True(t, ok)
	assert.Equal(t, 1, pos)
	assert.False(t, ix.Contains("xor"))
}

func TestBuildIndexIsBijection(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	var obs []Observation
	distinct := make(map[string]struct{})
	for i := 0; i < 500; i++ {
		key := fmt.Sprintf("k%d", rng.Intn(120))
		distinct[key] = struct{}{}
		obs = append(obs, Observation{FileID: fmt.Sprintf("f%d", rng.Intn(30)), Key: key, Count: 1})
	}

	ix := BuildIndex(obs)
	require.Equal(t, len(distinct), ix.Size())

	seen := make(map[int]string)
	for key := range distinct {
		pos, ok := ix.Position(key)
		require.True(t, ok)
		require.GreaterOrEqual(t, pos, 0)
		require.Less(t, pos, ix.Size())
		_, dup := seen[pos]
		require.False(t, dup, "position %d assigned twice", pos)
		seen[pos] = key
		assert.Equal(t, key, ix.Key(pos))
	}
}

func TestBuildIndexIgnoresInputOrder(t *testing.T) {
	obs := trainingObservations()
	reversed := make([]Observation, len(obs))
	for i := range obs {
		reversed[len(obs)-1-i] = obs[i]
	}
	assert.Equal(t, BuildIndex(obs).Keys(), BuildIndex(reversed).Keys())
}

func TestBuildIndexEmpty(t *testing.T) {
	ix := BuildIndex(nil)
	assert.Equal(t, 0, ix.Size())

	vectors, stats := Assemble([]Observation{{FileID: "f1", Key: "mov", Count: 1}}, ix, []string{"f2"})
	require.Len(t, vectors, 2)
	for _, v := range vectors {
		assert.Empty(t, v.Values)
	}
	assert.Equal(t, 1, stats.Dropped)
}

func TestIndexFromKeys(t *testing.T) {
	ix, err := IndexFromKeys([]string{"b", "a"})
	require.NoError(t, err)
	pos, _ := ix.Position("b")
	assert.Equal(t, 0, pos)

	_, err = IndexFromKeys([]string{"a", "a"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrDuplicateFeature))
}

func TestIndexKeysIsACopy(t *testing.T) {
	ix := BuildIndex(trainingObservations())
	keys := ix.Keys()
	keys[0] = "mutated"
	assert.Equal(t, "add", ix.Key(0))
}

func TestAssembleTrainingExample(t *testing.T) {
	obs := trainingObservations()
	ix := BuildIndex(obs)

	vectors, stats := Assemble(obs, ix, nil)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float64{1, 3}, vectors["f1"].Values)
	assert.Equal(t, []float64{0, 2}, vectors["f2"].Values)
	assert.Equal(t, AssembleStats{Observations: 3, Files: 2}, stats)
}

func TestAssembleDropsUnseenFeatures(t *testing.T) {
	ix := BuildIndex(trainingObservations())

	vectors, stats := Assemble([]Observation{{FileID: "f3", Key: "xor", Count: 5}}, ix, nil)
	require.Contains(t, vectors, "f3")
	assert.Equal(t, []float64{0, 0}, vectors["f3"].Values)
	assert.Equal(t, 1, stats.Dropped)
	assert.Equal(t, 1, stats.EmptyFiles)
}

func TestAssembleUnseenDoesNotLeak(t *testing.T) {
	ix := BuildIndex(trainingObservations())
	base := []Observation{{FileID: "t1", Key: "mov", Count: 4}}
	withUnseen := append([]Observation{{FileID: "t1", Key: "xor", Count: 9}}, base...)

	a, _ := Assemble(base, ix, nil)
	b, _ := Assemble(withUnseen, ix, nil)
	assert.Equal(t, a, b)
}

func TestAssembleSumsDuplicates(t *testing.T) {
	ix := BuildIndex(trainingObservations())
	obs := []Observation{
		{FileID: "f1", Key: "mov", Count: 2},
		{FileID: "f1", Key: "mov", Count: 5},
	}

	vectors, _ := Assemble(obs, ix, nil)
	assert.Equal(t, []float64{0, 7}, vectors["f1"].Values)
}

func TestAssembleZeroVectorForKnownFiles(t *testing.T) {
	obs := trainingObservations()
	ix := BuildIndex(obs)

	vectors, stats := Assemble(obs, ix, []string{"f1", "f2", "silent"})
	require.Len(t, vectors, 3)
	assert.Equal(t, []float64{0, 0}, vectors["silent"].Values)
	assert.Equal(t, "silent", vectors["silent"].FileID)
	assert.Equal(t, 1, stats.EmptyFiles)
	assert.Equal(t, 3, stats.Files)
}

func TestAssembleFixedLengthAndIdempotent(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	var train, test []Observation
	for i := 0; i < 300; i++ {
		train = append(train, Observation{
			FileID: fmt.Sprintf("tr%d", rng.Intn(20)),
			Key:    fmt.Sprintf("op%d", rng.Intn(40)),
			Count:  int64(rng.Intn(5)),
		})
		test = append(test, Observation{
			FileID: fmt.Sprintf("te%d", rng.Intn(20)),
			Key:    fmt.Sprintf("op%d", rng.Intn(60)),
			Count:  int64(rng.Intn(5)),
		})
	}
	ix := BuildIndex(train)

	for _, corpus := range [][]Observation{train, test} {
		first, _ := Assemble(corpus, ix, nil)
		second, _ := Assemble(corpus, ix, nil)
		assert.Equal(t, first, second)
		for id, v := range first {
			assert.Len(t, v.Values, ix.Size(), "file %s", id)
		}
	}
}

func TestAggregate(t *testing.T) {
	obs := []Observation{
		{FileID: "b", Key: "x", Count: 1},
		{FileID: "a", Key: "y", Count: 2},
		{FileID: "b", Key: "x", Count: 4},
		{FileID: "a", Key: "x", Count: 1},
	}
	assert.Equal(t, []Observation{
		{FileID: "a", Key: "x", Count: 1},
		{FileID: "a", Key: "y", Count: 2},
		{FileID: "b", Key: "x", Count: 5},
	}, Aggregate(obs))
}

func TestSortedVectorsAndFileIDs(t *testing.T) {
	obs := trainingObservations()
	vectors, _ := Assemble(obs, BuildIndex(obs), []string{"f0"})

	sorted := SortedVectors(vectors)
	require.Len(t, sorted, 3)
	assert.Equal(t, "f0", sorted[0].FileID)
	assert.Equal(t, "f1", sorted[1].FileID)
	assert.Equal(t, "f2", sorted[2].FileID)
	assert.Equal(t, []string{"f1", "f2"}, FileIDs(obs))
}

func BenchmarkAssemble(b *testing.B) {
	var obs []Observation
	for f := 0; f < 200; f++ {
		for k := 0; k < 300; k++ {
			obs = append(obs, Observation{FileID: fmt.Sprintf("file-%d", f), Key: fmt.Sprintf("opcode:%d", k), Count: 1})
		}
	}
	ix := BuildIndex(obs)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		vectors, _ := Assemble(obs, ix, nil)
		_ = vectors
	}
}
