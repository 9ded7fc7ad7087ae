package labels

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Malware-Classification-Pipeline/internal/features"
	apperrors "github.com/Adithya-Monish-Kumar-K/Malware-Classification-Pipeline/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPairPositional(t *testing.T) {
	pairs, err := Pair([]string{"h1", "h2", "h3"}, []string{"2", "9", "2"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"h1": "2", "h2": "9", "h3": "2"}, pairs)
}

func TestPairLengthMismatch(t *testing.T) {
	_, err := Pair([]string{"h1", "h2"}, []string{"1"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrLengthMismatch))
	assert.Equal(t, apperrors.ExitData, apperrors.ExitCode(err))
}

func TestPairDuplicateKeepsLast(t *testing.T) {
	pairs, err := Pair([]string{"h1", "h1"}, []string{"1", "3"})
	require.NoError(t, err)
	assert.Equal(t, "3", pairs["h1"])
}

func TestJoinInner(t *testing.T) {
	vectors := map[string]features.DenseVector{
		"h2": {FileID: "h2", Values: []float64{1}},
		"h1": {FileID: "h1", Values: []float64{2}},
		"h9": {FileID: "h9", Values: []float64{3}},
	}
	labelMap := map[string]string{"h1": "a", "h2": "b", "h3": "c"}

	examples := Join(vectors, labelMap)
	require.Len(t, examples, 2)
	assert.Equal(t, "h1", examples[0].FileID)
	assert.Equal(t, "a", examples[0].Label)
	assert.Equal(t, []float64{2}, examples[0].Vector.Values)
	assert.Equal(t, "h2", examples[1].FileID)
}

func TestReadLinesKeepsBlankLines(t *testing.T) {
	lines, err := ReadLines(strings.NewReader("h1\n  h2 \r\n\nh4\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"h1", "h2", "", "h4"}, lines)
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "y_train.txt")
	require.NoError(t, os.WriteFile(path, []byte("1\n2\n"), 0o644))

	lines, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, lines)

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}
