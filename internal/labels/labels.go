// Package labels pairs training file ids with their labels and joins them
// onto assembled feature vectors.
//
// The label source carries no key of its own: the Nth label belongs to the
// Nth file id of the training list. Pair enforces that the two sequences
// have the same length instead of silently zipping the shorter prefix.
package labels

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Malware-Classification-Pipeline/internal/features"
	apperrors "github.com/Adithya-Monish-Kumar-K/Malware-Classification-Pipeline/pkg/errors"
)

// Example is a labelled training vector.
type Example struct {
	FileID string
	Label  string
	Vector features.DenseVector
}

// Pair maps fileIDs[i] to labels[i]. A file id listed twice keeps its last
// label.
func Pair(fileIDs, labels []string) (map[string]string, error) {
	if len(fileIDs) != len(labels) {
		return nil, apperrors.Newf(apperrors.ErrLengthMismatch, apperrors.ExitData,
			"%d file ids but %d labels", len(fileIDs), len(labels))
	}
	pairs := make(map[string]string, len(fileIDs))
	for i, id := range fileIDs {
		pairs[id] = labels[i]
	}
	return pairs, nil
}

// Join attaches labels to vectors by file id. Vectors without a label are
// dropped. The result is sorted by file id.
func Join(vectors map[string]features.DenseVector, labels map[string]string) []Example {
	examples := make([]Example, 0, len(vectors))
	for id, v := range vectors {
		label, ok := labels[id]
		if !ok {
			continue
		}
		examples = append(examples, Example{FileID: id, Label: label, Vector: v})
	}
	sort.Slice(examples, func(i, j int) bool {
		return examples[i].FileID < examples[j].FileID
	})
	return examples
}

// ReadLines returns every line of r with surrounding whitespace removed.
// Blank lines are kept so positions stay aligned with the companion list.
func ReadLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, strings.TrimSpace(scanner.Text()))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning lines: %w", err)
	}
	return lines, nil
}

// ReadFile reads a file-id or label list from disk.
func ReadFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	lines, err := ReadLines(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return lines, nil
}
