package classifier

import (
	"fmt"
	"math"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/Malware-Classification-Pipeline/internal/labels"
	apperrors "github.com/Adithya-Monish-Kumar-K/Malware-Classification-Pipeline/pkg/errors"
)

// NaiveBayes trains a multinomial naive Bayes model with additive
// smoothing Alpha.
type NaiveBayes struct {
	Alpha float64
}

func (nb NaiveBayes) String() string {
	return fmt.Sprintf("naive_bayes(alpha=%g)", nb.Alpha)
}

// NaiveBayesModel holds log priors and per-class log feature likelihoods.
// Classes are sorted so equal scores resolve to the smallest label.
type NaiveBayesModel struct {
	Classes    []string
	LogPrior   []float64
	LogLikeli  [][]float64
	Dimensions int
}

func (nb NaiveBayes) Train(examples []labels.Example) (Model, error) {
	if nb.Alpha <= 0 {
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, apperrors.ExitUsage, "alpha must be positive, got %g", nb.Alpha)
	}
	d, err := dimension(examples)
	if err != nil {
		return nil, err
	}

	docs := make(map[string]int)
	sums := make(map[string][]float64)
	for _, ex := range examples {
		s, ok := sums[ex.Label]
		if !ok {
			s = make([]float64, d)
			sums[ex.Label] = s
		}
		for j, v := range ex.Vector.Values {
			if v < 0 {
				return nil, apperrors.Newf(apperrors.ErrInvalidInput, apperrors.ExitData,
					"file %s has negative count at position %d", ex.FileID, j)
			}
			s[j] += v
		}
		docs[ex.Label]++
	}

	classes := make([]string, 0, len(docs))
	for c := range docs {
		classes = append(classes, c)
	}
	sort.Strings(classes)

	m := &NaiveBayesModel{
		Classes:    classes,
		LogPrior:   make([]float64, len(classes)),
		LogLikeli:  make([][]float64, len(classes)),
		Dimensions: d,
	}
	n := float64(len(examples))
	for i, c := range classes {
		m.LogPrior[i] = math.Log(float64(docs[c]) / n)
		total := 0.0
		for _, v := range sums[c] {
			total += v
		}
		denom := math.Log(total + nb.Alpha*float64(d))
		ll := make([]float64, d)
		for j, v := range sums[c] {
			ll[j] = math.Log(v+nb.Alpha) - denom
		}
		m.LogLikeli[i] = ll
	}
	return m, nil
}

// Predict returns the most probable class. It panics when values does not
// have the trained length.
func (m *NaiveBayesModel) Predict(values []float64) string {
	if len(values) != m.Dimensions {
		panic(fmt.Sprintf("classifier: vector of length %d, model expects %d", len(values), m.Dimensions))
	}
	best := -1
	bestScore := math.Inf(-1)
	for i := range m.Classes {
		score := m.LogPrior[i]
		for j, v := range values {
			if v != 0 {
				score += v * m.LogLikeli[i][j]
			}
		}
		if best < 0 || score > bestScore {
			best, bestScore = i, score
		}
	}
	return m.Classes[best]
}
