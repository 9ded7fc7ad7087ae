package classifier

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/Malware-Classification-Pipeline/internal/labels"
	apperrors "github.com/Adithya-Monish-Kumar-K/Malware-Classification-Pipeline/pkg/errors"
)

// CrossValidate returns the mean accuracy of trainer over folds folds.
// Example i is held out in fold i mod folds, so the split is deterministic
// for a given example order.
func CrossValidate(ctx context.Context, trainer Trainer, examples []labels.Example, folds int) (float64, error) {
	if folds < 2 || folds > len(examples) {
		return 0, apperrors.Newf(apperrors.ErrInvalidInput, apperrors.ExitData,
			"cannot split %d examples into %d folds", len(examples), folds)
	}
	total := 0.0
	for f := 0; f < folds; f++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		var train, test []labels.Example
		for i, ex := range examples {
			if i%folds == f {
				test = append(test, ex)
			} else {
				train = append(train, ex)
			}
		}
		model, err := trainer.Train(train)
		if err != nil {
			return 0, fmt.Errorf("fold %d: %w", f, err)
		}
		predicted := make([]string, len(test))
		actual := make([]string, len(test))
		for i, ex := range test {
			predicted[i] = model.Predict(ex.Vector.Values)
			actual[i] = ex.Label
		}
		acc, err := Accuracy(predicted, actual)
		if err != nil {
			return 0, fmt.Errorf("fold %d: %w", f, err)
		}
		total += acc
	}
	return total / float64(folds), nil
}

// Candidate is one named trainer configuration in a grid search.
type Candidate struct {
	Name    string
	Trainer Trainer
}

// NaiveBayesGrid returns one candidate per smoothing value.
func NaiveBayesGrid(alphas []float64) []Candidate {
	candidates := make([]Candidate, len(alphas))
	for i, a := range alphas {
		nb := NaiveBayes{Alpha: a}
		candidates[i] = Candidate{Name: nb.String(), Trainer: nb}
	}
	return candidates
}

// SVMGrid returns one candidate per (cost, gamma) pair. No gammas means
// gamma 0 only; no costs disables the family.
func SVMGrid(costs, gammas []float64) []Candidate {
	if len(gammas) == 0 {
		gammas = []float64{0}
	}
	candidates := make([]Candidate, 0, len(costs)*len(gammas))
	for _, c := range costs {
		for _, g := range gammas {
			svm := SVM{C: c, Gamma: g}
			candidates = append(candidates, Candidate{Name: svm.String(), Trainer: svm})
		}
	}
	return candidates
}

// Score is the cross-validated accuracy of one candidate.
type Score struct {
	Candidate string  `json:"candidate"`
	Accuracy  float64 `json:"accuracy"`
}

// Result is the outcome of a grid search. Model is the best candidate
// refitted on every example.
type Result struct {
	Best     Candidate
	Accuracy float64
	Scores   []Score
	Model    Model
}

// GridSearch cross-validates every candidate and refits the best one on all
// examples. The earliest candidate wins ties.
func GridSearch(ctx context.Context, candidates []Candidate, examples []labels.Example, folds int) (*Result, error) {
	if len(candidates) == 0 {
		return nil, apperrors.New(apperrors.ErrInvalidInput, apperrors.ExitUsage, "no classifier candidates")
	}
	logger := slog.Default().With("component", "grid-search")
	res := &Result{Scores: make([]Score, 0, len(candidates))}
	best := -1
	for i, c := range candidates {
		acc, err := CrossValidate(ctx, c.Trainer, examples, folds)
		if err != nil {
			return nil, fmt.Errorf("cross-validating %s: %w", c.Name, err)
		}
		logger.Info("candidate evaluated", "candidate", c.Name, "cv_accuracy", acc, "folds", folds)
		res.Scores = append(res.Scores, Score{Candidate: c.Name, Accuracy: acc})
		if best < 0 || acc > res.Accuracy {
			best, res.Accuracy = i, acc
		}
	}
	res.Best = candidates[best]
	model, err := res.Best.Trainer.Train(examples)
	if err != nil {
		return nil, fmt.Errorf("fitting %s: %w", res.Best.Name, err)
	}
	res.Model = model
	return res, nil
}
