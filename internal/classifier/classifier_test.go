package classifier

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Malware-Classification-Pipeline/internal/features"
	"github.com/Adithya-Monish-Kumar-K/Malware-Classification-Pipeline/internal/labels"
	apperrors "github.com/Adithya-Monish-Kumar-K/Malware-Classification-Pipeline/pkg/errors"
)

func example(id, label string, values ...float64) labels.Example {
	return labels.Example{FileID: id, Label: label, Vector: features.DenseVector{FileID: id, Values: values}}
}

// Two well separated families: "1" uses the first feature, "2" the second.
func separable() []labels.Example {
	return []labels.Example{
		example("a", "1", 9, 0),
		example("b", "2", 0, 7),
		example("c", "1", 8, 1),
		example("d", "2", 1, 9),
		example("e", "1", 6, 0),
		example("f", "2", 0, 5),
		example("g", "1", 7, 2),
		example("h", "2", 2, 8),
	}
}

func TestNaiveBayesSeparatesFamilies(t *testing.T) {
	model, err := NaiveBayes{Alpha: 1}.Train(separable())
	require.NoError(t, err)
	assert.Equal(t, "1", model.Predict([]float64{5, 0}))
	assert.Equal(t, "2", model.Predict([]float64{0, 5}))
}

func TestNaiveBayesEmptyIndexPredictsMajority(t *testing.T) {
	model, err := NaiveBayes{Alpha: 1}.Train([]labels.Example{
		example("a", "3"),
		example("b", "1"),
		example("c", "3"),
	})
	require.NoError(t, err)
	assert.Equal(t, "3", model.Predict(nil))
}

func TestNaiveBayesTieResolvesToSmallestLabel(t *testing.T) {
	model, err := NaiveBayes{Alpha: 1}.Train([]labels.Example{
		example("a", "b", 1),
		example("b", "a", 1),
	})
	require.NoError(t, err)
	assert.Equal(t, "a", model.Predict([]float64{1}))
}

func TestNaiveBayesErrors(t *testing.T) {
	_, err := NaiveBayes{Alpha: 1}.Train(nil)
	assert.ErrorIs(t, err, apperrors.ErrEmptyTrainingSet)

	_, err = NaiveBayes{Alpha: 1}.Train([]labels.Example{example("a", "1", 1, 2), example("b", "2", 1)})
	assert.ErrorIs(t, err, apperrors.ErrDimensionMismatch)

	_, err = NaiveBayes{Alpha: 0}.Train(separable())
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = NaiveBayes{Alpha: 1}.Train([]labels.Example{example("a", "1", -1)})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestPredictPanicsOnWrongLength(t *testing.T) {
	model, err := NaiveBayes{Alpha: 1}.Train(separable())
	require.NoError(t, err)
	assert.Panics(t, func() { model.Predict([]float64{1}) })
}

func TestAccuracy(t *testing.T) {
	acc, err := Accuracy([]string{"1", "2", "3", "1"}, []string{"1", "2", "1", "1"})
	require.NoError(t, err)
	assert.InDelta(t, 0.75, acc, 1e-9)

	_, err = Accuracy([]string{"1"}, []string{"1", "2"})
	assert.ErrorIs(t, err, apperrors.ErrLengthMismatch)
	assert.Equal(t, apperrors.ExitData, apperrors.ExitCode(err))

	_, err = Accuracy(nil, nil)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

type recordingTrainer struct {
	sizes []int
}

func (r *recordingTrainer) Train(examples []labels.Example) (Model, error) {
	r.sizes = append(r.sizes, len(examples))
	return constantModel("1"), nil
}

type constantModel string

func (c constantModel) Predict([]float64) string { return string(c) }

func TestCrossValidateIsDeterministic(t *testing.T) {
	ctx := context.Background()
	first, err := CrossValidate(ctx, NaiveBayes{Alpha: 1}, separable(), 4)
	require.NoError(t, err)
	second, err := CrossValidate(ctx, NaiveBayes{Alpha: 1}, separable(), 4)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.InDelta(t, 1.0, first, 1e-9)
}

func TestCrossValidateFoldSizes(t *testing.T) {
	rec := &recordingTrainer{}
	acc, err := CrossValidate(context.Background(), rec, separable()[:7], 3)
	require.NoError(t, err)
	// folds hold out examples {0,3,6}, {1,4}, {2,5}
	assert.Equal(t, []int{4, 5, 5}, rec.sizes)
	assert.Greater(t, acc, 0.0)
}

func TestCrossValidateRejectsBadFolds(t *testing.T) {
	_, err := CrossValidate(context.Background(), NaiveBayes{Alpha: 1}, separable(), 1)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	_, err = CrossValidate(context.Background(), NaiveBayes{Alpha: 1}, separable(), 9)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestCrossValidateHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := CrossValidate(ctx, NaiveBayes{Alpha: 1}, separable(), 2)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestGridSearchFirstCandidateWinsTies(t *testing.T) {
	res, err := GridSearch(context.Background(), NaiveBayesGrid([]float64{0.5, 1.0}), separable(), 4)
	require.NoError(t, err)
	assert.Equal(t, "naive_bayes(alpha=0.5)", res.Best.Name)
	assert.Len(t, res.Scores, 2)
	assert.Equal(t, res.Scores[0].Accuracy, res.Scores[1].Accuracy)
	require.NotNil(t, res.Model)
	assert.Equal(t, "2", res.Model.Predict([]float64{0, 3}))
}

func TestGridSearchPicksBest(t *testing.T) {
	candidates := []Candidate{
		{Name: "always-1", Trainer: &recordingTrainer{}},
		{Name: "nb", Trainer: NaiveBayes{Alpha: 1}},
	}
	res, err := GridSearch(context.Background(), candidates, separable(), 4)
	require.NoError(t, err)
	assert.Equal(t, "nb", res.Best.Name)
	assert.InDelta(t, 0.5, res.Scores[0].Accuracy, 1e-9)
}

func TestGridSearchRequiresCandidates(t *testing.T) {
	_, err := GridSearch(context.Background(), nil, separable(), 2)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestPredictAllKeepsOrder(t *testing.T) {
	model, err := NaiveBayes{Alpha: 1}.Train(separable())
	require.NoError(t, err)
	preds := PredictAll(model, []features.DenseVector{
		{FileID: "z", Values: []float64{0, 4}},
		{FileID: "y", Values: []float64{4, 0}},
	})
	assert.Equal(t, []Prediction{{FileID: "z", Label: "2"}, {FileID: "y", Label: "1"}}, preds)
}
