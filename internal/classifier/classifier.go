// Package classifier defines the boundary between assembled feature vectors
// and a learning algorithm. It provides a multinomial naive Bayes model, a
// libsvm RBF support vector classifier, k-fold cross-validation and a grid
// search over candidate trainers of both families.
package classifier

import (
	"github.com/Adithya-Monish-Kumar-K/Malware-Classification-Pipeline/internal/features"
	"github.com/Adithya-Monish-Kumar-K/Malware-Classification-Pipeline/internal/labels"
	apperrors "github.com/Adithya-Monish-Kumar-K/Malware-Classification-Pipeline/pkg/errors"
)

// Model predicts a label for a vector of the length it was trained on.
type Model interface {
	Predict(values []float64) string
}

// Trainer fits a Model to labelled examples.
type Trainer interface {
	Train(examples []labels.Example) (Model, error)
}

// Prediction is the predicted label of one test file.
type Prediction struct {
	FileID string `json:"file_id"`
	Label  string `json:"prediction"`
}

// PredictAll predicts every vector, keeping the order of vectors.
func PredictAll(model Model, vectors []features.DenseVector) []Prediction {
	preds := make([]Prediction, len(vectors))
	for i, v := range vectors {
		preds[i] = Prediction{FileID: v.FileID, Label: model.Predict(v.Values)}
	}
	return preds
}

// Accuracy is the fraction of positions where predicted equals actual.
func Accuracy(predicted, actual []string) (float64, error) {
	if len(predicted) != len(actual) {
		return 0, apperrors.Newf(apperrors.ErrLengthMismatch, apperrors.ExitData,
			"%d predictions but %d labels", len(predicted), len(actual))
	}
	if len(predicted) == 0 {
		return 0, apperrors.New(apperrors.ErrInvalidInput, apperrors.ExitData, "no predictions to score")
	}
	correct := 0
	for i := range predicted {
		if predicted[i] == actual[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(predicted)), nil
}

// dimension returns the shared vector length of examples.
func dimension(examples []labels.Example) (int, error) {
	if len(examples) == 0 {
		return 0, apperrors.New(apperrors.ErrEmptyTrainingSet, apperrors.ExitData, "no labelled training vectors")
	}
	d := len(examples[0].Vector.Values)
	for _, ex := range examples[1:] {
		if len(ex.Vector.Values) != d {
			return 0, apperrors.Newf(apperrors.ErrDimensionMismatch, apperrors.ExitData,
				"file %s has %d values, expected %d", ex.FileID, len(ex.Vector.Values), d)
		}
	}
	return d, nil
}
