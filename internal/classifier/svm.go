package classifier

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	libsvm "github.com/ewalker544/libsvm-go"

	"github.com/Adithya-Monish-Kumar-K/Malware-Classification-Pipeline/internal/labels"
	apperrors "github.com/Adithya-Monish-Kumar-K/Malware-Classification-Pipeline/pkg/errors"
)

// SVM trains a C-support vector classifier with an RBF kernel through
// libsvm. Counts are log1p-scaled before training and prediction. A zero
// Gamma uses 1/dimensions.
type SVM struct {
	C     float64
	Gamma float64
}

func (s SVM) String() string {
	return fmt.Sprintf("svm_rbf(c=%g,gamma=%g)", s.C, s.Gamma)
}

// SVMModel maps libsvm's numeric classes back to labels. With a single
// class or no features there is nothing to separate and every vector gets
// the majority label.
type SVMModel struct {
	Classes    []string
	Dimensions int
	model      *libsvm.Model
	constant   string
}

func (s SVM) Train(examples []labels.Example) (Model, error) {
	if s.C <= 0 || s.Gamma < 0 {
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, apperrors.ExitUsage,
			"svm needs c > 0 and gamma >= 0, got c=%g gamma=%g", s.C, s.Gamma)
	}
	d, err := dimension(examples)
	if err != nil {
		return nil, err
	}
	for _, ex := range examples {
		for j, v := range ex.Vector.Values {
			if v < 0 {
				return nil, apperrors.Newf(apperrors.ErrInvalidInput, apperrors.ExitData,
					"file %s has negative count at position %d", ex.FileID, j)
			}
		}
	}

	classes := classesOf(examples)
	m := &SVMModel{Classes: classes, Dimensions: d}
	if len(classes) == 1 || d == 0 {
		m.constant = majority(examples)
		return m, nil
	}

	dir, err := os.MkdirTemp("", "svm-problem-*")
	if err != nil {
		return nil, fmt.Errorf("creating svm problem dir: %w", err)
	}
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "train.svm")
	if err := writeProblem(path, examples, classes, d); err != nil {
		return nil, err
	}

	gamma := s.Gamma
	if gamma == 0 {
		gamma = 1 / float64(d)
	}
	param := libsvm.NewParameter()
	param.SvmType = libsvm.C_SVC
	param.KernelType = libsvm.RBF
	param.C = s.C
	param.Gamma = gamma
	param.QuietMode = true

	problem, err := libsvm.NewProblem(path, param)
	if err != nil {
		return nil, fmt.Errorf("reading svm problem: %w", err)
	}
	model := libsvm.NewModel(param)
	if err := model.Train(problem); err != nil {
		return nil, fmt.Errorf("training svm: %w", err)
	}
	m.model = model
	return m, nil
}

// Predict returns the class libsvm selects. It panics when values does not
// have the trained length.
func (m *SVMModel) Predict(values []float64) string {
	if len(values) != m.Dimensions {
		panic(fmt.Sprintf("classifier: vector of length %d, model expects %d", len(values), m.Dimensions))
	}
	if m.model == nil {
		return m.constant
	}
	class := int(math.Round(m.model.Predict(sparse(values)))) - 1
	if class < 0 || class >= len(m.Classes) {
		panic(fmt.Sprintf("classifier: svm returned unknown class %d", class+1))
	}
	return m.Classes[class]
}

// sparse converts values to libsvm's 1-based node map. Index len(values)+1
// is a constant feature so no problem line is empty; it does not move RBF
// distances.
func sparse(values []float64) map[int]float64 {
	x := make(map[int]float64, len(values)+1)
	for j, v := range values {
		if v != 0 {
			x[j+1] = math.Log1p(v)
		}
	}
	x[len(values)+1] = 1
	return x
}

// writeProblem stores examples in libsvm's text format, labelling class i
// of classes as i+1.
func writeProblem(path string, examples []labels.Example, classes []string, d int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating svm problem: %w", err)
	}
	defer f.Close()

	index := make(map[string]int, len(classes))
	for i, c := range classes {
		index[c] = i + 1
	}
	w := bufio.NewWriter(f)
	for _, ex := range examples {
		w.WriteString(strconv.Itoa(index[ex.Label]))
		for j, v := range ex.Vector.Values {
			if v != 0 {
				fmt.Fprintf(w, " %d:%s", j+1, strconv.FormatFloat(math.Log1p(v), 'g', -1, 64))
			}
		}
		fmt.Fprintf(w, " %d:1\n", d+1)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("writing svm problem: %w", err)
	}
	return f.Close()
}

func classesOf(examples []labels.Example) []string {
	seen := make(map[string]bool)
	var classes []string
	for _, ex := range examples {
		if !seen[ex.Label] {
			seen[ex.Label] = true
			classes = append(classes, ex.Label)
		}
	}
	sort.Strings(classes)
	return classes
}

// majority is the most frequent label; ties go to the smallest label.
func majority(examples []labels.Example) string {
	counts := make(map[string]int)
	for _, ex := range examples {
		counts[ex.Label]++
	}
	best := ""
	for _, c := range classesOf(examples) {
		if best == "" || counts[c] > counts[best] {
			best = c
		}
	}
	return best
}
