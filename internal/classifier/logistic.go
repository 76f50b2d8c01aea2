package classifier

import (
	"fmt"
	"math"
	"sort"

	"github.com/sortdesk/mailtriage/internal/common"
	"github.com/sortdesk/mailtriage/internal/model"
)

// Training hyperparameters. Training is full-batch with zero-initialized
// weights, so a fixed sample set always produces the same model.
const (
	learningRate = 0.5
	epochs       = 300
)

// Model is a multinomial logistic regression classifier over TF-IDF vectors.
// Weights holds one row per class; each row has Dim+1 entries, the last being
// the bias term.
type Model struct {
	Classes []model.Label
	Weights [][]float64
	Dim     int
}

// FitModel trains a model on the given vectors and labels via softmax
// cross-entropy gradient descent.
func FitModel(vectors [][]float64, labels []model.Label) (*Model, error) {
	if len(vectors) == 0 || len(vectors) != len(labels) {
		return nil, fmt.Errorf("vectors and labels must be non-empty and equal length")
	}

	dim := len(vectors[0])
	classSet := make(map[model.Label]bool)
	for _, l := range labels {
		classSet[l] = true
	}
	classes := make([]model.Label, 0, len(classSet))
	for l := range classSet {
		classes = append(classes, l)
	}
	sort.Slice(classes, func(i, j int) bool { return classes[i] < classes[j] })

	classIndex := make(map[model.Label]int, len(classes))
	for i, l := range classes {
		classIndex[l] = i
	}

	m := &Model{
		Classes: classes,
		Weights: make([][]float64, len(classes)),
		Dim:     dim,
	}
	for i := range m.Weights {
		m.Weights[i] = make([]float64, dim+1)
	}

	n := float64(len(vectors))
	for epoch := 0; epoch < epochs; epoch++ {
		grads := make([][]float64, len(classes))
		for i := range grads {
			grads[i] = make([]float64, dim+1)
		}

		for i, vec := range vectors {
			probs := m.softmax(vec)
			target := classIndex[labels[i]]
			for c := range classes {
				diff := probs[c]
				if c == target {
					diff -= 1
				}
				for j, x := range vec {
					grads[c][j] += diff * x
				}
				grads[c][dim] += diff
			}
		}

		for c := range m.Weights {
			for j := range m.Weights[c] {
				m.Weights[c][j] -= learningRate * grads[c][j] / n
			}
		}
	}

	return m, nil
}

// Predict returns the most probable label for the vector. A vector whose size
// does not match the trained weights is a feature drift error, never a silent
// truncation.
func (m *Model) Predict(vec []float64) (model.Label, error) {
	if len(vec) != m.Dim {
		return "", fmt.Errorf("%w: got %d features, model expects %d",
			common.ErrClassifierMismatch, len(vec), m.Dim)
	}

	probs := m.softmax(vec)
	best := 0
	for c := 1; c < len(probs); c++ {
		if probs[c] > probs[best] {
			best = c
		}
	}
	return m.Classes[best], nil
}

func (m *Model) softmax(vec []float64) []float64 {
	scores := make([]float64, len(m.Classes))
	maxScore := math.Inf(-1)
	for c, w := range m.Weights {
		s := w[m.Dim] // bias
		for j, x := range vec {
			s += w[j] * x
		}
		scores[c] = s
		if s > maxScore {
			maxScore = s
		}
	}

	var sum float64
	for c, s := range scores {
		scores[c] = math.Exp(s - maxScore)
		sum += scores[c]
	}
	for c := range scores {
		scores[c] /= sum
	}
	return scores
}
