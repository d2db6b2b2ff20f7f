package vision

import (
	"fmt"

	"fruitfresh/internal/fruit"
)

// PredictImage runs t through m and returns the highest-scoring label.
func PredictImage(m Model, t *Tensor) (fruit.Label, error) {
	if err := t.Validate(); err != nil {
		return 0, err
	}
	scores, err := m.Scores(t)
	if err != nil {
		return 0, err
	}
	if len(scores) != fruit.NumLabels {
		return 0, fmt.Errorf("%w: model returned %d scores, catalog has %d", ErrClassCountMismatch, len(scores), fruit.NumLabels)
	}
	return fruit.LabelAt(Argmax(scores))
}

// Argmax returns the index of the largest score, the lowest index on ties,
// and -1 for an empty slice.
func Argmax(scores []float32) int {
	if len(scores) == 0 {
		return -1
	}
	best := 0
	for i := 1; i < len(scores); i++ {
		if scores[i] > scores[best] {
			best = i
		}
	}
	return best
}
