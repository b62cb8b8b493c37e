package classifier

import (
	"math"

	"github.com/recycle-ai/recycle/internal/prediction"
)

const distributionTolerance = 1e-3

// scores returns a probability distribution over raw outputs. Outputs that
// already form one (exported models usually end in a softmax layer) pass
// through unchanged; anything else is treated as logits.
func scores(raw []float32) []float32 {
	if isDistribution(raw) {
		out := make([]float32, len(raw))
		copy(out, raw)
		return out
	}
	return softmax(raw)
}

func isDistribution(v []float32) bool {
	if len(v) == 0 {
		return false
	}
	sum := 0.0
	for _, x := range v {
		if x < 0 || x > 1 || math.IsNaN(float64(x)) {
			return false
		}
		sum += float64(x)
	}
	return math.Abs(sum-1) <= distributionTolerance
}

func softmax(logits []float32) []float32 {
	if len(logits) == 0 {
		return nil
	}
	maxVal := logits[0]
	for _, v := range logits[1:] {
		if v > maxVal {
			maxVal = v
		}
	}
	sum := 0.0
	out := make([]float32, len(logits))
	for i, v := range logits {
		exp := math.Exp(float64(v - maxVal))
		out[i] = float32(exp)
		sum += exp
	}
	if sum == 0 {
		return out
	}
	for i := range out {
		out[i] = float32(float64(out[i]) / sum)
	}
	return out
}

// entries pairs labels with probabilities in model output order.
func entries(labels []string, probs []float32) []prediction.Entry {
	n := len(labels)
	if len(probs) < n {
		n = len(probs)
	}
	out := make([]prediction.Entry, n)
	for i := 0; i < n; i++ {
		out[i] = prediction.Entry{Label: labels[i], Probability: float64(probs[i])}
	}
	return out
}
