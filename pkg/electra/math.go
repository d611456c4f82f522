package electra

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Softmax converts logits into a probability distribution summing to 1.
func Softmax(logits []float64) []float64 {
	if len(logits) == 0 {
		return nil
	}

	max := logits[0]
	for _, v := range logits[1:] {
		if v > max {
			max = v
		}
	}

	probs := make([]float64, len(logits))
	var sum float64
	for i, v := range logits {
		probs[i] = math.Exp(v - max)
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}

	return probs
}

// gelu is the exact (erf-based) formulation used by the ELECTRA reference.
func gelu(x float64) float64 {
	return 0.5 * x * (1 + math.Erf(x/math.Sqrt2))
}

func applyGELU(x *mat.Dense) {
	x.Apply(func(_, _ int, v float64) float64 { return gelu(v) }, x)
}

func softmaxRows(x *mat.Dense) {
	rows, _ := x.Dims()
	for i := 0; i < rows; i++ {
		row := x.RawRowView(i)
		copy(row, Softmax(row))
	}
}
