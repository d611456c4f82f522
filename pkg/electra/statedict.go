package electra

import (
	"github.com/labzang/sentiment-server/pkg/safetensors"
)

// LoadStateDict reads a safetensors file into a name-keyed tensor map.
func LoadStateDict(path string) (map[string]*safetensors.Tensor, error) {
	return safetensors.Load(path)
}

// SaveStateDict writes a name-keyed tensor map as a safetensors file.
func SaveStateDict(path string, tensors map[string]*safetensors.Tensor) error {
	return safetensors.Save(path, tensors)
}

// LoadMatching copies every checkpoint tensor whose name and shape match a
// network parameter into the network. Tensors the network does not know, or
// whose shapes disagree, are left alone. It returns the number of tensors
// copied and the number skipped.
func (m *ForSequenceClassification) LoadMatching(checkpoint map[string]*safetensors.Tensor) (copied, skipped int) {
	for name, src := range checkpoint {
		dst, ok := m.params[name]
		if !ok || !dst.ShapeEquals(src.Shape) {
			skipped++
			continue
		}
		copy(dst.Data, src.Data)
		copied++
	}
	return copied, skipped
}

// HeadMatches reports whether the checkpoint carries a classification output
// layer shaped for this network's label set.
func (m *ForSequenceClassification) HeadMatches(checkpoint map[string]*safetensors.Tensor) bool {
	w, ok := checkpoint[paramClassifierOutWeight]
	if !ok || !m.params[paramClassifierOutWeight].ShapeEquals(w.Shape) {
		return false
	}
	b, ok := checkpoint[paramClassifierOutBias]
	return ok && m.params[paramClassifierOutBias].ShapeEquals(b.Shape)
}
