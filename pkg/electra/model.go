package electra

import (
	"fmt"
	"math/rand"

	"github.com/labzang/sentiment-server/pkg/safetensors"
)

// Parameter names follow the HuggingFace state-dict convention so that
// checkpoint tensors can be matched by name during loading.
const (
	paramWordEmbeddings     = "electra.embeddings.word_embeddings.weight"
	paramPositionEmbeddings = "electra.embeddings.position_embeddings.weight"
	paramTypeEmbeddings     = "electra.embeddings.token_type_embeddings.weight"
	paramEmbeddingsLNWeight = "electra.embeddings.LayerNorm.weight"
	paramEmbeddingsLNBias   = "electra.embeddings.LayerNorm.bias"
	paramProjectWeight      = "electra.embeddings_project.weight"
	paramProjectBias        = "electra.embeddings_project.bias"

	paramClassifierDenseWeight = "classifier.dense.weight"
	paramClassifierDenseBias   = "classifier.dense.bias"
	paramClassifierOutWeight   = "classifier.out_proj.weight"
	paramClassifierOutBias     = "classifier.out_proj.bias"
)

func layerParam(layer int, suffix string) string {
	return fmt.Sprintf("electra.encoder.layer.%d.%s", layer, suffix)
}

// ForSequenceClassification holds the named parameters of an ELECTRA encoder
// plus a classification head. A freshly constructed model carries randomly
// initialized weights; checkpoint tensors are copied in afterwards.
type ForSequenceClassification struct {
	cfg    *Config
	params map[string]*safetensors.Tensor
}

// NewForSequenceClassification builds a model with every parameter present
// and initialized: weights from N(0, initializer_range), biases zero,
// LayerNorm scales one.
func NewForSequenceClassification(cfg *Config, rng *rand.Rand) *ForSequenceClassification {
	m := &ForSequenceClassification{
		cfg:    cfg,
		params: make(map[string]*safetensors.Tensor),
	}

	m.addNormal(rng, paramWordEmbeddings, cfg.VocabSize, cfg.EmbeddingSize)
	m.addNormal(rng, paramPositionEmbeddings, cfg.MaxPositionEmbeddings, cfg.EmbeddingSize)
	m.addNormal(rng, paramTypeEmbeddings, cfg.TypeVocabSize, cfg.EmbeddingSize)
	m.addOnes(paramEmbeddingsLNWeight, cfg.EmbeddingSize)
	m.addZeros(paramEmbeddingsLNBias, cfg.EmbeddingSize)

	if cfg.EmbeddingSize != cfg.HiddenSize {
		m.addNormal(rng, paramProjectWeight, cfg.HiddenSize, cfg.EmbeddingSize)
		m.addZeros(paramProjectBias, cfg.HiddenSize)
	}

	for i := 0; i < cfg.NumHiddenLayers; i++ {
		for _, name := range []string{"attention.self.query", "attention.self.key", "attention.self.value", "attention.output.dense"} {
			m.addNormal(rng, layerParam(i, name+".weight"), cfg.HiddenSize, cfg.HiddenSize)
			m.addZeros(layerParam(i, name+".bias"), cfg.HiddenSize)
		}
		m.addOnes(layerParam(i, "attention.output.LayerNorm.weight"), cfg.HiddenSize)
		m.addZeros(layerParam(i, "attention.output.LayerNorm.bias"), cfg.HiddenSize)

		m.addNormal(rng, layerParam(i, "intermediate.dense.weight"), cfg.IntermediateSize, cfg.HiddenSize)
		m.addZeros(layerParam(i, "intermediate.dense.bias"), cfg.IntermediateSize)
		m.addNormal(rng, layerParam(i, "output.dense.weight"), cfg.HiddenSize, cfg.IntermediateSize)
		m.addZeros(layerParam(i, "output.dense.bias"), cfg.HiddenSize)
		m.addOnes(layerParam(i, "output.LayerNorm.weight"), cfg.HiddenSize)
		m.addZeros(layerParam(i, "output.LayerNorm.bias"), cfg.HiddenSize)
	}

	m.addNormal(rng, paramClassifierDenseWeight, cfg.HiddenSize, cfg.HiddenSize)
	m.addZeros(paramClassifierDenseBias, cfg.HiddenSize)
	m.addNormal(rng, paramClassifierOutWeight, cfg.NumLabels, cfg.HiddenSize)
	m.addZeros(paramClassifierOutBias, cfg.NumLabels)

	return m
}

// Config returns the model configuration.
func (m *ForSequenceClassification) Config() *Config {
	return m.cfg
}

// NamedTensors exposes the parameter registry keyed by state-dict name.
func (m *ForSequenceClassification) NamedTensors() map[string]*safetensors.Tensor {
	return m.params
}

// ReinitClassifierOutput resets the final classification layer: weights from
// N(0, initializer_range), biases zero.
func (m *ForSequenceClassification) ReinitClassifierOutput(rng *rand.Rand) {
	w := m.params[paramClassifierOutWeight]
	for i := range w.Data {
		w.Data[i] = float32(rng.NormFloat64() * m.cfg.InitializerRange)
	}

	b := m.params[paramClassifierOutBias]
	for i := range b.Data {
		b.Data[i] = 0
	}
}

func (m *ForSequenceClassification) addNormal(rng *rand.Rand, name string, shape ...int) {
	t := newTensor(shape)
	for i := range t.Data {
		t.Data[i] = float32(rng.NormFloat64() * m.cfg.InitializerRange)
	}
	m.params[name] = t
}

func (m *ForSequenceClassification) addZeros(name string, shape ...int) {
	m.params[name] = newTensor(shape)
}

func (m *ForSequenceClassification) addOnes(name string, shape ...int) {
	t := newTensor(shape)
	for i := range t.Data {
		t.Data[i] = 1
	}
	m.params[name] = t
}

func newTensor(shape []int) *safetensors.Tensor {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return &safetensors.Tensor{Shape: shape, Data: make([]float32, n)}
}
