package electra

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/labzang/sentiment-server/pkg/safetensors"
)

// Forward runs one pass over a single tokenized sequence and returns the
// classification logits, one per label. The runtime has no training mode, so
// this is always gradient-free and dropout-free.
func (m *ForSequenceClassification) Forward(inputIDs, typeIDs []int) ([]float64, error) {
	seqLen := len(inputIDs)
	if seqLen == 0 {
		return nil, fmt.Errorf("empty input sequence")
	}
	if seqLen > m.cfg.MaxPositionEmbeddings {
		return nil, fmt.Errorf("sequence length %d exceeds max position embeddings %d", seqLen, m.cfg.MaxPositionEmbeddings)
	}
	if len(typeIDs) != seqLen {
		return nil, fmt.Errorf("token type ids length %d does not match input length %d", len(typeIDs), seqLen)
	}

	hidden, err := m.embed(inputIDs, typeIDs)
	if err != nil {
		return nil, err
	}

	for i := 0; i < m.cfg.NumHiddenLayers; i++ {
		hidden, err = m.encoderLayer(hidden, i)
		if err != nil {
			return nil, fmt.Errorf("encoder layer %d: %w", i, err)
		}
	}

	// Classification head reads the [CLS] position only.
	cls := mat.NewDense(1, m.cfg.HiddenSize, mat.Row(nil, 0, hidden))

	pooled, err := m.linear(cls, paramClassifierDenseWeight, paramClassifierDenseBias)
	if err != nil {
		return nil, err
	}
	applyGELU(pooled)

	out, err := m.linear(pooled, paramClassifierOutWeight, paramClassifierOutBias)
	if err != nil {
		return nil, err
	}

	return mat.Row(nil, 0, out), nil
}

func (m *ForSequenceClassification) embed(inputIDs, typeIDs []int) (*mat.Dense, error) {
	word := m.params[paramWordEmbeddings]
	pos := m.params[paramPositionEmbeddings]
	typ := m.params[paramTypeEmbeddings]

	embSize := m.cfg.EmbeddingSize
	hidden := mat.NewDense(len(inputIDs), embSize, nil)
	for i, id := range inputIDs {
		if id < 0 || id >= m.cfg.VocabSize {
			return nil, fmt.Errorf("token id %d out of vocabulary range", id)
		}
		tid := typeIDs[i]
		if tid < 0 || tid >= m.cfg.TypeVocabSize {
			return nil, fmt.Errorf("token type id %d out of range", tid)
		}

		for j := 0; j < embSize; j++ {
			v := float64(word.Data[id*embSize+j]) +
				float64(pos.Data[i*embSize+j]) +
				float64(typ.Data[tid*embSize+j])
			hidden.Set(i, j, v)
		}
	}

	layerNorm(hidden, m.params[paramEmbeddingsLNWeight], m.params[paramEmbeddingsLNBias], m.cfg.LayerNormEps)

	if m.cfg.EmbeddingSize != m.cfg.HiddenSize {
		return m.linear(hidden, paramProjectWeight, paramProjectBias)
	}

	return hidden, nil
}

func (m *ForSequenceClassification) encoderLayer(hidden *mat.Dense, layer int) (*mat.Dense, error) {
	attOut, err := m.selfAttention(hidden, layer)
	if err != nil {
		return nil, err
	}

	var h mat.Dense
	h.Add(attOut, hidden)
	layerNorm(&h, m.params[layerParam(layer, "attention.output.LayerNorm.weight")],
		m.params[layerParam(layer, "attention.output.LayerNorm.bias")], m.cfg.LayerNormEps)

	inter, err := m.linear(&h, layerParam(layer, "intermediate.dense.weight"), layerParam(layer, "intermediate.dense.bias"))
	if err != nil {
		return nil, err
	}
	applyGELU(inter)

	out, err := m.linear(inter, layerParam(layer, "output.dense.weight"), layerParam(layer, "output.dense.bias"))
	if err != nil {
		return nil, err
	}

	var res mat.Dense
	res.Add(out, &h)
	layerNorm(&res, m.params[layerParam(layer, "output.LayerNorm.weight")],
		m.params[layerParam(layer, "output.LayerNorm.bias")], m.cfg.LayerNormEps)

	return &res, nil
}

func (m *ForSequenceClassification) selfAttention(hidden *mat.Dense, layer int) (*mat.Dense, error) {
	q, err := m.linear(hidden, layerParam(layer, "attention.self.query.weight"), layerParam(layer, "attention.self.query.bias"))
	if err != nil {
		return nil, err
	}
	k, err := m.linear(hidden, layerParam(layer, "attention.self.key.weight"), layerParam(layer, "attention.self.key.bias"))
	if err != nil {
		return nil, err
	}
	v, err := m.linear(hidden, layerParam(layer, "attention.self.value.weight"), layerParam(layer, "attention.self.value.bias"))
	if err != nil {
		return nil, err
	}

	seqLen, hiddenSize := hidden.Dims()
	headDim := hiddenSize / m.cfg.NumAttentionHeads
	scale := 1 / math.Sqrt(float64(headDim))

	ctx := mat.NewDense(seqLen, hiddenSize, nil)
	for head := 0; head < m.cfg.NumAttentionHeads; head++ {
		lo, hi := head*headDim, (head+1)*headDim
		qh := q.Slice(0, seqLen, lo, hi)
		kh := k.Slice(0, seqLen, lo, hi)
		vh := v.Slice(0, seqLen, lo, hi)

		var scores mat.Dense
		scores.Mul(qh, kh.T())
		scores.Scale(scale, &scores)
		softmaxRows(&scores)

		var headCtx mat.Dense
		headCtx.Mul(&scores, vh)

		for i := 0; i < seqLen; i++ {
			for j := 0; j < headDim; j++ {
				ctx.Set(i, lo+j, headCtx.At(i, j))
			}
		}
	}

	return m.linear(ctx, layerParam(layer, "attention.output.dense.weight"), layerParam(layer, "attention.output.dense.bias"))
}

// linear computes x·Wᵀ + b with W in the [out, in] layout PyTorch uses.
func (m *ForSequenceClassification) linear(x *mat.Dense, wName, bName string) (*mat.Dense, error) {
	w, ok := m.params[wName]
	if !ok {
		return nil, fmt.Errorf("missing parameter %s", wName)
	}
	b, ok := m.params[bName]
	if !ok {
		return nil, fmt.Errorf("missing parameter %s", bName)
	}

	out, in := w.Shape[0], w.Shape[1]
	rows, cols := x.Dims()
	if cols != in {
		return nil, fmt.Errorf("parameter %s expects %d inputs, got %d", wName, in, cols)
	}

	weight := mat.NewDense(out, in, toFloat64(w.Data))

	y := mat.NewDense(rows, out, nil)
	y.Mul(x, weight.T())

	bias := toFloat64(b.Data)
	for i := 0; i < rows; i++ {
		for j := 0; j < out; j++ {
			y.Set(i, j, y.At(i, j)+bias[j])
		}
	}

	return y, nil
}

func layerNorm(x *mat.Dense, gamma, beta *safetensors.Tensor, eps float64) {
	rows, cols := x.Dims()
	for i := 0; i < rows; i++ {
		row := x.RawRowView(i)

		var mean float64
		for _, v := range row {
			mean += v
		}
		mean /= float64(cols)

		var variance float64
		for _, v := range row {
			d := v - mean
			variance += d * d
		}
		variance /= float64(cols)

		inv := 1 / math.Sqrt(variance+eps)
		for j := range row {
			row[j] = (row[j]-mean)*inv*float64(gamma.Data[j]) + float64(beta.Data[j])
		}
	}
}

func toFloat64(data []float32) []float64 {
	out := make([]float64, len(data))
	for i, v := range data {
		out[i] = float64(v)
	}
	return out
}
