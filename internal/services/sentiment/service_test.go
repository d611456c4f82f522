package sentiment

import (
	"context"
	"encoding/json"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/labzang/sentiment-server/pkg/electra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testVocab = []string{
	"[PAD]", "[UNK]", "[CLS]", "[SEP]", "[MASK]",
	"이", "영화", "는", "정말", "최고", "최악", "재미", "##있어요", "!",
	"good", "bad",
}

func testConfig() map[string]any {
	return map[string]any{
		"vocab_size":              len(testVocab),
		"embedding_size":          8,
		"hidden_size":             16,
		"num_hidden_layers":       2,
		"num_attention_heads":     2,
		"intermediate_size":       24,
		"max_position_embeddings": 32,
		"type_vocab_size":         2,
		"layer_norm_eps":          1e-12,
		"initializer_range":       0.02,
		"num_labels":              2,
	}
}

// writeCheckpoint lays down a complete tiny checkpoint directory.
func writeCheckpoint(t *testing.T, dir string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))

	cfgJSON, err := json.Marshal(testConfig())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), cfgJSON, 0o644))

	vocab := ""
	for _, tok := range testVocab {
		vocab += tok + "\n"
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "vocab.txt"), []byte(vocab), 0o644))

	cfg, err := electra.LoadConfig(filepath.Join(dir, "config.json"))
	require.NoError(t, err)
	model := electra.NewForSequenceClassification(cfg, rand.New(rand.NewSource(7)))
	require.NoError(t, electra.SaveStateDict(filepath.Join(dir, WeightsFile), model.NamedTensors()))
}

func newTestService(t *testing.T, finetuned, base string) *Service {
	t.Helper()
	return NewService(zap.NewNop(), Params{
		FinetunedDir:  finetuned,
		BaseDir:       base,
		Device:        "cpu",
		MaxTextLength: 1000,
		MaxBatchSize:  50,
	})
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "이 영화 최고", Normalize("  이   영화 \t 최고  "))
	assert.Equal(t, "", Normalize("   \n\t "))
	assert.Equal(t, "hello", Normalize("hello"))
}

func TestResolveCheckpoint(t *testing.T) {
	log := zap.NewNop()

	t.Run("prefers fine-tuned when complete", func(t *testing.T) {
		root := t.TempDir()
		ft := filepath.Join(root, "finetuned")
		base := filepath.Join(root, "base")
		writeCheckpoint(t, ft)
		writeCheckpoint(t, base)

		dir, err := ResolveCheckpoint(log, ft, base)
		require.NoError(t, err)
		assert.Equal(t, ft, dir)
	})

	t.Run("falls back to base when fine-tuned incomplete", func(t *testing.T) {
		root := t.TempDir()
		ft := filepath.Join(root, "finetuned")
		base := filepath.Join(root, "base")
		writeCheckpoint(t, ft)
		require.NoError(t, os.Remove(filepath.Join(ft, WeightsFile)))
		writeCheckpoint(t, base)

		dir, err := ResolveCheckpoint(log, ft, base)
		require.NoError(t, err)
		assert.Equal(t, base, dir)
	})

	t.Run("errors when nothing usable", func(t *testing.T) {
		root := t.TempDir()
		_, err := ResolveCheckpoint(log, filepath.Join(root, "a"), filepath.Join(root, "b"))
		assert.Error(t, err)
	})
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeCheckpoint(t, dir)

	model, err := Load(zap.NewNop(), dir, 32)
	require.NoError(t, err)
	assert.Equal(t, dir, model.Path)
	assert.NotEmpty(t, model.Fingerprint)
	assert.False(t, model.HeadReinitialized)
}

func TestLoadReinitializesMismatchedHead(t *testing.T) {
	dir := t.TempDir()
	writeCheckpoint(t, dir)

	// Rewrite the weights without the classification head, as a base
	// discriminator checkpoint would ship.
	tensors, err := electra.LoadStateDict(filepath.Join(dir, WeightsFile))
	require.NoError(t, err)
	delete(tensors, "classifier.out_proj.weight")
	delete(tensors, "classifier.out_proj.bias")
	require.NoError(t, electra.SaveStateDict(filepath.Join(dir, WeightsFile), tensors))

	model, err := Load(zap.NewNop(), dir, 32)
	require.NoError(t, err)
	assert.True(t, model.HeadReinitialized)
}

func TestLoadForcesBinaryHead(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(dir, 0o755))

	// A checkpoint trained for three classes: config.json declares them and
	// the weights carry a matching 3-way head.
	cfgMap := testConfig()
	cfgMap["num_labels"] = 3
	cfgJSON, err := json.Marshal(cfgMap)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), cfgJSON, 0o644))

	vocab := ""
	for _, tok := range testVocab {
		vocab += tok + "\n"
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "vocab.txt"), []byte(vocab), 0o644))

	cfg, err := electra.LoadConfig(filepath.Join(dir, "config.json"))
	require.NoError(t, err)
	threeWay := electra.NewForSequenceClassification(cfg, rand.New(rand.NewSource(7)))
	require.NoError(t, electra.SaveStateDict(filepath.Join(dir, WeightsFile), threeWay.NamedTensors()))

	model, err := Load(zap.NewNop(), dir, 32)
	require.NoError(t, err)
	assert.Equal(t, 2, model.Config.NumLabels)
	assert.True(t, model.HeadReinitialized)

	head := model.Model.NamedTensors()["classifier.out_proj.weight"]
	require.NotNil(t, head)
	assert.Equal(t, 2, head.Shape[0])

	svc := newTestService(t, "", dir)
	result, err := svc.Predict(context.Background(), "이 영화 최고")
	require.NoError(t, err)
	assert.Len(t, result.Probabilities, 2)
	assert.InDelta(t, 1.0, result.Probabilities["positive"]+result.Probabilities["negative"], 1e-3)
}

func TestPredict(t *testing.T) {
	dir := t.TempDir()
	writeCheckpoint(t, dir)
	svc := newTestService(t, "", dir)
	ctx := context.Background()

	t.Run("returns a complete result", func(t *testing.T) {
		result, err := svc.Predict(ctx, "이 영화는 정말 재미있어요!")
		require.NoError(t, err)
		assert.Contains(t, []string{"긍정", "부정"}, result.Sentiment)
		assert.InDelta(t, 1.0, result.Probabilities["positive"]+result.Probabilities["negative"], 1e-3)
		assert.GreaterOrEqual(t, result.Confidence, 0.5)
	})

	t.Run("deterministic for identical input", func(t *testing.T) {
		a, err := svc.Predict(ctx, "이 영화 최고")
		require.NoError(t, err)
		b, err := svc.Predict(ctx, "이 영화 최고")
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})

	t.Run("rejects empty text", func(t *testing.T) {
		_, err := svc.Predict(ctx, "   ")
		assert.ErrorIs(t, err, ErrEmptyText)
	})

	t.Run("rejects oversized text", func(t *testing.T) {
		long := make([]rune, 1001)
		for i := range long {
			long[i] = '가'
		}
		_, err := svc.Predict(ctx, string(long))
		assert.ErrorIs(t, err, ErrTextTooLong)
	})
}

func TestPredictRetriesFailedLoad(t *testing.T) {
	root := t.TempDir()
	base := filepath.Join(root, "base")
	svc := newTestService(t, "", base)
	ctx := context.Background()

	_, err := svc.Predict(ctx, "이 영화 최고")
	assert.ErrorIs(t, err, ErrModelUnavailable)
	state, lastErr := svc.Status()
	assert.Equal(t, Failed, state)
	assert.Error(t, lastErr)

	// The checkpoint shows up later; the next call must succeed.
	writeCheckpoint(t, base)
	_, err = svc.Predict(ctx, "이 영화 최고")
	require.NoError(t, err)
	state, lastErr = svc.Status()
	assert.Equal(t, Loaded, state)
	assert.NoError(t, lastErr)
}

func TestPredictBatch(t *testing.T) {
	dir := t.TempDir()
	writeCheckpoint(t, dir)
	svc := newTestService(t, "", dir)
	ctx := context.Background()

	t.Run("isolates per-item failures in order", func(t *testing.T) {
		out, err := svc.PredictBatch(ctx, []string{"이 영화 최고", "  ", "이 영화 최악"})
		require.NoError(t, err)
		assert.Equal(t, 3, out.TotalCount)
		assert.Equal(t, 2, out.SuccessCount)
		assert.Equal(t, 1, out.ErrorCount)
		assert.NotNil(t, out.Results[0].Result)
		assert.NotEmpty(t, out.Results[1].Err)
		assert.NotNil(t, out.Results[2].Result)
	})

	t.Run("rejects empty batch", func(t *testing.T) {
		_, err := svc.PredictBatch(ctx, nil)
		assert.ErrorIs(t, err, ErrBatchEmpty)
	})

	t.Run("rejects oversized batch", func(t *testing.T) {
		texts := make([]string, 51)
		for i := range texts {
			texts[i] = "이 영화 최고"
		}
		_, err := svc.PredictBatch(ctx, texts)
		assert.ErrorIs(t, err, ErrBatchTooLarge)
	})
}

func TestBatchItemJSON(t *testing.T) {
	ok := BatchItem{Result: &PredictionResult{Text: "x", Sentiment: "긍정"}}
	data, err := json.Marshal(ok)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"sentiment"`)

	failed := BatchItem{Err: "text is empty"}
	data, err = json.Marshal(failed)
	require.NoError(t, err)
	assert.JSONEq(t, `{"error":"text is empty"}`, string(data))
}

func TestModelInfoAndHealth(t *testing.T) {
	dir := t.TempDir()
	writeCheckpoint(t, dir)
	svc := newTestService(t, "", dir)

	info := svc.ModelInfo()
	assert.False(t, info.Loaded)
	assert.Equal(t, "KoELECTRA", info.ModelName)

	report := svc.Health(context.Background())
	assert.Equal(t, "healthy", report.Status)
	assert.True(t, report.ModelLoaded)
	assert.True(t, report.TokenizerLoaded)
	require.NotNil(t, report.TestPrediction)
	assert.NotEmpty(t, report.TestPrediction.Sentiment)

	info = svc.ModelInfo()
	assert.True(t, info.Loaded)
	assert.Equal(t, dir, info.ModelPath)
	assert.NotEmpty(t, info.Fingerprint)
}

func TestReloadSwapsModel(t *testing.T) {
	root := t.TempDir()
	base := filepath.Join(root, "base")
	ft := filepath.Join(root, "finetuned")
	writeCheckpoint(t, base)
	svc := newTestService(t, ft, base)
	ctx := context.Background()

	_, err := svc.Predict(ctx, "이 영화 최고")
	require.NoError(t, err)
	assert.Equal(t, base, svc.ModelInfo().ModelPath)

	writeCheckpoint(t, ft)
	require.NoError(t, svc.Reload(ctx))
	assert.Equal(t, ft, svc.ModelInfo().ModelPath)
}
