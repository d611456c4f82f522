package sentiment

import (
	"fmt"
	"math/rand"
	"path/filepath"

	"github.com/labzang/sentiment-server/internal/utils/hashutil"
	"github.com/labzang/sentiment-server/pkg/electra"
	"go.uber.org/zap"
)

// LoadedModel bundles everything needed to serve predictions from one
// checkpoint.
type LoadedModel struct {
	Model     *electra.ForSequenceClassification
	Tokenizer *electra.Tokenizer
	Config    *electra.Config

	// Path is the checkpoint directory the model was loaded from.
	Path string

	// Fingerprint is the BLAKE3 digest of the weights file.
	Fingerprint string

	// HeadReinitialized is true when the checkpoint's classification head
	// did not fit the served label set and was re-initialized.
	HeadReinitialized bool
}

// Load reads the checkpoint at dir and reconciles its tensors into a
// sequence-classification network: every checkpoint tensor whose name and
// shape match the network is copied in, and the classification head is
// re-initialized when the checkpoint's head is absent or shaped for a
// different label set.
func Load(log *zap.Logger, dir string, maxLength int) (*LoadedModel, error) {
	cfg, err := electra.LoadConfig(filepath.Join(dir, "config.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to load model config: %w", err)
	}
	// The served label set is fixed at negative/positive, whatever the
	// checkpoint's config.json declares.
	cfg.NumLabels = 2

	rng := rand.New(rand.NewSource(0))
	model := electra.NewForSequenceClassification(cfg, rng)

	weightsPath := filepath.Join(dir, WeightsFile)
	checkpoint, err := electra.LoadStateDict(weightsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load weights: %w", err)
	}

	copied, skipped := model.LoadMatching(checkpoint)
	log.Info("reconciled checkpoint tensors",
		zap.String("path", dir),
		zap.Int("copied", copied),
		zap.Int("skipped", skipped))

	headReinit := !model.HeadMatches(checkpoint)
	if headReinit {
		model.ReinitClassifierOutput(rng)
		log.Warn("classification head did not match checkpoint, re-initialized",
			zap.Int("num_labels", cfg.NumLabels))
	}

	tok, err := electra.NewWordPieceTokenizer(filepath.Join(dir, "vocab.txt"), maxLength)
	if err != nil {
		return nil, fmt.Errorf("failed to load tokenizer: %w", err)
	}

	fingerprint, err := hashutil.Blake3File(weightsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to fingerprint weights: %w", err)
	}

	return &LoadedModel{
		Model:             model,
		Tokenizer:         tok,
		Config:            cfg,
		Path:              dir,
		Fingerprint:       fingerprint,
		HeadReinitialized: headReinit,
	}, nil
}
