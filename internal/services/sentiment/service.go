package sentiment

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/labzang/sentiment-server/pkg/electra"
	"go.uber.org/zap"
)

// State tracks where the service is in its model lifecycle.
type State int32

const (
	Unloaded State = iota
	Loading
	Loaded
	Failed
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	case Failed:
		return "failed"
	default:
		return "unloaded"
	}
}

// probeText is the sentence the health check runs end to end.
const probeText = "이 영화는 정말 재미있어요!"

// maxSequenceLength is the tokenizer truncation limit.
const maxSequenceLength = 512

// Params configures a Service.
type Params struct {
	FinetunedDir  string
	BaseDir       string
	Device        string
	MaxTextLength int
	MaxBatchSize  int
}

// Service serves sentiment predictions from a lazily loaded checkpoint. A
// failed load is retried on the next call rather than wedging the service.
type Service struct {
	log    *zap.Logger
	params Params

	mu      sync.Mutex
	state   State
	lastErr error
	current atomic.Pointer[LoadedModel]
}

func NewService(log *zap.Logger, params Params) *Service {
	return &Service{log: log, params: params}
}

// ensureLoaded returns the active model, loading it on first use. Concurrent
// callers serialize on the load; a previous failure is retried.
func (s *Service) ensureLoaded(ctx context.Context) (*LoadedModel, error) {
	if m := s.current.Load(); m != nil {
		return m, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if m := s.current.Load(); m != nil {
		return m, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.state = Loading
	dir, err := ResolveCheckpoint(s.log, s.params.FinetunedDir, s.params.BaseDir)
	if err != nil {
		s.state = Failed
		s.lastErr = err
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}

	model, err := Load(s.log, dir, maxSequenceLength)
	if err != nil {
		s.state = Failed
		s.lastErr = err
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}

	s.current.Store(model)
	s.state = Loaded
	s.lastErr = nil
	return model, nil
}

// Reload loads the best available checkpoint and atomically swaps it in.
// In-flight predictions keep using the model they started with.
func (s *Service) Reload(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	dir, err := ResolveCheckpoint(s.log, s.params.FinetunedDir, s.params.BaseDir)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	model, err := Load(s.log, dir, maxSequenceLength)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}

	s.current.Store(model)
	s.state = Loaded
	s.lastErr = nil
	s.log.Info("model reloaded",
		zap.String("path", model.Path),
		zap.String("fingerprint", model.Fingerprint))
	return nil
}

// Predict classifies one text.
func (s *Service) Predict(ctx context.Context, text string) (*PredictionResult, error) {
	normalized := Normalize(text)
	if normalized == "" {
		return nil, ErrEmptyText
	}
	if s.params.MaxTextLength > 0 && len([]rune(normalized)) > s.params.MaxTextLength {
		return nil, fmt.Errorf("%w: %d characters (limit %d)",
			ErrTextTooLong, len([]rune(normalized)), s.params.MaxTextLength)
	}

	model, err := s.ensureLoaded(ctx)
	if err != nil {
		return nil, err
	}

	ids, typeIDs, err := model.Tokenizer.Encode(normalized)
	if err != nil {
		return nil, fmt.Errorf("failed to tokenize: %w", err)
	}

	logits, err := model.Model.Forward(ids, typeIDs)
	if err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	probs := electra.Softmax(logits)

	label := Negative
	if probs[Positive] > probs[Negative] {
		label = Positive
	}

	return &PredictionResult{
		Text:       normalized,
		Sentiment:  label.String(),
		Confidence: round4(probs[label]),
		Probabilities: map[string]float64{
			Negative.Key(): round4(probs[Negative]),
			Positive.Key(): round4(probs[Positive]),
		},
		ModelInfo: &ModelBrief{
			ModelName: "KoELECTRA",
			ModelPath: model.Path,
			Device:    s.params.Device,
		},
	}, nil
}

// PredictBatch classifies up to MaxBatchSize texts, preserving order. A
// failure on one text is recorded in its slot and does not abort the rest.
func (s *Service) PredictBatch(ctx context.Context, texts []string) (*BatchOutcome, error) {
	if len(texts) == 0 {
		return nil, ErrBatchEmpty
	}
	if s.params.MaxBatchSize > 0 && len(texts) > s.params.MaxBatchSize {
		return nil, fmt.Errorf("%w: %d texts (limit %d)",
			ErrBatchTooLarge, len(texts), s.params.MaxBatchSize)
	}

	out := &BatchOutcome{
		Results:    make([]BatchItem, len(texts)),
		TotalCount: len(texts),
	}
	for i, text := range texts {
		result, err := s.Predict(ctx, text)
		if err != nil {
			out.Results[i] = BatchItem{Err: err.Error()}
			out.ErrorCount++
			continue
		}
		out.Results[i] = BatchItem{Result: result}
		out.SuccessCount++
	}
	return out, nil
}

// ModelInfo reports the served model without forcing a load.
func (s *Service) ModelInfo() *ModelInfo {
	info := &ModelInfo{
		ModelName: "KoELECTRA",
		Device:    s.params.Device,
		MaxLength: maxSequenceLength,
		Labels:    []string{Negative.String(), Positive.String()},
	}
	if m := s.current.Load(); m != nil {
		info.Loaded = true
		info.ModelPath = m.Path
		info.Fingerprint = m.Fingerprint
	}
	return info
}

// Health runs the probe sentence through the full pipeline. A cold service
// loads the model here, so the first health check doubles as a warmup.
func (s *Service) Health(ctx context.Context) *HealthReport {
	result, err := s.Predict(ctx, probeText)
	if err != nil {
		loaded := s.current.Load() != nil
		return &HealthReport{
			Status:          "error",
			ModelLoaded:     loaded,
			TokenizerLoaded: loaded,
			Device:          s.params.Device,
			Error:           err.Error(),
		}
	}
	return &HealthReport{
		Status:          "healthy",
		ModelLoaded:     true,
		TokenizerLoaded: true,
		Device:          s.params.Device,
		TestPrediction:  result,
	}
}

// Status returns the lifecycle state and the last load error, if any.
func (s *Service) Status() (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.lastErr
}

func round4(x float64) float64 {
	return math.Round(x*10000) / 10000
}
