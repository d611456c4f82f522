package sentiment

import "encoding/json"

// Label is a classifier output class.
type Label int

const (
	Negative Label = iota
	Positive
)

// String returns the Korean display form used on the wire.
func (l Label) String() string {
	if l == Positive {
		return "긍정"
	}
	return "부정"
}

// Key returns the stable English key used in probability maps.
func (l Label) Key() string {
	if l == Positive {
		return "positive"
	}
	return "negative"
}

// PredictionResult is the outcome of classifying a single text.
type PredictionResult struct {
	Text          string             `json:"text"`
	Sentiment     string             `json:"sentiment"`
	Confidence    float64            `json:"confidence"`
	Probabilities map[string]float64 `json:"probabilities"`
	ModelInfo     *ModelBrief        `json:"model_info,omitempty"`
}

// ModelBrief is the short model identification attached to each prediction.
type ModelBrief struct {
	ModelName string `json:"model_name"`
	ModelPath string `json:"model_path"`
	Device    string `json:"device"`
}

// BatchItem holds either a prediction or the error that replaced it. Items
// marshal as the result object on success and as {"error": msg} on failure.
type BatchItem struct {
	Result *PredictionResult
	Err    string
}

func (b BatchItem) MarshalJSON() ([]byte, error) {
	if b.Err != "" {
		return json.Marshal(map[string]string{"error": b.Err})
	}
	return json.Marshal(b.Result)
}

// BatchOutcome aggregates per-item results of a batch prediction.
type BatchOutcome struct {
	Results      []BatchItem `json:"results"`
	TotalCount   int         `json:"total_count"`
	SuccessCount int         `json:"success_count"`
	ErrorCount   int         `json:"error_count"`
}

// ModelInfo describes the currently served model.
type ModelInfo struct {
	ModelName   string   `json:"model_name"`
	ModelPath   string   `json:"model_path"`
	Device      string   `json:"device"`
	MaxLength   int      `json:"max_length"`
	Labels      []string `json:"labels"`
	Loaded      bool     `json:"loaded"`
	Fingerprint string   `json:"fingerprint,omitempty"`
}

// HealthReport is the result of an end-to-end inference probe.
type HealthReport struct {
	Status          string            `json:"status"`
	ModelLoaded     bool              `json:"model_loaded"`
	TokenizerLoaded bool              `json:"tokenizer_loaded"`
	Device          string            `json:"device"`
	TestPrediction  *PredictionResult `json:"test_prediction,omitempty"`
	Error           string            `json:"error,omitempty"`
}
