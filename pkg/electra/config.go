// Package electra implements a CPU inference runtime for ELECTRA sequence
// classification checkpoints in the HuggingFace on-disk layout: config.json,
// model.safetensors, vocab.txt and tokenizer_config.json.
package electra

import (
	"encoding/json"
	"fmt"
	"os"
)

// Config mirrors the fields of a HuggingFace ELECTRA config.json that the
// runtime needs. Fields absent from the file keep the transformers defaults.
type Config struct {
	VocabSize             int     `json:"vocab_size"`
	EmbeddingSize         int     `json:"embedding_size"`
	HiddenSize            int     `json:"hidden_size"`
	NumHiddenLayers       int     `json:"num_hidden_layers"`
	NumAttentionHeads     int     `json:"num_attention_heads"`
	IntermediateSize      int     `json:"intermediate_size"`
	MaxPositionEmbeddings int     `json:"max_position_embeddings"`
	TypeVocabSize         int     `json:"type_vocab_size"`
	LayerNormEps          float64 `json:"layer_norm_eps"`
	InitializerRange      float64 `json:"initializer_range"`

	// NumLabels is not part of the upstream config.json; the loader forces
	// it to the binary sentiment head regardless of the checkpoint.
	NumLabels int `json:"num_labels"`
}

// LoadConfig parses an ELECTRA config.json.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model config: %w", err)
	}

	cfg := &Config{
		TypeVocabSize:    2,
		LayerNormEps:     1e-12,
		InitializerRange: 0.02,
		NumLabels:        2,
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse model config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the dimensions the forward pass depends on.
func (c *Config) Validate() error {
	switch {
	case c.VocabSize <= 0:
		return fmt.Errorf("invalid vocab_size: %d", c.VocabSize)
	case c.HiddenSize <= 0:
		return fmt.Errorf("invalid hidden_size: %d", c.HiddenSize)
	case c.NumHiddenLayers <= 0:
		return fmt.Errorf("invalid num_hidden_layers: %d", c.NumHiddenLayers)
	case c.NumAttentionHeads <= 0 || c.HiddenSize%c.NumAttentionHeads != 0:
		return fmt.Errorf("num_attention_heads %d must divide hidden_size %d", c.NumAttentionHeads, c.HiddenSize)
	case c.IntermediateSize <= 0:
		return fmt.Errorf("invalid intermediate_size: %d", c.IntermediateSize)
	case c.MaxPositionEmbeddings <= 0:
		return fmt.Errorf("invalid max_position_embeddings: %d", c.MaxPositionEmbeddings)
	case c.NumLabels <= 0:
		return fmt.Errorf("invalid num_labels: %d", c.NumLabels)
	}

	if c.EmbeddingSize == 0 {
		c.EmbeddingSize = c.HiddenSize
	}

	return nil
}
