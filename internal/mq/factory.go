package mq

import "github.com/labzang/sentiment-server/internal/config"

// NewMQ builds the configured queue: Pulsar when a broker URL is set,
// otherwise the in-memory queue.
func NewMQ(cfg *config.Config) (MQ, error) {
	if cfg.Pulsar != nil && cfg.Pulsar.URL != "" {
		return NewPulsarMQ(cfg.Pulsar)
	}
	return NewInMemoryMQ(), nil
}
