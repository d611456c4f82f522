package mq

import "context"

// MQ is the message-queue abstraction training events flow through. The
// in-memory implementation backs single-process deployments; Pulsar backs
// multi-node ones.
type MQ interface {
	Publish(ctx context.Context, topic string, message []byte) error

	// Receive blocks until a message arrives on topic or ctx is done.
	Receive(ctx context.Context, topic string) ([]byte, error)

	Close() error
}
