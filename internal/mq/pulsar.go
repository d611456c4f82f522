package mq

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/apache/pulsar-client-go/pulsar"
	"github.com/labzang/sentiment-server/internal/config"
)

// PulsarMQ adapts an Apache Pulsar cluster to the MQ interface. Producers and
// consumers are created lazily per topic and cached.
type PulsarMQ struct {
	client pulsar.Client

	mu        sync.Mutex
	producers map[string]pulsar.Producer
	consumers map[string]pulsar.Consumer
}

func NewPulsarMQ(cfg *config.PulsarConfig) (*PulsarMQ, error) {
	client, err := pulsar.NewClient(pulsar.ClientOptions{
		URL:               cfg.URL,
		ConnectionTimeout: 10 * time.Second,
		OperationTimeout:  30 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create pulsar client: %w", err)
	}

	return &PulsarMQ{
		client:    client,
		producers: make(map[string]pulsar.Producer),
		consumers: make(map[string]pulsar.Consumer),
	}, nil
}

func (q *PulsarMQ) producer(topic string) (pulsar.Producer, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if p, ok := q.producers[topic]; ok {
		return p, nil
	}
	p, err := q.client.CreateProducer(pulsar.ProducerOptions{Topic: topic})
	if err != nil {
		return nil, fmt.Errorf("failed to create producer for %s: %w", topic, err)
	}
	q.producers[topic] = p
	return p, nil
}

func (q *PulsarMQ) consumer(topic string) (pulsar.Consumer, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if c, ok := q.consumers[topic]; ok {
		return c, nil
	}
	c, err := q.client.Subscribe(pulsar.ConsumerOptions{
		Topic:            topic,
		SubscriptionName: "sentiment-server",
		Type:             pulsar.Shared,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}
	q.consumers[topic] = c
	return c, nil
}

func (q *PulsarMQ) Publish(ctx context.Context, topic string, message []byte) error {
	p, err := q.producer(topic)
	if err != nil {
		return err
	}
	if _, err := p.Send(ctx, &pulsar.ProducerMessage{Payload: message}); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}

func (q *PulsarMQ) Receive(ctx context.Context, topic string) ([]byte, error) {
	c, err := q.consumer(topic)
	if err != nil {
		return nil, err
	}
	msg, err := c.Receive(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.Ack(msg); err != nil {
		return nil, fmt.Errorf("failed to ack message on %s: %w", topic, err)
	}
	return msg.Payload(), nil
}

func (q *PulsarMQ) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, p := range q.producers {
		p.Close()
	}
	for _, c := range q.consumers {
		c.Close()
	}
	q.client.Close()
	return nil
}
