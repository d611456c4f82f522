package mq

import (
	"context"
	"errors"
	"sync"
)

const defaultChannelSize = 100

var ErrQueueClosed = errors.New("message queue is closed")

// InMemoryMQ is a process-local MQ backed by buffered channels, one per
// topic.
type InMemoryMQ struct {
	mu     sync.Mutex
	topics map[string]chan []byte
	closed bool
}

func NewInMemoryMQ() *InMemoryMQ {
	return &InMemoryMQ{topics: make(map[string]chan []byte)}
}

func (q *InMemoryMQ) channel(topic string) (chan []byte, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil, ErrQueueClosed
	}
	ch, ok := q.topics[topic]
	if !ok {
		ch = make(chan []byte, defaultChannelSize)
		q.topics[topic] = ch
	}
	return ch, nil
}

func (q *InMemoryMQ) Publish(ctx context.Context, topic string, message []byte) error {
	ch, err := q.channel(topic)
	if err != nil {
		return err
	}
	select {
	case ch <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *InMemoryMQ) Receive(ctx context.Context, topic string) ([]byte, error) {
	ch, err := q.channel(topic)
	if err != nil {
		return nil, err
	}
	select {
	case msg, ok := <-ch:
		if !ok {
			return nil, ErrQueueClosed
		}
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q *InMemoryMQ) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true
	for _, ch := range q.topics {
		close(ch)
	}
	return nil
}
