package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Message is one event exchanged between API replicas.
type Message struct {
	Type   string          `json:"type"`
	Origin string          `json:"origin,omitempty"`
	Body   json.RawMessage `json:"body"`
}

// Queue is the abstraction over different backends. Every subscriber sees
// every message published after it subscribed.
type Queue interface {
	Publish(ctx context.Context, msg Message) error
	Consume(ctx context.Context) (<-chan Message, error)
}

// InMemory fans messages out to subscribers within one process.
type InMemory struct {
	size int
	mu   sync.Mutex
	subs map[chan Message]struct{}
}

// NewInMemory creates a hub whose subscribers each buffer size messages.
func NewInMemory(size int) *InMemory {
	if size <= 0 {
		size = 64
	}
	return &InMemory{size: size, subs: make(map[chan Message]struct{})}
}

// Publish delivers msg to every subscriber with buffer space left. A full
// subscriber misses the message, as it would on a dropped pub/sub connection.
func (q *InMemory) Publish(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	for ch := range q.subs {
		select {
		case ch <- msg:
		default:
		}
	}
	return nil
}

// Consume subscribes until ctx ends.
func (q *InMemory) Consume(ctx context.Context) (<-chan Message, error) {
	ch := make(chan Message, q.size)
	q.mu.Lock()
	q.subs[ch] = struct{}{}
	q.mu.Unlock()

	go func() {
		<-ctx.Done()
		q.mu.Lock()
		delete(q.subs, ch)
		close(ch)
		q.mu.Unlock()
	}()
	return ch, nil
}

// RedisQueue fans messages out over a Redis pub/sub channel.
type RedisQueue struct {
	client  *redis.Client
	channel string
}

// NewRedisQueue builds a queue on PUBLISH/SUBSCRIBE.
func NewRedisQueue(client *redis.Client, channel string) *RedisQueue {
	if channel == "" {
		channel = "timecontrol:captures"
	}
	return &RedisQueue{client: client, channel: channel}
}

// Publish sends msg as JSON.
func (q *RedisQueue) Publish(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	return q.client.Publish(ctx, q.channel, payload).Err()
}

// Consume subscribes to the channel. Payloads that are not valid messages are skipped.
func (q *RedisQueue) Consume(ctx context.Context) (<-chan Message, error) {
	sub := q.client.Subscribe(ctx, q.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", q.channel, err)
	}

	out := make(chan Message)
	go func() {
		defer close(out)
		defer sub.Close()
		in := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-in:
				if !ok {
					return
				}
				msg, err := decode(m.Payload)
				if err != nil {
					continue
				}
				select {
				case out <- msg:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func decode(payload string) (Message, error) {
	var msg Message
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		return Message{}, err
	}
	if msg.Type == "" {
		return Message{}, fmt.Errorf("message without type")
	}
	return msg, nil
}
