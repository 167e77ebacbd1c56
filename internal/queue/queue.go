package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Colas con nombre que consume el worker externo.
const (
	MainQueue         = "main-queue"
	NotificationQueue = "notification-queue"
)

// Enqueuer publica tareas de background para el worker externo.
type Enqueuer interface {
	Enqueue(ctx context.Context, queueName, taskName string, payload any) error
}

// Task es el sobre JSON que se serializa en la cola.
type Task struct {
	ID         string          `json:"id"`
	Task       string          `json:"task"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// RedisEnqueuer publica tareas en listas de redis, una por cola.
type RedisEnqueuer struct {
	client redisLister
}

type redisLister interface {
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
}

func NewRedisEnqueuer(client *redis.Client) *RedisEnqueuer {
	return &RedisEnqueuer{client: client}
}

func (e *RedisEnqueuer) Enqueue(ctx context.Context, queueName, taskName string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	task := Task{
		ID:         uuid.NewString(),
		Task:       taskName,
		Payload:    raw,
		EnqueuedAt: time.Now().UTC(),
	}
	body, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return e.client.LPush(ctx, queueName, body).Err()
}

// DisabledEnqueuer descarta tareas cuando no hay broker configurado.
type DisabledEnqueuer struct{}

func NewDisabledEnqueuer() DisabledEnqueuer {
	return DisabledEnqueuer{}
}

func (DisabledEnqueuer) Enqueue(context.Context, string, string, any) error {
	return nil
}
