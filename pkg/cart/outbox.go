package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cleanup is a remote cart deletion still owed by a placed order.
type Cleanup struct {
	OrderID  string    `json:"order_id"`
	UserID   string    `json:"user_id"`
	RowIDs   []string  `json:"row_ids"`
	QueuedAt time.Time `json:"queued_at"`
	Attempts int       `json:"attempts"`
}

// Outbox persists pending cleanups for one device under <ns>:outbox:<deviceID>.
type Outbox struct {
	redis *redis.Client
	key   string
}

// NewOutbox creates an outbox for deviceID.
func NewOutbox(client *redis.Client, namespace, deviceID string) *Outbox {
	if client == nil {
		panic("redis client cannot be nil")
	}
	if namespace == "" {
		namespace = "pickup"
	}
	return &Outbox{
		redis: client,
		key:   fmt.Sprintf("%s:outbox:%s", namespace, deviceID),
	}
}

// Load returns the pending cleanups.
func (o *Outbox) Load(ctx context.Context) ([]Cleanup, error) {
	data, err := o.redis.Get(ctx, o.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var cleanups []Cleanup
	if err := json.Unmarshal(data, &cleanups); err != nil {
		return nil, fmt.Errorf("unmarshal outbox: %w", err)
	}
	return cleanups, nil
}

// Save replaces the pending cleanups. Saving none deletes the record.
func (o *Outbox) Save(ctx context.Context, cleanups []Cleanup) error {
	if len(cleanups) == 0 {
		if err := o.redis.Del(ctx, o.key).Err(); err != nil {
			return fmt.Errorf("redis del: %w", err)
		}
		return nil
	}

	data, err := json.Marshal(cleanups)
	if err != nil {
		return fmt.Errorf("marshal outbox: %w", err)
	}
	if err := o.redis.Set(ctx, o.key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
