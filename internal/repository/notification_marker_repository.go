package repository

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const markerPrefix = "sla:notified:"

// NotificationMarkerRepository remembers which SLA notifications were
// delivered so repeated scans stay quiet.
type NotificationMarkerRepository interface {
	IsNotified(ctx context.Context, key string) (bool, error)
	MarkNotified(ctx context.Context, key string, expireAt time.Time) error
}

type notificationMarkerRepository struct {
	client *redis.Client
}

// NewNotificationMarkerRepository builds a redis-backed marker store.
func NewNotificationMarkerRepository(client *redis.Client) NotificationMarkerRepository {
	return &notificationMarkerRepository{client: client}
}

func (r *notificationMarkerRepository) IsNotified(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, markerPrefix+key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MarkNotified writes the marker with an absolute expiry; the zero time
// keeps it without one.
func (r *notificationMarkerRepository) MarkNotified(ctx context.Context, key string, expireAt time.Time) error {
	value := time.Now().UTC().Format(time.RFC3339)
	if expireAt.IsZero() {
		return r.client.Set(ctx, markerPrefix+key, value, 0).Err()
	}
	return r.client.SetArgs(ctx, markerPrefix+key, value, redis.SetArgs{ExpireAt: expireAt}).Err()
}
