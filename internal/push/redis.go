package push

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"rider-order-sync/internal/logger"
)

// RoomChannel is the Redis channel carrying a rider's events.
func RoomChannel(riderID string) string {
	return "rider:" + riderID
}

// RedisSource subscribes to the rider's room channel. Run returns on the
// first receive error so Reconnecting can subscribe again.
type RedisSource struct {
	client  *redis.Client
	riderID string
	log     logger.Logger

	// OnConnect runs every time the room subscription is confirmed.
	OnConnect func()
}

func NewRedisSource(client *redis.Client, riderID string, log logger.Logger) *RedisSource {
	return &RedisSource{client: client, riderID: riderID, log: log}
}

func (s *RedisSource) Run(ctx context.Context, h Handler) error {
	ctx = logger.With(ctx, logger.RiderIDKey, s.riderID)
	channel := RoomChannel(s.riderID)

	sub := s.client.Subscribe(ctx, channel)
	defer sub.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = sub.Close()
		case <-done:
		}
	}()

	for {
		msg, err := sub.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("receive %s: %w", channel, err)
		}

		switch m := msg.(type) {
		case *redis.Subscription:
			if m.Kind != "subscribe" {
				continue
			}
			s.log.Infof(ctx, "[Redis] subscribed to %s", channel)
			if s.OnConnect != nil {
				s.OnConnect()
			}
		case *redis.Message:
			ev, err := Decode([]byte(m.Payload))
			if err != nil {
				s.log.Warnf(ctx, "[Redis] skipping message: %v", err)
				continue
			}
			if err := h(ctx, ev); err != nil {
				s.log.Warnf(ctx, "[Redis] handling %s: %v", ev.Kind, err)
			}
		}
	}
}

// Publish sends an event to a rider's room. The backend normally does this;
// riderctl uses it to inject events when testing a device.
func Publish(ctx context.Context, client *redis.Client, riderID, name string, payload interface{}) error {
	b, err := Encode(name, payload)
	if err != nil {
		return err
	}
	return client.Publish(ctx, RoomChannel(riderID), b).Err()
}
