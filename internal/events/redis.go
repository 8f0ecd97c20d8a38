package events

import (
	"context"
	"encoding/json"

	redis "github.com/redis/go-redis/v9"
)

// RedisPublisher fans ledger events out on a Redis channel so a companion
// display or back-office tool on the same LAN can follow sales as they happen.
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

func NewRedisPublisher(addr string, password string, db int, channel string) *RedisPublisher {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if channel == "" {
		channel = "kasirgratisan:events"
	}

	return &RedisPublisher{client: client, channel: channel}
}

func (p *RedisPublisher) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

func (p *RedisPublisher) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, p.channel, payload).Err()
}

// Listen delivers events published on the channel to h until ctx ends.
func (p *RedisPublisher) Listen(ctx context.Context, h func(Event)) error {
	sub := p.client.Subscribe(ctx, p.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				continue
			}
			h(event)
		}
	}
}
