package service

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"github.com/pinjaman/hybrid"
)

// SignalService fans draft and position events out over redis pub/sub.
type SignalService struct {
	rdb *redis.Client
}

func NewSignalService(redisClient *redis.Client) *SignalService {
	return &SignalService{
		rdb: redisClient,
	}
}

func (s *SignalService) Publish(ctx context.Context, channel string, event pinjaman.Event) error {
	jsonstr, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return s.rdb.Publish(ctx, channel, jsonstr).Err()
}

// Subscribe delivers events published on channel until ctx ends. Payloads
// that do not decode are skipped.
func (s *SignalService) Subscribe(ctx context.Context, channel string) (<-chan pinjaman.Event, error) {
	pubsub := s.rdb.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, err
	}

	events := make(chan pinjaman.Event)
	go func() {
		defer close(events)
		defer pubsub.Close()

		messages := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				var event pinjaman.Event
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					continue
				}
				select {
				case events <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return events, nil
}
