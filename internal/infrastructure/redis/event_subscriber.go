package redis

import (
	"context"
	"encoding/json"

	"reverse-auction/internal/domain"
	"reverse-auction/pkg/logger"

	"github.com/go-redis/redis/v8"
)

// EventSubscriber receives auction events published by any engine instance
// and hands them to a local handler. Every instance subscribes so each can
// fan events out to its own websocket connections.
type EventSubscriber struct {
	client *redis.Client
	log    logger.Logger
}

func NewEventSubscriber(client *redis.Client, log logger.Logger) *EventSubscriber {
	return &EventSubscriber{client: client, log: log}
}

func (s *EventSubscriber) SubscribeToAuctionEvents(ctx context.Context, handler domain.EventHandler) error {
	pubsub := s.client.Subscribe(ctx, auctionEventsChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}

	ch := pubsub.Channel()
	go func() {
		defer pubsub.Close()
		for {
			select {
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var event domain.AuctionEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					s.log.Error("Failed to decode auction event", "error", err)
					continue
				}
				if err := handler(&event); err != nil {
					s.log.Error("Auction event handler failed", "event", event.Name, "error", err)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}
