package redis

import (
	"context"
	"encoding/json"

	"reverse-auction/internal/domain"

	"github.com/go-redis/redis/v8"
)

const auctionEventsChannel = "auction_events"

// EventPublisher pushes engine events onto the shared Redis channel. It is
// the engine's Notifier: delivery is fire-and-forget and a publish failure
// never affects auction state.
type EventPublisher struct {
	client *redis.Client
}

func NewEventPublisher(client *redis.Client) *EventPublisher {
	return &EventPublisher{client: client}
}

func (p *EventPublisher) PublishAuctionEvent(ctx context.Context, event *domain.AuctionEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, auctionEventsChannel, data).Err()
}

func (p *EventPublisher) Emit(ctx context.Context, event *domain.AuctionEvent) error {
	return p.PublishAuctionEvent(ctx, event)
}
