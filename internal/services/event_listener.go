package services

import (
	"context"

	"reverse-auction/internal/domain"
	"reverse-auction/pkg/logger"
)

// EventListener bridges the engine's published events to connected clients:
// every instance subscribes to the shared channel and fans events out to its
// own websocket rooms, so broadcasts reach clients regardless of which
// instance accepted their connection.
type EventListener struct {
	connManager domain.ConnectionManager
	log         logger.Logger
}

func NewEventListener(connManager domain.ConnectionManager, log logger.Logger) *EventListener {
	return &EventListener{
		connManager: connManager,
		log:         log,
	}
}

func (el *EventListener) Start(ctx context.Context, subscriber domain.EventSubscriber) error {
	el.log.Info("Starting auction event listener")
	return subscriber.SubscribeToAuctionEvents(ctx, el.handleEvent)
}

func (el *EventListener) handleEvent(event *domain.AuctionEvent) error {
	message := map[string]interface{}{
		"type":    string(event.Name),
		"payload": event.Payload,
	}

	if event.Broadcast {
		return el.connManager.BroadcastToAll(message)
	}

	if err := el.connManager.BroadcastToRoom(event.ListingID, message); err != nil {
		return err
	}

	// A closed room has no further use; drop its connections.
	if event.Name == domain.EventAuctionClosed {
		return el.connManager.CloseRoom(event.ListingID)
	}
	return nil
}
