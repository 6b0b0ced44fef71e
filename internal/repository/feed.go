package repository

import (
	"context"

	"github.com/wally0302/menu/internal/domain"
)

// FeedSubscription is a handle on one room's live feed. Unsubscribe is
// synchronous and idempotent; after it returns no further events are
// delivered and Events is closed. Re-subscribing afterwards is safe.
type FeedSubscription interface {
	Events() <-chan domain.RoomEvent
	Unsubscribe()
}

// FeedPublisher fans room events out to every live subscriber.
type FeedPublisher interface {
	Publish(ctx context.Context, event domain.RoomEvent) error
}

// FeedSubscriber opens live feeds scoped to a room code. Events arrive in
// publish order per subscription.
type FeedSubscriber interface {
	Subscribe(ctx context.Context, roomCode string) (FeedSubscription, error)
}
