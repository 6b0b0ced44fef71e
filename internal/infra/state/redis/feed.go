package redisstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/wally0302/menu/internal/domain"
	"github.com/wally0302/menu/internal/repository"
)

// snapshotTTL bounds how long cached snapshots and closed markers live.
// Rooms are single-meal sessions; a day is generous.
const snapshotTTL = 24 * time.Hour

// RedisFeed implements FeedPublisher and FeedSubscriber on Redis pub/sub.
// The latest room and participants snapshots are additionally cached under
// plain keys so a late subscriber receives current state immediately
// instead of waiting for the next write.
type RedisFeed struct {
	client    *redis.Client
	keyPrefix string
}

func NewRedisFeed(client *redis.Client, keyPrefix string) *RedisFeed {
	if client == nil {
		panic("redis client cannot be nil for RedisFeed")
	}
	if keyPrefix == "" {
		keyPrefix = "go:"
	}
	return &RedisFeed{client: client, keyPrefix: keyPrefix}
}

func (f *RedisFeed) feedChannel(roomCode string) string {
	return fmt.Sprintf("%sroom:%s:feed", f.keyPrefix, roomCode)
}

func (f *RedisFeed) snapshotKey(roomCode, eventType string) string {
	return fmt.Sprintf("%sroom:%s:snap:%s", f.keyPrefix, roomCode, eventType)
}

func (f *RedisFeed) closedKey(roomCode string) string {
	return fmt.Sprintf("%sroom:%s:closed", f.keyPrefix, roomCode)
}

// Publish fans the event out and refreshes the snapshot cache. A closed
// event clears the cached snapshots and leaves a sticky marker so that
// subscribers arriving after deletion still learn the room is gone.
func (f *RedisFeed) Publish(ctx context.Context, event domain.RoomEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("redis: marshal feed event for room %s: %w", event.RoomCode, err)
	}

	pipe := f.client.Pipeline()
	switch event.Type {
	case domain.EventRoom, domain.EventParticipants:
		pipe.Set(ctx, f.snapshotKey(event.RoomCode, event.Type), payload, snapshotTTL)
	case domain.EventRoomClosed:
		pipe.Del(ctx, f.snapshotKey(event.RoomCode, domain.EventRoom))
		pipe.Del(ctx, f.snapshotKey(event.RoomCode, domain.EventParticipants))
		pipe.Set(ctx, f.closedKey(event.RoomCode), payload, snapshotTTL)
	}
	pipe.Publish(ctx, f.feedChannel(event.RoomCode), payload)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: publish feed event for room %s: %w", event.RoomCode, err)
	}
	return nil
}

// Subscribe opens a live feed for one room. Cached snapshots (or the closed
// marker) are replayed first, then live events in publish order.
func (f *RedisFeed) Subscribe(ctx context.Context, roomCode string) (repository.FeedSubscription, error) {
	pubsub := f.client.Subscribe(ctx, f.feedChannel(roomCode))
	// Force the SUBSCRIBE round trip so failures surface here, not on the
	// first missed event.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis: subscribe to room %s feed: %w", roomCode, err)
	}

	sub := &redisSubscription{
		roomCode: roomCode,
		pubsub:   pubsub,
		events:   make(chan domain.RoomEvent, 16),
	}
	sub.wg.Add(1)
	go sub.pump(f.replay(ctx, roomCode))
	return sub, nil
}

// replay collects the cached state a new subscriber should see before any
// live event. Snapshot caches and the live channel are not read atomically;
// a duplicated snapshot is harmless because every event is a full replace.
func (f *RedisFeed) replay(ctx context.Context, roomCode string) []domain.RoomEvent {
	if f.exists(ctx, f.closedKey(roomCode)) {
		if event, ok := f.cachedEvent(ctx, f.closedKey(roomCode)); ok {
			return []domain.RoomEvent{event}
		}
		return []domain.RoomEvent{{Type: domain.EventRoomClosed, RoomCode: roomCode}}
	}
	var events []domain.RoomEvent
	for _, typ := range []string{domain.EventRoom, domain.EventParticipants} {
		if event, ok := f.cachedEvent(ctx, f.snapshotKey(roomCode, typ)); ok {
			events = append(events, event)
		}
	}
	return events
}

func (f *RedisFeed) exists(ctx context.Context, key string) bool {
	n, err := f.client.Exists(ctx, key).Result()
	return err == nil && n > 0
}

func (f *RedisFeed) cachedEvent(ctx context.Context, key string) (domain.RoomEvent, bool) {
	raw, err := f.client.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logrus.WithError(err).WithField("key", key).Warn("redis: failed to read cached feed snapshot")
		}
		return domain.RoomEvent{}, false
	}
	var event domain.RoomEvent
	if err := json.Unmarshal([]byte(raw), &event); err != nil {
		logrus.WithError(err).WithField("key", key).Warn("redis: corrupt cached feed snapshot")
		return domain.RoomEvent{}, false
	}
	return event, true
}

type redisSubscription struct {
	roomCode string
	pubsub   *redis.PubSub
	events   chan domain.RoomEvent
	once     sync.Once
	wg       sync.WaitGroup
}

func (s *redisSubscription) Events() <-chan domain.RoomEvent {
	return s.events
}

// Unsubscribe closes the pub/sub connection and waits for the pump to
// drain. Safe to call more than once; after the first return no further
// events are delivered.
func (s *redisSubscription) Unsubscribe() {
	s.once.Do(func() {
		_ = s.pubsub.Close()
	})
	s.wg.Wait()
}

func (s *redisSubscription) pump(replayed []domain.RoomEvent) {
	defer s.wg.Done()
	defer close(s.events)

	deliver := func(event domain.RoomEvent) {
		// Defensive: the channel carries exactly one room, but a mislabeled
		// event must not leak into a foreign session.
		if event.RoomCode != "" && event.RoomCode != s.roomCode {
			return
		}
		select {
		case s.events <- event:
		default:
			logrus.WithField("room_code", s.roomCode).
				Warn("feed subscriber slow, dropping snapshot event")
		}
	}

	for _, event := range replayed {
		deliver(event)
	}
	for msg := range s.pubsub.Channel() {
		var event domain.RoomEvent
		if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
			logrus.WithError(err).WithField("room_code", s.roomCode).
				Warn("redis: dropping malformed feed event")
			continue
		}
		deliver(event)
	}
}
