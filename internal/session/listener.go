package session

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/wally0302/menu/internal/domain"
	"github.com/wally0302/menu/internal/repository"
)

// listener mirrors one room's live feed into the session. Exactly one
// listener exists per session at a time; switching rooms tears the old one
// down before the new one starts, and a stale event for a previous room
// code is discarded on arrival.
type listener struct {
	roomCode string
	sub      repository.FeedSubscription
}

// enterRoom switches the session into group mode for the given code and
// (re)establishes the live feed subscription. A session without a working
// subscription would silently stop mirroring the room, so a failed
// subscribe rolls the session back to local mode and returns
// ErrFeedUnavailable instead of entering a dead group mode.
func (s *Session) enterRoom(code string, isHost bool) error {
	s.stopListener()

	s.mu.Lock()
	s.roomCode = code
	s.isHost = isHost
	s.room = nil
	s.participants = nil
	s.roomClosed = false
	s.mu.Unlock()

	if err := s.startListener(code); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"device_id": s.deviceID,
			"room_code": code,
		}).Error("Failed to subscribe to room feed")

		s.mu.Lock()
		s.roomCode = ""
		s.isHost = false
		s.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrFeedUnavailable, err)
	}
	return nil
}

func (s *Session) startListener(code string) error {
	sub, err := s.manager.feed.Subscribe(context.Background(), code)
	if err != nil {
		return err
	}
	l := &listener{roomCode: code, sub: sub}

	s.mu.Lock()
	s.listener = l
	s.mu.Unlock()

	go l.run(s)
	return nil
}

// stopListener releases the current subscription. Safe to call with no
// listener active and safe to call twice; Unsubscribe itself is
// idempotent.
func (s *Session) stopListener() {
	s.mu.Lock()
	l := s.listener
	s.listener = nil
	s.mu.Unlock()

	if l != nil {
		l.sub.Unsubscribe()
	}
}

func (l *listener) run(s *Session) {
	for event := range l.sub.Events() {
		s.applyEvent(l.roomCode, event)
	}
}

// applyEvent replaces cached state wholesale with the incoming snapshot.
// The room code captured at subscribe time is compared against the
// session's current code so a subscription that outlived a room switch can
// never resurrect dead state.
func (s *Session) applyEvent(subscribedCode string, event domain.RoomEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.roomCode != subscribedCode {
		return
	}

	switch event.Type {
	case domain.EventRoom:
		s.room = event.Room
		// Observing any status other than active is terminal, same as an
		// explicit closed event. Sticky until the user leaves.
		if event.Room != nil && !event.Room.IsActive() {
			s.roomClosed = true
		}
	case domain.EventParticipants:
		s.participants = event.Participants
	case domain.EventRoomClosed:
		s.roomClosed = true
	default:
		logrus.WithFields(logrus.Fields{
			"room_code":  subscribedCode,
			"event_type": event.Type,
		}).Warn("Ignoring unknown feed event type")
	}
}
