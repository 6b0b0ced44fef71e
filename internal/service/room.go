package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/wally0302/menu/internal/domain"
	"github.com/wally0302/menu/internal/repository"
)

// codeAlphabet deliberately drops I, O, 0 and 1: join codes are read out
// loud at a table and typed on a phone keyboard.
const (
	codeAlphabet   = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	codeLength     = 6
	codeMaxRetries = 10
)

// RoomService owns the group-order room lifecycle: create, join, cart
// overwrite, delete. Every successful write publishes a full snapshot to
// the room's live feed. Cart writes are whole-document overwrites with
// last-write-wins semantics; there is deliberately no version check, and
// concurrent edits by the same device from two tabs are an accepted
// limitation.
type RoomService struct {
	rooms        repository.RoomRepository
	participants repository.ParticipantRepository
	feed         repository.FeedPublisher
}

func NewRoomService(rooms repository.RoomRepository, participants repository.ParticipantRepository, feed repository.FeedPublisher) *RoomService {
	if rooms == nil {
		panic("RoomRepository cannot be nil for RoomService")
	}
	if participants == nil {
		panic("ParticipantRepository cannot be nil for RoomService")
	}
	if feed == nil {
		panic("FeedPublisher cannot be nil for RoomService")
	}
	return &RoomService{rooms: rooms, participants: participants, feed: feed}
}

// Create persists a new active room with a fixed item list and returns it
// together with the one-time host key. The key is bcrypt-hashed at rest;
// only its holder can delete the room.
func (s *RoomService) Create(ctx context.Context, hostID string, items []domain.MenuItem, currency string) (*domain.Room, string, error) {
	logCtx := logrus.WithField("host_id", hostID)

	if len(items) == 0 {
		return nil, "", ErrEmptyMenu
	}

	code, err := s.generateUniqueCode(ctx)
	if err != nil {
		logCtx.WithError(err).Error("Failed to generate unique room code")
		return nil, "", ErrInternalServer
	}
	logCtx = logCtx.WithField("room_code", code)

	hostKey := uuid.NewString()
	keyHash, err := bcrypt.GenerateFromPassword([]byte(hostKey), bcrypt.DefaultCost)
	if err != nil {
		logCtx.WithError(err).Error("Failed to hash host key")
		return nil, "", ErrInternalServer
	}

	room := &domain.Room{
		Code:        code,
		Status:      domain.RoomStatusActive,
		HostID:      hostID,
		HostKeyHash: string(keyHash),
		Items:       append(domain.MenuItems(nil), items...),
		Currency:    currency,
	}
	if err := s.rooms.Save(ctx, room); err != nil {
		logCtx.WithError(err).Error("Failed to save new room")
		return nil, "", ErrInternalServer
	}

	s.publishRoom(ctx, room)
	logCtx.Info("Room created")
	return room, hostKey, nil
}

// Join is idempotent per device: the first call creates the participant
// with an empty cart, any later call updates only the display name. The
// cart of a rejoining device is never reset.
func (s *RoomService) Join(ctx context.Context, code, deviceID, name string) (*domain.Participant, error) {
	logCtx := logrus.WithFields(logrus.Fields{"room_code": code, "device_id": deviceID})

	room, err := s.Find(ctx, code)
	if err != nil {
		return nil, err
	}
	if !room.IsActive() {
		logCtx.Warn("Join rejected: room closed")
		return nil, ErrRoomClosed
	}

	existing, err := s.participants.Find(ctx, code, deviceID)
	switch {
	case err == nil:
		if existing.Name != name && name != "" {
			if err := s.participants.UpdateName(ctx, code, deviceID, name); err != nil {
				logCtx.WithError(err).Error("Failed to update participant name on rejoin")
				return nil, ErrInternalServer
			}
			existing.Name = name
		}
		s.publishParticipants(ctx, code)
		logCtx.Info("Participant rejoined")
		return existing, nil
	case errors.Is(err, repository.ErrParticipantNotFound):
		// fall through to create
	default:
		logCtx.WithError(err).Error("Failed to look up participant")
		return nil, ErrInternalServer
	}

	p := &domain.Participant{
		DeviceID: deviceID,
		RoomCode: code,
		Name:     name,
		Cart:     domain.Cart{},
		IsHost:   deviceID == room.HostID,
	}
	if err := s.participants.Create(ctx, p); err != nil {
		if errors.Is(err, repository.ErrDuplicateEntry) {
			// Lost a race against another join from the same device; the
			// existing record wins.
			return s.Join(ctx, code, deviceID, name)
		}
		logCtx.WithError(err).Error("Failed to create participant")
		return nil, ErrInternalServer
	}

	s.publishParticipants(ctx, code)
	logCtx.Info("Participant joined")
	return p, nil
}

// UpdateCart overwrites the caller's own cart wholesale. Only the owning
// device may write its cart.
func (s *RoomService) UpdateCart(ctx context.Context, code, deviceID string, cart domain.Cart) error {
	logCtx := logrus.WithFields(logrus.Fields{"room_code": code, "device_id": deviceID})

	room, err := s.Find(ctx, code)
	if err != nil {
		return err
	}
	if !room.IsActive() {
		return ErrRoomClosed
	}
	if _, err := s.participants.Find(ctx, code, deviceID); err != nil {
		if errors.Is(err, repository.ErrParticipantNotFound) {
			return ErrNotParticipant
		}
		logCtx.WithError(err).Error("Failed to look up participant for cart update")
		return ErrInternalServer
	}
	if err := s.participants.ReplaceCart(ctx, code, deviceID, cart); err != nil {
		logCtx.WithError(err).Error("Failed to replace cart")
		return ErrInternalServer
	}

	s.publishParticipants(ctx, code)
	return nil
}

// Delete ends the session: host only, verified against the stored key
// hash. Participants are removed before the room so no feed consumer ever
// observes a participant without its room, and a terminal closed event is
// published last.
func (s *RoomService) Delete(ctx context.Context, code, deviceID, hostKey string) error {
	logCtx := logrus.WithFields(logrus.Fields{"room_code": code, "device_id": deviceID})

	room, err := s.Find(ctx, code)
	if err != nil {
		return err
	}
	if room.HostID != deviceID {
		logCtx.Warn("Delete rejected: caller is not the host")
		return ErrNotRoomHost
	}
	if bcrypt.CompareHashAndPassword([]byte(room.HostKeyHash), []byte(hostKey)) != nil {
		logCtx.Warn("Delete rejected: host key mismatch")
		return ErrInvalidHostKey
	}

	return s.removeRoom(ctx, code, logCtx)
}

// Close is the janitorial path used by the stale-room sweep. Same ordering
// guarantees as Delete, no host check.
func (s *RoomService) Close(ctx context.Context, code string) error {
	return s.removeRoom(ctx, code, logrus.WithField("room_code", code))
}

func (s *RoomService) removeRoom(ctx context.Context, code string, logCtx *logrus.Entry) error {
	if err := s.rooms.DeleteWithParticipants(ctx, code); err != nil {
		logCtx.WithError(err).Error("Failed to delete room")
		return ErrInternalServer
	}
	s.publish(ctx, domain.RoomEvent{Type: domain.EventRoomClosed, RoomCode: code})
	logCtx.Info("Room deleted")
	return nil
}

// Find returns the room for a join code.
func (s *RoomService) Find(ctx context.Context, code string) (*domain.Room, error) {
	room, err := s.rooms.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil, ErrRoomNotFound
		}
		logrus.WithError(err).WithField("room_code", code).Error("Failed to find room")
		return nil, ErrInternalServer
	}
	return room, nil
}

// Participants returns the room's current participant list.
func (s *RoomService) Participants(ctx context.Context, code string) ([]domain.Participant, error) {
	parts, err := s.participants.ListByRoom(ctx, code)
	if err != nil {
		logrus.WithError(err).WithField("room_code", code).Error("Failed to list participants")
		return nil, ErrInternalServer
	}
	return parts, nil
}

// StaleRooms returns codes of active rooms created before the cutoff.
func (s *RoomService) StaleRooms(ctx context.Context, cutoff time.Time) ([]string, error) {
	codes, err := s.rooms.FindStale(ctx, cutoff)
	if err != nil {
		logrus.WithError(err).Error("Failed to query stale rooms")
		return nil, ErrInternalServer
	}
	return codes, nil
}

func (s *RoomService) publishRoom(ctx context.Context, room *domain.Room) {
	s.publish(ctx, domain.RoomEvent{Type: domain.EventRoom, RoomCode: room.Code, Room: room})
}

func (s *RoomService) publishParticipants(ctx context.Context, code string) {
	parts, err := s.participants.ListByRoom(ctx, code)
	if err != nil {
		logrus.WithError(err).WithField("room_code", code).
			Warn("Skipping participants snapshot publish after failed list")
		return
	}
	s.publish(ctx, domain.RoomEvent{Type: domain.EventParticipants, RoomCode: code, Participants: parts})
}

// Snapshot fan-out is best effort: the write already succeeded, so a feed
// hiccup is logged and the next write republishes full state anyway.
func (s *RoomService) publish(ctx context.Context, event domain.RoomEvent) {
	if err := s.feed.Publish(ctx, event); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"room_code":  event.RoomCode,
			"event_type": event.Type,
		}).Warn("Failed to publish feed event")
	}
}

func (s *RoomService) generateUniqueCode(ctx context.Context) (string, error) {
	buf := make([]byte, codeLength)
	for attempt := 0; attempt < codeMaxRetries; attempt++ {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("generate random bytes: %w", err)
		}
		for i := range buf {
			buf[i] = codeAlphabet[int(buf[i])%len(codeAlphabet)]
		}
		code := string(buf)

		taken, err := s.rooms.IsCodeTaken(ctx, code)
		if err != nil {
			return "", fmt.Errorf("check code uniqueness: %w", err)
		}
		if !taken {
			return code, nil
		}
		logrus.WithField("room_code", code).Warnf("Generated room code already exists, retrying (attempt %d)", attempt+1)
	}
	return "", fmt.Errorf("failed to generate a unique room code after %d attempts", codeMaxRetries)
}
