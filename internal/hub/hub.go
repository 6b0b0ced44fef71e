package hub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/wally0302/menu/internal/domain"
	"github.com/wally0302/menu/internal/repository"
	"github.com/wally0302/menu/internal/service"
)

// WebSocket timing constants shared by hub and client.
const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. Clients only send pings and
	// close frames; cart writes travel over the HTTP API.
	maxMessageSize = 512
)

// HubMessage is the envelope on the hub's internal channel.
type HubMessage struct {
	Type     string // "register", "unregister"
	RoomCode string
	Client   *Client
}

// Hub pushes room snapshots to connected WebSocket clients. It keeps one
// live feed subscription per room with at least one client; the
// subscription starts when the first client registers and is released
// synchronously when the room empties, so an emptied room never keeps a
// feed alive.
type Hub struct {
	messageChan chan HubMessage

	roomsMu sync.RWMutex
	rooms   map[string]map[*Client]bool
	subs    map[string]repository.FeedSubscription

	feed        repository.FeedSubscriber
	roomService *service.RoomService
}

func NewHub(feed repository.FeedSubscriber, roomService *service.RoomService) *Hub {
	if feed == nil {
		panic("FeedSubscriber cannot be nil for Hub")
	}
	if roomService == nil {
		panic("RoomService cannot be nil for Hub")
	}
	return &Hub{
		messageChan: make(chan HubMessage, 512),
		rooms:       make(map[string]map[*Client]bool),
		subs:        make(map[string]repository.FeedSubscription),
		feed:        feed,
		roomService: roomService,
	}
}

// Run is the hub's single event loop. It must run in its own goroutine and
// exits when the message channel is closed.
func (h *Hub) Run() {
	log := logrus.WithField("component", "hub")
	log.Info("Hub is running...")

	for msg := range h.messageChan {
		switch msg.Type {
		case "register":
			h.registerClient(msg.Client)
		case "unregister":
			h.unregisterClient(msg.Client)
		default:
			log.Warnf("Hub: received unknown message type: %s for room %s", msg.Type, msg.RoomCode)
		}
	}
	log.Info("Hub is shutting down...")
}

// QueueMessage enqueues a message without blocking. Returns false when the
// hub is saturated.
func (h *Hub) QueueMessage(msg HubMessage) bool {
	select {
	case h.messageChan <- msg:
		return true
	default:
		logrus.WithFields(logrus.Fields{
			"message_type": msg.Type,
			"room_code":    msg.RoomCode,
		}).Warn("Hub message channel full, dropping message")
		return false
	}
}

// StopAllSubscriptions releases every room feed. Used on shutdown.
func (h *Hub) StopAllSubscriptions() {
	h.roomsMu.Lock()
	subs := make([]repository.FeedSubscription, 0, len(h.subs))
	for code, sub := range h.subs {
		subs = append(subs, sub)
		delete(h.subs, code)
	}
	h.roomsMu.Unlock()

	for _, sub := range subs {
		sub.Unsubscribe()
	}
}

func (h *Hub) registerClient(client *Client) {
	if client == nil {
		logrus.Error("Hub: attempted to register a nil client")
		return
	}
	code := client.RoomCode()
	logCtx := logrus.WithFields(logrus.Fields{
		"room_code": code,
		"device_id": client.DeviceID(),
	})

	h.roomsMu.Lock()
	first := false
	if _, ok := h.rooms[code]; !ok {
		h.rooms[code] = make(map[*Client]bool)
		first = true
	}
	h.rooms[code][client] = true
	h.roomsMu.Unlock()
	logCtx.Info("Client registered to hub")

	if first {
		if err := h.watchRoom(code); err != nil {
			// A client in an unwatched room would never receive an update.
			// Drop it so the peer reconnects and retries the subscription.
			logCtx.WithError(err).Error("Failed to open room feed subscription, dropping client")
			h.roomsMu.Lock()
			delete(h.rooms[code], client)
			if len(h.rooms[code]) == 0 {
				delete(h.rooms, code)
			}
			h.roomsMu.Unlock()
			close(client.send)
			return
		}
	}

	// Late joiners must not wait for the next write to see current state.
	go h.sendInitialSnapshot(client)
}

func (h *Hub) unregisterClient(client *Client) {
	if client == nil {
		logrus.Error("Hub: attempted to unregister a nil client")
		return
	}
	code := client.RoomCode()
	logCtx := logrus.WithFields(logrus.Fields{
		"room_code": code,
		"device_id": client.DeviceID(),
	})

	var staleSub repository.FeedSubscription

	h.roomsMu.Lock()
	if roomClients, ok := h.rooms[code]; ok {
		if _, exists := roomClients[client]; exists {
			// Unregister runs at most once per client on the hub loop, and
			// a register failure removes the client from the room before
			// closing, so this close can never be a double close. Closing
			// unconditionally also keeps any queued payloads readable.
			delete(roomClients, client)
			close(client.send)
			if len(roomClients) == 0 {
				delete(h.rooms, code)
				staleSub = h.subs[code]
				delete(h.subs, code)
				logCtx.Info("Room empty, releasing feed subscription")
			}
		}
	}
	h.roomsMu.Unlock()

	if staleSub != nil {
		staleSub.Unsubscribe()
	}
	logCtx.Info("Client unregistered from hub")
}

// watchRoom opens the feed for a room and pumps its events to every local
// client until the subscription is released.
func (h *Hub) watchRoom(code string) error {
	sub, err := h.feed.Subscribe(context.Background(), code)
	if err != nil {
		return err
	}

	h.roomsMu.Lock()
	h.subs[code] = sub
	h.roomsMu.Unlock()

	go func() {
		for event := range sub.Events() {
			h.broadcast(code, event)
		}
	}()
	return nil
}

// broadcast fans one feed event out to all clients in the room.
func (h *Hub) broadcast(code string, event domain.RoomEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		logrus.WithError(err).WithField("room_code", code).Error("Failed to marshal feed event for broadcast")
		return
	}

	h.roomsMu.RLock()
	roomClients := h.rooms[code]
	clients := make([]*Client, 0, len(roomClients))
	for client := range roomClients {
		clients = append(clients, client)
	}
	h.roomsMu.RUnlock()

	for _, client := range clients {
		select {
		case client.send <- payload:
		default:
			// A slow client must not stall the fan-out; its write pump or
			// the next ping timeout will clean it up.
			logrus.WithFields(logrus.Fields{
				"room_code": code,
				"device_id": client.DeviceID(),
			}).Warn("Client send channel full during broadcast, skipping")
		}
	}
}

// sendInitialSnapshot pushes the current room and participant state to a
// newly registered client.
func (h *Hub) sendInitialSnapshot(client *Client) {
	if client == nil {
		return
	}
	code := client.RoomCode()
	logCtx := logrus.WithFields(logrus.Fields{
		"room_code": code,
		"device_id": client.DeviceID(),
	})

	ctx := context.Background()
	room, err := h.roomService.Find(ctx, code)
	if err != nil {
		// Room already gone: the terminal event is all there is to say.
		h.trySend(client, domain.RoomEvent{Type: domain.EventRoomClosed, RoomCode: code})
		logCtx.WithError(err).Warn("Initial snapshot: room not found, sent closed event")
		return
	}
	parts, err := h.roomService.Participants(ctx, code)
	if err != nil {
		logCtx.WithError(err).Error("Initial snapshot: failed to list participants")
		parts = nil
	}

	h.trySend(client, domain.RoomEvent{Type: domain.EventRoom, RoomCode: code, Room: room})
	h.trySend(client, domain.RoomEvent{Type: domain.EventParticipants, RoomCode: code, Participants: parts})
}

func (h *Hub) trySend(client *Client, event domain.RoomEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		logrus.WithError(err).Error("Failed to marshal initial snapshot event")
		return
	}
	select {
	case client.send <- payload:
	default:
		logrus.WithField("room_code", client.RoomCode()).
			Warn("Client send channel full when sending initial snapshot")
	}
}
