// Package session holds per-device ordering state: the locally scanned menu
// and local cart while browsing alone, and the mirrored room state while a
// group order is active. The two cart views are mutually exclusive and are
// never merged.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/wally0302/menu/internal/domain"
	"github.com/wally0302/menu/internal/repository"
)

// ErrNotInitialized is returned by every group operation when the group
// backend was never configured. Callers surface it as a blocking message;
// local mode keeps working.
var ErrNotInitialized = errors.New("session: group ordering backend is not configured")

// ErrNotHost guards the host-only delete path.
var ErrNotHost = errors.New("session: only the host may end the group order")

// ErrFeedUnavailable is returned when the live room feed cannot be
// subscribed. The session rolls back to local mode; the operation can be
// retried once the feed recovers.
var ErrFeedUnavailable = errors.New("session: live room feed unavailable")

// GroupStore is the slice of the room service a session drives.
type GroupStore interface {
	Create(ctx context.Context, hostID string, items []domain.MenuItem, currency string) (*domain.Room, string, error)
	Join(ctx context.Context, code, deviceID, name string) (*domain.Participant, error)
	UpdateCart(ctx context.Context, code, deviceID string, cart domain.Cart) error
	Delete(ctx context.Context, code, deviceID, hostKey string) error
}

// Manager owns all live sessions, one per device id. Construct once and
// inject; there is no package-level state.
type Manager struct {
	store       GroupStore
	feed        repository.FeedSubscriber
	deviceState repository.DeviceStateRepository

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager wires a session manager. store and feed may be nil when the
// group backend is not configured; group operations then fail fast with
// ErrNotInitialized while local mode stays available.
func NewManager(store GroupStore, feed repository.FeedSubscriber, deviceState repository.DeviceStateRepository) *Manager {
	if deviceState == nil {
		panic("DeviceStateRepository cannot be nil for session.Manager")
	}
	return &Manager{
		store:       store,
		feed:        feed,
		deviceState: deviceState,
		sessions:    make(map[string]*Session),
	}
}

// Initialized reports whether group operations are available.
func (m *Manager) Initialized() bool {
	return m.store != nil && m.feed != nil
}

// Session returns the device's session, creating it on first use and
// restoring the persisted local cart and display name.
func (m *Manager) Session(ctx context.Context, deviceID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[deviceID]; ok {
		return s
	}
	s := &Session{
		manager:   m,
		deviceID:  deviceID,
		localCart: domain.Cart{},
	}
	if cart, err := m.deviceState.LoadLocalCart(ctx, deviceID); err == nil {
		s.localCart = cart
	} else {
		logrus.WithError(err).WithField("device_id", deviceID).Warn("Failed to restore local cart")
	}
	if name, err := m.deviceState.LoadDisplayName(ctx, deviceID); err == nil {
		s.name = name
	}
	m.sessions[deviceID] = s
	return s
}

// CloseAll tears down every live feed subscription. Called on shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	for _, s := range sessions {
		s.stopListener()
	}
}

// Session is one device's ordering state. All fields are guarded by mu;
// feed events and HTTP requests touch the same state.
type Session struct {
	manager  *Manager
	deviceID string

	mu   sync.Mutex
	name string

	// local mode
	items     []domain.MenuItem
	currency  string
	localCart domain.Cart

	// group mode
	roomCode     string
	isHost       bool
	room         *domain.Room
	participants []domain.Participant
	roomClosed   bool
	listener     *listener
}

// DeviceID returns the stable anonymous identity of this session.
func (s *Session) DeviceID() string { return s.deviceID }

// AddItems appends freshly scanned dishes to the local menu. Starting a new
// scan sequence (no items yet) clears any stale local cart first.
func (s *Session) AddItems(ctx context.Context, items []domain.MenuItem, currency string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.items) == 0 && len(s.localCart) > 0 {
		s.localCart = domain.Cart{}
		s.persistLocalCart(ctx)
	}
	s.items = append(s.items, items...)
	if currency != "" {
		s.currency = currency
	}
}

// ResetLocal drops the scanned menu and the local cart.
func (s *Session) ResetLocal(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
	s.localCart = domain.Cart{}
	s.persistLocalCart(ctx)
}

// UpdateCart applies a signed quantity delta to the active cart view. In
// local mode the change lands in the persisted local cart; in group mode
// the participant's full cart is pushed to the room store wholesale.
func (s *Session) UpdateCart(ctx context.Context, itemID string, delta int) (domain.Cart, error) {
	s.mu.Lock()

	if s.roomCode == "" {
		s.localCart = s.localCart.Apply(itemID, delta)
		s.persistLocalCart(ctx)
		cart := s.localCart.Clone()
		s.mu.Unlock()
		return cart, nil
	}

	code := s.roomCode
	next := s.myCartLocked().Apply(itemID, delta)
	s.mu.Unlock()

	if !s.manager.Initialized() {
		return nil, ErrNotInitialized
	}
	if err := s.manager.store.UpdateCart(ctx, code, s.deviceID, next); err != nil {
		return nil, err
	}
	return next, nil
}

// CreateGroupOrder shares the locally scanned menu as a new room and joins
// it immediately under the reserved host name. Returns the room and the
// one-time host key.
func (s *Session) CreateGroupOrder(ctx context.Context) (*domain.Room, string, error) {
	if !s.manager.Initialized() {
		return nil, "", ErrNotInitialized
	}

	s.mu.Lock()
	items := append([]domain.MenuItem(nil), s.items...)
	currency := s.currency
	s.mu.Unlock()

	room, hostKey, err := s.manager.store.Create(ctx, s.deviceID, items, currency)
	if err != nil {
		return nil, "", err
	}
	if _, err := s.manager.store.Join(ctx, room.Code, s.deviceID, hostDisplayName); err != nil {
		return nil, "", err
	}

	if err := s.enterRoom(room.Code, true); err != nil {
		return nil, "", err
	}
	return room, hostKey, nil
}

// JoinGroupOrder joins an existing room under the given display name and
// switches the session into group mode. The name is remembered for next
// time.
func (s *Session) JoinGroupOrder(ctx context.Context, code, name string) error {
	if !s.manager.Initialized() {
		return ErrNotInitialized
	}

	if name != "" {
		s.mu.Lock()
		s.name = name
		s.mu.Unlock()
		if err := s.manager.deviceState.SaveDisplayName(ctx, s.deviceID, name); err != nil {
			logrus.WithError(err).WithField("device_id", s.deviceID).Warn("Failed to persist display name")
		}
	}

	if _, err := s.manager.store.Join(ctx, code, s.deviceID, name); err != nil {
		return err
	}

	return s.enterRoom(code, false)
}

// LeaveGroup exits group mode locally. Server-side data is untouched; the
// participant record simply stops being watched. The local cart reappears
// unchanged.
func (s *Session) LeaveGroup() {
	s.stopListener()

	s.mu.Lock()
	s.roomCode = ""
	s.isHost = false
	s.room = nil
	s.participants = nil
	s.roomClosed = false
	s.mu.Unlock()
}

// DeleteGroupOrder ends the session for everyone. Host only.
func (s *Session) DeleteGroupOrder(ctx context.Context, hostKey string) error {
	if !s.manager.Initialized() {
		return ErrNotInitialized
	}

	s.mu.Lock()
	code := s.roomCode
	isHost := s.isHost
	s.mu.Unlock()

	if code == "" || !isHost {
		return ErrNotHost
	}
	if err := s.manager.store.Delete(ctx, code, s.deviceID, hostKey); err != nil {
		return err
	}
	s.LeaveGroup()
	return nil
}

// View is the session snapshot handed to the UI layer.
type View struct {
	DeviceID     string               `json:"deviceId"`
	Name         string               `json:"name,omitempty"`
	GroupMode    bool                 `json:"groupMode"`
	RoomCode     string               `json:"roomCode,omitempty"`
	IsHost       bool                 `json:"isHost"`
	RoomClosed   bool                 `json:"roomClosed"`
	Currency     string               `json:"currency,omitempty"`
	Items        []domain.MenuItem    `json:"items"`
	Cart         domain.Cart          `json:"cart"`
	Totals       domain.CartTotals    `json:"totals"`
	Participants []domain.Participant `json:"participants,omitempty"`
}

// Snapshot derives the current view. In group mode the visible menu is the
// room's fixed item list and "my cart" is the own participant's cart (empty
// until the join snapshot arrives); in local mode both come from local
// state. Totals are always computed by folding, never stored.
func (s *Session) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	view := View{
		DeviceID:   s.deviceID,
		Name:       s.name,
		GroupMode:  s.roomCode != "",
		RoomCode:   s.roomCode,
		IsHost:     s.isHost,
		RoomClosed: s.roomClosed,
		Currency:   s.currency,
	}

	if view.GroupMode {
		if s.room != nil {
			view.Items = append([]domain.MenuItem(nil), s.room.Items...)
			view.Currency = s.room.Currency
		}
		view.Cart = s.myCartLocked()
		view.Participants = append([]domain.Participant(nil), s.participants...)
	} else {
		view.Items = append([]domain.MenuItem(nil), s.items...)
		view.Cart = s.localCart.Clone()
	}
	view.Totals = view.Cart.Totals(view.Items)
	return view
}

// myCartLocked resolves the group-mode cart: the cart of the participant
// record matching this device, or an empty cart while the join snapshot is
// still in flight. Caller holds s.mu.
func (s *Session) myCartLocked() domain.Cart {
	for _, p := range s.participants {
		if p.DeviceID == s.deviceID {
			return p.Cart.Clone()
		}
	}
	return domain.Cart{}
}

func (s *Session) persistLocalCart(ctx context.Context) {
	if err := s.manager.deviceState.SaveLocalCart(ctx, s.deviceID, s.localCart); err != nil {
		logrus.WithError(err).WithField("device_id", s.deviceID).Warn("Failed to persist local cart")
	}
}

// The creator always appears under the reserved host name regardless of
// any remembered display name.
const hostDisplayName = "Host"
