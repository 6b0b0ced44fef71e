package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/wally0302/menu/internal/domain"
	"github.com/wally0302/menu/internal/repository"
	"github.com/wally0302/menu/internal/repository/mocks"
)

// groupStoreMock mocks the GroupStore slice of the room service.
type groupStoreMock struct {
	mock.Mock
}

func (m *groupStoreMock) Create(ctx context.Context, hostID string, items []domain.MenuItem, currency string) (*domain.Room, string, error) {
	args := m.Called(ctx, hostID, items, currency)
	var room *domain.Room
	if args.Get(0) != nil {
		room = args.Get(0).(*domain.Room)
	}
	return room, args.String(1), args.Error(2)
}

func (m *groupStoreMock) Join(ctx context.Context, code, deviceID, name string) (*domain.Participant, error) {
	args := m.Called(ctx, code, deviceID, name)
	var p *domain.Participant
	if args.Get(0) != nil {
		p = args.Get(0).(*domain.Participant)
	}
	return p, args.Error(1)
}

func (m *groupStoreMock) UpdateCart(ctx context.Context, code, deviceID string, cart domain.Cart) error {
	args := m.Called(ctx, code, deviceID, cart)
	return args.Error(0)
}

func (m *groupStoreMock) Delete(ctx context.Context, code, deviceID, hostKey string) error {
	args := m.Called(ctx, code, deviceID, hostKey)
	return args.Error(0)
}

// fakeSubscription is a controllable feed handle for listener tests.
type fakeSubscription struct {
	events chan domain.RoomEvent
	closed bool
}

func newFakeSubscription() *fakeSubscription {
	return &fakeSubscription{events: make(chan domain.RoomEvent, 8)}
}

func (f *fakeSubscription) Events() <-chan domain.RoomEvent { return f.events }
func (f *fakeSubscription) Unsubscribe() {
	if !f.closed {
		f.closed = true
		close(f.events)
	}
}

// fakeSubscriber hands out fakeSubscriptions keyed by room code. Setting
// err makes every Subscribe fail, simulating a feed outage.
type fakeSubscriber struct {
	subs map[string]*fakeSubscription
	err  error
}

func newFakeSubscriber() *fakeSubscriber {
	return &fakeSubscriber{subs: make(map[string]*fakeSubscription)}
}

func (f *fakeSubscriber) Subscribe(ctx context.Context, roomCode string) (repository.FeedSubscription, error) {
	if f.err != nil {
		return nil, f.err
	}
	sub := newFakeSubscription()
	f.subs[roomCode] = sub
	return sub, nil
}

func newDeviceState() *mocks.DeviceStateRepository {
	ds := new(mocks.DeviceStateRepository)
	ds.On("LoadLocalCart", mock.Anything, mock.Anything).Return(domain.Cart{}, nil).Maybe()
	ds.On("LoadDisplayName", mock.Anything, mock.Anything).Return("", nil).Maybe()
	ds.On("SaveLocalCart", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	ds.On("SaveDisplayName", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	return ds
}

var menuFixture = []domain.MenuItem{
	{ID: "item_1", OriginalName: "Phở bò", Price: 65000, Currency: "VND"},
	{ID: "item_2", OriginalName: "Gỏi cuốn", Price: 45000, Currency: "VND"},
}

func TestManager_NotInitialized_GroupOpsFailFast(t *testing.T) {
	m := NewManager(nil, nil, newDeviceState())
	require.False(t, m.Initialized())

	s := m.Session(context.Background(), "device-1")

	_, _, err := s.CreateGroupOrder(context.Background())
	assert.ErrorIs(t, err, ErrNotInitialized)

	err = s.JoinGroupOrder(context.Background(), "ABCDEF", "Alice")
	assert.ErrorIs(t, err, ErrNotInitialized)

	err = s.DeleteGroupOrder(context.Background(), "key")
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestManager_NotInitialized_LocalModeStillWorks(t *testing.T) {
	m := NewManager(nil, nil, newDeviceState())
	s := m.Session(context.Background(), "device-1")

	s.AddItems(context.Background(), menuFixture, "VND")
	cart, err := s.UpdateCart(context.Background(), "item_1", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, cart.Quantity("item_1"))

	view := s.Snapshot()
	assert.False(t, view.GroupMode)
	assert.Len(t, view.Items, 2)
	assert.Equal(t, 2, view.Totals.ItemCount)
	assert.Equal(t, 130000.0, view.Totals.PriceTotal)
}

func TestManager_Session_RestoresPersistedState(t *testing.T) {
	ds := new(mocks.DeviceStateRepository)
	ds.On("LoadLocalCart", mock.Anything, "device-1").Return(domain.Cart{"item_1": 3}, nil).Once()
	ds.On("LoadDisplayName", mock.Anything, "device-1").Return("Alice", nil).Once()

	m := NewManager(nil, nil, ds)
	s := m.Session(context.Background(), "device-1")

	view := s.Snapshot()
	assert.Equal(t, "Alice", view.Name)
	assert.Equal(t, 3, view.Cart.Quantity("item_1"))

	// Second lookup reuses the live session, no reload.
	again := m.Session(context.Background(), "device-1")
	assert.Same(t, s, again)
	ds.AssertExpectations(t)
}

func TestSession_AddItems_FreshScanClearsStaleCart(t *testing.T) {
	ds := new(mocks.DeviceStateRepository)
	ds.On("LoadLocalCart", mock.Anything, "device-1").Return(domain.Cart{"old-item": 2}, nil).Once()
	ds.On("LoadDisplayName", mock.Anything, "device-1").Return("", nil).Once()
	ds.On("SaveLocalCart", mock.Anything, "device-1", domain.Cart{}).Return(nil).Once()

	m := NewManager(nil, nil, ds)
	s := m.Session(context.Background(), "device-1")

	s.AddItems(context.Background(), menuFixture, "VND")

	view := s.Snapshot()
	assert.Empty(t, view.Cart, "a fresh menu must not inherit a cart for items it does not contain")
	ds.AssertExpectations(t)
}

func TestSession_AddItems_AppendKeepsCart(t *testing.T) {
	m := NewManager(nil, nil, newDeviceState())
	s := m.Session(context.Background(), "device-1")

	s.AddItems(context.Background(), menuFixture[:1], "VND")
	_, err := s.UpdateCart(context.Background(), "item_1", 1)
	require.NoError(t, err)

	// Scanning another page appends; the cart survives.
	s.AddItems(context.Background(), menuFixture[1:], "VND")

	view := s.Snapshot()
	assert.Len(t, view.Items, 2)
	assert.Equal(t, 1, view.Cart.Quantity("item_1"))
}

func TestSession_ResetLocal(t *testing.T) {
	m := NewManager(nil, nil, newDeviceState())
	s := m.Session(context.Background(), "device-1")

	s.AddItems(context.Background(), menuFixture, "VND")
	_, _ = s.UpdateCart(context.Background(), "item_1", 1)

	s.ResetLocal(context.Background())

	view := s.Snapshot()
	assert.Empty(t, view.Items)
	assert.Empty(t, view.Cart)
}

func TestSession_CreateGroupOrder(t *testing.T) {
	store := new(groupStoreMock)
	feed := newFakeSubscriber()
	m := NewManager(store, feed, newDeviceState())
	s := m.Session(context.Background(), "device-1")
	s.AddItems(context.Background(), menuFixture, "VND")

	room := &domain.Room{Code: "ABCDEF", Status: domain.RoomStatusActive, HostID: "device-1", Items: menuFixture, Currency: "VND"}
	store.On("Create", mock.Anything, "device-1", mock.AnythingOfType("[]domain.MenuItem"), "VND").
		Return(room, "host-key", nil).Once()
	store.On("Join", mock.Anything, "ABCDEF", "device-1", "Host").
		Return(&domain.Participant{DeviceID: "device-1", RoomCode: "ABCDEF", Name: "Host", IsHost: true, Cart: domain.Cart{}}, nil).Once()

	created, hostKey, err := s.CreateGroupOrder(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "ABCDEF", created.Code)
	assert.Equal(t, "host-key", hostKey)

	view := s.Snapshot()
	assert.True(t, view.GroupMode)
	assert.True(t, view.IsHost)
	assert.Contains(t, feed.subs, "ABCDEF", "creating a group order must open the live feed")
	store.AssertExpectations(t)
}

// A join whose feed subscription fails must not leave the session in a
// group mode that will never receive an update. The error surfaces and the
// session stays local so the user can retry.
func TestSession_JoinGroupOrder_FeedOutageRollsBackToLocal(t *testing.T) {
	store := new(groupStoreMock)
	feed := newFakeSubscriber()
	feed.err = errors.New("redis down")
	m := NewManager(store, feed, newDeviceState())
	s := m.Session(context.Background(), "device-2")
	s.AddItems(context.Background(), menuFixture, "VND")
	_, err := s.UpdateCart(context.Background(), "item_1", 1)
	require.NoError(t, err)

	store.On("Join", mock.Anything, "ABCDEF", "device-2", "Alice").
		Return(&domain.Participant{DeviceID: "device-2", RoomCode: "ABCDEF", Name: "Alice", Cart: domain.Cart{}}, nil).Once()

	err = s.JoinGroupOrder(context.Background(), "ABCDEF", "Alice")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFeedUnavailable)

	view := s.Snapshot()
	assert.False(t, view.GroupMode, "a failed subscription must not strand the session in group mode")
	assert.Equal(t, 1, view.Cart.Quantity("item_1"), "the local cart stays available")
	store.AssertExpectations(t)
}

func TestSession_CreateGroupOrder_FeedOutageSurfacesError(t *testing.T) {
	store := new(groupStoreMock)
	feed := newFakeSubscriber()
	feed.err = errors.New("redis down")
	m := NewManager(store, feed, newDeviceState())
	s := m.Session(context.Background(), "device-1")
	s.AddItems(context.Background(), menuFixture, "VND")

	room := &domain.Room{Code: "ABCDEF", Status: domain.RoomStatusActive, HostID: "device-1", Items: menuFixture, Currency: "VND"}
	store.On("Create", mock.Anything, "device-1", mock.AnythingOfType("[]domain.MenuItem"), "VND").
		Return(room, "host-key", nil).Once()
	store.On("Join", mock.Anything, "ABCDEF", "device-1", "Host").
		Return(&domain.Participant{DeviceID: "device-1", RoomCode: "ABCDEF", Name: "Host", IsHost: true, Cart: domain.Cart{}}, nil).Once()

	_, _, err := s.CreateGroupOrder(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFeedUnavailable)
	assert.False(t, s.Snapshot().GroupMode)
	store.AssertExpectations(t)
}

func TestSession_GroupMode_SnapshotUsesRoomStateAndOwnCart(t *testing.T) {
	store := new(groupStoreMock)
	feed := newFakeSubscriber()
	m := NewManager(store, feed, newDeviceState())
	s := m.Session(context.Background(), "device-2")

	store.On("Join", mock.Anything, "ABCDEF", "device-2", "Alice").
		Return(&domain.Participant{DeviceID: "device-2", RoomCode: "ABCDEF", Name: "Alice", Cart: domain.Cart{}}, nil).Once()
	require.NoError(t, s.JoinGroupOrder(context.Background(), "ABCDEF", "Alice"))

	// Before any snapshot arrives: group mode with an empty view.
	view := s.Snapshot()
	assert.True(t, view.GroupMode)
	assert.Empty(t, view.Items)
	assert.Empty(t, view.Cart)

	room := &domain.Room{Code: "ABCDEF", Status: domain.RoomStatusActive, HostID: "device-1", Items: menuFixture, Currency: "VND"}
	s.applyEvent("ABCDEF", domain.RoomEvent{Type: domain.EventRoom, RoomCode: "ABCDEF", Room: room})
	s.applyEvent("ABCDEF", domain.RoomEvent{Type: domain.EventParticipants, RoomCode: "ABCDEF", Participants: []domain.Participant{
		{DeviceID: "device-1", Name: "Host", Cart: domain.Cart{"item_2": 1}},
		{DeviceID: "device-2", Name: "Alice", Cart: domain.Cart{"item_1": 2}},
	}})

	view = s.Snapshot()
	assert.Len(t, view.Items, 2)
	assert.Equal(t, 2, view.Cart.Quantity("item_1"), "my cart is my own participant's cart")
	assert.Equal(t, 0, view.Cart.Quantity("item_2"), "other participants' carts are not mine")
	assert.Len(t, view.Participants, 2)
	assert.Equal(t, 130000.0, view.Totals.PriceTotal)
}

func TestSession_GroupMode_UpdateCartPushesWholesale(t *testing.T) {
	store := new(groupStoreMock)
	feed := newFakeSubscriber()
	m := NewManager(store, feed, newDeviceState())
	s := m.Session(context.Background(), "device-2")

	store.On("Join", mock.Anything, "ABCDEF", "device-2", "Alice").
		Return(&domain.Participant{DeviceID: "device-2", Cart: domain.Cart{}}, nil).Once()
	require.NoError(t, s.JoinGroupOrder(context.Background(), "ABCDEF", "Alice"))

	s.applyEvent("ABCDEF", domain.RoomEvent{Type: domain.EventParticipants, RoomCode: "ABCDEF", Participants: []domain.Participant{
		{DeviceID: "device-2", Name: "Alice", Cart: domain.Cart{"item_1": 1}},
	}})

	store.On("UpdateCart", mock.Anything, "ABCDEF", "device-2", domain.Cart{"item_1": 2}).Return(nil).Once()

	cart, err := s.UpdateCart(context.Background(), "item_1", 1)

	require.NoError(t, err)
	assert.Equal(t, 2, cart.Quantity("item_1"))
	store.AssertExpectations(t)
}

func TestSession_StaleEventForPreviousRoomDiscarded(t *testing.T) {
	store := new(groupStoreMock)
	feed := newFakeSubscriber()
	m := NewManager(store, feed, newDeviceState())
	s := m.Session(context.Background(), "device-2")

	store.On("Join", mock.Anything, mock.Anything, "device-2", "Alice").
		Return(&domain.Participant{DeviceID: "device-2", Cart: domain.Cart{}}, nil).Twice()
	require.NoError(t, s.JoinGroupOrder(context.Background(), "OLD111", "Alice"))
	require.NoError(t, s.JoinGroupOrder(context.Background(), "NEW222", "Alice"))

	// A lingering event from the old subscription must not touch state.
	s.applyEvent("OLD111", domain.RoomEvent{Type: domain.EventRoomClosed, RoomCode: "OLD111"})

	view := s.Snapshot()
	assert.Equal(t, "NEW222", view.RoomCode)
	assert.False(t, view.RoomClosed, "a closed event for a previous room must be discarded")
}

func TestSession_RoomClosedIsSticky(t *testing.T) {
	store := new(groupStoreMock)
	feed := newFakeSubscriber()
	m := NewManager(store, feed, newDeviceState())
	s := m.Session(context.Background(), "device-2")

	store.On("Join", mock.Anything, "ABCDEF", "device-2", "Alice").
		Return(&domain.Participant{DeviceID: "device-2", Cart: domain.Cart{}}, nil).Once()
	require.NoError(t, s.JoinGroupOrder(context.Background(), "ABCDEF", "Alice"))

	s.applyEvent("ABCDEF", domain.RoomEvent{Type: domain.EventRoomClosed, RoomCode: "ABCDEF"})
	assert.True(t, s.Snapshot().RoomClosed)

	// Later events do not clear the terminal state.
	s.applyEvent("ABCDEF", domain.RoomEvent{Type: domain.EventParticipants, RoomCode: "ABCDEF", Participants: nil})
	assert.True(t, s.Snapshot().RoomClosed)
}

func TestSession_ClosedStatusInRoomEventIsTerminal(t *testing.T) {
	store := new(groupStoreMock)
	feed := newFakeSubscriber()
	m := NewManager(store, feed, newDeviceState())
	s := m.Session(context.Background(), "device-2")

	store.On("Join", mock.Anything, "ABCDEF", "device-2", "Alice").
		Return(&domain.Participant{DeviceID: "device-2", Cart: domain.Cart{}}, nil).Once()
	require.NoError(t, s.JoinGroupOrder(context.Background(), "ABCDEF", "Alice"))

	closed := &domain.Room{Code: "ABCDEF", Status: domain.RoomStatusClosed}
	s.applyEvent("ABCDEF", domain.RoomEvent{Type: domain.EventRoom, RoomCode: "ABCDEF", Room: closed})

	assert.True(t, s.Snapshot().RoomClosed)
}

func TestSession_LeaveGroup_RestoresLocalCartUnchanged(t *testing.T) {
	store := new(groupStoreMock)
	feed := newFakeSubscriber()
	m := NewManager(store, feed, newDeviceState())
	s := m.Session(context.Background(), "device-2")

	s.AddItems(context.Background(), menuFixture, "VND")
	_, err := s.UpdateCart(context.Background(), "item_1", 3)
	require.NoError(t, err)

	store.On("Join", mock.Anything, "ABCDEF", "device-2", "Alice").
		Return(&domain.Participant{DeviceID: "device-2", Cart: domain.Cart{}}, nil).Once()
	require.NoError(t, s.JoinGroupOrder(context.Background(), "ABCDEF", "Alice"))
	require.True(t, s.Snapshot().GroupMode)

	s.LeaveGroup()

	view := s.Snapshot()
	assert.False(t, view.GroupMode)
	assert.Equal(t, 3, view.Cart.Quantity("item_1"), "the local cart must reappear untouched")
	assert.True(t, feed.subs["ABCDEF"].closed, "leaving must release the feed subscription")
}

func TestSession_DeleteGroupOrder_HostOnly(t *testing.T) {
	store := new(groupStoreMock)
	feed := newFakeSubscriber()
	m := NewManager(store, feed, newDeviceState())
	s := m.Session(context.Background(), "device-2")

	store.On("Join", mock.Anything, "ABCDEF", "device-2", "Alice").
		Return(&domain.Participant{DeviceID: "device-2", Cart: domain.Cart{}}, nil).Once()
	require.NoError(t, s.JoinGroupOrder(context.Background(), "ABCDEF", "Alice"))

	err := s.DeleteGroupOrder(context.Background(), "some-key")
	assert.ErrorIs(t, err, ErrNotHost)
	store.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSession_DeleteGroupOrder_Host(t *testing.T) {
	store := new(groupStoreMock)
	feed := newFakeSubscriber()
	m := NewManager(store, feed, newDeviceState())
	s := m.Session(context.Background(), "device-1")
	s.AddItems(context.Background(), menuFixture, "VND")

	room := &domain.Room{Code: "ABCDEF", Status: domain.RoomStatusActive, HostID: "device-1", Items: menuFixture}
	store.On("Create", mock.Anything, "device-1", mock.Anything, mock.Anything).Return(room, "host-key", nil).Once()
	store.On("Join", mock.Anything, "ABCDEF", "device-1", "Host").
		Return(&domain.Participant{DeviceID: "device-1", IsHost: true, Cart: domain.Cart{}}, nil).Once()
	_, _, err := s.CreateGroupOrder(context.Background())
	require.NoError(t, err)

	store.On("Delete", mock.Anything, "ABCDEF", "device-1", "host-key").Return(nil).Once()

	require.NoError(t, s.DeleteGroupOrder(context.Background(), "host-key"))

	view := s.Snapshot()
	assert.False(t, view.GroupMode, "deleting the room drops the session back to local mode")
	store.AssertExpectations(t)
}

func TestSession_ListenerDeliversEvents(t *testing.T) {
	store := new(groupStoreMock)
	feed := newFakeSubscriber()
	m := NewManager(store, feed, newDeviceState())
	s := m.Session(context.Background(), "device-2")

	store.On("Join", mock.Anything, "ABCDEF", "device-2", "Alice").
		Return(&domain.Participant{DeviceID: "device-2", Cart: domain.Cart{}}, nil).Once()
	require.NoError(t, s.JoinGroupOrder(context.Background(), "ABCDEF", "Alice"))

	sub := feed.subs["ABCDEF"]
	require.NotNil(t, sub)
	sub.events <- domain.RoomEvent{Type: domain.EventParticipants, RoomCode: "ABCDEF", Participants: []domain.Participant{
		{DeviceID: "device-2", Name: "Alice", Cart: domain.Cart{"item_1": 1}},
	}}
	sub.Unsubscribe()

	assert.Eventually(t, func() bool {
		return s.Snapshot().Cart.Quantity("item_1") == 1
	}, time.Second, 10*time.Millisecond)
}
