package domain

// Feed event types. Each event carries a full snapshot of the record that
// changed; consumers replace their cached state wholesale, there is no
// incremental patching.
const (
	EventRoom         = "room"
	EventParticipants = "participants"
	EventRoomClosed   = "room_closed"
)

// RoomEvent is one message on a room's live feed. The room snapshot and the
// participants snapshot travel as independent events with no cross-event
// consistency guarantee; readers must treat each defensively.
type RoomEvent struct {
	Type         string        `json:"type"`
	RoomCode     string        `json:"roomCode"`
	Room         *Room         `json:"room,omitempty"`
	Participants []Participant `json:"participants,omitempty"`
}
