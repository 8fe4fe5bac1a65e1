package types

// MessageType identifies the two message shapes carried on the realtime
// distribution channel.
type MessageType string

const (
	// MessagePositionUpdate carries a shuttle's latest state to every
	// connected session.
	MessagePositionUpdate MessageType = "position-update"

	// MessageTransitionEvent carries an enter/exit geofence notification.
	MessageTransitionEvent MessageType = "transition-event"
)

// TrackerMessage is the transport envelope published on the distribution
// channel and fanned out to live sessions. Exactly one of the two shapes is
// populated:
//
//	{ "type": "position-update", "shuttle": {...} }
//	{ "type": "transition-event", "event": "enter", "geofence_name": "Portal", "shuttle": {...} }
//
// The shuttle record is included on transition events as well, so every
// session can keep its view consistent without a follow-up fetch.
type TrackerMessage struct {
	Type         MessageType `json:"type"`
	Event        EventKind   `json:"event,omitempty"`
	GeofenceName string      `json:"geofence_name,omitempty"`
	Shuttle      *Shuttle    `json:"shuttle"`
}

// NewPositionUpdate builds a position-update message for a shuttle.
func NewPositionUpdate(shuttle *Shuttle) TrackerMessage {
	return TrackerMessage{
		Type:    MessagePositionUpdate,
		Shuttle: shuttle,
	}
}

// NewTransitionMessage builds a transition-event message from a fired event
// and the shuttle record it concerns.
func NewTransitionMessage(event TransitionEvent, shuttle *Shuttle) TrackerMessage {
	return TrackerMessage{
		Type:         MessageTransitionEvent,
		Event:        event.Kind,
		GeofenceName: event.GeofenceName,
		Shuttle:      shuttle,
	}
}
