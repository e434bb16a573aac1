package ws

import (
	"github.com/agent-observatory/backend/internal/engine"
	"github.com/agent-observatory/backend/internal/event"
)

type MessageType string

const (
	// MsgSnapshot is the full-state message sent once on connect.
	MsgSnapshot MessageType = "snapshot"
	// MsgEvent carries the triggering event plus a fresh full snapshot.
	MsgEvent MessageType = "event"
	// MsgState carries a snapshot with no originating event, used after
	// pruner-driven changes and configuration updates.
	MsgState MessageType = "state"
)

type WSMessage struct {
	Type    MessageType `json:"type"`
	Payload interface{} `json:"payload"`
}

type SnapshotPayload struct {
	State *engine.Snapshot `json:"state"`
}

type EventPayload struct {
	Phase event.Phase      `json:"phase"`
	Event event.Event      `json:"event"`
	State *engine.Snapshot `json:"state"`
}

type StatePayload struct {
	State *engine.Snapshot `json:"state"`
}
