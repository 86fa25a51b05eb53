// Package event defines the realtime vocabulary exchanged over a user's
// delivery channel. Every server-to-client frame is an Envelope whose Data is
// one of the payload types below.
package event

import (
	"encoding/json"
	"time"
)

// Event is anything that can be pushed to a connected user.
type Event interface {
	EventName() string
}

// Envelope is the wire frame, both directions:
// {"event": "send_message", "data": {...}}.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Encode wraps an Event into its wire frame.
func Encode(e Event) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: e.EventName(), Data: data})
}

// MessagePayload is the message shape pushed to clients. Field names are part
// of the client contract and mirror the stored record.
type MessagePayload struct {
	ID          string     `json:"id"`
	SenderID    string     `json:"sender"`
	ReceiverID  string     `json:"receiver"`
	Content     string     `json:"content"`
	MessageType string     `json:"messageType"`
	FileURL     *string    `json:"fileUrl"`
	FileName    *string    `json:"fileName"`
	IsRead      bool       `json:"isRead"`
	CreatedAt   time.Time  `json:"createdAt"`
	ReadAt      *time.Time `json:"readAt,omitempty"`
}

// NewMessage is pushed to the receiver of a freshly persisted message.
type NewMessage struct {
	Message MessagePayload `json:"message"`
}

func (NewMessage) EventName() string { return "new_message" }

// MessageSent acknowledges a persisted message on the sender's own channel.
type MessageSent struct {
	Message MessagePayload `json:"message"`
}

func (MessageSent) EventName() string { return "message_sent" }

// TypingStart signals that UserID started typing. Best effort, never persisted.
type TypingStart struct {
	UserID string `json:"userId"`
}

func (TypingStart) EventName() string { return "typing_start" }

// TypingStopped signals that UserID stopped typing. Also emitted after every
// successful send as an idempotent UI reset.
type TypingStopped struct {
	UserID string `json:"userId"`
}

func (TypingStopped) EventName() string { return "typing_stopped" }

// MessagesRead tells the original sender that UserID has read their messages.
type MessagesRead struct {
	UserID string `json:"userId"`
}

func (MessagesRead) EventName() string { return "messages_read" }

// UserStatusChange fans out to bonded counterparts on connect, disconnect and
// explicit status updates.
type UserStatusChange struct {
	UserID   string `json:"userId"`
	IsOnline bool   `json:"isOnline"`
	Status   string `json:"status"`
}

func (UserStatusChange) EventName() string { return "user_status_change" }

// Error surfaces a failed operation to the triggering connection only.
// The connection itself stays open.
type Error struct {
	Message string `json:"message"`
}

func (Error) EventName() string { return "error" }
