// Package domain contains core concepts of the care-chat system.
// This file defines the immutable Message record and the conversation identity.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// MaxContentLength bounds message content in unicode code points.
const MaxContentLength = 1000

type MessageType string

const (
	MessageText  MessageType = "text"
	MessageFile  MessageType = "file"
	MessageImage MessageType = "image"
)

func (t MessageType) Valid() bool {
	switch t {
	case MessageText, MessageFile, MessageImage:
		return true
	default:
		return false
	}
}

// Message is created once on a successful send and never mutated afterwards,
// except for the read flag and its timestamp.
type Message struct {
	ID             uuid.UUID
	SenderID       string
	ReceiverID     string
	Content        string
	Type           MessageType
	FileURL        *string
	FileName       *string
	IsRead         bool
	ReadAt         *time.Time
	ConversationID string
	CreatedAt      time.Time
}

// ConversationID derives the stable partition key for a pair of users.
// The two ids are sorted before joining, so the result is identical no matter
// which side is sender in any given message.
func ConversationID(userAID, userBID string) string {
	if userBID < userAID {
		userAID, userBID = userBID, userAID
	}
	return userAID + "_" + userBID
}
