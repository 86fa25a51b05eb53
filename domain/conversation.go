// Package domain contains core concepts of the care-chat system.
// This file defines the Conversation view materialized for the inbox.
// Conversations have no persistence of their own; they are computed per request.
package domain

import "time"

// Counterpart is the other participant of a conversation, seen from the
// requesting user's side.
type Counterpart struct {
	ID       string
	FullName string
	Email    string
	Role     Role
}

// LastMessage is the most recent message of a conversation, used as the
// representative row of the inbox.
type LastMessage struct {
	Content   string
	Type      MessageType
	SenderID  string
	CreatedAt time.Time
}

// Conversation is one inbox row: the counterpart, the latest activity and the
// number of unread messages addressed to the requesting user.
type Conversation struct {
	ConversationID string
	Counterpart    Counterpart
	LastMessage    LastMessage
	UnreadCount    int
}
