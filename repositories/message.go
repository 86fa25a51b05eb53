//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"care-chat/domain"
	"care-chat/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

type IMessageRepository interface {
	StoreMessage(message DiskMessage) error
	GetConversation(conversationID string, limit, offset int) ([]DiskMessage, error)
	MarkRead(senderID, receiverID string, at time.Time) (int, error)
	UnreadCount(userID string) (int, error)
	UnreadInConversation(userID, conversationID string) (int, error)
	Conversations(userID string) ([]ConversationRef, error)
	LatestMessage(conversationID string) (*DiskMessage, error)
}

type MessageRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) IMessageRepository {
	return &MessageRepository{db: db, log: log}
}

// DiskMessage is the persisted record shape. Mutable only in its read flag.
type DiskMessage struct {
	ID             uuid.UUID  `json:"id"`
	SenderID       string     `json:"senderId"`
	ReceiverID     string     `json:"receiverId"`
	Content        string     `json:"content"`
	Type           string     `json:"messageType"`
	FileURL        *string    `json:"fileUrl"`
	FileName       *string    `json:"fileName"`
	IsRead         bool       `json:"isRead"`
	ReadAt         *time.Time `json:"readAt"`
	ConversationID string     `json:"conversationId"`
	CreatedAt      time.Time  `json:"createdAt"`
}

// ConversationRef is one entry of a user's partition index: the conversation
// and whoever the other side is.
type ConversationRef struct {
	ConversationID string
	CounterpartID  string
}

func (m DiskMessage) ToDomain() domain.Message {
	return domain.Message{
		ID:             m.ID,
		SenderID:       m.SenderID,
		ReceiverID:     m.ReceiverID,
		Content:        m.Content,
		Type:           domain.MessageType(m.Type),
		FileURL:        m.FileURL,
		FileName:       m.FileName,
		IsRead:         m.IsRead,
		ReadAt:         m.ReadAt,
		ConversationID: m.ConversationID,
		CreatedAt:      m.CreatedAt,
	}
}

func FromDomain(m domain.Message) DiskMessage {
	return DiskMessage{
		ID:             m.ID,
		SenderID:       m.SenderID,
		ReceiverID:     m.ReceiverID,
		Content:        m.Content,
		Type:           string(m.Type),
		FileURL:        m.FileURL,
		FileName:       m.FileName,
		IsRead:         m.IsRead,
		ReadAt:         m.ReadAt,
		ConversationID: m.ConversationID,
		CreatedAt:      m.CreatedAt,
	}
}

// Key layout. The message key embeds a 19-digit zero padded timestamp so a
// prefix scan yields chronological order, with the uuid as a collision
// disconnector when two messages land on the same nanosecond:
//
//	msg:{conversation}:{%019d nanos}:{uuid}          -> record JSON
//	unread:{receiver}:{conversation}:{nanos}:{uuid}  -> message key
//	conv:{user}:{conversation}                       -> counterpart id
//
// The unread index is deleted as messages are marked read; the conv index is
// what lets the inbox enumerate a user's partitions without a full scan.
func messageKey(conversationID string, at time.Time, id uuid.UUID) []byte {
	return []byte(fmt.Sprintf("msg:%s:%019d:%s", conversationID, at.UnixNano(), id))
}

func unreadKey(receiverID, conversationID string, at time.Time, id uuid.UUID) []byte {
	return []byte(fmt.Sprintf("unread:%s:%s:%019d:%s", receiverID, conversationID, at.UnixNano(), id))
}

func convKey(userID, conversationID string) []byte {
	return []byte(fmt.Sprintf("conv:%s:%s", userID, conversationID))
}

// StoreMessage persists a message and its secondary index entries in a single
// transaction. A failed store leaves no partial index behind.
func (m *MessageRepository) StoreMessage(message DiskMessage) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	key := messageKey(message.ConversationID, message.CreatedAt, message.ID)
	err = m.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(key, data); err != nil {
			return err
		}
		if !message.IsRead {
			if err := txn.Set(unreadKey(message.ReceiverID, message.ConversationID, message.CreatedAt, message.ID), key); err != nil {
				return err
			}
		}
		if err := txn.Set(convKey(message.SenderID, message.ConversationID), []byte(message.ReceiverID)); err != nil {
			return err
		}
		return txn.Set(convKey(message.ReceiverID, message.ConversationID), []byte(message.SenderID))
	})
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrPersistence, err)
	}
	return nil
}

// GetConversation returns one page of a conversation, newest first. The
// padded timestamp in the key makes a reverse prefix scan the storage order;
// offset skips that many most-recent records before the page starts.
func (m *MessageRepository) GetConversation(conversationID string, limit, offset int) ([]DiskMessage, error) {
	var messages []DiskMessage
	prefix := []byte("msg:" + conversationID + ":")

	err := m.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		// Seek past the newest possible key of this prefix, then walk back.
		seekKey := append(append([]byte{}, prefix...), 0xFF)

		skipped := 0
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if skipped < offset {
				skipped++
				continue
			}
			if len(messages) == limit {
				break
			}
			var message DiskMessage
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &message)
			})
			if err != nil {
				return err
			}
			messages = append(messages, message)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrPersistence, err)
	}
	return messages, nil
}

// MarkRead flags every unread message from senderID to receiverID and removes
// the matching unread index entries. Calling it again is a no-op: the index
// is already empty. Returns how many messages changed state.
func (m *MessageRepository) MarkRead(senderID, receiverID string, at time.Time) (int, error) {
	conversationID := domain.ConversationID(senderID, receiverID)
	prefix := []byte(fmt.Sprintf("unread:%s:%s:", receiverID, conversationID))

	updated := 0
	err := m.db.Update(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)

		var indexKeys [][]byte
		var msgKeys [][]byte
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			indexKeys = append(indexKeys, item.KeyCopy(nil))
			msgKey, err := item.ValueCopy(nil)
			if err != nil {
				it.Close()
				return err
			}
			msgKeys = append(msgKeys, msgKey)
		}
		it.Close()

		for i, msgKey := range msgKeys {
			item, err := txn.Get(msgKey)
			if err != nil {
				return err
			}
			var message DiskMessage
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &message)
			}); err != nil {
				return err
			}

			readAt := at
			message.IsRead = true
			message.ReadAt = &readAt

			data, err := json.Marshal(message)
			if err != nil {
				return err
			}
			if err := txn.Set(msgKey, data); err != nil {
				return err
			}
			if err := txn.Delete(indexKeys[i]); err != nil {
				return err
			}
			updated++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", errors.ErrPersistence, err)
	}

	if updated > 0 {
		m.log.Debug("messages marked read",
			"conversation_id", conversationID, "count", updated)
	}
	return updated, nil
}

// UnreadCount counts unread messages addressed to userID across every
// conversation. Pure key count over the unread index, no values fetched.
func (m *MessageRepository) UnreadCount(userID string) (int, error) {
	return m.countPrefix([]byte("unread:" + userID + ":"))
}

func (m *MessageRepository) UnreadInConversation(userID, conversationID string) (int, error) {
	return m.countPrefix([]byte(fmt.Sprintf("unread:%s:%s:", userID, conversationID)))
}

// Conversations lists the partitions userID appears in, with the counterpart
// recorded when each partition was first written.
func (m *MessageRepository) Conversations(userID string) ([]ConversationRef, error) {
	prefixStr := "conv:" + userID + ":"
	prefix := []byte(prefixStr)

	var refs []ConversationRef
	err := m.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			conversationID := string(item.Key()[len(prefixStr):])
			counterpart, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			refs = append(refs, ConversationRef{
				ConversationID: conversationID,
				CounterpartID:  string(counterpart),
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrPersistence, err)
	}
	return refs, nil
}

// LatestMessage returns the most recent message of a conversation, or nil
// when the partition is empty.
func (m *MessageRepository) LatestMessage(conversationID string) (*DiskMessage, error) {
	messages, err := m.GetConversation(conversationID, 1, 0)
	if err != nil {
		return nil, err
	}
	if len(messages) == 0 {
		return nil, nil
	}
	return lo.ToPtr(messages[0]), nil
}

func (m *MessageRepository) countPrefix(prefix []byte) (int, error) {
	count := 0
	err := m.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", errors.ErrPersistence, err)
	}
	return count, nil
}
