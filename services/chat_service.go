//go:generate go run go.uber.org/mock/mockgen -source=chat_service.go -destination=../mocks/mock_chat_service.go -package=mocks
package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"care-chat/domain"
	"care-chat/errors"
	"care-chat/repositories"
	"care-chat/search"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// DefaultPageSize bounds a conversation page when the caller does not ask for
// a specific limit.
const DefaultPageSize = 50

type IChatService interface {
	SaveMessage(senderID, receiverID, content string, messageType domain.MessageType, fileURL, fileName *string) (domain.Message, error)
	GetConversation(userAID, userBID string, limit, offset int) ([]domain.Message, error)
	MarkRead(senderID, receiverID string) error
	UnreadCount(userID string) (int, error)
	ListConversations(userID string) ([]domain.Conversation, error)
	SearchConversations(userID, query string) ([]domain.Conversation, error)
	SearchMessages(ctx context.Context, userID, query string, limit int) ([]search.Hit, error)
}

type ChatService struct {
	messageRepository repositories.IMessageRepository
	userRepository    repositories.IUserRepository
	messageIndex      search.IMessageIndex
	log               *slog.Logger
}

func NewChatService(
	messageRepository repositories.IMessageRepository,
	userRepository repositories.IUserRepository,
	messageIndex search.IMessageIndex,
	log *slog.Logger,
) IChatService {
	return &ChatService{
		messageRepository: messageRepository,
		userRepository:    userRepository,
		messageIndex:      messageIndex,
		log:               log,
	}
}

// SaveMessage validates, persists and returns the stored record. It does not
// enforce the chat authorization rule; callers run CanChat first. The search
// index write happens after the durable save and never fails the send.
func (s *ChatService) SaveMessage(senderID, receiverID, content string,
	messageType domain.MessageType, fileURL, fileName *string) (domain.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return domain.Message{}, fmt.Errorf("%w: content is required", errors.ErrValidation)
	}
	if utf8.RuneCountInString(content) > domain.MaxContentLength {
		return domain.Message{}, fmt.Errorf("%w: content exceeds %d characters",
			errors.ErrValidation, domain.MaxContentLength)
	}
	if messageType == "" {
		messageType = domain.MessageText
	}
	if !messageType.Valid() {
		return domain.Message{}, fmt.Errorf("%w: unknown message type %q", errors.ErrValidation, messageType)
	}

	message := domain.Message{
		ID:             uuid.New(),
		SenderID:       senderID,
		ReceiverID:     receiverID,
		Content:        content,
		Type:           messageType,
		FileURL:        fileURL,
		FileName:       fileName,
		ConversationID: domain.ConversationID(senderID, receiverID),
		CreatedAt:      time.Now().UTC(),
	}

	if err := s.messageRepository.StoreMessage(repositories.FromDomain(message)); err != nil {
		return domain.Message{}, err
	}

	if err := s.messageIndex.Index(message); err != nil {
		s.log.Error("failed to index message",
			"message_id", message.ID, "error", err)
	}

	return message, nil
}

// GetConversation returns one page in chronological order. Paging happens
// over newest-first storage order, then the page is reversed for presentation.
func (s *ChatService) GetConversation(userAID, userBID string, limit, offset int) ([]domain.Message, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if offset < 0 {
		offset = 0
	}

	conversationID := domain.ConversationID(userAID, userBID)
	page, err := s.messageRepository.GetConversation(conversationID, limit, offset)
	if err != nil {
		return nil, err
	}

	messages := lo.Map(page, func(m repositories.DiskMessage, _ int) domain.Message {
		return m.ToDomain()
	})
	return lo.Reverse(messages), nil
}

// MarkRead flags everything unread from senderID to receiverID. Idempotent.
func (s *ChatService) MarkRead(senderID, receiverID string) error {
	_, err := s.messageRepository.MarkRead(senderID, receiverID, time.Now().UTC())
	return err
}

func (s *ChatService) UnreadCount(userID string) (int, error) {
	return s.messageRepository.UnreadCount(userID)
}

// ListConversations builds the inbox: one row per counterpart, represented by
// the newest message of the partition, with the unread count of messages
// addressed to the requesting user, newest activity first.
func (s *ChatService) ListConversations(userID string) ([]domain.Conversation, error) {
	refs, err := s.messageRepository.Conversations(userID)
	if err != nil {
		return nil, err
	}

	conversations := make([]domain.Conversation, 0, len(refs))
	for _, ref := range refs {
		latest, err := s.messageRepository.LatestMessage(ref.ConversationID)
		if err != nil {
			return nil, err
		}
		if latest == nil {
			continue
		}

		unread, err := s.messageRepository.UnreadInConversation(userID, ref.ConversationID)
		if err != nil {
			return nil, err
		}

		// The counterpart is whichever side of the representative message
		// is not the requesting user.
		counterpartID := latest.SenderID
		if counterpartID == userID {
			counterpartID = latest.ReceiverID
		}
		counterpart, err := s.userRepository.GetUser(counterpartID)
		if err != nil {
			s.log.Warn("skipping conversation with unknown counterpart",
				"conversation_id", ref.ConversationID, "counterpart_id", counterpartID)
			continue
		}

		conversations = append(conversations, domain.Conversation{
			ConversationID: ref.ConversationID,
			Counterpart: domain.Counterpart{
				ID:       counterpart.ID,
				FullName: counterpart.FullName,
				Email:    counterpart.Email,
				Role:     counterpart.Role,
			},
			LastMessage: domain.LastMessage{
				Content:   latest.Content,
				Type:      domain.MessageType(latest.Type),
				SenderID:  latest.SenderID,
				CreatedAt: latest.CreatedAt,
			},
			UnreadCount: unread,
		})
	}

	// Equal timestamps keep their input order.
	sort.SliceStable(conversations, func(i, j int) bool {
		return conversations[i].LastMessage.CreatedAt.After(conversations[j].LastMessage.CreatedAt)
	})
	return conversations, nil
}

// SearchConversations filters the inbox case-insensitively over counterpart
// name, counterpart email and last-message content. No extra store query.
func (s *ChatService) SearchConversations(userID, query string) ([]domain.Conversation, error) {
	conversations, err := s.ListConversations(userID)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(query)
	return lo.Filter(conversations, func(c domain.Conversation, _ int) bool {
		return strings.Contains(strings.ToLower(c.Counterpart.FullName), needle) ||
			strings.Contains(strings.ToLower(c.Counterpart.Email), needle) ||
			strings.Contains(strings.ToLower(c.LastMessage.Content), needle)
	}), nil
}

// SearchMessages runs the full-text index over the caller's own conversations.
func (s *ChatService) SearchMessages(ctx context.Context, userID, query string, limit int) ([]search.Hit, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	return s.messageIndex.Search(ctx, userID, query, limit)
}
