package services

import (
	"context"
	"log/slog"
	"strings"
	"testing"

	"care-chat/domain"
	"care-chat/errors"
	"care-chat/repositories"
	"care-chat/search"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

// stubIndex records what gets indexed and answers searches from memory, so
// the service tests stay on the durable path.
type stubIndex struct {
	indexed []domain.Message
}

func (s *stubIndex) Index(message domain.Message) error {
	s.indexed = append(s.indexed, message)
	return nil
}

func (s *stubIndex) Search(_ context.Context, userID, query string, limit int) ([]search.Hit, error) {
	var hits []search.Hit
	for _, m := range s.indexed {
		if m.SenderID != userID && m.ReceiverID != userID {
			continue
		}
		if !strings.Contains(strings.ToLower(m.Content), strings.ToLower(query)) {
			continue
		}
		hits = append(hits, search.Hit{
			MessageID:      m.ID.String(),
			ConversationID: m.ConversationID,
			SenderID:       m.SenderID,
			Content:        m.Content,
			CreatedAt:      m.CreatedAt,
		})
		if len(hits) == limit {
			break
		}
	}
	return hits, nil
}

type chatFixture struct {
	chat  IChatService
	users repositories.IUserRepository
	index *stubIndex
}

func newChatFixture(t *testing.T) chatFixture {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLogger(nil))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	users := repositories.NewUserRepository(db)
	messages := repositories.NewMessageRepository(db, slog.Default())
	index := &stubIndex{}
	return chatFixture{
		chat:  NewChatService(messages, users, index, slog.Default()),
		users: users,
		index: index,
	}
}

func (f chatFixture) addUser(t *testing.T, fullName, email string, role domain.Role) string {
	t.Helper()
	id, err := f.users.CreateUser(domain.User{FullName: fullName, Email: email, Role: role}, "hash")
	require.NoError(t, err)
	return id
}

func Test_SaveMessage_Persists_For_Offline_Receiver(t *testing.T) {
	req := require.New(t)
	f := newChatFixture(t)

	doctorID := f.addUser(t, "Dr Dupont", "dupont@example.com", domain.RoleDoctor)
	patientID := f.addUser(t, "Alice Martin", "alice@example.com", domain.RolePatient)

	// No delivery channel exists anywhere in this test; the save alone must
	// make the message retrievable later.
	message, err := f.chat.SaveMessage(doctorID, patientID, "  take the pills twice a day  ", "", nil, nil)
	req.NoError(err)
	req.Equal("take the pills twice a day", message.Content)
	req.Equal(domain.MessageText, message.Type)
	req.False(message.IsRead)

	fetched, err := f.chat.GetConversation(patientID, doctorID, 0, 0)
	req.NoError(err)
	req.Len(fetched, 1)
	req.Equal(message.ID, fetched[0].ID)

	count, err := f.chat.UnreadCount(patientID)
	req.NoError(err)
	req.Equal(1, count)

	req.Len(f.index.indexed, 1)
}

func Test_SaveMessage_Rejects_Invalid_Content(t *testing.T) {
	req := require.New(t)
	f := newChatFixture(t)

	_, err := f.chat.SaveMessage("a", "b", "   ", "", nil, nil)
	req.ErrorIs(err, errors.ErrValidation)

	_, err = f.chat.SaveMessage("a", "b", strings.Repeat("x", domain.MaxContentLength+1), "", nil, nil)
	req.ErrorIs(err, errors.ErrValidation)

	_, err = f.chat.SaveMessage("a", "b", "hello", "video", nil, nil)
	req.ErrorIs(err, errors.ErrValidation)

	// Exactly at the bound is fine.
	_, err = f.chat.SaveMessage("a", "b", strings.Repeat("x", domain.MaxContentLength), "", nil, nil)
	req.NoError(err)
}

func Test_GetConversation_Pages_Are_Chronological(t *testing.T) {
	req := require.New(t)
	f := newChatFixture(t)

	for _, content := range []string{"one", "two", "three", "four"} {
		_, err := f.chat.SaveMessage("alice", "bob", content, "", nil, nil)
		req.NoError(err)
	}

	// The newest page, oldest entry first within the page.
	page, err := f.chat.GetConversation("alice", "bob", 2, 0)
	req.NoError(err)
	req.Len(page, 2)
	req.Equal("three", page[0].Content)
	req.Equal("four", page[1].Content)

	page, err = f.chat.GetConversation("alice", "bob", 2, 2)
	req.NoError(err)
	req.Equal("one", page[0].Content)
	req.Equal("two", page[1].Content)

	// limit=1 lands on the single most recent message.
	page, err = f.chat.GetConversation("alice", "bob", 1, 0)
	req.NoError(err)
	req.Len(page, 1)
	req.Equal("four", page[0].Content)
}

func Test_ListConversations_Orders_By_Latest_Activity(t *testing.T) {
	req := require.New(t)
	f := newChatFixture(t)

	doctorID := f.addUser(t, "Dr Dupont", "dupont@example.com", domain.RoleDoctor)
	aliceID := f.addUser(t, "Alice Martin", "alice@example.com", domain.RolePatient)
	bobID := f.addUser(t, "Bob Petit", "bob@example.com", domain.RolePatient)

	_, err := f.chat.SaveMessage(aliceID, doctorID, "hello from alice", "", nil, nil)
	req.NoError(err)
	_, err = f.chat.SaveMessage(bobID, doctorID, "hello from bob", "", nil, nil)
	req.NoError(err)
	_, err = f.chat.SaveMessage(bobID, doctorID, "it hurts here", "", nil, nil)
	req.NoError(err)

	conversations, err := f.chat.ListConversations(doctorID)
	req.NoError(err)
	req.Len(conversations, 2)

	// Bob wrote last, so his conversation leads the inbox.
	req.Equal(bobID, conversations[0].Counterpart.ID)
	req.Equal("it hurts here", conversations[0].LastMessage.Content)
	req.Equal(2, conversations[0].UnreadCount)

	req.Equal(aliceID, conversations[1].Counterpart.ID)
	req.Equal(1, conversations[1].UnreadCount)

	// Unread counts are scoped to the requesting side: the patients sent
	// everything, so their own inboxes show zero unread.
	fromBob, err := f.chat.ListConversations(bobID)
	req.NoError(err)
	req.Len(fromBob, 1)
	req.Equal(0, fromBob[0].UnreadCount)
}

func Test_MarkRead_Clears_Unread_For_Receiver_Only(t *testing.T) {
	req := require.New(t)
	f := newChatFixture(t)

	_, err := f.chat.SaveMessage("alice", "bob", "ping", "", nil, nil)
	req.NoError(err)
	_, err = f.chat.SaveMessage("bob", "alice", "pong", "", nil, nil)
	req.NoError(err)

	req.NoError(f.chat.MarkRead("alice", "bob"))

	count, err := f.chat.UnreadCount("bob")
	req.NoError(err)
	req.Equal(0, count)

	count, err = f.chat.UnreadCount("alice")
	req.NoError(err)
	req.Equal(1, count)
}

func Test_SearchConversations_Filters_Inbox(t *testing.T) {
	req := require.New(t)
	f := newChatFixture(t)

	doctorID := f.addUser(t, "Dr Dupont", "dupont@example.com", domain.RoleDoctor)
	aliceID := f.addUser(t, "Alice Martin", "alice@example.com", domain.RolePatient)
	bobID := f.addUser(t, "Bob Petit", "bob@example.com", domain.RolePatient)

	_, err := f.chat.SaveMessage(aliceID, doctorID, "about my prescription", "", nil, nil)
	req.NoError(err)
	_, err = f.chat.SaveMessage(bobID, doctorID, "scheduling a visit", "", nil, nil)
	req.NoError(err)

	byName, err := f.chat.SearchConversations(doctorID, "MARTIN")
	req.NoError(err)
	req.Len(byName, 1)
	req.Equal(aliceID, byName[0].Counterpart.ID)

	byContent, err := f.chat.SearchConversations(doctorID, "visit")
	req.NoError(err)
	req.Len(byContent, 1)
	req.Equal(bobID, byContent[0].Counterpart.ID)

	none, err := f.chat.SearchConversations(doctorID, "nothing matches this")
	req.NoError(err)
	req.Empty(none)
}

func Test_SearchMessages_Scopes_To_Caller(t *testing.T) {
	req := require.New(t)
	f := newChatFixture(t)

	_, err := f.chat.SaveMessage("alice", "bob", "the results look fine", "", nil, nil)
	req.NoError(err)
	_, err = f.chat.SaveMessage("clara", "dave", "fine by me", "", nil, nil)
	req.NoError(err)

	hits, err := f.chat.SearchMessages(context.Background(), "bob", "fine", 0)
	req.NoError(err)
	req.Len(hits, 1)
	req.Equal("the results look fine", hits[0].Content)
}
