package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"care-chat/domain"
	"care-chat/domain/event"
	"care-chat/observability"
	"care-chat/repositories"
	"care-chat/search"
	"care-chat/services"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

type noopIndex struct{}

func (noopIndex) Index(domain.Message) error { return nil }
func (noopIndex) Search(context.Context, string, string, int) ([]search.Hit, error) {
	return nil, nil
}

type sessionFixture struct {
	registry    *Registry
	hub         *Hub
	chatService services.IChatService
	permissions services.IPermissionService
	users       repositories.IUserRepository
	stats       *observability.Stats

	doctorID  string
	patientID string
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLogger(nil))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log := slog.Default()
	users := repositories.NewUserRepository(db)
	messages := repositories.NewMessageRepository(db, log)
	chatService := services.NewChatService(messages, users, noopIndex{}, log)
	permissions := services.NewPermissionService(users)
	stats := observability.NewStats(log)
	registry := NewRegistry()
	hub := NewHub(log, registry, chatService, stats, time.Second)

	doctorID, err := users.CreateUser(domain.User{
		FullName: "Dr Dupont", Email: "dupont@example.com", Role: domain.RoleDoctor,
	}, "hash")
	require.NoError(t, err)
	patientID, err := users.CreateUser(domain.User{
		FullName: "Alice Martin", Email: "alice@example.com", Role: domain.RolePatient,
	}, "hash")
	require.NoError(t, err)
	require.NoError(t, users.BondPatient(doctorID, patientID))

	return &sessionFixture{
		registry:    registry,
		hub:         hub,
		chatService: chatService,
		permissions: permissions,
		users:       users,
		stats:       stats,
		doctorID:    doctorID,
		patientID:   patientID,
	}
}

func (f *sessionFixture) newSession(t *testing.T, userID string) *session {
	t.Helper()
	user, err := f.users.GetUser(userID)
	require.NoError(t, err)

	s := &session{
		log:         slog.Default(),
		user:        user,
		sink:        NewSink(16),
		registry:    f.registry,
		hub:         f.hub,
		chatService: f.chatService,
		permissions: f.permissions,
		stats:       f.stats,
		sinkTimeout: time.Second,
	}
	f.registry.Register(userID, s.sink)
	return s
}

func envelope(t *testing.T, name string, payload any) event.Envelope {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return event.Envelope{Event: name, Data: data}
}

func nextEvent(t *testing.T, sink *Sink) event.Event {
	t.Helper()
	select {
	case e := <-sink.Events():
		return e
	case <-time.After(time.Second):
		t.Fatal("no event arrived on the sink")
		return nil
	}
}

func Test_Send_Message_Fans_Out_To_Both_Sides(t *testing.T) {
	req := require.New(t)
	f := newSessionFixture(t)

	sender := f.newSession(t, f.patientID)
	receiver := f.newSession(t, f.doctorID)

	sender.dispatch(context.Background(), envelope(t, "send_message", map[string]string{
		"receiverId": f.doctorID,
		"content":    "my head hurts",
	}))

	// Receiver gets the message, then a typing reset.
	delivered := nextEvent(t, receiver.sink).(event.NewMessage)
	req.Equal("my head hurts", delivered.Message.Content)
	req.Equal(f.patientID, delivered.Message.SenderID)

	reset := nextEvent(t, receiver.sink).(event.TypingStopped)
	req.Equal(f.patientID, reset.UserID)

	// Sender gets the acknowledgment with the persisted identity.
	ack := nextEvent(t, sender.sink).(event.MessageSent)
	req.Equal(delivered.Message.ID, ack.Message.ID)

	// The message is durable regardless of delivery.
	page, err := f.chatService.GetConversation(f.patientID, f.doctorID, 0, 0)
	req.NoError(err)
	req.Len(page, 1)
}

func Test_Send_Message_To_Unbonded_User_Is_Rejected(t *testing.T) {
	req := require.New(t)
	f := newSessionFixture(t)

	strangerID, err := f.users.CreateUser(domain.User{
		FullName: "Bob Petit", Email: "bob@example.com", Role: domain.RolePatient,
	}, "hash")
	req.NoError(err)

	sender := f.newSession(t, f.doctorID)
	stranger := f.newSession(t, strangerID)

	sender.dispatch(context.Background(), envelope(t, "send_message", map[string]string{
		"receiverId": strangerID,
		"content":    "should never arrive",
	}))

	// Only the sender hears back, and only with an error.
	errEvent, isError := nextEvent(t, sender.sink).(event.Error)
	req.True(isError)
	req.NotEmpty(errEvent.Message)
	req.Empty(stranger.sink.Events())

	page, err := f.chatService.GetConversation(f.doctorID, strangerID, 0, 0)
	req.NoError(err)
	req.Empty(page)
}

func Test_Send_Message_To_Offline_User_Still_Persists(t *testing.T) {
	req := require.New(t)
	f := newSessionFixture(t)

	sender := f.newSession(t, f.patientID)
	// The doctor never connects.

	sender.dispatch(context.Background(), envelope(t, "send_message", map[string]string{
		"receiverId": f.doctorID,
		"content":    "see you tomorrow",
	}))

	ack := nextEvent(t, sender.sink).(event.MessageSent)
	req.Equal("see you tomorrow", ack.Message.Content)

	count, err := f.chatService.UnreadCount(f.doctorID)
	req.NoError(err)
	req.Equal(1, count)
}

func Test_Typing_Events_Are_Forwarded(t *testing.T) {
	req := require.New(t)
	f := newSessionFixture(t)

	sender := f.newSession(t, f.patientID)
	receiver := f.newSession(t, f.doctorID)

	sender.dispatch(context.Background(), envelope(t, "typing_start", map[string]string{
		"receiverId": f.doctorID,
	}))
	start := nextEvent(t, receiver.sink).(event.TypingStart)
	req.Equal(f.patientID, start.UserID)

	sender.dispatch(context.Background(), envelope(t, "typing_stop", map[string]string{
		"receiverId": f.doctorID,
	}))
	stop := nextEvent(t, receiver.sink).(event.TypingStopped)
	req.Equal(f.patientID, stop.UserID)
}

func Test_Mark_Read_Notifies_Original_Sender(t *testing.T) {
	req := require.New(t)
	f := newSessionFixture(t)

	patient := f.newSession(t, f.patientID)
	doctor := f.newSession(t, f.doctorID)

	patient.dispatch(context.Background(), envelope(t, "send_message", map[string]string{
		"receiverId": f.doctorID,
		"content":    "ping",
	}))
	nextEvent(t, doctor.sink)   // new_message
	nextEvent(t, doctor.sink)   // typing_stopped
	nextEvent(t, patient.sink)  // message_sent

	doctor.dispatch(context.Background(), envelope(t, "mark_read", map[string]string{
		"senderId": f.patientID,
	}))

	read := nextEvent(t, patient.sink).(event.MessagesRead)
	req.Equal(f.doctorID, read.UserID)

	count, err := f.chatService.UnreadCount(f.doctorID)
	req.NoError(err)
	req.Equal(0, count)
}

func Test_Set_Status_Reaches_Conversation_Counterparts(t *testing.T) {
	req := require.New(t)
	f := newSessionFixture(t)

	patient := f.newSession(t, f.patientID)
	doctor := f.newSession(t, f.doctorID)

	// Presence fans out along existing conversations, so exchange one first.
	patient.dispatch(context.Background(), envelope(t, "send_message", map[string]string{
		"receiverId": f.doctorID,
		"content":    "hello",
	}))
	nextEvent(t, doctor.sink)  // new_message
	nextEvent(t, doctor.sink)  // typing_stopped
	nextEvent(t, patient.sink) // message_sent

	doctor.dispatch(context.Background(), envelope(t, "set_status", map[string]string{
		"status": "busy",
	}))

	change := nextEvent(t, patient.sink).(event.UserStatusChange)
	req.Equal(f.doctorID, change.UserID)
	req.True(change.IsOnline)
	req.Equal("busy", change.Status)
}

func Test_Unknown_Event_Returns_Error_To_Sender_Only(t *testing.T) {
	req := require.New(t)
	f := newSessionFixture(t)

	sender := f.newSession(t, f.patientID)

	sender.dispatch(context.Background(), envelope(t, "self_destruct", map[string]string{}))

	errEvent, isError := nextEvent(t, sender.sink).(event.Error)
	req.True(isError)
	req.Contains(errEvent.Message, "self_destruct")
}

func Test_Teardown_Broadcast_Skipped_When_Session_Was_Replaced(t *testing.T) {
	req := require.New(t)
	f := newSessionFixture(t)

	patient := f.newSession(t, f.patientID)
	doctor := f.newSession(t, f.doctorID)

	patient.dispatch(context.Background(), envelope(t, "send_message", map[string]string{
		"receiverId": f.doctorID,
		"content":    "hello",
	}))
	nextEvent(t, doctor.sink)  // new_message
	nextEvent(t, doctor.sink)  // typing_stopped
	nextEvent(t, patient.sink) // message_sent

	// A newer connection takes over delivery for the doctor, then the old
	// session tears down. The patient must not see the doctor go offline.
	replacement := f.newSession(t, f.doctorID)
	doctor.teardown(func() {})
	req.Empty(patient.sink.Events())

	// When the owning session goes, the offline broadcast fires.
	replacement.teardown(func() {})
	change := nextEvent(t, patient.sink).(event.UserStatusChange)
	req.Equal(f.doctorID, change.UserID)
	req.False(change.IsOnline)
}
