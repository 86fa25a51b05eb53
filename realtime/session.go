package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"care-chat/auth"
	"care-chat/domain"
	"care-chat/domain/event"
	"care-chat/observability"
	"care-chat/repositories"
	"care-chat/services"

	"github.com/gofiber/contrib/websocket"
)

// Handler upgrades websocket connections into chat sessions. One session per
// connection; sessions share nothing but the registry.
type Handler struct {
	log              *slog.Logger
	tokens           *auth.TokenManager
	users            repositories.IUserRepository
	registry         *Registry
	hub              *Hub
	chatService      services.IChatService
	permissions      services.IPermissionService
	stats            *observability.Stats
	handshakeTimeout time.Duration
	bufferSize       int
	sinkTimeout      time.Duration
}

func NewHandler(
	log *slog.Logger,
	tokens *auth.TokenManager,
	users repositories.IUserRepository,
	registry *Registry,
	hub *Hub,
	chatService services.IChatService,
	permissions services.IPermissionService,
	stats *observability.Stats,
	handshakeTimeout time.Duration,
	bufferSize int,
	sinkTimeout time.Duration,
) *Handler {
	return &Handler{
		log:              log,
		tokens:           tokens,
		users:            users,
		registry:         registry,
		hub:              hub,
		chatService:      chatService,
		permissions:      permissions,
		stats:            stats,
		handshakeTimeout: handshakeTimeout,
		bufferSize:       bufferSize,
		sinkTimeout:      sinkTimeout,
	}
}

// Serve runs one connection through its lifecycle: authenticate, register,
// announce presence, process inbound events in arrival order, tear down.
// Teardown runs exactly once however the connection ends.
func (h *Handler) Serve(conn *websocket.Conn) {
	user, err := h.authenticate(conn)
	if err != nil {
		h.log.Warn("websocket handshake rejected", "error", err)
		frame, encErr := event.Encode(event.Error{Message: err.Error()})
		if encErr == nil {
			_ = conn.WriteMessage(websocket.TextMessage, frame)
		}
		_ = conn.Close()
		return
	}

	s := &session{
		log:         h.log.With("user_id", user.ID),
		user:        user,
		sink:        NewSink(h.bufferSize),
		registry:    h.registry,
		hub:         h.hub,
		chatService: h.chatService,
		permissions: h.permissions,
		stats:       h.stats,
		sinkTimeout: h.sinkTimeout,
	}

	h.registry.Register(user.ID, s.sink)
	h.stats.ConnectionOpened()
	s.log.Info("user connected", "fullname", user.FullName)

	ctx, cancel := context.WithCancel(context.Background())
	go s.writePump(ctx, conn)
	defer s.teardown(cancel)

	h.hub.BroadcastPresence(ctx, user.ID, true, "")

	// Inbound events are handled sequentially: one connection never reorders
	// its own events, while other connections proceed independently.
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var envelope event.Envelope
		if err := json.Unmarshal(data, &envelope); err != nil {
			s.pushSelf(ctx, event.Error{Message: "malformed event"})
			continue
		}
		s.dispatch(ctx, envelope)
	}
}

// authenticate verifies the handshake credential within a bounded timeout.
// No registry mutation happens before this succeeds.
func (h *Handler) authenticate(conn *websocket.Conn) (domain.User, error) {
	token := conn.Query("token")
	if token == "" {
		token = strings.TrimPrefix(conn.Headers("Authorization"), "Bearer ")
	}
	if token == "" {
		return domain.User{}, fmt.Errorf("authentication token required")
	}

	type result struct {
		user domain.User
		err  error
	}
	done := make(chan result, 1)
	go func() {
		claims, err := h.tokens.Validate(token)
		if err != nil {
			done <- result{err: err}
			return
		}
		user, err := h.users.GetUser(claims.UserID)
		done <- result{user: user, err: err}
	}()

	select {
	case r := <-done:
		return r.user, r.err
	case <-time.After(h.handshakeTimeout):
		return domain.User{}, fmt.Errorf("handshake timed out")
	}
}

// session is the per-connection state: the authenticated user, its delivery
// channel and the declared status string.
type session struct {
	log         *slog.Logger
	user        domain.User
	sink        *Sink
	registry    *Registry
	hub         *Hub
	chatService services.IChatService
	permissions services.IPermissionService
	stats       *observability.Stats
	sinkTimeout time.Duration
	status      string
	once        sync.Once
}

type sendMessagePayload struct {
	ReceiverID  string  `json:"receiverId"`
	Content     string  `json:"content"`
	MessageType string  `json:"messageType"`
	FileURL     *string `json:"fileUrl"`
	FileName    *string `json:"fileName"`
}

type counterpartPayload struct {
	ReceiverID string `json:"receiverId"`
}

type markReadPayload struct {
	SenderID string `json:"senderId"`
}

type statusPayload struct {
	Status string `json:"status"`
}

func (s *session) dispatch(ctx context.Context, envelope event.Envelope) {
	switch envelope.Event {
	case "send_message":
		s.handleSend(ctx, envelope.Data)
	case "typing_start":
		s.handleTyping(ctx, envelope.Data, true)
	case "typing_stop":
		s.handleTyping(ctx, envelope.Data, false)
	case "mark_read":
		s.handleMarkRead(ctx, envelope.Data)
	case "set_status":
		s.handleSetStatus(ctx, envelope.Data)
	default:
		s.pushSelf(ctx, event.Error{Message: fmt.Sprintf("unknown event %q", envelope.Event)})
	}
}

// handleSend validates, authorizes, persists and fans out one message. The
// counterpart push is best effort; the durable save settles first. Every
// successful send also clears any stale typing indicator on the other side.
func (s *session) handleSend(ctx context.Context, data json.RawMessage) {
	var p sendMessagePayload
	if err := json.Unmarshal(data, &p); err != nil || p.ReceiverID == "" || strings.TrimSpace(p.Content) == "" {
		s.pushSelf(ctx, event.Error{Message: "Receiver ID and content are required"})
		return
	}

	if err := s.permissions.CanChat(s.user.ID, p.ReceiverID); err != nil {
		s.pushSelf(ctx, event.Error{Message: err.Error()})
		return
	}

	message, err := s.chatService.SaveMessage(
		s.user.ID, p.ReceiverID, p.Content,
		domain.MessageType(p.MessageType), p.FileURL, p.FileName,
	)
	if err != nil {
		s.log.Error("failed to save message",
			"receiver_id", p.ReceiverID, "error", err)
		s.pushSelf(ctx, event.Error{Message: "Failed to send message"})
		return
	}
	s.stats.MessageSaved()

	payload := toMessagePayload(message)
	s.hub.Deliver(ctx, p.ReceiverID, event.NewMessage{Message: payload})
	s.pushSelf(ctx, event.MessageSent{Message: payload})
	s.hub.Deliver(ctx, p.ReceiverID, event.TypingStopped{UserID: s.user.ID})
}

// handleTyping forwards a typing indicator. Best-effort signal: authorization
// failures are dropped silently, nothing is persisted.
func (s *session) handleTyping(ctx context.Context, data json.RawMessage, started bool) {
	var p counterpartPayload
	if err := json.Unmarshal(data, &p); err != nil || p.ReceiverID == "" {
		return
	}
	if err := s.permissions.CanChat(s.user.ID, p.ReceiverID); err != nil {
		return
	}

	if started {
		s.hub.Deliver(ctx, p.ReceiverID, event.TypingStart{UserID: s.user.ID})
		return
	}
	s.hub.Deliver(ctx, p.ReceiverID, event.TypingStopped{UserID: s.user.ID})
}

// handleMarkRead persists the read state and notifies the original sender.
func (s *session) handleMarkRead(ctx context.Context, data json.RawMessage) {
	var p markReadPayload
	if err := json.Unmarshal(data, &p); err != nil || p.SenderID == "" {
		return
	}
	if err := s.permissions.CanChat(s.user.ID, p.SenderID); err != nil {
		return
	}

	if err := s.chatService.MarkRead(p.SenderID, s.user.ID); err != nil {
		s.log.Error("failed to mark messages read",
			"sender_id", p.SenderID, "error", err)
		return
	}
	s.hub.Deliver(ctx, p.SenderID, event.MessagesRead{UserID: s.user.ID})
}

// handleSetStatus updates the declared status and fans the change out to
// bonded counterparts.
func (s *session) handleSetStatus(ctx context.Context, data json.RawMessage) {
	var p statusPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return
	}
	s.status = p.Status
	s.hub.BroadcastPresence(ctx, s.user.ID, true, p.Status)
}

// teardown runs exactly once per connection, including abrupt network
// failures. The offline broadcast only fires when this session still owned
// the registry entry: a replaced session going away must not mark a user
// offline while their newer connection is live.
func (s *session) teardown(cancel context.CancelFunc) {
	s.once.Do(func() {
		removed := s.registry.Unregister(s.user.ID, s.sink)
		cancel()
		s.stats.ConnectionClosed()
		s.log.Info("user disconnected")

		if removed {
			s.hub.BroadcastPresence(context.Background(), s.user.ID, false, "")
		}
	})
}

// pushSelf acknowledges or reports back on this connection's own channel.
func (s *session) pushSelf(ctx context.Context, e event.Event) {
	cctx, cancel := context.WithTimeout(ctx, s.sinkTimeout)
	defer cancel()
	if err := s.sink.Consume(cctx, e); err != nil {
		s.stats.EventDropped()
		s.log.Warn("dropped event to own channel", "event", e.EventName(), "error", err)
	}
}

func (s *session) writePump(ctx context.Context, conn *websocket.Conn) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-s.sink.Events():
			frame, err := event.Encode(e)
			if err != nil {
				s.log.Error("failed to encode event", "event", e.EventName(), "error", err)
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				s.log.Debug("write failed, connection closing", "error", err)
				return
			}
		}
	}
}

func toMessagePayload(m domain.Message) event.MessagePayload {
	return event.MessagePayload{
		ID:          m.ID.String(),
		SenderID:    m.SenderID,
		ReceiverID:  m.ReceiverID,
		Content:     m.Content,
		MessageType: string(m.Type),
		FileURL:     m.FileURL,
		FileName:    m.FileName,
		IsRead:      m.IsRead,
		CreatedAt:   m.CreatedAt,
		ReadAt:      m.ReadAt,
	}
}
