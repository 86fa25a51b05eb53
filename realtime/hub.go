package realtime

import (
	"context"
	"log/slog"
	"time"

	"care-chat/domain/event"
	"care-chat/observability"
	"care-chat/services"
)

// Hub is the capability-checked delivery path: callers ask for an event to
// reach a user and the hub silently no-ops when that user has no channel.
// Centralizing the check keeps the best-effort semantics in one place instead
// of every caller branching on presence.
type Hub struct {
	log         *slog.Logger
	registry    *Registry
	chatService services.IChatService
	stats       *observability.Stats
	sinkTimeout time.Duration
}

func NewHub(log *slog.Logger, registry *Registry, chatService services.IChatService,
	stats *observability.Stats, sinkTimeout time.Duration) *Hub {
	return &Hub{
		log:         log,
		registry:    registry,
		chatService: chatService,
		stats:       stats,
		sinkTimeout: sinkTimeout,
	}
}

// Deliver pushes an event to userID if a channel is registered. Fire and
// forget: a failed or impossible delivery is logged and counted, never
// propagated. The durable state is already settled by the caller.
func (h *Hub) Deliver(ctx context.Context, userID string, e event.Event) bool {
	sink, ok := h.registry.Lookup(userID)
	if !ok {
		return false
	}

	cctx, cancel := context.WithTimeout(ctx, h.sinkTimeout)
	defer cancel()

	if err := sink.Consume(cctx, e); err != nil {
		h.stats.EventDropped()
		h.log.Warn("event delivery failed",
			"user_id", userID, "event", e.EventName(), "error", err)
		return false
	}
	h.stats.EventDelivered()
	return true
}

// BroadcastPresence fans a status change out to every bonded counterpart the
// user has a conversation with. Counterparts are resolved through the inbox
// aggregation, so only users who actually exchanged messages are notified.
func (h *Hub) BroadcastPresence(ctx context.Context, userID string, isOnline bool, status string) {
	conversations, err := h.chatService.ListConversations(userID)
	if err != nil {
		h.log.Error("failed to resolve contacts for presence broadcast",
			"user_id", userID, "error", err)
		return
	}

	if status == "" {
		status = "offline"
		if isOnline {
			status = "online"
		}
	}

	change := event.UserStatusChange{UserID: userID, IsOnline: isOnline, Status: status}
	for _, conversation := range conversations {
		h.Deliver(ctx, conversation.Counterpart.ID, change)
	}
}
