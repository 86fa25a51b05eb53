// Package api exposes the request/response surface of the chat subsystem.
// Authorization denials surface as explicit HTTP errors here, unlike the
// best-effort realtime signals which drop silently.
package api

import (
	"log/slog"

	"care-chat/auth"
	"care-chat/domain"
	"care-chat/errors"
	"care-chat/observability"
	"care-chat/realtime"
	"care-chat/repositories"
	"care-chat/services"

	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"
)

type Handlers struct {
	log         *slog.Logger
	authService services.IAuthService
	chatService services.IChatService
	permissions services.IPermissionService
	users       repositories.IUserRepository
	registry    *realtime.Registry
	stats       *observability.Stats
}

func NewHandlers(
	log *slog.Logger,
	authService services.IAuthService,
	chatService services.IChatService,
	permissions services.IPermissionService,
	users repositories.IUserRepository,
	registry *realtime.Registry,
	stats *observability.Stats,
) *Handlers {
	return &Handlers{
		log:         log,
		authService: authService,
		chatService: chatService,
		permissions: permissions,
		users:       users,
		registry:    registry,
		stats:       stats,
	}
}

func ok(c *fiber.Ctx, data any) error {
	return c.JSON(fiber.Map{"success": true, "data": data})
}

func fail(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{"success": false, "message": message})
}

// GetConversations returns the caller's inbox, newest activity first.
func (h *Handlers) GetConversations(c *fiber.Ctx) error {
	conversations, err := h.chatService.ListConversations(auth.UserID(c))
	if err != nil {
		h.log.Error("failed to list conversations", "error", err)
		return fail(c, errors.HTTPStatus(err), "failed to get conversations")
	}
	return ok(c, conversations)
}

// GetConversation returns one chronological page of the conversation with a
// counterpart. 403 when the pair is not allowed to chat.
func (h *Handlers) GetConversation(c *fiber.Ctx) error {
	userID := auth.UserID(c)
	otherUserID := c.Params("otherUserId")

	if err := h.permissions.CanChat(userID, otherUserID); err != nil {
		return fail(c, errors.HTTPStatus(err), err.Error())
	}

	limit := c.QueryInt("limit", services.DefaultPageSize)
	skip := c.QueryInt("skip", 0)

	messages, err := h.chatService.GetConversation(userID, otherUserID, limit, skip)
	if err != nil {
		h.log.Error("failed to get conversation", "error", err)
		return fail(c, errors.HTTPStatus(err), "failed to get conversation")
	}
	return ok(c, messages)
}

// LoadHistory fetches a page, marks the counterpart's messages read and
// returns the counterpart identity alongside, for entering a chat screen.
func (h *Handlers) LoadHistory(c *fiber.Ctx) error {
	userID := auth.UserID(c)
	otherUserID := c.Params("otherUserId")

	if err := h.permissions.CanChat(userID, otherUserID); err != nil {
		return fail(c, errors.HTTPStatus(err), err.Error())
	}

	limit := c.QueryInt("limit", services.DefaultPageSize)
	skip := c.QueryInt("skip", 0)

	messages, err := h.chatService.GetConversation(userID, otherUserID, limit, skip)
	if err != nil {
		h.log.Error("failed to load history", "error", err)
		return fail(c, errors.HTTPStatus(err), "failed to load conversation history")
	}

	if err := h.chatService.MarkRead(otherUserID, userID); err != nil {
		h.log.Error("failed to mark history read", "error", err)
	}

	otherUser, err := h.users.GetUser(otherUserID)
	if err != nil {
		return fail(c, errors.HTTPStatus(err), err.Error())
	}

	return ok(c, fiber.Map{
		"messages": messages,
		"otherUser": fiber.Map{
			"id":       otherUser.ID,
			"fullname": otherUser.FullName,
			"email":    otherUser.Email,
			"role":     otherUser.Role,
		},
		"conversationId": domain.ConversationID(userID, otherUserID),
	})
}

// MarkAsRead flags every unread message from the given sender to the caller.
func (h *Handlers) MarkAsRead(c *fiber.Ctx) error {
	userID := auth.UserID(c)
	senderID := c.Params("senderId")

	if err := h.permissions.CanChat(userID, senderID); err != nil {
		return fail(c, errors.HTTPStatus(err), err.Error())
	}

	if err := h.chatService.MarkRead(senderID, userID); err != nil {
		h.log.Error("failed to mark messages read", "error", err)
		return fail(c, errors.HTTPStatus(err), "failed to mark messages as read")
	}
	return c.JSON(fiber.Map{"success": true, "message": "messages marked as read"})
}

// GetUnreadCount returns the caller's unread total across all counterparts.
func (h *Handlers) GetUnreadCount(c *fiber.Ctx) error {
	count, err := h.chatService.UnreadCount(auth.UserID(c))
	if err != nil {
		h.log.Error("failed to count unread messages", "error", err)
		return fail(c, errors.HTTPStatus(err), "failed to get unread count")
	}
	return ok(c, fiber.Map{"unreadCount": count})
}

type onlineStatusRequest struct {
	UserIDs []string `json:"userIds"`
}

type onlineStatus struct {
	UserID   string `json:"userId"`
	IsOnline bool   `json:"isOnline"`
}

// GetOnlineStatus reports presence for a list of user ids.
func (h *Handlers) GetOnlineStatus(c *fiber.Ctx) error {
	var req onlineStatusRequest
	if err := c.BodyParser(&req); err != nil || req.UserIDs == nil {
		return fail(c, fiber.StatusBadRequest, "userIds must be an array")
	}

	statuses := lo.Map(req.UserIDs, func(id string, _ int) onlineStatus {
		return onlineStatus{UserID: id, IsOnline: h.registry.IsOnline(id)}
	})
	return ok(c, statuses)
}

// SearchConversations filters the caller's inbox by a free-text query.
func (h *Handlers) SearchConversations(c *fiber.Ctx) error {
	query := c.Query("query")
	if query == "" {
		return fail(c, fiber.StatusBadRequest, "search query is required")
	}

	conversations, err := h.chatService.SearchConversations(auth.UserID(c), query)
	if err != nil {
		h.log.Error("failed to search conversations", "error", err)
		return fail(c, errors.HTTPStatus(err), "failed to search conversations")
	}
	return ok(c, conversations)
}

// SearchMessages runs the full-text index over the caller's conversations.
func (h *Handlers) SearchMessages(c *fiber.Ctx) error {
	query := c.Query("query")
	if query == "" {
		return fail(c, fiber.StatusBadRequest, "search query is required")
	}

	hits, err := h.chatService.SearchMessages(c.Context(), auth.UserID(c), query, c.QueryInt("limit", 0))
	if err != nil {
		h.log.Error("failed to search messages", "error", err)
		return fail(c, errors.HTTPStatus(err), "failed to search messages")
	}
	return ok(c, hits)
}

// Health returns the runtime snapshot plus the live connection count.
func (h *Handlers) Health(c *fiber.Ctx) error {
	snapshot := h.stats.Snapshot()
	snapshot["online_users"] = h.registry.Count()
	return ok(c, snapshot)
}
