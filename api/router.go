package api

import (
	"care-chat/auth"
	"care-chat/domain"
	"care-chat/realtime"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

// RegisterRoutes wires the HTTP surface and the websocket upgrade.
// Everything under /chat and /doctors requires a verified token; /chat
// additionally requires one of the two chat roles.
func RegisterRoutes(app *fiber.App, h *Handlers, ws *realtime.Handler, tokens *auth.TokenManager) {
	app.Get("/health", h.Health)

	app.Post("/auth/register", h.Register)
	app.Post("/auth/login", h.Login)

	// Realtime channel; the session handler authenticates the handshake
	// token itself before any registry mutation.
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(ws.Serve))

	chat := app.Group("/chat",
		auth.Middleware(tokens),
		auth.RequireRole(domain.RolePatient, domain.RoleDoctor),
	)
	chat.Get("/conversations", h.GetConversations)
	chat.Get("/conversations/:otherUserId/history", h.LoadHistory)
	chat.Get("/conversations/:otherUserId", h.GetConversation)
	chat.Put("/conversations/:senderId/read", h.MarkAsRead)
	chat.Get("/unread-count", h.GetUnreadCount)
	chat.Post("/online-status", h.GetOnlineStatus)
	chat.Get("/search", h.SearchConversations)
	chat.Get("/messages/search", h.SearchMessages)

	doctors := app.Group("/doctors",
		auth.Middleware(tokens),
		auth.RequireRole(domain.RoleDoctor),
	)
	doctors.Post("/patients/:patientId", h.BondPatient)
	doctors.Get("/patients", h.ListPatients)
}
