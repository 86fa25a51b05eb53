package api

import (
	"care-chat/auth"
	"care-chat/errors"

	"github.com/gofiber/fiber/v2"
)

// Register creates an account and returns the initial session token.
func (h *Handlers) Register(c *fiber.Ctx) error {
	var req auth.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid request body")
	}

	token, err := h.authService.Register(req)
	if err != nil {
		return fail(c, errors.HTTPStatus(err), err.Error())
	}
	return ok(c, fiber.Map{"token": token})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login checks credentials and returns a session token.
func (h *Handlers) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid request body")
	}

	token, err := h.authService.Login(req.Email, req.Password)
	if err != nil {
		return fail(c, errors.HTTPStatus(err), err.Error())
	}
	return ok(c, fiber.Map{"token": token})
}
