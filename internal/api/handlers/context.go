package handlers

import (
	"errors"
	"fmt"

	"fintrack/pkg/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

var errUnauthorized = errors.New("unauthorized")

func getUserID(c *fiber.Ctx) (uuid.UUID, error) {
	raw, ok := c.Locals(middleware.LocalUserID).(string)
	if !ok || raw == "" {
		return uuid.Nil, fmt.Errorf("%w: user ID not found in context", errUnauthorized)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: malformed user ID", errUnauthorized)
	}
	return id, nil
}
