package handlers

import (
	"context"
	"strings"

	"fintrack/internal/dto"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Authenticator issues token pairs for account sign-up, sign-in and refresh.
type Authenticator interface {
	Register(ctx context.Context, req *dto.RegisterRequest) (*dto.AuthResponse, error)
	Login(ctx context.Context, req *dto.LoginRequest) (*dto.AuthResponse, error)
	RefreshToken(ctx context.Context, refreshToken string) (*dto.AuthResponse, error)
}

type AuthHandler struct {
	auth   Authenticator
	logger *zap.Logger
}

func NewAuthHandler(auth Authenticator, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		auth:   auth,
		logger: logger,
	}
}

// Register godoc
// @Summary Create an account
// @Description Failures carry a code: Validation (with per-field messages) or UserAlreadyExists.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.RegisterRequest true "New account"
// @Success 201 {object} dto.AuthResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /user/auth/register [post]
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	resp, err := h.auth.Register(c.UserContext(), &req)
	if err != nil {
		return writeError(c, h.logger, err)
	}

	return c.Status(fiber.StatusCreated).JSON(resp)
}

// Login godoc
// @Summary Exchange email and password for a token pair
// @Description A wrong password and an unknown email both fail with code InvalidCredentials.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.LoginRequest true "Credentials"
// @Success 200 {object} dto.AuthResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 401 {object} dto.ErrorResponse
// @Router /user/auth/login [post]
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return badRequest(c, "Email and password are required")
	}

	resp, err := h.auth.Login(c.UserContext(), &req)
	if err != nil {
		return writeError(c, h.logger, err)
	}

	return c.JSON(resp)
}

// RefreshToken godoc
// @Summary Trade a refresh token for a new token pair
// @Description Access tokens are rejected here; an expired or foreign token fails with code InvalidCredentials.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.RefreshTokenRequest true "Refresh token"
// @Success 200 {object} dto.AuthResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 401 {object} dto.ErrorResponse
// @Router /user/auth/refresh [post]
func (h *AuthHandler) RefreshToken(c *fiber.Ctx) error {
	var req dto.RefreshTokenRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.RefreshToken == "" {
		return badRequest(c, "refresh_token is required")
	}

	resp, err := h.auth.RefreshToken(c.UserContext(), req.RefreshToken)
	if err != nil {
		return writeError(c, h.logger, err)
	}

	return c.JSON(resp)
}
