package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/threadwell/conversation-service/internal/api/dto"
	"github.com/threadwell/conversation-service/internal/service"
	apperrors "github.com/threadwell/conversation-service/pkg/util"
)

// AuthHandler serves agent authentication.
type AuthHandler struct {
	authService *service.AuthService
}

// NewAuthHandler returns a new handler instance.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// Login exchanges agent credentials for a bearer token.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	if req.Email == "" || req.Password == "" {
		return apperrors.NewValidationError("email and password are required", nil)
	}

	token, expiresAt, agent, err := h.authService.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}

	return c.JSON(dto.LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		Agent: dto.AgentInfo{
			ID:    agent.ID,
			Email: agent.Email,
			Name:  agent.Name,
		},
	})
}
