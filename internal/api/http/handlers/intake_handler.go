package handlers

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"

	"github.com/threadwell/conversation-service/internal/api/dto"
	"github.com/threadwell/conversation-service/internal/config"
	"github.com/threadwell/conversation-service/internal/service"
	apperrors "github.com/threadwell/conversation-service/pkg/util"
)

// IntakeHandler accepts parsed inbound email from the mail-polling
// collaborator, authenticated by a shared secret header rather than an agent
// token.
type IntakeHandler struct {
	intakeService *service.IntakeService
	cfg           config.IntakeConfig
}

// NewIntakeHandler returns a new handler instance.
func NewIntakeHandler(intakeService *service.IntakeService, cfg config.IntakeConfig) *IntakeHandler {
	return &IntakeHandler{intakeService: intakeService, cfg: cfg}
}

// ProcessEmail threads one parsed email into a ticket. Duplicate submissions
// are acknowledged without effect, so the collaborator can retry freely.
func (h *IntakeHandler) ProcessEmail(c *fiber.Ctx) error {
	secret := c.Get("X-Intake-Secret")
	if h.cfg.SharedSecret == "" ||
		subtle.ConstantTimeCompare([]byte(secret), []byte(h.cfg.SharedSecret)) != 1 {
		return apperrors.NewUnauthorized("invalid intake secret")
	}

	var req dto.InboundEmailRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	// Message-ID is optional; some senders omit it and dedup simply does
	// not apply to those emails.
	if req.From == "" {
		return apperrors.NewValidationError("from is required", nil)
	}

	msg, err := h.intakeService.ProcessInboundEmail(c.UserContext(), req.ToDomain())
	if err != nil {
		return err
	}
	if msg == nil {
		return c.JSON(fiber.Map{"status": "duplicate"})
	}

	resp := dto.FromMessage(msg)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"status":  "accepted",
		"message": resp,
	})
}
