package handlers

import (
	"bytes"
	"image"
	"image/png"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/threadwell/conversation-service/internal/service"
)

// trackingPixel is a 1x1 transparent PNG, encoded once at startup.
var trackingPixel = func() []byte {
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 1, 1))); err != nil {
		panic(err)
	}
	return buf.Bytes()
}()

// TrackingHandler serves read-receipt pixels embedded in outbound email.
type TrackingHandler struct {
	ticketService *service.TicketService
	logger        *zap.Logger
}

// NewTrackingHandler returns a new handler instance.
func NewTrackingHandler(ticketService *service.TicketService, logger *zap.Logger) *TrackingHandler {
	return &TrackingHandler{ticketService: ticketService, logger: logger}
}

// Open records an email open and returns the pixel. The pixel is always
// served, even when recording fails or the token is unknown; a mail client
// rendering a broken image is worse than a lost receipt.
func (h *TrackingHandler) Open(c *fiber.Ctx) error {
	token := strings.TrimSuffix(c.Params("token"), ".png")
	if token != "" {
		if err := h.ticketService.RecordEmailOpen(c.UserContext(), token); err != nil {
			h.logger.Warn("email open not recorded", zap.String("token", token), zap.Error(err))
		}
	}

	c.Set(fiber.HeaderContentType, "image/png")
	c.Set(fiber.HeaderCacheControl, "no-store, no-cache, must-revalidate")
	return c.Send(trackingPixel)
}
