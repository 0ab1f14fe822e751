package handlers

import (
	"bufio"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/threadwell/conversation-service/internal/api/dto"
	"github.com/threadwell/conversation-service/internal/auth"
	"github.com/threadwell/conversation-service/internal/config"
	"github.com/threadwell/conversation-service/internal/events"
	"github.com/threadwell/conversation-service/internal/stream"
	apperrors "github.com/threadwell/conversation-service/pkg/util"
)

// StreamHandler serves the server-sent-events feed and presence signals.
type StreamHandler struct {
	broadcaster *stream.Broadcaster
	dispatcher  events.Dispatcher
	logger      *zap.Logger
	keepAlive   time.Duration
}

// NewStreamHandler returns a new handler instance.
func NewStreamHandler(broadcaster *stream.Broadcaster, dispatcher events.Dispatcher, logger *zap.Logger, cfg config.StreamConfig) *StreamHandler {
	return &StreamHandler{
		broadcaster: broadcaster,
		dispatcher:  dispatcher,
		logger:      logger,
		keepAlive:   cfg.KeepAlive(),
	}
}

// Subscribe opens a server-sent-events connection. The connection gets a
// connected frame immediately, then every broadcast frame, with periodic
// keep-alive comments so idle proxies do not cut the stream.
func (h *StreamHandler) Subscribe(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	id, frames := h.broadcaster.Subscribe()
	keepAlive := h.keepAlive
	broadcaster := h.broadcaster
	logger := h.logger

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer broadcaster.Unsubscribe(id)

		if _, err := w.Write(stream.ConnectedFrame()); err != nil {
			return
		}
		if err := w.Flush(); err != nil {
			return
		}

		ticker := time.NewTicker(keepAlive)
		defer ticker.Stop()

		for {
			select {
			case frame, ok := <-frames:
				if !ok {
					return
				}
				if _, err := w.Write(frame); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
			case <-ticker.C:
				if _, err := w.Write(stream.KeepAliveFrame()); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	}))

	logger.Debug("stream connection opened", zap.Int64("connection_id", id))
	return nil
}

// Presence relays viewer and composing signals from one agent's client to
// every other connected client.
func (h *StreamHandler) Presence(c *fiber.Ctx) error {
	agent, ok := auth.AgentFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	var req dto.PresenceRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	if req.TicketID <= 0 {
		return apperrors.NewValidationError("ticket_id is required", nil)
	}

	var eventType events.EventType
	switch req.Action {
	case "join":
		eventType = events.EventViewerJoined
	case "leave":
		eventType = events.EventViewerLeft
	case "composing":
		eventType = events.EventUserComposing
	default:
		return apperrors.NewValidationError("invalid action", map[string]any{"action": req.Action})
	}

	_ = h.dispatcher.Publish(c.UserContext(), events.Event{
		Type:     eventType,
		TicketID: req.TicketID,
		Payload: events.PresencePayload{
			TicketID:  req.TicketID,
			AgentID:   agent.ID,
			AgentName: agent.Name,
		},
	})
	return c.SendStatus(fiber.StatusAccepted)
}
