package service

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/threadwell/conversation-service/internal/config"
	"github.com/threadwell/conversation-service/internal/events"
	"github.com/threadwell/conversation-service/internal/observability"
)

// WebhookService forwards conversation events to an external automation URL.
// Delivery is fire-and-forget: a slow or failing endpoint must never stall
// intake or agent workflows, so failures are logged and dropped.
type WebhookService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
	cfg        config.WebhookConfig
	client     *http.Client
}

// NewWebhookService creates the service.
func NewWebhookService(dispatcher events.Dispatcher, logger *zap.Logger, metrics *observability.Metrics, cfg config.WebhookConfig) *WebhookService {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookService{
		dispatcher: dispatcher,
		logger:     logger,
		metrics:    metrics,
		cfg:        cfg,
		client:     &http.Client{Timeout: timeout},
	}
}

// RegisterHandlers subscribes to the events worth forwarding. Presence
// events stay internal.
func (w *WebhookService) RegisterHandlers() {
	if w.dispatcher == nil || strings.TrimSpace(w.cfg.URL) == "" {
		return
	}
	w.dispatcher.Subscribe(events.EventNewTicket, w.handleNewTicket)
	w.dispatcher.Subscribe(events.EventNewMessage, w.handleNewMessage)
	w.dispatcher.Subscribe(events.EventTicketUpdate, w.handleTicketUpdate)
}

func (w *WebhookService) handleNewTicket(ctx context.Context, event events.Event) error {
	w.deliver("new_ticket", event)
	return nil
}

func (w *WebhookService) handleNewMessage(ctx context.Context, event events.Event) error {
	name := "new_reply"
	if payload, ok := event.Payload.(events.NewMessagePayload); ok && payload.Origin == events.OriginCustomer {
		name = "customer_reply"
	}
	w.deliver(name, event)
	return nil
}

func (w *WebhookService) handleTicketUpdate(ctx context.Context, event events.Event) error {
	w.deliver("ticket_update", event)
	return nil
}

type webhookEnvelope struct {
	Event     string `json:"event"`
	TicketID  int64  `json:"ticket_id"`
	Timestamp string `json:"timestamp"`
	Payload   any    `json:"payload"`
}

func (w *WebhookService) deliver(name string, event events.Event) {
	body, err := json.Marshal(webhookEnvelope{
		Event:     name,
		TicketID:  event.TicketID,
		Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
		Payload:   event.Payload,
	})
	if err != nil {
		w.logger.Error("webhook payload marshal failed", zap.String("event", name), zap.Error(err))
		return
	}

	go func() {
		req, err := http.NewRequest(http.MethodPost, w.cfg.URL, bytes.NewReader(body))
		if err != nil {
			w.logger.Error("webhook request build failed", zap.String("event", name), zap.Error(err))
			w.metrics.RecordWebhook(name, false)
			return
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := w.client.Do(req)
		if err != nil {
			w.logger.Warn("webhook delivery failed", zap.String("event", name), zap.Error(err))
			w.metrics.RecordWebhook(name, false)
			return
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 400 {
			w.logger.Warn("webhook endpoint returned error",
				zap.String("event", name),
				zap.Int("status", resp.StatusCode))
			w.metrics.RecordWebhook(name, false)
			return
		}
		w.metrics.RecordWebhook(name, true)
	}()
}
