package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/threadwell/conversation-service/internal/config"
	"github.com/threadwell/conversation-service/internal/domain"
)

// Deliverer is the slice of the ticket service the worker needs.
type Deliverer interface {
	DueScheduledMessages(ctx context.Context) ([]domain.Message, error)
	DeliverScheduled(ctx context.Context, msg *domain.Message) error
}

// Scheduler polls for due scheduled messages and delivers them one at a
// time, oldest first, with a fixed pause between sends so a burst of due
// messages does not hammer the SMTP relay. A failed send is logged and left
// pending; it is retried on every poll until it succeeds or the message is
// cancelled.
type Scheduler struct {
	deliverer Deliverer
	logger    *zap.Logger
	interval  time.Duration
	spacing   time.Duration
}

// NewScheduler builds the worker from config.
func NewScheduler(deliverer Deliverer, logger *zap.Logger, cfg config.WorkerConfig) *Scheduler {
	return &Scheduler{
		deliverer: deliverer,
		logger:    logger,
		interval:  cfg.PollInterval(),
		spacing:   cfg.SendSpacing(),
	}
}

// Run blocks until the context is cancelled, polling on the configured
// interval. An immediate first poll catches messages that came due while the
// process was down.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduled delivery worker stopping")
			return
		case <-ticker.C:
			s.poll(ctx)
		}
	}
}

func (s *Scheduler) poll(ctx context.Context) {
	due, err := s.deliverer.DueScheduledMessages(ctx)
	if err != nil {
		s.logger.Error("scheduled message poll failed", zap.Error(err))
		return
	}
	if len(due) == 0 {
		return
	}
	s.logger.Info("delivering scheduled messages", zap.Int("count", len(due)))

	for i := range due {
		if ctx.Err() != nil {
			return
		}
		msg := due[i]
		if err := s.deliverer.DeliverScheduled(ctx, &msg); err != nil {
			// Left pending on purpose; a cancellation is the only way out.
			s.logger.Error("scheduled delivery failed",
				zap.Int64("message_id", msg.ID),
				zap.Int64("ticket_id", msg.TicketID),
				zap.Error(err))
		}
		if i < len(due)-1 && s.spacing > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.spacing):
			}
		}
	}
}
