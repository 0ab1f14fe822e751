package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/threadwell/conversation-service/internal/config"
	"github.com/threadwell/conversation-service/internal/domain"
)

type fakeDeliverer struct {
	due       []domain.Message
	pollErr   error
	failIDs   map[int64]error
	delivered []int64
}

func (d *fakeDeliverer) DueScheduledMessages(ctx context.Context) ([]domain.Message, error) {
	if d.pollErr != nil {
		return nil, d.pollErr
	}
	return d.due, nil
}

func (d *fakeDeliverer) DeliverScheduled(ctx context.Context, msg *domain.Message) error {
	if err := d.failIDs[msg.ID]; err != nil {
		return err
	}
	d.delivered = append(d.delivered, msg.ID)
	return nil
}

func newTestScheduler(d *fakeDeliverer) *Scheduler {
	return NewScheduler(d, zap.NewNop(), config.WorkerConfig{
		PollIntervalSeconds: 1,
		SendSpacingMillis:   0,
	})
}

func scheduledAt(offset time.Duration) *time.Time {
	at := time.Now().Add(offset)
	return &at
}

func TestPollDeliversDueMessagesInOrder(t *testing.T) {
	d := &fakeDeliverer{
		due: []domain.Message{
			{ID: 1, TicketID: 10, ScheduledAt: scheduledAt(-3 * time.Minute)},
			{ID: 2, TicketID: 11, ScheduledAt: scheduledAt(-2 * time.Minute)},
			{ID: 3, TicketID: 12, ScheduledAt: scheduledAt(-time.Minute)},
		},
	}
	s := newTestScheduler(d)

	s.poll(context.Background())

	want := []int64{1, 2, 3}
	if len(d.delivered) != len(want) {
		t.Fatalf("delivered = %v, want %v", d.delivered, want)
	}
	for i, id := range want {
		if d.delivered[i] != id {
			t.Errorf("delivered[%d] = %d, want %d", i, d.delivered[i], id)
		}
	}
}

func TestPollContinuesPastFailedDelivery(t *testing.T) {
	d := &fakeDeliverer{
		due: []domain.Message{
			{ID: 1, ScheduledAt: scheduledAt(-2 * time.Minute)},
			{ID: 2, ScheduledAt: scheduledAt(-time.Minute)},
		},
		failIDs: map[int64]error{1: errors.New("smtp refused")},
	}
	s := newTestScheduler(d)

	s.poll(context.Background())

	if len(d.delivered) != 1 || d.delivered[0] != 2 {
		t.Errorf("delivered = %v, want just message 2", d.delivered)
	}
}

func TestPollToleratesQueryFailure(t *testing.T) {
	d := &fakeDeliverer{pollErr: errors.New("db down")}
	s := newTestScheduler(d)

	s.poll(context.Background())

	if len(d.delivered) != 0 {
		t.Errorf("delivered = %v, want none", d.delivered)
	}
}

func TestPollStopsOnCancelledContext(t *testing.T) {
	d := &fakeDeliverer{
		due: []domain.Message{
			{ID: 1, ScheduledAt: scheduledAt(-time.Minute)},
			{ID: 2, ScheduledAt: scheduledAt(-time.Minute)},
		},
	}
	s := newTestScheduler(d)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.poll(ctx)

	if len(d.delivered) != 0 {
		t.Errorf("delivered = %v, want none after cancellation", d.delivered)
	}
}

func TestRunExitsOnContextCancel(t *testing.T) {
	d := &fakeDeliverer{}
	s := newTestScheduler(d)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not exit after context cancellation")
	}
}
