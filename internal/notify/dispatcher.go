package notify

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/classbot/nz-schedule-bot/internal/models"
	"github.com/classbot/nz-schedule-bot/pkg/config"
	"github.com/classbot/nz-schedule-bot/pkg/jobs"
)

const (
	jobLessonUpdates = "lesson-updates"
	jobDailySchedule = "daily-schedule"
)

// MessageSender delivers one rendered message to a Telegram chat.
type MessageSender interface {
	Send(chatID int64, text string) error
}

// NotificationRecorder tracks delivery outcomes.
type NotificationRecorder interface {
	RecordNotification(status string)
}

type lessonUpdatesPayload struct {
	UserID  int64
	Updates []models.LessonUpdate
}

type dailySchedulePayload struct {
	UserID int64
	Text   string
}

// Dispatcher fans notification messages out through a rate-limited worker
// queue, keeping Telegram delivery off the sync path.
type Dispatcher struct {
	queue   *jobs.Queue
	sender  MessageSender
	metrics NotificationRecorder
	logger  *zap.Logger
}

// NewDispatcher builds a dispatcher backed by an in-memory queue.
func NewDispatcher(sender MessageSender, cfg config.NotifyConfig, metrics NotificationRecorder, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}

	d := &Dispatcher{
		sender:  sender,
		metrics: metrics,
		logger:  logger,
	}
	d.queue = jobs.NewQueue("notifications", d.handle, jobs.QueueConfig{
		Workers:       cfg.Workers,
		BufferSize:    cfg.BufferSize,
		MaxRetries:    cfg.MaxRetries,
		RetryDelay:    cfg.RetryDelay,
		RatePerSecond: cfg.RatePerSecond,
		Logger:        logger,
	})
	return d
}

// Start launches the queue workers.
func (d *Dispatcher) Start(ctx context.Context) {
	d.queue.Start(ctx)
}

// Stop drains the workers.
func (d *Dispatcher) Stop() {
	d.queue.Stop()
}

// EnqueueLessonUpdates queues one user's batch of lesson-update events,
// delivered together as a single message.
func (d *Dispatcher) EnqueueLessonUpdates(userID int64, updates []models.LessonUpdate) error {
	return d.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    jobLessonUpdates,
		Payload: lessonUpdatesPayload{UserID: userID, Updates: updates},
	})
}

// EnqueueDailySchedule queues one user's morning schedule message.
func (d *Dispatcher) EnqueueDailySchedule(userID int64, text string) error {
	return d.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    jobDailySchedule,
		Payload: dailySchedulePayload{UserID: userID, Text: text},
	})
}

func (d *Dispatcher) handle(ctx context.Context, job jobs.Job) error {
	switch job.Type {
	case jobLessonUpdates:
		payload, ok := job.Payload.(lessonUpdatesPayload)
		if !ok {
			return fmt.Errorf("unexpected payload type for %s job", job.Type)
		}
		// One message carries the whole batch, so the queue's per-job
		// rate limit is also the per-message limit and a retry never
		// re-delivers part of the batch.
		return d.send(payload.UserID, FormatLessonUpdates(payload.Updates))

	case jobDailySchedule:
		payload, ok := job.Payload.(dailySchedulePayload)
		if !ok {
			return fmt.Errorf("unexpected payload type for %s job", job.Type)
		}
		return d.send(payload.UserID, payload.Text)

	default:
		d.logger.Warn("unknown notification job type", zap.String("type", job.Type))
		return nil
	}
}

func (d *Dispatcher) send(userID int64, text string) error {
	if text == "" {
		return nil
	}
	if err := d.sender.Send(userID, text); err != nil {
		if d.metrics != nil {
			d.metrics.RecordNotification("error")
		}
		return fmt.Errorf("send to %d: %w", userID, err)
	}
	if d.metrics != nil {
		d.metrics.RecordNotification("sent")
	}
	return nil
}
