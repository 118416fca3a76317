package tasks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/steinsgo/personal-site/internal/metrics"
)

type SessionSweeper interface {
	SweepExpired(ctx context.Context) (int64, error)
}

type UploadVerifier interface {
	Verify(ctx context.Context, uploadID string) error
}

// Processor executes tasks read from the stream.
type Processor struct {
	sessions SessionSweeper
	uploads  UploadVerifier
	logger   zerolog.Logger
}

func NewProcessor(sessions SessionSweeper, uploads UploadVerifier, logger zerolog.Logger) *Processor {
	return &Processor{
		sessions: sessions,
		uploads:  uploads,
		logger:   logger,
	}
}

func (p *Processor) Handle(ctx context.Context, msg redis.XMessage) error {
	var task Task
	if err := decodeTask(msg.Values, &task); err != nil {
		return fmt.Errorf("decode task: %w", err)
	}

	var err error
	switch task.Type {
	case TypeSessionCleanup:
		err = p.handleSessionCleanup(ctx)
	case TypeUploadCheck:
		err = p.handleUploadCheck(ctx, task)
	default:
		p.logger.Warn().Str("type", task.Type).Str("message_id", msg.ID).Msg("unknown task type")
		metrics.TasksProcessed.WithLabelValues("unknown", "skipped").Inc()
		return nil
	}

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.TasksProcessed.WithLabelValues(task.Type, outcome).Inc()
	return err
}

func decodeTask(values map[string]any, out *Task) error {
	raw, err := json.Marshal(values)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func (p *Processor) handleSessionCleanup(ctx context.Context) error {
	removed, err := p.sessions.SweepExpired(ctx)
	if err != nil {
		return fmt.Errorf("sweep sessions: %w", err)
	}
	p.logger.Info().Int64("removed", removed).Msg("expired sessions swept")
	return nil
}

func (p *Processor) handleUploadCheck(ctx context.Context, task Task) error {
	if task.UploadID == "" {
		p.logger.Warn().Msg("upload check without upload id")
		return nil
	}
	return p.uploads.Verify(ctx, task.UploadID)
}
