// Package worker consumes session completion jobs and materializes them into
// notification rows and achievement counters. All effects are additive and a
// re-delivered job at worst repeats an increment, so processing stays simple.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/studyhive/backend/internal/achievements"
	"github.com/studyhive/backend/internal/notifications"
	"github.com/studyhive/backend/pkg/queue"
)

// CompletionProcessor turns session_completed jobs into notifications and
// achievement updates.
type CompletionProcessor struct {
	notifs *notifications.Repository
	achs   *achievements.Repository
	queue  *queue.Queue
	logger *zap.Logger
}

// NewCompletionProcessor creates a completion job processor.
func NewCompletionProcessor(notifs *notifications.Repository, achs *achievements.Repository, q *queue.Queue, logger *zap.Logger) *CompletionProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CompletionProcessor{notifs: notifs, achs: achs, queue: q, logger: logger}
}

// Process executes one completion job.
func (p *CompletionProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeSessionCompleted {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.SessionCompletedPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	isCompetition := payload.Kind == "competition"
	for _, entrant := range payload.Participants {
		won := isCompetition && entrant.Identity == payload.WinnerIdentity

		msg := fmt.Sprintf("Quiz %s finished. You scored %d.", payload.Code, entrant.Score)
		if isCompetition {
			if won {
				msg = fmt.Sprintf("You won competition %s with %d points!", payload.Code, entrant.Score)
			} else {
				msg = fmt.Sprintf("Competition %s finished. You scored %d.", payload.Code, entrant.Score)
			}
		}
		if err := p.notifs.Create(ctx, entrant.Identity, "session_completed", msg); err != nil {
			return fmt.Errorf("create notification: %w", err)
		}

		if err := p.achs.Increment(ctx, entrant.Identity, achievements.MetricQuizzesCompleted, 1); err != nil {
			return fmt.Errorf("increment quizzes: %w", err)
		}
		if entrant.Score > 0 {
			if err := p.achs.Increment(ctx, entrant.Identity, achievements.MetricTotalScore, entrant.Score); err != nil {
				return fmt.Errorf("increment score: %w", err)
			}
		}
		if isCompetition {
			if err := p.achs.Increment(ctx, entrant.Identity, achievements.MetricCompetitionsEntered, 1); err != nil {
				return fmt.Errorf("increment entered: %w", err)
			}
			if won {
				if err := p.achs.Increment(ctx, entrant.Identity, achievements.MetricCompetitionsWon, 1); err != nil {
					return fmt.Errorf("increment won: %w", err)
				}
			}
		}
	}

	p.logger.Info("completion processed",
		zap.String("session", payload.Code), zap.Int("participants", len(payload.Participants)))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *CompletionProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("completion worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
			continue
		}
	}
}
