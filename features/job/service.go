package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"labelflow/internal/config"
)

var ErrPublishTimeout = errors.New("timeout waiting for NSQ publish")

type EventPublisher interface {
	Publish(topic string, body []byte) error
}

type Service struct {
	repo           Repository
	pub            EventPublisher
	logger         *slog.Logger
	publishTimeout time.Duration
}

func NewService(repo Repository, pub EventPublisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, pub: pub, logger: logger, publishTimeout: 5 * time.Second}
}

func (s *Service) List(ctx context.Context) ([]Job, error) {
	return s.repo.List(ctx)
}

// Retry republishes the stored payload to its topic, then deletes the job.
// The job is kept when the publish fails or times out.
func (s *Service) Retry(ctx context.Context, id string) error {
	job, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}

	topic := job.Topic
	if topic == "" {
		topic = config.TopicTaskAssign
	}

	done := make(chan error, 1)
	go func() {
		done <- s.pub.Publish(topic, job.Payload)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("republish job %s: %w", id, err)
		}
	case <-time.After(s.publishTimeout):
		return ErrPublishTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
	s.logger.InfoContext(ctx, "failed job republished", "job_id", id, "topic", topic, "batch_id", job.BatchID)

	return s.repo.Delete(ctx, id)
}

func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}
