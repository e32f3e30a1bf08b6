package job

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

const defaultPublishTimeout = 5 * time.Second

type EventPublisher interface {
	Publish(topic string, body []byte) error
}

type Service struct {
	repo           Repository
	pub            EventPublisher
	publishTimeout time.Duration
}

func NewService(repo Repository, pub EventPublisher) *Service {
	return &Service{repo: repo, pub: pub, publishTimeout: defaultPublishTimeout}
}

func (s *Service) List(ctx context.Context) ([]Job, error) {
	return s.repo.List(ctx)
}

func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}

// RecordFailure stores a payload whose delivery attempts are exhausted.
// Bodies that are not JSON are kept as a JSON string.
func (s *Service) RecordFailure(ctx context.Context, topic string, payload []byte, attempts int, cause error) error {
	if !json.Valid(payload) {
		raw, err := json.Marshal(string(payload))
		if err != nil {
			return err
		}
		payload = raw
	}
	j := &Job{Topic: topic, Payload: payload, Retries: attempts}
	if cause != nil {
		j.Error = cause.Error()
	}
	if err := s.repo.Save(ctx, j); err != nil {
		return fmt.Errorf("failed to save failed job: %w", err)
	}
	slog.WarnContext(ctx, "job moved to failed jobs", "id", j.ID, "topic", topic, "attempts", attempts)
	return nil
}

// Retry publishes the job back to its topic and removes it.
func (s *Service) Retry(ctx context.Context, id string) error {
	j, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if s.pub == nil {
		return ErrNoPublisher
	}

	done := make(chan error, 1)
	go func() { done <- s.pub.Publish(j.Topic, j.Payload) }()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to publish job: %w", err)
		}
	case <-time.After(s.publishTimeout):
		return ErrPublishTimeout
	case <-ctx.Done():
		return ctx.Err()
	}

	return s.repo.Delete(ctx, id)
}
