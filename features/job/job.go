// Package job keeps queue payloads that exhausted their delivery attempts so
// they can be inspected and sent back to their topic.
package job

import (
	"encoding/json"
	"errors"
	"time"
)

var (
	ErrNoPublisher    = errors.New("job queue is not configured")
	ErrPublishTimeout = errors.New("timed out publishing job")
)

type Job struct {
	ID        string          `json:"id"`
	Topic     string          `json:"topic"`
	Payload   json.RawMessage `json:"payload"`
	Error     string          `json:"error"`
	Retries   int             `json:"retries"`
	CreatedAt time.Time       `json:"created_at"`
}
