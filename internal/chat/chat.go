// Package chat implements the chat I/O behavior shared by the chat input and
// output components: shaping the message, storing it for the session and
// announcing it to subscribers.
package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/google/uuid"

	"flowkit/internal/component"
	"flowkit/internal/config"
	"flowkit/internal/metrics"
	"flowkit/internal/middleware"
	"flowkit/internal/schema"
)

const (
	SenderMachine = "Machine"
	SenderUser    = "User"
)

type BuildParams struct {
	Sender       string `mapstructure:"sender"`
	SenderName   string `mapstructure:"sender_name"`
	InputValue   any    `mapstructure:"input_value"`
	SessionID    string `mapstructure:"session_id"`
	ReturnRecord bool   `mapstructure:"return_record"`
}

type Repository interface {
	Save(ctx context.Context, msg *schema.Message) error
	ListBySession(ctx context.Context, sessionID string) ([]schema.Message, error)
	DeleteBySession(ctx context.Context, sessionID string) error
}

type EventPublisher interface {
	Publish(topic string, body []byte) error
}

// Builder is the chat base a chat component delegates to.
type Builder interface {
	Build(ctx context.Context, p BuildParams) (component.Output, error)
}

type Service struct {
	repo Repository
	pub  EventPublisher
	now  func() time.Time
}

func NewService(repo Repository, pub EventPublisher) *Service {
	return &Service{repo: repo, pub: pub, now: time.Now}
}

// Build returns the input as text, or as a record carrying sender metadata
// when ReturnRecord is set. A non-empty session id stores the message.
func (s *Service) Build(ctx context.Context, p BuildParams) (component.Output, error) {
	var out component.Output

	switch v := p.InputValue.(type) {
	case *schema.Record:
		if p.ReturnRecord {
			v.Set("sender", p.Sender)
			v.Set("sender_name", p.SenderName)
			v.Set("session_id", p.SessionID)
			out = component.RecordOutput(v)
		} else {
			out = component.TextOutput(v.Text)
		}
	case string:
		out = s.shape(v, p)
	case nil:
		out = s.shape("", p)
	default:
		return component.Output{}, fmt.Errorf("%w: input_value has type %T", component.ErrInvalidParams, p.InputValue)
	}

	if p.SessionID != "" {
		if err := s.store(ctx, out, p); err != nil {
			return component.Output{}, err
		}
	}
	return out, nil
}

func (s *Service) shape(text string, p BuildParams) component.Output {
	if !p.ReturnRecord {
		return component.TextOutput(text)
	}
	return component.RecordOutput(schema.NewRecord(text, map[string]any{
		"sender":      p.Sender,
		"sender_name": p.SenderName,
		"session_id":  p.SessionID,
	}))
}

func (s *Service) store(ctx context.Context, out component.Output, p BuildParams) error {
	msg := &schema.Message{
		ID:         uuid.NewString(),
		SessionID:  p.SessionID,
		Sender:     p.Sender,
		SenderName: p.SenderName,
		Text:       out.Text,
		CreatedAt:  s.now().UTC(),
	}
	if out.Kind == component.OutputRecord {
		msg.Text = out.Record.Text
		msg.Data = make(map[string]any, len(out.Record.Data))
		maps.Copy(msg.Data, out.Record.Data)
		for _, k := range []string{"sender", "sender_name", "session_id"} {
			delete(msg.Data, k)
		}
	}

	if err := s.repo.Save(ctx, msg); err != nil {
		return fmt.Errorf("failed to store message: %w", err)
	}
	metrics.MessagesStoredTotal.Inc()

	if s.pub == nil {
		return nil
	}
	payload, err := json.Marshal(MessageEvent{Message: *msg, CorrelationID: middleware.GetCorrelationID(ctx)})
	if err != nil {
		return fmt.Errorf("failed to encode message event: %w", err)
	}
	if err := s.pub.Publish(config.TopicChatMessage, payload); err != nil {
		slog.ErrorContext(ctx, "failed to publish chat.message event", "error", err, "session_id", p.SessionID)
	}
	return nil
}

// MessageEvent is published for every stored message so UIs can stream the session.
type MessageEvent struct {
	schema.Message
	CorrelationID string `json:"correlation_id"`
}

func (s *Service) ListMessages(ctx context.Context, sessionID string) ([]schema.Message, error) {
	return s.repo.ListBySession(ctx, sessionID)
}

func (s *Service) DeleteMessages(ctx context.Context, sessionID string) error {
	return s.repo.DeleteBySession(ctx, sessionID)
}

// Fields is the build config shared by chat components.
func Fields(defaultSender, defaultSenderName string) []component.Field {
	return []component.Field{
		{
			Name:        "input_value",
			DisplayName: "Message",
			InputTypes:  []component.InputType{component.InputText, component.InputRecord},
			Multiline:   true,
		},
		{
			Name:        "sender",
			DisplayName: "Sender Type",
			Options:     []string{SenderMachine, SenderUser},
			Default:     defaultSender,
		},
		{
			Name:        "sender_name",
			DisplayName: "Sender Name",
			Default:     defaultSenderName,
		},
		{
			Name:        "session_id",
			DisplayName: "Session ID",
			Info:        "If provided, the message will be stored in the memory.",
			Advanced:    true,
		},
		{
			Name:        "return_record",
			DisplayName: "Return Record",
			Info:        "Return the message as a record containing the sender, sender_name, and session_id.",
			Advanced:    true,
		},
	}
}
