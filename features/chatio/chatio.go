// Package chatio provides the chat input and output components. Both are thin
// named wrappers over the chat base: they describe themselves to the UI and
// forward the configured values to it untouched.
package chatio

import (
	"context"

	"flowkit/internal/chat"
	"flowkit/internal/component"
	"flowkit/internal/schema"
)

type chatComponent struct {
	base              chat.Builder
	name              string
	displayName       string
	description       string
	icon              string
	defaultSender     string
	defaultSenderName string
}

// ChatOutput sends a message to the chat.
type ChatOutput struct {
	chatComponent
}

func NewChatOutput(base chat.Builder) *ChatOutput {
	return &ChatOutput{chatComponent{
		base:              base,
		name:              "ChatOutput",
		displayName:       "Chat Output",
		description:       "Used to send a message to the chat.",
		icon:              "ChatOutput",
		defaultSender:     chat.SenderMachine,
		defaultSenderName: "AI",
	}}
}

// ChatInput takes a message from the chat.
type ChatInput struct {
	chatComponent
}

func NewChatInput(base chat.Builder) *ChatInput {
	return &ChatInput{chatComponent{
		base:              base,
		name:              "ChatInput",
		displayName:       "Chat Input",
		description:       "Get chat inputs from the Playground.",
		icon:              "ChatInput",
		defaultSender:     chat.SenderUser,
		defaultSenderName: "User",
	}}
}

func (c *chatComponent) Schema() component.Schema {
	return component.Schema{
		Name:        c.name,
		DisplayName: c.displayName,
		Description: c.description,
		Icon:        c.icon,
		Fields:      chat.Fields(c.defaultSender, c.defaultSenderName),
		Outputs:     []component.OutputKind{component.OutputText, component.OutputRecord},
	}
}

// Build applies the component defaults to absent params and hands the result
// to the chat base.
func (c *chatComponent) Build(ctx context.Context, params component.Params) (component.Output, error) {
	p := chat.BuildParams{
		Sender:     c.defaultSender,
		SenderName: c.defaultSenderName,
	}
	if err := component.Decode(params, &p); err != nil {
		return component.Output{}, err
	}
	p.InputValue = schema.FromValue(p.InputValue)
	return c.Send(ctx, p)
}

// Send forwards already decoded values to the chat base.
func (c *chatComponent) Send(ctx context.Context, p chat.BuildParams) (component.Output, error) {
	return c.base.Build(ctx, p)
}
