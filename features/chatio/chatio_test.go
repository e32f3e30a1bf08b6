package chatio_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"flowkit/features/chatio"
	"flowkit/internal/chat"
	"flowkit/internal/component"
	"flowkit/internal/schema"
)

type MockBuilder struct {
	mock.Mock
}

func (m *MockBuilder) Build(ctx context.Context, p chat.BuildParams) (component.Output, error) {
	args := m.Called(ctx, p)
	return args.Get(0).(component.Output), args.Error(1)
}

func TestChatOutput_Schema(t *testing.T) {
	s := chatio.NewChatOutput(new(MockBuilder)).Schema()

	assert.Equal(t, "ChatOutput", s.Name)
	assert.Equal(t, "Chat Output", s.DisplayName)
	assert.Equal(t, "Used to send a message to the chat.", s.Description)
	assert.Equal(t, "ChatOutput", s.Icon)

	sender, ok := s.Field("sender")
	require.True(t, ok)
	assert.Equal(t, chat.SenderMachine, sender.Default)
	senderName, ok := s.Field("sender_name")
	require.True(t, ok)
	assert.Equal(t, "AI", senderName.Default)

	for _, name := range []string{"input_value", "session_id", "return_record"} {
		_, ok := s.Field(name)
		assert.True(t, ok, name)
	}
}

func TestChatOutput_Build_ForwardsParamsUnchanged(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		params component.Params
		want   chat.BuildParams
	}{
		{
			name:   "Defaults",
			params: nil,
			want:   chat.BuildParams{Sender: "Machine", SenderName: "AI"},
		},
		{
			name: "AllValues",
			params: component.Params{
				"sender":        "User",
				"sender_name":   "Ann",
				"input_value":   "hello",
				"session_id":    "s-1",
				"return_record": true,
			},
			want: chat.BuildParams{Sender: "User", SenderName: "Ann", InputValue: "hello", SessionID: "s-1", ReturnRecord: true},
		},
		{
			name:   "RecordInputFromJSON",
			params: component.Params{"input_value": map[string]any{"text": "hi", "lang": "en"}},
			want: chat.BuildParams{
				Sender:     "Machine",
				SenderName: "AI",
				InputValue: schema.NewRecord("hi", map[string]any{"lang": "en"}),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := new(MockBuilder)
			expected := component.TextOutput("from base")
			base.On("Build", ctx, tt.want).Return(expected, nil).Once()

			out, err := chatio.NewChatOutput(base).Build(ctx, tt.params)
			require.NoError(t, err)
			assert.Equal(t, expected, out)
			base.AssertExpectations(t)
		})
	}
}

func TestChatOutput_Build_PassesRecordPointerThrough(t *testing.T) {
	ctx := context.Background()
	rec := schema.NewRecord("upstream", nil)

	base := new(MockBuilder)
	base.On("Build", ctx, mock.MatchedBy(func(p chat.BuildParams) bool {
		return p.InputValue == rec
	})).Return(component.RecordOutput(rec), nil)

	out, err := chatio.NewChatOutput(base).Build(ctx, component.Params{"input_value": rec, "return_record": true})
	require.NoError(t, err)
	assert.Same(t, rec, out.Record)
}

func TestChatOutput_Build_PropagatesBaseError(t *testing.T) {
	ctx := context.Background()
	base := new(MockBuilder)
	base.On("Build", ctx, mock.Anything).Return(component.Output{}, errors.New("store down"))

	_, err := chatio.NewChatOutput(base).Build(ctx, component.Params{"session_id": "s"})
	assert.EqualError(t, err, "store down")
}

func TestChatOutput_Build_RejectsUnknownParam(t *testing.T) {
	base := new(MockBuilder)
	_, err := chatio.NewChatOutput(base).Build(context.Background(), component.Params{"colour": "red"})
	assert.ErrorIs(t, err, component.ErrInvalidParams)
	base.AssertNotCalled(t, "Build", mock.Anything, mock.Anything)
}

func TestChatInput_Defaults(t *testing.T) {
	ctx := context.Background()
	base := new(MockBuilder)
	base.On("Build", ctx, chat.BuildParams{Sender: "User", SenderName: "User", InputValue: "q"}).
		Return(component.TextOutput("q"), nil)

	in := chatio.NewChatInput(base)
	assert.Equal(t, "Chat Input", in.Schema().DisplayName)

	out, err := in.Build(ctx, component.Params{"input_value": "q"})
	require.NoError(t, err)
	assert.Equal(t, "q", out.Text)
	base.AssertExpectations(t)
}

func TestChatOutput_WithService(t *testing.T) {
	out, err := chatio.NewChatOutput(chat.NewService(nil, nil)).
		Build(context.Background(), component.Params{"input_value": "hi", "return_record": true})
	require.NoError(t, err)
	require.Equal(t, component.OutputRecord, out.Kind)
	assert.Equal(t, "hi", out.Record.Text)
	assert.Equal(t, "AI", out.Record.Data["sender_name"])
}
