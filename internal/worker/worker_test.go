package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rotadireta/automation/internal/domain"
	"github.com/rotadireta/automation/internal/queue"
)

type fakeEnqueuer struct {
	requests []queue.EnqueueRequest
}

func (f *fakeEnqueuer) Enqueue(req queue.EnqueueRequest) string {
	f.requests = append(f.requests, req)
	return uuid.New().String()
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParseOutboundMessage(t *testing.T) {
	validID := uuid.New().String()

	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{
			name: "valid whatsapp message",
			body: `{"message_id": "` + validID + `", "channel": "whatsapp", "destination": "+5541999887766", "body": "Sua missão foi confirmada."}`,
		},
		{
			name: "valid email message",
			body: `{"message_id": "` + validID + `", "channel": "email", "destination": "carlos@rotadireta.com.br", "subject": "Confirmação", "body": "Sua missão foi confirmada."}`,
		},
		{
			name:    "invalid JSON",
			body:    `not json`,
			wantErr: true,
		},
		{
			name:    "message id not a uuid",
			body:    `{"message_id": "42", "channel": "email", "destination": "a@b.c", "body": "x"}`,
			wantErr: true,
		},
		{
			name:    "unknown channel",
			body:    `{"message_id": "` + validID + `", "channel": "sms", "destination": "+55", "body": "x"}`,
			wantErr: true,
		},
		{
			name:    "both channel not allowed for direct messages",
			body:    `{"message_id": "` + validID + `", "channel": "both", "destination": "a@b.c", "body": "x"}`,
			wantErr: true,
		},
		{
			name:    "missing destination",
			body:    `{"message_id": "` + validID + `", "channel": "email", "body": "x"}`,
			wantErr: true,
		},
		{
			name:    "missing body",
			body:    `{"message_id": "` + validID + `", "channel": "email", "destination": "a@b.c"}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := parseOutboundMessage([]byte(tt.body))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, validID, msg.MessageID)
		})
	}
}

func TestProcessEnqueuesSendJob(t *testing.T) {
	enqueuer := &fakeEnqueuer{}
	w := New(nil, enqueuer, Config{}, testLogger())

	body := `{"message_id": "` + uuid.New().String() + `", "channel": "whatsapp", "destination": "+5541999887766", "body": "Sua missão foi confirmada."}`
	err := w.process(context.Background(), []byte(body))

	require.NoError(t, err)
	require.Len(t, enqueuer.requests, 1)
	assert.Equal(t, domain.ChannelWhatsApp, enqueuer.requests[0].Channel)
	assert.Equal(t, "+5541999887766", enqueuer.requests[0].Destination)
	assert.Equal(t, "Sua missão foi confirmada.", enqueuer.requests[0].Payload)
}

func TestProcessMalformedMessageIsNotRetryable(t *testing.T) {
	w := New(nil, &fakeEnqueuer{}, Config{}, testLogger())

	err := w.process(context.Background(), []byte(`{"message_id": "nope"}`))

	require.Error(t, err)
	assert.False(t, shouldRequeue(err))
}

func TestProcessDuringShutdownIsRetryable(t *testing.T) {
	enqueuer := &fakeEnqueuer{}
	w := New(nil, enqueuer, Config{}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	body := `{"message_id": "` + uuid.New().String() + `", "channel": "email", "destination": "a@b.c", "body": "x"}`
	err := w.process(ctx, []byte(body))

	require.Error(t, err)
	assert.True(t, shouldRequeue(err))
	assert.Empty(t, enqueuer.requests, "a message must not be enqueued after shutdown started")
}

func TestShouldRequeue(t *testing.T) {
	assert.True(t, shouldRequeue(domain.NewRetryableError(errors.New("transient"))))
	assert.False(t, shouldRequeue(errors.New("permanent")))
}
