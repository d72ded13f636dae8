package payments

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"imrich/internal/certificate/models"
	"imrich/internal/platform/kafka/consumer"
	dErrors "imrich/pkg/domain-errors"
	"imrich/pkg/requestcontext"
)

type updaterFunc func(ctx context.Context, serial, status string) (*models.Certificate, error)

func (f updaterFunc) UpdatePaymentStatus(ctx context.Context, serial, status string) (*models.Certificate, error) {
	return f(ctx, serial, status)
}

func TestHandle(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name      string
		msg       consumer.Message
		updateErr error
		wantCall  bool
		wantErr   bool
	}{
		{
			name:     "applies update",
			msg:      consumer.Message{Value: []byte(`{"serial":"RICH-20241116-ABCDEFGH","status":"completed","event_id":"evt-1"}`)},
			wantCall: true,
		},
		{
			name:     "serial from key",
			msg:      consumer.Message{Key: []byte("RICH-20241116-ABCDEFGH"), Value: []byte(`{"status":"failed"}`)},
			wantCall: true,
		},
		{
			name: "malformed payload committed",
			msg:  consumer.Message{Value: []byte(`not json`)},
		},
		{
			name:      "invalid transition committed",
			msg:       consumer.Message{Value: []byte(`{"serial":"RICH-20241116-ABCDEFGH","status":"failed"}`)},
			updateErr: dErrors.New(dErrors.CodeInvalidTransition, "terminal"),
			wantCall:  true,
		},
		{
			name:      "unknown serial committed",
			msg:       consumer.Message{Value: []byte(`{"serial":"RICH-20241116-ZZZZZZZZ","status":"completed"}`)},
			updateErr: dErrors.New(dErrors.CodeNotFound, "certificate not found"),
			wantCall:  true,
		},
		{
			name:      "store failure retried",
			msg:       consumer.Message{Value: []byte(`{"serial":"RICH-20241116-ABCDEFGH","status":"completed"}`)},
			updateErr: dErrors.Wrap(errors.New("db down"), dErrors.CodeInternal, "failed"),
			wantCall:  true,
			wantErr:   true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			h := NewHandler(updaterFunc(func(ctx context.Context, serial, status string) (*models.Certificate, error) {
				called = true
				assert.Equal(t, "RICH-20241116-", serial[:14])
				if tt.name == "applies update" {
					assert.Equal(t, "evt-1", requestcontext.RequestID(ctx))
				}
				return nil, tt.updateErr
			}), logger)

			err := h.Handle(context.Background(), &tt.msg)
			assert.Equal(t, tt.wantCall, called)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
