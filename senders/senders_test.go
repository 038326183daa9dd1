package senders

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fiffu/slotwatch/config"
	"github.com/fiffu/slotwatch/telegram"
	"github.com/mailgun/mailgun-go/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTelegramSender(t *testing.T, status int, body string) *telegramSender {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)

	client := telegram.NewClient(server.Client().Transport, server.URL, "token", 1000)
	return &telegramSender{base{zap.NewNop(), &config.Config{}, http.DefaultTransport}, client}
}

func TestTelegramSender_Send(t *testing.T) {
	s := newTelegramSender(t, http.StatusOK, `{"ok": true, "result": {"message_id": 9, "chat": {"id": 1}}}`)

	id, err := s.Send(context.Background(), "1", Message{Body: "<b>hi</b>"})
	require.NoError(t, err)
	assert.Equal(t, "9", id)
}

func TestTelegramSender_Errors(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		unreachable bool
		retryAfter  time.Duration
	}{
		{"blocked", 403, `{"ok": false, "error_code": 403, "description": "Forbidden: bot was blocked by the user"}`, true, 0},
		{"chat not found", 400, `{"ok": false, "error_code": 400, "description": "Bad Request: chat not found"}`, true, 0},
		{"rate limited", 429, `{"ok": false, "error_code": 429, "description": "Too Many Requests", "parameters": {"retry_after": 12}}`, false, 12 * time.Second},
		{"bad markup", 400, `{"ok": false, "error_code": 400, "description": "Bad Request: can't parse entities"}`, false, 0},
		{"server error", 502, `{"ok": false, "error_code": 502, "description": "Bad Gateway"}`, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTelegramSender(t, tt.status, tt.body)

			_, err := s.Send(context.Background(), "1", Message{Body: "hi"})
			require.Error(t, err)
			assert.Equal(t, tt.unreachable, errors.Is(err, ErrRecipientUnreachable))

			var rl *RateLimitedError
			if tt.retryAfter > 0 {
				require.ErrorAs(t, err, &rl)
				assert.Equal(t, tt.retryAfter, rl.RetryAfter)
			} else {
				assert.False(t, errors.As(err, &rl))
			}
		})
	}
}

func newMailgunSender(t *testing.T, handler http.HandlerFunc) *mailgunSender {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := &config.Config{}
	cfg.Mailgun.Domain = "mg.example.com"
	cfg.Mailgun.APIKey = "key"
	cfg.Mailgun.SenderFrom = "slotwatch <noreply@example.com>"
	cfg.Mailgun.TimeoutSecs = 5

	// Point the client at the test server by rewriting every request.
	transport := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		req.URL.Scheme = "http"
		req.URL.Host = server.Listener.Addr().String()
		return http.DefaultTransport.RoundTrip(req)
	})
	return &mailgunSender{base{zap.NewNop(), cfg, transport}}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }

func TestMailgunSender_Send(t *testing.T) {
	s := newMailgunSender(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "user@example.com", r.FormValue("to"))
		assert.Equal(t, "New slots", r.FormValue("subject"))
		assert.Equal(t, "line one<br>\nline two", r.FormValue("html"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "<msg@mg>", "message": "Queued"})
	})

	id, err := s.Send(context.Background(), "user@example.com", Message{Subject: "New slots", Body: "line one\nline two"})
	require.NoError(t, err)
	assert.Equal(t, "<msg@mg>", id)
}

func TestClassifyMailgunError(t *testing.T) {
	limited := classifyMailgunError(&mailgun.UnexpectedResponseError{Expected: []int{200}, Actual: 429})
	var rl *RateLimitedError
	assert.ErrorAs(t, limited, &rl)

	bad := classifyMailgunError(&mailgun.UnexpectedResponseError{Expected: []int{200}, Actual: 400})
	assert.ErrorIs(t, bad, ErrRecipientUnreachable)

	other := classifyMailgunError(assert.AnError)
	assert.Equal(t, assert.AnError, other)
}
