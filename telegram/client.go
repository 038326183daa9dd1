// Package telegram is a minimal Bot API client covering what slotwatch needs:
// sending messages and long-polling for commands.
package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/carlmjohnson/requests"
	"golang.org/x/time/rate"
)

const (
	DefaultAPIBase   = "https://api.telegram.org"
	defaultRateLimit = 25.0
)

type Client struct {
	transport http.RoundTripper
	apiBase   string
	token     string
	limiter   *rate.Limiter
}

// NewClient builds a client. ratePerSecond caps sendMessage calls; getUpdates
// is not limited.
func NewClient(transport http.RoundTripper, apiBase, token string, ratePerSecond float64) *Client {
	if transport == nil {
		transport = http.DefaultTransport
	}
	if apiBase == "" {
		apiBase = DefaultAPIBase
	}
	if ratePerSecond <= 0 {
		ratePerSecond = defaultRateLimit
	}
	return &Client{
		transport: transport,
		apiBase:   apiBase,
		token:     token,
		limiter:   rate.NewLimiter(rate.Limit(ratePerSecond), 1),
	}
}

type User struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot"`
	FirstName string `json:"first_name"`
	Username  string `json:"username,omitempty"`
}

type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

type Message struct {
	MessageID int64  `json:"message_id"`
	From      *User  `json:"from,omitempty"`
	Chat      Chat   `json:"chat"`
	Date      int64  `json:"date"`
	Text      string `json:"text,omitempty"`
}

type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message,omitempty"`
}

type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode,omitempty"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview,omitempty"`
}

type getUpdatesRequest struct {
	Offset         int64    `json:"offset,omitempty"`
	Timeout        int      `json:"timeout"`
	AllowedUpdates []string `json:"allowed_updates,omitempty"`
}

type responseParameters struct {
	RetryAfter int `json:"retry_after,omitempty"`
}

type telegramResponse struct {
	OK          bool                `json:"ok"`
	ErrorCode   int                 `json:"error_code,omitempty"`
	Description string              `json:"description,omitempty"`
	Parameters  *responseParameters `json:"parameters,omitempty"`
	Result      json.RawMessage     `json:"result,omitempty"`
}

// SendMessage sends an HTML formatted message and returns its message id.
func (c *Client) SendMessage(ctx context.Context, chatID, text string) (int64, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, fmt.Errorf("rate limit wait: %w", err)
	}

	var msg Message
	err := c.call(ctx, "sendMessage", sendMessageRequest{
		ChatID:                chatID,
		Text:                  text,
		ParseMode:             "HTML",
		DisableWebPagePreview: true,
	}, &msg)
	if err != nil {
		return 0, err
	}
	return msg.MessageID, nil
}

// GetUpdates long-polls for new messages after offset. ctx must outlive timeout.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	var updates []Update
	err := c.call(ctx, "getUpdates", getUpdatesRequest{
		Offset:         offset,
		Timeout:        int(timeout.Seconds()),
		AllowedUpdates: []string{"message"},
	}, &updates)
	return updates, err
}

func (c *Client) call(ctx context.Context, method string, payload, result any) error {
	var (
		status int
		resp   telegramResponse
	)
	err := requests.
		URL(c.endpoint(method)).
		Transport(c.transport).
		BodyJSON(payload).
		AddValidator(func(res *http.Response) error {
			status = res.StatusCode
			return nil
		}).
		ToJSON(&resp).
		Fetch(ctx)

	if err != nil {
		if status >= 500 {
			return &RetryableError{Code: status, Message: err.Error()}
		}
		if status == 0 {
			return &RetryableError{Message: fmt.Sprintf("%s: %v", method, err)}
		}
	}
	if status == 0 {
		status = http.StatusOK
	}

	if err == nil && resp.OK {
		if result == nil || len(resp.Result) == 0 {
			return nil
		}
		if err := json.Unmarshal(resp.Result, result); err != nil {
			return fmt.Errorf("decode %s result: %w", method, err)
		}
		return nil
	}

	code := resp.ErrorCode
	if code == 0 {
		code = status
	}
	return classify(code, resp)
}

func classify(code int, resp telegramResponse) error {
	switch {
	case code == http.StatusTooManyRequests:
		retryAfter := defaultRetryAfter
		if resp.Parameters != nil && resp.Parameters.RetryAfter > 0 {
			retryAfter = time.Duration(resp.Parameters.RetryAfter) * time.Second
		}
		return &RateLimitError{RetryAfter: retryAfter, Message: resp.Description}

	case code == http.StatusUnauthorized:
		return &PermanentError{Code: code, Message: "invalid bot token"}

	case code >= 500:
		return &RetryableError{Code: code, Message: resp.Description}

	case code >= 400:
		return &PermanentError{Code: code, Message: resp.Description}

	default:
		return &RetryableError{Code: code, Message: fmt.Sprintf("unexpected response: %s", resp.Description)}
	}
}

func (c *Client) endpoint(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", c.apiBase, c.token, method)
}
