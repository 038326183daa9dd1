package senders

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mailgun/mailgun-go/v4"
)

type mailgunSender struct {
	base
}

func (e *mailgunSender) Send(ctx context.Context, recipient string, msg Message) (string, error) {
	mg := mailgun.NewMailgun(e.cfg.Mailgun.Domain, e.cfg.Mailgun.APIKey)
	mg.Client().Transport = e.transport

	// Create message with empty body first.
	message := mg.NewMessage(e.cfg.Mailgun.SenderFrom, msg.Subject, "", recipient)
	// SetHtml with the payload proper. This will assign the MIME type properly.
	message.SetHtml(emailHTML(msg.Body))

	timeout := time.Duration(e.cfg.Mailgun.TimeoutSecs) * time.Second
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	_, id, err := mg.Send(ctx, message)
	if err != nil {
		return "", classifyMailgunError(err)
	}
	return id, nil
}

func emailHTML(body string) string {
	return strings.ReplaceAll(body, "\n", "<br>\n")
}

func classifyMailgunError(err error) error {
	var ure *mailgun.UnexpectedResponseError
	if !errors.As(err, &ure) {
		return err
	}
	switch ure.Actual {
	case http.StatusTooManyRequests:
		return &RateLimitedError{RetryAfter: time.Minute, Err: err}
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %v", ErrRecipientUnreachable, err)
	}
	return err
}
