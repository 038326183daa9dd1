package senders

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/fiffu/slotwatch/telegram"
)

type telegramSender struct {
	base
	client *telegram.Client
}

func (s *telegramSender) Send(ctx context.Context, recipient string, msg Message) (string, error) {
	id, err := s.client.SendMessage(ctx, recipient, msg.Body)
	if err == nil {
		return strconv.FormatInt(id, 10), nil
	}

	var (
		rl   *telegram.RateLimitError
		perm *telegram.PermanentError
	)
	switch {
	case errors.As(err, &rl):
		return "", &RateLimitedError{RetryAfter: rl.RetryAfter, Err: err}
	case errors.As(err, &perm) && recipientGone(perm):
		return "", fmt.Errorf("%w: %v", ErrRecipientUnreachable, err)
	}
	return "", err
}

func recipientGone(err *telegram.PermanentError) bool {
	if err.Code == 403 {
		return true
	}
	desc := strings.ToLower(err.Message)
	return strings.Contains(desc, "chat not found") || strings.Contains(desc, "user is deactivated")
}
