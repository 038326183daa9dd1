package senders

import (
	"errors"
	"fmt"
	"time"
)

// ErrRecipientUnreachable means the recipient can no longer receive messages,
// for example because they blocked the bot.
var ErrRecipientUnreachable = errors.New("recipient unreachable")

type RateLimitedError struct {
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited for %s: %v", e.RetryAfter, e.Err)
}

func (e *RateLimitedError) Unwrap() error { return e.Err }
