package models

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrAlreadyExists        = errors.New("subscription already exists")
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrUnsupportedPlatform  = errors.New("unsupported platform")
)

// ValidationError rejects a url before anything is fetched or persisted.
type ValidationError struct {
	URL    string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid url %q: %s", e.URL, e.Reason)
}

type ScrapeErrorKind int

const (
	ScrapeNetwork ScrapeErrorKind = iota
	ScrapeParse
	ScrapeNotFound
)

func (k ScrapeErrorKind) String() string {
	switch k {
	case ScrapeNetwork:
		return "network"
	case ScrapeParse:
		return "parse"
	case ScrapeNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

type ScrapeError struct {
	Kind ScrapeErrorKind
	URL  string
	Err  error
}

func (e *ScrapeError) Error() string {
	return fmt.Sprintf("scrape %s (%s): %v", e.URL, e.Kind, e.Err)
}

func (e *ScrapeError) Unwrap() error { return e.Err }

// Permanent reports whether retrying on the next cycle is unlikely to help.
func (e *ScrapeError) Permanent() bool {
	return e.Kind == ScrapeParse || e.Kind == ScrapeNotFound
}

func NewScrapeError(kind ScrapeErrorKind, url string, err error) *ScrapeError {
	return &ScrapeError{Kind: kind, URL: url, Err: err}
}

// ScrapeKind extracts the kind of a scrape failure. Errors that did not come
// from the scraper are treated as network errors.
func ScrapeKind(err error) ScrapeErrorKind {
	var se *ScrapeError
	if errors.As(err, &se) {
		return se.Kind
	}
	return ScrapeNetwork
}

type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

type NotifyErrorKind int

const (
	NotifyFailed NotifyErrorKind = iota
	NotifyUnreachable
	NotifyRateLimited
)

func (k NotifyErrorKind) String() string {
	switch k {
	case NotifyUnreachable:
		return "unreachable"
	case NotifyRateLimited:
		return "rate_limited"
	default:
		return "failed"
	}
}

type NotifyError struct {
	Kind       NotifyErrorKind
	UserID     string
	RetryAfter time.Duration
	Err        error
}

func (e *NotifyError) Error() string {
	if e.Kind == NotifyRateLimited {
		return fmt.Sprintf("notify %s (%s, retry after %s): %v", e.UserID, e.Kind, e.RetryAfter, e.Err)
	}
	return fmt.Sprintf("notify %s (%s): %v", e.UserID, e.Kind, e.Err)
}

func (e *NotifyError) Unwrap() error { return e.Err }

func NotifyKind(err error) (NotifyErrorKind, bool) {
	var ne *NotifyError
	if errors.As(err, &ne) {
		return ne.Kind, true
	}
	return NotifyFailed, false
}
