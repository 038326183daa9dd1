package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/antchfx/htmlquery"
	"github.com/carlmjohnson/requests"
	"github.com/fiffu/slotwatch/lib/models"
	"golang.org/x/net/html"
)

// Renderer turns a page url into a document that Parse can read. Failures
// must be *models.ScrapeError.
type Renderer interface {
	Render(ctx context.Context, url string) (*html.Node, error)
}

// HTTPRenderer fetches server-rendered pages without executing scripts.
type HTTPRenderer struct {
	transport http.RoundTripper
	timeout   time.Duration
}

func NewHTTPRenderer(transport http.RoundTripper, timeout time.Duration) *HTTPRenderer {
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &HTTPRenderer{transport: transport, timeout: timeout}
}

func (r *HTTPRenderer) Render(ctx context.Context, url string) (*html.Node, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	var body string
	err := requests.
		URL(url).
		Transport(r.transport).
		Header("Accept-Language", "he-IL,he;q=0.9,en;q=0.8").
		ToString(&body).
		Fetch(ctx)
	if err != nil {
		return nil, classifyHTTPError(url, err)
	}

	doc, err := htmlquery.Parse(strings.NewReader(body))
	if err != nil {
		return nil, models.NewScrapeError(models.ScrapeParse, url, fmt.Errorf("parse html: %w", err))
	}
	return doc, nil
}

func classifyHTTPError(url string, err error) error {
	var re *requests.ResponseError
	if !errors.As(err, &re) {
		return models.NewScrapeError(models.ScrapeNetwork, url, err)
	}
	switch {
	case re.StatusCode >= 500, re.StatusCode == http.StatusTooManyRequests, re.StatusCode == http.StatusRequestTimeout:
		return models.NewScrapeError(models.ScrapeNetwork, url, err)
	default:
		return models.NewScrapeError(models.ScrapeNotFound, url, err)
	}
}
