package scraper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fiffu/slotwatch/lib/models"
	"go.uber.org/zap"
)

type Scraper struct {
	renderer Renderer
	rule     URLRule
	schema   Schema
	log      *zap.Logger
}

func New(renderer Renderer, rule URLRule, schema Schema, log *zap.Logger) *Scraper {
	return &Scraper{
		renderer: renderer,
		rule:     rule,
		schema:   schema,
		log:      log,
	}
}

func (s *Scraper) ValidateURL(raw string) (string, error) {
	return s.rule.ValidateURL(raw)
}

// Fetch renders the page and extracts its slots. Any failure is a
// *models.ScrapeError.
func (s *Scraper) Fetch(ctx context.Context, url string) (*models.Page, error) {
	start := time.Now()
	page, err := s.fetch(ctx, url)
	scrapeDuration.WithLabelValues(fmt.Sprintf("%T", s.renderer)).Observe(time.Since(start).Seconds())

	if err != nil {
		kind := models.ScrapeKind(err)
		scrapeErrors.WithLabelValues(kind.String()).Inc()
		s.log.Sugar().Infow("Fetch failed", "url", url, "kind", kind.String(), "err", err)
		return nil, err
	}

	s.log.Sugar().Debugw("Fetched page", "url", url, "label", page.Label, "slots", len(page.Slots))
	return page, nil
}

func (s *Scraper) fetch(ctx context.Context, url string) (*models.Page, error) {
	doc, err := s.renderer.Render(ctx, url)
	if err != nil {
		var se *models.ScrapeError
		if errors.As(err, &se) {
			return nil, se
		}
		return nil, models.NewScrapeError(models.ScrapeNetwork, url, err)
	}
	return Parse(doc, url, s.schema)
}
