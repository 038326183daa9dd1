package scraper

import (
	"context"
	"errors"
	"testing"

	"github.com/fiffu/slotwatch/lib/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

type fakeRenderer struct {
	doc *html.Node
	err error
}

func (f *fakeRenderer) Render(ctx context.Context, url string) (*html.Node, error) {
	return f.doc, f.err
}

func TestScraper_Fetch(t *testing.T) {
	s := New(&fakeRenderer{doc: loadFixture(t, "slots.html")}, DefaultURLRule(), DefaultSchema(), zap.NewNop())

	page, err := s.Fetch(context.Background(), "https://needle.co.il/candidate-slots/abc")
	require.NoError(t, err)
	assert.Equal(t, "Acme Robotics", page.Label)
	assert.Len(t, page.Slots, 4)
}

func TestScraper_FetchKeepsRendererErrorKind(t *testing.T) {
	cause := models.NewScrapeError(models.ScrapeNotFound, "u", errors.New("gone"))
	s := New(&fakeRenderer{err: cause}, DefaultURLRule(), DefaultSchema(), zap.NewNop())

	_, err := s.Fetch(context.Background(), "u")
	assert.Equal(t, models.ScrapeNotFound, models.ScrapeKind(err))
}

func TestScraper_FetchWrapsForeignErrors(t *testing.T) {
	s := New(&fakeRenderer{err: errors.New("boom")}, DefaultURLRule(), DefaultSchema(), zap.NewNop())

	_, err := s.Fetch(context.Background(), "u")
	var se *models.ScrapeError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, models.ScrapeNetwork, se.Kind)
	assert.Equal(t, "u", se.URL)
}

func TestScraper_ValidateURL(t *testing.T) {
	s := New(&fakeRenderer{}, DefaultURLRule(), DefaultSchema(), zap.NewNop())

	_, err := s.ValidateURL("https://example.com/x")
	var ve *models.ValidationError
	assert.ErrorAs(t, err, &ve)
}
