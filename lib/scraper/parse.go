package scraper

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/antchfx/htmlquery"
	"github.com/fiffu/slotwatch/lib/models"
	"golang.org/x/net/html"
)

const unknownLabel = "Unknown Company"

// Schema locates slots inside a rendered document. The chrome renderer copies
// every available day into ContainerXPath, one section per day.
type Schema struct {
	ContainerXPath string
	DaysXPath      string // relative to the container
	DateAttr       string
	TimesXPath     string // relative to a day
	NotFoundXPath  string
	TitleXPath     string
	HeadingsXPath  string

	GenericTitles   []string
	IgnoredHeadings []string
}

func DefaultSchema() Schema {
	return Schema{
		ContainerXPath: "//*[@id='" + daysContainerID + "']",
		DaysXPath:      "./section[@data-date]",
		DateAttr:       "data-date",
		TimesXPath:     ".//button",
		NotFoundXPath:  "//*[@data-page='not-found']",
		TitleXPath:     "/html/head/title",
		HeadingsXPath:  "//h1 | //h2 | //h3",

		GenericTitles: []string{"Needle"},
		IgnoredHeadings: []string{
			"הראיון נקבע בהצלחה",
			"שינוי או ביטול הראיון",
		},
	}
}

var (
	slotTime    = regexp.MustCompile(`^(\d{1,2}):(\d{2})(?:\s*[-–]\s*(\d{1,2}):(\d{2}))?$`)
	dateLayouts = []string{"2006-01-02", "02/01/2006", "02.01.2006", "2/1/2006"}
)

// Parse extracts the page label and its slots. Slots are deduplicated by key
// and returned in chronological order, so the same page state always yields
// the same result.
func Parse(doc *html.Node, url string, schema Schema) (*models.Page, error) {
	if doc == nil {
		return nil, models.NewScrapeError(models.ScrapeParse, url, errors.New("empty document"))
	}
	if marker, _ := htmlquery.Query(doc, schema.NotFoundXPath); marker != nil {
		return nil, models.NewScrapeError(models.ScrapeNotFound, url, errors.New("page reports not found"))
	}

	container, err := htmlquery.Query(doc, schema.ContainerXPath)
	if err != nil {
		return nil, models.NewScrapeError(models.ScrapeParse, url, fmt.Errorf("bad container xpath: %w", err))
	}
	if container == nil {
		return nil, models.NewScrapeError(models.ScrapeParse, url, errors.New("slot calendar not found"))
	}

	days, err := htmlquery.QueryAll(container, schema.DaysXPath)
	if err != nil {
		return nil, models.NewScrapeError(models.ScrapeParse, url, fmt.Errorf("bad days xpath: %w", err))
	}

	seen := models.NewKeySet()
	slots := make([]models.Slot, 0)
	for _, day := range days {
		rawDate := compactWhitespace(attr(day, schema.DateAttr))
		date, ok := normalizeDate(rawDate)
		if !ok {
			return nil, models.NewScrapeError(models.ScrapeParse, url, fmt.Errorf("unrecognized date %q", rawDate))
		}

		buttons, err := htmlquery.QueryAll(day, schema.TimesXPath)
		if err != nil {
			return nil, models.NewScrapeError(models.ScrapeParse, url, fmt.Errorf("bad times xpath: %w", err))
		}
		for _, button := range buttons {
			start, end, ok := parseSlotTime(digForText(button))
			if !ok {
				continue
			}
			key := models.SlotKey(date, start, end)
			if seen.Has(key) {
				continue
			}
			seen.Add(key)
			slots = append(slots, models.Slot{
				Key:         key,
				DisplayText: models.SlotDisplayText(date, start, end),
			})
		}
	}

	sort.SliceStable(slots, func(i, j int) bool { return slots[i].Key < slots[j].Key })

	return &models.Page{
		Label: extractLabel(doc, schema),
		Slots: slots,
	}, nil
}

func normalizeDate(raw string) (string, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("2006-01-02"), true
		}
	}
	return "", false
}

func parseSlotTime(text string) (start, end string, ok bool) {
	m := slotTime.FindStringSubmatch(text)
	if m == nil {
		return "", "", false
	}
	if start, ok = clock(m[1], m[2]); !ok {
		return "", "", false
	}
	if m[3] == "" {
		return start, "", true
	}
	if end, ok = clock(m[3], m[4]); !ok {
		return "", "", false
	}
	return start, end, true
}

func clock(hh, mm string) (string, bool) {
	h, _ := strconv.Atoi(hh)
	m, _ := strconv.Atoi(mm)
	if h > 23 || m > 59 {
		return "", false
	}
	return fmt.Sprintf("%02d:%02d", h, m), true
}

func extractLabel(doc *html.Node, schema Schema) string {
	if title := selectText(doc, schema.TitleXPath); title != "" && !contains(schema.GenericTitles, title) {
		return title
	}

	headings, err := htmlquery.QueryAll(doc, schema.HeadingsXPath)
	if err != nil {
		return unknownLabel
	}
	for _, h := range headings {
		if text := digForText(h); text != "" && !contains(schema.IgnoredHeadings, text) {
			return text
		}
	}
	return unknownLabel
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
