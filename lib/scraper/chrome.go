package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/antchfx/htmlquery"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	"github.com/fiffu/slotwatch/lib/models"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

const (
	daysContainerID = "slotwatch-days"

	calendarXPath       = `//*[contains(@class, 'ant-picker-calendar')]`
	dayCellXPath        = `//td[contains(@class, 'ant-picker-cell') and not(contains(@class, 'ant-picker-cell-disabled')) and @title]`
	changeOrCancelXPath = `//button[.//span[contains(text(), 'שינוי או ביטול')]]`
	changeDateXPath     = `//button[.//span[contains(text(), 'שינוי מועד')]]`
)

const ensureContainerJS = `(function () {
  var root = document.getElementById('` + daysContainerID + `');
  if (!root) {
    root = document.createElement('div');
    root.id = '` + daysContainerID + `';
    root.hidden = true;
    document.body.appendChild(root);
  }
  return true;
})()`

// Copies the time buttons currently shown for one day into the container.
const copyDayJS = `(function (date) {
  var root = document.getElementById('` + daysContainerID + `');
  var section = document.createElement('section');
  section.setAttribute('data-date', date);
  document.querySelectorAll('button.ant-btn').forEach(function (b) {
    var text = (b.innerText || '').trim();
    if (/^\d{1,2}:\d{2}/.test(text)) {
      var copy = document.createElement('button');
      copy.textContent = text;
      section.appendChild(copy);
    }
  });
  root.appendChild(section);
  return section.childElementCount;
})(%s)`

var errNotSchedulingPage = errors.New("neither a calendar nor the change date buttons were found")

// ChromeRenderer drives headless Chrome through the scheduling page, since
// slots only appear after clicking through the calendar.
type ChromeRenderer struct {
	execPath string
	timeout  time.Duration
	maxDays  int
	settle   time.Duration
	log      *zap.Logger
}

func NewChromeRenderer(execPath string, timeout time.Duration, maxDays int, log *zap.Logger) *ChromeRenderer {
	return &ChromeRenderer{
		execPath: execPath,
		timeout:  timeout,
		maxDays:  maxDays,
		settle:   time.Second,
		log:      log,
	}
}

func (r *ChromeRenderer) Render(ctx context.Context, url string) (*html.Node, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.WindowSize(1920, 1080),
		chromedp.Flag("lang", "he-IL"),
	)
	if r.execPath != "" {
		opts = append(opts, chromedp.ExecPath(r.execPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()
	browserCtx, cancelTimeout := context.WithTimeout(browserCtx, r.timeout)
	defer cancelTimeout()

	err := chromedp.Run(browserCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(r.settle),
	)
	if err != nil {
		return nil, models.NewScrapeError(models.ScrapeNetwork, url, fmt.Errorf("navigate: %w", err))
	}

	dates, err := r.openCalendar(browserCtx)
	if errors.Is(err, errNotSchedulingPage) {
		return nil, models.NewScrapeError(models.ScrapeNotFound, url, err)
	} else if err != nil {
		return nil, models.NewScrapeError(models.ScrapeNetwork, url, err)
	}

	if err := r.collectDays(browserCtx, url, dates); err != nil {
		return nil, models.NewScrapeError(models.ScrapeNetwork, url, err)
	}

	var page string
	if err := chromedp.Run(browserCtx, chromedp.OuterHTML("html", &page, chromedp.ByQuery)); err != nil {
		return nil, models.NewScrapeError(models.ScrapeNetwork, url, fmt.Errorf("read document: %w", err))
	}
	doc, err := htmlquery.Parse(strings.NewReader(page))
	if err != nil {
		return nil, models.NewScrapeError(models.ScrapeParse, url, fmt.Errorf("parse html: %w", err))
	}
	return doc, nil
}

// openCalendar makes the calendar visible and returns the dates of the
// enabled day cells.
func (r *ChromeRenderer) openCalendar(ctx context.Context) ([]string, error) {
	calendar, err := findNodes(ctx, calendarXPath)
	if err != nil {
		return nil, err
	}

	if len(calendar) == 0 {
		for _, xpath := range []string{changeOrCancelXPath, changeDateXPath} {
			buttons, err := findNodes(ctx, xpath)
			if err != nil {
				return nil, err
			}
			if len(buttons) == 0 {
				return nil, errNotSchedulingPage
			}
			if err := chromedp.Run(ctx, chromedp.MouseClickNode(buttons[0]), chromedp.Sleep(r.settle)); err != nil {
				return nil, fmt.Errorf("click %s: %w", xpath, err)
			}
		}
	}

	cells, err := findNodes(ctx, dayCellXPath)
	if err != nil {
		return nil, err
	}
	dates := make([]string, 0, len(cells))
	for _, cell := range cells {
		if len(dates) == r.maxDays {
			break
		}
		if title := cell.AttributeValue("title"); title != "" {
			dates = append(dates, title)
		}
	}
	return dates, nil
}

func (r *ChromeRenderer) collectDays(ctx context.Context, url string, dates []string) error {
	var ok bool
	if err := chromedp.Run(ctx, chromedp.Evaluate(ensureContainerJS, &ok)); err != nil {
		return fmt.Errorf("prepare container: %w", err)
	}

	return visitDays(ctx, r.log, url, dates, func(date string) (int, error) {
		quoted, _ := json.Marshal(date)
		var count int
		err := chromedp.Run(ctx,
			chromedp.Click(fmt.Sprintf(`//td[@title=%s]`, quoted), chromedp.BySearch),
			chromedp.Sleep(r.settle),
			chromedp.Evaluate(fmt.Sprintf(copyDayJS, quoted), &count),
		)
		return count, err
	})
}

// visitDays opens each date in turn. A day that fails is logged and skipped;
// only a cancelled or expired ctx fails the whole render.
func visitDays(ctx context.Context, log *zap.Logger, url string, dates []string, open func(date string) (int, error)) error {
	for _, date := range dates {
		count, err := open(date)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("open day %s: %w", date, ctxErr)
		}
		if err != nil {
			log.Sugar().Warnw("Skipping day", "url", url, "date", date, "err", err)
			continue
		}
		log.Sugar().Debugw("Collected day", "url", url, "date", date, "buttons", count)
	}
	return nil
}

func findNodes(ctx context.Context, xpath string) ([]*cdp.Node, error) {
	var nodes []*cdp.Node
	if err := chromedp.Run(ctx, chromedp.Nodes(xpath, &nodes, chromedp.BySearch, chromedp.AtLeast(0))); err != nil {
		return nil, fmt.Errorf("find %s: %w", xpath, err)
	}
	return nodes, nil
}
