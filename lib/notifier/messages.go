package notifier

import (
	_ "embed"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/fiffu/slotwatch/lib/models"
)

const (
	maxInitialSlots = 20
	maxAlertSlots   = 10
	maxListURL      = 50
)

var (
	funcs = template.FuncMap{"inc": func(i int) int { return i + 1 }}

	//go:embed templates/initial.tmpl
	initialTmpl     string
	initialTemplate = template.Must(template.New("initial").Parse(initialTmpl))

	//go:embed templates/alert.tmpl
	alertTmpl     string
	alertTemplate = template.Must(template.New("alert").Parse(alertTmpl))

	//go:embed templates/warning.tmpl
	warningTmpl     string
	warningTemplate = template.Must(template.New("warning").Parse(warningTmpl))

	//go:embed templates/welcome.tmpl
	welcomeTmpl     string
	welcomeTemplate = template.Must(template.New("welcome").Parse(welcomeTmpl))

	//go:embed templates/list.tmpl
	listTmpl     string
	listTemplate = template.Must(template.New("list").Funcs(funcs).Parse(listTmpl))
)

// mustFillTemplate panics when a template fails to execute. The templates
// are embedded, so a failure is a bug.
func mustFillTemplate(tmpl *template.Template, values any) string {
	buf := new(strings.Builder)
	if err := tmpl.Execute(buf, values); err != nil {
		panic(fmt.Sprintf("fill template %s: %s", tmpl.Name(), err))
	}
	return strings.TrimSpace(buf.String())
}

type slotListing struct {
	Label string
	URL   string
	Slots []models.Slot
	Total int
	More  int
}

func newListing(sub *models.Subscription, slots []models.Slot, limit int) slotListing {
	listing := slotListing{
		Label: sub.DisplayLabel(),
		URL:   sub.URL,
		Slots: slots,
		Total: len(slots),
	}
	if len(slots) > limit {
		listing.Slots = slots[:limit]
		listing.More = len(slots) - limit
	}
	return listing
}

// InitialMessage lists what is bookable right now, right after a subscription
// is added.
func InitialMessage(sub *models.Subscription, slots []models.Slot) string {
	return mustFillTemplate(initialTemplate, newListing(sub, slots, maxInitialSlots))
}

// AlertMessage announces slots that were not there on the previous check.
func AlertMessage(sub *models.Subscription, slots []models.Slot) string {
	return mustFillTemplate(alertTemplate, newListing(sub, slots, maxAlertSlots))
}

func WarningMessage(sub *models.Subscription, cause error) string {
	reason := "unknown error"
	if cause != nil {
		reason = models.ScrapeKind(cause).String()
	}
	return mustFillTemplate(warningTemplate, map[string]any{
		"Label":    sub.DisplayLabel(),
		"URL":      sub.URL,
		"Failures": sub.ConsecutiveFailures,
		"Cause":    strings.ReplaceAll(reason, "_", " "),
	})
}

func WelcomeMessage(interval time.Duration) string {
	return mustFillTemplate(welcomeTemplate, map[string]any{
		"Interval": humanInterval(interval),
		"Example":  "https://needle.co.il/candidate-slots/1d22a516-a3a5-4f9a-a2c2-896eddea945e",
	})
}

type listEntry struct {
	Label          string
	URL            string
	NeedsAttention bool
}

func ListMessage(subs []models.Subscription) string {
	entries := make([]listEntry, len(subs))
	for i := range subs {
		url := subs[i].URL
		if len(url) > maxListURL {
			url = url[:maxListURL] + "..."
		}
		entries[i] = listEntry{
			Label:          subs[i].DisplayLabel(),
			URL:            url,
			NeedsAttention: subs[i].FailureWarningSent || subs[i].NeedsReview,
		}
	}
	return mustFillTemplate(listTemplate, entries)
}

func ErrorMessage(text string) string {
	return "Error: " + template.HTMLEscapeString(text)
}

func humanInterval(d time.Duration) string {
	if d <= 0 {
		return "few minutes"
	}
	if d%time.Minute == 0 {
		m := int(d / time.Minute)
		if m == 1 {
			return "minute"
		}
		return fmt.Sprintf("%d minutes", m)
	}
	return d.String()
}
