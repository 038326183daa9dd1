package notifier

import (
	"html/template"
	"strings"
	"testing"
	"time"

	"github.com/fiffu/slotwatch/lib/models"
	"github.com/stretchr/testify/assert"
)

func TestAlertMessage_Truncates(t *testing.T) {
	body := AlertMessage(testSub(), makeSlots(13))

	assert.Contains(t, body, "New slots (13):")
	assert.Equal(t, 10, strings.Count(body, "| "))
	assert.Contains(t, body, "... and 3 more new slots")
	assert.Contains(t, body, "Book now: https://needle.co.il/candidate-slots/abc")
}

func TestInitialMessage(t *testing.T) {
	body := InitialMessage(testSub(), makeSlots(22))
	assert.Contains(t, body, "Available time slots (22 total):")
	assert.Equal(t, 20, strings.Count(body, "| "))
	assert.Contains(t, body, "... and 2 more slots")

	empty := InitialMessage(testSub(), nil)
	assert.Contains(t, empty, "No available time slots found.")
	assert.Contains(t, empty, "I'm now monitoring this URL")
}

func TestInitialMessage_FallsBackToURL(t *testing.T) {
	sub := testSub()
	sub.Label = ""
	assert.True(t, strings.HasPrefix(InitialMessage(sub, nil), "<b>"+sub.URL+"</b>"))
}

func TestListMessage(t *testing.T) {
	assert.Contains(t, ListMessage(nil), "You're not tracking any URLs yet.")

	long := testSub()
	long.URL = "https://needle.co.il/candidate-slots/" + strings.Repeat("x", 40)
	long.NeedsReview = true

	body := ListMessage([]models.Subscription{*testSub(), *long})
	assert.Contains(t, body, "You're tracking 2 URL(s):")
	assert.Contains(t, body, "1. <b>Acme &amp; Sons</b>")
	assert.Contains(t, body, "2. <b>Acme &amp; Sons</b>")
	assert.Contains(t, body, long.URL[:50]+"...")
	assert.Equal(t, 1, strings.Count(body, "not checked successfully"))
}

func TestWelcomeMessage(t *testing.T) {
	assert.Contains(t, WelcomeMessage(5*time.Minute), "check every 5 minutes")
	assert.Contains(t, WelcomeMessage(time.Minute), "check every minute")
	assert.Contains(t, WelcomeMessage(5*time.Minute), "/add &lt;url&gt;")
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "Error: bad &lt;url&gt;", ErrorMessage("bad <url>"))
}

func TestMustFillTemplate_PanicsOnExecError(t *testing.T) {
	broken := template.Must(template.New("broken").Parse("{{.Missing}}"))

	assert.Panics(t, func() { mustFillTemplate(broken, struct{}{}) })
	assert.Equal(t, "ok", mustFillTemplate(template.Must(template.New("ok").Parse(" ok ")), nil))
}
