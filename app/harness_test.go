package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/antchfx/htmlquery"
	"github.com/caarlos0/env/v11"
	"github.com/fiffu/slotwatch/config"
	"github.com/fiffu/slotwatch/lib"
	"github.com/fiffu/slotwatch/lib/notifier"
	"github.com/fiffu/slotwatch/lib/scheduler"
	"github.com/fiffu/slotwatch/lib/scraper"
	"github.com/fiffu/slotwatch/lib/store"
	"github.com/fiffu/slotwatch/senders"
	"github.com/fiffu/slotwatch/telegram"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

const pageURL = "https://needle.co.il/candidate-slots/abc"

type fakeRenderer struct {
	mu   sync.Mutex
	body string
	err  error
	gate chan struct{}

	waiting atomic.Int32
}

func (f *fakeRenderer) serve(body string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.body, f.err = body, err
}

func (f *fakeRenderer) Render(ctx context.Context, url string) (*html.Node, error) {
	f.mu.Lock()
	body, err, gate := f.body, f.err, f.gate
	f.mu.Unlock()

	if gate != nil {
		f.waiting.Add(1)
		<-gate
	}
	if err != nil {
		return nil, err
	}
	return htmlquery.Parse(strings.NewReader(body))
}

func slotsPage(label string, times ...string) string {
	b := new(strings.Builder)
	fmt.Fprintf(b, `<html><head><title>%s</title></head><body><div id="slotwatch-days"><section data-date="2025-01-15">`, label)
	for _, t := range times {
		fmt.Fprintf(b, "<button>%s</button>", t)
	}
	b.WriteString("</section></div></body></html>")
	return b.String()
}

type sentMessage struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

// telegramStub answers sendMessage and getUpdates like the Bot API.
type telegramStub struct {
	server *httptest.Server

	mu       sync.Mutex
	messages []sentMessage
	updates  []telegram.Update
}

func newTelegramStub(t *testing.T) *telegramStub {
	t.Helper()
	stub := &telegramStub{}
	stub.server = httptest.NewServer(http.HandlerFunc(stub.handle))
	t.Cleanup(stub.server.Close)
	return stub
}

func (s *telegramStub) handle(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case strings.HasSuffix(r.URL.Path, "/sendMessage"):
		var msg sentMessage
		_ = json.NewDecoder(r.Body).Decode(&msg)
		s.mu.Lock()
		s.messages = append(s.messages, msg)
		s.mu.Unlock()
		fmt.Fprint(w, `{"ok": true, "result": {"message_id": 1, "chat": {"id": 1}}}`)

	case strings.HasSuffix(r.URL.Path, "/getUpdates"):
		s.mu.Lock()
		updates := s.updates
		s.updates = nil
		s.mu.Unlock()
		if len(updates) == 0 {
			select {
			case <-time.After(50 * time.Millisecond):
			case <-r.Context().Done():
			}
		}
		result, _ := json.Marshal(updates)
		fmt.Fprintf(w, `{"ok": true, "result": %s}`, orEmpty(result))

	default:
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"ok": false, "error_code": 404, "description": "Not Found"}`)
	}
}

func orEmpty(b []byte) []byte {
	if string(b) == "null" {
		return []byte("[]")
	}
	return b
}

func (s *telegramStub) sent() []sentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sentMessage(nil), s.messages...)
}

func (s *telegramStub) texts(chatID string) []string {
	var out []string
	for _, m := range s.sent() {
		if m.ChatID == chatID {
			out = append(out, m.Text)
		}
	}
	return out
}

type harness struct {
	cfg      *config.Config
	store    *store.Store
	renderer *fakeRenderer
	svc      *lib.Service
	sched    *scheduler.Scheduler
	tg       *telegramStub
	client   *telegram.Client
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	log := zap.NewNop()

	cfg, err := config.Load(env.Options{Environment: map[string]string{
		"BASIC_AUTH_CREDS":   "admin:secret",
		"TELEGRAM_BOT_TOKEN": "token",
		"SCRAPER_RENDERER":   "http",
	}}, log)
	require.NoError(t, err)

	db, err := store.Open(store.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	h := &harness{
		cfg:      cfg,
		store:    store.New(db, log),
		renderer: &fakeRenderer{},
		tg:       newTelegramStub(t),
	}
	h.client = telegram.NewClient(h.tg.server.Client().Transport, h.tg.server.URL, "token", 1000)

	scr := scraper.New(h.renderer, scraper.DefaultURLRule(), scraper.DefaultSchema(), log)
	registry := senders.NewSenderRegistry(nil, log, cfg, http.DefaultTransport, h.client)
	n := notifier.New(registry, log)

	h.svc = lib.NewService(nil, log, h.store, scr, n)
	h.sched = scheduler.New(h.store, scr, n, log, scheduler.Options{})
	return h
}
