package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/fiffu/slotwatch/lib/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type apiClient struct {
	t       *testing.T
	handler http.Handler
}

func newAPIClient(t *testing.T, h *harness) *apiClient {
	return &apiClient{t, router(h.cfg, zap.NewNop(), h.svc, h.sched)}
}

func (c *apiClient) do(method, target string, form url.Values) *httptest.ResponseRecorder {
	c.t.Helper()
	var body *strings.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	} else {
		body = strings.NewReader("")
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.SetBasicAuth("admin", "secret")

	rec := httptest.NewRecorder()
	c.handler.ServeHTTP(rec, req)
	return rec
}

func TestAPI_Health(t *testing.T) {
	c := newAPIClient(t, newHarness(t))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	c.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestAPI_RequiresAuth(t *testing.T) {
	c := newAPIClient(t, newHarness(t))

	req := httptest.NewRequest(http.MethodGet, "/api/users/u1/subscriptions", nil)
	rec := httptest.NewRecorder()
	c.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req.SetBasicAuth("admin", "wrong")
	rec = httptest.NewRecorder()
	c.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPI_AddListRemove(t *testing.T) {
	h := newHarness(t)
	h.renderer.serve(slotsPage("Acme", "09:00", "10:00"), nil)
	c := newAPIClient(t, h)
	path := "/api/users/42/subscriptions/"

	rec := c.do(http.MethodPost, path, url.Values{"url": {pageURL}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var added AddSubscriptionView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &added))
	assert.True(t, added.Created)
	assert.False(t, added.Announced)
	assert.Equal(t, "Acme", added.Subscription.Label)
	assert.Equal(t, models.PlatformTelegram, added.Subscription.Platform)
	assert.Len(t, added.Subscription.KnownSlots, 2)

	rec = c.do(http.MethodPost, path, url.Values{"url": {pageURL}})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &added))
	assert.False(t, added.Created)

	rec = c.do(http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listed []SubscriptionView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, pageURL, listed[0].URL)

	rec = c.do(http.MethodDelete, path+"?url="+url.QueryEscape(pageURL), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = c.do(http.MethodDelete, path+"?url="+url.QueryEscape(pageURL), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = c.do(http.MethodGet, path, nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	assert.Empty(t, listed)

	assert.Empty(t, h.tg.sent())
}

func TestAPI_AddAnnounces(t *testing.T) {
	h := newHarness(t)
	h.renderer.serve(slotsPage("Acme", "09:00"), nil)
	c := newAPIClient(t, h)

	rec := c.do(http.MethodPost, "/api/users/42/subscriptions/", url.Values{
		"url":      {pageURL},
		"announce": {"true"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	texts := h.tg.texts("42")
	require.Len(t, texts, 1)
	assert.Contains(t, texts[0], "<b>Acme</b>")
	assert.Contains(t, texts[0], "I'm now monitoring this URL")
}

func TestAPI_AddRejected(t *testing.T) {
	h := newHarness(t)
	c := newAPIClient(t, h)
	path := "/api/users/42/subscriptions/"

	rec := c.do(http.MethodPost, path, url.Values{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = c.do(http.MethodPost, path, url.Values{"url": {"https://example.com/candidate-slots/abc"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid URL")

	rec = c.do(http.MethodPost, path, url.Values{"url": {pageURL}, "platform": {"sms"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	h.renderer.serve("<html><body>maintenance</body></html>", nil)
	rec = c.do(http.MethodPost, path, url.Values{"url": {pageURL}})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	h.renderer.serve("", &models.ScrapeError{Kind: models.ScrapeNetwork, URL: pageURL})
	rec = c.do(http.MethodPost, path, url.Values{"url": {pageURL}})
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	rec = c.do(http.MethodGet, path, nil)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestAPI_RemoveRequiresURL(t *testing.T) {
	c := newAPIClient(t, newHarness(t))

	rec := c.do(http.MethodDelete, "/api/users/42/subscriptions/", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_RunCycle(t *testing.T) {
	h := newHarness(t)
	h.renderer.serve(slotsPage("Acme", "09:00"), nil)
	c := newAPIClient(t, h)

	rec := c.do(http.MethodPost, "/api/users/42/subscriptions/", url.Values{"url": {pageURL}})
	require.Equal(t, http.StatusCreated, rec.Code)

	h.renderer.serve(slotsPage("Acme", "09:00", "11:00"), nil)
	rec = c.do(http.MethodPost, "/api/cycles", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var view CycleView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.NotEmpty(t, view.CycleID)
	assert.Equal(t, 1, view.Selected)
	assert.Equal(t, 1, view.Updated)

	texts := h.tg.texts("42")
	require.Len(t, texts, 1)
	assert.Contains(t, texts[0], "NEW TIME SLOTS AVAILABLE!")
	assert.Contains(t, texts[0], "11:00")
	assert.NotContains(t, texts[0], "09:00")
}

func TestAPI_RunCycleConflict(t *testing.T) {
	h := newHarness(t)
	h.renderer.serve(slotsPage("Acme", "09:00"), nil)
	c := newAPIClient(t, h)

	rec := c.do(http.MethodPost, "/api/users/42/subscriptions/", url.Values{"url": {pageURL}})
	require.Equal(t, http.StatusCreated, rec.Code)

	gate := make(chan struct{})
	h.renderer.mu.Lock()
	h.renderer.gate = gate
	h.renderer.mu.Unlock()

	first := make(chan int)
	go func() {
		first <- c.do(http.MethodPost, "/api/cycles", nil).Code
	}()

	require.Eventually(t, func() bool {
		return h.renderer.waiting.Load() > 0
	}, 2*time.Second, 10*time.Millisecond)

	rec = c.do(http.MethodPost, "/api/cycles", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	close(gate)
	assert.Equal(t, http.StatusOK, <-first)
}
