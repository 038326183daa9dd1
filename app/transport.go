package app

import (
	"net/http"
	"strings"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

func NewTransport(lc fx.Lifecycle, log *zap.Logger) http.RoundTripper {
	return &transport{base: http.DefaultTransport, log: log}
}

type transport struct {
	base http.RoundTripper
	log  *zap.Logger
}

func (tpt *transport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := tpt.base.RoundTrip(req)

	fields := []any{
		"method", req.Method,
		"host", req.URL.Host,
		"path", redactPath(req.URL.Path),
		"elapsed_msecs", time.Since(start).Milliseconds(),
	}
	if err != nil {
		tpt.log.Sugar().Debugw("Outbound request failed", append(fields, "err", err)...)
		return nil, err
	}
	tpt.log.Sugar().Debugw("Outbound request", append(fields, "status", resp.StatusCode)...)
	return resp, nil
}

// redactPath hides bot tokens, which the Telegram API carries in the path.
func redactPath(path string) string {
	if !strings.HasPrefix(path, "/bot") {
		return path
	}
	if _, method, ok := strings.Cut(strings.TrimPrefix(path, "/bot"), "/"); ok {
		return "/bot<redacted>/" + method
	}
	return "/bot<redacted>"
}
