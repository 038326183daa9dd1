package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		text string
		want command
		ok   bool
	}{
		{"/start", command{name: "start"}, true},
		{"  /add https://x/y  ", command{name: "add", arg: "https://x/y"}, true},
		{"/Add@slotwatch_bot https://x/y", command{name: "add", arg: "https://x/y"}, true},
		{"/remove   https://x/y", command{name: "remove", arg: "https://x/y"}, true},
		{"/", command{}, false},
		{"hello", command{}, false},
		{"", command{}, false},
	}
	for _, tt := range tests {
		got, ok := parseCommand(tt.text)
		assert.Equal(t, tt.ok, ok, tt.text)
		assert.Equal(t, tt.want, got, tt.text)
	}
}

func TestRedactPath(t *testing.T) {
	assert.Equal(t, "/bot<redacted>/sendMessage", redactPath("/bot123:abc/sendMessage"))
	assert.Equal(t, "/bot<redacted>", redactPath("/bot123:abc"))
	assert.Equal(t, "/candidate-slots/abc", redactPath("/candidate-slots/abc"))
}
