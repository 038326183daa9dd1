package app

import "strings"

type command struct {
	name string
	arg  string
}

// parseCommand reads "/name arg" and "/name@botname arg". Anything that does
// not start with a slash is not a command.
func parseCommand(text string) (command, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return command{}, false
	}

	head, arg, _ := strings.Cut(text, " ")
	name, _, _ := strings.Cut(strings.TrimPrefix(head, "/"), "@")
	if name == "" {
		return command{}, false
	}
	return command{name: strings.ToLower(name), arg: strings.TrimSpace(arg)}, true
}
