package scraper

import (
	"net/url"
	"strings"

	"github.com/fiffu/slotwatch/lib/models"
)

// URLRule describes the pages the scraper knows how to read.
type URLRule struct {
	Host       string // www. prefix is also accepted
	PathPrefix string // must be followed by a non-empty page id
}

func DefaultURLRule() URLRule {
	return URLRule{Host: "needle.co.il", PathPrefix: "/candidate-slots/"}
}

// ValidateURL checks that raw points at a supported scheduling page and
// returns its normalized form, which is the identity used by the store.
func (rule URLRule) ValidateURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	reject := func(reason string) (string, error) {
		return "", &models.ValidationError{URL: raw, Reason: reason}
	}

	if raw == "" {
		return reject("url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return reject("not a url")
	}
	if u.Scheme != "https" {
		return reject("must use https")
	}

	host := strings.ToLower(u.Hostname())
	if host != rule.Host && host != "www."+rule.Host {
		return reject("must be a " + rule.Host + " page")
	}
	if u.Port() != "" || u.User != nil {
		return reject("must be a " + rule.Host + " page")
	}

	id, ok := strings.CutPrefix(u.Path, rule.PathPrefix)
	if !ok || strings.Trim(id, "/") == "" {
		return reject("must look like https://" + rule.Host + rule.PathPrefix + "<id>")
	}

	u.Host = host
	u.Fragment = ""
	u.RawFragment = ""
	return u.String(), nil
}
