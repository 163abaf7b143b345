package linktoken

import (
	"net/url"
	"strings"
)

// Validator reports whether a url is acceptable as a link target.
type Validator func(string) bool

// ValidURL accepts absolute http(s) urls with a host. Quotes and whitespace are
// rejected since the memo format has no escaping.
func ValidURL(s string) bool {
	if s == "" || strings.ContainsAny(s, "\" \t\r\n") {
		return false
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return u.Host != ""
}
