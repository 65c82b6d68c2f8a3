package tabgate

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// AllURLs matches every URL with a network scheme.
const AllURLs = "<all_urls>"

// Filter selects the request URLs the gate intercepts. Patterns are either
// AllURLs or "scheme://host/path", where a "*" scheme means http or https
// and host and path are doublestar globs. A "*." host prefix also matches
// the bare domain.
type Filter struct {
	all    bool
	scheme string
	host   string
	path   string
}

// ParseFilter compiles a filter pattern.
func ParseFilter(pattern string) (Filter, error) {
	if pattern == AllURLs {
		return Filter{all: true}, nil
	}

	scheme, rest, ok := strings.Cut(pattern, "://")
	if !ok || scheme == "" {
		return Filter{}, fmt.Errorf("invalid filter %q: missing scheme", pattern)
	}

	host, path, _ := strings.Cut(rest, "/")
	if host == "" {
		return Filter{}, fmt.Errorf("invalid filter %q: missing host", pattern)
	}
	path = "/" + path

	if !doublestar.ValidatePattern(host) || !doublestar.ValidatePattern(path) {
		return Filter{}, fmt.Errorf("invalid filter %q: bad glob", pattern)
	}

	return Filter{
		scheme: strings.ToLower(scheme),
		host:   strings.ToLower(host),
		path:   path,
	}, nil
}

// Match reports whether rawURL is intercepted by the filter.
func (f Filter) Match(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	if f.all {
		switch u.Scheme {
		case "http", "https", "ws", "wss", "ftp", "file":
			return true
		}
		return false
	}

	switch f.scheme {
	case "*":
		if u.Scheme != "http" && u.Scheme != "https" {
			return false
		}
	default:
		if u.Scheme != f.scheme {
			return false
		}
	}

	host := strings.ToLower(u.Hostname())
	if !matchGlob(f.host, host) && !(strings.HasPrefix(f.host, "*.") && host == f.host[2:]) {
		return false
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	return matchGlob(f.path, path)
}

func matchGlob(pattern, name string) bool {
	ok, err := doublestar.Match(pattern, name)
	return err == nil && ok
}
