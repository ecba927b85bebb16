// Package session carries the authenticated identity obtained by the browser
// login over to the lightweight HTTP client used for statistics requests.
package session

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"

	"github.com/go-resty/resty/v2"
	"golang.org/x/net/publicsuffix"
)

// ErrNoCookies means the browser context produced no cookies, so the login
// did not actually authenticate.
var ErrNoCookies = errors.New("session: browser produced no cookies")

// Cookie is the part of a browser cookie the target site's session depends on.
type Cookie struct {
	Name   string
	Value  string
	Domain string
}

// Session is one authenticated identity.
type Session struct {
	Cookies []Cookie
}

// Install replaces the client's cookie store with a fresh jar holding every
// cookie of s. Cookies are keyed by name and domain; nothing from a previous
// session survives.
func Install(s Session, client *resty.Client) error {
	if len(s.Cookies) == 0 {
		return ErrNoCookies
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return fmt.Errorf("session: create cookie jar: %w", err)
	}

	for _, c := range s.Cookies {
		host := strings.TrimPrefix(c.Domain, ".")
		if host == "" {
			return fmt.Errorf("session: cookie %q has no domain", c.Name)
		}
		u := &url.URL{Scheme: "https", Host: host, Path: "/"}
		jar.SetCookies(u, []*http.Cookie{{
			Name:   c.Name,
			Value:  c.Value,
			Domain: c.Domain,
			Path:   "/",
		}})
	}

	client.SetCookieJar(jar)
	return nil
}
