// Package useragent builds User-Agent strings that follow the Wikimedia
// User-Agent policy (https://meta.wikimedia.org/wiki/User-Agent_policy) and
// installs them on outbound HTTP requests.
package useragent

import (
	"fmt"
	"net/http"
	"runtime"
	"strings"
	"sync/atomic"
)

// ClientVersion names the HTTP client library and its version. net/http ships
// with the Go toolchain, so the version is the toolchain's (e.g.
// "Go-http-client/1.25.1"). This differs from the stock net/http header,
// "Go-http-client/1.1", where the number is the HTTP protocol version.
var ClientVersion = "Go-http-client/" + strings.TrimPrefix(runtime.Version(), "go")

// Format returns the User-Agent for a Toolforge tool. Empty url or email fall
// back to the tool's default web address and maintainer mailing address.
func Format(tool, url, email string) string {
	if url == "" {
		url = fmt.Sprintf("https://%s.toolforge.org/", tool)
	}
	if email == "" {
		email = fmt.Sprintf("tools.%s@toolforge.org", tool)
	}
	return fmt.Sprintf("%s (%s; %s) %s", tool, url, email, ClientVersion)
}

// Transport adds the installed User-Agent to requests that do not set one.
// The value may be replaced at any time; the last Set wins.
type Transport struct {
	// Base is the underlying round tripper. http.DefaultTransport is used when nil.
	Base http.RoundTripper

	value atomic.Pointer[string]
}

// NewTransport wraps base.
func NewTransport(base http.RoundTripper) *Transport {
	return &Transport{Base: base}
}

// Set installs the User-Agent for tool and returns it.
func (t *Transport) Set(tool, url, email string) string {
	ua := Format(tool, url, email)
	t.SetValue(ua)
	return ua
}

// SetValue installs ua verbatim.
func (t *Transport) SetValue(ua string) {
	t.value.Store(&ua)
}

// Value returns the installed User-Agent, or "" if none was set.
func (t *Transport) Value() string {
	if p := t.value.Load(); p != nil {
		return *p
	}
	return ""
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if ua := t.Value(); ua != "" && req.Header.Get("User-Agent") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", ua)
	}
	return t.base().RoundTrip(req)
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}
