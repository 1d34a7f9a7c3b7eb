package sitematrix

import "strings"

// Normalize turns a domain or URL into the canonical form used as a site URL
// by the sitematrix API: scheme forced to https, path dropped.
//
//	Normalize("en.wikipedia.org/wiki/Foo") == "https://en.wikipedia.org"
func Normalize(domain string) string {
	switch {
	case strings.HasPrefix(domain, "http://"):
		domain = strings.TrimPrefix(domain, "http://")
	case strings.HasPrefix(domain, "https://"):
		domain = strings.TrimPrefix(domain, "https://")
	}
	if host, _, found := strings.Cut(domain, "/"); found {
		domain = host
	}
	return "https://" + domain
}
