package fingerprint

import (
	"errors"
	"net/url"
	"sort"
	"strings"
)

// ErrBadURL means the input cannot be parsed into a canonical form.
// Callers must surface it; a half-normalized URL silently inserted is a
// guaranteed missed duplicate later.
var ErrBadURL = errors.New("url cannot be normalized")

// NormalizeURL collapses the cosmetic variation between URLs that point
// at the same posting: scheme forced to https, host lowercased with
// "www." stripped, duplicate and trailing slashes removed, fragment and
// tracking params dropped, query encoded deterministically.
// Idempotent: NormalizeURL(NormalizeURL(x)) == NormalizeURL(x).
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrBadURL
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", ErrBadURL
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		u.Scheme = "https"
	default:
		return "", ErrBadURL
	}

	u.Host = strings.ToLower(u.Host)
	u.Host = strings.TrimPrefix(u.Host, "www.")
	if u.Host == "" {
		return "", ErrBadURL
	}
	u.Fragment = ""

	// collapse duplicate slashes, drop the trailing one
	for strings.Contains(u.Path, "//") {
		u.Path = strings.ReplaceAll(u.Path, "//", "/")
	}
	u.Path = strings.TrimSuffix(u.Path, "/")
	u.RawPath = ""

	// drop common tracking params
	q := u.Query()
	for k := range q {
		lk := strings.ToLower(k)
		if strings.HasPrefix(lk, "utm_") ||
			lk == "gclid" || lk == "fbclid" || lk == "msclkid" ||
			lk == "mc_cid" || lk == "mc_eid" ||
			lk == "mkt_tok" {
			q.Del(k)
		}
	}

	// deterministic query
	for k := range q {
		vals := q[k]
		sort.Strings(vals)
		q[k] = vals
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}
