package domain

import (
	"net/url"
	"sort"
	"strings"
)

// trackingQueryKeys are dropped from article URLs before comparison. Any utm_* key is dropped too.
var trackingQueryKeys = map[string]struct{}{
	"fbclid":  {},
	"gclid":   {},
	"dclid":   {},
	"mc_cid":  {},
	"mc_eid":  {},
	"ref":     {},
	"ref_src": {},
	"oc":      {},
	"ocid":    {},
	"cmpid":   {},
	"igshid":  {},
	"spm":     {},
	"smid":    {},
}

// NormalizeURL canonicalizes an article URL so that links differing only in
// tracking parameters, host case, fragment or a trailing slash compare equal.
// Unparseable input falls back to its trimmed lowercase form.
func NormalizeURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}

	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return strings.TrimSuffix(strings.ToLower(trimmed), "/")
	}

	parsed.Scheme = strings.ToLower(parsed.Scheme)
	host := strings.ToLower(parsed.Hostname())
	if port := parsed.Port(); port != "" {
		defaultPort := (parsed.Scheme == "http" && port == "80") || (parsed.Scheme == "https" && port == "443")
		if !defaultPort {
			host = host + ":" + port
		}
	}
	parsed.Host = host
	parsed.User = nil
	parsed.Fragment = ""
	parsed.RawFragment = ""

	path := parsed.EscapedPath()
	for strings.Contains(path, "//") {
		path = strings.ReplaceAll(path, "//", "/")
	}
	path = strings.TrimSuffix(path, "/")
	parsed.Path = path
	parsed.RawPath = ""
	if unescaped, err := url.PathUnescape(path); err == nil {
		parsed.Path = unescaped
		parsed.RawPath = path
	}

	q := parsed.Query()
	for key := range q {
		lower := strings.ToLower(key)
		if strings.HasPrefix(lower, "utm_") {
			q.Del(key)
			continue
		}
		if _, ok := trackingQueryKeys[lower]; ok {
			q.Del(key)
		}
	}
	if len(q) == 0 {
		parsed.RawQuery = ""
		parsed.ForceQuery = false
		return parsed.String()
	}

	keys := make([]string, 0, len(q))
	for key := range q {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	ordered := make([]string, 0, len(keys))
	for _, key := range keys {
		values := q[key]
		sort.Strings(values)
		for _, v := range values {
			ordered = append(ordered, url.QueryEscape(key)+"="+url.QueryEscape(v))
		}
	}
	parsed.RawQuery = strings.Join(ordered, "&")
	return parsed.String()
}
