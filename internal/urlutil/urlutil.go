// Package urlutil normalizes article URLs so that tracking-parameter variants
// of the same link dedupe to one import record.
package urlutil

import (
	"net/url"
	"strings"
)

// Tracking params removed during normalization. Anything with a utm_ prefix
// is dropped as well.
var trackingParams = map[string]struct{}{
	"ref":    {},
	"source": {},
	"fbclid": {},
	"gclid":  {},
	"mc_cid": {},
	"mc_eid": {},
}

// Normalize strips tracking query parameters, the fragment, a leading www.
// host prefix and a trailing slash. Malformed URLs are returned unchanged
// rather than rejected, so an odd link still gets a stable dedup key.
func Normalize(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	query := u.Query()
	for key := range query {
		if _, tracking := trackingParams[key]; tracking || strings.HasPrefix(key, "utm_") {
			delete(query, key)
		}
	}
	u.RawQuery = query.Encode()
	u.Fragment = ""
	u.Host = strings.TrimPrefix(u.Host, "www.")

	return strings.TrimSuffix(u.String(), "/")
}
