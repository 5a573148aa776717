// Package cache provides the HTTP response cache used for manager reads.
//
// Freshness and revalidation follow Cache-Control, Expires, ETag and
// Last-Modified as implemented by httpcache; entries are keyed by the
// request URL. Backends are an in-process map or a shared Redis.
package cache

import (
	"net/http"

	"github.com/gregjones/httpcache"

	"jrm/internal/constants"
)

// Cache stores raw HTTP responses by key.
type Cache = httpcache.Cache

// NewMemory returns an in-process cache safe for concurrent use.
func NewMemory() Cache {
	return httpcache.NewMemoryCache()
}

// NewTransport returns a round tripper that serves fresh responses from c
// and forwards everything else to next. Responses served from the cache
// carry the X-From-Cache header.
func NewTransport(c Cache, next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return &httpcache.Transport{
		Transport:           next,
		Cache:               c,
		MarkCachedResponses: true,
	}
}

// FromCache reports whether resp was served from the cache.
func FromCache(resp *http.Response) bool {
	return resp != nil && resp.Header.Get(constants.HeaderFromCache) != ""
}
