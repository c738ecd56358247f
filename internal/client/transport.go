package client

import (
	"net/http"

	"github.com/gregjones/httpcache"
	"github.com/gregjones/httpcache/diskcache"
	"github.com/klauspost/compress/gzhttp"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/wardstock/internal/logger"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"
)

// newTransport builds the round tripper chain shared by every request:
// request logging, optional tracing, optional HTTP caching, optional rate
// limiting and gzip.
func newTransport(cfg Config) http.RoundTripper {
	base := cfg.Transport
	if base == nil {
		base = http.DefaultTransport.(*http.Transport).Clone()
	}

	var rt http.RoundTripper = gzhttp.Transport(base)

	if cfg.RateLimit > 0 {
		rt = newRateLimitedTransport(cfg.RateLimit, cfg.RateBurst, rt)
	}

	if cfg.Cache {
		rt = newCachingTransport(cfg.CacheDir, rt)
	}

	if cfg.Telemetry {
		rt = otelhttp.NewTransport(rt)
	}

	return logger.NewRequestLogger(log.Logger, rt)
}

// rateLimitedTransport spaces out requests that reach the network. Cache
// hits are not limited.
type rateLimitedTransport struct {
	limiter *rate.Limiter
	next    http.RoundTripper
}

func newRateLimitedTransport(perSecond float64, burst int, next http.RoundTripper) *rateLimitedTransport {
	if burst < 1 {
		burst = 1
	}
	return &rateLimitedTransport{
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
		next:    next,
	}
}

func (t *rateLimitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return t.next.RoundTrip(req)
}

// newCachingTransport wraps next with an RFC 7234 cache. Responses are only
// reused when the server marks them cacheable. The cache is keyed by URL
// alone, so requests carrying credentials always go to the network.
func newCachingTransport(cacheDir string, next http.RoundTripper) http.RoundTripper {
	var cache httpcache.Cache
	if cacheDir == "" {
		cache = httpcache.NewMemoryCache()
	} else {
		// Use disk-based cache for persistence across restarts
		cache = diskcache.New(cacheDir)
	}

	transport := httpcache.NewTransport(cache)
	transport.Transport = next
	transport.MarkCachedResponses = true

	return &authBypassTransport{cached: transport, next: next}
}

// authBypassTransport sends authorized requests around the cache so one
// user's responses are never replayed to another.
type authBypassTransport struct {
	cached http.RoundTripper
	next   http.RoundTripper
}

func (t *authBypassTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get(authorizationHeader) != "" {
		return t.next.RoundTrip(req)
	}
	return t.cached.RoundTrip(req)
}
