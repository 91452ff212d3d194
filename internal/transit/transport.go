package transit

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzhttp"
	"golang.org/x/time/rate"

	"stoplookup.onebusaway.org/internal/clock"
	"stoplookup.onebusaway.org/internal/logging"
	"stoplookup.onebusaway.org/internal/metrics"
)

type contextKey string

const endpointKey contextKey = "endpoint"

// RequestIDHeader carries a per-request id so backend logs can be matched
// with ours.
const RequestIDHeader = "X-Request-ID"

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func withEndpoint(ctx context.Context, endpoint string) context.Context {
	return context.WithValue(ctx, endpointKey, endpoint)
}

func endpointOf(r *http.Request) string {
	if ep, ok := r.Context().Value(endpointKey).(string); ok && ep != "" {
		return ep
	}
	return r.URL.Path
}

// requestIDTransport stamps every outgoing request with a fresh id unless
// the caller already set one.
func requestIDTransport(next http.RoundTripper) http.RoundTripper {
	return roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		if r.Header.Get(RequestIDHeader) == "" {
			r = r.Clone(r.Context())
			r.Header.Set(RequestIDHeader, uuid.NewString())
		}
		return next.RoundTrip(r)
	})
}

// instrumentedTransport records metrics and a log line per request.
// A nil m skips metrics.
func instrumentedTransport(next http.RoundTripper, m *metrics.Metrics, logger *slog.Logger, clk clock.Clock) http.RoundTripper {
	return roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		start := clk.Now()
		resp, err := next.RoundTrip(r)
		elapsed := clk.Since(start)

		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		endpoint := endpointOf(r)

		if m != nil {
			m.ClientRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
			m.ClientRequestDuration.WithLabelValues(endpoint).Observe(elapsed.Seconds())
		}

		attrs := []slog.Attr{slog.String("request_id", r.Header.Get(RequestIDHeader))}
		if err != nil {
			attrs = append(attrs, slog.Any("error", err))
		}
		logging.LogHTTPRequest(logger, r.Method, endpoint, status,
			float64(elapsed.Nanoseconds())/1e6, attrs...)

		return resp, err
	})
}

// rateLimitedTransport waits for the limiter before each request.
// perSecond <= 0 disables limiting.
func rateLimitedTransport(next http.RoundTripper, perSecond float64) http.RoundTripper {
	if perSecond <= 0 {
		return next
	}
	burst := int(math.Ceil(perSecond))
	limiter := rate.NewLimiter(rate.Limit(perSecond), burst)

	return roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		if err := limiter.Wait(r.Context()); err != nil {
			return nil, err
		}
		return next.RoundTrip(r)
	})
}

// newTransport assembles the outgoing stack, outermost first:
// request id, instrumentation, rate limit, gzip, base.
func newTransport(base http.RoundTripper, opts options) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	rt := gzhttp.Transport(base)
	rt = rateLimitedTransport(rt, opts.rateLimit)
	rt = instrumentedTransport(rt, opts.metrics, opts.logger, opts.clock)
	return requestIDTransport(rt)
}
