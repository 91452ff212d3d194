// Package transit is the client for the stop/region backend. It issues the
// five REST calls the lookup needs and normalizes their answers.
package transit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"stoplookup.onebusaway.org/internal/clock"
	"stoplookup.onebusaway.org/internal/location"
	"stoplookup.onebusaway.org/internal/logging"
	"stoplookup.onebusaway.org/internal/metrics"
)

// Backend endpoints.
const (
	EndpointAllRegions  = "/all-regions"
	EndpointNearestStop = "/nearest-stop"
	EndpointRegionStops = "/region-stops"
	EndpointStopBuses   = "/get-stop-busses"
	EndpointSchedule    = "/get-schedule"
)

// API is the set of backend operations the lookup depends on.
type API interface {
	AllRegions(ctx context.Context) ([]string, error)
	NearestStop(ctx context.Context, coords location.Coordinates) (Stop, error)
	RegionStops(ctx context.Context, region string) ([]Stop, error)
	StopBuses(ctx context.Context, stopID StopID) ([]Bus, error)
	Schedule(ctx context.Context, bus Bus) ([]string, error)
}

type options struct {
	transport http.RoundTripper
	timeout   time.Duration
	rateLimit float64
	metrics   *metrics.Metrics
	logger    *slog.Logger
	clock     clock.Clock
}

// Option configures a Client.
type Option func(*options)

// WithTransport replaces the base transport under the client's stack.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) { o.transport = rt }
}

// WithTimeout bounds each request. Zero means no timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithRateLimit caps outgoing requests per second. Zero means unlimited.
func WithRateLimit(perSecond float64) Option {
	return func(o *options) { o.rateLimit = perSecond }
}

// WithMetrics records request counts and latencies.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithLogger sets the logger used for request logging.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithClock sets the clock used to time requests.
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// Client talks to the stop/region backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

var _ API = (*Client)(nil)

// NewClient creates a client for the backend at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	o := options{
		logger: slog.Default(),
		clock:  clock.RealClock{},
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Transport: newTransport(o.transport, o),
			Timeout:   o.timeout,
		},
		logger: o.logger,
	}
}

// BaseURL returns the backend address without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// AllRegions returns the distinct, non-empty region names sorted ascending.
func (c *Client) AllRegions(ctx context.Context) ([]string, error) {
	var records []regionRecord
	if err := c.do(ctx, http.MethodGet, EndpointAllRegions, nil, &records); err != nil {
		return nil, err
	}

	regions := make([]string, 0, len(records))
	for _, r := range records {
		if r.StopArea != "" {
			regions = append(regions, string(r.StopArea))
		}
	}
	slices.Sort(regions)
	return slices.Compact(regions), nil
}

// NearestStop asks the backend for the stop closest to coords. The backend
// decides what "closest" means; only its first record is used.
func (c *Client) NearestStop(ctx context.Context, coords location.Coordinates) (Stop, error) {
	body := nearestStopRequest{Latitude: coords.Latitude, Longitude: coords.Longitude}

	var records []stopRecord
	if err := c.do(ctx, http.MethodPost, EndpointNearestStop, body, &records); err != nil {
		return Stop{}, err
	}
	if len(records) == 0 {
		return Stop{}, &FetchError{Endpoint: EndpointNearestStop, Err: ErrNoResults}
	}
	return records[0].toStop(""), nil
}

// RegionStops lists the stops of region in backend order.
func (c *Client) RegionStops(ctx context.Context, region string) ([]Stop, error) {
	var records []stopRecord
	if err := c.do(ctx, http.MethodPost, EndpointRegionStops, regionStopsRequest{Region: region}, &records); err != nil {
		return nil, err
	}

	stops := make([]Stop, 0, len(records))
	for _, r := range records {
		stops = append(stops, r.toStop(region))
	}
	return stops, nil
}

// StopBuses lists the routes serving stopID.
func (c *Client) StopBuses(ctx context.Context, stopID StopID) ([]Bus, error) {
	var records []busRecord
	if err := c.do(ctx, http.MethodPost, EndpointStopBuses, stopBusesRequest{StopID: stopID}, &records); err != nil {
		return nil, err
	}

	buses := make([]Bus, 0, len(records))
	for _, r := range records {
		buses = append(buses, Bus{Route: string(r.RouteShortName), StopID: stopID})
	}
	return buses, nil
}

// Schedule returns the arrival times of bus at its stop, as sent.
func (c *Client) Schedule(ctx context.Context, bus Bus) ([]string, error) {
	body := scheduleRequest{BusNumber: bus.Route, StopID: bus.StopID}

	var records []scheduleRecord
	if err := c.do(ctx, http.MethodPost, EndpointSchedule, body, &records); err != nil {
		return nil, err
	}

	times := make([]string, 0, len(records))
	for _, r := range records {
		times = append(times, string(r.NormalizedArrivalTime))
	}
	return times, nil
}

// do sends one JSON request and decodes the JSON answer into out.
// Every failure comes back as a *FetchError.
func (c *Client) do(ctx context.Context, method, endpoint string, body, out any) error {
	fail := func(err error) error {
		return &FetchError{Endpoint: endpoint, Err: err}
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fail(fmt.Errorf("encoding request: %w", err))
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(withEndpoint(ctx, endpoint), method, c.baseURL+endpoint, reader)
	if err != nil {
		return fail(err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fail(err)
	}
	defer logging.SafeCloseWithLogging(resp.Body, c.logger, "response_body")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return fail(&StatusError{StatusCode: resp.StatusCode})
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fail(fmt.Errorf("decoding response: %w", err))
	}
	return nil
}
