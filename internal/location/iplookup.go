package location

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"stoplookup.onebusaway.org/internal/logging"
)

// ipLookupResponse is the subset of an ip-api style response we read.
type ipLookupResponse struct {
	Status  string  `json:"status"`
	Message string  `json:"message"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

// IPLookup approximates the position from the caller's public IP address
// using an ip-api compatible JSON service.
type IPLookup struct {
	url        string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewIPLookup creates an IPLookup against url. A nil client uses
// http.DefaultClient and a nil logger slog.Default().
func NewIPLookup(url string, httpClient *http.Client, logger *slog.Logger) *IPLookup {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &IPLookup{url: url, httpClient: httpClient, logger: logger}
}

func (l *IPLookup) Locate(ctx context.Context) (Coordinates, error) {
	if l.url == "" {
		return Coordinates{}, ErrUnsupported
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.url, nil)
	if err != nil {
		return Coordinates{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return Coordinates{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer logging.SafeCloseWithLogging(resp.Body, l.logger, "ip_lookup_body")

	if resp.StatusCode != http.StatusOK {
		return Coordinates{}, fmt.Errorf("%w: HTTP %d from %s", ErrUnavailable, resp.StatusCode, l.url)
	}

	var body ipLookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Coordinates{}, fmt.Errorf("%w: decoding response: %v", ErrUnavailable, err)
	}
	if !strings.EqualFold(body.Status, "success") {
		return Coordinates{}, fmt.Errorf("%w: %s", ErrUnavailable, body.Message)
	}

	coords := Coordinates{Latitude: body.Lat, Longitude: body.Lon}
	if !coords.Valid() {
		return Coordinates{}, fmt.Errorf("%w: coordinates %s out of range", ErrUnavailable, coords)
	}
	l.logger.Debug("located by IP address", slog.String("coordinates", coords.String()))
	return coords, nil
}
