// Package location finds the user's approximate position once at startup so
// the nearest stop can be pre-selected. Every failure here is non-fatal.
package location

import (
	"context"
	"errors"
	"fmt"
)

// ErrLocationUnavailable matches every error a Provider returns.
var ErrLocationUnavailable = errors.New("location unavailable")

var (
	// ErrPermissionDenied means the user opted out of location lookups.
	ErrPermissionDenied = fmt.Errorf("%w: permission denied", ErrLocationUnavailable)
	// ErrUnsupported means no location source is configured.
	ErrUnsupported = fmt.Errorf("%w: no location source configured", ErrLocationUnavailable)
	// ErrUnavailable means a configured source failed to produce a position.
	ErrUnavailable = fmt.Errorf("%w: lookup failed", ErrLocationUnavailable)
)

// Coordinates is a WGS84 position in decimal degrees.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Valid reports whether both components are within range.
func (c Coordinates) Valid() bool {
	return c.Latitude >= -90 && c.Latitude <= 90 &&
		c.Longitude >= -180 && c.Longitude <= 180
}

func (c Coordinates) String() string {
	return fmt.Sprintf("%.5f,%.5f", c.Latitude, c.Longitude)
}

// Provider produces the user's position.
type Provider interface {
	Locate(ctx context.Context) (Coordinates, error)
}

// Static returns a fixed position taken from configuration.
type Static struct {
	coords  *Coordinates
	allowed bool
}

// NewStatic creates a Static provider. A nil coords yields ErrUnsupported,
// allowed=false yields ErrPermissionDenied.
func NewStatic(coords *Coordinates, allowed bool) *Static {
	return &Static{coords: coords, allowed: allowed}
}

func (s *Static) Locate(context.Context) (Coordinates, error) {
	if !s.allowed {
		return Coordinates{}, ErrPermissionDenied
	}
	if s.coords == nil {
		return Coordinates{}, ErrUnsupported
	}
	if !s.coords.Valid() {
		return Coordinates{}, fmt.Errorf("%w: coordinates %s out of range", ErrUnavailable, s.coords)
	}
	return *s.coords, nil
}

// Chain tries each provider in turn and returns the first position found.
type Chain []Provider

// Locate returns the first success. When every provider fails the last error
// is returned, except that ErrPermissionDenied stops the chain immediately.
func (c Chain) Locate(ctx context.Context) (Coordinates, error) {
	err := ErrUnsupported
	for _, p := range c {
		if p == nil {
			continue
		}
		var coords Coordinates
		coords, err = p.Locate(ctx)
		if err == nil {
			return coords, nil
		}
		if errors.Is(err, ErrPermissionDenied) || ctx.Err() != nil {
			return Coordinates{}, err
		}
	}
	return Coordinates{}, err
}
