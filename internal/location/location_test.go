package location

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stoplookup.onebusaway.org/internal/logging"
)

type stubProvider struct {
	coords Coordinates
	err    error
	calls  int
}

func (s *stubProvider) Locate(context.Context) (Coordinates, error) {
	s.calls++
	return s.coords, s.err
}

func TestErrorsMatchLocationUnavailable(t *testing.T) {
	for _, err := range []error{ErrPermissionDenied, ErrUnsupported, ErrUnavailable} {
		assert.True(t, errors.Is(err, ErrLocationUnavailable), "%v should match ErrLocationUnavailable", err)
	}
}

func TestCoordinatesValid(t *testing.T) {
	assert.True(t, Coordinates{Latitude: 45.5, Longitude: -122.6}.Valid())
	assert.True(t, Coordinates{Latitude: -90, Longitude: 180}.Valid())
	assert.False(t, Coordinates{Latitude: 91, Longitude: 0}.Valid())
	assert.False(t, Coordinates{Latitude: 0, Longitude: -180.5}.Valid())
}

func TestStatic(t *testing.T) {
	coords := &Coordinates{Latitude: 59.437, Longitude: 24.7536}

	got, err := NewStatic(coords, true).Locate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, *coords, got)

	_, err = NewStatic(coords, false).Locate(context.Background())
	assert.ErrorIs(t, err, ErrPermissionDenied)

	_, err = NewStatic(nil, true).Locate(context.Background())
	assert.ErrorIs(t, err, ErrUnsupported)

	_, err = NewStatic(&Coordinates{Latitude: 100}, true).Locate(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestChain(t *testing.T) {
	want := Coordinates{Latitude: 1, Longitude: 2}

	t.Run("first success wins", func(t *testing.T) {
		failing := &stubProvider{err: ErrUnsupported}
		ok := &stubProvider{coords: want}
		unused := &stubProvider{coords: Coordinates{Latitude: 9}}

		got, err := Chain{failing, nil, ok, unused}.Locate(context.Background())
		require.NoError(t, err)
		assert.Equal(t, want, got)
		assert.Equal(t, 0, unused.calls)
	})

	t.Run("permission denied stops the chain", func(t *testing.T) {
		denied := &stubProvider{err: ErrPermissionDenied}
		next := &stubProvider{coords: want}

		_, err := Chain{denied, next}.Locate(context.Background())
		assert.ErrorIs(t, err, ErrPermissionDenied)
		assert.Equal(t, 0, next.calls)
	})

	t.Run("last error is returned", func(t *testing.T) {
		_, err := Chain{&stubProvider{err: ErrUnsupported}, &stubProvider{err: ErrUnavailable}}.Locate(context.Background())
		assert.ErrorIs(t, err, ErrUnavailable)
	})

	t.Run("empty chain is unsupported", func(t *testing.T) {
		_, err := Chain{}.Locate(context.Background())
		assert.ErrorIs(t, err, ErrUnsupported)
	})
}

func TestIPLookup(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    Coordinates
		wantErr error
	}{
		{
			name:   "success",
			status: http.StatusOK,
			body:   `{"status":"success","lat":52.52,"lon":13.405}`,
			want:   Coordinates{Latitude: 52.52, Longitude: 13.405},
		},
		{
			name:    "service reports failure",
			status:  http.StatusOK,
			body:    `{"status":"fail","message":"private range"}`,
			wantErr: ErrUnavailable,
		},
		{
			name:    "non-200",
			status:  http.StatusTooManyRequests,
			body:    `{}`,
			wantErr: ErrUnavailable,
		},
		{
			name:    "garbage body",
			status:  http.StatusOK,
			body:    `<html>`,
			wantErr: ErrUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodGet, r.Method)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			got, err := NewIPLookup(server.URL, server.Client(), nil).Locate(context.Background())
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.ErrorIs(t, err, ErrLocationUnavailable)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIPLookup_NoURL(t *testing.T) {
	_, err := NewIPLookup("", nil, nil).Locate(context.Background())
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestIPLookup_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := NewIPLookup(url, nil, nil).Locate(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

// failingCloseBody errors on Close after its content was read.
type failingCloseBody struct {
	io.Reader
}

func (failingCloseBody) Close() error { return errors.New("connection reset") }

func TestIPLookup_LogsBodyCloseFailure(t *testing.T) {
	rt := roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusOK,
			Header:     http.Header{},
			Body:       failingCloseBody{strings.NewReader(`{"status":"success","lat":1.5,"lon":2.5}`)},
			Request:    r,
		}, nil
	})
	var logs bytes.Buffer
	lookup := NewIPLookup("http://ip.example/json", &http.Client{Transport: rt}, logging.New("json", true, &logs))

	got, err := lookup.Locate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Coordinates{Latitude: 1.5, Longitude: 2.5}, got)

	out := logs.String()
	assert.Contains(t, out, `"resource":"ip_lookup_body"`)
	assert.Contains(t, out, "connection reset")
	assert.Contains(t, out, "located by IP address")
}
