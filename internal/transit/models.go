package transit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// StopID identifies a stop. It remembers whether the backend sent it as a
// JSON number or a string so it can be echoed back in the same form.
type StopID struct {
	value   string
	numeric bool
}

// ParseStopID builds a StopID from user input. Input that is a valid JSON
// number literal is treated as a numeric id; anything else, including
// zero-padded ids such as "0071", is sent as a string.
func ParseStopID(s string) StopID {
	s = strings.TrimSpace(s)
	if s == "" {
		return StopID{}
	}
	return StopID{value: s, numeric: isNumberLiteral(s)}
}

// isNumberLiteral reports whether s can be written into a JSON body
// unquoted. json.Valid rejects leading zeros, '+', hex and NaN/Inf; the
// first-byte check rejects the other JSON value kinds.
func isNumberLiteral(s string) bool {
	if s[0] != '-' && (s[0] < '0' || s[0] > '9') {
		return false
	}
	return json.Valid([]byte(s))
}

func (id StopID) String() string { return id.value }

// IsZero reports whether the id is unset.
func (id StopID) IsZero() bool { return id.value == "" }

func (id StopID) MarshalJSON() ([]byte, error) {
	if id.numeric {
		return []byte(id.value), nil
	}
	return json.Marshal(id.value)
}

func (id *StopID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*id = StopID{}
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = StopID{value: s}
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("stop id %s: %w", data, err)
		}
		*id = StopID{value: n.String(), numeric: true}
	}
	return nil
}

// flexString accepts a JSON string, number or null and keeps its text.
// The backend is not consistent about quoting codes and route names.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*f = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		*f = flexString(n.String())
	}
	return nil
}

// Stop is a transit stop as offered to the user.
type Stop struct {
	ID     StopID
	Name   string // display name, see FormatStopName
	Region string
}

// Bus is a route serving a particular stop.
type Bus struct {
	Route  string
	StopID StopID
}

// FormatStopName returns "name, code", or just name when code is empty.
func FormatStopName(name, code string) string {
	if code == "" {
		return name
	}
	return name + ", " + code
}

// Wire records.

type regionRecord struct {
	StopArea flexString `json:"stop_area"`
}

type stopRecord struct {
	StopID   StopID     `json:"stop_id"`
	StopName flexString `json:"stop_name"`
	StopArea flexString `json:"stop_area"`
	StopCode flexString `json:"stop_code"`
}

func (r stopRecord) toStop(region string) Stop {
	if region == "" {
		region = string(r.StopArea)
	}
	return Stop{
		ID:     r.StopID,
		Name:   FormatStopName(string(r.StopName), string(r.StopCode)),
		Region: region,
	}
}

type busRecord struct {
	RouteShortName flexString `json:"route_short_name"`
}

type scheduleRecord struct {
	NormalizedArrivalTime flexString `json:"normalized_arrival_time"`
}

type nearestStopRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type regionStopsRequest struct {
	Region string `json:"region"`
}

type stopBusesRequest struct {
	StopID StopID `json:"stopId"`
}

type scheduleRequest struct {
	BusNumber string `json:"busNumber"`
	StopID    StopID `json:"stopId"`
}
