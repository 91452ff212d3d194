package selection

import (
	"fmt"

	"stoplookup.onebusaway.org/internal/transit"
)

// Event is anything Update can apply: a user action or a fetch result.
type Event interface {
	event()
}

// User actions.

type ChooseRegion struct{ Name string }

type ChooseStop struct{ Name string }

type ChooseBus struct{ Route string }

type Clear struct{}

// Results.

type RegionsLoaded struct{ Regions []string }

type NearestLoaded struct{ Stop transit.Stop }

// Initialized marks the end of startup; user actions are accepted after it.
type Initialized struct{}

type StopsLoaded struct {
	Region string
	Stops  []transit.Stop
}

type BusesLoaded struct {
	StopID transit.StopID
	Buses  []transit.Bus
}

type ScheduleLoaded struct {
	Bus      transit.Bus
	Schedule []string
}

// FetchFailed reports that the fetch described by Request failed.
type FetchFailed struct {
	Request Request
	Err     error
}

func (ChooseRegion) event()   {}
func (ChooseStop) event()     {}
func (ChooseBus) event()      {}
func (Clear) event()          {}
func (RegionsLoaded) event()  {}
func (NearestLoaded) event()  {}
func (Initialized) event()    {}
func (StopsLoaded) event()    {}
func (BusesLoaded) event()    {}
func (ScheduleLoaded) event() {}
func (FetchFailed) event()    {}

// IsUserAction reports whether ev comes from the user rather than a fetch.
func IsUserAction(ev Event) bool {
	switch ev.(type) {
	case ChooseRegion, ChooseStop, ChooseBus, Clear:
		return true
	}
	return false
}

// RequestKind names the fetch a Request asks for.
type RequestKind int

const (
	FetchStops RequestKind = iota + 1
	FetchBuses
	FetchSchedule
)

func (k RequestKind) String() string {
	switch k {
	case FetchStops:
		return "stops"
	case FetchBuses:
		return "buses"
	case FetchSchedule:
		return "schedule"
	default:
		return fmt.Sprintf("RequestKind(%d)", int(k))
	}
}

// Request is a fetch Update wants performed. Only the field matching Kind
// is set.
type Request struct {
	Kind   RequestKind
	Region string
	StopID transit.StopID
	Bus    transit.Bus
}
