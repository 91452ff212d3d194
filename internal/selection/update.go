package selection

import (
	"errors"
	"fmt"

	"stoplookup.onebusaway.org/internal/transit"
)

// Update applies ev to s. It returns the next state, the fetch to run (if
// any) and an error when ev was rejected. On error the returned state is s
// unchanged.
//
// Results are matched against the selection they were requested for; a
// result for a region, stop or bus that is no longer selected is dropped
// with ErrStale.
func Update(s State, ev Event) (State, *Request, error) {
	if IsUserAction(ev) && !s.Ready {
		return s, nil, ErrNotReady
	}

	switch ev := ev.(type) {
	case ChooseRegion:
		return chooseRegion(s, ev.Name)
	case ChooseStop:
		return chooseStop(s, ev.Name)
	case ChooseBus:
		return chooseBus(s, ev.Route)
	case Clear:
		return State{Regions: s.Regions, Ready: s.Ready}, nil, nil

	case RegionsLoaded:
		s.Regions = ev.Regions
		return s, nil, nil
	case NearestLoaded:
		return nearestLoaded(s, ev.Stop)
	case Initialized:
		s.Ready = true
		return s, nil, nil

	case StopsLoaded:
		return stopsLoaded(s, ev)
	case BusesLoaded:
		if s.Stop == nil || s.Stop.ID != ev.StopID {
			return s, nil, ErrStale
		}
		s.Buses = ev.Buses
		s.BusesSearched = true
		return s, nil, nil
	case ScheduleLoaded:
		if s.Bus == nil || *s.Bus != ev.Bus {
			return s, nil, ErrStale
		}
		s.Schedule = ev.Schedule
		s.ScheduleSearched = true
		return s, nil, nil
	case FetchFailed:
		return fetchFailed(s, ev)
	}

	return s, nil, fmt.Errorf("unknown event %T", ev)
}

func chooseRegion(s State, name string) (State, *Request, error) {
	if !s.HasRegion(name) {
		return s, nil, &SelectionError{Field: "region", Value: name}
	}

	next := State{
		Regions: s.Regions,
		Region:  name,
		Ready:   s.Ready,
	}
	return next, &Request{Kind: FetchStops, Region: name}, nil
}

func chooseStop(s State, name string) (State, *Request, error) {
	stop, ok := s.FindStop(name)
	if !ok {
		return s, nil, &SelectionError{Field: "stop", Value: name}
	}

	s.Stop = &stop
	s.Nearest = nil
	s.Buses, s.Bus, s.Schedule = nil, nil, nil
	s.BusesSearched, s.ScheduleSearched = false, false
	s.Notice = ""
	return s, &Request{Kind: FetchBuses, StopID: stop.ID}, nil
}

func chooseBus(s State, route string) (State, *Request, error) {
	bus, ok := s.FindBus(route)
	if !ok {
		return s, nil, &SelectionError{Field: "bus", Value: route}
	}

	s.Bus = &bus
	s.Schedule = nil
	s.ScheduleSearched = false
	s.Notice = ""
	return s, &Request{Kind: FetchSchedule, Bus: bus}, nil
}

// nearestLoaded pre-fills the region with the nearest stop's and loads its
// stops. An unknown region is ignored, the same way a typed one would be.
func nearestLoaded(s State, stop transit.Stop) (State, *Request, error) {
	if !s.HasRegion(stop.Region) {
		return s, nil, &SelectionError{Field: "region", Value: stop.Region}
	}

	next := State{
		Regions: s.Regions,
		Region:  stop.Region,
		Ready:   s.Ready,
		Nearest: &stop,
	}
	return next, &Request{Kind: FetchStops, Region: stop.Region}, nil
}

func stopsLoaded(s State, ev StopsLoaded) (State, *Request, error) {
	if s.Region != ev.Region {
		return s, nil, ErrStale
	}
	s.Stops = ev.Stops
	s.StopsSearched = true

	if s.Nearest == nil {
		return s, nil, nil
	}
	nearest := *s.Nearest
	s.Nearest = nil
	for _, st := range s.Stops {
		if st.ID == nearest.ID {
			s.Stop = &st
			return s, &Request{Kind: FetchBuses, StopID: st.ID}, nil
		}
	}
	return s, nil, nil
}

func fetchFailed(s State, ev FetchFailed) (State, *Request, error) {
	req := ev.Request
	var stale bool
	switch req.Kind {
	case FetchStops:
		stale = s.Region != req.Region
	case FetchBuses:
		stale = s.Stop == nil || s.Stop.ID != req.StopID
	case FetchSchedule:
		stale = s.Bus == nil || *s.Bus != req.Bus
	}
	if stale {
		return s, nil, ErrStale
	}

	if req.Kind == FetchStops {
		s.Nearest = nil
	}
	s.Notice = fmt.Sprintf("Could not load %s: %s", req.Kind, describe(ev.Err))
	return s, nil, nil
}

func describe(err error) string {
	var statusErr *transit.StatusError
	switch {
	case err == nil:
		return "unknown error"
	case errors.As(err, &statusErr):
		return "the server returned an error"
	case errors.Is(err, transit.ErrFetch):
		return "the server could not be reached"
	default:
		return err.Error()
	}
}
