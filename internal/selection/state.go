// Package selection is the region -> stop -> bus -> schedule state machine
// behind the lookup. Update is a pure reducer: it never performs I/O, it
// only says which fetch should happen next.
package selection

import (
	"slices"

	"stoplookup.onebusaway.org/internal/transit"
)

// State is the client-held record of the user's choices and the result
// lists fetched for them. A State is never modified in place; Update
// returns a new value and slices are replaced, not appended to.
type State struct {
	Regions []string
	Region  string

	Stops []transit.Stop
	Stop  *transit.Stop

	Buses []transit.Bus
	Bus   *transit.Bus

	Schedule []string

	// Searched flags separate "not asked yet" from "asked, got nothing".
	StopsSearched    bool
	BusesSearched    bool
	ScheduleSearched bool

	// Ready is set once the initial region and nearest-stop lookups finished.
	Ready bool

	// Nearest is the stop suggested at startup until its region's stop
	// list arrives and it becomes the selected stop.
	Nearest *transit.Stop

	// Notice is the latest non-blocking message for the user, typically a
	// failed fetch.
	Notice string
}

// Stage returns how far along the selection is.
func (s State) Stage() Stage {
	switch {
	case s.Bus != nil:
		return StageBusChosen
	case s.Stop != nil:
		return StageStopChosen
	case s.Region != "":
		return StageRegionChosen
	default:
		return StageEmpty
	}
}

// HasRegion reports whether name is one of the offered regions.
func (s State) HasRegion(name string) bool {
	return slices.Contains(s.Regions, name)
}

// FindStop returns the offered stop whose display name is name.
func (s State) FindStop(name string) (transit.Stop, bool) {
	i := slices.IndexFunc(s.Stops, func(st transit.Stop) bool { return st.Name == name })
	if i < 0 {
		return transit.Stop{}, false
	}
	return s.Stops[i], true
}

// FindBus returns the displayed bus with the given route.
func (s State) FindBus(route string) (transit.Bus, bool) {
	i := slices.IndexFunc(s.Buses, func(b transit.Bus) bool { return b.Route == route })
	if i < 0 {
		return transit.Bus{}, false
	}
	return s.Buses[i], true
}

// Stage is the informal position in Empty -> RegionChosen -> StopChosen -> BusChosen.
type Stage int

const (
	StageEmpty Stage = iota
	StageRegionChosen
	StageStopChosen
	StageBusChosen
)

func (s Stage) String() string {
	switch s {
	case StageRegionChosen:
		return "region chosen"
	case StageStopChosen:
		return "stop chosen"
	case StageBusChosen:
		return "bus chosen"
	default:
		return "empty"
	}
}
