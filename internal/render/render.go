// Package render projects a selection.State onto the visual regions of the
// lookup. Project is a pure function of the state; every call rebuilds every
// region from scratch.
package render

import (
	"stoplookup.onebusaway.org/internal/selection"
)

// Messages shown when a search finished without results.
const (
	NoStopsMessage    = "No stops found for this region"
	NoBusesMessage    = "No buses available for this stop"
	NoScheduleMessage = "No arrivals scheduled for this bus"
)

// ListView is everything needed to draw one list region.
type ListView struct {
	// Heading labels the region, e.g. "Schedule for bus 42 at Main St, 12".
	Heading string
	Items   []string
	// Selected is the chosen item, empty when nothing is chosen.
	Selected string
	// Empty is the message to show instead of Items, set only when a search
	// finished without results.
	Empty string
	// Loading is set while the region's fetch is outstanding. A region with
	// no items that is neither Loading nor Empty failed to load; the notice
	// explains why.
	Loading bool
	// Disabled regions cannot be interacted with yet.
	Disabled bool
}

// Renderer draws the lookup's visual regions. Implementations must replace,
// not append to, whatever they drew for a region before.
type Renderer interface {
	Regions(ListView)
	Stops(ListView)
	Buses(ListView)
	Schedule(ListView)
	Notice(string)
}

// Project draws s onto r.
func Project(s selection.State, r Renderer) {
	r.Regions(RegionsView(s))
	r.Stops(StopsView(s))
	r.Buses(BusesView(s))
	r.Schedule(ScheduleView(s))
	r.Notice(s.Notice)
}

func RegionsView(s selection.State) ListView {
	return ListView{
		Heading:  "Regions",
		Items:    s.Regions,
		Selected: s.Region,
		Disabled: !s.Ready,
	}
}

func StopsView(s selection.State) ListView {
	v := ListView{
		Heading:  "Stops",
		Disabled: s.Region == "",
	}
	if s.Region != "" {
		v.Heading = "Stops in " + s.Region
	}
	for _, st := range s.Stops {
		v.Items = append(v.Items, st.Name)
	}
	if s.Stop != nil {
		v.Selected = s.Stop.Name
	} else if s.Nearest != nil {
		v.Selected = s.Nearest.Name
	}
	if s.StopsSearched && len(s.Stops) == 0 {
		v.Empty = NoStopsMessage
	}
	v.Loading = !s.StopsSearched && s.Notice == ""
	return v
}

func BusesView(s selection.State) ListView {
	v := ListView{
		Heading:  "Buses",
		Disabled: s.Stop == nil,
	}
	if s.Stop != nil {
		v.Heading = "Buses at " + s.Stop.Name
	}
	for _, b := range s.Buses {
		v.Items = append(v.Items, b.Route)
	}
	if s.Bus != nil {
		v.Selected = s.Bus.Route
	}
	if s.BusesSearched && len(s.Buses) == 0 {
		v.Empty = NoBusesMessage
	}
	v.Loading = !s.BusesSearched && s.Notice == ""
	return v
}

func ScheduleView(s selection.State) ListView {
	v := ListView{
		Heading:  "Schedule",
		Items:    s.Schedule,
		Disabled: s.Bus == nil,
	}
	if s.Bus != nil {
		v.Heading = "Schedule for bus " + s.Bus.Route
		if s.Stop != nil {
			v.Heading += " at " + s.Stop.Name
		}
	}
	if s.ScheduleSearched && len(s.Schedule) == 0 {
		v.Empty = NoScheduleMessage
	}
	v.Loading = !s.ScheduleSearched && s.Notice == ""
	return v
}
