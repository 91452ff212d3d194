package render

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stoplookup.onebusaway.org/internal/selection"
	"stoplookup.onebusaway.org/internal/transit"
)

// recorder keeps the last view drawn per region, like a real screen would.
type recorder struct {
	regions, stops, buses, schedule ListView
	notice                          string
	calls                           []string
}

func (r *recorder) Regions(v ListView)  { r.regions = v; r.calls = append(r.calls, "regions") }
func (r *recorder) Stops(v ListView)    { r.stops = v; r.calls = append(r.calls, "stops") }
func (r *recorder) Buses(v ListView)    { r.buses = v; r.calls = append(r.calls, "buses") }
func (r *recorder) Schedule(v ListView) { r.schedule = v; r.calls = append(r.calls, "schedule") }
func (r *recorder) Notice(msg string)   { r.notice = msg; r.calls = append(r.calls, "notice") }

var mainSt = transit.Stop{ID: transit.ParseStopID("7"), Name: "Main St, 12", Region: "South"}

func TestProject_RedrawsEveryRegion(t *testing.T) {
	r := &recorder{}
	Project(selection.State{}, r)
	Project(selection.State{}, r)

	assert.Equal(t, []string{
		"regions", "stops", "buses", "schedule", "notice",
		"regions", "stops", "buses", "schedule", "notice",
	}, r.calls)
}

func TestProject_StopOptionText(t *testing.T) {
	r := &recorder{}
	Project(selection.State{
		Regions:       []string{"North", "South"},
		Region:        "South",
		Ready:         true,
		Stops:         []transit.Stop{mainSt},
		StopsSearched: true,
	}, r)

	assert.Equal(t, "South", r.regions.Selected)
	assert.False(t, r.stops.Disabled)
	assert.Equal(t, []string{"Main St, 12"}, r.stops.Items)
	assert.Empty(t, r.stops.Empty)
	assert.True(t, r.buses.Disabled)
}

func TestProject_EmptyListMessagesNeedASearch(t *testing.T) {
	base := selection.State{
		Regions: []string{"South"},
		Region:  "South",
		Ready:   true,
		Stops:   []transit.Stop{mainSt},
		Stop:    &mainSt,
	}

	before := &recorder{}
	Project(base, before)
	assert.Empty(t, before.buses.Empty, "no message before the bus search finished")

	searched := base
	searched.Buses = []transit.Bus{}
	searched.BusesSearched = true
	after := &recorder{}
	Project(searched, after)
	assert.Equal(t, NoBusesMessage, after.buses.Empty)
	assert.Equal(t, "Buses at Main St, 12", after.buses.Heading)
}

func TestProject_NoStopsAndNoSchedule(t *testing.T) {
	bus := transit.Bus{Route: "42", StopID: mainSt.ID}
	r := &recorder{}
	Project(selection.State{
		Region:           "South",
		StopsSearched:    true,
		Stop:             &mainSt,
		Buses:            []transit.Bus{bus},
		BusesSearched:    true,
		Bus:              &bus,
		ScheduleSearched: true,
		Notice:           "Could not load schedule",
	}, r)

	assert.Equal(t, NoStopsMessage, r.stops.Empty)
	assert.Equal(t, "42", r.buses.Selected)
	assert.Equal(t, NoScheduleMessage, r.schedule.Empty)
	assert.Equal(t, "Schedule for bus 42 at Main St, 12", r.schedule.Heading)
	assert.Equal(t, "Could not load schedule", r.notice)
}

func TestProject_NearestStopShownAsSelection(t *testing.T) {
	r := &recorder{}
	Project(selection.State{Region: "South", Nearest: &mainSt}, r)

	assert.Equal(t, "Main St, 12", r.stops.Selected)
}

func TestText_RendersSelection(t *testing.T) {
	bus := transit.Bus{Route: "42", StopID: mainSt.ID}
	var buf bytes.Buffer

	Project(selection.State{
		Regions:          []string{"North", "South"},
		Region:           "South",
		Ready:            true,
		Stops:            []transit.Stop{mainSt},
		StopsSearched:    true,
		Stop:             &mainSt,
		Buses:            []transit.Bus{bus},
		BusesSearched:    true,
		Bus:              &bus,
		Schedule:         []string{"08:15", "08:45"},
		ScheduleSearched: true,
	}, NewText(&buf))

	out := buf.String()
	assert.Contains(t, out, "Regions: South (2 available)")
	assert.Contains(t, out, "Stops in South:\n  * Main St, 12\n")
	assert.Contains(t, out, "Buses at Main St, 12:\n  * 42\n")
	assert.Contains(t, out, "Schedule for bus 42 at Main St, 12:\n    08:15\n    08:45\n")
	assert.NotContains(t, out, "!")
}

func TestText_EmptyAndDisabledRegions(t *testing.T) {
	var buf bytes.Buffer
	Project(selection.State{Regions: []string{"North"}, Ready: true}, NewText(&buf))

	out := buf.String()
	assert.Contains(t, out, "Regions (1): North")
	assert.Contains(t, out, "Stops: choose a region first")
	assert.NotContains(t, out, "Buses")

	buf.Reset()
	Project(selection.State{
		Regions:       []string{"North"},
		Region:        "North",
		Ready:         true,
		Stop:          &mainSt,
		Buses:         []transit.Bus{},
		BusesSearched: true,
		Notice:        "Could not load schedule",
	}, NewText(&buf))
	out = buf.String()
	assert.Contains(t, out, "Buses at Main St, 12: "+NoBusesMessage)
	assert.Contains(t, out, "! Could not load schedule")
}

func TestText_TruncatesLongLists(t *testing.T) {
	regions := make([]string, 30)
	for i := range regions {
		regions[i] = strings.Repeat("R", i+1)
	}

	var buf bytes.Buffer
	text := NewText(&buf)
	text.MaxItems = 5
	text.Regions(ListView{Heading: "Regions", Items: regions})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasSuffix(lines[1], "... and 25 more"), lines[1])
}

func TestText_FailedFetchShowsNoticeInsteadOfLoading(t *testing.T) {
	var buf bytes.Buffer
	Project(selection.State{
		Regions: []string{"South"},
		Region:  "South",
		Ready:   true,
		Notice:  "Could not load stops: the server could not be reached",
	}, NewText(&buf))

	out := buf.String()
	assert.NotContains(t, out, "loading...")
	assert.NotContains(t, out, "Stops in South")
	assert.Contains(t, out, "! Could not load stops: the server could not be reached")

	buf.Reset()
	Project(selection.State{Regions: []string{"South"}, Region: "South", Ready: true}, NewText(&buf))
	assert.Contains(t, buf.String(), "Stops in South: loading...")
}

func TestProject_LoadingFlag(t *testing.T) {
	r := &recorder{}
	Project(selection.State{Region: "South", Stop: &mainSt}, r)
	assert.True(t, r.stops.Loading)
	assert.True(t, r.buses.Loading)

	Project(selection.State{Region: "South", Stop: &mainSt, BusesSearched: true, Notice: "Could not load stops"}, r)
	assert.False(t, r.stops.Loading, "a failed fetch is no longer loading")
	assert.False(t, r.buses.Loading, "a finished search is no longer loading")
}
