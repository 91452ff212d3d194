// Package controller wires user actions and fetch results to the selection
// state machine. A single goroutine owns the state; fetches run on their
// own goroutines and report back to it.
package controller

import (
	"context"
	"errors"
	"log/slog"

	"github.com/davecgh/go-spew/spew"

	"stoplookup.onebusaway.org/internal/location"
	"stoplookup.onebusaway.org/internal/logging"
	"stoplookup.onebusaway.org/internal/metrics"
	"stoplookup.onebusaway.org/internal/render"
	"stoplookup.onebusaway.org/internal/selection"
	"stoplookup.onebusaway.org/internal/transit"
)

// ErrStopped is returned by calls made after Run has returned.
var ErrStopped = errors.New("controller stopped")

// message is what the loop receives. reply is nil for fetch results.
type message struct {
	event selection.Event
	reply chan error

	// snapshot and settle requests carry no event
	snapshot chan selection.State
	settle   chan struct{}

	flight *flight
}

// flight is one in-progress fetch.
type flight struct {
	kind   selection.RequestKind
	cancel context.CancelFunc
}

// Controller is the input controller of the lookup.
type Controller struct {
	api      transit.API
	locator  location.Provider
	renderer render.Renderer
	logger   *slog.Logger
	metrics  *metrics.Metrics

	inbox chan message
	done  chan struct{}

	// owned by the loop goroutine
	state    selection.State
	inflight map[selection.RequestKind]*flight
	pending  int
	settlers []chan struct{}
	fetchCtx context.Context
}

// Config holds the controller's collaborators. Locator, Metrics and Logger
// are optional.
type Config struct {
	API      transit.API
	Locator  location.Provider
	Renderer render.Renderer
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
}

// New creates a Controller. Call Run before anything else.
func New(cfg Config) *Controller {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		api:      cfg.API,
		locator:  cfg.Locator,
		renderer: cfg.Renderer,
		logger:   logger.With(slog.String("component", "controller")),
		metrics:  cfg.Metrics,
		inbox:    make(chan message),
		done:     make(chan struct{}),
		inflight: make(map[selection.RequestKind]*flight),
	}
}

// Run owns the selection state until ctx is cancelled. In-flight fetches
// are cancelled on return.
func (c *Controller) Run(ctx context.Context) {
	defer close(c.done)

	fetchCtx, cancelFetches := context.WithCancel(logging.WithLogger(ctx, c.logger))
	defer cancelFetches()
	c.fetchCtx = fetchCtx

	for {
		select {
		case <-ctx.Done():
			for _, ch := range c.settlers {
				close(ch)
			}
			return
		case msg := <-c.inbox:
			c.handle(msg)
		}
	}
}

func (c *Controller) handle(msg message) {
	switch {
	case msg.snapshot != nil:
		msg.snapshot <- c.state
		return
	case msg.settle != nil:
		if c.pending == 0 {
			close(msg.settle)
		} else {
			c.settlers = append(c.settlers, msg.settle)
		}
		return
	}

	if msg.flight != nil {
		c.land(msg.flight)
	}

	var err error
	if msg.event != nil {
		err = c.apply(msg.event)
	}
	if msg.reply != nil {
		msg.reply <- err
	}
	c.notifySettled()
}

// apply runs one event through the state machine, renders and starts the
// requested fetch.
func (c *Controller) apply(ev selection.Event) error {
	next, req, err := selection.Update(c.state, ev)
	if err != nil {
		c.reject(ev, err)
		return err
	}

	if _, ok := ev.(selection.Clear); ok {
		c.cancelFrom(selection.FetchStops)
	}
	c.state = next
	if c.logger.Enabled(c.fetchCtx, slog.LevelDebug) {
		c.logger.Debug("state updated",
			slog.String("event", eventName(ev)),
			slog.String("stage", next.Stage().String()),
			slog.String("state", Dump(next)))
	}

	if c.renderer != nil {
		render.Project(c.state, c.renderer)
	}
	if req != nil {
		c.start(*req)
	}
	return nil
}

func (c *Controller) reject(ev selection.Event, err error) {
	var selErr *selection.SelectionError
	switch {
	case errors.Is(err, selection.ErrStale):
		c.logger.Debug("dropping stale result", slog.String("event", eventName(ev)))
		if c.metrics != nil {
			c.metrics.StaleResultsTotal.Inc()
		}
	case errors.As(err, &selErr) && !selection.IsUserAction(ev):
		c.logger.Debug("ignoring result for an unknown selection",
			slog.String("event", eventName(ev)),
			slog.String("field", selErr.Field), slog.String("value", selErr.Value))
	case errors.As(err, &selErr):
		c.logger.Info("selection rejected",
			slog.String("field", selErr.Field), slog.String("value", selErr.Value))
		if c.metrics != nil {
			c.metrics.SelectionErrorsTotal.WithLabelValues(selErr.Field).Inc()
		}
	case errors.Is(err, selection.ErrNotReady):
		c.logger.Debug("action before initialization", slog.String("event", eventName(ev)))
	default:
		logging.LogError(c.logger, "event rejected", err, slog.String("event", eventName(ev)))
	}
}

// start launches req on its own goroutine, cancelling any fetch it
// supersedes: a stop list supersedes buses and schedule, buses supersede
// the schedule.
func (c *Controller) start(req selection.Request) {
	c.cancelFrom(req.Kind)

	ctx, cancel := context.WithCancel(c.fetchCtx)
	f := &flight{kind: req.Kind, cancel: cancel}
	c.inflight[req.Kind] = f
	c.pending++

	go func() {
		ev := fetch(ctx, c.api, req)
		if ctx.Err() != nil {
			// superseded or shutting down; report only so pending is settled
			ev = nil
		}
		select {
		case c.inbox <- message{event: ev, flight: f}:
		case <-c.done:
		}
	}()
}

// land retires f once its result reached the loop.
func (c *Controller) land(f *flight) {
	f.cancel()
	if c.inflight[f.kind] == f {
		delete(c.inflight, f.kind)
	}
	c.pending--
}

// cancelFrom cancels in-flight fetches of kind and every later stage.
func (c *Controller) cancelFrom(kind selection.RequestKind) {
	for k, f := range c.inflight {
		if k >= kind {
			f.cancel()
			delete(c.inflight, k)
		}
	}
}

func (c *Controller) notifySettled() {
	if c.pending > 0 || len(c.settlers) == 0 {
		return
	}
	for _, ch := range c.settlers {
		close(ch)
	}
	c.settlers = nil
}

// fetch runs req and turns its outcome into a result event. Failures are
// logged with the logger carried by ctx unless the fetch was cancelled.
func fetch(ctx context.Context, api transit.API, req selection.Request) selection.Event {
	failed := func(err error) selection.Event {
		if ctx.Err() == nil {
			logging.LogError(logging.FromContext(ctx), "fetch failed", err,
				slog.String("request", req.Kind.String()))
		}
		return selection.FetchFailed{Request: req, Err: err}
	}

	switch req.Kind {
	case selection.FetchStops:
		stops, err := api.RegionStops(ctx, req.Region)
		if err != nil {
			return failed(err)
		}
		return selection.StopsLoaded{Region: req.Region, Stops: stops}
	case selection.FetchBuses:
		buses, err := api.StopBuses(ctx, req.StopID)
		if err != nil {
			return failed(err)
		}
		return selection.BusesLoaded{StopID: req.StopID, Buses: buses}
	case selection.FetchSchedule:
		times, err := api.Schedule(ctx, req.Bus)
		if err != nil {
			return failed(err)
		}
		return selection.ScheduleLoaded{Bus: req.Bus, Schedule: times}
	}
	return nil
}

// Dump renders the state in a human-readable debugging form.
func Dump(s selection.State) string {
	cfg := spew.ConfigState{Indent: "  ", DisablePointerAddresses: true, DisableCapacities: true, SortKeys: true}
	return cfg.Sdump(s)
}

func eventName(ev selection.Event) string {
	switch ev.(type) {
	case selection.ChooseRegion:
		return "choose_region"
	case selection.ChooseStop:
		return "choose_stop"
	case selection.ChooseBus:
		return "choose_bus"
	case selection.Clear:
		return "clear"
	case selection.RegionsLoaded:
		return "regions_loaded"
	case selection.NearestLoaded:
		return "nearest_loaded"
	case selection.Initialized:
		return "initialized"
	case selection.StopsLoaded:
		return "stops_loaded"
	case selection.BusesLoaded:
		return "buses_loaded"
	case selection.ScheduleLoaded:
		return "schedule_loaded"
	case selection.FetchFailed:
		return "fetch_failed"
	}
	return "unknown"
}

// Dispatch hands ev to the loop and waits for it to be applied. Rejected
// user actions come back as errors right away; the fetch they trigger does
// not.
func (c *Controller) Dispatch(ctx context.Context, ev selection.Event) error {
	reply := make(chan error, 1)
	select {
	case c.inbox <- message{event: ev, reply: reply}:
	case <-c.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-reply:
		return err
	case <-c.done:
		return ErrStopped
	}
}

// ChooseRegion selects the region called name.
func (c *Controller) ChooseRegion(ctx context.Context, name string) error {
	return c.Dispatch(ctx, selection.ChooseRegion{Name: name})
}

// ChooseStop selects the stop whose display name is name.
func (c *Controller) ChooseStop(ctx context.Context, name string) error {
	return c.Dispatch(ctx, selection.ChooseStop{Name: name})
}

// ChooseBus selects the displayed bus with the given route.
func (c *Controller) ChooseBus(ctx context.Context, route string) error {
	return c.Dispatch(ctx, selection.ChooseBus{Route: route})
}

// Clear resets every selection but keeps the region list.
func (c *Controller) Clear(ctx context.Context) error {
	return c.Dispatch(ctx, selection.Clear{})
}

// Snapshot returns the current state.
func (c *Controller) Snapshot(ctx context.Context) (selection.State, error) {
	ch := make(chan selection.State, 1)
	select {
	case c.inbox <- message{snapshot: ch}:
	case <-c.done:
		return selection.State{}, ErrStopped
	case <-ctx.Done():
		return selection.State{}, ctx.Err()
	}

	select {
	case s := <-ch:
		return s, nil
	case <-c.done:
		return selection.State{}, ErrStopped
	}
}

// Settled blocks until no fetch is in flight.
func (c *Controller) Settled(ctx context.Context) error {
	ch := make(chan struct{})
	select {
	case c.inbox <- message{settle: ch}:
	case <-c.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-ch:
		return nil
	case <-c.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Init loads the region list, then tries to pre-select the stop nearest to
// the user. Failures are logged and the lookup continues with whatever data
// it has; user actions are accepted once Init returns.
func (c *Controller) Init(ctx context.Context) error {
	regions, err := c.api.AllRegions(ctx)
	if err != nil {
		logging.LogError(c.logger, "loading regions failed", err)
	} else if err := c.Dispatch(ctx, selection.RegionsLoaded{Regions: regions}); err != nil {
		return err
	}

	if c.locator != nil {
		c.preselectNearest(ctx)
	}

	return c.Dispatch(ctx, selection.Initialized{})
}

func (c *Controller) preselectNearest(ctx context.Context) {
	coords, err := c.locator.Locate(ctx)
	if err != nil {
		c.logger.Info("continuing without the user's location", slog.Any("reason", err))
		return
	}

	stop, err := c.api.NearestStop(ctx, coords)
	if err != nil {
		logging.LogError(c.logger, "nearest stop lookup failed", err,
			slog.String("coordinates", coords.String()))
		return
	}
	c.logger.Debug("nearest stop found",
		slog.String("stop", stop.Name), slog.String("region", stop.Region))

	// An unknown region is logged by the loop and otherwise ignored.
	_ = c.Dispatch(ctx, selection.NearestLoaded{Stop: stop})
}
