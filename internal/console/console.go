// Package console is the interactive terminal front end: it reads one
// command per line and turns it into a controller action.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"stoplookup.onebusaway.org/internal/controller"
	"stoplookup.onebusaway.org/internal/render"
	"stoplookup.onebusaway.org/internal/selection"
)

// Controller is the part of controller.Controller the console drives.
type Controller interface {
	ChooseRegion(ctx context.Context, name string) error
	ChooseStop(ctx context.Context, name string) error
	ChooseBus(ctx context.Context, route string) error
	Clear(ctx context.Context) error
	Snapshot(ctx context.Context) (selection.State, error)
	Settled(ctx context.Context) error
}

const helpText = `Commands:
  region <name>   choose a region (alias: r)
  stop <name>     choose a stop in the region, e.g. "stop Main St, 12" (alias: s)
  bus <route>     show the schedule of a bus at the stop (alias: b)
  regions         list every region
  stops           list every stop in the region
  clear           start over
  show            redraw the current selection
  state           dump the raw selection state
  help            this text
  quit            leave`

// SyncWriter serializes writes from the console and the renderer, which
// run on different goroutines.
type SyncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func NewSyncWriter(w io.Writer) *SyncWriter {
	return &SyncWriter{w: w}
}

func (s *SyncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// DefaultSettleWait is how long Run waits for a command's fetches before
// prompting again.
const DefaultSettleWait = time.Second

// Console reads commands from in and writes replies to out.
type Console struct {
	ctrl     Controller
	renderer render.Renderer
	in       io.Reader
	out      io.Writer
	prompt   string

	// SettleWait bounds how long Run waits after an action for the fetches
	// it started. Results that arrive later are still drawn by the
	// renderer. Zero does not wait; a negative value waits until every
	// fetch finished, for scripted input where later lines depend on
	// earlier results.
	SettleWait time.Duration
}

// New creates a Console. renderer is used by "show"; pass the same renderer
// the controller draws with.
func New(ctrl Controller, renderer render.Renderer, in io.Reader, out io.Writer) *Console {
	return &Console{
		ctrl:       ctrl,
		renderer:   renderer,
		in:         in,
		out:        out,
		prompt:     "> ",
		SettleWait: DefaultSettleWait,
	}
}

// ErrQuit is returned by Execute for the quit command.
var ErrQuit = errors.New("quit")

// Run processes commands until in is exhausted, "quit" is typed or ctx is
// cancelled. A fetch that hangs never blocks the next command.
func (c *Console) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	fmt.Fprintln(c.out, `Type "help" for commands.`)
	for {
		fmt.Fprint(c.out, c.prompt)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			action, err := c.execute(ctx, line)
			if errors.Is(err, ErrQuit) {
				return nil
			}
			if err != nil {
				c.report(err)
				continue
			}
			if action {
				if err := c.settle(ctx); err != nil {
					return err
				}
			}
		}
	}
}

// settle waits up to SettleWait for in-flight fetches.
func (c *Console) settle(ctx context.Context) error {
	if c.SettleWait == 0 {
		return nil
	}
	waitCtx := ctx
	if c.SettleWait > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, c.SettleWait)
		defer cancel()
	}

	err := c.ctrl.Settled(waitCtx)
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		fmt.Fprintln(c.out, "still loading, results will appear when ready")
		return nil
	}
	return err
}

// Execute runs one command line. Actions return once the controller
// accepted them, without waiting for the fetches they start.
func (c *Console) Execute(ctx context.Context, line string) error {
	_, err := c.execute(ctx, line)
	return err
}

func (c *Console) execute(ctx context.Context, line string) (bool, error) {
	cmd, arg := splitCommand(line)

	switch cmd {
	case "":
		return false, nil
	case "region", "r":
		return true, c.requireArg(arg, "region name", func() error { return c.ctrl.ChooseRegion(ctx, arg) })
	case "stop", "s":
		return true, c.requireArg(arg, "stop name", func() error { return c.ctrl.ChooseStop(ctx, arg) })
	case "bus", "b":
		return true, c.requireArg(arg, "bus route", func() error { return c.ctrl.ChooseBus(ctx, arg) })
	case "clear":
		return true, c.ctrl.Clear(ctx)
	case "regions":
		return false, c.listRegions(ctx)
	case "stops":
		return false, c.listStops(ctx)
	case "show":
		return false, c.show(ctx)
	case "state":
		return false, c.dump(ctx)
	case "help", "?":
		fmt.Fprintln(c.out, helpText)
		return false, nil
	case "quit", "exit", "q":
		return false, ErrQuit
	default:
		fmt.Fprintf(c.out, "unknown command %q\n%s\n", cmd, helpText)
		return false, nil
	}
}

func (c *Console) requireArg(arg, what string, fn func() error) error {
	if arg == "" {
		return fmt.Errorf("missing %s", what)
	}
	return fn()
}

func (c *Console) report(err error) {
	var selErr *selection.SelectionError
	switch {
	case errors.As(err, &selErr):
		hint := selErr.Field + "s"
		if selErr.Field == "bus" {
			hint = "show"
		}
		fmt.Fprintf(c.out, "! %v (type %q to see the options)\n", selErr, hint)
	default:
		fmt.Fprintf(c.out, "! %v\n", err)
	}
}

func (c *Console) show(ctx context.Context) error {
	s, err := c.ctrl.Snapshot(ctx)
	if err != nil {
		return err
	}
	if c.renderer != nil {
		render.Project(s, c.renderer)
	}
	return nil
}

func (c *Console) dump(ctx context.Context) error {
	s, err := c.ctrl.Snapshot(ctx)
	if err != nil {
		return err
	}
	fmt.Fprint(c.out, controller.Dump(s))
	return nil
}

func (c *Console) listRegions(ctx context.Context) error {
	s, err := c.ctrl.Snapshot(ctx)
	if err != nil {
		return err
	}
	if len(s.Regions) == 0 {
		fmt.Fprintln(c.out, "no regions loaded")
		return nil
	}
	for _, r := range s.Regions {
		fmt.Fprintln(c.out, "  "+r)
	}
	return nil
}

func (c *Console) listStops(ctx context.Context) error {
	s, err := c.ctrl.Snapshot(ctx)
	if err != nil {
		return err
	}
	switch {
	case s.Region == "":
		fmt.Fprintln(c.out, "choose a region first")
	case len(s.Stops) == 0:
		msg := render.StopsView(s).Empty
		if msg == "" {
			msg = "stops are still loading"
		}
		fmt.Fprintln(c.out, msg)
	default:
		for _, st := range s.Stops {
			fmt.Fprintln(c.out, "  "+st.Name)
		}
	}
	return nil
}

// splitCommand splits "stop Main St, 12" into ("stop", "Main St, 12").
func splitCommand(line string) (string, string) {
	line = strings.TrimSpace(line)
	cmd, arg, _ := strings.Cut(line, " ")
	return strings.ToLower(cmd), strings.TrimSpace(arg)
}
