package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"stoplookup.onebusaway.org/internal/app"
	"stoplookup.onebusaway.org/internal/appconf"
	"stoplookup.onebusaway.org/internal/clock"
	"stoplookup.onebusaway.org/internal/console"
	"stoplookup.onebusaway.org/internal/controller"
	"stoplookup.onebusaway.org/internal/location"
	"stoplookup.onebusaway.org/internal/logging"
	"stoplookup.onebusaway.org/internal/metrics"
	"stoplookup.onebusaway.org/internal/render"
	"stoplookup.onebusaway.org/internal/transit"
)

// ipLookupTimeout bounds the optional IP geolocation call so a slow lookup
// service cannot hold up startup.
const ipLookupTimeout = 10 * time.Second

// BuildApplication validates cfg and wires the shared dependencies.
func BuildApplication(cfg appconf.Config, logOutput io.Writer) (*app.Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := logging.New(cfg.LogFormat, cfg.Verbose, logOutput)
	m := metrics.NewWithLogger(logger)
	clk := clock.RealClock{}

	client := transit.NewClient(cfg.Server,
		transit.WithLogger(logger),
		transit.WithMetrics(m),
		transit.WithClock(clk),
		transit.WithRateLimit(cfg.RateLimit),
		transit.WithTimeout(cfg.Timeout),
	)

	return &app.Application{
		Config:  cfg,
		Logger:  logger,
		Client:  client,
		Locator: buildLocator(cfg, logger),
		Metrics: m,
	}, nil
}

// buildLocator prefers configured coordinates, then the IP lookup service.
func buildLocator(cfg appconf.Config, logger *slog.Logger) location.Provider {
	if !cfg.Locate {
		return location.NewStatic(nil, false)
	}

	var chain location.Chain
	if cfg.HasCoordinates() {
		chain = append(chain, location.NewStatic(&location.Coordinates{
			Latitude:  *cfg.Latitude,
			Longitude: *cfg.Longitude,
		}, true))
	}
	if cfg.IPLookupURL != "" {
		chain = append(chain, location.NewIPLookup(cfg.IPLookupURL, &http.Client{Timeout: ipLookupTimeout}, logger))
	}
	return chain
}

// runInteractive starts the controller loop and hands the terminal to the
// console until the user quits or ctx is cancelled.
func runInteractive(ctx context.Context, application *app.Application, in io.Reader, out io.Writer) error {
	if addr := application.Config.MetricsAddr; addr != "" {
		if err := application.Metrics.Serve(addr); err != nil {
			return err
		}
		application.Logger.Info("serving metrics", slog.String("addr", addr))
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = application.Metrics.Shutdown(shutdownCtx)
		}()
	}

	w := console.NewSyncWriter(out)
	renderer := render.NewText(w)
	ctrl := controller.New(controller.Config{
		API:      application.Client,
		Locator:  application.Locator,
		Renderer: renderer,
		Logger:   application.Logger,
		Metrics:  application.Metrics,
	})

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		ctrl.Run(runCtx)
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()

	if err := ctrl.Init(runCtx); err != nil {
		return err
	}
	con := console.New(ctrl, renderer, in, w)
	if !isTerminal(in) {
		con.SettleWait = -1
	}
	if err := waitForStartup(runCtx, ctrl, con.SettleWait); err != nil {
		return err
	}
	err := con.Run(runCtx)
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// waitForStartup gives the nearest-stop pre-selection up to wait to finish
// before the prompt appears. A negative wait waits for it to finish.
func waitForStartup(ctx context.Context, ctrl *controller.Controller, wait time.Duration) error {
	if wait >= 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, wait)
		defer cancel()
	}
	err := ctrl.Settled(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

// isTerminal reports whether in is an interactive terminal. Piped and
// redirected input is treated as a script.
func isTerminal(in io.Reader) bool {
	f, ok := in.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	return err == nil && fi.Mode()&os.ModeCharDevice != 0
}
