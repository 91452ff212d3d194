package app

import (
	"log/slog"

	"stoplookup.onebusaway.org/internal/appconf"
	"stoplookup.onebusaway.org/internal/location"
	"stoplookup.onebusaway.org/internal/metrics"
	"stoplookup.onebusaway.org/internal/transit"
)

// Application holds the dependencies shared by the interactive session and
// the one-shot commands.
type Application struct {
	Config  appconf.Config
	Logger  *slog.Logger
	Client  *transit.Client
	Locator location.Provider
	Metrics *metrics.Metrics
}
