package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"stoplookup.onebusaway.org/internal/app"
	"stoplookup.onebusaway.org/internal/appconf"
	"stoplookup.onebusaway.org/internal/buildinfo"
	"stoplookup.onebusaway.org/internal/location"
	"stoplookup.onebusaway.org/internal/render"
	"stoplookup.onebusaway.org/internal/transit"
)

// flagValues receives the raw persistent flags. Only flags the user actually
// set override the defaults and the config file.
type flagValues struct {
	configPath  string
	server      string
	lat         float64
	lon         float64
	noLocate    bool
	ipLookupURL string
	rateLimit   float64
	timeout     time.Duration
	metricsAddr string
	verbose     bool
	logFormat   string
}

func (f *flagValues) register(fs *pflag.FlagSet) {
	def := appconf.Default()
	fs.StringVarP(&f.configPath, "config", "c", "", "path to a YAML config file")
	fs.StringVarP(&f.server, "server", "s", def.Server, "base URL of the stop lookup backend")
	fs.Float64Var(&f.lat, "lat", 0, "latitude used to find the nearest stop")
	fs.Float64Var(&f.lon, "lon", 0, "longitude used to find the nearest stop")
	fs.BoolVar(&f.noLocate, "no-locate", false, "do not look up the current position")
	fs.StringVar(&f.ipLookupURL, "ip-lookup-url", "", "ip-api compatible geolocation URL, e.g. "+appconf.DefaultIPLookupURL)
	fs.Float64Var(&f.rateLimit, "rate-limit", def.RateLimit, "maximum backend requests per second (0 = unlimited)")
	fs.DurationVar(&f.timeout, "timeout", def.Timeout, "per-request timeout (0 = none)")
	fs.StringVar(&f.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. localhost:9090")
	fs.BoolVarP(&f.verbose, "verbose", "v", def.Verbose, "enable debug logging")
	fs.StringVar(&f.logFormat, "log-format", def.LogFormat, "log format: text or json")
}

// resolve layers defaults, the optional config file and the changed flags.
func (f *flagValues) resolve(fs *pflag.FlagSet) (appconf.Config, error) {
	cfg := appconf.Default()
	if f.configPath != "" {
		var err error
		if cfg, err = appconf.LoadFile(f.configPath, cfg); err != nil {
			return cfg, err
		}
	}

	if fs.Changed("server") {
		cfg.Server = f.server
	}
	if fs.Changed("lat") {
		lat := f.lat
		cfg.Latitude = &lat
	}
	if fs.Changed("lon") {
		lon := f.lon
		cfg.Longitude = &lon
	}
	if fs.Changed("no-locate") {
		cfg.Locate = !f.noLocate
	}
	if fs.Changed("ip-lookup-url") {
		cfg.IPLookupURL = f.ipLookupURL
	}
	if fs.Changed("rate-limit") {
		cfg.RateLimit = f.rateLimit
	}
	if fs.Changed("timeout") {
		cfg.Timeout = f.timeout
	}
	if fs.Changed("metrics-addr") {
		cfg.MetricsAddr = f.metricsAddr
	}
	if fs.Changed("verbose") {
		cfg.Verbose = f.verbose
	}
	if fs.Changed("log-format") {
		cfg.LogFormat = f.logFormat
	}
	return cfg, nil
}

// NewRootCommand builds the stoplookup command tree. Without a subcommand it
// starts the interactive session on the command's input and output.
func NewRootCommand() *cobra.Command {
	var flags flagValues

	root := &cobra.Command{
		Use:           "stoplookup",
		Short:         "Find transit stops, the buses serving them and their arrivals",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			application, err := flags.build(cmd)
			if err != nil {
				return err
			}
			return runInteractive(cmd.Context(), application, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	flags.register(root.PersistentFlags())

	root.AddCommand(
		regionsCommand(&flags),
		nearestCommand(&flags),
		stopsCommand(&flags),
		busesCommand(&flags),
		scheduleCommand(&flags),
		versionCommand(),
	)
	return root
}

func (f *flagValues) build(cmd *cobra.Command) (*app.Application, error) {
	cfg, err := f.resolve(cmd.Flags())
	if err != nil {
		return nil, err
	}
	return BuildApplication(cfg, cmd.ErrOrStderr())
}

func regionsCommand(flags *flagValues) *cobra.Command {
	return &cobra.Command{
		Use:   "regions",
		Short: "List every region known to the backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			application, err := flags.build(cmd)
			if err != nil {
				return err
			}
			regions, err := application.Client.AllRegions(cmd.Context())
			if err != nil {
				return err
			}
			return printLines(cmd.OutOrStdout(), regions, "No regions available")
		},
	}
}

func nearestCommand(flags *flagValues) *cobra.Command {
	return &cobra.Command{
		Use:   "nearest",
		Short: "Show the stop closest to the current position",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			application, err := flags.build(cmd)
			if err != nil {
				return err
			}
			coords, err := application.Locator.Locate(cmd.Context())
			if err != nil {
				return fmt.Errorf("finding the current position: %w", err)
			}
			stop, err := application.Client.NearestStop(cmd.Context(), coords)
			if errors.Is(err, transit.ErrNoResults) {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), "No stop found near "+coords.String())
				return err
			}
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", stop.ID, stop.Name, stop.Region)
			return err
		},
	}
}

func stopsCommand(flags *flagValues) *cobra.Command {
	return &cobra.Command{
		Use:   "stops <region>",
		Short: "List the stops of a region",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := flags.build(cmd)
			if err != nil {
				return err
			}
			stops, err := application.Client.RegionStops(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			lines := make([]string, 0, len(stops))
			for _, s := range stops {
				lines = append(lines, s.ID.String()+"\t"+s.Name)
			}
			return printLines(cmd.OutOrStdout(), lines, render.NoStopsMessage)
		},
	}
}

func busesCommand(flags *flagValues) *cobra.Command {
	return &cobra.Command{
		Use:   "buses <stop-id>",
		Short: "List the buses serving a stop",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := flags.build(cmd)
			if err != nil {
				return err
			}
			buses, err := application.Client.StopBuses(cmd.Context(), transit.ParseStopID(args[0]))
			if err != nil {
				return err
			}
			routes := make([]string, 0, len(buses))
			for _, b := range buses {
				routes = append(routes, b.Route)
			}
			return printLines(cmd.OutOrStdout(), routes, render.NoBusesMessage)
		},
	}
}

func scheduleCommand(flags *flagValues) *cobra.Command {
	return &cobra.Command{
		Use:   "schedule <stop-id> <route>",
		Short: "Show the arrival schedule of a bus at a stop",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := flags.build(cmd)
			if err != nil {
				return err
			}
			bus := transit.Bus{Route: args[1], StopID: transit.ParseStopID(args[0])}
			schedule, err := application.Client.Schedule(cmd.Context(), bus)
			if err != nil {
				return err
			}
			return printLines(cmd.OutOrStdout(), schedule, render.NoScheduleMessage)
		},
	}
}

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "stoplookup "+buildinfo.String())
			return err
		},
	}
}

func printLines(w io.Writer, lines []string, empty string) error {
	if len(lines) == 0 {
		_, err := fmt.Fprintln(w, empty)
		return err
	}
	for _, l := range lines {
		if _, err := fmt.Fprintln(w, l); err != nil {
			return err
		}
	}
	return nil
}

// execute runs the command tree with ctx and returns the process exit code.
func execute(ctx context.Context, root *cobra.Command, stderr io.Writer) int {
	if err := root.ExecuteContext(ctx); err != nil {
		if errors.Is(err, location.ErrLocationUnavailable) {
			fmt.Fprintln(stderr, "error:", err, "(try --lat and --lon)")
			return 1
		}
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	return 0
}
