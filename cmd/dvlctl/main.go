// Command dvlctl talks to a Water Linked DVL A50 from the shell.
//
// Usage:
//
//	dvlctl [flags] <command> [args]
//
// Commands:
//
//	monitor               stream velocity and dead reckoning reports as JSON lines
//	calibrate-gyro        calibrate the gyroscope
//	trigger-ping          request one acoustic ping
//	reset-dead-reckoning  restart dead reckoning at the current position
//	set-config <json>     send configuration parameters
//	get-config            print the current configuration
//	mcp                   serve the DVL as MCP tools over stdio
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	dvla50 "github.com/wagiedev/dvl-a50-sdk-go"
)

// Build information. Populated at build-time.
var version = "dev"

var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr, nil)

	stop()

	if err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "dvlctl: %v\n", err)
		}

		os.Exit(1)
	}
}

// cliFlags holds the parsed command line.
type cliFlags struct {
	configPath  string
	addr        string
	port        int
	timeout     time.Duration
	metricsAddr string
	verbose     bool
	validate    bool
}

func parseFlags(args []string, stderr io.Writer) (*cliFlags, *flag.FlagSet, error) {
	f := &cliFlags{}

	fs := flag.NewFlagSet("dvlctl", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&f.configPath, "config", "", "Path to a TOML configuration file")
	fs.StringVar(&f.addr, "addr", "", "DVL host name or IP (overrides config)")
	fs.IntVar(&f.port, "port", 0, "DVL TCP port (overrides config)")
	fs.DurationVar(&f.timeout, "timeout", 0, "Command reply timeout (overrides config)")
	fs.StringVar(&f.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	fs.BoolVar(&f.verbose, "v", false, "Enable debug logging")
	fs.BoolVar(&f.validate, "validate", false, "Validate set-config parameters before sending")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: dvlctl [flags] <command> [args]\n\n")
		fmt.Fprintf(stderr, "Commands:\n")
		fmt.Fprintf(stderr, "  monitor, calibrate-gyro, trigger-ping, reset-dead-reckoning,\n")
		fmt.Fprintf(stderr, "  set-config <json>, get-config, mcp\n\n")
		fmt.Fprintf(stderr, "Flags:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, nil, errUsage
	}

	return f, fs, nil
}

// resolveConfig merges defaults, the config file and explicitly set flags.
func resolveConfig(f *cliFlags, fs *flag.FlagSet) (cliConfig, error) {
	cfg := defaultConfig()

	if f.configPath != "" {
		loaded, err := loadConfig(f.configPath)
		if err != nil {
			return cliConfig{}, err
		}

		cfg = loaded
	}

	var err error

	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "addr":
			cfg.Address = f.addr
		case "port":
			if f.port <= 0 || f.port > 65535 {
				err = fmt.Errorf("invalid port: %d", f.port)
			}

			cfg.Port = f.port
		case "timeout":
			if f.timeout <= 0 {
				err = fmt.Errorf("invalid timeout: %s", f.timeout)
			}

			cfg.CommandTimeout = f.timeout
		case "metrics-addr":
			cfg.MetricsAddr = f.metricsAddr
		case "v":
			if f.verbose {
				cfg.LogLevel = slog.LevelDebug
			}
		}
	})

	return cfg, err
}

// run executes dvlctl. extra options are appended to the driver options.
func run(ctx context.Context, args []string, stdout, stderr io.Writer, extra []dvla50.Option) error {
	f, fs, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	cfg, err := resolveConfig(f, fs)
	if err != nil {
		return err
	}

	cmd, err := parseCommand(fs.Args())
	if err != nil {
		fs.Usage()

		return err
	}

	if cmd.name == cmdSetConfig && f.validate {
		if err := dvla50.ValidateConfig(cmd.config); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
	}

	log := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))

	opts := cfg.driverOptions(log)

	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)

		srv, err := startMetricsServer(log, cfg.MetricsAddr, reg)
		if err != nil {
			return err
		}

		defer srv.shutdown()

		opts = append(opts, dvla50.WithMetricsRegisterer(reg))
	}

	opts = append(opts, extra...)

	return dvla50.WithDriver(ctx, func(d dvla50.Driver) error {
		return cmd.execute(ctx, log, d, cfg, stdout)
	}, opts...)
}
