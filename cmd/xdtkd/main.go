// xdtkd is the XDTK controller daemon.
//
// It discovers XR and touch devices on the local network over UDP,
// tracks their state, and turns their messages into events that are
// fanned out to MQTT, OSC and WebSocket clients. Sensor snapshots can be
// sampled into InfluxDB and discovery registrations logged to SQLite.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/google/xdtk/internal/api"
	"github.com/google/xdtk/internal/audit"
	"github.com/google/xdtk/internal/bridges/mqttbridge"
	"github.com/google/xdtk/internal/bridges/osc"
	"github.com/google/xdtk/internal/controller"
	"github.com/google/xdtk/internal/device"
	"github.com/google/xdtk/internal/dispatch"
	"github.com/google/xdtk/internal/infrastructure/config"
	"github.com/google/xdtk/internal/infrastructure/database"
	"github.com/google/xdtk/internal/infrastructure/influxdb"
	"github.com/google/xdtk/internal/infrastructure/logging"
	"github.com/google/xdtk/internal/infrastructure/mqtt"
	"github.com/google/xdtk/internal/telemetry"
	"github.com/google/xdtk/internal/transceiver"
	"github.com/google/xdtk/migrations"
)

// Version information, set at build time via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// options holds parsed command-line flags.
type options struct {
	configPath  string
	showVersion bool
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
	if opts.showVersion {
		printVersion(os.Stdout)
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, opts.configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// parseFlags parses args. The config path falls back to XDTK_CONFIG and
// then to the default.
func parseFlags(args []string) (options, error) {
	var opts options
	fs := pflag.NewFlagSet("xdtkd", pflag.ContinueOnError)
	fs.StringVarP(&opts.configPath, "config", "c", "", "path to the YAML config file (env XDTK_CONFIG)")
	fs.BoolVar(&opts.showVersion, "version", false, "print version information and exit")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if fs.NArg() > 0 {
		return options{}, fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}
	if opts.configPath == "" {
		opts.configPath = os.Getenv("XDTK_CONFIG")
	}
	if opts.configPath == "" {
		opts.configPath = defaultConfigPath
	}
	return opts, nil
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "xdtkd %s (commit %s, built %s)\n", version, commit, date)
}

// run wires every component and blocks until ctx is cancelled or a
// component fails.
func run(ctx context.Context, configPath string) error {
	log := logging.Default()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	sessionID := uuid.NewString()
	log.Info("starting xdtkd",
		"version", version,
		"commit", commit,
		"build_date", date,
		"config", configPath,
		"session_id", sessionID,
	)

	stats := map[string]func() any{}
	health := map[string]api.HealthChecker{}

	// Transport and registry
	registry := device.NewRegistry()
	registry.SetLogger(log.Component("registry"))
	tr, err := transceiver.New(
		transceiver.ConfigFrom(cfg.Transport),
		registry,
		transceiver.DeclarationsFrom(cfg.Devices),
		log.Component("transceiver"),
	)
	if err != nil {
		return fmt.Errorf("creating transceiver: %w", err)
	}
	tr.SetExpiryPolicy(transceiver.PolicyFor(cfg.Registry.IdleTimeout))
	stats["transceiver"] = func() any { return tr.Stats() }
	health["transceiver"] = tr

	broadcaster := dispatch.NewBroadcaster()
	broadcaster.SetLogger(log.Component("dispatch"))
	stats["dispatch"] = func() any { return broadcaster.Stats() }

	loop := controller.New(tr, broadcaster, cfg.Loop.TickInterval)
	loop.SetLogger(log.Component("loop"))
	stats["loop"] = func() any { return loop.Stats() }

	g, gctx := errgroup.WithContext(ctx)

	// Registration log
	var registrations audit.Repository
	if cfg.Database.Enabled {
		db, err := database.Open(database.ConfigFrom(cfg.Database))
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer func() {
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		if err := db.Migrate(ctx, migrations.FS); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
		log.Info("database ready", "path", db.Path())

		repo := audit.NewSQLiteRepository(db.DB)
		registrations = repo
		recorder := audit.NewRecorder(repo, sessionID, 0)
		recorder.SetLogger(log.Component("audit"))
		tr.SetOnRegistered(recorder.Record)
		g.Go(func() error { return recorder.Run(gctx) })
		stats["audit"] = func() any { return recorder.Stats() }
		health["database"] = db
	}

	// MQTT event bridge
	if cfg.MQTT.Enabled {
		mqttClient, err := mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		mqttClient.SetLogger(log.Component("mqtt"))
		defer func() {
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		bridge, err := mqttbridge.New(mqttbridge.Options{
			Client:    mqttClient,
			Haptics:   tr,
			QoS:       byte(cfg.MQTT.QoS), // #nosec G115 -- validated to 0..2
			Format:    cfg.MQTT.PayloadFormat,
			QueueSize: cfg.MQTT.QueueSize,
		})
		if err != nil {
			return fmt.Errorf("creating MQTT bridge: %w", err)
		}
		bridge.SetLogger(log.Component("mqttbridge"))
		broadcaster.Subscribe("mqtt", bridge)
		g.Go(func() error { return bridge.Run(gctx) })
		stats["mqtt"] = func() any { return bridge.Stats() }
		health["mqtt"] = mqttClient
	}

	// OSC forwarder
	if cfg.OSC.Enabled {
		fwd, err := osc.New(cfg.OSC)
		if err != nil {
			return fmt.Errorf("creating OSC forwarder: %w", err)
		}
		fwd.SetLogger(log.Component("osc"))
		broadcaster.Subscribe("osc", fwd)
		stats["osc"] = func() any { return fwd.Stats() }
		log.Info("OSC forwarding enabled", "target", fwd.Stats().Target)
	}

	// Sensor telemetry
	if cfg.InfluxDB.Enabled {
		influxClient, err := influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		sampler := telemetry.NewSampler(influxClient, cfg.InfluxDB.SampleInterval, sessionID)
		loop.AddObserver(sampler)
		stats["telemetry"] = func() any { return sampler.Stats() }
		stats["influxdb"] = func() any { return influxClient.Stats() }
		health["influxdb"] = influxClient
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	}

	// HTTP API
	if cfg.API.Enabled {
		srv, err := api.New(api.Deps{
			Config:        cfg.API,
			WS:            cfg.WebSocket,
			Logger:        log.Component("api"),
			Devices:       tr,
			Registrations: registrations,
			Stats:         stats,
			Health:        health,
			Version:       version,
		})
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
		broadcaster.Subscribe("websocket", srv.Hub())
		if err := srv.Start(gctx); err != nil {
			return fmt.Errorf("starting API server: %w", err)
		}
		defer func() {
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	}

	if err := tr.Start(gctx); err != nil {
		return fmt.Errorf("starting transceiver: %w", err)
	}
	defer func() {
		if closeErr := tr.Close(); closeErr != nil {
			log.Error("error closing transceiver", "error", closeErr)
		}
	}()

	g.Go(func() error { return loop.Run(gctx) })

	log.Info("initialisation complete, waiting for devices")
	err = g.Wait()
	log.Info("xdtkd stopped")
	return err
}
