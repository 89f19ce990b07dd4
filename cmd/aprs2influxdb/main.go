// aprs2influxdb reads the APRS-IS feed and writes decoded packets to
// InfluxDB.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/xtxerr/aprs2influxdb/config"
	"github.com/xtxerr/aprs2influxdb/internal/aprs"
	"github.com/xtxerr/aprs2influxdb/internal/aprsis"
	appconfig "github.com/xtxerr/aprs2influxdb/internal/config"
	"github.com/xtxerr/aprs2influxdb/internal/errors"
	"github.com/xtxerr/aprs2influxdb/internal/ingest"
	"github.com/xtxerr/aprs2influxdb/internal/logging"
	"github.com/xtxerr/aprs2influxdb/internal/metrics"
	"github.com/xtxerr/aprs2influxdb/internal/storage/backend"
)

// Version is set at build time via ldflags
var Version = "dev"

var log = logging.Component("main")

func main() {
	if err := run(os.Args[1:]); err != nil {
		if !errors.Is(err, pflag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	}
}

func run(args []string) error {
	fs := pflag.NewFlagSet("aprs2influxdb", pflag.ContinueOnError)
	cfgPath := fs.String(appconfig.FlagConfig, "", "YAML configuration file")
	showVersion := fs.Bool("version", false, "print version and exit")
	flags := appconfig.BindFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *showVersion {
		fmt.Printf("aprs2influxdb %s\n", Version)
		return nil
	}

	// Flags beat the environment, which beats the file.
	sources := []appconfig.Source{flags, appconfig.NewEnvSource()}
	if *cfgPath != "" {
		file, err := appconfig.LoadFile(*cfgPath)
		if err != nil {
			return err
		}
		sources = append(sources, file)
	}

	cfg, err := appconfig.Load(sources...)
	if err != nil {
		return fmt.Errorf("configuration: %w", err)
	}

	logging.Init(cfg.Log.SlogLevel(), cfg.Log.JSON)
	log.Info("starting", "version", Version)
	cfg.Print(log)

	opener, err := backend.NewOpener(cfg.Storage)
	if err != nil {
		return err
	}
	metrics.Init()

	orch := ingest.New(cfg, ingest.Deps{
		Dial:     ingest.APRSIS(aprsis.NewDialer(aprsis.OptionsFromConfig(cfg.APRS, Version))),
		Open:     opener,
		Decoder:  aprs.Parser{},
		Enricher: aprs.NewTelemetryEnricher(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if err := orch.Start(ctx); err != nil {
		if errors.IsAuthError(err) {
			log.Error("storage rejected credentials", "error", err)
		} else {
			log.Error("startup failed", "error", err)
		}
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := orch.RunUntilClosed(gctx)
		if err == nil {
			// Upstream ended; take the helpers down with us.
			return errors.ErrConnectionClosed
		}
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		return ingest.ReportStatus(gctx, orch.Stats(), cfg.StatusInterval)
	})
	if cfg.MetricsListen != "" {
		g.Go(func() error {
			return metrics.Serve(gctx, cfg.MetricsListen)
		})
	}

	runErr := g.Wait()
	if ctx.Err() != nil {
		log.Info("shutdown requested")
		runErr = nil
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), config.DefaultShutdownTimeout)
	defer cancel()
	if err := orch.Stop(stopCtx); err != nil {
		log.Warn("stop", "error", err)
	}

	snap := orch.Stats().Snapshot()
	log.Info("stopped",
		"received", snap.Received,
		"written", snap.Written,
		"skipped", snap.Skipped,
		"decode_errors", snap.DecodeErrors,
		"write_errors", snap.WriteErrors,
	)
	return runErr
}
