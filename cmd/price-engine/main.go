package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/Tosi-eu/abrigo-helena-dornfeld-backend-sub000/pkg/config"
	"github.com/Tosi-eu/abrigo-helena-dornfeld-backend-sub000/pkg/jobs"
	"github.com/Tosi-eu/abrigo-helena-dornfeld-backend-sub000/pkg/logging"
	"github.com/Tosi-eu/abrigo-helena-dornfeld-backend-sub000/pkg/metrics"
	"github.com/Tosi-eu/abrigo-helena-dornfeld-backend-sub000/pkg/scheduler"
	"github.com/Tosi-eu/abrigo-helena-dornfeld-backend-sub000/pkg/server/api"
	"github.com/Tosi-eu/abrigo-helena-dornfeld-backend-sub000/pkg/server/sources"
	"github.com/Tosi-eu/abrigo-helena-dornfeld-backend-sub000/pkg/tracing"
	"github.com/Tosi-eu/abrigo-helena-dornfeld-backend-sub000/pkg/version"
)

func main() {
	app := &cli.App{
		Name:    "price-engine",
		Usage:   "Discover market prices for medicines and care inputs",
		Version: version.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "config/config.yaml",
				Usage:   "Path to configuration file",
				EnvVars: []string{"PRICE_ENGINE_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Override the configured log level (debug, info, warn, error)",
				EnvVars: []string{"PRICE_ENGINE_LOG_LEVEL"},
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			searchCommand(),
			invalidateCommand(),
			backfillCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setup loads and validates configuration and initializes logging.
func setup(c *cli.Context) (*config.Config, *logging.Logger, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, nil, err
	}
	if lvl := c.String("log-level"); lvl != "" {
		cfg.Logging.Level = lvl
	}
	if err := config.Validate(cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	if err != nil {
		return nil, nil, fmt.Errorf("initialize logger: %w", err)
	}
	logging.SetGlobal(logger)
	return cfg, logger, nil
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Run the HTTP API, the background job queue and the backfill scheduler",
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	cfg, logger, err := setup(c)
	if err != nil {
		return err
	}
	logger.Info("Starting price engine", "version", version.Version)

	if cfg.Metrics.Enabled {
		metrics.Init()
		go func() {
			logger.Info("Starting metrics server", "addr", cfg.Metrics.Addr, "path", cfg.Metrics.Path)
			if err := metrics.ServeHTTP(cfg.Metrics.Addr, cfg.Metrics.Path); err != nil {
				logger.Error("Metrics server failed", "error", err)
			}
		}()
	}

	ctx, cancel := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	tp, err := tracing.InitProvider(ctx, tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		Endpoint:    cfg.Tracing.Endpoint,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		return err
	}
	if cfg.Tracing.Enabled {
		logger.Info("Exporting traces", "endpoint", cfg.Tracing.Endpoint, "sample_rate", cfg.Tracing.SampleRate)
	}

	e, err := buildEngine(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer e.Close()

	queue := jobs.NewQueue(e.service, e.updater(), jobs.Options{
		Workers:   cfg.Jobs.Workers,
		QueueSize: cfg.Jobs.QueueSize,
		Logger:    logger,
	})

	hub := api.NewStreamHub(logger)
	go hub.Run(ctx)
	go forwardOutcomes(queue, hub, logger)

	var backfill *scheduler.Backfill
	if cfg.Backfill.Enabled {
		if e.items == nil {
			logger.Warn("Backfill enabled without a database, skipping")
		} else {
			backfill, err = scheduler.NewBackfill(e.items, queue, scheduler.Options{
				Schedule:  cfg.Backfill.Schedule,
				BatchSize: cfg.Backfill.BatchSize,
				Logger:    logger,
			})
			if err != nil {
				return err
			}
			backfill.Start()
		}
	}

	server := api.NewServer(api.Options{
		Addr:         cfg.Server.HTTP.Addr,
		Service:      e.service,
		Jobs:         queue,
		History:      e.history,
		Stream:       hub,
		ReadTimeout:  cfg.Server.ReadTimeout.ToDuration(),
		WriteTimeout: cfg.Server.WriteTimeout.ToDuration(),
		Logger:       logger,
	})

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Start()
	}()

	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case err := <-errChan:
		if err != nil {
			logger.Error("HTTP server failed", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	logger.Info("Shutting down gracefully...")
	if err := server.Stop(shutdownCtx); err != nil {
		logger.Warn("HTTP server shutdown failed", "error", err)
	}
	if backfill != nil {
		backfill.Stop()
	}
	if err := queue.Close(shutdownCtx); err != nil {
		logger.Warn("Job queue did not drain in time", "error", err)
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Trace provider shutdown failed", "error", err)
	}
	logger.Info("Shutdown complete")
	return nil
}

// forwardOutcomes streams finished jobs to WebSocket clients and logs
// failures until the queue is closed.
func forwardOutcomes(queue *jobs.Queue, hub *api.StreamHub, logger *logging.Logger) {
	results, failures := queue.Results(), queue.Errors()
	for results != nil || failures != nil {
		select {
		case o, ok := <-results:
			if !ok {
				results = nil
				continue
			}
			hub.Publish(o)
		case f, ok := <-failures:
			if !ok {
				failures = nil
				continue
			}
			if errors.Is(f, jobs.ErrNoPriceFound) {
				logger.Info("No price found for item", "job_id", f.JobID, "item", f.Request.Query.ItemName)
				continue
			}
			logger.Warn("Price job failed", "job_id", f.JobID, "item", f.Request.Query.ItemName, "error", f.Err)
		}
	}
}

func searchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Run one price search and print the result as JSON",
		ArgsUsage: "<item name>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "type", Aliases: []string{"t"}, Value: string(sources.ItemTypeMedicine), Usage: "Item type (medicine, input)"},
			&cli.StringFlag{Name: "dosage", Aliases: []string{"d"}, Usage: "Medicine dosage, e.g. 500mg"},
			&cli.StringFlag{Name: "unit", Aliases: []string{"u"}, Usage: "Measurement unit"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.ShowSubcommandHelp(c)
			}
			itemType, err := sources.ParseItemType(c.String("type"))
			if err != nil {
				return err
			}

			cfg, logger, err := setup(c)
			if err != nil {
				return err
			}
			e, err := buildEngine(c.Context, cfg, logger)
			if err != nil {
				return err
			}
			defer e.Close()

			result, err := e.service.SearchPrice(c.Context, sources.Query{
				ItemName:        c.Args().First(),
				ItemType:        itemType,
				Dosage:          c.String("dosage"),
				MeasurementUnit: c.String("unit"),
			})
			if err != nil {
				return err
			}
			if result == nil {
				return cli.Exit("no price found", 2)
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}
}

func invalidateCommand() *cli.Command {
	return &cli.Command{
		Name:      "invalidate",
		Usage:     "Drop cached prices of one item, or of a whole item type with --all",
		ArgsUsage: "[item name]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "type", Aliases: []string{"t"}, Value: string(sources.ItemTypeMedicine), Usage: "Item type (medicine, input)"},
			&cli.StringFlag{Name: "dosage", Aliases: []string{"d"}, Usage: "Medicine dosage"},
			&cli.BoolFlag{Name: "all", Usage: "Drop every cached price of the item type"},
		},
		Action: func(c *cli.Context) error {
			itemType, err := sources.ParseItemType(c.String("type"))
			if err != nil {
				return err
			}
			if !c.Bool("all") && c.NArg() != 1 {
				return cli.ShowSubcommandHelp(c)
			}

			cfg, logger, err := setup(c)
			if err != nil {
				return err
			}
			e, err := buildEngine(c.Context, cfg, logger)
			if err != nil {
				return err
			}
			defer e.Close()

			if c.Bool("all") {
				return e.service.InvalidateItemType(c.Context, itemType)
			}
			return e.service.InvalidatePriceCache(c.Context, c.Args().First(), itemType, c.String("dosage"))
		},
	}
}

func backfillCommand() *cli.Command {
	return &cli.Command{
		Name:  "backfill",
		Usage: "Search prices for unpriced items once and store them",
		Action: func(c *cli.Context) error {
			cfg, logger, err := setup(c)
			if err != nil {
				return err
			}
			e, err := buildEngine(c.Context, cfg, logger)
			if err != nil {
				return err
			}
			defer e.Close()
			if e.items == nil {
				return errors.New("backfill requires database.dsn")
			}

			queue := jobs.NewQueue(e.service, e.items, jobs.Options{
				Workers:   cfg.Jobs.Workers,
				QueueSize: cfg.Jobs.QueueSize,
				Logger:    logger,
			})
			b, err := scheduler.NewBackfill(e.items, queue, scheduler.Options{
				Schedule:  cfg.Backfill.Schedule,
				BatchSize: cfg.Backfill.BatchSize,
				Logger:    logger,
			})
			if err != nil {
				return err
			}

			report, err := b.RunNow(c.Context)
			if err != nil {
				return err
			}

			done := make(chan struct{})
			updated := 0
			go func() {
				defer close(done)
				for o := range queue.Results() {
					if o.Updated {
						updated++
					}
				}
			}()
			go func() {
				for f := range queue.Errors() {
					logger.Warn("Price job failed", "job_id", f.JobID, "item", f.Request.Query.ItemName, "error", f.Err)
				}
			}()

			if err := queue.Close(c.Context); err != nil {
				return err
			}
			<-done
			logger.Info("Backfill finished", "listed", report.Listed, "submitted", report.Submitted, "updated", updated)
			return nil
		},
	}
}
