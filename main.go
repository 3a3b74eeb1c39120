package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"bilbasen-scraper/config"
	"bilbasen-scraper/models"
	"bilbasen-scraper/notify"
	"bilbasen-scraper/scraper"
	"bilbasen-scraper/scraper/bilbasen"
	"bilbasen-scraper/services"
	"bilbasen-scraper/storage"
	"bilbasen-scraper/utils"
)

// shutdownSignals cancel the scrape; collected listings are still saved.
var shutdownSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}

func main() {
	cfg := config.Load()
	if err := parseFlags(cfg, os.Args[1:]); err != nil {
		os.Exit(2)
	}

	logger := utils.NewLogger(utils.ParseLevel(cfg.LogLevel))
	setupTracing()

	ctx, stop := signal.NotifyContext(context.Background(), shutdownSignals...)
	defer stop()

	filters, err := config.LoadFilters(cfg.FiltersPath)
	if err != nil {
		logger.Error("Invalid filters: %v", err)
		os.Exit(1)
	}

	fetcher, closeFetcher, err := newFetcher(cfg, filters, logger)
	if err != nil {
		logger.Error("Failed to set up %s transport: %v", cfg.Transport, err)
		os.Exit(1)
	}

	a := &app{
		cfg:    cfg,
		logger: logger,
		stdout: os.Stdout,
		now:    time.Now,
		newID:  uuid.NewString,
	}
	code := a.run(ctx, fetcher, filters)
	closeFetcher()
	stop()
	os.Exit(code)
}

// parseFlags applies command-line overrides on top of cfg.
func parseFlags(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("bilbasen-scraper", flag.ContinueOnError)
	fs.IntVar(&cfg.MaxPages, "max-pages", cfg.MaxPages, "maximum number of pages to fetch (0 = all)")
	fs.Float64Var(&cfg.DelaySeconds, "delay", cfg.DelaySeconds, "seconds to wait between page requests")
	fs.StringVar(&cfg.OutputFile, "output", cfg.OutputFile, "snapshot filename (default bilbasen_cars_<timestamp>.json)")
	fs.StringVar(&cfg.FiltersPath, "filters", cfg.FiltersPath, "YAML filter file (default built-in filters)")
	fs.StringVar(&cfg.Transport, "transport", cfg.Transport, "standard, chrome-tls or browser")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg.Transport = strings.ToLower(strings.TrimSpace(cfg.Transport))
	return nil
}

// setupTracing installs the W3C trace-context propagator so outgoing NATS
// headers carry the caller's trace. Spans are recorded only when the
// embedding process registers a TracerProvider.
func setupTracing() {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))
}

func newFetcher(cfg *config.Config, filters models.FilterPayload, logger *utils.Logger) (scraper.Fetcher, func(), error) {
	if cfg.Transport == config.TransportBrowser {
		bc, err := bilbasen.NewBrowserClient(bilbasen.BrowserOptions{
			Endpoint:  cfg.BaseURL,
			Origin:    cfg.Origin,
			Timeout:   cfg.RequestTimeout,
			ChromeBin: cfg.ChromeBin,
		}, filters, logger)
		if err != nil {
			return nil, nil, err
		}
		return bc, func() { _ = bc.Close() }, nil
	}

	hc, err := bilbasen.NewHTTPClient(cfg.Transport, cfg.RequestTimeout)
	if err != nil {
		return nil, nil, err
	}
	c, err := bilbasen.NewClient(cfg.BaseURL, cfg.Origin, filters, hc)
	if err != nil {
		return nil, nil, err
	}
	return c, func() { hc.CloseIdleConnections() }, nil
}

func newDelay(cfg *config.Config) utils.Delay {
	if cfg.Pacing == config.PacingRate {
		return utils.NewRateDelay(cfg.Delay())
	}
	return utils.SleepDelay(cfg.Delay())
}

type app struct {
	cfg    *config.Config
	logger *utils.Logger
	stdout io.Writer
	now    func() time.Time
	newID  func() string
}

// run drives one scrape and returns the process exit code.
func (a *app) run(ctx context.Context, fetcher scraper.Fetcher, filters models.FilterPayload) int {
	desc := filters.Describe()
	a.logger.Info("=== Bilbasen scraper starting ===")
	a.logger.Info("Filters: %s", desc)
	a.logger.Info("Config: max pages %d | delay %.1fs | transport %s | pacing %s",
		a.cfg.MaxPages, a.cfg.DelaySeconds, orDefault(a.cfg.Transport, config.TransportStandard), a.cfg.Pacing)

	engine := scraper.NewEngine(fetcher, newDelay(a.cfg), a.logger)
	state := engine.Run(ctx, a.cfg.MaxPages)

	if state.Err != nil {
		a.logger.Warn("Stopped early: %v", state.Err)
	}
	if state.Count() == 0 {
		fmt.Fprintln(a.stdout, "No data was scraped.")
		return 0
	}

	snap := models.NewSnapshot(a.newID(), a.now(), desc, state.Listings, state.DeclaredTotal)
	writer := storage.NewJSONWriter(a.cfg.OutputDir, a.cfg.LatestFile)
	path, err := writer.Write(snap, a.cfg.OutputFile)
	if err != nil {
		if path == "" {
			a.logger.Error("Failed to save snapshot: %v", err)
			return 1
		}
		a.logger.Warn("Snapshot saved but latest copy failed: %v", err)
	}
	a.logger.Info("Saved %d listings to %s", snap.TotalListings, path)

	// Sinks still run after an interrupt.
	sinkCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Minute)
	defer cancel()
	a.writeSinks(sinkCtx, snap)
	a.announce(sinkCtx, snap, path)

	summary := services.NewSummaryService(a.logger)
	summary.Print(a.stdout, summary.Generate(state.Listings))
	fmt.Fprintf(a.stdout, "  Done. Snapshot → %s\n\n", path)
	return 0
}

func (a *app) writeSinks(ctx context.Context, snap *models.Snapshot) {
	if a.cfg.CSVOutputPath != "" {
		csvWriter, err := storage.NewCSVWriter(a.cfg.CSVOutputPath)
		if err != nil {
			a.logger.Error("Failed to create CSV writer: %v", err)
		} else {
			a.writeSink(ctx, "CSV", csvWriter, snap)
		}
	}

	if a.cfg.PostgresEnabled {
		pgWriter, err := storage.NewPostgresWriter(ctx, a.cfg.DSN())
		if err != nil {
			a.logger.Error("Failed to connect to PostgreSQL: %v", err)
		} else {
			a.writeSink(ctx, "PostgreSQL", pgWriter, snap)
		}
	}
}

func (a *app) writeSink(ctx context.Context, name string, sink storage.ListingSink, snap *models.Snapshot) {
	defer sink.Close()
	if err := sink.WriteListings(ctx, snap); err != nil {
		a.logger.Error("%s write failed: %v", name, err)
		return
	}
	a.logger.Info("Listings stored in %s", name)
}

func (a *app) announce(ctx context.Context, snap *models.Snapshot, path string) {
	var n notify.Notifier = notify.Nop{}
	if a.cfg.NATSURL != "" {
		nn, err := notify.NewNATSNotifier(a.cfg.NATSURL, a.cfg.NATSSubject)
		if err != nil {
			a.logger.Error("%v", err)
			return
		}
		n = nn
	}
	defer n.Close()

	ev := models.SnapshotWritten{
		RunID:         snap.RunID,
		Path:          path,
		TotalListings: snap.TotalListings,
		ScrapedAt:     snap.ScrapedAt,
	}
	if err := n.SnapshotWritten(ctx, ev); err != nil {
		a.logger.Error("%v", err)
		return
	}
	if a.cfg.NATSURL != "" {
		a.logger.Info("Announced snapshot on %s", a.cfg.NATSSubject)
	}
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
