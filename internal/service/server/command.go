package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tourguard/safety-band/internal/aggregate"
	"github.com/tourguard/safety-band/internal/api"
	"github.com/tourguard/safety-band/internal/clock"
	"github.com/tourguard/safety-band/internal/config"
	"github.com/tourguard/safety-band/internal/engine"
	"github.com/tourguard/safety-band/internal/incident"
	"github.com/tourguard/safety-band/internal/logger"
	"github.com/tourguard/safety-band/internal/metrics"
	"github.com/tourguard/safety-band/internal/notify"
	"github.com/tourguard/safety-band/internal/registry"
	"github.com/tourguard/safety-band/internal/repository/snapshot"
	"github.com/tourguard/safety-band/internal/zone"
)

// Options controls the safety-server process and configuration.
type Options struct {
	// ConfigPath specifies the path to the settings YAML file.
	ConfigPath string
	// ListenAddress provides an optional listen address override for the HTTP server.
	ListenAddress string
	// IncidentDBPath provides an optional incident database path override.
	IncidentDBPath string
	// SnapshotFile provides an optional registry snapshot path override.
	SnapshotFile string
}

const (
	// readHeaderTimeout bounds slow-header clients on the HTTP listener.
	readHeaderTimeout = 10 * time.Second
	// shutdownTimeout bounds graceful HTTP shutdown on exit.
	shutdownTimeout = 15 * time.Second
)

// Run wires the monitoring backend and blocks until the context is canceled
// or a component fails. Configuration is loaded first; command line options
// override individual settings.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "safety-server")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	applyOverrides(cfg, opts)

	store, err := incident.OpenSQLite(cfg.IncidentDBPath)
	if err != nil {
		return fmt.Errorf("open incident store: %w", err)
	}

	defer func() {
		if cerr := store.Close(); cerr != nil {
			logger.Errorf(ctx, "Failed to close incident store: %v", cerr)
		}
	}()

	clk := clock.NewSystem()
	resolver := zone.NewResolver(cfg.Zones)
	mets := metrics.New()

	regOpts := []registry.Option{registry.WithMetrics(mets)}
	if cfg.SnapshotFile != "" {
		regOpts = append(regOpts, registry.WithSnapshots(snapshot.NewFileRepository(cfg.SnapshotFile)))
	}

	reg, err := registry.New(ctx, clk, resolver, cfg.QualifyingHold, regOpts...)
	if err != nil {
		return fmt.Errorf("initialise registry: %w", err)
	}

	dispatcher := notify.NewDispatcher(notify.LogSink{}, cfg.NotifyQueueSize)

	seq, err := lastAlertSequence(ctx, store, clk.Now())
	if err != nil {
		return fmt.Errorf("restore alert sequence: %w", err)
	}

	engOpts := []engine.Option{
		engine.WithMetrics(mets),
		engine.WithStartSequence(seq),
	}
	if cfg.AutoEscalateAfter > 0 {
		engOpts = append(engOpts, engine.WithAutoEscalate(cfg.AutoEscalateAfter))
	}

	eng := engine.New(clk, resolver, store, dispatcher, engOpts...)
	reg.SetAlertSink(eng)

	agg := aggregate.New(clk, reg, eng, store)

	httpServer := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           api.New(reg, eng, store, agg).Router(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	logger.InfoKV(ctx, "Safety server starting",
		"listen_address", cfg.ListenAddress,
		"incident_db", cfg.IncidentDBPath,
		"zones", len(cfg.Zones),
		"alert_sequence", seq)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return dispatcher.Run(gctx)
	})

	g.Go(func() error {
		if serr := httpServer.ListenAndServe(); serr != nil && !errors.Is(serr, http.ErrServerClosed) {
			return fmt.Errorf("serve HTTP: %w", serr)
		}

		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		logger.Info(ctx, "Shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if serr := httpServer.Shutdown(shutdownCtx); serr != nil {
			return fmt.Errorf("shutdown HTTP server: %w", serr)
		}

		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logger.Info(ctx, "Safety server stopped")

	return nil
}

// applyOverrides replaces configured settings with command line values.
func applyOverrides(cfg *config.Config, opts *Options) {
	if opts.ListenAddress != "" {
		cfg.ListenAddress = opts.ListenAddress
	}

	if opts.IncidentDBPath != "" {
		cfg.IncidentDBPath = opts.IncidentDBPath
	}

	if opts.SnapshotFile != "" {
		cfg.SnapshotFile = opts.SnapshotFile
	}
}

// lastAlertSequence finds the highest alert sequence already archived for the
// current year, so restarts never reissue an archived alert ID. The year
// boundary uses the clock's own location, matching how the engine keys its
// sequence year.
func lastAlertSequence(ctx context.Context, store incident.Store, now time.Time) (int, error) {
	yearStart := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location())

	records, err := store.Query(ctx, incident.Filter{From: yearStart})
	if err != nil {
		return 0, fmt.Errorf("query incidents: %w", err)
	}

	prefix := fmt.Sprintf("SOS-%d-", now.Year())
	last := 0

	for _, r := range records {
		raw, ok := strings.CutPrefix(r.AlertID, prefix)
		if !ok {
			continue
		}

		seq, perr := strconv.Atoi(raw)
		if perr != nil {
			continue
		}

		if seq > last {
			last = seq
		}
	}

	return last, nil
}
