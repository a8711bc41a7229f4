// Package main is the entry point for the gridscope dashboard.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/billie-coop/gridscope/internal/api"
	"github.com/billie-coop/gridscope/internal/config"
	"github.com/billie-coop/gridscope/internal/events"
	"github.com/billie-coop/gridscope/internal/logging"
	"github.com/billie-coop/gridscope/internal/metrics"
	"github.com/billie-coop/gridscope/internal/orchestrator"
	"github.com/billie-coop/gridscope/internal/setup"
	"github.com/billie-coop/gridscope/internal/state"
	"github.com/billie-coop/gridscope/internal/surface"
	"github.com/billie-coop/gridscope/internal/tui"
	"github.com/billie-coop/gridscope/internal/tui/styles"
	tea "github.com/charmbracelet/bubbletea/v2"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("gridscope", flag.ContinueOnError)
	dir := fs.String("dir", ".", "project directory holding .gridscope/")
	apiURL := fs.String("api", "", "backend base URL (overrides api_url)")
	debug := fs.Bool("debug", false, "enable debug logging")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "Usage: gridscope [flags] [init]")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	projectDir, err := filepath.Abs(*dir)
	if err != nil {
		return err
	}

	cfgManager := config.NewManager(projectDir)
	if err := cfgManager.Load(); err != nil {
		return err
	}

	if fs.Arg(0) == "init" {
		err := setup.Run(context.Background(), setup.Survey{}, cfgManager, styles.NewManager("").List())
		if errors.Is(err, setup.ErrAborted) {
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Printf("Saved %s\n", cfgManager.Path())
		return nil
	}

	cfg := cfgManager.Get()
	if *apiURL != "" {
		cfg.APIURL = *apiURL
	}
	if *debug {
		cfg.Debug = true
	}

	logger, closer, err := logging.Open(logging.Options{
		Dir:   cfgManager.Dir(),
		Path:  cfg.LogFile,
		Debug: cfg.Debug,
	})
	if err != nil {
		return err
	}
	defer closer.Close()

	m := metrics.New()
	if cfg.MetricsAddr != "" {
		stop := serveMetrics(cfg.MetricsAddr, m, logger)
		defer stop()
	}

	styles.SetDefaultManager(styles.NewManager(cfg.Theme))

	client := api.NewClient(cfg.APIURL,
		api.WithPrefix(cfg.APIPrefix),
		api.WithToken(cfg.APIToken),
	)

	surfaces := surface.NewRegistry()
	broker := events.NewBroker()

	orch := orchestrator.New(orchestrator.Deps{
		Backend:  client,
		Catalog:  client,
		Cache:    client,
		Surfaces: surfaces,
		Broker:   broker,
		Logger:   logger,
		Metrics:  m,
	}, orchestrator.SettingsFromConfig(cfg))
	defer orch.Close()

	selections := state.NewSelectionStore(cfgManager.Dir())
	if err := selections.Load(); err != nil {
		logger.Warn().Err(err).Msg("ignoring saved selection")
	}
	last, restored := selections.Last()
	if restored {
		err := orch.Restore(orchestrator.Session{
			Targets:   last.Targets,
			Statistic: last.Statistic,
			PlotKind:  last.PlotKind,
			Filters:   last.Filters,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("saved selection rejected")
			restored = false
		}
	}

	model := tui.New(tui.Options{
		Controller:     orch,
		Catalog:        client,
		Surfaces:       surfaces,
		Broker:         broker,
		Logger:         logger,
		ExportDir:      filepath.Join(cfgManager.Dir(), "exports"),
		Backend:        backendLabel(client, cfg.APIURL),
		FacetParameter: orchestrator.DefaultFacetParameter,
		RestoreFacets:  restored && last.FacetMode,
	})
	defer model.Close()

	logger.Info().Str("api", cfg.APIURL).Str("project", projectDir).Msg("starting gridscope")

	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return err
	}

	sess := orch.Session()
	err = selections.Save(state.Selection{
		Targets:   sess.Targets,
		Statistic: sess.Statistic,
		PlotKind:  sess.PlotKind,
		Filters:   sess.Filters,
		FacetMode: sess.FacetMode,
	}, time.Now())
	if err != nil {
		logger.Warn().Err(err).Msg("failed to save selection")
	}
	return nil
}

// backendLabel asks the backend for its version, falling back to the URL.
func backendLabel(client *api.Client, url string) string {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	v, err := client.Version(ctx)
	if err != nil || v.BackendVersion == "" {
		return url
	}
	return fmt.Sprintf("%s (v%s)", url, v.BackendVersion)
}

// serveMetrics exposes the Prometheus registry and returns a stop function.
func serveMetrics(addr string, m *metrics.Metrics, logger zerolog.Logger) func() {
	r := mux.NewRouter()
	r.Handle("/metrics", m.Handler()).Methods(http.MethodGet)
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Str("addr", addr).Msg("metrics server failed")
		}
	}()
	logger.Info().Str("addr", addr).Msg("serving metrics")

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
