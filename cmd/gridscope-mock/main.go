// Command gridscope-mock serves a scripted statistics backend for local
// development of the dashboard.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/billie-coop/gridscope/internal/logging"
	"github.com/billie-coop/gridscope/internal/mockapi"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

func main() {
	addr := flag.String("addr", ":8000", "listen address")
	prefix := flag.String("prefix", "/api/v1", "API path prefix")
	pending := flag.Int("pending", 2, "PENDING replies before a task settles")
	delay := flag.Duration("delay", 0, "artificial delay on plot submissions")
	debug := flag.Bool("debug", false, "log every request")
	flag.Parse()

	logger := logging.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}, *debug)

	srv := mockapi.New(*prefix)
	srv.SetNetworks(mockapi.DemoNetworks())
	srv.Default(mockapi.Script{PendingPolls: *pending, SubmitDelay: *delay})

	// A few canned failures to exercise the dashboard's error paths
	srv.Handle(mockapi.MatchStatistic("market_value"), mockapi.Script{
		PendingPolls: 1,
		DomainError:  "market_value requires a solved network with marginal prices",
		StackTrace:   "Traceback (most recent call last):\n  File \"statistics.py\", line 212, in market_value\nKeyError: 'marginal_price'",
	})
	srv.Handle(mockapi.MatchParameter("bus_carrier", "DC"), mockapi.Script{
		PendingPolls: 1,
		Failure:      "worker lost while computing DC balance",
	})
	srv.Handle(mockapi.MatchStatistic("prices"), mockapi.Script{CacheHit: true})

	r := mux.NewRouter()
	r.Use(requestLogger(logger))
	r.PathPrefix("/").Handler(srv)

	httpServer := &http.Server{
		Addr:              *addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("shutdown failed")
		}
	}()

	logger.Info().Str("addr", *addr).Str("prefix", *prefix).Int("pending", *pending).Msg("mock backend listening")
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server failed")
	}
}

func requestLogger(logger zerolog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logging.Since(logger.Debug(), start, time.Now()).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("request_id", r.Header.Get("X-Request-ID")).
				Msg("request")
		})
	}
}
