package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"balloon-duel/internal/app/duel"
	"balloon-duel/internal/config"
	"balloon-duel/internal/coordinator"
	"balloon-duel/internal/game"
	"balloon-duel/internal/ledger"
	"balloon-duel/internal/logging"
	"balloon-duel/internal/monitor"
	"balloon-duel/internal/settlement"
	"balloon-duel/internal/store"
	httptransport "balloon-duel/internal/transport/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.LoadApp()
	if err != nil {
		panic(err)
	}
	logging.Init(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
	log.Info().Msg("server stopped")
}

type app struct {
	router  *chi.Mux
	coord   *coordinator.Coordinator
	backend store.Backend
}

func (a *app) Close() {
	a.coord.Stop()
	a.backend.Close()
}

func newApp(ctx context.Context, cfg config.AppConfig, reg prometheus.Registerer) (*app, error) {
	backend, err := store.Open(ctx, cfg.Server)
	if err != nil {
		return nil, err
	}
	escrow := newEscrow(cfg.Settlement)
	gw := settlement.NewRetrying(escrow, ledger.New(backend), settlement.RetryConfig{
		RetryMax:  cfg.Settlement.RetryMax,
		RetryBase: cfg.Settlement.RetryBase(),
	})
	mon := monitor.NewMonitor("balloon_duel", reg)
	coord := coordinator.New(backend, gw, cfg.Game, coordinator.WithObserver(mon))
	if err := coord.Recover(ctx); err != nil {
		coord.Stop()
		backend.Close()
		return nil, err
	}
	seedMonitor(ctx, backend, mon)

	svc := duel.NewService(coord, escrow, gw)
	return &app{
		router:  httptransport.NewRouter(svc, coord, backend, cfg.Server),
		coord:   coord,
		backend: backend,
	}, nil
}

func newEscrow(cfg config.SettlementConfig) settlement.Escrow {
	if cfg.EscrowURL == "" {
		log.Warn().Msg("ESCROW_URL not set; using in-memory escrow")
		return settlement.NewMemoryEscrow()
	}
	return settlement.NewHTTPEscrow(cfg.EscrowURL, cfg.EscrowAPIKey, cfg.Timeout())
}

func seedMonitor(ctx context.Context, backend store.Backend, mon *monitor.Monitor) {
	open, err := backend.List(ctx, store.Filter{Statuses: []game.Status{
		game.StatusWaiting,
		game.StatusReadyToStart,
		game.StatusWaitingForSubmissions,
	}})
	if err != nil {
		log.Warn().Err(err).Msg("seed room metrics failed")
		return
	}
	counts := map[game.Status]int{}
	for _, r := range open {
		counts[r.Status]++
	}
	mon.Seed(counts)
}

func run(ctx context.Context, cfg config.AppConfig) error {
	a, err := newApp(ctx, cfg, prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}
	defer a.Close()
	httptransport.LogRoutes(a.router)

	server := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           a.router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	a.coord.StartJanitor(gctx, cfg.Game.JanitorInterval())
	g.Go(func() error {
		log.Info().Str("addr", cfg.Server.HTTPAddr).Str("store", cfg.Server.StoreDriver).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
