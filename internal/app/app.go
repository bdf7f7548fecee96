package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"example.com/resistance/internal/archive"
	"example.com/resistance/internal/config"
	"example.com/resistance/internal/game"
	"example.com/resistance/internal/httpapi"
	"example.com/resistance/internal/migrate"
	"example.com/resistance/internal/store"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

type App struct {
	cfg config.Config
	log *slog.Logger

	db  *pgxpool.Pool
	rdb *redis.Client

	archive *archive.Archive
	srv     *http.Server
}

func New(ctx context.Context, cfg config.Config, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}
	a := &App{cfg: cfg, log: log}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	// interfaces stay nil when a backend is disabled
	var (
		states  archive.StateStore
		results archive.ResultStore
	)
	roomsH := &httpapi.RoomsHandler{Log: log.With("component", "httpapi")}

	// --- Postgres (optional) ---
	if cfg.Postgres.URL != "" {
		if cfg.Postgres.RunMigrations {
			if err := migrate.Up(ctx, cfg.Postgres.URL, cfg.Postgres.MigrationsDir, log); err != nil {
				return nil, err
			}
		}
		dbpool, err := pgxpool.New(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, fmt.Errorf("pgxpool: %w", err)
		}
		if err := dbpool.Ping(pingCtx); err != nil {
			dbpool.Close()
			return nil, fmt.Errorf("postgres ping: %w", err)
		}
		a.db = dbpool

		ledger := store.NewResultStore(dbpool)
		results = ledger
		roomsH.Results = ledger
	} else {
		log.Warn("DATABASE_URL not set, finished games will not be recorded")
	}

	// --- Redis (optional) ---
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr: cfg.Redis.Addr,
			DB:   cfg.Redis.DB,
		})
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			_ = rdb.Close()
			_ = a.Close(ctx)
			return nil, fmt.Errorf("redis ping (%s db=%d): %w", cfg.Redis.Addr, cfg.Redis.DB, err)
		}
		a.rdb = rdb

		mirror := game.NewRedisStateMirror(rdb, cfg.Redis.StateTTL)
		states = mirror
		roomsH.States = mirror
	} else {
		log.Warn("REDIS_ADDR not set, room state will not be mirrored")
	}

	// --- Game ---
	a.archive = archive.New(states, results, cfg.Archive.QueueSize, log.With("component", "archive"))
	hub := game.NewHub(cfg.Game.SendBuffer, log.With("component", "hub"))
	svc := game.NewService(
		game.Config{ReconnectGrace: cfg.Game.ReconnectGrace},
		game.NewStore(),
		hub,
		a.archive,
		log.With("component", "game"),
	)
	gameSrv := game.NewServer(svc, hub, log.With("component", "ws"))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	gameSrv.RegisterRoutes(mux)
	roomsH.Register(mux)

	a.srv = &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           httpapi.AccessLog(log)(httpapi.Recover(log)(mux)),
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
	}
	return a, nil
}

func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	a.log.Info("http server starting", "addr", a.cfg.HTTP.Addr, "env", a.cfg.Env)

	g.Go(func() error {
		err := a.srv.ListenAndServe()
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		return a.archive.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
		defer cancel()
		a.log.Info("http server shutting down")
		_ = a.srv.Shutdown(shutdownCtx)
		return nil
	})

	err := g.Wait()
	_ = a.Close(context.Background())
	return err
}

func (a *App) Close(ctx context.Context) error {
	// best-effort
	if a.db != nil {
		a.db.Close()
	}
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	return nil
}
