package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/api"
	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/auth"
	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/blob"
	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/config"
	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/engine"
	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/extract"
	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/index"
	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/pipeline"
	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/query"
	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/router"
	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/store"
)

func main() {
	// .env is optional, for development convenience.
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	if cfg.JWTSecret == "" {
		slog.Error("JWT_SECRET is required")
		os.Exit(1)
	}

	db, err := store.OpenSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("open db", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	repo, err := store.New(db)
	if err != nil {
		slog.Error("init store", "error", err)
		os.Exit(1)
	}

	blobs, err := blob.Open(cfg.BlobPath, cfg.BlobInMemory)
	if err != nil {
		slog.Error("open blob store", "error", err)
		os.Exit(1)
	}
	defer blobs.Close()

	// Workers that died mid-attempt left RUNNING jobs behind.
	if n, err := repo.ResetStaleRunning(context.Background()); err != nil {
		slog.Warn("reset stale running", "error", err)
	} else if n > 0 {
		slog.Info("reset stale RUNNING jobs to QUEUED", "count", n)
	}

	// Tier setup: a remote premium adapter when an API key is present,
	// a scriptable stub otherwise, and the local economy tier always.
	var premium engine.Adapter
	if cfg.UsePremiumStub() {
		slog.Info("PREMIUM_API_KEY not set, premium tier runs as stub")
		premium = engine.NewStubAdapter("premium")
	} else {
		premium = engine.NewRemoteAdapter("premium", cfg.PremiumAPIKey,
			engine.WithBaseURL(cfg.PremiumBaseURL), engine.WithModel(cfg.PremiumModel))
	}
	rt := router.New([]router.Tier{
		{Name: "premium", Rank: 0, Adapter: premium, MaxInFlight: cfg.PremiumMaxInFlight},
		{Name: "economy", Rank: 1, Adapter: engine.NewLocalAdapter("economy"), MaxInFlight: cfg.EconomyMaxInFlight},
	}, router.WithFailureThreshold(cfg.FailureRateThreshold))

	keyword := index.NewKeyword()
	vector := index.NewVector()

	writer := pipeline.NewWriter(blobs, repo, keyword, vector, nil)
	sched, err := pipeline.NewScheduler(repo, blobs, rt, writer, pipeline.Options{
		Workers:        cfg.WorkerCount,
		PollInterval:   cfg.PollInterval,
		MaxAttempts:    cfg.MaxAttempts,
		BackoffBase:    cfg.BackoffBase,
		BackoffMax:     cfg.BackoffMax,
		ProduceTimeout: cfg.ProduceTimeout,
	})
	if err != nil {
		slog.Error("init scheduler", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sched.Start(ctx)

	srv := api.New(api.Deps{
		Repo:       repo,
		Blobs:      blobs,
		Extractor:  extract.New(cfg.MaxTextLength),
		Verifier:   auth.NewVerifier(cfg.JWTSecret),
		Query:      query.New(repo, blobs, keyword, vector, cfg.KeywordWeight, cfg.VectorWeight, cfg.SearchPageSize),
		Router:     rt,
		Keyword:    keyword,
		Vector:     vector,
		CORSOrigin: cfg.CORSOrigin,
	})
	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: srv.Handler(),
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		slog.Info("shutting down")
		cancel()
		httpServer.Shutdown(context.Background())
	}()

	slog.Info("summiva server listening", "port", cfg.Port)
	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}
