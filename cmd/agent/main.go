package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fransolofran/mesita-go/internal/api"
	"github.com/fransolofran/mesita-go/internal/auth"
	"github.com/fransolofran/mesita-go/internal/config"
	"github.com/fransolofran/mesita-go/internal/control"
	"github.com/fransolofran/mesita-go/internal/core"
	"github.com/fransolofran/mesita-go/internal/discover"
	"github.com/fransolofran/mesita-go/internal/erbus"
	"github.com/fransolofran/mesita-go/internal/latency"
	"github.com/fransolofran/mesita-go/internal/metrics"
	"github.com/fransolofran/mesita-go/internal/quotecache"
	"github.com/fransolofran/mesita-go/internal/reconciler"
	"github.com/fransolofran/mesita-go/internal/reference"
	"github.com/fransolofran/mesita-go/internal/status"
	"github.com/fransolofran/mesita-go/internal/tradingloop"
	"github.com/fransolofran/mesita-go/internal/version"
	"github.com/fransolofran/mesita-go/internal/wire"
)

func main() {
	configPath := flag.String("config", "configs/agent.local.yaml", "path to config file")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting agent",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"instance_id", cfg.Instance.ID,
		"environment", cfg.Instance.Environment,
		"rest_url", cfg.API.RestURL,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	username, password := cfg.API.Credentials(cfg.Instance.Environment)
	account := cfg.API.Account(cfg.Instance.Environment)

	tokens := auth.NewTokenSource(nil, cfg.API.RestURL, auth.Credentials{Username: username, Password: password}, cfg.API.Timeout)
	if _, err := tokens.Login(ctx); err != nil {
		logger.Error("initial login failed", "error", err)
		os.Exit(1)
	}

	apiClient := api.NewClient(
		cfg.API.RestURL,
		tokens,
		api.WithLogger(logger),
		api.WithTimeout(cfg.API.Timeout),
		api.WithRetries(cfg.API.MaxRetries, time.Second),
	)

	registry := discover.NewRegistry(apiClient, logger)
	if _, err := registry.Refresh(ctx); err != nil {
		logger.Error("initial instrument discovery failed", "error", err)
		os.Exit(1)
	}
	pairs := registry.Pairs()
	if len(pairs) == 0 {
		logger.Error("no tradeable ARS/USD pairs discovered")
		os.Exit(1)
	}
	logger.Info("instrument discovery complete", "pairs", len(pairs))

	report, err := apiClient.GetAccountReport(ctx, account)
	if err != nil {
		logger.Error("initial account report failed", "error", err)
		os.Exit(1)
	}
	initialARS, initialUSD := report.Cash()

	quotes := quotecache.New()
	bus := erbus.New()
	rec := reconciler.New(initialARS, initialUSD)
	ref := reference.New(cfg.Reference.HalfLife)

	wireClient := wire.NewClient(wire.Config{
		WSURL:            cfg.API.WSURL,
		RestURL:          cfg.API.RestURL,
		Account:          account,
		ProprietaryTag:   cfg.API.ProprietaryTag,
		Symbols:          symbolsOf(pairs),
		ReconnectMinWait: time.Second,
		ReconnectMaxWait: 30 * time.Second,
		PingInterval:     15 * time.Second,
		PingTimeout:      5 * time.Second,
	}, tokens, quotes, bus, logger)

	var probe *latency.Probe
	if cfg.Latency.ProbeInterval > 0 {
		probe = latency.New(wireClient, bus.Subscribe("latency-probe", true, 1), ref, latency.Config{
			ProbeInterval: cfg.Latency.ProbeInterval,
			Tune:          cfg.Reference.Tune,
			TuneFactor:    cfg.Reference.TuneFactor,
			MinHalfLife:   cfg.Reference.MinHalfLife,
			MaxHalfLife:   cfg.Reference.MaxHalfLife,
		}, logger)
	}

	tunables := control.New(control.Snapshot{
		WaitDuration:        cfg.Execution.WaitDuration,
		GraceDuration:       cfg.Execution.GraceDuration,
		EdgeTolBps:          cfg.Execution.EdgeTolBps,
		ThreshPct:           cfg.Trading.ThreshPct,
		MinNotionalARS:      cfg.Trading.MinNotionalARS,
		RiskPollInterval:    cfg.Balance.RiskPollInterval,
		RiskRefreshInterval: cfg.Balance.RiskRefreshInterval,
		PollInterval:        cfg.Trading.PollInterval,
		UnwindMode:          cfg.Execution.UnwindMode,
		BalanceMode:         cfg.Balance.Mode,
		TraceEnabled:        cfg.Trace.Enabled,
		TraceRaw:            cfg.Trace.Raw,

		ReferenceMode:             cfg.Reference.Mode,
		HalfLife:                  cfg.Reference.HalfLife,
		RefTune:                   cfg.Reference.Tune,
		RefK:                      cfg.Reference.TuneFactor,
		RefMinHalfLife:            cfg.Reference.MinHalfLife,
		RefMaxHalfLife:            cfg.Reference.MaxHalfLife,
		LatProbeInterval:          cfg.Latency.ProbeInterval,
		InstrumentRefreshInterval: cfg.Discovery.RefreshInterval,

		Environment:    cfg.Instance.Environment,
		RestURL:        cfg.API.RestURL,
		WSURL:          cfg.API.WSURL,
		Username:       username,
		Password:       password,
		Account:        account,
		ProprietaryTag: cfg.API.ProprietaryTag,
	})
	controlLoop := control.NewLoop(cfg.Control.Path, cfg.Control.ThrottleInterval)

	statusOut := status.NewWriter(
		filepath.Join(cfg.Status.Dir, "status.json"),
		filepath.Join(cfg.Status.Dir, "books.json"),
		filepath.Join(cfg.Status.Dir, "positions.json"),
	)

	metricsReg := metrics.New()

	referenceMode := reference.ModeHybrid
	if cfg.Reference.Mode == string(reference.ModeTick) {
		referenceMode = reference.ModeTick
	}

	// wireFactory rebuilds the token source and wire client from whatever
	// credentials/URLs are current in Tunables, implementing force_reauth:
	// close the current connection, recreate the client, resume subscription.
	wireFactory := func(ctx context.Context, tun control.Snapshot) (tradingloop.WireClient, error) {
		newTokens := auth.NewTokenSource(nil, tun.RestURL, auth.Credentials{
			Username: tun.Username,
			Password: tun.Password,
		}, cfg.API.Timeout)
		if _, err := newTokens.Login(ctx); err != nil {
			return nil, fmt.Errorf("force_reauth login: %w", err)
		}
		return wire.NewClient(wire.Config{
			WSURL:            tun.WSURL,
			RestURL:          tun.RestURL,
			Account:          tun.Account,
			ProprietaryTag:   tun.ProprietaryTag,
			Symbols:          symbolsOf(registry.Pairs()),
			ReconnectMinWait: time.Second,
			ReconnectMaxWait: 30 * time.Second,
			PingInterval:     15 * time.Second,
			PingTimeout:      5 * time.Second,
		}, newTokens, quotes, bus, logger), nil
	}

	loop := tradingloop.New(
		tradingloop.Config{
			Account:       account,
			ReferenceMode: referenceMode,
			Discovery:     tradingloop.DiscoveryConfig{RefreshInterval: cfg.Discovery.RefreshInterval},
		},
		wireClient,
		apiClient,
		quotes,
		bus,
		rec,
		ref,
		registry,
		probe,
		controlLoop,
		tunables,
		statusOut,
		logger,
		wireFactory,
	)

	mux := http.NewServeMux()
	metricsPath := cfg.Metrics.Path
	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	mux.Handle(metricsPath, metricsReg.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler: mux,
	}
	go func() {
		logger.Info("starting metrics/health server", "port", cfg.Metrics.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()

	logger.Info("agent running", "instance_id", cfg.Instance.ID, "account", account)

	if err := loop.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("trading loop exited with error", "error", err)
	}

	logger.Info("shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)

	logger.Info("agent stopped")
}

func symbolsOf(pairs []core.Pair) []string {
	seen := make(map[string]struct{}, len(pairs)*2)
	var out []string
	for _, p := range pairs {
		for _, s := range []string{p.ARSSymbol, p.USDSymbol} {
			if _, ok := seen[s]; !ok {
				seen[s] = struct{}{}
				out = append(out, s)
			}
		}
	}
	return out
}
