package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/time/rate"

	"nftdrop/config"
	"nftdrop/distribution"
	"nftdrop/ledger"
	"nftdrop/observability"
	"nftdrop/observability/logging"
	telemetry "nftdrop/observability/otel"
	"nftdrop/reconcile"
	"nftdrop/server"
	"nftdrop/signer"
	"nftdrop/storage"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "nftdropd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "nftdropd.yaml", "path to nftdropd configuration")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("NFTDROP_ENV"))
	log := logging.Setup("nftdropd", env)

	otlpEndpoint := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
	insecure := true
	if value := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_INSECURE")); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			insecure = parsed
		}
	}
	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName: "nftdropd",
		Environment: env,
		Endpoint:    otlpEndpoint,
		Insecure:    insecure,
		Headers:     telemetry.ParseHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS")),
		Metrics:     true,
		Traces:      true,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if shutdownTelemetry != nil {
			_ = shutdownTelemetry(context.Background())
		}
	}()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	store, err := storage.Open(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dist, err := loadOrInitialize(ctx, store, cfg)
	if err != nil {
		return err
	}
	log.Info("campaign loaded",
		"name", dist.Name, "strategy", string(dist.Strategy),
		"records", len(dist.Records), "watermark", dist.LastHandledLedgerIndex)

	client, err := ledger.NewClient(cfg.Ledger.Endpoint,
		ledger.WithRequestTimeout(cfg.Ledger.RequestTimeout.Duration),
		ledger.WithRateLimit(rate.Limit(cfg.Ledger.RateLimit), cfg.Ledger.RateBurst),
	)
	if err != nil {
		return fmt.Errorf("init ledger client: %w", err)
	}
	offerSigner, err := signer.NewRemote(cfg.Signer.Endpoint, cfg.Signer.RequestTimeout.Duration)
	if err != nil {
		return fmt.Errorf("init signer: %w", err)
	}

	metrics := observability.Reconciler()
	correlator := reconcile.NewCorrelator(offerSigner, client, log, metrics)
	engine, err := reconcile.NewEngine(dist, store, client, correlator,
		reconcile.WithDelays(cfg.Reconciler.BusyDelay.Duration, cfg.Reconciler.IdleDelay.Duration),
		reconcile.WithAutoComplete(cfg.Reconciler.AutoComplete),
		reconcile.WithLogger(log),
		reconcile.WithMetrics(metrics),
	)
	if err != nil {
		return fmt.Errorf("init engine: %w", err)
	}

	secret := os.Getenv(cfg.Auth.SecretEnv)
	auth, err := server.NewAuthenticator(secret, cfg.Auth.Audience)
	if err != nil {
		return fmt.Errorf("init auth (is %s set?): %w", cfg.Auth.SecretEnv, err)
	}
	admin, err := server.New(server.Config{ListenAddress: cfg.ListenAddress}, engine, auth, log)
	if err != nil {
		return fmt.Errorf("init admin server: %w", err)
	}

	serverCtx, cancelServer := context.WithCancel(ctx)
	defer cancelServer()
	serverErr := make(chan error, 1)
	go func() { serverErr <- admin.Run(serverCtx) }()

	runErr := engine.Run(ctx)
	cancelServer()
	<-serverErr
	switch {
	case runErr == nil:
		log.Info("campaign finished, shutting down")
		return nil
	case errors.Is(runErr, context.Canceled):
		log.Info("shutdown requested")
		return nil
	default:
		return runErr
	}
}

// loadOrInitialize resumes a persisted campaign or seeds a fresh one from
// the manifest. The persisted aggregate always wins so restarts resume from
// the saved watermark.
func loadOrInitialize(ctx context.Context, store *storage.Store, cfg config.Config) (*distribution.Distribution, error) {
	manifest, err := distribution.LoadManifest(cfg.ManifestPath)
	if err != nil {
		return nil, err
	}
	dist, err := store.LoadDistribution(ctx, strings.TrimSpace(manifest.Name))
	if err == nil {
		return dist, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("load campaign: %w", err)
	}
	dist, err = manifest.Initialize(cfg.Reconciler.StartLedger)
	if err != nil {
		return nil, err
	}
	if err := store.SaveDistribution(ctx, dist); err != nil {
		return nil, fmt.Errorf("persist new campaign: %w", err)
	}
	return dist, nil
}
