package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/zeebo/errs"

	"github.com/nainya/metacatalog/internal/config"
	"github.com/nainya/metacatalog/internal/logger"
	"github.com/nainya/metacatalog/internal/metrics"
	"github.com/nainya/metacatalog/internal/server"
	"github.com/nainya/metacatalog/pkg/catalog"
	"github.com/nainya/metacatalog/pkg/lifecycle"
	"github.com/nainya/metacatalog/pkg/metadata"
	"github.com/nainya/metacatalog/pkg/system"
)

func newServeCmd() *cobra.Command {
	v := config.NewViper()
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the metadata HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v, configPath)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	flags.String("http-addr", ":8080", "HTTP API listen address")
	flags.String("storage", config.BackendMemory, "metadata backend: memory, bolt or redis")
	flags.String("storage-path", "./metacatalog.db", "bolt database file")
	flags.String("journal", "", "journal file that makes the memory backend durable")
	flags.String("registry", config.BackendMemory, "entity registry: memory or sqlite")
	flags.Int("observability-port", 9090, "port for /metrics, /health and pprof (0 disables)")
	flags.Int("grpc-port", 0, "port for the gRPC health service (0 disables)")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.Bool("log-pretty", false, "human readable console logs")

	bind(v, flags.Lookup("http-addr"), "http.addr")
	bind(v, flags.Lookup("storage"), "storage.backend")
	bind(v, flags.Lookup("storage-path"), "storage.path")
	bind(v, flags.Lookup("journal"), "storage.journal")
	bind(v, flags.Lookup("registry"), "registry.backend")
	bind(v, flags.Lookup("observability-port"), "observability.port")
	bind(v, flags.Lookup("grpc-port"), "grpc.port")
	bind(v, flags.Lookup("log-level"), "log.level")
	bind(v, flags.Lookup("log-pretty"), "log.pretty")
	return cmd
}

func bind(v *viper.Viper, flag *pflag.Flag, key string) {
	if err := v.BindPFlag(key, flag); err != nil {
		panic(err)
	}
}

// serve wires the stores, services and listeners described by cfg and
// blocks until ctx is cancelled or a listener fails.
func serve(ctx context.Context, cfg *config.Config) (err error) {
	logger.InitGlobalLogger(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})
	log := logger.GetGlobalLogger()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewMetrics(reg)

	kv, err := openStore(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer func() { err = errs.Combine(err, kv.Close()) }()

	registry, err := openRegistry(cfg.Registry)
	if err != nil {
		return err
	}
	defer func() { err = errs.Combine(err, registry.Close()) }()

	store := metadata.NewStore(kv,
		metadata.WithLimits(metadata.Limits{
			MaxProperties: cfg.Limits.MaxProperties,
			MaxTags:       cfg.Limits.MaxTags,
			MaxLength:     cfg.Limits.MaxLength,
		}),
		metadata.WithLogger(log.Component("metadata").Zerolog()),
		metadata.WithObserver(storeObserver{metrics: m, log: log.Component("metadata")}),
	)
	writer := system.NewWriter(store, log.Component("system").Zerolog())
	lc := lifecycle.NewManager(registry, store, writer,
		lifecycle.WithLogger(log.Component("lifecycle").Zerolog()),
		lifecycle.WithObserver(m),
	)
	if err := lc.Init(ctx); err != nil {
		return err
	}
	svc := catalog.New(store, lc,
		catalog.WithLogger(log.Component("catalog").Zerolog()),
		catalog.WithSearchObserver(m),
	)

	api := &http.Server{
		Handler:      server.New(svc, lc, server.WithLogger(log), server.WithMetrics(m)).Handler(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}
	lis, err := net.Listen("tcp", cfg.HTTP.Addr)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", cfg.HTTP.Addr, err)
	}
	log.LogServerStart(lis.Addr().String(), cfg.Storage.Backend)

	errc := make(chan error, 3)
	go func() {
		if err := api.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- fmt.Errorf("http server failed: %w", err)
		}
	}()

	var obs *server.ObservabilityServer
	if cfg.ObservabilityPort > 0 {
		obs = server.NewObservabilityServer(fmt.Sprintf(":%d", cfg.ObservabilityPort), reg, readiness(kv, registry), log)
		go func() {
			if err := obs.Start(); err != nil {
				errc <- err
			}
		}()
	}

	var health *server.HealthServer
	if cfg.GrpcPort > 0 {
		grpcLis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GrpcPort))
		if err != nil {
			_ = api.Close()
			return fmt.Errorf("failed to bind grpc port %d: %w", cfg.GrpcPort, err)
		}
		health = server.NewHealthServer(m, log)
		go func() {
			if err := health.Serve(grpcLis); err != nil {
				errc <- err
			}
		}()
	}

	log.LogServerReady(lis.Addr().String())

	var serveErr error
	select {
	case <-ctx.Done():
		log.LogServerShutdown("signal received")
	case serveErr = <-errc:
		log.LogServerShutdown(serveErr.Error())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if health != nil {
		health.SetServing(false)
	}
	group := []error{serveErr, api.Shutdown(shutdownCtx)}
	if obs != nil {
		group = append(group, obs.Shutdown(shutdownCtx))
	}
	if health != nil {
		group = append(group, health.Shutdown(shutdownCtx))
	}
	return errs.Combine(group...)
}

// storeObserver records store operations as metrics and debug logs.
type storeObserver struct {
	metrics *metrics.Metrics
	log     *logger.Logger
}

func (o storeObserver) ObserveStoreOperation(op string, d time.Duration, err error) {
	o.metrics.ObserveStoreOperation(op, d, err)
	o.log.LogStoreOperation(op, d, err)
}

func (o storeObserver) ObserveIndexRows(written, deleted int) {
	o.metrics.ObserveIndexRows(written, deleted)
}
