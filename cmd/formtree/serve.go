package main

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aretw0/formtree"
	"github.com/aretw0/formtree/internal/presentation/tui"
	"github.com/aretw0/formtree/pkg/adapters/file"
	httpAdapter "github.com/aretw0/formtree/pkg/adapters/http"
	redisAdapter "github.com/aretw0/formtree/pkg/adapters/redis"
	"github.com/aretw0/formtree/pkg/domain"
	"github.com/aretw0/formtree/pkg/observability"
	"github.com/aretw0/formtree/pkg/persistence/middleware"
	"github.com/aretw0/formtree/pkg/ports"
	"github.com/aretw0/formtree/pkg/session"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

const (
	envRedisPassword = "FORMTREE_REDIS_PASSWORD"
	envEncryptionKey = "FORMTREE_ENCRYPTION_KEY"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Serves live form sessions over a JSON API. Sessions are kept in memory unless
--sessions-dir or --redis-addr is set; with Redis, sessions are also locked across replicas.
Set ` + envEncryptionKey + ` to a base64 32-byte key to encrypt stored responses.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	serveCmd.Flags().String("redis-addr", "", "Redis address for sessions and locks (password from env "+envRedisPassword+")")
	serveCmd.Flags().Duration("session-ttl", 24*time.Hour, "Expiry of Redis sessions (0 keeps them)")
	serveCmd.Flags().String("sessions-dir", "", "Directory for JSON session files")
	serveCmd.Flags().Bool("metrics", false, "Expose Prometheus metrics on /metrics")
}

// app is the wired server and what must be released after it stops.
type app struct {
	handler  http.Handler
	sessions *session.Manager
	loader   ports.QuestionnaireLoader
	closers  []func() error
}

func (a *app) Close() error {
	a.sessions.Close()
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

func buildApp(cmd *cobra.Command, logger *slog.Logger) (*app, error) {
	redisAddr, _ := cmd.Flags().GetString("redis-addr")
	ttl, _ := cmd.Flags().GetDuration("session-ttl")
	sessionsDir, _ := cmd.Flags().GetString("sessions-dir")
	metrics, _ := cmd.Flags().GetBool("metrics")

	a := &app{}
	hooks := []domain.LifecycleHooks{observability.LoggingHooks(logger)}
	var reg *prometheus.Registry
	if metrics {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		m, err := observability.NewMetrics(reg)
		if err != nil {
			return nil, err
		}
		hooks = append(hooks, m.Hooks())
	}

	var store ports.ResponseStore
	var locker ports.DistributedLocker
	switch {
	case redisAddr != "":
		rs := redisAdapter.New(redisAddr, os.Getenv(envRedisPassword), 0, redisAdapter.WithTTL(ttl))
		if err := rs.Ping(cmd.Context()); err != nil {
			return nil, fmt.Errorf("failed to reach redis at %s: %w", redisAddr, err)
		}
		a.closers = append(a.closers, rs.Close)
		store = rs
		locker = redisAdapter.NewLocker(rs.Client(), "formtree:")
		logger.Info("using redis sessions", "addr", redisAddr, "ttl", ttl)
	case sessionsDir != "":
		store = file.NewStore(sessionsDir)
		logger.Info("using file sessions", "dir", sessionsDir)
	}

	if raw := os.Getenv(envEncryptionKey); raw != "" {
		key, err := base64.StdEncoding.DecodeString(raw)
		if err != nil || len(key) != 32 {
			return nil, fmt.Errorf("%s must be a base64 encoded 32-byte key", envEncryptionKey)
		}
		if store == nil {
			return nil, fmt.Errorf("%s requires --sessions-dir or --redis-addr", envEncryptionKey)
		}
		store = middleware.Chain(store, middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key}))
	}

	opts := []formtree.Option{}
	if store != nil {
		opts = append(opts, formtree.WithStore(store))
	}
	for _, h := range hooks {
		opts = append(opts, formtree.WithHooks(h))
	}
	eng, err := newEngine(cmd, logger, opts...)
	if err != nil {
		return nil, err
	}

	var sessionOpts []session.Option
	if locker != nil {
		sessionOpts = append(sessionOpts, session.WithLocker(locker))
	}
	a.sessions = eng.Sessions(sessionOpts...)
	a.loader = eng.Loader()

	r := chi.NewRouter()
	if reg != nil {
		r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}
	r.Mount("/", httpAdapter.NewHandler(a.sessions, a.loader,
		httpAdapter.WithLogger(logger),
		httpAdapter.WithVersion(formtree.Version),
	))
	a.handler = r
	return a, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	port, _ := cmd.Flags().GetString("port")
	dir, _ := cmd.Flags().GetString("dir")
	logger := newLogger(cmd)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(cmd, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if w, ok := a.loader.(ports.Watchable); ok {
		go logReloads(ctx, w, logger)
	}

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Channel to listen for errors coming from the listener.
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- srv.ListenAndServe()
	}()

	if isTerminal(os.Stderr) {
		tui.PrintBanner(os.Stderr, formtree.Version)
	}
	logger.Info("server started", "addr", srv.Addr, "dir", dir)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		logger.Info("shutdown started")
	}

	// Give outstanding requests a deadline for completion.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown did not complete", "timeout", 5*time.Second, "err", err)
		if err := srv.Close(); err != nil {
			return fmt.Errorf("failed to stop server: %w", err)
		}
	}
	logger.Info("server stopped")
	return nil
}

func logReloads(ctx context.Context, w ports.Watchable, logger *slog.Logger) {
	events, err := w.Watch(ctx)
	if err != nil {
		logger.Warn("questionnaire watch unavailable", "err", err)
		return
	}
	for range events {
		logger.Info("questionnaires changed")
	}
}
