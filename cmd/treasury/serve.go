package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	treasury "github.com/xraph/treasury"
	audit_hook "github.com/xraph/treasury/audit_hook"
	"github.com/xraph/treasury/internal/auth"
	"github.com/xraph/treasury/internal/httpapi"
	"github.com/xraph/treasury/observability"
)

// NewServeCommand runs the HTTP API until interrupted.
func NewServeCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), opts)
		},
	}
}

func serve(ctx context.Context, opts *RootOptions) error {
	cfg, logger := opts.cfg, opts.logger

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	eng, err := opts.openEngine(ctx,
		treasury.WithPlugin(observability.NewMetricsExtension(observability.NewPrometheusFactory(reg))),
		treasury.WithPlugin(audit_hook.New(auditLog(logger), audit_hook.WithLogger(logger))),
	)
	if err != nil {
		return err
	}
	if err := eng.Start(ctx); err != nil {
		_ = eng.Store().Close()
		return err
	}
	defer func() {
		if err := eng.Stop(); err != nil {
			logger.Warn("treasury stop", "error", err)
		}
	}()

	var apiOpts []httpapi.Option
	apiOpts = append(apiOpts, httpapi.WithLogger(logger))
	if cfg.Auth.Secret != "" {
		apiOpts = append(apiOpts, httpapi.WithAuth(auth.New([]byte(cfg.Auth.Secret), cfg.Auth.Issuer)))
	} else {
		logger.Warn("authentication disabled: auth.secret is empty")
	}

	router := httpapi.New(eng, apiOpts...).NewRouter()
	router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	srv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		logger.Info("http shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// auditLog writes audit events to the log.
func auditLog(logger *slog.Logger) audit_hook.Recorder {
	return audit_hook.RecorderFunc(func(ctx context.Context, ev *audit_hook.AuditEvent) error {
		logger.InfoContext(ctx, "audit",
			"action", ev.Action,
			"resource", ev.Resource,
			"resource_id", ev.ResourceID,
			"outcome", ev.Outcome,
			"severity", ev.Severity,
			"reason", ev.Reason,
		)
		return nil
	})
}
