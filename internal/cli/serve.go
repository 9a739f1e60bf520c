package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/TwigBush/deadbolt-go/internal/config"
	"github.com/TwigBush/deadbolt-go/internal/server"
)

func cmdServe() *cobra.Command {
	var addr, metricsAddr string
	var dev bool

	c := &cobra.Command{
		Use:   "serve",
		Short: "Run the demo application guarded by deadbolt constraints",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if metricsAddr != "" {
				cfg.Server.MetricsAddr = metricsAddr
			}
			log, err := newLogger(cfg.Log, os.Stderr)
			if err != nil {
				return err
			}
			slog.SetDefault(log)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, log, dev)
		},
	}
	c.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	c.Flags().StringVar(&metricsAddr, "metrics-addr", "", "metrics listen address (overrides server.metrics_addr)")
	c.Flags().BoolVar(&dev, "dev", false, "disable response caching")
	return c
}

func serve(ctx context.Context, cfg *config.Config, log *slog.Logger, dev bool) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	app, err := server.NewApp(cfg, log, reg)
	if err != nil {
		return err
	}
	defer app.Close()
	h, err := server.BuildRouter(app, server.Options{CORSOrigins: cfg.Server.CORSOrigins, DevNoStore: dev})
	if err != nil {
		return err
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	servers := []*http.Server{
		{Addr: cfg.Server.Addr, Handler: h},
		{Addr: cfg.Server.MetricsAddr, Handler: metricsMux},
	}

	j := cfg.Deadbolt.Java
	log.Info("deadbolt settings",
		"view_timeout", j.ViewTimeout(),
		"blocking", j.Blocking,
		"blocking_timeout", j.BlockingTimeout(),
		"cache_user", j.CacheUser,
		"constraint_mode", j.ConstraintMode,
		"authz", cfg.Authz.Provider,
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		g.Go(func() error {
			log.Info("listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("listen %s: %w", srv.Addr, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		var errs []error
		for _, srv := range servers {
			errs = append(errs, srv.Shutdown(sctx))
		}
		return errors.Join(errs...)
	})
	return g.Wait()
}
