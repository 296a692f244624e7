package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/devfront/devfront/server/internal/config"
	"github.com/devfront/devfront/server/internal/logging"
	"github.com/devfront/devfront/server/internal/metrics"
	"github.com/devfront/devfront/server/internal/relay"
	"github.com/devfront/devfront/server/internal/tlsreload"
	"github.com/devfront/devfront/server/internal/upstream"
	"github.com/devfront/devfront/server/internal/web"
)

func main() {
	configPath := flag.String("config", "", "path to config file (optional; defaults and environment apply without one)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	logging.Init(cfg.Log.Level, cfg.Log.Format)

	slog.Info("devfront starting",
		"config", *configPath,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"tls", cfg.Server.TLS.Enabled(),
		"app_url", cfg.App.URL,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	reg := metrics.NewRegistry()
	m := metrics.New(reg)

	// Optional HTTPS with certificate hot-reload.
	var certs *tlsreload.Reloader
	if cfg.Server.TLS.Enabled() {
		certs, err = tlsreload.New(cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile, nil)
		if err != nil {
			slog.Error("failed to load TLS certificate", "err", err)
			os.Exit(1)
		}
		st := certs.Status()
		slog.Info("TLS certificate loaded", "subject", st.Subject, "not_after", st.NotAfter, "status", st.State)
		go func() {
			if err := certs.Watch(ctx); err != nil {
				slog.Error("TLS certificate watcher stopped", "err", err)
			}
		}()
	}

	// Live-reload relay: dev socket upstream, browser sockets downstream.
	var (
		hub  *relay.Hub
		conn *upstream.Connector
	)
	if !cfg.IsProduction() {
		hub = relay.NewHub(relay.WithMetrics(m))
		go hub.Run(ctx)

		conn = upstream.NewConnector(cfg.Dev.SocketURL,
			upstream.WithRetry(cfg.Dev.MaxRetries, cfg.Dev.RetryDelay),
			upstream.WithMetrics(m),
		)
		go runRelay(ctx, conn, hub)
	}

	srv, err := web.New(web.Options{
		Config:   cfg,
		Hub:      hub,
		Upstream: conn,
		TLS:      certs,
		Metrics:  m,
		Registry: reg,
	})
	if err != nil {
		slog.Error("failed to build HTTP server", "err", err)
		os.Exit(1)
	}

	ln, err := srv.Listen()
	if err != nil {
		slog.Error("failed to listen", "port", cfg.Server.Port, "err", err)
		os.Exit(1)
	}
	go func() {
		if err := srv.Serve(ln); err != nil {
			slog.Error("HTTP server stopped", "err", err)
			cancel()
		}
	}()

	if cfg.Server.Mode == config.ModeDevelopment && cfg.Dev.BuildVersionFile != "" {
		go notifyReady(ctx, cfg)
	}

	// Hot-reload log level from the config file.
	if *configPath != "" {
		go func() {
			err := config.Watch(ctx, *configPath, func(next *config.Config) {
				logging.SetLevel(next.Log.Level)
				slog.Info("log level updated", "level", next.Log.Level)
			})
			if err != nil {
				slog.Warn("config watcher stopped", "err", err)
			}
		}()
	}

	<-ctx.Done()
	slog.Info("devfront shutting down")

	shutdownCtx, stop := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP shutdown incomplete", "err", err)
	}
}

// runRelay connects to the dev socket and pipes it into the hub. Failing to
// connect at all is fatal; losing the socket later only stops live reload.
func runRelay(ctx context.Context, conn *upstream.Connector, hub *relay.Hub) {
	res := <-conn.ConnectAsync(ctx)
	if res.Err != nil {
		if errors.Is(res.Err, context.Canceled) {
			return
		}
		slog.Error("could not connect to dev socket, giving up",
			"url", conn.URL(), "attempts", conn.Attempts(), "err", res.Err)
		os.Exit(1)
	}

	err := relay.Attach(ctx, res.Conn, hub)
	res.Conn.Close() //nolint:errcheck
	conn.MarkClosed()
	if err != nil {
		slog.Warn("dev socket closed, live reload stopped", "url", conn.URL(), "err", err)
	}
}

func notifyReady(ctx context.Context, cfg *config.Config) {
	version, err := upstream.ReadBuildVersion(cfg.Dev.BuildVersionFile)
	if err != nil {
		slog.Warn("skipping dev ready notification", "err", err)
		return
	}
	n := upstream.NewNotifier(cfg.Dev.ReadyOrigin, cfg.Dev.SocketURL, nil)
	if err := n.NotifyReady(ctx, version); err != nil {
		slog.Warn("dev ready notification failed", "err", err)
	}
}
