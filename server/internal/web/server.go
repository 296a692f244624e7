package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/devfront/devfront/server/internal/config"
	"github.com/devfront/devfront/server/internal/metrics"
	"github.com/devfront/devfront/server/internal/relay"
	"github.com/devfront/devfront/server/internal/tlsreload"
	"github.com/devfront/devfront/server/internal/upstream"
)

// Options wires the server to the rest of the process. Hub, Upstream and TLS
// may be nil.
type Options struct {
	Config   *config.Config
	Hub      *relay.Hub
	Upstream *upstream.Connector
	TLS      *tlsreload.Reloader
	Metrics  *metrics.Metrics
	Registry *prometheus.Registry
	Clock    clockwork.Clock
}

// Server serves assets, forwards app requests and hosts the relay socket.
type Server struct {
	echo *echo.Echo
	http *http.Server
	cfg  *config.Config

	hub      *relay.Hub
	upstream *upstream.Connector
	tls      *tlsreload.Reloader
	metrics  *metrics.Metrics
	registry *prometheus.Registry

	clock     clockwork.Clock
	startTime time.Time
}

// New builds the server and registers routes. It does not listen.
func New(opts Options) (*Server, error) {
	if opts.Config == nil {
		return nil, errors.New("web: config is required")
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:      e,
		cfg:       opts.Config,
		hub:       opts.Hub,
		upstream:  opts.Upstream,
		tls:       opts.TLS,
		metrics:   opts.Metrics,
		registry:  opts.Registry,
		clock:     opts.Clock,
		startTime: opts.Clock.Now(),
	}

	var appURL *url.URL
	if opts.Config.App.URL != "" {
		u, err := url.Parse(opts.Config.App.URL)
		if err != nil {
			return nil, fmt.Errorf("web: parse app url: %w", err)
		}
		appURL = u
	}

	s.registerRoutes(appURL)

	s.http = &http.Server{
		Addr:              opts.Config.Addr(),
		Handler:           e,
		ReadHeaderTimeout: opts.Config.Server.ReadHeaderTimeout,
	}
	if s.tls != nil {
		s.http.TLSConfig = s.tls.TLSConfig()
	}
	return s, nil
}

// Handler exposes the routing tree, mainly for tests.
func (s *Server) Handler() http.Handler { return s.echo }

// Listen binds the configured port.
func (s *Server) Listen() (net.Listener, error) {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return nil, fmt.Errorf("web: listen %s: %w", s.http.Addr, err)
	}
	return ln, nil
}

// Serve blocks until Shutdown. It speaks HTTPS when a certificate reloader
// was supplied.
func (s *Server) Serve(ln net.Listener) error {
	scheme := "http"
	if s.tls != nil {
		scheme = "https"
	}
	slog.Info("web: listening", "addr", ln.Addr().String(), "scheme", scheme, "mode", s.cfg.Server.Mode)

	var err error
	if s.tls != nil {
		err = s.http.ServeTLS(ln, "", "")
	} else {
		err = s.http.Serve(ln)
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("web: serve: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
// Hijacked relay connections are closed by the hub, not here.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.http.Shutdown(ctx); err != nil {
		return fmt.Errorf("web: shutdown: %w", err)
	}
	return nil
}
