package web

import (
	"log/slog"
	"net/http"
	"net/url"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/devfront/devfront/server/internal/auth"
	"github.com/devfront/devfront/server/internal/logging"
	"github.com/devfront/devfront/server/internal/metrics"
)

const healthPath = "/healthz"

func (s *Server) registerRoutes(appURL *url.URL) {
	s.echo.Use(requestIDMiddleware())
	s.echo.Use(requestLoggerMiddleware())
	s.echo.Use(middleware.Recover())
	// Upgrades are long-lived; they stay out of the HTTP request metrics.
	if s.hub != nil {
		s.echo.Use(s.upgradeMiddleware)
	}
	if s.metrics != nil {
		s.echo.Use(s.metrics.Middleware(s.cfg.Metrics.Path))
	}
	s.echo.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Skipper: func(c echo.Context) bool { return websocket.IsWebSocketUpgrade(c.Request()) },
	}))
	s.echo.Use(assetsMiddleware(s.cfg.Assets, s.isInternalPath))

	s.echo.GET(healthPath, s.handleHealth)

	if s.cfg.Metrics.Enabled && s.registry != nil {
		a := s.cfg.Metrics.Auth
		s.echo.GET(s.cfg.Metrics.Path,
			echo.WrapHandler(metrics.Handler(s.registry)),
			auth.APIKeyMiddleware(a.Mode, a.EffectiveHeader(), a.Key()))
	}

	if appURL != nil {
		proxy := middleware.ProxyWithConfig(middleware.ProxyConfig{
			Balancer: middleware.NewRoundRobinBalancer([]*middleware.ProxyTarget{{URL: appURL}}),
		})
		s.echo.Any("/*", notFound, proxy)
		slog.Info("web: forwarding app requests", "target", appURL.String())
	} else {
		s.echo.Any("/*", notFound)
	}
}

func notFound(echo.Context) error { return echo.ErrNotFound }

func (s *Server) isInternalPath(p string) bool {
	return p == healthPath || (s.cfg.Metrics.Enabled && p == s.cfg.Metrics.Path)
}

// upgradeMiddleware hands WebSocket upgrades on any path to the relay hub.
func (s *Server) upgradeMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !websocket.IsWebSocketUpgrade(c.Request()) {
			return next(c)
		}
		s.hub.ServeHTTP(c.Response(), c.Request())
		return nil
	}
}

func requestIDMiddleware() echo.MiddlewareFunc {
	return middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		RequestIDHandler: func(c echo.Context, id string) {
			ctx := logging.WithRequestID(c.Request().Context(), id)
			c.SetRequest(c.Request().WithContext(ctx))
		},
	})
}

func requestLoggerMiddleware() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
			}
			if v.Error != nil {
				attrs = append(attrs, "error", v.Error)
			}
			level := slog.LevelInfo
			if v.Status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			slog.Log(c.Request().Context(), level, "request", attrs...)
			return nil
		},
	})
}
