package web

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/devfront/devfront/server/internal/tlsreload"
)

// HealthResponse is the payload for GET /healthz.
type HealthResponse struct {
	Status string            `json:"status"`
	Mode   string            `json:"mode"`
	Uptime string            `json:"uptime"`
	Relay  *RelayHealth      `json:"relay,omitempty"`
	TLS    *tlsreload.Status `json:"tls,omitempty"`
}

// RelayHealth describes the live-reload relay. Absent in production.
type RelayHealth struct {
	Clients  int    `json:"clients"`
	Upstream string `json:"upstream"`
	Attempts int    `json:"attempts"`
}

func (s *Server) handleHealth(c echo.Context) error {
	resp := HealthResponse{
		Status: "ok",
		Mode:   s.cfg.Server.Mode,
		Uptime: s.clock.Since(s.startTime).Truncate(time.Second).String(),
	}
	if s.hub != nil {
		rh := &RelayHealth{Clients: s.hub.Count()}
		if s.upstream != nil {
			rh.Upstream = s.upstream.State().String()
			rh.Attempts = s.upstream.Attempts()
		}
		resp.Relay = rh
	}
	if s.tls != nil {
		st := s.tls.Status()
		resp.TLS = &st
	}
	return c.JSON(http.StatusOK, resp)
}
