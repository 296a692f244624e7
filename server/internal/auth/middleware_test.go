package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

// serve runs one GET through mw in front of a handler that replies "ok".
func serve(t *testing.T, mw echo.MiddlewareFunc, header, key string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	e.GET("/metrics", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	}, mw)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	if key != "" {
		req.Header.Set(header, key)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestAPIKeyMiddleware_ModeNone_PassesThrough(t *testing.T) {
	// No key on the request; still passes because mode != "apikey".
	rec := serve(t, APIKeyMiddleware("none", "X-Api-Key", "secret"), "", "")
	if rec.Code != http.StatusOK {
		t.Errorf("status: got %d, want 200", rec.Code)
	}
}

func TestAPIKeyMiddleware_EmptyKey_PassesThrough(t *testing.T) {
	rec := serve(t, APIKeyMiddleware("apikey", "X-Api-Key", ""), "", "")
	if rec.Code != http.StatusOK {
		t.Errorf("status: got %d, want 200", rec.Code)
	}
}

func TestAPIKeyMiddleware_CorrectKey_Passes(t *testing.T) {
	rec := serve(t, APIKeyMiddleware("apikey", "X-Api-Key", "supersecret"), "X-Api-Key", "supersecret")
	if rec.Code != http.StatusOK {
		t.Errorf("status: got %d, want 200", rec.Code)
	}
	if rec.Body.String() != "ok" {
		t.Errorf("body: got %q, want ok", rec.Body.String())
	}
}

func TestAPIKeyMiddleware_WrongKey_Unauthorized(t *testing.T) {
	rec := serve(t, APIKeyMiddleware("apikey", "X-Api-Key", "supersecret"), "X-Api-Key", "wrong")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want 401", rec.Code)
	}
}

func TestAPIKeyMiddleware_MissingHeader_Unauthorized(t *testing.T) {
	rec := serve(t, APIKeyMiddleware("apikey", "X-Api-Key", "supersecret"), "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want 401", rec.Code)
	}
}

func TestAPIKeyMiddleware_CustomHeader(t *testing.T) {
	mw := APIKeyMiddleware("apikey", "x-metrics-key", "mytoken")

	// HTTP header names are case-insensitive.
	rec := serve(t, mw, "X-Metrics-Key", "mytoken")
	if rec.Code != http.StatusOK {
		t.Errorf("status: got %d, want 200", rec.Code)
	}

	rec = serve(t, mw, "X-Api-Key", "mytoken")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong header: got %d, want 401", rec.Code)
	}
}
