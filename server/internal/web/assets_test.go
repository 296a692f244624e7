package web

import (
	"testing"
	"time"

	"github.com/devfront/devfront/server/internal/config"
)

func TestStripPrefix(t *testing.T) {
	tests := []struct {
		path, prefix, want string
		ok                 bool
	}{
		{"/build/app.js", "/build", "/app.js", true},
		{"/build", "/build", "/", true},
		{"/build/", "/build/", "/", true},
		{"/builder/app.js", "/build", "", false},
		{"/favicon.ico", "/", "/favicon.ico", true},
		{"/other", "/build", "", false},
	}
	for _, tt := range tests {
		got, ok := stripPrefix(tt.path, tt.prefix)
		if ok != tt.ok || got != tt.want {
			t.Errorf("stripPrefix(%q, %q) = %q, %v; want %q, %v", tt.path, tt.prefix, got, ok, tt.want, tt.ok)
		}
	}
}

func TestCacheControl(t *testing.T) {
	tests := []struct {
		mount config.AssetMount
		want  string
	}{
		{config.AssetMount{MaxAge: 365 * 24 * time.Hour, Immutable: true}, "public, max-age=31536000, immutable"},
		{config.AssetMount{MaxAge: time.Hour}, "public, max-age=3600"},
		{config.AssetMount{}, "public, max-age=0"},
	}
	for _, tt := range tests {
		if got := cacheControl(tt.mount); got != tt.want {
			t.Errorf("cacheControl(%+v) = %q, want %q", tt.mount, got, tt.want)
		}
	}
}
