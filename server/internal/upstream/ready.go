package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/devfront/devfront/server/internal/retry"
)

const (
	readyTimeout    = 5 * time.Second
	readyMaxRetries = 2
	readyRetryDelay = 500 * time.Millisecond
)

// Notifier tells the dev server which build this process has loaded.
type Notifier struct {
	origin string
	client *http.Client
	clock  clockwork.Clock
}

// NewNotifier returns a Notifier posting to origin. An empty origin is
// derived from the dev socket URL (ws → http, wss → https).
func NewNotifier(origin, socketURL string, clock clockwork.Clock) *Notifier {
	if origin == "" {
		origin = OriginFromSocketURL(socketURL)
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Notifier{
		origin: strings.TrimRight(origin, "/"),
		client: &http.Client{Timeout: readyTimeout},
		clock:  clock,
	}
}

// NotifyReady POSTs {"buildHash": version} to <origin>/ping. Server errors
// are retried briefly; 4xx responses are not.
func (n *Notifier) NotifyReady(ctx context.Context, version string) error {
	body, err := json.Marshal(map[string]string{"buildHash": version})
	if err != nil {
		return fmt.Errorf("ready: encode: %w", err)
	}

	policy := retry.Policy{MaxRetries: readyMaxRetries, Delay: readyRetryDelay}
	err = retry.DoVoid(ctx, n.clock, policy, func(ctx context.Context, _ int) error {
		return n.post(ctx, body)
	})
	if err != nil {
		return fmt.Errorf("ready: notify %s: %w", n.origin, err)
	}

	slog.Info("upstream: dev server notified", "origin", n.origin, "build", version)
	return nil
}

func (n *Notifier) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.origin+"/ping", bytes.NewReader(body))
	if err != nil {
		return retry.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return retry.Permanent(fmt.Errorf("unexpected status %d", resp.StatusCode))
	default:
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
}

// OriginFromSocketURL maps a ws:// or wss:// URL to its http(s) origin.
func OriginFromSocketURL(socketURL string) string {
	if socketURL == "" {
		socketURL = DefaultURL
	}
	u, err := url.Parse(socketURL)
	if err != nil || u.Host == "" {
		return ""
	}
	scheme := "http"
	if u.Scheme == "wss" || u.Scheme == "https" {
		scheme = "https"
	}
	return scheme + "://" + u.Host
}

// ReadBuildVersion reads the "version" field from a JSON build manifest.
func ReadBuildVersion(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("build version: read %q: %w", path, err)
	}
	var manifest struct {
		Version string `json:"version"`
	}
	if err := json.Unmarshal(data, &manifest); err != nil {
		return "", fmt.Errorf("build version: parse %q: %w", path, err)
	}
	if manifest.Version == "" {
		return "", fmt.Errorf("build version: %q has no version", path)
	}
	return manifest.Version, nil
}
