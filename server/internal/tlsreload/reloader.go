package tlsreload

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/jonboulle/clockwork"
)

// expiringWindow is how close to NotAfter a certificate counts as expiring.
const expiringWindow = 30 * 24 * time.Hour

// Status is a summary of the certificate currently being served.
type Status struct {
	// State is one of: valid | expiring | expired.
	State    string    `json:"status"`
	Subject  string    `json:"subject"`
	Issuer   string    `json:"issuer"`
	NotAfter time.Time `json:"not_after"`
	DaysLeft int       `json:"days_left"`
}

// Reloader holds the active key pair.
type Reloader struct {
	certFile string
	keyFile  string
	clock    clockwork.Clock

	mu   sync.RWMutex
	cert *tls.Certificate
	leaf *x509.Certificate
}

// New loads the key pair and fails if it cannot be parsed.
func New(certFile, keyFile string, clock clockwork.Clock) (*Reloader, error) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	r := &Reloader{certFile: certFile, keyFile: keyFile, clock: clock}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload re-reads the key pair. On failure the previous pair stays active.
func (r *Reloader) Reload() error {
	cert, err := tls.LoadX509KeyPair(r.certFile, r.keyFile)
	if err != nil {
		return fmt.Errorf("tlsreload: load key pair: %w", err)
	}
	if len(cert.Certificate) == 0 {
		return errors.New("tlsreload: no certificate in " + r.certFile)
	}
	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return fmt.Errorf("tlsreload: parse leaf: %w", err)
	}
	cert.Leaf = leaf

	r.mu.Lock()
	r.cert = &cert
	r.leaf = leaf
	r.mu.Unlock()
	return nil
}

// GetCertificate is suitable for tls.Config.GetCertificate.
func (r *Reloader) GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cert, nil
}

// TLSConfig returns a server config that always serves the current pair.
func (r *Reloader) TLSConfig() *tls.Config {
	return &tls.Config{
		MinVersion:     tls.VersionTLS12,
		GetCertificate: r.GetCertificate,
	}
}

// Status describes the leaf certificate being served.
func (r *Reloader) Status() Status {
	r.mu.RLock()
	leaf := r.leaf
	r.mu.RUnlock()

	left := leaf.NotAfter.Sub(r.clock.Now())
	st := Status{
		Subject:  leaf.Subject.CommonName,
		Issuer:   leaf.Issuer.CommonName,
		NotAfter: leaf.NotAfter.UTC(),
		DaysLeft: int(math.Floor(left.Hours() / 24)),
	}
	switch {
	case left <= 0:
		st.State = "expired"
	case left <= expiringWindow:
		st.State = "expiring"
	default:
		st.State = "valid"
	}
	return st
}

// Watch reloads the pair whenever either file changes, until ctx is cancelled.
// The parent directories are watched because cert managers usually replace
// files by rename.
func (r *Reloader) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	watched := map[string]bool{}
	for _, f := range []string{r.certFile, r.keyFile} {
		dir := filepath.Dir(f)
		if watched[dir] {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("tlsreload: watch %q: %w", dir, err)
		}
		watched[dir] = true
	}

	certName := filepath.Clean(r.certFile)
	keyName := filepath.Clean(r.keyFile)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			name := filepath.Clean(event.Name)
			if name != certName && name != keyName {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if err := r.Reload(); err != nil {
				// Cert and key are often written one after the other; the
				// second event will succeed.
				slog.Warn("tlsreload: reload failed, keeping previous certificate", "err", err)
				continue
			}
			st := r.Status()
			slog.Info("tlsreload: certificate reloaded",
				"subject", st.Subject, "not_after", st.NotAfter, "status", st.State)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("tlsreload: watcher error", "err", err)
		}
	}
}
