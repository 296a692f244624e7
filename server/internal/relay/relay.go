package relay

import (
	"context"
	"fmt"
	"io"
	"log/slog"
)

// Source is the upstream side of the relay. *websocket.Conn satisfies it.
type Source interface {
	ReadMessage() (messageType int, p []byte, err error)
}

// Broadcaster receives every upstream message. *Hub satisfies it.
type Broadcaster interface {
	Broadcast(msg []byte) []*Client
}

// Attach relays every message read from src to b, in the order src delivers
// them. Each broadcast completes before the next message is read.
//
// Attach blocks until src fails or ctx is cancelled. When ctx is cancelled and
// src is an io.Closer it is closed to unblock the pending read, and Attach
// returns nil. Otherwise the read error is returned.
func Attach(ctx context.Context, src Source, b Broadcaster) error {
	done := make(chan struct{})
	defer close(done)

	if closer, ok := src.(io.Closer); ok {
		go func() {
			select {
			case <-ctx.Done():
				closer.Close() //nolint:errcheck
			case <-done:
			}
		}()
	}

	for {
		_, msg, err := src.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("relay: upstream read: %w", err)
		}

		sent := b.Broadcast(msg)
		slog.Debug("relay: message relayed", "bytes", len(msg), "clients", len(sent))
	}
}
