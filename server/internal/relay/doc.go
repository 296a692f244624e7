// Package relay fans live-reload notifications out to browser clients.
//
// Hub is the server-side websocket endpoint. Hub.ServeHTTP upgrades a request,
// registers the client and serves it until it disconnects. Each client has a
// readiness state (connecting, open, closing, closed) and an ordered, bounded
// outbound buffer drained by its own write pump. A client whose buffer is full
// is moved to closing and disconnected.
//
// Attach(ctx, src, hub) reads upstream messages in order and, for each one,
// broadcasts it to a fresh snapshot of the hub's clients. FanOut does the
// actual filtering: every open client gets the payload once as a text frame,
// every other client is skipped without an error.
//
// The upgrader accepts all origins; the endpoint only runs outside production.
package relay
