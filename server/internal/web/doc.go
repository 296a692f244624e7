// Package web is devfront's HTTP(S) front door.
//
// Every request passes request ID, access log and panic recovery. Then:
//
//   - WebSocket upgrades on any path join the live-reload relay (non-production only);
//     they are not counted in the HTTP request metrics
//   - GET/HEAD requests matching an asset mount are served from disk with
//     a Cache-Control header for that mount
//   - /healthz and the metrics path are answered locally
//   - everything else is forwarded to the application handler, or gets 404
//     when none is configured
package web
