// Package auth provides authentication middleware for devfront's internal
// endpoints.
//
// APIKeyMiddleware(mode, header, key) returns an echo middleware that checks
// the API key in the named request header. It guards the metrics endpoint;
// static assets, the app proxy and the live-reload socket are never wrapped.
//
// When mode != "apikey" or key == "", all requests pass through (useful for
// local development with auth disabled). A missing or incorrect key gets
// 401 immediately.
package auth
