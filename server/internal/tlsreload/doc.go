// Package tlsreload serves the HTTPS certificate from disk and swaps it in
// when the PEM files change, so renewed certificates take effect without a
// restart. It also reports how long the current leaf certificate has left.
package tlsreload
