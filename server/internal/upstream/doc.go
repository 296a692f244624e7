// Package upstream connects devfront to the local development notification
// socket (default ws://127.0.0.1:3333).
//
// Connector.Connect dials the socket, retrying a fixed number of times with a
// fixed delay between attempts (3 retries, 1s apart by default). It returns
// exactly once: either a live connection, or an error matching
// ErrRetriesExhausted that wraps the last *ConnectError. ConnectAsync delivers
// the same single result on a channel.
//
// Every attempt dials a fresh connection; failed attempts are discarded.
// Retry waits are scheduled on a clockwork.Clock, so tests drive them with a
// fake clock.
//
// Notifier.NotifyReady tells the dev server that this process has loaded a
// given build by POSTing {"buildHash": version} to <origin>/ping.
package upstream
