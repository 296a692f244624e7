package upstream

// ReadyRetryDelay exposes the dev-ready retry wait to the external tests.
const ReadyRetryDelay = readyRetryDelay
