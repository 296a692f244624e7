// Package config loads the devfront configuration.
//
// Sources, lowest precedence first:
//   - built-in defaults (port 3000, development mode, /build and / asset
//     mounts, dev socket ws://127.0.0.1:3333 with 3 retries 1s apart)
//   - the optional YAML file passed to Load
//   - a .env file in the working directory, if present
//   - environment variables: APP_ENV, PORT, LOG_LEVEL, LOG_FORMAT,
//     DEV_SOCKET_URL, DEV_READY_ORIGIN, BUILD_VERSION_FILE, APP_URL,
//     TLS_CERT_FILE, TLS_KEY_FILE
//
// Load(path) validates the merged result. Any mode other than "production"
// enables the live-reload relay.
//
// Watch(ctx, path, onChange) uses fsnotify on the file's directory, so
// atomic-save renames are seen, and debounces bursts of events.
package config
