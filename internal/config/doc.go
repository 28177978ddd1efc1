// Package config loads and watches the flarewatch server configuration
// (config.yaml).
//
// Config fields:
//   - HTTPPort             — REST API, WebSocket hub, and /metrics (default 8080)
//   - Auth.Mode            — "apikey" or "none"
//   - Auth.KeyEnv          — environment variable holding the expected API key
//   - Auth.Header          — header name carrying the key (default "x-api-key")
//   - Buffer.MaxPerBucket  — event buffer capacity per type:name bucket (default 1000)
//   - Evaluation.Interval  — periodic rule evaluation cadence (default 60s)
//   - Evaluation.Immediate — also evaluate matching rules on every ingested event
//   - Scrape               — optional Prometheus exposition sources to poll
//   - Rules, Channels      — seeded alert rules and notification channels
//
// Load(path) applies defaults before unmarshalling, then validates.
// Watch(ctx, path, onChange) reloads on file changes via fsnotify; rules and
// channels are hot-reloadable, ports are not. It handles the rename→create
// pattern used by atomic-save editors by re-adding the watch.
package config
