// Package api implements the HTTP REST API for flarewatch-server.
//
// New(engine) returns an http.Handler that serves:
//
//	POST   /api/v1/events                     — ingest one telemetry event
//	GET    /api/v1/rules                      — list rules
//	POST   /api/v1/rules                      — add a rule
//	GET    /api/v1/rules/{id}                 — one rule; 404 if unknown
//	DELETE /api/v1/rules/{id}                 — remove a rule
//	POST   /api/v1/rules/{id}/enable          — enable a rule
//	POST   /api/v1/rules/{id}/disable         — disable a rule
//	POST   /api/v1/rules/{id}/evaluate        — evaluate a rule now
//	GET    /api/v1/alerts[?status=active]     — list alerts, newest first
//	GET    /api/v1/alerts/{id}                — one alert; 404 if unknown
//	POST   /api/v1/alerts/{id}/acknowledge    — acknowledge an alert
//	POST   /api/v1/alerts/{id}/resolve        — resolve an alert
//	GET    /api/v1/channels                   — list notification channels
//	POST   /api/v1/channels                   — add a channel
//	DELETE /api/v1/channels/{id}              — remove a channel
//	GET    /api/v1/health                     — rule/alert/buffer counts
//
// All endpoints respond with Content-Type: application/json and return 405
// for unsupported methods. No external HTTP framework is used.
package api
