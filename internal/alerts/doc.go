// Package alerts materializes rule firings into Alert records and fans them
// out to notification channels.
//
// Store holds alerts in memory with a forward-only lifecycle:
// active → acknowledged → resolved (or active → resolved directly). There is
// no transition back to active. Lifecycle changes are announced on the bus
// (alerts.fired / alerts.acknowledged / alerts.resolved). Unknown alert ids
// on acknowledge/resolve are silent no-ops: callers may race with state they
// have not seen yet.
//
// Notifier dispatches each alert to every enabled channel. Channels are
// isolated from one another: one failing or hanging sink (bounded by a
// per-channel timeout) never prevents delivery to the rest, and the alert
// stays recorded regardless of delivery outcome.
package alerts
