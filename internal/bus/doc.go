// Package bus is the in-process publish/subscribe surface for alert
// lifecycle announcements.
//
// Topics used by the engine:
//
//	alerts.fired         — a rule evaluation created a new alert
//	alerts.acknowledged  — an operator acknowledged an alert
//	alerts.resolved      — an alert was resolved
//
// Handlers run on a dedicated goroutine per subscriber, fed by a bounded
// queue. When a subscriber's queue is full the message is dropped for that
// subscriber and a warning is logged: a slow consumer must never block the
// evaluation loop.
package bus
