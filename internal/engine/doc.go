// Package engine drives rule evaluation over the event buffer.
//
// Engine owns the rule registry and the two evaluation triggers:
//
//   - Periodic: Run ticks every evaluation interval (default 60s) and
//     evaluates all enabled rules, one goroutine per rule, read-only over
//     buffer snapshots.
//   - Immediate: when enabled, ProcessEvent synchronously evaluates the
//     rules whose type/name filters match the ingested event. This is a
//     latency optimization on top of the periodic pass, not a replacement.
//
// A rule fires when all of its top-level conditions hold (short-circuit
// AND). Every firing pass creates a new alert: firings are deliberately
// not de-duplicated against an existing active alert for the same rule,
// and the alert id's timestamp suffix lets consumers tell firings apart.
//
// A panic inside one rule's evaluation is recovered, logged, recorded on
// the tracing span, and never aborts evaluation of other rules.
package engine
