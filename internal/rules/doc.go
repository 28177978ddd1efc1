// Package rules defines the alert rule and condition model and implements
// one evaluator per condition kind.
//
// A Condition is a tagged variant: the Type field selects the evaluator and
// only the fields that evaluator reads are meaningful. Validate rejects
// structurally broken conditions at add time; evaluators additionally treat
// anything malformed as "never triggers" (warn + false) so one bad rule
// cannot block evaluation of the rest.
//
// Evaluation is pure over its inputs: (Condition, events, now) -> bool.
// All kinds except CUSTOM first discard events older than the condition's
// time window. Statistical kinds (TREND, ANOMALY, DYNAMIC_THRESHOLD) sort
// or partition by timestamp themselves; the input slice order is the
// buffer's insertion order.
//
// Supported kinds:
//
//	threshold          — aggregate of a metric compared to a constant
//	frequency          — event count within the window ≥ min_count
//	absence            — zero events within the window
//	change             — last-minus-first metric delta (optionally percent)
//	trend              — least-squares slope vs. direction and threshold
//	anomaly            — z-score of recent values against a training window
//	dynamic_threshold  — baseline mean ± factor×stddev band
//	composite          — and/or/not over child conditions, nests arbitrarily
//	custom             — delegates to a registered evaluator func
package rules
