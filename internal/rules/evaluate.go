package rules

import (
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/flarewatch/flarewatch/internal/event"
)

// Anomaly-detection split points. The most recent window holds the values
// under test; everything older (up to the training/baseline lookback) forms
// the reference population.
const (
	anomalyTestWindow = 60 * time.Second
	dynamicTestWindow = 5 * time.Minute

	// minTrainingSamples is the floor below which a z-score baseline is
	// statistically meaningless.
	minTrainingSamples = 10
)

// CustomFunc is an injected evaluator for custom conditions.
type CustomFunc func(c Condition, events []event.TelemetryEvent) bool

// Evaluator evaluates conditions against buffered events. It is safe for
// concurrent use; the only mutable state is the custom function registry.
type Evaluator struct {
	logger *slog.Logger
	now    func() time.Time // injectable for deterministic tests

	mu     sync.RWMutex
	custom map[string]CustomFunc
}

// NewEvaluator creates an Evaluator. A nil logger falls back to slog.Default.
func NewEvaluator(logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{
		logger: logger,
		now:    time.Now,
		custom: make(map[string]CustomFunc),
	}
}

// RegisterCustom registers fn under name for custom conditions. Registering
// the same name again replaces the previous function.
func (e *Evaluator) RegisterCustom(name string, fn CustomFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.custom[name] = fn
}

// Evaluate reports whether c holds over events. Malformed conditions log a
// warning and return false; Evaluate never panics on bad condition data.
func (e *Evaluator) Evaluate(c Condition, events []event.TelemetryEvent) bool {
	now := e.now()

	// Custom evaluators see the unfiltered event set; everything else is
	// windowed first.
	if c.Type == TypeCustom {
		return e.evalCustom(c, events)
	}

	windowed := filterWindow(events, c.Window, now)

	switch c.Type {
	case TypeThreshold:
		return e.evalThreshold(c, windowed)
	case TypeFrequency:
		return e.evalFrequency(c, windowed)
	case TypeAbsence:
		return len(windowed) == 0
	case TypeChange:
		return e.evalChange(c, windowed)
	case TypeTrend:
		return e.evalTrend(c, windowed)
	case TypeAnomaly:
		return e.evalAnomaly(c, windowed, now)
	case TypeDynamicThreshold:
		return e.evalDynamicThreshold(c, windowed, now)
	case TypeComposite:
		// Children re-filter against their own windows, so a composite
		// window intersects with any child window rather than replacing it.
		return e.evalComposite(c, windowed)
	default:
		e.logger.Warn("rules: condition type unknown — treating as not triggered", "type", c.Type)
		return false
	}
}

func (e *Evaluator) evalThreshold(c Condition, events []event.TelemetryEvent) bool {
	if c.Metric == "" {
		e.logger.Warn("rules: threshold condition missing metric")
		return false
	}
	values := metricValues(c.Metric, events)
	if len(values) == 0 {
		return false
	}
	agg, ok := aggregate(c.Aggregation, values)
	if !ok {
		e.logger.Warn("rules: threshold aggregation failed", "aggregation", c.Aggregation)
		return false
	}
	return compare(agg, c.Operator, c.Threshold)
}

func (e *Evaluator) evalFrequency(c Condition, events []event.TelemetryEvent) bool {
	if c.MinCount <= 0 {
		e.logger.Warn("rules: frequency condition missing min_count")
		return false
	}
	return len(events) >= c.MinCount
}

func (e *Evaluator) evalChange(c Condition, events []event.TelemetryEvent) bool {
	if c.Metric == "" {
		e.logger.Warn("rules: change condition missing metric")
		return false
	}
	points := timedValues(c.Metric, events)
	if len(points) < 2 {
		return false
	}
	sortByTime(points)

	first := points[0].value
	change := points[len(points)-1].value - first
	if c.UsePercentage {
		if first == 0 {
			e.logger.Warn("rules: change condition percentage undefined, first value is zero", "metric", c.Metric)
			return false
		}
		change = change / absFloat(first) * 100
	}
	return compare(change, c.Operator, c.Threshold)
}

func (e *Evaluator) evalTrend(c Condition, events []event.TelemetryEvent) bool {
	if c.Metric == "" {
		e.logger.Warn("rules: trend condition missing metric")
		return false
	}
	points := timedValues(c.Metric, events)
	if len(points) < 2 {
		return false
	}
	sortByTime(points)

	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	for i, p := range points {
		// Seconds since the first point, so the slope unit is metric/second.
		xs[i] = p.ts.Sub(points[0].ts).Seconds()
		ys[i] = p.value
	}
	m, ok := slope(xs, ys)
	if !ok {
		return false
	}

	threshold := c.TrendThreshold
	switch c.TrendDirection {
	case "", TrendIncreasing:
		return m > threshold
	case TrendDecreasing:
		return m < -threshold
	case TrendStable:
		return absFloat(m) <= threshold
	default:
		e.logger.Warn("rules: trend direction unknown", "direction", c.TrendDirection)
		return false
	}
}

// evalAnomaly flags any test-window value whose z-score against the training
// population exceeds 3 − 2×sensitivity.
func (e *Evaluator) evalAnomaly(c Condition, events []event.TelemetryEvent, now time.Time) bool {
	if c.Metric == "" {
		e.logger.Warn("rules: anomaly condition missing metric")
		return false
	}

	trainingWindow := time.Duration(c.TrainingWindow) * time.Second
	if trainingWindow <= 0 {
		trainingWindow = DefaultTrainingWindowSec * time.Second
	}
	testCutoff := now.Add(-anomalyTestWindow)
	trainCutoff := now.Add(-trainingWindow)

	var training, test []float64
	for _, ev := range events {
		v, ok := ev.Metric(c.Metric)
		if !ok {
			continue
		}
		switch {
		case ev.Timestamp.After(testCutoff):
			test = append(test, v)
		case ev.Timestamp.After(trainCutoff):
			training = append(training, v)
		}
	}
	if len(training) < minTrainingSamples || len(test) == 0 {
		return false
	}

	m := mean(training)
	sd := stddev(training)
	if sd == 0 {
		e.logger.Warn("rules: anomaly baseline has zero stddev, z-score undefined", "metric", c.Metric)
		return false
	}

	sensitivity := DefaultSensitivity
	if c.Sensitivity != nil {
		sensitivity = *c.Sensitivity
	}
	zThreshold := 3 - 2*sensitivity

	for _, v := range test {
		if absFloat((v-m)/sd) > zThreshold {
			return true
		}
	}
	return false
}

// evalDynamicThreshold compares the recent aggregate against a band computed
// from the baseline population: mean ± deviation_factor × stddev.
func (e *Evaluator) evalDynamicThreshold(c Condition, events []event.TelemetryEvent, now time.Time) bool {
	if c.Metric == "" {
		e.logger.Warn("rules: dynamic_threshold condition missing metric")
		return false
	}

	baselineWindow := time.Duration(c.BaselineWindow) * time.Second
	if baselineWindow <= 0 {
		baselineWindow = DefaultBaselineWindowSec * time.Second
	}
	testCutoff := now.Add(-dynamicTestWindow)
	baseCutoff := now.Add(-baselineWindow)

	var baseline, test []float64
	for _, ev := range events {
		v, ok := ev.Metric(c.Metric)
		if !ok {
			continue
		}
		switch {
		case ev.Timestamp.After(testCutoff):
			test = append(test, v)
		case ev.Timestamp.After(baseCutoff):
			baseline = append(baseline, v)
		}
	}
	if len(baseline) < 2 || len(test) == 0 {
		return false
	}

	current, ok := aggregate(c.Aggregation, test)
	if !ok {
		e.logger.Warn("rules: dynamic_threshold aggregation failed", "aggregation", c.Aggregation)
		return false
	}

	factor := DefaultDeviationFactor
	if c.DeviationFactor != nil {
		factor = *c.DeviationFactor
	}
	m := mean(baseline)
	sd := stddev(baseline)
	upper := m + factor*sd
	lower := m - factor*sd

	switch c.Operator {
	case OpGT:
		return current > upper
	case OpGE:
		return current >= upper
	case OpLT:
		return current < lower
	case OpLE:
		return current <= lower
	case OpNE:
		return current > upper || current < lower
	default:
		e.logger.Warn("rules: dynamic_threshold operator unknown", "operator", c.Operator)
		return false
	}
}

func (e *Evaluator) evalComposite(c Condition, events []event.TelemetryEvent) bool {
	if len(c.Children) == 0 {
		e.logger.Warn("rules: composite condition has no children")
		return false
	}
	switch c.Logical {
	case LogicalAnd:
		for _, child := range c.Children {
			if !e.Evaluate(child, events) {
				return false
			}
		}
		return true
	case LogicalOr:
		for _, child := range c.Children {
			if e.Evaluate(child, events) {
				return true
			}
		}
		return false
	case LogicalNot:
		if len(c.Children) > 1 {
			e.logger.Warn("rules: composite NOT has multiple children, only the first is evaluated",
				"children", len(c.Children))
		}
		return !e.Evaluate(c.Children[0], events)
	default:
		e.logger.Warn("rules: composite logical operator unknown", "operator", c.Logical)
		return false
	}
}

func (e *Evaluator) evalCustom(c Condition, events []event.TelemetryEvent) bool {
	if c.Evaluator == "" {
		e.logger.Warn("rules: custom condition missing evaluator name")
		return false
	}
	e.mu.RLock()
	fn, ok := e.custom[c.Evaluator]
	e.mu.RUnlock()
	if !ok {
		e.logger.Warn("rules: custom evaluator not registered", "evaluator", c.Evaluator)
		return false
	}
	return fn(c, events)
}

// --- helpers ----------------------------------------------------------------

type timedValue struct {
	ts    time.Time
	value float64
}

// filterWindow discards events older than windowSec seconds before now.
// A non-positive window keeps everything.
func filterWindow(events []event.TelemetryEvent, windowSec int, now time.Time) []event.TelemetryEvent {
	if windowSec <= 0 {
		return events
	}
	cutoff := now.Add(-time.Duration(windowSec) * time.Second)
	out := make([]event.TelemetryEvent, 0, len(events))
	for _, ev := range events {
		if ev.Timestamp.After(cutoff) {
			out = append(out, ev)
		}
	}
	return out
}

// metricValues extracts the named metric from each event, preserving input
// order and skipping events without a numeric value.
func metricValues(metric string, events []event.TelemetryEvent) []float64 {
	out := make([]float64, 0, len(events))
	for _, ev := range events {
		if v, ok := ev.Metric(metric); ok {
			out = append(out, v)
		}
	}
	return out
}

func timedValues(metric string, events []event.TelemetryEvent) []timedValue {
	out := make([]timedValue, 0, len(events))
	for _, ev := range events {
		if v, ok := ev.Metric(metric); ok {
			out = append(out, timedValue{ts: ev.Timestamp, value: v})
		}
	}
	return out
}

func sortByTime(points []timedValue) {
	sort.Slice(points, func(i, j int) bool { return points[i].ts.Before(points[j].ts) })
}

func stddev(values []float64) float64 {
	return math.Sqrt(variance(values))
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
