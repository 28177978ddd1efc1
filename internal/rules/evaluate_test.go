package rules

import (
	"testing"
	"time"

	"github.com/flarewatch/flarewatch/internal/event"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// newTestEvaluator returns an Evaluator with a frozen clock.
func newTestEvaluator() *Evaluator {
	e := NewEvaluator(nil)
	e.now = func() time.Time { return testNow }
	return e
}

// metricEvents builds one event per value, spaced one second apart and
// ending just before testNow.
func metricEvents(metric string, values ...float64) []event.TelemetryEvent {
	out := make([]event.TelemetryEvent, len(values))
	for i, v := range values {
		out[i] = event.TelemetryEvent{
			Type:         "metric",
			Name:         "m",
			Timestamp:    testNow.Add(-time.Duration(len(values)-i) * time.Second),
			Measurements: map[string]float64{metric: v},
		}
	}
	return out
}

func floatPtr(v float64) *float64 { return &v }

func TestThreshold_AvgGreaterThan(t *testing.T) {
	e := newTestEvaluator()
	cond := Condition{Type: TypeThreshold, Metric: "response_time", Operator: OpGT, Threshold: 500}

	// avg(400, 600) = 500, not > 500.
	if e.Evaluate(cond, metricEvents("response_time", 400, 600)) {
		t.Error("avg 500 gt 500: got true, want false")
	}
	// avg(400, 600, 700) ≈ 566.7 > 500.
	if !e.Evaluate(cond, metricEvents("response_time", 400, 600, 700)) {
		t.Error("avg 566.7 gt 500: got false, want true")
	}
}

func TestThreshold_Aggregations(t *testing.T) {
	e := newTestEvaluator()
	events := metricEvents("v", 1, 2, 3, 4)

	tests := []struct {
		agg       Aggregation
		op        Operator
		threshold float64
		want      bool
	}{
		{AggMax, OpGE, 4, true},
		{AggMin, OpLT, 1, false},
		{AggSum, OpEQ, 10, true},
		{AggCount, OpGE, 4, true},
		{AggLast, OpEQ, 4, true},
		{AggMedian, OpEQ, 2.5, true},
	}
	for _, tt := range tests {
		cond := Condition{Type: TypeThreshold, Metric: "v", Operator: tt.op, Threshold: tt.threshold, Aggregation: tt.agg}
		if got := e.Evaluate(cond, events); got != tt.want {
			t.Errorf("threshold %s %s %v: got %v, want %v", tt.agg, tt.op, tt.threshold, got, tt.want)
		}
	}
}

func TestThreshold_NoNumericValues(t *testing.T) {
	e := newTestEvaluator()
	cond := Condition{Type: TypeThreshold, Metric: "missing", Operator: OpGT, Threshold: 0}
	if e.Evaluate(cond, metricEvents("other", 1, 2)) {
		t.Error("threshold with no extractable values: got true, want false")
	}
}

func TestThreshold_WindowFiltersOldEvents(t *testing.T) {
	e := newTestEvaluator()
	old := event.TelemetryEvent{
		Type: "metric", Name: "m",
		Timestamp:    testNow.Add(-10 * time.Minute),
		Measurements: map[string]float64{"v": 1000},
	}
	recent := metricEvents("v", 10, 20)

	cond := Condition{Type: TypeThreshold, Metric: "v", Operator: OpGT, Threshold: 100, Window: 60}
	if e.Evaluate(cond, append([]event.TelemetryEvent{old}, recent...)) {
		t.Error("windowed threshold: stale event leaked into aggregate")
	}
}

func TestFrequency(t *testing.T) {
	e := newTestEvaluator()
	cond := Condition{Type: TypeFrequency, Window: 60, MinCount: 5}

	if e.Evaluate(cond, metricEvents("v", 1, 2, 3, 4)) {
		t.Error("4 events with min_count 5: got true, want false")
	}
	if !e.Evaluate(cond, metricEvents("v", 1, 2, 3, 4, 5)) {
		t.Error("5 events with min_count 5: got false, want true")
	}
}

func TestAbsence(t *testing.T) {
	e := newTestEvaluator()
	cond := Condition{Type: TypeAbsence, Window: 60}

	if !e.Evaluate(cond, nil) {
		t.Error("absence with no events: got false, want true")
	}
	if e.Evaluate(cond, metricEvents("v", 1)) {
		t.Error("absence with a recent event: got true, want false")
	}

	// Events outside the window do not count as presence.
	old := event.TelemetryEvent{Type: "metric", Name: "m", Timestamp: testNow.Add(-5 * time.Minute)}
	if !e.Evaluate(cond, []event.TelemetryEvent{old}) {
		t.Error("absence with only stale events: got false, want true")
	}
}

func TestChange_RawDelta(t *testing.T) {
	e := newTestEvaluator()
	cond := Condition{Type: TypeChange, Metric: "error_rate", Operator: OpGT, Threshold: 0.02}

	// 0.05 − 0.01 = 0.04 > 0.02.
	if !e.Evaluate(cond, metricEvents("error_rate", 0.01, 0.05)) {
		t.Error("change 0.04 gt 0.02: got false, want true")
	}
	if e.Evaluate(cond, metricEvents("error_rate", 0.01, 0.02)) {
		t.Error("change 0.01 gt 0.02: got true, want false")
	}
}

func TestChange_SortsByTimestamp(t *testing.T) {
	e := newTestEvaluator()
	// Deliver events out of time order: the later value (50) is first in
	// slice order but last chronologically.
	events := []event.TelemetryEvent{
		{Type: "metric", Name: "m", Timestamp: testNow.Add(-time.Second), Measurements: map[string]float64{"v": 50}},
		{Type: "metric", Name: "m", Timestamp: testNow.Add(-time.Minute), Measurements: map[string]float64{"v": 10}},
	}
	cond := Condition{Type: TypeChange, Metric: "v", Operator: OpEQ, Threshold: 40}
	if !e.Evaluate(cond, events) {
		t.Error("change should sort by timestamp: want 50−10=40")
	}
}

func TestChange_Percentage(t *testing.T) {
	e := newTestEvaluator()
	cond := Condition{Type: TypeChange, Metric: "v", Operator: OpGT, Threshold: 100, UsePercentage: true}

	// (30 − 10) / |10| × 100 = 200%.
	if !e.Evaluate(cond, metricEvents("v", 10, 30)) {
		t.Error("change 200%% gt 100%%: got false, want true")
	}
	// First value zero: percentage undefined.
	if e.Evaluate(cond, metricEvents("v", 0, 30)) {
		t.Error("percentage change from zero: got true, want false")
	}
}

func TestChange_RequiresTwoValues(t *testing.T) {
	e := newTestEvaluator()
	cond := Condition{Type: TypeChange, Metric: "v", Operator: OpGT, Threshold: 0}
	if e.Evaluate(cond, metricEvents("v", 5)) {
		t.Error("change with one value: got true, want false")
	}
}

func TestTrend_Directions(t *testing.T) {
	e := newTestEvaluator()
	rising := metricEvents("v", 1, 2, 3, 4, 5)
	falling := metricEvents("v", 5, 4, 3, 2, 1)
	flat := metricEvents("v", 3, 3, 3, 3)

	tests := []struct {
		name      string
		direction TrendDirection
		events    []event.TelemetryEvent
		want      bool
	}{
		{"rising/increasing", TrendIncreasing, rising, true},
		{"rising/decreasing", TrendDecreasing, rising, false},
		{"falling/decreasing", TrendDecreasing, falling, true},
		{"flat/stable", TrendStable, flat, true},
		{"rising/stable", TrendStable, rising, false},
		{"rising/default-direction", "", rising, true},
	}
	for _, tt := range tests {
		cond := Condition{Type: TypeTrend, Metric: "v", TrendDirection: tt.direction}
		if got := e.Evaluate(cond, tt.events); got != tt.want {
			t.Errorf("%s: got %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestTrend_Threshold(t *testing.T) {
	e := newTestEvaluator()
	// Slope is 1 per second (values 1..5 spaced 1s apart).
	rising := metricEvents("v", 1, 2, 3, 4, 5)

	steep := Condition{Type: TypeTrend, Metric: "v", TrendDirection: TrendIncreasing, TrendThreshold: 2}
	if e.Evaluate(steep, rising) {
		t.Error("slope 1 with trend_threshold 2: got true, want false")
	}
	shallow := Condition{Type: TypeTrend, Metric: "v", TrendDirection: TrendIncreasing, TrendThreshold: 0.5}
	if !e.Evaluate(shallow, rising) {
		t.Error("slope 1 with trend_threshold 0.5: got false, want true")
	}
}

// anomalyEvents builds a training population (outside the 60s test window)
// followed by test values inside it.
func anomalyEvents(training []float64, test []float64) []event.TelemetryEvent {
	var out []event.TelemetryEvent
	for i, v := range training {
		out = append(out, event.TelemetryEvent{
			Type: "metric", Name: "m",
			Timestamp:    testNow.Add(-time.Hour + time.Duration(i)*time.Second),
			Measurements: map[string]float64{"v": v},
		})
	}
	for i, v := range test {
		out = append(out, event.TelemetryEvent{
			Type: "metric", Name: "m",
			Timestamp:    testNow.Add(-30*time.Second + time.Duration(i)*time.Second),
			Measurements: map[string]float64{"v": v},
		})
	}
	return out
}

func TestAnomaly_ZScore(t *testing.T) {
	e := newTestEvaluator()
	// Training population: mean 10, stddev 2.
	training := []float64{8, 12, 8, 12, 8, 12, 8, 12, 8, 12}
	cond := Condition{Type: TypeAnomaly, Metric: "v", Sensitivity: floatPtr(0.5)} // z threshold 2

	// z = |15−10|/2 = 2.5 > 2 → anomaly.
	if !e.Evaluate(cond, anomalyEvents(training, []float64{15})) {
		t.Error("z=2.5 against threshold 2: got false, want true")
	}
	// z = |13−10|/2 = 1.5 ≤ 2 → normal.
	if e.Evaluate(cond, anomalyEvents(training, []float64{13})) {
		t.Error("z=1.5 against threshold 2: got true, want false")
	}
}

func TestAnomaly_SensitivityWidensThreshold(t *testing.T) {
	e := newTestEvaluator()
	training := []float64{8, 12, 8, 12, 8, 12, 8, 12, 8, 12} // mean 10, stddev 2

	// Sensitivity 0 → z threshold 3: value 15 (z=2.5) is not anomalous.
	strict := Condition{Type: TypeAnomaly, Metric: "v", Sensitivity: floatPtr(0)}
	if e.Evaluate(strict, anomalyEvents(training, []float64{15})) {
		t.Error("sensitivity 0 (threshold 3): z=2.5 flagged, want not flagged")
	}
	// Sensitivity 1 → z threshold 1: value 13 (z=1.5) is anomalous.
	loose := Condition{Type: TypeAnomaly, Metric: "v", Sensitivity: floatPtr(1)}
	if !e.Evaluate(loose, anomalyEvents(training, []float64{13})) {
		t.Error("sensitivity 1 (threshold 1): z=1.5 not flagged, want flagged")
	}
}

func TestAnomaly_RequiresTrainingData(t *testing.T) {
	e := newTestEvaluator()
	cond := Condition{Type: TypeAnomaly, Metric: "v"}

	// Nine training values is below the minimum of ten.
	short := []float64{8, 12, 8, 12, 8, 12, 8, 12, 8}
	if e.Evaluate(cond, anomalyEvents(short, []float64{100})) {
		t.Error("anomaly with 9 training values: got true, want false")
	}
	// No test values.
	full := []float64{8, 12, 8, 12, 8, 12, 8, 12, 8, 12}
	if e.Evaluate(cond, anomalyEvents(full, nil)) {
		t.Error("anomaly with no test values: got true, want false")
	}
}

func TestAnomaly_ZeroStddevBaseline(t *testing.T) {
	e := newTestEvaluator()
	cond := Condition{Type: TypeAnomaly, Metric: "v"}
	flat := []float64{5, 5, 5, 5, 5, 5, 5, 5, 5, 5}
	if e.Evaluate(cond, anomalyEvents(flat, []float64{100})) {
		t.Error("anomaly with zero-stddev baseline: got true, want false (z undefined)")
	}
}

// dynamicEvents builds a baseline (older than 5 minutes) plus recent test values.
func dynamicEvents(baseline []float64, test []float64) []event.TelemetryEvent {
	var out []event.TelemetryEvent
	for i, v := range baseline {
		out = append(out, event.TelemetryEvent{
			Type: "metric", Name: "m",
			Timestamp:    testNow.Add(-2*time.Hour + time.Duration(i)*time.Second),
			Measurements: map[string]float64{"v": v},
		})
	}
	for i, v := range test {
		out = append(out, event.TelemetryEvent{
			Type: "metric", Name: "m",
			Timestamp:    testNow.Add(-time.Minute + time.Duration(i)*time.Second),
			Measurements: map[string]float64{"v": v},
		})
	}
	return out
}

func TestDynamicThreshold(t *testing.T) {
	e := newTestEvaluator()
	// Baseline mean 10, stddev 2; factor 2 → band [6, 14].
	baseline := []float64{8, 12, 8, 12, 8, 12, 8, 12}

	tests := []struct {
		name string
		op   Operator
		test []float64
		want bool
	}{
		{"above upper/gt", OpGT, []float64{20}, true},
		{"inside band/gt", OpGT, []float64{11}, false},
		{"below lower/lt", OpLT, []float64{2}, true},
		{"inside band/lt", OpLT, []float64{9}, false},
		{"outside either/ne", OpNE, []float64{2}, true},
		{"inside band/ne", OpNE, []float64{10}, false},
	}
	for _, tt := range tests {
		cond := Condition{Type: TypeDynamicThreshold, Metric: "v", Operator: tt.op}
		if got := e.Evaluate(cond, dynamicEvents(baseline, tt.test)); got != tt.want {
			t.Errorf("dynamic %s: got %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestDynamicThreshold_AggregateOverTestWindow(t *testing.T) {
	e := newTestEvaluator()
	baseline := []float64{8, 12, 8, 12, 8, 12, 8, 12} // band [6, 14] at factor 2

	// One spike among normal values: avg stays inside the band, max does not.
	spiky := []float64{9, 10, 20, 9, 9} // avg 11.4, max 20
	avgCond := Condition{Type: TypeDynamicThreshold, Metric: "v", Operator: OpGT}
	if e.Evaluate(avgCond, dynamicEvents(baseline, spiky)) {
		t.Error("dynamic avg 11.4 gt upper 14: got true, want false")
	}
	maxCond := Condition{Type: TypeDynamicThreshold, Metric: "v", Operator: OpGT, Aggregation: AggMax}
	if !e.Evaluate(maxCond, dynamicEvents(baseline, spiky)) {
		t.Error("dynamic max 20 gt upper 14: got false, want true")
	}
}

func TestDynamicThreshold_DeviationFactor(t *testing.T) {
	e := newTestEvaluator()
	// Baseline mean 10, stddev 2.
	baseline := []float64{8, 12, 8, 12, 8, 12, 8, 12}
	test := []float64{16}

	// Default factor 2 → upper 14: 16 fires.
	def := Condition{Type: TypeDynamicThreshold, Metric: "v", Operator: OpGT}
	if !e.Evaluate(def, dynamicEvents(baseline, test)) {
		t.Error("default factor 2, value 16 gt upper 14: got false, want true")
	}
	// Explicit factor 5 → upper 20: 16 does not fire.
	wide := Condition{Type: TypeDynamicThreshold, Metric: "v", Operator: OpGT, DeviationFactor: floatPtr(5)}
	if e.Evaluate(wide, dynamicEvents(baseline, test)) {
		t.Error("factor 5, value 16 gt upper 20: got true, want false")
	}
}

func TestComposite(t *testing.T) {
	e := newTestEvaluator()
	events := metricEvents("v", 400, 600, 700) // avg ≈ 566.7, 3 events

	passing := Condition{Type: TypeThreshold, Metric: "v", Operator: OpGT, Threshold: 500}
	failing := Condition{Type: TypeFrequency, Window: 60, MinCount: 10}

	and := Condition{Type: TypeComposite, Logical: LogicalAnd, Children: []Condition{passing, failing}}
	if e.Evaluate(and, events) {
		t.Error("AND(pass, fail): got true, want false")
	}

	or := Condition{Type: TypeComposite, Logical: LogicalOr, Children: []Condition{passing, failing}}
	if !e.Evaluate(or, events) {
		t.Error("OR(pass, fail): got false, want true")
	}

	not := Condition{Type: TypeComposite, Logical: LogicalNot, Children: []Condition{passing}}
	if e.Evaluate(not, events) {
		t.Error("NOT(pass): got true, want false")
	}
}

func TestComposite_WindowFiltersChildren(t *testing.T) {
	e := newTestEvaluator()
	stale := event.TelemetryEvent{
		Type: "metric", Name: "m",
		Timestamp:    testNow.Add(-10 * time.Minute),
		Measurements: map[string]float64{"v": 1000},
	}
	events := append([]event.TelemetryEvent{stale}, metricEvents("v", 10, 20)...)

	child := Condition{Type: TypeThreshold, Metric: "v", Operator: OpGT, Threshold: 100}

	// Without a window the stale spike dominates the average.
	open := Condition{Type: TypeComposite, Logical: LogicalAnd, Children: []Condition{child}}
	if !e.Evaluate(open, events) {
		t.Error("unwindowed composite: got false, want true")
	}

	// The composite's own window must filter before children evaluate.
	windowed := Condition{Type: TypeComposite, Logical: LogicalAnd, Window: 60, Children: []Condition{child}}
	if e.Evaluate(windowed, events) {
		t.Error("windowed composite: stale event leaked into child aggregate")
	}
}

func TestComposite_Nested(t *testing.T) {
	e := newTestEvaluator()
	events := metricEvents("v", 400, 600, 700)

	passing := Condition{Type: TypeThreshold, Metric: "v", Operator: OpGT, Threshold: 500}
	failing := Condition{Type: TypeFrequency, Window: 60, MinCount: 10}

	// OR(fail, NOT(AND(pass, fail))) → OR(false, NOT(false)) → true.
	nested := Condition{
		Type: TypeComposite, Logical: LogicalOr,
		Children: []Condition{
			failing,
			{
				Type: TypeComposite, Logical: LogicalNot,
				Children: []Condition{
					{Type: TypeComposite, Logical: LogicalAnd, Children: []Condition{passing, failing}},
				},
			},
		},
	}
	if !e.Evaluate(nested, events) {
		t.Error("nested composite: got false, want true")
	}
}

func TestCustom(t *testing.T) {
	e := newTestEvaluator()
	e.RegisterCustom("always-true", func(Condition, []event.TelemetryEvent) bool { return true })

	registered := Condition{Type: TypeCustom, Evaluator: "always-true"}
	if !e.Evaluate(registered, nil) {
		t.Error("registered custom evaluator: got false, want true")
	}

	unknown := Condition{Type: TypeCustom, Evaluator: "nope"}
	if e.Evaluate(unknown, nil) {
		t.Error("unregistered custom evaluator: got true, want false")
	}
}

func TestEvaluate_MalformedConditions(t *testing.T) {
	e := newTestEvaluator()
	events := metricEvents("v", 1, 2, 3)

	malformed := []Condition{
		{Type: "bogus"},
		{Type: TypeThreshold}, // no metric
		{Type: TypeFrequency}, // no min_count
		{Type: TypeComposite, Logical: LogicalAnd},            // no children
		{Type: TypeComposite, Logical: "xor", Children: []Condition{{Type: TypeAbsence, Window: 60}}},
		{Type: TypeCustom}, // no evaluator name
	}
	for i, c := range malformed {
		if e.Evaluate(c, events) {
			t.Errorf("malformed condition %d (%s): got true, want false", i, c.Type)
		}
	}
}

func TestValidate(t *testing.T) {
	valid := []Condition{
		{Type: TypeThreshold, Metric: "v", Operator: OpGT},
		{Type: TypeFrequency, Window: 60, MinCount: 1},
		{Type: TypeAbsence, Window: 60},
		{Type: TypeChange, Metric: "v", Operator: OpLE},
		{Type: TypeTrend, Metric: "v"},
		{Type: TypeAnomaly, Metric: "v", Sensitivity: floatPtr(0.3)},
		{Type: TypeDynamicThreshold, Metric: "v", Operator: OpNE},
		{Type: TypeDynamicThreshold, Metric: "v", Operator: OpGT, DeviationFactor: floatPtr(1.5)},
		{Type: TypeComposite, Logical: LogicalNot, Children: []Condition{{Type: TypeAbsence, Window: 1}}},
		{Type: TypeCustom, Evaluator: "fn"},
	}
	for i, c := range valid {
		if err := c.Validate(); err != nil {
			t.Errorf("Validate(valid %d %s): unexpected error: %v", i, c.Type, err)
		}
	}

	invalid := []Condition{
		{Type: TypeThreshold, Operator: OpGT},
		{Type: TypeThreshold, Metric: "v", Operator: "gte"},
		{Type: TypeThreshold, Metric: "v", Operator: OpGT, Aggregation: "mode"},
		{Type: TypeFrequency, Window: 60},
		{Type: TypeAbsence},
		{Type: TypeAnomaly, Metric: "v", Sensitivity: floatPtr(1.5)},
		{Type: TypeDynamicThreshold, Metric: "v", Operator: OpEQ}, // eq meaningless against a band
		{Type: TypeDynamicThreshold, Metric: "v", Operator: OpGT, DeviationFactor: floatPtr(0)},
		{Type: TypeComposite, Logical: LogicalAnd},
		{Type: TypeComposite, Logical: LogicalAnd, Children: []Condition{{Type: TypeThreshold}}}, // bad child
		{Type: TypeCustom},
		{Type: "bogus"},
	}
	for i, c := range invalid {
		if err := c.Validate(); err == nil {
			t.Errorf("Validate(invalid %d %s): expected error, got nil", i, c.Type)
		}
	}
}

func TestRuleValidateAndMatches(t *testing.T) {
	rule := AlertRule{
		Name:       "high latency",
		EventTypes: []string{"request"},
		EventNames: []string{"checkout"},
		Conditions: []Condition{{Type: TypeThreshold, Metric: "latency", Operator: OpGT, Threshold: 250}},
		Enabled:    true,
	}
	if err := rule.Validate(); err != nil {
		t.Fatalf("Validate: unexpected error: %v", err)
	}

	match := event.TelemetryEvent{Type: "request", Name: "checkout"}
	if !rule.Matches(match) {
		t.Error("Matches(request/checkout): got false, want true")
	}
	if rule.Matches(event.TelemetryEvent{Type: "request", Name: "login"}) {
		t.Error("Matches(request/login): got true, want false (name filter)")
	}
	if rule.Matches(event.TelemetryEvent{Type: "log", Name: "checkout"}) {
		t.Error("Matches(log/checkout): got true, want false (type filter)")
	}

	rule.Enabled = false
	if rule.Matches(match) {
		t.Error("Matches on disabled rule: got true, want false")
	}

	noNames := AlertRule{
		Name: "any request", EventTypes: []string{"request"}, Enabled: true,
		Conditions: []Condition{{Type: TypeAbsence, Window: 60}},
	}
	if !noNames.Matches(event.TelemetryEvent{Type: "request", Name: "anything"}) {
		t.Error("Matches without name restriction: got false, want true")
	}
}

func TestRuleValidate_Invalid(t *testing.T) {
	cases := []AlertRule{
		{EventTypes: []string{"t"}, Conditions: []Condition{{Type: TypeAbsence, Window: 1}}},            // no name
		{Name: "r", Conditions: []Condition{{Type: TypeAbsence, Window: 1}}},                            // no types
		{Name: "r", EventTypes: []string{"t"}},                                                          // no conditions
		{Name: "r", EventTypes: []string{"t"}, Severity: "fatal", Conditions: []Condition{{Type: TypeAbsence, Window: 1}}},
	}
	for i, r := range cases {
		if err := r.Validate(); err == nil {
			t.Errorf("Validate(invalid rule %d): expected error, got nil", i)
		}
	}
}
