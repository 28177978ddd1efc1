package rules

import "fmt"

// ConditionType discriminates the Condition variant.
type ConditionType string

// Condition kinds.
const (
	TypeThreshold        ConditionType = "threshold"
	TypeFrequency        ConditionType = "frequency"
	TypeAbsence          ConditionType = "absence"
	TypeChange           ConditionType = "change"
	TypeTrend            ConditionType = "trend"
	TypeAnomaly          ConditionType = "anomaly"
	TypeDynamicThreshold ConditionType = "dynamic_threshold"
	TypeComposite        ConditionType = "composite"
	TypeCustom           ConditionType = "custom"
)

// Operator is a comparison operator applied to an aggregate or delta.
type Operator string

// Comparison operators.
const (
	OpGT Operator = "gt"
	OpLT Operator = "lt"
	OpEQ Operator = "eq"
	OpNE Operator = "ne"
	OpGE Operator = "ge"
	OpLE Operator = "le"
)

// Aggregation reduces a set of metric values to one number.
type Aggregation string

// Aggregation functions.
const (
	AggAvg      Aggregation = "avg"
	AggMax      Aggregation = "max"
	AggMin      Aggregation = "min"
	AggSum      Aggregation = "sum"
	AggCount    Aggregation = "count"
	AggLast     Aggregation = "last"
	AggMedian   Aggregation = "median"
	AggP90      Aggregation = "p90"
	AggP95      Aggregation = "p95"
	AggP99      Aggregation = "p99"
	AggStddev   Aggregation = "stddev"
	AggVariance Aggregation = "variance"
)

// LogicalOperator combines child conditions of a composite.
type LogicalOperator string

// Logical operators.
const (
	LogicalAnd LogicalOperator = "and"
	LogicalOr  LogicalOperator = "or"
	LogicalNot LogicalOperator = "not"
)

// TrendDirection selects how a fitted slope is compared to the trend threshold.
type TrendDirection string

// Trend directions.
const (
	TrendIncreasing TrendDirection = "increasing"
	TrendDecreasing TrendDirection = "decreasing"
	TrendStable     TrendDirection = "stable"
)

// Defaults applied when the corresponding field is unset.
const (
	DefaultTrainingWindowSec = 24 * 60 * 60 // anomaly training lookback
	DefaultBaselineWindowSec = 24 * 60 * 60 // dynamic threshold baseline lookback
	DefaultSensitivity       = 0.5          // anomaly: z threshold 3 − 2×s = 2
	DefaultDeviationFactor   = 2.0          // dynamic threshold band width
)

// Condition is one testable predicate over recent events. Type selects the
// variant; each variant reads only its own fields.
type Condition struct {
	Type ConditionType `json:"type" yaml:"type"`

	// Metric names the numeric value extracted from each event. Read by
	// threshold, change, trend, anomaly, and dynamic_threshold.
	Metric string `json:"metric,omitempty" yaml:"metric,omitempty"`

	// Operator compares the computed value to Threshold (or, for
	// dynamic_threshold, selects which band edge must be crossed).
	Operator Operator `json:"operator,omitempty" yaml:"operator,omitempty"`

	// Threshold is the comparison constant for threshold and change.
	Threshold float64 `json:"threshold,omitempty" yaml:"threshold,omitempty"`

	// Window restricts evaluation to events at most this many seconds old.
	// Zero means all buffered events for the rule's types/names.
	Window int `json:"time_window,omitempty" yaml:"time_window,omitempty"`

	// Aggregation reduces extracted values for threshold and
	// dynamic_threshold. Defaults to avg.
	Aggregation Aggregation `json:"aggregation,omitempty" yaml:"aggregation,omitempty"`

	// MinCount is the firing threshold for frequency.
	MinCount int `json:"min_count,omitempty" yaml:"min_count,omitempty"`

	// UsePercentage makes change compare (delta/|first|)×100 instead of the
	// raw delta.
	UsePercentage bool `json:"use_percentage,omitempty" yaml:"use_percentage,omitempty"`

	// TrendDirection and TrendThreshold tune trend. Direction defaults to
	// increasing, threshold to 0.
	TrendDirection TrendDirection `json:"trend_direction,omitempty" yaml:"trend_direction,omitempty"`
	TrendThreshold float64        `json:"trend_threshold,omitempty" yaml:"trend_threshold,omitempty"`

	// TrainingWindow (seconds) is the anomaly training lookback, default 24h.
	TrainingWindow int `json:"training_window,omitempty" yaml:"training_window,omitempty"`

	// Sensitivity in [0,1] sets the anomaly z threshold to 3 − 2×sensitivity.
	// Nil means the default 0.5.
	Sensitivity *float64 `json:"sensitivity,omitempty" yaml:"sensitivity,omitempty"`

	// BaselineWindow (seconds) and DeviationFactor tune dynamic_threshold.
	// Defaults: 24h and 2.0. DeviationFactor is a pointer so an explicit
	// value is distinguishable from unset; nil means the default.
	BaselineWindow  int      `json:"baseline_window,omitempty" yaml:"baseline_window,omitempty"`
	DeviationFactor *float64 `json:"deviation_factor,omitempty" yaml:"deviation_factor,omitempty"`

	// Logical and Children define a composite. not reads only the first child.
	Logical  LogicalOperator `json:"logical_operator,omitempty" yaml:"logical_operator,omitempty"`
	Children []Condition     `json:"conditions,omitempty" yaml:"conditions,omitempty"`

	// Evaluator names the registered function a custom condition delegates to.
	Evaluator string `json:"evaluator,omitempty" yaml:"evaluator,omitempty"`
}

// Validate checks that the condition carries the fields its evaluator
// requires. Composites are validated recursively.
func (c Condition) Validate() error {
	switch c.Type {
	case TypeThreshold:
		if c.Metric == "" {
			return fmt.Errorf("threshold condition: metric is required")
		}
		if err := validOperator(c.Operator); err != nil {
			return fmt.Errorf("threshold condition: %w", err)
		}
		if err := validAggregation(c.Aggregation); err != nil {
			return fmt.Errorf("threshold condition: %w", err)
		}

	case TypeFrequency:
		if c.Window <= 0 {
			return fmt.Errorf("frequency condition: time_window must be positive")
		}
		if c.MinCount <= 0 {
			return fmt.Errorf("frequency condition: min_count must be positive")
		}

	case TypeAbsence:
		if c.Window <= 0 {
			return fmt.Errorf("absence condition: time_window must be positive")
		}

	case TypeChange:
		if c.Metric == "" {
			return fmt.Errorf("change condition: metric is required")
		}
		if err := validOperator(c.Operator); err != nil {
			return fmt.Errorf("change condition: %w", err)
		}

	case TypeTrend:
		if c.Metric == "" {
			return fmt.Errorf("trend condition: metric is required")
		}
		switch c.TrendDirection {
		case "", TrendIncreasing, TrendDecreasing, TrendStable:
		default:
			return fmt.Errorf("trend condition: direction %q unknown: want increasing|decreasing|stable", c.TrendDirection)
		}

	case TypeAnomaly:
		if c.Metric == "" {
			return fmt.Errorf("anomaly condition: metric is required")
		}
		if s := c.Sensitivity; s != nil && (*s < 0 || *s > 1) {
			return fmt.Errorf("anomaly condition: sensitivity %v out of range [0, 1]", *s)
		}
		if c.TrainingWindow < 0 {
			return fmt.Errorf("anomaly condition: training_window must not be negative")
		}

	case TypeDynamicThreshold:
		if c.Metric == "" {
			return fmt.Errorf("dynamic_threshold condition: metric is required")
		}
		switch c.Operator {
		case OpGT, OpLT, OpGE, OpLE, OpNE:
		default:
			return fmt.Errorf("dynamic_threshold condition: operator %q unknown: want gt|lt|ge|le|ne", c.Operator)
		}
		if c.Aggregation != "" {
			if err := validAggregation(c.Aggregation); err != nil {
				return fmt.Errorf("dynamic_threshold condition: %w", err)
			}
		}
		if f := c.DeviationFactor; f != nil && *f <= 0 {
			return fmt.Errorf("dynamic_threshold condition: deviation_factor %v must be positive", *f)
		}

	case TypeComposite:
		switch c.Logical {
		case LogicalAnd, LogicalOr, LogicalNot:
		default:
			return fmt.Errorf("composite condition: logical_operator %q unknown: want and|or|not", c.Logical)
		}
		if len(c.Children) == 0 {
			return fmt.Errorf("composite condition: at least one child condition is required")
		}
		for i, child := range c.Children {
			if err := child.Validate(); err != nil {
				return fmt.Errorf("composite condition: child %d: %w", i, err)
			}
		}

	case TypeCustom:
		if c.Evaluator == "" {
			return fmt.Errorf("custom condition: evaluator name is required")
		}

	default:
		return fmt.Errorf("condition type %q unknown", c.Type)
	}
	return nil
}

func validOperator(op Operator) error {
	switch op {
	case OpGT, OpLT, OpEQ, OpNE, OpGE, OpLE:
		return nil
	}
	return fmt.Errorf("operator %q unknown: want gt|lt|eq|ne|ge|le", op)
}

func validAggregation(agg Aggregation) error {
	switch agg {
	case "", AggAvg, AggMax, AggMin, AggSum, AggCount, AggLast,
		AggMedian, AggP90, AggP95, AggP99, AggStddev, AggVariance:
		return nil
	}
	return fmt.Errorf("aggregation %q unknown", agg)
}

// compare applies op to v against threshold.
func compare(v float64, op Operator, threshold float64) bool {
	switch op {
	case OpGT:
		return v > threshold
	case OpLT:
		return v < threshold
	case OpEQ:
		return v == threshold
	case OpNE:
		return v != threshold
	case OpGE:
		return v >= threshold
	case OpLE:
		return v <= threshold
	default:
		return false
	}
}
