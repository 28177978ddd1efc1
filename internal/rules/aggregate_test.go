package rules

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestAggregate(t *testing.T) {
	values := []float64{4, 1, 3, 2}

	tests := []struct {
		agg  Aggregation
		want float64
	}{
		{AggAvg, 2.5},
		{"", 2.5}, // empty means avg
		{AggMax, 4},
		{AggMin, 1},
		{AggSum, 10},
		{AggCount, 4},
		{AggLast, 2}, // input order, not sorted
		{AggMedian, 2.5},
		{AggVariance, 1.25},
		{AggStddev, math.Sqrt(1.25)},
	}
	for _, tt := range tests {
		got, ok := aggregate(tt.agg, values)
		if !ok {
			t.Errorf("aggregate(%q): unexpectedly not ok", tt.agg)
			continue
		}
		if !almostEqual(got, tt.want) {
			t.Errorf("aggregate(%q): got %v, want %v", tt.agg, got, tt.want)
		}
	}
}

func TestAggregate_EmptyAndUnknown(t *testing.T) {
	if _, ok := aggregate(AggAvg, nil); ok {
		t.Error("aggregate of empty values: got ok, want false")
	}
	if _, ok := aggregate("p50th", []float64{1}); ok {
		t.Error("aggregate with unknown function: got ok, want false")
	}
}

func TestMedian(t *testing.T) {
	if got := median([]float64{1, 2, 3, 4}); !almostEqual(got, 2.5) {
		t.Errorf("median([1 2 3 4]): got %v, want 2.5", got)
	}
	if got := median([]float64{1, 2, 3}); !almostEqual(got, 2) {
		t.Errorf("median([1 2 3]): got %v, want 2", got)
	}
	if got := median([]float64{3, 1, 2}); !almostEqual(got, 2) {
		t.Errorf("median([3 1 2]): got %v, want 2 (unsorted input)", got)
	}
}

func TestPercentile_LinearInterpolation(t *testing.T) {
	values := []float64{10, 20, 30, 40, 50}

	tests := []struct {
		q    float64
		want float64
	}{
		{0.90, 46}, // rank 3.6 between 40 and 50
		{0.95, 48},
		{0.99, 49.6},
		{0.50, 30},
	}
	for _, tt := range tests {
		if got := percentile(values, tt.q); !almostEqual(got, tt.want) {
			t.Errorf("percentile(q=%v): got %v, want %v", tt.q, got, tt.want)
		}
	}

	if got := percentile([]float64{7}, 0.99); got != 7 {
		t.Errorf("percentile of single value: got %v, want 7", got)
	}
}

func TestSlope(t *testing.T) {
	// y = 2x + 1
	xs := []float64{0, 1, 2, 3}
	ys := []float64{1, 3, 5, 7}
	got, ok := slope(xs, ys)
	if !ok {
		t.Fatal("slope: unexpectedly not ok")
	}
	if !almostEqual(got, 2) {
		t.Errorf("slope: got %v, want 2", got)
	}
}

func TestSlope_Degenerate(t *testing.T) {
	if _, ok := slope([]float64{1}, []float64{1}); ok {
		t.Error("slope with one point: got ok, want false")
	}
	if _, ok := slope([]float64{2, 2, 2}, []float64{1, 2, 3}); ok {
		t.Error("slope with identical x values: got ok, want false")
	}
}

func TestVariance_Population(t *testing.T) {
	// Population variance of [2, 4, 4, 4, 5, 5, 7, 9] is exactly 4.
	got := variance([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	if !almostEqual(got, 4) {
		t.Errorf("variance: got %v, want 4", got)
	}
}
