package rules

import (
	"math"
	"sort"
)

// aggregate reduces values per agg. The second return is false when values
// is empty or the aggregation is unknown. An empty agg means avg.
func aggregate(agg Aggregation, values []float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	switch agg {
	case "", AggAvg:
		return mean(values), true
	case AggMax:
		max := values[0]
		for _, v := range values[1:] {
			if v > max {
				max = v
			}
		}
		return max, true
	case AggMin:
		min := values[0]
		for _, v := range values[1:] {
			if v < min {
				min = v
			}
		}
		return min, true
	case AggSum:
		return sum(values), true
	case AggCount:
		return float64(len(values)), true
	case AggLast:
		return values[len(values)-1], true
	case AggMedian:
		return median(values), true
	case AggP90:
		return percentile(values, 0.90), true
	case AggP95:
		return percentile(values, 0.95), true
	case AggP99:
		return percentile(values, 0.99), true
	case AggStddev:
		return math.Sqrt(variance(values)), true
	case AggVariance:
		return variance(values), true
	default:
		return 0, false
	}
}

func sum(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total
}

func mean(values []float64) float64 {
	return sum(values) / float64(len(values))
}

// variance is the population variance (divide by n).
func variance(values []float64) float64 {
	m := mean(values)
	var ss float64
	for _, v := range values {
		d := v - m
		ss += d * d
	}
	return ss / float64(len(values))
}

// median splits sorted values: middle element for odd n, average of the two
// middle elements for even n.
func median(values []float64) float64 {
	s := sortedCopy(values)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}

// percentile computes the q-th quantile (q in [0,1]) with linear
// interpolation between sorted order statistics.
func percentile(values []float64, q float64) float64 {
	s := sortedCopy(values)
	if len(s) == 1 {
		return s[0]
	}
	rank := q * float64(len(s)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return s[lo]
	}
	frac := rank - float64(lo)
	return s[lo] + frac*(s[hi]-s[lo])
}

func sortedCopy(values []float64) []float64 {
	s := make([]float64, len(values))
	copy(s, values)
	sort.Float64s(s)
	return s
}

// slope fits an ordinary least-squares line to (x, y) points and returns its
// slope. Returns false when fewer than two points are given or all x values
// coincide (vertical line).
func slope(xs, ys []float64) (float64, bool) {
	n := len(xs)
	if n < 2 || n != len(ys) {
		return 0, false
	}
	mx := mean(xs)
	my := mean(ys)
	var num, den float64
	for i := 0; i < n; i++ {
		dx := xs[i] - mx
		num += dx * (ys[i] - my)
		den += dx * dx
	}
	if den == 0 {
		return 0, false
	}
	return num / den, true
}
