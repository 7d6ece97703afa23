package player

import (
	"strconv"
	"strings"
)

// grooveScale is the normalized per-tick weight of a flat groove. A groove of
// length n always sums to n*grooveScale, so grooves redistribute time within
// their cycle without changing the cycle's total duration.
const grooveScale = 1000

// ParseGroove parses a comma-separated list of positive integer weights and
// normalizes it. An empty string is the flat groove.
func ParseGroove(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return []int{grooveScale}, nil
	}
	parts := strings.Split(s, ",")
	weights := make([]int, len(parts))
	for i, part := range parts {
		w, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, errorf(KindConfiguration, "malformed groove entry %q", part)
		}
		if w <= 0 {
			return nil, errorf(KindConfiguration, "groove weight %d must be positive", w)
		}
		weights[i] = w
	}
	return NormalizeGroove(weights), nil
}

// NormalizeGroove rescales weights so they sum to len(weights)*1000.
// Rounding happens on cumulative sums, so the cycle total is conserved
// exactly no matter the input.
func NormalizeGroove(weights []int) []int {
	sum := 0
	for _, w := range weights {
		sum += w
	}
	total := len(weights) * grooveScale
	normalized := make([]int, len(weights))
	prefix := 0
	prevScaled := 0
	for i, w := range weights {
		prefix += w
		scaled := (prefix*total + sum/2) / sum
		normalized[i] = scaled - prevScaled
		prevScaled = scaled
	}
	return normalized
}
