// Package score holds the normalization curves shared by ranking and trust.
// Every function returns a value in [0,1].
package score

import "math"

// Clamp01 bounds v to [0,1]. NaN maps to 0.
func Clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Coverage is |required ∩ offered| / |required|. No requirement scores 1.
func Coverage[T comparable](required, offered []T) float64 {
	if len(required) == 0 {
		return 1
	}
	have := make(map[T]struct{}, len(offered))
	for _, o := range offered {
		have[o] = struct{}{}
	}
	hit := 0
	for _, r := range required {
		if _, ok := have[r]; ok {
			hit++
		}
	}
	return Clamp01(float64(hit) / float64(len(required)))
}

// LatencyScore ramps linearly from 1 at 1ms to 0 at maxMs when a ceiling
// is given, otherwise follows 1/(1+ms/500).
func LatencyScore(latencyMs int, maxMs *int) float64 {
	lat := float64(latencyMs)
	if lat < 1 {
		lat = 1
	}
	if maxMs != nil {
		max := float64(*maxMs)
		if max <= 1 {
			if lat <= max {
				return 1
			}
			return 0
		}
		return Clamp01(1 - (lat-1)/(max-1))
	}
	return Clamp01(1 / (1 + lat/500))
}

// CostScore ramps linearly from 1 at $0 to 0 at maxUSD when a ceiling is
// given, otherwise follows 1/(1+cost). A zero ceiling admits only free apps.
func CostScore(costUSD float64, maxUSD *float64) float64 {
	if costUSD < 0 {
		costUSD = 0
	}
	if maxUSD != nil {
		if *maxUSD <= 0 {
			if costUSD <= 0 {
				return 1
			}
			return 0
		}
		return Clamp01(1 - costUSD/(*maxUSD))
	}
	return Clamp01(1 / (1 + costUSD))
}

// Round4 rounds to four decimal places.
func Round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
