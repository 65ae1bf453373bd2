package score

import (
	"math"
	"testing"
)

func intp(v int) *int           { return &v }
func floatp(v float64) *float64 { return &v }
func near(a, b float64) bool    { return math.Abs(a-b) < 1e-9 }

func TestCostScoreBoundaries(t *testing.T) {
	tests := []struct {
		name string
		cost float64
		max  *float64
		want float64
	}{
		{"at ceiling", 0.01, floatp(0.01), 0},
		{"free under zero ceiling", 0, floatp(0), 1},
		{"paid under zero ceiling", 0.01, floatp(0), 0},
		{"half ceiling", 0.5, floatp(1), 0.5},
		{"over ceiling clamps", 2, floatp(1), 0},
		{"no ceiling free", 0, nil, 1},
		{"no ceiling one dollar", 1, nil, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CostScore(tt.cost, tt.max); !near(got, tt.want) {
				t.Errorf("CostScore(%v) = %v, want %v", tt.cost, got, tt.want)
			}
		})
	}
}

func TestLatencyScore(t *testing.T) {
	tests := []struct {
		name string
		lat  int
		max  *int
		want float64
	}{
		{"1ms under ceiling", 1, intp(1000), 1},
		{"at ceiling", 1000, intp(1000), 0},
		{"over ceiling", 2000, intp(1000), 0},
		{"soft 500", 500, nil, 0.5},
		{"soft 0 treated as 1ms", 0, nil, 1 / (1 + 1.0/500)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LatencyScore(tt.lat, tt.max); !near(got, tt.want) {
				t.Errorf("LatencyScore(%d) = %v, want %v", tt.lat, got, tt.want)
			}
		})
	}
}

func TestCoverage(t *testing.T) {
	if got := Coverage([]string{}, []string{"a"}); got != 1 {
		t.Errorf("Coverage(empty) = %v, want 1", got)
	}
	if got := Coverage([]string{"a", "b"}, []string{"b", "c"}); got != 0.5 {
		t.Errorf("Coverage = %v, want 0.5", got)
	}
}

func TestScoresStayInUnitInterval(t *testing.T) {
	for lat := -10; lat < 5000; lat += 97 {
		for _, max := range []*int{nil, intp(0), intp(1), intp(250), intp(10000)} {
			if s := LatencyScore(lat, max); s < 0 || s > 1 {
				t.Fatalf("LatencyScore(%d) = %v out of range", lat, s)
			}
		}
	}
	for cost := -1.0; cost < 20; cost += 0.37 {
		for _, max := range []*float64{nil, floatp(0), floatp(0.5), floatp(10)} {
			if s := CostScore(cost, max); s < 0 || s > 1 {
				t.Fatalf("CostScore(%v) = %v out of range", cost, s)
			}
		}
	}
}
