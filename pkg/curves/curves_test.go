package curves

import (
	"math"
	"reflect"
	"testing"

	"gonum.org/v1/gonum/stat"

	"rhizotube/pkg/geometry"
)

func testGeometry(t *testing.T) *geometry.TubeGeometry {
	t.Helper()
	g, err := geometry.NewTubeGeometry(5, math.Pi/4, 10, 10, 1000, 2200, 2000)
	if err != nil {
		t.Fatalf("NewTubeGeometry failed: %v", err)
	}
	return g
}

// TestDepthLevels verifies the level sequence generation, including the
// trailing partial layer when the maximum is not a multiple of the
// interval.
func TestDepthLevels(t *testing.T) {
	cases := []struct {
		name          string
		interval, max float64
		want          []float64
	}{
		{"exact multiple", 40, 200, []float64{0, 40, 80, 120, 160, 200}},
		{"partial tail", 40, 210, []float64{0, 40, 80, 120, 160, 200, 210}},
		{"single layer", 50, 50, []float64{0, 50}},
		{"fractional interval", 12.5, 50, []float64{0, 12.5, 25, 37.5, 50}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			levels, err := DepthLevels(tc.interval, tc.max)
			if err != nil {
				t.Fatalf("DepthLevels(%g, %g) failed: %v", tc.interval, tc.max, err)
			}
			got := make([]float64, len(levels))
			for i, l := range levels {
				got[i] = l.Cm
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("DepthLevels(%g, %g) = %v, want %v", tc.interval, tc.max, got, tc.want)
			}
			for i := 1; i < len(levels); i++ {
				if levels[i].Cm <= levels[i-1].Cm {
					t.Errorf("levels not strictly increasing at index %d: %v", i, got)
				}
			}
		})
	}
}

// TestDepthLevelsValidation verifies rejection of the fatal
// configuration errors.
func TestDepthLevelsValidation(t *testing.T) {
	if _, err := DepthLevels(0, 200); err == nil {
		t.Error("DepthLevels(0, 200) succeeded, want error for non-positive interval")
	}
	if _, err := DepthLevels(-10, 200); err == nil {
		t.Error("DepthLevels(-10, 200) succeeded, want error for negative interval")
	}
	if _, err := DepthLevels(40, 30); err == nil {
		t.Error("DepthLevels(40, 30) succeeded, want error for max depth below interval")
	}
}

// TestGenerateSampling verifies sample count, ordering, uniform spacing
// and the [0, W) coverage guarantee.
func TestGenerateSampling(t *testing.T) {
	g := testGeometry(t)
	gen, err := NewGenerator(g, 1000)
	if err != nil {
		t.Fatalf("NewGenerator failed: %v", err)
	}

	curve := gen.Generate(DepthLevel{Cm: 40})
	if len(curve.Points) != 1000 {
		t.Fatalf("got %d points, want 1000", len(curve.Points))
	}

	if u0 := curve.Points[0].U; u0 != 0 {
		t.Errorf("first sample at u=%g, want 0", u0)
	}
	step := 1000.0 / 1000.0
	if last := curve.Points[len(curve.Points)-1].U; math.Abs(last-(1000-step)) > 1e-9 {
		t.Errorf("last sample at u=%g, want %g", last, 1000-step)
	}

	for i := 1; i < len(curve.Points); i++ {
		du := curve.Points[i].U - curve.Points[i-1].U
		if math.Abs(du-step) > 1e-9 {
			t.Fatalf("non-uniform spacing at index %d: du=%g, want %g", i, du, step)
		}
	}
}

// TestGenerateMatchesGeometry verifies that each sample equals the
// direct geometry evaluation (the generator adds no clamping).
func TestGenerateMatchesGeometry(t *testing.T) {
	g := testGeometry(t)
	gen, err := NewGenerator(g, 250)
	if err != nil {
		t.Fatalf("NewGenerator failed: %v", err)
	}

	curve := gen.Generate(DepthLevel{Cm: 120})
	for _, p := range curve.Points {
		if want := g.VerticalPosition(p.U, 120); p.V != want {
			t.Fatalf("sample at u=%g is %g, want %g", p.U, p.V, want)
		}
	}
}

// TestGenerateReproducible verifies bit-identical output for identical
// inputs.
func TestGenerateReproducible(t *testing.T) {
	g := testGeometry(t)
	gen, err := NewGenerator(g, 0) // default sample count
	if err != nil {
		t.Fatalf("NewGenerator failed: %v", err)
	}

	a := gen.Generate(DepthLevel{Cm: 80})
	b := gen.Generate(DepthLevel{Cm: 80})
	if len(a.Points) != DefaultSamples {
		t.Fatalf("default sample count = %d, want %d", len(a.Points), DefaultSamples)
	}
	if !reflect.DeepEqual(a.Points, b.Points) {
		t.Error("two generations of the same curve differ")
	}
}

// TestGenerateAllMeanOrdering verifies that deeper curves have strictly
// smaller mean v, level order preserved.
func TestGenerateAllMeanOrdering(t *testing.T) {
	g := testGeometry(t)
	gen, err := NewGenerator(g, 500)
	if err != nil {
		t.Fatalf("NewGenerator failed: %v", err)
	}

	levels, err := DepthLevels(40, 200)
	if err != nil {
		t.Fatalf("DepthLevels failed: %v", err)
	}
	all := gen.GenerateAll(levels)
	if len(all) != len(levels) {
		t.Fatalf("got %d curves, want %d", len(all), len(levels))
	}

	prev := math.Inf(1)
	for i, curve := range all {
		if curve.Level != levels[i] {
			t.Errorf("curve %d has level %v, want %v", i, curve.Level, levels[i])
		}
		vs := make([]float64, len(curve.Points))
		for j, p := range curve.Points {
			vs[j] = p.V
		}
		mean := stat.Mean(vs, nil)
		if mean >= prev {
			t.Errorf("curve %d mean %.3f not below previous %.3f", i, mean, prev)
		}
		prev = mean
	}
}

// TestLabel checks the display label format.
func TestLabel(t *testing.T) {
	if got := (DepthLevel{Cm: 40}).Label(); got != "Depth: 40 cm" {
		t.Errorf("Label() = %q, want %q", got, "Depth: 40 cm")
	}
	if got := (DepthLevel{Cm: 12.5}).Label(); got != "Depth: 12.5 cm" {
		t.Errorf("Label() = %q, want %q", got, "Depth: 12.5 cm")
	}
}
