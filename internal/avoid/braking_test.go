package avoid

import (
	"math"
	"testing"
)

func TestMaxSpeedFromBrakingDistance_ZeroAtNoDistance(t *testing.T) {
	if v := MaxSpeedFromBrakingDistance(8, 3, 0); v != 0 {
		t.Errorf("v(0) = %v, want 0", v)
	}
	if v := MaxSpeedFromBrakingDistance(8, 3, -2); v != 0 {
		t.Errorf("v(-2) = %v, want 0", v)
	}
}

func TestMaxSpeedFromBrakingDistance_ClosedForm(t *testing.T) {
	// b = 4*3^2/8 = 4.5; v(1) = (-4.5 + sqrt(4.5^2 + 8*3*1)) / 2
	want := 0.5 * (-4.5 + math.Sqrt(4.5*4.5+24))
	got := MaxSpeedFromBrakingDistance(8, 3, 1)
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("v(1) = %v, want %v", got, want)
	}
}

func TestMaxSpeedFromBrakingDistance_MonotonicInDistance(t *testing.T) {
	prev := 0.0
	for d := 0.0; d <= 50; d += 0.25 {
		v := MaxSpeedFromBrakingDistance(8, 3, d)
		if v < prev {
			t.Fatalf("bound decreased: v(%v)=%v < v(%v)=%v", d, v, d-0.25, prev)
		}
		prev = v
	}
}

func TestMaxSpeedFromBrakingDistance_DegenerateLimits(t *testing.T) {
	if v := MaxSpeedFromBrakingDistance(0, 3, 5); v != 0 {
		t.Errorf("zero jerk: v = %v, want 0", v)
	}
	if v := MaxSpeedFromBrakingDistance(8, 0, 5); v != 0 {
		t.Errorf("zero accel: v = %v, want 0", v)
	}
}
