package units

import (
	"math"
	"testing"
)

func TestRadiansDegrees(t *testing.T) {
	tests := []struct {
		deg float64
		rad float64
	}{
		{0, 0},
		{90, math.Pi / 2},
		{-90, -math.Pi / 2},
		{180, math.Pi},
		{360, 2 * math.Pi},
	}
	for _, tc := range tests {
		if got := Radians(tc.deg); math.Abs(got-tc.rad) > 1e-12 {
			t.Errorf("Radians(%v) = %v, want %v", tc.deg, got, tc.rad)
		}
		if got := Degrees(tc.rad); math.Abs(got-tc.deg) > 1e-9 {
			t.Errorf("Degrees(%v) = %v, want %v", tc.rad, got, tc.deg)
		}
	}
}

func TestWrapTwoPi(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{0, 0},
		{math.Pi, math.Pi},
		{-math.Pi / 2, 3 * math.Pi / 2},
		{2 * math.Pi, 0},
		{5 * math.Pi, math.Pi},
		{-5 * math.Pi, math.Pi},
	}
	for _, tc := range tests {
		if got := WrapTwoPi(tc.in); math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("WrapTwoPi(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestWrap360(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{0, 0},
		{359.5, 359.5},
		{360, 0},
		{-10, 350},
		{725, 5},
	}
	for _, tc := range tests {
		if got := Wrap360(tc.in); math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("Wrap360(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestWrapPi(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{0, 0},
		{math.Pi / 2, math.Pi / 2},
		{math.Pi, -math.Pi},
		{3 * math.Pi / 2, -math.Pi / 2},
		{-3 * math.Pi / 2, math.Pi / 2},
	}
	for _, tc := range tests {
		if got := WrapPi(tc.in); math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("WrapPi(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestConvertSpeed(t *testing.T) {
	if got := ConvertSpeed(10, MPH); math.Abs(got-22.369362920544) > 1e-9 {
		t.Errorf("ConvertSpeed(10, mph) = %v", got)
	}
	if got := ConvertSpeed(10, KPH); got != 36 {
		t.Errorf("ConvertSpeed(10, kph) = %v, want 36", got)
	}
	if got := ConvertSpeed(10, "bogus"); got != 10 {
		t.Errorf("unknown unit should pass through, got %v", got)
	}
}

func TestIsValid(t *testing.T) {
	for _, u := range ValidUnits {
		if !IsValid(u) {
			t.Errorf("IsValid(%q) = false, want true", u)
		}
	}
	if IsValid("furlongs") {
		t.Error("IsValid(furlongs) = true, want false")
	}
}
