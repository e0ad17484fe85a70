package avoid

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/num/quat"
)

func TestOrientation_YawOffsetFixedVariants(t *testing.T) {
	tests := []struct {
		name  string
		mount Mount
		want  float64
	}{
		{"forward", MountForward, 0},
		{"right", MountRight, math.Pi / 2},
		{"left", MountLeft, -math.Pi / 2},
		{"backward", MountBackward, math.Pi},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			o := Orientation{Mount: tc.mount}
			if got := o.YawOffset(); math.Abs(got-tc.want) > 1e-12 {
				t.Errorf("YawOffset() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestOrientation_YawOffsetCustom(t *testing.T) {
	// A custom mount rotated 45 degrees about Z.
	o := Orientation{Mount: MountCustom, Quat: QuatFromYaw(math.Pi / 4)}
	if got := o.YawOffset(); math.Abs(got-math.Pi/4) > 1e-9 {
		t.Errorf("YawOffset() = %v, want %v", got, math.Pi/4)
	}
}

func TestOrientation_FixedOffsetAdded(t *testing.T) {
	tests := []struct {
		name string
		o    Orientation
		want float64
	}{
		{"forward+15", Orientation{Mount: MountForward, OffsetDeg: 15}, 15 * math.Pi / 180},
		{"right+15", Orientation{Mount: MountRight, OffsetDeg: 15}, math.Pi/2 + 15*math.Pi/180},
		{"backward-30", Orientation{Mount: MountBackward, OffsetDeg: -30}, math.Pi - 30*math.Pi/180},
		{"custom+10", Orientation{Mount: MountCustom, Quat: QuatFromYaw(math.Pi / 2), OffsetDeg: 10}, math.Pi/2 + 10*math.Pi/180},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.o.YawOffset(); math.Abs(got-tc.want) > 1e-9 {
				t.Errorf("YawOffset() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestYaw(t *testing.T) {
	tests := []struct {
		name string
		yaw  float64
	}{
		{"zero", 0},
		{"quarter", math.Pi / 2},
		{"negative-quarter", -math.Pi / 2},
		{"near-pi", 3},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Yaw(QuatFromYaw(tc.yaw)); math.Abs(got-tc.yaw) > 1e-9 {
				t.Errorf("Yaw = %v, want %v", got, tc.yaw)
			}
		})
	}
}

func TestPitch(t *testing.T) {
	// Pure pitch rotation of 0.3 rad about Y.
	half := 0.3 / 2
	q := quat.Number{Real: math.Cos(half), Jmag: math.Sin(half)}
	if got := Pitch(q); math.Abs(got-0.3) > 1e-9 {
		t.Errorf("Pitch = %v, want 0.3", got)
	}

	// Identity has no pitch.
	if got := Pitch(quat.Number{Real: 1}); got != 0 {
		t.Errorf("Pitch(identity) = %v, want 0", got)
	}
}

func TestRotateZ_ComposesYaw(t *testing.T) {
	q := QuatFromYaw(math.Pi / 4)
	rotated := RotateZ(q, math.Pi/4)
	if got := Yaw(rotated); math.Abs(got-math.Pi/2) > 1e-9 {
		t.Errorf("Yaw after RotateZ = %v, want %v", got, math.Pi/2)
	}
}

func TestParseMount(t *testing.T) {
	for _, name := range []string{"forward", "right", "left", "backward"} {
		m, err := ParseMount(name)
		if err != nil {
			t.Errorf("ParseMount(%q): %v", name, err)
			continue
		}
		if m.String() != name {
			t.Errorf("ParseMount(%q).String() = %q", name, m.String())
		}
	}
	if _, err := ParseMount("custom"); err == nil {
		t.Error("ParseMount accepted custom")
	}
	if _, err := ParseMount("sideways"); err == nil {
		t.Error("ParseMount accepted bogus name")
	}
}

func TestMountString(t *testing.T) {
	if MountLeft.String() != "left" || Mount(200).String() != "unknown" {
		t.Error("Mount.String mapping broken")
	}
}
