package rangefinder

import "testing"

func TestClassifyLine(t *testing.T) {
	tests := []struct {
		line string
		want string
	}{
		{"LL40LS v3 fw 2.11 sn 01482", LineIdent},
		{"D 312", LineDistance},
		{"D 312\r", LineDistance},
		{"R 02 80", LineRegister},
		{"R END", LineRegEnd},
		{"R END\r", LineRegEnd},
		{"", LineUnknown},
		{"garbage", LineUnknown},
	}
	for _, tc := range tests {
		if got := ClassifyLine(tc.line); got != tc.want {
			t.Errorf("ClassifyLine(%q) = %q, want %q", tc.line, got, tc.want)
		}
	}
}

func TestParseDistanceCM(t *testing.T) {
	tests := []struct {
		line    string
		want    uint16
		wantErr bool
	}{
		{"D 312", 312, false},
		{"D 0", 0, false},
		{"D 65535", 65535, false},
		{"D 312\r", 312, false},
		{"D 65536", 0, true},
		{"D -3", 0, true},
		{"D abc", 0, true},
		{"X 312", 0, true},
	}
	for _, tc := range tests {
		got, err := ParseDistanceCM(tc.line)
		if (err != nil) != tc.wantErr {
			t.Errorf("ParseDistanceCM(%q) error = %v, wantErr %v", tc.line, err, tc.wantErr)
			continue
		}
		if err == nil && got != tc.want {
			t.Errorf("ParseDistanceCM(%q) = %d, want %d", tc.line, got, tc.want)
		}
	}
}

func TestParseRegister(t *testing.T) {
	addr, value, err := ParseRegister("R 02 80")
	if err != nil {
		t.Fatalf("ParseRegister: %v", err)
	}
	if addr != 0x02 || value != 0x80 {
		t.Errorf("ParseRegister = %#x/%#x, want 0x02/0x80", addr, value)
	}

	for _, bad := range []string{"R zz 80", "R 02", "R 02 80 99", "D 312", "R 100 00"} {
		if _, _, err := ParseRegister(bad); err == nil {
			t.Errorf("ParseRegister(%q) succeeded, want error", bad)
		}
	}
}
