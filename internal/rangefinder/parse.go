package rangefinder

import (
	"fmt"
	"strconv"
	"strings"
)

// Line kinds emitted by the sensor firmware. Every line is one of:
//
//	LL40LS v3 fw 2.11 sn 01482   identify response
//	D 312                        distance sample, centimeters
//	R 02 80                      register address/value pair, hex
//	R END                        register dump terminator
const (
	LineIdent    = "ident"
	LineDistance = "distance"
	LineRegister = "register"
	LineRegEnd   = "regend"
	LineUnknown  = "unknown"
)

// identPrefix is the marker a device answers the identify command with.
const identPrefix = "LL40LS"

// ClassifyLine returns the kind token for a raw line from the sensor.
func ClassifyLine(line string) string {
	line = strings.TrimSpace(line)
	switch {
	case strings.HasPrefix(line, identPrefix):
		return LineIdent
	case strings.HasPrefix(line, "D "):
		return LineDistance
	case line == "R END":
		return LineRegEnd
	case strings.HasPrefix(line, "R "):
		return LineRegister
	default:
		return LineUnknown
	}
}

// ParseDistanceCM parses a distance sample line and returns the reading
// in centimeters.
func ParseDistanceCM(line string) (uint16, error) {
	line = strings.TrimSpace(line)
	rest, ok := strings.CutPrefix(line, "D ")
	if !ok {
		return 0, fmt.Errorf("not a distance line: %q", line)
	}
	v, err := strconv.ParseUint(strings.TrimSpace(rest), 10, 16)
	if err != nil {
		return 0, fmt.Errorf("bad distance in %q: %w", line, err)
	}
	return uint16(v), nil
}

// ParseRegister parses a register dump line into an address/value pair.
func ParseRegister(line string) (addr, value byte, err error) {
	line = strings.TrimSpace(line)
	rest, ok := strings.CutPrefix(line, "R ")
	if !ok {
		return 0, 0, fmt.Errorf("not a register line: %q", line)
	}
	fields := strings.Fields(rest)
	if len(fields) != 2 {
		return 0, 0, fmt.Errorf("malformed register line: %q", line)
	}
	a, err := strconv.ParseUint(fields[0], 16, 8)
	if err != nil {
		return 0, 0, fmt.Errorf("bad register address in %q: %w", line, err)
	}
	v, err := strconv.ParseUint(fields[1], 16, 8)
	if err != nil {
		return 0, 0, fmt.Errorf("bad register value in %q: %w", line, err)
	}
	return byte(a), byte(v), nil
}
