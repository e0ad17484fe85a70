package avoid

import "time"

// holdPatience is how long sustained interference against the same
// commanded bearing is tolerated before a position-hold command is issued.
const holdPatience = 3 * time.Second

// failsafe tracks how long the operator has been commanding into the same
// restricted bearing while the shaper interferes. It fires at most once per
// sustained-interference episode.
type failsafe struct {
	since time.Time
	bin   int
	armed bool
	fired bool
}

// observe records one cycle's interference state. commandedBin is the bin
// the operator's raw setpoint points into. It returns true exactly once per
// episode, when the patience threshold is exceeded.
func (f *failsafe) observe(now time.Time, interfering bool, commandedBin int) bool {
	if !interfering {
		f.armed = false
		f.fired = false
		return false
	}
	if !f.armed || commandedBin != f.bin {
		// New episode: interference just began, or the operator changed
		// which restricted bearing they are pushing into.
		f.armed = true
		f.fired = false
		f.bin = commandedBin
		f.since = now
		return false
	}
	if !f.fired && now.Sub(f.since) > holdPatience {
		f.fired = true
		return true
	}
	return false
}
