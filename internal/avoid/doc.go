// Package avoid implements the collision-prevention constraint engine. It
// fuses point range-sensor readings and an optional offboard wide-field
// obstacle map into a world-stabilized bearing map, and uses that map plus
// a jerk-limited braking model to reshape commanded horizontal velocity
// setpoints so the vehicle cannot be flown into a detected obstacle.
//
// The engine runs synchronously inside a periodic control loop. It never
// blocks, never sleeps, and does not allocate on the per-cycle path; all
// sensor inputs arrive as non-blocking latest-value snapshots.
package avoid
