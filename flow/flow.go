// Package flow implements the frozen advection flow field spec.md
// prescribes: a sinusoid in (vx, vy) shared by every subdomain, with no
// feedback from the state estimate. Grounded on
// original_source/.../Amdados2D.cpp's Flow() function; see DESIGN.md
// Open Question 1 for the one deliberate normalization deviation from
// that source (this package follows the spec's literal t/Nt form).
package flow

import "math"

// VxVy returns the flow velocity components at step t out of nt total
// steps, scaled by the configured maxima.
func VxVy(maxVx, maxVy float64, t int, nt int) (vx, vy float64) {
	frac := float64(t) / float64(nt)
	vx = -maxVx * math.Sin(0.1*frac-math.Pi)
	vy = -maxVy * math.Sin(0.2*frac-math.Pi)
	return
}
