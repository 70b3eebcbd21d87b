// Package schwarz implements the flow-aware Schwarz border exchange
// spec.md §4.4 describes: per-side inflow detection via the outward
// normal dotted with the flow vector, halo copy from the upstream
// neighbor on inflow sides, and an outflow fallback policy on the
// others. Grounded line-for-line on
// original_source/.../Amdados2D.cpp::SchwarzUpdate and its UpdBoundary
// closure, including the rel_diff aggregation formula.
package schwarz

import (
	"math"

	"github.com/fearghalodonncha/allscale-amdados/cell"
)

// tiny floors the rel_diff denominator the same way Amdados2D.cpp's
// TINY constant does (smallest float divided by machine epsilon cubed).
const tiny = math.SmallestNonzeroFloat64 / (0x1p-52 * 0x1p-52 * 0x1p-52)

// OutflowPolicy selects how a non-inflow, non-outer border's halo is
// refreshed. spec.md leaves this an open redesign point (DESIGN.md
// Open Question 4); both policies are first-class.
type OutflowPolicy int

const (
	Mirror OutflowPolicy = iota
	Neumann
)

// Boundary is the per-subdomain, per-side exchange record spec.md §3
// names: which sides are outer (global domain edge) vs interior, which
// interior sides are currently inflow, and the cached relative
// difference from the most recent Update.
type Boundary struct {
	Outer   [4]bool
	Inflow  [4]bool
	RelDiff float64
}

// normals gives the outward unit normal for each Side, in the order
// cell.Left, cell.Right, cell.Down, cell.Up.
var normals = [4][2]float64{
	{-1, 0}, // Left
	{1, 0},  // Right
	{0, -1}, // Down
	{0, 1},  // Up
}

// Update exchanges one border of self with its neighbor across the
// given side when it is an inflow side, applies the outflow policy when
// it is an interior side without inflow, and leaves the halo of an
// outer side untouched (the caller's Dirichlet clamp owns it).
// remoteStrip is the neighbor's own boundary strip
// on the opposite side, as it stood at the start of the current
// sub-iteration (ignored, may be nil, when outer) — the caller is
// responsible for capturing it before any subdomain in the batch starts
// writing, per spec.md §5's start-of-step read requirement; Update
// itself never reads a neighbor's live state. It returns the
// numerator/denominator contribution to the subdomain's aggregate
// rel_diff (see Aggregate).
func Update(b *Boundary, self *cell.Cell, remoteStrip []float64, side cell.Side, outer bool, vx, vy float64, policy OutflowPolicy) (numer, denom float64) {
	b.Outer[side] = outer
	if outer {
		b.Inflow[side] = false
		b.RelDiff = 0
		return 0, 0
	}

	n := normals[side]
	dot := n[0]*vx + n[1]*vy
	inflow := dot < 0
	b.Inflow[side] = inflow

	if !inflow {
		applyOutflow(self, side, policy)
		b.RelDiff = 0
		return 0, 0
	}

	myself := self.GetBoundary(side)
	remote := cell.ResampleStrip(remoteStrip, len(myself))
	self.SetBoundary(side, remote)

	var diff, rsum, msum float64
	for k := range myself {
		diff += math.Abs(remote[k] - myself[k])
		rsum += math.Abs(remote[k])
		msum += math.Abs(myself[k])
	}
	b.RelDiff = Aggregate(diff, math.Max(rsum, msum))
	return diff, math.Max(rsum, msum)
}

// Aggregate folds the numerator/denominator sums collected across all
// four sides of a subdomain into the final rel_diff ratio, floored by
// tiny exactly as the original's TINY epsilon does.
func Aggregate(numerSum, denomSum float64) float64 {
	return numerSum / math.Max(denomSum, tiny)
}

func applyOutflow(self *cell.Cell, side cell.Side, policy OutflowPolicy) {
	switch policy {
	case Neumann:
		extrapolate(self, side)
	default:
		self.Mirror(side)
	}
}

// extrapolate implements the Neumann outflow policy: the halo value is
// a linear extrapolation of the two nearest interior strips, rather
// than a flat copy of the nearest one.
func extrapolate(self *cell.Cell, side cell.Side) {
	near := self.GetBoundary(side)
	g := self.Active()
	far := make([]float64, len(near))
	switch side {
	case cell.Left:
		for i := 0; i < g.Rows; i++ {
			far[i] = g.At(i, 2)
		}
	case cell.Right:
		for i := 0; i < g.Rows; i++ {
			far[i] = g.At(i, g.Cols-3)
		}
	case cell.Down:
		copy(far, g.Data[2*g.Cols:3*g.Cols])
	default: // Up
		copy(far, g.Data[(g.Rows-3)*g.Cols:(g.Rows-2)*g.Cols])
	}
	out := make([]float64, len(near))
	for i := range out {
		out[i] = 2*near[i] - far[i]
	}
	self.SetBoundary(side, out)
}
