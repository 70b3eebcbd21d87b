// Package bmat builds the per-subdomain implicit-Euler inverse model
// matrix B: interior rows carry the five-point advection-diffusion
// stencil, halo rows are the identity (populated separately by
// schwarz/Dirichlet clamping). Grounded on
// original_source/.../Amdados2D.cpp::InverseModelMatrix for the
// coefficient layout; see DESIGN.md Open Question 2 for why this
// package uses spec.md's extended-halo formulation rather than the
// original's boundary-row special casing. Kind names the two dt
// schedules the caller builds against, in the spirit of
// ele/diffusion/diffusion.go's element-kind enum, generalized from
// "element kind string" to operator Kind.
package bmat

import "github.com/fearghalodonncha/allscale-amdados/la"

// Kind selects which dt an operator is built against.
type Kind int

const (
	// KindKalman builds B against the full step dt, used once per
	// outer t when priming the Kalman prior (sub-iteration 0).
	KindKalman Kind = iota
	// KindDirect builds B against dt/Nsub_iter, used by the no-sensor
	// direct-solve branch spec.md §4.6 describes.
	KindDirect
)

// Geometry carries the per-subdomain grid spacing and diffusion
// coefficient Build needs.
type Geometry struct {
	Sx, Sy int
	Dx, Dy float64
	D      float64
}

// Build assembles B into dst, which must already be allocated as an
// (Sx+2)(Sy+2) square matrix. vx, vy are the current flow components
// (flow.VxVy); dt is the timestep the caller has already scaled for
// the given Kind (full dt for KindKalman, dt/Nsub_iter for KindDirect).
// Both kinds assemble the same stencil; kind only documents the call
// site's intent.
func Build(dst *la.Matrix, kind Kind, g Geometry, vx, vy, dt float64) {
	build(dst, g, vx, vy, dt)
}

func build(dst *la.Matrix, g Geometry, vx, vy, dt float64) {
	rows := g.Sx + 2
	cols := g.Sy + 2
	la.MatFill(dst, 0)

	rhoX := g.D * dt / (g.Dx * g.Dx)
	rhoY := g.D * dt / (g.Dy * g.Dy)
	alphaX := vx * dt / (2 * g.Dx)
	alphaY := vy * dt / (2 * g.Dy)

	idx := func(i, j int) int { return i*cols + j }

	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			r := idx(i, j)
			if i == 0 || i == rows-1 || j == 0 || j == cols-1 {
				dst.Set(r, r, 1) // halo row: identity
				continue
			}
			dst.Set(r, r, 1+2*rhoX+2*rhoY)
			dst.Set(r, idx(i-1, j), -(rhoX + alphaX))
			dst.Set(r, idx(i+1, j), -(rhoX - alphaX))
			dst.Set(r, idx(i, j-1), -(rhoY + alphaY))
			dst.Set(r, idx(i, j+1), -(rhoY - alphaY))
		}
	}
}
