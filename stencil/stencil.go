// Package stencil drives the nested time loop spec.md §4.6/§5 describe:
// an outer loop over t in [0, Nt), an inner loop over Nsub_iter Schwarz
// sub-iterations, and a parallel-for over subdomains at each step with
// an implicit barrier between steps. The barrier falls out of the
// chosen Runtime blocking until its batch completes — no explicit
// channel bookkeeping is needed, unlike
// maseology-rdrr/basin/evalConcurrentCell.go's directed-graph case,
// because subdomains have no intra-step dependency on each other (only
// inter-step, via the halo each Schwarz sub-iteration refreshes).
// Runtime is pluggable per spec.md's Non-goal on distributed-memory
// protocols: github.com/exascience/pargo/parallel backs the production
// Runtime (grounded on
// other_examples/ExaScience-pargo__example_heatdistribution_test.go),
// SequentialRuntime backs deterministic tests.
package stencil

import (
	"sync"

	"github.com/fearghalodonncha/allscale-amdados/bmat"
	"github.com/fearghalodonncha/allscale-amdados/cell"
	"github.com/fearghalodonncha/allscale-amdados/config"
	"github.com/fearghalodonncha/allscale-amdados/diag"
	"github.com/fearghalodonncha/allscale-amdados/errs"
	"github.com/fearghalodonncha/allscale-amdados/flow"
	"github.com/fearghalodonncha/allscale-amdados/grid"
	"github.com/fearghalodonncha/allscale-amdados/la"
	"github.com/fearghalodonncha/allscale-amdados/schwarz"
	"github.com/exascience/pargo/parallel"
)

// Runtime is the pluggable work-stealing task abstraction the driver's
// per-step parallel-for is built on.
type Runtime interface {
	// Range dispatches fn over the half-open index range [low, high),
	// blocking until every dispatched piece of work completes.
	Range(low, high int, fn func(low, high int))
}

// PargoRuntime backs Range with pargo's work-stealing parallel.Range.
type PargoRuntime struct{}

func (PargoRuntime) Range(low, high int, fn func(low, high int)) {
	parallel.Range(low, high, 0, fn)
}

// SequentialRuntime runs fn directly over the whole range, used by
// tests that need deterministic ordering.
type SequentialRuntime struct{}

func (SequentialRuntime) Range(low, high int, fn func(low, high int)) {
	fn(low, high)
}

// SnapshotSink receives one (time, position, value) sample per emitted
// node. cmd/amdados2d adapts resultio.BinaryWriter to it.
type SnapshotSink interface {
	Emit(tStep int, globalX, globalY int, value float32) error
}

// Driver owns one run's grid, config, measurement tables and output
// sink, and executes the nested time loop.
type Driver struct {
	Cfg          *config.Config
	Grid         *grid.Grid
	Runtime      Runtime
	Sink         SnapshotSink
	Measurements map[grid.Index]*la.Matrix // per-subdomain Nt x m_idx table
	Summary      *diag.Summary
}

// NewDriver wires a Driver for cfg/grid.
func NewDriver(cfg *config.Config, g *grid.Grid, rt Runtime, sink SnapshotSink, measurements map[grid.Index]*la.Matrix) *Driver {
	return &Driver{
		Cfg: cfg, Grid: g, Runtime: rt, Sink: sink,
		Measurements: measurements,
		Summary:      diag.NewSummary(),
	}
}

// haloSnapshot holds every subdomain's four border strips as they stood
// at the start of a sub-iteration, indexed [ix][iy][side]. stepSubdomain
// reads a neighbor's strip from here rather than from the neighbor's
// live cell, per spec.md §5's curr_state/next_state separation: reads
// must see start-of-step state, not whatever a concurrently running
// neighbor goroutine has already written this sub-iteration.
type haloSnapshot [][][4][]float64

// captureHalos copies every subdomain's four border strips before a
// sub-iteration's parallel phase begins.
func captureHalos(g *grid.Grid) haloSnapshot {
	snap := make(haloSnapshot, g.Nx)
	for ix := 0; ix < g.Nx; ix++ {
		snap[ix] = make([][4][]float64, g.Ny)
		for iy := 0; iy < g.Ny; iy++ {
			c := g.Ctx[ix][iy].Cell
			for _, side := range []cell.Side{cell.Left, cell.Right, cell.Down, cell.Up} {
				snap[ix][iy][side] = c.GetBoundary(side)
			}
		}
	}
	return snap
}

// Run executes the full outer t x inner Nsub_iter loop, returning the
// first fatal error any subdomain update produces.
func (d *Driver) Run() error {
	n := d.Grid.Nx * d.Grid.Ny
	for t := 0; t < d.Cfg.Nt; t++ {
		vx, vy := flow.VxVy(d.Cfg.FlowMaxVx, d.Cfg.FlowMaxVy, t, d.Cfg.Nt)

		d.refreshObservations(t)

		for sub := 0; sub < d.Cfg.SchwarzNumIters; sub++ {
			halos := captureHalos(d.Grid)

			var mu sync.Mutex
			var stepErr error
			d.Runtime.Range(0, n, func(low, high int) {
				for k := low; k < high; k++ {
					ix, iy := k/d.Grid.Ny, k%d.Grid.Ny
					ctx := d.Grid.Ctx[ix][iy]
					if err := d.stepSubdomain(ctx, halos, sub, t, vx, vy); err != nil {
						mu.Lock()
						if stepErr == nil {
							stepErr = err
						}
						mu.Unlock()
					}
				}
			})
			if stepErr != nil {
				return stepErr
			}
		}

		if shouldEmit(t, d.Cfg.Nt, d.Cfg.WriteNumFields) {
			if err := d.emitSnapshot(t); err != nil {
				return err
			}
		}
	}
	return nil
}

// floorDiv returns floor(a/b) for b > 0, unlike Go's truncating integer
// division.
func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

// shouldEmit implements spec.md §4.6's snapshot selection: t is written
// whenever floor((Nwrite-1)(t-1)/(Nt-1)) != floor((Nwrite-1)t/(Nt-1)),
// a Bresenham-style bucketing that spreads exactly Nwrite samples (t=0
// and t=Nt-1 always among them) evenly across [0, Nt).
func shouldEmit(t, nt, nwrite int) bool {
	if nwrite <= 1 {
		return t == 0
	}
	return floorDiv((nwrite-1)*(t-1), nt-1) != floorDiv((nwrite-1)*t, nt-1)
}

// stepSubdomain implements one Schwarz sub-iteration of one subdomain
// at outer step t, matching the schedule
// original_source/.../Amdados2D.cpp::RunDataAssimilation uses: on
// sub==0, for subdomains carrying at least one sensor only, prime the
// Kalman prior through the full-dt model matrix; on every sub-iteration,
// exchange borders, clamp, rebuild B at the sub-step dt, then either
// correct with local observations (has-sensor subdomains) or advance
// directly (sensor-less subdomains, whose only advance per outer t is
// this direct solve; priming them too would double-advance the field),
// clamp again.
func (d *Driver) stepSubdomain(ctx *grid.Context, halos haloSnapshot, sub, t int, vx, vy float64) error {
	if sub == 0 && len(ctx.Sensors) > 0 {
		bmat.Build(ctx.B, bmat.KindKalman, ctx.Geom, vx, vy, d.Cfg.Dt)
		x := ctx.StateVector()
		grid.ComputeQ(ctx.Q, d.Cfg.ModelNoiseQ, ctx.Rng)
		if err := ctx.Filter.PropagateStateInverse(x, ctx.P, ctx.B, ctx.Q); err != nil {
			return errs.Fatalf(errs.FactorizationFailure, "subdomain (%d,%d) prior propagation: %v", ctx.Idx.X, ctx.Idx.Y, err)
		}
		ctx.SetStateVector(x)
		ctx.ClampDirichlet()
		ctx.ClampNonNegative()
	}

	var numer, denom float64
	for _, side := range []cell.Side{cell.Left, cell.Right, cell.Down, cell.Up} {
		b := &ctx.Boundary[side]
		outer := ctx.Outer[side]
		var remote []float64
		if !outer {
			nb := d.Grid.Neighbor(ctx.Idx, side)
			remote = halos[nb.Idx.X][nb.Idx.Y][side.Opposite()]
		}
		n, de := schwarz.Update(b, ctx.Cell, remote, side, outer, vx, vy, d.Cfg.SchwarzOutflowPolicy)
		numer += n
		denom += de
	}
	relDiff := schwarz.Aggregate(numer, denom)
	d.Summary.Observe(ctx.Idx.X, ctx.Idx.Y, relDiff)
	ctx.ClampDirichlet()

	dtSub := d.Cfg.Dt / float64(d.Cfg.SchwarzNumIters)
	bmat.Build(ctx.B, bmat.KindDirect, ctx.Geom, vx, vy, dtSub)

	x := ctx.StateVector()
	if len(ctx.Sensors) == 0 {
		// no local sensors: direct-solve branch, the only state advance
		// this subdomain gets per outer t, running at its Coarse layer.
		if err := ctx.Filter.SolveDirect(x, ctx.B); err != nil {
			return errs.Fatalf(errs.FactorizationFailure, "subdomain (%d,%d) direct solve at t=%d: %v", ctx.Idx.X, ctx.Idx.Y, t, err)
		}
		ctx.SetStateVector(x)
		ctx.ClampDirichlet()
		ctx.ClampNonNegative()
		// spec.md §4.6: refresh the Fine layer after a Coarse step.
		ctx.Cell.Refine(nil)
	} else {
		grid.ComputeR(ctx.R, d.Cfg.ModelNoiseR, ctx.Rng)
		if err := ctx.Filter.SolveFilter(x, ctx.P, ctx.H, ctx.R, ctx.Z); err != nil {
			return errs.Fatalf(errs.FactorizationFailure, "subdomain (%d,%d) posterior correction at t=%d: %v", ctx.Idx.X, ctx.Idx.Y, t, err)
		}
		ctx.SetStateVector(x)
		ctx.ClampDirichlet()
		ctx.ClampNonNegative()
		// spec.md §4.6: refresh the Coarse layer after a Fine step.
		ctx.Cell.Coarsen(nil)
	}
	return nil
}

// refreshObservations copies row t of each subdomain's measurement
// table into its current Z vector.
func (d *Driver) refreshObservations(t int) {
	for ix := 0; ix < d.Grid.Nx; ix++ {
		for iy := 0; iy < d.Grid.Ny; iy++ {
			ctx := d.Grid.Ctx[ix][iy]
			m, ok := d.Measurements[grid.Index{X: ix, Y: iy}]
			if !ok || t >= m.Rows {
				continue
			}
			copy(ctx.Z, m.Row(t))
		}
	}
}

// emitSnapshot streams every interior node of every subdomain's Fine
// layer through the sink, translating subdomain-local coordinates to
// global grid coordinates. Always the Fine layer, not Active(), so a
// Coarse-active subdomain (no local sensors) still contributes one
// sample per global fine node, as spec.md §4.8's record layout
// requires; stepSubdomain keeps the Fine layer refreshed via Refine
// every sub-iteration for exactly this reason.
func (d *Driver) emitSnapshot(t int) error {
	for ix := 0; ix < d.Grid.Nx; ix++ {
		for iy := 0; iy < d.Grid.Ny; iy++ {
			ctx := d.Grid.Ctx[ix][iy]
			g := ctx.Cell.Fine()
			for i := 1; i < g.Rows-1; i++ {
				for j := 1; j < g.Cols-1; j++ {
					gx := ix*d.Grid.Sx + (i - 1)
					gy := iy*d.Grid.Sy + (j - 1)
					if err := d.Sink.Emit(t, gx, gy, float32(g.At(i, j))); err != nil {
						return errs.Fatalf(errs.IoFailure, "emitting snapshot at t=%d (%d,%d): %v", t, gx, gy, err)
					}
				}
			}
		}
	}
	return nil
}
