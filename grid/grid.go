// Package grid owns the lattice of subdomains and the per-subdomain
// context the stencil driver iterates each time step: the active cell,
// its model matrix scratch, Kalman state, sensors and boundary record.
// Adapted from fem/domain.go's Domain struct, which plays the same
// "owns everything the solver iterates over" role for a mesh of
// elements; here the mesh is a regular lattice of subdomains instead.
package grid

import (
	"math"
	"math/rand"

	"github.com/fearghalodonncha/allscale-amdados/bmat"
	"github.com/fearghalodonncha/allscale-amdados/cell"
	"github.com/fearghalodonncha/allscale-amdados/config"
	"github.com/fearghalodonncha/allscale-amdados/errs"
	"github.com/fearghalodonncha/allscale-amdados/kalman"
	"github.com/fearghalodonncha/allscale-amdados/la"
	"github.com/fearghalodonncha/allscale-amdados/obs"
	"github.com/fearghalodonncha/allscale-amdados/schwarz"
)

// Index identifies a subdomain's position in the lattice.
type Index struct{ X, Y int }

// Context is everything one subdomain owns across the run.
type Context struct {
	Idx Index

	Cell *cell.Cell
	Geom bmat.Geometry

	B *la.Matrix // inverse model matrix scratch, rebuilt every sub-iteration
	P *la.Matrix // state covariance
	Q *la.Matrix // process noise
	R *la.Matrix // observation noise
	H *la.Matrix // observation operator
	Z la.Vector  // current measurement vector, refreshed by the driver each t

	Filter   *kalman.Filter
	Boundary [4]schwarz.Boundary // one per cell.Side, kept distinct so Observe can read RelDiff per side if needed
	Outer    [4]bool

	Sensors []obs.Point
	state   la.Vector // flattened active-layer field, the vector the Kalman filter operates on

	// Rng is a per-subdomain random source for ComputeQ/ComputeR, kept
	// distinct per subdomain so parallel runtimes never share a
	// *rand.Rand across goroutines.
	Rng *rand.Rand
}

// Grid is the Nx x Ny lattice of subdomains.
type Grid struct {
	Nx, Ny int
	Sx, Sy int
	Ctx    [][]*Context // Ctx[x][y]
}

// New allocates a grid from cfg, with sensors assigned per subdomain
// from a sensor map keyed by obs.SubIndex (as returned by
// obs.LoadSensors). It fails with errs.InvalidInput if any sensor falls
// outside its subdomain's interior, per spec.md §7.
func New(cfg *config.Config, sensors map[obs.SubIndex][]obs.Point) (*Grid, error) {
	g := &Grid{Nx: cfg.NumSubX, Ny: cfg.NumSubY, Sx: cfg.SubX, Sy: cfg.SubY}
	g.Ctx = make([][]*Context, g.Nx)
	for ix := 0; ix < g.Nx; ix++ {
		g.Ctx[ix] = make([]*Context, g.Ny)
		for iy := 0; iy < g.Ny; iy++ {
			idx := Index{ix, iy}
			ctx, err := newContext(idx, g.Nx, g.Ny, cfg, sensors[obs.SubIndex{X: ix, Y: iy}])
			if err != nil {
				return nil, err
			}
			g.Ctx[ix][iy] = ctx
		}
	}
	return g, nil
}

// newContext allocates a subdomain's per-run state sized to the
// resolution it will actually solve at: Fine ((Sx+2)(Sy+2)) when the
// subdomain carries at least one sensor, Coarse ((Sx/2+2)(Sy/2+2))
// otherwise, per spec.md §3's "active layer" invariant. The Cell itself
// always carries both layers (cell.NewCell(cfg.SubX, cfg.SubY)); only
// its active layer and the numeric scratch sized against it differ.
func newContext(idx Index, nx, ny int, cfg *config.Config, sensors []obs.Point) (*Context, error) {
	hasSensors := len(sensors) > 0
	sx, sy, dx, dy := cfg.SubX, cfg.SubY, cfg.Dx, cfg.Dy
	layer := cell.Fine
	if !hasSensors {
		sx, sy, dx, dy = cfg.SubX/2, cfg.SubY/2, cfg.Dx*2, cfg.Dy*2
		layer = cell.Coarse
	}
	for _, p := range sensors {
		if p.X < 0 || p.X >= sx || p.Y < 0 || p.Y >= sy {
			return nil, errs.Fatalf(errs.InvalidInput, "subdomain (%d,%d): sensor (%d,%d) outside interior [0,%d)x[0,%d)", idx.X, idx.Y, p.X, p.Y, sx, sy)
		}
	}
	n := (sx + 2) * (sy + 2)

	cl := cell.NewCell(cfg.SubX, cfg.SubY)
	cl.SetActiveLayer(layer)

	c := &Context{
		Idx:     idx,
		Cell:    cl,
		Geom:    bmat.Geometry{Sx: sx, Sy: sy, Dx: dx, Dy: dy, D: cfg.DiffusionCoef},
		B:       la.MatAlloc(n, n),
		P:       la.MatAlloc(n, n),
		Q:       la.MatAlloc(n, n),
		R:       la.MatAlloc(len(sensors), len(sensors)),
		H:       obs.BuildH(sensors, sx, sy),
		Z:       la.VecAlloc(len(sensors)),
		Filter:  kalman.NewFilter(n, len(sensors)),
		Sensors: sensors,
		state:   la.VecAlloc(n),
		Rng:     rand.New(rand.NewSource(int64(idx.X)*73856093 ^ int64(idx.Y)*19349663)),
	}
	c.Outer[cell.Left] = idx.X == 0
	c.Outer[cell.Right] = idx.X == nx-1
	c.Outer[cell.Down] = idx.Y == 0
	c.Outer[cell.Up] = idx.Y == ny-1
	initialCovar(c.P, sx, sy, cfg)
	return c, nil
}

// Neighbor returns the context across the given side, or nil if that
// side is outer (global domain boundary).
func (g *Grid) Neighbor(idx Index, side cell.Side) *Context {
	switch side {
	case cell.Left:
		if idx.X == 0 {
			return nil
		}
		return g.Ctx[idx.X-1][idx.Y]
	case cell.Right:
		if idx.X == g.Nx-1 {
			return nil
		}
		return g.Ctx[idx.X+1][idx.Y]
	case cell.Down:
		if idx.Y == 0 {
			return nil
		}
		return g.Ctx[idx.X][idx.Y-1]
	default: // Up
		if idx.Y == g.Ny-1 {
			return nil
		}
		return g.Ctx[idx.X][idx.Y+1]
	}
}

// StateVector flattens the active layer's extended field into the
// filter's state vector and returns it; the returned slice aliases
// internal storage and is overwritten by the next call.
func (c *Context) StateVector() la.Vector {
	g := c.Cell.Active()
	copy(c.state, g.Data)
	return c.state
}

// SetStateVector writes x back into the active layer's extended field.
func (c *Context) SetStateVector(x la.Vector) {
	copy(c.Cell.Active().Data, x)
}

// ClampDirichlet zeros the halo on every outer side of the active layer,
// per spec.md's Dirichlet boundary condition at the global domain edge.
// Grounded on Amdados2D.cpp::ApplyBoundaryCondition.
func (c *Context) ClampDirichlet() {
	clampOuterHalo(c.Cell.Active(), c.Outer)
}

// ClampNonNegative floors every value of the active layer at 0, the
// post-update non-negativity invariant spec.md §3/§4.6 require after
// every prior/posterior/direct solve (physical density cannot be
// negative). Grounded on Amdados2D.cpp's ClipNegativeToZero.
func (c *Context) ClampNonNegative() {
	g := c.Cell.Active()
	for i, v := range g.Data {
		if v < 0 {
			g.Data[i] = 0
		}
	}
}

// initialCovar fills P with an exponential-distance kernel over a
// radius derived from model_ini_covar_radius, supplementing spec.md
// (silent on the initial covariance) with
// original_source/.../Amdados2D.cpp::InitialCovar's construction.
func initialCovar(P *la.Matrix, sx, sy int, cfg *config.Config) {
	rows := sx + 2
	cols := sy + 2
	rx := int(math.Round(cfg.ModelIniCovarRadius / cfg.Dx))
	ry := int(math.Round(cfg.ModelIniCovarRadius / cfg.Dy))
	idx := func(i, j int) int { return i*cols + j }

	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			u := idx(i, j)
			for di := -rx; di <= rx; di++ {
				for dj := -ry; dj <= ry; dj++ {
					pi, pj := i+di, j+dj
					if pi < 0 || pi >= rows || pj < 0 || pj >= cols {
						continue
					}
					v := idx(pi, pj)
					if v < u {
						continue // fill upper triangle, mirror below
					}
					dist2 := float64(di*di) + float64(dj*dj)
					cov := cfg.ModelIniVar * math.Exp(-0.5*dist2)
					P.Set(u, v, cov)
					P.Set(v, u, cov)
				}
			}
		}
	}
}

// SeedInitialField populates every subdomain's Fine-layer interior
// according to cfg.InitialField, then syncs the Coarse layer from it so
// a subdomain whose active layer is Coarse (no local sensors) starts
// from a consistent downsample rather than an empty grid. InitialZero
// leaves the zero-initialized grid untouched; InitialGauss adds a
// single global Gaussian spike centered at (spot_x, spot_y) split
// across whichever subdomains it overlaps, matching
// Amdados2D.cpp::InitialField("gauss", ...). Grounded on
// original_source supplementing spec.md, which is silent on the
// initial field.
func SeedInitialField(g *Grid, cfg *config.Config) {
	if cfg.InitialField != config.InitialGauss {
		return
	}
	const sigma = 1.0
	a := cfg.SpotDensity / (sigma * sigma * 2 * math.Pi)
	b := 1.0 / (2 * sigma * sigma)
	cx := int(math.Round(cfg.SpotX / cfg.Dx))
	cy := int(math.Round(cfg.SpotY / cfg.Dy))

	for ix := 0; ix < g.Nx; ix++ {
		for iy := 0; iy < g.Ny; iy++ {
			ctx := g.Ctx[ix][iy]
			gd := ctx.Cell.Fine()
			for x := 0; x < g.Sx; x++ {
				for y := 0; y < g.Sy; y++ {
					gx := ix*g.Sx + x
					gy := iy*g.Sy + y
					dx := float64(gx - cx)
					dy := float64(gy - cy)
					if math.Abs(dx) > 4*sigma || math.Abs(dy) > 4*sigma {
						continue
					}
					v := a * math.Exp(-b*(dx*dx+dy*dy))
					gd.Set(x+1, y+1, gd.At(x+1, y+1)+v)
				}
			}
			clampOuterHalo(gd, ctx.Outer)
			ctx.Cell.Coarsen(nil)
			ctx.ClampDirichlet()
		}
	}
}

// clampOuterHalo zeros the halo strip of g on every side flagged outer.
// Shared by Context.ClampDirichlet (acts on the active layer) and
// SeedInitialField (acts on the Fine layer directly, since it writes
// Fine regardless of which layer a subdomain is actively solving at).
func clampOuterHalo(g *cell.Grid2D, outer [4]bool) {
	if outer[cell.Left] {
		for i := 0; i < g.Rows; i++ {
			g.Set(i, 0, 0)
		}
	}
	if outer[cell.Right] {
		for i := 0; i < g.Rows; i++ {
			g.Set(i, g.Cols-1, 0)
		}
	}
	if outer[cell.Down] {
		for j := 0; j < g.Cols; j++ {
			g.Set(0, j, 0)
		}
	}
	if outer[cell.Up] {
		for j := 0; j < g.Cols; j++ {
			g.Set(g.Rows-1, j, 0)
		}
	}
}

// ComputeQ and ComputeR redraw the process/observation noise matrices
// from config.ModelNoiseQ/R every time step, matching
// Amdados2D.cpp::ComputeQ/ComputeR: identity plus a uniform[0,1] random
// value scaled by the noise parameter on each diagonal entry.
func ComputeQ(Q *la.Matrix, noise float64, rng *rand.Rand) {
	la.MatIdentity(Q)
	for i := 0; i < Q.Rows; i++ {
		Q.Add(i, i, noise*rng.Float64())
	}
}

func ComputeR(R *la.Matrix, noise float64, rng *rand.Rand) {
	la.MatIdentity(R)
	for i := 0; i < R.Rows; i++ {
		R.Add(i, i, noise*rng.Float64())
	}
}
