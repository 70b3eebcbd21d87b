// Package cell implements the resolution-aware subdomain cell: each
// subdomain carries a Fine and a Coarse layer of its extended
// (interior + 1-cell halo) field, with one layer active at a time, plus
// the refine/coarsen operators spec.md §4.5 names and the four
// border-strip accessors schwarz.Update reads and writes. Side naming
// (Left/Right/Down/Up) follows original_source's SchwarzUpdate
// remote_dir table.
package cell

// Layer selects which resolution a Cell currently evaluates.
type Layer int

const (
	Fine Layer = iota
	Coarse
)

// Side identifies one of the four border strips of an extended grid.
type Side int

const (
	Left Side = iota
	Right
	Down
	Up
)

// Opposite returns the side a neighbor shares a border with, matching
// Left<->Right and Down<->Up from the original's remote_dir table.
func (s Side) Opposite() Side {
	switch s {
	case Left:
		return Right
	case Right:
		return Left
	case Down:
		return Up
	default:
		return Down
	}
}

// Grid2D is a flat, row-major (rows x cols) field.
type Grid2D struct {
	Rows, Cols int
	Data       []float64
}

// NewGrid2D allocates a zeroed rows x cols grid.
func NewGrid2D(rows, cols int) *Grid2D {
	return &Grid2D{Rows: rows, Cols: cols, Data: make([]float64, rows*cols)}
}

func (g *Grid2D) At(i, j int) float64     { return g.Data[i*g.Cols+j] }
func (g *Grid2D) Set(i, j int, v float64) { g.Data[i*g.Cols+j] = v }

// Cell holds both resolution layers of one subdomain's extended field.
// sx, sy are the interior dimensions (without halo) at Fine resolution;
// the extended Fine grid is (sx+2)x(sy+2), the extended Coarse grid is
// (sx/2+2)x(sy/2+2).
type Cell struct {
	sx, sy int
	fine   *Grid2D
	coarse *Grid2D
	active Layer
}

// NewCell allocates a cell for an sx x sy interior at Fine resolution.
// sx and sy must be even so the Coarse layer halves exactly.
func NewCell(sx, sy int) *Cell {
	return &Cell{
		sx:     sx,
		sy:     sy,
		fine:   NewGrid2D(sx+2, sy+2),
		coarse: NewGrid2D(sx/2+2, sy/2+2),
		active: Fine,
	}
}

// ActiveLayer reports which layer is currently in use.
func (c *Cell) ActiveLayer() Layer { return c.active }

// SetActiveLayer switches the active layer without touching data.
func (c *Cell) SetActiveLayer(l Layer) { c.active = l }

// Active returns the extended grid of the currently active layer.
func (c *Cell) Active() *Grid2D {
	if c.active == Fine {
		return c.fine
	}
	return c.coarse
}

// Fine returns the extended Fine-layer grid regardless of which layer
// is active.
func (c *Cell) Fine() *Grid2D { return c.fine }

// Coarse returns the extended Coarse-layer grid regardless of which
// layer is active.
func (c *Cell) Coarse() *Grid2D { return c.coarse }

// ForAllActiveNodes visits every interior node (excluding the halo) of
// the active layer in row-major order.
func (c *Cell) ForAllActiveNodes(f func(i, j int, v float64) float64) {
	g := c.Active()
	for i := 1; i < g.Rows-1; i++ {
		for j := 1; j < g.Cols-1; j++ {
			g.Set(i, j, f(i, j, g.At(i, j)))
		}
	}
}

// GetBoundary returns a copy of the interior-adjacent border strip
// (row/col index 1 or rows-2/cols-2) on the given side of the active
// layer — the values schwarz exchanges with a neighbor.
func (c *Cell) GetBoundary(s Side) []float64 {
	g := c.Active()
	switch s {
	case Left:
		return colCopy(g, 1)
	case Right:
		return colCopy(g, g.Cols-2)
	case Down:
		return rowCopy(g, 1)
	default: // Up
		return rowCopy(g, g.Rows-2)
	}
}

// SetBoundary writes vals into the halo strip (row/col index 0 or
// rows-1/cols-1) on the given side of the active layer.
func (c *Cell) SetBoundary(s Side, vals []float64) {
	g := c.Active()
	switch s {
	case Left:
		setCol(g, 0, vals)
	case Right:
		setCol(g, g.Cols-1, vals)
	case Down:
		setRow(g, 0, vals)
	default: // Up
		setRow(g, g.Rows-1, vals)
	}
}

// Mirror refreshes the halo strip on the given side by copying the
// nearest interior strip outward — the "mirror" outflow policy.
func (c *Cell) Mirror(s Side) {
	c.SetBoundary(s, c.GetBoundary(s))
}

func rowCopy(g *Grid2D, i int) []float64 {
	out := make([]float64, g.Cols)
	copy(out, g.Data[i*g.Cols:(i+1)*g.Cols])
	return out
}

func colCopy(g *Grid2D, j int) []float64 {
	out := make([]float64, g.Rows)
	for i := 0; i < g.Rows; i++ {
		out[i] = g.At(i, j)
	}
	return out
}

func setRow(g *Grid2D, i int, vals []float64) {
	copy(g.Data[i*g.Cols:(i+1)*g.Cols], vals)
}

func setCol(g *Grid2D, j int, vals []float64) {
	for i := 0; i < g.Rows; i++ {
		g.Set(i, j, vals[i])
	}
}

// Refine writes the Fine layer from the Coarse layer, duplicating each
// coarse cell across its 2x2 fine block and applying f to each written
// value (identity if f is nil).
func (c *Cell) Refine(f func(float64) float64) {
	if f == nil {
		f = identity
	}
	for ci := 1; ci < c.coarse.Rows-1; ci++ {
		for cj := 1; cj < c.coarse.Cols-1; cj++ {
			v := f(c.coarse.At(ci, cj))
			fi, fj := 2*ci-1, 2*cj-1
			for di := 0; di < 2; di++ {
				for dj := 0; dj < 2; dj++ {
					r, col := fi+di, fj+dj
					if r >= 1 && r < c.fine.Rows-1 && col >= 1 && col < c.fine.Cols-1 {
						c.fine.Set(r, col, v)
					}
				}
			}
		}
	}
}

// Coarsen writes the Coarse layer from the Fine layer, averaging each
// 2x2 fine block and applying f to the average (identity if f is nil).
func (c *Cell) Coarsen(f func(float64) float64) {
	if f == nil {
		f = identity
	}
	for ci := 1; ci < c.coarse.Rows-1; ci++ {
		for cj := 1; cj < c.coarse.Cols-1; cj++ {
			fi, fj := 2*ci-1, 2*cj-1
			sum, n := 0.0, 0
			for di := 0; di < 2; di++ {
				for dj := 0; dj < 2; dj++ {
					r, col := fi+di, fj+dj
					if r >= 1 && r < c.fine.Rows-1 && col >= 1 && col < c.fine.Cols-1 {
						sum += c.fine.At(r, col)
						n++
					}
				}
			}
			if n > 0 {
				c.coarse.Set(ci, cj, f(sum/float64(n)))
			}
		}
	}
}

func identity(v float64) float64 { return v }

// ResampleStrip converts a border strip sampled at one resolution into
// one sampled at targetLen, needed when a subdomain exchanges halos
// with a neighbor active at the other resolution level (spec.md §4.5's
// "seamless border exchange across resolutions"). The interior strip
// length halves exactly between Fine and Coarse, but the +2 halo on
// each extended grid means the full strip lengths GetBoundary returns
// (sx+2 against sx/2+2, e.g. 6 against 4 for sx=4) are never in an
// exact 2x ratio, so Fine/Coarse exchanges always take the
// nearest-index sampling path below; the duplicate/average branches
// apply only to strips whose lengths differ by exactly a factor of two.
func ResampleStrip(vals []float64, targetLen int) []float64 {
	if len(vals) == targetLen {
		return vals
	}
	out := make([]float64, targetLen)
	if targetLen == 2*len(vals) {
		for i, v := range vals {
			out[2*i] = v
			out[2*i+1] = v
		}
		return out
	}
	if len(vals) == 2*targetLen {
		for i := range out {
			out[i] = 0.5 * (vals[2*i] + vals[2*i+1])
		}
		return out
	}
	// No supported ratio: fall back to nearest-index sampling rather
	// than panicking on a malformed strip length.
	for i := range out {
		src := i * len(vals) / targetLen
		out[i] = vals[src]
	}
	return out
}
