// Package obs loads the external sensor and measurement files spec.md
// §6 defines and assembles the observation operator H from them.
// Sensor placement itself is out of scope (spec.md §1 names it an
// external collaborator); this package only consumes what that
// collaborator produced. Index conventions (row-major, x-outer/
// y-inner) follow original_source/.../Amdados2D.cpp::GetObservations
// and ComputeH. File scanning uses github.com/maseology/mmio's line
// reader, the same library config uses for its key=value reader.
package obs

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fearghalodonncha/allscale-amdados/errs"
	"github.com/fearghalodonncha/allscale-amdados/la"
	"github.com/maseology/mmio"
)

// SubIndex identifies a subdomain by its (x,y) position in the
// subdomain lattice. Kept local to this package (rather than importing
// grid) to avoid a dependency cycle with the grid package, which is the
// consumer of obs's results.
type SubIndex struct{ X, Y int }

// Point is an interior-local sensor coordinate within a subdomain
// (0-based, excluding the halo).
type Point struct{ X, Y int }

// LoadSensors parses a sensor file: one sensor per line, formatted
// "subx suby x y", blank lines and lines starting with '#' ignored.
func LoadSensors(r io.Reader) (map[SubIndex][]Point, error) {
	out := make(map[SubIndex][]Point)
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		if err := parseSensorLine(out, sc.Text(), lineNo); err != nil {
			return nil, err
		}
	}
	if err := sc.Err(); err != nil {
		return nil, errs.Fatalf(errs.IoFailure, "reading sensor file: %v", err)
	}
	return out, nil
}

// LoadSensorsFile reads the sensor file named by path in one shot using
// mmio.ReadTextLines, the same line-reading primitive config uses for
// its key=value reader; it is the entrypoint's reference path, while
// LoadSensors(io.Reader) above remains the one exercised directly by
// tests against an in-memory fixture.
func LoadSensorsFile(path string) (map[SubIndex][]Point, error) {
	lines, err := mmio.ReadTextLines(path)
	if err != nil {
		return nil, errs.Fatalf(errs.IoFailure, "reading sensor file %q: %v", path, err)
	}
	out := make(map[SubIndex][]Point)
	for i, line := range lines {
		if err := parseSensorLine(out, line, i+1); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func parseSensorLine(out map[SubIndex][]Point, line string, lineNo int) error {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return nil
	}
	fields := strings.Fields(line)
	if len(fields) != 4 {
		return errs.Fatalf(errs.IoFailure, "sensor file line %d: expected 4 fields, got %d", lineNo, len(fields))
	}
	vals, err := parseInts(fields)
	if err != nil {
		return errs.Fatalf(errs.IoFailure, "sensor file line %d: %v", lineNo, err)
	}
	idx := SubIndex{X: vals[0], Y: vals[1]}
	out[idx] = append(out[idx], Point{X: vals[2], Y: vals[3]})
	return nil
}

// LoadMeasurements reads a dense Nt x nSensors measurement table,
// whitespace-separated, row-major (one time step per row).
func LoadMeasurements(r io.Reader, nt, nSensors int) (*la.Matrix, error) {
	m := la.MatAlloc(nt, nSensors)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 1024*1024), 1024*1024)
	sc.Split(bufio.ScanWords)
	for i := 0; i < nt*nSensors; i++ {
		if !sc.Scan() {
			return nil, errs.Fatalf(errs.IoFailure, "measurement file truncated: expected %d values, got %d", nt*nSensors, i)
		}
		v, err := strconv.ParseFloat(sc.Text(), 64)
		if err != nil {
			return nil, errs.Fatalf(errs.IoFailure, "measurement file: %v", err)
		}
		m.Data[i] = v
	}
	return m, nil
}

// BuildH assembles the observation matrix for one subdomain: one row
// per sensor, a single 1 at the sensor's extended-grid flattened index
// (x+1, y+1), zero elsewhere. sx, sy are the subdomain's interior
// dimensions.
func BuildH(sensors []Point, sx, sy int) *la.Matrix {
	cols := (sx + 2) * (sy + 2)
	h := la.MatAlloc(len(sensors), cols)
	for k, p := range sensors {
		col := (p.X+1)*(sy+2) + (p.Y + 1)
		h.Set(k, col, 1)
	}
	return h
}

func parseInts(fields []string) ([4]int, error) {
	var out [4]int
	for i, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil {
			return out, fmt.Errorf("field %d (%q): %w", i, f, err)
		}
		out[i] = v
	}
	return out, nil
}
