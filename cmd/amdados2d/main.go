// Command amdados2d drives one run of the advection-diffusion
// data-assimilation core: load configuration, sensors and measurement
// tables, build the subdomain lattice, run the stencil driver, and
// stream the result file. Orchestration shape follows
// gofem/fem/main.go's Main struct (config + domains + solver + summary
// owned by one object) and maseology-rdrr/run/main.go's
// mmio.NewTimer()/defer tt.Lap(...) timing idiom.
package main

import (
	"fmt"
	"os"

	"github.com/fearghalodonncha/allscale-amdados/config"
	"github.com/fearghalodonncha/allscale-amdados/diag"
	"github.com/fearghalodonncha/allscale-amdados/errs"
	"github.com/fearghalodonncha/allscale-amdados/grid"
	"github.com/fearghalodonncha/allscale-amdados/la"
	"github.com/fearghalodonncha/allscale-amdados/obs"
	"github.com/fearghalodonncha/allscale-amdados/resultio"
	"github.com/fearghalodonncha/allscale-amdados/stencil"
	"github.com/cpmech/gosl/io"
	"github.com/maseology/mmio"
)

func main() {
	// catch fatal kernel errors the way gofem's main.go catches
	// chk.Panic, but mapped from the idiomatic errs.* returns this
	// module's library code prefers over panicking.
	if err := run(); err != nil {
		io.PfRed("\nERROR: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// read input parameters
	configPath, _ := io.ArgToFilename(0, "", "", true)
	sensorsPath, _ := io.ArgToFilename(1, "", "", true)
	measurementsDir := io.ArgToString(2, "")
	verbose := io.ArgToBool(3, true)

	if verbose {
		io.PfWhite("\namdados2d -- advection-diffusion data assimilation core\n")
		io.Pf("\n%v\n", io.ArgsTable("INPUT ARGUMENTS",
			"config file path", "configPath", configPath,
			"sensors file path", "sensorsPath", sensorsPath,
			"measurements directory", "measurementsDir", measurementsDir,
			"show messages", "verbose", verbose,
		))
	}

	tt := mmio.NewTimer()
	defer tt.Lap("\nRun complete")

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if verbose {
		io.Pf("> configuration loaded: Nt=%d dx=%.6g dy=%.6g dt=%.6g\n", cfg.Nt, cfg.Dx, cfg.Dy, cfg.Dt)
	}

	sensors, err := obs.LoadSensorsFile(sensorsPath)
	if err != nil {
		return err
	}
	if verbose {
		io.Pf("> %d subdomains carry at least one sensor\n", len(sensors))
	}

	g, err := grid.New(cfg, sensors)
	if err != nil {
		return err
	}
	grid.SeedInitialField(g, cfg)

	measurements, err := loadMeasurements(cfg, sensors, measurementsDir)
	if err != nil {
		return err
	}

	outPath := fmt.Sprintf("%s/field_Nx%d_Ny%d_Nt%d.bin", cfg.OutputDir, cfg.NumSubX, cfg.NumSubY, cfg.Nt)
	sink, err := resultio.Create(outPath)
	if err != nil {
		return err
	}
	defer sink.Close()

	driver := stencil.NewDriver(cfg, g, stencil.PargoRuntime{}, snapshotWriter{sink}, measurements)
	if err := driver.Run(); err != nil {
		return err
	}

	printSummary(driver.Summary, verbose)
	if verbose {
		io.PfGreen("> Success\n")
	}
	return nil
}

// loadMeasurements opens one whitespace-separated Nt x m_idx table per
// subdomain that carries sensors, named "<dir>/obs_<x>_<y>.txt" (ground:
// spec.md §4.7's per-subdomain measurement matrix; the filename
// convention itself is this entrypoint's own since spec.md names only
// the global analytic-solution file format, not the per-subdomain
// measurement file used as z's source, see DESIGN.md Open Question 3).
func loadMeasurements(cfg *config.Config, sensors map[obs.SubIndex][]obs.Point, dir string) (map[grid.Index]*la.Matrix, error) {
	out := make(map[grid.Index]*la.Matrix, len(sensors))
	for idx, pts := range sensors {
		path := fmt.Sprintf("%s/obs_%d_%d.txt", dir, idx.X, idx.Y)
		f, err := os.Open(path)
		if err != nil {
			return nil, errs.Fatalf(errs.IoFailure, "opening measurement file %q: %v", path, err)
		}
		m, err := obs.LoadMeasurements(f, cfg.Nt, len(pts))
		f.Close()
		if err != nil {
			return nil, err
		}
		out[grid.Index{X: idx.X, Y: idx.Y}] = m
	}
	return out, nil
}

// snapshotWriter adapts resultio.Writer to stencil.SnapshotSink.
type snapshotWriter struct {
	w resultio.Writer
}

func (s snapshotWriter) Emit(tStep int, gx, gy int, value float32) error {
	return s.w.Append(resultio.Record{TIndex: int32(tStep), GX: int32(gx), GY: int32(gy), Value: value})
}

func printSummary(summary *diag.Summary, verbose bool) {
	if !verbose {
		return
	}
	sx, sy, mean := summary.WorstMean()
	io.Pf("> worst-mean Schwarz rel_diff: subdomain (%d,%d) mean=%.3e\n", sx, sy, mean)
}
