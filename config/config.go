// Package config loads the key=value configuration file spec.md §6
// defines and derives dx, dy, dt and Nt from it. The reader idiom
// (Param map[string][]string) is maseology-rdrr/builder.go's
// mmio.NewInstruct pattern; the derived-parameter formulas, including
// the TINY epsilon floor, are grounded on
// original_source/.../Amdados2D.cpp::InitDependentParams.
package config

import (
	"math"
	"strconv"

	"github.com/fearghalodonncha/allscale-amdados/errs"
	"github.com/fearghalodonncha/allscale-amdados/schwarz"
	"github.com/maseology/mmio"
)

// tiny matches the epsilon floor used across config and schwarz
// (smallest float divided by machine epsilon cubed).
const tiny = math.SmallestNonzeroFloat64 / (0x1p-52 * 0x1p-52 * 0x1p-52)

// InitialFieldKind selects the initial-condition generator. "zero" is
// spec.md's implicit default; "gauss" is supplemented from
// original_source's InitialField("gauss", ...) branch.
type InitialFieldKind string

const (
	InitialZero  InitialFieldKind = "zero"
	InitialGauss InitialFieldKind = "gauss"
)

// Config holds every recognized key from spec.md §6, plus the two
// supplemented keys documented in SPEC_FULL.md §9.
type Config struct {
	DiffusionCoef float64
	NumSubX       int
	NumSubY       int
	SubX          int
	SubY          int
	DomainSizeX   float64
	DomainSizeY   float64

	IntegrationPeriod float64
	IntegrationNsteps int

	FlowMaxVx float64
	FlowMaxVy float64

	ModelIniVar         float64
	ModelIniCovarRadius float64
	ModelNoiseQ         float64
	ModelNoiseR         float64

	SchwarzNumIters int
	WriteNumFields  int
	OutputDir       string

	SchwarzOutflowPolicy schwarz.OutflowPolicy
	InitialField         InitialFieldKind
	SpotX, SpotY         float64
	SpotDensity          float64

	// Derived.
	Dx, Dy float64
	Dt     float64
	Nt     int
}

// Load reads and validates a config file at path, then computes the
// derived parameters.
func Load(path string) (*Config, error) {
	ins := mmio.NewInstruct(path)

	c := &Config{
		SchwarzOutflowPolicy: schwarz.Mirror,
		InitialField:         InitialZero,
	}

	var err error
	if c.DiffusionCoef, err = reqFloat(ins, "diffusion_coef"); err != nil {
		return nil, err
	}
	if c.NumSubX, err = reqInt(ins, "num_subdomains_x"); err != nil {
		return nil, err
	}
	if c.NumSubY, err = reqInt(ins, "num_subdomains_y"); err != nil {
		return nil, err
	}
	if c.SubX, err = reqInt(ins, "subdomain_x"); err != nil {
		return nil, err
	}
	if c.SubY, err = reqInt(ins, "subdomain_y"); err != nil {
		return nil, err
	}
	if c.DomainSizeX, err = reqFloat(ins, "domain_size_x"); err != nil {
		return nil, err
	}
	if c.DomainSizeY, err = reqFloat(ins, "domain_size_y"); err != nil {
		return nil, err
	}
	if c.IntegrationPeriod, err = reqFloat(ins, "integration_period"); err != nil {
		return nil, err
	}
	if c.IntegrationNsteps, err = reqInt(ins, "integration_nsteps"); err != nil {
		return nil, err
	}
	if c.FlowMaxVx, err = reqFloat(ins, "flow_model_max_vx"); err != nil {
		return nil, err
	}
	if c.FlowMaxVy, err = reqFloat(ins, "flow_model_max_vy"); err != nil {
		return nil, err
	}
	if c.ModelIniVar, err = reqFloat(ins, "model_ini_var"); err != nil {
		return nil, err
	}
	if c.ModelIniCovarRadius, err = reqFloat(ins, "model_ini_covar_radius"); err != nil {
		return nil, err
	}
	if c.ModelNoiseQ, err = reqFloat(ins, "model_noise_Q"); err != nil {
		return nil, err
	}
	if c.ModelNoiseR, err = reqFloat(ins, "model_noise_R"); err != nil {
		return nil, err
	}
	if c.SchwarzNumIters, err = reqInt(ins, "schwarz_num_iters"); err != nil {
		return nil, err
	}
	if c.WriteNumFields, err = reqInt(ins, "write_num_fields"); err != nil {
		return nil, err
	}
	if v, ok := ins.Param["output_dir"]; ok && len(v) > 0 {
		c.OutputDir = v[0]
	} else {
		return nil, errs.Fatalf(errs.ConfigMismatch, "missing required key %q", "output_dir")
	}

	if v, ok := ins.Param["schwarz_outflow_policy"]; ok && len(v) > 0 {
		switch v[0] {
		case "mirror":
			c.SchwarzOutflowPolicy = schwarz.Mirror
		case "neumann":
			c.SchwarzOutflowPolicy = schwarz.Neumann
		default:
			return nil, errs.Fatalf(errs.ConfigMismatch, "unrecognized schwarz_outflow_policy %q", v[0])
		}
	}
	if v, ok := ins.Param["initial_field"]; ok && len(v) > 0 {
		switch InitialFieldKind(v[0]) {
		case InitialZero, InitialGauss:
			c.InitialField = InitialFieldKind(v[0])
		default:
			return nil, errs.Fatalf(errs.ConfigMismatch, "unrecognized initial_field %q", v[0])
		}
	}
	if c.InitialField == InitialGauss {
		if c.SpotX, err = reqFloat(ins, "spot_x"); err != nil {
			return nil, err
		}
		if c.SpotY, err = reqFloat(ins, "spot_y"); err != nil {
			return nil, err
		}
		if c.SpotDensity, err = reqFloat(ins, "spot_density"); err != nil {
			return nil, err
		}
	}

	if err := c.validate(); err != nil {
		return nil, err
	}
	if err := c.derive(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) validate() error {
	if c.DiffusionCoef <= 0 {
		return errs.Fatalf(errs.InvalidInput, "diffusion_coef must be positive, got %v", c.DiffusionCoef)
	}
	if c.SubX < 3 || c.SubY < 3 {
		return errs.Fatalf(errs.InvalidInput, "subdomain_x/y must be >= 3, got %d/%d", c.SubX, c.SubY)
	}
	if c.NumSubX < 1 || c.NumSubY < 1 {
		return errs.Fatalf(errs.InvalidInput, "num_subdomains_x/y must be >= 1, got %d/%d", c.NumSubX, c.NumSubY)
	}
	if c.DomainSizeX <= 0 || c.DomainSizeY <= 0 {
		return errs.Fatalf(errs.InvalidInput, "domain_size_x/y must be positive")
	}
	if c.IntegrationPeriod <= 0 || c.IntegrationNsteps < 1 {
		return errs.Fatalf(errs.InvalidInput, "integration_period/nsteps invalid")
	}
	if c.SchwarzNumIters < 1 {
		return errs.Fatalf(errs.InvalidInput, "schwarz_num_iters must be >= 1, got %d", c.SchwarzNumIters)
	}
	if c.WriteNumFields < 2 {
		return errs.Fatalf(errs.InvalidInput, "write_num_fields must be >= 2, got %d", c.WriteNumFields)
	}
	return nil
}

// derive computes dx, dy, dt and Nt exactly as
// Amdados2D.cpp::InitDependentParams does, then guards against a
// degenerate dt per spec.md §7: a non-positive step would make the
// integration loop either not advance or run backward.
func (c *Config) derive() error {
	nx := c.NumSubX * c.SubX
	ny := c.NumSubY * c.SubY
	c.Dx = c.DomainSizeX / float64(nx-1)
	c.Dy = c.DomainSizeY / float64(ny-1)

	dtBase := c.IntegrationPeriod / float64(c.IntegrationNsteps)
	dtDiffusion := math.Min(c.Dx*c.Dx, c.Dy*c.Dy) / (2*c.DiffusionCoef + tiny)
	dtAdvection := 1 / (math.Abs(c.FlowMaxVx)/c.Dx + math.Abs(c.FlowMaxVy)/c.Dy + tiny)

	c.Dt = math.Min(dtBase, math.Min(dtDiffusion, dtAdvection))
	if c.Dt <= 0 {
		return errs.Fatalf(errs.StabilityViolation, "derived dt is non-positive (%v); check integration_period/nsteps and flow parameters", c.Dt)
	}
	c.Nt = int(math.Ceil(c.IntegrationPeriod / c.Dt))
	return nil
}

func reqFloat(ins *mmio.Instruct, key string) (float64, error) {
	v, ok := ins.Param[key]
	if !ok || len(v) == 0 {
		return 0, errs.Fatalf(errs.ConfigMismatch, "missing required key %q", key)
	}
	f, err := strconv.ParseFloat(v[0], 64)
	if err != nil {
		return 0, errs.Fatalf(errs.InvalidInput, "key %q: %v", key, err)
	}
	return f, nil
}

func reqInt(ins *mmio.Instruct, key string) (int, error) {
	v, ok := ins.Param[key]
	if !ok || len(v) == 0 {
		return 0, errs.Fatalf(errs.ConfigMismatch, "missing required key %q", key)
	}
	n, err := strconv.Atoi(v[0])
	if err != nil {
		return 0, errs.Fatalf(errs.InvalidInput, "key %q: %v", key, err)
	}
	return n, nil
}
