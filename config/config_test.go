package config

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/fearghalodonncha/allscale-amdados/errs"
	"github.com/fearghalodonncha/allscale-amdados/schwarz"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "amdados.conf")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

const minimalConfig = `
diffusion_coef 0.5
num_subdomains_x 2
num_subdomains_y 2
subdomain_x 8
subdomain_y 8
domain_size_x 1.0
domain_size_y 1.0
integration_period 1.0
integration_nsteps 100
flow_model_max_vx 0.1
flow_model_max_vy 0.1
model_ini_var 1.0
model_ini_covar_radius 0.1
model_noise_Q 0.01
model_noise_R 0.01
schwarz_num_iters 3
write_num_fields 11
output_dir out
`

func TestLoadDerivesDxDyDtNt(t *testing.T) {
	path := writeConfig(t, minimalConfig)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	nx := cfg.NumSubX*cfg.SubX - 1
	wantDx := cfg.DomainSizeX / float64(nx)
	if math.Abs(cfg.Dx-wantDx) > 1e-12 {
		t.Fatalf("Dx = %v, want %v", cfg.Dx, wantDx)
	}
	if cfg.Dt <= 0 {
		t.Fatalf("expected positive Dt, got %v", cfg.Dt)
	}
	if cfg.Nt < cfg.IntegrationNsteps {
		t.Fatalf("Nt=%d should be at least IntegrationNsteps=%d given Dt <= period/nsteps", cfg.Nt, cfg.IntegrationNsteps)
	}
}

func TestLoadRejectsMissingRequiredKey(t *testing.T) {
	path := writeConfig(t, "diffusion_coef 0.5\n")
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for missing keys")
	}
}

func TestLoadRejectsNonPositiveDiffusion(t *testing.T) {
	path := writeConfig(t, minimalConfig+"\ndiffusion_coef -1\n")
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for non-positive diffusion_coef")
	}
}

func TestLoadRejectsWriteNumFieldsBelowTwo(t *testing.T) {
	body := minimalConfig
	body = body[:len(body)-len("write_num_fields 11\noutput_dir out\n")] + "write_num_fields 1\noutput_dir out\n"
	path := writeConfig(t, body)
	_, err := Load(path)
	if err == nil {
		t.Fatalf("expected error for write_num_fields < 2")
	}
	if !errors.Is(err, errs.InvalidInput) {
		t.Fatalf("expected errs.InvalidInput, got %v", err)
	}
}

func TestDeriveRejectsNonPositiveDt(t *testing.T) {
	c := &Config{
		NumSubX: 2, NumSubY: 2, SubX: 4, SubY: 4,
		DomainSizeX:       1,
		DomainSizeY:       1,
		DiffusionCoef:     0.1,
		IntegrationPeriod: -1, // degenerate: drives dtBase negative
		IntegrationNsteps: 10,
	}
	err := c.derive()
	if err == nil {
		t.Fatalf("expected an error for a non-positive derived dt")
	}
	if !errors.Is(err, errs.StabilityViolation) {
		t.Fatalf("expected errs.StabilityViolation, got %v", err)
	}
}

func TestLoadDefaultsOutflowPolicyToMirror(t *testing.T) {
	path := writeConfig(t, minimalConfig)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SchwarzOutflowPolicy != schwarz.Mirror {
		t.Fatalf("expected default outflow policy to be mirror")
	}
}
