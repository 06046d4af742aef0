package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ctcurator/internal/config"
)

func TestLoadDefaultsWithoutConfigFile(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}
	if cfg.Paths.DataDir != filepath.Join(tempHome, "datasets", "ct-raw") {
		t.Fatalf("unexpected data dir: %q", cfg.Paths.DataDir)
	}
	if cfg.Curate.VolumeRatioMin != 0.5 {
		t.Fatalf("unexpected volume ratio: %g", cfg.Curate.VolumeRatioMin)
	}
	if cfg.Curate.MinSpanDays != 30 {
		t.Fatalf("unexpected min span days: %d", cfg.Curate.MinSpanDays)
	}
	if cfg.Surfaces.SkinIso != -200 || cfg.Surfaces.SkullIso != 200 {
		t.Fatalf("unexpected iso thresholds: %g / %g", cfg.Surfaces.SkinIso, cfg.Surfaces.SkullIso)
	}
	if cfg.Verify.SamplePoints != 10000 || cfg.Verify.MaxIterations != 100 {
		t.Fatalf("unexpected verify defaults: %+v", cfg.Verify)
	}
	if cfg.Logging.Format != "console" || cfg.Logging.Level != "info" {
		t.Fatalf("unexpected logging defaults: %+v", cfg.Logging)
	}
}

func TestLoadParsesExplicitFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "conf.toml")
	body := `
[paths]
data_dir = "` + filepath.Join(dir, "raw") + `"
output_dir = "` + filepath.Join(dir, "out") + `"

[curate]
volume_ratio_min = 0.4
min_span_days = 14

[logging]
format = "JSON"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected existing config at %q, got %q exists=%v", path, resolved, exists)
	}
	if cfg.Curate.VolumeRatioMin != 0.4 {
		t.Fatalf("volume ratio not read: %g", cfg.Curate.VolumeRatioMin)
	}
	if cfg.Curate.MinSpanDays != 14 {
		t.Fatalf("min span days not read: %d", cfg.Curate.MinSpanDays)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("format not normalized: %q", cfg.Logging.Format)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"zero ratio", func(c *config.Config) { c.Curate.VolumeRatioMin = 0 }, "volume_ratio_min"},
		{"ratio above one", func(c *config.Config) { c.Curate.VolumeRatioMin = 1.5 }, "volume_ratio_min"},
		{"negative span", func(c *config.Config) { c.Curate.MinSpanDays = -1 }, "min_span_days"},
		{"iso order", func(c *config.Config) { c.Surfaces.SkinIso = 300 }, "skin_iso"},
		{"zero samples", func(c *config.Config) { c.Verify.SamplePoints = 0 }, "sample_points"},
		{"bad format", func(c *config.Config) { c.Logging.Format = "yaml" }, "logging.format"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists {
		t.Fatal("sample not detected")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("sample config invalid: %v", err)
	}
}
