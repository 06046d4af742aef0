package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	// DataDir is the root holding raw acquisition directories.
	DataDir string `toml:"data_dir"`
	// OutputDir is the normalized dataset root for the curate stage.
	OutputDir string `toml:"output_dir"`
	// LogDir receives the run log and the export journal database.
	LogDir string `toml:"log_dir"`
}

// Curate contains policy for the curation stage.
type Curate struct {
	// VolumeRatioMin is the minimum acceptable ratio of an acquisition's
	// image volume to the cohort mean.
	VolumeRatioMin float64 `toml:"volume_ratio_min"`
	// MinSpanDays is the minimum follow-up interval a patient must cover.
	MinSpanDays int `toml:"min_span_days"`
	// Workers bounds export concurrency; 0 uses the host parallelism.
	Workers int `toml:"workers"`
}

// Surfaces contains policy for the surface-extraction stage.
type Surfaces struct {
	// SkinIso and SkullIso are contour thresholds in Hounsfield units.
	SkinIso  float64 `toml:"skin_iso"`
	SkullIso float64 `toml:"skull_iso"`
	// SmoothSigma is the Gaussian smoothing width applied before contouring.
	SmoothSigma float64 `toml:"smooth_sigma"`
	Workers     int     `toml:"workers"`
}

// Verify contains policy for the identity-audit stage.
type Verify struct {
	SamplePoints  int `toml:"sample_points"`
	MaxIterations int `toml:"max_iterations"`
}

// Logging contains log output configuration.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for the curator.
type Config struct {
	Paths    Paths    `toml:"paths"`
	Curate   Curate   `toml:"curate"`
	Surfaces Surfaces `toml:"surfaces"`
	Verify   Verify   `toml:"verify"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/ctcurator/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		if err := toml.NewDecoder(file).Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("ctcurator.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

func (c *Config) normalize() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	return nil
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir is required")
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		return errors.New("paths.output_dir is required")
	}
	if c.Curate.VolumeRatioMin <= 0 || c.Curate.VolumeRatioMin > 1 {
		return fmt.Errorf("curate.volume_ratio_min must be in (0, 1], got %g", c.Curate.VolumeRatioMin)
	}
	if c.Curate.MinSpanDays < 0 {
		return fmt.Errorf("curate.min_span_days must not be negative, got %d", c.Curate.MinSpanDays)
	}
	if c.Curate.Workers < 0 || c.Surfaces.Workers < 0 {
		return errors.New("workers must not be negative")
	}
	if c.Surfaces.SkinIso >= c.Surfaces.SkullIso {
		return fmt.Errorf("surfaces.skin_iso (%g) must be below surfaces.skull_iso (%g)", c.Surfaces.SkinIso, c.Surfaces.SkullIso)
	}
	if c.Surfaces.SmoothSigma < 0 {
		return fmt.Errorf("surfaces.smooth_sigma must not be negative, got %g", c.Surfaces.SmoothSigma)
	}
	if c.Verify.SamplePoints <= 0 {
		return fmt.Errorf("verify.sample_points must be positive, got %d", c.Verify.SamplePoints)
	}
	if c.Verify.MaxIterations <= 0 {
		return fmt.Errorf("verify.max_iterations must be positive, got %d", c.Verify.MaxIterations)
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}

// EnsureDirectories creates the directories a run writes into.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.OutputDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// JournalPath returns the export journal database location.
func (c *Config) JournalPath() string {
	return filepath.Join(c.Paths.LogDir, "journal.db")
}

// LogFilePath returns the run log location.
func (c *Config) LogFilePath() string {
	return filepath.Join(c.Paths.LogDir, "ctcurator.log")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
