package config

const (
	defaultDataDir        = "~/datasets/ct-raw"
	defaultOutputDir      = "~/datasets/ct"
	defaultLogDir         = "~/.local/share/ctcurator/logs"
	defaultLogFormat      = "console"
	defaultLogLevel       = "info"
	defaultVolumeRatioMin = 0.5
	defaultMinSpanDays    = 30
	defaultSkinIso        = -200.0
	defaultSkullIso       = 200.0
	defaultSmoothSigma    = 1.0
	defaultSamplePoints   = 10000
	defaultMaxIterations  = 100
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:   defaultDataDir,
			OutputDir: defaultOutputDir,
			LogDir:    defaultLogDir,
		},
		Curate: Curate{
			VolumeRatioMin: defaultVolumeRatioMin,
			MinSpanDays:    defaultMinSpanDays,
		},
		Surfaces: Surfaces{
			SkinIso:     defaultSkinIso,
			SkullIso:    defaultSkullIso,
			SmoothSigma: defaultSmoothSigma,
		},
		Verify: Verify{
			SamplePoints:  defaultSamplePoints,
			MaxIterations: defaultMaxIterations,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
