// pkg/config/types.go
package config

// Config is the root configuration structure for the cmslens application.
// It aggregates all other specific configuration structs.
type Config struct {
	Log       LogConfig       `description:"Logging configuration" koanf:"log"`
	Analysis  AnalysisConfig  `description:"Analysis thresholds" koanf:"analysis"`
	Storage   StorageConfig   `description:"Capture store configuration" koanf:"storage"`
	Allowlist AllowlistConfig `description:"Generic-signal allowlist configuration" koanf:"allowlist"`
}

// LogConfig holds logging related configuration.
type LogConfig struct {
	Level  string `description:"Log level for cmslens logs" koanf:"level"`
	Format string `description:"Log format: json | text" koanf:"format"`
	File   string `description:"Log file path" koanf:"file"`
}

// AnalysisConfig holds the analysis pipeline thresholds. Zero values are
// replaced by defaults at load time; ranges are validated.
type AnalysisConfig struct {
	// MinDetectionConfidence is the verdict floor for effective CMS
	// labels.
	MinDetectionConfidence float64 `description:"Minimum detector confidence for a CMS label" koanf:"min_detection_confidence" validate:"gte=0,lte=1"`

	// ConcentrationWarnShare flags platforms holding more than this
	// corpus share.
	ConcentrationWarnShare float64 `description:"Corpus share above which a bias warning is emitted" koanf:"concentration_warn_share" validate:"gte=0,lte=1"`

	// HighSpecificity / MediumSpecificity are the confidence band edges.
	HighSpecificity   float64 `description:"Specificity above which confidence is high" koanf:"high_specificity" validate:"gte=0,lte=1"`
	MediumSpecificity float64 `description:"Specificity above which confidence is medium" koanf:"medium_specificity" validate:"gte=0,lte=1"`

	// FilterFrequency / FilterDiversity gate filter recommendations.
	FilterFrequency float64 `description:"Frequency above which a diverse signal is filter-recommended" koanf:"filter_frequency" validate:"gte=0,lte=1"`
	FilterDiversity int     `description:"Distinct-value count above which a signal looks like noise" koanf:"filter_diversity" validate:"gte=0"`

	// KeepCorrelation gates keep recommendations on raw correlation.
	KeepCorrelation float64 `description:"Dominant single-CMS correlation for a keep recommendation" koanf:"keep_correlation" validate:"gte=0,lte=1"`

	// MaxKeep caps non-platform-specific keep recommendations.
	MaxKeep int `description:"Cap on non-platform-specific keep recommendations" koanf:"max_keep" validate:"gte=0"`

	// MaxPatterns caps discovery output.
	MaxPatterns int `description:"Cap on discovered patterns" koanf:"max_patterns" validate:"gte=0"`
}

// StorageConfig holds capture store configuration.
type StorageConfig struct {
	Root string `description:"Capture store root directory" koanf:"root"`
}

// AllowlistConfig points at an optional allowlist override file.
type AllowlistConfig struct {
	File  string `description:"YAML file widening the generic-signal allowlists" koanf:"file"`
	Watch bool   `description:"Reload the allowlist file on change" koanf:"watch"`
}
