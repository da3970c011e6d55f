// pkg/config/config.go
package config

import (
	"fmt"
	"sort"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// Global Koanf instance, initialized once at startup.
var (
	k    *koanf.Koanf
	once sync.Once
)

// InitGlobalConfig initializes the global Koanf instance.
// This should be called early in the application lifecycle, before Load.
func InitGlobalConfig() {
	once.Do(func() {
		k = koanf.New(".")
	})
}

// Manager handles loading and accessing application configuration.
type Manager struct {
	koanfInstance *koanf.Koanf
	currentConfig Config
	validate      *validator.Validate
	mu            sync.RWMutex // To protect currentConfig during runtime updates
}

// NewManager creates a config Manager backed by the global Koanf instance.
func NewManager() *Manager {
	InitGlobalConfig()
	return &Manager{
		koanfInstance: k,
		validate:      validator.New(),
	}
}

// DefaultConfig returns a new Config struct populated with hardcoded default values.
// These serve as the baseline configuration if no other sources override them.
func DefaultConfig() Config {
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
			File:   "",
		},
		Analysis: AnalysisConfig{
			MinDetectionConfidence: 0.3,
			ConcentrationWarnShare: 0.6,
			HighSpecificity:        0.7,
			MediumSpecificity:      0.4,
			FilterFrequency:        0.3,
			FilterDiversity:        3,
			KeepCorrelation:        0.7,
			MaxKeep:                10,
			MaxPatterns:            50,
		},
		Storage: StorageConfig{
			Root: "", // resolved against the workspace at startup
		},
		Allowlist: AllowlistConfig{
			File:  "",
			Watch: false,
		},
	}
}

// DefaultConfigAsMap converts the DefaultConfig struct to a map for
// Koanf's confmap.Provider, so Koanf knows every key up front.
func DefaultConfigAsMap() map[string]interface{} {
	def := DefaultConfig()
	return map[string]interface{}{
		"log.level":  def.Log.Level,
		"log.format": def.Log.Format,
		"log.file":   def.Log.File,

		"analysis.min_detection_confidence": def.Analysis.MinDetectionConfidence,
		"analysis.concentration_warn_share": def.Analysis.ConcentrationWarnShare,
		"analysis.high_specificity":         def.Analysis.HighSpecificity,
		"analysis.medium_specificity":       def.Analysis.MediumSpecificity,
		"analysis.filter_frequency":         def.Analysis.FilterFrequency,
		"analysis.filter_diversity":         def.Analysis.FilterDiversity,
		"analysis.keep_correlation":         def.Analysis.KeepCorrelation,
		"analysis.max_keep":                 def.Analysis.MaxKeep,
		"analysis.max_patterns":             def.Analysis.MaxPatterns,

		"storage.root": def.Storage.Root,

		"allowlist.file":  def.Allowlist.File,
		"allowlist.watch": def.Allowlist.Watch,
	}
}

// Load loads configuration from the standard sources in priority order and
// populates the manager's current config. The merged result is validated
// before it replaces the previous config.
func (m *Manager) Load(flags *pflag.FlagSet, customConfigFilePath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	debug := false
	if flags != nil {
		if debugFlag := flags.Lookup("debug"); debugFlag != nil {
			debug = debugFlag.Value.String() == "true"
		}
	}

	sources := DefaultSources(customConfigFilePath, flags, debug)
	sort.SliceStable(sources, func(i, j int) bool {
		return sources[i].Priority() < sources[j].Priority()
	})

	for _, source := range sources {
		if err := source.Load(m.koanfInstance); err != nil {
			return fmt.Errorf("config source %s: %w", source.Name(), err)
		}
	}

	var newCfg Config
	if err := m.koanfInstance.UnmarshalWithConf("", &newCfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return fmt.Errorf("error unmarshaling final config: %w", err)
	}

	if err := m.validate.Struct(&newCfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if newCfg.Analysis.MediumSpecificity > newCfg.Analysis.HighSpecificity {
		return fmt.Errorf("invalid configuration: medium_specificity (%.2f) exceeds high_specificity (%.2f)",
			newCfg.Analysis.MediumSpecificity, newCfg.Analysis.HighSpecificity)
	}

	m.currentConfig = newCfg
	return nil
}

// Get returns a copy of the current configuration.
func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.currentConfig
}

// BindFlags defines command-line flags corresponding to configuration
// settings. Called when setting up the Cobra root command.
func BindFlags(flags *pflag.FlagSet) {
	var flagvar bool
	flags.BoolVar(&flagvar, "debug", false, "Enable debug logging")
}
