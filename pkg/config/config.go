// pkg/config/config.go
package config

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/knadh/koanf/v2"
	"github.com/spf13/cast"
	"github.com/spf13/pflag"

	"github.com/vulntor/jobkit/pkg/jobs"
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

// Config is the full application configuration.
type Config struct {
	Log   LogConfig   `koanf:"log"`
	Jobs  JobsConfig  `koanf:"jobs"`
	Store StoreConfig `koanf:"store"`
}

// LogConfig controls zerolog output.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// JobsConfig controls the job control subsystem.
type JobsConfig struct {
	// Concurrency is the maximum number of jobs running at once.
	Concurrency int `koanf:"concurrency"`

	// ShutdownGrace bounds how long shutdown waits for running jobs to
	// observe cancellation before abandoning them.
	ShutdownGrace time.Duration `koanf:"shutdown_grace"`
}

// StoreConfig controls the durable job-record store.
type StoreConfig struct {
	Dir      string `koanf:"dir"`
	Disabled bool   `koanf:"disabled"`
}

// Manager handles loading and accessing application configuration.
type Manager struct {
	koanfInstance *koanf.Koanf
	currentConfig Config
	mu            sync.RWMutex // To protect currentConfig during runtime updates
}

// NewManager creates a new config Manager.
// It initializes the global Koanf instance if not already done.
func NewManager() *Manager {
	InitGlobalConfig()
	return &Manager{
		koanfInstance: k,
	}
}

// DefaultConfig returns a new Config struct populated with hardcoded default
// values. These serve as the baseline if no other sources override them.
func DefaultConfig() Config {
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Jobs: JobsConfig{
			Concurrency:   2,
			ShutdownGrace: jobs.DefaultShutdownGrace,
		},
		Store: StoreConfig{
			Dir:      ".jobkit",
			Disabled: false,
		},
	}
}

// Load loads configuration from various sources based on precedence.
// It populates the manager's currentConfig.
//
// Configuration precedence (highest to lowest):
//  1. Command-line flags (--jobs.concurrency=4)
//  2. Environment variables (JOBD_JOBS_CONCURRENCY=4)
//  3. Config file (YAML)
//  4. Default values
//
// Environment variables use the JOBD_ prefix and underscore-to-dot mapping:
//
//	JOBD_LOG_LEVEL        -> log.level
//	JOBD_JOBS_CONCURRENCY -> jobs.concurrency
func (m *Manager) Load(flags *pflag.FlagSet, customConfigFilePath string) error {
	sources := DefaultSources(customConfigFilePath, flags)
	return m.LoadWithSources(sources)
}

// LoadWithSources loads configuration from the provided sources in priority
// order. Sources with lower priority values are loaded first; higher
// priority sources override lower priority values.
func (m *Manager) LoadWithSources(sources []Source) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sort.Slice(sources, func(i, j int) bool {
		return sources[i].Priority() < sources[j].Priority()
	})

	for _, src := range sources {
		if err := src.Load(m.koanfInstance); err != nil {
			return fmt.Errorf("error loading config from %s: %w", src.Name(), err)
		}
	}

	var newCfg Config
	if err := m.koanfInstance.UnmarshalWithConf("", &newCfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return fmt.Errorf("error unmarshaling final config: %w", err)
	}
	m.currentConfig = newCfg

	m.postProcessConfig()
	return nil
}

// Get returns a copy of the current configuration.
func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfgCopy := m.currentConfig
	return cfgCopy
}

// GetInt retrieves a configuration value by key path as an int.
// Example: GetInt("jobs.concurrency")
func (m *Manager) GetInt(key string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cast.ToInt(m.koanfInstance.Get(key))
}

// GetString retrieves a configuration value by key path as a string.
func (m *Manager) GetString(key string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cast.ToString(m.koanfInstance.Get(key))
}

// postProcessConfig handles adjustments needed after loading. Out-of-range
// values are clamped rather than rejected.
func (m *Manager) postProcessConfig() {
	if m.currentConfig.Jobs.Concurrency < 1 {
		m.currentConfig.Jobs.Concurrency = 1
	}
	if m.currentConfig.Jobs.ShutdownGrace <= 0 {
		m.currentConfig.Jobs.ShutdownGrace = jobs.DefaultShutdownGrace
	}
}

// DefaultConfigAsMap converts the DefaultConfig struct to a
// map[string]interface{} for Koanf's confmap provider. This is a bit manual
// but ensures Koanf knows all keys.
func DefaultConfigAsMap() map[string]any {
	def := DefaultConfig()
	return map[string]any{
		// Log configuration
		"log.level":  def.Log.Level,
		"log.format": def.Log.Format,

		// Jobs configuration
		"jobs.concurrency":    def.Jobs.Concurrency,
		"jobs.shutdown_grace": def.Jobs.ShutdownGrace,

		// Store configuration
		"store.dir":      def.Store.Dir,
		"store.disabled": def.Store.Disabled,
	}
}

// BindFlags defines command-line flags corresponding to configuration
// settings. These flags allow overriding config file / environment variable
// settings. This function should be called when setting up Cobra commands.
func BindFlags(flags *pflag.FlagSet) {
	defaults := DefaultConfig()

	flags.Int("jobs.concurrency", defaults.Jobs.Concurrency, "Maximum number of jobs running at once")
	flags.Duration("jobs.shutdown_grace", defaults.Jobs.ShutdownGrace, "How long shutdown waits for running jobs")
	flags.String("store.dir", defaults.Store.Dir, "Workspace directory for job records")
	flags.Bool("store.disabled", defaults.Store.Disabled, "Disable job record persistence")
}
