// pkg/config/sources.go
package config

import (
	"fmt"
	"os"
	"strings"

	yamlparser "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// Source is one configuration layer. Sources are loaded in ascending
// Priority order; later layers override earlier ones.
type Source interface {
	Name() string
	Priority() int
	Load(k *koanf.Koanf) error
}

// Priorities for the standard sources. Room is left between them for
// callers inserting custom layers via LoadWithSources.
const (
	PriorityDefaults = 10
	PriorityFile     = 20
	PriorityEnv      = 30
	PriorityFlags    = 40
)

// EnvPrefix is the prefix for environment variable overrides.
const EnvPrefix = "JOBD_"

// DefaultSources builds the standard source chain: defaults, optional YAML
// file, environment, command-line flags.
func DefaultSources(configFilePath string, flags *pflag.FlagSet) []Source {
	sources := []Source{
		defaultsSource{},
		envSource{},
	}
	if configFilePath != "" {
		sources = append(sources, fileSource{path: configFilePath})
	}
	if flags != nil {
		sources = append(sources, flagSource{flags: flags})
	}
	return sources
}

type defaultsSource struct{}

func (defaultsSource) Name() string  { return "defaults" }
func (defaultsSource) Priority() int { return PriorityDefaults }

func (defaultsSource) Load(k *koanf.Koanf) error {
	return k.Load(confmap.Provider(DefaultConfigAsMap(), "."), nil)
}

type fileSource struct {
	path string
}

func (s fileSource) Name() string  { return fmt.Sprintf("file %s", s.path) }
func (s fileSource) Priority() int { return PriorityFile }

func (s fileSource) Load(k *koanf.Koanf) error {
	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		return fmt.Errorf("config file does not exist: %s", s.path)
	}
	return k.Load(file.Provider(s.path), yamlparser.Parser())
}

type envSource struct{}

func (envSource) Name() string  { return "environment" }
func (envSource) Priority() int { return PriorityEnv }

func (envSource) Load(k *koanf.Koanf) error {
	// JOBD_JOBS_SHUTDOWN_GRACE maps to jobs.shutdown_grace: only the
	// first underscore becomes a section separator.
	return k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.Replace(key, "_", ".", 1)
	}), nil)
}

type flagSource struct {
	flags *pflag.FlagSet
}

func (flagSource) Name() string  { return "flags" }
func (flagSource) Priority() int { return PriorityFlags }

func (s flagSource) Load(k *koanf.Koanf) error {
	return k.Load(posflag.Provider(s.flags, ".", k), nil)
}
