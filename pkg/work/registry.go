// Package work provides concrete job kinds and the registry the daemon
// uses to build executors from manifest entries. The job control core
// never depends on this package; it schedules executors through the
// capability interface only.
package work

import (
	"fmt"
	"maps"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/vulntor/jobkit/pkg/jobs"
)

// Factory builds an executor of one kind. The id becomes the job id;
// params are kind-specific and come straight from the manifest.
type Factory func(id string, params map[string]any) (jobs.Executor, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register adds a factory to the registry. The name is the `kind` used in
// job manifests. Registering the same name twice overwrites with a warning.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[name]; exists {
		log.Warn().Str("kind", name).Msg("Job kind factory is being overwritten")
	}
	registry[name] = factory
}

// New builds an executor for a registered kind.
func New(kind, id string, params map[string]any) (jobs.Executor, error) {
	registryMu.RLock()
	factory, ok := registry[kind]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no job factory registered for kind: %s", kind)
	}
	exec, err := factory(id, params)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s job: %w", kind, err)
	}
	return exec, nil
}

// Kinds returns a copy of the registered kind names mapped to factories.
func Kinds() map[string]Factory {
	registryMu.RLock()
	defer registryMu.RUnlock()
	cp := make(map[string]Factory, len(registry))
	maps.Copy(cp, registry)
	return cp
}
