package agent

import (
	"fmt"
	"sync"

	"github.com/altowierigge/maestro/internal/core"
)

// Factory creates an agent from configuration.
type Factory func(cfg Config, deps Deps) (core.Agent, error)

// Registry manages configured agents by name. Agent names are aliases:
// the provider field selects the factory, so several entries may use the
// same API with different models or roles.
type Registry struct {
	factories map[Provider]Factory
	agents    map[string]core.Agent
	configs   map[string]Config
	deps      Deps
	mu        sync.RWMutex
}

// NewRegistry creates a registry with the built-in provider factories.
func NewRegistry(deps Deps) *Registry {
	r := &Registry{
		factories: make(map[Provider]Factory),
		agents:    make(map[string]core.Agent),
		configs:   make(map[string]Config),
		deps:      deps,
	}
	r.RegisterFactory(ProviderOpenAI, NewOpenAIAgent)
	r.RegisterFactory(ProviderAnthropic, NewAnthropicAgent)
	r.RegisterFactory(ProviderGoogle, NewGoogleAgent)
	return r
}

// RegisterFactory registers a factory for a provider.
func (r *Registry) RegisterFactory(provider Provider, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[provider] = factory
}

// Register adds a pre-built agent directly to the registry.
func (r *Registry) Register(name string, agent core.Agent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[name] = agent
}

// Configure sets configuration for an agent name. A cached instance for
// that name is dropped so the next Get re-creates it.
func (r *Registry) Configure(name string, cfg Config) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cfg.Name = name
	r.configs[name] = cfg
	delete(r.agents, name)
}

// Get returns an agent by name, creating it from its configuration when
// necessary. An unknown name is a configuration error.
func (r *Registry) Get(name string) (core.Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if agent, ok := r.agents[name]; ok {
		return agent, nil
	}

	cfg, ok := r.configs[name]
	if !ok {
		return nil, core.ErrConfiguration(core.CodeUnknownAgent,
			fmt.Sprintf("agent %q is not configured", name))
	}
	factory, ok := r.factories[cfg.Provider]
	if !ok {
		return nil, core.ErrConfiguration(core.CodeUnknownAgent,
			fmt.Sprintf("agent %q uses unknown provider %q", name, cfg.Provider))
	}

	agent, err := factory(cfg, r.deps)
	if err != nil {
		return nil, fmt.Errorf("creating agent %s: %w", name, err)
	}
	r.agents[name] = agent
	return agent, nil
}

// Names returns all configured agent names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.configs))
	for name := range r.configs {
		names = append(names, name)
	}
	return names
}

// SetEnhancer attaches a prompt enhancer applied to all agents created
// after the call.
func (r *Registry) SetEnhancer(enhancer core.PromptEnhancerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deps.Enhancer = enhancer
	// Drop cached instances so they pick up the enhancer on re-creation.
	r.agents = make(map[string]core.Agent)
}

// Cleanup releases all cached agents.
func (r *Registry) Cleanup() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var firstErr error
	for _, agent := range r.agents {
		if err := agent.Cleanup(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	r.agents = make(map[string]core.Agent)
	return firstErr
}
