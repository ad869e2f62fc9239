package cmd

import (
	"time"

	"github.com/altowierigge/maestro/internal/agent"
	"github.com/altowierigge/maestro/internal/cache"
	"github.com/altowierigge/maestro/internal/config"
	"github.com/altowierigge/maestro/internal/docs"
	"github.com/altowierigge/maestro/internal/events"
	"github.com/altowierigge/maestro/internal/service"
)

// components wires the shared runtime pieces from configuration.
type components struct {
	store    *cache.Store
	recorder docs.Recorder
	registry *agent.Registry
	bus      *events.Bus
	cost     cache.CostModel
}

func buildComponents() (*components, error) {
	bus := events.NewBus(256)

	store, err := cache.NewStore(cfg.Cache.Root,
		cache.WithDefaultExpiry(time.Duration(cfg.Cache.DefaultExpiryHours)*time.Hour),
		cache.WithLogger(logger),
		cache.WithBus(bus),
	)
	if err != nil {
		return nil, err
	}

	recorder, err := docs.NewRecorder(cfg.Docs.Backend, cfg.Docs.Root, logger)
	if err != nil {
		return nil, err
	}

	registry := agent.NewRegistry(agent.Deps{Logger: logger, Bus: bus})
	configureAgents(registry)

	return &components{
		store:    store,
		recorder: recorder,
		registry: registry,
		bus:      bus,
		cost: cache.CostModel{
			InputCostPer1K:   cfg.Cache.CostInputPer1K,
			OutputCostPer1K:  cfg.Cache.CostOutputPer1K,
			AvgTokensPerCall: cfg.Cache.AvgTokensPerCall,
		},
	}, nil
}

func configureAgents(registry *agent.Registry) {
	for name, entry := range map[string]struct {
		provider agent.Provider
		cfg      config.AgentConfig
	}{
		"openai":    {agent.ProviderOpenAI, cfg.Agents.OpenAI},
		"anthropic": {agent.ProviderAnthropic, cfg.Agents.Anthropic},
		"google":    {agent.ProviderGoogle, cfg.Agents.Google},
	} {
		if !entry.cfg.Enabled {
			continue
		}
		registry.Configure(name, agent.Config{
			Provider:          entry.provider,
			Model:             entry.cfg.Model,
			BaseURL:           entry.cfg.BaseURL,
			APIKey:            entry.cfg.APIKey,
			MaxTokens:         entry.cfg.MaxTokens,
			Temperature:       entry.cfg.Temperature,
			Timeout:           time.Duration(entry.cfg.TimeoutSeconds) * time.Second,
			MaxAttempts:       entry.cfg.MaxRetries,
			Strategy:          service.ParseWaitStrategy(entry.cfg.RetryStrategy),
			BaseDelay:         time.Duration(entry.cfg.BaseDelaySeconds * float64(time.Second)),
			MaxDelay:          time.Duration(entry.cfg.MaxDelaySeconds * float64(time.Second)),
			RequestsPerMinute: entry.cfg.RequestsPerMinute,
			RequestsPerHour:   entry.cfg.RequestsPerHour,
		})
	}
}

func (c *components) close() {
	_ = c.registry.Cleanup()
	_ = c.recorder.Close()
	_ = c.store.Close()
	c.bus.Close()
}
