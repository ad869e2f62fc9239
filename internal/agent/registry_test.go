package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/altowierigge/maestro/internal/core"
)

func TestRegistry_UnknownAgent(t *testing.T) {
	r := NewRegistry(Deps{})

	_, err := r.Get("ghost")
	require.Error(t, err)
	assert.True(t, core.IsCategory(err, core.ErrCatConfig))
}

func TestRegistry_UnknownProvider(t *testing.T) {
	r := NewRegistry(Deps{})
	r.Configure("weird", Config{Provider: Provider("nonsense")})

	_, err := r.Get("weird")
	require.Error(t, err)
	assert.True(t, core.IsCategory(err, core.ErrCatConfig))
}

func TestRegistry_ConfigureAndGet(t *testing.T) {
	r := NewRegistry(Deps{})
	r.Configure("backend", Config{Provider: ProviderAnthropic})

	agent, err := r.Get("backend")
	require.NoError(t, err)
	assert.Equal(t, "backend", agent.Name())

	// Cached on second Get.
	again, err := r.Get("backend")
	require.NoError(t, err)
	assert.Same(t, agent, again)
}

func TestRegistry_ReconfigureDropsCache(t *testing.T) {
	r := NewRegistry(Deps{})
	r.Configure("a", Config{Provider: ProviderOpenAI})

	first, err := r.Get("a")
	require.NoError(t, err)

	r.Configure("a", Config{Provider: ProviderOpenAI, Model: "gpt-4-turbo"})
	second, err := r.Get("a")
	require.NoError(t, err)
	assert.NotSame(t, first, second)
}

func TestRegistry_Names(t *testing.T) {
	r := NewRegistry(Deps{})
	r.Configure("a", Config{Provider: ProviderOpenAI})
	r.Configure("b", Config{Provider: ProviderGoogle})

	assert.ElementsMatch(t, []string{"a", "b"}, r.Names())
}
