package instrument

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/fyrsmithlabs/domainscope/internal/registry"
	"github.com/fyrsmithlabs/domainscope/internal/sink"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCache_Validation(t *testing.T) {
	_, err := NewCache(nil, sink.Nop{}, nil)
	assert.ErrorContains(t, err, "registry is required")

	_, err = NewCache(registry.Default(), nil, nil)
	assert.ErrorContains(t, err, "sink is required")

	_, err = NewCache(registry.Default(), sink.Nop{}, nil, WithCapacity(-1))
	assert.ErrorContains(t, err, "capacity")
}

func TestCache_Identity(t *testing.T) {
	f := newFixture(t)

	a, err := f.cache.Get("ecommerce", testUser("s1"))
	require.NoError(t, err)
	b, err := f.cache.Get("ecommerce", testUser("s1"))
	require.NoError(t, err)
	assert.Same(t, a, b)

	c, err := f.cache.Get("ecommerce", testUser("s2"))
	require.NoError(t, err)
	assert.NotSame(t, a, c)

	d, err := f.cache.Get("authentication", testUser("s1"))
	require.NoError(t, err)
	assert.NotSame(t, a, d)
	assert.Equal(t, "authentication", d.Domain().Name)
	assert.Equal(t, "s1", d.User().SessionID)

	assert.Equal(t, 3, f.cache.Len())
}

func TestCache_UnknownDomain(t *testing.T) {
	f := newFixture(t)

	in, err := f.cache.Get("billing", testUser("s1"))
	require.Error(t, err)
	assert.Nil(t, in)
	assert.True(t, errors.Is(err, ErrUnknownDomain))

	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "billing", cfgErr.Domain)
	assert.Zero(t, f.cache.Len(), "failed lookups are not cached")
}

func TestCache_EvictSession(t *testing.T) {
	f := newFixture(t)

	first := f.instrumentor(t, "ecommerce")
	_ = f.instrumentor(t, "authentication")
	_, err := f.cache.Get("ecommerce", testUser("s2"))
	require.NoError(t, err)

	assert.Equal(t, 2, f.cache.EvictSession("s1"))
	assert.Equal(t, 1, f.cache.Len())
	assert.Zero(t, f.cache.EvictSession("s1"))

	again := f.instrumentor(t, "ecommerce")
	assert.NotSame(t, first, again, "an evicted session gets a fresh instrumentor")
}

func TestCache_Capacity(t *testing.T) {
	f := newFixture(t, WithCapacity(2))

	for i := 0; i < 3; i++ {
		_, err := f.cache.Get("content", testUser(fmt.Sprintf("s%d", i)))
		require.NoError(t, err)
	}
	assert.Equal(t, 2, f.cache.Len())
}

func TestCache_TTLRefreshedOnUse(t *testing.T) {
	f := newFixture(t, WithTTL(100*time.Millisecond))

	first, err := f.cache.Get("ecommerce", testUser("s1"))
	require.NoError(t, err)

	deadline := time.Now().Add(300 * time.Millisecond)
	for time.Now().Before(deadline) {
		time.Sleep(25 * time.Millisecond)
		in, err := f.cache.Get("ecommerce", testUser("s1"))
		require.NoError(t, err)
		require.Same(t, first, in, "instrumentor replaced while in use")
	}
}

func TestCache_TTLExpiresIdle(t *testing.T) {
	f := newFixture(t, WithTTL(50*time.Millisecond))

	first, err := f.cache.Get("ecommerce", testUser("s1"))
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return f.cache.Len() == 0 },
		time.Second, 20*time.Millisecond)

	again, err := f.cache.Get("ecommerce", testUser("s1"))
	require.NoError(t, err)
	assert.NotSame(t, first, again)
}
