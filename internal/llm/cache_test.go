package llm

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/companion/pkg/types"
)

func TestAnalysisCache_SetGet(t *testing.T) {
	cache, err := NewAnalysisCache(10, time.Minute)
	require.NoError(t, err)
	defer cache.Close()

	emotion := "hopeful"
	a := types.Analysis{Topic: "gift", Emotion: &emotion, ActionItems: []string{"buy flowers"}}
	cache.Set("anniversary", a)
	cache.Wait()

	got, ok := cache.Get("  anniversary  ")
	require.True(t, ok)
	assert.Equal(t, "gift", got.Topic)

	got.ActionItems[0] = "mutated"
	*got.Emotion = "mutated"
	emotion = "changed after set"
	again, _ := cache.Get("anniversary")
	assert.Equal(t, "buy flowers", again.ActionItems[0])
	assert.Equal(t, "hopeful", *again.Emotion)
}

func TestAnalysisCache_HoldsConfiguredEntries(t *testing.T) {
	cache, err := NewAnalysisCache(1000, time.Hour)
	require.NoError(t, err)
	defer cache.Close()

	for i := 0; i < 200; i++ {
		cache.Set(fmt.Sprintf("memory %d", i), types.Analysis{Topic: "t"})
		cache.Wait()
	}

	retained := 0
	for i := 0; i < 200; i++ {
		if _, ok := cache.Get(fmt.Sprintf("memory %d", i)); ok {
			retained++
		}
	}
	assert.Equal(t, 200, retained)
}

func TestAnalysisCache_SkipsEmpty(t *testing.T) {
	cache, err := NewAnalysisCache(10, 0)
	require.NoError(t, err)
	defer cache.Close()

	cache.Set("nothing", types.Analysis{Summary: "only a summary"})
	cache.Wait()
	_, ok := cache.Get("nothing")
	assert.False(t, ok)
}

func TestAnalysisCache_NilSafe(t *testing.T) {
	var cache *AnalysisCache
	cache.Set("x", types.Analysis{Topic: "t"})
	_, ok := cache.Get("x")
	assert.False(t, ok)
	cache.Wait()
	cache.Close()
}
