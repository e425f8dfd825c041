package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/scrypster/companion/internal/config"
	"github.com/scrypster/companion/internal/storage/sqlite"
	"github.com/scrypster/companion/pkg/types"
)

func newSettings(t *testing.T) (*SettingsService, *sqlite.Store) {
	t.Helper()
	store, err := sqlite.Open(":memory:", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return NewSettingsService(store, config.Default(), nil), store
}

func TestSettingsService_Update(t *testing.T) {
	svc, store := newSettings(t)
	ctx := context.Background()

	assert.Equal(t, types.SortLatest, svc.Get().DefaultSort)

	got, err := svc.Update(ctx, config.UserConfig{DisplayName: "  Robin ", DefaultSort: "Alphabetical"})
	require.NoError(t, err)
	assert.Equal(t, "Robin", got.DisplayName)
	assert.Equal(t, types.SortAlphabetical, got.DefaultSort)
	assert.Equal(t, got, svc.Get())

	stored, err := store.GetSetting(ctx, "default_person_sort")
	require.NoError(t, err)
	assert.Equal(t, "alphabetical", stored)

	got, err = svc.Update(ctx, config.UserConfig{DisplayName: "Robin"})
	require.NoError(t, err)
	assert.Equal(t, types.SortAlphabetical, got.DefaultSort, "empty sort keeps the current one")
}

func TestSettingsService_Invalid(t *testing.T) {
	svc, _ := newSettings(t)
	ctx := context.Background()

	_, err := svc.Update(ctx, config.UserConfig{DefaultSort: "by_mood"})
	assert.ErrorIs(t, err, ErrInvalidSettings)

	_, err = svc.Update(ctx, config.UserConfig{DisplayName: strings.Repeat("x", MaxDisplayNameLength+1)})
	assert.ErrorIs(t, err, ErrInvalidSettings)

	assert.Equal(t, types.SortLatest, svc.Get().DefaultSort, "failed updates change nothing")
}

func TestSettingsService_SaveFailureRestores(t *testing.T) {
	svc, store := newSettings(t)
	require.NoError(t, store.Close())

	_, err := svc.Update(context.Background(), config.UserConfig{DisplayName: "Robin"})
	require.Error(t, err)
	assert.Empty(t, svc.Get().DisplayName)
}
