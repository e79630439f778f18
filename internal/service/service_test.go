package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"ygo-storefront-api/internal/repository"
	"ygo-storefront-api/pkg/logger"
)

func newSQLiteStore(t *testing.T) *repository.SQLiteStore {
	t.Helper()

	store, err := repository.NewSQLiteStore(context.Background(), ":memory:", logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}
