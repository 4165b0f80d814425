package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"SERVER_PORT", "STORAGE_DRIVER", "DEFAULT_BUYER_ID", "LEDGER_LEGACY_FAR_FUTURE_OFFSET", "REDIS_DB", "PROGRESS_BUFFER"} {
		t.Setenv(k, "")
	}

	st, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8070", st.Port)
	assert.Equal(t, StoragePostgres, st.StorageDriver)
	assert.Equal(t, 1, st.DefaultBuyerID)
	assert.False(t, st.LegacyFarFutureOffset)
	assert.Equal(t, 64, st.ProgressBuffer)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "Memory")
	t.Setenv("DEFAULT_BUYER_ID", "7")
	t.Setenv("LEDGER_LEGACY_FAR_FUTURE_OFFSET", "true")
	t.Setenv("REDIS_DB", "3")

	st, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StorageMemory, st.StorageDriver)
	assert.Equal(t, 7, st.DefaultBuyerID)
	assert.True(t, st.LegacyFarFutureOffset)
	assert.Equal(t, 3, st.Redis.DB)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "sqlite")
	t.Setenv("DEFAULT_BUYER_ID", "one")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STORAGE_DRIVER")
	assert.Contains(t, err.Error(), "DEFAULT_BUYER_ID")
}

func TestCheckConnectionsReportsMissingBackends(t *testing.T) {
	c := &Config{Settings: Settings{StorageDriver: StorageMemory}}
	err := c.CheckConnections(t.Context())
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "postgres")
	assert.Contains(t, err.Error(), "mongo not initialized")
	assert.Contains(t, err.Error(), "redis not initialized")
}
