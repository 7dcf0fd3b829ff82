package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	_ "github.com/dhe2en832/erp-next-system-sub000/testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "http://127.0.0.1:0", cfg.ERPBaseURL)
	require.Equal(t, GuardBackendMemory, cfg.GuardBackend)
	require.Equal(t, 24*time.Hour, cfg.GuardTTL)
	require.Equal(t, 10, cfg.StockLowThreshold)
	require.Equal(t, 14, cfg.WarkatAgingDays)
	require.Equal(t, "Warkat Keluar", cfg.AccountBook().WarkatKeluar)
	require.Equal(t, 30*time.Second, cfg.ERP().Timeout)
	require.True(t, InTestMode())
}

func TestLoadConfigRejectsUnknownGuard(t *testing.T) {
	t.Setenv("GUARD_BACKEND", "etcd")
	_, err := LoadConfig()
	require.Error(t, err)
}
