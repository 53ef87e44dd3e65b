package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestReconcileConfigHolderDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	holder, err := NewReconcileConfigHolder(zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, DefaultReconcileConfig(), holder.Get())
}

func TestReconcileConfigHolderReadsFile(t *testing.T) {
	dir := t.TempDir()
	body := []byte("reconcile:\n  providerTimeout: 3s\n  sweepBatchSize: 7\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "reconcile.yml"), body, 0o600))
	t.Chdir(dir)

	holder, err := NewReconcileConfigHolder(zap.NewNop())
	require.NoError(t, err)

	cfg := holder.Get()
	assert.Equal(t, 3*time.Second, cfg.ProviderTimeout)
	assert.Equal(t, 7, cfg.SweepBatchSize)
	assert.Equal(t, DefaultReconcileConfig().LockTTL, cfg.LockTTL)
}

func TestReconcileConfigHolderRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	body := []byte("reconcile:\n  sweepBatchSize: 0\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "reconcile.yml"), body, 0o600))
	t.Chdir(dir)

	_, err := NewReconcileConfigHolder(zap.NewNop())
	assert.Error(t, err)
}

func TestNilHolderFallsBackToDefaults(t *testing.T) {
	var holder *ReconcileConfigHolder
	assert.Equal(t, DefaultReconcileConfig(), holder.Get())
}

func TestDecodeReconcileConfigKeepsDefaultsForMissingKeys(t *testing.T) {
	v := viper.New()
	v.SetConfigType("yml")
	require.NoError(t, v.ReadConfig(strings.NewReader("reconcile:\n  sweepInterval: 1m\n")))

	cfg, err := decodeReconcileConfig(v)
	require.NoError(t, err)
	want := DefaultReconcileConfig()
	want.SweepInterval = time.Minute
	assert.Equal(t, want, cfg)

	// an edit that drops sweepInterval falls back to the default
	require.NoError(t, v.ReadConfig(strings.NewReader("reconcile:\n  sweepBatchSize: 9\n")))
	cfg, err = decodeReconcileConfig(v)
	require.NoError(t, err)
	assert.Equal(t, DefaultReconcileConfig().SweepInterval, cfg.SweepInterval)
	assert.Equal(t, 9, cfg.SweepBatchSize)
}

func TestDecodeReconcileConfigRejectsLockShorterThanProviderCall(t *testing.T) {
	v := viper.New()
	v.SetConfigType("yml")
	require.NoError(t, v.ReadConfig(strings.NewReader("reconcile:\n  providerTimeout: 20s\n  lockTTL: 5s\n")))

	_, err := decodeReconcileConfig(v)
	assert.ErrorContains(t, err, "lockTTL")
}
