package config

import (
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// ReconcileConfig holds engine tunables that can change without a restart.
type ReconcileConfig struct {
	ProviderTimeout time.Duration `mapstructure:"providerTimeout"`
	LockTTL         time.Duration `mapstructure:"lockTTL"`
	LockWait        time.Duration `mapstructure:"lockWait"`
	SweepInterval   time.Duration `mapstructure:"sweepInterval"`
	SweepStaleAfter time.Duration `mapstructure:"sweepStaleAfter"`
	SweepBatchSize  int           `mapstructure:"sweepBatchSize"`
	SweepEnabled    bool          `mapstructure:"sweepEnabled"`
}

func DefaultReconcileConfig() ReconcileConfig {
	return ReconcileConfig{
		ProviderTimeout: 10 * time.Second,
		LockTTL:         30 * time.Second,
		LockWait:        15 * time.Second,
		SweepInterval:   5 * time.Minute,
		SweepStaleAfter: 24 * time.Hour,
		SweepBatchSize:  50,
		SweepEnabled:    true,
	}
}

type ReconcileConfigHolder struct {
	current atomic.Value // holds ReconcileConfig
}

// NewStaticReconcileConfigHolder returns a holder that never reloads.
func NewStaticReconcileConfigHolder(cfg ReconcileConfig) *ReconcileConfigHolder {
	holder := &ReconcileConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewReconcileConfigHolder(log *zap.Logger) (*ReconcileConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("reconcile")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/subsync")
	v.AddConfigPath(".")

	v.SetEnvPrefix("SUBSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultReconcileConfig()
	v.SetDefault("reconcile.providerTimeout", defaults.ProviderTimeout)
	v.SetDefault("reconcile.lockTTL", defaults.LockTTL)
	v.SetDefault("reconcile.lockWait", defaults.LockWait)
	v.SetDefault("reconcile.sweepInterval", defaults.SweepInterval)
	v.SetDefault("reconcile.sweepStaleAfter", defaults.SweepStaleAfter)
	v.SetDefault("reconcile.sweepBatchSize", defaults.SweepBatchSize)
	v.SetDefault("reconcile.sweepEnabled", defaults.SweepEnabled)

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		fileFound = false
	}

	cfg, err := decodeReconcileConfig(v)
	if err != nil {
		return nil, err
	}

	holder := NewStaticReconcileConfigHolder(cfg)
	if !fileFound {
		return holder, nil
	}

	log = log.Named("config.reconcile")
	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodeReconcileConfig(v)
		if err != nil {
			log.Warn("reload ignored", zap.String("file", e.Name), zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("config reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

// decodeReconcileConfig reads the reconcile section over the defaults, so a
// file or an edit that leaves keys out keeps the default for those keys.
func decodeReconcileConfig(v *viper.Viper) (ReconcileConfig, error) {
	cfg := DefaultReconcileConfig()
	if err := v.UnmarshalKey("reconcile", &cfg); err != nil {
		return ReconcileConfig{}, err
	}
	if err := validateReconcileConfig(cfg); err != nil {
		return ReconcileConfig{}, err
	}
	return cfg, nil
}

func (h *ReconcileConfigHolder) Get() ReconcileConfig {
	if h == nil {
		return DefaultReconcileConfig()
	}
	cfg, ok := h.current.Load().(ReconcileConfig)
	if !ok {
		return DefaultReconcileConfig()
	}
	return cfg
}

func validateReconcileConfig(cfg ReconcileConfig) error {
	if cfg.ProviderTimeout <= 0 {
		return errors.New("reconcile.providerTimeout must be positive")
	}
	if cfg.LockTTL <= 0 {
		return errors.New("reconcile.lockTTL must be positive")
	}
	if cfg.LockTTL < cfg.ProviderTimeout {
		return errors.New("reconcile.lockTTL must be at least reconcile.providerTimeout")
	}
	if cfg.LockWait <= 0 {
		return errors.New("reconcile.lockWait must be positive")
	}
	if cfg.SweepInterval <= 0 {
		return errors.New("reconcile.sweepInterval must be positive")
	}
	if cfg.SweepBatchSize <= 0 {
		return errors.New("reconcile.sweepBatchSize must be positive")
	}
	return nil
}
