package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// BillingConfig is the administrator-maintained billing policy.
type BillingConfig struct {
	// OverdueGraceDays is added to the end of a billing period to get its due date.
	OverdueGraceDays int    `mapstructure:"overdueGraceDays"`
	CurrencyScale    int32  `mapstructure:"currencyScale"`
	Currency         string `mapstructure:"currency"`
	AutoGenerate     bool   `mapstructure:"autoGenerate"`
}

// MaxCurrencyScale is the fraction-digit scale of the stored money columns.
const MaxCurrencyScale int32 = 4

func DefaultBillingConfig() BillingConfig {
	return BillingConfig{
		OverdueGraceDays: 15,
		CurrencyScale:    2,
		Currency:         "IDR",
		AutoGenerate:     true,
	}
}

// Scale returns CurrencyScale bounded to what the payments table can store.
func (c BillingConfig) Scale() int32 {
	switch {
	case c.CurrencyScale < 0:
		return 0
	case c.CurrencyScale > MaxCurrencyScale:
		return MaxCurrencyScale
	default:
		return c.CurrencyScale
	}
}

var defaultBillingConfigPaths = []string{
	"/var/lib/tirta/config", // Volume-mounted config
	"/etc/tirta",            // System config
	".",                     // Current directory (dev mode)
}

type BillingConfigHolder struct {
	current atomic.Value // holds BillingConfig
}

func NewBillingConfigHolder(log *zap.Logger) (*BillingConfigHolder, error) {
	return newBillingConfigHolder(log, defaultBillingConfigPaths...)
}

// NewStaticBillingConfigHolder returns a holder that never reloads.
func NewStaticBillingConfigHolder(cfg BillingConfig) *BillingConfigHolder {
	holder := &BillingConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func newBillingConfigHolder(log *zap.Logger, paths ...string) (*BillingConfigHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("billing.config")

	v := viper.New()
	v.SetConfigName("billing")
	v.SetConfigType("yml")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	v.SetEnvPrefix("TIRTA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultBillingConfig()
	v.SetDefault("billing.overdueGraceDays", defaults.OverdueGraceDays)
	v.SetDefault("billing.currencyScale", defaults.CurrencyScale)
	v.SetDefault("billing.currency", defaults.Currency)
	v.SetDefault("billing.autoGenerate", defaults.AutoGenerate)

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		fileFound = false
	}

	cfg, err := decodeBillingConfig(v)
	if err != nil {
		return nil, err
	}

	holder := &BillingConfigHolder{}
	holder.current.Store(cfg)

	if !fileFound {
		log.Info("billing config file not found, using defaults")
		return holder, nil
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodeBillingConfig(v)
		if err != nil {
			log.Warn("invalid billing config ignored", zap.String("file", e.Name), zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("billing config reloaded", zap.String("file", e.Name))
	})
	v.WatchConfig()

	return holder, nil
}

func (h *BillingConfigHolder) Get() BillingConfig {
	if h == nil {
		return DefaultBillingConfig()
	}
	cfg, ok := h.current.Load().(BillingConfig)
	if !ok {
		return DefaultBillingConfig()
	}
	return cfg
}

func decodeBillingConfig(v *viper.Viper) (BillingConfig, error) {
	var cfg BillingConfig
	if err := v.UnmarshalKey("billing", &cfg); err != nil {
		return BillingConfig{}, err
	}
	cfg.Currency = strings.ToUpper(strings.TrimSpace(cfg.Currency))
	if err := validateBillingConfig(cfg); err != nil {
		return BillingConfig{}, err
	}
	return cfg, nil
}

func validateBillingConfig(cfg BillingConfig) error {
	if cfg.OverdueGraceDays < 0 {
		return errors.New("billing.overdueGraceDays cannot be negative")
	}
	if cfg.CurrencyScale < 0 || cfg.CurrencyScale > MaxCurrencyScale {
		return fmt.Errorf("billing.currencyScale must be between 0 and %d", MaxCurrencyScale)
	}
	if cfg.Currency == "" {
		return errors.New("billing.currency cannot be empty")
	}
	return nil
}
