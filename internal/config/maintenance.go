package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// MaintenanceDefaults seeds the active maintenance settings row when none exists.
type MaintenanceDefaults struct {
	BaseMaintenanceFee string `mapstructure:"baseMaintenanceFee"`
	LatePaymentPenalty string `mapstructure:"latePaymentPenalty"`
	PenaltyDueDay      int    `mapstructure:"penaltyDueDay"`
	ReceiptPrefix      string `mapstructure:"receiptPrefix"`
	ReceiptStart       int64  `mapstructure:"receiptStart"`
}

func DefaultMaintenanceDefaults() MaintenanceDefaults {
	return MaintenanceDefaults{
		BaseMaintenanceFee: "2500.00",
		LatePaymentPenalty: "200.00",
		PenaltyDueDay:      10,
		ReceiptPrefix:      "RCP-",
		ReceiptStart:       1,
	}
}

func (d MaintenanceDefaults) Fee() decimal.Decimal {
	v, _ := decimal.NewFromString(strings.TrimSpace(d.BaseMaintenanceFee))
	return v
}

func (d MaintenanceDefaults) Penalty() decimal.Decimal {
	v, _ := decimal.NewFromString(strings.TrimSpace(d.LatePaymentPenalty))
	return v
}

type MaintenanceDefaultsHolder struct {
	current atomic.Value // holds MaintenanceDefaults
}

func NewMaintenanceDefaultsHolder(log *zap.Logger) (*MaintenanceDefaultsHolder, error) {
	return newMaintenanceDefaultsHolder(log, "/etc/societyops", ".")
}

func newMaintenanceDefaultsHolder(log *zap.Logger, paths ...string) (*MaintenanceDefaultsHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("maintenance.config")

	v := viper.New()
	v.SetConfigName("society")
	v.SetConfigType("yml")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	v.SetEnvPrefix("SOCIETYOPS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultMaintenanceDefaults()
	v.SetDefault("maintenance.baseMaintenanceFee", defaults.BaseMaintenanceFee)
	v.SetDefault("maintenance.latePaymentPenalty", defaults.LatePaymentPenalty)
	v.SetDefault("maintenance.penaltyDueDay", defaults.PenaltyDueDay)
	v.SetDefault("maintenance.receiptPrefix", defaults.ReceiptPrefix)
	v.SetDefault("maintenance.receiptStart", defaults.ReceiptStart)

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		fileFound = false
	}

	cfg, err := decodeMaintenanceDefaults(v)
	if err != nil {
		return nil, err
	}
	if err := validateMaintenanceDefaults(cfg); err != nil {
		return nil, err
	}

	holder := &MaintenanceDefaultsHolder{}
	holder.current.Store(cfg)

	if fileFound {
		v.OnConfigChange(func(e fsnotify.Event) {
			updated, err := decodeMaintenanceDefaults(v)
			if err != nil {
				log.Warn("reload failed", zap.String("file", e.Name), zap.Error(err))
				return
			}
			if err := validateMaintenanceDefaults(updated); err != nil {
				log.Warn("invalid config ignored", zap.String("file", e.Name), zap.Error(err))
				return
			}
			holder.current.Store(updated)
			log.Info("reloaded", zap.String("file", e.Name))
		})
		v.WatchConfig()
	}

	return holder, nil
}

// decodeMaintenanceDefaults goes through AllSettings so file values are merged with defaults.
func decodeMaintenanceDefaults(v *viper.Viper) (MaintenanceDefaults, error) {
	var wrapper struct {
		Maintenance MaintenanceDefaults `mapstructure:"maintenance"`
	}
	if err := v.Unmarshal(&wrapper); err != nil {
		return MaintenanceDefaults{}, err
	}
	return wrapper.Maintenance, nil
}

func (h *MaintenanceDefaultsHolder) Get() MaintenanceDefaults {
	return h.current.Load().(MaintenanceDefaults)
}

func validateMaintenanceDefaults(cfg MaintenanceDefaults) error {
	fee, err := decimal.NewFromString(strings.TrimSpace(cfg.BaseMaintenanceFee))
	if err != nil || fee.IsNegative() {
		return fmt.Errorf("maintenance.baseMaintenanceFee must be a non-negative amount: %q", cfg.BaseMaintenanceFee)
	}
	penalty, err := decimal.NewFromString(strings.TrimSpace(cfg.LatePaymentPenalty))
	if err != nil || penalty.IsNegative() {
		return fmt.Errorf("maintenance.latePaymentPenalty must be a non-negative amount: %q", cfg.LatePaymentPenalty)
	}
	if cfg.PenaltyDueDay < 1 || cfg.PenaltyDueDay > 31 {
		return fmt.Errorf("maintenance.penaltyDueDay must be between 1 and 31, got %d", cfg.PenaltyDueDay)
	}
	if strings.TrimSpace(cfg.ReceiptPrefix) == "" {
		return errors.New("maintenance.receiptPrefix cannot be empty")
	}
	if cfg.ReceiptStart < 1 {
		return errors.New("maintenance.receiptStart must be positive")
	}
	return nil
}
