/**
 * @description
 * Configuration management for the debtors agent. Uses Viper to read an
 * optional .env file plus environment variables, with defaults for every
 * tunable and post-unmarshal coercion of out-of-range values.
 *
 * @dependencies
 * - github.com/spf13/viper: Configuration library.
 */

package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration variables for the agent.
type Config struct {
	ServerPort  string `mapstructure:"SERVER_PORT"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	RabbitMQURL string `mapstructure:"RABBITMQ_URL"`

	// Transport topology.
	SignalExchange    string `mapstructure:"SIGNAL_EXCHANGE"`
	SignalQueue       string `mapstructure:"SIGNAL_QUEUE"`
	SignalBindingKey  string `mapstructure:"SIGNAL_BINDING_KEY"`
	OutSignalExchange string `mapstructure:"OUT_SIGNAL_EXCHANGE"`
	ConsumerPrefetch  int    `mapstructure:"CONSUMER_PREFETCH"`

	// The debtor-ID shard this node is responsible for.
	MinDebtorID int64 `mapstructure:"MIN_DEBTOR_ID"`
	MaxDebtorID int64 `mapstructure:"MAX_DEBTOR_ID"`

	// Debtor policy quotas.
	MaxActionsPerMonth  int32 `mapstructure:"MAX_ACTIONS_PER_MONTH"`
	MaxRunningTransfers int32 `mapstructure:"MAX_RUNNING_TRANSFERS"`
	MaxDocumentsPerYear int32 `mapstructure:"MAX_DOCUMENTS_PER_YEAR"`
	MaxLimitsCount      int   `mapstructure:"MAX_LIMITS_COUNT"`

	// Maintenance scanner tuning.
	AccountsScanSchedule       string  `mapstructure:"ACCOUNTS_SCAN_SCHEDULE"`
	DebtorsScanSchedule        string  `mapstructure:"DEBTORS_SCAN_SCHEDULE"`
	TransfersScanSchedule      string  `mapstructure:"TRANSFERS_SCAN_SCHEDULE"`
	ScanBatchSize              int     `mapstructure:"SCAN_BATCH_SIZE"`
	ScanBatchSleepMillis       int     `mapstructure:"SCAN_BATCH_SLEEP_MILLIS"`
	AccountAbandonDays         int     `mapstructure:"ACCOUNT_ABANDON_DAYS"`
	ZeroOutNegativeBalanceDays int     `mapstructure:"ZERO_OUT_NEGATIVE_BALANCE_DAYS"`
	DeletionAttemptMinHours    int     `mapstructure:"DELETION_ATTEMPT_MIN_HOURS"`
	InterestCapMinDays         int     `mapstructure:"INTEREST_CAP_MIN_DAYS"`
	InterestCapThreshold       int64   `mapstructure:"INTEREST_CAP_THRESHOLD"`
	InterestCapRatio           float64 `mapstructure:"INTEREST_CAP_RATIO"`
	MuteHours                  int     `mapstructure:"MUTE_HOURS"`
	ReservationRetentionDays   int     `mapstructure:"RESERVATION_RETENTION_DAYS"`
	DeactivatedRetentionDays   int     `mapstructure:"DEACTIVATED_RETENTION_DAYS"`
	ConfigEffectualHours       int     `mapstructure:"CONFIG_EFFECTUAL_HOURS"`
	TransfersRetentionDays     int     `mapstructure:"TRANSFERS_RETENTION_DAYS"`

	// Outbox flushing.
	OutboxFlushSchedule string `mapstructure:"OUTBOX_FLUSH_SCHEDULE"`
	OutboxBatchSize     int    `mapstructure:"OUTBOX_BATCH_SIZE"`
}

// LoadConfig reads configuration from the environment and an optional .env
// file in the given path.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SIGNAL_EXCHANGE", "debtors.in")
	viper.SetDefault("SIGNAL_QUEUE", "debtors_agent.signals")
	viper.SetDefault("SIGNAL_BINDING_KEY", "#")
	viper.SetDefault("OUT_SIGNAL_EXCHANGE", "debtors.out")
	viper.SetDefault("CONSUMER_PREFETCH", 50)
	viper.SetDefault("MIN_DEBTOR_ID", 0)
	viper.SetDefault("MAX_DEBTOR_ID", 0)
	viper.SetDefault("MAX_ACTIONS_PER_MONTH", 300)
	viper.SetDefault("MAX_RUNNING_TRANSFERS", 10)
	viper.SetDefault("MAX_DOCUMENTS_PER_YEAR", 50)
	viper.SetDefault("MAX_LIMITS_COUNT", 100)
	viper.SetDefault("ACCOUNTS_SCAN_SCHEDULE", "@every 1m")
	viper.SetDefault("DEBTORS_SCAN_SCHEDULE", "@every 10m")
	viper.SetDefault("TRANSFERS_SCAN_SCHEDULE", "@every 1h")
	viper.SetDefault("SCAN_BATCH_SIZE", 500)
	viper.SetDefault("SCAN_BATCH_SLEEP_MILLIS", 100)
	viper.SetDefault("ACCOUNT_ABANDON_DAYS", 365)
	viper.SetDefault("ZERO_OUT_NEGATIVE_BALANCE_DAYS", 14)
	viper.SetDefault("DELETION_ATTEMPT_MIN_HOURS", 24)
	viper.SetDefault("INTEREST_CAP_MIN_DAYS", 7)
	viper.SetDefault("INTEREST_CAP_THRESHOLD", 100)
	viper.SetDefault("INTEREST_CAP_RATIO", 0.0001)
	viper.SetDefault("MUTE_HOURS", 1)
	viper.SetDefault("RESERVATION_RETENTION_DAYS", 14)
	viper.SetDefault("DEACTIVATED_RETENTION_DAYS", 1825)
	viper.SetDefault("CONFIG_EFFECTUAL_HOURS", 24)
	viper.SetDefault("TRANSFERS_RETENTION_DAYS", 30)
	viper.SetDefault("OUTBOX_FLUSH_SCHEDULE", "@every 5s")
	viper.SetDefault("OUTBOX_BATCH_SIZE", 200)

	for _, key := range []string{
		"SERVER_PORT", "DATABASE_URL", "RABBITMQ_URL",
		"SIGNAL_EXCHANGE", "SIGNAL_QUEUE", "SIGNAL_BINDING_KEY", "OUT_SIGNAL_EXCHANGE", "CONSUMER_PREFETCH",
		"MIN_DEBTOR_ID", "MAX_DEBTOR_ID",
		"MAX_ACTIONS_PER_MONTH", "MAX_RUNNING_TRANSFERS", "MAX_DOCUMENTS_PER_YEAR", "MAX_LIMITS_COUNT",
		"ACCOUNTS_SCAN_SCHEDULE", "DEBTORS_SCAN_SCHEDULE", "TRANSFERS_SCAN_SCHEDULE",
		"SCAN_BATCH_SIZE", "SCAN_BATCH_SLEEP_MILLIS",
		"ACCOUNT_ABANDON_DAYS", "ZERO_OUT_NEGATIVE_BALANCE_DAYS", "DELETION_ATTEMPT_MIN_HOURS",
		"INTEREST_CAP_MIN_DAYS", "INTEREST_CAP_THRESHOLD", "INTEREST_CAP_RATIO", "MUTE_HOURS",
		"RESERVATION_RETENTION_DAYS", "DEACTIVATED_RETENTION_DAYS", "CONFIG_EFFECTUAL_HOURS",
		"TRANSFERS_RETENTION_DAYS", "OUTBOX_FLUSH_SCHEDULE", "OUTBOX_BATCH_SIZE",
	} {
		_ = viper.BindEnv(key)
	}

	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
		err = nil
	}

	if err = viper.Unmarshal(&config); err != nil {
		return
	}

	if config.MaxActionsPerMonth <= 0 {
		log.Printf("level=warn component=config msg=\"non-positive actions quota; using default\" value=%d", config.MaxActionsPerMonth)
		config.MaxActionsPerMonth = 300
	}
	if config.MaxRunningTransfers <= 0 {
		config.MaxRunningTransfers = 10
	}
	if config.MaxDocumentsPerYear <= 0 {
		config.MaxDocumentsPerYear = 50
	}
	if config.MaxLimitsCount <= 0 {
		config.MaxLimitsCount = 100
	}
	if config.ScanBatchSize <= 0 {
		config.ScanBatchSize = 500
	}
	if config.ConsumerPrefetch <= 0 {
		config.ConsumerPrefetch = 50
	}
	if config.OutboxBatchSize <= 0 {
		config.OutboxBatchSize = 200
	}
	if config.InterestCapRatio < 0 {
		log.Printf("level=warn component=config msg=\"negative interest capitalization ratio; coercing to zero\" value=%f", config.InterestCapRatio)
		config.InterestCapRatio = 0
	}

	return
}
