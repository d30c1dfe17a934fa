package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port                  string        `mapstructure:"PORT"`
	Env                   string        `mapstructure:"ENV"`
	DatabaseURL           string        `mapstructure:"DATABASE_URL"`
	DBMaxConns            int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns            int32         `mapstructure:"DB_MIN_CONNS"`
	AuthSigningKey        string        `mapstructure:"AUTH_SIGNING_KEY"`
	SweepInterval         time.Duration `mapstructure:"SWEEP_INTERVAL"`
	SweepBatchSize        int           `mapstructure:"SWEEP_BATCH_SIZE"`
	MaintenanceInterval   time.Duration `mapstructure:"MAINTENANCE_INTERVAL"`
	MaintenanceJitter     time.Duration `mapstructure:"MAINTENANCE_JITTER"`
	MergePopulatedRecords bool          `mapstructure:"MERGE_POPULATED_RECORDS"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("SWEEP_INTERVAL", "30m")
	v.SetDefault("SWEEP_BATCH_SIZE", 1000)
	v.SetDefault("MAINTENANCE_INTERVAL", "15m")
	v.SetDefault("MAINTENANCE_JITTER", "1m")
	v.SetDefault("MERGE_POPULATED_RECORDS", true)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("AUTH_SIGNING_KEY")
	v.BindEnv("SWEEP_INTERVAL")
	v.BindEnv("SWEEP_BATCH_SIZE")
	v.BindEnv("MAINTENANCE_INTERVAL")
	v.BindEnv("MAINTENANCE_JITTER")
	v.BindEnv("MERGE_POPULATED_RECORDS")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Validate checks that the configuration is safe to run with. Outside
// development a signing key is mandatory, since the admin endpoints expose
// the patient merge operation.
func (c *Config) Validate() error {
	if !c.IsDev() && c.AuthSigningKey == "" {
		return fmt.Errorf("AUTH_SIGNING_KEY is required when ENV is %q", c.Env)
	}
	if c.SweepBatchSize <= 0 {
		return fmt.Errorf("SWEEP_BATCH_SIZE must be positive, got %d", c.SweepBatchSize)
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL must be positive, got %s", c.SweepInterval)
	}
	if c.MaintenanceInterval <= 0 {
		return fmt.Errorf("MAINTENANCE_INTERVAL must be positive, got %s", c.MaintenanceInterval)
	}
	if c.MaintenanceJitter < 0 {
		return fmt.Errorf("MAINTENANCE_JITTER must not be negative, got %s", c.MaintenanceJitter)
	}
	return nil
}
