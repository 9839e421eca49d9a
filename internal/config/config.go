package config

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string   `mapstructure:"PORT"`
	Env         string   `mapstructure:"ENV"`
	DatabaseURL string   `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32    `mapstructure:"DB_MIN_CONNS"`
	AuthIssuer  string   `mapstructure:"AUTH_ISSUER"`
	AuthSecret  string   `mapstructure:"AUTH_SECRET"`
	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`

	// Aggregation defaults; per-build overrides go through the API.
	DefaultStrategy string   `mapstructure:"DEFAULT_STRATEGY"`
	NearestTime     string   `mapstructure:"NEAREST_TIME"`
	BolusMarkers    []string `mapstructure:"BOLUS_MARKERS"`
	DecimalComma    bool     `mapstructure:"DECIMAL_COMMA"`

	BodyLimit      string `mapstructure:"BODY_LIMIT"`
	RequestTimeout string `mapstructure:"REQUEST_TIMEOUT"`
	MigrationsDir  string `mapstructure:"MIGRATIONS_DIR"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("DEFAULT_STRATEGY", "median")
	v.SetDefault("DECIMAL_COMMA", false)
	v.SetDefault("BODY_LIMIT", "20M")
	v.SetDefault("REQUEST_TIMEOUT", "60s")
	v.SetDefault("MIGRATIONS_DIR", "./migrations")

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("AUTH_ISSUER")
	v.BindEnv("AUTH_SECRET")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("DEFAULT_STRATEGY")
	v.BindEnv("NEAREST_TIME")
	v.BindEnv("BOLUS_MARKERS")
	v.BindEnv("DECIMAL_COMMA")
	v.BindEnv("BODY_LIMIT")
	v.BindEnv("REQUEST_TIMEOUT")
	v.BindEnv("MIGRATIONS_DIR")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		if origins := v.GetString("CORS_ORIGINS"); origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}
	if cfg.BolusMarkers == nil {
		if markers := v.GetString("BOLUS_MARKERS"); markers != "" {
			cfg.BolusMarkers = strings.Split(markers, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() {
		log.Println("WARNING: running in DEVELOPMENT mode (ENV=development).")
		log.Println("WARNING: DevAuthMiddleware is active, all requests get admin access.")
		log.Println("WARNING: set ENV=production and AUTH_SECRET for production.")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to run. Outside development
// AUTH_SECRET must be set so bearer tokens are actually verified, and the
// aggregation defaults must name a known strategy.
func (c *Config) Validate() error {
	if !c.IsDev() && c.AuthSecret == "" {
		return fmt.Errorf("AUTH_SECRET is required when ENV=%q", c.Env)
	}

	switch c.DefaultStrategy {
	case "median", "mean", "first", "last":
	case "nearest":
		if c.NearestTime == "" {
			return fmt.Errorf("NEAREST_TIME is required when DEFAULT_STRATEGY is \"nearest\"")
		}
	default:
		return fmt.Errorf("DEFAULT_STRATEGY must be one of median, mean, first, last, nearest; got %q", c.DefaultStrategy)
	}

	return nil
}
