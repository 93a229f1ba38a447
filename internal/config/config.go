package config

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// URL renders the config as a database/sql connection URL (used by migrations).
func (c DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// DSN renders the config as a GORM postgres DSN.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// KafkaConfig holds event broker settings.
type KafkaConfig struct {
	Brokers     []string
	GroupPrefix string
}

// RedisConfig holds availability cache settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// JWTConfig holds token verification settings.
type JWTConfig struct {
	Secret string
}

// RateConfig carries the rental rate defaults. Values are threaded explicitly
// into pricing and invoicing calls; nothing in the core reads them from
// ambient state, and every one is overridable per request.
type RateConfig struct {
	FreeMileagePerDay int64
	ExtraMileageRate  decimal.Decimal
	TaxRatePercent    decimal.Decimal
	InvoicePrefix     string
	PaymentTermsDays  int
	Currency          string
}

// ServiceConfig holds all configuration for the rental service.
type ServiceConfig struct {
	Port     string
	AppEnv   string
	Database DatabaseConfig
	Kafka    KafkaConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Rates    RateConfig
}

// Load reads configuration from RENTAL_-prefixed environment variables with
// sensible development defaults.
func Load() (*ServiceConfig, error) {
	v := viper.New()
	v.SetEnvPrefix("RENTAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("service_port", ":8080")
	v.SetDefault("app_env", "development")
	v.SetDefault("db_host", "localhost")
	v.SetDefault("db_port", "5432")
	v.SetDefault("db_user", "rental")
	v.SetDefault("db_password", "rental")
	v.SetDefault("db_name", "rental")
	v.SetDefault("db_sslmode", "disable")
	v.SetDefault("kafka_brokers", "localhost:9092")
	v.SetDefault("kafka_group_prefix", "fleetrent.")
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("jwt_secret", "dev-secret")
	v.SetDefault("free_mileage_per_day", 50)
	v.SetDefault("extra_mileage_rate", "20")
	v.SetDefault("tax_rate_percent", "16")
	v.SetDefault("invoice_prefix", "INV")
	v.SetDefault("payment_terms_days", 14)
	v.SetDefault("currency", "KES")

	extraRate, err := decimal.NewFromString(v.GetString("extra_mileage_rate"))
	if err != nil {
		return nil, fmt.Errorf("invalid extra_mileage_rate: %w", err)
	}
	taxRate, err := decimal.NewFromString(v.GetString("tax_rate_percent"))
	if err != nil {
		return nil, fmt.Errorf("invalid tax_rate_percent: %w", err)
	}

	port := v.GetString("service_port")
	if !strings.HasPrefix(port, ":") {
		port = ":" + port
	}

	return &ServiceConfig{
		Port:   port,
		AppEnv: v.GetString("app_env"),
		Database: DatabaseConfig{
			Host:     v.GetString("db_host"),
			Port:     v.GetString("db_port"),
			User:     v.GetString("db_user"),
			Password: v.GetString("db_password"),
			DBName:   v.GetString("db_name"),
			SSLMode:  v.GetString("db_sslmode"),
		},
		Kafka: KafkaConfig{
			Brokers:     strings.Split(v.GetString("kafka_brokers"), ","),
			GroupPrefix: v.GetString("kafka_group_prefix"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis_addr"),
			Password: v.GetString("redis_password"),
			DB:       v.GetInt("redis_db"),
		},
		JWT: JWTConfig{Secret: v.GetString("jwt_secret")},
		Rates: RateConfig{
			FreeMileagePerDay: v.GetInt64("free_mileage_per_day"),
			ExtraMileageRate:  extraRate,
			TaxRatePercent:    taxRate,
			InvoicePrefix:     v.GetString("invoice_prefix"),
			PaymentTermsDays:  v.GetInt("payment_terms_days"),
			Currency:          v.GetString("currency"),
		},
	}, nil
}
