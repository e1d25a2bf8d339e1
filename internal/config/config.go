// Пакет config загружает настройки сервиса из окружения и необязательного YAML-файла
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Драйверы хранилища заявок
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

type Config struct {
	HTTP       HTTP       `mapstructure:"http"       validate:"required"`
	Log        Log        `mapstructure:"log"        validate:"required"`
	Storage    Storage    `mapstructure:"storage"    validate:"required"`
	DB         DB         `mapstructure:"db"`
	Redis      Redis      `mapstructure:"redis"`
	Favorites  Favorites  `mapstructure:"favorites"  validate:"required"`
	NATS       NATS       `mapstructure:"nats"       validate:"required"`
	ClickHouse ClickHouse `mapstructure:"clickhouse"`
	Consumer   Consumer   `mapstructure:"consumer"   validate:"required"`
	Migrations Migrations `mapstructure:"migrations" validate:"required"`
}

type HTTP struct {
	Addr            string        `mapstructure:"addr"             validate:"required"`
	PublicURL       string        `mapstructure:"public_url"       validate:"required,url"`
	IndexFile       string        `mapstructure:"index_file"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

type Log struct {
	Level  string `mapstructure:"level"  validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=json console"`
}

type Storage struct {
	Driver string `mapstructure:"driver" validate:"required,oneof=memory postgres"`
}

type DB struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
}

// DSN строка подключения lib/pq
func (d DB) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

// Redis пустой Addr означает хранение избранного в памяти процесса
type Redis struct {
	Addr string `mapstructure:"addr"`
}

type Favorites struct {
	StorageName string `mapstructure:"storage_name" validate:"required"`
}

// NATS пустой URL отключает публикацию событий
type NATS struct {
	URL     string `mapstructure:"url"`
	Subject string `mapstructure:"subject" validate:"required"`
}

type ClickHouse struct {
	DSN string `mapstructure:"dsn"`
}

type Consumer struct {
	BatchSize     int           `mapstructure:"batch_size"     validate:"min=1,max=10000"`
	FlushInterval time.Duration `mapstructure:"flush_interval" validate:"gt=0"`
	Port          string        `mapstructure:"port"           validate:"required,numeric"`
}

type Migrations struct {
	Postgres   string `mapstructure:"postgres"   validate:"required"`
	ClickHouse string `mapstructure:"clickhouse" validate:"required"`
}

// Load читает конфигурацию: значения по умолчанию, затем файл (если есть), затем окружение.
// Ключи окружения получаются заменой "." на "_": db.host -> DB_HOST, nats.url -> NATS_URL
func Load(cfgFile string) (Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/doe-inteligente")
		v.SetConfigType("yaml")
	}

	// Defaults; каждый ключ должен быть объявлен, иначе viper не увидит его в окружении
	v.SetDefault("http.addr", ":3030")
	v.SetDefault("http.public_url", "http://localhost:3030")
	v.SetDefault("http.index_file", "")
	v.SetDefault("http.shutdown_timeout", 5*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("storage.driver", DriverMemory)
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", "5432")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.name", "appdb")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("redis.addr", "")
	v.SetDefault("favorites.storage_name", "doe-inteligente-favoritos")
	v.SetDefault("nats.url", "")
	v.SetDefault("nats.subject", "doacoes")
	v.SetDefault("clickhouse.dsn", "")
	v.SetDefault("consumer.batch_size", 10)
	v.SetDefault("consumer.flush_interval", 5*time.Second)
	v.SetDefault("consumer.port", "8081")
	v.SetDefault("migrations.postgres", "file://migrations/postgres")
	v.SetDefault("migrations.clickhouse", "file://migrations/clickhouse")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("config read error: %w", err)
		}
	}

	var cfg Config
	if err := v.UnmarshalExact(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal error: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return Config{}, fmt.Errorf("validation failed: %w", err)
	}
	if cfg.Storage.Driver == DriverPostgres && (cfg.DB.Host == "" || cfg.DB.Name == "") {
		return Config{}, fmt.Errorf("db.host and db.name are required for the postgres driver")
	}
	return cfg, nil
}
