// config реализует конфигурацию сервиса комментариев: загрузка из YAML/ENV с предсказуемым приоритетом.
package config

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/ilyakaznacheev/cleanenv"
)

// Окружения.
const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

// Config — корневая конфигурация сервиса.
// Приоритет источников:
//  1. явный путь, переданный в MustLoad/Load;
//  2. переменная окружения CONFIG_PATH;
//  3. файл ./local.yaml из рабочей директории;
//  4. переменные окружения.
type Config struct {
	Env      string         `yaml:"env" env:"ENV" env-default:"local"`
	HTTP     HTTPConfig     `yaml:"http"`
	GRPC     GRPCConfig     `yaml:"grpc"`
	DB       DBConfig       `yaml:"db"`
	Postgres PostgresConfig `yaml:"postgres"`
	Redis    RedisConfig    `yaml:"redis"`
	Timeouts TimeoutConfig  `yaml:"timeouts"`
	Feed     FeedConfig     `yaml:"feed"`
	Rating   RatingConfig   `yaml:"rating"`
	Local    LocalConfig    `yaml:"local"`
}

// HTTPConfig — публичный HTTP/WebSocket API и служебные /livez, /healthz, /metrics.
type HTTPConfig struct {
	Host     string `yaml:"host" env:"HTTP_HOST" env-default:"0.0.0.0"`
	Port     string `yaml:"port" env:"HTTP_PORT" env-default:"8085"`
	BasePath string `yaml:"base_path" env:"HTTP_BASE_PATH" env-default:"/api/v1"`
}

// GRPCConfig — административный gRPC-порт (grpc.health.v1).
type GRPCConfig struct {
	Host string `yaml:"host" env:"GRPC_HOST" env-default:"0.0.0.0"`
	Port string `yaml:"port" env:"GRPC_PORT" env-default:"50055"`
}

// Addr возвращает адрес в формате host:port.
func (h HTTPConfig) Addr() string {
	return net.JoinHostPort(h.Host, h.Port)
}

// Addr возвращает адрес в формате host:port.
func (g GRPCConfig) Addr() string {
	return net.JoinHostPort(g.Host, g.Port)
}

// DBConfig — MongoDB с комментариями.
// Пустой URL допустим только при env=local: тогда комментарии живут в памяти.
type DBConfig struct {
	URL string `yaml:"url" env:"DATABASE_URL"`
}

// PostgresConfig — БД рецептов (владелец и денормализованный рейтинг).
// Пустой URL допустим только при env=local.
type PostgresConfig struct {
	URL string `yaml:"url" env:"POSTGRES_URL"`
}

// RedisConfig — кэш владельцев рецептов и межэкземплярная лента изменений.
type RedisConfig struct {
	Enabled       bool          `yaml:"enabled" env:"REDIS_ENABLED" env-default:"false"`
	URL           string        `yaml:"url" env:"REDIS_URL"`
	OwnerCacheTTL time.Duration `yaml:"owner_cache_ttl" env:"REDIS_OWNER_CACHE_TTL" env-default:"10m"`
	Prefix        string        `yaml:"prefix" env:"REDIS_PREFIX" env-default:"recipes:owner:"`
	FeedChannel   string        `yaml:"feed_channel" env:"REDIS_FEED_CHANNEL" env-default:"recipes:comments:changed"`
}

// TimeoutConfig — общий дедлайн обработки запроса и время на остановку.
type TimeoutConfig struct {
	Service  time.Duration `yaml:"service" env:"SERVICE_TIMEOUT" env-default:"5s"`
	Shutdown time.Duration `yaml:"shutdown" env:"SHUTDOWN_TIMEOUT" env-default:"10s"`
}

// FeedConfig — лента изменений и её WebSocket-выдача.
type FeedConfig struct {
	// Сколько снимков ждут доставки у медленного подписчика (старые выбрасываются).
	Buffer       int           `yaml:"buffer" env:"FEED_BUFFER" env-default:"16"`
	FetchTimeout time.Duration `yaml:"fetch_timeout" env:"FEED_FETCH_TIMEOUT" env-default:"5s"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"FEED_WRITE_TIMEOUT" env-default:"10s"`
	// Период ping; pong ждём чуть дольше (10/9 периода).
	PingPeriod time.Duration `yaml:"ping_period" env:"FEED_PING_PERIOD" env-default:"54s"`
}

// RatingConfig — пересчёт рейтинга рецепта.
type RatingConfig struct {
	// SerializeSync — пересчёты одного рецепта выполняются по очереди в пределах процесса.
	SerializeSync bool          `yaml:"serialize_sync" env:"RATING_SERIALIZE_SYNC" env-default:"false"`
	Breaker       BreakerConfig `yaml:"breaker"`
}

// BreakerConfig — circuit breaker вокруг записи рейтинга в БД рецептов.
type BreakerConfig struct {
	MaxFailures uint32        `yaml:"max_failures" env:"RATING_BREAKER_MAX_FAILURES" env-default:"5"`
	Timeout     time.Duration `yaml:"timeout" env:"RATING_BREAKER_TIMEOUT" env-default:"30s"`
	Interval    time.Duration `yaml:"interval" env:"RATING_BREAKER_INTERVAL" env-default:"60s"`
}

// LocalConfig — данные для env=local без БД рецептов.
type LocalConfig struct {
	Recipes []LocalRecipe `yaml:"recipes"`
}

// LocalRecipe — рецепт, который регистрируется в памяти при старте.
type LocalRecipe struct {
	ID      string `yaml:"id"`
	OwnerID string `yaml:"owner_id"`
}

// MustLoad — обёртка над Load с panic при ошибке.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}

	return cfg
}

// Load загружает конфигурацию по приоритету:
// 1) явный путь; 2) CONFIG_PATH; 3) ./local.yaml; 4) ENV.
// После чтения файла накладываем ENV-переменные поверх значений из YAML.
func Load(path string) (*Config, error) {
	var cfg Config

	readFile := func(p string) error {
		if _, err := os.Stat(p); err != nil {
			return fmt.Errorf("config file %q stat failed: %w", p, err)
		}

		if err := cleanenv.ReadConfig(p, &cfg); err != nil {
			return fmt.Errorf("failed to read config %q: %w", p, err)
		}

		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return fmt.Errorf("failed to overlay env: %w", err)
		}

		return nil
	}

	switch {
	case path != "":
		if err := readFile(path); err != nil {
			return nil, err
		}
	case os.Getenv("CONFIG_PATH") != "":
		if err := readFile(os.Getenv("CONFIG_PATH")); err != nil {
			return nil, err
		}
	default:
		if _, err := os.Stat("local.yaml"); err == nil {
			if err := readFile("local.yaml"); err != nil {
				return nil, err
			}
			break
		}

		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("config not found: provide --config, CONFIG_PATH, local.yaml or env vars: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// validate — базовая валидация значений.
func (c *Config) validate() error {
	switch c.Env {
	case EnvLocal, EnvDev, EnvProd:
	default:
		return fmt.Errorf("env must be one of local|dev|prod, got %q", c.Env)
	}

	if c.Env != EnvLocal {
		if c.DB.URL == "" {
			return fmt.Errorf("db.url is required outside env=local")
		}

		if c.Postgres.URL == "" {
			return fmt.Errorf("postgres.url is required outside env=local")
		}
	}

	if c.Redis.Enabled && c.Redis.URL == "" {
		return fmt.Errorf("redis.url is required when redis.enabled")
	}

	if c.Redis.Enabled && c.Redis.OwnerCacheTTL <= 0 {
		return fmt.Errorf("redis.owner_cache_ttl must be > 0")
	}

	if c.Timeouts.Service <= 0 {
		return fmt.Errorf("timeouts.service must be > 0")
	}

	if c.Timeouts.Shutdown <= 0 {
		return fmt.Errorf("timeouts.shutdown must be > 0")
	}

	if c.Feed.Buffer <= 0 {
		return fmt.Errorf("feed.buffer must be > 0")
	}

	if c.Feed.FetchTimeout <= 0 || c.Feed.WriteTimeout <= 0 || c.Feed.PingPeriod <= 0 {
		return fmt.Errorf("feed timeouts must be > 0")
	}

	if c.Rating.Breaker.MaxFailures == 0 {
		return fmt.Errorf("rating.breaker.max_failures must be > 0")
	}

	if c.Rating.Breaker.Timeout <= 0 {
		return fmt.Errorf("rating.breaker.timeout must be > 0")
	}

	for i, r := range c.Local.Recipes {
		if _, err := uuid.Parse(r.ID); err != nil {
			return fmt.Errorf("local.recipes[%d].id: %w", i, err)
		}

		if _, err := uuid.Parse(r.OwnerID); err != nil {
			return fmt.Errorf("local.recipes[%d].owner_id: %w", i, err)
		}
	}

	return nil
}

// PongWait — сколько ждём pong от WebSocket-клиента.
func (f FeedConfig) PongWait() time.Duration {
	return f.PingPeriod * 10 / 9
}
