package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/bitfantasy/railtrace/internal/railtrace/events"
	"github.com/bitfantasy/railtrace/internal/railtrace/qrcode"
	"github.com/bitfantasy/railtrace/internal/railtrace/storage"
	"github.com/spf13/viper"
)

// 序列号来源
const (
	SequencerPostgres = "postgres"
	SequencerRedis    = "redis"
)

type Config struct {
	Server    ServerConfig      `mapstructure:"server"`
	Database  DatabaseConfig    `mapstructure:"database"`
	Redis     RedisConfig       `mapstructure:"redis"`
	MinIO     storage.Config    `mapstructure:"minio"`
	NATS      events.NATSConfig `mapstructure:"nats"`
	JWT       JWTConfig         `mapstructure:"jwt"`
	Log       LogConfig         `mapstructure:"log"`
	CORS      CORSConfig        `mapstructure:"cors"`
	QR        qrcode.Config     `mapstructure:"qr"`
	Allocator AllocatorConfig   `mapstructure:"allocator"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	// LogSQL turns on gorm statement logging.
	LogSQL bool `mapstructure:"log_sql"`
}

// DSN 连接串
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type AllocatorConfig struct {
	MaxRetries int    `mapstructure:"max_retries"`
	Sequencer  string `mapstructure:"sequencer"` // postgres/redis
	// WarrantyMonths applies when a request leaves the warranty period out.
	WarrantyMonths int `mapstructure:"warranty_months"`
}

// Load reads configs/config.yaml (or ./config.yaml) and applies environment overrides.
// Extra paths are searched first.
func Load(paths ...string) (*Config, error) {
	v := viper.New()

	// 设置配置文件
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	setDefaults(v)

	// 环境变量覆盖
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 读取配置文件
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// 配置文件不存在，使用默认值和环境变量
	}

	bindEnvVariables(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	switch c.Allocator.Sequencer {
	case SequencerPostgres, SequencerRedis:
	default:
		return fmt.Errorf("allocator.sequencer must be postgres or redis, got %q", c.Allocator.Sequencer)
	}
	if c.Allocator.MaxRetries < 0 {
		return fmt.Errorf("allocator.max_retries must not be negative")
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt.secret is required")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("database.host", "127.0.0.1")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "railtrace")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "railtrace")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.conn_max_idle_time", 10*time.Minute)
	v.SetDefault("database.log_sql", false)

	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)

	// 空 endpoint 表示不镜像二维码
	v.SetDefault("minio.endpoint", "")
	v.SetDefault("minio.access_key", "")
	v.SetDefault("minio.secret_key", "")
	v.SetDefault("minio.bucket", "railtrace")
	v.SetDefault("minio.use_ssl", false)

	// 空 url 表示不发布到 NATS
	v.SetDefault("nats.url", "")
	v.SetDefault("nats.stream", "RAILTRACE_COMPONENTS")

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.issuer", "railtrace")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("cors.allowed_origins", []string{"*"})

	qr := qrcode.DefaultConfig()
	v.SetDefault("qr.level", qr.Level)
	v.SetDefault("qr.size", qr.Size)
	v.SetDefault("qr.disable_border", qr.DisableBorder)
	v.SetDefault("qr.max_payload", qr.MaxPayload)

	v.SetDefault("allocator.max_retries", 3)
	v.SetDefault("allocator.sequencer", SequencerPostgres)
	v.SetDefault("allocator.warranty_months", 24)
}

func bindEnvVariables(v *viper.Viper) {
	// Server
	v.BindEnv("server.port", "SERVER_PORT")
	v.BindEnv("server.mode", "SERVER_MODE")

	// Database
	v.BindEnv("database.host", "DB_HOST")
	v.BindEnv("database.port", "DB_PORT")
	v.BindEnv("database.user", "DB_USER")
	v.BindEnv("database.password", "DB_PASSWORD")
	v.BindEnv("database.dbname", "DB_NAME")

	// Redis
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.password", "REDIS_PASSWORD")

	// MinIO
	v.BindEnv("minio.endpoint", "MINIO_ENDPOINT")
	v.BindEnv("minio.access_key", "MINIO_ACCESS_KEY")
	v.BindEnv("minio.secret_key", "MINIO_SECRET_KEY")
	v.BindEnv("minio.bucket", "MINIO_BUCKET")

	// NATS
	v.BindEnv("nats.url", "NATS_URL")

	// JWT
	v.BindEnv("jwt.secret", "JWT_SECRET")

	// Allocator
	v.BindEnv("allocator.sequencer", "ALLOCATOR_SEQUENCER")
}
