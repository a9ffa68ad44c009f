package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	DishDB   DishDBConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Printer  PrinterConfig
	RKeeper  RKeeperConfig
	Worker   WorkerConfig
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	Host         string
	Port         string
	Username     string
	Password     string
	Database     string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

// DishDBConfig points at the read-only dish master sqlite file.
type DishDBConfig struct {
	Path     string
	CacheTTL time.Duration
}

type RedisConfig struct {
	Addr string
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
	Enabled bool
}

type PrinterConfig struct {
	Host    string
	Port    int
	Timeout time.Duration
	DPI     int
	// BitmapText forces rasterized text for printers without cyrillic glyphs.
	BitmapText bool
}

type RKeeperConfig struct {
	BaseURL      string
	Username     string
	Password     string
	SyncInterval time.Duration
	SyncEnabled  bool
}

type WorkerConfig struct {
	IdlePoll        time.Duration
	ShutdownTimeout time.Duration
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", ":8080"),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			Username:     getEnv("DB_USERNAME", "label_user"),
			Password:     getEnv("DB_PASSWORD", "label_pass"),
			Database:     getEnv("DB_NAME", "label_service"),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  time.Duration(getEnvInt("DB_MAX_LIFETIME_MINUTES", 5)) * time.Minute,
		},
		DishDB: DishDBConfig{
			Path:     getEnv("DISH_DB_PATH", "data/dishes_with_extras.sqlite"),
			CacheTTL: getEnvDuration("DISH_CACHE_TTL", 10*time.Minute),
		},
		Redis: RedisConfig{
			Addr: getEnv("REDIS_ADDR", "localhost:6379"),
		},
		Kafka: KafkaConfig{
			Brokers: []string{getEnv("KAFKA_BROKERS", "localhost:9092")},
			Topic:   getEnv("KAFKA_TOPIC_STATUS", "label-status-events"),
			Enabled: getEnvBool("KAFKA_ENABLED", true),
		},
		Printer: PrinterConfig{
			Host:       getEnv("PRINTER_IP", "192.168.1.100"),
			Port:       getEnvInt("PRINTER_PORT", 9100),
			Timeout:    getEnvDuration("PRINTER_TIMEOUT", 5*time.Second),
			DPI:        getEnvInt("PRINTER_DPI", 203),
			BitmapText: getEnvBool("PRINTER_BITMAP_TEXT", true),
		},
		RKeeper: RKeeperConfig{
			BaseURL:      getEnv("RKEEPER_BASE_URL", "http://localhost:8700"),
			Username:     getEnv("RKEEPER_USERNAME", ""),
			Password:     getEnv("RKEEPER_PASSWORD", ""),
			SyncInterval: getEnvDuration("RKEEPER_SYNC_INTERVAL", 5*time.Minute),
			SyncEnabled:  getEnvBool("RKEEPER_SYNC_ENABLED", false),
		},
		Worker: WorkerConfig{
			IdlePoll:        getEnvDuration("WORKER_IDLE_POLL", 500*time.Millisecond),
			ShutdownTimeout: getEnvDuration("WORKER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
