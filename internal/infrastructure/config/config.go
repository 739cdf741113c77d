package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"apex-http-service/pkg/utils"
)

// 生产环境缺少 JWT_SECRET
var ErrMissingJWTSecret = errors.New("JWT_SECRET must be set in production")

// Config stores all configuration of the application
type Config struct {
	// Environment type: LOCAL or SERVER
	EnvType string
	AppEnv  string

	// Database
	DBDriver        string // mysql, sqlite
	DBHost          string
	DBUser          string
	DBPassword      string
	DBName          string
	DBPort          string
	DBMigrationMode string // 数据库迁移模式: "auto"(默认), "alter"(修改), "drop"(删除重建)
	SQLitePath      string

	// Server
	ServerPort         string
	CORSAllowedOrigins []string

	// Redis
	RedisEnabled  bool
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// MQTT配置
	MQTTEnabled     bool
	MQTTBrokerURL   string // MQTT服务器地址，如 tcp://broker.example.com:1883
	MQTTClientID    string
	MQTTUsername    string
	MQTTPassword    string
	MQTTQoS         int // 服务质量 (0, 1, 2)
	MQTTTopicPrefix string

	// JWT Authentication
	JWTSecretKey       string
	JWTSecretGenerated bool // 未配置时随机生成，仅限非生产环境
	JWTExpiresIn       time.Duration
	JWTIssuer          string

	// Admin
	DefaultAdminEmail    string
	DefaultAdminPassword string

	// Rate limiting
	RateLimitConfigPath string // YAML 策略覆盖文件
	RateLimitStore      string // memory, redis

	// Logging
	LogLevel  string
	LogFormat string
	LogDir    string
}

var (
	config  *Config
	loadErr error
	once    sync.Once
)

// GetConfig returns the process-wide configuration, loaded once
func GetConfig() (*Config, error) {
	once.Do(func() {
		config, loadErr = Load()
	})
	return config, loadErr
}

// Load loads config from environment variables based on ENV_TYPE
func Load() (*Config, error) {
	envType := strings.ToUpper(getEnv("ENV_TYPE", "LOCAL"))
	prefix := ""
	switch envType {
	case "LOCAL":
		prefix = "LOCAL_"
	case "SERVER":
		prefix = "SERVER_"
	default:
		fmt.Printf("Warning: Unknown ENV_TYPE '%s', defaulting to LOCAL environment\n", envType)
		prefix = "LOCAL_"
		envType = "LOCAL"
	}

	// 先取带前缀的变量，再取通用变量
	env := func(key, def string) string {
		return getEnv(prefix+key, getEnv(key, def))
	}

	expiresIn, err := time.ParseDuration(getEnv("JWT_EXPIRES_IN", "3h"))
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_EXPIRES_IN: %w", err)
	}

	cfg := &Config{
		EnvType: envType,
		AppEnv:  strings.ToLower(getEnv("APP_ENV", "development")),

		DBDriver:        strings.ToLower(env("DB_DRIVER", "mysql")),
		DBHost:          env("DB_HOST", "localhost"),
		DBUser:          env("DB_USER", "root"),
		DBPassword:      env("DB_PASSWORD", ""),
		DBName:          env("DB_NAME", "apex_guard"),
		DBPort:          env("DB_PORT", "3306"),
		DBMigrationMode: env("DB_MIGRATION_MODE", "auto"),
		SQLitePath:      env("SQLITE_PATH", "apex.db"),

		ServerPort:         env("SERVER_PORT", "8080"),
		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),

		RedisEnabled:  getEnvAsBool("REDIS_ENABLED", false),
		RedisHost:     env("REDIS_HOST", "localhost"),
		RedisPort:     env("REDIS_PORT", "6379"),
		RedisPassword: env("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		MQTTEnabled:     getEnvAsBool("MQTT_ENABLED", false),
		MQTTBrokerURL:   getEnv("MQTT_BROKER_URL", "tcp://localhost:1883"),
		MQTTClientID:    getEnv("MQTT_CLIENT_ID", "apex_server"),
		MQTTUsername:    getEnv("MQTT_USERNAME", ""),
		MQTTPassword:    getEnv("MQTT_PASSWORD", ""),
		MQTTQoS:         getEnvAsInt("MQTT_QOS", 1),
		MQTTTopicPrefix: getEnv("MQTT_TOPIC_PREFIX", "apex"),

		JWTSecretKey: getEnv("JWT_SECRET", ""),
		JWTExpiresIn: expiresIn,
		JWTIssuer:    getEnv("JWT_ISSUER", "apex-http-service"),

		DefaultAdminEmail:    getEnv("DEFAULT_ADMIN_EMAIL", "admin@apex.local"),
		DefaultAdminPassword: getEnv("DEFAULT_ADMIN_PASSWORD", ""),

		RateLimitConfigPath: getEnv("RATE_LIMIT_CONFIG", ""),
		RateLimitStore:      strings.ToLower(getEnv("RATE_LIMIT_STORE", "memory")),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
		LogDir:    getEnv("LOG_DIR", "logs"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 校验配置，非生产环境缺少JWT密钥时生成随机密钥
func (c *Config) Validate() error {
	if c.JWTSecretKey == "" {
		if c.IsProduction() {
			return ErrMissingJWTSecret
		}
		c.JWTSecretKey = utils.GenerateToken(32)
		c.JWTSecretGenerated = true
	}
	if c.JWTExpiresIn <= 0 {
		return fmt.Errorf("JWT_EXPIRES_IN must be positive, got %s", c.JWTExpiresIn)
	}
	switch c.DBDriver {
	case "mysql", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	switch c.DBMigrationMode {
	case "auto", "alter", "drop":
	default:
		return fmt.Errorf("unsupported DB_MIGRATION_MODE %q", c.DBMigrationMode)
	}
	if c.RateLimitStore == "redis" && !c.RedisEnabled {
		return errors.New("RATE_LIMIT_STORE=redis requires REDIS_ENABLED=true")
	}
	return nil
}

// IsProduction 是否为生产环境
func (c *Config) IsProduction() bool {
	return c.EnvType == "SERVER" || c.AppEnv == "production"
}

// WeakJWTSecret 密钥长度不足32字节
func (c *Config) WeakJWTSecret() bool {
	return !c.JWTSecretGenerated && len(c.JWTSecretKey) < 32
}

// GetDSN returns the database connection string
func (c *Config) GetDSN() string {
	if c.DBDriver == "sqlite" {
		return c.SQLitePath
	}
	return c.DBUser + ":" + c.DBPassword + "@tcp(" + c.DBHost + ":" + c.DBPort + ")/" + c.DBName + "?charset=utf8mb4&parseTime=True&loc=UTC"
}

// GetRedisAddr returns the Redis address
func (c *Config) GetRedisAddr() string {
	return c.RedisHost + ":" + c.RedisPort
}

// Helper function to get environment variable with default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

// Helper function to get environment variable as integer with default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// Helper function to get environment variable as boolean with default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
