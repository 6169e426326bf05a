package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// Append modes.
const (
	// AppendModeStrict serializes appends per list and lets the store
	// compare-and-append unique values.
	AppendModeStrict = "strict"
	// AppendModeLegacy checks uniqueness only against the rows read at the
	// start of the request; concurrent duplicates can slip through.
	AppendModeLegacy = "legacy"
)

// Config 应用配置结构
type Config struct {
	// 环境配置
	Environment string
	Port        string
	BaseURL     string // 基础URL，用于构建分享链接

	// 数据库配置
	DBDriver       string
	PostgresDSN    string
	SQLitePath     string
	DataDir        string
	StorageTimeout time.Duration

	// Row append behaviour
	AppendMode              string
	EnforceListOwnership    bool
	ExposeValidationDetails bool
	RowRateLimitPerMinute   int
	MaxBodyBytes            int64

	// 前端与法律信息
	PublicDir string
	LegalFile string

	// CORS配置
	AllowedOrigins []string

	// 调试配置
	Debug bool
}

// LoadConfig 加载配置
func LoadConfig() *Config {
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	// 按环境加载 .env 文件；已存在的环境变量优先
	switch env {
	case "production":
		_ = godotenv.Load(".env.production")
	default:
		_ = godotenv.Load(".env.local")
	}

	config := &Config{
		Environment:             getEnvWithDefault("ENVIRONMENT", "development"),
		Port:                    getEnvWithDefault("PORT", "3000"),
		BaseURL:                 strings.TrimRight(strings.TrimSpace(os.Getenv("BASE_URL")), "/"),
		DBDriver:                getEnvWithDefault("DB_DRIVER", ""),
		PostgresDSN:             strings.TrimSpace(os.Getenv("POSTGRES_DSN")),
		SQLitePath:              getEnvWithDefault("SQLITE_PATH", "heeecker-lists.db"),
		DataDir:                 getEnvWithDefault("DATA_DIR", "./data"),
		StorageTimeout:          getEnvDuration("STORAGE_TIMEOUT", 5*time.Second),
		AppendMode:              strings.ToLower(getEnvWithDefault("APPEND_MODE", AppendModeStrict)),
		EnforceListOwnership:    getEnvBool("ENFORCE_LIST_OWNERSHIP", true),
		ExposeValidationDetails: getEnvBool("EXPOSE_VALIDATION_DETAILS", false),
		RowRateLimitPerMinute:   getEnvInt("ROW_RATE_LIMIT_PER_MINUTE", 60),
		MaxBodyBytes:            int64(getEnvInt("MAX_BODY_BYTES", 1<<20)),
		PublicDir:               strings.TrimSpace(os.Getenv("PUBLIC_DIR")),
		LegalFile:               getEnvWithDefault("LEGAL_FILE", "./legal.txt"),
		Debug:                   getEnvBool("DEBUG", false),
	}

	// 未指定驱动时：有DSN用PostgreSQL，否则本地文件
	if config.DBDriver == "" {
		if config.PostgresDSN != "" {
			config.DBDriver = "postgres"
		} else {
			config.DBDriver = "local"
		}
	}

	// CORS配置
	allowedOrigins := getEnvWithDefault("ALLOWED_ORIGINS", "*")
	if allowedOrigins == "*" {
		config.AllowedOrigins = []string{"*"}
	} else {
		for _, o := range strings.Split(allowedOrigins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				config.AllowedOrigins = append(config.AllowedOrigins, o)
			}
		}
	}

	// 生产环境关闭调试
	if config.Environment == "production" {
		config.Debug = false
	}

	return config
}

// Cached config (initialized once per cold start)
var (
	cachedConfig *Config
	configOnce   sync.Once
)

// GetCached returns the process-wide cached Config.
// On serverless platforms it initializes once per cold start and is reused
// across warm invocations.
func GetCached() *Config {
	configOnce.Do(func() {
		cachedConfig = LoadConfig()
	})
	return cachedConfig
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	switch c.DBDriver {
	case "memory", "local", "sqlite":
	case "postgres":
		if c.PostgresDSN == "" {
			return fmt.Errorf("POSTGRES_DSN is required when DB_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("unknown DB_DRIVER %q", c.DBDriver)
	}

	if c.AppendMode != AppendModeStrict && c.AppendMode != AppendModeLegacy {
		return fmt.Errorf("APPEND_MODE must be %q or %q, got %q", AppendModeStrict, AppendModeLegacy, c.AppendMode)
	}
	if c.StorageTimeout <= 0 {
		return fmt.Errorf("STORAGE_TIMEOUT must be positive")
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("MAX_BODY_BYTES must be positive")
	}
	if c.RowRateLimitPerMinute < 0 {
		return fmt.Errorf("ROW_RATE_LIMIT_PER_MINUTE must not be negative")
	}
	return nil
}

// IsProduction 检查是否为生产环境
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// IsDevelopment 检查是否为开发环境
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// 辅助函数

// getEnvWithDefault 获取环境变量，如果不存在则使用默认值
func getEnvWithDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool 获取布尔类型的环境变量
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(strings.TrimSpace(value)); err == nil {
			return parsed
		}
	}
	return defaultValue
}
