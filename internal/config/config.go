package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application level configuration loaded from environment variables.
type Config struct {
	ServerPort string

	DBDriver string
	DBDSN    string
	ResetDB  bool

	RedisAddr string
	RedisDB   int
	RedisPass string
	CacheTTL  time.Duration

	JWTSecret  string
	JWTIssuer  string
	JWTExpiry  time.Duration
	BcryptCost int

	UploadDir          string
	UploadURLPrefix    string
	UploadMaxFiles     int
	UploadMaxFileBytes int64
	BodyLimit          string

	CORSOrigins []string
	WebDir      string

	LogLevel  string
	LogFormat string

	SwaggerHost string
}

// Load builds Config from environment with sensible defaults.
// A .env file in the working directory is applied first when present;
// variables already set in the environment win.
func Load() *Config {
	_ = godotenv.Load()

	dsn := getEnv("DATABASE_DSN", os.Getenv("MYSQL_DSN"))
	if dsn == "" {
		dsn = "user:password@tcp(localhost:3306)/pharmacy?charset=utf8mb4&parseTime=True&loc=Local"
	}

	return &Config{
		ServerPort:         getEnv("SERVER_PORT", "8080"),
		DBDriver:           strings.ToLower(getEnv("DB_DRIVER", "mysql")),
		DBDSN:              dsn,
		ResetDB:            getEnvBool("RESET_DB", false),
		RedisAddr:          getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:            getEnvInt("REDIS_DB", 0),
		RedisPass:          os.Getenv("REDIS_PASSWORD"),
		CacheTTL:           getEnvDuration("CACHE_TTL", 5*time.Minute),
		JWTSecret:          getEnv("JWT_SECRET", "change-me"),
		JWTIssuer:          getEnv("JWT_ISSUER", "pharm-catalog"),
		JWTExpiry:          getEnvDuration("JWT_EXPIRY", 24*time.Hour),
		BcryptCost:         getEnvInt("BCRYPT_COST", 10),
		UploadDir:          getEnv("UPLOAD_DIR", "./uploads"),
		UploadURLPrefix:    "/" + strings.Trim(getEnv("UPLOAD_URL_PREFIX", "/uploads"), "/"),
		UploadMaxFiles:     getEnvInt("UPLOAD_MAX_FILES", 10),
		UploadMaxFileBytes: int64(getEnvInt("UPLOAD_MAX_FILE_BYTES", 5<<20)),
		BodyLimit:          getEnv("BODY_LIMIT", "60M"),
		CORSOrigins:        getEnvList("CORS_ORIGINS", []string{"*"}),
		WebDir:             os.Getenv("WEB_DIR"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          getEnv("LOG_FORMAT", "console"),
		SwaggerHost:        os.Getenv("SWAGGER_HOST"),
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
