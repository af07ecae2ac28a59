// Пакет config — загрузка и валидация конфигурации Client Portal
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации Client Portal.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
	// Таймаут чтения запроса HTTP-сервером
	HTTPReadTimeout time.Duration
	// Таймаут записи ответа HTTP-сервером
	HTTPWriteTimeout time.Duration
	// Таймаут keep-alive соединений
	HTTPIdleTimeout time.Duration

	// --- PostgreSQL ---

	// Хост PostgreSQL
	DBHost string
	// Порт PostgreSQL
	DBPort int
	// Имя базы данных
	DBName string
	// Имя пользователя PostgreSQL
	DBUser string
	// Пароль пользователя PostgreSQL
	DBPassword string
	// Режим SSL: disable, require, verify-ca, verify-full
	DBSSLMode string

	// --- Identity Provider (JWT) ---

	// Issuer JWT внешнего IdP
	JWTIssuer string
	// URL JWKS endpoint IdP
	JWTJWKSURL string
	// Таймаут HTTP-клиента JWKS
	JWKSClientTimeout time.Duration
	// Интервал обновления JWKS-ключей
	JWKSRefreshInterval time.Duration
	// Допустимое отклонение времени при проверке JWT
	JWTLeeway time.Duration

	// --- Blob store (S3) ---

	// Endpoint S3-совместимого хранилища
	S3Endpoint string
	// Регион S3
	S3Region string
	// Бакет для загрузок пользователей
	S3Bucket string
	// Ключ доступа S3
	S3AccessKey string
	// Секретный ключ S3
	S3SecretKey string
	// Время действия presigned PUT URL
	S3PresignExpiry time.Duration

	// --- Кэш уведомлений ---

	// Максимальное количество записей в LRU-кэше страниц уведомлений
	CacheSize int
	// TTL записи кэша
	CacheTTL time.Duration

	// --- Reconciler ---

	// Интервал фоновой проверки зависших резерваций
	ReconcileInterval time.Duration
	// Таймаут, после которого reserved-запись считается брошенной
	ReserveTimeout time.Duration

	// --- Мониторинг зависимостей ---

	// Интервал проверки зависимостей topologymetrics
	DephealthCheckInterval time.Duration
	// Имя группы в метриках topologymetrics
	DephealthGroup string

	// --- Graceful shutdown ---

	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// CP_PORT — порт HTTP-сервера (по умолчанию 8080)
	cfg.Port, err = getEnvInt("CP_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("CP_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("CP_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	// CP_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("CP_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("CP_LOG_LEVEL: %w", err)
	}

	// CP_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("CP_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("CP_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// CP_HTTP_READ_TIMEOUT — таймаут чтения запроса (по умолчанию 30s)
	cfg.HTTPReadTimeout, err = getEnvDuration("CP_HTTP_READ_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("CP_HTTP_READ_TIMEOUT: %w", err)
	}

	// CP_HTTP_WRITE_TIMEOUT — таймаут записи ответа (по умолчанию 30s)
	cfg.HTTPWriteTimeout, err = getEnvDuration("CP_HTTP_WRITE_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("CP_HTTP_WRITE_TIMEOUT: %w", err)
	}

	// CP_HTTP_IDLE_TIMEOUT — таймаут keep-alive (по умолчанию 120s)
	cfg.HTTPIdleTimeout, err = getEnvDuration("CP_HTTP_IDLE_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, fmt.Errorf("CP_HTTP_IDLE_TIMEOUT: %w", err)
	}

	// --- PostgreSQL ---

	// CP_DB_HOST — обязательный
	cfg.DBHost, err = getEnvRequired("CP_DB_HOST")
	if err != nil {
		return nil, err
	}

	// CP_DB_PORT — порт PostgreSQL (по умолчанию 5432)
	cfg.DBPort, err = getEnvInt("CP_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("CP_DB_PORT: %w", err)
	}

	// CP_DB_NAME — обязательный
	cfg.DBName, err = getEnvRequired("CP_DB_NAME")
	if err != nil {
		return nil, err
	}

	// CP_DB_USER — обязательный
	cfg.DBUser, err = getEnvRequired("CP_DB_USER")
	if err != nil {
		return nil, err
	}

	// CP_DB_PASSWORD — обязательный
	cfg.DBPassword, err = getEnvRequired("CP_DB_PASSWORD")
	if err != nil {
		return nil, err
	}

	// CP_DB_SSL_MODE — режим SSL (по умолчанию disable)
	cfg.DBSSLMode = getEnvDefault("CP_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return nil, fmt.Errorf("CP_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	// --- Identity Provider ---

	// CP_JWT_ISSUER — обязательный
	cfg.JWTIssuer, err = getEnvRequired("CP_JWT_ISSUER")
	if err != nil {
		return nil, err
	}
	cfg.JWTIssuer = strings.TrimRight(cfg.JWTIssuer, "/")

	// CP_JWT_JWKS_URL — обязательный
	cfg.JWTJWKSURL, err = getEnvRequired("CP_JWT_JWKS_URL")
	if err != nil {
		return nil, err
	}

	// CP_JWKS_CLIENT_TIMEOUT — таймаут HTTP-клиента JWKS (по умолчанию 10s)
	cfg.JWKSClientTimeout, err = getEnvDuration("CP_JWKS_CLIENT_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("CP_JWKS_CLIENT_TIMEOUT: %w", err)
	}

	// CP_JWKS_REFRESH_INTERVAL — интервал обновления ключей (по умолчанию 1h)
	cfg.JWKSRefreshInterval, err = getEnvDuration("CP_JWKS_REFRESH_INTERVAL", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("CP_JWKS_REFRESH_INTERVAL: %w", err)
	}

	// CP_JWT_LEEWAY — допустимое отклонение времени (по умолчанию 30s)
	cfg.JWTLeeway, err = getEnvDuration("CP_JWT_LEEWAY", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("CP_JWT_LEEWAY: %w", err)
	}

	// --- Blob store ---

	// CP_S3_ENDPOINT — обязательный
	cfg.S3Endpoint, err = getEnvRequired("CP_S3_ENDPOINT")
	if err != nil {
		return nil, err
	}

	// CP_S3_REGION — регион (по умолчанию us-east-1)
	cfg.S3Region = getEnvDefault("CP_S3_REGION", "us-east-1")

	// CP_S3_BUCKET — обязательный
	cfg.S3Bucket, err = getEnvRequired("CP_S3_BUCKET")
	if err != nil {
		return nil, err
	}

	// CP_S3_ACCESS_KEY — обязательный
	cfg.S3AccessKey, err = getEnvRequired("CP_S3_ACCESS_KEY")
	if err != nil {
		return nil, err
	}

	// CP_S3_SECRET_KEY — обязательный
	cfg.S3SecretKey, err = getEnvRequired("CP_S3_SECRET_KEY")
	if err != nil {
		return nil, err
	}

	// CP_S3_PRESIGN_EXPIRY — время действия presigned URL (по умолчанию 15m)
	cfg.S3PresignExpiry, err = getEnvDuration("CP_S3_PRESIGN_EXPIRY", 15*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("CP_S3_PRESIGN_EXPIRY: %w", err)
	}

	// --- Кэш уведомлений ---

	// CP_CACHE_SIZE — размер кэша (по умолчанию 500)
	cfg.CacheSize, err = getEnvInt("CP_CACHE_SIZE", 500)
	if err != nil {
		return nil, fmt.Errorf("CP_CACHE_SIZE: %w", err)
	}
	if cfg.CacheSize < 1 {
		return nil, fmt.Errorf("CP_CACHE_SIZE: значение %d должно быть положительным", cfg.CacheSize)
	}

	// CP_CACHE_TTL — TTL записи кэша (по умолчанию 5m)
	cfg.CacheTTL, err = getEnvDuration("CP_CACHE_TTL", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("CP_CACHE_TTL: %w", err)
	}

	// --- Reconciler ---

	// CP_RECONCILE_INTERVAL — интервал reconciler (по умолчанию 10m)
	cfg.ReconcileInterval, err = getEnvDuration("CP_RECONCILE_INTERVAL", 10*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("CP_RECONCILE_INTERVAL: %w", err)
	}

	// CP_RESERVE_TIMEOUT — таймаут брошенной резервации (по умолчанию 1h)
	cfg.ReserveTimeout, err = getEnvDuration("CP_RESERVE_TIMEOUT", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("CP_RESERVE_TIMEOUT: %w", err)
	}

	// --- Мониторинг зависимостей ---

	// CP_DEPHEALTH_CHECK_INTERVAL — интервал проверки зависимостей (по умолчанию 15s)
	cfg.DephealthCheckInterval, err = getEnvDuration("CP_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("CP_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// CP_DEPHEALTH_GROUP — имя группы в метриках (по умолчанию clientportal)
	cfg.DephealthGroup = getEnvDefault("CP_DEPHEALTH_GROUP", "clientportal")

	// --- Graceful shutdown ---

	// CP_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 5s)
	cfg.ShutdownTimeout, err = getEnvDuration("CP_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("CP_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// DatabaseURL возвращает URL подключения к PostgreSQL (для метрик зависимостей).
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
