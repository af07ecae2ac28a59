package config

import (
	"log/slog"
	"testing"
	"time"
)

// setEnvs устанавливает переменные окружения для теста.
func setEnvs(t *testing.T, envs map[string]string) {
	t.Helper()
	for k, v := range envs {
		t.Setenv(k, v)
	}
}

// minimalEnvs возвращает минимальный набор обязательных переменных.
func minimalEnvs() map[string]string {
	return map[string]string{
		"CP_DB_HOST":       "localhost",
		"CP_DB_NAME":       "clientportal",
		"CP_DB_USER":       "clientportal",
		"CP_DB_PASSWORD":   "secret",
		"CP_JWT_ISSUER":    "https://securetoken.example.com/portal",
		"CP_JWT_JWKS_URL":  "https://securetoken.example.com/portal/jwks",
		"CP_S3_ENDPOINT":   "http://localhost:9000",
		"CP_S3_BUCKET":     "uploads",
		"CP_S3_ACCESS_KEY": "minio",
		"CP_S3_SECRET_KEY": "minio-secret",
	}
}

func TestLoad_MinimalConfig(t *testing.T) {
	setEnvs(t, minimalEnvs())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}

	// Проверяем значения по умолчанию
	if cfg.Port != 8080 {
		t.Errorf("Port = %d, ожидается 8080", cfg.Port)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, ожидается Info", cfg.LogLevel)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat = %q, ожидается json", cfg.LogFormat)
	}
	if cfg.DBPort != 5432 {
		t.Errorf("DBPort = %d, ожидается 5432", cfg.DBPort)
	}
	if cfg.DBSSLMode != "disable" {
		t.Errorf("DBSSLMode = %q, ожидается disable", cfg.DBSSLMode)
	}
	if cfg.S3Region != "us-east-1" {
		t.Errorf("S3Region = %q, ожидается us-east-1", cfg.S3Region)
	}
	if cfg.S3PresignExpiry != 15*time.Minute {
		t.Errorf("S3PresignExpiry = %v, ожидается 15m", cfg.S3PresignExpiry)
	}
	if cfg.CacheSize != 500 {
		t.Errorf("CacheSize = %d, ожидается 500", cfg.CacheSize)
	}
	if cfg.CacheTTL != 5*time.Minute {
		t.Errorf("CacheTTL = %v, ожидается 5m", cfg.CacheTTL)
	}
	if cfg.ReconcileInterval != 10*time.Minute {
		t.Errorf("ReconcileInterval = %v, ожидается 10m", cfg.ReconcileInterval)
	}
	if cfg.ReserveTimeout != time.Hour {
		t.Errorf("ReserveTimeout = %v, ожидается 1h", cfg.ReserveTimeout)
	}
	if cfg.DephealthCheckInterval != 15*time.Second {
		t.Errorf("DephealthCheckInterval = %v, ожидается 15s", cfg.DephealthCheckInterval)
	}
	if cfg.ShutdownTimeout != 5*time.Second {
		t.Errorf("ShutdownTimeout = %v, ожидается 5s", cfg.ShutdownTimeout)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	envs := minimalEnvs()
	delete(envs, "CP_DB_HOST")
	// Явно сбрасываем, чтобы не подхватить значение из окружения CI
	envs["CP_DB_HOST"] = ""
	setEnvs(t, envs)

	if _, err := Load(); err == nil {
		t.Fatal("Load() должен вернуть ошибку при отсутствии CP_DB_HOST")
	}
}

func TestLoad_InvalidPort(t *testing.T) {
	envs := minimalEnvs()
	envs["CP_PORT"] = "99999"
	setEnvs(t, envs)

	if _, err := Load(); err == nil {
		t.Fatal("Load() должен вернуть ошибку при CP_PORT вне диапазона")
	}
}

func TestLoad_InvalidLogFormat(t *testing.T) {
	envs := minimalEnvs()
	envs["CP_LOG_FORMAT"] = "xml"
	setEnvs(t, envs)

	if _, err := Load(); err == nil {
		t.Fatal("Load() должен вернуть ошибку при недопустимом CP_LOG_FORMAT")
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	envs := minimalEnvs()
	envs["CP_CACHE_TTL"] = "пять минут"
	setEnvs(t, envs)

	if _, err := Load(); err == nil {
		t.Fatal("Load() должен вернуть ошибку при некорректной длительности")
	}
}

func TestLoad_TrimsIssuerSlash(t *testing.T) {
	envs := minimalEnvs()
	envs["CP_JWT_ISSUER"] = "https://securetoken.example.com/portal/"
	setEnvs(t, envs)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}
	if cfg.JWTIssuer != "https://securetoken.example.com/portal" {
		t.Errorf("JWTIssuer = %q, trailing slash должен быть убран", cfg.JWTIssuer)
	}
}

func TestDatabaseDSN(t *testing.T) {
	setEnvs(t, minimalEnvs())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}

	want := "host=localhost port=5432 dbname=clientportal user=clientportal password=secret sslmode=disable"
	if got := cfg.DatabaseDSN(); got != want {
		t.Errorf("DatabaseDSN() = %q, ожидается %q", got, want)
	}
}

func TestParseLogLevel(t *testing.T) {
	cases := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"info", slog.LevelInfo, false},
		{"WARN", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"trace", slog.LevelInfo, true},
	}

	for _, tc := range cases {
		got, err := parseLogLevel(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("parseLogLevel(%q): ожидалась ошибка", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseLogLevel(%q): неожиданная ошибка %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("parseLogLevel(%q) = %v, ожидается %v", tc.in, got, tc.want)
		}
	}
}
