package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_FileAndEnv(t *testing.T) {
	// Arrange
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
database:
  host: db.local
  user: placement
  dbname: placement
jwt:
  secret: file-secret
placement:
  default_target_level: B1
  lock_ttl: 5s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("JWT_SECRET", "env-secret")
	t.Setenv("GIN_MODE", "debug")

	// Act
	cfg, err := Load(path)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "db.local", cfg.Database.Host)
	assert.Equal(t, "env-secret", cfg.JWT.Secret, "Переменная окружения приоритетнее файла")
	assert.Equal(t, "B1", cfg.Placement.DefaultTargetLevel)
	assert.Equal(t, 5*time.Second, cfg.Placement.LockTTL)
	assert.Equal(t, 20, cfg.Placement.DefaultQuestionsLimit, "Значение по умолчанию")
	assert.Equal(t, "local", cfg.Storage.Provider)
	assert.Equal(t, "8080", cfg.Server.Port)
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("DATABASE_HOST", "")
	t.Setenv("JWT_SECRET", "")

	_, err := Load("")

	assert.Error(t, err, "Без настроек БД конфигурация невалидна")
}

func TestValidate_Storage(t *testing.T) {
	cfg := &Config{
		Database: DatabaseConfig{Host: "h", User: "u", DBName: "d"},
		JWT:      JWTConfig{Secret: "s"},
		Storage:  StorageConfig{Provider: "minio"},
		Outbox:   OutboxConfig{BatchSize: 1, MaxAttempts: 1},
	}
	assert.Error(t, cfg.Validate(), "Для minio нужен endpoint")

	cfg.Storage.Endpoint = "minio:9000"
	cfg.Storage.Bucket = "certificates"
	assert.NoError(t, cfg.Validate())

	cfg.Storage.Provider = "ftp"
	assert.Error(t, cfg.Validate())
}

func TestPostgresConnectionString(t *testing.T) {
	d := DatabaseConfig{Host: "h", Port: "5432", User: "u", Password: "p", DBName: "db", SSLMode: "disable"}
	assert.Equal(t, "host=h port=5432 user=u password=p dbname=db sslmode=disable", d.PostgresConnectionString())
}
