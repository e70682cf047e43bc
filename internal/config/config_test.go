package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"elearn-progress-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
redis:
  addr: localhost:6379
quiz:
  ttl: 5m
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 256, cfg.Notifier.Buffer)
	assert.Equal(t, 2, cfg.Notifier.Workers)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 5*time.Minute, TTLDuration(cfg.Quiz.TTL, time.Minute))
}

func TestLoadReadsAchievementsAndOrigins(t *testing.T) {
	path := writeConfig(t, `
server:
  port: "9090"
  allowedOrigins: ["https://learn.example.com"]
log:
  mode: production
notifier:
  buffer: 16
  workers: 4
achievements:
  - id: quiz-ace
    name: Ace
    description: Scored 90% or more
    family: quiz_score
    threshold: 90
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, []string{"https://learn.example.com"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 16, cfg.Notifier.Buffer)
	assert.Equal(t, 4, cfg.Notifier.Workers)

	catalog := cfg.AchievementCatalog(nil)
	require.Len(t, catalog, 1)
	assert.Equal(t, domain.TriggerQuizScore, catalog[0].Family)
	assert.Equal(t, 90, catalog[0].Threshold)
}

func TestAchievementCatalogFallsBack(t *testing.T) {
	fallback := []domain.Achievement{{ID: "first-lesson", Family: domain.TriggerLessonCount, Threshold: 1}}
	assert.Equal(t, fallback, Config{}.AchievementCatalog(fallback))
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	cases := map[string]string{
		"log mode": `
log:
  mode: verbose
`,
		"unknown family": `
achievements:
  - id: x
    family: streak
    threshold: 1
`,
		"zero threshold": `
achievements:
  - id: x
    family: review
    threshold: 0
`,
		"duplicate id": `
achievements:
  - id: x
    family: review
    threshold: 1
  - id: x
    family: review
    threshold: 2
`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestTTLDuration(t *testing.T) {
	assert.Equal(t, time.Minute, TTLDuration("", time.Minute))
	assert.Equal(t, time.Minute, TTLDuration("soon", time.Minute))
	assert.Equal(t, 30*time.Second, TTLDuration("30s", time.Minute))
}
