package config

import (
	"fmt"
	"os"
	"time"

	"elearn-progress-service/internal/domain"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	defaultPort            = "8080"
	defaultNotifierBuffer  = 256
	defaultNotifierWorkers = 2
)

type Config struct {
	Server struct {
		Port           string   `yaml:"port"`
		AllowedOrigins []string `yaml:"allowedOrigins"`
	} `yaml:"server"`
	Log struct {
		Mode string `yaml:"mode" validate:"omitempty,oneof=development production"`
	} `yaml:"log"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db" validate:"gte=0"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Quiz struct {
		TTL string `yaml:"ttl"`
	} `yaml:"quiz"`
	Notifier struct {
		Buffer  int `yaml:"buffer"`
		Workers int `yaml:"workers"`
	} `yaml:"notifier"`
	Achievements []domain.Achievement `yaml:"achievements" validate:"dive"`
}

// Load reads YAML config from path and fills in defaults.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = defaultPort
	}
	if c.Notifier.Buffer <= 0 {
		c.Notifier.Buffer = defaultNotifierBuffer
	}
	if c.Notifier.Workers <= 0 {
		c.Notifier.Workers = defaultNotifierWorkers
	}
}

// Validate checks the log mode and every configured achievement rule.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	seen := make(map[string]bool, len(c.Achievements))
	for i, a := range c.Achievements {
		if a.ID == "" {
			return fmt.Errorf("invalid config: achievements[%d].id is required", i)
		}
		if seen[a.ID] {
			return fmt.Errorf("invalid config: duplicate achievement %q", a.ID)
		}
		seen[a.ID] = true
		if !knownFamily(a.Family) {
			return fmt.Errorf("invalid config: achievement %q has unknown family %q", a.ID, a.Family)
		}
		if a.Threshold <= 0 {
			return fmt.Errorf("invalid config: achievement %q needs a positive threshold", a.ID)
		}
	}
	return nil
}

// AchievementCatalog returns the configured achievements, or fallback when none are configured.
func (c Config) AchievementCatalog(fallback []domain.Achievement) []domain.Achievement {
	if len(c.Achievements) == 0 {
		return fallback
	}
	return c.Achievements
}

func knownFamily(f domain.TriggerFamily) bool {
	switch f {
	case domain.TriggerEnrollment, domain.TriggerLessonCount, domain.TriggerCourseCompletion,
		domain.TriggerQuizScore, domain.TriggerQuizPass, domain.TriggerReview, domain.TriggerCertificate:
		return true
	}
	return false
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
