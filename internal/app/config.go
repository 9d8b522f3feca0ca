package app

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/studysprint/studysprint-backend/internal/platform/envutil"
	"github.com/studysprint/studysprint-backend/internal/platform/logger"
	"github.com/studysprint/studysprint-backend/internal/services"
)

type Config struct {
	Port        string
	LogMode     string
	Environment string
	AuthSecret  string
	ServiceName string

	Tunables Tunables
}

// Tunables groups the engine knobs that a deployment may override from a
// YAML file. Everything has a sane default; the file is optional.
type Tunables struct {
	Session  services.SessionConfig  `yaml:"session"`
	Scoring  services.ScoreConfig    `yaml:"scoring"`
	Pomodoro services.PomodoroConfig `yaml:"pomodoro"`

	Timer struct {
		TickSeconds          int `yaml:"tick_seconds"`
		IdleThresholdSeconds int `yaml:"idle_threshold_seconds"`
		IdleCapSeconds       int `yaml:"idle_cap_seconds"`
	} `yaml:"timer"`
}

func LoadConfig(log *logger.Logger) (Config, error) {
	cfg := Config{
		Port:        envutil.String("PORT", "8080"),
		LogMode:     envutil.String("LOG_MODE", "development"),
		Environment: envutil.String("ENVIRONMENT", "development"),
		AuthSecret:  envutil.String("AUTH_SECRET", ""),
		ServiceName: envutil.String("SERVICE_NAME", "studysprint-backend"),
		Tunables: Tunables{
			Session:  services.DefaultSessionConfig(),
			Scoring:  services.DefaultScoreConfig(),
			Pomodoro: services.DefaultPomodoroConfig(),
		},
	}

	path := envutil.String("CONFIG_PATH", "")
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg.Tunables); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	log.Info("tunables loaded", "path", path)
	return cfg, nil
}

// TimerConfig folds the YAML overrides into the timer defaults.
func (c Config) TimerConfig() services.TimerConfig {
	tc := services.DefaultTimerConfig()
	if v := c.Tunables.Timer.TickSeconds; v > 0 {
		tc.TickInterval = secondsDuration(v)
	}
	if v := c.Tunables.Timer.IdleThresholdSeconds; v > 0 {
		tc.IdleThreshold = secondsDuration(v)
	}
	if v := c.Tunables.Timer.IdleCapSeconds; v > 0 {
		tc.IdleCap = secondsDuration(v)
	}
	return tc
}

func secondsDuration(v int) time.Duration {
	return time.Duration(v) * time.Second
}
