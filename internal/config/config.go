package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port         string `yaml:"port"`
		ReadTimeout  string `yaml:"read_timeout"`
		WriteTimeout string `yaml:"write_timeout"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Cache struct {
		LocalTTL  string `yaml:"local_ttl"`
		SharedTTL string `yaml:"shared_ttl"`
	} `yaml:"cache"`
	Attempts struct {
		LateAnswers   string `yaml:"late_answers"`
		SweepSchedule string `yaml:"sweep_schedule"`
	} `yaml:"attempts"`
	Relay struct {
		PublishTimeout string `yaml:"publish_timeout"`
		SendBuffer     int    `yaml:"send_buffer"`
	} `yaml:"relay"`
	Auth struct {
		UserID string `yaml:"user_id"`
	} `yaml:"auth"`
}

// Load reads YAML config from path. Environment variables win over the file
// for secrets and addresses so containers can override them.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Postgres.URL = v
	}
	if v := os.Getenv("QUIZ_USER_ID"); v != "" {
		c.Auth.UserID = v
	}
}

func (c *Config) applyDefaults() {
	if c.Attempts.LateAnswers == "" {
		c.Attempts.LateAnswers = "grade"
	}
	if c.Attempts.SweepSchedule == "" {
		c.Attempts.SweepSchedule = "@every 30s"
	}
	if c.Relay.SendBuffer <= 0 {
		c.Relay.SendBuffer = 16
	}
	if c.Auth.UserID == "" {
		c.Auth.UserID = "demo-user"
	}
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
