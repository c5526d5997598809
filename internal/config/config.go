package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Telegram struct {
		BotToken     string `yaml:"bot_token"`
		ChatID       string `yaml:"chat_id"`
		NotifyCycles bool   `yaml:"notify_cycles"`
	} `yaml:"telegram"`
	Reddit struct {
		Mode         string `yaml:"mode"`
		UserAgent    string `yaml:"user_agent"`
		ClientID     string `yaml:"client_id"`
		ClientSecret string `yaml:"client_secret"`
		Username     string `yaml:"username"`
		Password     string `yaml:"password"`
	} `yaml:"reddit"`
	AI struct {
		BaseURL        string `yaml:"base_url"`
		APIKey         string `yaml:"api_key"`
		Model          string `yaml:"model"`
		DailyLimit     int    `yaml:"daily_limit"`
		PerMinute      int    `yaml:"per_minute"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
		ComposeReplies bool   `yaml:"compose_replies"`
	} `yaml:"ai"`
	Redis struct {
		URL string `yaml:"url"`
	} `yaml:"redis"`
	Schedule struct {
		CycleCron      string `yaml:"cycle_cron"`
		ReleaseCron    string `yaml:"release_cron"`
		DailyResetCron string `yaml:"daily_reset_cron"`
		RunOnStart     bool   `yaml:"run_on_start"`
	} `yaml:"schedule"`
	Posting struct {
		CandidateLimit          int      `yaml:"candidate_limit"`
		CampaignDelaySeconds    int      `yaml:"campaign_delay_seconds"`
		DefaultSubreddits       []string `yaml:"default_subreddits"`
		DefaultCooldownMinutes  int      `yaml:"default_cooldown_minutes"`
		MaxScheduleDriftMinutes int      `yaml:"max_schedule_drift_minutes"`
	} `yaml:"posting"`
	Breaker struct {
		FailureThreshold   int `yaml:"failure_threshold"`
		BaseBackoffMinutes int `yaml:"base_backoff_minutes"`
		MaxBackoffMinutes  int `yaml:"max_backoff_minutes"`
	} `yaml:"breaker"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
		SeedFile   string `yaml:"seed_file"`
	} `yaml:"database"`
	API struct {
		Addr  string `yaml:"addr"`
		Token string `yaml:"token"`
	} `yaml:"api"`
	Proxy string `yaml:"proxy"`
}

// Load reads config from a YAML file, then applies environment variable overrides.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)
	applyDefaults(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	str := map[string]*string{
		"TELEGRAM_BOT_TOKEN":   &cfg.Telegram.BotToken,
		"TELEGRAM_CHAT_ID":     &cfg.Telegram.ChatID,
		"REDDIT_MODE":          &cfg.Reddit.Mode,
		"REDDIT_USER_AGENT":    &cfg.Reddit.UserAgent,
		"REDDIT_CLIENT_ID":     &cfg.Reddit.ClientID,
		"REDDIT_CLIENT_SECRET": &cfg.Reddit.ClientSecret,
		"REDDIT_USERNAME":      &cfg.Reddit.Username,
		"REDDIT_PASSWORD":      &cfg.Reddit.Password,
		"AI_BASE_URL":          &cfg.AI.BaseURL,
		"AI_API_KEY":           &cfg.AI.APIKey,
		"AI_MODEL":             &cfg.AI.Model,
		"REDIS_URL":            &cfg.Redis.URL,
		"CRON_CYCLE":           &cfg.Schedule.CycleCron,
		"SQLITE_PATH":          &cfg.Database.SQLitePath,
		"SEED_FILE":            &cfg.Database.SeedFile,
		"API_ADDR":             &cfg.API.Addr,
		"API_TOKEN":            &cfg.API.Token,
		"HTTPS_PROXY":          &cfg.Proxy,
	}
	for key, dst := range str {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	if v := os.Getenv("AI_DAILY_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.AI.DailyLimit = n
		}
	}
	if v := os.Getenv("RUN_ON_START"); v != "" {
		cfg.Schedule.RunOnStart = v == "true"
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Reddit.Mode == "" {
		cfg.Reddit.Mode = "public"
	}
	if cfg.Reddit.UserAgent == "" {
		cfg.Reddit.UserAgent = "ThreadSentinel/1.0"
	}
	if cfg.AI.BaseURL == "" {
		cfg.AI.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.AI.Model == "" {
		cfg.AI.Model = "gpt-4o-mini"
	}
	if cfg.AI.TimeoutSeconds == 0 {
		cfg.AI.TimeoutSeconds = 30
	}
	if cfg.Schedule.CycleCron == "" {
		cfg.Schedule.CycleCron = "0 */15 * * * *"
	}
	if cfg.Schedule.ReleaseCron == "" {
		cfg.Schedule.ReleaseCron = "0 * * * * *"
	}
	if cfg.Schedule.DailyResetCron == "" {
		cfg.Schedule.DailyResetCron = "0 0 0 * * *"
	}
	if cfg.Posting.CandidateLimit == 0 {
		cfg.Posting.CandidateLimit = 25
	}
	if cfg.Posting.CampaignDelaySeconds == 0 {
		cfg.Posting.CampaignDelaySeconds = 5
	}
	if cfg.Posting.DefaultCooldownMinutes == 0 {
		cfg.Posting.DefaultCooldownMinutes = 30
	}
	if cfg.Breaker.FailureThreshold == 0 {
		cfg.Breaker.FailureThreshold = 3
	}
	if cfg.Breaker.BaseBackoffMinutes == 0 {
		cfg.Breaker.BaseBackoffMinutes = 15
	}
	if cfg.Breaker.MaxBackoffMinutes == 0 {
		cfg.Breaker.MaxBackoffMinutes = 240
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "data/thread_sentinel.db"
	}
	if cfg.API.Addr == "" {
		cfg.API.Addr = ":8080"
	}
}

// Validate checks that all required fields are set and consistent.
func (c *Config) Validate() error {
	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		return fmt.Errorf("telegram.bot_token and telegram.chat_id must be set together")
	}
	switch c.Reddit.Mode {
	case "api":
		if c.Reddit.ClientID == "" || c.Reddit.ClientSecret == "" {
			return fmt.Errorf("reddit.client_id and reddit.client_secret are required in api mode")
		}
	case "public", "mock":
	default:
		return fmt.Errorf("reddit.mode must be one of api, public, mock (got %q)", c.Reddit.Mode)
	}
	if c.AI.DailyLimit < 0 || c.AI.PerMinute < 0 {
		return fmt.Errorf("ai.daily_limit and ai.per_minute must not be negative")
	}
	if c.AI.ComposeReplies && c.AI.APIKey == "" {
		return fmt.Errorf("ai.compose_replies requires ai.api_key")
	}

	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	for name, spec := range map[string]string{
		"schedule.cycle_cron":       c.Schedule.CycleCron,
		"schedule.release_cron":     c.Schedule.ReleaseCron,
		"schedule.daily_reset_cron": c.Schedule.DailyResetCron,
	} {
		if _, err := parser.Parse(spec); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}

	if c.Posting.CandidateLimit < 0 || c.Posting.CampaignDelaySeconds < 0 || c.Posting.DefaultCooldownMinutes < 0 {
		return fmt.Errorf("posting limits must not be negative")
	}
	if c.Breaker.FailureThreshold < 1 {
		return fmt.Errorf("breaker.failure_threshold must be at least 1")
	}
	if c.Breaker.MaxBackoffMinutes < c.Breaker.BaseBackoffMinutes {
		return fmt.Errorf("breaker.max_backoff_minutes must not be below base_backoff_minutes")
	}
	return nil
}

// AIEnabled reports whether an AI key is configured.
func (c *Config) AIEnabled() bool {
	return c.AI.APIKey != ""
}

// CampaignDelay is the pause between two campaigns of a cycle.
func (c *Config) CampaignDelay() time.Duration {
	return time.Duration(c.Posting.CampaignDelaySeconds) * time.Second
}

// MaxScheduleDrift bounds schedule self-healing. Zero resets every future schedule.
func (c *Config) MaxScheduleDrift() time.Duration {
	return time.Duration(c.Posting.MaxScheduleDriftMinutes) * time.Minute
}
