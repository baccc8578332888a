package batch

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/teampulse/teampulse-backend/internal/pkg/logger"
	"github.com/teampulse/teampulse-backend/internal/utils"
)

// Config drives the scheduler and the notifier. It loads from the YAML file
// named by BATCH_CONFIG_PATH; a missing path yields the defaults, so a bare
// deployment still runs nightly.
type Config struct {
	// Cron is the daily trigger in cron syntax, evaluated in the canonical
	// timezone.
	Cron string `yaml:"cron"`

	Notify NotifyConfig `yaml:"notify"`
}

type NotifyConfig struct {
	// DailyWebhookURL receives a summary after every successful run.
	DailyWebhookURL string `yaml:"daily_webhook_url"`
	// WeeklyWebhookURL receives the report summary after a Friday run.
	WeeklyWebhookURL string `yaml:"weekly_webhook_url"`
	// TeamWebhookURLs maps team IDs to their own weekly webhook.
	TeamWebhookURLs map[string]string `yaml:"team_webhook_urls"`
}

func DefaultConfig() Config {
	return Config{Cron: "0 23 * * *"}
}

// LoadConfig reads BATCH_CONFIG_PATH when set, otherwise returns defaults.
func LoadConfig(log *logger.Logger) (Config, error) {
	cfg := DefaultConfig()

	path := utils.GetEnv("BATCH_CONFIG_PATH", "", log)
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read batch config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse batch config %s: %w", path, err)
	}
	if cfg.Cron == "" {
		cfg.Cron = DefaultConfig().Cron
	}
	return cfg, nil
}
