package application

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Thresholds defines discrepancy thresholds for alerting.
type Thresholds struct {
	UnbilledShipments int   `yaml:"unbilled_shipments" json:"unbilled_shipments"`
	UnmatchedEvents   int   `yaml:"unmatched_events" json:"unmatched_events"`
	AmountAbs         int64 `yaml:"amount_abs" json:"amount_abs"`
}

// Config defines reconciliation configuration.
type Config struct {
	Defaults      Thresholds            `yaml:"defaults"`
	Agencies      map[string]Thresholds `yaml:"agencies"`
	Schedule      ScheduleConfig        `yaml:"schedule"`
	StorageRoot   string                `yaml:"storage_root"`
	WebhookURL    string                `yaml:"webhook_url"`
	PublicBaseURL string                `yaml:"public_base_url"`
}

// ScheduleConfig defines the daily run schedule.
type ScheduleConfig struct {
	DailyAt  string   `yaml:"daily_at"`
	Agencies []string `yaml:"agencies"`
}

// LoadConfig loads config from yaml or env.
func LoadConfig() (Config, error) {
	cfg := Config{
		Defaults: Thresholds{
			UnbilledShipments: 1,
			UnmatchedEvents:   1,
			AmountAbs:         0,
		},
		StorageRoot:   getenvDefault("RECON_STORAGE_ROOT", filepath.FromSlash("var/reports/reconciliation")),
		WebhookURL:    os.Getenv("RECON_WEBHOOK_URL"),
		PublicBaseURL: getenvDefault("RECON_PUBLIC_BASE_URL", "http://localhost:8080"),
	}

	if path := os.Getenv("RECON_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	if cfg.Schedule.DailyAt == "" {
		cfg.Schedule.DailyAt = getenvDefault("RECON_DAILY_AT", "02:00")
	}
	if len(cfg.Schedule.Agencies) == 0 {
		cfg.Schedule.Agencies = splitCSV(getenvDefault("RECON_AGENCIES", ""))
	}
	if cfg.WebhookURL == "" {
		cfg.WebhookURL = os.Getenv("RECON_WEBHOOK_URL")
	}
	if cfg.StorageRoot == "" {
		return cfg, errors.New("reconciliation: storage root required")
	}
	return cfg, nil
}

// ThresholdsForAgency returns thresholds for an agency.
func (c Config) ThresholdsForAgency(agencyID string) Thresholds {
	if c.Agencies != nil {
		if override, ok := c.Agencies[agencyID]; ok {
			return mergeThresholds(c.Defaults, override)
		}
	}
	return c.Defaults
}

func mergeThresholds(base, override Thresholds) Thresholds {
	if override.UnbilledShipments != 0 {
		base.UnbilledShipments = override.UnbilledShipments
	}
	if override.UnmatchedEvents != 0 {
		base.UnmatchedEvents = override.UnmatchedEvents
	}
	if override.AmountAbs != 0 {
		base.AmountAbs = override.AmountAbs
	}
	return base
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func splitCSV(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	var result []string
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			result = append(result, part)
		}
	}
	return result
}
