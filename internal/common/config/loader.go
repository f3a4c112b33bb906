// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"strings"

	"bloomreach-forms/internal/mapping"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

func Load() (*Config, error) {
	loadEnvFile()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../../configs")
	viper.AddConfigPath(".")

	// Enable ENV override like BLOOMREACH_TOKEN
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	finishLoad(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// LoadFromFile loads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	finishLoad(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func loadEnvFile() {
	for _, path := range []string{".env", "../.env", "../../.env"} {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

func finishLoad(cfg *Config) {
	applyDefaults(cfg)
	cfg.Forms, cfg.MalformedPairs = buildMappings(cfg.FormRows)
}

// buildMappings parses the raw settings rows into the active mapping set.
// Empty rows are skipped; malformed pairs across all rows are collected once,
// deduplicated, for a single aggregated warning.
func buildMappings(rows []FormRow) ([]mapping.FormMapping, []string) {
	var forms []mapping.FormMapping
	var badPairs []string

	for _, row := range rows {
		fields, malformed := mapping.FieldMapFromPairs(row.Fields)
		badPairs = append(badPairs, malformed...)

		flat, malformed := mapping.ParseFieldMap(row.Map)
		badPairs = append(badPairs, malformed...)
		for _, pair := range flat.Pairs() {
			fields.Set(pair.Source, pair.Dest)
		}

		form := mapping.FormMapping{
			FormID:     row.FormID,
			EventType:  mapping.NormalizeKey(row.EventType),
			ConsentKey: mapping.NormalizeKey(row.ConsentKey),
			EmailField: mapping.NormalizeKey(row.EmailField),
			Fields:     fields,
		}
		if form.IsEmpty() {
			continue
		}
		form.Normalize()
		forms = append(forms, form)
	}

	return forms, mapping.UniqueMalformed(badPairs)
}

// applyDefaults sets default values for optional configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "bloomreach-forms"
	}
	if cfg.App.Environment == "" {
		cfg.App.Environment = "development"
	}
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}

	if cfg.Bloomreach.APIBase == "" {
		cfg.Bloomreach.APIBase = "https://api.uk.exponea.com"
	}
	cfg.Bloomreach.APIBase = strings.TrimRight(cfg.Bloomreach.APIBase, "/")
	// Authorization token defaults to the project token, matching legacy installs.
	if cfg.Bloomreach.Token == "" {
		cfg.Bloomreach.Token = cfg.Bloomreach.Project
	}
	if cfg.Bloomreach.TimeoutSeconds == 0 {
		cfg.Bloomreach.TimeoutSeconds = 8
	}
	if cfg.Bloomreach.TimeoutSeconds < 3 {
		cfg.Bloomreach.TimeoutSeconds = 3
	}
	if cfg.Bloomreach.ConsentCacheMinutes == 0 {
		cfg.Bloomreach.ConsentCacheMinutes = 60
	}
	if cfg.Bloomreach.ConsentCacheMinutes < 1 {
		cfg.Bloomreach.ConsentCacheMinutes = 1
	}
	if cfg.Bloomreach.ConsentEventSchema == "" {
		cfg.Bloomreach.ConsentEventSchema = "consent"
	}

	if cfg.Queue.Key == "" {
		cfg.Queue.Key = "brforms:jobs"
	}
	if cfg.Queue.SubmitDelaySeconds == 0 {
		cfg.Queue.SubmitDelaySeconds = 30
	}
	if cfg.Queue.PollIntervalMillis == 0 {
		cfg.Queue.PollIntervalMillis = 1000
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// validateConfig validates critical configuration fields.
func validateConfig(cfg *Config) error {
	if cfg.Redis.Address == "" {
		return fmt.Errorf("redis.address is required")
	}
	switch cfg.Bloomreach.ConsentEventSchema {
	case "consent", "consent_granted":
	default:
		return fmt.Errorf("bloomreach.consent_event_schema must be %q or %q", "consent", "consent_granted")
	}
	return nil
}
