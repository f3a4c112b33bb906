// internal/common/config/config.go
package config

import (
	"strings"
	"time"

	"bloomreach-forms/internal/mapping"
)

// Config is the main application configuration struct.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Server     ServerConfig     `mapstructure:"server"`
	Bloomreach BloomreachConfig `mapstructure:"bloomreach"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Queue      QueueConfig      `mapstructure:"queue"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	FormRows   []FormRow        `mapstructure:"forms"`

	// Forms is the active mapping set: FormRows parsed, normalized and
	// filtered of empty rows. Populated by Load.
	Forms []mapping.FormMapping `mapstructure:"-"`

	// MalformedPairs holds the unique malformed mapping tokens found across
	// all rows during Load. The caller emits one aggregated warning for the
	// whole set; the configuration itself still loads with the valid subset.
	MalformedPairs []string `mapstructure:"-"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	// SiteURL identifies the originating website in outbound event properties.
	SiteURL string `mapstructure:"site_url"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// BloomreachConfig holds the engagement API credentials and tuning knobs.
type BloomreachConfig struct {
	APIBase             string `mapstructure:"api_base"`
	Project             string `mapstructure:"project"`
	Token               string `mapstructure:"token"`
	TimeoutSeconds      int    `mapstructure:"timeout_seconds"`
	ConsentCacheMinutes int    `mapstructure:"consent_cache_minutes"`
	// ConsentEventSchema selects the consent-grant event contract:
	// "consent" (current) or "consent_granted" (legacy installs).
	ConsentEventSchema string `mapstructure:"consent_event_schema"`
}

// Configured reports whether credentials are usable. Both the project token
// (URL path) and the authorization token are required for any outbound call.
func (b BloomreachConfig) Configured() bool {
	return strings.TrimSpace(b.Project) != "" && strings.TrimSpace(b.Token) != ""
}

// Timeout returns the outbound call timeout with the 3 second floor applied.
func (b BloomreachConfig) Timeout() time.Duration {
	secs := b.TimeoutSeconds
	if secs < 3 {
		secs = 3
	}
	return time.Duration(secs) * time.Second
}

// ConsentCacheTTL returns the consent cache TTL with the 1 minute floor applied.
func (b BloomreachConfig) ConsentCacheTTL() time.Duration {
	mins := b.ConsentCacheMinutes
	if mins < 1 {
		mins = 1
	}
	return time.Duration(mins) * time.Minute
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// QueueConfig holds delay-queue settings for the deferred runner.
type QueueConfig struct {
	Key                string `mapstructure:"key"`
	SubmitDelaySeconds int    `mapstructure:"submit_delay_seconds"`
	PollIntervalMillis int    `mapstructure:"poll_interval_ms"`
}

// SubmitDelay returns the enqueue delay with the 30 second floor applied, so
// the form's user-facing response is never held up by outbound calls.
func (q QueueConfig) SubmitDelay() time.Duration {
	secs := q.SubmitDelaySeconds
	if secs < 30 {
		secs = 30
	}
	return time.Duration(secs) * time.Second
}

func (q QueueConfig) PollInterval() time.Duration {
	ms := q.PollIntervalMillis
	if ms <= 0 {
		ms = 1000
	}
	return time.Duration(ms) * time.Millisecond
}

// LoggingConfig holds logging settings. Level "debug" enables the verbose
// redacted per-call diagnostics; they are suppressed at "info" and above.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// FormRow is one raw mapping row as persisted in the settings file. Field
// translations come either as a structured Fields map or as a flat Map spec
// of "source=dest" pairs separated by commas or newlines; when both are set,
// flat pairs overlay structured ones.
type FormRow struct {
	FormID     int               `mapstructure:"form_id"`
	EventType  string            `mapstructure:"event_type"`
	ConsentKey string            `mapstructure:"consent_key"`
	EmailField string            `mapstructure:"email_field"`
	Fields     map[string]string `mapstructure:"fields"`
	Map        string            `mapstructure:"map"`
}
