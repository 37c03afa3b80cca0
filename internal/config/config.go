package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix = "FACEOFF"

	defaultHTTPAddress          = "127.0.0.1:8090"
	defaultDatabasePath         = "faceoff.db"
	defaultLogLevel             = "info"
	defaultTimezone             = "America/Toronto"
	defaultLookaheadDays        = 7
	defaultReminderLeadHours    = 24
	defaultChangeMinDeltaMins   = 15
	defaultReconcileEveryHours  = 24
	defaultRemindEveryMinutes   = 60
	defaultChangeCheckEveryMins = 120
)

// AppConfig captures runtime configuration for the reconciliation bot. It is
// constructed once at startup and passed into each component; nothing reads
// viper after Load.
type AppConfig struct {
	DiscordToken string
	ChannelID    string

	// ICSURLs and TeamNames are parallel: one tracked event source per
	// calendar URL, labeled with the matching team name.
	ICSURLs   []string
	TeamNames []string

	Timezone     string
	DatabasePath string
	HTTPAddress  string
	LogLevel     string

	LookaheadDays  int
	ReminderLead   time.Duration
	ChangeMinDelta time.Duration

	ReconcileInterval   time.Duration
	ReminderInterval    time.Duration
	ChangeCheckInterval time.Duration
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("calendar.timezone", defaultTimezone)
	configViper.SetDefault("scheduler.lookahead_days", defaultLookaheadDays)
	configViper.SetDefault("scheduler.reminder_lead_hours", defaultReminderLeadHours)
	configViper.SetDefault("scheduler.change_min_delta_minutes", defaultChangeMinDeltaMins)
	configViper.SetDefault("scheduler.reconcile_interval_hours", defaultReconcileEveryHours)
	configViper.SetDefault("scheduler.reminder_interval_minutes", defaultRemindEveryMinutes)
	configViper.SetDefault("scheduler.change_interval_minutes", defaultChangeCheckEveryMins)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		DiscordToken:        configViper.GetString("discord.token"),
		ChannelID:           configViper.GetString("discord.channel_id"),
		ICSURLs:             splitList(configViper.GetString("calendar.ics_urls")),
		TeamNames:           splitList(configViper.GetString("calendar.team_names")),
		Timezone:            configViper.GetString("calendar.timezone"),
		DatabasePath:        configViper.GetString("database.path"),
		HTTPAddress:         configViper.GetString("http.address"),
		LogLevel:            configViper.GetString("log.level"),
		LookaheadDays:       configViper.GetInt("scheduler.lookahead_days"),
		ReminderLead:        time.Duration(configViper.GetInt("scheduler.reminder_lead_hours")) * time.Hour,
		ChangeMinDelta:      time.Duration(configViper.GetInt("scheduler.change_min_delta_minutes")) * time.Minute,
		ReconcileInterval:   time.Duration(configViper.GetInt("scheduler.reconcile_interval_hours")) * time.Hour,
		ReminderInterval:    time.Duration(configViper.GetInt("scheduler.reminder_interval_minutes")) * time.Minute,
		ChangeCheckInterval: time.Duration(configViper.GetInt("scheduler.change_interval_minutes")) * time.Minute,
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

// splitList parses a comma-separated value into trimmed non-empty entries.
func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}
	return out
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.DiscordToken) == "" {
		return fmt.Errorf("discord.token is required")
	}
	if strings.TrimSpace(c.ChannelID) == "" {
		return fmt.Errorf("discord.channel_id is required")
	}
	if len(c.ICSURLs) == 0 {
		return fmt.Errorf("calendar.ics_urls is required")
	}
	if len(c.TeamNames) > len(c.ICSURLs) {
		return fmt.Errorf("calendar.team_names lists %d names for %d feeds", len(c.TeamNames), len(c.ICSURLs))
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("calendar.timezone %q: %w", c.Timezone, err)
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.LookaheadDays < 0 {
		return fmt.Errorf("scheduler.lookahead_days must not be negative")
	}
	if c.ReminderLead <= 0 {
		return fmt.Errorf("scheduler.reminder_lead_hours must be positive")
	}
	if c.ChangeMinDelta <= 0 {
		return fmt.Errorf("scheduler.change_min_delta_minutes must be positive")
	}
	return nil
}

// Location resolves the configured display timezone. validate has already
// checked the name, so failures here only occur on an unvalidated config.
func (c AppConfig) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// TeamName returns the label for the i-th tracked feed, falling back to a
// positional name when fewer names than feeds were configured.
func (c AppConfig) TeamName(i int) string {
	if i < len(c.TeamNames) {
		return c.TeamNames[i]
	}
	return fmt.Sprintf("Team %d", i+1)
}
