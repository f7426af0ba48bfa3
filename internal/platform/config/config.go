package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Feed backends.
const (
	BackendMemory    = "memory"
	BackendRTDB      = "rtdb"
	BackendFirestore = "firestore"
)

// Config holds runtime configuration loaded from environment variables and an
// optional YAML file named by CONFIG_FILE.
type Config struct {
	Port    string
	GinMode string

	FeedBackend         string
	FirebaseProjectID   string
	FirebaseDatabaseURL string
	FirebaseCredsBase64 string
	FirebaseCredsFile   string
	FeedPollInterval    time.Duration

	StatusPath        string
	HistoryPath       string
	HistoryLimit      int
	AlertsPath        string
	GateEventsPath    string
	ComplaintsPath    string
	NotificationsPath string
	IncidentsPath     string
	SafetyMetricsPath string
	ApproachFlagPath  string

	Timezone          string
	LabelsFile        string
	CountdownInterval time.Duration
	RepublishSchedule string

	MaintainerEmail      string
	MaintainerWebhookURL string
	// Signs webhook bodies when set.
	MaintainerWebhookSecret string

	EmailJSServiceID   string
	EmailJSTemplateID  string
	EmailJSUserID      string
	EmailJSAccessToken string
	EmailJSEndpoint    string
	EmailJSMock        bool

	AllowedOrigins string
	StopID         string
	SeedSampleData bool
}

var defaults = map[string]any{
	"PORT":                "8080",
	"GIN_MODE":            "release",
	"FEED_BACKEND":        BackendMemory,
	"FEED_POLL_INTERVAL":  "2s",
	"STATUS_PATH":         "RailwayGate/current",
	"HISTORY_PATH":        "RailwayGate/history",
	"HISTORY_LIMIT":       20,
	"ALERTS_PATH":         "alerts",
	"GATE_EVENTS_PATH":    "gate_events",
	"COMPLAINTS_PATH":     "complaints",
	"NOTIFICATIONS_PATH":  "maintainer_notifications",
	"INCIDENTS_PATH":      "incidents",
	"SAFETY_METRICS_PATH": "safety_metrics",
	"APPROACH_FLAG_PATH":  "train_approaching",
	"COUNTDOWN_INTERVAL":  "1s",
	"REPUBLISH_SCHEDULE":  "@every 1m",
	"MAINTAINER_EMAIL":    "maintainer@railsafety.local",
	"GTFS_STOP_ID":        "crossing",
}

// Load reads configuration with sensible defaults. Environment variables win over
// the config file.
func Load() (Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.AutomaticEnv()

	if file := strings.TrimSpace(os.Getenv("CONFIG_FILE")); file != "" {
		v.SetConfigFile(file)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	str := func(key string) string { return strings.TrimSpace(v.GetString(key)) }

	cfg := Config{
		Port:                 str("PORT"),
		GinMode:              str("GIN_MODE"),
		FeedBackend:          strings.ToLower(str("FEED_BACKEND")),
		FirebaseProjectID:    str("FIREBASE_PROJECT_ID"),
		FirebaseDatabaseURL:  str("FIREBASE_DATABASE_URL"),
		FirebaseCredsBase64:  str("FIREBASE_CREDS_BASE64"),
		FirebaseCredsFile:    str("FIREBASE_CREDS_FILE"),
		StatusPath:           str("STATUS_PATH"),
		HistoryPath:          str("HISTORY_PATH"),
		AlertsPath:           str("ALERTS_PATH"),
		GateEventsPath:       str("GATE_EVENTS_PATH"),
		ComplaintsPath:       str("COMPLAINTS_PATH"),
		NotificationsPath:    str("NOTIFICATIONS_PATH"),
		IncidentsPath:        str("INCIDENTS_PATH"),
		SafetyMetricsPath:    str("SAFETY_METRICS_PATH"),
		ApproachFlagPath:     str("APPROACH_FLAG_PATH"),
		Timezone:             str("TIMEZONE"),
		LabelsFile:           str("LABELS_FILE"),
		RepublishSchedule:    str("REPUBLISH_SCHEDULE"),
		MaintainerEmail:      str("MAINTAINER_EMAIL"),
		MaintainerWebhookURL: str("MAINTAINER_WEBHOOK_URL"),
		EmailJSServiceID:     str("EMAILJS_SERVICE_ID"),
		EmailJSTemplateID:    str("EMAILJS_TEMPLATE_ID"),
		EmailJSUserID:        str("EMAILJS_USER_ID"),
		EmailJSEndpoint:      str("EMAILJS_ENDPOINT"),
		AllowedOrigins:       str("ALLOWED_ORIGINS"),
		StopID:               str("GTFS_STOP_ID"),
	}

	limit, err := strconv.Atoi(str("HISTORY_LIMIT"))
	if err != nil {
		return Config{}, fmt.Errorf("parse HISTORY_LIMIT: %w", err)
	}
	cfg.HistoryLimit = limit

	if cfg.FeedPollInterval, err = time.ParseDuration(str("FEED_POLL_INTERVAL")); err != nil {
		return Config{}, fmt.Errorf("parse FEED_POLL_INTERVAL: %w", err)
	}
	if cfg.CountdownInterval, err = time.ParseDuration(str("COUNTDOWN_INTERVAL")); err != nil {
		return Config{}, fmt.Errorf("parse COUNTDOWN_INTERVAL: %w", err)
	}

	mock, err := parseBool(str("EMAILJS_MOCK"), false)
	if err != nil {
		return Config{}, fmt.Errorf("parse EMAILJS_MOCK: %w", err)
	}
	cfg.EmailJSMock = mock

	seed, err := parseBool(str("SEED_SAMPLE_DATA"), false)
	if err != nil {
		return Config{}, fmt.Errorf("parse SEED_SAMPLE_DATA: %w", err)
	}
	cfg.SeedSampleData = seed

	token, err := secret(v, "EMAILJS_ACCESS_TOKEN")
	if err != nil {
		return Config{}, err
	}
	cfg.EmailJSAccessToken = token

	hookSecret, err := secret(v, "MAINTAINER_WEBHOOK_SECRET")
	if err != nil {
		return Config{}, err
	}
	cfg.MaintainerWebhookSecret = hookSecret

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate ensures required fields are present for the selected backend and relays.
func (c Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.HistoryLimit <= 0 {
		return errors.New("HISTORY_LIMIT must be positive")
	}
	if c.CountdownInterval <= 0 {
		return errors.New("COUNTDOWN_INTERVAL must be positive")
	}
	switch c.FeedBackend {
	case BackendMemory:
	case BackendRTDB:
		if c.FirebaseDatabaseURL == "" {
			return errors.New("FIREBASE_DATABASE_URL is required for the rtdb backend")
		}
		if c.FeedPollInterval <= 0 {
			return errors.New("FEED_POLL_INTERVAL must be positive")
		}
		if !c.hasCredentials() {
			return errors.New("provide FIREBASE_CREDS_BASE64 or FIREBASE_CREDS_FILE for Realtime Database auth")
		}
	case BackendFirestore:
		if c.FirebaseProjectID == "" {
			return errors.New("FIREBASE_PROJECT_ID is required for the firestore backend")
		}
		if !c.hasCredentials() {
			return errors.New("provide FIREBASE_CREDS_BASE64 or FIREBASE_CREDS_FILE for Firestore auth")
		}
		// single records must land on documents, which sit at even depths
		for key, p := range map[string]string{"STATUS_PATH": c.StatusPath, "APPROACH_FLAG_PATH": c.ApproachFlagPath} {
			if depth(p)%2 != 0 {
				return fmt.Errorf("%s %q must name a document (even number of segments) for the firestore backend", key, p)
			}
		}
	default:
		return fmt.Errorf("unknown FEED_BACKEND %q", c.FeedBackend)
	}
	if c.EmailJSEnabled() && !c.EmailJSMock {
		if c.EmailJSServiceID == "" || c.EmailJSTemplateID == "" || c.EmailJSUserID == "" {
			return errors.New("EMAILJS_SERVICE_ID, EMAILJS_TEMPLATE_ID and EMAILJS_USER_ID are required unless EMAILJS_MOCK is set")
		}
	}
	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			return fmt.Errorf("load TIMEZONE: %w", err)
		}
	}
	return nil
}

func depth(path string) int {
	return len(strings.FieldsFunc(path, func(r rune) bool { return r == '/' }))
}

// EmailJSEnabled reports whether any EmailJS setting was provided.
func (c Config) EmailJSEnabled() bool {
	return c.EmailJSMock || c.EmailJSServiceID != "" || c.EmailJSTemplateID != "" || c.EmailJSUserID != ""
}

// Location resolves TIMEZONE, falling back to the host zone.
func (c Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func (c Config) hasCredentials() bool {
	return c.FirebaseCredsBase64 != "" || c.FirebaseCredsFile != ""
}

// FirebaseCredentialsJSON returns the service account JSON bytes and the source used.
func (c Config) FirebaseCredentialsJSON() ([]byte, string, error) {
	if c.FirebaseCredsBase64 != "" {
		decoded, err := base64.StdEncoding.DecodeString(c.FirebaseCredsBase64)
		if err != nil {
			return nil, "base64", fmt.Errorf("decode FIREBASE_CREDS_BASE64: %w", err)
		}
		return decoded, "base64", nil
	}
	if c.FirebaseCredsFile != "" {
		data, err := os.ReadFile(c.FirebaseCredsFile)
		if err != nil {
			return nil, "file", fmt.Errorf("read FIREBASE_CREDS_FILE: %w", err)
		}
		return data, "file", nil
	}
	return nil, "", errors.New("no firebase credentials found")
}

// secret reads KEY, or the contents of the file named by KEY_FILE.
func secret(v *viper.Viper, key string) (string, error) {
	if val := strings.TrimSpace(v.GetString(key)); val != "" {
		return val, nil
	}
	file := strings.TrimSpace(v.GetString(key + "_FILE"))
	if file == "" {
		return "", nil
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return "", fmt.Errorf("read %s_FILE: %w", key, err)
	}
	return strings.TrimSpace(string(data)), nil
}

func parseBool(val string, defaultVal bool) (bool, error) {
	if val == "" {
		return defaultVal, nil
	}
	return strconv.ParseBool(val)
}
