// Package config loads courtbot settings: defaults, then a YAML file, then COURTBOT_*
// environment overrides, then validation.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"courtbot/pkg/booking"
	"courtbot/pkg/diagnostics"
	"courtbot/pkg/navigator"
	"courtbot/pkg/surface"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPathLiteral = "configs/courtbot.yaml"
	pathEnvLiteral     = "COURTBOT_CONFIG"
)

type Config struct {
	Surface     SurfaceConfig     `yaml:"surface"`
	Navigation  NavigationConfig  `yaml:"navigation"`
	Booking     BookingConfig     `yaml:"booking"`
	Diagnostics DiagnosticsConfig `yaml:"diagnostics"`
	Store       StoreConfig       `yaml:"store"`
	Alerts      AlertsConfig      `yaml:"alerts"`
	Chat        ChatConfig        `yaml:"chat"`
	Web         WebConfig         `yaml:"web"`
	Log         LogConfig         `yaml:"log"`
}

// SurfaceConfig describes the remote scheduling site and how to drive Chrome against it.
type SurfaceConfig struct {
	URL          string            `yaml:"url"`
	LoginURL     string            `yaml:"loginUrl"`
	Username     string            `yaml:"username"`
	Password     string            `yaml:"password"`
	ChromePath   string            `yaml:"chromePath"`
	Headless     bool              `yaml:"headless"`
	UserDataDir  string            `yaml:"userDataDir"`
	TimeZone     string            `yaml:"timeZone"`
	OpenTimeout  time.Duration     `yaml:"openTimeout"`
	StepTimeout  time.Duration     `yaml:"stepTimeout"`
	StepSettle   time.Duration     `yaml:"stepSettle"`
	RevealSettle time.Duration     `yaml:"revealSettle"`
	ClickSettle  time.Duration     `yaml:"clickSettle"`
	Selectors    surface.Selectors `yaml:"selectors"`
}

type NavigationConfig struct {
	Strategy    string        `yaml:"strategy"`
	MaxAttempts int           `yaml:"maxAttempts"`
	StepPause   time.Duration `yaml:"stepPause"`
	BatchPause  time.Duration `yaml:"batchPause"`
	BatchSize   int           `yaml:"batchSize"`
}

type BookingConfig struct {
	Attempts         int           `yaml:"attempts"`
	ConfirmSettle    time.Duration `yaml:"confirmSettle"`
	VerifySettle     time.Duration `yaml:"verifySettle"`
	ConfirmLabels    []string      `yaml:"confirmLabels"`
	AffirmativeWords []string      `yaml:"affirmativeWords"`
}

// DiagnosticsConfig picks where screenshots go: an S3-compatible bucket when Bucket is set,
// otherwise Dir.
type DiagnosticsConfig struct {
	Dir       string `yaml:"dir"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Prefix    string `yaml:"prefix"`
}

type StoreConfig struct {
	Path string `yaml:"path"`
}

// AlertsConfig selects the valkey-backed alerted set when Addr is set.
type AlertsConfig struct {
	Addr string `yaml:"addr"`
	Key  string `yaml:"key"`
}

type ChatConfig struct {
	Group         string `yaml:"group"`
	PlayersNeeded int    `yaml:"playersNeeded"`
	Capacity      int    `yaml:"capacity"`
	DefaultCourt  string `yaml:"defaultCourt"`
}

type WebConfig struct {
	Address string `yaml:"address"`
}

type LogConfig struct {
	Production bool `yaml:"production"`
}

// Load builds the configuration. An explicit path must exist; without one, COURTBOT_CONFIG
// and then the default path are tried.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path == "" {
		path = os.Getenv(pathEnvLiteral)
	}
	if path != "" {
		if err := hydrateFromFile(cfg, path); err != nil {
			return nil, err
		}
	} else if _, err := os.Stat(DefaultPathLiteral); err == nil {
		if err := hydrateFromFile(cfg, DefaultPathLiteral); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func hydrateFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("COURTBOT_SURFACE_URL"); v != "" {
		cfg.Surface.URL = v
	}
	if v := os.Getenv("COURTBOT_SURFACE_LOGIN_URL"); v != "" {
		cfg.Surface.LoginURL = v
	}
	if v := os.Getenv("COURTBOT_SURFACE_USERNAME"); v != "" {
		cfg.Surface.Username = v
	}
	if v := os.Getenv("COURTBOT_SURFACE_PASSWORD"); v != "" {
		cfg.Surface.Password = v
	}
	if v := os.Getenv("COURTBOT_CHROME_PATH"); v != "" {
		cfg.Surface.ChromePath = v
	}
	if v := os.Getenv("COURTBOT_HEADLESS"); v != "" {
		cfg.Surface.Headless = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("COURTBOT_TIME_ZONE"); v != "" {
		cfg.Surface.TimeZone = v
	}
	if v := os.Getenv("COURTBOT_NAVIGATION_STRATEGY"); v != "" {
		cfg.Navigation.Strategy = v
	}
	if v := os.Getenv("COURTBOT_NAVIGATION_MAX_ATTEMPTS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Navigation.MaxAttempts = parsed
		}
	}
	if v := os.Getenv("COURTBOT_BOOKING_ATTEMPTS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Booking.Attempts = parsed
		}
	}
	if v := os.Getenv("COURTBOT_CONFIRM_SETTLE"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.Booking.ConfirmSettle = parsed
		}
	}
	if v := os.Getenv("COURTBOT_DIAGNOSTICS_DIR"); v != "" {
		cfg.Diagnostics.Dir = v
	}
	if v := os.Getenv("COURTBOT_DIAGNOSTICS_ENDPOINT"); v != "" {
		cfg.Diagnostics.Endpoint = v
	}
	if v := os.Getenv("COURTBOT_DIAGNOSTICS_ACCESS_KEY"); v != "" {
		cfg.Diagnostics.AccessKey = v
	}
	if v := os.Getenv("COURTBOT_DIAGNOSTICS_SECRET_KEY"); v != "" {
		cfg.Diagnostics.SecretKey = v
	}
	if v := os.Getenv("COURTBOT_DIAGNOSTICS_BUCKET"); v != "" {
		cfg.Diagnostics.Bucket = v
	}
	if v := os.Getenv("COURTBOT_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("COURTBOT_VALKEY_ADDR"); v != "" {
		cfg.Alerts.Addr = v
	}
	if v := os.Getenv("COURTBOT_PLAYERS_NEEDED"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Chat.PlayersNeeded = parsed
		}
	}
	if v := os.Getenv("COURTBOT_DEFAULT_COURT"); v != "" {
		cfg.Chat.DefaultCourt = v
	}
	if v := os.Getenv("COURTBOT_WEB_ADDRESS"); v != "" {
		cfg.Web.Address = v
	}
	if v := os.Getenv("COURTBOT_LOG_PRODUCTION"); v != "" {
		cfg.Log.Production = v == "1" || strings.EqualFold(v, "true")
	}
}

func defaultConfig() *Config {
	return &Config{
		Surface: SurfaceConfig{
			Headless:     true,
			OpenTimeout:  60 * time.Second,
			StepTimeout:  20 * time.Second,
			StepSettle:   700 * time.Millisecond,
			RevealSettle: 500 * time.Millisecond,
			ClickSettle:  1500 * time.Millisecond,
		},
		Navigation: NavigationConfig{
			Strategy:    string(navigator.StrategyDirected),
			MaxAttempts: 90,
			StepPause:   250 * time.Millisecond,
			BatchPause:  1500 * time.Millisecond,
			BatchSize:   7,
		},
		Booking: BookingConfig{
			Attempts:         2,
			ConfirmSettle:    time.Second,
			VerifySettle:     1500 * time.Millisecond,
			ConfirmLabels:    []string{"Confirm", "Submit", "Complete Reservation", "Book", "Reserve"},
			AffirmativeWords: []string{"confirm", "submit", "book", "reserve", "complete", "ok", "yes"},
		},
		Diagnostics: DiagnosticsConfig{
			Dir:    "diagnostics",
			Prefix: "courtbot",
		},
		Store: StoreConfig{Path: "courtbot.db"},
		Alerts: AlertsConfig{
			Key: "courtbot:alerted",
		},
		Chat: ChatConfig{
			PlayersNeeded: 4,
			Capacity:      4,
		},
		Web: WebConfig{Address: ":8080"},
	}
}

// Validate ensures the configuration is safe to use.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Surface.URL) == "" {
		return errors.New("surface.url cannot be empty")
	}
	selectors := c.Surface.Selectors
	if selectors.DateLabel == "" || selectors.NextButton == "" || selectors.PreviousButton == "" {
		return errors.New("surface.selectors.dateLabel, nextButton and previousButton are required")
	}
	if selectors.SlotCandidate == "" || selectors.UnavailableIndicator == "" {
		return errors.New("surface.selectors.slotCandidate and unavailableIndicator are required")
	}
	if c.Surface.LoginURL != "" && (selectors.LoginUsername == "" || selectors.LoginPassword == "") {
		return errors.New("surface.selectors.loginUsername and loginPassword are required with a login url")
	}
	if c.Surface.TimeZone != "" {
		if _, err := time.LoadLocation(c.Surface.TimeZone); err != nil {
			return fmt.Errorf("surface.timeZone: %w", err)
		}
	}
	switch navigator.Strategy(c.Navigation.Strategy) {
	case navigator.StrategyBlind, navigator.StrategyDirected:
	default:
		return fmt.Errorf("navigation.strategy must be %q or %q", navigator.StrategyBlind, navigator.StrategyDirected)
	}
	if c.Navigation.MaxAttempts <= 0 {
		return errors.New("navigation.maxAttempts must be positive")
	}
	if c.Booking.Attempts <= 0 {
		return errors.New("booking.attempts must be positive")
	}
	if c.Diagnostics.Bucket != "" && c.Diagnostics.Endpoint == "" {
		return errors.New("diagnostics.endpoint cannot be empty when a bucket is set")
	}
	if c.Diagnostics.Bucket == "" && c.Diagnostics.Dir == "" {
		return errors.New("diagnostics.dir cannot be empty without a bucket")
	}
	if strings.TrimSpace(c.Store.Path) == "" {
		return errors.New("store.path cannot be empty")
	}
	if c.Chat.PlayersNeeded <= 0 {
		return errors.New("chat.playersNeeded must be positive")
	}
	if c.Chat.Capacity < c.Chat.PlayersNeeded {
		return errors.New("chat.capacity cannot be below chat.playersNeeded")
	}
	if c.Web.Address == "" {
		return errors.New("web.address cannot be empty")
	}
	return nil
}

// Location is the zone dates are resolved in, falling back to the machine zone.
func (c *Config) Location() *time.Location {
	if c.Surface.TimeZone == "" {
		return time.Local
	}
	location, err := time.LoadLocation(c.Surface.TimeZone)
	if err != nil {
		return time.Local
	}
	return location
}

// Clock reads the current time in Location, so day arithmetic agrees with the site.
func (c *Config) Clock() func() time.Time {
	location := c.Location()
	return func() time.Time { return time.Now().In(location) }
}

func (c *Config) ChromeConfig() surface.ChromeConfig {
	return surface.ChromeConfig{
		URL:          c.Surface.URL,
		LoginURL:     c.Surface.LoginURL,
		Username:     c.Surface.Username,
		Password:     c.Surface.Password,
		ExecPath:     c.Surface.ChromePath,
		Headless:     c.Surface.Headless,
		UserDataDir:  c.Surface.UserDataDir,
		TimeZone:     c.Surface.TimeZone,
		OpenTimeout:  c.Surface.OpenTimeout,
		StepTimeout:  c.Surface.StepTimeout,
		StepSettle:   c.Surface.StepSettle,
		RevealSettle: c.Surface.RevealSettle,
		ClickSettle:  c.Surface.ClickSettle,
		Selectors:    c.Surface.Selectors,
	}
}

func (c *Config) NavigatorConfig() navigator.Config {
	return navigator.Config{
		Strategy:    navigator.Strategy(c.Navigation.Strategy),
		MaxAttempts: c.Navigation.MaxAttempts,
		StepPause:   c.Navigation.StepPause,
		BatchPause:  c.Navigation.BatchPause,
		BatchSize:   c.Navigation.BatchSize,
	}
}

func (c *Config) BookingConfig() booking.Config {
	return booking.Config{
		Attempts:         c.Booking.Attempts,
		ConfirmSettle:    c.Booking.ConfirmSettle,
		VerifySettle:     c.Booking.VerifySettle,
		ConfirmLabels:    c.Booking.ConfirmLabels,
		AffirmativeWords: c.Booking.AffirmativeWords,
		Location:         c.Location(),
	}
}

func (c *Config) S3Config() diagnostics.S3Config {
	return diagnostics.S3Config{
		Endpoint:  c.Diagnostics.Endpoint,
		AccessKey: c.Diagnostics.AccessKey,
		SecretKey: c.Diagnostics.SecretKey,
		Bucket:    c.Diagnostics.Bucket,
		Region:    c.Diagnostics.Region,
		Prefix:    c.Diagnostics.Prefix,
	}
}
