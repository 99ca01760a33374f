package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"courtbot/pkg/navigator"
)

const minimalYAML = `
surface:
  url: https://club.example.com/day
  selectors:
    dateLabel: ".date"
    nextButton: ".next"
    previousButton: ".prev"
    slotCandidate: ".open"
    unavailableIndicator: ".booked"
navigation:
  strategy: blind
  stepPause: 50ms
booking:
  attempts: 3
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "courtbot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesFileOverDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML))
	require.NoError(t, err)
	require.Equal(t, "https://club.example.com/day", cfg.Surface.URL)
	require.Equal(t, string(navigator.StrategyBlind), cfg.Navigation.Strategy)
	require.Equal(t, 50*time.Millisecond, cfg.Navigation.StepPause)
	require.Equal(t, 3, cfg.Booking.Attempts)
	// untouched defaults survive
	require.Equal(t, 90, cfg.Navigation.MaxAttempts)
	require.Equal(t, ":8080", cfg.Web.Address)
	require.Contains(t, cfg.Booking.ConfirmLabels, "Complete Reservation")
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, minimalYAML)
	t.Setenv("COURTBOT_BOOKING_ATTEMPTS", "5")
	t.Setenv("COURTBOT_NAVIGATION_STRATEGY", "directed")
	t.Setenv("COURTBOT_HEADLESS", "false")
	t.Setenv("COURTBOT_VALKEY_ADDR", "localhost:6379")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 5, cfg.Booking.Attempts)
	require.Equal(t, string(navigator.StrategyDirected), cfg.Navigation.Strategy)
	require.False(t, cfg.Surface.Headless)
	require.Equal(t, "localhost:6379", cfg.Alerts.Addr)
}

func TestLoadUsesEnvPath(t *testing.T) {
	t.Setenv("COURTBOT_CONFIG", writeConfig(t, minimalYAML))
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 3, cfg.Booking.Attempts)
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"missing url":      "navigation:\n  strategy: directed\n",
		"bad strategy":     strings.Replace(minimalYAML, "strategy: blind", "strategy: sideways", 1),
		"unknown zone":     strings.Replace(minimalYAML, "  selectors:", "  timeZone: Mars/Olympus\n  selectors:", 1),
		"bucket endpoint":  minimalYAML + "diagnostics:\n  bucket: shots\n",
		"capacity too low": minimalYAML + "chat:\n  playersNeeded: 6\n  capacity: 4\n",
		"zero attempts":    strings.Replace(minimalYAML, "attempts: 3", "attempts: 0", 1),
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			require.Error(t, err)
		})
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.ErrorContains(t, err, "read config file")
}

func TestDerivedConfigs(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML))
	require.NoError(t, err)
	require.Equal(t, navigator.StrategyBlind, cfg.NavigatorConfig().Strategy)
	require.Equal(t, 3, cfg.BookingConfig().Attempts)
	require.Equal(t, ".date", cfg.ChromeConfig().Selectors.DateLabel)
	require.Equal(t, time.Local, cfg.Location())
}

func TestClockUsesSiteZone(t *testing.T) {
	cfg, err := Load(writeConfig(t, strings.Replace(minimalYAML, "surface:\n", "surface:\n  timeZone: UTC\n", 1)))
	require.NoError(t, err)
	require.Equal(t, "UTC", cfg.Location().String())
	require.Equal(t, cfg.Location(), cfg.Clock()().Location())
}
