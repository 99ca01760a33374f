package navigator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"courtbot/pkg/log"
	"courtbot/pkg/surface"
	"courtbot/pkg/surface/surfacetest"
	"courtbot/pkg/timeparse"
)

func useTestLogger(t *testing.T) {
	t.Helper()
	t.Cleanup(log.Replace(zaptest.NewLogger(t)))
}

var (
	referenceNow = time.Date(2026, time.February, 10, 18, 0, 0, 0, time.UTC)
	targetDate   = timeparse.TargetDate{Year: 2026, Month: time.February, Day: 24}
)

func fixedNow() time.Time { return referenceNow }

func TestDirectedStepsForwardUntilArrival(t *testing.T) {
	useTestLogger(t)
	calendar := surfacetest.NewCalendar(referenceNow)
	driver := New(Config{Strategy: StrategyDirected}, fixedNow)

	result, err := driver.NavigateTo(context.Background(), calendar, targetDate)
	require.NoError(t, err)
	require.True(t, result.Arrived)
	require.True(t, result.Verified)
	require.Equal(t, 14, result.Steps)
	require.Equal(t, 14, calendar.Forward)
	require.Zero(t, calendar.Backward)
}

func TestDirectedStepsBackwardWhenPastTarget(t *testing.T) {
	useTestLogger(t)
	calendar := surfacetest.NewCalendar(time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC))
	calendar.Layout = "Mon, Jan 2, 2006"
	driver := New(Config{}, fixedNow)

	result, err := driver.NavigateTo(context.Background(), calendar, targetDate)
	require.NoError(t, err)
	require.True(t, result.Arrived)
	require.Equal(t, 6, calendar.Backward)
	require.Zero(t, calendar.Forward)
}

func TestDirectedCrossesNewYearWithYearlessToolbar(t *testing.T) {
	useTestLogger(t)
	december := time.Date(2026, time.December, 28, 9, 0, 0, 0, time.UTC)
	calendar := surfacetest.NewCalendar(december)
	calendar.Layout = "Mon, Jan 2"
	driver := New(Config{MaxAttempts: 20}, func() time.Time { return december })

	result, err := driver.NavigateTo(context.Background(), calendar, timeparse.TargetDate{Year: 2027, Month: time.January, Day: 2})
	require.NoError(t, err)
	require.True(t, result.Arrived)
	require.Equal(t, 5, calendar.Forward)
	require.Zero(t, calendar.Backward)

	january := surfacetest.NewCalendar(time.Date(2027, time.January, 3, 0, 0, 0, 0, time.UTC))
	january.Layout = "Mon, Jan 2"
	result, err = driver.NavigateTo(context.Background(), january, timeparse.TargetDate{Year: 2026, Month: time.December, Day: 30})
	require.NoError(t, err)
	require.True(t, result.Arrived)
	require.Equal(t, 4, january.Backward)
	require.Zero(t, january.Forward)
}

func TestDirectedUnparseableReadingStepsForward(t *testing.T) {
	useTestLogger(t)
	calendar := surfacetest.NewCalendar(referenceNow)
	calendar.Readings = []string{"Loading…", "Loading…", "Tuesday, February 24, 2026"}
	driver := New(Config{}, fixedNow)

	result, err := driver.NavigateTo(context.Background(), calendar, targetDate)
	require.NoError(t, err)
	require.True(t, result.Arrived)
	require.Equal(t, 2, calendar.Forward)
}

func TestDirectedTerminatesWhenTargetNeverShows(t *testing.T) {
	useTestLogger(t)
	calendar := surfacetest.NewCalendar(referenceNow)
	calendar.Frozen = true
	driver := New(Config{MaxAttempts: 90}, fixedNow)

	result, err := driver.NavigateTo(context.Background(), calendar, targetDate)
	require.NoError(t, err)
	require.False(t, result.Arrived)
	require.Equal(t, 90, result.Attempts)
	require.ErrorIs(t, result.Reason, ErrAttemptsExhausted)
	require.Equal(t, 90, calendar.Forward)
}

func TestDirectedAbortsAfterTwoConsecutiveStepFailures(t *testing.T) {
	useTestLogger(t)
	calendar := surfacetest.NewCalendar(referenceNow)
	flaky := errors.New("next button missing")
	calendar.StepErrors = []error{nil, flaky, nil, flaky, flaky}
	driver := New(Config{}, fixedNow)

	result, err := driver.NavigateTo(context.Background(), calendar, targetDate)
	require.NoError(t, err)
	require.False(t, result.Arrived)
	require.ErrorIs(t, result.Reason, ErrStepsFailing)
	require.Equal(t, 2, result.Steps)
}

func TestDirectedPropagatesLostSession(t *testing.T) {
	useTestLogger(t)
	calendar := surfacetest.NewCalendar(referenceNow)
	calendar.ReadError = surface.ErrSessionClosed
	driver := New(Config{}, fixedNow)

	_, err := driver.NavigateTo(context.Background(), calendar, targetDate)
	require.ErrorIs(t, err, surface.ErrSessionClosed)
}

func TestBlindStepsDayDifference(t *testing.T) {
	useTestLogger(t)
	calendar := surfacetest.NewCalendar(referenceNow)
	driver := New(Config{Strategy: StrategyBlind}, fixedNow)

	result, err := driver.NavigateTo(context.Background(), calendar, targetDate)
	require.NoError(t, err)
	require.True(t, result.Arrived)
	require.True(t, result.Verified)
	require.Equal(t, 14, result.Steps)
}

func TestBlindMismatchIsBestEffort(t *testing.T) {
	useTestLogger(t)
	calendar := surfacetest.NewCalendar(referenceNow)
	calendar.Frozen = true
	driver := New(Config{Strategy: StrategyBlind}, fixedNow)

	result, err := driver.NavigateTo(context.Background(), calendar, targetDate)
	require.NoError(t, err)
	require.True(t, result.Arrived)
	require.False(t, result.Verified)
	require.Equal(t, 14, calendar.Forward)
}

func TestBlindPastOrTodayNeedsNoSteps(t *testing.T) {
	useTestLogger(t)
	calendar := surfacetest.NewCalendar(referenceNow)
	driver := New(Config{Strategy: StrategyBlind}, fixedNow)

	for _, target := range []timeparse.TargetDate{
		{Year: 2026, Month: time.February, Day: 10},
		{Year: 2026, Month: time.January, Day: 3},
	} {
		result, err := driver.NavigateTo(context.Background(), calendar, target)
		require.NoError(t, err)
		require.True(t, result.Arrived)
		require.Zero(t, result.Steps)
	}
	require.Zero(t, calendar.Forward)
}

func TestBlindStepFailureIsAnError(t *testing.T) {
	useTestLogger(t)
	calendar := surfacetest.NewCalendar(referenceNow)
	calendar.StepErrors = []error{nil, errors.New("detached")}
	driver := New(Config{Strategy: StrategyBlind}, fixedNow)

	result, err := driver.NavigateTo(context.Background(), calendar, targetDate)
	require.Error(t, err)
	require.Equal(t, 1, result.Steps)
}
