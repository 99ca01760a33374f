// Package navigator steps the remote day view to a target date using only relative
// forward/backward commands.
package navigator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"courtbot/pkg/log"
	"courtbot/pkg/surface"
	"courtbot/pkg/timeparse"
	"go.uber.org/zap"
)

type Strategy string

const (
	StrategyBlind    Strategy = "blind"
	StrategyDirected Strategy = "directed"

	defaultMaxAttempts = 90
	defaultBatchSize   = 7
	// consecutive step failures that end the directed loop
	stepFailureLimit = 2
)

var (
	ErrAttemptsExhausted = errors.New("navigation attempt budget exhausted")
	ErrStepsFailing      = errors.New("navigation step failed twice in a row")
)

type Config struct {
	Strategy    Strategy
	MaxAttempts int
	// StepPause follows every step; BatchPause additionally follows every BatchSize steps
	// of blind stepping.
	StepPause  time.Duration
	BatchPause time.Duration
	BatchSize  int
}

// Result describes where navigation ended. Arrived means the driver believes the target is
// showing; Verified means the read-back text confirmed it. Reason is set when Arrived is false.
type Result struct {
	Strategy    Strategy
	Arrived     bool
	Verified    bool
	Steps       int
	Attempts    int
	LastReading string
	Reason      error
}

type Driver struct {
	config Config
	now    func() time.Time
}

func New(config Config, now func() time.Time) *Driver {
	if config.Strategy == "" {
		config.Strategy = StrategyDirected
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = defaultMaxAttempts
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaultBatchSize
	}
	if now == nil {
		now = time.Now
	}
	return &Driver{config: config, now: now}
}

func (d *Driver) Strategy() Strategy { return d.config.Strategy }

// NavigateTo moves nav to target. Failing to arrive is reported in Result, not as an error;
// the error return is reserved for a lost session or a cancelled context.
func (d *Driver) NavigateTo(ctx context.Context, nav surface.Navigator, target timeparse.TargetDate) (Result, error) {
	log.L().Info("navigate_start",
		zap.String("strategy", string(d.config.Strategy)),
		zap.String("target", describe(target)))
	if d.config.Strategy == StrategyBlind {
		return d.navigateBlind(ctx, nav, target)
	}
	return d.navigateDirected(ctx, nav, target)
}

func (d *Driver) navigateBlind(ctx context.Context, nav surface.Navigator, target timeparse.TargetDate) (Result, error) {
	result := Result{Strategy: StrategyBlind}
	dayDifference := timeparse.DaysUntil(d.now(), target)
	if dayDifference <= 0 {
		result.Arrived = true
		result.Verified = true
		log.L().Info("navigate_no_steps_needed", zap.Int("day_difference", dayDifference))
		return result, nil
	}

	for stepIndex := 1; stepIndex <= dayDifference; stepIndex++ {
		if stepError := nav.StepForward(ctx); stepError != nil {
			return result, fmt.Errorf("blind step %d of %d: %w", stepIndex, dayDifference, stepError)
		}
		result.Steps++
		if pauseError := pause(ctx, d.config.StepPause); pauseError != nil {
			return result, pauseError
		}
		if stepIndex%d.config.BatchSize == 0 {
			if pauseError := pause(ctx, d.config.BatchPause); pauseError != nil {
				return result, pauseError
			}
		}
	}

	result.Arrived = true
	reading, readError := nav.CurrentDateText(ctx)
	if readError != nil {
		log.L().Warn("navigate_readback_failed", zap.Error(readError))
		return result, nil
	}
	result.LastReading = reading
	result.Verified = MatchesTarget(reading, target)
	if !result.Verified {
		log.L().Warn("navigate_readback_mismatch",
			zap.String("displayed", reading),
			zap.String("target", describe(target)),
			zap.Int("steps", result.Steps))
	}
	return result, nil
}

func (d *Driver) navigateDirected(ctx context.Context, nav surface.Navigator, target timeparse.TargetDate) (Result, error) {
	result := Result{Strategy: StrategyDirected}
	consecutiveStepFailures := 0

	for attempt := 1; attempt <= d.config.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		result.Attempts = attempt

		reading, readError := nav.CurrentDateText(ctx)
		if readError != nil {
			if errors.Is(readError, surface.ErrSessionClosed) {
				return result, readError
			}
			log.L().Warn("navigate_read_failed", zap.Int("attempt", attempt), zap.Error(readError))
			reading = ""
		}
		result.LastReading = reading

		if reading != "" && MatchesTarget(reading, target) {
			result.Arrived = true
			result.Verified = true
			log.L().Info("navigate_arrived", zap.Int("attempt", attempt), zap.Int("steps", result.Steps), zap.String("displayed", reading))
			return result, nil
		}

		displayed, parsed := ParseDisplayedDate(reading, target)
		stepForward := !parsed || displayed.Before(target)
		var stepError error
		if stepForward {
			stepError = nav.StepForward(ctx)
		} else {
			stepError = nav.StepBackward(ctx)
		}
		if stepError != nil {
			if errors.Is(stepError, surface.ErrSessionClosed) {
				return result, stepError
			}
			consecutiveStepFailures++
			log.L().Warn("navigate_step_failed",
				zap.Int("attempt", attempt),
				zap.Bool("forward", stepForward),
				zap.Int("consecutive_failures", consecutiveStepFailures),
				zap.Error(stepError))
			if consecutiveStepFailures >= stepFailureLimit {
				result.Reason = fmt.Errorf("%w: %v", ErrStepsFailing, stepError)
				return result, nil
			}
			continue
		}
		consecutiveStepFailures = 0
		result.Steps++
		log.L().Debug("navigate_step",
			zap.Int("attempt", attempt),
			zap.Bool("forward", stepForward),
			zap.String("displayed", reading),
			zap.Bool("parsed", parsed))
		if pauseError := pause(ctx, d.config.StepPause); pauseError != nil {
			return result, pauseError
		}
	}

	result.Reason = fmt.Errorf("%w after %d attempts, last displayed %q", ErrAttemptsExhausted, result.Attempts, result.LastReading)
	log.L().Warn("navigate_exhausted", zap.Int("attempts", result.Attempts), zap.String("displayed", result.LastReading))
	return result, nil
}

func pause(ctx context.Context, duration time.Duration) error {
	if duration <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(duration)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
