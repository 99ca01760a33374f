// Package booking drives one check or reservation against the remote scheduling surface.
package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"courtbot/pkg/diagnostics"
	"courtbot/pkg/log"
	"courtbot/pkg/matcher"
	"courtbot/pkg/navigator"
	"courtbot/pkg/surface"
	"courtbot/pkg/timeparse"
	"go.uber.org/zap"
)

const defaultAttempts = 2

var (
	defaultConfirmLabels    = []string{"Confirm", "Submit", "Complete Reservation", "Book", "Reserve"}
	defaultAffirmativeWords = []string{"confirm", "submit", "book", "reserve", "complete", "ok", "yes"}
)

type Config struct {
	// Attempts is the total number of sessions one operation may open.
	Attempts int
	// ConfirmSettle is waited after the slot click before the confirmation is looked up.
	ConfirmSettle time.Duration
	// VerifySettle is waited after the confirmation click before re-classifying.
	VerifySettle     time.Duration
	ConfirmLabels    []string
	AffirmativeWords []string
	Location         *time.Location
}

// StageFunc receives stage changes of a running operation.
type StageFunc func(stage Stage)

type Option func(*operation)

func WithStages(fn StageFunc) Option {
	return func(op *operation) { op.stages = fn }
}

// StagesOf returns the stage callback installed by options, or a no-op. It lets other
// implementations of Check and Book honour WithStages.
func StagesOf(options ...Option) StageFunc {
	op := &operation{}
	for _, option := range options {
		option(op)
	}
	if op.stages == nil {
		return func(Stage) {}
	}
	return op.stages
}

type operation struct {
	name      string
	target    timeparse.TargetDate
	timeRange timeparse.TimeRange
	data      matcher.MatchData
	resource  string
	stages    StageFunc
	handles   []diagnostics.Handle
}

func (op *operation) stage(stage Stage) {
	if op.stages != nil {
		op.stages(stage)
	}
}

func (op *operation) dateLabel() string {
	return op.target.String()
}

// Orchestrator runs at most one operation at a time because the surface has one logged-in
// account behind it.
type Orchestrator struct {
	config Config
	opener surface.Opener
	driver *navigator.Driver
	sink   diagnostics.Sink
	now    func() time.Time
	gate   chan struct{}
}

func New(config Config, opener surface.Opener, driver *navigator.Driver, sink diagnostics.Sink) *Orchestrator {
	if config.Attempts <= 0 {
		config.Attempts = defaultAttempts
	}
	if len(config.ConfirmLabels) == 0 {
		config.ConfirmLabels = defaultConfirmLabels
	}
	if len(config.AffirmativeWords) == 0 {
		config.AffirmativeWords = defaultAffirmativeWords
	}
	if config.Location == nil {
		config.Location = time.Local
	}
	if sink == nil {
		sink = diagnostics.NopSink{}
	}
	return &Orchestrator{
		config: config,
		opener: opener,
		driver: driver,
		sink:   sink,
		now:    time.Now,
		gate:   make(chan struct{}, 1),
	}
}

// Check reports whether the hour starting the requested range is bookable.
func (o *Orchestrator) Check(ctx context.Context, dateText, timeText string, options ...Option) AvailabilityOutcome {
	op, err := o.newOperation("check", dateText, timeText, "", options)
	if err != nil {
		return AvailabilityOutcome{Status: AvailabilityError, Kind: KindParse, Message: errors.Unwrap(err).Error()}
	}
	defer op.stage(StageDone)

	outcome := AvailabilityOutcome{Label: op.data.Label, Date: op.dateLabel()}
	release, err := o.acquire(ctx, op)
	if err != nil {
		outcome.Status, outcome.Kind, outcome.Message = AvailabilityError, KindSession, err.Error()
		return outcome
	}
	defer release()

	var verdict matcher.Verdict
	attempts, err := o.withRetries(ctx, op, func(ctx context.Context, session surface.Session) error {
		located, err := o.locate(ctx, session, op)
		if err != nil {
			return err
		}
		verdict = located
		if verdict.Status == matcher.StatusUnknown {
			o.capture(ctx, session, op, "slot-unknown")
		}
		return nil
	})
	outcome.Attempts = attempts
	outcome.Diagnostics = op.handles
	if err != nil {
		outcome.Status, outcome.Kind = AvailabilityError, KindOf(err)
		outcome.Message = fmt.Sprintf("Could not check %s at %s: %v", outcome.Date, outcome.Label, err)
		return outcome
	}

	outcome.Channel = verdict.Channel
	switch verdict.Status {
	case matcher.StatusAvailable:
		outcome.Status = AvailabilityAvailable
		outcome.Message = fmt.Sprintf("%s at %s is available.", outcome.Date, outcome.Label)
	case matcher.StatusUnavailable:
		outcome.Status = AvailabilityUnavailable
		outcome.Message = fmt.Sprintf("%s at %s is already booked.", outcome.Date, outcome.Label)
	default:
		outcome.Status, outcome.Kind = AvailabilityUnknown, KindClassification
		outcome.Message = fmt.Sprintf("Could not find a %s slot on %s.", outcome.Label, outcome.Date)
	}
	return outcome
}

// Book reserves the hour starting the requested range. A non-empty resource narrows the
// candidates to those naming it.
func (o *Orchestrator) Book(ctx context.Context, dateText, timeText, resource string, options ...Option) BookingOutcome {
	op, err := o.newOperation("book", dateText, timeText, resource, options)
	if err != nil {
		return BookingOutcome{Kind: KindParse, Message: errors.Unwrap(err).Error(), Err: err}
	}
	defer op.stage(StageDone)

	outcome := BookingOutcome{Label: op.data.Label, Date: op.dateLabel(), Resource: resource}
	release, err := o.acquire(ctx, op)
	if err != nil {
		outcome.Kind, outcome.Message, outcome.Err = KindSession, err.Error(), err
		return outcome
	}
	defer release()

	attempts, err := o.withRetries(ctx, op, func(ctx context.Context, session surface.Session) error {
		result, err := o.reserve(ctx, session, op)
		if err != nil {
			return err
		}
		outcome.Success = result.Success
		outcome.AlreadyBooked = result.AlreadyBooked
		outcome.Uncertain = result.Uncertain
		outcome.Verified = result.Verified
		outcome.Kind = result.Kind
		outcome.Message = result.Message
		return nil
	})
	outcome.Attempts = attempts
	outcome.Diagnostics = op.handles
	if err != nil {
		outcome.Success = false
		outcome.Kind, outcome.Err = KindOf(err), err
		outcome.Message = fmt.Sprintf("Booking %s at %s failed after %d attempt(s): %v", outcome.Date, outcome.Label, attempts, err)
	}
	return outcome
}

func (o *Orchestrator) newOperation(name, dateText, timeText, resource string, options []Option) (*operation, error) {
	target, ok := timeparse.ResolveDate(dateText, o.now().In(o.config.Location))
	if !ok {
		return nil, errorf(KindParse, "parse date", "could not read date %q. %s", dateText, timeparse.FormatHint)
	}
	timeRange, ok := timeparse.ParseTimeRange(timeText)
	if !ok {
		return nil, errorf(KindParse, "parse time", "could not read time range %q. %s", timeText, timeparse.FormatHint)
	}
	op := &operation{
		name:      name,
		target:    target,
		timeRange: timeRange,
		data:      matcher.NewMatchData(timeRange),
		resource:  resource,
	}
	for _, option := range options {
		option(op)
	}
	return op, nil
}

func (o *Orchestrator) acquire(ctx context.Context, op *operation) (func(), error) {
	select {
	case o.gate <- struct{}{}:
		return func() { <-o.gate }, nil
	default:
	}
	op.stage(StageWaiting)
	log.L().Info("operation_waiting", zap.String("operation", op.name))
	select {
	case o.gate <- struct{}{}:
		return func() { <-o.gate }, nil
	case <-ctx.Done():
		return nil, newError(KindSession, "wait for session gate", ctx.Err())
	}
}

// withRetries runs attempt against a fresh session until it succeeds, fails with an error that
// retrying cannot change, or the budget runs out. It returns the number of attempts made.
func (o *Orchestrator) withRetries(ctx context.Context, op *operation, attempt func(context.Context, surface.Session) error) (int, error) {
	var lastErr error
	for attemptNumber := 1; attemptNumber <= o.config.Attempts; attemptNumber++ {
		lastErr = o.runAttempt(ctx, op, attemptNumber, attempt)
		if lastErr == nil {
			return attemptNumber, nil
		}
		log.L().Warn("operation_attempt_failed",
			zap.String("operation", op.name),
			zap.Int("attempt", attemptNumber),
			zap.String("kind", string(KindOf(lastErr))),
			zap.Error(lastErr))
		if !Retryable(lastErr) || ctx.Err() != nil {
			return attemptNumber, lastErr
		}
	}
	return o.config.Attempts, lastErr
}

func (o *Orchestrator) runAttempt(ctx context.Context, op *operation, attemptNumber int, attempt func(context.Context, surface.Session) error) error {
	session, err := o.opener.Open(ctx)
	if err != nil {
		return newError(KindSession, "open session", err)
	}
	defer func() {
		if closeErr := session.Close(); closeErr != nil {
			log.L().Warn("session_close_failed", zap.String("operation", op.name), zap.Error(closeErr))
		}
	}()

	log.L().Info("operation_attempt",
		zap.String("operation", op.name),
		zap.Int("attempt", attemptNumber),
		zap.String("date", op.target.String()),
		zap.String("time", op.data.Label))
	err = attempt(ctx, session)
	if err != nil {
		o.capture(ctx, session, op, fmt.Sprintf("%s-attempt-%d-%s", op.name, attemptNumber, KindOf(err)))
	}
	return err
}

// locate brings the target day into view and classifies the requested hour.
func (o *Orchestrator) locate(ctx context.Context, session surface.Session, op *operation) (matcher.Verdict, error) {
	op.stage(StageNavigating)
	result, err := o.driver.NavigateTo(ctx, session, op.target)
	if err != nil {
		return matcher.Verdict{}, surfaceError(KindNavigation, "navigate", err)
	}
	if !result.Arrived {
		return matcher.Verdict{}, newError(KindNavigation, "navigate", result.Reason)
	}
	if !result.Verified {
		log.L().Warn("navigate_unverified",
			zap.String("target", op.target.String()),
			zap.String("reading", result.LastReading))
	}

	op.stage(StageRevealing)
	if err := session.Reveal(ctx); err != nil {
		if errors.Is(err, surface.ErrSessionClosed) {
			return matcher.Verdict{}, newError(KindSession, "reveal", err)
		}
		log.L().Warn("reveal_failed", zap.Error(err))
	}

	op.stage(StageClassifying)
	return o.classify(ctx, session, op)
}

func (o *Orchestrator) classify(ctx context.Context, session surface.Session, op *operation) (matcher.Verdict, error) {
	indicators, err := session.ScrapeUnavailableIndicators(ctx)
	if err != nil {
		return matcher.Verdict{}, surfaceError(KindAction, "scrape unavailable indicators", err)
	}
	candidates, err := session.ScrapeSlotCandidates(ctx)
	if err != nil {
		return matcher.Verdict{}, surfaceError(KindAction, "scrape slot candidates", err)
	}
	candidates = matcher.FilterByResource(candidates, op.resource)
	verdict := matcher.Classify(candidates, indicators, op.data)
	log.L().Info("classify_verdict",
		zap.String("status", string(verdict.Status)),
		zap.String("channel", verdict.Channel),
		zap.String("label", op.data.Label),
		zap.Int("candidates", len(candidates)),
		zap.Int("indicators", len(indicators)))
	return verdict, nil
}

func (o *Orchestrator) reserve(ctx context.Context, session surface.Session, op *operation) (BookingOutcome, error) {
	verdict, err := o.locate(ctx, session, op)
	if err != nil {
		return BookingOutcome{}, err
	}
	date := op.dateLabel()
	switch verdict.Status {
	case matcher.StatusUnavailable:
		return BookingOutcome{
			AlreadyBooked: true,
			Message:       fmt.Sprintf("%s at %s is already booked.", date, op.data.Label),
		}, nil
	case matcher.StatusUnknown:
		o.capture(ctx, session, op, "slot-unknown")
		return BookingOutcome{
			Kind:    KindClassification,
			Message: fmt.Sprintf("Could not find a %s slot on %s.", op.data.Label, date),
		}, nil
	}

	op.stage(StageClicking)
	if err := session.Click(ctx, verdict.Candidate.Ref); err != nil {
		return BookingOutcome{}, surfaceError(KindAction, "click slot", err)
	}
	if err := pause(ctx, o.config.ConfirmSettle); err != nil {
		return BookingOutcome{}, newError(KindSession, "wait for confirmation", err)
	}

	op.stage(StageConfirming)
	confirmed, err := o.confirm(ctx, session)
	if err != nil {
		return BookingOutcome{}, err
	}
	if !confirmed {
		o.capture(ctx, session, op, "confirmation-missing")
		return BookingOutcome{
			Uncertain: true,
			Message: fmt.Sprintf("Clicked %s on %s but found no confirmation. Please check the reservation by hand.",
				op.data.Label, date),
		}, nil
	}

	op.stage(StageVerifying)
	verified := o.verify(ctx, session, op)
	suffix := "unverified"
	if verified {
		suffix = "verified"
	}
	return BookingOutcome{
		Success:  true,
		Verified: verified,
		Message:  fmt.Sprintf("Booked %s at %s (%s).", date, op.data.Label, suffix),
	}, nil
}

// verify re-reads the page after confirmation; a booked hour should now show as unavailable.
func (o *Orchestrator) verify(ctx context.Context, session surface.Session, op *operation) bool {
	if err := pause(ctx, o.config.VerifySettle); err != nil {
		return false
	}
	verdict, err := o.classify(ctx, session, op)
	if err != nil {
		log.L().Warn("verify_failed", zap.Error(err))
		return false
	}
	verified := verdict.Status == matcher.StatusUnavailable
	if !verified {
		log.L().Warn("verify_mismatch", zap.String("status", string(verdict.Status)))
	}
	return verified
}

// capture saves a screenshot for later review. Failures only get logged.
func (o *Orchestrator) capture(ctx context.Context, session surface.Session, op *operation, name string) {
	image, err := session.Screenshot(ctx)
	if err != nil {
		log.L().Warn("diagnostic_capture_failed", zap.String("name", name), zap.Error(err))
		return
	}
	handle, err := o.sink.Save(ctx, name, image)
	if err != nil {
		log.L().Warn("diagnostic_save_failed", zap.String("name", name), zap.Error(err))
		return
	}
	if handle.Location == "" {
		return
	}
	op.handles = append(op.handles, handle)
	log.L().Info("diagnostic_saved", zap.String("name", handle.Name), zap.String("location", handle.Location))
}

// surfaceError marks lost sessions as SessionFailure and everything else as kind.
func surfaceError(kind Kind, op string, err error) error {
	if errors.Is(err, surface.ErrSessionClosed) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return newError(KindSession, op, err)
	}
	return newError(kind, op, err)
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
