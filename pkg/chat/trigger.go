package chat

import (
	"context"
	"fmt"
	"io"
	"time"

	"courtbot/pkg/alerts"
	"courtbot/pkg/booking"
	"courtbot/pkg/diagnostics"
	"courtbot/pkg/games"
	"courtbot/pkg/log"
	"go.uber.org/zap"
)

// Trigger books a game's court once enough players commit. The alerted set makes sure each
// game fires at most once, even when joins race.
type Trigger struct {
	booker    Booker
	store     GameStore
	alerted   alerts.Set
	transport Transport
	sink      diagnostics.Sink
}

func NewTrigger(booker Booker, store GameStore, alerted alerts.Set, transport Transport, sink diagnostics.Sink) *Trigger {
	if sink == nil {
		sink = diagnostics.NopSink{}
	}
	return &Trigger{booker: booker, store: store, alerted: alerted, transport: transport, sink: sink}
}

// Fire books game unless it already fired. It reports whether a booking was attempted.
func (t *Trigger) Fire(ctx context.Context, game games.Game) bool {
	fresh, err := t.alerted.MarkIfNew(ctx, game.ID)
	if err != nil {
		log.L().Error("trigger_mark_failed", zap.String("game", game.ID), zap.Error(err))
		return false
	}
	if !fresh {
		log.L().Debug("trigger_already_fired", zap.String("game", game.ID))
		return false
	}

	dateText, err := bookingDateText(game.Date)
	if err != nil {
		log.L().Error("trigger_bad_game_date", zap.String("game", game.ID), zap.Error(err))
		return false
	}
	t.send(ctx, fmt.Sprintf("Game %s has enough players. Booking %s %s now.", game.ID, game.Date, game.TimeRange))
	outcome := t.booker.Book(ctx, dateText, game.TimeRange, game.Court)
	log.L().Info("trigger_booking_finished",
		zap.String("game", game.ID),
		zap.Bool("success", outcome.Success),
		zap.String("kind", string(outcome.Kind)))
	t.send(ctx, RenderBooking(outcome))

	switch {
	case outcome.Success:
		if err := t.store.SetStatus(ctx, game.ID, games.StatusBooked); err != nil {
			log.L().Error("trigger_status_failed", zap.String("game", game.ID), zap.Error(err))
		}
	case outcome.AlreadyBooked, outcome.Uncertain:
		t.postDiagnostic(ctx, outcome.Diagnostics)
	default:
		// the next join may try again
		t.postDiagnostic(ctx, outcome.Diagnostics)
		if err := t.alerted.Clear(ctx, game.ID); err != nil {
			log.L().Warn("trigger_clear_failed", zap.String("game", game.ID), zap.Error(err))
		}
	}
	t.record(ctx, game, game.Date, outcome)
	return true
}

func (t *Trigger) record(ctx context.Context, game games.Game, date string, outcome booking.BookingOutcome) {
	record := games.BookingRecord{
		GameID:    game.ID,
		Date:      date,
		TimeRange: game.TimeRange,
		Court:     game.Court,
		Success:   outcome.Success,
		Message:   outcome.Message,
	}
	if len(outcome.Diagnostics) > 0 {
		record.Diagnostic = outcome.Diagnostics[0].Location
	}
	if _, err := t.store.RecordBooking(ctx, record); err != nil {
		log.L().Error("booking_record_failed", zap.String("game", game.ID), zap.Error(err))
	}
}

// postDiagnostic shares the first capture with the group.
func (t *Trigger) postDiagnostic(ctx context.Context, handles []diagnostics.Handle) {
	if len(handles) == 0 {
		return
	}
	reader, err := t.sink.Open(ctx, handles[0])
	if err != nil {
		log.L().Warn("diagnostic_open_failed", zap.String("name", handles[0].Name), zap.Error(err))
		return
	}
	defer reader.Close()
	image, err := io.ReadAll(reader)
	if err != nil {
		log.L().Warn("diagnostic_read_failed", zap.String("name", handles[0].Name), zap.Error(err))
		return
	}
	if err := t.transport.SendImage(ctx, image, "What the booking page showed"); err != nil {
		log.L().Warn("chat_send_image_failed", zap.Error(err))
	}
}

func (t *Trigger) send(ctx context.Context, text string) {
	if err := t.transport.SendText(ctx, text); err != nil {
		log.L().Warn("chat_send_failed", zap.Error(err))
	}
}

// bookingDateText turns a stored YYYY-MM-DD date into the M/D/YYYY form the orchestrator reads.
func bookingDateText(date string) (string, error) {
	parsed, err := time.Parse(gameDateLayout, date)
	if err != nil {
		return "", err
	}
	return parsed.Format("1/2/2006"), nil
}
