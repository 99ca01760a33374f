package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"courtbot/pkg/booking"
	"courtbot/pkg/games"
	"courtbot/pkg/log"
	"courtbot/pkg/timeparse"
	"go.uber.org/zap"
)

const gameDateLayout = "2006-01-02"

// Booker is the slice of booking.Orchestrator the bot drives.
type Booker interface {
	Check(ctx context.Context, dateText, timeText string, options ...booking.Option) booking.AvailabilityOutcome
	Book(ctx context.Context, dateText, timeText, resource string, options ...booking.Option) booking.BookingOutcome
}

type GameStore interface {
	CreateGame(ctx context.Context, game games.Game) (games.Game, error)
	GetGame(ctx context.Context, id string) (games.Game, error)
	ListOpenGames(ctx context.Context, fromDate string) ([]games.Game, error)
	SetStatus(ctx context.Context, id, status string) error
	Join(ctx context.Context, gameID, player string, capacity int) (games.JoinResult, error)
	Leave(ctx context.Context, gameID, player string) (games.LeaveResult, error)
	Roster(ctx context.Context, gameID string) (games.Roster, error)
	RecordBooking(ctx context.Context, record games.BookingRecord) (games.BookingRecord, error)
}

type Config struct {
	PlayersNeeded int
	Capacity      int
	DefaultCourt  string
	Location      *time.Location
}

// Bot answers commands from one Transport. Checks and bookings run in the background so the
// conversation keeps flowing; the orchestrator serialises them.
type Bot struct {
	config    Config
	transport Transport
	booker    Booker
	store     GameStore
	trigger   *Trigger
	now       func() time.Time
	pending   sync.WaitGroup
}

func NewBot(config Config, transport Transport, booker Booker, store GameStore, trigger *Trigger) *Bot {
	if config.Location == nil {
		config.Location = time.Local
	}
	if config.Capacity < config.PlayersNeeded {
		config.Capacity = config.PlayersNeeded
	}
	return &Bot{config: config, transport: transport, booker: booker, store: store, trigger: trigger, now: time.Now}
}

// Run handles messages until the transport closes or ctx ends, then waits for running work.
func (b *Bot) Run(ctx context.Context) error {
	messages, err := b.transport.Receive(ctx)
	if err != nil {
		return fmt.Errorf("receive: %w", err)
	}
	defer b.Wait()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case message, ok := <-messages:
			if !ok {
				return nil
			}
			b.Handle(ctx, message)
		}
	}
}

// Wait blocks until background checks and bookings finish.
func (b *Bot) Wait() { b.pending.Wait() }

func (b *Bot) Handle(ctx context.Context, message Message) {
	command, ok := ParseCommand(message.Text)
	if !ok {
		return
	}
	log.L().Info("chat_command", zap.String("kind", string(command.Kind)), zap.String("sender", message.Player()))

	switch command.Kind {
	case CommandCheck:
		b.background(func() {
			outcome := b.booker.Check(ctx, command.Date, command.Time)
			b.reply(ctx, RenderAvailability(outcome))
			if outcome.Status == booking.AvailabilityUnknown || outcome.Status == booking.AvailabilityError {
				b.trigger.postDiagnostic(ctx, outcome.Diagnostics)
			}
		})
	case CommandBook:
		resource := command.Resource
		if resource == "" {
			resource = b.config.DefaultCourt
		}
		b.reply(ctx, fmt.Sprintf("On it, booking %s %s.", command.Date, command.Time))
		b.background(func() {
			outcome := b.booker.Book(ctx, command.Date, command.Time, resource)
			b.reply(ctx, RenderBooking(outcome))
			if !outcome.Success {
				b.trigger.postDiagnostic(ctx, outcome.Diagnostics)
			}
			if !outcome.ParseFailed() {
				b.trigger.record(ctx, games.Game{TimeRange: command.Time, Court: resource}, outcome.Date, outcome)
			}
		})
	case CommandGame:
		b.createGame(ctx, message, command)
	case CommandIn:
		b.join(ctx, message, command.GameID)
	case CommandOut:
		b.leave(ctx, message, command.GameID)
	case CommandGames:
		b.listGames(ctx)
	default:
		b.reply(ctx, HelpText())
	}
}

func (b *Bot) createGame(ctx context.Context, message Message, command Command) {
	target, ok := timeparse.ResolveDate(command.Date, b.now().In(b.config.Location))
	if !ok {
		b.reply(ctx, fmt.Sprintf("Could not read date %q. %s.", command.Date, timeparse.FormatHint))
		return
	}
	if _, ok := timeparse.ParseTimeRange(command.Time); !ok {
		b.reply(ctx, fmt.Sprintf("Could not read time range %q. %s.", command.Time, timeparse.FormatHint))
		return
	}
	court := command.Resource
	if court == "" {
		court = b.config.DefaultCourt
	}
	game, err := b.store.CreateGame(ctx, games.Game{
		Date:      target.Time(time.UTC).Format(gameDateLayout),
		TimeRange: strings.ReplaceAll(command.Time, " ", ""),
		Court:     court,
		CreatedBy: message.Player(),
	})
	if err != nil {
		b.fail(ctx, "create game", err)
		return
	}
	b.reply(ctx, fmt.Sprintf("New game %s on %s %s. Reply !in %s to play.", game.ID, target, game.TimeRange, game.ID))
	b.join(ctx, message, game.ID)
}

func (b *Bot) join(ctx context.Context, message Message, gameID string) {
	game, err := b.store.GetGame(ctx, gameID)
	if err != nil {
		b.fail(ctx, "find game", err)
		return
	}
	if game.Status != games.StatusOpen {
		b.reply(ctx, fmt.Sprintf("Game %s is %s.", game.ID, game.Status))
		return
	}
	result, err := b.store.Join(ctx, game.ID, message.Player(), b.config.Capacity)
	if err != nil {
		b.fail(ctx, "join game", err)
		return
	}
	switch {
	case result.Already:
		b.reply(ctx, fmt.Sprintf("%s is already on game %s.", message.Player(), game.ID))
	case result.Waitlisted:
		b.reply(ctx, fmt.Sprintf("%s is on the waitlist for game %s.", message.Player(), game.ID))
	default:
		b.reply(ctx, fmt.Sprintf("%s is in for game %s (%d/%d).", message.Player(), game.ID, result.Committed, b.config.PlayersNeeded))
	}
	// a full game whose booking failed earlier retries on any later join
	if result.Committed >= b.config.PlayersNeeded {
		b.background(func() { b.trigger.Fire(ctx, game) })
	}
}

func (b *Bot) leave(ctx context.Context, message Message, gameID string) {
	result, err := b.store.Leave(ctx, gameID, message.Player())
	if err != nil {
		b.fail(ctx, "leave game", err)
		return
	}
	if !result.Removed {
		b.reply(ctx, fmt.Sprintf("%s was not on game %s.", message.Player(), gameID))
		return
	}
	reply := fmt.Sprintf("%s is out of game %s.", message.Player(), gameID)
	if result.Promoted != "" {
		reply += fmt.Sprintf(" %s moves up from the waitlist.", result.Promoted)
	}
	b.reply(ctx, reply)
}

func (b *Bot) listGames(ctx context.Context) {
	today := b.now().In(b.config.Location).Format(gameDateLayout)
	open, err := b.store.ListOpenGames(ctx, today)
	if err != nil {
		b.fail(ctx, "list games", err)
		return
	}
	if len(open) == 0 {
		b.reply(ctx, "No open games. Start one with !game M/D RANGE.")
		return
	}
	lines := make([]string, 0, len(open))
	for _, game := range open {
		roster, err := b.store.Roster(ctx, game.ID)
		if err != nil {
			b.fail(ctx, "load roster", err)
			return
		}
		lines = append(lines, RenderGame(game, roster, b.config.Capacity))
	}
	b.reply(ctx, strings.Join(lines, "\n"))
}

func (b *Bot) background(work func()) {
	b.pending.Add(1)
	go func() {
		defer b.pending.Done()
		work()
	}()
}

func (b *Bot) reply(ctx context.Context, text string) {
	if err := b.transport.SendText(ctx, text); err != nil {
		log.L().Warn("chat_send_failed", zap.Error(err))
	}
}

func (b *Bot) fail(ctx context.Context, operation string, err error) {
	if errors.Is(err, games.ErrGameNotFound) {
		b.reply(ctx, "No such game. Try !games.")
		return
	}
	log.L().Error("chat_command_failed", zap.String("operation", operation), zap.Error(err))
	b.reply(ctx, fmt.Sprintf("Sorry, %s failed.", operation))
}
