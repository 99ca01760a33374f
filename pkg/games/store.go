// Package games keeps chat-organised games, who committed to them, and the booking attempts
// made on their behalf.
package games

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

const (
	StatusOpen   = "open"
	StatusBooked = "booked"

	timestampLayout = time.RFC3339
	gameIDLength    = 8
)

var ErrGameNotFound = errors.New("game not found")

type Game struct {
	ID        string `json:"id"`
	Date      string `json:"date"`
	TimeRange string `json:"time_range"`
	Court     string `json:"court"`
	CreatedBy string `json:"created_by"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

// Roster splits a game's players into those holding a spot and those waiting, each in join order.
type Roster struct {
	Committed []string
	Waitlist  []string
}

type JoinResult struct {
	Already    bool
	Waitlisted bool
	Committed  int
}

type LeaveResult struct {
	Removed bool
	// Promoted is the waitlisted player moved into the freed spot, if any.
	Promoted string
}

type BookingRecord struct {
	ID         string `json:"id"`
	GameID     string `json:"game_id"`
	Date       string `json:"date"`
	TimeRange  string `json:"time_range"`
	Court      string `json:"court"`
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	Diagnostic string `json:"diagnostic"`
	CreatedAt  string `json:"created_at"`
}

type Store struct {
	db  *sql.DB
	now func() time.Time
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	// one writer keeps sqlite from reporting "database is locked" under concurrent commands
	db.SetMaxOpenConns(1)
	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func ensureSchema(db *sql.DB) error {
	statements := []struct {
		name  string
		query string
	}{
		{"games table", `
CREATE TABLE IF NOT EXISTS games (
  id TEXT PRIMARY KEY,
  date TEXT NOT NULL,
  time_range TEXT NOT NULL,
  court TEXT,
  created_by TEXT,
  status TEXT NOT NULL,
  created_at TEXT
);`},
		{"commitments table", `
CREATE TABLE IF NOT EXISTS commitments (
  seq INTEGER PRIMARY KEY AUTOINCREMENT,
  game_id TEXT NOT NULL,
  player TEXT NOT NULL,
  joined_at TEXT,
  waitlisted INTEGER NOT NULL DEFAULT 0,
  UNIQUE(game_id, player)
);`},
		{"bookings table", `
CREATE TABLE IF NOT EXISTS bookings (
  id TEXT PRIMARY KEY,
  game_id TEXT,
  date TEXT,
  time_range TEXT,
  court TEXT,
  success INTEGER NOT NULL,
  message TEXT,
  diagnostic TEXT,
  created_at TEXT
);`},
		{"games index", "CREATE INDEX IF NOT EXISTS idx_games_date ON games(date);"},
		{"commitments index", "CREATE INDEX IF NOT EXISTS idx_commitments_game ON commitments(game_id);"},
	}
	for _, statement := range statements {
		if _, err := db.Exec(statement.query); err != nil {
			return fmt.Errorf("create %s: %w", statement.name, err)
		}
	}
	return nil
}

func (s *Store) timestamp() string { return s.now().UTC().Format(timestampLayout) }

// CreateGame stores game with a fresh short id and open status.
func (s *Store) CreateGame(ctx context.Context, game Game) (Game, error) {
	game.ID = strings.ReplaceAll(uuid.NewString(), "-", "")[:gameIDLength]
	game.Status = StatusOpen
	game.CreatedAt = s.timestamp()
	_, err := s.db.ExecContext(ctx, `
INSERT INTO games (id, date, time_range, court, created_by, status, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?);`,
		game.ID, game.Date, game.TimeRange, game.Court, game.CreatedBy, game.Status, game.CreatedAt)
	if err != nil {
		return Game{}, fmt.Errorf("insert game: %w", err)
	}
	return game, nil
}

func (s *Store) GetGame(ctx context.Context, id string) (Game, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, date, time_range, court, created_by, status, created_at FROM games WHERE id = ?`, strings.ToLower(id))
	game, err := scanGame(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Game{}, fmt.Errorf("%w: %s", ErrGameNotFound, id)
	}
	return game, err
}

// ListOpenGames returns open games on or after fromDate (YYYY-MM-DD), soonest first.
func (s *Store) ListOpenGames(ctx context.Context, fromDate string) ([]Game, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, date, time_range, court, created_by, status, created_at FROM games
WHERE status = ? AND date >= ?
ORDER BY date, time_range`, StatusOpen, fromDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	games := []Game{}
	for rows.Next() {
		game, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		games = append(games, game)
	}
	return games, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanGame(row scanner) (Game, error) {
	var game Game
	var court, createdBy, createdAt sql.NullString
	if err := row.Scan(&game.ID, &game.Date, &game.TimeRange, &court, &createdBy, &game.Status, &createdAt); err != nil {
		return Game{}, err
	}
	game.Court = court.String
	game.CreatedBy = createdBy.String
	game.CreatedAt = createdAt.String
	return game, nil
}

func (s *Store) SetStatus(ctx context.Context, id, status string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE games SET status = ? WHERE id = ?", status, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrGameNotFound, id)
	}
	return nil
}

// Join commits player to the game, or waitlists them once capacity spots are taken.
func (s *Store) Join(ctx context.Context, gameID, player string, capacity int) (JoinResult, error) {
	var result JoinResult
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if err := requireGame(ctx, tx, gameID); err != nil {
			return err
		}
		committed, err := countCommitted(ctx, tx, gameID)
		if err != nil {
			return err
		}
		result.Waitlisted = committed >= capacity
		res, err := tx.ExecContext(ctx, `
INSERT OR IGNORE INTO commitments (game_id, player, joined_at, waitlisted) VALUES (?, ?, ?, ?);`,
			gameID, player, s.timestamp(), result.Waitlisted)
		if err != nil {
			return fmt.Errorf("insert commitment: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			result.Already = true
			var waitlisted bool
			if err := tx.QueryRowContext(ctx,
				"SELECT waitlisted FROM commitments WHERE game_id = ? AND player = ?", gameID, player).Scan(&waitlisted); err != nil {
				return err
			}
			result.Waitlisted = waitlisted
		} else if !result.Waitlisted {
			committed++
		}
		result.Committed = committed
		return nil
	})
	return result, err
}

// Leave removes player; a freed committed spot goes to the earliest waitlisted player.
func (s *Store) Leave(ctx context.Context, gameID, player string) (LeaveResult, error) {
	var result LeaveResult
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var waitlisted bool
		err := tx.QueryRowContext(ctx,
			"SELECT waitlisted FROM commitments WHERE game_id = ? AND player = ?", gameID, player).Scan(&waitlisted)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM commitments WHERE game_id = ? AND player = ?", gameID, player); err != nil {
			return fmt.Errorf("delete commitment: %w", err)
		}
		result.Removed = true
		if waitlisted {
			return nil
		}
		var next string
		err = tx.QueryRowContext(ctx,
			"SELECT player FROM commitments WHERE game_id = ? AND waitlisted = 1 ORDER BY seq LIMIT 1", gameID).Scan(&next)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE commitments SET waitlisted = 0 WHERE game_id = ? AND player = ?", gameID, next); err != nil {
			return fmt.Errorf("promote waitlisted player: %w", err)
		}
		result.Promoted = next
		return nil
	})
	return result, err
}

func (s *Store) Roster(ctx context.Context, gameID string) (Roster, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT player, waitlisted FROM commitments WHERE game_id = ? ORDER BY seq", gameID)
	if err != nil {
		return Roster{}, err
	}
	defer rows.Close()

	var roster Roster
	for rows.Next() {
		var player string
		var waitlisted bool
		if err := rows.Scan(&player, &waitlisted); err != nil {
			return Roster{}, err
		}
		if waitlisted {
			roster.Waitlist = append(roster.Waitlist, player)
		} else {
			roster.Committed = append(roster.Committed, player)
		}
	}
	return roster, rows.Err()
}

func (s *Store) RecordBooking(ctx context.Context, record BookingRecord) (BookingRecord, error) {
	record.ID = uuid.NewString()
	record.CreatedAt = s.timestamp()
	_, err := s.db.ExecContext(ctx, `
INSERT INTO bookings (id, game_id, date, time_range, court, success, message, diagnostic, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?);`,
		record.ID, record.GameID, record.Date, record.TimeRange, record.Court,
		record.Success, record.Message, record.Diagnostic, record.CreatedAt)
	if err != nil {
		return BookingRecord{}, fmt.Errorf("insert booking: %w", err)
	}
	return record, nil
}

// ListBookings returns the attempts recorded for gameID, or every attempt when gameID is empty.
func (s *Store) ListBookings(ctx context.Context, gameID string) ([]BookingRecord, error) {
	query := `
SELECT id, game_id, date, time_range, court, success, message, diagnostic, created_at FROM bookings`
	args := []any{}
	if gameID != "" {
		query += " WHERE game_id = ?"
		args = append(args, gameID)
	}
	query += " ORDER BY created_at, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []BookingRecord{}
	for rows.Next() {
		var record BookingRecord
		var gameIDValue, court, message, diagnostic sql.NullString
		if err := rows.Scan(&record.ID, &gameIDValue, &record.Date, &record.TimeRange, &court,
			&record.Success, &message, &diagnostic, &record.CreatedAt); err != nil {
			return nil, err
		}
		record.GameID = gameIDValue.String
		record.Court = court.String
		record.Message = message.String
		record.Diagnostic = diagnostic.String
		records = append(records, record)
	}
	return records, rows.Err()
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func requireGame(ctx context.Context, tx *sql.Tx, gameID string) error {
	var status string
	err := tx.QueryRowContext(ctx, "SELECT status FROM games WHERE id = ?", gameID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrGameNotFound, gameID)
	}
	return err
}

func countCommitted(ctx context.Context, tx *sql.Tx, gameID string) (int, error) {
	var count int
	err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM commitments WHERE game_id = ? AND waitlisted = 0", gameID).Scan(&count)
	return count, err
}
