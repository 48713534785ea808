package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Status is the lifecycle position of a recorded session.
type Status string

const (
	StatusRecording Status = "recording"
	StatusStopped   Status = "stopped"
	StatusFinalized Status = "finalized"
	StatusDelivered Status = "delivered"
)

// Record is one row of the session index.
type Record struct {
	SessionID       string
	GuildID         string
	ChannelID       string
	RootDir         string
	Status          Status
	StartedAt       time.Time
	StoppedAt       time.Time
	FinalizedAt     time.Time
	DeliveredAt     time.Time
	Lines           int
	Tracks          int
	Mixed           bool
	ExportError     string
	DeliveryOutcome string
	FailedUploads   int
	UpdatedAt       time.Time
}

// Start describes a newly started session.
type Start struct {
	SessionID string
	GuildID   string
	ChannelID string
	RootDir   string
	StartedAt time.Time
}

// Finalization describes what finalize produced.
type Finalization struct {
	Lines       int
	Tracks      int
	Mixed       bool
	ExportError string
}

const recordColumns = "session_id, guild_id, channel_id, root_dir, status, started_at, stopped_at, finalized_at, delivered_at, line_count, track_count, mixed, export_error, delivery_outcome, failed_uploads, updated_at"

func scanRecord(scanner interface{ Scan(dest ...any) error }) (*Record, error) {
	var (
		rec          Record
		channelID    sql.NullString
		status       string
		startedRaw   sql.NullString
		stoppedRaw   sql.NullString
		finalizedRaw sql.NullString
		deliveredRaw sql.NullString
		mixed        int
		exportErr    sql.NullString
		outcome      sql.NullString
		updatedRaw   sql.NullString
	)
	if err := scanner.Scan(
		&rec.SessionID,
		&rec.GuildID,
		&channelID,
		&rec.RootDir,
		&status,
		&startedRaw,
		&stoppedRaw,
		&finalizedRaw,
		&deliveredRaw,
		&rec.Lines,
		&rec.Tracks,
		&mixed,
		&exportErr,
		&outcome,
		&rec.FailedUploads,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	rec.ChannelID = channelID.String
	rec.Status = Status(status)
	rec.StartedAt = parseTime(startedRaw)
	rec.StoppedAt = parseTime(stoppedRaw)
	rec.FinalizedAt = parseTime(finalizedRaw)
	rec.DeliveredAt = parseTime(deliveredRaw)
	rec.Mixed = mixed != 0
	rec.ExportError = exportErr.String
	rec.DeliveryOutcome = outcome.String
	rec.UpdatedAt = parseTime(updatedRaw)
	return &rec, nil
}

// RecordStart inserts a session. Starting the same session id twice replaces
// the earlier row.
func (s *Store) RecordStart(ctx context.Context, start Start) error {
	if start.SessionID == "" {
		return errors.New("session id is required")
	}
	now := s.timestamp()
	startedAt := start.StartedAt
	if startedAt.IsZero() {
		startedAt = s.now()
	}
	_, err := s.exec(ctx,
		`INSERT OR REPLACE INTO sessions (
            session_id, guild_id, channel_id, root_dir, status, started_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		start.SessionID,
		start.GuildID,
		nullableString(start.ChannelID),
		start.RootDir,
		StatusRecording,
		startedAt.UTC().Format(time.RFC3339Nano),
		now,
	)
	if err != nil {
		return fmt.Errorf("record start: %w", err)
	}
	return nil
}

// RecordStop marks a session stopped with its current line count.
func (s *Store) RecordStop(ctx context.Context, sessionID string, lines int) error {
	now := s.timestamp()
	return s.update(ctx, "record stop",
		`UPDATE sessions SET status = ?, stopped_at = ?, line_count = ?, updated_at = ? WHERE session_id = ?`,
		StatusStopped, now, lines, now, sessionID,
	)
}

// RecordFinalize stores the finalize outcome.
func (s *Store) RecordFinalize(ctx context.Context, sessionID string, f Finalization) error {
	now := s.timestamp()
	return s.update(ctx, "record finalize",
		`UPDATE sessions
         SET status = ?, finalized_at = ?, line_count = ?, track_count = ?, mixed = ?, export_error = ?, updated_at = ?
         WHERE session_id = ?`,
		StatusFinalized, now, f.Lines, f.Tracks, boolToInt(f.Mixed), nullableString(f.ExportError), now, sessionID,
	)
}

// RecordDelivery stores the delivery outcome.
func (s *Store) RecordDelivery(ctx context.Context, sessionID, outcome string, failedUploads int) error {
	now := s.timestamp()
	return s.update(ctx, "record delivery",
		`UPDATE sessions SET status = ?, delivered_at = ?, delivery_outcome = ?, failed_uploads = ?, updated_at = ? WHERE session_id = ?`,
		StatusDelivered, now, outcome, failedUploads, now, sessionID,
	)
}

func (s *Store) update(ctx context.Context, op, query string, args ...any) error {
	res, err := s.exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, ErrUnknownSession)
	}
	return nil
}

// ErrUnknownSession is returned when an update targets a missing session.
var ErrUnknownSession = errors.New("unknown session")

// Get returns the record for a session id, or nil when none exists.
func (s *Store) Get(ctx context.Context, sessionID string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM sessions WHERE session_id = ?`, sessionID)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return rec, nil
}

// List returns the most recently started sessions first. A guild id filters
// the result; limit <= 0 returns everything.
func (s *Store) List(ctx context.Context, guildID string, limit int) ([]*Record, error) {
	query := `SELECT ` + recordColumns + ` FROM sessions`
	var args []any
	if guildID != "" {
		query += ` WHERE guild_id = ?`
		args = append(args, guildID)
	}
	query += ` ORDER BY started_at DESC, session_id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return out, nil
}

// CountByStatus returns the number of sessions per status.
func (s *Store) CountByStatus(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM sessions GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count sessions: %w", err)
	}
	defer rows.Close()
	counts := make(map[Status]int)
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[Status(status)] = count
	}
	return counts, rows.Err()
}
