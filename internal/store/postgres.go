package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/voyagen/epgvault/internal/models"
)

// Postgres implements Store using PostgreSQL. Shows live in their own table
// and reference their channel.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a Postgres store from a DSN. Caller must call Close when done.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// Close closes the connection pool.
func (p *Postgres) Close(context.Context) error {
	p.pool.Close()
	return nil
}

// Ping checks the connection.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Drop truncates the tables of kind. Dropping channels also empties shows.
func (p *Postgres) Drop(ctx context.Context, kind Kind) error {
	if err := kind.Validate(); err != nil {
		return fmt.Errorf("Drop: %w", err)
	}
	var q string
	switch kind {
	case KindChannels:
		q = `TRUNCATE shows, channels RESTART IDENTITY`
	case KindDates:
		q = `TRUNCATE dates`
	}
	if _, err := p.pool.Exec(ctx, q); err != nil {
		return fmt.Errorf("Drop %s: %w", kind, err)
	}
	return nil
}

// InsertChannels copies channels and their shows in one transaction.
func (p *Postgres) InsertChannels(ctx context.Context, channels []models.Channel) (int, error) {
	if len(channels) == 0 {
		return 0, nil
	}
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("InsertChannels: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	chRows := make([][]any, 0, len(channels))
	var showRows [][]any
	for _, ch := range channels {
		cats := ch.Category
		if cats == nil {
			cats = []string{}
		}
		chRows = append(chRows, []any{ch.ID, ch.OID, ch.Provider, ch.Name, ch.Logo, cats})
		for i, s := range ch.Shows {
			showRows = append(showRows, []any{
				ch.ID, i, s.Title, s.Category, s.Description,
				s.Start, s.End, s.StartTS, s.EndTS, s.Duration, s.Poster, s.OID,
			})
		}
	}

	n, err := tx.CopyFrom(ctx, pgx.Identifier{"channels"},
		[]string{"id", "oid", "provider", "name", "logo", "category"},
		pgx.CopyFromRows(chRows))
	if err != nil {
		return 0, fmt.Errorf("InsertChannels: copy channels: %w", err)
	}
	if len(showRows) > 0 {
		_, err = tx.CopyFrom(ctx, pgx.Identifier{"shows"},
			[]string{"channel_id", "position", "title", "category", "description",
				"start_dt", "end_dt", "start_ts", "end_ts", "duration", "poster", "oid"},
			pgx.CopyFromRows(showRows))
		if err != nil {
			return 0, fmt.Errorf("InsertChannels: copy shows: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("InsertChannels: commit: %w", err)
	}
	return int(n), nil
}

// InsertDates copies date rows.
func (p *Postgres) InsertDates(ctx context.Context, dates []models.Date) (int, error) {
	if len(dates) == 0 {
		return 0, nil
	}
	rows := make([][]any, 0, len(dates))
	for _, d := range dates {
		rows = append(rows, []any{d.DateTZ, d.Timestamp, d.Weekday, d.Month, int16(d.Day)})
	}
	n, err := p.pool.CopyFrom(ctx, pgx.Identifier{"dates"},
		[]string{"date_tz", "timestamp", "weekday", "month", "day"},
		pgx.CopyFromRows(rows))
	if err != nil {
		return 0, fmt.Errorf("InsertDates: %w", err)
	}
	return int(n), nil
}

// Count returns the number of rows of kind.
func (p *Postgres) Count(ctx context.Context, kind Kind) (int64, error) {
	if err := kind.Validate(); err != nil {
		return 0, fmt.Errorf("Count: %w", err)
	}
	var n int64
	// kind is validated above, so it is one of two fixed table names.
	if err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM `+string(kind)).Scan(&n); err != nil {
		return 0, fmt.Errorf("Count %s: %w", kind, err)
	}
	return n, nil
}

// SaveRun upserts the run watermark.
func (p *Postgres) SaveRun(ctx context.Context, run models.Run) error {
	id, err := uuid.Parse(run.ID)
	if err != nil {
		return fmt.Errorf("SaveRun: run id: %w", err)
	}
	_, err = p.pool.Exec(ctx,
		`INSERT INTO runs (id, started_at, finished_at, phase, channels, dates, error)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO UPDATE SET
		   finished_at = EXCLUDED.finished_at, phase = EXCLUDED.phase,
		   channels = EXCLUDED.channels, dates = EXCLUDED.dates, error = EXCLUDED.error`,
		id, run.StartedAt, run.FinishedAt, run.Phase, run.Channels, run.Dates, run.Error,
	)
	if err != nil {
		return fmt.Errorf("SaveRun: %w", err)
	}
	return nil
}

// LatestRun returns the most recently started run.
func (p *Postgres) LatestRun(ctx context.Context) (*models.Run, error) {
	var r models.Run
	err := p.pool.QueryRow(ctx,
		`SELECT id::text, started_at, finished_at, phase, channels, dates, error
		 FROM runs ORDER BY started_at DESC LIMIT 1`,
	).Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.Phase, &r.Channels, &r.Dates, &r.Error)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("LatestRun: %w", err)
	}
	return &r, nil
}

// ListChannels returns channels matching filter in insertion order.
func (p *Postgres) ListChannels(ctx context.Context, filter ChannelFilter) ([]models.Channel, error) {
	filter = filter.Normalize()
	var (
		where []string
		args  []any
	)
	if filter.Provider != "" {
		args = append(args, filter.Provider)
		where = append(where, fmt.Sprintf("provider = $%d", len(args)))
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		where = append(where, fmt.Sprintf("$%d = ANY(category)", len(args)))
	}
	q := `SELECT id, oid, provider, name, logo, category FROM channels`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, filter.Limit, filter.Offset)
	q += fmt.Sprintf(` ORDER BY seq LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := p.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("ListChannels: %w", err)
	}
	defer rows.Close()

	out := []models.Channel{}
	for rows.Next() {
		var ch models.Channel
		if err := rows.Scan(&ch.ID, &ch.OID, &ch.Provider, &ch.Name, &ch.Logo, &ch.Category); err != nil {
			return nil, fmt.Errorf("ListChannels scan: %w", err)
		}
		out = append(out, ch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListChannels rows: %w", err)
	}
	return out, nil
}

// GetChannel returns one channel with its shows in stored order.
func (p *Postgres) GetChannel(ctx context.Context, id string) (*models.Channel, error) {
	var ch models.Channel
	err := p.pool.QueryRow(ctx,
		`SELECT id, oid, provider, name, logo, category FROM channels WHERE id = $1`, id,
	).Scan(&ch.ID, &ch.OID, &ch.Provider, &ch.Name, &ch.Logo, &ch.Category)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("GetChannel: %w", err)
	}

	rows, err := p.pool.Query(ctx,
		`SELECT title, category, description, start_dt, end_dt, start_ts, end_ts, duration, poster, oid, channel_id
		 FROM shows WHERE channel_id = $1 ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("GetChannel shows: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var s models.Show
		if err := rows.Scan(&s.Title, &s.Category, &s.Description, &s.Start, &s.End,
			&s.StartTS, &s.EndTS, &s.Duration, &s.Poster, &s.OID, &s.ChannelID); err != nil {
			return nil, fmt.Errorf("GetChannel shows scan: %w", err)
		}
		ch.Shows = append(ch.Shows, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("GetChannel shows rows: %w", err)
	}
	localize(&ch)
	return &ch, nil
}

// ListDates returns every date row, ascending.
func (p *Postgres) ListDates(ctx context.Context) ([]models.Date, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT date_tz, timestamp, weekday, month, day FROM dates ORDER BY timestamp`)
	if err != nil {
		return nil, fmt.Errorf("ListDates: %w", err)
	}
	defer rows.Close()

	out := []models.Date{}
	for rows.Next() {
		var (
			d   models.Date
			day int16
		)
		if err := rows.Scan(&d.DateTZ, &d.Timestamp, &d.Weekday, &d.Month, &day); err != nil {
			return nil, fmt.Errorf("ListDates scan: %w", err)
		}
		d.Day = int(day)
		localizeDate(&d)
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListDates rows: %w", err)
	}
	return out, nil
}
