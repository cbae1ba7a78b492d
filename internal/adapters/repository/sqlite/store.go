// Package sqlite provides a SQLite-backed ladder store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mcronin4/scrappers-cup/internal/adapters/repository"
	"github.com/mcronin4/scrappers-cup/internal/adapters/repository/sqlite/migrations"
	"github.com/mcronin4/scrappers-cup/internal/domain/model"
)

// Store persists competitors, contests and the timeline in one SQLite file.
type Store struct {
	sqlDB  *sql.DB
	closed atomic.Bool
}

var _ repository.Store = (*Store)(nil)

// Open opens the database at path and applies migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) +
		"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One connection serializes writers and keeps CreateCompetitor's
	// count-then-insert atomic.
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close releases the SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil || !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.closed.Load() {
		return repository.ErrClosed
	}
	return nil
}

// Times are stored as Unix nanoseconds, which span roughly 1678 to 2262.
// Zero stores the zero time.
var (
	minStoredTime = time.Unix(0, math.MinInt64).UTC()
	maxStoredTime = time.Unix(0, math.MaxInt64).UTC()
)

func toNanos(t time.Time) (int64, error) {
	if t.IsZero() {
		return 0, nil
	}
	if t.Before(minStoredTime) || t.After(maxStoredTime) {
		return 0, fmt.Errorf("%w: time %s cannot be stored", model.ErrInvalidInput, t.UTC().Format(time.RFC3339))
	}
	return t.UTC().UnixNano(), nil
}

func fromNanos(v int64) time.Time {
	if v == 0 {
		return time.Time{}
	}
	return time.Unix(0, v).UTC()
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

type rowScanner interface {
	Scan(dest ...any) error
}

const competitorColumns = `id, name, baseline_rank, current_rank, active, created_at, created_seq`

func scanCompetitor(row rowScanner) (model.Competitor, error) {
	var (
		c         model.Competitor
		active    int
		createdAt int64
	)
	if err := row.Scan(&c.ID, &c.Name, &c.BaselineRank, &c.CurrentRank, &active, &createdAt, &c.CreatedSeq); err != nil {
		return model.Competitor{}, err
	}
	c.Active = active != 0
	c.CreatedAt = fromNanos(createdAt)
	return c, nil
}

// ListCompetitors returns every competitor.
func (s *Store) ListCompetitors(ctx context.Context) ([]model.Competitor, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT `+competitorColumns+` FROM competitors ORDER BY created_seq`)
	if err != nil {
		return nil, fmt.Errorf("list competitors: %w", err)
	}
	defer rows.Close()

	var out []model.Competitor
	for rows.Next() {
		c, err := scanCompetitor(rows)
		if err != nil {
			return nil, fmt.Errorf("scan competitor: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate competitors: %w", err)
	}
	return out, nil
}

// GetCompetitor returns the competitor with id.
func (s *Store) GetCompetitor(ctx context.Context, id string) (model.Competitor, error) {
	if err := s.check(ctx); err != nil {
		return model.Competitor{}, err
	}
	return getCompetitor(ctx, s.sqlDB, id)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getCompetitor(ctx context.Context, q queryRower, id string) (model.Competitor, error) {
	c, err := scanCompetitor(q.QueryRowContext(ctx, `SELECT `+competitorColumns+` FROM competitors WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Competitor{}, fmt.Errorf("%w: %s", model.ErrCompetitorNotFound, id)
	}
	if err != nil {
		return model.Competitor{}, fmt.Errorf("get competitor: %w", err)
	}
	return c, nil
}

// CreateCompetitor appends c at the bottom of the ladder.
func (s *Store) CreateCompetitor(ctx context.Context, c model.Competitor) (model.Competitor, error) {
	if err := s.check(ctx); err != nil {
		return model.Competitor{}, err
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return model.Competitor{}, fmt.Errorf("begin create competitor: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var count int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM competitors`).Scan(&count); err != nil {
		return model.Competitor{}, fmt.Errorf("count competitors: %w", err)
	}
	c.BaselineRank = count + 1
	c.CurrentRank = count + 1
	createdAt, err := toNanos(c.CreatedAt)
	if err != nil {
		return model.Competitor{}, err
	}

	res, err := tx.ExecContext(ctx, `
INSERT INTO competitors (id, name, baseline_rank, current_rank, active, created_at)
VALUES (?, ?, ?, ?, ?, ?)
`, c.ID, c.Name, c.BaselineRank, c.CurrentRank, boolToInt(c.Active), createdAt)
	if isUniqueViolation(err) {
		return model.Competitor{}, fmt.Errorf("%w: competitor %s", repository.ErrDuplicateID, c.ID)
	}
	if err != nil {
		return model.Competitor{}, fmt.Errorf("insert competitor: %w", err)
	}
	if c.CreatedSeq, err = res.LastInsertId(); err != nil {
		return model.Competitor{}, fmt.Errorf("competitor seq: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return model.Competitor{}, fmt.Errorf("commit create competitor: %w", err)
	}
	return c, nil
}

// SetCompetitorActive flips the active flag without touching ranks.
func (s *Store) SetCompetitorActive(ctx context.Context, id string, active bool) (model.Competitor, error) {
	if err := s.check(ctx); err != nil {
		return model.Competitor{}, err
	}
	res, err := s.sqlDB.ExecContext(ctx, `UPDATE competitors SET active = ? WHERE id = ?`, boolToInt(active), id)
	if err != nil {
		return model.Competitor{}, fmt.Errorf("set competitor active: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.Competitor{}, fmt.Errorf("%w: %s", model.ErrCompetitorNotFound, id)
	}
	return getCompetitor(ctx, s.sqlDB, id)
}

// WriteCompetitorRanks overwrites CurrentRank in one transaction.
func (s *Store) WriteCompetitorRanks(ctx context.Context, ranks []model.RankUpdate) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	return s.inTx(ctx, "write ranks", func(tx *sql.Tx) error {
		return writeRanks(ctx, tx, ranks)
	})
}

func writeRanks(ctx context.Context, tx *sql.Tx, ranks []model.RankUpdate) error {
	stmt, err := tx.PrepareContext(ctx, `UPDATE competitors SET current_rank = ? WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("prepare rank update: %w", err)
	}
	defer stmt.Close()
	for _, u := range ranks {
		res, err := stmt.ExecContext(ctx, u.CurrentRank, u.CompetitorID)
		if err != nil {
			return fmt.Errorf("update rank %s: %w", u.CompetitorID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: %s", model.ErrCompetitorNotFound, u.CompetitorID)
		}
	}
	return nil
}

const eventColumns = `id, seq, ts, kind, contest_id, competitor_id, from_rank, target_rank, reason, actor, old_rank, new_rank, note`

func scanEvent(row rowScanner) (model.Event, error) {
	var (
		e            model.Event
		ts           int64
		kind         string
		contestID    sql.NullString
		competitorID sql.NullString
		fromRank     sql.NullInt64
		targetRank   sql.NullInt64
		reason       sql.NullString
		actor        sql.NullString
	)
	if err := row.Scan(&e.ID, &e.Seq, &ts, &kind, &contestID, &competitorID, &fromRank, &targetRank,
		&reason, &actor, &e.Audit.OldRank, &e.Audit.NewRank, &e.Audit.Note); err != nil {
		return model.Event{}, err
	}
	e.Timestamp = fromNanos(ts)
	switch model.EventKind(kind) {
	case model.KindContest:
		e.Payload = model.ContestPayload{ContestID: contestID.String}
	case model.KindManualAdjustment:
		e.Payload = model.AdjustmentPayload{
			CompetitorID: competitorID.String,
			FromRank:     int(fromRank.Int64),
			TargetRank:   int(targetRank.Int64),
			Reason:       reason.String,
			Actor:        actor.String,
		}
	}
	// Unknown kinds load with a nil payload; replay skips them.
	return e, nil
}

// ListTimelineEvents returns every event in creation order.
func (s *Store) ListTimelineEvents(ctx context.Context) ([]model.Event, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT `+eventColumns+` FROM timeline_events ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("list timeline events: %w", err)
	}
	defer rows.Close()

	var out []model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan timeline event: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate timeline events: %w", err)
	}
	return out, nil
}

// GetTimelineEvent returns the event with id.
func (s *Store) GetTimelineEvent(ctx context.Context, id string) (model.Event, error) {
	if err := s.check(ctx); err != nil {
		return model.Event{}, err
	}
	e, err := scanEvent(s.sqlDB.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM timeline_events WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Event{}, fmt.Errorf("%w: %s", model.ErrEventNotFound, id)
	}
	if err != nil {
		return model.Event{}, fmt.Errorf("get timeline event: %w", err)
	}
	return e, nil
}

// AppendTimelineEvent stores evt and assigns its creation sequence number.
func (s *Store) AppendTimelineEvent(ctx context.Context, evt model.Event) (model.Event, error) {
	if err := s.check(ctx); err != nil {
		return model.Event{}, err
	}

	var (
		contestID, competitorID, reason, actor sql.NullString
		fromRank, targetRank                   sql.NullInt64
	)
	switch p := evt.Payload.(type) {
	case model.ContestPayload:
		contestID = sql.NullString{String: p.ContestID, Valid: true}
	case model.AdjustmentPayload:
		competitorID = sql.NullString{String: p.CompetitorID, Valid: true}
		fromRank = sql.NullInt64{Int64: int64(p.FromRank), Valid: true}
		targetRank = sql.NullInt64{Int64: int64(p.TargetRank), Valid: true}
		reason = sql.NullString{String: p.Reason, Valid: p.Reason != ""}
		actor = sql.NullString{String: p.Actor, Valid: p.Actor != ""}
	default:
		return model.Event{}, fmt.Errorf("%w: event %s has no payload", model.ErrInvalidInput, evt.ID)
	}
	ts, err := toNanos(evt.Timestamp)
	if err != nil {
		return model.Event{}, fmt.Errorf("event %s: %w", evt.ID, err)
	}

	res, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO timeline_events (id, ts, kind, contest_id, competitor_id, from_rank, target_rank, reason, actor, old_rank, new_rank, note)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`, evt.ID, ts, string(evt.Kind()), contestID, competitorID, fromRank, targetRank,
		reason, actor, evt.Audit.OldRank, evt.Audit.NewRank, evt.Audit.Note)
	if isUniqueViolation(err) {
		return model.Event{}, fmt.Errorf("%w: event %s", repository.ErrDuplicateID, evt.ID)
	}
	if err != nil {
		return model.Event{}, fmt.Errorf("insert timeline event: %w", err)
	}
	if evt.Seq, err = res.LastInsertId(); err != nil {
		return model.Event{}, fmt.Errorf("timeline event seq: %w", err)
	}
	return evt, nil
}

// UpdateTimelineEventAudit overwrites the audit fields of one event.
func (s *Store) UpdateTimelineEventAudit(ctx context.Context, update model.AuditUpdate) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	n, err := updateAudit(ctx, s.sqlDB, update)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", model.ErrEventNotFound, update.EventID)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func updateAudit(ctx context.Context, x execer, update model.AuditUpdate) (int64, error) {
	res, err := x.ExecContext(ctx, `UPDATE timeline_events SET old_rank = ?, new_rank = ?, note = ? WHERE id = ?`,
		update.Audit.OldRank, update.Audit.NewRank, update.Audit.Note, update.EventID)
	if err != nil {
		return 0, fmt.Errorf("update audit %s: %w", update.EventID, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// DeleteTimelineEvent removes one event.
func (s *Store) DeleteTimelineEvent(ctx context.Context, id string) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM timeline_events WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete timeline event: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", model.ErrEventNotFound, id)
	}
	return nil
}

// GetContestRecord returns the contest with id.
func (s *Store) GetContestRecord(ctx context.Context, id string) (model.ContestRecord, error) {
	if err := s.check(ctx); err != nil {
		return model.ContestRecord{}, err
	}
	var (
		rec                  model.ContestRecord
		tbSide1, tbSide2     sql.NullInt64
		retired, winningSide int
		playedAt, createdAt  int64
	)
	err := s.sqlDB.QueryRowContext(ctx, `
SELECT id, side1_id, side2_id, set1_side1, set1_side2, set2_side1, set2_side2,
       tiebreak_side1, tiebreak_side2, retired, winning_side, played_at, created_at, recorded_by
FROM contests WHERE id = ?
`, id).Scan(&rec.ID, &rec.Side1ID, &rec.Side2ID,
		&rec.Score.Set1.Side1, &rec.Score.Set1.Side2, &rec.Score.Set2.Side1, &rec.Score.Set2.Side2,
		&tbSide1, &tbSide2, &retired, &winningSide, &playedAt, &createdAt, &rec.RecordedBy)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ContestRecord{}, fmt.Errorf("%w: %s", model.ErrContestNotFound, id)
	}
	if err != nil {
		return model.ContestRecord{}, fmt.Errorf("get contest: %w", err)
	}
	if tbSide1.Valid && tbSide2.Valid {
		rec.Score.Tiebreak = &model.SetScore{Side1: int(tbSide1.Int64), Side2: int(tbSide2.Int64)}
	}
	rec.Score.Retired = model.Side(retired)
	rec.WinningSide = model.Side(winningSide)
	rec.PlayedAt = fromNanos(playedAt)
	rec.CreatedAt = fromNanos(createdAt)
	return rec, nil
}

// contestArgs binds rec to the contests columns in table order.
func contestArgs(rec model.ContestRecord) ([]any, error) {
	playedAt, err := toNanos(rec.PlayedAt)
	if err != nil {
		return nil, fmt.Errorf("contest %s played_at: %w", rec.ID, err)
	}
	createdAt, err := toNanos(rec.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("contest %s created_at: %w", rec.ID, err)
	}
	var tbSide1, tbSide2 sql.NullInt64
	if tb := rec.Score.Tiebreak; tb != nil {
		tbSide1 = sql.NullInt64{Int64: int64(tb.Side1), Valid: true}
		tbSide2 = sql.NullInt64{Int64: int64(tb.Side2), Valid: true}
	}
	return []any{rec.ID, rec.Side1ID, rec.Side2ID,
		rec.Score.Set1.Side1, rec.Score.Set1.Side2, rec.Score.Set2.Side1, rec.Score.Set2.Side2,
		tbSide1, tbSide2, int(rec.Score.Retired), int(rec.WinningSide),
		playedAt, createdAt, rec.RecordedBy}, nil
}

// SaveContestRecord inserts rec or replaces the record with the same id.
func (s *Store) SaveContestRecord(ctx context.Context, rec model.ContestRecord) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	args, err := contestArgs(rec)
	if err != nil {
		return err
	}
	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO contests (
	id, side1_id, side2_id, set1_side1, set1_side2, set2_side1, set2_side2,
	tiebreak_side1, tiebreak_side2, retired, winning_side, played_at, created_at, recorded_by
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	side1_id = excluded.side1_id,
	side2_id = excluded.side2_id,
	set1_side1 = excluded.set1_side1,
	set1_side2 = excluded.set1_side2,
	set2_side1 = excluded.set2_side1,
	set2_side2 = excluded.set2_side2,
	tiebreak_side1 = excluded.tiebreak_side1,
	tiebreak_side2 = excluded.tiebreak_side2,
	retired = excluded.retired,
	winning_side = excluded.winning_side,
	played_at = excluded.played_at,
	created_at = excluded.created_at,
	recorded_by = excluded.recorded_by
`, args...)
	if err != nil {
		return fmt.Errorf("save contest: %w", err)
	}
	return nil
}

// UpdateContestRecord replaces an existing contest record and never inserts.
func (s *Store) UpdateContestRecord(ctx context.Context, rec model.ContestRecord) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	args, err := contestArgs(rec)
	if err != nil {
		return err
	}
	// id moves from the first bind to the WHERE clause.
	args = append(args[1:], args[0])
	res, err := s.sqlDB.ExecContext(ctx, `
UPDATE contests SET
	side1_id = ?, side2_id = ?, set1_side1 = ?, set1_side2 = ?, set2_side1 = ?, set2_side2 = ?,
	tiebreak_side1 = ?, tiebreak_side2 = ?, retired = ?, winning_side = ?,
	played_at = ?, created_at = ?, recorded_by = ?
WHERE id = ?
`, args...)
	if err != nil {
		return fmt.Errorf("update contest: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", model.ErrContestNotFound, rec.ID)
	}
	return nil
}

// DeleteContestRecord removes one contest record.
func (s *Store) DeleteContestRecord(ctx context.Context, id string) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM contests WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete contest: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", model.ErrContestNotFound, id)
	}
	return nil
}

// CommitRebuild writes ranks and audits in a single transaction.
func (s *Store) CommitRebuild(ctx context.Context, ranks []model.RankUpdate, audits []model.AuditUpdate) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	return s.inTx(ctx, "commit rebuild", func(tx *sql.Tx) error {
		if err := writeRanks(ctx, tx, ranks); err != nil {
			return err
		}
		for _, a := range audits {
			// Events deleted since the replay read them match no row.
			if _, err := updateAudit(ctx, tx, a); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) inTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin %s: %w", op, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s: %w", op, err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
