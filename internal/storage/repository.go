package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	upsertDecisionSQL = `INSERT INTO routing_decisions (
        bucket_ts,
        asset_pair,
        strategy,
        selected_anchor,
        score,
        alternatives,
        eligible_count,
        status,
        error
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9
    )
    ON CONFLICT (bucket_ts, asset_pair, strategy) DO UPDATE
    SET
        selected_anchor = EXCLUDED.selected_anchor,
        score           = EXCLUDED.score,
        alternatives    = EXCLUDED.alternatives,
        eligible_count  = EXCLUDED.eligible_count,
        status          = EXCLUDED.status,
        error           = EXCLUDED.error;`

	listDecisionsBetweenSQL = `SELECT
        bucket_ts,
        asset_pair,
        strategy,
        selected_anchor,
        score,
        alternatives,
        eligible_count,
        status,
        error,
        created_at
    FROM routing_decisions
    WHERE bucket_ts >= $1
      AND bucket_ts < $2
    ORDER BY bucket_ts;`

	listRecentDecisionsSQL = `SELECT
        bucket_ts,
        asset_pair,
        strategy,
        selected_anchor,
        score,
        alternatives,
        eligible_count,
        status,
        error,
        created_at
    FROM routing_decisions
    ORDER BY bucket_ts DESC
    LIMIT $1;`

	countDecisionsSQL = `SELECT COUNT(*) FROM routing_decisions;`

	insertSwitchSQL = `INSERT INTO switch_events (
        bucket_ts,
        from_anchor,
        to_anchor,
        improvement_pct,
        threshold_pct,
        reason,
        channels
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7
    )
    ON CONFLICT (bucket_ts) DO UPDATE
    SET from_anchor     = EXCLUDED.from_anchor,
        to_anchor       = EXCLUDED.to_anchor,
        improvement_pct = EXCLUDED.improvement_pct,
        threshold_pct   = EXCLUDED.threshold_pct,
        reason          = EXCLUDED.reason,
        channels        = EXCLUDED.channels
    RETURNING id, bucket_ts, from_anchor, to_anchor, improvement_pct, threshold_pct, reason, channels, created_at;`

	listRecentSwitchesSQL = `SELECT
        id,
        bucket_ts,
        from_anchor,
        to_anchor,
        improvement_pct,
        threshold_pct,
        reason,
        channels,
        created_at
    FROM switch_events
    ORDER BY created_at DESC
    LIMIT $1;`

	deleteSwitchesBeforeSQL = `DELETE FROM switch_events WHERE created_at < $1;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// DecisionStore defines operations for routing decision persistence.
type DecisionStore interface {
	UpsertDecision(ctx context.Context, record DecisionRecord) error
	ListDecisionsBetween(ctx context.Context, from, to time.Time) ([]DecisionRecord, error)
	ListRecentDecisions(ctx context.Context, limit int) ([]DecisionRecord, error)
	CountDecisions(ctx context.Context) (int64, error)
}

// SwitchStore defines operations for switch event auditing.
type SwitchStore interface {
	InsertSwitch(ctx context.Context, record SwitchRecord) (SwitchRecord, error)
	ListRecentSwitches(ctx context.Context, limit int) ([]SwitchRecord, error)
	DeleteSwitchesBefore(ctx context.Context, olderThan time.Time) error
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to routing decisions and switch events.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := conn.Exec(ctxUnlock, advisoryUnlockSQL, key); err != nil {
			// unlock best effort; log omitted in storage package
		}
		conn.Release()
	}
	return unlock, true, nil
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// UpsertDecision persists or updates a routing decision.
func (s *Store) UpsertDecision(ctx context.Context, record DecisionRecord) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	var errMsg interface{}
	if record.Error != nil {
		errMsg = *record.Error
	}

	alternatives := record.Alternatives
	if alternatives == nil {
		alternatives = json.RawMessage("[]")
	}

	_, execErr := pool.Exec(ctx, upsertDecisionSQL,
		record.Bucket,
		record.Pair,
		record.Strategy,
		record.SelectedAnchor,
		record.Score,
		[]byte(alternatives),
		record.EligibleCount,
		record.Status,
		errMsg,
	)
	if execErr != nil {
		return fmt.Errorf("upsert routing decision: %w", execErr)
	}
	return nil
}

// ListDecisionsBetween lists decisions within a time window.
func (s *Store) ListDecisionsBetween(ctx context.Context, from, to time.Time) ([]DecisionRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listDecisionsBetweenSQL, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list decisions between: %w", queryErr)
	}
	defer rows.Close()

	records := make([]DecisionRecord, 0)
	for rows.Next() {
		record, scanErr := scanDecision(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		records = append(records, record)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return records, nil
}

// ListRecentDecisions lists the most recent decisions ordered by descending bucket.
func (s *Store) ListRecentDecisions(ctx context.Context, limit int) ([]DecisionRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentDecisionsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent decisions: %w", queryErr)
	}
	defer rows.Close()

	records := make([]DecisionRecord, 0, limit)
	for rows.Next() {
		record, scanErr := scanDecision(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		records = append(records, record)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return records, nil
}

// CountDecisions counts stored decisions.
func (s *Store) CountDecisions(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countDecisionsSQL).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count decisions: %w", scanErr)
	}
	return count, nil
}

// InsertSwitch persists a switch recommendation emission.
func (s *Store) InsertSwitch(ctx context.Context, record SwitchRecord) (SwitchRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return SwitchRecord{}, err
	}

	improvement := record.ImprovementPct.String()
	threshold := record.ThresholdPct.String()

	row := pool.QueryRow(ctx, insertSwitchSQL,
		record.Bucket,
		record.FromAnchor,
		record.ToAnchor,
		improvement,
		threshold,
		record.Reason,
		record.Channels,
	)

	var rec SwitchRecord
	var improvementStr, thresholdStr string
	if scanErr := row.Scan(
		&rec.ID,
		&rec.Bucket,
		&rec.FromAnchor,
		&rec.ToAnchor,
		&improvementStr,
		&thresholdStr,
		&rec.Reason,
		&rec.Channels,
		&rec.CreatedAt,
	); scanErr != nil {
		return SwitchRecord{}, fmt.Errorf("insert switch event: %w", scanErr)
	}

	var convErr error
	rec.ImprovementPct, convErr = decimal.NewFromString(improvementStr)
	if convErr != nil {
		return SwitchRecord{}, fmt.Errorf("parse improvement pct: %w", convErr)
	}
	rec.ThresholdPct, convErr = decimal.NewFromString(thresholdStr)
	if convErr != nil {
		return SwitchRecord{}, fmt.Errorf("parse threshold pct: %w", convErr)
	}

	return rec, nil
}

// ListRecentSwitches lists most recent switch events.
func (s *Store) ListRecentSwitches(ctx context.Context, limit int) ([]SwitchRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentSwitchesSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent switch events: %w", queryErr)
	}
	defer rows.Close()

	records := make([]SwitchRecord, 0, limit)
	for rows.Next() {
		var rec SwitchRecord
		var improvementStr, thresholdStr string
		if err := rows.Scan(
			&rec.ID,
			&rec.Bucket,
			&rec.FromAnchor,
			&rec.ToAnchor,
			&improvementStr,
			&thresholdStr,
			&rec.Reason,
			&rec.Channels,
			&rec.CreatedAt,
		); err != nil {
			return nil, err
		}

		var convErr error
		rec.ImprovementPct, convErr = decimal.NewFromString(improvementStr)
		if convErr != nil {
			return nil, fmt.Errorf("parse improvement pct: %w", convErr)
		}
		rec.ThresholdPct, convErr = decimal.NewFromString(thresholdStr)
		if convErr != nil {
			return nil, fmt.Errorf("parse threshold pct: %w", convErr)
		}

		records = append(records, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return records, nil
}

// DeleteSwitchesBefore deletes historical switch events.
func (s *Store) DeleteSwitchesBefore(ctx context.Context, olderThan time.Time) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, deleteSwitchesBeforeSQL, olderThan); execErr != nil {
		return fmt.Errorf("delete switch events before: %w", execErr)
	}
	return nil
}

func scanDecision(rows pgx.Rows) (DecisionRecord, error) {
	var (
		bucket        time.Time
		pair          string
		strategy      string
		selected      string
		score         int64
		alternatives  json.RawMessage
		eligibleCount int
		status        string
		errMsg        sql.NullString
		createdAt     time.Time
	)

	if err := rows.Scan(
		&bucket,
		&pair,
		&strategy,
		&selected,
		&score,
		&alternatives,
		&eligibleCount,
		&status,
		&errMsg,
		&createdAt,
	); err != nil {
		return DecisionRecord{}, err
	}

	record := DecisionRecord{
		Bucket:         bucket,
		Pair:           pair,
		Strategy:       strategy,
		SelectedAnchor: selected,
		Score:          score,
		Alternatives:   alternatives,
		EligibleCount:  eligibleCount,
		Status:         status,
		CreatedAt:      createdAt,
	}
	if errMsg.Valid {
		msg := errMsg.String
		record.Error = &msg
	}

	return record, nil
}
