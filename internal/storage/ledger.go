package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// ErrNotConfigured indicates the storage pool was not initialised.
var ErrNotConfigured = errors.New("storage: pool not configured")

const (
	seenKeySQL = `SELECT EXISTS (
        SELECT 1 FROM notifications WHERE idempotency_key = $1
    );`

	recordDeliverySQL = `INSERT INTO notifications (
        idempotency_key,
        file_name,
        strategy,
        rows_evaluated,
        flagged_count
    ) VALUES (
        $1,$2,$3,$4,$5
    )
    ON CONFLICT (idempotency_key) DO NOTHING;`

	listRecentDeliveriesSQL = `SELECT
        idempotency_key,
        file_name,
        strategy,
        rows_evaluated,
        flagged_count,
        delivered_at
    FROM notifications
    ORDER BY delivered_at DESC
    LIMIT $1;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// DeliveryRecord captures one delivered notification for external dedupe.
type DeliveryRecord struct {
	IdempotencyKey string
	FileName       string
	Strategy       string
	RowsEvaluated  int
	FlaggedCount   int
	DeliveredAt    time.Time
}

// NotificationLedger records delivered idempotency keys so unchanged
// artifacts are not re-notified. The pipeline itself stays stateless; this is
// the caller-side "external deduplication" the key exists for.
type NotificationLedger interface {
	SeenKey(ctx context.Context, key string) (bool, error)
	RecordDelivery(ctx context.Context, rec DeliveryRecord) error
	ListRecentDeliveries(ctx context.Context, limit int) ([]DeliveryRecord, error)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates ledger access over a pgx pool.
type Store struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool, logger zerolog.Logger) *Store {
	return &Store{
		pool:   pool,
		logger: logger.With().Str("component", "storage").Logger(),
	}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// SeenKey reports whether the idempotency key was already delivered.
func (s *Store) SeenKey(ctx context.Context, key string) (bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return false, err
	}
	var seen bool
	if scanErr := pool.QueryRow(ctx, seenKeySQL, key).Scan(&seen); scanErr != nil {
		return false, fmt.Errorf("check idempotency key: %w", scanErr)
	}
	return seen, nil
}

// RecordDelivery persists a delivered notification. Replays of the same key
// are silently ignored.
func (s *Store) RecordDelivery(ctx context.Context, rec DeliveryRecord) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	_, execErr := pool.Exec(ctx, recordDeliverySQL,
		rec.IdempotencyKey,
		rec.FileName,
		rec.Strategy,
		rec.RowsEvaluated,
		rec.FlaggedCount,
	)
	if execErr != nil {
		return fmt.Errorf("record delivery: %w", execErr)
	}
	return nil
}

// ListRecentDeliveries lists the most recent ledger entries.
func (s *Store) ListRecentDeliveries(ctx context.Context, limit int) ([]DeliveryRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentDeliveriesSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent deliveries: %w", queryErr)
	}
	defer rows.Close()

	records := make([]DeliveryRecord, 0, limit)
	for rows.Next() {
		var rec DeliveryRecord
		if err := rows.Scan(
			&rec.IdempotencyKey,
			&rec.FileName,
			&rec.Strategy,
			&rec.RowsEvaluated,
			&rec.FlaggedCount,
			&rec.DeliveredAt,
		); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return records, nil
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a
// release func. Keeps concurrent lmpwatcher instances from double-polling.
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
			// best effort: the lock dies with the session anyway
			s.logger.Warn().Err(err).Int64("lock_key", key).Msg("释放 advisory lock 失败")
		}
		conn.Release()
	}
	return unlock, true, nil
}

var (
	_ NotificationLedger = (*Store)(nil)
	_ AdvisoryLocker     = (*Store)(nil)
)
