package sessions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ziadkadry99/shardgate/internal/db"
	"github.com/ziadkadry99/shardgate/internal/gateway"
)

// Store persists gateway resume state in sqlite so a restarted process can
// resume instead of identifying again.
type Store struct {
	db *db.DB
}

// NewStore creates a Store backed by the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

var _ gateway.SessionStore = (*Store)(nil)

// Load returns the stored state of a shard, nil if there is none.
func (s *Store) Load(ctx context.Context, shardID, shardCount int) (*gateway.SessionState, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT shard_id, shard_count, session_id, sequence, resume_url, updated_at
		FROM gateway_sessions WHERE shard_id = ? AND shard_count = ?`, shardID, shardCount)

	st, err := scanState(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading session for shard %d/%d: %w", shardID, shardCount, err)
	}
	return st, nil
}

// Save upserts the state of a shard.
func (s *Store) Save(ctx context.Context, st gateway.SessionState) error {
	if st.UpdatedAt.IsZero() {
		st.UpdatedAt = time.Now()
	}
	var seq sql.NullInt64
	if st.Seq != nil {
		seq = sql.NullInt64{Int64: *st.Seq, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO gateway_sessions (shard_id, shard_count, session_id, sequence, resume_url, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(shard_id, shard_count) DO UPDATE SET
			session_id = excluded.session_id,
			sequence = excluded.sequence,
			resume_url = excluded.resume_url,
			updated_at = excluded.updated_at`,
		st.ShardID, st.ShardCount, st.SessionID, seq, st.ResumeURL,
		st.UpdatedAt.UTC().Format(time.DateTime),
	)
	if err != nil {
		return fmt.Errorf("saving session for shard %d/%d: %w", st.ShardID, st.ShardCount, err)
	}
	return nil
}

// Delete removes the state of a shard. Deleting a missing row is not an error.
func (s *Store) Delete(ctx context.Context, shardID, shardCount int) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM gateway_sessions WHERE shard_id = ? AND shard_count = ?", shardID, shardCount)
	if err != nil {
		return fmt.Errorf("deleting session for shard %d/%d: %w", shardID, shardCount, err)
	}
	return nil
}

// List returns every stored session ordered by shard.
func (s *Store) List(ctx context.Context) ([]gateway.SessionState, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT shard_id, shard_count, session_id, sequence, resume_url, updated_at
		FROM gateway_sessions ORDER BY shard_count, shard_id`)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var out []gateway.SessionState
	for rows.Next() {
		st, err := scanState(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *st)
	}
	return out, rows.Err()
}

// Clear removes every stored session and returns how many were removed.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM gateway_sessions")
	if err != nil {
		return 0, fmt.Errorf("clearing sessions: %w", err)
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanState(sc scanner) (*gateway.SessionState, error) {
	var (
		st  gateway.SessionState
		seq sql.NullInt64
		ts  string
	)
	if err := sc.Scan(&st.ShardID, &st.ShardCount, &st.SessionID, &seq, &st.ResumeURL, &ts); err != nil {
		return nil, err
	}
	if seq.Valid {
		v := seq.Int64
		st.Seq = &v
	}
	st.UpdatedAt = parseTime(ts)
	return &st, nil
}

// parseTime accepts both the stored format and the RFC 3339 form the
// driver produces for DATETIME columns.
func parseTime(s string) time.Time {
	if t, err := time.Parse(time.DateTime, s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	return time.Time{}
}
