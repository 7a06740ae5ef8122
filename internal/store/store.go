// Package store exports QA pairs to Postgres.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MikeSquared-Agency/mailpairs/internal/pairs"
)

type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS qa_pairs (
	id           uuid PRIMARY KEY,
	run_id       uuid NOT NULL,
	conversation integer NOT NULL,
	turn         integer NOT NULL,
	question     text NOT NULL,
	answer       text NOT NULL,
	created_at   timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS qa_pairs_run_id_idx ON qa_pairs (run_id);`

// EnsureSchema creates the qa_pairs table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

var pairColumns = []string{"id", "run_id", "conversation", "turn", "question", "answer", "created_at"}

// WritePairs inserts ps under runID in a single transaction.
func (s *Store) WritePairs(ctx context.Context, runID uuid.UUID, ps []pairs.Pair) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()
	n, err := tx.CopyFrom(ctx, pgx.Identifier{"qa_pairs"}, pairColumns,
		pgx.CopyFromSlice(len(ps), func(i int) ([]any, error) {
			p := ps[i]
			return []any{uuid.New(), runID, p.Conversation, p.Turn, p.Question, p.Answer, now}, nil
		}),
	)
	if err != nil {
		return 0, fmt.Errorf("copy pairs: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return n, nil
}

// CountPairs returns the number of pairs stored for runID.
func (s *Store) CountPairs(ctx context.Context, runID uuid.UUID) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM qa_pairs WHERE run_id = $1`, runID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count pairs: %w", err)
	}
	return n, nil
}

// DeleteRun removes every pair stored for runID.
func (s *Store) DeleteRun(ctx context.Context, runID uuid.UUID) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM qa_pairs WHERE run_id = $1`, runID)
	if err != nil {
		return 0, fmt.Errorf("delete run: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ExportResult reports what Export did.
type ExportResult struct {
	Replaced int64
	Written  int64
	Stored   int
}

// Export writes ps under runID and checks the stored count. With replace set,
// pairs already stored for runID are removed first; otherwise a run that
// already holds pairs is refused.
func (s *Store) Export(ctx context.Context, runID uuid.UUID, ps []pairs.Pair, replace bool) (ExportResult, error) {
	var res ExportResult
	if replace {
		n, err := s.DeleteRun(ctx, runID)
		if err != nil {
			return res, err
		}
		res.Replaced = n
	} else {
		existing, err := s.CountPairs(ctx, runID)
		if err != nil {
			return res, err
		}
		if existing > 0 {
			return res, fmt.Errorf("run %s already holds %d pairs", runID, existing)
		}
	}

	n, err := s.WritePairs(ctx, runID, ps)
	if err != nil {
		return res, err
	}
	res.Written = n

	if res.Stored, err = s.CountPairs(ctx, runID); err != nil {
		return res, err
	}
	if int64(res.Stored) != res.Written {
		return res, fmt.Errorf("run %s holds %d pairs after writing %d", runID, res.Stored, res.Written)
	}
	return res, nil
}
