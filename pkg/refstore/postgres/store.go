// Package postgres backs [refstore.Store] with PostgreSQL and the pgvector
// extension. Similarity search runs as a cosine-distance index scan
// (HNSW, vector_cosine_ops) instead of the in-memory linear scan, with the
// same ranking semantics: descending similarity, older records first on
// ties.
//
// Concurrency relies on the database: every insert is a single statement,
// so a concurrent query sees the table before or after it, never mid-write.
// Context deadlines flow through pgx, which is where this backend's
// timeout policy lives; a timed-out feedback insert must be treated by the
// caller as not applied.
//
// Usage:
//
//	store, err := postgres.Connect(ctx, dsn, 768)
//	if err != nil { … }
//	defer store.Close()
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/vocalaid/vocalaid/pkg/intent"
	"github.com/vocalaid/vocalaid/pkg/refstore"
)

// DB is the database interface used by [Store]. Both *pgxpool.Pool and
// *pgx.Conn satisfy it.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Compile-time interface check.
var _ refstore.Store = (*Store)(nil)

// Store is a [refstore.Store] backed by a reference_embeddings table.
// Construct with [NewStore] around an existing connection, or [Connect] to
// own a pool.
type Store struct {
	db   DB
	dims int

	// pool is set only by Connect; Close is a no-op otherwise.
	pool *pgxpool.Pool
}

// NewStore wraps an existing database connection or pool. The caller is
// responsible for running [Store.Migrate] before issuing queries and for
// registering pgvector types on the connection.
func NewStore(db DB, dims int) (*Store, error) {
	if dims <= 0 {
		return nil, fmt.Errorf("refstore postgres: dimension must be positive, got %d", dims)
	}
	return &Store{db: db, dims: dims}, nil
}

// Connect establishes a connection pool to dsn, registers pgvector types on
// every connection, verifies connectivity and runs [Store.Migrate]. The
// returned store owns the pool; release it with [Store.Close].
func Connect(ctx context.Context, dsn string, dims int) (*Store, error) {
	if dims <= 0 {
		return nil, fmt.Errorf("refstore postgres: dimension must be positive, got %d", dims)
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("refstore postgres: parse dsn: %w", err)
	}
	// Register pgvector types so embedding columns scan into and insert
	// from pgvector.Vector values.
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("refstore postgres: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("refstore postgres: ping: %w", err)
	}

	s := &Store{db: pool, dims: dims, pool: pool}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the pool when the store owns one (see [Connect]).
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ping verifies the database is reachable. Used as a readiness check.
func (s *Store) Ping(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, "SELECT 1"); err != nil {
		return fmt.Errorf("refstore postgres: ping: %w", err)
	}
	return nil
}

// Dimensions implements [refstore.Store.Dimensions].
func (s *Store) Dimensions() int { return s.dims }

const insertSQL = `
	INSERT INTO reference_embeddings (id, intent, embedding, source, created_at)
	VALUES ($1, $2, $3, $4, $5)`

// Insert implements [refstore.Store.Insert].
func (s *Store) Insert(ctx context.Context, vector []float32, it intent.Intent, src refstore.Source) (string, error) {
	if !src.IsValid() {
		return "", fmt.Errorf("refstore postgres: unrecognised source %q", src)
	}
	rec := refstore.Record{Intent: it, Vector: vector, Source: src}
	if err := refstore.Validate(rec, s.dims); err != nil {
		return "", err
	}

	id := uuid.NewString()
	_, err := s.db.Exec(ctx, insertSQL, id, string(it), pgvector.NewVector(vector), string(src), time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("refstore postgres: insert: %w", err)
	}
	return id, nil
}

// Query implements [refstore.Store.Query]. The similarity is computed as
// 1 - cosine distance so that identical directions score 1.
func (s *Store) Query(ctx context.Context, vector []float32, k int) ([]refstore.Match, error) {
	if len(vector) != s.dims {
		return nil, &refstore.DimensionError{Got: len(vector), Want: s.dims}
	}
	if refstore.IsZeroVector(vector) {
		return nil, refstore.ErrZeroVector
	}
	if k <= 0 {
		return nil, nil
	}

	const q = `
		SELECT id, intent, 1 - (embedding <=> $1) AS similarity
		FROM   reference_embeddings
		ORDER  BY embedding <=> $1, created_at, id
		LIMIT  $2`

	rows, err := s.db.Query(ctx, q, pgvector.NewVector(vector), k)
	if err != nil {
		return nil, fmt.Errorf("refstore postgres: query: %w", err)
	}

	matches, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (refstore.Match, error) {
		var (
			m  refstore.Match
			it string
		)
		if err := row.Scan(&m.ID, &it, &m.Similarity); err != nil {
			return refstore.Match{}, err
		}
		m.Intent = intent.Intent(it)
		return m, nil
	})
	if err != nil {
		return nil, fmt.Errorf("refstore postgres: query: %w", err)
	}
	return matches, nil
}

// Centroid implements [refstore.Store.Centroid]. The mean is computed by
// the database; an intent with no records returns (nil, nil).
func (s *Store) Centroid(ctx context.Context, it intent.Intent) ([]float32, error) {
	const q = `
		SELECT AVG(embedding)
		FROM   reference_embeddings
		WHERE  intent = $1
		HAVING COUNT(*) > 0`

	var vec pgvector.Vector
	err := s.db.QueryRow(ctx, q, string(it)).Scan(&vec)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("refstore postgres: centroid: %w", err)
	}
	return vec.Slice(), nil
}

// CountByIntent implements [refstore.Store.CountByIntent].
func (s *Store) CountByIntent(ctx context.Context) (map[intent.Intent]int, error) {
	rows, err := s.db.Query(ctx, `SELECT intent, COUNT(*) FROM reference_embeddings GROUP BY intent`)
	if err != nil {
		return nil, fmt.Errorf("refstore postgres: count: %w", err)
	}
	defer rows.Close()

	counts := make(map[intent.Intent]int)
	for rows.Next() {
		var (
			it string
			n  int64
		)
		if err := rows.Scan(&it, &n); err != nil {
			return nil, fmt.Errorf("refstore postgres: count: %w", err)
		}
		counts[intent.Intent(it)] = int(n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("refstore postgres: count: %w", err)
	}
	return counts, nil
}

// All implements [refstore.Store.All].
func (s *Store) All(ctx context.Context) ([]refstore.Record, error) {
	const q = `
		SELECT id, intent, embedding, source, created_at
		FROM   reference_embeddings
		ORDER  BY created_at, id`

	rows, err := s.db.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("refstore postgres: all: %w", err)
	}

	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (refstore.Record, error) {
		var (
			rec refstore.Record
			it  string
			src string
			vec pgvector.Vector
		)
		if err := row.Scan(&rec.ID, &it, &vec, &src, &rec.CreatedAt); err != nil {
			return refstore.Record{}, err
		}
		rec.Intent = intent.Intent(it)
		rec.Source = refstore.Source(src)
		rec.Vector = vec.Slice()
		return rec, nil
	})
	if err != nil {
		return nil, fmt.Errorf("refstore postgres: all: %w", err)
	}
	return records, nil
}

// BulkImport implements [refstore.Store.BulkImport]. Valid records are sent
// as a single [pgx.Batch] pipeline; the import stops at the first invalid
// record or failed insert, returning how many landed before it.
func (s *Store) BulkImport(ctx context.Context, records []refstore.Record) (int, error) {
	batch := &pgx.Batch{}
	badIdx, badErr := -1, error(nil)
	for i, rec := range records {
		if err := refstore.Validate(rec, s.dims); err != nil {
			badIdx, badErr = i, err
			break
		}
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = time.Now().UTC()
		}
		if rec.Source == "" {
			rec.Source = refstore.SourceBootstrap
		}
		batch.Queue(insertSQL,
			rec.ID, string(rec.Intent), pgvector.NewVector(rec.Vector), string(rec.Source), rec.CreatedAt)
	}

	count := 0
	if batch.Len() > 0 {
		res := s.db.SendBatch(ctx, batch)
		var execErr error
		for i := 0; i < batch.Len(); i++ {
			if _, err := res.Exec(); err != nil {
				execErr = fmt.Errorf("refstore postgres: bulk import at index %d: %w", i, err)
				break
			}
			count++
		}
		closeErr := res.Close()
		if execErr != nil {
			return count, execErr
		}
		if closeErr != nil {
			return count, fmt.Errorf("refstore postgres: bulk import: %w", closeErr)
		}
	}

	if badErr != nil {
		return count, fmt.Errorf("refstore postgres: bulk import at index %d: %w", badIdx, badErr)
	}
	return count, nil
}

// Prune implements [refstore.Store.Prune].
func (s *Store) Prune(ctx context.Context, src refstore.Source, before time.Time) (int, error) {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM reference_embeddings WHERE source = $1 AND created_at < $2`,
		string(src), before)
	if err != nil {
		return 0, fmt.Errorf("refstore postgres: prune: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
