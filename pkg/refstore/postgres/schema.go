package postgres

import (
	"context"
	"fmt"
)

// ddl returns the reference_embeddings DDL with the vector dimension
// substituted. The dimension is baked into the column type at schema
// creation time; changing it later requires a manual schema change plus a
// re-import of the reference snapshot.
func ddl(dims int) string {
	return fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS reference_embeddings (
    id         TEXT         PRIMARY KEY,
    intent     TEXT         NOT NULL,
    embedding  vector(%d)   NOT NULL,
    source     TEXT         NOT NULL DEFAULT 'bootstrap',
    created_at TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_reference_embeddings_intent
    ON reference_embeddings (intent);

CREATE INDEX IF NOT EXISTS idx_reference_embeddings_source_created
    ON reference_embeddings (source, created_at);

CREATE INDEX IF NOT EXISTS idx_reference_embeddings_embedding
    ON reference_embeddings USING hnsw (embedding vector_cosine_ops);
`, dims)
}

// Migrate creates or ensures the reference_embeddings table, its indexes and
// the pgvector extension. It is idempotent and safe to run on every start.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, ddl(s.dims)); err != nil {
		return fmt.Errorf("refstore postgres: migrate: %w", err)
	}
	return nil
}
