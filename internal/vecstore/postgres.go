package vecstore

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"docpipe/internal/log"
)

// tablePattern is what a derived table name must match after
// sanitization. Anything else would require identifier quoting games.
var tablePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Postgres is an Index backed by PostgreSQL with the pgvector extension.
// The table and its similarity index are created lazily on first use,
// so merely constructing an Index never touches the database.
type Postgres struct {
	pool      *pgxpool.Pool
	table     string
	dimension int
	log       log.Logger

	mu    sync.Mutex
	ready bool
}

// NewPostgres creates an Index bound to the table derived from name.
// The schema is not touched until the first operation.
func NewPostgres(pool *pgxpool.Pool, name string, dimension int, logger log.Logger) (*Postgres, error) {
	if pool == nil {
		return nil, fmt.Errorf("vecstore: nil pool: %w", ErrUnavailable)
	}
	if dimension <= 0 {
		return nil, fmt.Errorf("vecstore: dimension must be positive, got %d", dimension)
	}
	table, err := tableName(name)
	if err != nil {
		return nil, err
	}
	return &Postgres{pool: pool, table: table, dimension: dimension, log: logger}, nil
}

// PostgresOpener returns an Opener that partitions indexes into separate
// tables in the same database.
func PostgresOpener(pool *pgxpool.Pool, dimension int, logger log.Logger) Opener {
	return func(_ context.Context, name string) (Index, error) {
		return NewPostgres(pool, name, dimension, logger)
	}
}

// tableName maps an index name like "connector-docs" to a safe SQL
// identifier like "vec_connector_docs".
func tableName(name string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(name))
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_' || r == ' ' || r == '.':
			b.WriteByte('_')
		}
	}
	table := "vec_" + b.String()
	if !tablePattern.MatchString(table) || table == "vec_" {
		return "", fmt.Errorf("vecstore: index name %q yields no usable table name", name)
	}
	return table, nil
}

// ensure creates the extension, table and similarity index once.
func (p *Postgres) ensure(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ready {
		return nil
	}

	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			embedding vector(%d) NOT NULL,
			metadata JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, p.table, p.dimension),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_embedding_idx
			ON %s USING hnsw (embedding vector_cosine_ops)`, p.table, p.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_metadata_idx
			ON %s USING gin (metadata)`, p.table, p.table),
	}
	for _, stmt := range stmts {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure %s: %w", p.table, err)
		}
	}

	p.log.Debug("vector table ready", "table", p.table, "dimension", p.dimension)
	p.ready = true
	return nil
}

func (p *Postgres) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := p.ensure(ctx); err != nil {
		return err
	}

	sql := fmt.Sprintf(`INSERT INTO %s (id, content, embedding, metadata)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding,
			metadata = EXCLUDED.metadata`, p.table)

	batch := &pgx.Batch{}
	for _, r := range records {
		if r.ID == "" {
			return fmt.Errorf("vecstore: record with empty ID")
		}
		if len(r.Vector) != p.dimension {
			return fmt.Errorf("vecstore: record %s has dimension %d, want %d", r.ID, len(r.Vector), p.dimension)
		}
		meta, err := json.Marshal(r.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata for %s: %w", r.ID, err)
		}
		batch.Queue(sql, r.ID, r.Text, pgvector.NewVector(r.Vector), meta)
	}

	results := p.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range records {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("upsert into %s: %w", p.table, err)
		}
	}
	return nil
}

func (p *Postgres) Query(ctx context.Context, vector []float32, topK int, filters ...Filter) ([]Match, error) {
	for _, f := range filters {
		if err := f.validate(); err != nil {
			return nil, err
		}
	}
	if topK <= 0 {
		return nil, nil
	}
	if err := p.ensure(ctx); err != nil {
		return nil, err
	}

	var where strings.Builder
	args := []any{pgvector.NewVector(vector)}
	for _, f := range filters {
		op := "="
		if f.Op == OpNe {
			op = "IS DISTINCT FROM"
		}
		if where.Len() == 0 {
			where.WriteString(" WHERE ")
		} else {
			where.WriteString(" AND ")
		}
		fmt.Fprintf(&where, "metadata->>$%d %s $%d", len(args)+1, op, len(args)+2)
		args = append(args, f.Key, f.Value)
	}
	args = append(args, topK)

	sql := fmt.Sprintf(`SELECT id, content, embedding, metadata,
			1 - (embedding <=> $1) AS similarity
		FROM %s%s
		ORDER BY embedding <=> $1, id
		LIMIT $%d`, p.table, where.String(), len(args))

	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", p.table, err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var (
			m    Match
			vec  pgvector.Vector
			meta []byte
		)
		if err := rows.Scan(&m.ID, &m.Text, &vec, &meta, &m.Score); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		m.Vector = vec.Slice()
		if err := json.Unmarshal(meta, &m.Metadata); err != nil {
			p.log.Warn("bad metadata", "table", p.table, "id", m.ID, "error", err)
			m.Metadata = map[string]string{}
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query %s: %w", p.table, err)
	}
	return matches, nil
}

func (p *Postgres) Fetch(ctx context.Context, ids []string) ([]Record, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if err := p.ensure(ctx); err != nil {
		return nil, err
	}

	sql := fmt.Sprintf(`SELECT id, content, embedding, metadata FROM %s WHERE id = ANY($1)`, p.table)
	rows, err := p.pool.Query(ctx, sql, ids)
	if err != nil {
		return nil, fmt.Errorf("fetch from %s: %w", p.table, err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			r    Record
			vec  pgvector.Vector
			meta []byte
		)
		if err := rows.Scan(&r.ID, &r.Text, &vec, &meta); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		r.Vector = vec.Slice()
		if err := json.Unmarshal(meta, &r.Metadata); err != nil {
			r.Metadata = map[string]string{}
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fetch from %s: %w", p.table, err)
	}
	return records, nil
}

func (p *Postgres) DeleteAll(ctx context.Context) error {
	if err := p.ensure(ctx); err != nil {
		return err
	}
	if _, err := p.pool.Exec(ctx, "TRUNCATE TABLE "+p.table); err != nil {
		return fmt.Errorf("truncate %s: %w", p.table, err)
	}
	return nil
}

func (p *Postgres) Stats(ctx context.Context) (Stats, error) {
	if err := p.ensure(ctx); err != nil {
		return Stats{}, err
	}
	var count int
	if err := p.pool.QueryRow(ctx, "SELECT count(*) FROM "+p.table).Scan(&count); err != nil {
		return Stats{}, fmt.Errorf("count %s: %w", p.table, err)
	}
	return Stats{VectorCount: count, Dimension: p.dimension}, nil
}
