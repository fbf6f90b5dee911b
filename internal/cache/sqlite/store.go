package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"ragspan/internal/domain"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS embeddings (
		document_hash TEXT    NOT NULL,
		chunk_id      TEXT    NOT NULL,
		model         TEXT    NOT NULL,
		dimension     INTEGER NOT NULL,
		vector        BLOB    NOT NULL,
		created_at    INTEGER NOT NULL,
		PRIMARY KEY (document_hash, chunk_id, model)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_embeddings_model ON embeddings(model)`,
}

// Store is a SQLite-backed domain.CacheStore. Vectors are stored as
// little-endian float64 blobs so they read back bit-for-bit.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens (or creates) the cache database at path.
// If path is empty, defaults to ~/.cache/ragspan/embeddings.db.
func NewStore(path string) (*Store, error) {
	if path == "" {
		dir, err := os.UserCacheDir()
		if err != nil {
			return nil, fmt.Errorf("getting cache directory: %w", err)
		}
		path = filepath.Join(dir, "ragspan", "embeddings.db")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating schema: %w", err)
		}
	}
	return &Store{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Get(ctx context.Context, key domain.CacheKey) ([]float64, bool, error) {
	var (
		dim  int
		blob []byte
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT dimension, vector FROM embeddings WHERE document_hash = ? AND chunk_id = ? AND model = ?`,
		key.DocumentHash, key.ChunkID, key.Model,
	).Scan(&dim, &blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading embedding: %w", err)
	}
	vec, err := decodeVector(blob)
	if err != nil {
		return nil, false, err
	}
	if len(vec) != dim {
		return nil, false, fmt.Errorf("embedding %s has %d values, want %d", key.ChunkID, len(vec), dim)
	}
	return vec, true, nil
}

// Put inserts entry unless the key already exists. Entries are never updated.
func (s *Store) Put(ctx context.Context, entry domain.CacheEntry) error {
	created := entry.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO embeddings (document_hash, chunk_id, model, dimension, vector, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.Key.DocumentHash, entry.Key.ChunkID, entry.Key.Model,
		len(entry.Vector), encodeVector(entry.Vector), created.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("writing embedding: %w", err)
	}
	return nil
}

func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM embeddings`); err != nil {
		return fmt.Errorf("clearing embeddings: %w", err)
	}
	return nil
}

func (s *Store) PurgeStale(ctx context.Context, model string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM embeddings WHERE model <> ?`, model)
	if err != nil {
		return 0, fmt.Errorf("purging embeddings: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM embeddings`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting embeddings: %w", err)
	}
	return n, nil
}

func encodeVector(vec []float64) []byte {
	buf := make([]byte, len(vec)*8)
	for i, f := range vec {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(f))
	}
	return buf
}

func decodeVector(data []byte) ([]float64, error) {
	if len(data)%8 != 0 {
		return nil, fmt.Errorf("corrupt embedding blob of %d bytes", len(data))
	}
	vec := make([]float64, len(data)/8)
	for i := range vec {
		vec[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[i*8:]))
	}
	return vec, nil
}
