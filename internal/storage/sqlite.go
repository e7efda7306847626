package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/semindex/semindex/pkg/types"
)

// Meta keys recording which model the embedding table belongs to.
const (
	metaModelID   = "model_id"
	metaDimension = "dimension"
)

// SQLiteStorage implements the Storage interface using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings.
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// WAL mode lets readers observe a consistent snapshot while one writer
	// commits, which is how search stays consistent during updates.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite benefits from single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage creates a new SQLite storage instance.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// IndexState returns the persisted path to fingerprint mapping.
func (s *SQLiteStorage) IndexState(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT path, fingerprint FROM files")
	if err != nil {
		return nil, fmt.Errorf("read index state: %w", err)
	}
	defer func() { _ = rows.Close() }()

	state := make(map[string]string)
	for rows.Next() {
		var path, fingerprint string
		if err := rows.Scan(&path, &fingerprint); err != nil {
			return nil, err
		}
		state[path] = fingerprint
	}

	return state, rows.Err()
}

// CommitFile writes a file's chunks, new embeddings, and fingerprint in one
// transaction. The IndexState row lands in the same commit as its chunks and
// embeddings, so a crash mid-update leaves the file safely unindexed.
func (s *SQLiteStorage) CommitFile(ctx context.Context, file *FileRecord, chunks []types.Chunk, vectors map[string][]float32, modelID string, dimension int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin commit: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.ensureModelMeta(ctx, tx, modelID, dimension); err != nil {
		return err
	}

	// Replace chunks wholesale; the file row must exist first for the FK.
	now := time.Now()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO files (path, fingerprint, language, mod_time, size_bytes, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			fingerprint = excluded.fingerprint,
			language = excluded.language,
			mod_time = excluded.mod_time,
			size_bytes = excluded.size_bytes,
			indexed_at = excluded.indexed_at
	`, file.Path, file.Fingerprint, file.Language, file.ModTime, file.SizeBytes, now); err != nil {
		return fmt.Errorf("upsert file %s: %w", file.Path, err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE file_path = ?", file.Path); err != nil {
		return fmt.Errorf("delete old chunks for %s: %w", file.Path, err)
	}

	for _, chunk := range chunks {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO chunks (file_path, chunk_index, start_line, end_line, content, content_hash, language)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, chunk.FilePath, chunk.Index, chunk.StartLine, chunk.EndLine, chunk.Content, chunk.ContentHash, chunk.Language); err != nil {
			return fmt.Errorf("insert chunk %s[%d]: %w", chunk.FilePath, chunk.Index, err)
		}

		vec, ok := vectors[chunk.ContentHash]
		if !ok {
			continue // already stored in a previous cycle
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO embeddings (content_hash, model_id, dimension, vector)
			VALUES (?, ?, ?, ?)
		`, chunk.ContentHash, modelID, len(vec), serializeVector(vec)); err != nil {
			return fmt.Errorf("insert embedding %s: %w", chunk.ContentHash, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit file %s: %w", file.Path, err)
	}

	return nil
}

// ensureModelMeta records the active model on first write and rejects writes
// from a different model afterwards. Vectors of different models are never
// mixed in one table.
func (s *SQLiteStorage) ensureModelMeta(ctx context.Context, tx *sql.Tx, modelID string, dimension int) error {
	var stored string
	err := tx.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = ?", metaModelID).Scan(&stored)
	switch {
	case err == sql.ErrNoRows:
		if _, err := tx.ExecContext(ctx, "INSERT INTO meta (key, value) VALUES (?, ?)", metaModelID, modelID); err != nil {
			return fmt.Errorf("record model id: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO meta (key, value) VALUES (?, ?)", metaDimension, strconv.Itoa(dimension)); err != nil {
			return fmt.Errorf("record dimension: %w", err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("read model id: %w", err)
	case stored != modelID:
		return fmt.Errorf("%w: index built with %s, active model is %s", types.ErrModelMismatch, stored, modelID)
	default:
		return nil
	}
}

// DeleteFile removes a file and, via FK cascade, its chunks.
func (s *SQLiteStorage) DeleteFile(ctx context.Context, path string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM files WHERE path = ?", path)
	if err != nil {
		return fmt.Errorf("delete file %s: %w", path, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

// GCEmbeddings removes embeddings whose content hash no longer appears in any
// chunk. An embedding shared with a surviving chunk is untouched.
func (s *SQLiteStorage) GCEmbeddings(ctx context.Context) (int, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM embeddings
		WHERE content_hash NOT IN (SELECT DISTINCT content_hash FROM chunks)
	`)
	if err != nil {
		return 0, fmt.Errorf("gc embeddings: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}

	return int(affected), nil
}

// MissingEmbeddings returns the subset of hashes with no stored vector for
// modelID, preserving the input order.
func (s *SQLiteStorage) MissingEmbeddings(ctx context.Context, hashes []string, modelID string) ([]string, error) {
	if len(hashes) == 0 {
		return nil, nil
	}

	present := make(map[string]bool, len(hashes))

	// Chunk the IN clause to stay under SQLite's parameter limit.
	const chunkSize = 500
	for start := 0; start < len(hashes); start += chunkSize {
		end := start + chunkSize
		if end > len(hashes) {
			end = len(hashes)
		}
		batch := hashes[start:end]

		placeholders := strings.Repeat("?,", len(batch))
		placeholders = placeholders[:len(placeholders)-1]

		args := make([]interface{}, 0, len(batch)+1)
		for _, h := range batch {
			args = append(args, h)
		}
		args = append(args, modelID)

		rows, err := s.db.QueryContext(ctx,
			"SELECT content_hash FROM embeddings WHERE content_hash IN ("+placeholders+") AND model_id = ?",
			args...)
		if err != nil {
			return nil, fmt.Errorf("check stored embeddings: %w", err)
		}

		for rows.Next() {
			var h string
			if err := rows.Scan(&h); err != nil {
				_ = rows.Close()
				return nil, err
			}
			present[h] = true
		}
		if err := rows.Err(); err != nil {
			_ = rows.Close()
			return nil, err
		}
		_ = rows.Close()
	}

	missing := make([]string, 0, len(hashes))
	for _, h := range hashes {
		if !present[h] {
			missing = append(missing, h)
		}
	}

	return missing, nil
}

// ActiveModel returns the model the embedding table was built with.
func (s *SQLiteStorage) ActiveModel(ctx context.Context) (string, int, error) {
	var modelID string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = ?", metaModelID).Scan(&modelID)
	if err == sql.ErrNoRows {
		return "", 0, ErrNotFound
	}
	if err != nil {
		return "", 0, fmt.Errorf("read model id: %w", err)
	}

	var dimStr string
	err = s.db.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = ?", metaDimension).Scan(&dimStr)
	if err == sql.ErrNoRows {
		return modelID, 0, nil
	}
	if err != nil {
		return "", 0, fmt.Errorf("read dimension: %w", err)
	}

	dimension, err := strconv.Atoi(dimStr)
	if err != nil {
		return "", 0, fmt.Errorf("parse stored dimension %q: %w", dimStr, err)
	}

	return modelID, dimension, nil
}

// Reset drops all index content for a full rebuild.
func (s *SQLiteStorage) Reset(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reset: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range []string{
		"DELETE FROM chunks",
		"DELETE FROM files",
		"DELETE FROM embeddings",
		"DELETE FROM meta",
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("reset: %w", err)
		}
	}

	return tx.Commit()
}

// Stats reports index statistics.
func (s *SQLiteStorage) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM files").Scan(&stats.Files); err != nil {
		return nil, fmt.Errorf("count files: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&stats.Chunks); err != nil {
		return nil, fmt.Errorf("count chunks: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM embeddings").Scan(&stats.Embeddings); err != nil {
		return nil, fmt.Errorf("count embeddings: %w", err)
	}

	modelID, dimension, err := s.ActiveModel(ctx)
	if err != nil && err != ErrNotFound {
		return nil, err
	}
	stats.ModelID = modelID
	stats.Dimension = dimension

	return stats, nil
}
