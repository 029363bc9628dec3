package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"framepick/internal/frame"
	"framepick/internal/logging"
	"framepick/internal/metrics"
)

// schemaVersion is bumped whenever the table layout changes. A stored
// database with a different version is wiped and recreated.
const schemaVersion = "1"

// defaultTimeout bounds individual store queries.
const defaultTimeout = 5 * time.Second

// ErrNotFound is returned when a frame, thumbnail, or metadata row does
// not exist.
var ErrNotFound = errors.New("frame not found")

// Store manages the persistent frame database for one session.
type Store struct {
	db     *sql.DB
	dbPath string

	// mu serializes Clear/Recreate against in-flight batch writers. A
	// just-cancelled extraction may still be draining its final batch
	// when the caller clears the store for a new video.
	mu sync.RWMutex

	thumbs *thumbQueue
}

// New opens (or creates) the frame database at dbPath. A schema version
// mismatch or corrupt file is resolved destructively.
func New(ctx context.Context, dbPath string) (*Store, error) {
	s := &Store{dbPath: dbPath}
	s.thumbs = newThumbQueue(s)

	if err := s.open(ctx); err != nil {
		if !isCorruptionError(err) {
			return nil, err
		}
		logging.Warn("Frame store at %s is corrupt (%v), recreating", dbPath, err)
		if err := s.Recreate(ctx); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) open(ctx context.Context) error {
	// WAL keeps readers (thumbnail cache, export) unblocked while the
	// extractor commits batches.
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000&_temp_store=MEMORY&_busy_timeout=5000", s.dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return fmt.Errorf("failed to open frame store: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close store after ping failure: %v", closeErr)
		}
		return fmt.Errorf("failed to connect to frame store: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	s.db = db

	if err := s.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close store after init failure: %v", closeErr)
		}
		s.db = nil
		return fmt.Errorf("failed to initialize frame store schema: %w", err)
	}

	logging.Info("Frame store ready at %s", s.dbPath)
	return nil
}

func (s *Store) initialize(ctx context.Context) error {
	schema := `
	-- Full frame payloads
	CREATE TABLE IF NOT EXISTS frames (
		id TEXT PRIMARY KEY,
		data BLOB NOT NULL,
		timestamp_ms INTEGER NOT NULL,
		stored_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE INDEX IF NOT EXISTS idx_frames_timestamp ON frames(timestamp_ms);

	-- Lightweight projection used for listing, sorting, and charting
	CREATE TABLE IF NOT EXISTS frame_metadata (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		timestamp_ms INTEGER NOT NULL,
		format TEXT NOT NULL,
		sharpness_score REAL,
		selected INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_frame_metadata_timestamp ON frame_metadata(timestamp_ms);

	-- Small preview renditions
	CREATE TABLE IF NOT EXISTS thumbnails (
		id TEXT PRIMARY KEY,
		data BLOB NOT NULL
	);

	CREATE TABLE IF NOT EXISTS store_info (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return err
	}

	var version string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM store_info WHERE key = 'schema_version'`).Scan(&version)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO store_info (key, value) VALUES ('schema_version', ?)`, schemaVersion)
		return err
	case err != nil:
		return err
	case version != schemaVersion:
		return fmt.Errorf("schema version mismatch: have %s, want %s", version, schemaVersion)
	}
	return nil
}

// Close drains background thumbnail work and closes the database.
func (s *Store) Close() error {
	s.thumbs.drain()
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Put persists one frame (payload, metadata, best-effort thumbnail) in
// a single transaction.
func (s *Store) Put(ctx context.Context, sf *frame.StoredFrame) error {
	return s.PutBatch(ctx, []frame.StoredFrame{*sf})
}

// smallBatchThreshold is the largest batch whose thumbnails are
// generated synchronously inside the caller's write.
const smallBatchThreshold = 8

// PutBatch persists a batch of frames in one transaction across the
// frames and metadata tables. Thumbnails for small batches are written
// synchronously; larger batches enqueue background generation so the
// extraction loop is not stalled by resizing.
func (s *Store) PutBatch(ctx context.Context, frames []frame.StoredFrame) error {
	if len(frames) == 0 {
		return nil
	}

	gen := s.thumbs.generation()
	if err := s.commitBatch(ctx, frames); err != nil {
		return err
	}

	if len(frames) <= smallBatchThreshold {
		for i := range frames {
			s.writeThumbnail(ctx, gen, frames[i].ID, frames[i].Data)
		}
	} else {
		s.thumbs.enqueue(gen, frames)
	}

	return nil
}

// commitBatch writes payloads and metadata in one transaction while
// holding the read lock, so Clear cannot interleave with a half-written
// batch.
func (s *Store) commitBatch(ctx context.Context, frames []frame.StoredFrame) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start := time.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		metrics.StoreQueryTotal.WithLabelValues("put_batch", "error").Inc()
		return fmt.Errorf("failed to begin batch transaction: %w", err)
	}

	err = func() error {
		frameStmt, err := tx.PrepareContext(ctx,
			`INSERT OR REPLACE INTO frames (id, data, timestamp_ms, stored_at) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer frameStmt.Close()

		metaStmt, err := tx.PrepareContext(ctx,
			`INSERT OR REPLACE INTO frame_metadata (id, name, timestamp_ms, format, sharpness_score, selected)
			 VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer metaStmt.Close()

		for i := range frames {
			f := &frames[i]
			storedAt := f.StoredAt
			if storedAt.IsZero() {
				storedAt = time.Now()
			}
			if _, err := frameStmt.ExecContext(ctx, f.ID, f.Data, f.Timestamp.Milliseconds(), storedAt.Unix()); err != nil {
				return fmt.Errorf("frame %s: %w", f.ID, err)
			}
			if _, err := metaStmt.ExecContext(ctx, f.ID, f.Name, f.Timestamp.Milliseconds(),
				string(f.Format), f.SharpnessScore, boolToInt(f.Selected)); err != nil {
				return fmt.Errorf("metadata %s: %w", f.ID, err)
			}
		}
		return nil
	}()

	if err != nil {
		metrics.StoreTransactionDuration.WithLabelValues("rollback").Observe(time.Since(start).Seconds())
		metrics.StoreQueryTotal.WithLabelValues("put_batch", "error").Inc()
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback also failed: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		metrics.StoreTransactionDuration.WithLabelValues("rollback").Observe(time.Since(start).Seconds())
		metrics.StoreQueryTotal.WithLabelValues("put_batch", "error").Inc()
		return fmt.Errorf("failed to commit batch: %w", err)
	}

	metrics.StoreTransactionDuration.WithLabelValues("commit").Observe(time.Since(start).Seconds())
	metrics.StoreQueryTotal.WithLabelValues("put_batch", "success").Inc()
	return nil
}

// GetBlob returns the full encoded payload for a frame.
func (s *Store) GetBlob(ctx context.Context, id string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM frames WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		metrics.StoreQueryTotal.WithLabelValues("get_blob", "miss").Inc()
		return nil, ErrNotFound
	}
	if err != nil {
		metrics.StoreQueryTotal.WithLabelValues("get_blob", "error").Inc()
		return nil, fmt.Errorf("failed to read frame %s: %w", id, err)
	}
	metrics.StoreQueryTotal.WithLabelValues("get_blob", "success").Inc()
	return data, nil
}

// GetThumbnail returns the stored thumbnail for a frame, or ErrNotFound
// if one has not been generated yet.
func (s *Store) GetThumbnail(ctx context.Context, id string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM thumbnails WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		metrics.StoreQueryTotal.WithLabelValues("get_thumbnail", "miss").Inc()
		return nil, ErrNotFound
	}
	if err != nil {
		metrics.StoreQueryTotal.WithLabelValues("get_thumbnail", "error").Inc()
		return nil, fmt.Errorf("failed to read thumbnail %s: %w", id, err)
	}
	metrics.StoreQueryTotal.WithLabelValues("get_thumbnail", "success").Inc()
	return data, nil
}

// PutThumbnail stores a thumbnail for a frame.
func (s *Store) PutThumbnail(ctx context.Context, id string, data []byte) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO thumbnails (id, data) VALUES (?, ?)`, id, data)
	if err != nil {
		return fmt.Errorf("failed to write thumbnail %s: %w", id, err)
	}
	return nil
}

// AllMetadata returns the metadata projection for every stored frame in
// timestamp order. This is the authoritative ordering for downstream
// consumers.
func (s *Store) AllMetadata(ctx context.Context) ([]frame.Frame, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, timestamp_ms, format, sharpness_score, selected
		 FROM frame_metadata ORDER BY timestamp_ms ASC, id ASC`)
	if err != nil {
		metrics.StoreQueryTotal.WithLabelValues("all_metadata", "error").Inc()
		return nil, fmt.Errorf("failed to list frame metadata: %w", err)
	}
	defer rows.Close()

	var out []frame.Frame
	for rows.Next() {
		var (
			f        frame.Frame
			tsMillis int64
			format   string
			score    sql.NullFloat64
			selected int
		)
		if err := rows.Scan(&f.ID, &f.Name, &tsMillis, &format, &score, &selected); err != nil {
			return nil, fmt.Errorf("failed to scan frame metadata: %w", err)
		}
		f.Timestamp = time.Duration(tsMillis) * time.Millisecond
		f.Format = frame.Format(format)
		if score.Valid {
			f.SetScore(score.Float64)
		}
		f.Selected = selected != 0
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	metrics.StoreQueryTotal.WithLabelValues("all_metadata", "success").Inc()
	return out, nil
}

// UpdateScore attaches a sharpness score to a stored frame's metadata.
func (s *Store) UpdateScore(ctx context.Context, id string, score float64) error {
	return s.exec(ctx, "update_score",
		`UPDATE frame_metadata SET sharpness_score = ? WHERE id = ?`, score, id)
}

// SetSelected persists a manual selection toggle.
func (s *Store) SetSelected(ctx context.Context, id string, selected bool) error {
	return s.exec(ctx, "set_selected",
		`UPDATE frame_metadata SET selected = ? WHERE id = ?`, boolToInt(selected), id)
}

// Delete removes one frame from all three tables.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, q := range []string{
		`DELETE FROM frames WHERE id = ?`,
		`DELETE FROM frame_metadata WHERE id = ?`,
		`DELETE FROM thumbnails WHERE id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, id); err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				return errors.Join(err, rbErr)
			}
			return fmt.Errorf("failed to delete frame %s: %w", id, err)
		}
	}
	return tx.Commit()
}

// DeleteOlderThan removes frames stored before the cutoff and returns
// the number removed. Used by age-based sweeps.
func (s *Store) DeleteOlderThan(ctx context.Context, age time.Duration) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := time.Now().Add(-age).Unix()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM frames WHERE stored_at < ?`, cutoff)
	if err == nil {
		_, err = tx.ExecContext(ctx,
			`DELETE FROM frame_metadata WHERE id NOT IN (SELECT id FROM frames)`)
	}
	if err == nil {
		_, err = tx.ExecContext(ctx,
			`DELETE FROM thumbnails WHERE id NOT IN (SELECT id FROM frames)`)
	}
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return 0, errors.Join(err, rbErr)
		}
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}

	n, _ := res.RowsAffected()
	return int(n), nil
}

// Count returns the number of stored frames.
func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM frames`).Scan(&n)
	return n, err
}

// Clear wipes all three tables. It is safe to call while a cancelled
// extraction's final batch write is still draining; the exclusive lock
// orders the clear after any in-flight batch.
func (s *Store) Clear(ctx context.Context) error {
	s.thumbs.invalidate()

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	for _, table := range []string{"frames", "frame_metadata", "thumbnails"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			metrics.StoreQueryTotal.WithLabelValues("clear", "error").Inc()
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	metrics.StoreQueryTotal.WithLabelValues("clear", "success").Inc()
	logging.Debug("Frame store cleared")
	return nil
}

// Recreate destroys and reopens the database. Destructive recovery for
// corruption or a schema version bump.
func (s *Store) Recreate(ctx context.Context) error {
	s.thumbs.invalidate()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			logging.Warn("failed to close store before recreate: %v", err)
		}
		s.db = nil
	}

	for _, suffix := range []string{"", "-wal", "-shm"} {
		path := s.dbPath + suffix
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", path, err)
		}
	}

	metrics.StoreRecreations.Inc()
	logging.Info("Recreating frame store at %s", s.dbPath)
	return s.open(ctx)
}

// writeThumbnail generates and stores a thumbnail. Failures are logged
// and counted, never propagated: thumbnail writes are best-effort by
// contract. A generation bump (Clear/Recreate after the parent batch
// committed) turns the write into a no-op instead of an orphan row.
func (s *Store) writeThumbnail(ctx context.Context, gen int64, id string, data []byte) {
	thumb, err := thumbnailFor(data)
	if err != nil {
		metrics.StoreThumbnailWrites.WithLabelValues("generate_error").Inc()
		logging.Debug("thumbnail generation failed for %s: %v", id, err)
		return
	}
	if s.thumbs.generation() != gen {
		logging.Debug("skipping thumbnail for %s: store cleared", id)
		return
	}
	if err := s.PutThumbnail(ctx, id, thumb); err != nil {
		metrics.StoreThumbnailWrites.WithLabelValues("write_error").Inc()
		logging.Warn("thumbnail write failed for %s: %v", id, err)
		return
	}
	metrics.StoreThumbnailWrites.WithLabelValues("success").Inc()
}

func (s *Store) exec(ctx context.Context, op, query string, args ...any) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		metrics.StoreQueryTotal.WithLabelValues(op, "error").Inc()
		return fmt.Errorf("%s failed: %w", op, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		metrics.StoreQueryTotal.WithLabelValues(op, "miss").Inc()
		return ErrNotFound
	}
	metrics.StoreQueryTotal.WithLabelValues(op, "success").Inc()
	return nil
}

func isCorruptionError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "malformed") ||
		strings.Contains(msg, "not a database") ||
		strings.Contains(msg, "schema version mismatch")
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
