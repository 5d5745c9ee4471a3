package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository opens or creates the photo index at the given path.
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create index dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}

	r := &SQLiteRepository{db: db}

	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate index: %w", err)
	}

	return r, nil
}

func (r *SQLiteRepository) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS albums (
		id          TEXT PRIMARY KEY,
		title       TEXT NOT NULL,
		path        TEXT NOT NULL,
		image_count INTEGER NOT NULL DEFAULT 0,
		scanned_at  INTEGER
	);

	CREATE TABLE IF NOT EXISTS images (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		album_id    TEXT NOT NULL REFERENCES albums(id),
		path        TEXT NOT NULL UNIQUE,
		file_name   TEXT NOT NULL,
		captured_at INTEGER NOT NULL DEFAULT 0,
		width       INTEGER NOT NULL DEFAULT 0,
		height      INTEGER NOT NULL DEFAULT 0,
		size_bytes  INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_images_album ON images(album_id, captured_at);
	CREATE INDEX IF NOT EXISTS idx_images_captured ON images(captured_at);
	`
	_, err := r.db.Exec(schema)
	return err
}

func (r *SQLiteRepository) UpsertAlbum(ctx context.Context, album *Album) error {
	query := `
		INSERT INTO albums (id, title, path) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET title = excluded.title, path = excluded.path
	`
	if _, err := r.db.ExecContext(ctx, query, album.ID, album.Title, album.Path); err != nil {
		return fmt.Errorf("failed to upsert album %s: %w", album.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) MarkAlbumScanned(ctx context.Context, albumID string, scannedAt time.Time, imageCount int) error {
	query := `UPDATE albums SET scanned_at = ?, image_count = ? WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, scannedAt.UnixMilli(), imageCount, albumID); err != nil {
		return fmt.Errorf("failed to mark album %s scanned: %w", albumID, err)
	}
	return nil
}

func (r *SQLiteRepository) Album(ctx context.Context, id string) (*Album, error) {
	query := `SELECT id, title, path, image_count, scanned_at FROM albums WHERE id = ?`

	album, err := scanAlbum(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query album %s: %w", id, err)
	}
	return album, nil
}

func (r *SQLiteRepository) Albums(ctx context.Context) ([]Album, error) {
	query := `SELECT id, title, path, image_count, scanned_at FROM albums ORDER BY title, id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query albums: %w", err)
	}
	defer rows.Close()

	var albums []Album
	for rows.Next() {
		album, err := scanAlbum(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan album row: %w", err)
		}
		albums = append(albums, *album)
	}
	return albums, rows.Err()
}

func (r *SQLiteRepository) SearchAlbums(ctx context.Context, query string) ([]Album, error) {
	albums, err := r.Albums(ctx)
	if err != nil {
		return nil, err
	}

	// Match ignoring case and diacritics, which LIKE cannot do portably
	needle := NormalizeText(query)
	if needle == "" {
		return albums, nil
	}

	var matched []Album
	for _, album := range albums {
		if strings.Contains(NormalizeText(album.Title), needle) {
			matched = append(matched, album)
		}
	}
	return matched, nil
}

func (r *SQLiteRepository) UpsertImage(ctx context.Context, img *Image) (int64, error) {
	query := `
		INSERT INTO images (album_id, path, file_name, captured_at, width, height, size_bytes)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			album_id    = excluded.album_id,
			file_name   = excluded.file_name,
			captured_at = excluded.captured_at,
			width       = excluded.width,
			height      = excluded.height,
			size_bytes  = excluded.size_bytes
		RETURNING id
	`

	capturedAt := int64(0)
	if !img.CapturedAt.IsZero() {
		capturedAt = img.CapturedAt.UnixMilli()
	}

	var id int64
	err := r.db.QueryRowContext(ctx, query,
		img.AlbumID, img.Path, img.FileName, capturedAt, img.Width, img.Height, img.SizeBytes,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert image %s: %w", img.Path, err)
	}
	return id, nil
}

func (r *SQLiteRepository) Images(ctx context.Context, albumID string) ([]Image, error) {
	query := `
		SELECT id, album_id, path, file_name, captured_at, width, height, size_bytes
		FROM images
		WHERE album_id = ?
		ORDER BY captured_at, id
	`
	return r.queryImages(ctx, query, albumID)
}

func (r *SQLiteRepository) AllImages(ctx context.Context) ([]Image, error) {
	query := `
		SELECT id, album_id, path, file_name, captured_at, width, height, size_bytes
		FROM images
		ORDER BY captured_at, id
	`
	return r.queryImages(ctx, query)
}

func (r *SQLiteRepository) queryImages(ctx context.Context, query string, args ...any) ([]Image, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query images: %w", err)
	}
	defer rows.Close()

	var images []Image
	for rows.Next() {
		var img Image
		var capturedAt int64
		err := rows.Scan(&img.ID, &img.AlbumID, &img.Path, &img.FileName,
			&capturedAt, &img.Width, &img.Height, &img.SizeBytes)
		if err != nil {
			return nil, fmt.Errorf("failed to scan image row: %w", err)
		}
		if capturedAt != 0 {
			img.CapturedAt = time.UnixMilli(capturedAt)
		}
		images = append(images, img)
	}
	return images, rows.Err()
}

func (r *SQLiteRepository) PruneImages(ctx context.Context, albumID string, keep []string) (int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, path FROM images WHERE album_id = ?`, albumID)
	if err != nil {
		return 0, fmt.Errorf("failed to query album images: %w", err)
	}
	defer rows.Close()

	keepSet := make(map[string]struct{}, len(keep))
	for _, path := range keep {
		keepSet[path] = struct{}{}
	}

	var stale []int64
	for rows.Next() {
		var id int64
		var path string
		if err := rows.Scan(&id, &path); err != nil {
			return 0, fmt.Errorf("failed to scan image row: %w", err)
		}
		if _, ok := keepSet[path]; !ok {
			stale = append(stale, id)
		}
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	// Delete in chunks to stay under the SQLite parameter limit
	const chunkSize = 500
	for start := 0; start < len(stale); start += chunkSize {
		end := min(start+chunkSize, len(stale))
		chunk := stale[start:end]

		placeholders := strings.Repeat("?,", len(chunk))
		placeholders = placeholders[:len(placeholders)-1]
		args := make([]any, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}

		query := fmt.Sprintf(`DELETE FROM images WHERE id IN (%s)`, placeholders)
		if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
			return 0, fmt.Errorf("failed to prune images: %w", err)
		}
	}

	return len(stale), nil
}

func (r *SQLiteRepository) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM albums`).Scan(&stats.Albums)
	if err != nil {
		return nil, fmt.Errorf("failed to count albums: %w", err)
	}

	var totalBytes, oldest, newest sql.NullInt64
	query := `SELECT COUNT(*), SUM(size_bytes), MIN(captured_at), MAX(captured_at) FROM images`
	err = r.db.QueryRowContext(ctx, query).Scan(&stats.Images, &totalBytes, &oldest, &newest)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate images: %w", err)
	}

	stats.TotalBytes = totalBytes.Int64
	if oldest.Valid && oldest.Int64 != 0 {
		stats.OldestCapture = time.UnixMilli(oldest.Int64)
	}
	if newest.Valid && newest.Int64 != 0 {
		stats.NewestCapture = time.UnixMilli(newest.Int64)
	}
	return stats, nil
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

// scanner abstracts *sql.Row and *sql.Rows for shared scan code.
type scanner interface {
	Scan(dest ...any) error
}

func scanAlbum(row scanner) (*Album, error) {
	var album Album
	var scannedAt sql.NullInt64

	err := row.Scan(&album.ID, &album.Title, &album.Path, &album.ImageCount, &scannedAt)
	if err != nil {
		return nil, err
	}

	if scannedAt.Valid && scannedAt.Int64 != 0 {
		album.ScannedAt = time.UnixMilli(scannedAt.Int64)
	}
	return &album, nil
}
