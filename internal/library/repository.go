package library

import (
	"context"
	"time"
)

// Repository provides access to the photo index.
type Repository interface {
	// UpsertAlbum inserts or updates an album record.
	UpsertAlbum(ctx context.Context, album *Album) error

	// MarkAlbumScanned records a completed scan of an album.
	MarkAlbumScanned(ctx context.Context, albumID string, scannedAt time.Time, imageCount int) error

	// Album retrieves an album by ID, returns nil if not found.
	Album(ctx context.Context, id string) (*Album, error)

	// Albums returns all albums ordered by title.
	Albums(ctx context.Context) ([]Album, error)

	// SearchAlbums returns albums whose title matches the query,
	// ignoring case and diacritics.
	SearchAlbums(ctx context.Context, query string) ([]Album, error)

	// UpsertImage inserts or updates an image by path and returns its
	// stable ID. Rescans of an existing path keep the original ID.
	UpsertImage(ctx context.Context, img *Image) (int64, error)

	// Images returns all images of an album ordered by capture time,
	// ties broken by ID.
	Images(ctx context.Context, albumID string) ([]Image, error)

	// AllImages returns every indexed image ordered by capture time,
	// ties broken by ID.
	AllImages(ctx context.Context) ([]Image, error)

	// PruneImages removes index entries of an album whose path is not in
	// keep. Returns the number of removed entries.
	PruneImages(ctx context.Context, albumID string, keep []string) (int, error)

	// Stats returns aggregate counts over the whole index.
	Stats(ctx context.Context) (*Stats, error)

	// Close releases the underlying database.
	Close() error
}
