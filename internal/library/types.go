// Package library maintains the photo index: albums discovered on disk and
// the per-photo metadata (capture time, dimensions, file size) the grouping
// and recommendation engines work with.
package library

import (
	"time"
)

// Image is one indexed photo file. The ID is assigned by the index on first
// sight of the path and stays stable across rescans.
type Image struct {
	ID         int64
	AlbumID    string
	Path       string
	FileName   string
	CapturedAt time.Time // best available capture time: EXIF, filename pattern, or file mtime
	Width      int       // 0 when dimensions could not be read
	Height     int       // 0 when dimensions could not be read
	SizeBytes  int64
}

// AspectRatio returns width divided by height, or 0 when either dimension
// is unknown.
func (img *Image) AspectRatio() float64 {
	if img.Width <= 0 || img.Height <= 0 {
		return 0
	}
	return float64(img.Width) / float64(img.Height)
}

// Album is a first-level directory under a library root.
type Album struct {
	ID         string // slug derived from the directory name
	Title      string // directory name as found on disk
	Path       string
	ImageCount int
	ScannedAt  time.Time // zero until the first completed scan
}

// Stats summarizes the index content.
type Stats struct {
	Albums        int
	Images        int
	TotalBytes    int64
	OldestCapture time.Time
	NewestCapture time.Time
}
