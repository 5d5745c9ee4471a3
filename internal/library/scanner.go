package library

import (
	"context"
	"fmt"
	"image"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rwcarlsen/goexif/exif"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// photoExts contains supported photo file extensions. RAW and HEIC files are
// indexed too; their dimensions stay unknown because no decoder is registered.
var photoExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
	".heic": true,
	".hif":  true, // Apple HEIF (alternate extension)
	".dng":  true, // Adobe Digital Negative
	".arw":  true, // Sony RAW
	".cr2":  true, // Canon RAW
	".nef":  true, // Nikon RAW
	".raf":  true, // Fujifilm RAW
}

// datePatterns contains regex patterns for extracting capture times from
// filenames, tried in order. The layout uses Go's reference time.
var datePatterns = []struct {
	regex  *regexp.Regexp
	layout string
}{
	// DJI drone: DJI_20250619224111_0001_D.JPG
	{regexp.MustCompile(`DJI_(\d{14})`), "20060102150405"},
	// Generic timestamp: IMG_20240315_123456.jpg, PXL_20240315_123456789.jpg
	{regexp.MustCompile(`(\d{8}_\d{6})`), "20060102_150405"},
	// WhatsApp: IMG-20240315-WA0001.jpg
	{regexp.MustCompile(`(\d{8})-WA`), "20060102"},
	// ISO date: 2024-03-15_photo.jpg
	{regexp.MustCompile(`(\d{4}-\d{2}-\d{2})`), "2006-01-02"},
	// Compact date: 20240315_photo.jpg (last resort, least specific)
	{regexp.MustCompile(`(\d{8})`), "20060102"},
}

func isPhotoFile(path string) bool {
	return photoExts[strings.ToLower(filepath.Ext(path))]
}

// ProgressFunc receives scan progress after each indexed file.
type ProgressFunc func(done, total int, path string)

// ScanResult summarizes a completed library scan.
type ScanResult struct {
	Albums  int
	Images  int
	Removed int // stale index entries pruned
}

// Scanner walks library roots and maintains the photo index. Every
// first-level directory under a root becomes an album; photos directly in
// the root are collected under an album named after the root itself.
type Scanner struct {
	repo    Repository
	workers int
	logger  zerolog.Logger
}

// NewScanner creates a scanner writing to the given repository.
func NewScanner(repo Repository, workers int, logger zerolog.Logger) *Scanner {
	if workers < 1 {
		workers = 1
	}
	return &Scanner{
		repo:    repo,
		workers: workers,
		logger:  logger.With().Str("component", "scanner").Logger(),
	}
}

type albumFiles struct {
	album Album
	files []string
}

// Scan walks all roots and refreshes the index. Only albums containing at
// least one photo file are indexed. Unreadable photo metadata is tolerated;
// the file is indexed with whatever could be extracted.
func (s *Scanner) Scan(ctx context.Context, roots []string, progress ProgressFunc) (*ScanResult, error) {
	if len(roots) == 0 {
		return nil, fmt.Errorf("no library roots configured")
	}

	var albums []albumFiles
	total := 0
	for _, root := range roots {
		discovered, err := discoverAlbums(root)
		if err != nil {
			return nil, fmt.Errorf("failed to scan root %s: %w", root, err)
		}
		for _, af := range discovered {
			total += len(af.files)
		}
		albums = append(albums, discovered...)
	}

	s.logger.Info().
		Int("albums", len(albums)).
		Int("files", total).
		Msg("starting library scan")

	result := &ScanResult{Albums: len(albums)}
	done := 0

	for _, af := range albums {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if err := s.repo.UpsertAlbum(ctx, &af.album); err != nil {
			return nil, err
		}

		indexed, err := s.indexAlbum(ctx, af, total, &done, progress)
		if err != nil {
			return nil, err
		}
		result.Images += indexed

		removed, err := s.repo.PruneImages(ctx, af.album.ID, af.files)
		if err != nil {
			return nil, err
		}
		result.Removed += removed

		if err := s.repo.MarkAlbumScanned(ctx, af.album.ID, time.Now(), indexed); err != nil {
			return nil, err
		}
	}

	s.logger.Info().
		Int("albums", result.Albums).
		Int("images", result.Images).
		Int("removed", result.Removed).
		Msg("library scan finished")

	return result, nil
}

// indexAlbum reads photo metadata concurrently and writes index entries
// sequentially. SQLite allows a single writer, so all upserts happen on the
// calling goroutine.
func (s *Scanner) indexAlbum(ctx context.Context, af albumFiles, total int, done *int, progress ProgressFunc) (int, error) {
	results := make(chan Image, len(af.files))
	semaphore := make(chan struct{}, s.workers)
	var wg sync.WaitGroup

	for _, path := range af.files {
		wg.Add(1)
		go func(path string) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			if ctx.Err() != nil {
				return
			}
			results <- s.readMeta(af.album.ID, path)
		}(path)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	indexed := 0
	for img := range results {
		if _, err := s.repo.UpsertImage(ctx, &img); err != nil {
			return indexed, err
		}
		indexed++
		*done++
		if progress != nil {
			progress(*done, total, img.Path)
		}
	}

	if err := ctx.Err(); err != nil {
		return indexed, err
	}
	return indexed, nil
}

// readMeta extracts everything the index stores about a photo file.
func (s *Scanner) readMeta(albumID, path string) Image {
	img := Image{
		AlbumID:  albumID,
		Path:     path,
		FileName: filepath.Base(path),
	}

	info, err := os.Stat(path)
	if err == nil {
		img.SizeBytes = info.Size()
	}

	img.CapturedAt = captureTime(path, info)

	if w, h, err := imageDimensions(path); err == nil {
		img.Width, img.Height = w, h
	} else {
		s.logger.Debug().Str("path", path).Err(err).Msg("could not read image dimensions")
	}

	return img
}

// discoverAlbums lists the albums of one root and their photo files.
func discoverAlbums(root string) ([]albumFiles, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}

	var albums []albumFiles
	var rootFiles []string

	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		if !entry.IsDir() {
			if path := filepath.Join(root, name); isPhotoFile(path) {
				rootFiles = append(rootFiles, path)
			}
			continue
		}

		files, err := collectPhotos(filepath.Join(root, name))
		if err != nil {
			return nil, err
		}
		if len(files) == 0 {
			continue
		}

		albums = append(albums, albumFiles{
			album: Album{
				ID:    Slug(name),
				Title: name,
				Path:  filepath.Join(root, name),
			},
			files: files,
		})
	}

	// Photos directly in the root form an album named after the root
	if len(rootFiles) > 0 {
		name := filepath.Base(root)
		albums = append(albums, albumFiles{
			album: Album{
				ID:    Slug(name),
				Title: name,
				Path:  root,
			},
			files: rootFiles,
		})
	}

	return albums, nil
}

// collectPhotos walks an album directory recursively.
func collectPhotos(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if isPhotoFile(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// captureTime determines the best available capture time for a file.
// Priority: EXIF, filename pattern, file modification time.
func captureTime(path string, info os.FileInfo) time.Time {
	if t, err := exifCaptureTime(path); err == nil {
		return t
	}

	if t, ok := dateFromFilename(filepath.Base(path)); ok {
		return t
	}

	if info != nil {
		return info.ModTime()
	}
	return time.Now()
}

// exifCaptureTime reads DateTimeOriginal (with DateTime fallback) from EXIF.
func exifCaptureTime(path string) (time.Time, error) {
	f, err := os.Open(path)
	if err != nil {
		return time.Time{}, err
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return time.Time{}, err
	}

	return x.DateTime()
}

// dateFromFilename tries each date pattern in order; first parse wins.
func dateFromFilename(filename string) (time.Time, bool) {
	for _, p := range datePatterns {
		matches := p.regex.FindStringSubmatch(filename)
		if len(matches) >= 2 {
			if t, err := time.Parse(p.layout, matches[1]); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

// imageDimensions reads width and height from the image header without
// decoding pixel data.
func imageDimensions(path string) (int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}
