package library

import (
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kozaktomas/photo-triage/internal/logging"
)

// writePNG creates a real PNG file so DecodeConfig can read its dimensions.
func writePNG(t *testing.T, path string, width, height int) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create %s: %v", path, err)
	}
	defer f.Close()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
}

// newTestLibrary builds a root with two albums, a nested subdirectory and
// one photo directly in the root.
func newTestLibrary(t *testing.T) string {
	t.Helper()
	root := t.TempDir()

	writePNG(t, filepath.Join(root, "Summer Trip", "IMG_20240315_123456.jpg"), 100, 80)
	writePNG(t, filepath.Join(root, "Summer Trip", "beach.png"), 10, 10)
	writePNG(t, filepath.Join(root, "Výlet na Sněžku", "sub", "20230101_photo.png"), 20, 20)
	writePNG(t, filepath.Join(root, "rootpic.png"), 5, 5)

	// Non-photo files and hidden directories are ignored
	if err := os.WriteFile(filepath.Join(root, "Summer Trip", "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("failed to write notes.txt: %v", err)
	}
	writePNG(t, filepath.Join(root, ".hidden", "secret.png"), 5, 5)

	return root
}

func newTestScanner(t *testing.T) (*Scanner, *SQLiteRepository) {
	t.Helper()
	repo := openTestRepo(t)
	return NewScanner(repo, 2, logging.Nop()), repo
}

func TestScanner_IndexesAlbums(t *testing.T) {
	ctx := context.Background()
	root := newTestLibrary(t)
	scanner, repo := newTestScanner(t)

	result, err := scanner.Scan(ctx, []string{root}, nil)
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}

	// Two album directories plus the root-level album
	if result.Albums != 3 {
		t.Errorf("expected 3 albums, got %d", result.Albums)
	}
	if result.Images != 4 {
		t.Errorf("expected 4 images, got %d", result.Images)
	}
	if result.Removed != 0 {
		t.Errorf("expected no removals on first scan, got %d", result.Removed)
	}

	album, err := repo.Album(ctx, "summer-trip")
	if err != nil {
		t.Fatalf("album query failed: %v", err)
	}
	if album == nil {
		t.Fatal("expected summer-trip album")
	}
	if album.Title != "Summer Trip" {
		t.Errorf("expected title 'Summer Trip', got %q", album.Title)
	}
	if album.ImageCount != 2 {
		t.Errorf("expected 2 images in summer-trip, got %d", album.ImageCount)
	}
	if album.ScannedAt.IsZero() {
		t.Error("expected scanned time to be set")
	}

	// Diacritics in the directory name produce an ASCII album ID
	nested, err := repo.Album(ctx, "vylet-na-snezku")
	if err != nil {
		t.Fatalf("album query failed: %v", err)
	}
	if nested == nil {
		t.Fatal("expected vylet-na-snezku album")
	}

	images, err := repo.Images(ctx, "vylet-na-snezku")
	if err != nil {
		t.Fatalf("images query failed: %v", err)
	}
	if len(images) != 1 {
		t.Fatalf("expected 1 image from nested subdirectory, got %d", len(images))
	}
}

func TestScanner_ReadsDimensions(t *testing.T) {
	ctx := context.Background()
	root := newTestLibrary(t)
	scanner, repo := newTestScanner(t)

	if _, err := scanner.Scan(ctx, []string{root}, nil); err != nil {
		t.Fatalf("scan failed: %v", err)
	}

	images, err := repo.Images(ctx, "summer-trip")
	if err != nil {
		t.Fatalf("images query failed: %v", err)
	}

	byName := map[string]Image{}
	for _, img := range images {
		byName[img.FileName] = img
	}

	img, ok := byName["IMG_20240315_123456.jpg"]
	if !ok {
		t.Fatal("expected IMG_20240315_123456.jpg to be indexed")
	}
	if img.Width != 100 || img.Height != 80 {
		t.Errorf("expected 100x80, got %dx%d", img.Width, img.Height)
	}
	if img.SizeBytes == 0 {
		t.Error("expected non-zero file size")
	}
}

func TestScanner_FilenameCaptureTime(t *testing.T) {
	ctx := context.Background()
	root := newTestLibrary(t)
	scanner, repo := newTestScanner(t)

	if _, err := scanner.Scan(ctx, []string{root}, nil); err != nil {
		t.Fatalf("scan failed: %v", err)
	}

	images, err := repo.Images(ctx, "summer-trip")
	if err != nil {
		t.Fatalf("images query failed: %v", err)
	}

	for _, img := range images {
		if img.FileName != "IMG_20240315_123456.jpg" {
			continue
		}
		expected := time.Date(2024, 3, 15, 12, 34, 56, 0, time.UTC)
		if !img.CapturedAt.Equal(expected) {
			t.Errorf("expected capture time %v, got %v", expected, img.CapturedAt)
		}
		return
	}
	t.Fatal("IMG_20240315_123456.jpg not indexed")
}

func TestScanner_ModTimeFallback(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	scanner, repo := newTestScanner(t)

	path := filepath.Join(root, "Album", "beach.png")
	writePNG(t, path, 10, 10)

	modTime := time.Date(2022, 7, 10, 9, 0, 0, 0, time.UTC)
	if err := os.Chtimes(path, modTime, modTime); err != nil {
		t.Fatalf("failed to set mtime: %v", err)
	}

	if _, err := scanner.Scan(ctx, []string{root}, nil); err != nil {
		t.Fatalf("scan failed: %v", err)
	}

	images, err := repo.Images(ctx, "album")
	if err != nil {
		t.Fatalf("images query failed: %v", err)
	}
	if len(images) != 1 {
		t.Fatalf("expected 1 image, got %d", len(images))
	}

	// No EXIF, no filename date: capture time falls back to mtime
	if images[0].CapturedAt.Unix() != modTime.Unix() {
		t.Errorf("expected capture time %v, got %v", modTime, images[0].CapturedAt)
	}
}

func TestScanner_ProgressCallback(t *testing.T) {
	ctx := context.Background()
	root := newTestLibrary(t)
	scanner, _ := newTestScanner(t)

	var calls int
	var lastDone, lastTotal int
	result, err := scanner.Scan(ctx, []string{root}, func(done, total int, path string) {
		calls++
		lastDone = done
		lastTotal = total
	})
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}

	if calls != result.Images {
		t.Errorf("expected %d progress calls, got %d", result.Images, calls)
	}
	if lastDone != lastTotal {
		t.Errorf("expected final done == total, got %d/%d", lastDone, lastTotal)
	}
	if lastTotal != 4 {
		t.Errorf("expected total 4, got %d", lastTotal)
	}
}

func TestScanner_PrunesMissingFiles(t *testing.T) {
	ctx := context.Background()
	root := newTestLibrary(t)
	scanner, repo := newTestScanner(t)

	if _, err := scanner.Scan(ctx, []string{root}, nil); err != nil {
		t.Fatalf("first scan failed: %v", err)
	}

	if err := os.Remove(filepath.Join(root, "Summer Trip", "beach.png")); err != nil {
		t.Fatalf("failed to remove file: %v", err)
	}

	result, err := scanner.Scan(ctx, []string{root}, nil)
	if err != nil {
		t.Fatalf("second scan failed: %v", err)
	}

	if result.Removed != 1 {
		t.Errorf("expected 1 pruned entry, got %d", result.Removed)
	}

	images, err := repo.Images(ctx, "summer-trip")
	if err != nil {
		t.Fatalf("images query failed: %v", err)
	}
	if len(images) != 1 {
		t.Errorf("expected 1 remaining image, got %d", len(images))
	}
}

func TestScanner_StableIDsAcrossRescans(t *testing.T) {
	ctx := context.Background()
	root := newTestLibrary(t)
	scanner, repo := newTestScanner(t)

	if _, err := scanner.Scan(ctx, []string{root}, nil); err != nil {
		t.Fatalf("first scan failed: %v", err)
	}

	before, err := repo.Images(ctx, "summer-trip")
	if err != nil {
		t.Fatalf("images query failed: %v", err)
	}

	if _, err := scanner.Scan(ctx, []string{root}, nil); err != nil {
		t.Fatalf("second scan failed: %v", err)
	}

	after, err := repo.Images(ctx, "summer-trip")
	if err != nil {
		t.Fatalf("images query failed: %v", err)
	}

	ids := map[string]int64{}
	for _, img := range before {
		ids[img.Path] = img.ID
	}
	for _, img := range after {
		if ids[img.Path] != img.ID {
			t.Errorf("image ID changed for %s: %d vs %d", img.Path, ids[img.Path], img.ID)
		}
	}
}

func TestScanner_NoRoots(t *testing.T) {
	ctx := context.Background()
	scanner, _ := newTestScanner(t)

	if _, err := scanner.Scan(ctx, nil, nil); err == nil {
		t.Error("expected error for empty roots")
	}
}

func TestScanner_CancelledContext(t *testing.T) {
	root := newTestLibrary(t)
	scanner, _ := newTestScanner(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := scanner.Scan(ctx, []string{root}, nil); err == nil {
		t.Error("expected error for cancelled context")
	}
}
