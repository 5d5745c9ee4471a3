package library

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()

	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("failed to open repository: %v", err)
	}
	t.Cleanup(func() {
		if err := repo.Close(); err != nil {
			t.Errorf("failed to close repository: %v", err)
		}
	})
	return repo
}

func TestUpsertAlbum_InsertAndUpdate(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)

	album := &Album{ID: "summer-2024", Title: "Summer 2024", Path: "/photos/Summer 2024"}
	if err := repo.UpsertAlbum(ctx, album); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	// Update title for the same ID
	album.Title = "Summer 2024 (edited)"
	if err := repo.UpsertAlbum(ctx, album); err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}

	loaded, err := repo.Album(ctx, "summer-2024")
	if err != nil {
		t.Fatalf("album query failed: %v", err)
	}
	if loaded == nil {
		t.Fatal("expected album, got nil")
	}

	if loaded.Title != "Summer 2024 (edited)" {
		t.Errorf("expected updated title, got %q", loaded.Title)
	}

	if !loaded.ScannedAt.IsZero() {
		t.Errorf("expected zero scanned time before first scan, got %v", loaded.ScannedAt)
	}
}

func TestAlbum_NotFound(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)

	album, err := repo.Album(ctx, "missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if album != nil {
		t.Errorf("expected nil for missing album, got %+v", album)
	}
}

func TestMarkAlbumScanned(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)

	if err := repo.UpsertAlbum(ctx, &Album{ID: "trip", Title: "Trip", Path: "/p/Trip"}); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	scannedAt := time.Date(2024, 8, 1, 10, 30, 0, 0, time.UTC)
	if err := repo.MarkAlbumScanned(ctx, "trip", scannedAt, 42); err != nil {
		t.Fatalf("mark scanned failed: %v", err)
	}

	album, err := repo.Album(ctx, "trip")
	if err != nil {
		t.Fatalf("album query failed: %v", err)
	}

	if !album.ScannedAt.Equal(scannedAt) {
		t.Errorf("expected scanned at %v, got %v", scannedAt, album.ScannedAt)
	}

	if album.ImageCount != 42 {
		t.Errorf("expected image count 42, got %d", album.ImageCount)
	}
}

func TestUpsertImage_StableID(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)

	if err := repo.UpsertAlbum(ctx, &Album{ID: "a", Title: "A", Path: "/p/A"}); err != nil {
		t.Fatalf("upsert album failed: %v", err)
	}

	img := &Image{
		AlbumID:    "a",
		Path:       "/p/A/IMG_001.jpg",
		FileName:   "IMG_001.jpg",
		CapturedAt: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		Width:      4000,
		Height:     3000,
		SizeBytes:  2_500_000,
	}

	first, err := repo.UpsertImage(ctx, img)
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if first == 0 {
		t.Fatal("expected non-zero image ID")
	}

	// Re-index the same path with changed metadata
	img.SizeBytes = 2_600_000
	second, err := repo.UpsertImage(ctx, img)
	if err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}

	if first != second {
		t.Errorf("image ID changed across rescans: %d vs %d", first, second)
	}

	images, err := repo.Images(ctx, "a")
	if err != nil {
		t.Fatalf("images query failed: %v", err)
	}
	if len(images) != 1 {
		t.Fatalf("expected 1 image, got %d", len(images))
	}

	if images[0].SizeBytes != 2_600_000 {
		t.Errorf("expected updated size, got %d", images[0].SizeBytes)
	}

	if !images[0].CapturedAt.Equal(img.CapturedAt) {
		t.Errorf("capture time mismatch: expected %v, got %v", img.CapturedAt, images[0].CapturedAt)
	}
}

func TestImages_OrderedByCaptureTime(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)

	if err := repo.UpsertAlbum(ctx, &Album{ID: "a", Title: "A", Path: "/p/A"}); err != nil {
		t.Fatalf("upsert album failed: %v", err)
	}

	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	// Insert out of chronological order
	offsets := []time.Duration{2 * time.Minute, 0, time.Minute}
	for i, offset := range offsets {
		img := &Image{
			AlbumID:    "a",
			Path:       filepath.Join("/p/A", filenames(i)),
			FileName:   filenames(i),
			CapturedAt: base.Add(offset),
		}
		if _, err := repo.UpsertImage(ctx, img); err != nil {
			t.Fatalf("upsert failed: %v", err)
		}
	}

	images, err := repo.Images(ctx, "a")
	if err != nil {
		t.Fatalf("images query failed: %v", err)
	}
	if len(images) != 3 {
		t.Fatalf("expected 3 images, got %d", len(images))
	}

	for i := 1; i < len(images); i++ {
		if images[i].CapturedAt.Before(images[i-1].CapturedAt) {
			t.Errorf("images not ordered by capture time at index %d", i)
		}
	}
}

func filenames(i int) string {
	names := []string{"one.jpg", "two.jpg", "three.jpg"}
	return names[i]
}

func TestPruneImages(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)

	if err := repo.UpsertAlbum(ctx, &Album{ID: "a", Title: "A", Path: "/p/A"}); err != nil {
		t.Fatalf("upsert album failed: %v", err)
	}

	paths := []string{"/p/A/1.jpg", "/p/A/2.jpg", "/p/A/3.jpg"}
	for _, path := range paths {
		img := &Image{AlbumID: "a", Path: path, FileName: filepath.Base(path), CapturedAt: time.Now()}
		if _, err := repo.UpsertImage(ctx, img); err != nil {
			t.Fatalf("upsert failed: %v", err)
		}
	}

	// 2.jpg disappeared from disk
	removed, err := repo.PruneImages(ctx, "a", []string{"/p/A/1.jpg", "/p/A/3.jpg"})
	if err != nil {
		t.Fatalf("prune failed: %v", err)
	}

	if removed != 1 {
		t.Errorf("expected 1 removed, got %d", removed)
	}

	images, err := repo.Images(ctx, "a")
	if err != nil {
		t.Fatalf("images query failed: %v", err)
	}
	if len(images) != 2 {
		t.Fatalf("expected 2 remaining images, got %d", len(images))
	}

	for _, img := range images {
		if img.Path == "/p/A/2.jpg" {
			t.Error("pruned image still present")
		}
	}
}

func TestSearchAlbums_IgnoresDiacriticsAndCase(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)

	albums := []Album{
		{ID: "vylet-na-snezku", Title: "Výlet na Sněžku", Path: "/p/1"},
		{ID: "summer-trip", Title: "Summer Trip", Path: "/p/2"},
		{ID: "leto-u-more", Title: "Léto u moře", Path: "/p/3"},
	}
	for i := range albums {
		if err := repo.UpsertAlbum(ctx, &albums[i]); err != nil {
			t.Fatalf("upsert failed: %v", err)
		}
	}

	matched, err := repo.SearchAlbums(ctx, "SNEZ")
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(matched) != 1 || matched[0].ID != "vylet-na-snezku" {
		t.Errorf("expected single match vylet-na-snezku, got %+v", matched)
	}

	// Empty query returns everything
	all, err := repo.SearchAlbums(ctx, "")
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 albums for empty query, got %d", len(all))
	}
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)

	// Empty index
	stats, err := repo.Stats(ctx)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.Albums != 0 || stats.Images != 0 || stats.TotalBytes != 0 {
		t.Errorf("expected zero stats for empty index, got %+v", stats)
	}
	if !stats.OldestCapture.IsZero() || !stats.NewestCapture.IsZero() {
		t.Errorf("expected zero capture range for empty index, got %+v", stats)
	}

	if err := repo.UpsertAlbum(ctx, &Album{ID: "a", Title: "A", Path: "/p/A"}); err != nil {
		t.Fatalf("upsert album failed: %v", err)
	}

	oldest := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	newest := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	imgs := []Image{
		{AlbumID: "a", Path: "/p/A/1.jpg", FileName: "1.jpg", CapturedAt: newest, SizeBytes: 100},
		{AlbumID: "a", Path: "/p/A/2.jpg", FileName: "2.jpg", CapturedAt: oldest, SizeBytes: 250},
	}
	for i := range imgs {
		if _, err := repo.UpsertImage(ctx, &imgs[i]); err != nil {
			t.Fatalf("upsert failed: %v", err)
		}
	}

	stats, err = repo.Stats(ctx)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}

	if stats.Albums != 1 {
		t.Errorf("expected 1 album, got %d", stats.Albums)
	}
	if stats.Images != 2 {
		t.Errorf("expected 2 images, got %d", stats.Images)
	}
	if stats.TotalBytes != 350 {
		t.Errorf("expected 350 total bytes, got %d", stats.TotalBytes)
	}
	if !stats.OldestCapture.Equal(oldest) {
		t.Errorf("expected oldest %v, got %v", oldest, stats.OldestCapture)
	}
	if !stats.NewestCapture.Equal(newest) {
		t.Errorf("expected newest %v, got %v", newest, stats.NewestCapture)
	}
}
