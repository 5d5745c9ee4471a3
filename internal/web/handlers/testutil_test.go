package handlers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/kozaktomas/photo-triage/internal/cleanup"
	"github.com/kozaktomas/photo-triage/internal/cooldown"
	"github.com/kozaktomas/photo-triage/internal/grouper"
	"github.com/kozaktomas/photo-triage/internal/library"
	"github.com/kozaktomas/photo-triage/internal/logging"
	"github.com/kozaktomas/photo-triage/internal/recommend"
	"github.com/kozaktomas/photo-triage/internal/store"
)

var t0 = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// fakeRepo is an in-memory library.Repository with error injection.
type fakeRepo struct {
	mu     sync.Mutex
	albums map[string]library.Album
	images map[string][]library.Image
	nextID int64

	albumsErr error
	imagesErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		albums: map[string]library.Album{},
		images: map[string][]library.Image{},
		nextID: 1,
	}
}

func (r *fakeRepo) addAlbum(id, title string, images []library.Image) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.albums[id] = library.Album{ID: id, Title: title, Path: "/photos/" + id, ImageCount: len(images)}
	r.images[id] = images
}

func (r *fakeRepo) UpsertAlbum(_ context.Context, album *library.Album) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.albums[album.ID]
	if ok {
		album.ScannedAt = existing.ScannedAt
		album.ImageCount = existing.ImageCount
	}
	r.albums[album.ID] = *album
	return nil
}

func (r *fakeRepo) MarkAlbumScanned(_ context.Context, albumID string, scannedAt time.Time, imageCount int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a := r.albums[albumID]
	a.ScannedAt = scannedAt
	a.ImageCount = imageCount
	r.albums[albumID] = a
	return nil
}

func (r *fakeRepo) Album(_ context.Context, id string) (*library.Album, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.albums[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (r *fakeRepo) Albums(_ context.Context) ([]library.Album, error) {
	if r.albumsErr != nil {
		return nil, r.albumsErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	albums := make([]library.Album, 0, len(r.albums))
	for _, a := range r.albums {
		albums = append(albums, a)
	}
	slices.SortFunc(albums, func(a, b library.Album) int {
		return strings.Compare(a.Title, b.Title)
	})
	return albums, nil
}

func (r *fakeRepo) SearchAlbums(ctx context.Context, query string) ([]library.Album, error) {
	albums, err := r.Albums(ctx)
	if err != nil {
		return nil, err
	}
	query = library.NormalizeText(query)
	matched := albums[:0]
	for _, a := range albums {
		if strings.Contains(library.NormalizeText(a.Title), query) {
			matched = append(matched, a)
		}
	}
	return matched, nil
}

func (r *fakeRepo) UpsertImage(_ context.Context, img *library.Image) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.images[img.AlbumID] {
		if existing.Path == img.Path {
			img.ID = existing.ID
			return existing.ID, nil
		}
	}
	img.ID = r.nextID
	r.nextID++
	r.images[img.AlbumID] = append(r.images[img.AlbumID], *img)
	return img.ID, nil
}

func (r *fakeRepo) Images(_ context.Context, albumID string) ([]library.Image, error) {
	if r.imagesErr != nil {
		return nil, r.imagesErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	images := slices.Clone(r.images[albumID])
	sortImages(images)
	return images, nil
}

func (r *fakeRepo) AllImages(_ context.Context) ([]library.Image, error) {
	if r.imagesErr != nil {
		return nil, r.imagesErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var images []library.Image
	for _, list := range r.images {
		images = append(images, list...)
	}
	sortImages(images)
	return images, nil
}

func (r *fakeRepo) PruneImages(_ context.Context, albumID string, keep []string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := make(map[string]struct{}, len(keep))
	for _, p := range keep {
		kept[p] = struct{}{}
	}
	before := len(r.images[albumID])
	r.images[albumID] = slices.DeleteFunc(r.images[albumID], func(img library.Image) bool {
		_, ok := kept[img.Path]
		return !ok
	})
	return before - len(r.images[albumID]), nil
}

func (r *fakeRepo) Stats(_ context.Context) (*library.Stats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := &library.Stats{Albums: len(r.albums)}
	for _, list := range r.images {
		for _, img := range list {
			stats.Images++
			stats.TotalBytes += img.SizeBytes
			if stats.OldestCapture.IsZero() || img.CapturedAt.Before(stats.OldestCapture) {
				stats.OldestCapture = img.CapturedAt
			}
			if img.CapturedAt.After(stats.NewestCapture) {
				stats.NewestCapture = img.CapturedAt
			}
		}
	}
	return stats, nil
}

func (r *fakeRepo) Close() error { return nil }

func sortImages(images []library.Image) {
	slices.SortFunc(images, func(a, b library.Image) int {
		if c := a.CapturedAt.Compare(b.CapturedAt); c != 0 {
			return c
		}
		return int(a.ID - b.ID)
	})
}

// burstImages builds an ascending capture-time image list: bursts of the
// given sizes with 2 second spacing inside a burst and 10 minute gaps
// between bursts.
func burstImages(albumID string, firstID int64, sizes ...int) []library.Image {
	var images []library.Image
	start := t0.Add(-24 * time.Hour)
	id := firstID
	for _, size := range sizes {
		for i := range size {
			images = append(images, library.Image{
				ID:         id,
				AlbumID:    albumID,
				Path:       fmt.Sprintf("/p/%s/%d.jpg", albumID, id),
				FileName:   fmt.Sprintf("%d.jpg", id),
				CapturedAt: start.Add(time.Duration(i) * 2 * time.Second),
				Width:      4000,
				Height:     3000,
				SizeBytes:  2_000_000,
			})
			id++
		}
		start = start.Add(10 * time.Minute)
	}
	return images
}

// testGrouperConfig keeps small groups intact so tests can predict group
// boundaries.
var testGrouperConfig = grouper.Config{
	MinGroupSize:    1,
	MergeThreshold:  1,
	TimeWindow:      3 * time.Minute,
	AspectTolerance: 0.05,
	SizeRatioLimit:  2.0,
}

// testEnv bundles the fakes and engines handler tests run against.
type testEnv struct {
	repo    *fakeRepo
	store   *store.MemoryStore
	photos  *cooldown.Ledger
	groups  *cooldown.Ledger
	rec     *recommend.Engine
	cleanup *cleanup.Engine
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	repo := newFakeRepo()
	st := store.NewMemoryStore()

	photos, err := cooldown.NewLedger(st, cooldown.Config{
		Prefix: "cooldown:photo:",
		Pool:   []int{2, 3, 4, 5},
		Seed:   1,
	}, logging.Nop())
	if err != nil {
		t.Fatalf("failed to create photo ledger: %v", err)
	}
	groups, err := cooldown.NewLedger(st, cooldown.Config{
		Prefix: "cooldown:group:",
		Pool:   []int{7, 10, 14},
		Seed:   1,
	}, logging.Nop())
	if err != nil {
		t.Fatalf("failed to create group ledger: %v", err)
	}

	rec, err := recommend.NewEngine(photos, groups, recommend.Config{
		Grouper:  testGrouperConfig,
		CacheTTL: 5 * time.Minute,
		Seed:     7,
	}, logging.Nop())
	if err != nil {
		t.Fatalf("failed to create recommend engine: %v", err)
	}

	cl, err := cleanup.NewEngine(st, groups, repo, testGrouperConfig, logging.Nop())
	if err != nil {
		t.Fatalf("failed to create cleanup engine: %v", err)
	}

	return &testEnv{repo: repo, store: st, photos: photos, groups: groups, rec: rec, cleanup: cl}
}

// requestWithChiParams creates a request with chi URL parameters.
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// parseJSONResponse parses a JSON response body into the target type.
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code.
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertContentType checks if the response has the expected content type.
func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	ct := recorder.Header().Get("Content-Type")
	if ct != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, ct)
	}
}

// assertJSONError checks if the response is a JSON error with the expected message.
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}
