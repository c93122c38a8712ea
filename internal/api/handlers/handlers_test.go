package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fieldops/fieldtrace/internal/models"
	"github.com/fieldops/fieldtrace/internal/service"
	"github.com/fieldops/fieldtrace/pkg/ws"
)

type fakeEngineerStore struct {
	mu        sync.Mutex
	nextID    int64
	engineers map[int64]*models.Engineer
}

func newFakeEngineerStore() *fakeEngineerStore {
	return &fakeEngineerStore{engineers: make(map[int64]*models.Engineer)}
}

func (f *fakeEngineerStore) Create(ctx context.Context, eng *models.Engineer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	eng.ID = f.nextID
	eng.CreatedAt = time.Now()
	cp := *eng
	f.engineers[eng.ID] = &cp
	return nil
}

func (f *fakeEngineerStore) GetByID(ctx context.Context, id int64) (*models.Engineer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	eng, ok := f.engineers[id]
	if !ok {
		return nil, nil
	}
	cp := *eng
	return &cp, nil
}

func (f *fakeEngineerStore) List(ctx context.Context) ([]*models.Engineer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Engineer
	for _, eng := range f.engineers {
		cp := *eng
		out = append(out, &cp)
	}
	return out, nil
}

type fakeSampleStore struct {
	mu      sync.Mutex
	samples []models.LocationSample
}

func (f *fakeSampleStore) InsertBatch(ctx context.Context, samples []*models.LocationSample) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range samples {
		f.samples = append(f.samples, *p)
	}
	return nil
}

func (f *fakeSampleStore) ListUnprocessed(ctx context.Context, engineerID int64) ([]models.LocationSample, error) {
	return nil, nil
}

func (f *fakeSampleStore) MarkProcessed(ctx context.Context, ids []int64) error { return nil }

func (f *fakeSampleStore) EngineersWithUnprocessed(ctx context.Context) ([]int64, error) {
	return nil, nil
}

type fakeEventStore struct {
	mu     sync.Mutex
	nextID int64
	events []models.ActivityEvent
}

func (f *fakeEventStore) InsertBatch(ctx context.Context, events []*models.ActivityEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ev := range events {
		f.nextID++
		ev.ID = f.nextID
		f.events = append(f.events, *ev)
	}
	return nil
}

func (f *fakeEventStore) LatestByEngineer(ctx context.Context, engineerID int64) (*models.ActivityEvent, error) {
	return nil, nil
}

func (f *fakeEventStore) ListByEngineerInRange(ctx context.Context, engineerID int64, from, to time.Time) ([]models.ActivityEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.ActivityEvent
	for _, ev := range f.events {
		if ev.EngineerID != engineerID || ev.StartTime.Before(from) || !ev.StartTime.Before(to) {
			continue
		}
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out, nil
}

type testEnv struct {
	router    *gin.Engine
	engineers *fakeEngineerStore
	samples   *fakeSampleStore
	events    *fakeEventStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := zap.NewNop()
	engineers := newFakeEngineerStore()
	samples := &fakeSampleStore{}
	events := &fakeEventStore{}

	history := service.NewHistoryService(logger, engineers, events)
	scheduler := service.NewScheduler(logger, nil, time.Hour)
	hub := ws.NewHub(logger)

	handler := NewHandler(logger, engineers, samples, history, scheduler, hub)

	router := gin.New()
	handler.RegisterRoutes(router)

	return &testEnv{router: router, engineers: engineers, samples: samples, events: events}
}

func (env *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func (env *testEnv) seedEngineer(t *testing.T) int64 {
	t.Helper()
	eng := &models.Engineer{Name: "Dana", Timezone: "UTC"}
	if err := env.engineers.Create(context.Background(), eng); err != nil {
		t.Fatalf("seed engineer: %v", err)
	}
	return eng.ID
}

func TestCreateEngineer(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/engineers", gin.H{
		"name":     "Dana",
		"timezone": "Europe/Berlin",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Data models.Engineer `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Data.ID == 0 || resp.Data.Timezone != "Europe/Berlin" {
		t.Errorf("unexpected engineer: %+v", resp.Data)
	}
}

func TestCreateEngineerValidation(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/engineers", gin.H{"timezone": "UTC"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing name: expected 400, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/engineers", gin.H{
		"name":     "Dana",
		"timezone": "Mars/Olympus",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad timezone: expected 400, got %d", rec.Code)
	}
}

func TestGetEngineerNotFound(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/engineers/99", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/api/engineers/abc", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("non-numeric id: expected 400, got %d", rec.Code)
	}
}

func TestIngestLocations(t *testing.T) {
	env := newTestEnv(t)
	id := env.seedEngineer(t)

	ts := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	rec := env.do(t, http.MethodPost, "/api/engineers/1/locations", gin.H{
		"samples": []gin.H{
			{"latitude": 52.52, "longitude": 13.405, "speed": 1.0, "timestamp": ts},
			{"latitude": 52.53, "longitude": 13.406},
		},
	})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}

	env.samples.mu.Lock()
	defer env.samples.mu.Unlock()
	if len(env.samples.samples) != 2 {
		t.Fatalf("expected 2 stored samples, got %d", len(env.samples.samples))
	}
	first := env.samples.samples[0]
	if first.EngineerID != id || !first.RecordedAt.Equal(ts) {
		t.Errorf("unexpected first sample: %+v", first)
	}
	second := env.samples.samples[1]
	if second.Speed != nil {
		t.Errorf("missing speed must stay nil, got %v", *second.Speed)
	}
	if second.RecordedAt.IsZero() {
		t.Error("missing timestamp must default to now")
	}
}

func TestIngestLocationsRejectsEmptyBatch(t *testing.T) {
	env := newTestEnv(t)
	env.seedEngineer(t)

	rec := env.do(t, http.MethodPost, "/api/engineers/1/locations", gin.H{"samples": []gin.H{}})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestIngestLocationsUnknownEngineer(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/engineers/7/locations", gin.H{
		"samples": []gin.H{{"latitude": 52.52, "longitude": 13.405}},
	})
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestGetHistory(t *testing.T) {
	env := newTestEnv(t)
	id := env.seedEngineer(t)

	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	err := env.events.InsertBatch(context.Background(), []*models.ActivityEvent{
		{
			EngineerID: id, Type: models.EventStop,
			StartTime: day.Add(8 * time.Hour), EndTime: day.Add(8*time.Hour + 2*time.Minute),
			DurationMin: 2, Stop: &models.StopDetail{},
		},
		{
			EngineerID: id, Type: models.EventDrive,
			StartTime: day.Add(8*time.Hour + 2*time.Minute), EndTime: day.Add(9 * time.Hour),
			Drive: &models.DriveDetail{},
		},
		{
			EngineerID: id, Type: models.EventStop,
			StartTime: day.Add(9 * time.Hour), EndTime: day.Add(9*time.Hour + 20*time.Minute),
			DurationMin: 20, Stop: &models.StopDetail{},
		},
	})
	if err != nil {
		t.Fatalf("seed events: %v", err)
	}

	rec := env.do(t, http.MethodGet, "/api/engineers/1/history?startDate=2026-03-02&minStayMinutes=10", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Data []models.ActivityEvent `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Data) != 3 {
		t.Fatalf("expected the full itinerary, got %d events", len(resp.Data))
	}

	// raising the threshold leaves only the clock-in anchor
	rec = env.do(t, http.MethodGet, "/api/engineers/1/history?startDate=2026-03-02&minStayMinutes=30", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Data) != 1 {
		t.Fatalf("expected the anchor only, got %d events", len(resp.Data))
	}
}

func TestGetHistoryErrors(t *testing.T) {
	env := newTestEnv(t)
	env.seedEngineer(t)

	rec := env.do(t, http.MethodGet, "/api/engineers/99/history", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown engineer: expected 404, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/api/engineers/1/history?startDate=bogus", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad date: expected 400, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/api/engineers/1/history?minStayMinutes=ten", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad threshold: expected 400, got %d", rec.Code)
	}
}

func TestGetEventsIgnoresThreshold(t *testing.T) {
	env := newTestEnv(t)
	id := env.seedEngineer(t)

	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	err := env.events.InsertBatch(context.Background(), []*models.ActivityEvent{
		{
			EngineerID: id, Type: models.EventStop,
			StartTime: day.Add(8 * time.Hour), EndTime: day.Add(8*time.Hour + 2*time.Minute),
			DurationMin: 2, Stop: &models.StopDetail{},
		},
	})
	if err != nil {
		t.Fatalf("seed events: %v", err)
	}

	rec := env.do(t, http.MethodGet, "/api/engineers/1/events?startDate=2026-03-02&minStayMinutes=30", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Data []models.ActivityEvent `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Data) != 1 {
		t.Fatalf("raw events endpoint must not filter, got %d events", len(resp.Data))
	}
}

func TestTriggerProcessing(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/process", nil)
	if rec.Code != http.StatusAccepted {
		t.Errorf("expected 202, got %d", rec.Code)
	}
}

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("unexpected health payload: %v", resp)
	}
}
