package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fieldops/fieldtrace/internal/config"
	"github.com/fieldops/fieldtrace/internal/geocoder"
	"github.com/fieldops/fieldtrace/internal/models"
)

func testConfig() *config.Config {
	return &config.Config{
		StopSpeedThreshold: 1.4,
		MinStopDuration:    5 * time.Minute,
		MinDrivePoints:     2,
		GeocodeTimeout:     time.Second,
	}
}

type memSampleStore struct {
	mu      sync.Mutex
	nextID  int64
	samples []models.LocationSample

	listErr error
	markErr error
}

func (m *memSampleStore) InsertBatch(ctx context.Context, samples []*models.LocationSample) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range samples {
		m.nextID++
		p.ID = m.nextID
		m.samples = append(m.samples, *p)
	}
	return nil
}

func (m *memSampleStore) ListUnprocessed(ctx context.Context, engineerID int64) ([]models.LocationSample, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []models.LocationSample
	for _, p := range m.samples {
		if p.EngineerID == engineerID && !p.Processed {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].RecordedAt.Before(out[j].RecordedAt)
	})
	return out, nil
}

func (m *memSampleStore) MarkProcessed(ctx context.Context, ids []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.markErr != nil {
		return m.markErr
	}
	set := make(map[int64]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	for i := range m.samples {
		if set[m.samples[i].ID] {
			m.samples[i].Processed = true
		}
	}
	return nil
}

func (m *memSampleStore) EngineersWithUnprocessed(ctx context.Context) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[int64]bool)
	var ids []int64
	for _, p := range m.samples {
		if !p.Processed && !seen[p.EngineerID] {
			seen[p.EngineerID] = true
			ids = append(ids, p.EngineerID)
		}
	}
	return ids, nil
}

func (m *memSampleStore) unprocessedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, p := range m.samples {
		if !p.Processed {
			n++
		}
	}
	return n
}

type memEventStore struct {
	mu     sync.Mutex
	nextID int64
	events []models.ActivityEvent

	insertErr error
}

func (m *memEventStore) InsertBatch(ctx context.Context, events []*models.ActivityEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return m.insertErr
	}
	for _, ev := range events {
		m.nextID++
		ev.ID = m.nextID
		m.events = append(m.events, *ev)
	}
	return nil
}

func (m *memEventStore) LatestByEngineer(ctx context.Context, engineerID int64) (*models.ActivityEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *models.ActivityEvent
	for i := range m.events {
		ev := &m.events[i]
		if ev.EngineerID != engineerID {
			continue
		}
		if latest == nil || ev.EndTime.After(latest.EndTime) {
			latest = ev
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (m *memEventStore) ListByEngineerInRange(ctx context.Context, engineerID int64, from, to time.Time) ([]models.ActivityEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ActivityEvent
	for _, ev := range m.events {
		if ev.EngineerID != engineerID {
			continue
		}
		if ev.StartTime.Before(from) || !ev.StartTime.Before(to) {
			continue
		}
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out, nil
}

func (m *memEventStore) all() []models.ActivityEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.ActivityEvent, len(m.events))
	copy(out, m.events)
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out
}

type memEngineerStore struct {
	mu        sync.Mutex
	nextID    int64
	engineers map[int64]*models.Engineer
}

func newMemEngineerStore() *memEngineerStore {
	return &memEngineerStore{engineers: make(map[int64]*models.Engineer)}
}

func (m *memEngineerStore) Create(ctx context.Context, eng *models.Engineer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	eng.ID = m.nextID
	eng.CreatedAt = time.Now()
	cp := *eng
	m.engineers[eng.ID] = &cp
	return nil
}

func (m *memEngineerStore) GetByID(ctx context.Context, id int64) (*models.Engineer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	eng, ok := m.engineers[id]
	if !ok {
		return nil, nil
	}
	cp := *eng
	return &cp, nil
}

func (m *memEngineerStore) List(ctx context.Context) ([]*models.Engineer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Engineer
	for _, eng := range m.engineers {
		cp := *eng
		out = append(out, &cp)
	}
	return out, nil
}

type stubGeocoder struct {
	fail bool
}

func (g *stubGeocoder) ReverseGeocode(ctx context.Context, lat, lon float64) (geocoder.Place, error) {
	if g.fail {
		return geocoder.Place{}, errors.New("geocoder unavailable")
	}
	return geocoder.Place{Name: "Depot", FullAddress: "1 Depot Street, Testville"}, nil
}

type memBroadcaster struct {
	mu       sync.Mutex
	messages []interface{}
}

func (b *memBroadcaster) Publish(topic string, data interface{}) {
	b.mu.Lock()
	b.messages = append(b.messages, data)
	b.mu.Unlock()
}

func (b *memBroadcaster) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.messages)
}

func newTestEngine() (*SegmentationService, *memSampleStore, *memEventStore, *memBroadcaster) {
	samples := &memSampleStore{}
	events := &memEventStore{}
	hub := &memBroadcaster{}
	engine := NewSegmentationService(testConfig(), zap.NewNop(), samples, events, &stubGeocoder{}, hub)
	return engine, samples, events, hub
}

func speed(v float64) *float64 { return &v }
