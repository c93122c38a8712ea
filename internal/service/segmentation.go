package service

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/fieldops/fieldtrace/internal/config"
	"github.com/fieldops/fieldtrace/internal/geo"
	"github.com/fieldops/fieldtrace/internal/models"
	"github.com/fieldops/fieldtrace/internal/state"
	"github.com/fieldops/fieldtrace/pkg/ws"
)

// SegmentationService turns each engineer's backlog of unprocessed location
// samples into Stop and Drive activity events.
type SegmentationService struct {
	cfg      *config.Config
	logger   *zap.Logger
	samples  SampleStore
	events   EventStore
	geocoder Geocoder
	hub      Broadcaster

	// Per-engineer lease: a scheduled run and a manual trigger overlapping for
	// the same engineer must not double-process one backlog.
	mu         sync.Mutex
	inProgress map[int64]bool
}

// NewSegmentationService creates the engine.
func NewSegmentationService(
	cfg *config.Config,
	logger *zap.Logger,
	samples SampleStore,
	events EventStore,
	geocoder Geocoder,
	hub Broadcaster,
) *SegmentationService {
	return &SegmentationService{
		cfg:        cfg,
		logger:     logger,
		samples:    samples,
		events:     events,
		geocoder:   geocoder,
		hub:        hub,
		inProgress: make(map[int64]bool),
	}
}

// ProcessAll runs the engine over every engineer with a pending backlog.
// Engineers are independent; a failing one is logged and skipped so the rest
// of the run continues.
func (s *SegmentationService) ProcessAll(ctx context.Context) {
	ids, err := s.samples.EngineersWithUnprocessed(ctx)
	if err != nil {
		s.logger.Error("Failed to list engineers with unprocessed samples", zap.Error(err))
		return
	}
	if len(ids) == 0 {
		return
	}

	s.logger.Info("Processing engineer backlogs", zap.Int("engineers", len(ids)))

	for _, id := range ids {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := s.processEngineerSafe(ctx, id); err != nil {
			s.logger.Error("Failed to process engineer, will retry next run",
				zap.Int64("engineer_id", id),
				zap.Error(err))
		}
	}
}

// processEngineerSafe keeps one misbehaving engineer from taking down the
// scheduler loop; its backlog stays unprocessed and is retried next run.
func (s *SegmentationService) processEngineerSafe(ctx context.Context, engineerID int64) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during run: %v", r)
		}
	}()
	return s.ProcessEngineer(ctx, engineerID)
}

// ProcessEngineer consumes the engineer's unprocessed samples in timestamp
// order, persists the detected Stop/Drive events, and marks every fetched
// sample processed. With no backlog it is a no-op.
func (s *SegmentationService) ProcessEngineer(ctx context.Context, engineerID int64) error {
	if !s.acquire(engineerID) {
		s.logger.Debug("Run already in progress, skipping", zap.Int64("engineer_id", engineerID))
		return nil
	}
	defer s.release(engineerID)

	samples, err := s.samples.ListUnprocessed(ctx, engineerID)
	if err != nil {
		return fmt.Errorf("list unprocessed: %w", err)
	}
	if len(samples) == 0 {
		return nil
	}

	stops := s.detectStops(engineerID, samples)

	// Anchor the first drive window on the previous run's last event so a
	// batch boundary never manufactures a gap or double-counts time.
	anchor, err := s.events.LatestByEngineer(ctx, engineerID)
	if err != nil {
		return fmt.Errorf("get anchor event: %w", err)
	}

	timeline := make([]*models.ActivityEvent, 0, len(stops)+1)
	if anchor != nil {
		timeline = append(timeline, anchor)
	}
	timeline = append(timeline, stops...)
	sort.Slice(timeline, func(i, j int) bool {
		return timeline[i].StartTime.Before(timeline[j].StartTime)
	})

	drives := s.detectDrives(engineerID, timeline, samples)

	newEvents := make([]*models.ActivityEvent, 0, len(stops)+len(drives))
	newEvents = append(newEvents, stops...)
	newEvents = append(newEvents, drives...)
	sort.Slice(newEvents, func(i, j int) bool {
		return newEvents[i].StartTime.Before(newEvents[j].StartTime)
	})

	s.resolveAddresses(ctx, newEvents)

	if len(newEvents) > 0 {
		if err := s.events.InsertBatch(ctx, newEvents); err != nil {
			return fmt.Errorf("persist events: %w", err)
		}
	}

	// Every fetched sample is consumed exactly once, whether or not it
	// contributed to an event.
	ids := make([]int64, len(samples))
	for i, p := range samples {
		ids[i] = p.ID
	}
	if err := s.samples.MarkProcessed(ctx, ids); err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}

	for _, ev := range newEvents {
		s.hub.Publish(ws.TopicActivityEvent, ev)
	}

	s.logger.Info("Processed engineer backlog",
		zap.Int64("engineer_id", engineerID),
		zap.Int("samples", len(samples)),
		zap.Int("stops", len(stops)),
		zap.Int("drives", len(drives)))

	return nil
}

// detectStops is the single forward pass over the sample stream. A candidate
// run of low-speed samples is committed as soon as motion resumes; a run
// spanning less than the minimum stop duration is discarded.
func (s *SegmentationService) detectStops(engineerID int64, samples []models.LocationSample) []*models.ActivityEvent {
	var stops []*models.ActivityEvent

	tracker := state.NewMotionTracker(func(run []models.LocationSample) {
		first, last := run[0], run[len(run)-1]
		if last.RecordedAt.Sub(first.RecordedAt) < s.cfg.MinStopDuration {
			return
		}

		lat, lon := geo.Centroid(run)
		stops = append(stops, &models.ActivityEvent{
			EngineerID:  engineerID,
			Type:        models.EventStop,
			StartTime:   first.RecordedAt,
			EndTime:     last.RecordedAt,
			DurationMin: int(last.RecordedAt.Sub(first.RecordedAt).Minutes()),
			Stop: &models.StopDetail{
				Latitude:  lat,
				Longitude: lon,
			},
		})
	})

	for _, p := range samples {
		tracker.Observe(p, p.SpeedOrZero() < s.cfg.StopSpeedThreshold)
	}
	tracker.Finish()

	return stops
}

// detectDrives fills the gaps of the timeline (previous run's last event plus
// this batch's stops) with drive events. The window after the final timeline
// entry is open-ended.
func (s *SegmentationService) detectDrives(engineerID int64, timeline []*models.ActivityEvent, samples []models.LocationSample) []*models.ActivityEvent {
	var drives []*models.ActivityEvent

	for i, ev := range timeline {
		var window []models.LocationSample
		for _, p := range samples {
			if !p.RecordedAt.After(ev.EndTime) {
				continue
			}
			if i+1 < len(timeline) && !p.RecordedAt.Before(timeline[i+1].StartTime) {
				continue
			}
			window = append(window, p)
		}

		if len(window) < s.cfg.MinDrivePoints {
			continue
		}

		first, last := window[0], window[len(window)-1]
		var topSpeed float64
		for _, p := range window {
			if v := p.SpeedOrZero(); v > topSpeed {
				topSpeed = v
			}
		}

		drives = append(drives, &models.ActivityEvent{
			EngineerID:  engineerID,
			Type:        models.EventDrive,
			StartTime:   first.RecordedAt,
			EndTime:     last.RecordedAt,
			DurationMin: int(last.RecordedAt.Sub(first.RecordedAt).Minutes()),
			Drive: &models.DriveDetail{
				DistanceKm:     geo.PathDistanceKm(window),
				TopSpeedKmh:    topSpeed * 3.6,
				StartLatitude:  first.Latitude,
				StartLongitude: first.Longitude,
				EndLatitude:    last.Latitude,
				EndLongitude:   last.Longitude,
			},
		})
	}

	return drives
}

// resolveAddresses annotates the batch's events with reverse-geocoded
// addresses. A failed or timed-out lookup degrades to a coordinate
// placeholder and never aborts the run.
func (s *SegmentationService) resolveAddresses(ctx context.Context, events []*models.ActivityEvent) {
	for _, ev := range events {
		switch ev.Type {
		case models.EventStop:
			ev.Stop.Address = s.lookupAddress(ctx, ev.Stop.Latitude, ev.Stop.Longitude)
		case models.EventDrive:
			ev.Drive.StartAddress = s.lookupAddress(ctx, ev.Drive.StartLatitude, ev.Drive.StartLongitude)
			ev.Drive.EndAddress = s.lookupAddress(ctx, ev.Drive.EndLatitude, ev.Drive.EndLongitude)
		}
	}
}

func (s *SegmentationService) lookupAddress(ctx context.Context, lat, lon float64) string {
	lookupCtx, cancel := context.WithTimeout(ctx, s.cfg.GeocodeTimeout)
	defer cancel()

	place, err := s.geocoder.ReverseGeocode(lookupCtx, lat, lon)
	if err != nil {
		s.logger.Warn("Reverse geocoding failed, using placeholder",
			zap.Float64("lat", lat),
			zap.Float64("lon", lon),
			zap.Error(err))
		return fmt.Sprintf("Location near %.5f, %.5f", lat, lon)
	}
	return place.FullAddress
}

func (s *SegmentationService) acquire(engineerID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inProgress[engineerID] {
		return false
	}
	s.inProgress[engineerID] = true
	return true
}

func (s *SegmentationService) release(engineerID int64) {
	s.mu.Lock()
	delete(s.inProgress, engineerID)
	s.mu.Unlock()
}
