package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/fieldops/fieldtrace/internal/models"
)

// ErrEngineerNotFound is returned for history queries on unknown engineers.
var ErrEngineerNotFound = errors.New("engineer not found")

// ErrInvalidDate is returned when a query date cannot be parsed.
var ErrInvalidDate = errors.New("invalid date")

const civilDateLayout = "2006-01-02"

// HistoryService answers activity-history queries, optionally reducing a
// day's events to the itinerary view: the clock-in stop, every stay that
// lasted long enough, and the drives connecting them.
type HistoryService struct {
	logger    *zap.Logger
	engineers EngineerStore
	events    EventStore
}

// NewHistoryService creates the service.
func NewHistoryService(logger *zap.Logger, engineers EngineerStore, events EventStore) *HistoryService {
	return &HistoryService{
		logger:    logger,
		engineers: engineers,
		events:    events,
	}
}

// GetFilteredHistory returns the engineer's events for the date range,
// chronologically ordered. startDate/endDate are civil dates in the
// engineer's local timezone (start inclusive, day after end exclusive); both
// empty means today. minStayMinutes <= 0 returns the range unfiltered.
func (s *HistoryService) GetFilteredHistory(ctx context.Context, engineerID int64, startDate, endDate string, minStayMinutes int) ([]models.ActivityEvent, error) {
	eng, err := s.engineers.GetByID(ctx, engineerID)
	if err != nil {
		return nil, fmt.Errorf("get engineer: %w", err)
	}
	if eng == nil {
		return nil, ErrEngineerNotFound
	}

	from, to, err := resolveRange(startDate, endDate, eng.Timezone)
	if err != nil {
		return nil, err
	}

	events, err := s.events.ListByEngineerInRange(ctx, engineerID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	if minStayMinutes <= 0 {
		return events, nil
	}
	return reduceToItinerary(events, minStayMinutes), nil
}

// resolveRange converts the civil-date query bounds into a UTC instant range.
func resolveRange(startDate, endDate, timezone string) (from, to time.Time, err error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		loc = time.UTC
	}

	if startDate == "" && endDate == "" {
		now := time.Now().In(loc)
		from = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
		return from.UTC(), from.AddDate(0, 0, 1).UTC(), nil
	}

	start, err := time.ParseInLocation(civilDateLayout, startDate, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, startDate)
	}

	end := start
	if endDate != "" {
		end, err = time.ParseInLocation(civilDateLayout, endDate, loc)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, endDate)
		}
	}

	return start.UTC(), end.AddDate(0, 0, 1).UTC(), nil
}

// reduceToItinerary applies the minimum-stay reduction. The earliest Stop in
// range is the anchor and is always kept regardless of its duration; every
// other Stop must meet the threshold; Drives are kept only where they connect
// two included stops.
func reduceToItinerary(events []models.ActivityEvent, minStayMinutes int) []models.ActivityEvent {
	var anchor *models.ActivityEvent
	for i := range events {
		if events[i].Type != models.EventStop {
			continue
		}
		if anchor == nil || events[i].StartTime.Before(anchor.StartTime) {
			anchor = &events[i]
		}
	}
	if anchor == nil {
		return []models.ActivityEvent{}
	}

	var qualifying []models.ActivityEvent
	for _, ev := range events {
		if ev.Type != models.EventStop || ev.ID == anchor.ID {
			continue
		}
		if ev.DurationMin >= minStayMinutes {
			qualifying = append(qualifying, ev)
		}
	}
	sort.Slice(qualifying, func(i, j int) bool {
		return qualifying[i].StartTime.Before(qualifying[j].StartTime)
	})

	result := []models.ActivityEvent{*anchor}
	if len(qualifying) == 0 {
		return result
	}

	prevEnd := anchor.EndTime
	for _, stay := range qualifying {
		for _, ev := range events {
			if ev.Type != models.EventDrive {
				continue
			}
			if !ev.StartTime.Before(prevEnd) && !ev.EndTime.After(stay.StartTime) {
				result = append(result, ev)
			}
		}
		result = append(result, stay)
		prevEnd = stay.EndTime
	}

	// The windowed drive lookup may pick an event twice; dedupe then restore
	// chronological order.
	seen := make(map[int64]bool, len(result))
	deduped := result[:0]
	for _, ev := range result {
		if ev.ID != 0 && seen[ev.ID] {
			continue
		}
		seen[ev.ID] = true
		deduped = append(deduped, ev)
	}
	sort.Slice(deduped, func(i, j int) bool {
		return deduped[i].StartTime.Before(deduped[j].StartTime)
	})

	return deduped
}
