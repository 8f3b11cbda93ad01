package journey

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/aifightclub/arena/internal/cache"
	"github.com/aifightclub/arena/internal/models"
	"github.com/aifightclub/arena/internal/store"
)

// saveRetries bounds how many times RecordEvent retries a snapshot save that
// lost a version race.
const saveRetries = 3

// DefaultInsightsTTL is how long cached insights stay valid.
const DefaultInsightsTTL = 15 * time.Minute

// Service coordinates the append-only event log and the journey snapshot.
type Service struct {
	store       store.Store
	cache       cache.Cache
	cfg         Config
	insightsTTL time.Duration
}

// NewService creates a journey service. A nil cache disables insight caching.
func NewService(st store.Store, c cache.Cache, cfg Config, insightsTTL time.Duration) *Service {
	if c == nil {
		c = cache.NewNoopCache()
	}
	if insightsTTL <= 0 {
		insightsTTL = DefaultInsightsTTL
	}
	return &Service{store: st, cache: c, cfg: cfg, insightsTTL: insightsTTL}
}

// RecordEvent appends the event to the log and updates the user's snapshot.
// The snapshot save uses compare-and-swap versioning; a lost race reloads the
// snapshot and reapplies the event.
func (s *Service) RecordEvent(ctx context.Context, event models.UserJourneyEvent) (*models.UserJourney, error) {
	slog.Debug("JourneyService RecordEvent", "userID", event.UserID, "eventType", event.EventType)

	if err := event.Validate(); err != nil {
		return nil, err
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.cfg.now()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = s.cfg.now()
	}

	// The event is the source of truth; append it before touching the
	// snapshot so a failed snapshot save can be repaired by replay.
	if err := s.store.AddJourneyEvent(event); err != nil {
		slog.Error("JourneyService RecordEvent append failed", "error", err, "userID", event.UserID)
		return nil, models.NewRepositoryError("append journey event", err)
	}

	var lastErr error
	for attempt := 0; attempt < saveRetries; attempt++ {
		journey, err := s.store.GetUserJourney(event.UserID)
		if err != nil {
			slog.Error("JourneyService RecordEvent load failed", "error", err, "userID", event.UserID)
			return nil, models.NewRepositoryError("load user journey", err)
		}
		if journey == nil {
			journey = NewJourney(event.UserID)
		}

		update, err := AddEvent(journey, event, s.cfg)
		if err != nil {
			return nil, err
		}

		if err := s.store.SaveUserJourney(*journey); err != nil {
			if errors.Is(err, store.ErrVersionConflict) {
				slog.Debug("JourneyService RecordEvent version conflict, retrying", "userID", event.UserID, "attempt", attempt+1)
				lastErr = err
				continue
			}
			slog.Error("JourneyService RecordEvent save failed", "error", err, "userID", event.UserID)
			return nil, models.NewRepositoryError("save user journey", err)
		}

		if update.EngagementChanged || update.PhaseChanged || update.NewSession {
			slog.Info("JourneyService journey updated",
				"userID", update.UserID, "eventType", update.EventType,
				"engagement", update.Engagement, "phase", update.Phase,
				"newSession", update.NewSession)
		}
		s.invalidateInsights(ctx, event.UserID)
		return journey, nil
	}

	slog.Error("JourneyService RecordEvent exhausted retries", "userID", event.UserID, "error", lastErr)
	return nil, models.NewRepositoryError("save user journey", lastErr)
}

// GetJourney returns the snapshot for a user.
func (s *Service) GetJourney(ctx context.Context, userID string) (*models.UserJourney, error) {
	if userID == "" {
		return nil, models.ErrMissingUserID
	}
	journey, err := s.store.GetUserJourney(userID)
	if err != nil {
		return nil, models.NewRepositoryError("load user journey", err)
	}
	if journey == nil {
		return nil, models.NewNotFoundError("user journey", userID)
	}
	return journey, nil
}

// GetInsights returns the personalization summary for a user, served from
// cache when possible.
func (s *Service) GetInsights(ctx context.Context, userID string) (*Insights, error) {
	key := insightsCacheKey(userID)
	if cached, found, err := s.cache.Get(ctx, key); err != nil {
		slog.Warn("JourneyService GetInsights cache read failed", "error", err, "userID", userID)
	} else if found {
		var insights Insights
		if err := json.Unmarshal([]byte(cached), &insights); err == nil {
			slog.Debug("JourneyService GetInsights cache hit", "userID", userID)
			return &insights, nil
		}
		slog.Warn("JourneyService GetInsights corrupt cache entry", "userID", userID)
	}

	journey, err := s.GetJourney(ctx, userID)
	if err != nil {
		return nil, err
	}
	insights := InsightsFor(journey.CurrentPhase, journey.EngagementLevel)

	if data, err := json.Marshal(insights); err == nil {
		if err := s.cache.Set(ctx, key, string(data), s.insightsTTL); err != nil {
			slog.Warn("JourneyService GetInsights cache write failed", "error", err, "userID", userID)
		}
	}
	return &insights, nil
}

// RebuildJourney recomputes the snapshot by full replay of the user's event
// log and persists it. Used to repair drift after partial failures.
func (s *Service) RebuildJourney(ctx context.Context, userID string) (*models.UserJourney, error) {
	slog.Info("JourneyService RebuildJourney", "userID", userID)

	if userID == "" {
		return nil, models.ErrMissingUserID
	}
	events, err := s.store.GetJourneyEvents(userID)
	if err != nil {
		return nil, models.NewRepositoryError("load journey events", err)
	}

	journey, err := s.store.GetUserJourney(userID)
	if err != nil {
		return nil, models.NewRepositoryError("load user journey", err)
	}
	if journey == nil {
		journey = NewJourney(userID)
	}
	if err := RecalculateFromEvents(journey, events, s.cfg); err != nil {
		return nil, fmt.Errorf("replay journey for user %s: %w", userID, err)
	}
	if err := s.store.SaveUserJourney(*journey); err != nil {
		return nil, models.NewRepositoryError("save user journey", err)
	}
	s.invalidateInsights(ctx, userID)
	return journey, nil
}

func (s *Service) invalidateInsights(ctx context.Context, userID string) {
	if err := s.cache.Delete(ctx, insightsCacheKey(userID)); err != nil {
		slog.Warn("JourneyService insights invalidation failed", "error", err, "userID", userID)
	}
}

func insightsCacheKey(userID string) string {
	return "journey:insights:" + userID
}
