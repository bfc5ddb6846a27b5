package alerts

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-maintenance/internal/models"
)

// DefaultLiveCap bounds the live notification list when no cap is configured.
const DefaultLiveCap = 50

// ErrEmptyNotification is returned when a live notification has no title.
var ErrEmptyNotification = errors.New("live notification has no title")

// LiveNotification is a real-time event pushed into the feed.
type LiveNotification struct {
	ID          string          `json:"id,omitempty"`
	Severity    models.Severity `json:"severity"`
	Category    models.Category `json:"category"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	VehicleID   string          `json:"vehicle_id,omitempty"`
}

// View is one session's notification list.
type View struct {
	Alerts []models.Alert `json:"alerts"`
	Unread int            `json:"unread"`
	Total  int            `json:"total"`
}

// Feed merges live notifications with the structural alerts for each session.
// Structural alerts are never stored; dismiss and read only filter the view.
type Feed struct {
	mu      sync.RWMutex
	live    []models.Alert // newest first
	liveCap int
	store   SessionStore
	logger  logrus.FieldLogger
	now     func() time.Time
}

// NewFeed creates a feed keeping at most liveCap live notifications.
func NewFeed(store SessionStore, liveCap int, logger logrus.FieldLogger) *Feed {
	if liveCap <= 0 {
		liveCap = DefaultLiveCap
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Feed{liveCap: liveCap, store: store, logger: logger, now: time.Now}
}

// Broadcast adds a live notification visible to every session. A notification
// reusing an existing id replaces it.
func (f *Feed) Broadcast(n LiveNotification) (models.Alert, error) {
	if n.Title == "" {
		return models.Alert{}, ErrEmptyNotification
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Severity == "" {
		n.Severity = models.SeverityInfo
	}
	created := f.now()
	a := models.Alert{
		ID:          alertID(n.ID, KindLive),
		Kind:        KindLive,
		Severity:    n.Severity,
		Category:    n.Category,
		Title:       n.Title,
		Description: n.Description,
		VehicleID:   n.VehicleID,
		Live:        true,
		CreatedAt:   &created,
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	live := make([]models.Alert, 0, len(f.live)+1)
	live = append(live, a)
	for _, old := range f.live {
		if old.ID != a.ID {
			live = append(live, old)
		}
	}
	if len(live) > f.liveCap {
		live = live[:f.liveCap]
	}
	f.live = live

	f.logger.WithFields(logrus.Fields{"id": a.ID, "severity": a.Severity}).Debug("live notification received")
	return a, nil
}

// Live returns the current live notifications, newest first.
func (f *Feed) Live() []models.Alert {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]models.Alert, len(f.live))
	copy(out, f.live)
	return out
}

// Dismiss hides one alert from the session's view.
func (f *Feed) Dismiss(ctx context.Context, session, id string) error {
	if err := f.store.Dismiss(ctx, session, id); err != nil {
		return fmt.Errorf("dismiss %s: %w", id, err)
	}
	return nil
}

// MarkRead flags one alert as read for the session.
func (f *Feed) MarkRead(ctx context.Context, session, id string) error {
	if err := f.store.MarkRead(ctx, session, id); err != nil {
		return fmt.Errorf("mark read %s: %w", id, err)
	}
	return nil
}

// ClearAll dismisses every alert currently visible to the session. Alerts
// that appear later are shown again.
func (f *Feed) ClearAll(ctx context.Context, session string, structural []models.Alert) (int, error) {
	visible, _, err := f.visible(ctx, session, structural)
	if err != nil {
		return 0, err
	}
	if len(visible) == 0 {
		return 0, nil
	}
	ids := make([]string, len(visible))
	for i, a := range visible {
		ids[i] = a.ID
	}
	if err := f.store.Dismiss(ctx, session, ids...); err != nil {
		return 0, fmt.Errorf("clear notifications: %w", err)
	}
	return len(ids), nil
}

// View returns the session's merged, sorted list truncated to limit.
// A limit of 0 or less returns everything.
func (f *Feed) View(ctx context.Context, session string, structural []models.Alert, limit int) (*View, error) {
	visible, unread, err := f.visible(ctx, session, structural)
	if err != nil {
		return nil, err
	}
	v := &View{Alerts: visible, Unread: unread, Total: len(visible)}
	if limit > 0 && len(v.Alerts) > limit {
		v.Alerts = v.Alerts[:limit]
	}
	return v, nil
}

// UnreadCount returns how many visible alerts the session has not read.
func (f *Feed) UnreadCount(ctx context.Context, session string, structural []models.Alert) (int, error) {
	_, unread, err := f.visible(ctx, session, structural)
	return unread, err
}

func (f *Feed) visible(ctx context.Context, session string, structural []models.Alert) ([]models.Alert, int, error) {
	state, err := f.store.State(ctx, session)
	if err != nil {
		return nil, 0, fmt.Errorf("load session state: %w", err)
	}

	live := f.Live()
	merged := make([]models.Alert, 0, len(live)+len(structural))
	seen := make(map[string]struct{}, cap(merged))
	unread := 0
	for _, list := range [][]models.Alert{live, structural} {
		for _, a := range list {
			if _, dup := seen[a.ID]; dup || state.IsDismissed(a.ID) {
				continue
			}
			seen[a.ID] = struct{}{}
			a.Read = state.IsRead(a.ID)
			if !a.Read {
				unread++
			}
			merged = append(merged, a)
		}
	}
	SortBySeverity(merged)
	return merged, unread, nil
}
