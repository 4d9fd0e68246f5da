// Package eventctx owns the selected operational event and resets the scan
// and tracking state when it changes.
package eventctx

import (
	"context"
	"errors"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/mbodji/lendscan/internal/service/scan"
	"github.com/mbodji/lendscan/internal/service/tracking"
)

// ErrNoEventSelected indicates an operation that needs an active event ran
// before one was selected.
var ErrNoEventSelected = errors.New("no event selected")

// SelectionStore persists the last selected event across sessions.
type SelectionStore interface {
	Load() (string, bool, error)
	Save(eventID string) error
}

// Manager owns the event selection. Selecting an event persists the choice,
// drops scan state left over from the previous context, zeroes the
// aggregates and triggers an immediate initial reconciliation pass.
type Manager struct {
	sessions SelectionStore
	scans    *scan.Service
	tracking *tracking.Service
	logger   *zap.Logger

	mu       sync.RWMutex
	eventID  primitive.ObjectID
	selected bool
}

// NewManager wires the event context manager.
func NewManager(sessions SelectionStore, scans *scan.Service, trackingSvc *tracking.Service, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		sessions: sessions,
		scans:    scans,
		tracking: trackingSvc,
		logger:   logger,
	}
}

// Selected returns the active event identifier, if one is selected.
func (m *Manager) Selected() (primitive.ObjectID, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.eventID, m.selected
}

// Select switches the active event. Pending and ambiguous scan state from the
// previous context is dropped before anything else so stale callbacks cannot
// mutate the new context. An initial-load refresh failure leaves the lists
// empty and is logged, not surfaced.
func (m *Manager) Select(ctx context.Context, eventID primitive.ObjectID) {
	m.scans.Reset()

	m.mu.Lock()
	m.eventID = eventID
	m.selected = true
	m.mu.Unlock()

	if err := m.sessions.Save(eventID.Hex()); err != nil {
		m.logger.Warn("failed to persist event selection", zap.Error(err))
	}

	m.tracking.Lists().Clear()
	if err := m.tracking.Refresh(ctx, eventID, true); err != nil {
		m.logger.Error("initial refresh failed", zap.Error(err),
			zap.String("event_id", eventID.Hex()))
		return
	}

	m.logger.Info("event selected", zap.String("event_id", eventID.Hex()))
}

// Restore re-selects the event persisted by a previous session, if any.
func (m *Manager) Restore(ctx context.Context) {
	stored, ok, err := m.sessions.Load()
	if err != nil {
		m.logger.Warn("failed to load persisted event selection", zap.Error(err))
		return
	}
	if !ok {
		return
	}

	eventID, err := primitive.ObjectIDFromHex(stored)
	if err != nil {
		m.logger.Warn("ignoring malformed persisted event selection",
			zap.String("stored", stored), zap.Error(err))
		return
	}

	m.Select(ctx, eventID)
}
