// Package scan turns scanned or typed item codes into loan/return decisions
// and runs the auto-confirm grace window.
package scan

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/mbodji/lendscan/internal/domain/models"
)

// ErrEmptyCode indicates the scanned or typed code was blank.
var ErrEmptyCode = errors.New("empty item code")

// ErrCodeNotFound indicates no control in the selected event matches the code.
var ErrCodeNotFound = errors.New("no item with that code in the selected event")

// ErrUnknownCandidate indicates a manual pick that is not part of the current
// ambiguous candidate set.
var ErrUnknownCandidate = errors.New("choice is not an ambiguous candidate")

// ControlFinder is the exact-match store lookup the resolver runs on every
// scan. Exact equality on the display code; fuzzy matching belongs to the
// search UI, not here.
type ControlFinder interface {
	FindControlsByCode(ctx context.Context, eventID primitive.ObjectID, code string) ([]models.ControlRecord, error)
}

// Resolution is the outcome of a scan. Exactly one of the fields is set:
// Ambiguous carries the candidates awaiting a manual pick, Pending the armed
// auto-confirm action.
type Resolution struct {
	Ambiguous []models.ControlRecord
	Pending   *PendingSnapshot
}

// Service resolves codes against the store and owns the pending-action state
// machine plus the ambiguous candidate set awaiting manual resolution.
type Service struct {
	finder  ControlFinder
	pending *Pending
	logger  *zap.Logger

	mu         sync.Mutex
	candidates []models.ControlRecord
}

// NewService wires a scan service.
func NewService(finder ControlFinder, pending *Pending, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		finder:  finder,
		pending: pending,
		logger:  logger,
	}
}

// Resolve maps a code to zero, one or many controls of the active event.
// Zero matches yield ErrCodeNotFound with no state change. Multiple matches
// are stored as the ambiguous candidate set and returned for a manual pick.
// Exactly one match arms the auto-confirm window, replacing any pending
// action: loan when the record waits, return when it is out.
func (s *Service) Resolve(ctx context.Context, eventID primitive.ObjectID, code string) (Resolution, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return Resolution{}, ErrEmptyCode
	}

	matches, err := s.finder.FindControlsByCode(ctx, eventID, code)
	if err != nil {
		return Resolution{}, fmt.Errorf("scan lookup failed: %w", err)
	}

	switch len(matches) {
	case 0:
		return Resolution{}, ErrCodeNotFound
	case 1:
		s.setCandidates(nil)
		snap := s.pending.Arm(matches[0], actionFor(matches[0]))
		return Resolution{Pending: &snap}, nil
	default:
		s.setCandidates(matches)
		s.logger.Info("ambiguous scan, awaiting manual pick",
			zap.String("code", code), zap.Int("candidates", len(matches)))
		return Resolution{Ambiguous: matches}, nil
	}
}

// Pick arms the pending action for one record out of the current ambiguous
// candidate set.
func (s *Service) Pick(controlID primitive.ObjectID) (PendingSnapshot, error) {
	s.mu.Lock()
	var chosen *models.ControlRecord
	for i := range s.candidates {
		if s.candidates[i].ID == controlID {
			chosen = &s.candidates[i]
			break
		}
	}
	if chosen == nil {
		s.mu.Unlock()
		return PendingSnapshot{}, ErrUnknownCandidate
	}
	record := *chosen
	s.candidates = nil
	s.mu.Unlock()

	return s.pending.Arm(record, actionFor(record)), nil
}

// Candidates returns the ambiguous match set awaiting manual resolution.
func (s *Service) Candidates() []models.ControlRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.ControlRecord(nil), s.candidates...)
}

// Pending returns the pending action, if any.
func (s *Service) Pending() (PendingSnapshot, bool) {
	return s.pending.Snapshot()
}

// Confirm commits the pending action identified by token.
func (s *Service) Confirm(ctx context.Context, token uuid.UUID) (models.ControlRecord, error) {
	return s.pending.Confirm(ctx, token)
}

// Cancel discards the pending action without mutating anything.
func (s *Service) Cancel(token uuid.UUID) (PendingSnapshot, error) {
	return s.pending.Cancel(token)
}

// ReLoan commits a pending return and immediately loans the item again.
func (s *Service) ReLoan(ctx context.Context, token uuid.UUID) (models.ControlRecord, error) {
	return s.pending.ReLoan(ctx, token)
}

// Reset drops the pending action and the ambiguous candidate set; called when
// the event context changes so leftovers cannot act on the new context.
func (s *Service) Reset() {
	s.setCandidates(nil)
	s.pending.Reset()
}

func (s *Service) setCandidates(candidates []models.ControlRecord) {
	s.mu.Lock()
	s.candidates = candidates
	s.mu.Unlock()
}

func actionFor(record models.ControlRecord) models.Action {
	if record.Loaned {
		return models.ActionReturn
	}
	return models.ActionLoan
}
