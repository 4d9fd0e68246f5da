// Package tracking performs the loan/return mutations and keeps the locally
// displayed lists reconciled with the shared store.
package tracking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/mbodji/lendscan/internal/domain/models"
	"github.com/mbodji/lendscan/internal/notify"
)

// ErrActionInFlight indicates a loan or return is already being executed.
// Callers treat it as a no-op, not something to queue or retry.
var ErrActionInFlight = errors.New("another action is in flight")

// ErrAlreadyLoaned indicates a loan was requested for a loaned record.
var ErrAlreadyLoaned = errors.New("item is already loaned")

// ErrNotLoaned indicates a return was requested for a waiting record.
var ErrNotLoaned = errors.New("item is not loaned")

// ErrMissingRecordID indicates the control record has no identifier to key
// the store update on.
var ErrMissingRecordID = errors.New("control record has no identifier")

// ErrPartialReLoan indicates a re-loan returned the item but failed to loan
// it back out; the item is left waiting.
var ErrPartialReLoan = errors.New("re-loan incomplete: returned but not loaned")

// Store is the subset of the shared store this service mutates and reads.
type Store interface {
	ListControls(ctx context.Context, eventID primitive.ObjectID) ([]models.ControlRecord, error)
	UpdateControlStatus(ctx context.Context, id primitive.ObjectID, loaned bool, loanedAt *time.Time) error
	InsertHistory(ctx context.Context, record models.HistoryRecord) error
	CountHistory(ctx context.Context, eventID primitive.ObjectID) (int64, error)
}

// Service executes loan/return mutations one at a time and reconciles the
// displayed lists against store snapshots.
type Service struct {
	store  Store
	lists  *Lists
	bus    *notify.Bus
	logger *zap.Logger
	now    func() time.Time

	mu   sync.Mutex
	busy bool
}

// NewService wires a tracking service.
func NewService(store Store, lists *Lists, bus *notify.Bus, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:  store,
		lists:  lists,
		bus:    bus,
		logger: logger,
		now:    time.Now,
	}
}

// Lists exposes the held list state for read endpoints.
func (s *Service) Lists() *Lists {
	return s.lists
}

// begin acquires the in-flight flag. A false return means another mutation is
// running; per design the caller backs off instead of queueing.
func (s *Service) begin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return false
	}
	s.busy = true
	return true
}

func (s *Service) end() {
	s.mu.Lock()
	s.busy = false
	s.mu.Unlock()
}

// Loan marks the record checked out and moves it to the head of the loaned
// list. On store failure the lists are untouched.
func (s *Service) Loan(ctx context.Context, record models.ControlRecord) (models.ControlRecord, error) {
	if !s.begin() {
		return record, ErrActionInFlight
	}
	defer s.end()

	return s.loan(ctx, record)
}

// Return marks the record available again, moves it to the head of the
// waiting list, and closes its checkout interval with a best-effort history
// write.
func (s *Service) Return(ctx context.Context, record models.ControlRecord) (models.ControlRecord, error) {
	if !s.begin() {
		return record, ErrActionInFlight
	}
	defer s.end()

	return s.doReturn(ctx, record)
}

// ReLoan returns the record and, only if that succeeds, immediately loans it
// out again as one compound operation. A loan failure after the successful
// return is not retried or reverted; the record stays waiting and the error
// wraps ErrPartialReLoan.
func (s *Service) ReLoan(ctx context.Context, record models.ControlRecord) (models.ControlRecord, error) {
	if !s.begin() {
		return record, ErrActionInFlight
	}
	defer s.end()

	returned, err := s.doReturn(ctx, record)
	if err != nil {
		return record, err
	}

	loaned, err := s.loan(ctx, returned)
	if err != nil {
		s.logger.Warn("re-loan left item waiting after successful return",
			zap.String("item_code", record.ItemCode), zap.Error(err))
		return returned, fmt.Errorf("%w: %w", ErrPartialReLoan, err)
	}
	return loaned, nil
}

func (s *Service) loan(ctx context.Context, record models.ControlRecord) (models.ControlRecord, error) {
	if record.ID.IsZero() {
		return record, ErrMissingRecordID
	}
	if record.Loaned {
		return record, ErrAlreadyLoaned
	}

	now := s.now()
	if err := s.store.UpdateControlStatus(ctx, record.ID, true, &now); err != nil {
		s.publish(models.ActionLoan, false, record.ItemCode)
		return record, fmt.Errorf("loan failed: %w", err)
	}

	updated := record
	updated.Loaned = true
	updated.LoanedAt = &now

	s.lists.Promote(updated)
	s.publish(models.ActionLoan, true, updated.ItemCode)
	s.refreshAfterMutation(ctx, updated.EventID)

	s.logger.Info("item loaned", zap.String("item_code", updated.ItemCode))
	return updated, nil
}

func (s *Service) doReturn(ctx context.Context, record models.ControlRecord) (models.ControlRecord, error) {
	if record.ID.IsZero() {
		return record, ErrMissingRecordID
	}
	if !record.Loaned || record.LoanedAt == nil {
		return record, ErrNotLoaned
	}

	now := s.now()
	if err := s.store.UpdateControlStatus(ctx, record.ID, false, nil); err != nil {
		s.publish(models.ActionReturn, false, record.ItemCode)
		return record, fmt.Errorf("return failed: %w", err)
	}

	updated := record
	updated.Loaned = false
	updated.LoanedAt = nil

	s.lists.Demote(updated)
	s.publish(models.ActionReturn, true, updated.ItemCode)

	s.recordHistory(ctx, record, now)
	s.refreshAfterMutation(ctx, updated.EventID)

	s.logger.Info("item returned", zap.String("item_code", updated.ItemCode))
	return updated, nil
}

// recordHistory closes the checkout interval. The status mutation is already
// committed; a failure here is logged and only costs the aggregate-counter
// increment, which fires solely on a successful insert.
func (s *Service) recordHistory(ctx context.Context, prior models.ControlRecord, endTime time.Time) {
	if prior.ItemID.IsZero() || prior.EventID.IsZero() {
		s.logger.Warn("skipping history record, item/event linkage missing",
			zap.String("control_id", prior.ID.Hex()))
		return
	}

	record := models.HistoryRecord{
		ItemID:    prior.ItemID,
		EventID:   prior.EventID,
		StartTime: *prior.LoanedAt,
		EndTime:   endTime,
	}
	if err := s.store.InsertHistory(ctx, record); err != nil {
		s.logger.Error("failed to write history record", zap.Error(err),
			zap.String("item_code", prior.ItemCode))
		return
	}
	s.lists.IncrementHistoryCount()
}

// refreshAfterMutation runs an immediate reconciliation pass. Failures keep
// the optimistic local update; the next background pass retries.
func (s *Service) refreshAfterMutation(ctx context.Context, eventID primitive.ObjectID) {
	if err := s.Refresh(ctx, eventID, false); err != nil {
		s.logger.Warn("post-mutation refresh failed", zap.Error(err))
	}
}

// Refresh fetches the event's control snapshot and merges it into the held
// lists, then refreshes the history aggregate with a separate count query.
// On fetch failure an initial load clears the lists; a background pass keeps
// the last-known-good contents.
func (s *Service) Refresh(ctx context.Context, eventID primitive.ObjectID, initial bool) error {
	snapshot, err := s.store.ListControls(ctx, eventID)
	if err != nil {
		if initial {
			s.lists.Clear()
		}
		return fmt.Errorf("failed to fetch control snapshot: %w", err)
	}

	s.lists.Merge(snapshot)

	count, err := s.store.CountHistory(ctx, eventID)
	if err != nil {
		s.logger.Warn("failed to refresh history count", zap.Error(err))
		return nil
	}
	s.lists.SetHistoryCount(count)
	return nil
}

func (s *Service) publish(action models.Action, success bool, itemCode string) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(models.Notice{
		Type:     action,
		Success:  success,
		ItemCode: itemCode,
		At:       s.now(),
	})
}
