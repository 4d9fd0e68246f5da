package tracking

import (
	"sort"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mbodji/lendscan/internal/domain/models"
)

// Lists holds the waiting/loaned partition of the selected event's controls
// plus the historical-loan aggregate count. It is the locally displayed
// state; the shared store is merged into it without reordering what the
// operator is already viewing.
type Lists struct {
	mu           sync.RWMutex
	waiting      []models.ControlRecord
	loaned       []models.ControlRecord
	historyCount int64
}

// NewLists creates empty list state.
func NewLists() *Lists {
	return &Lists{}
}

// Snapshot returns copies of the waiting and loaned lists.
func (l *Lists) Snapshot() (waiting, loaned []models.ControlRecord) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	waiting = append([]models.ControlRecord(nil), l.waiting...)
	loaned = append([]models.ControlRecord(nil), l.loaned...)
	return waiting, loaned
}

// HistoryCount returns the aggregate count of closed checkout intervals.
func (l *Lists) HistoryCount() int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.historyCount
}

// SetHistoryCount replaces the aggregate count with a fresh store value.
func (l *Lists) SetHistoryCount(n int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.historyCount = n
}

// IncrementHistoryCount bumps the aggregate after a successful history insert.
func (l *Lists) IncrementHistoryCount() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.historyCount++
}

// Clear drops both lists and zeroes the aggregate count.
func (l *Lists) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.waiting = nil
	l.loaned = nil
	l.historyCount = 0
}

// Promote moves a freshly loaned record to the head of the loaned list.
func (l *Lists) Promote(record models.ControlRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.waiting = removeByID(l.waiting, record.ID)
	l.loaned = removeByID(l.loaned, record.ID)
	l.loaned = append([]models.ControlRecord{record}, l.loaned...)
}

// Demote moves a freshly returned record to the head of the waiting list.
func (l *Lists) Demote(record models.ControlRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.loaned = removeByID(l.loaned, record.ID)
	l.waiting = removeByID(l.waiting, record.ID)
	l.waiting = append([]models.ControlRecord{record}, l.waiting...)
}

// Merge reconciles a full store snapshot into the held lists. Records the
// operator already sees keep their relative order (with fields refreshed);
// records absent from the snapshot's matching partition are dropped; records
// not yet displayed are appended. Newly surfaced loaned records are sorted by
// most-recent loan timestamp before appending. Newly surfaced waiting records
// keep snapshot order, matching the long-standing behavior of the shared
// store's other clients.
func (l *Lists) Merge(snapshot []models.ControlRecord) {
	fetchedWaiting := make(map[primitive.ObjectID]models.ControlRecord)
	fetchedLoaned := make(map[primitive.ObjectID]models.ControlRecord)
	var waitingOrder, loanedOrder []primitive.ObjectID

	for _, rec := range snapshot {
		if rec.Loaned {
			fetchedLoaned[rec.ID] = rec
			loanedOrder = append(loanedOrder, rec.ID)
		} else {
			fetchedWaiting[rec.ID] = rec
			waitingOrder = append(waitingOrder, rec.ID)
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.waiting = mergeSide(l.waiting, fetchedWaiting, waitingOrder, nil)
	l.loaned = mergeSide(l.loaned, fetchedLoaned, loanedOrder, func(appended []models.ControlRecord) {
		sort.SliceStable(appended, func(i, j int) bool {
			return loanedAfter(appended[i], appended[j])
		})
	})
}

// mergeSide retains still-present local records in order, refreshed, then
// appends snapshot records not yet held. sortAppended, when non-nil, orders
// the appended tail before it is attached.
func mergeSide(local []models.ControlRecord, fetched map[primitive.ObjectID]models.ControlRecord, order []primitive.ObjectID, sortAppended func([]models.ControlRecord)) []models.ControlRecord {
	merged := make([]models.ControlRecord, 0, len(fetched))
	seen := make(map[primitive.ObjectID]bool, len(local))

	for _, rec := range local {
		fresh, ok := fetched[rec.ID]
		if !ok {
			continue
		}
		merged = append(merged, fresh)
		seen[rec.ID] = true
	}

	var appended []models.ControlRecord
	for _, id := range order {
		if !seen[id] {
			appended = append(appended, fetched[id])
		}
	}
	if sortAppended != nil {
		sortAppended(appended)
	}

	return append(merged, appended...)
}

func loanedAfter(a, b models.ControlRecord) bool {
	if a.LoanedAt == nil {
		return false
	}
	if b.LoanedAt == nil {
		return true
	}
	return a.LoanedAt.After(*b.LoanedAt)
}

func removeByID(records []models.ControlRecord, id primitive.ObjectID) []models.ControlRecord {
	for i, rec := range records {
		if rec.ID == id {
			return append(records[:i:i], records[i+1:]...)
		}
	}
	return records
}
