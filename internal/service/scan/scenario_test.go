package scan

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mbodji/lendscan/internal/domain/models"
	"github.com/mbodji/lendscan/internal/notify"
	"github.com/mbodji/lendscan/internal/service/tracking"
)

// memStore backs the full scan→confirm→mutate loop: it serves both the
// resolver's exact-code lookups and the executor's mutations.
type memStore struct {
	mu       sync.Mutex
	controls map[primitive.ObjectID]models.ControlRecord
	history  []models.HistoryRecord
}

func newMemStore(records ...models.ControlRecord) *memStore {
	controls := make(map[primitive.ObjectID]models.ControlRecord, len(records))
	for _, rec := range records {
		controls[rec.ID] = rec
	}
	return &memStore{controls: controls}
}

func (m *memStore) ListControls(_ context.Context, eventID primitive.ObjectID) ([]models.ControlRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ControlRecord
	for _, rec := range m.controls {
		if rec.EventID == eventID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *memStore) FindControlsByCode(_ context.Context, eventID primitive.ObjectID, code string) ([]models.ControlRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ControlRecord
	for _, rec := range m.controls {
		if rec.EventID == eventID && rec.ItemCode == code {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *memStore) UpdateControlStatus(_ context.Context, id primitive.ObjectID, loaned bool, loanedAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.controls[id]
	rec.Loaned = loaned
	rec.LoanedAt = loanedAt
	m.controls[id] = rec
	return nil
}

func (m *memStore) InsertHistory(_ context.Context, record models.HistoryRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = append(m.history, record)
	return nil
}

func (m *memStore) CountHistory(_ context.Context, eventID primitive.ObjectID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, rec := range m.history {
		if rec.EventID == eventID {
			n++
		}
	}
	return n, nil
}

func (m *memStore) get(id primitive.ObjectID) models.ControlRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.controls[id]
}

// The end-to-end operator loop: scan arms a loan which auto-confirms, a
// second scan of the now-loaned item arms a return, and cancelling that
// return leaves the loan untouched.
func TestScanConfirmRescanCancelLoop(t *testing.T) {
	rec := testRecord("A")
	store := newMemStore(rec)

	trackingSvc := tracking.NewService(store, tracking.NewLists(), notify.NewBus(), nil)
	pending := NewPending(trackingSvc, testWindow, testTick, nil)
	svc := NewService(store, pending, nil)

	ctx := context.Background()
	require.NoError(t, trackingSvc.Refresh(ctx, rec.EventID, true))

	res, err := svc.Resolve(ctx, rec.EventID, "A")
	require.NoError(t, err)
	require.NotNil(t, res.Pending)
	assert.Equal(t, models.ActionLoan, res.Pending.Action)
	assert.Equal(t, testWindow, res.Pending.Remaining)

	// Let the grace window expire; the loan commits as if confirmed manually.
	require.Eventually(t, func() bool {
		return store.get(rec.ID).Loaned
	}, 10*testWindow, testTick)

	stored := store.get(rec.ID)
	require.NotNil(t, stored.LoanedAt)
	loanedAt := *stored.LoanedAt

	res, err = svc.Resolve(ctx, rec.EventID, "A")
	require.NoError(t, err)
	require.NotNil(t, res.Pending)
	assert.Equal(t, models.ActionReturn, res.Pending.Action)

	_, err = svc.Cancel(res.Pending.Token)
	require.NoError(t, err)

	time.Sleep(3 * testWindow)

	stored = store.get(rec.ID)
	assert.True(t, stored.Loaned)
	require.NotNil(t, stored.LoanedAt)
	assert.Equal(t, loanedAt, *stored.LoanedAt)
	assert.Empty(t, store.history)
}
