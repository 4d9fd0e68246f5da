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
)

const (
	testWindow = 60 * time.Millisecond
	testTick   = 5 * time.Millisecond
)

// fakeExecutor records the mutations the timer commits.
type fakeExecutor struct {
	mu      sync.Mutex
	loans   []models.ControlRecord
	returns []models.ControlRecord
	reloans []models.ControlRecord
}

func (f *fakeExecutor) Loan(_ context.Context, record models.ControlRecord) (models.ControlRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loans = append(f.loans, record)
	now := time.Now()
	record.Loaned = true
	record.LoanedAt = &now
	return record, nil
}

func (f *fakeExecutor) Return(_ context.Context, record models.ControlRecord) (models.ControlRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.returns = append(f.returns, record)
	record.Loaned = false
	record.LoanedAt = nil
	return record, nil
}

func (f *fakeExecutor) ReLoan(_ context.Context, record models.ControlRecord) (models.ControlRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reloans = append(f.reloans, record)
	now := time.Now()
	record.Loaned = true
	record.LoanedAt = &now
	return record, nil
}

func (f *fakeExecutor) counts() (loans, returns, reloans int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.loans), len(f.returns), len(f.reloans)
}

func testRecord(code string) models.ControlRecord {
	return models.ControlRecord{
		ID:       primitive.NewObjectID(),
		ItemID:   primitive.NewObjectID(),
		EventID:  primitive.NewObjectID(),
		ItemCode: code,
	}
}

func TestExpiryConfirmsExactlyOnce(t *testing.T) {
	exec := &fakeExecutor{}
	pending := NewPending(exec, testWindow, testTick, nil)

	pending.Arm(testRecord("A"), models.ActionLoan)

	time.Sleep(3 * testWindow)

	loans, returns, reloans := exec.counts()
	assert.Equal(t, 1, loans)
	assert.Zero(t, returns)
	assert.Zero(t, reloans)

	_, active := pending.Snapshot()
	assert.False(t, active)
}

func TestManualConfirmPreemptsExpiry(t *testing.T) {
	exec := &fakeExecutor{}
	pending := NewPending(exec, testWindow, testTick, nil)

	snap := pending.Arm(testRecord("A"), models.ActionLoan)

	record, err := pending.Confirm(context.Background(), snap.Token)
	require.NoError(t, err)
	assert.True(t, record.Loaned)

	time.Sleep(3 * testWindow)

	loans, _, _ := exec.counts()
	assert.Equal(t, 1, loans)
}

func TestCancelPerformsNoMutation(t *testing.T) {
	exec := &fakeExecutor{}
	pending := NewPending(exec, testWindow, testTick, nil)

	rec := testRecord("A")
	snap := pending.Arm(rec, models.ActionLoan)

	cancelled, err := pending.Cancel(snap.Token)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, cancelled.Record.ID)

	time.Sleep(3 * testWindow)

	loans, returns, _ := exec.counts()
	assert.Zero(t, loans)
	assert.Zero(t, returns)
}

func TestNewArmReplacesPendingWithoutFiringOld(t *testing.T) {
	exec := &fakeExecutor{}
	pending := NewPending(exec, testWindow, testTick, nil)

	old := pending.Arm(testRecord("A"), models.ActionLoan)
	replacement := pending.Arm(testRecord("B"), models.ActionLoan)

	_, err := pending.Confirm(context.Background(), old.Token)
	assert.ErrorIs(t, err, ErrStalePendingToken)

	time.Sleep(3 * testWindow)

	loans, _, _ := exec.counts()
	require.Equal(t, 1, loans)
	exec.mu.Lock()
	fired := exec.loans[0]
	exec.mu.Unlock()
	assert.Equal(t, replacement.Record.ID, fired.ID)
}

func TestReLoanRequiresPendingReturn(t *testing.T) {
	exec := &fakeExecutor{}
	pending := NewPending(exec, testWindow, testTick, nil)

	snap := pending.Arm(testRecord("A"), models.ActionLoan)

	_, err := pending.ReLoan(context.Background(), snap.Token)
	assert.ErrorIs(t, err, ErrReLoanNotAllowed)

	// The refused re-loan leaves the pending loan in place.
	_, active := pending.Snapshot()
	assert.True(t, active)

	pending.Reset()
}

func TestReLoanDelegatesForPendingReturn(t *testing.T) {
	exec := &fakeExecutor{}
	pending := NewPending(exec, testWindow, testTick, nil)

	rec := testRecord("A")
	now := time.Now()
	rec.Loaned = true
	rec.LoanedAt = &now

	snap := pending.Arm(rec, models.ActionReturn)

	record, err := pending.ReLoan(context.Background(), snap.Token)
	require.NoError(t, err)
	assert.True(t, record.Loaned)

	_, _, reloans := exec.counts()
	assert.Equal(t, 1, reloans)
}

func TestCountdownTracksRemainingTime(t *testing.T) {
	exec := &fakeExecutor{}
	pending := NewPending(exec, 200*time.Millisecond, testTick, nil)

	armed := pending.Arm(testRecord("A"), models.ActionLoan)
	assert.Equal(t, 200*time.Millisecond, armed.Remaining)
	assert.Equal(t, 1, armed.DisplaySeconds)

	time.Sleep(100 * time.Millisecond)

	snap, active := pending.Snapshot()
	require.True(t, active)
	assert.Less(t, snap.Remaining, 200*time.Millisecond)
	assert.Greater(t, snap.Remaining, time.Duration(0))

	pending.Reset()
}

func TestConfirmWithoutPendingAction(t *testing.T) {
	pending := NewPending(&fakeExecutor{}, testWindow, testTick, nil)

	_, err := pending.Confirm(context.Background(), [16]byte{1})
	assert.ErrorIs(t, err, ErrNoPendingAction)
}
