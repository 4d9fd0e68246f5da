package tracking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mbodji/lendscan/internal/domain/models"
)

func waitingRecord(code string) models.ControlRecord {
	return models.ControlRecord{
		ID:       primitive.NewObjectID(),
		ItemID:   primitive.NewObjectID(),
		EventID:  primitive.NewObjectID(),
		ItemCode: code,
		ItemName: "item " + code,
	}
}

func loanedRecord(code string, at time.Time) models.ControlRecord {
	rec := waitingRecord(code)
	rec.Loaned = true
	rec.LoanedAt = &at
	return rec
}

func codes(records []models.ControlRecord) []string {
	out := make([]string, len(records))
	for i, rec := range records {
		out[i] = rec.ItemCode
	}
	return out
}

func TestMergeKeepsExistingRelativeOrder(t *testing.T) {
	a := waitingRecord("A")
	b := waitingRecord("B")
	c := waitingRecord("C")

	lists := NewLists()
	lists.Merge([]models.ControlRecord{a, b, c})

	// The operator sees A, B, C. A snapshot arriving in a different order
	// must not reshuffle them.
	lists.Merge([]models.ControlRecord{c, a, b})

	waiting, _ := lists.Snapshot()
	assert.Equal(t, []string{"A", "B", "C"}, codes(waiting))
}

func TestMergeRefreshesFieldsInPlace(t *testing.T) {
	a := waitingRecord("A")
	b := waitingRecord("B")

	lists := NewLists()
	lists.Merge([]models.ControlRecord{a, b})

	renamed := a
	renamed.ItemName = "renamed elsewhere"
	lists.Merge([]models.ControlRecord{b, renamed})

	waiting, _ := lists.Snapshot()
	require.Equal(t, []string{"A", "B"}, codes(waiting))
	assert.Equal(t, "renamed elsewhere", waiting[0].ItemName)
}

func TestMergeDropsRecordsMissingFromSnapshot(t *testing.T) {
	a := waitingRecord("A")
	b := waitingRecord("B")

	lists := NewLists()
	lists.Merge([]models.ControlRecord{a, b})
	lists.Merge([]models.ControlRecord{b})

	waiting, _ := lists.Snapshot()
	assert.Equal(t, []string{"B"}, codes(waiting))
}

func TestMergeAppendsNewWaitingInSnapshotOrder(t *testing.T) {
	a := waitingRecord("A")
	b := waitingRecord("B")
	c := waitingRecord("C")

	lists := NewLists()
	lists.Merge([]models.ControlRecord{a})
	lists.Merge([]models.ControlRecord{c, a, b})

	waiting, _ := lists.Snapshot()
	assert.Equal(t, []string{"A", "C", "B"}, codes(waiting))
}

func TestMergeAppendsNewLoanedByRecency(t *testing.T) {
	base := time.Now()
	a := loanedRecord("A", base)
	older := loanedRecord("OLD", base.Add(-2*time.Hour))
	newer := loanedRecord("NEW", base.Add(time.Hour))

	lists := NewLists()
	lists.Merge([]models.ControlRecord{a})
	lists.Merge([]models.ControlRecord{older, a, newer})

	_, loaned := lists.Snapshot()
	assert.Equal(t, []string{"A", "NEW", "OLD"}, codes(loaned))
}

func TestMergeMovesRecordAcrossPartitions(t *testing.T) {
	a := waitingRecord("A")

	lists := NewLists()
	lists.Merge([]models.ControlRecord{a})

	// Another session loaned A out; the next snapshot carries it loaned.
	now := time.Now()
	moved := a
	moved.Loaned = true
	moved.LoanedAt = &now
	lists.Merge([]models.ControlRecord{moved})

	waiting, loaned := lists.Snapshot()
	assert.Empty(t, waiting)
	require.Len(t, loaned, 1)
	assert.True(t, loaned[0].Consistent())
}

func TestPromoteAndDemotePlaceRecordAtHead(t *testing.T) {
	a := waitingRecord("A")
	b := waitingRecord("B")

	lists := NewLists()
	lists.Merge([]models.ControlRecord{a, b})

	now := time.Now()
	loanedA := a
	loanedA.Loaned = true
	loanedA.LoanedAt = &now
	lists.Promote(loanedA)

	waiting, loaned := lists.Snapshot()
	assert.Equal(t, []string{"B"}, codes(waiting))
	require.Equal(t, []string{"A"}, codes(loaned))

	returnedA := a
	lists.Demote(returnedA)

	waiting, loaned = lists.Snapshot()
	assert.Equal(t, []string{"A", "B"}, codes(waiting))
	assert.Empty(t, loaned)
}

func TestClearZeroesEverything(t *testing.T) {
	lists := NewLists()
	lists.Merge([]models.ControlRecord{waitingRecord("A")})
	lists.SetHistoryCount(7)

	lists.Clear()

	waiting, loaned := lists.Snapshot()
	assert.Empty(t, waiting)
	assert.Empty(t, loaned)
	assert.Zero(t, lists.HistoryCount())
}
