package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ControlRecord is the checkout-state row linking one item to one event.
// Loaned and LoanedAt move together: a record is loaned exactly when it
// carries a loan timestamp.
type ControlRecord struct {
	ID      primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ItemID  primitive.ObjectID `bson:"item_id" json:"itemId"`
	EventID primitive.ObjectID `bson:"event_id" json:"eventId"`

	// Item fields are denormalized onto the control document so scans can
	// match on the display code without a join.
	ItemCode  string `bson:"item_code" json:"itemCode"`
	ItemName  string `bson:"item_name" json:"itemName"`
	ItemImage string `bson:"item_image,omitempty" json:"itemImage,omitempty"`

	Loaned   bool       `bson:"loaned" json:"loaned"`
	LoanedAt *time.Time `bson:"loaned_at,omitempty" json:"loanedAt,omitempty"`
}

// Consistent reports whether the status flag and the loan timestamp agree.
func (c ControlRecord) Consistent() bool {
	return c.Loaned == (c.LoanedAt != nil)
}

// HistoryRecord is one closed checkout interval, written once on a
// successful return and never mutated afterward.
type HistoryRecord struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ItemID    primitive.ObjectID `bson:"item_id" json:"itemId"`
	EventID   primitive.ObjectID `bson:"event_id" json:"eventId"`
	StartTime time.Time          `bson:"start_time" json:"startTime"`
	EndTime   time.Time          `bson:"end_time" json:"endTime"`
}
