package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// Item is a physical asset registered in the catalog. The loan core never
// writes items; registration and editing happen elsewhere.
type Item struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Code     string             `bson:"code" json:"code"`
	Name     string             `bson:"name" json:"name"`
	ImageURL string             `bson:"image_url,omitempty" json:"imageUrl,omitempty"`
}

// Event is an operational context (a fair, a shoot, a work day) under which
// items are lent out. The operator selects exactly one event at a time.
type Event struct {
	ID   primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Code string             `bson:"code" json:"code"`
	Name string             `bson:"name" json:"name"`
}
