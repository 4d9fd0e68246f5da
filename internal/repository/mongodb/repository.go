package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mbodji/lendscan/internal/domain/models"
)

const (
	controlsCollection = "controls"
	historyCollection  = "history"
	eventsCollection   = "events"
)

// Repository is the MongoDB-backed store shared by all operator sessions.
type Repository struct {
	client *mongo.Client
	dbName string
}

// NewRepository connects to MongoDB and verifies the connection.
func NewRepository(ctx context.Context, uri string, dbName string) (*Repository, error) {
	clientOptions := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	// Ping the database to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return &Repository{
		client: client,
		dbName: dbName,
	}, nil
}

func (r *Repository) collection(name string) *mongo.Collection {
	return r.client.Database(r.dbName).Collection(name)
}

// ListControls fetches the full control snapshot for one event.
func (r *Repository) ListControls(ctx context.Context, eventID primitive.ObjectID) ([]models.ControlRecord, error) {
	cursor, err := r.collection(controlsCollection).Find(ctx, bson.M{"event_id": eventID})
	if err != nil {
		return nil, fmt.Errorf("failed to list controls: %w", err)
	}
	defer cursor.Close(ctx)

	var records []models.ControlRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode controls: %w", err)
	}
	return records, nil
}

// FindControlsByCode fetches the controls of one event whose item display
// code exactly equals the given code.
func (r *Repository) FindControlsByCode(ctx context.Context, eventID primitive.ObjectID, code string) ([]models.ControlRecord, error) {
	filter := bson.M{"event_id": eventID, "item_code": code}
	cursor, err := r.collection(controlsCollection).Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to find controls by code: %w", err)
	}
	defer cursor.Close(ctx)

	var records []models.ControlRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode controls: %w", err)
	}
	return records, nil
}

// UpdateControlStatus writes the status flag and loan timestamp of one
// control. A nil loanedAt clears the stored timestamp.
func (r *Repository) UpdateControlStatus(ctx context.Context, id primitive.ObjectID, loaned bool, loanedAt *time.Time) error {
	update := bson.M{"$set": bson.M{"loaned": loaned, "loaned_at": loanedAt}}
	result, err := r.collection(controlsCollection).UpdateByID(ctx, id, update)
	if err != nil {
		return fmt.Errorf("failed to update control %s: %w", id.Hex(), err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("control %s not found", id.Hex())
	}
	return nil
}

// InsertHistory appends one closed checkout interval.
func (r *Repository) InsertHistory(ctx context.Context, record models.HistoryRecord) error {
	if _, err := r.collection(historyCollection).InsertOne(ctx, record); err != nil {
		return fmt.Errorf("failed to insert history record: %w", err)
	}
	return nil
}

// CountHistory returns the number of closed checkout intervals for one event.
func (r *Repository) CountHistory(ctx context.Context, eventID primitive.ObjectID) (int64, error) {
	count, err := r.collection(historyCollection).CountDocuments(ctx, bson.M{"event_id": eventID})
	if err != nil {
		return 0, fmt.Errorf("failed to count history records: %w", err)
	}
	return count, nil
}

// ListEvents returns all events for the selection UI, most recent code first.
func (r *Repository) ListEvents(ctx context.Context) ([]models.Event, error) {
	opts := options.Find().SetSort(bson.D{{Key: "code", Value: -1}})
	cursor, err := r.collection(eventsCollection).Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer cursor.Close(ctx)

	var events []models.Event
	if err := cursor.All(ctx, &events); err != nil {
		return nil, fmt.Errorf("failed to decode events: %w", err)
	}
	return events, nil
}

// Close closes the MongoDB connection.
func (r *Repository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}
