package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/mamadbah2/lottrace/internal/domain/models"
)

const (
	lotsCollection       = "lots"
	thresholdsCollection = "thresholds"
	eventsCollection     = "events"
	thresholdsDocID      = "current"
)

// MongoDBRepository implements repository.Store for MongoDB.
type MongoDBRepository struct {
	client *mongo.Client
	db     *mongo.Database
	logger *zap.Logger
}

// NewMongoDBRepository connects, pings and prepares indexes.
func NewMongoDBRepository(ctx context.Context, uri string, dbName string, logger *zap.Logger) (*MongoDBRepository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	clientOptions := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	// Ping the database to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	r := &MongoDBRepository{
		client: client,
		db:     client.Database(dbName),
		logger: logger,
	}

	if err := r.ensureIndexes(ctx); err != nil {
		return nil, err
	}

	return r, nil
}

func (r *MongoDBRepository) ensureIndexes(ctx context.Context) error {
	_, err := r.db.Collection(lotsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "registered_by", Value: 1}, {Key: "registration_timestamp", Value: 1}}},
		{Keys: bson.D{{Key: "registration_timestamp", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create lot indexes: %w", err)
	}

	_, err = r.db.Collection(eventsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "lot_id", Value: 1}, {Key: "occurred_at", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("create event indexes: %w", err)
	}
	return nil
}

// CreateLot inserts a lot; the lot id is the document _id.
func (r *MongoDBRepository) CreateLot(ctx context.Context, lot models.Lot) error {
	_, err := r.db.Collection(lotsCollection).InsertOne(ctx, lot)
	if mongo.IsDuplicateKeyError(err) {
		return models.ErrDuplicateLot
	}
	if err != nil {
		return fmt.Errorf("failed to insert lot %s: %w", lot.LotID, err)
	}
	return nil
}

// GetLot loads a lot by id.
func (r *MongoDBRepository) GetLot(ctx context.Context, lotID string) (models.Lot, error) {
	var lot models.Lot
	err := r.db.Collection(lotsCollection).FindOne(ctx, bson.M{"_id": lotID}).Decode(&lot)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Lot{}, models.ErrLotNotFound
	}
	if err != nil {
		return models.Lot{}, fmt.Errorf("failed to load lot %s: %w", lotID, err)
	}
	return lot, nil
}

// SaveLot replaces a stored lot.
func (r *MongoDBRepository) SaveLot(ctx context.Context, lot models.Lot) error {
	res, err := r.db.Collection(lotsCollection).ReplaceOne(ctx, bson.M{"_id": lot.LotID}, lot)
	if err != nil {
		return fmt.Errorf("failed to replace lot %s: %w", lot.LotID, err)
	}
	if res.MatchedCount == 0 {
		return models.ErrLotNotFound
	}
	return nil
}

// ListLots returns lots matching the filter ordered by registration time.
func (r *MongoDBRepository) ListLots(ctx context.Context, filter models.LotFilter) ([]models.Lot, error) {
	opts := options.Find().SetSort(bson.D{{Key: "registration_timestamp", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.db.Collection(lotsCollection).Find(ctx, lotQuery(filter), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query lots: %w", err)
	}

	lots := make([]models.Lot, 0)
	if err := cursor.All(ctx, &lots); err != nil {
		return nil, fmt.Errorf("failed to decode lots: %w", err)
	}
	return lots, nil
}

func lotQuery(filter models.LotFilter) bson.M {
	query := bson.M{}
	if filter.RegisteredBy != "" {
		query["registered_by"] = filter.RegisteredBy
	}
	if filter.Variety != "" {
		query["variety"] = filter.Variety
	}
	if filter.Stage != 0 {
		query["stage"] = filter.Stage
	}

	window := bson.M{}
	if !filter.From.IsZero() {
		window["$gte"] = filter.From
	}
	if !filter.To.IsZero() {
		window["$lte"] = filter.To
	}
	if len(window) > 0 {
		query["registration_timestamp"] = window
	}
	return query
}

type thresholdDocument struct {
	ID                    string `bson:"_id"`
	models.ThresholdState `bson:",inline"`
}

// LoadThresholds reads the singleton threshold document.
func (r *MongoDBRepository) LoadThresholds(ctx context.Context) (models.ThresholdState, bool, error) {
	var doc thresholdDocument
	err := r.db.Collection(thresholdsCollection).FindOne(ctx, bson.M{"_id": thresholdsDocID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.ThresholdState{}, false, nil
	}
	if err != nil {
		return models.ThresholdState{}, false, fmt.Errorf("failed to load thresholds: %w", err)
	}
	return doc.ThresholdState, true, nil
}

// SaveThresholds upserts the singleton threshold document.
func (r *MongoDBRepository) SaveThresholds(ctx context.Context, state models.ThresholdState) error {
	doc := thresholdDocument{ID: thresholdsDocID, ThresholdState: state}
	_, err := r.db.Collection(thresholdsCollection).ReplaceOne(ctx, bson.M{"_id": thresholdsDocID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save thresholds: %w", err)
	}
	return nil
}

// AppendEvents inserts the batch in order. Ordered inserts stop at the first
// failure, so documents inserted before it are removed again.
func (r *MongoDBRepository) AppendEvents(ctx context.Context, events ...models.Event) error {
	if len(events) == 0 {
		return nil
	}

	docs, ids := eventDocuments(events)
	coll := r.db.Collection(eventsCollection)
	if _, err := coll.InsertMany(ctx, docs); err != nil {
		if _, delErr := coll.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}}); delErr != nil {
			r.logger.Error("failed to roll back partial event batch", zap.Strings("event_ids", ids), zap.Error(delErr))
		}
		return fmt.Errorf("failed to insert %d events: %w", len(events), err)
	}

	r.logger.Debug("events stored", zap.Int("count", len(events)), zap.String("first_type", string(events[0].Type)))
	return nil
}

func eventDocuments(events []models.Event) ([]interface{}, []string) {
	docs := make([]interface{}, 0, len(events))
	ids := make([]string, 0, len(events))
	for _, event := range events {
		docs = append(docs, event)
		ids = append(ids, event.ID)
	}
	return docs, ids
}

// ListEvents returns the journal for a lot, or every event for an empty id.
func (r *MongoDBRepository) ListEvents(ctx context.Context, lotID string) ([]models.Event, error) {
	query := bson.M{}
	if lotID != "" {
		query["lot_id"] = lotID
	}
	opts := options.Find().SetSort(bson.D{{Key: "occurred_at", Value: 1}})
	cursor, err := r.db.Collection(eventsCollection).Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}

	events := make([]models.Event, 0)
	if err := cursor.All(ctx, &events); err != nil {
		return nil, fmt.Errorf("failed to decode events: %w", err)
	}
	return events, nil
}

// Close closes the MongoDB connection.
func (r *MongoDBRepository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}
