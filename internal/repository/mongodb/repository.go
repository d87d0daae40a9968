package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mamadbah2/materialbot/internal/apperrors"
	"github.com/mamadbah2/materialbot/internal/domain/models"
)

// Repository defines the interface for snapshot storage.
type Repository interface {
	SaveSnapshot(ctx context.Context, snapshot models.InventorySnapshot) error
	LatestSnapshot(ctx context.Context) (models.InventorySnapshot, error)
}

// MongoDBRepository implements the Repository interface for MongoDB.
type MongoDBRepository struct {
	client   *mongo.Client
	dbName   string
	collName string
}

// NewMongoDBRepository creates a new MongoDB repository.
func NewMongoDBRepository(ctx context.Context, uri string, dbName string) (*MongoDBRepository, error) {
	clientOptions := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return &MongoDBRepository{
		client:   client,
		dbName:   dbName,
		collName: "inventory_snapshots",
	}, nil
}

func (r *MongoDBRepository) collection() *mongo.Collection {
	return r.client.Database(r.dbName).Collection(r.collName)
}

// SaveSnapshot upserts the snapshot of its day, so a rerun of the daily job
// replaces rather than duplicates it.
func (r *MongoDBRepository) SaveSnapshot(ctx context.Context, snapshot models.InventorySnapshot) error {
	_, err := r.collection().ReplaceOne(ctx,
		bson.M{"date": snapshot.Date},
		snapshot,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to save inventory snapshot: %w: %w", apperrors.ErrCollaborator, err)
	}
	return nil
}

// LatestSnapshot returns the most recent archived snapshot.
func (r *MongoDBRepository) LatestSnapshot(ctx context.Context) (models.InventorySnapshot, error) {
	var snapshot models.InventorySnapshot
	err := r.collection().FindOne(ctx, bson.M{}, options.FindOne().SetSort(bson.D{{Key: "date", Value: -1}})).Decode(&snapshot)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.InventorySnapshot{}, fmt.Errorf("no snapshot archived: %w", apperrors.ErrNotFound)
	}
	if err != nil {
		return models.InventorySnapshot{}, fmt.Errorf("failed to load latest snapshot: %w: %w", apperrors.ErrCollaborator, err)
	}
	return snapshot, nil
}

// Close closes the MongoDB connection.
func (r *MongoDBRepository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}
