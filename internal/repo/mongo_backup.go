package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/incentive-trips/backend/internal/domain"
)

// BackupCollection is the Mongo collection snapshots are written to.
const BackupCollection = "trip_backups"

// ConnectMongo dials uri and pings the server so a bad URL fails at startup.
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("repo.ConnectMongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("repo.ConnectMongo: ping: %w", err)
	}
	return client, nil
}

// mongoBackup is the stored shape. The snapshot is kept as a real BSON
// document so it can be inspected with ordinary Mongo tooling. Document holds
// the same JSON verbatim, since a BSON round trip does not preserve number
// formatting or key order.
type mongoBackup struct {
	TripID     string    `bson:"tripId"`
	Version    int64     `bson:"version"`
	BackedUpAt time.Time `bson:"backedUpAt"`
	Snapshot   bson.Raw  `bson:"snapshot"`
	Document   string    `bson:"document,omitempty"`
}

// mongoBackupRepo is the MongoDB implementation of BackupRepo.
type mongoBackupRepo struct {
	coll *mongo.Collection
}

// NewMongoBackupRepo constructs a BackupRepo writing to coll.
func NewMongoBackupRepo(coll *mongo.Collection) BackupRepo {
	return &mongoBackupRepo{coll: coll}
}

// EnsureBackupIndexes creates the lookup index used by ListByTrip.
func EnsureBackupIndexes(ctx context.Context, coll *mongo.Collection) error {
	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "tripId", Value: 1}, {Key: "backedUpAt", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("repo.EnsureBackupIndexes: %w", err)
	}
	return nil
}

func (r *mongoBackupRepo) Append(ctx context.Context, b domain.Backup) error {
	var snapshot bson.Raw
	if err := bson.UnmarshalExtJSON(b.Snapshot, false, &snapshot); err != nil {
		return fmt.Errorf("repo.MongoBackupRepo.Append: convert snapshot: %w", err)
	}

	backedUpAt := b.BackedUpAt
	if backedUpAt.IsZero() {
		backedUpAt = time.Now().UTC()
	}

	_, err := r.coll.InsertOne(ctx, mongoBackup{
		TripID:     b.TripID.String(),
		Version:    b.Version,
		BackedUpAt: backedUpAt,
		Snapshot:   snapshot,
		Document:   string(b.Snapshot),
	})
	if err != nil {
		return fmt.Errorf("repo.MongoBackupRepo.Append: %w", err)
	}
	return nil
}

func (r *mongoBackupRepo) ListByTrip(ctx context.Context, tripID uuid.UUID) ([]domain.Backup, error) {
	opts := options.Find().SetSort(bson.D{{Key: "backedUpAt", Value: -1}, {Key: "_id", Value: -1}})
	cursor, err := r.coll.Find(ctx, bson.M{"tripId": tripID.String()}, opts)
	if err != nil {
		return nil, fmt.Errorf("repo.MongoBackupRepo.ListByTrip: %w", err)
	}

	var docs []mongoBackup
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("repo.MongoBackupRepo.ListByTrip: decode: %w", err)
	}

	backups := make([]domain.Backup, 0, len(docs))
	for _, d := range docs {
		b := domain.Backup{TripID: tripID, Version: d.Version, BackedUpAt: d.BackedUpAt.UTC()}
		if d.Document != "" {
			b.Snapshot = json.RawMessage(d.Document)
		} else {
			raw, err := bson.MarshalExtJSON(d.Snapshot, false, false)
			if err != nil {
				return nil, fmt.Errorf("repo.MongoBackupRepo.ListByTrip: convert snapshot: %w", err)
			}
			b.Snapshot = raw
		}
		backups = append(backups, b)
	}
	return backups, nil
}
