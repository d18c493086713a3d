package snapshot

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Defaults for [MongoConfig].
const (
	DefaultMongoDatabase   = "govend"
	DefaultMongoCollection = "snapshots"
)

// MongoConfig configures a [MongoStore].
type MongoConfig struct {
	URI        string
	Database   string
	Collection string
}

// mongoDocument is one project's snapshot. Entries are stored as a list
// because dependency names contain dots, which MongoDB reserves in field
// names.
type mongoDocument struct {
	Project   string       `bson:"_id"`
	Version   int          `bson:"version"`
	Entries   []mongoEntry `bson:"entries"`
	UpdatedAt time.Time    `bson:"updated_at"`
}

type mongoEntry struct {
	Name  string `bson:"name"`
	Entry `bson:",inline"`
}

// MongoStore keeps one document per project in a MongoDB collection.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
	project    string
}

// NewMongoStore connects to MongoDB and verifies the connection.
func NewMongoStore(ctx context.Context, cfg MongoConfig, project string) (*MongoStore, error) {
	if cfg.Database == "" {
		cfg.Database = DefaultMongoDatabase
	}
	if cfg.Collection == "" {
		cfg.Collection = DefaultMongoCollection
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}
	return &MongoStore{
		client:     client,
		collection: client.Database(cfg.Database).Collection(cfg.Collection),
		project:    project,
	}, nil
}

func (s *MongoStore) Location() string {
	return "mongodb:" + s.collection.Database().Name() + "." + s.collection.Name() + "/" + s.project
}

func (s *MongoStore) Load(ctx context.Context) (map[string]Entry, error) {
	var doc mongoDocument
	err := s.collection.FindOne(ctx, bson.M{"_id": s.project}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return map[string]Entry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find snapshot: %w", err)
	}
	if doc.Version != formatVersion {
		return nil, fmt.Errorf("snapshot format version %d, want %d", doc.Version, formatVersion)
	}
	entries := make(map[string]Entry, len(doc.Entries))
	for _, e := range doc.Entries {
		entries[e.Name] = e.Entry
	}
	return entries, nil
}

func (s *MongoStore) Save(ctx context.Context, entries map[string]Entry) error {
	doc := mongoDocument{
		Project:   s.project,
		Version:   formatVersion,
		Entries:   make([]mongoEntry, 0, len(entries)),
		UpdatedAt: time.Now().UTC(),
	}
	for _, name := range slices.Sorted(maps.Keys(entries)) {
		doc.Entries = append(doc.Entries, mongoEntry{Name: name, Entry: entries[name]})
	}
	_, err := s.collection.ReplaceOne(ctx, bson.M{"_id": s.project}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

func (s *MongoStore) Clear(ctx context.Context) error {
	if _, err := s.collection.DeleteOne(ctx, bson.M{"_id": s.project}); err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return nil
}

// Close disconnects the client.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

var _ Store = (*MongoStore)(nil)
