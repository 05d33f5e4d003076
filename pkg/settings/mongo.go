package settings

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DefaultMongoCollection is the collection holding setting documents.
const DefaultMongoCollection = "settings"

// MongoConfig holds connection settings for [NewMongoStore].
type MongoConfig struct {
	URI        string
	Database   string
	Collection string // defaults to DefaultMongoCollection
}

// MongoStore reads settings from a MongoDB collection of documents shaped
// {namespace, name, value}. The pair (namespace, name) is unique.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

type settingDoc struct {
	Namespace string `bson:"namespace"`
	Name      string `bson:"name"`
	Value     string `bson:"value"`
}

// NewMongoStore connects to MongoDB and ensures the unique index exists.
func NewMongoStore(ctx context.Context, cfg MongoConfig) (*MongoStore, error) {
	if cfg.Collection == "" {
		cfg.Collection = DefaultMongoCollection
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	coll := client.Database(cfg.Database).Collection(cfg.Collection)
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "namespace", Value: 1}, {Key: "name", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("create settings index: %w", err)
	}
	return &MongoStore{client: client, coll: coll}, nil
}

func (s *MongoStore) Get(ctx context.Context, namespace, key string) (string, bool, error) {
	var doc settingDoc
	err := s.coll.FindOne(ctx, bson.M{"namespace": namespace, "name": key}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("find setting %s/%s: %w", namespace, key, err)
	}
	return doc.Value, true, nil
}

func (s *MongoStore) Set(ctx context.Context, namespace, key, value string) error {
	_, err := s.coll.UpdateOne(ctx,
		bson.M{"namespace": namespace, "name": key},
		bson.M{"$set": bson.M{"value": value}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("upsert setting %s/%s: %w", namespace, key, err)
	}
	return nil
}

// Close disconnects the client.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

var _ Store = (*MongoStore)(nil)
