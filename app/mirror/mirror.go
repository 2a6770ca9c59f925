// Package mirror bootstraps the MongoDB client that backs the real-time read
// mirror. The relational store stays authoritative; this database only holds
// denormalized projections for low-latency clients.
package mirror

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const ProductsCollection = "products"

type Store struct {
	Client      *mongo.Client
	DB          *mongo.Database
	colProducts *mongo.Collection
}

func NewStore(ctx context.Context, uri, dbname string) (*Store, error) {
	cli, err := mongo.Connect(ctx, options.Client().
		ApplyURI(uri).
		SetRetryWrites(true).
		SetMaxPoolSize(50),
	)
	if err != nil {
		return nil, err
	}
	if err := cli.Ping(ctx, nil); err != nil {
		return nil, err
	}
	db := cli.Database(dbname)
	return &Store{
		Client:      cli,
		DB:          db,
		colProducts: db.Collection(ProductsCollection),
	}, nil
}

func (s *Store) Close(ctx context.Context) error { return s.Client.Disconnect(ctx) }

func (s *Store) Products() *mongo.Collection { return s.colProducts }

// EnsureIndexes creates the indexes the sweep and the client listeners query
// against. Safe to call at every startup.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.colProducts.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "auction_end_time", Value: 1}},
			Options: options.Index().SetName("status_end_time"),
		},
		{
			Keys:    bson.D{{Key: "seller_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("seller_created_desc"),
		},
	})
	return err
}
