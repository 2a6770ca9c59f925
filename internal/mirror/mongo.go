package mirror

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore implements DocStore against the products mirror collection.
type MongoStore struct {
	col *mongo.Collection
}

var _ DocStore = (*MongoStore)(nil)

func NewMongoStore(col *mongo.Collection) *MongoStore {
	return &MongoStore{col: col}
}

// Merge upserts the partial fields into the product document, leaving
// untouched fields intact.
func (m *MongoStore) Merge(ctx context.Context, docID string, fields map[string]interface{}) error {
	_, err := m.col.UpdateByID(ctx, docID,
		bson.M{"$set": bson.M(fields)},
		options.Update().SetUpsert(true),
	)
	return err
}

// AppendBid pushes one entry onto the document's append-only bid history.
func (m *MongoStore) AppendBid(ctx context.Context, docID string, entry map[string]interface{}) error {
	_, err := m.col.UpdateByID(ctx, docID,
		bson.M{"$push": bson.M{"bids": bson.M(entry)}},
		options.Update().SetUpsert(true),
	)
	return err
}
