package archive

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// MongoArchive stores documents in a MongoDB collection with a unique
// index on doc_id.
type MongoArchive struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongoArchive connects to uri and prepares database.collection.
func NewMongoArchive(ctx context.Context, uri, database, collection string) (*MongoArchive, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	coll := client.Database(database).Collection(collection)
	_, err = coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "doc_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "updated_at", Value: -1}}},
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("create indexes: %w", err)
	}

	return &MongoArchive{client: client, coll: coll}, nil
}

// Save implements Archive with an upsert on doc_id.
func (a *MongoArchive) Save(ctx context.Context, doc Document) (Document, error) {
	if err := validate(doc); err != nil {
		return Document{}, err
	}
	now := time.Now().UTC().Truncate(time.Millisecond)

	update := bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "user_id", Value: doc.UserID},
			{Key: "title", Value: doc.Title},
			{Key: "content", Value: doc.Content},
			{Key: "parent_doc_id", Value: doc.ParentDocID},
			{Key: "updated_at", Value: now},
		}},
		{Key: "$setOnInsert", Value: bson.D{{Key: "created_at", Value: now}}},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var saved Document
	err := a.coll.FindOneAndUpdate(ctx, bson.D{{Key: "doc_id", Value: doc.DocID}}, update, opts).Decode(&saved)
	if err != nil {
		return Document{}, fmt.Errorf("save %s: %w", doc.DocID, err)
	}
	return saved, nil
}

// Get implements Archive.
func (a *MongoArchive) Get(ctx context.Context, docID string) (Document, error) {
	var doc Document
	err := a.coll.FindOne(ctx, bson.D{{Key: "doc_id", Value: docID}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("get %s: %w", docID, err)
	}
	return doc, nil
}

// ListByUser implements Archive.
func (a *MongoArchive) ListByUser(ctx context.Context, userID string, limit int) ([]Document, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}, {Key: "doc_id", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := a.coll.Find(ctx, bson.D{{Key: "user_id", Value: userID}}, opts)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", userID, err)
	}
	var docs []Document
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("list %s: %w", userID, err)
	}
	return docs, nil
}

// Close implements Archive.
func (a *MongoArchive) Close(ctx context.Context) error {
	return a.client.Disconnect(ctx)
}
