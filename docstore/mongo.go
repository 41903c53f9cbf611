package docstore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	timeout = 10 // in seconds
)

// MongoStore manages all interactions with MongoDB. Each collection
// maps to a MongoDB collection and the document id is stored as _id.
type MongoStore struct {
	client *mongo.Client
	dbName string
}

// NewMongoStore returns a db connection that can be used as a Store.
func NewMongoStore(dbURL, dbName string) (*MongoStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(dbURL))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB at link [%s], error %v", dbURL, err)
	}
	return &MongoStore{
		client: client,
		dbName: dbName,
	}, nil
}

// Close disconnects the client.
func (m *MongoStore) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

func (m *MongoStore) collection(name string) *mongo.Collection {
	return m.client.Database(m.dbName).Collection(name)
}

func (m *MongoStore) Get(ctx context.Context, collection, id string) (Document, error) {
	var raw bson.M
	if err := m.collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(&raw); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get document [%s/%s], error %v", collection, id, err)
	}
	delete(raw, "_id")
	return fromBSON(raw).(Document), nil
}

func (m *MongoStore) Merge(ctx context.Context, collection, id string, doc Document) error {
	filter := bson.M{"_id": id}
	if len(doc) == 0 {
		// $set refuses an empty document; only make sure it exists.
		update := bson.M{"$setOnInsert": bson.M{"createdAt": time.Now()}}
		if _, err := m.collection(collection).UpdateOne(ctx, filter, update, options.Update().SetUpsert(true)); err != nil {
			return fmt.Errorf("failed to create document [%s/%s], error %v", collection, id, err)
		}
		return nil
	}
	set := bson.M{}
	for k, v := range doc.Clone() {
		set[k] = v
	}
	update := bson.M{"$set": set}
	if _, err := m.collection(collection).UpdateOne(ctx, filter, update, options.Update().SetUpsert(true)); err != nil {
		return fmt.Errorf("failed to merge document [%s/%s], error %v", collection, id, err)
	}
	return nil
}

func fromBSON(v interface{}) interface{} {
	switch t := v.(type) {
	case bson.M:
		doc := make(Document, len(t))
		for k, val := range t {
			doc[k] = fromBSON(val)
		}
		return doc
	case bson.D:
		doc := make(Document, len(t))
		for _, e := range t {
			doc[e.Key] = fromBSON(e.Value)
		}
		return doc
	case bson.A:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = fromBSON(val)
		}
		return out
	case int32:
		return int64(t)
	case primitive.DateTime:
		return t.Time()
	default:
		return v
	}
}
