package storage

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	mongoCollection = "kv_store"
	mongoMaxRetries = 5
)

// kvDoc is one key in the mongo collection. Rev is bumped on every write and
// used as a compare-and-swap guard.
type kvDoc struct {
	Key       string    `bson:"_id"`
	Value     string    `bson:"value"`
	Rev       int64     `bson:"rev"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

// MongoBackend stores keys as documents in a single collection.
type MongoBackend struct {
	client *mongo.Client
	coll   *mongo.Collection
}

var _ Backend = (*MongoBackend)(nil)

// OpenMongo connects to uri and uses the kv_store collection of database.
func OpenMongo(ctx context.Context, uri, database string) (*MongoBackend, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return &MongoBackend{
		client: client,
		coll:   client.Database(database).Collection(mongoCollection),
	}, nil
}

// Get implements Backend.
func (b *MongoBackend) Get(ctx context.Context, key string) ([]byte, error) {
	doc, err := b.find(ctx, key)
	if err != nil || doc == nil {
		return nil, err
	}
	return []byte(doc.Value), nil
}

func (b *MongoBackend) find(ctx context.Context, key string) (*kvDoc, error) {
	var doc kvDoc
	err := b.coll.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return &doc, nil
}

// Update implements Backend with an optimistic compare-and-swap on rev.
func (b *MongoBackend) Update(ctx context.Context, key string, fn UpdateFunc) error {
	for i := 0; i < mongoMaxRetries; i++ {
		doc, err := b.find(ctx, key)
		if err != nil {
			return err
		}
		var current []byte
		if doc != nil {
			current = []byte(doc.Value)
		}
		next, err := fn(current)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		if doc == nil {
			_, err := b.coll.InsertOne(ctx, kvDoc{Key: key, Value: string(next), Rev: 1, UpdatedAt: now})
			if mongo.IsDuplicateKeyError(err) {
				continue
			}
			if err != nil {
				return fmt.Errorf("insert %s: %w", key, err)
			}
			return nil
		}

		res, err := b.coll.UpdateOne(ctx,
			bson.M{"_id": key, "rev": doc.Rev},
			bson.M{"$set": bson.M{"value": string(next), "rev": doc.Rev + 1, "updatedAt": now}},
		)
		if err != nil {
			return fmt.Errorf("update %s: %w", key, err)
		}
		if res.MatchedCount == 1 {
			return nil
		}
	}
	return fmt.Errorf("update %s: %w", key, ErrConflict)
}

// UpdateMany implements Backend. A single key goes through Update; several
// keys run in one multi-document transaction, which needs a replica set or
// sharded cluster.
func (b *MongoBackend) UpdateMany(ctx context.Context, keys []string, fn UpdateManyFunc) error {
	if len(keys) == 1 {
		return b.Update(ctx, keys[0], func(current []byte) ([]byte, error) {
			next, err := applyMany(keys, [][]byte{current}, fn)
			if err != nil {
				return nil, err
			}
			return next[0], nil
		})
	}

	sess, err := b.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(ctx context.Context) (any, error) {
		current := make([][]byte, len(keys))
		for i, key := range keys {
			doc, err := b.find(ctx, key)
			if err != nil {
				return nil, err
			}
			if doc != nil {
				current[i] = []byte(doc.Value)
			}
		}
		next, err := applyMany(keys, current, fn)
		if err != nil {
			return nil, err
		}
		now := time.Now().UTC()
		for i, key := range keys {
			_, err := b.coll.UpdateOne(ctx,
				bson.M{"_id": key},
				bson.M{"$set": bson.M{"value": string(next[i]), "updatedAt": now}, "$inc": bson.M{"rev": 1}},
				options.UpdateOne().SetUpsert(true),
			)
			if err != nil {
				return nil, fmt.Errorf("write %s: %w", key, err)
			}
		}
		return nil, nil
	})
	return err
}

// Delete implements Backend.
func (b *MongoBackend) Delete(ctx context.Context, key string) error {
	if _, err := b.coll.DeleteOne(ctx, bson.M{"_id": key}); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Keys implements Backend.
func (b *MongoBackend) Keys(ctx context.Context, prefix string) ([]string, error) {
	filter := bson.M{"_id": bson.M{"$regex": "^" + regexp.QuoteMeta(prefix)}}
	cur, err := b.coll.Find(ctx, filter, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	defer cur.Close(ctx)

	var keys []string
	for cur.Next(ctx) {
		var d struct {
			Key string `bson:"_id"`
		}
		if err := cur.Decode(&d); err != nil {
			return nil, err
		}
		keys = append(keys, d.Key)
	}
	return keys, cur.Err()
}

// Close implements Backend.
func (b *MongoBackend) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return b.client.Disconnect(ctx)
}
