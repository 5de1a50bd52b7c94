// Package mongosink keeps running hashtag counters in MongoDB, one document
// per hashtag and country.
package mongosink

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	trends "github.com/anatolykoptev/go-twitter-trends"
)

type bulkWriter interface {
	BulkWrite(ctx context.Context, models []mongo.WriteModel, opts ...*options.BulkWriteOptions) (*mongo.BulkWriteResult, error)
}

// Sink implements trends.Sink.
type Sink struct {
	client *mongo.Client
	coll   bulkWriter
}

// Connect dials uri and uses database.collection for counters.
func Connect(ctx context.Context, uri, database, collection string) (*Sink, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	slog.Info("mongo sink ready", slog.String("database", database), slog.String("collection", collection))
	return &Sink{client: client, coll: client.Database(database).Collection(collection)}, nil
}

// Publish adds the result's hashtag counts to the stored counters.
func (s *Sink) Publish(ctx context.Context, key trends.CacheKey, res *trends.AggregationResult) error {
	models := counterModels(key, res)
	if len(models) == 0 {
		return nil
	}
	out, err := s.coll.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return fmt.Errorf("mongo bulk write: %w", err)
	}
	slog.Debug("hashtag counters updated",
		slog.String("key", key.String()),
		slog.Int64("matched", out.MatchedCount),
		slog.Int64("upserted", out.UpsertedCount))
	return nil
}

// Close disconnects the client.
func (s *Sink) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}

// counterModels builds one upserting $inc per hashtag, in tag order.
func counterModels(key trends.CacheKey, res *trends.AggregationResult) []mongo.WriteModel {
	country := res.TrendsView(0).Country
	tags := make([]string, 0, len(res.Hashtags))
	for tag := range res.Hashtags {
		tags = append(tags, tag)
	}
	slices.Sort(tags)

	models := make([]mongo.WriteModel, 0, len(tags))
	for _, tag := range tags {
		filter := bson.M{"tag": strings.TrimPrefix(tag, "#"), "country": country}
		update := bson.M{
			"$inc": bson.M{"count": res.Hashtags[tag]},
			"$set": bson.M{"updated_at": res.GeneratedAt, "topic": key.Topic},
		}
		models = append(models, mongo.NewUpdateOneModel().SetFilter(filter).SetUpdate(update).SetUpsert(true))
	}
	return models
}
