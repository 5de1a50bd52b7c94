package mongosink

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	trends "github.com/anatolykoptev/go-twitter-trends"
)

type fakeColl struct {
	models  []mongo.WriteModel
	ordered *bool
	err     error
}

func (f *fakeColl) BulkWrite(_ context.Context, models []mongo.WriteModel, opts ...*options.BulkWriteOptions) (*mongo.BulkWriteResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.models = append(f.models, models...)
	if len(opts) > 0 {
		f.ordered = opts[0].Ordered
	}
	return &mongo.BulkWriteResult{UpsertedCount: int64(len(models))}, nil
}

var genAt = time.Date(2025, 6, 1, 10, 5, 0, 0, time.UTC)

func TestCounterModels(t *testing.T) {
	res := &trends.AggregationResult{
		Topic:       "vote",
		Country:     "FR",
		Hashtags:    map[string]int{"#vote": 3, "#elections": 1},
		GeneratedAt: genAt,
	}
	models := counterModels(trends.CacheKey{Topic: "vote", Country: "FR"}, res)
	require.Len(t, models, 2)

	first, ok := models[0].(*mongo.UpdateOneModel)
	require.True(t, ok)
	assert.Equal(t, bson.M{"tag": "elections", "country": "FR"}, first.Filter)
	assert.Equal(t, bson.M{
		"$inc": bson.M{"count": 1},
		"$set": bson.M{"updated_at": genAt, "topic": "vote"},
	}, first.Update)
	require.NotNil(t, first.Upsert)
	assert.True(t, *first.Upsert)

	second := models[1].(*mongo.UpdateOneModel)
	assert.Equal(t, bson.M{"tag": "vote", "country": "FR"}, second.Filter)
}

func TestPublishUnorderedBulk(t *testing.T) {
	coll := &fakeColl{}
	s := &Sink{coll: coll}
	res := &trends.AggregationResult{Topic: "vote", Hashtags: map[string]int{"#vote": 2}, GeneratedAt: genAt}

	require.NoError(t, s.Publish(context.Background(), trends.CacheKey{Topic: "vote"}, res))
	require.Len(t, coll.models, 1)
	require.NotNil(t, coll.ordered)
	assert.False(t, *coll.ordered)

	m := coll.models[0].(*mongo.UpdateOneModel)
	assert.Equal(t, bson.M{"tag": "vote", "country": "GLOBAL"}, m.Filter)
}

func TestPublishSkipsEmptyResults(t *testing.T) {
	coll := &fakeColl{err: errors.New("must not be called")}
	s := &Sink{coll: coll}
	err := s.Publish(context.Background(), trends.CacheKey{Topic: "quiet"}, &trends.AggregationResult{Hashtags: map[string]int{}})
	assert.NoError(t, err)
}

func TestPublishWrapsError(t *testing.T) {
	boom := errors.New("no reachable servers")
	s := &Sink{coll: &fakeColl{err: boom}}
	res := &trends.AggregationResult{Hashtags: map[string]int{"#a": 1}}
	assert.ErrorIs(t, s.Publish(context.Background(), trends.CacheKey{}, res), boom)
}

var _ trends.Sink = (*Sink)(nil)
