// Package kafkasink publishes aggregation results as JSON events to Kafka.
package kafkasink

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	trends "github.com/anatolykoptev/go-twitter-trends"
)

// Event is the message value written for every fresh result.
type Event struct {
	ID          string                `json:"id"`
	Key         string                `json:"key"`
	Topic       string                `json:"topic"`
	Country     string                `json:"country"`
	Bucket      time.Time             `json:"bucket"`
	Tweets      int                   `json:"tweets"`
	Sentiment   trends.Tally          `json:"sentiment"`
	Hashtags    []trends.HashtagCount `json:"hashtags"`
	TopWords    []string              `json:"top_words"`
	GeneratedAt time.Time             `json:"generated_at"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Sink implements trends.Sink.
type Sink struct {
	w     messageWriter
	topic string
}

// New creates a sink writing to topic. Messages are keyed by cache key so
// one query always lands on the same partition.
func New(brokers []string, topic string) *Sink {
	w := kafka.NewWriter(kafka.WriterConfig{
		Brokers:  brokers,
		Topic:    topic,
		Balancer: &kafka.Hash{},
	})
	slog.Info("kafka sink ready", slog.Any("brokers", brokers), slog.String("topic", topic))
	return &Sink{w: w, topic: topic}
}

// Publish writes one event for res.
func (s *Sink) Publish(ctx context.Context, key trends.CacheKey, res *trends.AggregationResult) error {
	msg, err := newMessage(key, res)
	if err != nil {
		return err
	}
	if err := s.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka %s: %w", s.topic, err)
	}
	return nil
}

// Close flushes and closes the writer.
func (s *Sink) Close() error {
	return s.w.Close()
}

func newMessage(key trends.CacheKey, res *trends.AggregationResult) (kafka.Message, error) {
	trendsView := res.TrendsView(0)
	ev := Event{
		ID:          uuid.NewString(),
		Key:         key.String(),
		Topic:       res.Topic,
		Country:     trendsView.Country,
		Bucket:      key.Bucket,
		Tweets:      res.Tweets,
		Sentiment:   res.Sentiment,
		Hashtags:    trendsView.Hashtags,
		TopWords:    res.SentimentView().TopWords,
		GeneratedAt: res.GeneratedAt,
	}
	value, err := json.Marshal(ev)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encoding event: %w", err)
	}
	return kafka.Message{
		Key:   []byte(ev.Key),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event-id", Value: []byte(ev.ID)},
			{Key: "content-type", Value: []byte("application/json")},
		},
		Time: res.GeneratedAt,
	}, nil
}
