// Package store is the append-only sqlite archive of fetched tweets and
// computed aggregations.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	_ "modernc.org/sqlite"

	trends "github.com/anatolykoptev/go-twitter-trends"
)

const timeLayout = "2006-01-02T15:04:05Z"

// ListTweets limits.
const (
	DefaultListLimit = 50
	MaxListLimit     = 1000
)

// Store implements trends.Archive over sqlite.
type Store struct {
	readDB  *sql.DB
	writeDB *sql.DB
}

// Open creates the database file and schema if needed.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating store dir: %w", err)
	}

	writeDB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening write db: %w", err)
	}
	writeDB.SetMaxOpenConns(1)

	s := &Store{writeDB: writeDB}
	if err := s.migrate(); err != nil {
		s.Close()
		return nil, err
	}

	readDB, err := sql.Open("sqlite", dbPath+"?mode=ro")
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("opening read db: %w", err)
	}
	s.readDB = readDB
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.writeDB.Exec(`
		CREATE TABLE IF NOT EXISTS tweets (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			tweet_id     TEXT NOT NULL UNIQUE,
			author_id    TEXT,
			text         TEXT NOT NULL,
			lang         TEXT,
			country      TEXT,
			topic        TEXT NOT NULL,
			created_at   TEXT,
			collected_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_tweets_created_at ON tweets(created_at);
		CREATE INDEX IF NOT EXISTS idx_tweets_topic ON tweets(topic);

		CREATE TABLE IF NOT EXISTS aggregations (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			cache_key    TEXT NOT NULL,
			topic        TEXT NOT NULL,
			country      TEXT NOT NULL,
			bucket       TEXT NOT NULL,
			tweets       INTEGER NOT NULL,
			positive     INTEGER NOT NULL,
			neutral      INTEGER NOT NULL,
			negative     INTEGER NOT NULL,
			result_json  TEXT NOT NULL,
			generated_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_aggregations_topic ON aggregations(topic, country, generated_at DESC);
	`)
	if err != nil {
		return fmt.Errorf("initializing schema: %w", err)
	}
	return nil
}

// Close closes both connections.
func (s *Store) Close() error {
	var errs []error
	if s.readDB != nil {
		errs = append(errs, s.readDB.Close())
	}
	if s.writeDB != nil {
		errs = append(errs, s.writeDB.Close())
	}
	return errors.Join(errs...)
}

// AppendTweets stores records, skipping tweet IDs already archived.
func (s *Store) AppendTweets(ctx context.Context, key trends.CacheKey, records []trends.TweetRecord) error {
	tx, err := s.writeDB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO tweets (tweet_id, author_id, text, lang, country, topic, created_at, collected_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tweet_id) DO NOTHING
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(timeLayout)
	for _, r := range records {
		var created any
		if !r.CreatedAt.IsZero() {
			created = r.CreatedAt.UTC().Format(timeLayout)
		}
		if _, err := stmt.ExecContext(ctx, r.ID, r.AuthorID, r.Text, r.Lang, r.Country, key.Topic, created, now); err != nil {
			return fmt.Errorf("appending tweet %s: %w", r.ID, err)
		}
	}
	return tx.Commit()
}

// AppendResult records one computed aggregation.
func (s *Store) AppendResult(ctx context.Context, key trends.CacheKey, res *trends.AggregationResult) error {
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	_, err = s.writeDB.ExecContext(ctx, `
		INSERT INTO aggregations (cache_key, topic, country, bucket, tweets, positive, neutral, negative, result_json, generated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, key.String(), key.Topic, key.Country, key.Bucket.UTC().Format(timeLayout),
		res.Tweets, res.Sentiment.Positive, res.Sentiment.Neutral, res.Sentiment.Negative,
		string(data), res.GeneratedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("appending result %s: %w", key, err)
	}
	return nil
}

// LatestResult returns the most recent aggregation archived for topic and
// country, or sql.ErrNoRows.
func (s *Store) LatestResult(ctx context.Context, topic, country string) (*trends.AggregationResult, error) {
	var data string
	err := s.readDB.QueryRowContext(ctx, `
		SELECT result_json FROM aggregations
		WHERE topic = ? AND country = ?
		ORDER BY generated_at DESC, id DESC
		LIMIT 1
	`, topic, country).Scan(&data)
	if err != nil {
		return nil, err
	}
	var res trends.AggregationResult
	if err := json.Unmarshal([]byte(data), &res); err != nil {
		return nil, fmt.Errorf("decoding result: %w", err)
	}
	return &res, nil
}

// CountTweets is the number of archived tweets.
func (s *Store) CountTweets(ctx context.Context) (int, error) {
	var n int
	err := s.readDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM tweets`).Scan(&n)
	return n, err
}

// ListTweets returns up to limit archived tweets, newest first. Tweets
// without a creation time come last. limit <= 0 means DefaultListLimit and
// larger values are capped at MaxListLimit.
func (s *Store) ListTweets(ctx context.Context, limit int) ([]trends.ArchivedTweet, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	limit = min(limit, MaxListLimit)

	rows, err := s.readDB.QueryContext(ctx, `
		SELECT tweet_id, author_id, text, lang, country, topic, created_at, collected_at
		FROM tweets
		ORDER BY created_at IS NULL, created_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []trends.ArchivedTweet{}
	for rows.Next() {
		var (
			t                              trends.ArchivedTweet
			author, lang, country, created sql.NullString
			collected                      string
		)
		if err := rows.Scan(&t.ID, &author, &t.Text, &lang, &country, &t.Topic, &created, &collected); err != nil {
			return nil, err
		}
		t.AuthorID, t.Lang, t.Country = author.String, lang.String, country.String
		if created.Valid {
			ct, err := time.Parse(timeLayout, created.String)
			if err != nil {
				return nil, fmt.Errorf("tweet %s created_at: %w", t.ID, err)
			}
			t.CreatedAt = &ct
		}
		if t.CollectedAt, err = time.Parse(timeLayout, collected); err != nil {
			return nil, fmt.Errorf("tweet %s collected_at: %w", t.ID, err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// TopHashtags ranks hashtags over every archived tweet text, count desc,
// ties by first appearance.
func (s *Store) TopHashtags(ctx context.Context, limit int) ([]trends.HashtagCount, error) {
	rows, err := s.readDB.QueryContext(ctx, `SELECT text FROM tweets ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	var order []string
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return nil, err
		}
		for _, tag := range trends.ExtractHashtags(text) {
			if counts[tag] == 0 {
				order = append(order, tag)
			}
			counts[tag]++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]trends.HashtagCount, 0, len(order))
	for _, tag := range order {
		out = append(out, trends.HashtagCount{Hashtag: tag, Count: counts[tag]})
	}
	slices.SortStableFunc(out, func(a, b trends.HashtagCount) int {
		return b.Count - a.Count
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// VolumeByHour counts archived tweets per UTC creation hour, oldest first.
// Tweets without a creation time are skipped.
func (s *Store) VolumeByHour(ctx context.Context) ([]trends.HourVolume, error) {
	rows, err := s.readDB.QueryContext(ctx, `
		SELECT substr(created_at, 1, 13) AS hour, COUNT(*)
		FROM tweets
		WHERE created_at IS NOT NULL
		GROUP BY hour
		ORDER BY hour
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []trends.HourVolume{}
	for rows.Next() {
		var v trends.HourVolume
		if err := rows.Scan(&v.Hour, &v.Tweets); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
