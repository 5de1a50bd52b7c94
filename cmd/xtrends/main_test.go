package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	trends "github.com/anatolykoptev/go-twitter-trends"
	"github.com/anatolykoptev/go-twitter-trends/internal/config"
	"github.com/anatolykoptev/go-twitter-trends/sentiment"
)

const tweets = `I love the new #golang release #Go
   
#golang tooling is terrible today
just another #golang day #go
`

func TestAggregateLines(t *testing.T) {
	res, err := aggregateLines(strings.NewReader(tweets), "golang", sentiment.Default(), 10, time.Unix(0, 0))
	require.NoError(t, err)

	assert.Equal(t, 3, res.Tweets)
	assert.Equal(t, 3, res.Sentiment.Total())
	assert.Equal(t, 1, res.Sentiment.Positive)
	assert.Equal(t, 1, res.Sentiment.Negative)
	require.NotEmpty(t, res.TopHashtags)
	assert.Equal(t, "#golang", res.TopHashtags[0].Term)
	assert.Equal(t, 3, res.TopHashtags[0].Count)
	assert.Equal(t, 2, res.Hashtags["#go"])
	assert.Less(t, res.HashtagSentiment["#golang"], res.HashtagSentiment["#go"])
}

func TestHashtagsCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetIn(strings.NewReader(tweets))
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"hashtags", "--limit", "1"})
	t.Cleanup(func() {
		rootCmd.SetIn(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.Execute())

	var got hashtagsOutput
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	require.Len(t, got.TopHashtags, 1)
	assert.Equal(t, "#golang", got.TopHashtags[0].Hashtag)
	require.Len(t, got.HashtagSentiment, 1)
	assert.Contains(t, got.HashtagSentiment, "#golang")
	assert.Equal(t, "stdin", got.Sentiment.Topic)
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "xtrends dev")
}

func TestNewFetcherMock(t *testing.T) {
	cfg := &config.Config{Collector: config.CollectorMock, Mock: config.Mock{Pages: 2}}
	cfg.Fetch.PageSize = 100
	cfg.Fetch.MaxItems = 150
	cfg.Upstream.RequestsPerSecond = -1

	c, err := newFetcher(cfg)
	require.NoError(t, err)

	n := 0
	for rec, err := range c.Fetch(trends.Query{Topic: "vote"}).All(t.Context()) {
		require.NoError(t, err)
		assert.NotEmpty(t, rec.ID)
		n++
	}
	assert.Equal(t, 150, n)
}

func TestNewFetcherAPINeedsToken(t *testing.T) {
	_, err := newFetcher(&config.Config{Collector: config.CollectorAPI})
	assert.Error(t, err)
}
