package trends

import (
	"encoding/json"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anatolykoptev/go-twitter-trends/sentiment"
)

var genAt = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func fixedScorer() sentiment.Scorer {
	return sentiment.NewLexicon(map[string]float64{"love": 3, "hate": -3})
}

func records(texts ...string) []TweetRecord {
	out := make([]TweetRecord, len(texts))
	for i, s := range texts {
		out[i] = TweetRecord{ID: string(rune('a' + i)), Text: s}
	}
	return out
}

func TestAggregateScenario(t *testing.T) {
	res := Aggregate(slices.Values(records("I love this #vote", "I hate #vote", "meh #vote")),
		"vote", "", fixedScorer(), sentiment.DefaultThreshold, genAt, 10)

	assert.Equal(t, map[string]int{"#vote": 3}, res.Hashtags)
	assert.Equal(t, Tally{Positive: 1, Neutral: 1, Negative: 1}, res.Sentiment)
	assert.Equal(t, 3, res.Tweets)
	assert.Equal(t, genAt, res.GeneratedAt)
	assert.Equal(t, []TermCount{{Term: "#vote", Count: 3}}, res.TopHashtags)
}

func TestAggregateEmpty(t *testing.T) {
	res := Aggregate(slices.Values([]TweetRecord(nil)), "vote", "FR", fixedScorer(), 0, genAt, 10)

	assert.Equal(t, Tally{}, res.Sentiment)
	assert.Zero(t, res.Tweets)
	require.NotNil(t, res.Hashtags)
	require.NotNil(t, res.Words)
	assert.Empty(t, res.Hashtags)
	assert.Empty(t, res.Words)
	assert.Empty(t, res.TopHashtags)
	assert.Empty(t, res.VolumeByHour)

	// Empty collections marshal as [] and {}, not null.
	b, err := json.Marshal(res.SentimentView())
	require.NoError(t, err)
	assert.JSONEq(t, `{"topic":"vote","positive":0,"neutral":0,"negative":0,"top_words":[]}`, string(b))
}

func TestAggregateTallySumsToInput(t *testing.T) {
	texts := []string{
		"love it", "hate it", "nothing to see", "LOVE LOVE", "so much hate",
		"", "#only #tags", "@user hello https://t.co/x",
	}
	res := Aggregate(slices.Values(records(texts...)), "t", "", fixedScorer(), 0, genAt, 5)
	assert.Equal(t, len(texts), res.Sentiment.Total())
	assert.Equal(t, len(texts), res.Tweets)
}

func TestAggregateCaseInsensitive(t *testing.T) {
	res := Aggregate(slices.Values(records("#Vote now", "#vote", "#VOTE #vote")), "vote", "", fixedScorer(), 0, genAt, 10)
	assert.Equal(t, map[string]int{"#vote": 4}, res.Hashtags)
}

func TestAggregateDeterministic(t *testing.T) {
	in := records(
		"Great #go #rust day", "#rust beats #go", "#zig #go", "love #zig", "hate #rust",
		"election results tonight", "results are in",
	)
	a := Aggregate(slices.Values(in), "t", "", fixedScorer(), 0, genAt, 3)
	b := Aggregate(slices.Values(in), "t", "", fixedScorer(), 0, genAt, 3)
	assert.Equal(t, a, b)
}

func TestAggregateTopTiesByFirstSeen(t *testing.T) {
	res := Aggregate(slices.Values(records("#b #a", "#c #a", "#b #c")), "t", "", fixedScorer(), 0, genAt, 10)
	assert.Equal(t, []TermCount{
		{Term: "#b", Count: 2},
		{Term: "#a", Count: 2},
		{Term: "#c", Count: 2},
	}, res.TopHashtags)

	res = Aggregate(slices.Values(records("#b #a", "#c #a", "#b #c")), "t", "", fixedScorer(), 0, genAt, 1)
	assert.Equal(t, []TermCount{{Term: "#b", Count: 2}}, res.TopHashtags)
}

func TestAggregateWords(t *testing.T) {
	res := Aggregate(slices.Values(records(
		"The election is tonight! @press https://t.co/abc #vote",
		"Election night, 2025: results.",
		"a I x 42",
	)), "t", "", fixedScorer(), 0, genAt, 2)

	assert.Equal(t, map[string]int{"election": 2, "tonight": 1, "night": 1, "results": 1}, res.Words)
	assert.Equal(t, []TermCount{{Term: "election", Count: 2}, {Term: "tonight", Count: 1}}, res.TopWords)
	assert.Equal(t, []string{"election", "tonight"}, res.SentimentView().TopWords)
}

func TestTokenizeWordsSkipsWrappedTagsAndMentions(t *testing.T) {
	assert.Equal(t, []string{"love"}, tokenizeWords("I love this (#vote)"))
	assert.Equal(t, []string{"rocks"}, tokenizeWords(`"#vote" rocks @bob, (@alice)`))
	assert.Equal(t, []string{"see"}, tokenizeWords("see (https://t.co/abc)"))
	assert.Empty(t, tokenizeWords(`"@bob"`))
}

func TestAggregatePrefersEntityTags(t *testing.T) {
	in := []TweetRecord{
		{ID: "1", Text: "love #Vote #vote", Tags: []string{"#vote", "#vote"}},
		{ID: "2", Text: "truncated text without the tag", Tags: []string{"#elections"}},
		{ID: "3", Text: "hate #vote"},
	}
	res := Aggregate(slices.Values(in), "vote", "", fixedScorer(), 0, genAt, 10)

	assert.Equal(t, map[string]int{"#vote": 3, "#elections": 1}, res.Hashtags)
	assert.InDelta(t, 0, res.HashtagSentiment["#vote"], 1e-9)
}

func TestAggregateVolumeAndHashtagSentiment(t *testing.T) {
	in := []TweetRecord{
		{Text: "love #go", CreatedAt: time.Date(2025, 6, 1, 9, 15, 0, 0, time.UTC)},
		{Text: "hate #go", CreatedAt: time.Date(2025, 6, 1, 9, 45, 0, 0, time.UTC)},
		{Text: "love #zig", CreatedAt: time.Date(2025, 6, 1, 10, 5, 0, 0, time.FixedZone("CEST", 2*3600))},
		{Text: "#zig"},
	}
	res := Aggregate(slices.Values(in), "t", "", fixedScorer(), 0, genAt, 10)

	assert.Equal(t, []HourVolume{
		{Hour: "2025-06-01T08", Tweets: 1},
		{Hour: "2025-06-01T09", Tweets: 2},
		{Hour: "unknown", Tweets: 1},
	}, res.VolumeByHour)
	assert.InDelta(t, 0, res.HashtagSentiment["#go"], 1e-9)
	assert.Greater(t, res.HashtagSentiment["#zig"], 0.0)
}

func TestTrendsView(t *testing.T) {
	res := Aggregate(slices.Values(records("#a #b", "#a")), "vote", "", fixedScorer(), 0, genAt, 10)

	v := res.TrendsView(1)
	assert.Equal(t, "GLOBAL", v.Country)
	assert.Equal(t, []HashtagCount{{Hashtag: "#a", Count: 2}}, v.Hashtags)

	b, err := json.Marshal(res.TrendsView(0))
	require.NoError(t, err)
	assert.JSONEq(t, `{"topic":"vote","country":"GLOBAL","hashtags":[{"hashtag":"#a","count":2},{"hashtag":"#b","count":1}]}`, string(b))
}
