package trends

import (
	"iter"
	"maps"
	"regexp"
	"slices"
	"strings"
	"time"
	"unicode"

	"github.com/anatolykoptev/go-twitter-trends/sentiment"
)

var (
	hashtagRe = regexp.MustCompile(`#[\p{L}\p{N}_]+`)
	// nonWordRe matches the spans tokenizeWords never counts, wherever
	// they sit inside punctuation.
	nonWordRe = regexp.MustCompile(`https?://\S+|[#@][\p{L}\p{N}_]+`)
)

// unknownHour is the volume bucket of records without a timestamp.
const unknownHour = "unknown"

// Tally counts tweets per sentiment class.
type Tally struct {
	Positive int `json:"positive"`
	Neutral  int `json:"neutral"`
	Negative int `json:"negative"`
}

// Total is the number of classified tweets.
func (t Tally) Total() int {
	return t.Positive + t.Neutral + t.Negative
}

// TermCount is one entry of a ranked term list.
type TermCount struct {
	Term  string `json:"term"`
	Count int    `json:"count"`
}

// HourVolume is the number of tweets created within one UTC hour.
type HourVolume struct {
	Hour   string `json:"hour"`
	Tweets int    `json:"tweets"`
}

// AggregationResult is the summary of one topic over one fetch cycle. Once
// handed to the cache it must not be mutated.
type AggregationResult struct {
	Topic            string             `json:"topic"`
	Country          string             `json:"country,omitempty"`
	Tweets           int                `json:"tweets"`
	Sentiment        Tally              `json:"sentiment"`
	Hashtags         map[string]int     `json:"hashtags"`
	Words            map[string]int     `json:"words"`
	TopHashtags      []TermCount        `json:"top_hashtags"`
	TopWords         []TermCount        `json:"top_words"`
	VolumeByHour     []HourVolume       `json:"volume_by_hour"`
	HashtagSentiment map[string]float64 `json:"hashtag_sentiment"`
	GeneratedAt      time.Time          `json:"generated_at"`
}

// counter counts terms and remembers the order they were first seen in, so
// ranking ties resolve deterministically.
type counter struct {
	counts map[string]int
	first  map[string]int
}

func newCounter() *counter {
	return &counter{counts: make(map[string]int), first: make(map[string]int)}
}

func (c *counter) add(term string) {
	if _, ok := c.first[term]; !ok {
		c.first[term] = len(c.first)
	}
	c.counts[term]++
}

// top returns up to n terms by count desc, ties by first appearance.
func (c *counter) top(n int) []TermCount {
	terms := slices.Collect(maps.Keys(c.counts))
	slices.SortFunc(terms, func(a, b string) int {
		if d := c.counts[b] - c.counts[a]; d != 0 {
			return d
		}
		return c.first[a] - c.first[b]
	})
	if n >= 0 && len(terms) > n {
		terms = terms[:n]
	}
	out := make([]TermCount, len(terms))
	for i, t := range terms {
		out[i] = TermCount{Term: t, Count: c.counts[t]}
	}
	return out
}

// Aggregator folds tweets into counts and a sentiment tally in one pass.
// Not safe for concurrent use.
type Aggregator struct {
	topic     string
	country   string
	scorer    sentiment.Scorer
	threshold float64

	tweets   int
	tally    Tally
	hashtags *counter
	words    *counter
	hours    map[string]int
	tagSum   map[string]float64
	tagN     map[string]int
}

// NewAggregator creates an aggregator for one topic. threshold <= 0 falls
// back to sentiment.DefaultThreshold.
func NewAggregator(topic, country string, scorer sentiment.Scorer, threshold float64) *Aggregator {
	if threshold <= 0 {
		threshold = sentiment.DefaultThreshold
	}
	return &Aggregator{
		topic:     topic,
		country:   country,
		scorer:    scorer,
		threshold: threshold,
		hashtags:  newCounter(),
		words:     newCounter(),
		hours:     make(map[string]int),
		tagSum:    make(map[string]float64),
		tagN:      make(map[string]int),
	}
}

// Add folds one record into the running counts. Hashtags come from
// rec.Tags when the upstream supplied entities, from the text otherwise.
func (a *Aggregator) Add(rec TweetRecord) {
	a.tweets++

	score := a.scorer.Score(rec.Text)
	switch sentiment.Classify(score, a.threshold) {
	case sentiment.Positive:
		a.tally.Positive++
	case sentiment.Negative:
		a.tally.Negative++
	default:
		a.tally.Neutral++
	}

	tags := rec.Tags
	if len(tags) == 0 {
		tags = ExtractHashtags(rec.Text)
	}
	for _, tag := range tags {
		a.hashtags.add(tag)
	}
	seen := make(map[string]bool, len(tags))
	for _, tag := range tags {
		if seen[tag] {
			continue
		}
		seen[tag] = true
		a.tagSum[tag] += score
		a.tagN[tag]++
	}

	for _, w := range tokenizeWords(rec.Text) {
		a.words.add(w)
	}

	hour := unknownHour
	if !rec.CreatedAt.IsZero() {
		hour = rec.CreatedAt.UTC().Format("2006-01-02T15")
	}
	a.hours[hour]++
}

// Result snapshots the aggregation. The returned value shares nothing with
// the aggregator.
func (a *Aggregator) Result(generatedAt time.Time, topN int) *AggregationResult {
	res := &AggregationResult{
		Topic:            a.topic,
		Country:          a.country,
		Tweets:           a.tweets,
		Sentiment:        a.tally,
		Hashtags:         maps.Clone(a.hashtags.counts),
		Words:            maps.Clone(a.words.counts),
		TopHashtags:      a.hashtags.top(topN),
		TopWords:         a.words.top(topN),
		VolumeByHour:     make([]HourVolume, 0, len(a.hours)),
		HashtagSentiment: make(map[string]float64, len(a.tagN)),
		GeneratedAt:      generatedAt,
	}
	for _, h := range slices.Sorted(maps.Keys(a.hours)) {
		res.VolumeByHour = append(res.VolumeByHour, HourVolume{Hour: h, Tweets: a.hours[h]})
	}
	for tag, n := range a.tagN {
		res.HashtagSentiment[tag] = a.tagSum[tag] / float64(n)
	}
	return res
}

// Aggregate runs a fresh aggregator over seq.
func Aggregate(seq iter.Seq[TweetRecord], topic, country string, scorer sentiment.Scorer, threshold float64, generatedAt time.Time, topN int) *AggregationResult {
	a := NewAggregator(topic, country, scorer, threshold)
	for rec := range seq {
		a.Add(rec)
	}
	return a.Result(generatedAt, topN)
}

// ExtractHashtags returns every hashtag in text, lowercased with the '#'
// kept, in order of appearance and with repeats.
func ExtractHashtags(text string) []string {
	matches := hashtagRe.FindAllString(text, -1)
	for i, m := range matches {
		matches[i] = strings.ToLower(m)
	}
	return matches
}

// tokenizeWords splits text into countable words: lowercased, punctuation
// trimmed, without hashtags, mentions, links, stopwords, numbers and
// single letters.
func tokenizeWords(text string) []string {
	var words []string
	text = nonWordRe.ReplaceAllString(strings.ToLower(text), " ")
	for _, tok := range strings.Fields(text) {
		tok = strings.TrimFunc(tok, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if len([]rune(tok)) < 2 || stopwords[tok] || isNumeric(tok) {
			continue
		}
		words = append(words, tok)
	}
	return words
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

var stopwords = func() map[string]bool {
	m := make(map[string]bool)
	for _, w := range strings.Fields(`
		a about above after again against all am an and any are aren't as at
		be because been before being below between both but by can can't cannot
		could couldn't did didn't do does doesn't doing don't down during each
		few for from further had hadn't has hasn't have haven't having he he'd
		he'll he's her here here's hers herself him himself his how how's i i'd
		i'll i'm i've if in into is isn't it it's its itself let's me more most
		mustn't my myself no nor not of off on once only or other ought our ours
		ourselves out over own same shan't she she'd she'll she's should
		shouldn't so some such than that that's the their theirs them themselves
		then there there's these they they'd they'll they're they've this those
		through to too under until up very was wasn't we we'd we'll we're we've
		were weren't what what's when when's where where's which while who who's
		whom why why's with won't would wouldn't you you'd you'll you're you've
		your yours yourself yourselves rt amp im dont cant just like get got
		via`) {
		m[w] = true
	}
	return m
}()
