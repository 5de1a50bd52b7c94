package trends

import "time"

// SentimentView is the public shape of a sentiment answer.
type SentimentView struct {
	Topic    string   `json:"topic"`
	Positive int      `json:"positive"`
	Neutral  int      `json:"neutral"`
	Negative int      `json:"negative"`
	TopWords []string `json:"top_words"`
}

// ArchivedTweet is one tweet as kept by the archive. CreatedAt is nil when
// the upstream sent no creation time.
type ArchivedTweet struct {
	ID          string     `json:"id"`
	AuthorID    string     `json:"author_id,omitempty"`
	Text        string     `json:"text"`
	Lang        string     `json:"lang,omitempty"`
	Country     string     `json:"country,omitempty"`
	Topic       string     `json:"topic"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
	CollectedAt time.Time  `json:"collected_at"`
}

// HashtagCount is one ranked hashtag of a trends answer.
type HashtagCount struct {
	Hashtag string `json:"hashtag"`
	Count   int    `json:"count"`
}

// TrendsView is the public shape of a trends answer. Country is "GLOBAL"
// when the query had no country.
type TrendsView struct {
	Topic    string         `json:"topic"`
	Country  string         `json:"country"`
	Hashtags []HashtagCount `json:"hashtags"`
}

// SentimentView renders the sentiment answer for r.
func (r *AggregationResult) SentimentView() SentimentView {
	words := make([]string, len(r.TopWords))
	for i, w := range r.TopWords {
		words[i] = w.Term
	}
	return SentimentView{
		Topic:    r.Topic,
		Positive: r.Sentiment.Positive,
		Neutral:  r.Sentiment.Neutral,
		Negative: r.Sentiment.Negative,
		TopWords: words,
	}
}

// TrendsView renders up to limit top hashtags. limit <= 0 keeps all of
// TopHashtags.
func (r *AggregationResult) TrendsView(limit int) TrendsView {
	top := r.TopHashtags
	if limit > 0 && len(top) > limit {
		top = top[:limit]
	}
	tags := make([]HashtagCount, len(top))
	for i, t := range top {
		tags[i] = HashtagCount{Hashtag: t.Term, Count: t.Count}
	}
	return TrendsView{
		Topic:    r.Topic,
		Country:  countryLabel(r.Country),
		Hashtags: tags,
	}
}

const globalCountry = "GLOBAL"

func countryLabel(c string) string {
	if c == "" {
		return globalCountry
	}
	return c
}
