package trends

import (
	"strings"
	"time"
)

// TweetRecord is a single tweet as fetched from the search API.
type TweetRecord struct {
	ID        string
	AuthorID  string
	Text      string
	Lang      string
	Country   string   // ISO country code of the tagged place, if any
	Tags      []string // entity hashtags as ExtractHashtags returns them
	CreatedAt time.Time
}

// Cursor is the opaque pagination token of the search API. The empty cursor
// means "start from the first page".
type Cursor string

// Query identifies one search: a topic, optionally restricted to a country.
type Query struct {
	Topic    string
	Country  string // ISO 3166-1 alpha-2; empty means global
	MaxItems int
}

// normalize trims and case-folds the query so equivalent requests share a
// cache key.
func (q Query) normalize() Query {
	q.Topic = strings.ToLower(strings.Join(strings.Fields(q.Topic), " "))
	q.Country = strings.ToUpper(strings.TrimSpace(q.Country))
	return q
}

// NormalizeQuery folds topic and country the way Resolve does before
// building a cache key.
func NormalizeQuery(topic, country string) Query {
	return Query{Topic: topic, Country: country}.normalize()
}

// searchString renders the upstream query expression.
func (q Query) searchString() string {
	var b strings.Builder
	b.WriteString(q.Topic)
	if q.Country != "" {
		b.WriteString(" place_country:")
		b.WriteString(q.Country)
	}
	b.WriteString(" -is:retweet")
	return b.String()
}
