package trends

import (
	"net/url"
	"strconv"
	"strings"
)

const (
	defaultBaseURL   = "https://api.x.com/2"
	searchRecentPath = "/tweets/search/recent"

	minPageSize = 10
	maxPageSize = 100

	// endpointSearch names the search operation in metrics and logs.
	endpointSearch = "SearchRecent"
)

// searchFields are the tweet fields, expansions and place fields requested
// with every search page.
var searchFields = map[string]string{
	"tweet.fields": "created_at,lang,entities,geo,author_id",
	"expansions":   "geo.place_id",
	"place.fields": "country_code",
}

// searchURL builds the recent-search URL for one page.
func searchURL(base string, q Query, cursor Cursor, pageSize int) string {
	v := url.Values{}
	v.Set("query", q.searchString())
	v.Set("max_results", strconv.Itoa(clampPageSize(pageSize)))
	if cursor != "" {
		v.Set("next_token", string(cursor))
	}
	for k, val := range searchFields {
		v.Set(k, val)
	}
	return strings.TrimRight(base, "/") + searchRecentPath + "?" + v.Encode()
}

func clampPageSize(n int) int {
	return min(max(n, minPageSize), maxPageSize)
}
