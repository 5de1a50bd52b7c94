package trends

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// mockTemplates are the synthetic tweet texts served by MockDoer. %s is the
// topic.
var mockTemplates = []string{
	"I love where %s is going #%s #hope",
	"%s is a total disaster, worst week ever #%s #fail",
	"Reading about %s this morning #news",
	"Great debate on %s tonight, very exciting #%s #debate",
	"Not sure what to think about %s #%s",
	"%s coverage is boring and unfair #media",
	"Proud of everyone working on %s #%s #community",
	"Why is nobody talking about %s? #news #%s",
}

// MockDoer is an offline transport that serves deterministic search pages.
// It backs the "mock" collector mode and behaves like the real endpoint
// with respect to pagination and rate-limit headers.
type MockDoer struct {
	Pages   int
	Ceiling int
	Now     func() time.Time

	mu     sync.Mutex
	calls  int
	window time.Time
	used   int
}

// NewMockDoer returns a mock serving pages pages per query.
func NewMockDoer(pages int) *MockDoer {
	return &MockDoer{Pages: pages, Ceiling: 450, Now: time.Now}
}

// DoWithHeaderOrder implements Doer.
func (m *MockDoer) DoWithHeaderOrder(method, rawURL string, _ map[string]string, _ io.Reader, _ []string) ([]byte, map[string]string, int, error) {
	if method != "GET" {
		return nil, nil, 0, fmt.Errorf("mock: unsupported method %s", method)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("mock: %w", err)
	}

	now := m.Now()
	reset := now.Truncate(15 * time.Minute).Add(15 * time.Minute)

	m.mu.Lock()
	m.calls++
	if !m.window.Equal(reset) {
		m.window, m.used = reset, 0
	}
	m.used++
	used := m.used
	m.mu.Unlock()

	hdrs := map[string]string{
		"x-rate-limit-limit":     strconv.Itoa(m.Ceiling),
		"x-rate-limit-remaining": strconv.Itoa(max(m.Ceiling-used, 0)),
		"x-rate-limit-reset":     strconv.FormatInt(reset.Unix(), 10),
	}

	v := u.Query()
	topic, country := parseMockQuery(v.Get("query"))
	size, _ := strconv.Atoi(v.Get("max_results"))
	size = clampPageSize(size)
	page, _ := strconv.Atoi(strings.TrimPrefix(v.Get("next_token"), "mock-"))

	body, err := json.Marshal(mockPage(topic, country, page, size, m.Pages, now))
	if err != nil {
		return nil, nil, 0, err
	}
	return body, hdrs, 200, nil
}

// Calls reports how many requests were served.
func (m *MockDoer) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func parseMockQuery(q string) (topic, country string) {
	var words []string
	for _, f := range strings.Fields(q) {
		switch {
		case strings.HasPrefix(f, "place_country:"):
			country = strings.TrimPrefix(f, "place_country:")
		case strings.HasPrefix(f, "-is:"):
		default:
			words = append(words, f)
		}
	}
	return strings.Join(words, " "), country
}

type mockTweet struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	AuthorID  string `json:"author_id"`
	Lang      string `json:"lang"`
	CreatedAt string `json:"created_at"`
	Geo       *struct {
		PlaceID string `json:"place_id"`
	} `json:"geo,omitempty"`
}

func mockPage(topic, country string, page, size, pages int, now time.Time) map[string]any {
	h := fnv.New32a()
	h.Write([]byte(topic + "|" + country))
	seed := int(h.Sum32() % 1000)
	tag := strings.ReplaceAll(topic, " ", "")

	tweets := make([]mockTweet, 0, size)
	for i := range size {
		n := page*maxPageSize + i
		tmpl := mockTemplates[(seed+n)%len(mockTemplates)]
		var text string
		if strings.Count(tmpl, "%s") == 2 {
			text = fmt.Sprintf(tmpl, topic, tag)
		} else {
			text = fmt.Sprintf(tmpl, topic)
		}
		t := mockTweet{
			ID:        fmt.Sprintf("%d%06d", seed, n),
			Text:      text,
			AuthorID:  strconv.Itoa(1000 + (seed+n*7)%97),
			Lang:      "en",
			CreatedAt: now.Add(-time.Duration(n) * 7 * time.Minute).UTC().Format(time.RFC3339),
		}
		if country != "" {
			t.Geo = &struct {
				PlaceID string `json:"place_id"`
			}{PlaceID: "place-" + country}
		}
		tweets = append(tweets, t)
	}

	meta := map[string]any{"result_count": len(tweets)}
	if page+1 < pages {
		meta["next_token"] = fmt.Sprintf("mock-%d", page+1)
	}
	out := map[string]any{"data": tweets, "meta": meta}
	if country != "" {
		out["includes"] = map[string]any{
			"places": []map[string]string{{"id": "place-" + country, "country_code": country}},
		}
	}
	return out
}
