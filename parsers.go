package trends

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// searchPage is one decoded page of the recent-search endpoint.
type searchPage struct {
	records   []TweetRecord
	nextToken Cursor
}

// parseSearchPage parses a /tweets/search/recent response body. country is
// the query's country filter; records whose place was not expanded inherit
// it since the upstream only returns tweets matching place_country.
func parseSearchPage(body []byte, country string) (*searchPage, error) {
	var raw struct {
		Data []struct {
			ID        string `json:"id"`
			Text      string `json:"text"`
			AuthorID  string `json:"author_id"`
			Lang      string `json:"lang"`
			CreatedAt string `json:"created_at"`
			Geo       struct {
				PlaceID string `json:"place_id"`
			} `json:"geo"`
			Entities struct {
				Hashtags []struct {
					Tag string `json:"tag"`
				} `json:"hashtags"`
			} `json:"entities"`
		} `json:"data"`
		Includes struct {
			Places []struct {
				ID          string `json:"id"`
				CountryCode string `json:"country_code"`
			} `json:"places"`
		} `json:"includes"`
		Meta struct {
			NextToken   string `json:"next_token"`
			ResultCount int    `json:"result_count"`
		} `json:"meta"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal search page: %w", err)
	}

	places := make(map[string]string, len(raw.Includes.Places))
	for _, p := range raw.Includes.Places {
		places[p.ID] = strings.ToUpper(p.CountryCode)
	}

	page := &searchPage{
		records:   make([]TweetRecord, 0, len(raw.Data)),
		nextToken: Cursor(raw.Meta.NextToken),
	}
	for _, d := range raw.Data {
		if d.ID == "" {
			continue
		}
		rec := TweetRecord{
			ID:       d.ID,
			AuthorID: d.AuthorID,
			Text:     d.Text,
			Lang:     d.Lang,
			Country:  places[d.Geo.PlaceID],
		}
		if rec.Country == "" {
			rec.Country = country
		}
		if d.CreatedAt != "" {
			t, err := time.Parse(time.RFC3339, d.CreatedAt)
			if err != nil {
				slog.Debug("search: bad created_at", slog.String("id", d.ID), slog.String("value", d.CreatedAt))
			} else {
				rec.CreatedAt = t.UTC()
			}
		}
		for _, h := range d.Entities.Hashtags {
			if h.Tag != "" {
				rec.Tags = append(rec.Tags, "#"+strings.ToLower(h.Tag))
			}
		}
		page.records = append(page.records, rec)
	}
	return page, nil
}
