package trends

import (
	"testing"
	"time"
)

func TestParseSearchPage(t *testing.T) {
	body := `{
		"data": [
			{
				"id": "1790000000000000001",
				"text": "Vote today! #Election2025 #vote",
				"author_id": "42",
				"lang": "fr",
				"created_at": "2025-06-01T12:34:56.000Z",
				"geo": {"place_id": "01a9a39529b27f36"},
				"entities": {"hashtags": [{"start": 12, "end": 25, "tag": "Election2025"}, {"start": 26, "end": 31, "tag": "vote"}]}
			},
			{
				"id": "1790000000000000002",
				"text": "no tags here"
			}
		],
		"includes": {"places": [{"id": "01a9a39529b27f36", "full_name": "Paris, France", "country_code": "FR"}]},
		"meta": {"newest_id": "1790000000000000001", "result_count": 2, "next_token": "b26v89c19zqg8o3fo7gghep0wmpt92c0wn0jiqwtc7tdp"}
	}`

	page, err := parseSearchPage([]byte(body), "")
	if err != nil {
		t.Fatal(err)
	}
	if page.nextToken != "b26v89c19zqg8o3fo7gghep0wmpt92c0wn0jiqwtc7tdp" {
		t.Fatalf("unexpected next token %q", page.nextToken)
	}
	if len(page.records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(page.records))
	}

	r := page.records[0]
	if r.ID != "1790000000000000001" || r.AuthorID != "42" || r.Lang != "fr" {
		t.Fatalf("unexpected record %+v", r)
	}
	if r.Country != "FR" {
		t.Fatalf("expected country FR, got %q", r.Country)
	}
	want := time.Date(2025, 6, 1, 12, 34, 56, 0, time.UTC)
	if !r.CreatedAt.Equal(want) {
		t.Fatalf("expected %v, got %v", want, r.CreatedAt)
	}
	if len(r.Tags) != 2 || r.Tags[0] != "#election2025" || r.Tags[1] != "#vote" {
		t.Fatalf("unexpected tags %v", r.Tags)
	}

	r2 := page.records[1]
	if r2.Country != "" || !r2.CreatedAt.IsZero() || len(r2.Tags) != 0 {
		t.Fatalf("expected bare record, got %+v", r2)
	}
}

func TestParseSearchPage_Empty(t *testing.T) {
	page, err := parseSearchPage([]byte(`{"meta":{"result_count":0}}`), "DE")
	if err != nil {
		t.Fatal(err)
	}
	if len(page.records) != 0 || page.nextToken != "" {
		t.Fatalf("expected empty last page, got %+v", page)
	}
}

func TestParseSearchPage_Invalid(t *testing.T) {
	if _, err := parseSearchPage([]byte(`{"data":`), ""); err == nil {
		t.Fatal("expected error for truncated body")
	}
}
