package trends

import (
	"context"
	"errors"
	"iter"
)

// Pager walks the pages of one search lazily. It is finite and restartable:
// after a failure Cursor still points at the page that failed, and
// Client.Resume with that cursor continues from there. Not safe for
// concurrent use.
type Pager struct {
	client  *Client
	query   Query
	cursor  Cursor
	fetched int
	done    bool
}

// Next returns the next page of records, or ErrNoMorePages once the result
// set or MaxItems is exhausted.
func (p *Pager) Next(ctx context.Context) ([]TweetRecord, error) {
	if p.done {
		return nil, ErrNoMorePages
	}

	remaining := p.query.MaxItems - p.fetched
	page, err := p.client.getPage(ctx, p.query, p.cursor, min(p.client.cfg.PageSize, remaining))
	if err != nil {
		return nil, err
	}

	records := page.records
	if len(records) > remaining {
		records = records[:remaining]
	}
	p.fetched += len(records)
	p.cursor = page.nextToken

	if page.nextToken == "" || len(page.records) == 0 || p.fetched >= p.query.MaxItems {
		p.done = true
		p.cursor = ""
	}
	return records, nil
}

// All streams every remaining record. A failure is yielded once as the
// final element.
func (p *Pager) All(ctx context.Context) iter.Seq2[TweetRecord, error] {
	return func(yield func(TweetRecord, error) bool) {
		for {
			records, err := p.Next(ctx)
			if errors.Is(err, ErrNoMorePages) {
				return
			}
			if err != nil {
				yield(TweetRecord{}, err)
				return
			}
			for _, r := range records {
				if !yield(r, nil) {
					return
				}
			}
		}
	}
}

// Cursor is the cursor of the page Next will request. Empty after the last
// page.
func (p *Pager) Cursor() Cursor {
	return p.cursor
}

// Query returns the normalized query being fetched.
func (p *Pager) Query() Query {
	return p.query
}

// Fetched is the number of records returned so far.
func (p *Pager) Fetched() int {
	return p.fetched
}
