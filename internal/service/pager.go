package service

import "context"

// Page is one page of a cursor-paginated upstream listing. Next and
// Previous are opaque cursor URLs supplied by the API.
type Page[T any] struct {
	Count    int     `json:"count"`
	Results  []T     `json:"results"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
}

// Pager lazily walks a cursor-paginated listing, one page per Next call.
// Pages are fetched on demand as the consumer iterates, never eagerly, and
// a pager can be started from any cursor URL.
type Pager[T any] struct {
	fetch func(ctx context.Context, url string) (*Page[T], error)
	next  string
	done  bool
}

// NewPager creates a pager starting from the given listing or cursor URL
func NewPager[T any](startURL string, fetch func(ctx context.Context, url string) (*Page[T], error)) *Pager[T] {
	return &Pager[T]{fetch: fetch, next: startURL}
}

// Next fetches and returns the next page, or (nil, nil) once the listing is
// exhausted
func (p *Pager[T]) Next(ctx context.Context) (*Page[T], error) {
	if p.done {
		return nil, nil
	}

	page, err := p.fetch(ctx, p.next)
	if err != nil {
		return nil, err
	}

	if page.Next != nil && *page.Next != "" {
		p.next = *page.Next
	} else {
		p.done = true
	}

	return page, nil
}
