// Package fetch defines the page retrieval port and its HTTP implementation.
package fetch

import "context"

// Result is a fetched page. HTTPStatus is data, not an error: callers decide
// what a 404 or 503 means for their record keeping.
type Result struct {
	Body        []byte
	HTTPStatus  int
	ContentType string
	FinalURL    string
}

// Service retrieves pages for the scrape pipeline.
type Service interface {
	Fetch(ctx context.Context, rawURL string) (*Result, error)
}
