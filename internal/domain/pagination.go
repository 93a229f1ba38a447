package domain

import "context"

// PaginatedResult wraps a page of items with the total row count.
type PaginatedResult[T any] struct {
	Items []T   `json:"items"`
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
}

// NewPaginatedResult builds a PaginatedResult for the given page.
func NewPaginatedResult[T any](items []T, total int64, page, limit int) PaginatedResult[T] {
	return PaginatedResult[T]{Items: items, Total: total, Page: page, Limit: limit}
}

// Transactor runs fn atomically: every write issued through repositories that
// honor the transactional context either commits as a unit or rolls back when
// fn returns an error.
type Transactor interface {
	Transact(ctx context.Context, fn func(ctx context.Context) error) error
}
