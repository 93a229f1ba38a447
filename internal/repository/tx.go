package repository

import (
	"context"

	"gorm.io/gorm"
)

type txKey struct{}

// WithTx returns a context carrying an open transaction. Repositories in this
// package route their statements through it when present, so every write
// inside a Transact callback commits or rolls back as one unit.
func WithTx(ctx context.Context, tx *gorm.DB) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// TxFrom extracts the transaction from ctx, or nil.
func TxFrom(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx
	}
	return nil
}

// GormTransactor implements domain.Transactor over a GORM connection.
type GormTransactor struct {
	db *gorm.DB
}

// NewGormTransactor creates a transactor for the given connection.
func NewGormTransactor(db *gorm.DB) *GormTransactor {
	return &GormTransactor{db: db}
}

// Transact runs fn inside a database transaction threaded through the context.
func (t *GormTransactor) Transact(ctx context.Context, fn func(ctx context.Context) error) error {
	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(WithTx(ctx, tx))
	})
}

// conn returns the transactional handle from ctx when present, else db.
func conn(ctx context.Context, db *gorm.DB) *gorm.DB {
	if tx := TxFrom(ctx); tx != nil {
		return tx
	}
	return db.WithContext(ctx)
}
