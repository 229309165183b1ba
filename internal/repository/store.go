package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

var (
	ErrNotFound        = errors.New("record not found")
	ErrDuplicate       = errors.New("duplicate record")
	ErrVersionConflict = errors.New("version conflict")
)

// Store gives access to every repository. Repositories obtained from the Store passed
// to WithTx's callback take part in that transaction.
type Store interface {
	Users() UserRepository
	StockCounts() StockCountRepository
	Areas() AreaRepository
	Assignments() AssignmentRepository
	Sessions() SessionRepository
	Items() ItemRepository
	Comparisons() ComparisonRepository
	Discrepancies() DiscrepancyRepository

	// WithTx runs fn in one transaction. Any error rolls everything back.
	WithTx(ctx context.Context, fn func(tx Store) error) error
}

type gormStore struct{ db *gorm.DB }

// NewStore returns a Store backed by db.
func NewStore(db *gorm.DB) Store { return &gormStore{db: db} }

func (s *gormStore) Users() UserRepository { return NewUserRepository(s.db) }
func (s *gormStore) StockCounts() StockCountRepository { return NewStockCountRepository(s.db) }
func (s *gormStore) Areas() AreaRepository { return NewAreaRepository(s.db) }
func (s *gormStore) Assignments() AssignmentRepository { return NewAssignmentRepository(s.db) }
func (s *gormStore) Sessions() SessionRepository { return NewSessionRepository(s.db) }
func (s *gormStore) Items() ItemRepository { return NewItemRepository(s.db) }
func (s *gormStore) Comparisons() ComparisonRepository { return NewComparisonRepository(s.db) }
func (s *gormStore) Discrepancies() DiscrepancyRepository { return NewDiscrepancyRepository(s.db) }

func (s *gormStore) WithTx(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx})
	})
}

// translate maps gorm errors onto the repository sentinels.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	default:
		return err
	}
}
