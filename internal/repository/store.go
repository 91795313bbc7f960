package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
)

// ErrActiveAssignmentExists means the insert lost against the partial unique
// index: the order or the driver already holds a non-terminal assignment.
var ErrActiveAssignmentExists = errors.New("active assignment already exists")

// Store groups the repositories over one handle so a unit of work can run
// them inside a single transaction.
type Store struct {
	db          *gorm.DB
	Orders      *OrderRepository
	Assignments *AssignmentRepository
	Drivers     *DriverRepository
}

func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:          db,
		Orders:      NewOrderRepository(db),
		Assignments: NewAssignmentRepository(db),
		Drivers:     NewDriverRepository(db),
	}
}

// Transaction runs fn against a Store bound to one database transaction.
// Returning an error from fn rolls everything back.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx))
	})
}

func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}
