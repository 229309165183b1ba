// Package model holds the persisted stock-count entities.
// Relations are plain foreign-key fields; no entity embeds another.
package model

import "github.com/google/uuid"

// Record is implemented by every persisted entity.
type Record interface {
	RecordID() uuid.UUID
}

// All lists every entity for schema migration, parents before children.
func All() []any {
	return []any{
		&User{},
		&StockCount{},
		&Area{},
		&Assignment{},
		&CountSession{},
		&CountItem{},
		&Comparison{},
		&Discrepancy{},
	}
}
