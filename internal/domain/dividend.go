package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Dividend is one distribution event for a pool. Append-only: rows are written
// once and never mutated afterwards, except for the settlement backfill when
// the on-ledger transfer confirms after the bookkeeping commit.
type Dividend struct {
	DividendID   uuid.UUID `gorm:"column:dividend_id;type:uuid;primaryKey" json:"dividend_id"`
	PoolID       uuid.UUID `gorm:"column:pool_id;type:uuid;not null;index" json:"pool_id"`
	Sequence     int       `gorm:"column:sequence;not null" json:"sequence"`
	TotalAmount  float64   `gorm:"column:total_amount;type:decimal(18,2);not null" json:"total_amount"`
	PerToken     float64   `gorm:"column:per_token;type:decimal(18,8);not null" json:"per_token"`
	Description  string    `gorm:"column:description" json:"description"`
	Settled      bool      `gorm:"column:settled;not null;default:false" json:"settled"`
	SettlementTx *string   `gorm:"column:settlement_tx" json:"settlement_tx"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func (Dividend) TableName() string {
	return "dividends"
}

func (d *Dividend) BeforeCreate(tx *gorm.DB) error {
	if d.DividendID == uuid.Nil {
		d.DividendID = uuid.New()
	}
	return nil
}
