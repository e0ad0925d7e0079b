package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Investment is one investor's position in a pool, keyed by (pool, wallet).
// Repeat investments accumulate into the same row. Rows are never deleted;
// a closed-out position is deactivated instead.
type Investment struct {
	InvestmentID      uuid.UUID `gorm:"column:investment_id;type:uuid;primaryKey" json:"investment_id"`
	PoolID            uuid.UUID `gorm:"column:pool_id;type:uuid;not null;uniqueIndex:idx_pool_investor" json:"pool_id"`
	InvestorWallet    string    `gorm:"column:investor_wallet;not null;uniqueIndex:idx_pool_investor" json:"investor_wallet"`
	Amount            float64   `gorm:"column:amount;type:decimal(18,2);not null" json:"amount"`
	Tokens            int64     `gorm:"column:tokens;not null" json:"tokens"`
	PriceAtPurchase   float64   `gorm:"column:price_at_purchase;type:decimal(18,2);not null" json:"price_at_purchase"`
	DividendsReceived float64   `gorm:"column:dividends_received;type:decimal(18,2);not null;default:0" json:"dividends_received"`
	Active            bool      `gorm:"column:active;not null;default:true" json:"active"`
	FirstInvestedAt   time.Time `gorm:"column:first_invested_at;not null" json:"first_invested_at"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

func (Investment) TableName() string {
	return "investments"
}

func (i *Investment) BeforeCreate(tx *gorm.DB) error {
	if i.InvestmentID == uuid.Nil {
		i.InvestmentID = uuid.New()
	}
	return nil
}
