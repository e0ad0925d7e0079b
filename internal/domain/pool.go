package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	PoolStatusActive = "active"
	PoolStatusClosed = "closed"
)

// Pool is the local record of an on-ledger investment pool. The ledger entry is
// authoritative: a row may only exist while a verified, non-zero ledger entity
// with the same ledger_pool_id exists. Rows are hard-deleted when verification
// fails, so there is no soft-delete column here.
type Pool struct {
	PoolID             uuid.UUID      `gorm:"column:pool_id;type:uuid;primaryKey" json:"pool_id"`
	LedgerPoolID       uint64         `gorm:"column:ledger_pool_id;not null;uniqueIndex" json:"ledger_pool_id"`
	TrancheIDs         datatypes.JSON `gorm:"column:tranche_ids;type:json" json:"tranche_ids"`
	Name               string         `gorm:"column:name;not null" json:"name"`
	Status             string         `gorm:"column:status;type:varchar(20);default:'active'" json:"status"`
	AdminWallet        string         `gorm:"column:admin_wallet;not null;index" json:"admin_wallet"`
	TotalValue         float64        `gorm:"column:total_value;type:decimal(18,2);not null" json:"total_value"`
	TokenSupply        int64          `gorm:"column:token_supply;not null" json:"token_supply"`
	TokenPrice         float64        `gorm:"column:token_price;type:decimal(18,2);not null" json:"token_price"`
	MinimumInvestment  float64        `gorm:"column:minimum_investment;type:decimal(18,2);not null;default:0" json:"minimum_investment"`
	ExpectedAnnualRate float64        `gorm:"column:expected_annual_rate;type:decimal(5,2);not null" json:"expected_annual_rate"`
	MaturityDate       *time.Time     `gorm:"column:maturity_date" json:"maturity_date"`
	TotalInvested      float64        `gorm:"column:total_invested;type:decimal(18,2);not null;default:0" json:"total_invested"`
	TotalDividends     float64        `gorm:"column:total_dividends;type:decimal(18,2);not null;default:0" json:"total_dividends"`
	InvestorCount      int            `gorm:"column:investor_count;not null;default:0" json:"investor_count"`
	CreateTx           string         `gorm:"column:create_tx" json:"create_tx"`
	EscrowAddress      string         `gorm:"column:escrow_address" json:"escrow_address"`
	Assets             []PoolAsset    `gorm:"foreignKey:PoolID;references:PoolID" json:"assets"`
	Investments        []Investment   `gorm:"foreignKey:PoolID;references:PoolID" json:"investments"`
	Dividends          []Dividend     `gorm:"foreignKey:PoolID;references:PoolID" json:"dividends"`
	CreatedAt          time.Time      `json:"createdAt"`
	UpdatedAt          time.Time      `json:"updatedAt"`
}

func (Pool) TableName() string {
	return "pools"
}

func (p *Pool) BeforeCreate(tx *gorm.DB) error {
	if p.PoolID == uuid.Nil {
		p.PoolID = uuid.New()
	}
	return nil
}

// ActiveTokens sums tokens across active investments.
func (p *Pool) ActiveTokens() int64 {
	var total int64
	for _, inv := range p.Investments {
		if inv.Active {
			total += inv.Tokens
		}
	}
	return total
}
