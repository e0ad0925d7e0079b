package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// OwnershipRecord tracks how much of an asset its original owner retains
// versus how much has been tokenized into pools. Invariant enforced by the
// ownership tracker: OwnershipPercent + TokenizedPercent never exceeds 100.
type OwnershipRecord struct {
	RecordID             uuid.UUID         `gorm:"column:record_id;type:uuid;primaryKey" json:"record_id"`
	LedgerAssetID        uint64            `gorm:"column:ledger_asset_id;not null;uniqueIndex:idx_asset_owner" json:"ledger_asset_id"`
	OwnerWallet          string            `gorm:"column:owner_wallet;not null;uniqueIndex:idx_asset_owner" json:"owner_wallet"`
	AssetName            string            `gorm:"column:asset_name" json:"asset_name"`
	OwnershipPercent     float64           `gorm:"column:ownership_percent;type:decimal(5,2);not null;default:100" json:"ownership_percent"`
	TokenizedPercent     float64           `gorm:"column:tokenized_percent;type:decimal(5,2);not null;default:0" json:"tokenized_percent"`
	CapitalReceived      float64           `gorm:"column:capital_received;type:decimal(18,2);not null;default:0" json:"capital_received"`
	TotalRevenueReceived float64           `gorm:"column:total_revenue_received;type:decimal(18,2);not null;default:0" json:"total_revenue_received"`
	PoolIDs              datatypes.JSON    `gorm:"column:pool_ids;type:json" json:"pool_ids"`
	RevenueHistory       datatypes.JSONMap `gorm:"column:revenue_history" json:"revenue_history"`
	CreatedAt            time.Time         `json:"createdAt"`
	UpdatedAt            time.Time         `json:"updatedAt"`
}

func (OwnershipRecord) TableName() string {
	return "ownership_records"
}

func (r *OwnershipRecord) BeforeCreate(tx *gorm.DB) error {
	if r.RecordID == uuid.Nil {
		r.RecordID = uuid.New()
	}
	return nil
}
