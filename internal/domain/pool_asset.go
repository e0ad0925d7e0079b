package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PoolAsset is an asset admitted into a pool, with its share of the pool's
// value. EarningsCredited accumulates the proportional credit applied on each
// investment into the pool.
type PoolAsset struct {
	AssetRowID       uuid.UUID `gorm:"column:asset_row_id;type:uuid;primaryKey" json:"asset_row_id"`
	PoolID           uuid.UUID `gorm:"column:pool_id;type:uuid;not null;index" json:"pool_id"`
	LedgerAssetID    uint64    `gorm:"column:ledger_asset_id;not null;index" json:"ledger_asset_id"`
	Name             string    `gorm:"column:name;not null" json:"name"`
	Value            float64   `gorm:"column:value;type:decimal(18,2);not null" json:"value"`
	Percentage       float64   `gorm:"column:percentage;type:decimal(5,2);not null" json:"percentage"`
	EarningsCredited float64   `gorm:"column:earnings_credited;type:decimal(18,2);not null;default:0" json:"earnings_credited"`
	AdmitTx          string    `gorm:"column:admit_tx" json:"admit_tx"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

func (PoolAsset) TableName() string {
	return "pool_assets"
}

func (a *PoolAsset) BeforeCreate(tx *gorm.DB) error {
	if a.AssetRowID == uuid.Nil {
		a.AssetRowID = uuid.New()
	}
	return nil
}
