package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ReportStatusSubmitted   = "submitted"
	ReportStatusVerified    = "verified"
	ReportStatusRejected    = "rejected"
	ReportStatusDistributed = "distributed"
)

// RevenueReport is an owner-submitted revenue claim for an asset and period.
// Reports are an append-only audit trail: they transition through the status
// state machine but are never deleted.
type RevenueReport struct {
	ReportID        uuid.UUID      `gorm:"column:report_id;type:uuid;primaryKey" json:"report_id"`
	LedgerAssetID   uint64         `gorm:"column:ledger_asset_id;not null;index" json:"ledger_asset_id"`
	OwnerWallet     string         `gorm:"column:owner_wallet;not null;index" json:"owner_wallet"`
	PeriodStart     time.Time      `gorm:"column:period_start;not null" json:"period_start"`
	PeriodEnd       time.Time      `gorm:"column:period_end;not null" json:"period_end"`
	GrossRevenue    float64        `gorm:"column:gross_revenue;type:decimal(18,2);not null" json:"gross_revenue"`
	Expenses        float64        `gorm:"column:expenses;type:decimal(18,2);not null" json:"expenses"`
	NetProfit       float64        `gorm:"column:net_profit;type:decimal(18,2);not null" json:"net_profit"`
	Status          string         `gorm:"column:status;type:varchar(20);default:'submitted';index" json:"status"`
	Documents       datatypes.JSON `gorm:"column:documents;type:json" json:"documents"`
	FraudScore      float64        `gorm:"column:fraud_score;type:decimal(5,2);not null;default:0" json:"fraud_score"`
	RiskLevel       string         `gorm:"column:risk_level;type:varchar(10)" json:"risk_level"`
	Warnings        datatypes.JSON `gorm:"column:warnings;type:json" json:"warnings"`
	VerifiedBy      *string        `gorm:"column:verified_by" json:"verified_by"`
	VerifiedAt      *time.Time     `gorm:"column:verified_at" json:"verified_at"`
	RejectionReason *string        `gorm:"column:rejection_reason" json:"rejection_reason"`
	DistributionTx  *string        `gorm:"column:distribution_tx" json:"distribution_tx"`
	DistributedAt   *time.Time     `gorm:"column:distributed_at" json:"distributed_at"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

func (RevenueReport) TableName() string {
	return "revenue_reports"
}

func (r *RevenueReport) BeforeCreate(tx *gorm.DB) error {
	if r.ReportID == uuid.Nil {
		r.ReportID = uuid.New()
	}
	return nil
}
