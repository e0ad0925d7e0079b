package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// RevenueAudit logs every revenue submission attempt, accepted or rejected.
// Failed attempts are written before the caller sees the rejection, so no
// attempt is ever silently dropped.
type RevenueAudit struct {
	AuditID         uuid.UUID      `gorm:"column:audit_id;type:uuid;primaryKey" json:"audit_id"`
	ReportID        *uuid.UUID     `gorm:"column:report_id;type:uuid" json:"report_id"`
	LedgerAssetID   uint64         `gorm:"column:ledger_asset_id;not null;index" json:"ledger_asset_id"`
	SubmitterWallet string         `gorm:"column:submitter_wallet;not null;index" json:"submitter_wallet"`
	SubmitterRole   string         `gorm:"column:submitter_role" json:"submitter_role"`
	Accepted        bool           `gorm:"column:accepted;not null" json:"accepted"`
	Score           float64        `gorm:"column:score;type:decimal(5,2);not null" json:"score"`
	RiskLevel       string         `gorm:"column:risk_level;type:varchar(10)" json:"risk_level"`
	Errors          datatypes.JSON `gorm:"column:errors;type:json" json:"errors"`
	Warnings        datatypes.JSON `gorm:"column:warnings;type:json" json:"warnings"`
	CreatedAt       time.Time      `json:"createdAt"`
}

func (RevenueAudit) TableName() string {
	return "revenue_audits"
}

func (a *RevenueAudit) BeforeCreate(tx *gorm.DB) error {
	if a.AuditID == uuid.Nil {
		a.AuditID = uuid.New()
	}
	return nil
}
