package revenue

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"harbor-backend/internal/domain"
	"harbor-backend/internal/ledger"
	"harbor-backend/internal/pkg/apperr"

	"gorm.io/gorm"
)

const (
	RiskLow    = "LOW"
	RiskMedium = "MEDIUM"
	RiskHigh   = "HIGH"
)

const (
	passingScore        = 50.0
	riskLowFloor        = 80.0
	riskMediumFloor     = 50.0
	roundNumberFloor    = 100000.0
	grossRevenueCeiling = 10000000.0
	maxPeriodDays       = 365
	maxReportAge        = 2 * 365 * 24 * time.Hour
	burstWindow         = 24 * time.Hour
	burstLimit          = 3
)

// CheckInput is a revenue claim to be scored before any report is written.
type CheckInput struct {
	LedgerAssetID uint64    `json:"ledger_asset_id"`
	OwnerWallet   string    `json:"owner_wallet"`
	PeriodStart   time.Time `json:"period_start"`
	PeriodEnd     time.Time `json:"period_end"`
	GrossRevenue  float64   `json:"gross_revenue"`
	Expenses      float64   `json:"expenses"`
	Documents     []string  `json:"documents"`
}

// FraudResult is the scored outcome. Errors are disqualifying regardless of
// score; warnings only lower it. The score is a plausibility heuristic, not a
// certainty measure.
type FraudResult struct {
	Score     float64  `json:"score"`
	RiskLevel string   `json:"risk_level"`
	Passed    bool     `json:"passed"`
	Errors    []string `json:"errors"`
	Warnings  []string `json:"warnings"`
}

// FraudChecker scores revenue claims with seven independent checks, starting
// from 100 and subtracting per finding. Historical checks read prior reports
// from the store; ownership is verified against the ledger.
type FraudChecker struct {
	DB     *gorm.DB
	Ledger ledger.Gateway
}

func NewFraudChecker(db *gorm.DB, gw ledger.Gateway) *FraudChecker {
	return &FraudChecker{DB: db, Ledger: gw}
}

// Check runs all seven checks. Only an infrastructure failure (store or
// ledger unavailable) returns an error; a bad claim returns a failed result.
func (f *FraudChecker) Check(ctx context.Context, in CheckInput) (*FraudResult, error) {
	res := &FraudResult{
		Score:    100,
		Errors:   []string{},
		Warnings: []string{},
	}

	if err := f.checkDuplicatePeriod(ctx, in, res); err != nil {
		return nil, err
	}
	if err := f.checkOwnership(ctx, in, res); err != nil {
		return nil, err
	}
	f.checkAmounts(in, res)
	f.checkPeriod(in, res)
	f.checkDocuments(in, res)
	if err := f.checkHistory(ctx, in, res); err != nil {
		return nil, err
	}
	if err := f.checkPatterns(ctx, in, res); err != nil {
		return nil, err
	}

	res.Score = math.Max(0, math.Min(100, res.Score))
	switch {
	case res.Score >= riskLowFloor:
		res.RiskLevel = RiskLow
	case res.Score >= riskMediumFloor:
		res.RiskLevel = RiskMedium
	default:
		res.RiskLevel = RiskHigh
	}
	res.Passed = len(res.Errors) == 0 && res.Score >= passingScore
	return res, nil
}

func (r *FraudResult) fail(penalty float64, message string) {
	r.Errors = append(r.Errors, message)
	r.Score -= penalty
}

func (r *FraudResult) warn(penalty float64, message string) {
	r.Warnings = append(r.Warnings, message)
	r.Score -= penalty
}

// An existing non-rejected report with an overlapping period for the same
// asset disqualifies the claim.
func (f *FraudChecker) checkDuplicatePeriod(ctx context.Context, in CheckInput, res *FraudResult) error {
	var overlapping int64
	err := f.DB.WithContext(ctx).Model(&domain.RevenueReport{}).
		Where("ledger_asset_id = ? AND status <> ? AND period_start <= ? AND period_end >= ?",
			in.LedgerAssetID, domain.ReportStatusRejected, in.PeriodEnd, in.PeriodStart).
		Count(&overlapping).Error
	if err != nil {
		return apperr.Internal("Failed to check for duplicate reporting periods", err)
	}
	if overlapping > 0 {
		res.fail(50, "A report for this asset already covers an overlapping period")
	}
	return nil
}

// The claimed owner must match the ledger's recorded original or current
// owner of the asset.
func (f *FraudChecker) checkOwnership(ctx context.Context, in CheckInput, res *FraudResult) error {
	state, err := f.Ledger.ReadAsset(ctx, in.LedgerAssetID)
	if err != nil {
		return apperr.Ledger("Failed to verify asset ownership on ledger", err)
	}
	if state == nil {
		res.fail(50, fmt.Sprintf("Asset %d does not exist on ledger", in.LedgerAssetID))
		return nil
	}
	if in.OwnerWallet != state.OriginalOwner && in.OwnerWallet != state.CurrentOwner {
		res.fail(50, "Claimed owner does not match the asset's recorded owner")
	}
	return nil
}

func (f *FraudChecker) checkAmounts(in CheckInput, res *FraudResult) {
	if in.GrossRevenue < 0 {
		res.fail(30, "Gross revenue cannot be negative")
	}
	if in.Expenses < 0 {
		res.fail(30, "Expenses cannot be negative")
	}
	if in.GrossRevenue >= 0 && in.Expenses >= 0 && in.GrossRevenue-in.Expenses < 0 {
		res.warn(10, "Expenses exceed gross revenue")
	}
	if in.GrossRevenue > 0 && in.Expenses > in.GrossRevenue*0.9 {
		res.warn(15, "Expenses exceed 90% of gross revenue")
	}
	if in.GrossRevenue > roundNumberFloor && math.Mod(in.GrossRevenue, 1000) == 0 {
		res.warn(5, "Gross revenue is a suspiciously round number")
	}
	if in.Expenses > roundNumberFloor && math.Mod(in.Expenses, 1000) == 0 {
		res.warn(5, "Expenses are a suspiciously round number")
	}
	if in.GrossRevenue > grossRevenueCeiling {
		res.warn(10, fmt.Sprintf("Gross revenue exceeds the %.0f reporting ceiling", grossRevenueCeiling))
	}
}

func (f *FraudChecker) checkPeriod(in CheckInput, res *FraudResult) {
	now := time.Now()
	if in.PeriodEnd.After(now) {
		res.fail(0, "Reporting period cannot end in the future")
	}
	if !in.PeriodStart.Before(in.PeriodEnd) {
		res.fail(0, "Reporting period start must precede its end")
		return
	}
	span := in.PeriodEnd.Sub(in.PeriodStart)
	if span > maxPeriodDays*24*time.Hour {
		res.fail(0, fmt.Sprintf("Reporting period cannot exceed %d days", maxPeriodDays))
	}
	if span < 24*time.Hour {
		res.fail(0, "Reporting period must cover at least one day")
	}
	if now.Sub(in.PeriodEnd) > maxReportAge {
		res.fail(0, "Reporting period ended more than two years ago")
	}
}

func (f *FraudChecker) checkDocuments(in CheckInput, res *FraudResult) {
	if len(in.Documents) == 0 {
		res.warn(20, "No supporting documents provided")
		return
	}
	seen := make(map[string]bool, len(in.Documents))
	duplicated := false
	for _, doc := range in.Documents {
		if seen[doc] {
			duplicated = true
		}
		seen[doc] = true
		if !contentAddressed(doc) {
			res.warn(5, fmt.Sprintf("Document reference %q is not content-addressed", doc))
		}
	}
	if duplicated {
		res.warn(10, "Duplicate document references")
	}
}

// contentAddressed recognizes IPFS-style references: CIDv0 (Qm..., 46 chars),
// CIDv1 (baf...), or an ipfs:// URI.
func contentAddressed(ref string) bool {
	ref = strings.TrimPrefix(ref, "ipfs://")
	if strings.HasPrefix(ref, "Qm") && len(ref) == 46 {
		return true
	}
	return strings.HasPrefix(ref, "baf") && len(ref) >= 46
}

// Soft comparison against the asset's distributed history. A claim far off
// the recent mean, or more than double the immediately preceding report, is
// suspicious but never disqualifying on its own.
func (f *FraudChecker) checkHistory(ctx context.Context, in CheckInput, res *FraudResult) error {
	var history []domain.RevenueReport
	err := f.DB.WithContext(ctx).
		Where("ledger_asset_id = ? AND status = ?", in.LedgerAssetID, domain.ReportStatusDistributed).
		Order("period_end DESC").Limit(3).Find(&history).Error
	if err != nil {
		return apperr.Internal("Failed to load distributed report history", err)
	}
	if len(history) == 0 {
		return nil
	}

	var sum float64
	for _, h := range history {
		sum += h.GrossRevenue
	}
	mean := sum / float64(len(history))
	if mean > 0 {
		switch {
		case in.GrossRevenue > mean*1.5:
			res.warn(15, "Gross revenue is more than 50% above the recent average for this asset")
		case in.GrossRevenue < mean*0.5:
			res.warn(10, "Gross revenue is more than 50% below the recent average for this asset")
		}
	}
	if previous := history[0].GrossRevenue; previous > 0 && in.GrossRevenue > previous*2 {
		res.warn(10, "Gross revenue is more than double the previous report")
	}
	return nil
}

func (f *FraudChecker) checkPatterns(ctx context.Context, in CheckInput, res *FraudResult) error {
	var recent int64
	err := f.DB.WithContext(ctx).Model(&domain.RevenueReport{}).
		Where("owner_wallet = ? AND created_at > ?", in.OwnerWallet, time.Now().Add(-burstWindow)).
		Count(&recent).Error
	if err != nil {
		return apperr.Internal("Failed to count recent reports", err)
	}
	if recent > burstLimit {
		res.warn(20, "More than three reports from this owner in the last 24 hours")
	}
	if in.GrossRevenue > 10000 && in.Expenses < in.GrossRevenue*0.1 {
		res.warn(5, "Unusually low expense ratio for the reported revenue")
	}
	return nil
}
