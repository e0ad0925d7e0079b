package revenue

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"harbor-backend/internal/application/pools"
	"harbor-backend/internal/domain"
	"harbor-backend/internal/identity"
	"harbor-backend/internal/ledger"
	"harbor-backend/internal/pkg/apperr"
	"harbor-backend/internal/pkg/constants"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// amountTolerance is the accepted slack between a caller-supplied
// distribution amount and the verified net profit.
const amountTolerance = 0.01

// DividendDistributor routes an asset's pooled revenue share into a pool as
// a dividend. Satisfied by the pool reconciliation engine.
type DividendDistributor interface {
	ValidateDividend(ctx context.Context, poolID uuid.UUID) error
	DistributeDividend(ctx context.Context, poolID uuid.UUID, callerWallet string, amount float64, description string) (*pools.DistributeResult, error)
}

// OwnershipLedger reads and updates per-asset ownership bookkeeping.
// Satisfied by the ownership tracker.
type OwnershipLedger interface {
	GetByAsset(ctx context.Context, assetID uint64) (*domain.OwnershipRecord, error)
	RecordRevenue(ctx context.Context, assetID uint64, amount float64, periodKey string) error
}

// Thresholds are the minimum fraud scores per submitter role. Operators get
// a lower bar than owners: the managing operator is the more trusted party.
type Thresholds struct {
	OwnerMin    float64
	OperatorMin float64
}

// Service is the revenue report engine: fraud-gated submission, verification,
// and ownership-split distribution.
type Service struct {
	DB         *gorm.DB
	Ledger     ledger.Gateway
	Identity   *identity.Service
	Fraud      *FraudChecker
	Pools      DividendDistributor
	Ownership  OwnershipLedger
	Treasury   string
	Thresholds Thresholds
}

func NewService(db *gorm.DB, gw ledger.Gateway, ids *identity.Service, distributor DividendDistributor, ownership OwnershipLedger, treasury string, thresholds Thresholds) *Service {
	return &Service{
		DB:         db,
		Ledger:     gw,
		Identity:   ids,
		Fraud:      NewFraudChecker(db, gw),
		Pools:      distributor,
		Ownership:  ownership,
		Treasury:   treasury,
		Thresholds: thresholds,
	}
}

type SubmitInput struct {
	LedgerAssetID   uint64    `json:"ledger_asset_id"`
	OwnerWallet     string    `json:"owner_wallet"`
	SubmitterWallet string    `json:"submitter_wallet"`
	PeriodStart     time.Time `json:"period_start"`
	PeriodEnd       time.Time `json:"period_end"`
	GrossRevenue    float64   `json:"gross_revenue"`
	Expenses        float64   `json:"expenses"`
	Documents       []string  `json:"documents"`
}

// SubmitResult pairs the persisted report with the fraud screening outcome.
type SubmitResult struct {
	Report *domain.RevenueReport `json:"report"`
	Fraud  *FraudResult          `json:"fraud"`
}

// SubmitReport screens the claim and persists it in submitted status. Every
// attempt, accepted or not, is written to the audit trail before the caller
// sees the outcome. The acceptance bar depends on who submits: operator
// submissions use the lower configured threshold.
func (s *Service) SubmitReport(ctx context.Context, in SubmitInput) (*SubmitResult, error) {
	if in.SubmitterWallet == "" {
		in.SubmitterWallet = in.OwnerWallet
	}
	if in.OwnerWallet == "" {
		return nil, apperr.Validation("Owner wallet is required")
	}
	submitter := s.Identity.Resolve(in.SubmitterWallet)
	if !submitter.Can(constants.SubmitReport) {
		return nil, apperr.Authorization("Wallet is not authorized to submit revenue reports")
	}
	net := in.GrossRevenue - in.Expenses
	if net < 0 {
		return nil, apperr.Validation("Net profit cannot be negative")
	}

	result, err := s.Fraud.Check(ctx, CheckInput{
		LedgerAssetID: in.LedgerAssetID,
		OwnerWallet:   in.OwnerWallet,
		PeriodStart:   in.PeriodStart,
		PeriodEnd:     in.PeriodEnd,
		GrossRevenue:  in.GrossRevenue,
		Expenses:      in.Expenses,
		Documents:     in.Documents,
	})
	if err != nil {
		return nil, err
	}

	threshold := s.Thresholds.OwnerMin
	if submitter.Role == constants.Operator || submitter.Role == constants.Superadmin {
		threshold = s.Thresholds.OperatorMin
	}
	accepted := result.Passed && result.Score >= threshold

	errorsJSON, _ := json.Marshal(result.Errors)
	warningsJSON, _ := json.Marshal(result.Warnings)
	documentsJSON, _ := json.Marshal(in.Documents)

	var report domain.RevenueReport
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		audit := domain.RevenueAudit{
			LedgerAssetID:   in.LedgerAssetID,
			SubmitterWallet: in.SubmitterWallet,
			SubmitterRole:   submitter.Role,
			Accepted:        accepted,
			Score:           result.Score,
			RiskLevel:       result.RiskLevel,
			Errors:          datatypes.JSON(errorsJSON),
			Warnings:        datatypes.JSON(warningsJSON),
		}
		if !accepted {
			return tx.Create(&audit).Error
		}
		report = domain.RevenueReport{
			LedgerAssetID: in.LedgerAssetID,
			OwnerWallet:   in.OwnerWallet,
			PeriodStart:   in.PeriodStart,
			PeriodEnd:     in.PeriodEnd,
			GrossRevenue:  in.GrossRevenue,
			Expenses:      in.Expenses,
			NetProfit:     net,
			Status:        domain.ReportStatusSubmitted,
			Documents:     datatypes.JSON(documentsJSON),
			FraudScore:    result.Score,
			RiskLevel:     result.RiskLevel,
			Warnings:      datatypes.JSON(warningsJSON),
		}
		if err := tx.Create(&report).Error; err != nil {
			return err
		}
		audit.ReportID = &report.ReportID
		return tx.Create(&audit).Error
	})
	if err != nil {
		return nil, apperr.Internal("Failed to record submission", err)
	}

	if !accepted {
		return nil, apperr.Validation("Revenue report failed fraud screening").WithDetails(map[string]interface{}{
			"score":      result.Score,
			"risk_level": result.RiskLevel,
			"errors":     result.Errors,
			"warnings":   result.Warnings,
		})
	}
	log.Info().
		Str("report_id", report.ReportID.String()).
		Uint64("ledger_asset_id", in.LedgerAssetID).
		Float64("score", result.Score).
		Str("risk_level", result.RiskLevel).
		Msg("Revenue report submitted")
	return &SubmitResult{Report: &report, Fraud: result}, nil
}

// FraudCheck runs the screening without writing anything, so submitters can
// pre-flight a claim.
func (s *Service) FraudCheck(ctx context.Context, in CheckInput) (*FraudResult, error) {
	return s.Fraud.Check(ctx, in)
}

type VerifyInput struct {
	ReportID       uuid.UUID `json:"report_id"`
	VerifierWallet string    `json:"verifier_wallet"`
	Approve        bool      `json:"approve"`
	AdjustedNet    *float64  `json:"adjusted_net"`
	Reason         string    `json:"reason"`
}

// VerifyReport transitions a submitted report to verified or rejected. A
// verifier-adjusted amount replaces the derived net profit.
func (s *Service) VerifyReport(ctx context.Context, in VerifyInput) (*domain.RevenueReport, error) {
	verifier := s.Identity.Resolve(in.VerifierWallet)
	if !verifier.Can(constants.VerifyReport) {
		return nil, apperr.Authorization("Wallet is not authorized to verify revenue reports")
	}
	if !in.Approve && in.Reason == "" {
		return nil, apperr.Validation("A rejection reason is required")
	}
	if in.AdjustedNet != nil && *in.AdjustedNet < 0 {
		return nil, apperr.Validation("Adjusted net profit cannot be negative")
	}

	var report domain.RevenueReport
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("report_id = ?", in.ReportID).First(&report).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return apperr.NotFound("Revenue report not found")
			}
			return apperr.Internal("Failed to load report", err)
		}
		if report.Status != domain.ReportStatusSubmitted {
			return apperr.Validation(fmt.Sprintf("Report in status %q cannot be verified", report.Status))
		}
		now := time.Now()
		report.VerifiedBy = &in.VerifierWallet
		report.VerifiedAt = &now
		if in.Approve {
			report.Status = domain.ReportStatusVerified
			if in.AdjustedNet != nil {
				report.NetProfit = *in.AdjustedNet
			}
		} else {
			report.Status = domain.ReportStatusRejected
			report.RejectionReason = &in.Reason
		}
		if err := tx.Save(&report).Error; err != nil {
			return apperr.Internal("Failed to update report", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &report, nil
}

// DistributeResult reports how a verified net profit was split and settled.
type DistributeResult struct {
	Report     *domain.RevenueReport   `json:"report"`
	OwnerShare float64                 `json:"owner_share"`
	PoolShare  float64                 `json:"pool_share"`
	OwnerTx    string                  `json:"owner_tx,omitempty"`
	PoolPayout *pools.DistributeResult `json:"pool_payout,omitempty"`
}

// DistributeRevenue splits a verified report's net profit between the asset
// owner and the pool that tokenized the asset. The owner share moves through
// a direct ledger transfer; the pool share is routed as a pool dividend into
// the asset's first associated pool.
func (s *Service) DistributeRevenue(ctx context.Context, reportID uuid.UUID, callerWallet string, amount float64) (*DistributeResult, error) {
	caller := s.Identity.Resolve(callerWallet)
	if !caller.Can(constants.DistributeRevenue) {
		return nil, apperr.Authorization("Wallet is not authorized to distribute revenue")
	}

	var report domain.RevenueReport
	if err := s.DB.WithContext(ctx).Where("report_id = ?", reportID).First(&report).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperr.NotFound("Revenue report not found")
		}
		return nil, apperr.Internal("Failed to load report", err)
	}
	if report.Status == domain.ReportStatusDistributed {
		return nil, apperr.Validation("Report has already been distributed")
	}
	if report.Status != domain.ReportStatusVerified {
		return nil, apperr.Validation(fmt.Sprintf("Report in status %q cannot be distributed", report.Status))
	}
	if math.Abs(amount-report.NetProfit) > amountTolerance {
		return nil, apperr.Validation(fmt.Sprintf(
			"Distribution amount (%.2f) does not match the verified net profit (%.2f)", amount, report.NetProfit))
	}

	record, err := s.Ownership.GetByAsset(ctx, report.LedgerAssetID)
	if err != nil {
		return nil, err
	}

	res := &DistributeResult{Report: &report}
	res.OwnerShare = round2(amount * record.OwnershipPercent / 100)
	res.PoolShare = round2(amount * record.TokenizedPercent / 100)

	// Resolve and validate the pool leg before any value moves. The owner
	// transfer is irreversible, so a pool that cannot take its dividend must
	// reject the whole distribution while the report is still retryable.
	var poolID uuid.UUID
	if res.PoolShare > 0 {
		poolIDs, err := poolAssociations(record)
		if err != nil {
			return nil, err
		}
		if len(poolIDs) == 0 {
			return nil, apperr.Consistency("Asset has a tokenized share but no associated pool")
		}
		poolID = poolIDs[0]
		if err := s.Pools.ValidateDividend(ctx, poolID); err != nil {
			return nil, err
		}
	}

	var distributionTx string
	if res.OwnerShare > 0 {
		tx, err := s.Ledger.TransferValue(ctx, s.Treasury, record.OwnerWallet, res.OwnerShare)
		if err != nil {
			return nil, apperr.Ledger("Owner share transfer failed", err)
		}
		res.OwnerTx = tx
		distributionTx = tx
	}
	if res.PoolShare > 0 {
		description := fmt.Sprintf("Revenue distribution for asset %d (%s)",
			report.LedgerAssetID, report.PeriodStart.Format("2006-01"))
		payout, err := s.Pools.DistributeDividend(ctx, poolID, callerWallet, res.PoolShare, description)
		if err != nil {
			return nil, err
		}
		res.PoolPayout = payout
		if distributionTx == "" && payout.Dividend.SettlementTx != nil {
			distributionTx = *payout.Dividend.SettlementTx
		}
	}

	now := time.Now()
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current domain.RevenueReport
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("report_id = ?", reportID).First(&current).Error; err != nil {
			return apperr.Internal("Failed to reload report", err)
		}
		if current.Status != domain.ReportStatusVerified {
			return apperr.Consistency("Report status changed during distribution")
		}
		current.Status = domain.ReportStatusDistributed
		current.DistributedAt = &now
		if distributionTx != "" {
			current.DistributionTx = &distributionTx
		}
		if err := tx.Save(&current).Error; err != nil {
			return apperr.Internal("Failed to mark report distributed", err)
		}
		report = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	res.Report = &report

	periodKey := report.PeriodStart.Format("2006-01")
	if err := s.Ownership.RecordRevenue(ctx, report.LedgerAssetID, res.OwnerShare, periodKey); err != nil {
		log.Warn().Err(err).
			Uint64("ledger_asset_id", report.LedgerAssetID).
			Msg("Ownership revenue bookkeeping failed")
	}
	return res, nil
}

// GetReport returns a single report.
func (s *Service) GetReport(ctx context.Context, reportID uuid.UUID) (*domain.RevenueReport, error) {
	var report domain.RevenueReport
	if err := s.DB.WithContext(ctx).Where("report_id = ?", reportID).First(&report).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperr.NotFound("Revenue report not found")
		}
		return nil, apperr.Internal("Failed to load report", err)
	}
	return &report, nil
}

// ListReportsByAsset returns an asset's reports, newest first.
func (s *Service) ListReportsByAsset(ctx context.Context, assetID uint64) ([]domain.RevenueReport, error) {
	var reports []domain.RevenueReport
	if err := s.DB.WithContext(ctx).
		Where("ledger_asset_id = ?", assetID).
		Order("created_at DESC").Find(&reports).Error; err != nil {
		return nil, apperr.Internal("Failed to list reports", err)
	}
	return reports, nil
}

func poolAssociations(record *domain.OwnershipRecord) ([]uuid.UUID, error) {
	if len(record.PoolIDs) == 0 {
		return nil, nil
	}
	var raw []string
	if err := json.Unmarshal(record.PoolIDs, &raw); err != nil {
		return nil, apperr.Internal("Failed to decode pool associations", err)
	}
	ids := make([]uuid.UUID, 0, len(raw))
	for _, r := range raw {
		id, err := uuid.Parse(r)
		if err != nil {
			return nil, apperr.Internal("Failed to decode pool associations", err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
