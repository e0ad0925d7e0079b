package revenue

import (
	"context"
	"testing"
	"time"

	"harbor-backend/internal/application/ownership"
	"harbor-backend/internal/application/pools"
	"harbor-backend/internal/config"
	"harbor-backend/internal/domain"
	"harbor-backend/internal/identity"
	"harbor-backend/internal/ledger"
	"harbor-backend/internal/pkg/apperr"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const (
	ownerWallet    = "owner-1"
	operatorWallet = "op-wallet"
	verifierWallet = "ver-wallet"
	investorWallet = "inv-wallet"
	treasuryWallet = "treasury-wallet"
)

type revenueFixture struct {
	svc       *Service
	pools     *pools.Service
	ownership *ownership.Service
	mem       *ledger.Memory
	db        *gorm.DB
}

func setupRevenueTest(t *testing.T) *revenueFixture {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&domain.Pool{}, &domain.PoolAsset{}, &domain.Investment{}, &domain.Dividend{},
		&domain.OwnershipRecord{}, &domain.RevenueReport{}, &domain.RevenueAudit{},
	))

	mem := ledger.NewMemory()
	ids := identity.New(&config.Config{
		OperatorWallets: []string{operatorWallet},
		VerifierWallets: []string{verifierWallet},
	})
	ownershipSvc := &ownership.Service{DB: db, Ledger: mem}
	poolsSvc := pools.NewService(db, mem, ids, ownershipSvc, treasuryWallet)
	svc := NewService(db, mem, ids, poolsSvc, ownershipSvc, treasuryWallet,
		Thresholds{OwnerMin: 70, OperatorMin: 50})
	return &revenueFixture{svc: svc, pools: poolsSvc, ownership: ownershipSvc, mem: mem, db: db}
}

func (f *revenueFixture) seedAsset(t *testing.T, id uint64, value float64) {
	f.mem.SeedAsset(ledger.AssetState{
		AssetID:              id,
		Name:                 "Vessel Alpha",
		Status:               ledger.AssetStatusActive,
		Value:                value,
		MaxInvestablePercent: 80,
		OriginalOwner:        ownerWallet,
		CurrentOwner:         ownerWallet,
	})
}

func submitInput(assetID uint64) SubmitInput {
	start := time.Now().AddDate(0, -2, 0)
	return SubmitInput{
		LedgerAssetID: assetID,
		OwnerWallet:   ownerWallet,
		PeriodStart:   start,
		PeriodEnd:     start.AddDate(0, 1, 0),
		GrossRevenue:  2000,
		Expenses:      1000,
		Documents:     []string{validDoc},
	}
}

func TestSubmitReport_Success(t *testing.T) {
	f := setupRevenueTest(t)
	f.seedAsset(t, 1, 100000)

	res, err := f.svc.SubmitReport(context.Background(), submitInput(1))
	require.NoError(t, err)
	assert.Equal(t, domain.ReportStatusSubmitted, res.Report.Status)
	assert.Equal(t, 1000.0, res.Report.NetProfit)
	assert.Equal(t, 100.0, res.Report.FraudScore)
	assert.Equal(t, RiskLow, res.Report.RiskLevel)

	var audit domain.RevenueAudit
	require.NoError(t, f.db.First(&audit, "ledger_asset_id = ?", 1).Error)
	assert.True(t, audit.Accepted)
	require.NotNil(t, audit.ReportID)
	assert.Equal(t, res.Report.ReportID, *audit.ReportID)
}

func TestSubmitReport_NegativeNetFailsFast(t *testing.T) {
	f := setupRevenueTest(t)
	f.seedAsset(t, 1, 100000)

	in := submitInput(1)
	in.Expenses = 3000
	_, err := f.svc.SubmitReport(context.Background(), in)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	var audits int64
	require.NoError(t, f.db.Model(&domain.RevenueAudit{}).Count(&audits).Error)
	assert.Zero(t, audits)
}

func TestSubmitReport_ThresholdDiffersByRole(t *testing.T) {
	f := setupRevenueTest(t)
	f.seedAsset(t, 1, 100000)

	// No documents, round amounts, 95% expense ratio: score 55. Passes the
	// screening but sits between the operator bar (50) and the owner bar (70).
	in := submitInput(1)
	in.GrossRevenue = 200000
	in.Expenses = 190000
	in.Documents = nil

	_, err := f.svc.SubmitReport(context.Background(), in)
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	details := apperr.DetailsOf(err)
	require.NotNil(t, details)
	assert.Equal(t, 55.0, details["score"])

	// The failed attempt is on the audit trail with no report attached.
	var audit domain.RevenueAudit
	require.NoError(t, f.db.First(&audit, "ledger_asset_id = ?", 1).Error)
	assert.False(t, audit.Accepted)
	assert.Nil(t, audit.ReportID)

	// The same claim submitted by the managing operator clears its lower bar.
	in.SubmitterWallet = operatorWallet
	res, err := f.svc.SubmitReport(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, 55.0, res.Report.FraudScore)
}

func TestSubmitReport_HardErrorRejectsEitherRole(t *testing.T) {
	f := setupRevenueTest(t)
	f.seedAsset(t, 1, 100000)

	in := submitInput(1)
	in.OwnerWallet = "impostor"
	in.SubmitterWallet = operatorWallet
	_, err := f.svc.SubmitReport(context.Background(), in)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestVerifyReport_ApproveWithAdjustment(t *testing.T) {
	f := setupRevenueTest(t)
	f.seedAsset(t, 1, 100000)
	res, err := f.svc.SubmitReport(context.Background(), submitInput(1))
	require.NoError(t, err)

	adjusted := 900.0
	report, err := f.svc.VerifyReport(context.Background(), VerifyInput{
		ReportID:       res.Report.ReportID,
		VerifierWallet: verifierWallet,
		Approve:        true,
		AdjustedNet:    &adjusted,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ReportStatusVerified, report.Status)
	assert.Equal(t, 900.0, report.NetProfit)
	require.NotNil(t, report.VerifiedBy)
	assert.Equal(t, verifierWallet, *report.VerifiedBy)
	assert.NotNil(t, report.VerifiedAt)
}

func TestVerifyReport_RejectRequiresReason(t *testing.T) {
	f := setupRevenueTest(t)
	f.seedAsset(t, 1, 100000)
	res, err := f.svc.SubmitReport(context.Background(), submitInput(1))
	require.NoError(t, err)

	_, err = f.svc.VerifyReport(context.Background(), VerifyInput{
		ReportID:       res.Report.ReportID,
		VerifierWallet: verifierWallet,
		Approve:        false,
	})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	report, err := f.svc.VerifyReport(context.Background(), VerifyInput{
		ReportID:       res.Report.ReportID,
		VerifierWallet: verifierWallet,
		Approve:        false,
		Reason:         "Supporting documents do not match the claim",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ReportStatusRejected, report.Status)
	require.NotNil(t, report.RejectionReason)
}

func TestVerifyReport_Unauthorized(t *testing.T) {
	f := setupRevenueTest(t)
	f.seedAsset(t, 1, 100000)
	res, err := f.svc.SubmitReport(context.Background(), submitInput(1))
	require.NoError(t, err)

	_, err = f.svc.VerifyReport(context.Background(), VerifyInput{
		ReportID:       res.Report.ReportID,
		VerifierWallet: investorWallet,
		Approve:        true,
	})
	assert.Equal(t, apperr.KindAuthorization, apperr.KindOf(err))
}

func TestVerifyReport_OnlyFromSubmitted(t *testing.T) {
	f := setupRevenueTest(t)
	f.seedAsset(t, 1, 100000)
	res, err := f.svc.SubmitReport(context.Background(), submitInput(1))
	require.NoError(t, err)

	_, err = f.svc.VerifyReport(context.Background(), VerifyInput{
		ReportID: res.Report.ReportID, VerifierWallet: verifierWallet, Approve: true,
	})
	require.NoError(t, err)

	_, err = f.svc.VerifyReport(context.Background(), VerifyInput{
		ReportID: res.Report.ReportID, VerifierWallet: verifierWallet, Approve: true,
	})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

// verifiedReport builds the full fixture: registered asset, pool tokenizing
// 60% of it, one investor, and a verified report with net profit 1000.
func verifiedReport(t *testing.T, f *revenueFixture) *domain.RevenueReport {
	f.seedAsset(t, 1, 100000)
	_, err := f.ownership.RegisterAsset(context.Background(), 1, ownerWallet)
	require.NoError(t, err)

	_, err = f.pools.CreatePool(context.Background(), pools.CreatePoolInput{
		AdminWallet: operatorWallet,
		Name:        "Coastal Freight Pool",
		TotalValue:  60000,
		TokenPrice:  10,
		Assets:      []pools.AssetInput{{LedgerAssetID: 1, Value: 60000}},
	})
	require.NoError(t, err)

	var pool domain.Pool
	require.NoError(t, f.db.First(&pool).Error)
	_, err = f.pools.Invest(context.Background(), pool.PoolID, investorWallet, 1000)
	require.NoError(t, err)

	res, err := f.svc.SubmitReport(context.Background(), submitInput(1))
	require.NoError(t, err)
	report, err := f.svc.VerifyReport(context.Background(), VerifyInput{
		ReportID: res.Report.ReportID, VerifierWallet: verifierWallet, Approve: true,
	})
	require.NoError(t, err)
	require.Equal(t, 1000.0, report.NetProfit)
	return report
}

func TestDistributeRevenue_SplitsByOwnership(t *testing.T) {
	f := setupRevenueTest(t)
	report := verifiedReport(t, f)

	res, err := f.svc.DistributeRevenue(context.Background(), report.ReportID, operatorWallet, 1000)
	require.NoError(t, err)
	assert.Equal(t, 400.0, res.OwnerShare)
	assert.Equal(t, 600.0, res.PoolShare)
	assert.NotEmpty(t, res.OwnerTx)
	require.NotNil(t, res.PoolPayout)
	assert.True(t, res.PoolPayout.Settled)
	assert.Equal(t, domain.ReportStatusDistributed, res.Report.Status)
	assert.NotNil(t, res.Report.DistributionTx)
	assert.NotNil(t, res.Report.DistributedAt)

	// Owner got paid on-ledger.
	balance, err := f.mem.ReadBalance(context.Background(), ownerWallet)
	require.NoError(t, err)
	assert.Equal(t, 400.0, balance)

	// Pool share arrived as a dividend to the sole investor.
	var position domain.Investment
	require.NoError(t, f.db.First(&position, "investor_wallet = ?", investorWallet).Error)
	assert.InDelta(t, 600.0, position.DividendsReceived, 1e-9)

	// Ownership bookkeeping recorded the owner share under the period month.
	record, err := f.ownership.GetByAsset(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 400.0, record.TotalRevenueReceived)
	periodKey := report.PeriodStart.Format("2006-01")
	assert.NotNil(t, record.RevenueHistory[periodKey])
}

func TestDistributeRevenue_AmountTolerance(t *testing.T) {
	f := setupRevenueTest(t)
	report := verifiedReport(t, f)

	_, err := f.svc.DistributeRevenue(context.Background(), report.ReportID, operatorWallet, 1000.02)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = f.svc.DistributeRevenue(context.Background(), report.ReportID, operatorWallet, 1000.009)
	require.NoError(t, err)
}

func TestDistributeRevenue_OnlyOnce(t *testing.T) {
	f := setupRevenueTest(t)
	report := verifiedReport(t, f)

	_, err := f.svc.DistributeRevenue(context.Background(), report.ReportID, operatorWallet, 1000)
	require.NoError(t, err)

	_, err = f.svc.DistributeRevenue(context.Background(), report.ReportID, operatorWallet, 1000)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestDistributeRevenue_RequiresVerified(t *testing.T) {
	f := setupRevenueTest(t)
	f.seedAsset(t, 1, 100000)
	res, err := f.svc.SubmitReport(context.Background(), submitInput(1))
	require.NoError(t, err)

	_, err = f.svc.DistributeRevenue(context.Background(), res.Report.ReportID, operatorWallet, 1000)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestDistributeRevenue_OwnerTransferFailureLeavesReportVerified(t *testing.T) {
	f := setupRevenueTest(t)
	report := verifiedReport(t, f)

	f.mem.FailTransfer = assert.AnError
	_, err := f.svc.DistributeRevenue(context.Background(), report.ReportID, operatorWallet, 1000)
	assert.Equal(t, apperr.KindLedger, apperr.KindOf(err))

	got, err := f.svc.GetReport(context.Background(), report.ReportID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReportStatusVerified, got.Status)
}

func TestDistributeRevenue_ClosedPoolBlocksOwnerPayout(t *testing.T) {
	f := setupRevenueTest(t)
	report := verifiedReport(t, f)

	var pool domain.Pool
	require.NoError(t, f.db.First(&pool).Error)
	_, err := f.pools.ClosePool(context.Background(), pool.PoolID, operatorWallet)
	require.NoError(t, err)

	_, err = f.svc.DistributeRevenue(context.Background(), report.ReportID, operatorWallet, 1000)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	// The owner share never moved, so a retry cannot double-pay.
	balance, err := f.mem.ReadBalance(context.Background(), ownerWallet)
	require.NoError(t, err)
	assert.Equal(t, 0.0, balance)

	got, err := f.svc.GetReport(context.Background(), report.ReportID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReportStatusVerified, got.Status)
}

func TestDistributeRevenue_Unauthorized(t *testing.T) {
	f := setupRevenueTest(t)
	report := verifiedReport(t, f)

	_, err := f.svc.DistributeRevenue(context.Background(), report.ReportID, investorWallet, 1000)
	assert.Equal(t, apperr.KindAuthorization, apperr.KindOf(err))
}
