package revenue

import (
	"context"
	"strings"
	"testing"
	"time"

	"harbor-backend/internal/domain"
	"harbor-backend/internal/ledger"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var validDoc = "Qm" + strings.Repeat("a", 44)

func setupFraudTest(t *testing.T) (*FraudChecker, *ledger.Memory, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.RevenueReport{}))

	mem := ledger.NewMemory()
	mem.SeedAsset(ledger.AssetState{
		AssetID:       1,
		Name:          "Vessel Alpha",
		Status:        ledger.AssetStatusActive,
		Value:         100000,
		OriginalOwner: "owner-1",
		CurrentOwner:  "owner-1",
	})
	return NewFraudChecker(db, mem), mem, db
}

func cleanInput() CheckInput {
	start := time.Now().AddDate(0, -2, 0)
	return CheckInput{
		LedgerAssetID: 1,
		OwnerWallet:   "owner-1",
		PeriodStart:   start,
		PeriodEnd:     start.AddDate(0, 1, 0),
		GrossRevenue:  50000,
		Expenses:      20000,
		Documents:     []string{validDoc},
	}
}

func TestCheck_CleanReport(t *testing.T) {
	checker, _, _ := setupFraudTest(t)

	res, err := checker.Check(context.Background(), cleanInput())
	require.NoError(t, err)
	assert.Equal(t, 100.0, res.Score)
	assert.Equal(t, RiskLow, res.RiskLevel)
	assert.True(t, res.Passed)
	assert.Empty(t, res.Errors)
	assert.Empty(t, res.Warnings)
}

func TestCheck_DuplicatePeriodLowersScore(t *testing.T) {
	checker, _, db := setupFraudTest(t)
	in := cleanInput()

	baseline, err := checker.Check(context.Background(), in)
	require.NoError(t, err)

	require.NoError(t, db.Create(&domain.RevenueReport{
		LedgerAssetID: 1,
		OwnerWallet:   "owner-1",
		PeriodStart:   in.PeriodStart,
		PeriodEnd:     in.PeriodEnd,
		GrossRevenue:  40000,
		Expenses:      10000,
		NetProfit:     30000,
		Status:        domain.ReportStatusSubmitted,
	}).Error)

	res, err := checker.Check(context.Background(), in)
	require.NoError(t, err)
	assert.Less(t, res.Score, baseline.Score)
	assert.False(t, res.Passed)
	assert.NotEmpty(t, res.Errors)
}

func TestCheck_RejectedReportIsNotDuplicate(t *testing.T) {
	checker, _, db := setupFraudTest(t)
	in := cleanInput()

	require.NoError(t, db.Create(&domain.RevenueReport{
		LedgerAssetID: 1,
		OwnerWallet:   "owner-1",
		PeriodStart:   in.PeriodStart,
		PeriodEnd:     in.PeriodEnd,
		Status:        domain.ReportStatusRejected,
	}).Error)

	res, err := checker.Check(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, res.Passed)
}

func TestCheck_OwnershipMismatch(t *testing.T) {
	checker, _, _ := setupFraudTest(t)
	in := cleanInput()
	in.OwnerWallet = "impostor"

	res, err := checker.Check(context.Background(), in)
	require.NoError(t, err)
	assert.False(t, res.Passed)
	assert.Equal(t, 50.0, res.Score)
}

func TestCheck_UnknownAssetFails(t *testing.T) {
	checker, _, _ := setupFraudTest(t)
	in := cleanInput()
	in.LedgerAssetID = 99

	res, err := checker.Check(context.Background(), in)
	require.NoError(t, err)
	assert.False(t, res.Passed)
}

func TestCheck_NegativeAmountsAreHardErrors(t *testing.T) {
	checker, _, _ := setupFraudTest(t)
	in := cleanInput()
	in.GrossRevenue = -100
	in.Expenses = -50

	res, err := checker.Check(context.Background(), in)
	require.NoError(t, err)
	assert.False(t, res.Passed)
	assert.Len(t, res.Errors, 2)
	assert.Equal(t, 40.0, res.Score)
}

func TestCheck_ExpenseRatioWarning(t *testing.T) {
	checker, _, _ := setupFraudTest(t)
	in := cleanInput()
	in.GrossRevenue = 10000
	in.Expenses = 9500

	res, err := checker.Check(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, res.Passed)
	assert.Equal(t, 85.0, res.Score)
}

func TestCheck_RoundNumberWarnings(t *testing.T) {
	checker, _, _ := setupFraudTest(t)
	in := cleanInput()
	in.GrossRevenue = 500000
	in.Expenses = 200000

	res, err := checker.Check(context.Background(), in)
	require.NoError(t, err)
	// Both amounts are round numbers above the floor.
	assert.Equal(t, 90.0, res.Score)
	assert.Len(t, res.Warnings, 2)
}

func TestCheck_GrossAboveCeiling(t *testing.T) {
	checker, _, _ := setupFraudTest(t)
	in := cleanInput()
	in.GrossRevenue = 15000001
	in.Expenses = 6000001

	res, err := checker.Check(context.Background(), in)
	require.NoError(t, err)
	assert.Contains(t, strings.Join(res.Warnings, " "), "ceiling")
}

func TestCheck_PeriodTooLong(t *testing.T) {
	checker, _, _ := setupFraudTest(t)
	in := cleanInput()
	// Keep the end in the past so only the span check fires.
	in.PeriodStart = time.Now().Add(-500 * 24 * time.Hour)
	in.PeriodEnd = in.PeriodStart.Add(400 * 24 * time.Hour)

	res, err := checker.Check(context.Background(), in)
	require.NoError(t, err)
	assert.False(t, res.Passed)
	assert.NotEmpty(t, res.Errors)
}

func TestCheck_PeriodEndInFuture(t *testing.T) {
	checker, _, _ := setupFraudTest(t)
	in := cleanInput()
	in.PeriodEnd = time.Now().Add(48 * time.Hour)

	res, err := checker.Check(context.Background(), in)
	require.NoError(t, err)
	assert.False(t, res.Passed)
}

func TestCheck_PeriodInverted(t *testing.T) {
	checker, _, _ := setupFraudTest(t)
	in := cleanInput()
	in.PeriodStart, in.PeriodEnd = in.PeriodEnd, in.PeriodStart

	res, err := checker.Check(context.Background(), in)
	require.NoError(t, err)
	assert.False(t, res.Passed)
}

func TestCheck_DocumentWarnings(t *testing.T) {
	checker, _, _ := setupFraudTest(t)

	in := cleanInput()
	in.Documents = nil
	res, err := checker.Check(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, 80.0, res.Score)

	in = cleanInput()
	in.Documents = []string{"invoice.pdf"}
	res, err = checker.Check(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, 95.0, res.Score)

	in = cleanInput()
	in.Documents = []string{validDoc, validDoc}
	res, err = checker.Check(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, 90.0, res.Score)
}

func TestCheck_HistoricalDeviation(t *testing.T) {
	checker, _, db := setupFraudTest(t)

	// Three distributed reports averaging 10000 gross.
	for i := 0; i < 3; i++ {
		start := time.Now().AddDate(0, -6+i, 0)
		end := start.AddDate(0, 1, 0)
		require.NoError(t, db.Create(&domain.RevenueReport{
			LedgerAssetID: 1,
			OwnerWallet:   "owner-1",
			PeriodStart:   start,
			PeriodEnd:     end,
			GrossRevenue:  10000,
			Expenses:      4000,
			NetProfit:     6000,
			Status:        domain.ReportStatusDistributed,
		}).Error)
	}

	in := cleanInput()
	in.GrossRevenue = 50000
	in.Expenses = 20000
	res, err := checker.Check(context.Background(), in)
	require.NoError(t, err)
	// Above the mean by more than 50% and more than double the previous.
	assert.Equal(t, 75.0, res.Score)

	in.GrossRevenue = 4000
	in.Expenses = 1600
	res, err = checker.Check(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, 90.0, res.Score)
}

func TestCheck_SubmissionBurst(t *testing.T) {
	checker, _, db := setupFraudTest(t)

	for i := 0; i < 4; i++ {
		start := time.Now().AddDate(-1, i, 0)
		require.NoError(t, db.Create(&domain.RevenueReport{
			LedgerAssetID: uint64(10 + i),
			OwnerWallet:   "owner-1",
			PeriodStart:   start,
			PeriodEnd:     start.AddDate(0, 1, 0),
			Status:        domain.ReportStatusSubmitted,
		}).Error)
	}

	res, err := checker.Check(context.Background(), cleanInput())
	require.NoError(t, err)
	assert.Equal(t, 80.0, res.Score)
	assert.Contains(t, strings.Join(res.Warnings, " "), "24 hours")
}

func TestCheck_LowExpenseRatioWarning(t *testing.T) {
	checker, _, _ := setupFraudTest(t)
	in := cleanInput()
	in.GrossRevenue = 50000
	in.Expenses = 1000

	res, err := checker.Check(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, 95.0, res.Score)
}

func TestCheck_ScoreClampedToZero(t *testing.T) {
	checker, _, _ := setupFraudTest(t)
	in := cleanInput()
	in.OwnerWallet = "impostor"
	in.GrossRevenue = -1
	in.Expenses = -1
	in.Documents = nil

	res, err := checker.Check(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.Score)
	assert.Equal(t, RiskHigh, res.RiskLevel)
	assert.False(t, res.Passed)
}
