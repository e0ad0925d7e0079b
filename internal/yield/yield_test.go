package yield

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProjectedReturn_Formulas(t *testing.T) {
	// 10000 at 8% for 365 days: full annual amount.
	p := ProjectedReturn(10000, 8, 365)
	assert.InDelta(t, 800, p.Dividends, 1e-9)
	assert.InDelta(t, 8, p.ROIPercent, 1e-9)
	assert.InDelta(t, 8, p.ImpliedAnnualRatePercent, 1e-9)

	// Half a year accrues half the annual amount.
	p = ProjectedReturn(10000, 8, 182.5)
	assert.InDelta(t, 400, p.Dividends, 1e-9)
	assert.InDelta(t, 4, p.ROIPercent, 1e-9)
}

func TestProjectedReturn_ZeroPrincipal(t *testing.T) {
	p := ProjectedReturn(0, 8, 100)
	assert.Zero(t, p.Dividends)
	assert.Zero(t, p.ROIPercent)
	assert.Equal(t, 8.0, p.ImpliedAnnualRatePercent)
}

func TestProjectedReturn_ZeroDaysFallsBackToNominalRate(t *testing.T) {
	p := ProjectedReturn(5000, 12, 0)
	assert.Zero(t, p.Dividends)
	assert.Equal(t, 12.0, p.ImpliedAnnualRatePercent)
}

func TestProjectedReturn_ImpliedRateCapped(t *testing.T) {
	// However the numbers fall, the implied rate never exceeds 1.5x nominal.
	for _, days := range []float64{0.001, 0.5, 1, 7, 30, 365} {
		p := ProjectedReturn(1000, 10, days)
		assert.LessOrEqual(t, p.ImpliedAnnualRatePercent, 15.0, "days=%v", days)
	}
}

func TestProjectedReturn_Idempotent(t *testing.T) {
	a := ProjectedReturn(2500.75, 7.25, 91)
	b := ProjectedReturn(2500.75, 7.25, 91)
	assert.Equal(t, a, b)
}

func TestInvestmentReturn_BlendsReceivedAndProjected(t *testing.T) {
	r := InvestmentReturn(10000, 8, 365, 350)
	assert.InDelta(t, 800, r.Dividends, 1e-9)
	assert.InDelta(t, 1150, r.TotalReturn, 1e-9)
	assert.InDelta(t, 11.5, r.TotalROIPercent, 1e-9)
	assert.Equal(t, 350.0, r.DividendsReceived)
}

func TestInvestmentReturn_ZeroPrincipal(t *testing.T) {
	r := InvestmentReturn(0, 8, 100, 50)
	assert.Zero(t, r.TotalROIPercent)
	assert.Equal(t, 50.0, r.TotalReturn)
}
