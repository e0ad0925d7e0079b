// Package yield computes projected dividends and returns for pool
// investments. All functions are pure: no I/O, no hidden state, safe to call
// repeatedly as refresh operations without accumulating error.
package yield

// Projection is the projected return for a principal held for a period at a
// pool's expected annual rate.
type Projection struct {
	Dividends                float64 `json:"dividends"`
	ROIPercent               float64 `json:"roi_percent"`
	ImpliedAnnualRatePercent float64 `json:"implied_annual_rate_percent"`
}

// InvestmentProjection blends projected dividends with dividends actually
// received so far.
type InvestmentProjection struct {
	Projection
	DividendsReceived float64 `json:"dividends_received"`
	TotalReturn       float64 `json:"total_return"`
	TotalROIPercent   float64 `json:"total_roi_percent"`
}

// impliedRateCap limits the annualized implied rate to 1.5x the nominal rate,
// preventing divide-by-small-number blowups in the first days of a position.
const impliedRateCap = 1.5

// ProjectedReturn computes dividends accrued over daysElapsed at
// annualRatePercent, the resulting ROI, and the implied annualized rate.
func ProjectedReturn(principal, annualRatePercent, daysElapsed float64) Projection {
	if principal <= 0 || daysElapsed < 0 {
		return Projection{ImpliedAnnualRatePercent: annualRatePercent}
	}
	annualAmount := principal * annualRatePercent / 100
	dividends := annualAmount * daysElapsed / 365

	roi := dividends / principal * 100

	implied := annualRatePercent
	if daysElapsed > 0 {
		implied = dividends / principal * (365 / daysElapsed) * 100
		if max := annualRatePercent * impliedRateCap; implied > max {
			implied = max
		}
	}

	return Projection{
		Dividends:                dividends,
		ROIPercent:               roi,
		ImpliedAnnualRatePercent: implied,
	}
}

// InvestmentReturn reports the blended return of a position: dividends
// actually received plus dividends still projected for the elapsed period.
func InvestmentReturn(principal, annualRatePercent, daysElapsed, dividendsReceived float64) InvestmentProjection {
	p := ProjectedReturn(principal, annualRatePercent, daysElapsed)
	total := dividendsReceived + p.Dividends
	totalROI := 0.0
	if principal > 0 {
		totalROI = total / principal * 100
	}
	return InvestmentProjection{
		Projection:        p,
		DividendsReceived: dividendsReceived,
		TotalReturn:       total,
		TotalROIPercent:   totalROI,
	}
}
