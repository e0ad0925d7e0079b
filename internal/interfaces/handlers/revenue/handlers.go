package revenue

import (
	"strconv"
	"time"

	revsvc "harbor-backend/internal/application/revenue"
	"harbor-backend/internal/middleware"
	"harbor-backend/internal/pkg/apperr"
	"harbor-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type Handlers struct {
	Service *revsvc.Service
}

type reportRequest struct {
	LedgerAssetID uint64    `json:"ledger_asset_id"`
	OwnerWallet   string    `json:"owner_wallet"`
	PeriodStart   time.Time `json:"period_start"`
	PeriodEnd     time.Time `json:"period_end"`
	GrossRevenue  float64   `json:"gross_revenue"`
	Expenses      float64   `json:"expenses"`
	Documents     []string  `json:"documents"`
}

// POST /api/v1/revenue/submit-report
func (h *Handlers) SubmitReport(c *fiber.Ctx) error {
	var body reportRequest
	if err := c.BodyParser(&body); err != nil {
		return apperr.Validation("Invalid request body")
	}
	result, err := h.Service.SubmitReport(c.Context(), revsvc.SubmitInput{
		LedgerAssetID:   body.LedgerAssetID,
		OwnerWallet:     body.OwnerWallet,
		SubmitterWallet: middleware.GetIdentity(c).Address,
		PeriodStart:     body.PeriodStart,
		PeriodEnd:       body.PeriodEnd,
		GrossRevenue:    body.GrossRevenue,
		Expenses:        body.Expenses,
		Documents:       body.Documents,
	})
	if err != nil {
		return err
	}
	return response.SuccessCreated(c, "Revenue report submitted successfully", result, nil)
}

// POST /api/v1/revenue/fraud-check
func (h *Handlers) FraudCheck(c *fiber.Ctx) error {
	var body reportRequest
	if err := c.BodyParser(&body); err != nil {
		return apperr.Validation("Invalid request body")
	}
	result, err := h.Service.FraudCheck(c.Context(), revsvc.CheckInput{
		LedgerAssetID: body.LedgerAssetID,
		OwnerWallet:   body.OwnerWallet,
		PeriodStart:   body.PeriodStart,
		PeriodEnd:     body.PeriodEnd,
		GrossRevenue:  body.GrossRevenue,
		Expenses:      body.Expenses,
		Documents:     body.Documents,
	})
	if err != nil {
		return err
	}
	return response.Success(c, "Fraud check completed", result, nil)
}

type verifyRequest struct {
	ReportID    string   `json:"report_id"`
	Approve     bool     `json:"approve"`
	AdjustedNet *float64 `json:"adjusted_net"`
	Reason      string   `json:"reason"`
}

// POST /api/v1/revenue/verify-report
func (h *Handlers) VerifyReport(c *fiber.Ctx) error {
	var body verifyRequest
	if err := c.BodyParser(&body); err != nil {
		return apperr.Validation("Invalid request body")
	}
	reportID, err := uuid.Parse(body.ReportID)
	if err != nil {
		return apperr.Validation("Invalid report id")
	}
	report, err := h.Service.VerifyReport(c.Context(), revsvc.VerifyInput{
		ReportID:       reportID,
		VerifierWallet: middleware.GetIdentity(c).Address,
		Approve:        body.Approve,
		AdjustedNet:    body.AdjustedNet,
		Reason:         body.Reason,
	})
	if err != nil {
		return err
	}
	message := "Report verified successfully"
	if !body.Approve {
		message = "Report rejected"
	}
	return response.Success(c, message, report, nil)
}

type distributeRequest struct {
	Amount float64 `json:"amount"`
}

// POST /api/v1/revenue/distribute/:id
func (h *Handlers) DistributeRevenue(c *fiber.Ctx) error {
	reportID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return apperr.Validation("Invalid report id")
	}
	var body distributeRequest
	if err := c.BodyParser(&body); err != nil {
		return apperr.Validation("Invalid request body")
	}
	result, err := h.Service.DistributeRevenue(c.Context(), reportID, middleware.GetIdentity(c).Address, body.Amount)
	if err != nil {
		return err
	}
	return response.Success(c, "Revenue distributed successfully", result, nil)
}

// GET /api/v1/revenue/get-report/:id
func (h *Handlers) GetReport(c *fiber.Ctx) error {
	reportID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return apperr.Validation("Invalid report id")
	}
	report, err := h.Service.GetReport(c.Context(), reportID)
	if err != nil {
		return err
	}
	return response.Success(c, "Report fetched successfully", report, nil)
}

// GET /api/v1/revenue/get-asset-reports/:assetId
func (h *Handlers) GetAssetReports(c *fiber.Ctx) error {
	assetID, err := strconv.ParseUint(c.Params("assetId"), 10, 64)
	if err != nil {
		return apperr.Validation("Invalid asset id")
	}
	reports, err := h.Service.ListReportsByAsset(c.Context(), assetID)
	if err != nil {
		return err
	}
	return response.Success(c, "Reports fetched successfully", reports, fiber.Map{"total": len(reports)})
}
