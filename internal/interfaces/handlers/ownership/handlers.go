package ownership

import (
	"strconv"

	ownsvc "harbor-backend/internal/application/ownership"
	"harbor-backend/internal/middleware"
	"harbor-backend/internal/pkg/apperr"
	"harbor-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Service *ownsvc.Service
}

type registerRequest struct {
	LedgerAssetID uint64 `json:"ledger_asset_id"`
}

// POST /api/v1/ownership/register-asset
func (h *Handlers) RegisterAsset(c *fiber.Ctx) error {
	var body registerRequest
	if err := c.BodyParser(&body); err != nil {
		return apperr.Validation("Invalid request body")
	}
	record, err := h.Service.RegisterAsset(c.Context(), body.LedgerAssetID, middleware.GetIdentity(c).Address)
	if err != nil {
		return err
	}
	return response.SuccessCreated(c, "Asset registered successfully", record, nil)
}

// GET /api/v1/ownership/get-asset-record/:assetId
func (h *Handlers) GetAssetRecord(c *fiber.Ctx) error {
	assetID, err := strconv.ParseUint(c.Params("assetId"), 10, 64)
	if err != nil {
		return apperr.Validation("Invalid asset id")
	}
	record, err := h.Service.GetByAsset(c.Context(), assetID)
	if err != nil {
		return err
	}
	return response.Success(c, "Ownership record fetched successfully", record, nil)
}

// GET /api/v1/ownership/get-owner-records
func (h *Handlers) GetOwnerRecords(c *fiber.Ctx) error {
	records, err := h.Service.ListByOwner(c.Context(), middleware.GetIdentity(c).Address)
	if err != nil {
		return err
	}
	return response.Success(c, "Ownership records fetched successfully", records, fiber.Map{"total": len(records)})
}
