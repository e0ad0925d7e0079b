package pools

import (
	"time"

	poolsvc "harbor-backend/internal/application/pools"
	"harbor-backend/internal/middleware"
	"harbor-backend/internal/pkg/apperr"
	"harbor-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type Handlers struct {
	Service *poolsvc.Service
}

type createPoolRequest struct {
	Name               string     `json:"name"`
	TotalValue         float64    `json:"total_value"`
	TokenPrice         float64    `json:"token_price"`
	MinimumInvestment  float64    `json:"minimum_investment"`
	ExpectedAnnualRate float64    `json:"expected_annual_rate"`
	MaturityDate       *time.Time `json:"maturity_date"`
	TrancheCount       int        `json:"tranche_count"`
	Assets             []struct {
		LedgerAssetID uint64  `json:"ledger_asset_id"`
		Value         float64 `json:"value"`
	} `json:"assets"`
}

// POST /api/v1/pools/create-pool
func (h *Handlers) CreatePool(c *fiber.Ctx) error {
	var body createPoolRequest
	if err := c.BodyParser(&body); err != nil {
		return apperr.Validation("Invalid request body")
	}
	in := poolsvc.CreatePoolInput{
		AdminWallet:        middleware.GetIdentity(c).Address,
		Name:               body.Name,
		TotalValue:         body.TotalValue,
		TokenPrice:         body.TokenPrice,
		MinimumInvestment:  body.MinimumInvestment,
		ExpectedAnnualRate: body.ExpectedAnnualRate,
		MaturityDate:       body.MaturityDate,
		TrancheCount:       body.TrancheCount,
	}
	for _, a := range body.Assets {
		in.Assets = append(in.Assets, poolsvc.AssetInput{LedgerAssetID: a.LedgerAssetID, Value: a.Value})
	}
	pool, err := h.Service.CreatePool(c.Context(), in)
	if err != nil {
		return err
	}
	return response.SuccessCreated(c, "Pool created successfully", pool, nil)
}

type admitAssetRequest struct {
	PoolID        string  `json:"pool_id"`
	LedgerAssetID uint64  `json:"ledger_asset_id"`
	Value         float64 `json:"value"`
}

// POST /api/v1/pools/admit-asset
func (h *Handlers) AdmitAsset(c *fiber.Ctx) error {
	var body admitAssetRequest
	if err := c.BodyParser(&body); err != nil {
		return apperr.Validation("Invalid request body")
	}
	poolID, err := uuid.Parse(body.PoolID)
	if err != nil {
		return apperr.Validation("Invalid pool id")
	}
	asset, err := h.Service.AdmitAsset(c.Context(), poolID, middleware.GetIdentity(c).Address,
		poolsvc.AssetInput{LedgerAssetID: body.LedgerAssetID, Value: body.Value})
	if err != nil {
		return err
	}
	return response.SuccessCreated(c, "Asset admitted successfully", asset, nil)
}

// GET /api/v1/pools/get-all-pools
func (h *Handlers) GetAllPools(c *fiber.Ctx) error {
	pools, err := h.Service.ListPools(c.Context())
	if err != nil {
		return err
	}
	return response.Success(c, "Pools fetched successfully", pools, fiber.Map{"total": len(pools)})
}

// GET /api/v1/pools/get-active-pools
func (h *Handlers) GetActivePools(c *fiber.Ctx) error {
	pools, err := h.Service.ListActivePools(c.Context())
	if err != nil {
		return err
	}
	return response.Success(c, "Active pools fetched successfully", pools, fiber.Map{"total": len(pools)})
}

// GET /api/v1/pools/get-admin-pools
func (h *Handlers) GetAdminPools(c *fiber.Ctx) error {
	pools, err := h.Service.ListPoolsByAdmin(c.Context(), middleware.GetIdentity(c).Address)
	if err != nil {
		return err
	}
	return response.Success(c, "Pools fetched successfully", pools, fiber.Map{"total": len(pools)})
}

// GET /api/v1/pools/get-pool/:id
func (h *Handlers) GetPool(c *fiber.Ctx) error {
	poolID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return apperr.Validation("Invalid pool id")
	}
	pool, err := h.Service.GetPool(c.Context(), poolID)
	if err != nil {
		return err
	}
	return response.Success(c, "Pool fetched successfully", pool, nil)
}

type investRequest struct {
	PoolID string  `json:"pool_id"`
	Amount float64 `json:"amount"`
}

// POST /api/v1/pools/invest
func (h *Handlers) Invest(c *fiber.Ctx) error {
	var body investRequest
	if err := c.BodyParser(&body); err != nil {
		return apperr.Validation("Invalid request body")
	}
	poolID, err := uuid.Parse(body.PoolID)
	if err != nil {
		return apperr.Validation("Invalid pool id")
	}
	investment, err := h.Service.Invest(c.Context(), poolID, middleware.GetIdentity(c).Address, body.Amount)
	if err != nil {
		return err
	}
	return response.SuccessCreated(c, "Investment recorded successfully", investment, nil)
}

type distributeDividendRequest struct {
	PoolID      string  `json:"pool_id"`
	Amount      float64 `json:"amount"`
	Description string  `json:"description"`
}

// POST /api/v1/pools/distribute-dividend
func (h *Handlers) DistributeDividend(c *fiber.Ctx) error {
	var body distributeDividendRequest
	if err := c.BodyParser(&body); err != nil {
		return apperr.Validation("Invalid request body")
	}
	poolID, err := uuid.Parse(body.PoolID)
	if err != nil {
		return apperr.Validation("Invalid pool id")
	}
	result, err := h.Service.DistributeDividend(c.Context(), poolID, middleware.GetIdentity(c).Address, body.Amount, body.Description)
	if err != nil {
		return err
	}
	message := "Dividend distributed successfully"
	if !result.Settled {
		message = "Dividend recorded, settlement pending"
	}
	return response.Success(c, message, result, nil)
}

// POST /api/v1/pools/close-pool/:id
func (h *Handlers) ClosePool(c *fiber.Ctx) error {
	poolID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return apperr.Validation("Invalid pool id")
	}
	pool, err := h.Service.ClosePool(c.Context(), poolID, middleware.GetIdentity(c).Address)
	if err != nil {
		return err
	}
	return response.Success(c, "Pool closed successfully", pool, nil)
}

// GET /api/v1/pools/projected-roi/:id
func (h *Handlers) GetProjectedROI(c *fiber.Ctx) error {
	poolID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return apperr.Validation("Invalid pool id")
	}
	projection, err := h.Service.GetProjectedROI(c.Context(), poolID, middleware.GetIdentity(c).Address)
	if err != nil {
		return err
	}
	return response.Success(c, "Projection computed successfully", projection, nil)
}
