package pools

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	ownsvc "harbor-backend/internal/application/ownership"
	poolsvc "harbor-backend/internal/application/pools"
	"harbor-backend/internal/config"
	"harbor-backend/internal/domain"
	"harbor-backend/internal/identity"
	"harbor-backend/internal/ledger"
	"harbor-backend/internal/middleware"
	"harbor-backend/internal/pkg/constants"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const (
	operatorWallet = "op-wallet"
	investorWallet = "inv-wallet"
)

func setupPoolsApp(t *testing.T) (*fiber.App, *ledger.Memory) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&domain.Pool{}, &domain.PoolAsset{}, &domain.Investment{}, &domain.Dividend{},
		&domain.OwnershipRecord{},
	))

	mem := ledger.NewMemory()
	ids := identity.New(&config.Config{OperatorWallets: []string{operatorWallet}})
	tracker := &ownsvc.Service{DB: db, Ledger: mem}
	svc := poolsvc.NewService(db, mem, ids, tracker, "treasury-wallet")
	h := &Handlers{Service: svc}

	app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler})
	g := app.Group("/api/v1/pools", middleware.WalletAuth(ids))
	g.Post("/create-pool", middleware.AuthorizeCapability(constants.CreatePool), h.CreatePool)
	g.Post("/admit-asset", middleware.AuthorizeCapability(constants.CreatePool), h.AdmitAsset)
	g.Get("/get-active-pools", h.GetActivePools)
	g.Get("/get-pool/:id", h.GetPool)
	g.Post("/invest", middleware.AuthorizeCapability(constants.Invest), h.Invest)
	g.Post("/distribute-dividend", middleware.AuthorizeCapability(constants.DistributeDividend), h.DistributeDividend)
	g.Post("/close-pool/:id", middleware.AuthorizeCapability(constants.ClosePool), h.ClosePool)
	g.Get("/projected-roi/:id", h.GetProjectedROI)
	return app, mem
}

func jsonRequest(t *testing.T, method, target, wallet string, body interface{}) *http.Request {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	if wallet != "" {
		req.Header.Set("X-Wallet-Address", wallet)
	}
	return req
}

func seedPoolAsset(mem *ledger.Memory, id uint64, value float64) {
	mem.SeedAsset(ledger.AssetState{
		AssetID:              id,
		Name:                 "Vessel",
		Status:               ledger.AssetStatusActive,
		Value:                value,
		MaxInvestablePercent: 80,
		OriginalOwner:        "owner-1",
		CurrentOwner:         "owner-1",
	})
}

func createPoolViaAPI(t *testing.T, app *fiber.App, mem *ledger.Memory) string {
	t.Helper()
	seedPoolAsset(mem, 1, 100000)
	req := jsonRequest(t, "POST", "/api/v1/pools/create-pool", operatorWallet, fiber.Map{
		"name":                 "Coastal Freight Pool",
		"total_value":          50000,
		"token_price":          10,
		"minimum_investment":   100,
		"expected_annual_rate": 8,
		"tranche_count":        1,
		"assets": []fiber.Map{
			{"ledger_asset_id": 1, "value": 50000},
		},
	})
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var body struct {
		Data struct {
			PoolID string `json:"pool_id"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.NotEmpty(t, body.Data.PoolID)
	return body.Data.PoolID
}

// TestCreatePool_Success returns 201 with the pool in the envelope.
func TestCreatePool_Success(t *testing.T) {
	app, mem := setupPoolsApp(t)
	poolID := createPoolViaAPI(t, app, mem)
	_, err := uuid.Parse(poolID)
	assert.NoError(t, err)
}

// TestCreatePool_MissingWalletHeader returns 401 before any handler runs.
func TestCreatePool_MissingWalletHeader(t *testing.T) {
	app, _ := setupPoolsApp(t)
	req := jsonRequest(t, "POST", "/api/v1/pools/create-pool", "", fiber.Map{"name": "X"})
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

// TestCreatePool_InvestorForbidden returns 403 from the capability gate.
func TestCreatePool_InvestorForbidden(t *testing.T) {
	app, _ := setupPoolsApp(t)
	req := jsonRequest(t, "POST", "/api/v1/pools/create-pool", investorWallet, fiber.Map{"name": "X"})
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

// TestCreatePool_ValidationError maps a service validation failure to 400.
func TestCreatePool_ValidationError(t *testing.T) {
	app, mem := setupPoolsApp(t)
	seedPoolAsset(mem, 1, 100000)
	req := jsonRequest(t, "POST", "/api/v1/pools/create-pool", operatorWallet, fiber.Map{
		"name":                 "Bad Pool",
		"total_value":          50000,
		"token_price":          10,
		"minimum_investment":   100,
		"expected_annual_rate": 8,
		"assets": []fiber.Map{
			{"ledger_asset_id": 1, "value": 10000}, // does not sum to total_value
		},
	})
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

// TestAdmitAsset_GrowsPool admits a further asset into an existing pool.
func TestAdmitAsset_GrowsPool(t *testing.T) {
	app, mem := setupPoolsApp(t)
	poolID := createPoolViaAPI(t, app, mem)
	seedPoolAsset(mem, 2, 40000)

	req := jsonRequest(t, "POST", "/api/v1/pools/admit-asset", operatorWallet, fiber.Map{
		"pool_id":         poolID,
		"ledger_asset_id": 2,
		"value":           10000,
	})
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var body struct {
		Data struct {
			LedgerAssetID uint64  `json:"ledger_asset_id"`
			Percentage    float64 `json:"percentage"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, uint64(2), body.Data.LedgerAssetID)
	assert.InDelta(t, 16.67, body.Data.Percentage, 0.01)
}

// TestAdmitAsset_InvestorForbidden keeps admission behind the admin capability.
func TestAdmitAsset_InvestorForbidden(t *testing.T) {
	app, mem := setupPoolsApp(t)
	poolID := createPoolViaAPI(t, app, mem)
	seedPoolAsset(mem, 2, 40000)

	req := jsonRequest(t, "POST", "/api/v1/pools/admit-asset", investorWallet, fiber.Map{
		"pool_id":         poolID,
		"ledger_asset_id": 2,
		"value":           10000,
	})
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

// TestGetPool_NotFound maps the not-found error to 404 with the error envelope.
func TestGetPool_NotFound(t *testing.T) {
	app, _ := setupPoolsApp(t)
	req := jsonRequest(t, "GET", "/api/v1/pools/get-pool/"+uuid.NewString(), investorWallet, nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	var body struct {
		Status string `json:"status"`
		Error  struct {
			Message    string `json:"message"`
			StatusCode int    `json:"statusCode"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "error", body.Status)
	assert.Equal(t, fiber.StatusNotFound, body.Error.StatusCode)
}

// TestGetPool_InvalidID returns 400 for a malformed pool id.
func TestGetPool_InvalidID(t *testing.T) {
	app, _ := setupPoolsApp(t)
	req := jsonRequest(t, "GET", "/api/v1/pools/get-pool/not-a-uuid", investorWallet, nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

// TestInvest_Success returns 201 and the recorded position.
func TestInvest_Success(t *testing.T) {
	app, mem := setupPoolsApp(t)
	poolID := createPoolViaAPI(t, app, mem)

	req := jsonRequest(t, "POST", "/api/v1/pools/invest", investorWallet, fiber.Map{
		"pool_id": poolID,
		"amount":  1000.0,
	})
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var body struct {
		Data struct {
			Tokens int64 `json:"tokens"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, int64(100), body.Data.Tokens)
}

// TestInvest_BelowMinimum returns 400.
func TestInvest_BelowMinimum(t *testing.T) {
	app, mem := setupPoolsApp(t)
	poolID := createPoolViaAPI(t, app, mem)

	req := jsonRequest(t, "POST", "/api/v1/pools/invest", investorWallet, fiber.Map{
		"pool_id": poolID,
		"amount":  50.0,
	})
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

// TestDistributeDividend_SettlementPending reports the degraded message when
// the escrow transfer fails after bookkeeping committed.
func TestDistributeDividend_SettlementPending(t *testing.T) {
	app, mem := setupPoolsApp(t)
	poolID := createPoolViaAPI(t, app, mem)

	investReq := jsonRequest(t, "POST", "/api/v1/pools/invest", investorWallet, fiber.Map{
		"pool_id": poolID,
		"amount":  1000.0,
	})
	resp, err := app.Test(investReq)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	mem.FailTransfer = assert.AnError
	req := jsonRequest(t, "POST", "/api/v1/pools/distribute-dividend", operatorWallet, fiber.Map{
		"pool_id":     poolID,
		"amount":      500.0,
		"description": "Q2 charter income",
	})
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		Message string `json:"message"`
		Data    struct {
			Settled bool `json:"settled"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "Dividend recorded, settlement pending", body.Message)
	assert.False(t, body.Data.Settled)
}

// TestClosePool_ThenInvestRejected closes the pool over the API and verifies
// further investment returns 400.
func TestClosePool_ThenInvestRejected(t *testing.T) {
	app, mem := setupPoolsApp(t)
	poolID := createPoolViaAPI(t, app, mem)

	closeReq := jsonRequest(t, "POST", "/api/v1/pools/close-pool/"+poolID, operatorWallet, nil)
	resp, err := app.Test(closeReq)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	investReq := jsonRequest(t, "POST", "/api/v1/pools/invest", investorWallet, fiber.Map{
		"pool_id": poolID,
		"amount":  1000.0,
	})
	resp, err = app.Test(investReq)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

// TestGetActivePools_OmitsDropped serves only ledger-verified pools.
func TestGetActivePools_OmitsDropped(t *testing.T) {
	app, mem := setupPoolsApp(t)
	createPoolViaAPI(t, app, mem)
	mem.DropPool(1)

	req := jsonRequest(t, "GET", "/api/v1/pools/get-active-pools", investorWallet, nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		Data     []interface{} `json:"data"`
		Metadata struct {
			Total int `json:"total"`
		} `json:"metadata"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Empty(t, body.Data)
	assert.Zero(t, body.Metadata.Total)
}

// TestGetProjectedROI_NoPosition returns 404 for a wallet with no stake.
func TestGetProjectedROI_NoPosition(t *testing.T) {
	app, mem := setupPoolsApp(t)
	poolID := createPoolViaAPI(t, app, mem)

	req := jsonRequest(t, "GET", "/api/v1/pools/projected-roi/"+poolID, investorWallet, nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}
