package router

import (
	"net/http"

	ownsvc "harbor-backend/internal/application/ownership"
	poolsvc "harbor-backend/internal/application/pools"
	revsvc "harbor-backend/internal/application/revenue"
	"harbor-backend/internal/config"
	"harbor-backend/internal/identity"
	"harbor-backend/internal/infrastructure/database"
	healthhandler "harbor-backend/internal/interfaces/handlers/health"
	ownhandler "harbor-backend/internal/interfaces/handlers/ownership"
	poolhandler "harbor-backend/internal/interfaces/handlers/pools"
	revhandler "harbor-backend/internal/interfaces/handlers/revenue"
	"harbor-backend/internal/ledger"
	"harbor-backend/internal/middleware"
	"harbor-backend/internal/pkg/constants"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type gormDBPinger struct {
	db *gorm.DB
}

func (g *gormDBPinger) Ping() error {
	if g == nil || g.db == nil {
		return nil
	}
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// CreateApp wires the Fiber app: middleware chain, health surface, and the
// pools/revenue/ownership route groups behind wallet auth. Health routes are
// registered before the record store opens so the dashboard stays reachable
// when the database is down or unconfigured.
func CreateApp(cfg *config.Config) (*fiber.App, *gorm.DB, *redis.Client, error) {
	app := fiber.New(fiber.Config{
		DisableStartupMessage:   true,
		ErrorHandler:            middleware.ErrorHandler,
		EnableTrustedProxyCheck: true,
	})

	app.Use(middleware.CORS(middleware.CORSConfig{
		AllowedSuffix: cfg.FrontendURLEndsWith,
		DevPassword:   cfg.DevPassword,
	}))

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, nil, err
		}
		rdb = redis.NewClient(opts)
		app.Use(middleware.HealthMarker(rdb))
	}
	app.Use(middleware.Tracing())
	app.Use(middleware.RouteLogger())

	hh := &healthhandler.Handlers{
		Rdb:          rdb,
		DB:           nil,
		LedgerRPCURL: cfg.LedgerRPCURL,
		AdminKeyHash: cfg.HealthAdminKeyHash,
	}
	app.Get("/", hh.Dashboard)
	app.Get("/reset", hh.Reset)
	app.Get("/health/json", hh.JSON)
	app.Get("/health/errors", hh.Errors)

	var db *gorm.DB
	if cfg.DatabaseURL != "" {
		var errDB error
		db, errDB = database.Open(cfg.DatabaseURL)
		if errDB != nil {
			return nil, nil, nil, errDB
		}
		hh.DB = &gormDBPinger{db: db}
	}

	ids := identity.New(cfg)

	var gw ledger.Gateway
	if cfg.LedgerRPCURL != "" {
		client, err := ledger.NewClient(cfg.LedgerRPCURL, cfg.PoolProgramID, cfg.FeePayerKey)
		if err != nil {
			return nil, nil, nil, err
		}
		gw = client
	} else {
		gw = ledger.NewMemory()
	}

	if db != nil {
		os := &ownsvc.Service{DB: db, Ledger: gw}
		ps := poolsvc.NewService(db, gw, ids, os, cfg.TreasuryWallet)
		rs := revsvc.NewService(db, gw, ids, ps, os, cfg.TreasuryWallet, revsvc.Thresholds{
			OwnerMin:    cfg.OwnerMinFraudScore,
			OperatorMin: cfg.OperatorMinFraudScore,
		})

		ph := &poolhandler.Handlers{Service: ps}
		pg := app.Group("/api/v1/pools", middleware.WalletAuth(ids))
		pg.Post("/create-pool", middleware.AuthorizeCapability(constants.CreatePool), ph.CreatePool)
		pg.Post("/admit-asset", middleware.AuthorizeCapability(constants.CreatePool), ph.AdmitAsset)
		pg.Get("/get-all-pools", middleware.AuthorizeCapability(constants.ViewData), ph.GetAllPools)
		pg.Get("/get-active-pools", ph.GetActivePools)
		pg.Get("/get-admin-pools", middleware.AuthorizeCapability(constants.CreatePool), ph.GetAdminPools)
		pg.Get("/get-pool/:id", ph.GetPool)
		pg.Post("/invest", middleware.AuthorizeCapability(constants.Invest), ph.Invest)
		pg.Post("/distribute-dividend", middleware.AuthorizeCapability(constants.DistributeDividend), ph.DistributeDividend)
		pg.Post("/close-pool/:id", middleware.AuthorizeCapability(constants.ClosePool), ph.ClosePool)
		pg.Get("/projected-roi/:id", ph.GetProjectedROI)

		rh := &revhandler.Handlers{Service: rs}
		rg := app.Group("/api/v1/revenue", middleware.WalletAuth(ids))
		rg.Post("/submit-report", middleware.AuthorizeCapability(constants.SubmitReport), rh.SubmitReport)
		rg.Post("/fraud-check", middleware.AuthorizeCapability(constants.SubmitReport), rh.FraudCheck)
		rg.Post("/verify-report", middleware.AuthorizeCapability(constants.VerifyReport), rh.VerifyReport)
		rg.Post("/distribute/:id", middleware.AuthorizeCapability(constants.DistributeRevenue), rh.DistributeRevenue)
		rg.Get("/get-report/:id", middleware.AuthorizeCapability(constants.ViewData), rh.GetReport)
		rg.Get("/get-asset-reports/:assetId", middleware.AuthorizeCapability(constants.ViewData), rh.GetAssetReports)

		oh := &ownhandler.Handlers{Service: os}
		og := app.Group("/api/v1/ownership", middleware.WalletAuth(ids))
		og.Post("/register-asset", middleware.AuthorizeCapability(constants.RegisterAsset), oh.RegisterAsset)
		og.Get("/get-asset-record/:assetId", oh.GetAssetRecord)
		og.Get("/get-owner-records", oh.GetOwnerRecords)
	}

	return app, db, rdb, nil
}

func Handler(app *fiber.App) http.Handler {
	return adaptor.FiberApp(app)
}
