package pools

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"harbor-backend/internal/domain"
	"harbor-backend/internal/identity"
	"harbor-backend/internal/ledger"
	"harbor-backend/internal/pkg/apperr"
	"harbor-backend/internal/pkg/constants"
	"harbor-backend/internal/yield"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// valueTolerance is the accepted rounding slack when comparing declared pool
// value to the sum of admitted asset values, and elsewhere money is compared.
const valueTolerance = 0.01

// Tracker is the optional ownership-tracking capability. A nil Tracker means
// ownership records are simply not maintained; admission still proceeds.
type Tracker interface {
	RecordTokenization(ctx context.Context, assetID uint64, percent, capital float64, poolID uuid.UUID) error
}

// Service is the pool reconciliation engine. The ledger is the source of
// truth for pool existence; the local store is a derived record kept
// consistent by verify-then-serve reads.
type Service struct {
	DB        *gorm.DB
	Ledger    ledger.Gateway
	Identity  *identity.Service
	Repo      Repository
	Ownership Tracker // optional
	Treasury  string  // platform treasury wallet paying dividend settlements
}

// NewService wires the engine with a ledger-verified repository.
func NewService(db *gorm.DB, gw ledger.Gateway, ids *identity.Service, tracker Tracker, treasury string) *Service {
	return &Service{
		DB:        db,
		Ledger:    gw,
		Identity:  ids,
		Repo:      NewVerifiedRepository(NewRepository(db), gw),
		Ownership: tracker,
		Treasury:  treasury,
	}
}

// AssetInput is one candidate asset for pool admission. Value is the portion
// of the asset's value admitted into the pool.
type AssetInput struct {
	LedgerAssetID uint64  `json:"ledger_asset_id"`
	Value         float64 `json:"value"`
}

type CreatePoolInput struct {
	AdminWallet        string       `json:"admin_wallet"`
	Name               string       `json:"name"`
	TotalValue         float64      `json:"total_value"`
	TokenPrice         float64      `json:"token_price"`
	MinimumInvestment  float64      `json:"minimum_investment"`
	ExpectedAnnualRate float64      `json:"expected_annual_rate"`
	MaturityDate       *time.Time   `json:"maturity_date"`
	TrancheCount       int          `json:"tranche_count"`
	Assets             []AssetInput `json:"assets"`
}

// CreatePool validates the candidate assets against the ledger, creates the
// pool on-ledger, admits assets, and persists the local record only once ledger
// creation and at least one admission have succeeded. A ledger pool with zero
// admitted assets is an error state requiring manual remediation, never a
// valid active pool.
func (s *Service) CreatePool(ctx context.Context, in CreatePoolInput) (*domain.Pool, error) {
	caller := s.Identity.Resolve(in.AdminWallet)
	if !caller.Can(constants.CreatePool) {
		return nil, apperr.Authorization("Wallet is not authorized to create pools")
	}
	if in.Name == "" {
		return nil, apperr.Validation("Pool name is required")
	}
	if in.TotalValue <= 0 {
		return nil, apperr.Validation("Total value must be positive")
	}
	if in.TokenPrice <= 0 {
		return nil, apperr.Validation("Token price must be positive")
	}
	if in.MinimumInvestment < 0 {
		return nil, apperr.Validation("Minimum investment cannot be negative")
	}
	if in.ExpectedAnnualRate < 0 {
		return nil, apperr.Validation("Expected annual rate cannot be negative")
	}
	if len(in.Assets) == 0 {
		return nil, apperr.Validation("At least one asset is required")
	}
	if in.TrancheCount <= 0 {
		in.TrancheCount = 1
	}

	tokenSupply := int64(math.Floor(in.TotalValue / in.TokenPrice))
	if tokenSupply < 1 {
		return nil, apperr.Validation("Token price exceeds total value")
	}

	// Validate every candidate against ledger truth before any write.
	type candidate struct {
		input AssetInput
		state *ledger.AssetState
	}
	candidates := make([]candidate, 0, len(in.Assets))
	var sum float64
	for _, a := range in.Assets {
		state, err := s.validateCandidate(ctx, a)
		if err != nil {
			return nil, err
		}
		sum += a.Value
		candidates = append(candidates, candidate{input: a, state: state})
	}
	if math.Abs(sum-in.TotalValue) > valueTolerance {
		return nil, apperr.Validation(fmt.Sprintf(
			"Asset values (%.2f) must equal declared pool total value (%.2f)", sum, in.TotalValue))
	}

	// Ledger first. A failed creation leaves no local state at all.
	res, err := s.Ledger.CreatePool(ctx, ledger.CreatePoolParams{
		Name:         in.Name,
		AdminWallet:  in.AdminWallet,
		TotalValue:   in.TotalValue,
		TokenSupply:  tokenSupply,
		TrancheCount: in.TrancheCount,
	})
	if err != nil {
		return nil, apperr.Ledger("Ledger pool creation failed", err)
	}

	type admitted struct {
		candidate
		tx string
	}
	admittedAssets := make([]admitted, 0, len(candidates))
	for _, c := range candidates {
		tx, err := s.Ledger.AdmitAsset(ctx, res.PoolID, c.input.LedgerAssetID)
		if err != nil {
			log.Warn().Err(err).
				Uint64("ledger_pool_id", res.PoolID).
				Uint64("ledger_asset_id", c.input.LedgerAssetID).
				Msg("Asset admission failed")
			continue
		}
		admittedAssets = append(admittedAssets, admitted{candidate: c, tx: tx})
	}
	if len(admittedAssets) == 0 {
		return nil, apperr.Ledger(fmt.Sprintf(
			"Pool %d was created on ledger but no assets could be admitted; manual remediation required", res.PoolID), nil)
	}

	trancheJSON, _ := json.Marshal(res.TrancheIDs)
	pool := domain.Pool{
		LedgerPoolID:       res.PoolID,
		TrancheIDs:         datatypes.JSON(trancheJSON),
		Name:               in.Name,
		Status:             domain.PoolStatusActive,
		AdminWallet:        in.AdminWallet,
		TotalValue:         in.TotalValue,
		TokenSupply:        tokenSupply,
		TokenPrice:         in.TokenPrice,
		MinimumInvestment:  in.MinimumInvestment,
		ExpectedAnnualRate: in.ExpectedAnnualRate,
		MaturityDate:       in.MaturityDate,
		CreateTx:           res.TxHash,
		EscrowAddress:      res.EscrowAddress,
	}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&pool).Error; err != nil {
			return err
		}
		for _, a := range admittedAssets {
			asset := domain.PoolAsset{
				PoolID:        pool.PoolID,
				LedgerAssetID: a.input.LedgerAssetID,
				Name:          a.state.Name,
				Value:         a.input.Value,
				Percentage:    round2(a.input.Value / in.TotalValue * 100),
				AdmitTx:       a.tx,
			}
			if err := tx.Create(&asset).Error; err != nil {
				return err
			}
			pool.Assets = append(pool.Assets, asset)
		}
		return nil
	})
	if err != nil {
		return nil, apperr.Internal("Failed to persist pool record", err)
	}

	if s.Ownership != nil {
		for _, a := range admittedAssets {
			percent := round2(a.input.Value / a.state.Value * 100)
			if err := s.Ownership.RecordTokenization(ctx, a.input.LedgerAssetID, percent, a.input.Value, pool.PoolID); err != nil {
				log.Warn().Err(err).
					Uint64("ledger_asset_id", a.input.LedgerAssetID).
					Msg("Ownership tokenization update failed")
			}
		}
	}

	return &pool, nil
}

// validateCandidate checks one admission candidate against ledger truth: the
// asset must exist, be activated and owner-managed, not belong to another
// pool, and the admitted value must stay within its maximum investable
// percentage.
func (s *Service) validateCandidate(ctx context.Context, in AssetInput) (*ledger.AssetState, error) {
	state, err := s.Ledger.ReadAsset(ctx, in.LedgerAssetID)
	if err != nil {
		return nil, apperr.Ledger("Failed to read asset from ledger", err)
	}
	if state == nil {
		return nil, apperr.Validation(fmt.Sprintf("Asset %d does not exist on ledger", in.LedgerAssetID))
	}
	if state.Status != ledger.AssetStatusActive {
		return nil, apperr.Validation(fmt.Sprintf("Asset %d is not activated and owner-managed (status: %s)", in.LedgerAssetID, state.Status))
	}
	if state.AdmittedPoolID != 0 {
		return nil, apperr.Validation(fmt.Sprintf("Asset %d is already admitted to pool %d", in.LedgerAssetID, state.AdmittedPoolID))
	}
	if in.Value <= 0 {
		return nil, apperr.Validation(fmt.Sprintf("Asset %d value must be positive", in.LedgerAssetID))
	}
	if state.Value <= 0 {
		return nil, apperr.Validation(fmt.Sprintf("Asset %d has no value on ledger", in.LedgerAssetID))
	}
	tokenized := in.Value / state.Value * 100
	if tokenized > state.MaxInvestablePercent+1e-9 {
		return nil, apperr.Validation(fmt.Sprintf(
			"Admitting asset %d at %.2f%% exceeds its maximum investable percentage (%.2f%%)",
			in.LedgerAssetID, tokenized, state.MaxInvestablePercent))
	}
	return state, nil
}

// AdmitAsset admits one additional asset into an existing active pool. The
// candidate passes the same ledger validation as pool creation, and the
// on-ledger admission must succeed before any local write. The pool's total
// value grows by the admitted value and every asset's percentage is
// recomputed against the new total; token supply and price stay as issued.
func (s *Service) AdmitAsset(ctx context.Context, poolID uuid.UUID, callerWallet string, in AssetInput) (*domain.PoolAsset, error) {
	caller := s.Identity.Resolve(callerWallet)
	if !caller.Can(constants.CreatePool) {
		return nil, apperr.Authorization("Wallet is not authorized to admit assets into pools")
	}

	verified, err := s.Repo.FindByID(ctx, poolID)
	if err != nil {
		return nil, err
	}
	if verified.Status != domain.PoolStatusActive {
		return nil, apperr.Validation("Pool is not open for asset admission")
	}

	state, err := s.validateCandidate(ctx, in)
	if err != nil {
		return nil, err
	}

	admitTx, err := s.Ledger.AdmitAsset(ctx, verified.LedgerPoolID, in.LedgerAssetID)
	if err != nil {
		return nil, apperr.Ledger("Ledger asset admission failed", err)
	}

	var asset domain.PoolAsset
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var pool domain.Pool
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("pool_id = ?", verified.PoolID).First(&pool).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return apperr.NotFound("Pool not found")
			}
			return apperr.Internal("Failed to load pool", err)
		}
		if pool.Status != domain.PoolStatusActive {
			return apperr.Validation("Pool is not open for asset admission")
		}

		newTotal := round2(pool.TotalValue + in.Value)
		asset = domain.PoolAsset{
			PoolID:        pool.PoolID,
			LedgerAssetID: in.LedgerAssetID,
			Name:          state.Name,
			Value:         in.Value,
			Percentage:    round2(in.Value / newTotal * 100),
			AdmitTx:       admitTx,
		}
		if err := tx.Create(&asset).Error; err != nil {
			return apperr.Internal("Failed to persist pool asset", err)
		}

		var assets []domain.PoolAsset
		if err := tx.Where("pool_id = ?", pool.PoolID).Find(&assets).Error; err != nil {
			return apperr.Internal("Failed to load pool assets", err)
		}
		for i := range assets {
			assets[i].Percentage = round2(assets[i].Value / newTotal * 100)
			if err := tx.Save(&assets[i]).Error; err != nil {
				return apperr.Internal("Failed to rebalance asset percentages", err)
			}
		}

		pool.TotalValue = newTotal
		if err := tx.Save(&pool).Error; err != nil {
			return apperr.Internal("Failed to update pool totals", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.Ownership != nil {
		percent := round2(in.Value / state.Value * 100)
		if err := s.Ownership.RecordTokenization(ctx, in.LedgerAssetID, percent, in.Value, verified.PoolID); err != nil {
			log.Warn().Err(err).
				Uint64("ledger_asset_id", in.LedgerAssetID).
				Msg("Ownership tokenization update failed")
		}
	}

	return &asset, nil
}

// GetPool returns a single ledger-verified pool.
func (s *Service) GetPool(ctx context.Context, poolID uuid.UUID) (*domain.Pool, error) {
	return s.Repo.FindByID(ctx, poolID)
}

// ListPools returns all ledger-verified pools.
func (s *Service) ListPools(ctx context.Context) ([]domain.Pool, error) {
	return s.Repo.List(ctx, Filter{})
}

// ListActivePools returns ledger-verified active pools.
func (s *Service) ListActivePools(ctx context.Context) ([]domain.Pool, error) {
	return s.Repo.List(ctx, Filter{Status: domain.PoolStatusActive})
}

// ListPoolsByAdmin returns ledger-verified pools managed by the wallet.
func (s *Service) ListPoolsByAdmin(ctx context.Context, adminWallet string) ([]domain.Pool, error) {
	if adminWallet == "" {
		return nil, apperr.Validation("Admin wallet is required")
	}
	return s.Repo.List(ctx, Filter{AdminWallet: adminWallet})
}

// Invest records an investment into an active pool. Token count is
// floor(amount / tokenPrice); repeat investors accumulate principal and
// tokens in their existing position. Each admitted asset's cumulative
// earnings are credited proportionally to its share of the pool.
func (s *Service) Invest(ctx context.Context, poolID uuid.UUID, investorWallet string, amount float64) (*domain.Investment, error) {
	if investorWallet == "" {
		return nil, apperr.Validation("Investor wallet is required")
	}
	if amount <= 0 {
		return nil, apperr.Validation("Investment amount must be positive")
	}

	// Verified read first: an orphaned pool must never accept funds.
	verified, err := s.Repo.FindByID(ctx, poolID)
	if err != nil {
		return nil, err
	}

	var investment domain.Investment
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var pool domain.Pool
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("pool_id = ?", verified.PoolID).First(&pool).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return apperr.NotFound("Pool not found")
			}
			return apperr.Internal("Failed to load pool", err)
		}
		if pool.Status != domain.PoolStatusActive {
			return apperr.Validation("Pool is not open for investment")
		}
		if amount < pool.MinimumInvestment {
			return apperr.Validation(fmt.Sprintf(
				"Investment amount is below the pool minimum of %.2f", pool.MinimumInvestment))
		}
		tokens := int64(math.Floor(amount / pool.TokenPrice))
		if tokens < 1 {
			return apperr.Validation("Investment amount is too small to purchase a token")
		}

		err := tx.Where("pool_id = ? AND investor_wallet = ?", pool.PoolID, investorWallet).
			First(&investment).Error
		switch {
		case err == gorm.ErrRecordNotFound:
			investment = domain.Investment{
				PoolID:          pool.PoolID,
				InvestorWallet:  investorWallet,
				Amount:          round2(amount),
				Tokens:          tokens,
				PriceAtPurchase: pool.TokenPrice,
				Active:          true,
				FirstInvestedAt: time.Now(),
			}
			if err := tx.Create(&investment).Error; err != nil {
				return apperr.Internal("Failed to create investment", err)
			}
			pool.InvestorCount++
		case err != nil:
			return apperr.Internal("Failed to load investment", err)
		default:
			investment.Amount = round2(investment.Amount + amount)
			investment.Tokens += tokens
			investment.Active = true
			if err := tx.Save(&investment).Error; err != nil {
				return apperr.Internal("Failed to update investment", err)
			}
		}

		pool.TotalInvested = round2(pool.TotalInvested + amount)
		if err := tx.Save(&pool).Error; err != nil {
			return apperr.Internal("Failed to update pool totals", err)
		}

		var assets []domain.PoolAsset
		if err := tx.Where("pool_id = ?", pool.PoolID).Find(&assets).Error; err != nil {
			return apperr.Internal("Failed to load pool assets", err)
		}
		for i := range assets {
			assets[i].EarningsCredited = round2(assets[i].EarningsCredited + amount*assets[i].Percentage/100)
			if err := tx.Save(&assets[i]).Error; err != nil {
				return apperr.Internal("Failed to credit asset earnings", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &investment, nil
}

// DistributeResult reports a dividend distribution. Settled false means the
// local bookkeeping committed but the on-ledger settlement transfer failed:
// entitlements are retained and the payout obligation stands regardless.
type DistributeResult struct {
	Dividend        *domain.Dividend `json:"dividend"`
	PerToken        float64          `json:"per_token"`
	Settled         bool             `json:"settled"`
	SettlementError string           `json:"settlement_error,omitempty"`
}

// ValidateDividend checks that a pool can currently accept a dividend
// distribution without moving any funds: the pool must be ledger-verified,
// active, and have at least one active token holder. Callers that chain a
// dividend behind another transfer use this to fail before anything moves.
func (s *Service) ValidateDividend(ctx context.Context, poolID uuid.UUID) error {
	pool, err := s.Repo.FindByID(ctx, poolID)
	if err != nil {
		return err
	}
	if pool.Status != domain.PoolStatusActive {
		return apperr.Validation("Pool is not active")
	}
	if pool.ActiveTokens() == 0 {
		return apperr.Validation("Pool has no active token holders")
	}
	return nil
}

// DistributeDividend credits every active investment its share of amount and
// appends the dividend record before attempting the on-ledger transfer. The
// bookkeeping is deliberately not rolled back on a settlement failure.
func (s *Service) DistributeDividend(ctx context.Context, poolID uuid.UUID, callerWallet string, amount float64, description string) (*DistributeResult, error) {
	caller := s.Identity.Resolve(callerWallet)
	if !caller.Can(constants.DistributeDividend) {
		return nil, apperr.Authorization("Wallet is not authorized to distribute dividends")
	}
	if amount <= 0 {
		return nil, apperr.Validation("Distribution amount must be positive")
	}

	verified, err := s.Repo.FindByID(ctx, poolID)
	if err != nil {
		return nil, err
	}

	var dividend domain.Dividend
	var perToken float64
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var pool domain.Pool
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("pool_id = ?", verified.PoolID).First(&pool).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return apperr.NotFound("Pool not found")
			}
			return apperr.Internal("Failed to load pool", err)
		}
		if pool.Status != domain.PoolStatusActive {
			return apperr.Validation("Pool is not active")
		}

		var investments []domain.Investment
		if err := tx.Where("pool_id = ? AND active = ?", pool.PoolID, true).Find(&investments).Error; err != nil {
			return apperr.Internal("Failed to load investments", err)
		}
		var totalTokens int64
		for _, inv := range investments {
			totalTokens += inv.Tokens
		}
		if totalTokens == 0 {
			return apperr.Validation("Pool has no active token holders")
		}

		perToken = amount / float64(totalTokens)
		for i := range investments {
			investments[i].DividendsReceived = investments[i].DividendsReceived + float64(investments[i].Tokens)*perToken
			if err := tx.Save(&investments[i]).Error; err != nil {
				return apperr.Internal("Failed to credit investment", err)
			}
		}

		var seq int64
		if err := tx.Model(&domain.Dividend{}).Where("pool_id = ?", pool.PoolID).Count(&seq).Error; err != nil {
			return apperr.Internal("Failed to sequence dividend", err)
		}
		dividend = domain.Dividend{
			PoolID:      pool.PoolID,
			Sequence:    int(seq) + 1,
			TotalAmount: amount,
			PerToken:    perToken,
			Description: description,
			Settled:     false,
		}
		if err := tx.Create(&dividend).Error; err != nil {
			return apperr.Internal("Failed to record dividend", err)
		}

		pool.TotalDividends = round2(pool.TotalDividends + amount)
		if err := tx.Save(&pool).Error; err != nil {
			return apperr.Internal("Failed to update pool totals", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Settlement last, outside the record transaction. Failure degrades the
	// result instead of failing it: the entitlements are already owed.
	result := &DistributeResult{Dividend: &dividend, PerToken: perToken}
	txHash, err := s.Ledger.TransferValue(ctx, s.Treasury, verified.EscrowAddress, amount)
	if err != nil {
		log.Warn().Err(err).
			Str("pool_id", verified.PoolID.String()).
			Float64("amount", amount).
			Msg("Dividend settlement transfer failed, distribution flagged unsettled")
		result.SettlementError = err.Error()
		return result, nil
	}
	if err := s.DB.WithContext(ctx).Model(&dividend).
		Updates(map[string]interface{}{"settled": true, "settlement_tx": txHash}).Error; err != nil {
		return nil, apperr.Internal("Failed to backfill settlement reference", err)
	}
	dividend.Settled = true
	dividend.SettlementTx = &txHash
	result.Settled = true
	return result, nil
}

// ClosePool transitions an active pool to closed, stopping further investment.
func (s *Service) ClosePool(ctx context.Context, poolID uuid.UUID, callerWallet string) (*domain.Pool, error) {
	caller := s.Identity.Resolve(callerWallet)
	if !caller.Can(constants.ClosePool) {
		return nil, apperr.Authorization("Wallet is not authorized to close pools")
	}

	verified, err := s.Repo.FindByID(ctx, poolID)
	if err != nil {
		return nil, err
	}

	var pool domain.Pool
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("pool_id = ?", verified.PoolID).First(&pool).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return apperr.NotFound("Pool not found")
			}
			return apperr.Internal("Failed to load pool", err)
		}
		if pool.Status != domain.PoolStatusActive {
			return apperr.Validation("Pool is not active")
		}
		pool.Status = domain.PoolStatusClosed
		if err := tx.Save(&pool).Error; err != nil {
			return apperr.Internal("Failed to close pool", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &pool, nil
}

// ProjectedROIResult is a position's live projection, recomputed on every
// read; nothing here is persisted as ground truth.
type ProjectedROIResult struct {
	PoolID         uuid.UUID `json:"pool_id"`
	InvestorWallet string    `json:"investor_wallet"`
	Principal      float64   `json:"principal"`
	Tokens         int64     `json:"tokens"`
	DaysElapsed    float64   `json:"days_elapsed"`
	yield.InvestmentProjection
}

// GetProjectedROI recomputes the investor's projected and blended returns.
func (s *Service) GetProjectedROI(ctx context.Context, poolID uuid.UUID, investorWallet string) (*ProjectedROIResult, error) {
	pool, err := s.Repo.FindByID(ctx, poolID)
	if err != nil {
		return nil, err
	}
	var position *domain.Investment
	for i := range pool.Investments {
		if pool.Investments[i].InvestorWallet == investorWallet {
			position = &pool.Investments[i]
			break
		}
	}
	if position == nil || !position.Active {
		return nil, apperr.NotFound("No active investment for this wallet")
	}
	days := time.Since(position.FirstInvestedAt).Hours() / 24
	if days < 0 {
		days = 0
	}
	return &ProjectedROIResult{
		PoolID:               pool.PoolID,
		InvestorWallet:       investorWallet,
		Principal:            position.Amount,
		Tokens:               position.Tokens,
		DaysElapsed:          days,
		InvestmentProjection: yield.InvestmentReturn(position.Amount, pool.ExpectedAnnualRate, days, position.DividendsReceived),
	}, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
