package ownership

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"harbor-backend/internal/domain"
	"harbor-backend/internal/ledger"
	"harbor-backend/internal/pkg/apperr"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Service tracks per-asset ownership splits: how much the original owner
// retains versus how much has been tokenized into pools.
type Service struct {
	DB     *gorm.DB
	Ledger ledger.Gateway
}

// RegisterAsset creates the initial ownership record for an asset: 100%
// owned, 0% tokenized. The claimed owner must match the ledger's recorded
// current owner.
func (s *Service) RegisterAsset(ctx context.Context, assetID uint64, ownerWallet string) (*domain.OwnershipRecord, error) {
	if assetID == 0 {
		return nil, apperr.Validation("Asset id is required")
	}
	if ownerWallet == "" {
		return nil, apperr.Validation("Owner wallet is required")
	}

	state, err := s.Ledger.ReadAsset(ctx, assetID)
	if err != nil {
		return nil, apperr.Ledger("Failed to read asset from ledger", err)
	}
	if state == nil {
		return nil, apperr.NotFound("Asset not found on ledger")
	}
	if state.CurrentOwner != ownerWallet {
		return nil, apperr.Authorization("Wallet is not the recorded owner of this asset")
	}

	var existing domain.OwnershipRecord
	err = s.DB.WithContext(ctx).
		Where("ledger_asset_id = ? AND owner_wallet = ?", assetID, ownerWallet).
		First(&existing).Error
	if err == nil {
		return nil, apperr.Validation("Asset is already registered to this owner")
	}
	if err != gorm.ErrRecordNotFound {
		return nil, apperr.Internal("Failed to check existing registration", err)
	}

	record := domain.OwnershipRecord{
		LedgerAssetID:    assetID,
		OwnerWallet:      ownerWallet,
		AssetName:        state.Name,
		OwnershipPercent: 100,
		TokenizedPercent: 0,
		PoolIDs:          datatypes.JSON([]byte("[]")),
		RevenueHistory:   datatypes.JSONMap{},
	}
	if err := s.DB.WithContext(ctx).Create(&record).Error; err != nil {
		return nil, apperr.Internal("Failed to create ownership record", err)
	}
	return &record, nil
}

// GetByAsset returns the ownership record for an asset.
func (s *Service) GetByAsset(ctx context.Context, assetID uint64) (*domain.OwnershipRecord, error) {
	var record domain.OwnershipRecord
	if err := s.DB.WithContext(ctx).Where("ledger_asset_id = ?", assetID).First(&record).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperr.NotFound("Ownership record not found")
		}
		return nil, apperr.Internal("Failed to load ownership record", err)
	}
	return &record, nil
}

// ListByOwner returns all ownership records for a wallet.
func (s *Service) ListByOwner(ctx context.Context, ownerWallet string) ([]domain.OwnershipRecord, error) {
	var records []domain.OwnershipRecord
	if err := s.DB.WithContext(ctx).Where("owner_wallet = ?", ownerWallet).Find(&records).Error; err != nil {
		return nil, apperr.Internal("Failed to load ownership records", err)
	}
	return records, nil
}

// RecordTokenization shifts percent of the asset from the owner to a pool and
// credits the capital the owner received for it. Ownership plus tokenized
// percentage must never exceed 100 across all tokenization events.
func (s *Service) RecordTokenization(ctx context.Context, assetID uint64, percent, capital float64, poolID uuid.UUID) error {
	if percent <= 0 || percent > 100 {
		return apperr.Validation("Tokenized percentage must be between 0 and 100")
	}
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var record domain.OwnershipRecord
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("ledger_asset_id = ?", assetID).First(&record).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return apperr.NotFound("Ownership record not found")
			}
			return apperr.Internal("Failed to load ownership record", err)
		}

		if record.TokenizedPercent+percent > 100+1e-9 {
			return apperr.Validation(fmt.Sprintf(
				"Tokenizing %.2f%% would exceed 100%% (already tokenized: %.2f%%)",
				percent, record.TokenizedPercent))
		}

		record.TokenizedPercent = round2(record.TokenizedPercent + percent)
		record.OwnershipPercent = round2(record.OwnershipPercent - percent)
		record.CapitalReceived = round2(record.CapitalReceived + capital)

		pools, err := appendPoolID(record.PoolIDs, poolID)
		if err != nil {
			return apperr.Internal("Failed to update pool associations", err)
		}
		record.PoolIDs = pools

		if err := tx.Save(&record).Error; err != nil {
			return apperr.Internal("Failed to save ownership record", err)
		}
		return nil
	})
}

// RecordRevenue credits a distributed revenue amount to the owner's totals
// and the per-period history, keyed by "YYYY-MM" of the reporting period.
func (s *Service) RecordRevenue(ctx context.Context, assetID uint64, amount float64, periodKey string) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var record domain.OwnershipRecord
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("ledger_asset_id = ?", assetID).First(&record).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return apperr.NotFound("Ownership record not found")
			}
			return apperr.Internal("Failed to load ownership record", err)
		}

		record.TotalRevenueReceived = round2(record.TotalRevenueReceived + amount)
		if record.RevenueHistory == nil {
			record.RevenueHistory = datatypes.JSONMap{}
		}
		prev, _ := record.RevenueHistory[periodKey].(float64)
		record.RevenueHistory[periodKey] = round2(prev + amount)

		if err := tx.Save(&record).Error; err != nil {
			return apperr.Internal("Failed to save ownership record", err)
		}
		return nil
	})
}

// PoolIDsOf decodes the associated pool ids, first association first.
func PoolIDsOf(record *domain.OwnershipRecord) ([]uuid.UUID, error) {
	var raw []string
	if len(record.PoolIDs) > 0 {
		if err := json.Unmarshal(record.PoolIDs, &raw); err != nil {
			return nil, err
		}
	}
	out := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

func appendPoolID(existing datatypes.JSON, poolID uuid.UUID) (datatypes.JSON, error) {
	var ids []string
	if len(existing) > 0 {
		if err := json.Unmarshal(existing, &ids); err != nil {
			return nil, err
		}
	}
	for _, id := range ids {
		if id == poolID.String() {
			b, err := json.Marshal(ids)
			return datatypes.JSON(b), err
		}
	}
	ids = append(ids, poolID.String())
	b, err := json.Marshal(ids)
	return datatypes.JSON(b), err
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
