package pools

import (
	"context"

	"harbor-backend/internal/domain"
	"harbor-backend/internal/ledger"
	"harbor-backend/internal/pkg/apperr"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Filter narrows pool listings.
type Filter struct {
	Status      string
	AdminWallet string
}

// Repository is the pool record store. Reads served through the verified
// decorator are guaranteed to correspond to live ledger entities.
type Repository interface {
	FindByID(ctx context.Context, poolID uuid.UUID) (*domain.Pool, error)
	List(ctx context.Context, filter Filter) ([]domain.Pool, error)
	Delete(ctx context.Context, poolID uuid.UUID) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository returns the plain GORM-backed pool store.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) FindByID(ctx context.Context, poolID uuid.UUID) (*domain.Pool, error) {
	var pool domain.Pool
	err := r.db.WithContext(ctx).
		Preload("Assets").Preload("Investments").Preload("Dividends").
		Where("pool_id = ?", poolID).First(&pool).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperr.NotFound("Pool not found")
		}
		return nil, apperr.Internal("Failed to load pool", err)
	}
	return &pool, nil
}

func (r *gormRepository) List(ctx context.Context, filter Filter) ([]domain.Pool, error) {
	q := r.db.WithContext(ctx).
		Preload("Assets").Preload("Investments").Preload("Dividends").
		Order("created_at DESC")
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.AdminWallet != "" {
		q = q.Where("admin_wallet = ?", filter.AdminWallet)
	}
	var pools []domain.Pool
	if err := q.Find(&pools).Error; err != nil {
		return nil, apperr.Internal("Failed to list pools", err)
	}
	return pools, nil
}

func (r *gormRepository) Delete(ctx context.Context, poolID uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("pool_id = ?", poolID).Delete(&domain.PoolAsset{}).Error; err != nil {
			return err
		}
		// Investments and dividends are part of the purged derived record; the
		// ledger remains the audit source for anything that was settled on-chain.
		if err := tx.Where("pool_id = ?", poolID).Delete(&domain.Investment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("pool_id = ?", poolID).Delete(&domain.Dividend{}).Error; err != nil {
			return err
		}
		return tx.Where("pool_id = ?", poolID).Delete(&domain.Pool{}).Error
	})
}

// verifiedRepository decorates a Repository with ledger verification: every
// served pool is re-checked against the ledger, and a pool whose ledger entity
// resolves to null/zero is deleted from the local store as a side effect of
// the read. The local store is a derived record, not a cache of record.
type verifiedRepository struct {
	next   Repository
	ledger ledger.Gateway
}

// NewVerifiedRepository wraps next with verify-then-serve semantics.
func NewVerifiedRepository(next Repository, gw ledger.Gateway) Repository {
	return &verifiedRepository{next: next, ledger: gw}
}

func (r *verifiedRepository) FindByID(ctx context.Context, poolID uuid.UUID) (*domain.Pool, error) {
	pool, err := r.next.FindByID(ctx, poolID)
	if err != nil {
		return nil, err
	}
	ok, err := r.verify(ctx, pool)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.NotFound("Pool not found")
	}
	return pool, nil
}

func (r *verifiedRepository) List(ctx context.Context, filter Filter) ([]domain.Pool, error) {
	pools, err := r.next.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	verified := make([]domain.Pool, 0, len(pools))
	for i := range pools {
		ok, err := r.verify(ctx, &pools[i])
		if err != nil {
			return nil, err
		}
		if ok {
			verified = append(verified, pools[i])
		}
	}
	return verified, nil
}

func (r *verifiedRepository) Delete(ctx context.Context, poolID uuid.UUID) error {
	return r.next.Delete(ctx, poolID)
}

// verify returns false after purging the local record when the ledger entity
// is gone. A ledger read failure is surfaced as-is: divergence may only be
// declared on a successful read.
func (r *verifiedRepository) verify(ctx context.Context, pool *domain.Pool) (bool, error) {
	state, err := r.ledger.ReadPool(ctx, pool.LedgerPoolID)
	if err != nil {
		return false, apperr.Ledger("Failed to verify pool against ledger", err)
	}
	if state.Exists() {
		return true, nil
	}
	log.Warn().
		Str("pool_id", pool.PoolID.String()).
		Uint64("ledger_pool_id", pool.LedgerPoolID).
		Msg("Pool missing on ledger, purging local record")
	if err := r.next.Delete(ctx, pool.PoolID); err != nil {
		return false, apperr.Internal("Failed to purge diverged pool record", err)
	}
	return false, nil
}
