package ledger

import (
	"context"
	"fmt"
)

// Asset statuses as recorded by the pool program. Only active assets
// (activated and owner-managed) may be admitted into a pool.
const (
	AssetStatusPending = "pending"
	AssetStatusActive  = "active"
	AssetStatusRetired = "retired"
)

// CreatePoolParams describes the pool to create on-ledger.
type CreatePoolParams struct {
	Name         string
	AdminWallet  string
	TotalValue   float64
	TokenSupply  int64
	TrancheCount int
}

// CreatePoolResult is the ledger's answer to a successful pool creation.
// EscrowAddress is the pool's program-owned distribution account.
type CreatePoolResult struct {
	PoolID        uint64
	TxHash        string
	TrancheIDs    []uint64
	EscrowAddress string
}

// PoolState is the on-ledger pool entity. A nil state means the pool does not
// exist; a zero PoolID or zero token supply means the entity was purged on-chain.
type PoolState struct {
	PoolID      uint64
	TotalValue  float64
	TokenSupply int64
	AssetCount  int
	Active      bool
}

// Exists reports whether the state is a live, non-zero ledger entity.
func (s *PoolState) Exists() bool {
	return s != nil && s.PoolID != 0 && s.TokenSupply > 0
}

// AssetState is the on-ledger asset entity.
type AssetState struct {
	AssetID              uint64
	Name                 string
	Status               string
	Value                float64
	MaxInvestablePercent float64
	OriginalOwner        string
	CurrentOwner         string
	AdmittedPoolID       uint64 // 0 = not admitted anywhere
}

// Gateway is the ledger capability the engine consumes. Implementations must
// not retry silently: a failed call surfaces as *Error and the caller decides.
type Gateway interface {
	CreatePool(ctx context.Context, params CreatePoolParams) (*CreatePoolResult, error)
	AdmitAsset(ctx context.Context, poolID, assetID uint64) (string, error)
	ReadPool(ctx context.Context, poolID uint64) (*PoolState, error)
	ReadAsset(ctx context.Context, assetID uint64) (*AssetState, error)
	TransferValue(ctx context.Context, from, to string, amount float64) (string, error)
	ReadBalance(ctx context.Context, address string) (float64, error)
}

// Error is a failed ledger call (network, revert, decode).
type Error struct {
	Op     string
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ledger %s: %s: %v", e.Op, e.Reason, e.Err)
	}
	return fmt.Sprintf("ledger %s: %s", e.Op, e.Reason)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(op, reason string, err error) *Error {
	return &Error{Op: op, Reason: reason, Err: err}
}
