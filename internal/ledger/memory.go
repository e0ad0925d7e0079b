package ledger

import (
	"context"
	"fmt"
	"sync"
)

// Memory is an in-process Gateway used in development (no LEDGER_RPC_URL) and
// in tests. It mimics the pool program's bookkeeping: sequential pool ids,
// single-pool asset admission, balance transfers. The Fail* fields inject the
// next call's failure for a given operation.
type Memory struct {
	mu       sync.Mutex
	nextPool uint64
	pools    map[uint64]*PoolState
	assets   map[uint64]*AssetState
	balances map[string]float64
	txSeq    int

	FailCreatePool error
	FailAdmitAsset error
	FailReadPool   error
	FailTransfer   error
}

// NewMemory returns an empty in-memory ledger.
func NewMemory() *Memory {
	return &Memory{
		nextPool: 1,
		pools:    make(map[uint64]*PoolState),
		assets:   make(map[uint64]*AssetState),
		balances: make(map[string]float64),
	}
}

// SeedAsset registers an asset entity, as the asset program would.
func (m *Memory) SeedAsset(state AssetState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := state
	m.assets[state.AssetID] = &copied
}

// SeedBalance sets an address balance.
func (m *Memory) SeedBalance(address string, amount float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[address] = amount
}

// DropPool removes a pool entity, simulating on-chain purge (divergence).
func (m *Memory) DropPool(poolID uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pools, poolID)
}

func (m *Memory) CreatePool(ctx context.Context, params CreatePoolParams) (*CreatePoolResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.FailCreatePool; err != nil {
		m.FailCreatePool = nil
		return nil, newError("createPool", "injected failure", err)
	}
	id := m.nextPool
	m.nextPool++
	m.pools[id] = &PoolState{
		PoolID:      id,
		TotalValue:  params.TotalValue,
		TokenSupply: params.TokenSupply,
		Active:      true,
	}
	tranches := make([]uint64, 0, params.TrancheCount)
	for i := 0; i < params.TrancheCount; i++ {
		tranches = append(tranches, id<<8|uint64(i))
	}
	return &CreatePoolResult{
		PoolID:        id,
		TxHash:        m.tx(),
		TrancheIDs:    tranches,
		EscrowAddress: fmt.Sprintf("pool-escrow-%d", id),
	}, nil
}

func (m *Memory) AdmitAsset(ctx context.Context, poolID, assetID uint64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.FailAdmitAsset; err != nil {
		m.FailAdmitAsset = nil
		return "", newError("admitAsset", "injected failure", err)
	}
	pool, ok := m.pools[poolID]
	if !ok {
		return "", newError("admitAsset", "pool not found", nil)
	}
	asset, ok := m.assets[assetID]
	if !ok {
		return "", newError("admitAsset", "asset not found", nil)
	}
	if asset.AdmittedPoolID != 0 && asset.AdmittedPoolID != poolID {
		return "", newError("admitAsset", "asset already admitted to another pool", nil)
	}
	asset.AdmittedPoolID = poolID
	pool.AssetCount++
	return m.tx(), nil
}

func (m *Memory) ReadPool(ctx context.Context, poolID uint64) (*PoolState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.FailReadPool; err != nil {
		m.FailReadPool = nil
		return nil, newError("readPool", "injected failure", err)
	}
	state, ok := m.pools[poolID]
	if !ok {
		return nil, nil
	}
	copied := *state
	return &copied, nil
}

func (m *Memory) ReadAsset(ctx context.Context, assetID uint64) (*AssetState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.assets[assetID]
	if !ok {
		return nil, nil
	}
	copied := *state
	return &copied, nil
}

func (m *Memory) TransferValue(ctx context.Context, from, to string, amount float64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.FailTransfer; err != nil {
		m.FailTransfer = nil
		return "", newError("transferValue", "injected failure", err)
	}
	if amount <= 0 {
		return "", newError("transferValue", "amount must be positive", nil)
	}
	m.balances[from] -= amount
	m.balances[to] += amount
	return m.tx(), nil
}

func (m *Memory) ReadBalance(ctx context.Context, address string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[address], nil
}

func (m *Memory) tx() string {
	m.txSeq++
	return fmt.Sprintf("memtx-%06d", m.txSeq)
}
