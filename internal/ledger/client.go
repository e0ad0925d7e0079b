package ledger

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"math"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// Program instruction tags (pool program wire convention).
const (
	ixCreatePool uint8 = 0
	ixAdmitAsset uint8 = 1
	ixTransfer   uint8 = 2
)

// Client implements Gateway against the deployed pool program via Solana RPC.
// The fee payer signs and pays for every submitted transaction. Monetary
// amounts travel as integer cents; the program does the same.
type Client struct {
	RPC       *rpc.Client
	ProgramID solana.PublicKey
	FeePayer  solana.PrivateKey
}

// NewClient builds a Client from config strings.
func NewClient(rpcURL, programID, feePayerKey string) (*Client, error) {
	program, err := solana.PublicKeyFromBase58(programID)
	if err != nil {
		return nil, newError("init", "invalid pool program id", err)
	}
	feePayer, err := solana.PrivateKeyFromBase58(feePayerKey)
	if err != nil {
		return nil, newError("init", "invalid fee payer key", err)
	}
	return &Client{
		RPC:       rpc.New(rpcURL),
		ProgramID: program,
		FeePayer:  feePayer,
	}, nil
}

func (c *Client) CreatePool(ctx context.Context, params CreatePoolParams) (*CreatePoolResult, error) {
	const op = "createPool"
	nextID, err := c.readNextPoolID(ctx)
	if err != nil {
		return nil, err
	}

	var data bytes.Buffer
	data.WriteByte(ixCreatePool)
	writeU64(&data, cents(params.TotalValue))
	writeU64(&data, uint64(params.TokenSupply))
	writeU64(&data, uint64(params.TrancheCount))
	writeString(&data, params.Name)

	poolAccount, err := c.poolAddress(nextID)
	if err != nil {
		return nil, newError(op, "derive pool address", err)
	}
	registry, err := c.registryAddress()
	if err != nil {
		return nil, newError(op, "derive registry address", err)
	}
	sig, err := c.submit(ctx, op, solana.AccountMetaSlice{
		solana.NewAccountMeta(registry, true, false),
		solana.NewAccountMeta(poolAccount, true, false),
		solana.NewAccountMeta(c.FeePayer.PublicKey(), true, true),
	}, data.Bytes())
	if err != nil {
		return nil, err
	}

	// Tranche ids follow the program convention: poolID<<8 | index.
	tranches := make([]uint64, 0, params.TrancheCount)
	for i := 0; i < params.TrancheCount; i++ {
		tranches = append(tranches, nextID<<8|uint64(i))
	}
	escrow, _, err := solana.FindProgramAddress([][]byte{[]byte("escrow"), le64(nextID)}, c.ProgramID)
	if err != nil {
		return nil, newError(op, "derive escrow address", err)
	}
	return &CreatePoolResult{
		PoolID:        nextID,
		TxHash:        sig,
		TrancheIDs:    tranches,
		EscrowAddress: escrow.String(),
	}, nil
}

func (c *Client) AdmitAsset(ctx context.Context, poolID, assetID uint64) (string, error) {
	const op = "admitAsset"
	var data bytes.Buffer
	data.WriteByte(ixAdmitAsset)
	writeU64(&data, poolID)
	writeU64(&data, assetID)

	poolAccount, err := c.poolAddress(poolID)
	if err != nil {
		return "", newError(op, "derive pool address", err)
	}
	assetAccount, err := c.assetAddress(assetID)
	if err != nil {
		return "", newError(op, "derive asset address", err)
	}
	return c.submit(ctx, op, solana.AccountMetaSlice{
		solana.NewAccountMeta(poolAccount, true, false),
		solana.NewAccountMeta(assetAccount, true, false),
		solana.NewAccountMeta(c.FeePayer.PublicKey(), true, true),
	}, data.Bytes())
}

func (c *Client) ReadPool(ctx context.Context, poolID uint64) (*PoolState, error) {
	const op = "readPool"
	addr, err := c.poolAddress(poolID)
	if err != nil {
		return nil, newError(op, "derive pool address", err)
	}
	raw, err := c.readAccount(ctx, op, addr)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	// Layout: u64 id, u64 total_value_cents, u64 token_supply, u32 asset_count, u8 active.
	if len(raw) < 29 {
		return nil, newError(op, "short pool account data", nil)
	}
	return &PoolState{
		PoolID:      binary.LittleEndian.Uint64(raw[0:8]),
		TotalValue:  amount(binary.LittleEndian.Uint64(raw[8:16])),
		TokenSupply: int64(binary.LittleEndian.Uint64(raw[16:24])),
		AssetCount:  int(binary.LittleEndian.Uint32(raw[24:28])),
		Active:      raw[28] == 1,
	}, nil
}

func (c *Client) ReadAsset(ctx context.Context, assetID uint64) (*AssetState, error) {
	const op = "readAsset"
	addr, err := c.assetAddress(assetID)
	if err != nil {
		return nil, newError(op, "derive asset address", err)
	}
	raw, err := c.readAccount(ctx, op, addr)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	// Layout: u64 id, u8 status, u64 value_cents, u16 max_investable_bps,
	// 32b original owner, 32b current owner, u64 admitted_pool_id, name (len-prefixed).
	if len(raw) < 91 {
		return nil, newError(op, "short asset account data", nil)
	}
	state := &AssetState{
		AssetID:              binary.LittleEndian.Uint64(raw[0:8]),
		Status:               assetStatus(raw[8]),
		Value:                amount(binary.LittleEndian.Uint64(raw[9:17])),
		MaxInvestablePercent: float64(binary.LittleEndian.Uint16(raw[17:19])) / 100,
		OriginalOwner:        solana.PublicKeyFromBytes(raw[19:51]).String(),
		CurrentOwner:         solana.PublicKeyFromBytes(raw[51:83]).String(),
		AdmittedPoolID:       binary.LittleEndian.Uint64(raw[83:91]),
	}
	if len(raw) >= 95 {
		n := int(binary.LittleEndian.Uint32(raw[91:95]))
		if len(raw) >= 95+n {
			state.Name = string(raw[95 : 95+n])
		}
	}
	return state, nil
}

func (c *Client) TransferValue(ctx context.Context, from, to string, amt float64) (string, error) {
	const op = "transferValue"
	fromKey, err := solana.PublicKeyFromBase58(from)
	if err != nil {
		return "", newError(op, "invalid from address", err)
	}
	toKey, err := solana.PublicKeyFromBase58(to)
	if err != nil {
		return "", newError(op, "invalid to address", err)
	}
	if !fromKey.Equals(c.FeePayer.PublicKey()) {
		return "", newError(op, "from address must be the platform treasury", nil)
	}

	var data bytes.Buffer
	data.WriteByte(ixTransfer)
	writeU64(&data, cents(amt))
	return c.submit(ctx, op, solana.AccountMetaSlice{
		solana.NewAccountMeta(fromKey, true, true),
		solana.NewAccountMeta(toKey, true, false),
	}, data.Bytes())
}

func (c *Client) ReadBalance(ctx context.Context, address string) (float64, error) {
	const op = "readBalance"
	key, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return 0, newError(op, "invalid address", err)
	}
	addr, _, err := solana.FindProgramAddress([][]byte{[]byte("balance"), key.Bytes()}, c.ProgramID)
	if err != nil {
		return 0, newError(op, "derive balance address", err)
	}
	raw, err := c.readAccount(ctx, op, addr)
	if err != nil {
		return 0, err
	}
	if raw == nil || len(raw) < 8 {
		return 0, nil
	}
	return amount(binary.LittleEndian.Uint64(raw[0:8])), nil
}

// submit builds, signs (fee payer) and sends one program instruction.
func (c *Client) submit(ctx context.Context, op string, accounts solana.AccountMetaSlice, data []byte) (string, error) {
	recent, err := c.RPC.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return "", newError(op, "fetch blockhash", err)
	}
	ix := solana.NewInstruction(c.ProgramID, accounts, data)
	tx, err := solana.NewTransaction(
		[]solana.Instruction{ix},
		recent.Value.Blockhash,
		solana.TransactionPayer(c.FeePayer.PublicKey()),
	)
	if err != nil {
		return "", newError(op, "build transaction", err)
	}
	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(c.FeePayer.PublicKey()) {
			return &c.FeePayer
		}
		return nil
	}); err != nil {
		return "", newError(op, "sign transaction", err)
	}
	sig, err := c.RPC.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		return "", newError(op, "send transaction", err)
	}
	return sig.String(), nil
}

// readAccount returns the raw account data, or nil if the account is absent.
func (c *Client) readAccount(ctx context.Context, op string, addr solana.PublicKey) ([]byte, error) {
	res, err := c.RPC.GetAccountInfo(ctx, addr)
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, nil
		}
		return nil, newError(op, "read account", err)
	}
	if res == nil || res.Value == nil {
		return nil, nil
	}
	return res.Value.Data.GetBinary(), nil
}

func (c *Client) readNextPoolID(ctx context.Context) (uint64, error) {
	const op = "createPool"
	registry, err := c.registryAddress()
	if err != nil {
		return 0, newError(op, "derive registry address", err)
	}
	raw, err := c.readAccount(ctx, op, registry)
	if err != nil {
		return 0, err
	}
	if raw == nil || len(raw) < 8 {
		return 0, newError(op, "pool registry not initialized", nil)
	}
	return binary.LittleEndian.Uint64(raw[0:8]), nil
}

func (c *Client) registryAddress() (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress([][]byte{[]byte("registry")}, c.ProgramID)
	return addr, err
}

func (c *Client) poolAddress(poolID uint64) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress([][]byte{[]byte("pool"), le64(poolID)}, c.ProgramID)
	return addr, err
}

func (c *Client) assetAddress(assetID uint64) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress([][]byte{[]byte("asset"), le64(assetID)}, c.ProgramID)
	return addr, err
}

func assetStatus(b uint8) string {
	switch b {
	case 1:
		return AssetStatusActive
	case 2:
		return AssetStatusRetired
	default:
		return AssetStatusPending
	}
}

func cents(v float64) uint64 {
	return uint64(math.Round(v * 100))
}

func amount(c uint64) float64 {
	return float64(c) / 100
}

func le64(v uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return b
}

func writeU64(buf *bytes.Buffer, v uint64) {
	buf.Write(le64(v))
}

func writeString(buf *bytes.Buffer, s string) {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, uint32(len(s)))
	buf.Write(b)
	buf.WriteString(s)
}
