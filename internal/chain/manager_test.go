package chain

import (
	"context"
	"encoding/hex"
	"errors"
	"math/big"
	"testing"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/lingyuqian0301/ev-stage-2/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	nonce     uint64
	confirmed uint64
	sent      []*types.Transaction
	receipts  map[common.Hash]*types.Receipt
	sendErr   error
}

func (f *fakeBackend) ChainID(context.Context) (*big.Int, error) { return big.NewInt(1337), nil }

func (f *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return f.nonce, nil
}

func (f *fakeBackend) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(2_000_000_000), nil
}

func (f *fakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, tx)
	f.nonce++
	return nil
}

func (f *fakeBackend) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	if r, ok := f.receipts[hash]; ok {
		return r, nil
	}
	return nil, ethereum.NotFound
}

func (f *fakeBackend) NonceAt(context.Context, common.Address, *big.Int) (uint64, error) {
	return f.confirmed, nil
}

func (f *fakeBackend) mine(hash string, status uint64) {
	if f.receipts == nil {
		f.receipts = make(map[common.Hash]*types.Receipt)
	}
	f.receipts[common.HexToHash(hash)] = &types.Receipt{Status: status, TxHash: common.HexToHash(hash)}
	f.confirmed++
}

func testConfig(t *testing.T) (config.ChainConfig, common.Address) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return config.ChainConfig{
		Enabled:     true,
		ChainId:     1337,
		PrivateKey:  "0x" + hex.EncodeToString(crypto.FromECDSA(key)),
		AmountScale: 1_000_000_000,
		GasLimit:    21000,
	}, crypto.PubkeyToAddress(key.PublicKey)
}

func TestSignTransferAndBroadcast(t *testing.T) {
	cfg, from := testConfig(t)
	backend := &fakeBackend{nonce: 7}
	m, err := NewManagerWithBackend(backend, cfg)
	require.NoError(t, err)
	assert.Equal(t, from, m.From())
	ctx := context.Background()

	recipient := "0x4444444444444444444444444444444444444444"
	signed, err := m.SignTransfer(ctx, recipient, 500)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), signed.Nonce)
	assert.Empty(t, backend.sent)

	require.NoError(t, m.Broadcast(ctx, signed.Raw))
	require.Len(t, backend.sent, 1)

	tx := backend.sent[0]
	assert.Equal(t, signed.Hash, tx.Hash().Hex())
	assert.Equal(t, uint64(7), tx.Nonce())
	assert.Equal(t, uint64(21000), tx.Gas())
	assert.Equal(t, big.NewInt(500_000_000_000), tx.Value())
	assert.Equal(t, common.HexToAddress(recipient), *tx.To())

	sender, err := types.Sender(types.LatestSignerForChainID(big.NewInt(1337)), tx)
	require.NoError(t, err)
	assert.Equal(t, from, sender)

	next, err := m.SignTransfer(ctx, recipient, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(8), next.Nonce)
}

func TestBroadcastRepeatsSameTransaction(t *testing.T) {
	cfg, _ := testConfig(t)
	backend := &fakeBackend{}
	m, err := NewManagerWithBackend(backend, cfg)
	require.NoError(t, err)
	ctx := context.Background()

	signed, err := m.SignTransfer(ctx, "0x4444444444444444444444444444444444444444", 3)
	require.NoError(t, err)
	require.NoError(t, m.Broadcast(ctx, signed.Raw))

	backend.sendErr = errors.New("already known")
	require.NoError(t, m.Broadcast(ctx, signed.Raw))

	backend.sendErr = errors.New("insufficient funds for gas * price + value")
	require.ErrorContains(t, m.Broadcast(ctx, signed.Raw), "insufficient funds")

	require.Error(t, m.Broadcast(ctx, "0xzz"))
	require.Len(t, backend.sent, 1)
	assert.Equal(t, signed.Hash, backend.sent[0].Hash().Hex())
}

func TestTransferStatus(t *testing.T) {
	cfg, _ := testConfig(t)
	backend := &fakeBackend{}
	m, err := NewManagerWithBackend(backend, cfg)
	require.NoError(t, err)
	ctx := context.Background()
	recipient := "0x4444444444444444444444444444444444444444"

	first, err := m.SignTransfer(ctx, recipient, 1)
	require.NoError(t, err)
	require.NoError(t, m.Broadcast(ctx, first.Raw))

	status, err := m.TransferStatus(ctx, first.Hash, first.Nonce)
	require.NoError(t, err)
	assert.Equal(t, TransferPending, status)

	backend.mine(first.Hash, types.ReceiptStatusSuccessful)
	status, err = m.TransferStatus(ctx, first.Hash, first.Nonce)
	require.NoError(t, err)
	assert.Equal(t, TransferConfirmed, status)

	second, err := m.SignTransfer(ctx, recipient, 2)
	require.NoError(t, err)
	backend.mine(second.Hash, types.ReceiptStatusFailed)
	status, err = m.TransferStatus(ctx, second.Hash, second.Nonce)
	require.NoError(t, err)
	assert.Equal(t, TransferReverted, status)

	// nonce 被另一笔交易占用
	lost, err := m.SignTransfer(ctx, recipient, 3)
	require.NoError(t, err)
	backend.confirmed = lost.Nonce + 1
	status, err = m.TransferStatus(ctx, lost.Hash, lost.Nonce)
	require.NoError(t, err)
	assert.Equal(t, TransferDropped, status)
}

func TestSignTransferErrors(t *testing.T) {
	cfg, _ := testConfig(t)
	m, err := NewManagerWithBackend(&fakeBackend{}, cfg)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = m.SignTransfer(ctx, "not-an-address", 1)
	require.Error(t, err)
	_, err = m.SignTransfer(ctx, "0x0000000000000000000000000000000000000000", 1)
	require.Error(t, err)
	_, err = m.SignTransfer(ctx, "0x4444444444444444444444444444444444444444", 0)
	require.Error(t, err)
}

func TestNewManagerWithBackendValidation(t *testing.T) {
	cfg, _ := testConfig(t)
	bad := cfg
	bad.PrivateKey = "0xzz"
	_, err := NewManagerWithBackend(&fakeBackend{}, bad)
	require.Error(t, err)

	bad = cfg
	bad.AmountScale = 0
	_, err = NewManagerWithBackend(&fakeBackend{}, bad)
	require.Error(t, err)
}

func TestParseAddressChecksum(t *testing.T) {
	addr, err := ParseAddress("0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed")
	require.NoError(t, err)
	assert.Equal(t, "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", addr.Hex())
}

func TestScaleAmount(t *testing.T) {
	assert.Equal(t, "9223372036854775807000", ScaleAmount(9223372036854775807, 1000).String())
}
