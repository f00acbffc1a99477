package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/lingyuqian0301/ev-stage-2/internal/config"
	"github.com/lingyuqian0301/ev-stage-2/internal/logger"
)

// Backend 付款所需的节点接口，*ethclient.Client 满足
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error)
}

// Manager 结算付款账户
type Manager struct {
	mu      sync.Mutex // 串行化签名
	backend Backend
	key     *ecdsa.PrivateKey
	from    common.Address
	config  config.ChainConfig
	closer  func()
}

// NewManager 连接 RPC 节点并校验链ID
func NewManager(ctx context.Context, cfg config.ChainConfig) (*Manager, error) {
	if cfg.RpcUrl == "" {
		return nil, fmt.Errorf("no RPC URL configured")
	}

	logger.Info("Creating chain client connection (id: %d, RPC: %s)", cfg.ChainId, cfg.RpcUrl)
	client, err := ethclient.DialContext(ctx, cfg.RpcUrl)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to chain client: %w", err)
	}

	m, err := NewManagerWithBackend(client, cfg)
	if err != nil {
		client.Close()
		return nil, err
	}
	m.closer = client.Close

	// 测试连接
	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("client connection test failed: %w", err)
	}
	if chainID.Int64() != cfg.ChainId {
		client.Close()
		return nil, fmt.Errorf("chain id mismatch: node reports %s, configured %d", chainID, cfg.ChainId)
	}

	logger.Info("Successfully initialized chain client, payer %s", m.from.Hex())
	return m, nil
}

// NewManagerWithBackend 使用给定节点接口创建付款账户
func NewManagerWithBackend(backend Backend, cfg config.ChainConfig) (*Manager, error) {
	key, err := ParsePrivateKey(cfg.PrivateKey)
	if err != nil {
		return nil, err
	}
	if cfg.AmountScale <= 0 {
		return nil, fmt.Errorf("invalid amount scale %d", cfg.AmountScale)
	}
	return &Manager{
		backend: backend,
		key:     key,
		from:    crypto.PubkeyToAddress(key.PublicKey),
		config:  cfg,
	}, nil
}

// From 付款地址
func (m *Manager) From() common.Address {
	return m.from
}

// SignedTransfer 已签名、尚未确认的转账
type SignedTransfer struct {
	Hash  string
	Nonce uint64
	Raw   string // 0x 开头的 RLP 编码，重发时原样使用
}

// TransferStatus 已发送转账的链上状态
type TransferStatus string

const (
	TransferPending   TransferStatus = "pending"   // 未上链，可原样重发
	TransferConfirmed TransferStatus = "confirmed" // 已上链且执行成功
	TransferReverted  TransferStatus = "reverted"  // 已上链但执行失败
	TransferDropped   TransferStatus = "dropped"   // nonce 已被其他交易占用，本交易不会上链
)

// SignTransfer 签名向 recipient 转账 amount*amount_scale wei 的交易，不发送
func (m *Manager) SignTransfer(ctx context.Context, recipient string, amount int64) (SignedTransfer, error) {
	to, err := ParseAddress(recipient)
	if err != nil {
		return SignedTransfer{}, err
	}
	if amount <= 0 {
		return SignedTransfer{}, fmt.Errorf("invalid transfer amount %d", amount)
	}
	value := ScaleAmount(amount, m.config.AmountScale)

	m.mu.Lock()
	defer m.mu.Unlock()

	nonce, err := m.backend.PendingNonceAt(ctx, m.from)
	if err != nil {
		return SignedTransfer{}, fmt.Errorf("failed to get nonce: %w", err)
	}
	gasPrice, err := m.backend.SuggestGasPrice(ctx)
	if err != nil {
		return SignedTransfer{}, fmt.Errorf("failed to suggest gas price: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    value,
		Gas:      m.config.GasLimit,
		GasPrice: gasPrice,
	})
	signer := types.LatestSignerForChainID(big.NewInt(m.config.ChainId))
	signed, err := types.SignTx(tx, signer, m.key)
	if err != nil {
		return SignedTransfer{}, fmt.Errorf("failed to sign transaction: %w", err)
	}
	raw, err := signed.MarshalBinary()
	if err != nil {
		return SignedTransfer{}, fmt.Errorf("failed to encode transaction: %w", err)
	}

	logger.Debug("Signed transfer of %s wei to %s, tx %s, nonce %d", value, to.Hex(), signed.Hash().Hex(), nonce)
	return SignedTransfer{
		Hash:  signed.Hash().Hex(),
		Nonce: nonce,
		Raw:   hexutil.Encode(raw),
	}, nil
}

// Broadcast 发送已签名交易。节点已持有同一交易时视为成功
func (m *Manager) Broadcast(ctx context.Context, raw string) error {
	data, err := hexutil.Decode(raw)
	if err != nil {
		return fmt.Errorf("failed to decode transaction: %w", err)
	}
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(data); err != nil {
		return fmt.Errorf("failed to decode transaction: %w", err)
	}

	if err := m.backend.SendTransaction(ctx, tx); err != nil {
		if strings.Contains(err.Error(), "already known") {
			logger.Debug("Transaction %s already known to node", tx.Hash().Hex())
			return nil
		}
		return fmt.Errorf("failed to send transaction %s: %w", tx.Hash().Hex(), err)
	}

	logger.Info("Transfer sent, tx %s, nonce %d", tx.Hash().Hex(), tx.Nonce())
	return nil
}

// TransferStatus 查询已发送交易的状态。
// 没有回执且付款账户已确认的 nonce 超过 nonce 时，交易不可能再上链
func (m *Manager) TransferStatus(ctx context.Context, hash string, nonce uint64) (TransferStatus, error) {
	txHash := common.HexToHash(hash)

	status, found, err := m.receiptStatus(ctx, txHash)
	if err != nil || found {
		return status, err
	}

	confirmed, err := m.backend.NonceAt(ctx, m.from, nil)
	if err != nil {
		return "", fmt.Errorf("failed to get confirmed nonce: %w", err)
	}
	if confirmed <= nonce {
		return TransferPending, nil
	}

	// 查询回执与 nonce 之间交易可能刚好上链
	status, found, err = m.receiptStatus(ctx, txHash)
	if err != nil || found {
		return status, err
	}
	return TransferDropped, nil
}

func (m *Manager) receiptStatus(ctx context.Context, hash common.Hash) (TransferStatus, bool, error) {
	receipt, err := m.backend.TransactionReceipt(ctx, hash)
	if errors.Is(err, ethereum.NotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get receipt for %s: %w", hash.Hex(), err)
	}
	if receipt.Status == types.ReceiptStatusSuccessful {
		return TransferConfirmed, true, nil
	}
	return TransferReverted, true, nil
}

// Close 关闭节点连接
func (m *Manager) Close() {
	if m.closer != nil {
		m.closer()
	}
}

// ScaleAmount 账本金额换算为 wei
func ScaleAmount(amount, scale int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(amount), big.NewInt(scale))
}

// ParseAddress 校验十六进制地址并返回规范形式
func ParseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	addr := common.HexToAddress(s)
	if addr == (common.Address{}) {
		return common.Address{}, errors.New("zero address")
	}
	return addr, nil
}

// ParsePrivateKey 解析十六进制私钥，可带 0x 前缀
func ParsePrivateKey(s string) (*ecdsa.PrivateKey, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	return key, nil
}
