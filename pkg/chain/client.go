// Package chain wraps balance queries and signed transfers against the
// remote blockchain RPC, with confirmation-wait-with-timeout semantics.
package chain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/creasty/defaults"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/promptcash/paybot/pkg/payments"
)

// tokenDecimals is the native token's on-chain precision.
const tokenDecimals = 18

// Receipt is the outcome of a transfer submission. Status is pending when the
// confirmation wait timed out: the transfer was broadcast and may still land,
// so callers must never resubmit.
type Receipt struct {
	Hash   string
	Status payments.TxStatus
	Fee    decimal.Decimal
	Mocked bool
}

// Client is the boundary the payment engine uses to reach the remote ledger.
type Client interface {
	GetBalance(ctx context.Context, address string) (decimal.Decimal, error)
	Transfer(ctx context.Context, privateKey []byte, to string, amount decimal.Decimal) (*Receipt, error)
	EstimateFee(ctx context.Context) decimal.Decimal
	Mocked() bool
}

// Options configures the RPC client. Zero fields take their defaults.
type Options struct {
	ChainID         int64         `default:"31337"`
	GasLimit        uint64        `default:"21000"`
	ConfirmTimeout  time.Duration `default:"60s"`
	PollingInterval time.Duration `default:"2s"`
	FallbackFee     string        `default:"0.0001"`
	MaxGasPrice     string
}

// RPCClient talks to a real node over JSON-RPC.
type RPCClient struct {
	client *ethclient.Client
	opts   Options
	logger *zap.Logger
}

// NewRPCClient dials the RPC endpoint and verifies it responds.
func NewRPCClient(ctx context.Context, rpcURL string, opts Options, logger *zap.Logger) (*RPCClient, error) {
	if err := defaults.Set(&opts); err != nil {
		return nil, fmt.Errorf("apply option defaults: %w", err)
	}

	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to chain RPC: %w", err)
	}
	if _, err := client.ChainID(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("chain RPC unreachable: %w", err)
	}

	logger.Info("Connected to chain RPC",
		zap.String("rpc_url", rpcURL),
		zap.Int64("chain_id", opts.ChainID))

	return &RPCClient{client: client, opts: opts, logger: logger}, nil
}

// Close closes the underlying RPC connection.
func (c *RPCClient) Close() {
	c.client.Close()
}

// Mocked reports whether results are fabricated. Always false here.
func (c *RPCClient) Mocked() bool { return false }

// GetBalance returns the native token balance of an address.
func (c *RPCClient) GetBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	wei, err := c.client.BalanceAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get balance: %w", err)
	}
	return fromWei(wei), nil
}

// Transfer signs and broadcasts a native transfer, then waits for the receipt
// up to the configured confirmation timeout. On timeout the transaction hash
// is returned with pending status rather than an error.
func (c *RPCClient) Transfer(ctx context.Context, privateKey []byte, to string, amount decimal.Decimal) (*Receipt, error) {
	key, err := crypto.ToECDSA(privateKey)
	if err != nil {
		return nil, fmt.Errorf("invalid signing key: %w", err)
	}
	from := crypto.PubkeyToAddress(key.PublicKey)

	nonce, err := c.client.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}

	gasPrice, err := c.gasPrice(ctx)
	if err != nil {
		return nil, err
	}

	tx := types.NewTransaction(nonce, common.HexToAddress(to), toWei(amount), c.opts.GasLimit, gasPrice, nil)
	signed, err := types.SignTx(tx, types.NewEIP155Signer(big.NewInt(c.opts.ChainID)), key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := c.client.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("failed to broadcast transaction: %w", err)
	}

	hash := signed.Hash().Hex()
	fee := fromWei(new(big.Int).Mul(gasPrice, big.NewInt(int64(c.opts.GasLimit))))

	status, err := c.waitConfirmed(ctx, signed.Hash())
	if err != nil {
		// The transfer is already on the wire; report pending, never failure.
		c.logger.Warn("Confirmation wait ended without receipt",
			zap.String("tx_hash", hash),
			zap.Error(err))
		return &Receipt{Hash: hash, Status: payments.TxStatusPending, Fee: fee}, nil
	}

	return &Receipt{Hash: hash, Status: status, Fee: fee}, nil
}

// waitConfirmed polls for the receipt until it appears or the confirmation
// timeout elapses.
func (c *RPCClient) waitConfirmed(ctx context.Context, hash common.Hash) (payments.TxStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.ConfirmTimeout)
	defer cancel()

	ticker := time.NewTicker(c.opts.PollingInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.client.TransactionReceipt(ctx, hash)
		if err == nil && receipt != nil {
			if receipt.Status == types.ReceiptStatusSuccessful {
				return payments.TxStatusConfirmed, nil
			}
			return payments.TxStatusFailed, nil
		}

		select {
		case <-ctx.Done():
			return payments.TxStatusPending, ctx.Err()
		case <-ticker.C:
		}
	}
}

// EstimateFee suggests the fee for one transfer, falling back to a fixed
// estimate when the node is unhelpful.
func (c *RPCClient) EstimateFee(ctx context.Context) decimal.Decimal {
	gasPrice, err := c.gasPrice(ctx)
	if err != nil {
		c.logger.Debug("Fee estimate fell back to fixed value", zap.Error(err))
		return c.fallbackFee()
	}
	return fromWei(new(big.Int).Mul(gasPrice, big.NewInt(int64(c.opts.GasLimit))))
}

func (c *RPCClient) gasPrice(ctx context.Context) (*big.Int, error) {
	gasPrice, err := c.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to suggest gas price: %w", err)
	}

	if c.opts.MaxGasPrice != "" {
		maxGasPrice, ok := new(big.Int).SetString(c.opts.MaxGasPrice, 10)
		if ok && gasPrice.Cmp(maxGasPrice) > 0 {
			c.logger.Warn("Suggested gas price exceeds maximum",
				zap.String("suggested", gasPrice.String()),
				zap.String("max", maxGasPrice.String()))
			gasPrice = maxGasPrice
		}
	}
	return gasPrice, nil
}

func (c *RPCClient) fallbackFee() decimal.Decimal {
	fee, err := decimal.NewFromString(c.opts.FallbackFee)
	if err != nil {
		return decimal.New(1, -4)
	}
	return fee
}

func toWei(amount decimal.Decimal) *big.Int {
	return amount.Shift(tokenDecimals).BigInt()
}

func fromWei(wei *big.Int) decimal.Decimal {
	return decimal.NewFromBigInt(wei, -tokenDecimals)
}
