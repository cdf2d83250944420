// internal/blockchain/solbc/client.go
package solbc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/pumpwatch/internal/blockchain"
	"github.com/rovshanmuradov/pumpwatch/internal/metrics"
)

// Client – тонкий адаптер для чтения блокчейна Solana через solana-go.
type Client struct {
	rpc     *rpc.Client
	url     string
	logger  *zap.Logger
	metrics *metrics.Collector
}

// NewClient создаёт новый клиент, принимая RPC URL и логгер через dependency injection.
func NewClient(rpcURL string, logger *zap.Logger, collector *metrics.Collector) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		rpc:     rpc.New(rpcURL),
		url:     rpcURL,
		logger:  logger.Named("solbc-client"),
		metrics: collector,
	}
}

// Ping вызывает getVersion.
func (c *Client) Ping(ctx context.Context) (string, error) {
	defer c.observe("getVersion", time.Now())

	version, err := c.rpc.GetVersion(ctx)
	if err != nil {
		c.logger.Debug("GetVersion error", zap.Error(err))
		return "", NewError(fmt.Errorf("%w: %v", ErrConnectionFailed, err), c.url, "getVersion")
	}
	if version == nil {
		return "", NewError(ErrInvalidResponse, c.url, "getVersion")
	}
	return version.SolanaCore, nil
}

// GetSignaturesForAddress получает последние подписи программы.
func (c *Client) GetSignaturesForAddress(ctx context.Context, address string, limit int) ([]blockchain.SignatureInfo, error) {
	pubkey, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return nil, fmt.Errorf("invalid address %q: %w", address, err)
	}

	defer c.observe("getSignaturesForAddress", time.Now())

	opts := &rpc.GetSignaturesForAddressOpts{
		Commitment: rpc.CommitmentConfirmed,
	}
	if limit > 0 {
		opts.Limit = &limit
	}

	result, err := c.rpc.GetSignaturesForAddressWithOpts(ctx, pubkey, opts)
	if err != nil {
		c.logger.Debug("GetSignaturesForAddress error", zap.String("address", address), zap.Error(err))
		return nil, NewError(err, c.url, "getSignaturesForAddress")
	}

	out := make([]blockchain.SignatureInfo, 0, len(result))
	for _, sig := range result {
		if sig == nil {
			continue
		}
		info := blockchain.SignatureInfo{
			Signature: sig.Signature.String(),
			Slot:      sig.Slot,
			Failed:    sig.Err != nil,
		}
		if sig.BlockTime != nil {
			info.BlockTime = sig.BlockTime.Time()
		}
		out = append(out, info)
	}
	return out, nil
}

// GetTransaction получает транзакцию в base64 и нормализует её.
func (c *Client) GetTransaction(ctx context.Context, signature string) (*blockchain.Transaction, error) {
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return nil, fmt.Errorf("invalid signature %q: %w", signature, err)
	}

	defer c.observe("getTransaction", time.Now())

	maxVersion := uint64(0)
	result, err := c.rpc.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Encoding:                       solana.EncodingBase64,
		Commitment:                     rpc.CommitmentConfirmed,
		MaxSupportedTransactionVersion: &maxVersion,
	})
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, NewError(ErrTransactionNotFound, c.url, "getTransaction")
		}
		c.logger.Debug("GetTransaction error", zap.String("signature", signature), zap.Error(err))
		return nil, NewError(err, c.url, "getTransaction")
	}
	if result == nil || result.Transaction == nil {
		return nil, NewError(ErrTransactionNotFound, c.url, "getTransaction")
	}

	tx, err := result.Transaction.GetTransaction()
	if err != nil {
		return nil, NewError(fmt.Errorf("%w: decode: %v", ErrInvalidResponse, err), c.url, "getTransaction")
	}

	normalized := Normalize(signature, tx, result.Meta)
	normalized.Slot = result.Slot
	if result.BlockTime != nil {
		normalized.BlockTime = result.BlockTime.Time()
	}
	return normalized, nil
}

func (c *Client) observe(method string, start time.Time) {
	c.metrics.ObserveRPC(method, time.Since(start))
}

// Гарантируем, что Client реализует интерфейс blockchain.Client.
var _ blockchain.Client = (*Client)(nil)

// Close releases the underlying RPC transport.
func (c *Client) Close() error {
	return c.rpc.Close()
}
