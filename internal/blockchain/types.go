// internal/blockchain/types.go
package blockchain

import (
	"context"
	"time"
)

// SignatureInfo is one entry of a signatures-for-address listing.
type SignatureInfo struct {
	Signature string
	Slot      uint64
	BlockTime time.Time
	Failed    bool
}

// TokenBalance is an SPL token balance snapshot from transaction meta.
type TokenBalance struct {
	AccountIndex uint16
	Mint         string
	Owner        string
	Amount       string
	Decimals     uint8
}

// Instruction is a compiled instruction with indices resolved to base58 keys.
type Instruction struct {
	ProgramID string
	Accounts  []string
	Data      []byte
	// Inner marks instructions invoked via CPI.
	Inner bool
}

// Transaction – нормализованная транзакция, не зависящая от RPC-библиотеки.
type Transaction struct {
	Signature   string
	Slot        uint64
	BlockTime   time.Time
	Failed      bool
	AccountKeys []string
	LogMessages []string

	PreBalances       []uint64
	PostBalances      []uint64
	PreTokenBalances  []TokenBalance
	PostTokenBalances []TokenBalance

	Instructions []Instruction
}

// Client определяет минимальный интерфейс чтения блокчейна для поллера.
type Client interface {
	// Ping проверяет доступность узла и возвращает его версию.
	Ping(ctx context.Context) (string, error)
	// GetSignaturesForAddress возвращает последние подписи для адреса, новые первыми.
	GetSignaturesForAddress(ctx context.Context, address string, limit int) ([]SignatureInfo, error)
	// GetTransaction возвращает разобранную транзакцию.
	GetTransaction(ctx context.Context, signature string) (*Transaction, error)
}
