// internal/poller/classify.go
package poller

import (
	"math"
	"strings"
	"time"

	"github.com/rovshanmuradov/pumpwatch/internal/blockchain"
	"github.com/rovshanmuradov/pumpwatch/internal/domain"
	"github.com/rovshanmuradov/pumpwatch/internal/pumpfun"
)

const (
	lamportsPerSOL = 1e9

	tokenProgramID     = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
	token2022ProgramID = "TokenzQdBNbLqP5VEhdkAS6EPFLC1tA3hiXZ7i1wuj1X"

	// SPL token instruction tags
	initializeMintTag  = 0
	initializeMint2Tag = 20
)

// creationMarkers are log fragments that suggest a mint was created.
var creationMarkers = []string{
	"Instruction: Create",
	"InitializeMint",
	"InitializeMint2",
	"Instruction: InitializeMint",
}

// IsCreationTransaction is a heuristic: a log line mentions mint creation or
// a post-balance mint is missing from the pre-balances.
func IsCreationTransaction(tx *blockchain.Transaction) bool {
	if tx == nil {
		return false
	}
	for _, line := range tx.LogMessages {
		for _, marker := range creationMarkers {
			if strings.Contains(line, marker) {
				return true
			}
		}
	}
	return newMint(tx) != ""
}

// newMint returns the first post-balance mint absent from pre-balances.
func newMint(tx *blockchain.Transaction) string {
	pre := make(map[string]struct{}, len(tx.PreTokenBalances))
	for _, b := range tx.PreTokenBalances {
		pre[b.Mint] = struct{}{}
	}
	for _, b := range tx.PostTokenBalances {
		if b.Mint == "" {
			continue
		}
		if _, ok := pre[b.Mint]; !ok {
			return b.Mint
		}
	}
	return ""
}

// Extractor turns a creation transaction into a best-effort TokenRecord.
type Extractor struct {
	SOLPrice float64
	// MarketCapFactor scales the SOL moved by the fee payer into a market cap guess.
	MarketCapFactor float64
	MinMarketCap    float64
	MaxMarketCap    float64
}

func DefaultExtractor() Extractor {
	return Extractor{
		SOLPrice:        150,
		MarketCapFactor: 10,
		MinMarketCap:    1000,
		MaxMarketCap:    100000,
	}
}

// ExtractToken uses DefaultExtractor.
func ExtractToken(tx *blockchain.Transaction, now time.Time) (domain.TokenRecord, error) {
	return DefaultExtractor().Extract(tx, now)
}

// Extract finds the mint (new post-balance mint, then the pump.fun create
// instruction, then an SPL InitializeMint) and fills the remaining fields.
// Liquidity is the fee payer's SOL delta converted to USD.
func (e Extractor) Extract(tx *blockchain.Transaction, now time.Time) (domain.TokenRecord, error) {
	if tx == nil {
		return domain.TokenRecord{}, &ParseError{Err: ErrNoMint}
	}

	mint := newMint(tx)
	create, createIx := findCreate(tx)
	if mint == "" && createIx != nil && len(createIx.Accounts) > pumpfun.CreateAccountMint {
		mint = createIx.Accounts[pumpfun.CreateAccountMint]
	}
	if mint == "" {
		mint = findInitializeMint(tx)
	}
	if mint == "" {
		return domain.TokenRecord{}, &ParseError{Signature: tx.Signature, Err: ErrNoMint}
	}

	rec := domain.TokenRecord{
		Mint:      mint,
		Signature: tx.Signature,
		CreatedAt: now,
		SourceTag: domain.SourceChain,
		Verified:  true,
	}
	if !tx.BlockTime.IsZero() {
		rec.CreatedAt = tx.BlockTime
	}
	if len(tx.AccountKeys) > 0 {
		rec.Creator = tx.AccountKeys[0]
	}

	if create != nil && createIx.Accounts[pumpfun.CreateAccountMint] == mint {
		rec.Name = strings.TrimSpace(create.Name)
		rec.Symbol = strings.TrimSpace(create.Symbol)
		rec.ImageURI = create.URI
		if len(createIx.Accounts) > pumpfun.CreateAccountBondingCurve {
			rec.BondingCurve = createIx.Accounts[pumpfun.CreateAccountBondingCurve]
		}
	}
	if rec.Name == "" || rec.Symbol == "" {
		rec.Name, rec.Symbol = placeholderNames(mint)
	}

	liquiditySOL := feePayerDelta(tx)
	rec.Liquidity = liquiditySOL * e.SOLPrice
	rec.MarketCapUSD = e.estimateMarketCap(liquiditySOL)
	rec.HolderCount = holderCount(tx, mint)
	return rec, nil
}

func findCreate(tx *blockchain.Transaction) (*pumpfun.CreateArgs, *blockchain.Instruction) {
	for i := range tx.Instructions {
		ix := &tx.Instructions[i]
		if !pumpfun.IsCreateInstruction(ix.ProgramID, ix.Data) || len(ix.Accounts) == 0 {
			continue
		}
		args, err := pumpfun.DecodeCreateArgs(ix.Data)
		if err != nil {
			// аргументы не разобрались, но аккаунты всё равно полезны
			return nil, ix
		}
		return args, ix
	}
	return nil, nil
}

func findInitializeMint(tx *blockchain.Transaction) string {
	for _, ix := range tx.Instructions {
		if ix.ProgramID != tokenProgramID && ix.ProgramID != token2022ProgramID {
			continue
		}
		if len(ix.Data) == 0 || len(ix.Accounts) == 0 {
			continue
		}
		if ix.Data[0] == initializeMintTag || ix.Data[0] == initializeMint2Tag {
			return ix.Accounts[0]
		}
	}
	return ""
}

func placeholderNames(mint string) (name, symbol string) {
	short := mint
	if len(short) > 4 {
		short = short[:4]
	}
	return "Token " + short, strings.ToUpper(short)
}

func feePayerDelta(tx *blockchain.Transaction) float64 {
	if len(tx.PreBalances) == 0 || len(tx.PostBalances) == 0 {
		return 0
	}
	pre, post := tx.PreBalances[0], tx.PostBalances[0]
	if pre > post {
		return float64(pre-post) / lamportsPerSOL
	}
	return float64(post-pre) / lamportsPerSOL
}

func (e Extractor) estimateMarketCap(liquiditySOL float64) float64 {
	estimate := liquiditySOL * e.SOLPrice * e.MarketCapFactor
	return math.Min(math.Max(estimate, e.MinMarketCap), e.MaxMarketCap)
}

func holderCount(tx *blockchain.Transaction, mint string) int {
	owners := make(map[string]struct{})
	for _, b := range tx.PostTokenBalances {
		if b.Mint == mint && b.Owner != "" && b.Amount != "0" {
			owners[b.Owner] = struct{}{}
		}
	}
	return len(owners)
}
