// internal/sources/dexscreener.go
package sources

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/pumpwatch/internal/domain"
)

const (
	DexScreenerName     = domain.SourceDexScreener
	dexScreenerPriority = 2
	dexScreenerBaseURL  = "https://api.dexscreener.com"
	solanaChain         = "solana"
	defaultSearchTerm   = "pump"
)

// DexScreenerResponse представляет основную структуру ответа
type DexScreenerResponse struct {
	SchemaVersion string     `json:"schemaVersion"`
	Pairs         []PairInfo `json:"pairs"`
}

// PairInfo содержит информацию о паре
type PairInfo struct {
	ChainID       string        `json:"chainId"`
	DexID         string        `json:"dexId"`
	PairAddress   string        `json:"pairAddress"`
	BaseToken     TokenInfo     `json:"baseToken"`
	QuoteToken    TokenInfo     `json:"quoteToken"`
	PriceUSD      string        `json:"priceUsd"`
	Liquidity     LiquidityInfo `json:"liquidity"`
	FDV           float64       `json:"fdv"`
	MarketCap     float64       `json:"marketCap"`
	PairCreatedAt int64         `json:"pairCreatedAt"`
	Info          *PairMeta     `json:"info,omitempty"`
}

// TokenInfo содержит информацию о токене
type TokenInfo struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
}

// LiquidityInfo содержит информацию о ликвидности
type LiquidityInfo struct {
	USD   float64 `json:"usd"`
	Base  float64 `json:"base"`
	Quote float64 `json:"quote"`
}

type PairMeta struct {
	ImageURL string `json:"imageUrl"`
}

// DexScreener searches DexScreener pairs and keeps Solana base tokens.
type DexScreener struct {
	httpSource
}

func NewDexScreener(opts Options) *DexScreener {
	return &DexScreener{httpSource: newHTTPSource(DexScreenerName, dexScreenerPriority, dexScreenerBaseURL, opts)}
}

func (d *DexScreener) Fetch(ctx context.Context, q Query) ([]domain.TokenRecord, error) {
	term := q.Search
	if term == "" {
		term = defaultSearchTerm
	}
	endpoint := fmt.Sprintf("%s/latest/dex/search?q=%s", strings.TrimRight(d.baseURL, "/"), url.QueryEscape(term))

	var response DexScreenerResponse
	if err := d.getJSON(ctx, endpoint, &response); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(response.Pairs))
	tokens := make([]domain.TokenRecord, 0, len(response.Pairs))
	for _, pair := range response.Pairs {
		if pair.ChainID != solanaChain || pair.BaseToken.Address == "" {
			continue
		}
		if _, dup := seen[pair.BaseToken.Address]; dup {
			continue
		}
		seen[pair.BaseToken.Address] = struct{}{}
		tokens = append(tokens, d.toRecord(pair))
	}

	d.logger.Debug("Fetched DexScreener pairs",
		zap.String("query", term),
		zap.Int("pairs", len(response.Pairs)),
		zap.Int("solana_tokens", len(tokens)))

	if q.Offset > 0 {
		if q.Offset >= len(tokens) {
			return []domain.TokenRecord{}, nil
		}
		tokens = tokens[q.Offset:]
	}
	return truncate(tokens, q.Limit), nil
}

func (d *DexScreener) toRecord(pair PairInfo) domain.TokenRecord {
	rec := domain.TokenRecord{
		Mint:        pair.BaseToken.Address,
		Name:        pair.BaseToken.Name,
		Symbol:      pair.BaseToken.Symbol,
		SourceTag:   domain.SourceDexScreener,
		Verified:    true,
		ReplyCount:  d.fill.replies(),
		HolderCount: d.fill.holders(),
	}
	if pair.PairCreatedAt > 0 {
		rec.CreatedAt = time.UnixMilli(pair.PairCreatedAt)
	}
	if pair.Info != nil {
		rec.ImageURI = pair.Info.ImageURL
	}

	switch {
	case pair.MarketCap > 0:
		rec.MarketCapUSD = pair.MarketCap
	case pair.FDV > 0:
		rec.MarketCapUSD = pair.FDV
	default:
		rec.MarketCapUSD = d.fill.marketCap()
	}

	if pair.Liquidity.USD > 0 {
		rec.Liquidity = pair.Liquidity.USD
	} else {
		rec.Liquidity = d.fill.liquidity()
	}
	return rec
}

// LookupToken returns the Solana pair with the deepest liquidity for mint.
func (d *DexScreener) LookupToken(ctx context.Context, mint string) (*PairInfo, error) {
	endpoint := fmt.Sprintf("%s/latest/dex/tokens/%s", strings.TrimRight(d.baseURL, "/"), url.PathEscape(mint))

	var response DexScreenerResponse
	if err := d.getJSON(ctx, endpoint, &response); err != nil {
		return nil, err
	}

	var best *PairInfo
	maxLiquidity := -1.0
	for i := range response.Pairs {
		pair := &response.Pairs[i]
		if pair.ChainID != solanaChain {
			continue
		}
		if pair.Liquidity.USD > maxLiquidity {
			maxLiquidity = pair.Liquidity.USD
			best = pair
		}
	}
	if best == nil {
		return nil, fmt.Errorf("no solana pair found for token %s", mint)
	}
	return best, nil
}
