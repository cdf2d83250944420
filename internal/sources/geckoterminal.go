// internal/sources/geckoterminal.go
package sources

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/pumpwatch/internal/domain"
)

const (
	GeckoTerminalName     = domain.SourceGeckoTerminal
	geckoTerminalPriority = 3
	geckoTerminalBaseURL  = "https://api.geckoterminal.com/api/v2"
	geckoTokenIDPrefix    = "solana_"
)

// geckoPoolsResponse is the JSON:API envelope of /new_pools.
type geckoPoolsResponse struct {
	Data []geckoPool `json:"data"`
}

type geckoPool struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Attributes struct {
		Name          string  `json:"name"`
		Address       string  `json:"address"`
		PoolCreatedAt string  `json:"pool_created_at"`
		MarketCapUSD  *string `json:"market_cap_usd"`
		FDVUSD        *string `json:"fdv_usd"`
		ReserveInUSD  *string `json:"reserve_in_usd"`
	} `json:"attributes"`
	Relationships struct {
		BaseToken struct {
			Data struct {
				ID   string `json:"id"`
				Type string `json:"type"`
			} `json:"data"`
		} `json:"base_token"`
	} `json:"relationships"`
}

// GeckoTerminal lists newly created Solana pools.
type GeckoTerminal struct {
	httpSource
}

func NewGeckoTerminal(opts Options) *GeckoTerminal {
	return &GeckoTerminal{httpSource: newHTTPSource(GeckoTerminalName, geckoTerminalPriority, geckoTerminalBaseURL, opts)}
}

func (g *GeckoTerminal) Fetch(ctx context.Context, q Query) ([]domain.TokenRecord, error) {
	endpoint := fmt.Sprintf("%s/networks/solana/new_pools?page=1", strings.TrimRight(g.baseURL, "/"))

	var response geckoPoolsResponse
	if err := g.getJSON(ctx, endpoint, &response); err != nil {
		return nil, err
	}

	tokens := make([]domain.TokenRecord, 0, len(response.Data))
	for _, pool := range response.Data {
		mint := strings.TrimPrefix(pool.Relationships.BaseToken.Data.ID, geckoTokenIDPrefix)
		if mint == "" {
			continue
		}
		tokens = append(tokens, g.toRecord(mint, pool))
	}

	g.logger.Debug("Fetched GeckoTerminal pools", zap.Int("pools", len(response.Data)), zap.Int("mapped", len(tokens)))
	return truncate(tokens, q.Limit), nil
}

func (g *GeckoTerminal) toRecord(mint string, pool geckoPool) domain.TokenRecord {
	name, symbol := splitPoolName(pool.Attributes.Name)
	rec := domain.TokenRecord{
		Mint:        mint,
		Name:        name,
		Symbol:      symbol,
		SourceTag:   domain.SourceGeckoTerminal,
		Verified:    true,
		ReplyCount:  g.fill.replies(),
		HolderCount: g.fill.holders(),
	}
	if ts, err := time.Parse(time.RFC3339, pool.Attributes.PoolCreatedAt); err == nil {
		rec.CreatedAt = ts
	}

	if v, ok := parseDecimal(pool.Attributes.MarketCapUSD); ok {
		rec.MarketCapUSD = v
	} else if v, ok := parseDecimal(pool.Attributes.FDVUSD); ok {
		rec.MarketCapUSD = v
	} else {
		rec.MarketCapUSD = g.fill.marketCap()
	}

	if v, ok := parseDecimal(pool.Attributes.ReserveInUSD); ok {
		rec.Liquidity = v
	} else {
		rec.Liquidity = g.fill.liquidity()
	}
	return rec
}

// splitPoolName turns "PEPE / SOL" into name "PEPE" and symbol "PEPE".
func splitPoolName(poolName string) (name, symbol string) {
	base := strings.TrimSpace(poolName)
	if i := strings.Index(base, " / "); i >= 0 {
		base = strings.TrimSpace(base[:i])
	}
	return base, strings.ToUpper(base)
}

func parseDecimal(s *string) (float64, bool) {
	if s == nil || *s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(*s, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}
