// internal/sources/pumpfun.go
package sources

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/pumpwatch/internal/domain"
)

const (
	PumpFunName     = domain.SourcePumpFun
	pumpFunPriority = 1
	pumpFunBaseURL  = "https://frontend-api.pump.fun"
	pumpFunDefLimit = 50
)

// pumpFunCoin is one element of the /coins listing.
type pumpFunCoin struct {
	Mint               string   `json:"mint"`
	Name               string   `json:"name"`
	Symbol             string   `json:"symbol"`
	Description        string   `json:"description"`
	ImageURI           string   `json:"image_uri"`
	Creator            string   `json:"creator"`
	BondingCurve       string   `json:"bonding_curve"`
	CreatedTimestamp   int64    `json:"created_timestamp"`
	USDMarketCap       *float64 `json:"usd_market_cap"`
	VirtualSOLReserves *float64 `json:"virtual_sol_reserves"`
	ReplyCount         *int     `json:"reply_count"`
}

// PumpFun reads the pump.fun frontend coin listing.
type PumpFun struct {
	httpSource
}

func NewPumpFun(opts Options) *PumpFun {
	return &PumpFun{httpSource: newHTTPSource(PumpFunName, pumpFunPriority, pumpFunBaseURL, opts)}
}

func (p *PumpFun) Fetch(ctx context.Context, q Query) ([]domain.TokenRecord, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = pumpFunDefLimit
	}

	params := url.Values{}
	params.Set("offset", strconv.Itoa(q.Offset))
	params.Set("limit", strconv.Itoa(limit))
	params.Set("sort", "created_timestamp")
	params.Set("order", "DESC")
	params.Set("includeNsfw", "false")
	if q.Search != "" {
		params.Set("searchTerm", q.Search)
	}
	endpoint := fmt.Sprintf("%s/coins?%s", strings.TrimRight(p.baseURL, "/"), params.Encode())

	var coins []pumpFunCoin
	if err := p.getJSON(ctx, endpoint, &coins); err != nil {
		return nil, err
	}

	tokens := make([]domain.TokenRecord, 0, len(coins))
	for _, c := range coins {
		if c.Mint == "" {
			continue
		}
		tokens = append(tokens, p.toRecord(c))
	}

	p.logger.Debug("Fetched pump.fun coins", zap.Int("received", len(coins)), zap.Int("mapped", len(tokens)))
	return truncate(tokens, limit), nil
}

func (p *PumpFun) toRecord(c pumpFunCoin) domain.TokenRecord {
	rec := domain.TokenRecord{
		Mint:         c.Mint,
		Name:         c.Name,
		Symbol:       c.Symbol,
		Description:  c.Description,
		ImageURI:     c.ImageURI,
		Creator:      c.Creator,
		BondingCurve: c.BondingCurve,
		SourceTag:    domain.SourcePumpFun,
		Verified:     true,
		HolderCount:  p.fill.holders(),
	}
	if c.CreatedTimestamp > 0 {
		rec.CreatedAt = time.UnixMilli(c.CreatedTimestamp)
	}

	if c.USDMarketCap != nil && *c.USDMarketCap > 0 {
		rec.MarketCapUSD = *c.USDMarketCap
	} else {
		rec.MarketCapUSD = p.fill.marketCap()
	}

	// виртуальные резервы приходят в лампортах
	if c.VirtualSOLReserves != nil && *c.VirtualSOLReserves > 0 {
		rec.Liquidity = *c.VirtualSOLReserves / lamportsPerSOL * p.solPrice
	} else {
		rec.Liquidity = p.fill.liquidity()
	}

	if c.ReplyCount != nil {
		rec.ReplyCount = *c.ReplyCount
	} else {
		rec.ReplyCount = p.fill.replies()
	}
	return rec
}
