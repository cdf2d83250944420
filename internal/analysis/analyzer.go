// internal/analysis/analyzer.go
package analysis

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rovshanmuradov/pumpwatch/internal/domain"
	"github.com/rovshanmuradov/pumpwatch/internal/sources"
)

const defaultConcurrency = 4

// Enricher refreshes a token's market numbers from an authoritative source.
type Enricher interface {
	Enrich(ctx context.Context, token domain.TokenRecord) (domain.TokenRecord, error)
}

// Result is the settled outcome for one token. Err is set when enrichment
// failed; Breakdown is then computed from the unenriched record.
type Result struct {
	Token     domain.TokenRecord `json:"token"`
	Breakdown Breakdown          `json:"breakdown"`
	Err       error              `json:"-"`
}

// Analyzer scores batches of tokens with bounded parallel enrichment.
type Analyzer struct {
	enricher    Enricher
	concurrency int
	logger      *zap.Logger
	now         func() time.Time
}

// NewAnalyzer creates an analyzer. enricher may be nil.
func NewAnalyzer(enricher Enricher, concurrency int, logger *zap.Logger) *Analyzer {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{
		enricher:    enricher,
		concurrency: concurrency,
		logger:      logger.Named("analysis"),
		now:         time.Now,
	}
}

// AnalyzeBatch never fails as a whole: every token gets a Result in input order.
func (a *Analyzer) AnalyzeBatch(ctx context.Context, tokens []domain.TokenRecord) []Result {
	results := make([]Result, len(tokens))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i, token := range tokens {
		g.Go(func() error {
			results[i] = a.analyzeOne(gctx, token)
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	if failed > 0 {
		a.logger.Debug("Batch analysis finished with enrichment errors",
			zap.Int("tokens", len(tokens)),
			zap.Int("failed", failed))
	}
	return results
}

func (a *Analyzer) analyzeOne(ctx context.Context, token domain.TokenRecord) Result {
	res := Result{Token: token}

	if a.enricher != nil && !token.IsSynthetic() {
		if err := ctx.Err(); err != nil {
			res.Err = err
		} else if enriched, err := a.enricher.Enrich(ctx, token); err != nil {
			res.Err = fmt.Errorf("enrich %s: %w", token.Mint, err)
		} else {
			res.Token = enriched
		}
	}

	res.Breakdown = Score(res.Token, a.now())
	res.Token.Score = res.Breakdown.Total
	return res
}

// DexScreenerEnricher overwrites liquidity and market cap with DexScreener pair data.
type DexScreenerEnricher struct {
	client *sources.DexScreener
}

func NewDexScreenerEnricher(client *sources.DexScreener) *DexScreenerEnricher {
	return &DexScreenerEnricher{client: client}
}

func (e *DexScreenerEnricher) Enrich(ctx context.Context, token domain.TokenRecord) (domain.TokenRecord, error) {
	pair, err := e.client.LookupToken(ctx, token.Mint)
	if err != nil {
		return token, err
	}
	if pair.Liquidity.USD > 0 {
		token.Liquidity = pair.Liquidity.USD
	}
	switch {
	case pair.MarketCap > 0:
		token.MarketCapUSD = pair.MarketCap
	case pair.FDV > 0:
		token.MarketCapUSD = pair.FDV
	}
	return token, nil
}
