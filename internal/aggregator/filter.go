// internal/aggregator/filter.go
package aggregator

import (
	"sort"
	"strings"
	"time"

	"github.com/rovshanmuradov/pumpwatch/internal/analysis"
	"github.com/rovshanmuradov/pumpwatch/internal/domain"
)

type SortBy string

const (
	SortNone      SortBy = "none"
	SortMarketCap SortBy = "market_cap"
	SortScore     SortBy = "score"
)

const (
	DefaultMinMarketCap = 1000.0
	DefaultMaxMarketCap = 100000.0
	DefaultMaxAge       = 24 * time.Hour
	// futureSkew tolerates upstream clocks running slightly ahead.
	futureSkew = time.Minute
)

// FilterOptions bound the filter stage. Zero values mean defaults.
type FilterOptions struct {
	MinMarketCap float64
	MaxMarketCap float64
	MaxAge       time.Duration
	Now          time.Time
	SortBy       SortBy
}

func (o FilterOptions) withDefaults() FilterOptions {
	if o.MaxMarketCap <= 0 {
		o.MinMarketCap = DefaultMinMarketCap
		o.MaxMarketCap = DefaultMaxMarketCap
	}
	if o.MaxAge <= 0 {
		o.MaxAge = DefaultMaxAge
	}
	if o.Now.IsZero() {
		o.Now = time.Now()
	}
	if o.SortBy == "" {
		o.SortBy = SortNone
	}
	return o
}

// FilterAndClean deduplicates, validates, optionally sorts and truncates tokens.
// Dedup runs first: the first occurrence of a symbol+name key claims the key
// even if the predicates then reject it. Input order is kept.
// limit <= 0 means no cap.
func FilterAndClean(tokens []domain.TokenRecord, limit int, opts FilterOptions) []domain.TokenRecord {
	opts = opts.withDefaults()

	seen := make(map[string]struct{}, len(tokens))
	out := make([]domain.TokenRecord, 0, len(tokens))
	for _, tok := range tokens {
		key := tok.DedupKey()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if !keep(tok, opts) {
			continue
		}
		out = append(out, tok)
	}

	switch opts.SortBy {
	case SortMarketCap:
		sort.SliceStable(out, func(i, j int) bool { return out[i].MarketCapUSD > out[j].MarketCapUSD })
	case SortScore:
		for i := range out {
			out[i].Score = analysis.Score(out[i], opts.Now).Total
		}
		sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	}

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func keep(tok domain.TokenRecord, opts FilterOptions) bool {
	if strings.TrimSpace(tok.Name) == "" || strings.TrimSpace(tok.Symbol) == "" {
		return false
	}
	if tok.Validate() != nil {
		return false
	}
	if tok.MarketCapUSD < opts.MinMarketCap || tok.MarketCapUSD > opts.MaxMarketCap {
		return false
	}
	age := tok.Age(opts.Now)
	if age > opts.MaxAge || age < -futureSkew {
		return false
	}
	return true
}
