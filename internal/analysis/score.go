// internal/analysis/score.go
package analysis

import (
	"math"
	"time"

	"github.com/rovshanmuradov/pumpwatch/internal/domain"
)

// Feature weights. They sum to 1 so Total stays in [0, 1].
const (
	WeightRecency      = 0.35
	WeightMarketCap    = 0.25
	WeightLiquidity    = 0.20
	WeightCommunity    = 0.10
	WeightVerification = 0.10
)

const (
	recencyWindow    = 24 * time.Hour
	marketCapFloor   = 1_000.0
	marketCapCeil    = 100_000.0
	liquidityFloor   = 100.0
	liquidityCeil    = 100_000.0
	communityCap     = 100
	ratingHighFrom   = 0.7
	ratingMediumFrom = 0.4
)

// Breakdown holds each normalized feature in [0, 1] and the weighted total.
type Breakdown struct {
	Recency      float64 `json:"recency"`
	MarketCap    float64 `json:"marketCap"`
	Liquidity    float64 `json:"liquidity"`
	Community    float64 `json:"community"`
	Verification float64 `json:"verification"`
	Total        float64 `json:"total"`
	Rating       string  `json:"rating"`
}

// Score rates a token with a fixed weighted sum:
//
//	recency       linear decay from 1 at creation to 0 after 24h
//	market cap    log10 position between $1k and $100k
//	liquidity     log10 position between $100 and $100k
//	community     reply count, saturating at 100
//	verification  1 for records from a real upstream, 0 for synthetic ones
func Score(token domain.TokenRecord, now time.Time) Breakdown {
	b := Breakdown{
		Recency:   recency(token.Age(now)),
		MarketCap: logPosition(token.MarketCapUSD, marketCapFloor, marketCapCeil),
		Liquidity: logPosition(token.Liquidity, liquidityFloor, liquidityCeil),
		Community: clamp01(float64(token.ReplyCount) / communityCap),
	}
	if token.Verified {
		b.Verification = 1
	}

	b.Total = WeightRecency*b.Recency +
		WeightMarketCap*b.MarketCap +
		WeightLiquidity*b.Liquidity +
		WeightCommunity*b.Community +
		WeightVerification*b.Verification
	b.Total = math.Round(b.Total*10000) / 10000
	b.Rating = rating(b.Total)
	return b
}

func recency(age time.Duration) float64 {
	if age <= 0 {
		return 1
	}
	return clamp01(1 - float64(age)/float64(recencyWindow))
}

func logPosition(v, floor, ceil float64) float64 {
	if v <= 0 {
		return 0
	}
	return clamp01((math.Log10(v) - math.Log10(floor)) / (math.Log10(ceil) - math.Log10(floor)))
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

func rating(total float64) string {
	switch {
	case total >= ratingHighFrom:
		return "high"
	case total >= ratingMediumFrom:
		return "medium"
	default:
		return "low"
	}
}
