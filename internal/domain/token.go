// internal/domain/token.go
package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Source tags identify where a TokenRecord came from.
const (
	SourcePumpFun       = "pumpfun"
	SourceDexScreener   = "dexscreener"
	SourceGeckoTerminal = "geckoterminal"
	SourceChain         = "chain"

	// Synthetic tags. Records carrying them are never verified.
	SourceFallback           = "fallback"
	SourceEnhancedSimulation = "enhanced-simulation"
)

var ErrUnverifiedRealTag = errors.New("unverified record must carry a synthetic source tag")

// TokenRecord is one discovered token. Records are rebuilt on every fetch
// cycle and never updated in place.
type TokenRecord struct {
	Mint         string    `json:"mint"`
	Name         string    `json:"name"`
	Symbol       string    `json:"symbol"`
	Description  string    `json:"description,omitempty"`
	ImageURI     string    `json:"imageUri,omitempty"`
	Creator      string    `json:"creator,omitempty"`
	BondingCurve string    `json:"bondingCurve,omitempty"`
	Signature    string    `json:"signature,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	MarketCapUSD float64   `json:"marketCapUsd"`
	Liquidity    float64   `json:"liquidity"`
	ReplyCount   int       `json:"replyCount"`
	HolderCount  int       `json:"holderCount"`
	SourceTag    string    `json:"sourceTag"`
	Verified     bool      `json:"verified"`
	Score        float64   `json:"score,omitempty"`
}

// IsSyntheticTag reports whether tag marks generated data.
func IsSyntheticTag(tag string) bool {
	return tag == SourceFallback || tag == SourceEnhancedSimulation
}

// IsSynthetic reports whether the record was produced by a generator.
func (t TokenRecord) IsSynthetic() bool {
	return IsSyntheticTag(t.SourceTag)
}

// Validate checks the provenance invariant.
func (t TokenRecord) Validate() error {
	if !t.Verified && !t.IsSynthetic() {
		return fmt.Errorf("%w: mint=%s tag=%q", ErrUnverifiedRealTag, t.Mint, t.SourceTag)
	}
	if t.Verified && t.IsSynthetic() {
		return fmt.Errorf("synthetic record %s marked verified", t.Mint)
	}
	return nil
}

// DedupKey is the lower-cased symbol+name used to collapse duplicates across sources.
func (t TokenRecord) DedupKey() string {
	return strings.ToLower(t.Symbol + t.Name)
}

// Age returns how long ago the token was created relative to now.
func (t TokenRecord) Age(now time.Time) time.Duration {
	return now.Sub(t.CreatedAt)
}

// AggregatedResult is the output of one orchestrated fetch.
type AggregatedResult struct {
	Tokens    []TokenRecord `json:"tokens"`
	Sources   []string      `json:"sources"`
	IsReal    bool          `json:"isReal"`
	FetchedAt time.Time     `json:"fetchedAt"`
}

// Find returns the token with the given mint.
func (r *AggregatedResult) Find(mint string) (TokenRecord, bool) {
	if r == nil {
		return TokenRecord{}, false
	}
	for _, t := range r.Tokens {
		if t.Mint == mint {
			return t, true
		}
	}
	return TokenRecord{}, false
}
