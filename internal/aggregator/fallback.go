// internal/aggregator/fallback.go
package aggregator

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/rovshanmuradov/pumpwatch/internal/domain"
)

// FallbackSpacing separates consecutive synthetic creation times.
const FallbackSpacing = 25 * time.Minute

type memeTemplate struct {
	Name        string
	Symbol      string
	Description string
}

var memeTemplates = []memeTemplate{
	{"Doge Moon", "DMOON", "The goodest boy is going to the moon"},
	{"Pepe Classic", "PEPEC", "Feels good man, on Solana"},
	{"Bonk Inu", "BINU", "Bonk's little brother has arrived"},
	{"Cat Wif Hat", "CWH", "It's a cat. It has a hat."},
	{"Shiba Rocket", "SROCK", "Strapped a rocket to a shiba"},
	{"Frog Nation", "FROGN", "Ribbit to riches"},
	{"Giga Chad", "GCHAD", "Only chads hold"},
	{"Wojak Tears", "WOJAK", "Bought the top again"},
	{"Sol Pup", "SPUP", "A puppy born in a Solana block"},
	{"Banana Cat", "BCAT", "Half banana, half cat, all meme"},
	{"Moon Hamster", "MHAM", "Running on the wheel to the moon"},
	{"Based Penguin", "BPENG", "Cold blooded and based"},
}

// TemplateCount is the number of curated templates available before names repeat with a suffix.
func TemplateCount() int { return len(memeTemplates) }

// GenerateSyntheticTokens builds count placeholder records. They are never verified.
func GenerateSyntheticTokens(count int, now time.Time, rng *rand.Rand) []domain.TokenRecord {
	if count <= 0 {
		return []domain.TokenRecord{}
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(now.UnixNano()))
	}

	tokens := make([]domain.TokenRecord, 0, count)
	for i := 0; i < count; i++ {
		tpl := memeTemplates[i%len(memeTemplates)]
		name, symbol := tpl.Name, tpl.Symbol
		if round := i / len(memeTemplates); round > 0 {
			name = fmt.Sprintf("%s %d", name, round+1)
			symbol = fmt.Sprintf("%s%d", symbol, round+1)
		}

		tokens = append(tokens, domain.TokenRecord{
			Mint:         "fallback-" + uuid.NewString(),
			Name:         name,
			Symbol:       symbol,
			Description:  tpl.Description,
			CreatedAt:    now.Add(-time.Duration(i) * FallbackSpacing),
			MarketCapUSD: 1000 + rng.Float64()*49000,
			Liquidity:    500 + rng.Float64()*9500,
			ReplyCount:   rng.Intn(51),
			HolderCount:  10 + rng.Intn(491),
			SourceTag:    domain.SourceFallback,
			Verified:     false,
		})
	}
	return tokens
}

// GenerateFallback is GenerateSyntheticTokens with the current time and a fresh RNG.
func GenerateFallback(count int) []domain.TokenRecord {
	now := time.Now()
	return GenerateSyntheticTokens(count, now, rand.New(rand.NewSource(now.UnixNano())))
}
