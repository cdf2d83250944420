package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/pumpwatch/internal/domain"
)

// Format is the export file format
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// ParseFormat accepts "csv" or "json"; anything else is an error.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatCSV, FormatJSON:
		return Format(s), nil
	default:
		return "", fmt.Errorf("unsupported format: %s", s)
	}
}

// Options configures which detections are written and where.
type Options struct {
	Format       Format
	StartTime    time.Time
	EndTime      time.Time
	SourceFilter string // only records with this source tag
	OnlyReal     bool   // skip synthetic records
	OutputDir    string
}

// DetectionExporter writes detected tokens to disk.
type DetectionExporter struct {
	logger *zap.Logger
	now    func() time.Time
}

func NewDetectionExporter(logger *zap.Logger) *DetectionExporter {
	return &DetectionExporter{
		logger: logger.Named("export"),
		now:    time.Now,
	}
}

// Export writes the matching tokens, oldest first, and returns the file path.
func (de *DetectionExporter) Export(tokens []domain.TokenRecord, options Options) (string, error) {
	filtered := filterTokens(tokens, options)
	if len(filtered) == 0 {
		return "", fmt.Errorf("no detections match the export criteria")
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].CreatedAt.Before(filtered[j].CreatedAt)
	})

	if err := os.MkdirAll(options.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	outputPath := filepath.Join(options.OutputDir, de.filename(options))

	var err error
	switch options.Format {
	case FormatCSV:
		err = writeCSV(filtered, outputPath)
	case FormatJSON:
		err = de.writeJSON(filtered, outputPath)
	default:
		err = fmt.Errorf("unsupported format: %s", options.Format)
	}
	if err != nil {
		return "", err
	}

	de.logger.Info("Detections exported",
		zap.String("file", outputPath),
		zap.Int("count", len(filtered)),
		zap.String("format", string(options.Format)))
	return outputPath, nil
}

func filterTokens(tokens []domain.TokenRecord, options Options) []domain.TokenRecord {
	var filtered []domain.TokenRecord
	for _, tok := range tokens {
		if !options.StartTime.IsZero() && tok.CreatedAt.Before(options.StartTime) {
			continue
		}
		if !options.EndTime.IsZero() && tok.CreatedAt.After(options.EndTime) {
			continue
		}
		if options.SourceFilter != "" && tok.SourceTag != options.SourceFilter {
			continue
		}
		if options.OnlyReal && tok.IsSynthetic() {
			continue
		}
		filtered = append(filtered, tok)
	}
	return filtered
}

func (de *DetectionExporter) filename(options Options) string {
	prefix := "detections_all"
	if options.SourceFilter != "" {
		prefix = "detections_" + options.SourceFilter
	}
	return fmt.Sprintf("%s_%s.%s", prefix, de.now().Format("20060102_150405"), options.Format)
}

// CSVHeaders matches the column order of tokenRow.
func CSVHeaders() []string {
	return []string{
		"created_at", "mint", "symbol", "name", "source", "verified",
		"market_cap_usd", "liquidity", "holders", "replies", "creator", "signature",
	}
}

func tokenRow(tok domain.TokenRecord) []string {
	return []string{
		tok.CreatedAt.UTC().Format(time.RFC3339),
		tok.Mint,
		tok.Symbol,
		tok.Name,
		tok.SourceTag,
		strconv.FormatBool(tok.Verified),
		strconv.FormatFloat(tok.MarketCapUSD, 'f', 2, 64),
		strconv.FormatFloat(tok.Liquidity, 'f', 2, 64),
		strconv.Itoa(tok.HolderCount),
		strconv.Itoa(tok.ReplyCount),
		tok.Creator,
		tok.Signature,
	}
}

func writeCSV(tokens []domain.TokenRecord, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(CSVHeaders()); err != nil {
		return fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, tok := range tokens {
		if err := writer.Write(tokenRow(tok)); err != nil {
			return fmt.Errorf("failed to write detection: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

func (de *DetectionExporter) writeJSON(tokens []domain.TokenRecord, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create JSON file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")

	data := struct {
		ExportTime time.Time            `json:"export_time"`
		Count      int                  `json:"count"`
		Summary    Summary              `json:"summary"`
		Hourly     []HourlyStats        `json:"hourly_breakdown"`
		Tokens     []domain.TokenRecord `json:"tokens"`
	}{
		ExportTime: de.now(),
		Count:      len(tokens),
		Summary:    Summarize(tokens),
		Hourly:     HourlyBreakdown(tokens),
		Tokens:     tokens,
	}
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// Summary aggregates a set of exported detections.
type Summary struct {
	Total          int            `json:"total"`
	Verified       int            `json:"verified"`
	BySource       map[string]int `json:"by_source"`
	UniqueCreators int            `json:"unique_creators"`
	AvgMarketCap   float64        `json:"avg_market_cap_usd"`
	TotalLiquidity float64        `json:"total_liquidity"`
	StartDate      time.Time      `json:"start_date"`
	EndDate        time.Time      `json:"end_date"`
}

// Summarize expects tokens sorted oldest first.
func Summarize(tokens []domain.TokenRecord) Summary {
	summary := Summary{Total: len(tokens), BySource: make(map[string]int)}
	if len(tokens) == 0 {
		return summary
	}
	summary.StartDate = tokens[0].CreatedAt
	summary.EndDate = tokens[len(tokens)-1].CreatedAt

	creators := make(map[string]struct{})
	var capSum float64
	for _, tok := range tokens {
		summary.BySource[tok.SourceTag]++
		if tok.Verified {
			summary.Verified++
		}
		if tok.Creator != "" {
			creators[tok.Creator] = struct{}{}
		}
		capSum += tok.MarketCapUSD
		summary.TotalLiquidity += tok.Liquidity
	}
	summary.UniqueCreators = len(creators)
	summary.AvgMarketCap = capSum / float64(len(tokens))
	return summary
}

// HourlyStats counts detections created within one UTC hour of day.
type HourlyStats struct {
	Hour         int     `json:"hour"`
	Count        int     `json:"count"`
	AvgMarketCap float64 `json:"avg_market_cap_usd"`
}

func HourlyBreakdown(tokens []domain.TokenRecord) []HourlyStats {
	var byHour [24]HourlyStats
	for _, tok := range tokens {
		h := tok.CreatedAt.UTC().Hour()
		byHour[h].Hour = h
		byHour[h].Count++
		byHour[h].AvgMarketCap += tok.MarketCapUSD
	}

	var breakdown []HourlyStats
	for _, stats := range byHour {
		if stats.Count == 0 {
			continue
		}
		stats.AvgMarketCap /= float64(stats.Count)
		breakdown = append(breakdown, stats)
	}
	return breakdown
}
