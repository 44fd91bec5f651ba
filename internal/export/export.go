package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/bondswap/internal/swap"
)

// Format represents the export file format
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported format: %s", s)
	}
}

// Options configures the export behavior
type Options struct {
	Format    Format
	StartTime time.Time
	EndTime   time.Time
	Pool      string         // pool address, empty for all
	Direction swap.Direction // zero for both
	OutputDir string
}

// Summary aggregates the exported receipts.
type Summary struct {
	TotalTrades     int       `json:"total_trades"`
	BuyCount        int       `json:"buy_count"`
	SellCount       int       `json:"sell_count"`
	UniquePools     int       `json:"unique_pools"`
	UnitsBought     uint64    `json:"units_bought"`
	UnitsSold       uint64    `json:"units_sold"`
	LamportsPaid    uint64    `json:"lamports_paid"`
	LamportsPaidOut uint64    `json:"lamports_paid_out"`
	StartDate       time.Time `json:"start_date"`
	EndDate         time.Time `json:"end_date"`
}

// ReceiptExporter writes settled trade receipts to files.
type ReceiptExporter struct {
	logger *zap.Logger
	now    func() time.Time
}

func NewReceiptExporter(logger *zap.Logger) *ReceiptExporter {
	return &ReceiptExporter{
		logger: logger.Named("export"),
		now:    time.Now,
	}
}

// Export filters receipts, sorts them by settlement time and writes them to
// a new file under opts.OutputDir. It returns the file path.
func (re *ReceiptExporter) Export(receipts []*swap.Receipt, opts Options) (string, error) {
	filtered := Filter(receipts, opts)
	if len(filtered) == 0 {
		return "", fmt.Errorf("no trades match the export criteria")
	}

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	outputPath := filepath.Join(opts.OutputDir, re.filename(opts))

	file, err := os.Create(outputPath)
	if err != nil {
		return "", fmt.Errorf("failed to create export file: %w", err)
	}
	defer file.Close()

	switch opts.Format {
	case FormatCSV:
		err = WriteCSV(file, filtered)
	case FormatJSON:
		err = WriteJSON(file, filtered, re.now())
	default:
		err = fmt.Errorf("unsupported format: %s", opts.Format)
	}
	if err != nil {
		return "", err
	}

	re.logger.Info("Receipts exported",
		zap.String("file", outputPath),
		zap.Int("count", len(filtered)),
		zap.String("format", string(opts.Format)))

	return outputPath, nil
}

// Filter returns the receipts matching opts, ordered by settlement time.
func Filter(receipts []*swap.Receipt, opts Options) []*swap.Receipt {
	var out []*swap.Receipt
	for _, rc := range receipts {
		if !opts.StartTime.IsZero() && rc.SettledAt.Before(opts.StartTime) {
			continue
		}
		if !opts.EndTime.IsZero() && rc.SettledAt.After(opts.EndTime) {
			continue
		}
		if opts.Pool != "" && rc.Pool.String() != opts.Pool {
			continue
		}
		if opts.Direction != 0 && rc.Direction != opts.Direction {
			continue
		}
		out = append(out, rc)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SettledAt.Before(out[j].SettledAt)
	})
	return out
}

func (re *ReceiptExporter) filename(opts Options) string {
	prefix := "receipts_all"
	if opts.Direction != 0 {
		prefix = "receipts_" + opts.Direction.String()
	}
	if len(opts.Pool) >= 8 {
		prefix += "_" + opts.Pool[:8]
	}
	return fmt.Sprintf("%s_%s.%s", prefix, re.now().Format("20060102_150405"), opts.Format)
}

// CSVHeaders lists the columns written by WriteCSV.
func CSVHeaders() []string {
	return []string{
		"id", "settled_at", "direction", "pool", "leg", "mint", "trader",
		"strategy", "amount", "total_price", "unit_price", "supply_before",
	}
}

func WriteCSV(w io.Writer, receipts []*swap.Receipt) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(CSVHeaders()); err != nil {
		return fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, rc := range receipts {
		row := []string{
			rc.ID,
			rc.SettledAt.UTC().Format(time.RFC3339Nano),
			rc.Direction.String(),
			rc.Pool.String(),
			rc.Leg.String(),
			rc.Mint.String(),
			rc.Trader.String(),
			rc.Strategy.String(),
			strconv.FormatUint(rc.Amount, 10),
			strconv.FormatUint(rc.TotalPrice, 10),
			strconv.FormatFloat(rc.UnitPrice, 'f', -1, 64),
			strconv.FormatUint(rc.SupplyBefore, 10),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write receipt %s: %w", rc.ID, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

func WriteJSON(w io.Writer, receipts []*swap.Receipt, exportedAt time.Time) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	data := struct {
		ExportTime time.Time       `json:"export_time"`
		TradeCount int             `json:"trade_count"`
		Summary    Summary         `json:"summary"`
		Receipts   []*swap.Receipt `json:"receipts"`
	}{
		ExportTime: exportedAt,
		TradeCount: len(receipts),
		Summary:    Summarize(receipts),
		Receipts:   receipts,
	}
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// Summarize expects receipts ordered by settlement time.
func Summarize(receipts []*swap.Receipt) Summary {
	s := Summary{TotalTrades: len(receipts)}
	if len(receipts) == 0 {
		return s
	}
	s.StartDate = receipts[0].SettledAt
	s.EndDate = receipts[len(receipts)-1].SettledAt

	pools := make(map[string]bool)
	for _, rc := range receipts {
		pools[rc.Pool.String()] = true
		switch rc.Direction {
		case swap.Buy:
			s.BuyCount++
			s.UnitsBought += rc.Amount
			s.LamportsPaid += rc.TotalPrice
		case swap.Sell:
			s.SellCount++
			s.UnitsSold += rc.Amount
			s.LamportsPaidOut += rc.TotalPrice
		}
	}
	s.UniquePools = len(pools)
	return s
}
