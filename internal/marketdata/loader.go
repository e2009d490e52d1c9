// Package marketdata loads bar series from CSV files. The engine never
// fetches data itself; this package feeds the CLIs and the replayer.
package marketdata

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"market-pattern-engine/internal/logging"
	"market-pattern-engine/internal/market"
)

// millisEpochCutoff separates unix-second from unix-millisecond stamps.
const millisEpochCutoff = 1e12

// Loader reads bar CSVs shaped timestamp,open,high,low,close,volume.
type Loader struct {
	log *logging.Logger
}

// NewLoader creates a CSV bar loader.
func NewLoader() *Loader {
	return &Loader{log: logging.WithComponent("marketdata")}
}

// LoadFile reads one CSV series and stamps every bar with the timeframe.
// Rows are sorted by timestamp so callers always see ordered input.
func (l *Loader) LoadFile(path string, tf market.Timeframe) ([]market.Bar, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	bars := make([]market.Bar, 0, len(records))
	for i, record := range records {
		if i == 0 && isHeader(record) {
			continue
		}
		bar, err := parseBar(record, tf)
		if err != nil {
			return nil, fmt.Errorf("%s: record %d: %w", path, i+1, err)
		}
		bars = append(bars, bar)
	}

	sort.SliceStable(bars, func(i, j int) bool {
		return bars[i].Timestamp.Before(bars[j].Timestamp)
	})
	return bars, nil
}

// LoadDir loads every {symbol}_{timeframe}.csv under dir into a
// symbol-keyed map of timeframe series. Files that do not match the
// naming scheme are skipped.
func (l *Loader) LoadDir(dir string) (map[string]map[market.Timeframe][]market.Bar, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}

	out := make(map[string]map[market.Timeframe][]market.Bar)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".csv") {
			continue
		}
		symbol, tf, ok := ParseSeriesName(entry.Name())
		if !ok {
			l.log.Warn("skipping file with unrecognized name", "file", entry.Name())
			continue
		}

		bars, err := l.LoadFile(filepath.Join(dir, entry.Name()), tf)
		if err != nil {
			return nil, err
		}

		if out[symbol] == nil {
			out[symbol] = make(map[market.Timeframe][]market.Bar)
		}
		out[symbol][tf] = bars
		l.log.Debug("loaded series", "symbol", symbol, "timeframe", string(tf), "bars", len(bars))
	}
	return out, nil
}

// ParseSeriesName parses series file names like BTCUSDT_1h.csv into
// their symbol and timeframe.
func ParseSeriesName(name string) (string, market.Timeframe, bool) {
	base := strings.TrimSuffix(name, ".csv")
	idx := strings.LastIndex(base, "_")
	if idx <= 0 || idx == len(base)-1 {
		return "", "", false
	}
	tf, err := market.ParseTimeframe(base[idx+1:])
	if err != nil {
		return "", "", false
	}
	return base[:idx], tf, true
}

func isHeader(record []string) bool {
	return len(record) > 0 && strings.EqualFold(strings.TrimSpace(record[0]), "timestamp")
}

func parseBar(record []string, tf market.Timeframe) (market.Bar, error) {
	if len(record) < 6 {
		return market.Bar{}, fmt.Errorf("expected 6 fields, got %d", len(record))
	}

	ts, err := parseTimestamp(record[0])
	if err != nil {
		return market.Bar{}, err
	}

	fields := make([]float64, 5)
	names := []string{"open", "high", "low", "close", "volume"}
	for i := 0; i < 5; i++ {
		v, err := strconv.ParseFloat(strings.TrimSpace(record[i+1]), 64)
		if err != nil {
			return market.Bar{}, fmt.Errorf("invalid %s %q", names[i], record[i+1])
		}
		fields[i] = v
	}

	return market.Bar{
		Timestamp: ts,
		Open:      fields[0],
		High:      fields[1],
		Low:       fields[2],
		Close:     fields[3],
		Volume:    fields[4],
		Timeframe: tf,
	}, nil
}

// parseTimestamp accepts RFC3339 or a unix epoch in seconds or millis.
func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if epoch, err := strconv.ParseInt(s, 10, 64); err == nil {
		if float64(epoch) >= millisEpochCutoff {
			return time.UnixMilli(epoch).UTC(), nil
		}
		return time.Unix(epoch, 0).UTC(), nil
	}
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
	}
	return ts.UTC(), nil
}
