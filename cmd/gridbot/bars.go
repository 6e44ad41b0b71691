package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"gridbot/internal/core"
	apperrors "gridbot/pkg/errors"
)

// ohlcvColumns is the header this loader recognizes. Neither spec.md nor
// the retrieval pack's original_source carries the historical_data_file
// reader (config_manager.py only exposes the path, not the parser), so the
// column set follows the standard OHLCV CSV convention core.Bar's own
// field list implies.
var ohlcvColumns = []string{"timestamp", "open", "high", "low", "close", "volume"}

// loadBarsCSV reads trading_settings.historical_data_file into ordered
// bars for GridStrategy.RunBacktest. timestamp accepts either a unix
// second/millisecond integer or RFC3339 text.
func loadBarsCSV(path string) ([]core.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", apperrors.ErrDataFetch, path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: empty file: %v", apperrors.ErrDataFetch, path, err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}
	for _, want := range ohlcvColumns {
		if _, ok := col[want]; !ok {
			return nil, fmt.Errorf("%w: %s: missing required column %q", apperrors.ErrDataFetch, path, want)
		}
	}

	var bars []core.Bar
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", apperrors.ErrDataFetch, path, err)
		}

		ts, err := parseBarTimestamp(row[col["timestamp"]])
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", apperrors.ErrDataFetch, path, err)
		}
		bar := core.Bar{Timestamp: ts}
		if bar.Open, err = decimal.NewFromString(row[col["open"]]); err != nil {
			return nil, fmt.Errorf("%w: %s: open: %v", apperrors.ErrDataFetch, path, err)
		}
		if bar.High, err = decimal.NewFromString(row[col["high"]]); err != nil {
			return nil, fmt.Errorf("%w: %s: high: %v", apperrors.ErrDataFetch, path, err)
		}
		if bar.Low, err = decimal.NewFromString(row[col["low"]]); err != nil {
			return nil, fmt.Errorf("%w: %s: low: %v", apperrors.ErrDataFetch, path, err)
		}
		if bar.Close, err = decimal.NewFromString(row[col["close"]]); err != nil {
			return nil, fmt.Errorf("%w: %s: close: %v", apperrors.ErrDataFetch, path, err)
		}
		if volIdx, ok := col["volume"]; ok && row[volIdx] != "" {
			if bar.Volume, err = decimal.NewFromString(row[volIdx]); err != nil {
				return nil, fmt.Errorf("%w: %s: volume: %v", apperrors.ErrDataFetch, path, err)
			}
		}
		bars = append(bars, bar)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: %s: no bars found", apperrors.ErrDataFetch, path)
	}
	return bars, nil
}

func parseBarTimestamp(raw string) (time.Time, error) {
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		switch {
		case n > 1e14: // microseconds
			return time.UnixMicro(n), nil
		case n > 1e11: // milliseconds
			return time.UnixMilli(n), nil
		default: // seconds
			return time.Unix(n, 0), nil
		}
	}
	return time.Parse(time.RFC3339, raw)
}
