package utils

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"antigravity/internal/domain"
)

var csvHeader = []string{"open_time", "close_time", "symbol", "interval", "open", "high", "low", "close", "volume"}

func WriteKlinesToCSV(klines []*domain.Kline, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	writer.Write(csvHeader)

	for _, k := range klines {
		writer.Write([]string{
			k.OpenTime.Format(time.RFC3339),
			k.CloseTime.Format(time.RFC3339),
			k.Symbol,
			k.Interval,
			strconv.FormatFloat(k.Open, 'f', -1, 64),
			strconv.FormatFloat(k.High, 'f', -1, 64),
			strconv.FormatFloat(k.Low, 'f', -1, 64),
			strconv.FormatFloat(k.Close, 'f', -1, 64),
			strconv.FormatFloat(k.Volume, 'f', -1, 64),
		})
	}
	return writer.Error()
}

// ReadKlinesFromCSV loads klines previously written by WriteKlinesToCSV,
// oldest first.
func ReadKlinesFromCSV(filename string) ([]*domain.Kline, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("no kline rows in %s", filename)
	}

	klines := make([]*domain.Kline, 0, len(records)-1)
	for i, rec := range records[1:] { // skip header
		if len(rec) != len(csvHeader) {
			return nil, fmt.Errorf("row %d: expected %d columns, got %d", i+2, len(csvHeader), len(rec))
		}
		openTime, err := time.Parse(time.RFC3339, rec[0])
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid open_time: %w", i+2, err)
		}
		closeTime, err := time.Parse(time.RFC3339, rec[1])
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid close_time: %w", i+2, err)
		}
		k := &domain.Kline{OpenTime: openTime, CloseTime: closeTime, Symbol: rec[2], Interval: rec[3]}
		for col, dst := range map[int]*float64{4: &k.Open, 5: &k.High, 6: &k.Low, 7: &k.Close, 8: &k.Volume} {
			v, err := strconv.ParseFloat(rec[col], 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: invalid %s: %w", i+2, csvHeader[col], err)
			}
			*dst = v
		}
		klines = append(klines, k)
	}
	return klines, nil
}
