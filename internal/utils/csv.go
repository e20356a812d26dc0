package utils

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"barrierBot/internal/domain"

	"github.com/shopspring/decimal"
)

var klineHeader = []string{"open_time", "close_time", "symbol", "interval", "open", "high", "low", "close", "volume"}

// WriteKlinesToCSV writes klines to filename, creating parent directories.
func WriteKlinesToCSV(klines []*domain.Kline, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", filename, err)
	}
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(klineHeader); err != nil {
		return err
	}
	for _, k := range klines {
		if err := writer.Write([]string{
			k.OpenTime.UTC().Format(time.RFC3339Nano),
			k.CloseTime.UTC().Format(time.RFC3339Nano),
			k.Symbol,
			k.Interval,
			k.Open.String(),
			k.High.String(),
			k.Low.String(),
			k.Close.String(),
			k.Volume.String(),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// ReadKlinesFromCSV reads klines written by WriteKlinesToCSV.
func ReadKlinesFromCSV(filename string) ([]*domain.Kline, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = len(klineHeader)

	if _, err := reader.Read(); err != nil {
		return nil, fmt.Errorf("reading header of %s: %w", filename, err)
	}

	var klines []*domain.Kline
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", filename, line, err)
		}
		k, err := parseKlineRecord(record)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", filename, line, err)
		}
		klines = append(klines, k)
	}
	return klines, nil
}

func parseKlineRecord(record []string) (*domain.Kline, error) {
	openTime, err := time.Parse(time.RFC3339Nano, record[0])
	if err != nil {
		return nil, fmt.Errorf("parsing open_time: %w", err)
	}
	closeTime, err := time.Parse(time.RFC3339Nano, record[1])
	if err != nil {
		return nil, fmt.Errorf("parsing close_time: %w", err)
	}
	values := make([]decimal.Decimal, 5)
	for i := range values {
		v, err := decimal.NewFromString(record[4+i])
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", klineHeader[4+i], err)
		}
		values[i] = v
	}
	return &domain.Kline{
		OpenTime:  openTime,
		CloseTime: closeTime,
		Symbol:    record[2],
		Interval:  record[3],
		Open:      values[0],
		High:      values[1],
		Low:       values[2],
		Close:     values[3],
		Volume:    values[4],
		IsFinal:   true,
	}, nil
}
