package cache

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dyike/forexcell/models"
)

// SeriesStore keeps CSV snapshots of fetched candles under
// <base>/csv/market/<SYMBOL>/. Snapshots serve as a stale fallback when the
// provider is unavailable.
type SeriesStore struct {
	basePath string
}

func NewSeriesStore(basePath string) *SeriesStore {
	return &SeriesStore{basePath: basePath}
}

func symbolDir(symbol string) string {
	return strings.ReplaceAll(strings.ToUpper(symbol), "/", "")
}

// Write saves a snapshot and returns its path.
func (s *SeriesStore) Write(series *models.Series) (string, error) {
	if series == nil || len(series.Candles) == 0 {
		return "", fmt.Errorf("empty series")
	}
	sym := symbolDir(series.Symbol)
	dirPath := filepath.Join(s.basePath, "csv", "market", sym)
	if err := os.MkdirAll(dirPath, 0o755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}

	// 文件名: SYMBOL_INTERVAL_COUNT_records_TIMESTAMP.csv
	filename := fmt.Sprintf("%s_%s_%d_records_%s.csv",
		sym, series.Interval, len(series.Candles), time.Now().Format("20060102_150405.000"))
	filePath := filepath.Join(dirPath, filename)

	file, err := os.Create(filePath)
	if err != nil {
		return "", fmt.Errorf("create snapshot: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write([]string{"symbol", "datetime", "open", "high", "low", "close", "volume"}); err != nil {
		return "", fmt.Errorf("write header: %w", err)
	}
	for _, c := range series.Candles {
		row := []string{
			series.Symbol,
			c.Datetime.Format(time.RFC3339),
			strconv.FormatFloat(c.Open, 'f', -1, 64),
			strconv.FormatFloat(c.High, 'f', -1, 64),
			strconv.FormatFloat(c.Low, 'f', -1, 64),
			strconv.FormatFloat(c.Close, 'f', -1, 64),
			strconv.FormatInt(c.Volume, 10),
		}
		if err := w.Write(row); err != nil {
			return "", fmt.Errorf("write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flush snapshot: %w", err)
	}
	return filePath, nil
}

// Latest loads the newest snapshot for symbol and interval holding at least
// minRecords candles. It returns the snapshot's modification time as well.
func (s *SeriesStore) Latest(symbol, interval string, minRecords int) (*models.Series, time.Time, error) {
	sym := symbolDir(symbol)
	pattern := filepath.Join(s.basePath, "csv", "market", sym, fmt.Sprintf("%s_%s_*_records_*.csv", sym, interval))
	files, err := filepath.Glob(pattern)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("search snapshots: %w", err)
	}

	var best string
	var bestTime time.Time
	for _, f := range files {
		parts := strings.Split(filepath.Base(f), "_")
		if len(parts) < 5 {
			continue
		}
		n, err := strconv.Atoi(parts[2])
		if err != nil || n < minRecords {
			continue
		}
		info, err := os.Stat(f)
		if err != nil {
			continue
		}
		if info.ModTime().After(bestTime) {
			best, bestTime = f, info.ModTime()
		}
	}
	if best == "" {
		return nil, time.Time{}, fmt.Errorf("no snapshot for %s %s with %d records", symbol, interval, minRecords)
	}

	series, err := readSnapshot(best, interval)
	if err != nil {
		return nil, time.Time{}, err
	}
	return series, bestTime, nil
}

func readSnapshot(path, interval string) (*models.Series, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	if len(records) <= 1 {
		return nil, fmt.Errorf("snapshot %s is empty", filepath.Base(path))
	}

	series := &models.Series{Interval: interval}
	for _, rec := range records[1:] {
		if len(rec) < 7 {
			continue // 跳过格式不正确的行
		}
		ts, err := time.Parse(time.RFC3339, rec[1])
		if err != nil {
			continue
		}
		open, _ := strconv.ParseFloat(rec[2], 64)
		high, _ := strconv.ParseFloat(rec[3], 64)
		low, _ := strconv.ParseFloat(rec[4], 64)
		closePrice, _ := strconv.ParseFloat(rec[5], 64)
		volume, _ := strconv.ParseInt(rec[6], 10, 64)
		series.Symbol = rec[0]
		series.Candles = append(series.Candles, models.Candle{
			Symbol: rec[0], Datetime: ts,
			Open: open, High: high, Low: low, Close: closePrice, Volume: volume,
		})
	}
	return series, nil
}

// Clean removes snapshots older than maxAge.
func (s *SeriesStore) Clean(maxAge time.Duration) error {
	dir := filepath.Join(s.basePath, "csv", "market")
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil
	}
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && strings.HasSuffix(info.Name(), ".csv") && time.Since(info.ModTime()) > maxAge {
			if err := os.Remove(path); err != nil {
				return fmt.Errorf("remove %s: %w", path, err)
			}
		}
		return nil
	})
}
