package downloader

import (
	"encoding/csv"
	"os"
	"strconv"
	"time"

	"gridengine/internal/tradingtypes"
)

// LoadPriceSeries reads a kline CSV produced by DownloadKlines and
// returns it as a chronologically ordered price series keyed on
// close price and open_time, the shape the Backtest Driver and
// Parameter Optimizer consume.
func LoadPriceSeries(path string) ([]tradingtypes.PricePoint, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, nil
	}

	points := make([]tradingtypes.PricePoint, 0, len(rows)-1)
	for _, row := range rows[1:] { // skip header
		openTimeMs, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			continue
		}
		close, err := strconv.ParseFloat(row[4], 64)
		if err != nil {
			continue
		}
		volume, _ := strconv.ParseFloat(row[5], 64)

		points = append(points, tradingtypes.PricePoint{
			Timestamp: time.UnixMilli(openTimeMs),
			Price:     close,
			Volume:    volume,
		})
	}
	return points, nil
}
