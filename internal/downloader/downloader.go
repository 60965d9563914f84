// Package downloader fetches historical kline data from Binance and
// caches it as CSV, and loads that CSV back into a price series for
// the Backtest Driver and Parameter Optimizer.
package downloader

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adshao/go-binance/v2"
	"go.uber.org/zap"

	"gridengine/internal/logger"
)

// klineLimit is the maximum number of klines Binance returns per request.
const klineLimit = 1000

// requestPause throttles successive kline requests against the public
// REST endpoint.
const requestPause = 200 * time.Millisecond

// KlineDownloader fetches 1-minute kline history from Binance's public
// REST API and caches it to disk as CSV.
type KlineDownloader struct {
	client *binance.Client
	log    *zap.Logger
}

// NewKlineDownloader builds a downloader against Binance's public
// endpoints; kline history needs no API key.
func NewKlineDownloader() *KlineDownloader {
	return &KlineDownloader{
		client: binance.NewClient("", ""),
		log:    logger.L(),
	}
}

// DownloadKlines fetches 1-minute klines for symbol between startTime
// and endTime and writes them to filePath as CSV. If filePath already
// exists, it is treated as a cache hit and the download is skipped.
func (d *KlineDownloader) DownloadKlines(symbol, filePath string, startTime, endTime time.Time) error {
	if _, err := os.Stat(filePath); !os.IsNotExist(err) {
		d.log.Info("loaded klines from cache", zap.String("path", filePath))
		return nil
	}

	d.log.Info("downloading klines",
		zap.String("symbol", symbol),
		zap.Time("start", startTime),
		zap.Time("end", endTime))

	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create cache directory %s: %w", dir, err)
	}

	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("create cache file %s: %w", filePath, err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"open_time", "open", "high", "low", "close", "volume", "close_time", "quote_asset_volume", "number_of_trades", "taker_buy_base_asset_volume", "taker_buy_quote_asset_volume"}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("write CSV header: %w", err)
	}

	for t := startTime; t.Before(endTime); {
		klines, err := d.client.NewKlinesService().
			Symbol(symbol).
			Interval("1m").
			StartTime(t.UnixMilli()).
			Limit(klineLimit).
			Do(context.Background())
		if err != nil {
			return fmt.Errorf("fetch klines for %s: %w", symbol, err)
		}

		if len(klines) == 0 {
			break
		}

		for _, k := range klines {
			record := []string{
				fmt.Sprintf("%d", k.OpenTime),
				k.Open,
				k.High,
				k.Low,
				k.Close,
				k.Volume,
				fmt.Sprintf("%d", k.CloseTime),
				k.QuoteAssetVolume,
				fmt.Sprintf("%d", k.TradeNum),
				k.TakerBuyBaseAssetVolume,
				k.TakerBuyQuoteAssetVolume,
			}
			if err := writer.Write(record); err != nil {
				return fmt.Errorf("write CSV record: %w", err)
			}
		}

		t = time.UnixMilli(klines[len(klines)-1].CloseTime + 1)
		d.log.Debug("downloaded klines up to", zap.Time("cursor", t))
		time.Sleep(requestPause)
	}

	d.log.Info("cached klines", zap.String("path", filePath))
	return nil
}
