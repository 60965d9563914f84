package main

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"math/rand"
	"time"

	"gridengine/internal/config"
	"gridengine/internal/downloader"
	"gridengine/internal/optimizer"
	"gridengine/internal/simulator"
	"gridengine/internal/storage"
	"gridengine/internal/tradingtypes"
)

// findPairConfig looks up pair in cfg.Pairs, returning a usable default
// (10 levels, 1% spacing, $10,000 capital at the given base price) if
// it isn't explicitly configured, so ad-hoc backtests don't require
// editing config.json first.
func findPairConfig(cfg *config.Config, pair string, fallbackBasePrice float64) config.PairConfig {
	for _, p := range cfg.Pairs {
		if p.Pair == pair {
			return p
		}
	}
	return defaultPairConfig(pair, fallbackBasePrice, 10000)
}

// historicalDataPath is the CSV cache path convention shared between
// the downloader and every command that consumes cached klines.
func historicalDataPath(pair string) string {
	return fmt.Sprintf("data/%s.csv", pair)
}

// loadOrDownloadSeries loads a cached kline CSV for pair, downloading
// the trailing `days` days of 1-minute klines first if no cache exists.
func loadOrDownloadSeries(pair string, days int) ([]tradingtypes.PricePoint, error) {
	path := historicalDataPath(pair)
	dl := downloader.NewKlineDownloader()
	end := time.Now()
	start := end.AddDate(0, 0, -days)
	if err := dl.DownloadKlines(pair, path, start, end); err != nil {
		return nil, fmt.Errorf("download klines for %s: %w", pair, err)
	}
	return downloader.LoadPriceSeries(path)
}

// syntheticSeries generates a deterministic geometric-Brownian-motion
// price path for `backtest demo`, where no historical data is required.
func syntheticSeries(basePrice float64, bars int, seed int64) []tradingtypes.PricePoint {
	rng := rand.New(rand.NewSource(seed))
	const (
		driftPerBar = 0.00002
		volPerBar   = 0.004
	)
	points := make([]tradingtypes.PricePoint, bars)
	price := basePrice
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < bars; i++ {
		shock := rng.NormFloat64() * volPerBar
		price *= math.Exp(driftPerBar - 0.5*volPerBar*volPerBar + shock)
		points[i] = tradingtypes.PricePoint{
			Timestamp: start.Add(time.Duration(i) * time.Minute),
			Price:     price,
		}
	}
	return points
}

// firstPositional returns the first remaining positional argument
// after flag parsing, if any.
func firstPositional(args []string) (string, bool) {
	if len(args) == 0 {
		return "", false
	}
	return args[0], true
}

// loadSeriesForBacktest loads a price series from an explicit CSV path
// if given, otherwise from the historical-data cache, downloading it
// first if necessary.
func loadSeriesForBacktest(pair, dataPath string, days int) ([]tradingtypes.PricePoint, error) {
	if dataPath != "" {
		return downloader.LoadPriceSeries(dataPath)
	}
	return loadOrDownloadSeries(pair, days)
}

func openStrategyDB(cfg *config.Config) (*sql.DB, error) {
	return storage.InitDB(cfg.SQLitePath)
}

// bookSeedingFeed wraps a live PriceSource and seeds a synthetic
// one-level book into a local matching engine on every tick, so a
// PaperExchange can execute fills against a price driven by a real
// feed during --dry-run trading, the same way exchange.PriceSeriesFeed
// does for pure replay.
type bookSeedingFeed struct {
	inner          priceSource
	pair           string
	engine         *simulator.MatchingEngine
	spreadFraction float64
}

// priceSource mirrors liveengine.PriceSource without importing it, to
// keep this CLI-local helper decoupled from the engine package.
type priceSource interface {
	NextPrice(ctx context.Context) (float64, time.Time, error)
}

func newBookSeedingFeed(inner priceSource, pair string, engine *simulator.MatchingEngine) *bookSeedingFeed {
	return &bookSeedingFeed{inner: inner, pair: pair, engine: engine, spreadFraction: 0.0002}
}

func (f *bookSeedingFeed) NextPrice(ctx context.Context) (float64, time.Time, error) {
	price, ts, err := f.inner.NextPrice(ctx)
	if err != nil {
		return 0, time.Time{}, err
	}
	half := f.spreadFraction / 2
	f.engine.InitializeOrderBook(f.pair, tradingtypes.OrderBookSnapshot{
		Pair: f.pair,
		Bids: []tradingtypes.OrderBookLevel{{Price: price * (1 - half), Size: 1e9}},
		Asks: []tradingtypes.OrderBookLevel{{Price: price * (1 + half), Size: 1e9}},
	})
	return price, ts, nil
}

func riskSizingModeName(m optimizer.RiskSizingMode) string {
	switch m {
	case optimizer.Kelly:
		return "kelly"
	case optimizer.VaR:
		return "var"
	case optimizer.VolAdjusted:
		return "vol_adjusted"
	default:
		return "fixed"
	}
}
