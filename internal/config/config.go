// Package config loads the engine's JSON configuration file and
// overlays environment variables for secrets using a
// json-file-plus-env-overlay approach.
package config

import (
	"encoding/json"
	"os"

	"github.com/joho/godotenv"

	"gridengine/internal/risk"
	"gridengine/internal/simulator"
	"gridengine/internal/tradingtypes"
)

// LogConfig configures the zap-backed logger.
type LogConfig struct {
	Level      string
	Output     string // "console", "file", or "both"
	File       string
	MaxSize    int
	MaxBackups int
	MaxAge     int
	Compress   bool
}

// PairConfig is one trading pair's Grid Trader configuration.
type PairConfig struct {
	Pair                    string
	BasePrice               float64
	LevelCount              int
	BaseSpacing             float64
	Capital                 float64
	MaxPositionFraction     float64
	EmergencyExitThreshold  float64
}

// ExchangeConfig holds live-exchange connection settings; APIKey and
// SecretKey are always sourced from the environment (BINANCE_API_KEY /
// BINANCE_SECRET_KEY), never stored in the JSON file.
type ExchangeConfig struct {
	BaseURL   string
	WSBaseURL string
	APIKey    string `json:"-"`
	SecretKey string `json:"-"`
}

// Config is the engine's top-level configuration.
type Config struct {
	Pairs    []PairConfig
	Risk     risk.Limits
	Slippage simulator.SlippageModel
	Exchange ExchangeConfig
	Log      LogConfig

	BadgerDir  string
	SQLitePath string

	TotalCapital float64
}

// Load reads path as JSON into a Config, then overlays exchange
// secrets from the environment (loading a .env file first via
// godotenv, if one is present).
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	cfg := &Config{}
	if err := json.NewDecoder(file).Decode(cfg); err != nil {
		return nil, err
	}

	cfg.Exchange.APIKey = os.Getenv("BINANCE_API_KEY")
	cfg.Exchange.SecretKey = os.Getenv("BINANCE_SECRET_KEY")

	return cfg, nil
}

// GridConfigFor maps a PairConfig onto the domain's GridConfig field
// by field. It fills in no defaults; zero MaxPositionFraction and
// EmergencyExitThreshold values are defaulted later by gridtrader.New.
func (p PairConfig) GridConfigFor() tradingtypes.GridConfig {
	return tradingtypes.GridConfig{
		Pair:                   p.Pair,
		BasePrice:              p.BasePrice,
		LevelCount:             p.LevelCount,
		BaseSpacing:            p.BaseSpacing,
		Capital:                p.Capital,
		MaxPositionFraction:    p.MaxPositionFraction,
		EmergencyExitThreshold: p.EmergencyExitThreshold,
	}
}
