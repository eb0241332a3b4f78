package infra

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config holds every tunable of the simulator. Loaded once at startup;
// environment variables override the feed endpoint for testing against
// alternative streams.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Feed struct {
		WSURL  string `yaml:"ws_url"`
		Symbol string `yaml:"symbol"` // lowercase pair, e.g. "btcusdt"
		Depth  int    `yaml:"depth"`  // levels per side in the depth stream
	} `yaml:"feed"`

	Strategy struct {
		BaseSpread          decimal.Decimal `yaml:"base_spread"`           // quoted spread in quote currency
		OrderSize           decimal.Decimal `yaml:"order_size"`            // base units per quote
		MaxInventory        decimal.Decimal `yaml:"max_inventory"`         // |position| cap in base units
		SkewFactor          decimal.Decimal `yaml:"skew_factor"`           // inventory skew multiplier
		MaxExposure         decimal.Decimal `yaml:"max_exposure"`          // notional cap in quote currency
		MaxLoss             decimal.Decimal `yaml:"max_loss"`              // total-loss halt threshold
		RequoteTick         decimal.Decimal `yaml:"requote_tick"`          // min mid move before re-quoting
		InitialQuoteBalance decimal.Decimal `yaml:"initial_quote_balance"` // simulated cash
	} `yaml:"strategy"`

	Spread struct {
		Sizes  []decimal.Decimal `yaml:"sizes"`  // notional sizes in base units
		Window int               `yaml:"window"` // rolling samples per size
	} `yaml:"spread"`

	UI struct {
		RefreshMS int `yaml:"refresh_ms"`
		BookDepth int `yaml:"book_depth"` // levels shown per side
	} `yaml:"ui"`

	Export struct {
		Dir string `yaml:"dir"`
	} `yaml:"export"`

	Storage struct {
		Path string `yaml:"path"` // sqlite file, empty disables persistence
	} `yaml:"storage"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// LoadConfig reads and parses the configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	overrideWithEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	if c.Feed.WSURL == "" || (!hasPrefix(c.Feed.WSURL, "ws://") && !hasPrefix(c.Feed.WSURL, "wss://")) {
		return fmt.Errorf("invalid feed WS URL: %s", c.Feed.WSURL)
	}
	if c.Feed.Symbol == "" {
		return fmt.Errorf("feed symbol is required")
	}
	if c.Feed.Depth <= 0 {
		c.Feed.Depth = 20
	}

	if c.Strategy.BaseSpread.IsZero() || c.Strategy.BaseSpread.IsNegative() {
		return fmt.Errorf("base_spread must be positive")
	}
	if c.Strategy.OrderSize.IsZero() || c.Strategy.OrderSize.IsNegative() {
		return fmt.Errorf("order_size must be positive")
	}
	if c.Strategy.MaxInventory.IsZero() || c.Strategy.MaxInventory.IsNegative() {
		return fmt.Errorf("max_inventory must be positive")
	}
	if c.Strategy.MaxExposure.IsZero() || c.Strategy.MaxExposure.IsNegative() {
		return fmt.Errorf("max_exposure must be positive")
	}
	if c.Strategy.MaxLoss.IsZero() || c.Strategy.MaxLoss.IsNegative() {
		return fmt.Errorf("max_loss must be positive")
	}
	if c.Strategy.RequoteTick.IsNegative() {
		return fmt.Errorf("requote_tick must not be negative")
	}
	if c.Strategy.InitialQuoteBalance.IsNegative() {
		return fmt.Errorf("initial_quote_balance must not be negative")
	}

	if len(c.Spread.Sizes) == 0 {
		return fmt.Errorf("at least one spread size is required")
	}
	for _, s := range c.Spread.Sizes {
		if s.IsZero() || s.IsNegative() {
			return fmt.Errorf("spread sizes must be positive, got %s", s)
		}
	}
	if c.Spread.Window <= 0 {
		return fmt.Errorf("spread window must be positive")
	}

	if c.UI.RefreshMS <= 0 {
		return fmt.Errorf("UI refresh interval must be positive")
	}
	if c.UI.BookDepth <= 0 {
		c.UI.BookDepth = 10
	}

	return nil
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[0:len(prefix)] == prefix
}

// overrideWithEnv overrides config values from environment variables when set.
func overrideWithEnv(cfg *Config) {
	if url := os.Getenv("MMGO_FEED_WS_URL"); url != "" {
		cfg.Feed.WSURL = url
	}
	if symbol := os.Getenv("MMGO_FEED_SYMBOL"); symbol != "" {
		cfg.Feed.Symbol = symbol
	}
	if dir := os.Getenv("MMGO_EXPORT_DIR"); dir != "" {
		cfg.Export.Dir = dir
	}
}
